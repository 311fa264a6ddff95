// Package resolver detects well-known file-hosting providers from a URL and,
// for the ones that hide a real download link behind an HTML landing page,
// scrapes that link out with plain marker-string heuristics — not a
// structural HTML parser.
package resolver

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/muhammad1505/idm-open/internal/netclient"
)

// maxHTMLBytes bounds how much of a landing page is buffered before giving
// up the scrape; real download pages are small, and mirrors can be huge.
const maxHTMLBytes = 1024 * 1024

// Provider identifies a recognized file host.
type Provider int

const (
	ProviderUnknown Provider = iota
	ProviderPixeldrain
	ProviderGoogleDrive
	ProviderMediafire
	ProviderMega
)

// DetectProvider classifies rawURL by host. Unparseable URLs and unrecognized
// hosts both report ProviderUnknown.
func DetectProvider(rawURL string) Provider {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ProviderUnknown
	}
	host := strings.ToLower(parsed.Hostname())
	switch {
	case host == "pixeldrain.com" || host == "www.pixeldrain.com":
		return ProviderPixeldrain
	case host == "drive.google.com" || host == "docs.google.com":
		return ProviderGoogleDrive
	case strings.HasSuffix(host, "mediafire.com"):
		return ProviderMediafire
	case host == "mega.nz" || host == "mega.co.nz":
		return ProviderMega
	default:
		return ProviderUnknown
	}
}

// IsHTMLContentType reports whether a Content-Type value names an HTML or
// XHTML document.
func IsHTMLContentType(contentType string) bool {
	if contentType == "" {
		return false
	}
	lower := strings.ToLower(contentType)
	return strings.Contains(lower, "text/html") || strings.Contains(lower, "application/xhtml")
}

// ResolveURLCandidates expands urls with any statically derivable direct
// links (Pixeldrain API URL, Google Drive uc?export=download URL) ahead of
// each original URL, preserving order and removing duplicates.
func ResolveURLCandidates(urls []string) []string {
	out := make([]string, 0, len(urls))
	seen := make(map[string]struct{})

	push := func(candidate string) {
		if _, ok := seen[candidate]; ok {
			return
		}
		seen[candidate] = struct{}{}
		out = append(out, candidate)
	}

	for _, u := range urls {
		if resolved := resolvePixeldrain(u); resolved != "" {
			push(resolved)
		}
		if id := resolveGoogleDriveID(u); id != "" {
			push(buildGoogleDriveDirect(id))
		}
		push(u)
	}
	return out
}

// ResolveHTMLDownload fetches baseURL (stripped of any byte range) and, if it
// comes back as HTML, scrapes a provider-specific or generic real download
// link out of the page. An empty result is not an error: the resource may
// simply not be an HTML landing page.
func ResolveHTMLDownload(ctx context.Context, client netclient.Client, baseReq netclient.Request) ([]string, error) {
	html, err := fetchHTML(ctx, client, baseReq)
	if err != nil {
		return nil, err
	}
	if html == "" {
		return nil, nil
	}

	provider := DetectProvider(baseReq.URL)
	var out []string

	if provider == ProviderMediafire {
		if link := resolveMediafireHTML(html); link != "" {
			out = append(out, link)
		}
	}

	if provider == ProviderGoogleDrive {
		if id := resolveGoogleDriveID(baseReq.URL); id != "" {
			if link := resolveGoogleDriveConfirm(html, id); link != "" {
				out = append(out, link)
			}
		}
		if link := resolveGoogleDriveDirectFromHTML(html); link != "" {
			out = append(out, link)
		}
	}

	if len(out) == 0 {
		if link := resolveGenericHTML(html); link != "" {
			out = append(out, link)
		}
	}

	return dedup(out), nil
}

func fetchHTML(ctx context.Context, client netclient.Client, baseReq netclient.Request) (string, error) {
	req := baseReq
	req.Range = nil

	resp, err := client.Get(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if !IsHTMLContentType(resp.Header.Get("Content-Type")) {
		return "", nil
	}

	limited := io.LimitReader(resp.Body, maxHTMLBytes)
	buf, err := io.ReadAll(limited)
	if err != nil {
		return "", nil
	}
	return string(buf), nil
}

func resolvePixeldrain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	if host != "pixeldrain.com" && host != "www.pixeldrain.com" {
		return ""
	}
	segments := pathSegments(parsed.Path)
	if len(segments) >= 2 && segments[0] == "d" {
		return "https://pixeldrain.com/api/filesystem/" + segments[1]
	}
	return ""
}

func resolveGoogleDriveID(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	if host != "drive.google.com" && host != "docs.google.com" {
		return ""
	}
	segments := pathSegments(parsed.Path)
	if len(segments) >= 3 && segments[0] == "file" && segments[1] == "d" {
		return segments[2]
	}
	if id := parsed.Query().Get("id"); id != "" {
		return id
	}
	return ""
}

func buildGoogleDriveDirect(id string) string {
	return "https://drive.google.com/uc?export=download&id=" + id
}

func resolveGoogleDriveConfirm(html, id string) string {
	if link := resolveGoogleDriveDirectFromHTML(html); link != "" {
		return link
	}
	token := extractTokenAfter(html, "confirm=")
	if token == "" {
		return ""
	}
	return "https://drive.google.com/uc?export=download&confirm=" + token + "&id=" + id
}

func resolveGoogleDriveDirectFromHTML(html string) string {
	pos := strings.Index(html, "/uc?export=download")
	if pos < 0 {
		return ""
	}
	slice := html[pos:]
	end := strings.IndexAny(slice, "\"'")
	if end < 0 {
		return ""
	}
	link := slice[:end]
	if !strings.HasPrefix(link, "http") {
		link = "https://drive.google.com" + link
	}
	return link
}

func resolveMediafireHTML(html string) string {
	if link := extractAttrBefore(html, "downloadButton", `href="`); link != "" {
		return link
	}
	if link := extractFirstHrefPrefix(html, "https://download"); link != "" {
		return link
	}
	return ""
}

func resolveGenericHTML(html string) string {
	if link := extractFirstHrefWithKeyword(html, "download"); link != "" {
		return link
	}
	if link := extractMetaContent(html, "og:video"); link != "" {
		return link
	}
	if link := extractMetaContent(html, "og:video:url"); link != "" {
		return link
	}
	return ""
}

func extractAttrBefore(html, marker, attr string) string {
	pos := strings.Index(html, marker)
	if pos < 0 {
		return ""
	}
	slice := html[:pos]
	start := strings.LastIndex(slice, attr)
	if start < 0 {
		return ""
	}
	rest := slice[start+len(attr):]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return rest
	}
	return rest[:end]
}

func extractAttrValue(slice, attr string) string {
	start := strings.Index(slice, attr)
	if start < 0 {
		return ""
	}
	rest := slice[start+len(attr):]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return ""
	}
	return rest[:end]
}

func extractFirstHrefPrefix(html, prefix string) string {
	offset := 0
	for {
		pos := strings.Index(html[offset:], `href="`)
		if pos < 0 {
			return ""
		}
		start := offset + pos + len(`href="`)
		rest := html[start:]
		end := strings.IndexByte(rest, '"')
		if end < 0 {
			return ""
		}
		link := rest[:end]
		if strings.HasPrefix(link, prefix) {
			return link
		}
		offset = start + end + 1
	}
}

func extractFirstHrefWithKeyword(html, keyword string) string {
	offset := 0
	for {
		pos := strings.Index(html[offset:], `href="`)
		if pos < 0 {
			return ""
		}
		start := offset + pos + len(`href="`)
		rest := html[start:]
		end := strings.IndexByte(rest, '"')
		if end < 0 {
			return ""
		}
		link := rest[:end]
		if strings.HasPrefix(link, "http") && strings.Contains(link, keyword) {
			return link
		}
		offset = start + end + 1
	}
}

func extractMetaContent(html, property string) string {
	marker := `property="` + property + `"`
	pos := strings.Index(html, marker)
	if pos < 0 {
		return ""
	}
	return extractAttrValue(html[pos:], `content="`)
}

func extractTokenAfter(html, marker string) string {
	pos := strings.Index(html, marker)
	if pos < 0 {
		return ""
	}
	rest := html[pos+len(marker):]
	var token strings.Builder
	for _, ch := range rest {
		if isTokenRune(ch) {
			token.WriteRune(ch)
		} else {
			break
		}
	}
	return token.String()
}

func isTokenRune(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') || ch == '_' || ch == '-'
}

func dedup(urls []string) []string {
	out := make([]string, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

func pathSegments(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
