// Package destpath resolves a task's configured destination into a concrete
// file path: picking a directory when none was given, and a filename when
// the configured path names (or defaults to) a directory.
package destpath

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/vfaronov/httpheader"
)

const defaultFilename = "download.bin"

// Resolve turns destPath into a concrete file path. When destPath is empty,
// ends in a path separator, or already names a directory, a filename is
// derived from contentDisposition (preferred), else from rawURL, else
// defaultFilename — and, when that name has no extension, from sniff (the
// first bytes of the response body, magic-byte matched).
func Resolve(destPath, rawURL, contentDisposition string, sniff []byte) string {
	trimmed := strings.TrimSpace(destPath)
	isEmpty := trimmed == ""

	treatAsDir := isEmpty ||
		strings.HasSuffix(trimmed, "/") ||
		strings.HasSuffix(trimmed, "\\") ||
		isExistingDir(trimmed)

	dir := trimmed
	if isEmpty {
		dir = defaultDownloadDir()
		treatAsDir = true
	}

	if !treatAsDir {
		return trimmed
	}

	name := filenameFromContentDisposition(contentDisposition)
	if name == "" {
		name = filenameFromURL(rawURL)
	}
	if name == "" {
		name = defaultFilename
	}
	name = sanitizeFilename(name)
	name = withSniffedExtension(name, sniff)

	return filepath.Join(dir, name)
}

func isExistingDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func defaultDownloadDir() string {
	if dir := os.Getenv("IDM_DOWNLOAD_DIR"); dir != "" {
		return dir
	}
	if isExistingDir("/storage/emulated/0/Download") {
		return "/storage/emulated/0/Download"
	}
	if isExistingDir("/sdcard/Download") {
		return "/sdcard/Download"
	}
	home := os.Getenv("HOME")
	if home == "" {
		home = "/tmp"
	}
	if downloads := filepath.Join(home, "Downloads"); isExistingDir(downloads) {
		return downloads
	}
	if downloads := filepath.Join(home, "downloads"); isExistingDir(downloads) {
		return downloads
	}
	return "/tmp"
}

// filenameFromContentDisposition prefers the RFC-5987 extended filename*=
// parameter over the plain filename= one, per the HTTP spec's own guidance;
// httpheader.ContentDisposition already implements the percent-decoding and
// charset handling filename*= requires.
func filenameFromContentDisposition(value string) string {
	if value == "" {
		return ""
	}
	header := http.Header{}
	header.Set("Content-Disposition", value)
	_, name, err := httpheader.ContentDisposition(header)
	if err != nil {
		return ""
	}
	return name
}

func filenameFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	name := parsed.Path
	if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
		name = name[idx+1:]
	}
	if name == "" {
		return ""
	}
	decoded := percentDecodeASCII(name)
	if strings.Contains(decoded, "+") {
		decoded = strings.ReplaceAll(decoded, "+", " ")
	}
	return decoded
}

// percentDecodeASCII mirrors the original engine's permissive decoder:
// unlike net/url.PathUnescape it never errors on malformed input, instead
// substituting '_' for anything that isn't printable ASCII or is a path
// separator.
func percentDecodeASCII(value string) string {
	var out strings.Builder
	bytes := []byte(value)
	i := 0
	for i < len(bytes) {
		if bytes[i] == '%' && i+2 < len(bytes) {
			hi, okHi := hexValue(bytes[i+1])
			lo, okLo := hexValue(bytes[i+2])
			if okHi && okLo {
				decoded := hi<<4 | lo
				if decoded >= 0x20 && decoded < 0x7f && decoded != '/' && decoded != '\\' {
					out.WriteByte(decoded)
				} else {
					out.WriteByte('_')
				}
				i += 3
				continue
			}
		}
		ch := bytes[i]
		if ch < 0x80 && ch != '/' && ch != '\\' {
			out.WriteByte(ch)
		} else {
			out.WriteByte('_')
		}
		i++
	}
	return out.String()
}

func hexValue(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	default:
		return 0, false
	}
}

// sanitizeFilename restricts name to ASCII alphanumerics plus ". _ - ( ) [ ]"
// and single spaces, coalescing runs of separators and trimming them from
// both ends.
func sanitizeFilename(name string) string {
	var out strings.Builder
	lastWasSep := false
	for _, r := range name {
		normalized := r
		if r == '+' {
			normalized = ' '
		}
		allowed := (normalized >= 'a' && normalized <= 'z') ||
			(normalized >= 'A' && normalized <= 'Z') ||
			(normalized >= '0' && normalized <= '9') ||
			strings.ContainsRune(".-()[] ", normalized) ||
			normalized == '_'
		mapped := normalized
		if !allowed {
			mapped = '_'
		}
		if mapped == '_' || mapped == ' ' {
			if lastWasSep {
				continue
			}
			lastWasSep = true
			out.WriteRune(mapped)
		} else {
			lastWasSep = false
			out.WriteRune(mapped)
		}
	}
	trimmed := strings.Trim(out.String(), " ._")
	if trimmed == "" {
		return defaultFilename
	}
	return trimmed
}

// withSniffedExtension appends a magic-byte-detected extension to name when
// it has none and sniff carries a recognizable signature. This enriches the
// original's fallback (which stops at a bare, extension-less name).
func withSniffedExtension(name string, sniff []byte) string {
	if filepath.Ext(name) != "" || len(sniff) == 0 {
		return name
	}
	kind, err := filetype.Match(sniff)
	if err != nil || kind == filetype.Unknown || kind.Extension == "" {
		return name
	}
	return name + "." + kind.Extension
}
