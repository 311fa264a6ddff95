package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muhammad1505/idm-open/internal/netclient"
)

func TestDetectProvider(t *testing.T) {
	cases := map[string]Provider{
		"https://pixeldrain.com/d/abc123":                   ProviderPixeldrain,
		"https://www.pixeldrain.com/d/abc123":                ProviderPixeldrain,
		"https://drive.google.com/file/d/abc123/view":        ProviderGoogleDrive,
		"https://docs.google.com/uc?id=abc123":               ProviderGoogleDrive,
		"https://www.mediafire.com/file/abc123/x.zip/file":    ProviderMediafire,
		"https://mega.nz/file/abc123":                         ProviderMega,
		"https://example.com/file.zip":                        ProviderUnknown,
		"not a url at all \x7f":                                ProviderUnknown,
	}
	for url, want := range cases {
		assert.Equal(t, want, DetectProvider(url), "url=%s", url)
	}
}

func TestIsHTMLContentType(t *testing.T) {
	assert.True(t, IsHTMLContentType("text/html; charset=utf-8"))
	assert.True(t, IsHTMLContentType("application/xhtml+xml"))
	assert.False(t, IsHTMLContentType("application/zip"))
	assert.False(t, IsHTMLContentType(""))
}

func TestResolveURLCandidates_Pixeldrain(t *testing.T) {
	got := ResolveURLCandidates([]string{"https://pixeldrain.com/d/abc123"})
	require.Contains(t, got, "https://pixeldrain.com/api/filesystem/abc123")
	require.Contains(t, got, "https://pixeldrain.com/d/abc123")
}

func TestResolveURLCandidates_GoogleDrive(t *testing.T) {
	got := ResolveURLCandidates([]string{"https://drive.google.com/file/d/abc123/view"})
	require.Contains(t, got, "https://drive.google.com/uc?export=download&id=abc123")
}

func TestResolveURLCandidates_DedupsAndPreservesOrder(t *testing.T) {
	got := ResolveURLCandidates([]string{"https://example.com/a.zip", "https://example.com/a.zip"})
	assert.Equal(t, []string{"https://example.com/a.zip"}, got)
}

func TestResolveHTMLDownload_Mediafire(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<a id="downloadButton" href="https://download123.mediafire.com/x/file.zip">Download</a>`))
	}))
	defer server.Close()

	client := netclient.New()
	links, err := ResolveHTMLDownload(context.Background(), client, netclient.Request{URL: server.URL + "/file/abc/x.zip/file"})
	require.NoError(t, err)
	require.NotEmpty(t, links)
	assert.Contains(t, links[0], "download123.mediafire.com")
}

func TestResolveHTMLDownload_NonHTMLReturnsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write([]byte("binary"))
	}))
	defer server.Close()

	client := netclient.New()
	links, err := ResolveHTMLDownload(context.Background(), client, netclient.Request{URL: server.URL})
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestResolveGenericHTML_FindsDownloadLink(t *testing.T) {
	html := `<html><body><a href="https://cdn.example.com/download/file.zip">get it</a></body></html>`
	assert.Equal(t, "https://cdn.example.com/download/file.zip", resolveGenericHTML(html))
}

func TestResolveGoogleDriveDirectFromHTML(t *testing.T) {
	html := `<a href="/uc?export=download&amp;id=abc123&amp;confirm=t">download</a>`
	got := resolveGoogleDriveDirectFromHTML(html)
	assert.Contains(t, got, "/uc?export=download")
}

func TestExtractTokenAfter(t *testing.T) {
	assert.Equal(t, "t7x9", extractTokenAfter("...confirm=t7x9&id=abc", "confirm="))
	assert.Equal(t, "", extractTokenAfter("no marker here", "confirm="))
}

func TestPathSegments(t *testing.T) {
	assert.Equal(t, []string{"d", "abc123"}, pathSegments("/d/abc123"))
	assert.Nil(t, pathSegments("/"))
	assert.Nil(t, pathSegments(""))
}
