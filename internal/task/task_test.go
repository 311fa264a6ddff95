package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsToQueued(t *testing.T) {
	tk := New("https://example.com/file.zip", "/tmp/file.zip")
	assert.Equal(t, StatusQueued, tk.Status)
	assert.NotNil(t, tk.Headers)
	assert.Empty(t, tk.Headers)
	assert.NotNil(t, tk.Cookies)
}

func TestParseStatus(t *testing.T) {
	status, ok := ParseStatus("active")
	require.True(t, ok)
	assert.Equal(t, StatusActive, status)

	_, ok = ParseStatus("bogus")
	assert.False(t, ok)
}

func TestURLCandidates_SkipsDuplicateOfPrimary(t *testing.T) {
	tk := New("https://a.example.com/f", "/tmp/f")
	tk.Mirrors = []string{"https://a.example.com/f", "https://b.example.com/f"}

	assert.Equal(t, []string{"https://a.example.com/f", "https://b.example.com/f"}, tk.URLCandidates())
}

func TestClone_IsIndependentOfOriginal(t *testing.T) {
	tk := New("https://example.com/f", "/tmp/f")
	tk.Headers["X"] = "1"
	tk.Mirrors = []string{"https://mirror.example.com/f"}

	clone := tk.Clone()
	clone.Headers["X"] = "2"
	clone.Mirrors[0] = "changed"

	assert.Equal(t, "1", tk.Headers["X"])
	assert.Equal(t, "https://mirror.example.com/f", tk.Mirrors[0])
}

func TestParseID_RoundTrips(t *testing.T) {
	id := NewID()
	parsed, err := ParseID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}
