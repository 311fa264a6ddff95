package checksum

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payload.bin")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestVerify_MD5Match(t *testing.T) {
	path := writeTempFile(t, "hello world")
	// md5("hello world")
	ok := Verify(path, Request{Type: MD5, ExpectedHex: "5eb63bbbe01eeed093cb22bb8f5acdc3"})
	assert.True(t, ok)
}

func TestVerify_SHA256Match(t *testing.T) {
	path := writeTempFile(t, "hello world")
	// sha256("hello world")
	ok := Verify(path, Request{
		Type:        SHA256,
		ExpectedHex: "B94D27B9934D3E08A52E52D7DA7DABFAC484EFE37A5380EE9088F7ACE2EFCDE9",
	})
	assert.True(t, ok)
}

func TestVerify_SHA256Mismatch(t *testing.T) {
	path := writeTempFile(t, "hello world")
	ok := Verify(path, Request{Type: SHA256, ExpectedHex: "0000000000000000000000000000000000000000000000000000000000000"})
	assert.False(t, ok)
}

func TestVerify_CaseInsensitive(t *testing.T) {
	path := writeTempFile(t, "hello world")
	ok := Verify(path, Request{Type: MD5, ExpectedHex: "5EB63BBBE01EEED093CB22BB8F5ACDC3"})
	assert.True(t, ok)
}

func TestVerify_MissingFileReturnsFalse(t *testing.T) {
	ok := Verify(filepath.Join(t.TempDir(), "does-not-exist"), Request{Type: MD5, ExpectedHex: "anything"})
	assert.False(t, ok)
}

func TestVerify_UnknownTypeReturnsFalse(t *testing.T) {
	path := writeTempFile(t, "hello world")
	ok := Verify(path, Request{Type: "bogus", ExpectedHex: "anything"})
	assert.False(t, ok)
}

func TestParseType(t *testing.T) {
	typ, ok := ParseType("sha1")
	require.True(t, ok)
	assert.Equal(t, SHA1, typ)

	_, ok = ParseType("bogus")
	assert.False(t, ok)
}
