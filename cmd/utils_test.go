package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadURLsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	content := "http://a/1\n\n# comment\n  http://a/2  \n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	urls, err := readURLsFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a/1", "http://a/2"}, urls)
}

func TestReadURLsFromMissingFile(t *testing.T) {
	_, err := readURLsFromFile(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestEnsureExtensionSniffsKnownType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "download")
	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}
	require.NoError(t, os.WriteFile(path, png, 0o644))

	renamed := ensureExtension(path)
	assert.Equal(t, path+".png", renamed)
	assert.FileExists(t, renamed)
	assert.NoFileExists(t, path)
}

func TestEnsureExtensionKeepsExistingExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "download.dat")
	require.NoError(t, os.WriteFile(path, []byte{0x89, 0x50, 0x4E, 0x47}, 0o644))

	assert.Equal(t, path, ensureExtension(path))
	assert.FileExists(t, path)
}

func TestEnsureExtensionLeavesUnknownContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "download")
	require.NoError(t, os.WriteFile(path, []byte("plain text, nothing to sniff"), 0o644))

	assert.Equal(t, path, ensureExtension(path))
	assert.FileExists(t, path)
}
