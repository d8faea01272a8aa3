package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"report.pdf":            "report.pdf",
		"my  quarterly\treport": "my_quarterly_report",
		"../../etc/passwd":      "passwd",
		`C:\Users\ana\scan.png`: "scan.png",
		"   ":                   "file",
		"":                      "file",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFilename(in), in)
	}
}

func TestLocalFileStorage_SaveAndDelete(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewLocalFileStorage(dir)
	require.NoError(t, err)

	stored, err := fs.Save("screen shot.png", strings.NewReader("pngbytes"))
	require.NoError(t, err)

	assert.Equal(t, int64(8), stored.Size)
	assert.True(t, strings.HasSuffix(stored.Name, "-screen_shot.png"))
	assert.Equal(t, PublicPrefix+stored.Name, stored.Path)

	content, err := os.ReadFile(filepath.Join(dir, stored.Name))
	require.NoError(t, err)
	assert.Equal(t, "pngbytes", string(content))

	require.NoError(t, fs.Delete(stored.Name))
	_, err = os.Stat(filepath.Join(dir, stored.Name))
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, fs.Delete(stored.Name))
}

func TestLocalFileStorage_SameNameNeverCollides(t *testing.T) {
	fs, err := NewLocalFileStorage(t.TempDir())
	require.NoError(t, err)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		stored, err := fs.Save("log.txt", strings.NewReader("x"))
		require.NoError(t, err)
		assert.False(t, seen[stored.Name])
		seen[stored.Name] = true
	}
}
