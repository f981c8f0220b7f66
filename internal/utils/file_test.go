package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func TestGenerateOutputFilename(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "photo_cropped.jpg"),
		GenerateOutputFilename("in/photo.jpg", "out", "", "_cropped", ""))
	assert.Equal(t, filepath.Join("in", "x_photo.webp"),
		GenerateOutputFilename("in/photo.jpg", "", "x_", "", "webp"))
	assert.Equal(t, filepath.Join("in", "raw.png"),
		GenerateOutputFilename("in/raw", "", "", "", ""))
}

func TestIsImageFile(t *testing.T) {
	assert.True(t, IsImageFile("a.JPG"))
	assert.True(t, IsImageFile("dir/b.webp"))
	assert.False(t, IsImageFile("notes.txt"))
	assert.False(t, IsImageFile("noext"))
}

func TestExpandInputs(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.jpg"))
	touch(t, filepath.Join(dir, "b.png"))
	touch(t, filepath.Join(dir, "c.txt"))
	touch(t, filepath.Join(dir, "sub", "d.webp"))

	files, err := ExpandInputs(filepath.Join(dir, "*"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.jpg"), filepath.Join(dir, "b.png")}, files)

	files, err = ExpandInputs(dir)
	require.NoError(t, err)
	assert.Len(t, files, 3)

	files, err = ExpandInputs(filepath.Join(dir, "a.jpg"))
	require.NoError(t, err)
	assert.Len(t, files, 1)

	_, err = ExpandInputs(filepath.Join(dir, "missing.jpg"))
	assert.Error(t, err)
}

func TestUniquePath(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.png")
	assert.Equal(t, p, UniquePath(p))

	touch(t, p)
	touch(t, filepath.Join(dir, "a-1.png"))
	assert.Equal(t, filepath.Join(dir, "a-2.png"), UniquePath(p))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "a_b_c.png", SanitizeFilename("a/b:c.png"))
	assert.Equal(t, "x", SanitizeFilename(" .x. "))
}

func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatFileSize(512))
	assert.Equal(t, "1.5 KB", FormatFileSize(1536))
	assert.Equal(t, "2.0 MB", FormatFileSize(2*1024*1024))
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "x", "y")
	require.NoError(t, EnsureDir(dir))
	assert.True(t, DirExists(dir))
	assert.NoError(t, EnsureDir(""))
}
