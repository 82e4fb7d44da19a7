package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

// TestListImagesDeterministicOrder validates that enumeration is sorted by
// filename and stable across calls, with non-matching extensions ignored.
func TestListImagesDeterministicOrder(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "frame-2.png"))
	touch(t, filepath.Join(dir, "frame-1.png"))
	touch(t, filepath.Join(dir, "frame-3.png"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, "frame-4.jpg"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0o755))

	first, err := ListImages(dir, ".png")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "frame-1.png"),
		filepath.Join(dir, "frame-2.png"),
		filepath.Join(dir, "frame-3.png"),
	}, first)

	second, err := ListImages(dir, ".png")
	require.NoError(t, err)
	assert.Equal(t, first, second, "repeated enumeration must yield the same order")
}

// TestListImagesConfigurableExtension validates that the extension filter is
// a parameter, not a hardcoded format.
func TestListImagesConfigurableExtension(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.jpg"))
	touch(t, filepath.Join(dir, "b.png"))

	jpgs, err := ListImages(dir, ".jpg")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.jpg")}, jpgs)
}

// TestListImagesEmptyDirectory validates that an empty directory yields an
// empty enumeration, not an error.
func TestListImagesEmptyDirectory(t *testing.T) {
	paths, err := ListImages(t.TempDir(), ".png")
	require.NoError(t, err)
	assert.Empty(t, paths)
}

// TestListImagesMissingDirectory validates the error path.
func TestListImagesMissingDirectory(t *testing.T) {
	_, err := ListImages(filepath.Join(t.TempDir(), "missing"), ".png")
	require.Error(t, err)
}

// TestBaseName validates extension stripping.
func TestBaseName(t *testing.T) {
	assert.Equal(t, "frame-1", BaseName("/data/images/frame-1.png"))
	assert.Equal(t, "frame-1", BaseName("frame-1.png"))
	assert.Equal(t, "archive.tar", BaseName("archive.tar.gz"))
}

// TestLabelPath validates the image-to-label path derivation.
func TestLabelPath(t *testing.T) {
	got := LabelPath("/data/labels", "/data/images/frame-1.png")
	assert.Equal(t, filepath.Join("/data/labels", "frame-1.txt"), got)
}
