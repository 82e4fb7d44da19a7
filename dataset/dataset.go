// Package dataset - Test-set file enumeration and filename utilities.
package dataset

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// DefaultImageExt is the image extension assumed when none is configured.
const DefaultImageExt = ".png"

// ListImages enumerates the image files of the given extension in a
// directory. The result is sorted by filename, so repeated calls over the
// same directory yield the same order. Files with other extensions and
// subdirectories are ignored.
//
// Arguments:
//   - dir: Directory path containing image files.
//   - ext: Image extension to match, including the dot (e.g. ".png").
//
// Returns:
//   - []string: Sorted slice of image file paths.
//   - error: An error if the directory cannot be read.
func ListImages(dir string, ext string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading image directory %s", dir)
	}

	var paths []string
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		if filepath.Ext(file.Name()) != ext {
			continue
		}
		paths = append(paths, filepath.Join(dir, file.Name()))
	}

	sort.Strings(paths)

	return paths, nil
}

// BaseName returns the filename of a path without its extension.
//
// Arguments:
//   - path: A file path.
//
// Returns:
//   - string: The base filename, extension stripped.
func BaseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// LabelPath derives the expected label file path for an image: same base
// filename, the label directory, and a ".txt" extension.
//
// Arguments:
//   - labelDir: Directory holding the label files.
//   - imagePath: Path to the image file.
//
// Returns:
//   - string: The derived label file path.
func LabelPath(labelDir string, imagePath string) string {
	return filepath.Join(labelDir, BaseName(imagePath)+".txt")
}
