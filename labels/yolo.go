// Package labels - YOLO-format ground-truth label loading.
package labels

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect-eval/dataset"
	"github.com/nvr-ai/go-detect-eval/detection"
	"github.com/nvr-ai/go-detect-eval/images"
)

// ErrLabelFileNotFound indicates an enumerated image has no label file in
// the label directory. Evaluation cannot proceed without it.
var ErrLabelFileNotFound = errors.New("label file not found in label directory")

// Store resolves and parses ground-truth labels for images. One text file is
// expected per image, named `<image-base-name>.txt`, each line holding
// `class_id x_center y_center width height` normalized to [0, 1].
type Store struct {
	// Dir is the directory holding the label files.
	Dir string
}

// NewStore creates a label store over a label directory.
//
// Arguments:
//   - dir: Directory holding one `.txt` label file per image.
//
// Returns:
//   - *Store: The label store. The directory is trusted to exist; failures
//     surface per-file when labels are requested.
func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// ForImage loads the ground-truth rows for an image, scaled to absolute
// pixel coordinates using the image's actual dimensions.
//
// Arguments:
//   - imagePath: Path to the image whose labels are requested.
//
// Returns:
//   - []detection.GroundTruth: One row per labelled object; empty for an
//     empty label file.
//   - error: ErrLabelFileNotFound if the label file is absent, or a parse
//     error for malformed rows.
func (s *Store) ForImage(imagePath string) ([]detection.GroundTruth, error) {
	labelPath := dataset.LabelPath(s.Dir, imagePath)

	f, err := os.Open(labelPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrLabelFileNotFound, "label file for %s", dataset.BaseName(imagePath))
		}
		return nil, errors.Wrapf(err, "opening label file %s", labelPath)
	}
	defer f.Close()

	width, height, err := images.Dims(imagePath)
	if err != nil {
		return nil, err
	}

	rows, err := Parse(f, width, height)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing label file %s", labelPath)
	}
	return rows, nil
}

// Parse reads YOLO-format label rows and converts the normalized
// center/size boxes into absolute corner coordinates.
//
// Arguments:
//   - r: Reader over the label file contents.
//   - width, height: Pixel dimensions of the labelled image.
//
// Returns:
//   - []detection.GroundTruth: Parsed rows, in file order.
//   - error: A parse error naming the offending line.
func Parse(r io.Reader, width, height int) ([]detection.GroundTruth, error) {
	var rows []detection.GroundTruth

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 5 {
			return nil, errors.Errorf("line %d: expected 5 fields, got %d", lineNo, len(fields))
		}

		classID, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: class id", lineNo)
		}

		vals := make([]float64, 4)
		for i, field := range fields[1:] {
			v, err := strconv.ParseFloat(field, 32)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d: field %d", lineNo, i+1)
			}
			vals[i] = v
		}

		cx := float32(vals[0]) * float32(width)
		cy := float32(vals[1]) * float32(height)
		w := float32(vals[2]) * float32(width)
		h := float32(vals[3]) * float32(height)

		rows = append(rows, detection.GroundTruth{
			Box: images.Rect{
				X1: cx - w/2,
				Y1: cy - h/2,
				X2: cx + w/2,
				Y2: cy + h/2,
			},
			Class: classID,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading label rows")
	}

	return rows, nil
}
