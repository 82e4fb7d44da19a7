// Package detection - Common row schemas for predictions and ground truths.
package detection

import "github.com/nvr-ai/go-detect-eval/images"

// Detection is one normalized prediction row. All model families are
// converted into this schema before accumulation: `[x1, y1, x2, y2, score,
// class]` with a zero-based class id and no background entries.
type Detection struct {
	// The bounding box of the detection in absolute pixel coordinates.
	Box images.Rect
	// The confidence score of the detection.
	Score float32
	// The zero-based predicted class index.
	Class int
}

// GroundTruth is one label row for an image: `[x1, y1, x2, y2, class]` in
// absolute pixel coordinates.
type GroundTruth struct {
	// The bounding box of the labelled object in absolute pixel coordinates.
	Box images.Rect
	// The zero-based class index.
	Class int
}

// DetectionFromRow parses one 6-column row of the common prediction schema.
//
// Arguments:
//   - row: A slice holding at least 6 values: x1, y1, x2, y2, score, class.
//
// Returns:
//   - Detection: The parsed detection.
func DetectionFromRow(row []float32) Detection {
	return Detection{
		Box: images.Rect{
			X1: row[0],
			Y1: row[1],
			X2: row[2],
			Y2: row[3],
		},
		Score: row[4],
		Class: int(row[5]),
	}
}

// DetectionsFromRows parses a flattened (N, 6) prediction tensor into
// detections, preserving row order.
//
// Arguments:
//   - output: The flattened tensor. Length must be a multiple of 6.
//
// Returns:
//   - []Detection: One detection per row, or nil for malformed input.
func DetectionsFromRows(output []float32) []Detection {
	const rowSize = 6
	if len(output)%rowSize != 0 {
		return nil
	}

	numRows := len(output) / rowSize
	results := make([]Detection, 0, numRows)
	for i := 0; i < numRows; i++ {
		results = append(results, DetectionFromRow(output[i*rowSize:(i+1)*rowSize]))
	}
	return results
}

// Row flattens the detection back into the 6-column schema.
func (d Detection) Row() []float32 {
	return []float32{d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2, d.Score, float32(d.Class)}
}

// Row flattens the ground truth into the 5-column schema.
func (g GroundTruth) Row() []float32 {
	return []float32{g.Box.X1, g.Box.Y1, g.Box.X2, g.Box.Y2, float32(g.Class)}
}
