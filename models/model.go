// Package models - Model-handle contracts and prediction normalization for
// the supported detector families.
package models

import (
	"context"

	"gorgonia.org/tensor"
)

// Family identifies a detector family by the structure of its raw output.
type Family string

const (
	// FamilySingleStage is a YOLO-style detector whose output is a fused
	// (N, 6) tensor already in the common `[x1,y1,x2,y2,score,class]` schema.
	FamilySingleStage Family = "single-stage"
	// FamilyTwoStage is an RCNN-style detector emitting parallel
	// labels/boxes/scores arrays with a reserved background label.
	FamilyTwoStage Family = "two-stage"
)

// BackgroundLabel is the reserved "no object" label two-stage detectors
// emit. Rows carrying it are dropped during normalization and surviving
// labels are shifted down by one.
const BackgroundLabel = 0

// PredictOptions are per-call options for single-stage model handles.
type PredictOptions struct {
	// ConfidenceThreshold is the minimum score for returned detections.
	// Evaluation passes 0 so every candidate detection is returned.
	ConfidenceThreshold float32 `json:"confidenceThreshold" yaml:"confidenceThreshold"`
	// Device identifies the compute device to run inference on.
	Device string `json:"device" yaml:"device"`
}

// SingleStageModel is the handle contract for YOLO-style detectors. The
// returned slice is the flattened (N, 6) detection tensor of the first (and
// only) result, row order as produced by the model.
type SingleStageModel interface {
	Predict(ctx context.Context, imagePath string, opts PredictOptions) ([]float32, error)
}

// TwoStageOutput is the raw detection structure an RCNN-style detector
// produces for one image: three parallel arrays indexed by detection.
type TwoStageOutput struct {
	// Labels holds one class label per detection; BackgroundLabel is reserved.
	Labels []int64
	// Boxes holds 4 values per detection: x1, y1, x2, y2.
	Boxes []float32
	// Scores holds one confidence score per detection.
	Scores []float32
}

// TwoStageModel is the handle contract for RCNN-style detectors. Input is a
// preprocessed (3, H, W) float32 tensor scaled to [0, 1]; the model runs in
// evaluation mode without gradient tracking.
type TwoStageModel interface {
	Forward(ctx context.Context, input *tensor.Dense, device string) (*TwoStageOutput, error)
}
