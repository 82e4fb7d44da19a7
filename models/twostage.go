package models

import (
	"context"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect-eval/detection"
	"github.com/nvr-ai/go-detect-eval/images"
	"github.com/nvr-ai/go-detect-eval/labels"
)

// TwoStageNormalizer handles RCNN-style detectors. The model emits parallel
// labels/boxes/scores arrays with a reserved background label, so
// normalization bridges that representation into the common 6-column schema:
// background rows are dropped, surviving labels are shifted down by one to
// zero-based class ids, and the relative detection order is preserved.
type TwoStageNormalizer struct {
	model  TwoStageModel
	labels *labels.Store
	device string
}

// InferForImage decodes and preprocesses the image, runs the model, and
// normalizes its output.
//
// Preprocessing is fixed: float32 cast with [0, 1] scaling, alpha channel
// stripped (first 3 channels kept), tensor handed to the configured device.
//
// Arguments:
//   - ctx: Context for the inference call.
//   - imagePath: Path to the image to evaluate.
//
// Returns:
//   - []detection.GroundTruth: The label rows for the image.
//   - []detection.Detection: Normalized detections, background excluded.
//   - error: A decode, label-loading, or inference error.
func (n *TwoStageNormalizer) InferForImage(
	ctx context.Context,
	imagePath string,
) ([]detection.GroundTruth, []detection.Detection, error) {
	input, err := images.DecodeTensor(imagePath)
	if err != nil {
		return nil, nil, err
	}

	output, err := n.model.Forward(ctx, input, n.device)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "two-stage inference on %s", imagePath)
	}

	predictions, err := NormalizeTwoStage(output)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "normalizing two-stage output for %s", imagePath)
	}

	groundTruths, err := n.labels.ForImage(imagePath)
	if err != nil {
		return nil, nil, err
	}

	return groundTruths, predictions, nil
}

// NormalizeTwoStage converts a raw two-stage detection structure into the
// common prediction schema. Every row whose label equals BackgroundLabel is
// filtered out; all other rows survive with their label remapped to
// `label - 1`, in the model's output order.
//
// Arguments:
//   - output: The raw labels/boxes/scores arrays.
//
// Returns:
//   - []detection.Detection: The normalized rows.
//   - error: An error if the parallel arrays disagree in length.
func NormalizeTwoStage(output *TwoStageOutput) ([]detection.Detection, error) {
	n := len(output.Labels)
	if len(output.Scores) != n || len(output.Boxes) != n*4 {
		return nil, errors.Errorf(
			"mismatched output arrays: %d labels, %d scores, %d box values",
			n, len(output.Scores), len(output.Boxes))
	}

	results := make([]detection.Detection, 0, n)
	for i := 0; i < n; i++ {
		if output.Labels[i] == BackgroundLabel {
			continue
		}
		results = append(results, detection.Detection{
			Box: images.Rect{
				X1: output.Boxes[i*4+0],
				Y1: output.Boxes[i*4+1],
				X2: output.Boxes[i*4+2],
				Y2: output.Boxes[i*4+3],
			},
			Score: output.Scores[i],
			Class: int(output.Labels[i]) - 1,
		})
	}

	return results, nil
}
