package models

import (
	"context"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect-eval/detection"
	"github.com/nvr-ai/go-detect-eval/labels"
)

// SingleStageNormalizer handles YOLO-style detectors. The model's native
// output already carries the common 6-column schema, so normalization is a
// straight pass-through: no column remap, no row reorder.
type SingleStageNormalizer struct {
	model  SingleStageModel
	labels *labels.Store
	device string
}

// InferForImage loads the ground truth for an image and runs the model with
// the confidence threshold fixed at 0, so every candidate detection is
// returned unfiltered.
//
// Arguments:
//   - ctx: Context for the inference call.
//   - imagePath: Path to the image to evaluate.
//
// Returns:
//   - []detection.GroundTruth: The label rows for the image.
//   - []detection.Detection: The model's detections in output order.
//   - error: A label-loading or inference error.
func (n *SingleStageNormalizer) InferForImage(
	ctx context.Context,
	imagePath string,
) ([]detection.GroundTruth, []detection.Detection, error) {
	groundTruths, err := n.labels.ForImage(imagePath)
	if err != nil {
		return nil, nil, err
	}

	output, err := n.model.Predict(ctx, imagePath, PredictOptions{
		ConfidenceThreshold: 0,
		Device:              n.device,
	})
	if err != nil {
		return nil, nil, errors.Wrapf(err, "single-stage inference on %s", imagePath)
	}
	if len(output)%6 != 0 {
		return nil, nil, errors.Errorf(
			"single-stage output for %s has %d values, not a multiple of 6", imagePath, len(output))
	}

	return groundTruths, detection.DetectionsFromRows(output), nil
}
