package models

import (
	"context"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect-eval/detection"
	"github.com/nvr-ai/go-detect-eval/labels"
)

// Normalizer pairs ground-truth labels with model predictions for one image,
// converting the family-specific raw output into the common prediction
// schema. Implementations are stateless: each invocation is independent and
// idempotent given a deterministic model.
type Normalizer interface {
	// InferForImage returns the ground-truth rows and the normalized
	// prediction rows for the image at the given path. An empty prediction
	// set is valid output, not an error.
	InferForImage(ctx context.Context, imagePath string) ([]detection.GroundTruth, []detection.Detection, error)
}

// NewNormalizerArgs are the arguments for constructing a normalizer.
type NewNormalizerArgs struct {
	// Family selects which normalizer variant to build.
	Family Family `json:"family" yaml:"family"`
	// SingleStage is the model handle for FamilySingleStage.
	SingleStage SingleStageModel `json:"-" yaml:"-"`
	// TwoStage is the model handle for FamilyTwoStage.
	TwoStage TwoStageModel `json:"-" yaml:"-"`
	// Labels resolves ground-truth rows for images.
	Labels *labels.Store `json:"-" yaml:"-"`
	// Device identifies the compute device to run inference on.
	Device string `json:"device" yaml:"device"`
}

// NewNormalizer creates the normalizer variant for a detector family.
//
// Arguments:
//   - args: The normalizer arguments. The model handle matching the family
//     and the label store must be set.
//
// Returns:
//   - Normalizer: The constructed normalizer.
//   - error: An error for an unsupported family or a missing handle.
func NewNormalizer(args NewNormalizerArgs) (Normalizer, error) {
	if args.Labels == nil {
		return nil, errors.New("NewNormalizer requires a label store")
	}

	switch args.Family {
	case FamilySingleStage:
		if args.SingleStage == nil {
			return nil, errors.New("NewNormalizer requires a single-stage model handle")
		}
		return &SingleStageNormalizer{
			model:  args.SingleStage,
			labels: args.Labels,
			device: args.Device,
		}, nil
	case FamilyTwoStage:
		if args.TwoStage == nil {
			return nil, errors.New("NewNormalizer requires a two-stage model handle")
		}
		return &TwoStageNormalizer{
			model:  args.TwoStage,
			labels: args.Labels,
			device: args.Device,
		}, nil
	default:
		return nil, errors.Errorf("unsupported model family: %s", args.Family)
	}
}
