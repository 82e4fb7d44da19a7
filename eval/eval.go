// Package eval - Model-agnostic evaluation harness: runs a detector over a
// labelled test set once and answers metric queries over the frozen result.
package eval

import (
	"context"
	"log"
	"time"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"

	"github.com/nvr-ai/go-detect-eval/dataset"
	"github.com/nvr-ai/go-detect-eval/detection"
	"github.com/nvr-ai/go-detect-eval/labels"
	"github.com/nvr-ai/go-detect-eval/metrics"
	"github.com/nvr-ai/go-detect-eval/models"
)

// Config describes one evaluation run.
type Config struct {
	// Family selects the normalizer variant for the injected model handle.
	Family models.Family `json:"family" yaml:"family"`
	// SingleStage is the model handle for models.FamilySingleStage. Borrowed,
	// not owned; it must already be trained/loaded.
	SingleStage models.SingleStageModel `json:"-" yaml:"-"`
	// TwoStage is the model handle for models.FamilyTwoStage.
	TwoStage models.TwoStageModel `json:"-" yaml:"-"`
	// ImageDir is the directory holding the test-set images.
	ImageDir string `json:"imageDir" yaml:"imageDir"`
	// LabelDir is the directory holding the test-set labels.
	LabelDir string `json:"labelDir" yaml:"labelDir"`
	// Device identifies the compute device to run inference on. The device is
	// treated as exclusively owned for the duration of the run.
	Device string `json:"device" yaml:"device"`
	// Classes maps zero-based class ids to display names.
	Classes map[int]string `json:"classes" yaml:"classes"`
	// SaveDir is the destination for plot artifacts from metric queries.
	SaveDir string `json:"saveDir" yaml:"saveDir"`
	// ImageExt is the test-image extension, including the dot. Empty means
	// dataset.DefaultImageExt.
	ImageExt string `json:"imageExt" yaml:"imageExt"`
	// Progress enables a progress bar during the population pass.
	Progress bool `json:"progress" yaml:"progress"`
}

// Result is the frozen outcome of one population pass: two parallel
// sequences where predictions[i] and groundTruths[i] belong to the i-th
// enumerated test image. It is immutable; queries are pure reads whose only
// side effects are optional plot artifacts.
type Result struct {
	predictions  [][]detection.Detection
	groundTruths [][]detection.GroundTruth
	engine       *metrics.Engine
	timing       Timing
}

// Evaluate runs the population pass: it enumerates the test images in a
// deterministic order, asks the normalizer for the ground truth and the
// normalized prediction of each image, and freezes the accumulated state
// into a Result. The pass is strictly sequential, runs exactly once, and a
// missing label file aborts it with no partial result.
//
// Arguments:
//   - ctx: Context for the inference calls.
//   - cfg: The evaluation configuration.
//
// Returns:
//   - *Result: The frozen evaluation result.
//   - error: An enumeration, label-loading, or inference error.
func Evaluate(ctx context.Context, cfg Config) (*Result, error) {
	ext := cfg.ImageExt
	if ext == "" {
		ext = dataset.DefaultImageExt
	}

	normalizer, err := models.NewNormalizer(models.NewNormalizerArgs{
		Family:      cfg.Family,
		SingleStage: cfg.SingleStage,
		TwoStage:    cfg.TwoStage,
		Labels:      labels.NewStore(cfg.LabelDir),
		Device:      cfg.Device,
	})
	if err != nil {
		return nil, err
	}

	imagePaths, err := dataset.ListImages(cfg.ImageDir, ext)
	if err != nil {
		return nil, err
	}

	log.Printf("Running inference on test set (%d images)...", len(imagePaths))
	var bar *progressbar.ProgressBar
	if cfg.Progress {
		bar = progressbar.Default(int64(len(imagePaths)))
	}

	recorder := newTimingRecorder()
	predictions := make([][]detection.Detection, 0, len(imagePaths))
	groundTruths := make([][]detection.GroundTruth, 0, len(imagePaths))
	for _, imagePath := range imagePaths {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "evaluation cancelled")
		}

		imageStart := time.Now()
		gt, preds, err := normalizer.InferForImage(ctx, imagePath)
		if err != nil {
			return nil, err
		}
		recorder.record(time.Since(imageStart))

		predictions = append(predictions, preds)
		groundTruths = append(groundTruths, gt)

		if bar != nil {
			_ = bar.Add(1)
		}
	}

	engine := metrics.NewEngine(metrics.NewEngineArgs{
		SaveDir:      cfg.SaveDir,
		Classes:      cfg.Classes,
		Detections:   predictions,
		GroundTruths: groundTruths,
		Device:       cfg.Device,
	})

	return &Result{
		predictions:  predictions,
		groundTruths: groundTruths,
		engine:       engine,
		timing:       recorder.finish(),
	}, nil
}

// Timing returns performance data for the population pass.
func (r *Result) Timing() Timing {
	return r.timing
}

// Len returns the number of evaluated images.
func (r *Result) Len() int {
	return len(r.predictions)
}

// Predictions returns the accumulated prediction rows, one slice per image.
// The returned view is read-only.
func (r *Result) Predictions() [][]detection.Detection {
	return r.predictions
}

// GroundTruths returns the accumulated label rows, parallel to Predictions.
// The returned view is read-only.
func (r *Result) GroundTruths() [][]detection.GroundTruth {
	return r.groundTruths
}

// empty reports whether both accumulated sequences are empty, which happens
// only when the test-image directory yielded no images.
func (r *Result) empty() bool {
	return len(r.predictions) == 0 && len(r.groundTruths) == 0
}

// ConfusionMatrix computes confusion matrices over the frozen state.
//
// Arguments:
//   - opts: Query options; a zero ConfidenceThreshold means the documented
//     default of 0.25.
//
// Returns:
//   - []*metrics.ConfusionMatrix: One matrix at IoU 0.50, or one per
//     threshold when AllIoU is set.
//   - error: ErrNoData when no images were evaluated.
func (r *Result) ConfusionMatrix(opts metrics.ConfusionMatrixOptions) ([]*metrics.ConfusionMatrix, error) {
	if r.empty() {
		return nil, ErrNoData
	}
	return r.engine.ConfusionMatrix(opts)
}

// APPerClass computes average precision indexed `[iouThreshold][class]`.
//
// Arguments:
//   - opts: Plotting options.
//
// Returns:
//   - [][]float64: AP per IoU threshold and class.
//   - error: ErrNoData when no images were evaluated.
func (r *Result) APPerClass(opts metrics.APOptions) ([][]float64, error) {
	if r.empty() {
		return nil, ErrNoData
	}
	return r.engine.APPerClass(opts)
}

// MAP50 returns the mean average precision at IoU threshold 0.50.
//
// Returns:
//   - float64: The mAP@50 scalar.
//   - error: ErrNoData when no images were evaluated.
func (r *Result) MAP50() (float64, error) {
	if r.empty() {
		return 0, ErrNoData
	}
	return r.engine.MAP50(), nil
}

// MAP5095 returns the mean average precision averaged over the IoU
// thresholds 0.50-0.95.
//
// Returns:
//   - float64: The mAP@50-95 scalar.
//   - error: ErrNoData when no images were evaluated.
func (r *Result) MAP5095() (float64, error) {
	if r.empty() {
		return 0, ErrNoData
	}
	return r.engine.MAP5095(), nil
}
