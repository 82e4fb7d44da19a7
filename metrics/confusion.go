package metrics

import (
	"sort"

	"github.com/nvr-ai/go-detect-eval/detection"
	"github.com/nvr-ai/go-detect-eval/images"
)

// ConfusionMatrixOptions are the options for the confusion matrix query.
type ConfusionMatrixOptions struct {
	// ConfidenceThreshold is the minimum prediction score to count a
	// detection. Zero means DefaultConfidenceThreshold.
	ConfidenceThreshold float32 `json:"confidenceThreshold" yaml:"confidenceThreshold"`
	// AllIoU computes one matrix per IoU threshold instead of only 0.50.
	AllIoU bool `json:"allIoU" yaml:"allIoU"`
	// Plot writes a heatmap of each matrix to the save directory.
	Plot bool `json:"plot" yaml:"plot"`
}

// ConfusionMatrix holds per-class match counts at one IoU threshold. The
// matrix is (numClasses+1)² with the extra index reserved for background:
// row background counts missed ground truths, column background counts
// spurious predictions.
type ConfusionMatrix struct {
	// IoUThreshold is the overlap threshold matches were computed at.
	IoUThreshold float32 `json:"iouThreshold" yaml:"iouThreshold"`
	// ConfidenceThreshold is the score cutoff predictions were filtered at.
	ConfidenceThreshold float32 `json:"confidenceThreshold" yaml:"confidenceThreshold"`
	// Counts is indexed `[predictedClass][actualClass]`.
	Counts [][]int `json:"counts" yaml:"counts"`
}

// Background returns the matrix index reserved for the background class.
func (m *ConfusionMatrix) Background() int {
	return len(m.Counts) - 1
}

// ConfusionMatrix computes the confusion matrix over the accumulated state.
//
// Predictions below the confidence threshold are ignored. Remaining
// predictions are matched per image, highest score first, each claiming the
// unmatched ground truth with the highest IoU at or above the threshold
// regardless of class. Matched pairs count at
// `[predictedClass][actualClass]`; leftovers fall into the background row
// and column.
//
// Arguments:
//   - opts: Query options. With AllIoU unset a single matrix at IoU 0.50 is
//     returned; otherwise one matrix per evaluation threshold.
//
// Returns:
//   - []*ConfusionMatrix: The computed matrices, ascending by threshold.
//   - error: An error writing plot artifacts, if requested.
func (e *Engine) ConfusionMatrix(opts ConfusionMatrixOptions) ([]*ConfusionMatrix, error) {
	if opts.ConfidenceThreshold == 0 {
		opts.ConfidenceThreshold = DefaultConfidenceThreshold
	}

	thresholds := []float32{0.50}
	if opts.AllIoU {
		thresholds = IoUThresholds()
	}

	matrices := make([]*ConfusionMatrix, 0, len(thresholds))
	for _, threshold := range thresholds {
		matrices = append(matrices, e.confusionAt(threshold, opts.ConfidenceThreshold))
	}

	if opts.Plot {
		for _, m := range matrices {
			if err := e.plotConfusionMatrix(m); err != nil {
				return nil, err
			}
		}
	}

	return matrices, nil
}

// confusionAt tallies one confusion matrix at a single IoU threshold.
func (e *Engine) confusionAt(iouThreshold, confThreshold float32) *ConfusionMatrix {
	background := e.numClasses
	counts := make([][]int, e.numClasses+1)
	for i := range counts {
		counts[i] = make([]int, e.numClasses+1)
	}

	for image, dets := range e.detections {
		preds := make([]detection.Detection, 0, len(dets))
		for _, det := range dets {
			if det.Score >= confThreshold {
				preds = append(preds, det)
			}
		}
		sort.SliceStable(preds, func(i, j int) bool { return preds[i].Score > preds[j].Score })

		gts := e.groundTruths[image]
		claimed := make([]bool, len(gts))

		for _, pred := range preds {
			best := -1
			bestIoU := float32(0)
			for g, gt := range gts {
				if claimed[g] {
					continue
				}
				iou := images.CalculateIoU(pred.Box, gt.Box)
				if iou >= iouThreshold && iou > bestIoU {
					best = g
					bestIoU = iou
				}
			}
			if best >= 0 {
				claimed[best] = true
				counts[clampClass(pred.Class, background)][clampClass(gts[best].Class, background)]++
			} else {
				counts[clampClass(pred.Class, background)][background]++
			}
		}

		for g, gt := range gts {
			if !claimed[g] {
				counts[background][clampClass(gt.Class, background)]++
			}
		}
	}

	return &ConfusionMatrix{
		IoUThreshold:        iouThreshold,
		ConfidenceThreshold: confThreshold,
		Counts:              counts,
	}
}

// clampClass folds out-of-dictionary class ids into the background bucket so
// a stray id cannot index outside the matrix.
func clampClass(class, background int) int {
	if class < 0 || class >= background {
		return background
	}
	return class
}
