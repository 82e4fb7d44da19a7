package metrics

import (
	"sort"

	"github.com/chewxy/math32"

	"github.com/nvr-ai/go-detect-eval/detection"
	"github.com/nvr-ai/go-detect-eval/images"
)

// APOptions are the options for the per-class average precision query.
type APOptions struct {
	// Plot writes a precision-recall curve at IoU 0.50 to the save directory.
	Plot bool `json:"plot" yaml:"plot"`
	// PlotAll writes a curve per IoU threshold instead of just 0.50.
	PlotAll bool `json:"plotAll" yaml:"plotAll"`
	// Prefix is prepended to plot artifact filenames.
	Prefix string `json:"prefix" yaml:"prefix"`
}

// pooledPrediction is one prediction tagged with the index of the image it
// belongs to, so cross-image pooling keeps per-image matching intact.
type pooledPrediction struct {
	image int
	det   detection.Detection
}

// APPerClass computes average precision per IoU threshold and class.
//
// All predictions of a class are pooled across images and sorted by
// descending confidence. Each prediction greedily claims the unmatched
// same-class ground truth of its image with the highest IoU, provided that
// IoU meets the threshold. The precision-recall curve is integrated with
// 101-point interpolation.
//
// Arguments:
//   - opts: Plotting options.
//
// Returns:
//   - [][]float64: AP indexed `[iouThreshold][class]`, thresholds as
//     returned by IoUThresholds. Classes with no ground truth score 0.
//   - error: An error writing plot artifacts, if requested.
func (e *Engine) APPerClass(opts APOptions) ([][]float64, error) {
	thresholds := IoUThresholds()
	gtCounts := e.groundTruthCounts()

	ap := make([][]float64, len(thresholds))
	for t := range ap {
		ap[t] = make([]float64, e.numClasses)
	}

	curves := make([][]prCurve, len(thresholds))
	for class := 0; class < e.numClasses; class++ {
		preds := e.pooledClassPredictions(class)
		for t, threshold := range thresholds {
			precision, recall := e.precisionRecall(class, preds, threshold, gtCounts[class])
			ap[t][class] = interpolatedAP(precision, recall)
			curves[t] = append(curves[t], prCurve{
				class:     class,
				name:      e.classes[class],
				precision: precision,
				recall:    recall,
			})
		}
	}

	if opts.Plot || opts.PlotAll {
		plotThresholds := thresholds[:1]
		if opts.PlotAll {
			plotThresholds = thresholds
		}
		for t, threshold := range plotThresholds {
			if err := e.plotPRCurves(curves[t], threshold, opts.Prefix); err != nil {
				return nil, err
			}
		}
	}

	return ap, nil
}

// MAP50 returns the mean average precision at IoU threshold 0.50, averaged
// over the classes that have ground truth.
func (e *Engine) MAP50() float64 {
	ap, _ := e.APPerClass(APOptions{})
	return e.meanOverPopulated(ap[:1])
}

// MAP5095 returns the mean average precision averaged over the IoU
// thresholds 0.50-0.95 and over the classes that have ground truth.
func (e *Engine) MAP5095() float64 {
	ap, _ := e.APPerClass(APOptions{})
	return e.meanOverPopulated(ap)
}

// meanOverPopulated averages AP cells over the given thresholds, skipping
// classes with no ground truth so absent classes do not drag the mean down.
func (e *Engine) meanOverPopulated(ap [][]float64) float64 {
	gtCounts := e.groundTruthCounts()

	sum := 0.0
	cells := 0
	for _, row := range ap {
		for class, value := range row {
			if gtCounts[class] == 0 {
				continue
			}
			sum += value
			cells++
		}
	}
	if cells == 0 {
		return 0
	}
	return sum / float64(cells)
}

// pooledClassPredictions collects the predictions of one class across all
// images, sorted by descending confidence. The sort is stable so ties keep
// model output order.
func (e *Engine) pooledClassPredictions(class int) []pooledPrediction {
	var preds []pooledPrediction
	for image, dets := range e.detections {
		for _, det := range dets {
			if det.Class == class {
				preds = append(preds, pooledPrediction{image: image, det: det})
			}
		}
	}
	sort.SliceStable(preds, func(i, j int) bool {
		return preds[i].det.Score > preds[j].det.Score
	})
	return preds
}

// precisionRecall sweeps the sorted predictions of one class and returns the
// cumulative precision and recall curves at one IoU threshold.
func (e *Engine) precisionRecall(
	class int,
	preds []pooledPrediction,
	iouThreshold float32,
	totalGT int,
) ([]float32, []float32) {
	// Per image, which ground truths of this class are already claimed.
	claimed := make(map[int][]bool, len(e.groundTruths))
	classGT := make(map[int][]images.Rect, len(e.groundTruths))
	for image, rows := range e.groundTruths {
		var boxes []images.Rect
		for _, gt := range rows {
			if gt.Class == class {
				boxes = append(boxes, gt.Box)
			}
		}
		classGT[image] = boxes
		claimed[image] = make([]bool, len(boxes))
	}

	precision := make([]float32, len(preds))
	recall := make([]float32, len(preds))

	tp := 0
	for i, pred := range preds {
		best := -1
		bestIoU := float32(0)
		for g, box := range classGT[pred.image] {
			if claimed[pred.image][g] {
				continue
			}
			iou := images.CalculateIoU(pred.det.Box, box)
			if iou >= iouThreshold && iou > bestIoU {
				best = g
				bestIoU = iou
			}
		}
		if best >= 0 {
			claimed[pred.image][best] = true
			tp++
		}

		precision[i] = float32(tp) / float32(i+1)
		if totalGT > 0 {
			recall[i] = float32(tp) / float32(totalGT)
		}
	}

	return precision, recall
}

// interpolatedAP integrates a precision-recall curve with 101-point
// interpolation: at each recall level r in 0, 0.01 ... 1 the precision is
// the maximum precision achieved at any recall >= r.
func interpolatedAP(precision, recall []float32) float64 {
	if len(precision) == 0 {
		return 0
	}

	// Precision envelope, right to left.
	envelope := make([]float32, len(precision))
	running := float32(0)
	for i := len(precision) - 1; i >= 0; i-- {
		running = math32.Max(running, precision[i])
		envelope[i] = running
	}

	sum := 0.0
	for i := 0; i <= 100; i++ {
		r := float32(i) / 100.0
		// First curve point with recall >= r; recall is non-decreasing.
		idx := sort.Search(len(recall), func(j int) bool { return recall[j] >= r })
		if idx < len(recall) {
			sum += float64(envelope[idx])
		}
	}
	return sum / 101.0
}
