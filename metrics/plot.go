package metrics

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Heatmap layout constants.
const (
	cellSize   = 64
	plotMargin = 110
	curveSize  = 600
)

// classPalette cycles per-class colors for the PR curve plot.
var classPalette = []color.RGBA{
	{R: 31, G: 119, B: 180, A: 0},
	{R: 255, G: 127, B: 14, A: 0},
	{R: 44, G: 160, B: 44, A: 0},
	{R: 214, G: 39, B: 40, A: 0},
	{R: 148, G: 103, B: 189, A: 0},
	{R: 140, G: 86, B: 75, A: 0},
}

// prCurve is one class's precision-recall curve at a fixed IoU threshold.
type prCurve struct {
	class     int
	name      string
	precision []float32
	recall    []float32
}

// plotConfusionMatrix renders a matrix as a heatmap and writes it to
// `<saveDir>/confusion_matrix_iou<threshold>.png`.
func (e *Engine) plotConfusionMatrix(m *ConfusionMatrix) error {
	if err := os.MkdirAll(e.saveDir, 0o755); err != nil {
		return errors.Wrapf(err, "creating save directory %s", e.saveDir)
	}

	n := len(m.Counts)
	size := plotMargin + n*cellSize
	img := gocv.NewMatWithSizeFromScalar(
		gocv.NewScalar(255, 255, 255, 0), size, size, gocv.MatTypeCV8UC3)
	defer img.Close()

	maxCount := 1
	for _, row := range m.Counts {
		for _, c := range row {
			if c > maxCount {
				maxCount = c
			}
		}
	}

	for pred := 0; pred < n; pred++ {
		for actual := 0; actual < n; actual++ {
			count := m.Counts[pred][actual]
			x := plotMargin + actual*cellSize
			y := plotMargin + pred*cellSize
			rect := image.Rect(x, y, x+cellSize, y+cellSize)

			// Darker blue for larger counts.
			shade := uint8(255 - 200*count/maxCount)
			gocv.Rectangle(&img, rect, color.RGBA{R: shade, G: shade, B: 255, A: 0}, -1)
			gocv.Rectangle(&img, rect, color.RGBA{R: 120, G: 120, B: 120, A: 0}, 1)

			gocv.PutText(&img, fmt.Sprintf("%d", count),
				image.Pt(x+cellSize/4, y+cellSize/2+4),
				gocv.FontHersheySimplex, 0.4, color.RGBA{A: 0}, 1)
		}
	}

	for i := 0; i < n; i++ {
		name := e.classes[i]
		if i == n-1 {
			name = "background"
		}
		gocv.PutText(&img, name,
			image.Pt(plotMargin+i*cellSize+2, plotMargin-8),
			gocv.FontHersheySimplex, 0.35, color.RGBA{A: 0}, 1)
		gocv.PutText(&img, name,
			image.Pt(4, plotMargin+i*cellSize+cellSize/2),
			gocv.FontHersheySimplex, 0.35, color.RGBA{A: 0}, 1)
	}
	gocv.PutText(&img, "actual", image.Pt(size/2, 24),
		gocv.FontHersheySimplex, 0.5, color.RGBA{A: 0}, 1)
	gocv.PutText(&img, "predicted", image.Pt(4, 40),
		gocv.FontHersheySimplex, 0.5, color.RGBA{A: 0}, 1)

	path := filepath.Join(e.saveDir, fmt.Sprintf("confusion_matrix_iou%d.png", int(m.IoUThreshold*100)))
	if ok := gocv.IMWrite(path, img); !ok {
		return errors.Errorf("writing confusion matrix plot %s", path)
	}
	return nil
}

// plotPRCurves renders per-class precision-recall curves at one IoU
// threshold into a single figure at
// `<saveDir>/<prefix>pr_curve_iou<threshold>.png`.
func (e *Engine) plotPRCurves(curves []prCurve, iouThreshold float32, prefix string) error {
	if err := os.MkdirAll(e.saveDir, 0o755); err != nil {
		return errors.Wrapf(err, "creating save directory %s", e.saveDir)
	}

	size := curveSize + 2*plotMargin
	img := gocv.NewMatWithSizeFromScalar(
		gocv.NewScalar(255, 255, 255, 0), size, size, gocv.MatTypeCV8UC3)
	defer img.Close()

	origin := image.Pt(plotMargin, plotMargin+curveSize)
	axis := color.RGBA{R: 60, G: 60, B: 60, A: 0}
	gocv.Line(&img, origin, image.Pt(plotMargin+curveSize, plotMargin+curveSize), axis, 2)
	gocv.Line(&img, origin, image.Pt(plotMargin, plotMargin), axis, 2)
	gocv.PutText(&img, "recall", image.Pt(plotMargin+curveSize/2, size-plotMargin/2),
		gocv.FontHersheySimplex, 0.5, axis, 1)
	gocv.PutText(&img, "precision", image.Pt(8, plotMargin/2),
		gocv.FontHersheySimplex, 0.5, axis, 1)

	for _, curve := range curves {
		c := classPalette[curve.class%len(classPalette)]
		prev := image.Pt(origin.X, plotMargin) // precision 1.0 at recall 0
		for i := range curve.recall {
			pt := image.Pt(
				plotMargin+int(curve.recall[i]*float32(curveSize)),
				plotMargin+curveSize-int(curve.precision[i]*float32(curveSize)),
			)
			gocv.Line(&img, prev, pt, c, 2)
			prev = pt
		}
		gocv.PutText(&img, curve.name,
			image.Pt(plotMargin+curveSize+8, plotMargin+curve.class*18),
			gocv.FontHersheySimplex, 0.4, c, 1)
	}

	path := filepath.Join(e.saveDir, fmt.Sprintf("%spr_curve_iou%d.png", prefix, int(iouThreshold*100)))
	if ok := gocv.IMWrite(path, img); !ok {
		return errors.Errorf("writing PR curve plot %s", path)
	}
	return nil
}
