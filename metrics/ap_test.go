package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-detect-eval/detection"
	"github.com/nvr-ai/go-detect-eval/images"
)

func det(x1, y1, x2, y2, score float32, class int) detection.Detection {
	return detection.Detection{
		Box:   images.Rect{X1: x1, Y1: y1, X2: x2, Y2: y2},
		Score: score,
		Class: class,
	}
}

func gt(x1, y1, x2, y2 float32, class int) detection.GroundTruth {
	return detection.GroundTruth{
		Box:   images.Rect{X1: x1, Y1: y1, X2: x2, Y2: y2},
		Class: class,
	}
}

func twoClassNames() map[int]string {
	return map[int]string{0: "car", 1: "bus"}
}

// TestAPPerClassPerfectPredictions validates that predictions identical to
// the ground truth score AP 1.0 at every IoU threshold.
func TestAPPerClassPerfectPredictions(t *testing.T) {
	engine := NewEngine(NewEngineArgs{
		Classes: twoClassNames(),
		GroundTruths: [][]detection.GroundTruth{
			{gt(0, 0, 10, 10, 0), gt(20, 20, 30, 30, 1)},
			{gt(5, 5, 15, 15, 0)},
		},
		Detections: [][]detection.Detection{
			{det(0, 0, 10, 10, 1.0, 0), det(20, 20, 30, 30, 1.0, 1)},
			{det(5, 5, 15, 15, 1.0, 0)},
		},
	})

	ap, err := engine.APPerClass(APOptions{})
	require.NoError(t, err)
	require.Len(t, ap, 10, "one row per IoU threshold")

	for tIdx, row := range ap {
		require.Len(t, row, 2)
		assert.InDelta(t, 1.0, row[0], 1e-6, "threshold index %d, class car", tIdx)
		assert.InDelta(t, 1.0, row[1], 1e-6, "threshold index %d, class bus", tIdx)
	}

	assert.InDelta(t, 1.0, engine.MAP50(), 1e-6)
	assert.InDelta(t, 1.0, engine.MAP5095(), 1e-6)
}

// TestAPPerClassNoOverlap validates that fully wrong predictions score 0.
func TestAPPerClassNoOverlap(t *testing.T) {
	engine := NewEngine(NewEngineArgs{
		Classes: twoClassNames(),
		GroundTruths: [][]detection.GroundTruth{
			{gt(0, 0, 10, 10, 0)},
		},
		Detections: [][]detection.Detection{
			{det(100, 100, 110, 110, 0.9, 0)},
		},
	})

	ap, err := engine.APPerClass(APOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, ap[0][0], 1e-6)
	assert.InDelta(t, 0.0, engine.MAP50(), 1e-6)
}

// TestAPPenalizesHighConfidenceFalsePositive validates the precision sweep:
// a false positive ranked above the true positive halves the interpolated
// AP.
func TestAPPenalizesHighConfidenceFalsePositive(t *testing.T) {
	engine := NewEngine(NewEngineArgs{
		Classes: twoClassNames(),
		GroundTruths: [][]detection.GroundTruth{
			{gt(0, 0, 10, 10, 0)},
		},
		Detections: [][]detection.Detection{
			{
				det(100, 100, 110, 110, 0.9, 0), // false positive, ranked first
				det(0, 0, 10, 10, 0.8, 0),       // true positive
			},
		},
	})

	ap, err := engine.APPerClass(APOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, ap[0][0], 0.01)
}

// TestAPMatchRequiresSameImage validates that predictions cannot claim
// ground truths belonging to a different image.
func TestAPMatchRequiresSameImage(t *testing.T) {
	engine := NewEngine(NewEngineArgs{
		Classes: twoClassNames(),
		GroundTruths: [][]detection.GroundTruth{
			{gt(0, 0, 10, 10, 0)},
			{},
		},
		Detections: [][]detection.Detection{
			{},
			{det(0, 0, 10, 10, 0.9, 0)}, // right box, wrong image
		},
	})

	ap, err := engine.APPerClass(APOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, ap[0][0], 1e-6)
}

// TestMAPExcludesClassesWithoutGroundTruth validates that a class absent
// from the ground truth does not drag the mean down.
func TestMAPExcludesClassesWithoutGroundTruth(t *testing.T) {
	engine := NewEngine(NewEngineArgs{
		Classes: map[int]string{0: "car", 1: "bus", 2: "truck"},
		GroundTruths: [][]detection.GroundTruth{
			{gt(0, 0, 10, 10, 0)},
		},
		Detections: [][]detection.Detection{
			{det(0, 0, 10, 10, 1.0, 0)},
		},
	})

	assert.InDelta(t, 1.0, engine.MAP50(), 1e-6,
		"bus and truck have no ground truth and must be excluded")
}

// TestMAP50Idempotent validates that repeated queries over the same frozen
// state return bit-identical results.
func TestMAP50Idempotent(t *testing.T) {
	engine := NewEngine(NewEngineArgs{
		Classes: twoClassNames(),
		GroundTruths: [][]detection.GroundTruth{
			{gt(0, 0, 10, 10, 0), gt(3, 3, 9, 9, 1)},
		},
		Detections: [][]detection.Detection{
			{det(1, 1, 10, 10, 0.7, 0), det(2, 2, 9, 9, 0.6, 1)},
		},
	})

	first := engine.MAP50()
	second := engine.MAP50()
	assert.Equal(t, first, second)

	firstAll := engine.MAP5095()
	secondAll := engine.MAP5095()
	assert.Equal(t, firstAll, secondAll)
}

// TestIoUThresholds validates the canonical threshold ladder.
func TestIoUThresholds(t *testing.T) {
	thresholds := IoUThresholds()
	require.Len(t, thresholds, 10)
	assert.InDelta(t, 0.50, thresholds[0], 1e-6)
	assert.InDelta(t, 0.95, thresholds[9], 1e-6)
}
