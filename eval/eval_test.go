package eval

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-detect-eval/labels"
	"github.com/nvr-ai/go-detect-eval/metrics"
	"github.com/nvr-ai/go-detect-eval/models"
)

// mockSingleStage serves canned prediction rows keyed by image base name.
type mockSingleStage struct {
	rows  map[string][]float32
	calls []string
}

func (m *mockSingleStage) Predict(
	_ context.Context,
	imagePath string,
	_ models.PredictOptions,
) ([]float32, error) {
	base := filepath.Base(imagePath)
	m.calls = append(m.calls, base)
	return m.rows[base], nil
}

func writePNG(t *testing.T, path string, width, height int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, width, height))))
}

func writeLabel(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// testSet lays out a two-image test set: frame-a has one class-2 box, frame-b
// is labelled empty. The mock echoes frame-a's ground truth as a perfect
// prediction.
func testSet(t *testing.T) (imageDir, labelDir string, model *mockSingleStage) {
	t.Helper()
	imageDir = t.TempDir()
	labelDir = t.TempDir()

	writePNG(t, filepath.Join(imageDir, "frame-a.png"), 100, 200)
	writePNG(t, filepath.Join(imageDir, "frame-b.png"), 50, 50)
	writeLabel(t, filepath.Join(labelDir, "frame-a.txt"), "2 0.5 0.5 0.2 0.2\n")
	writeLabel(t, filepath.Join(labelDir, "frame-b.txt"), "")

	model = &mockSingleStage{
		rows: map[string][]float32{
			"frame-a.png": {40, 80, 60, 120, 0.95, 2},
		},
	}
	return imageDir, labelDir, model
}

func testClasses() map[int]string {
	return map[int]string{0: "car", 1: "bus", 2: "truck"}
}

// TestEvaluatePopulatesParallelSequences validates the population pass:
// one prediction slice and one ground-truth slice per image, same order.
func TestEvaluatePopulatesParallelSequences(t *testing.T) {
	imageDir, labelDir, model := testSet(t)

	result, err := Evaluate(context.Background(), Config{
		Family:      models.FamilySingleStage,
		SingleStage: model,
		ImageDir:    imageDir,
		LabelDir:    labelDir,
		Classes:     testClasses(),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Len())
	require.Len(t, result.Predictions(), 2)
	require.Len(t, result.GroundTruths(), 2)
	assert.Equal(t, []string{"frame-a.png", "frame-b.png"}, model.calls,
		"images are visited in sorted order, once each")

	// frame-a's label row denormalized to absolute pixel corners.
	gts := result.GroundTruths()
	require.Len(t, gts[0], 1)
	assert.Equal(t, 2, gts[0][0].Class)
	assert.InDelta(t, 40.0, gts[0][0].Box.X1, 1e-4)
	assert.InDelta(t, 80.0, gts[0][0].Box.Y1, 1e-4)
	assert.InDelta(t, 60.0, gts[0][0].Box.X2, 1e-4)
	assert.InDelta(t, 120.0, gts[0][0].Box.Y2, 1e-4)

	preds := result.Predictions()
	require.Len(t, preds[0], 1)
	assert.Empty(t, preds[1], "frame-b produced no detections")
	assert.Empty(t, gts[1], "frame-b is labelled empty")

	timing := result.Timing()
	assert.Equal(t, 2, timing.Images)
	assert.GreaterOrEqual(t, timing.TotalDuration, timing.InferenceDuration)
	assert.GreaterOrEqual(t, timing.MaxImage, timing.MinImage)
}

// TestEvaluateMetricQueries validates the query surface over a populated
// result: the echoed prediction scores a perfect mAP for its class.
func TestEvaluateMetricQueries(t *testing.T) {
	imageDir, labelDir, model := testSet(t)

	result, err := Evaluate(context.Background(), Config{
		Family:      models.FamilySingleStage,
		SingleStage: model,
		ImageDir:    imageDir,
		LabelDir:    labelDir,
		Classes:     testClasses(),
	})
	require.NoError(t, err)

	map50, err := result.MAP50()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, map50, 1e-6, "only truck has ground truth, matched exactly")

	map5095, err := result.MAP5095()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, map5095, 1e-6)

	ap, err := result.APPerClass(metrics.APOptions{})
	require.NoError(t, err)
	require.Len(t, ap, 10)
	assert.InDelta(t, 1.0, ap[0][2], 1e-6)

	matrices, err := result.ConfusionMatrix(metrics.ConfusionMatrixOptions{})
	require.NoError(t, err)
	require.Len(t, matrices, 1)
	assert.Equal(t, 1, matrices[0].Counts[2][2])
}

// TestEvaluateQueriesAreIdempotent validates that the frozen result returns
// bit-identical scalars on repeated queries.
func TestEvaluateQueriesAreIdempotent(t *testing.T) {
	imageDir, labelDir, model := testSet(t)

	result, err := Evaluate(context.Background(), Config{
		Family:      models.FamilySingleStage,
		SingleStage: model,
		ImageDir:    imageDir,
		LabelDir:    labelDir,
		Classes:     testClasses(),
	})
	require.NoError(t, err)

	first, err := result.MAP50()
	require.NoError(t, err)
	second, err := result.MAP50()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

// TestEvaluateEmptyTestSet validates that queries over a result with no
// images fail with ErrNoData.
func TestEvaluateEmptyTestSet(t *testing.T) {
	result, err := Evaluate(context.Background(), Config{
		Family:      models.FamilySingleStage,
		SingleStage: &mockSingleStage{},
		ImageDir:    t.TempDir(),
		LabelDir:    t.TempDir(),
		Classes:     testClasses(),
	})
	require.NoError(t, err, "an empty directory is a valid, empty test set")
	assert.Equal(t, 0, result.Len())

	_, err = result.MAP50()
	assert.ErrorIs(t, err, ErrNoData)
	_, err = result.MAP5095()
	assert.ErrorIs(t, err, ErrNoData)
	_, err = result.APPerClass(metrics.APOptions{})
	assert.ErrorIs(t, err, ErrNoData)
	_, err = result.ConfusionMatrix(metrics.ConfusionMatrixOptions{})
	assert.ErrorIs(t, err, ErrNoData)
}

// TestEvaluateMissingLabelFileAborts validates that a single missing label
// file fails the whole pass with no partial result.
func TestEvaluateMissingLabelFileAborts(t *testing.T) {
	imageDir, labelDir, model := testSet(t)
	require.NoError(t, os.Remove(filepath.Join(labelDir, "frame-b.txt")))

	result, err := Evaluate(context.Background(), Config{
		Family:      models.FamilySingleStage,
		SingleStage: model,
		ImageDir:    imageDir,
		LabelDir:    labelDir,
		Classes:     testClasses(),
	})
	require.ErrorIs(t, err, labels.ErrLabelFileNotFound)
	assert.Nil(t, result)
}

// TestEvaluateCustomImageExtension validates that a non-default extension
// selects a disjoint set of test images.
func TestEvaluateCustomImageExtension(t *testing.T) {
	imageDir := t.TempDir()
	labelDir := t.TempDir()

	writePNG(t, filepath.Join(imageDir, "frame-a.png"), 20, 20)

	// A .jpg in the same directory; only it should be enumerated.
	f, err := os.Create(filepath.Join(imageDir, "frame-c.jpg"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 20, 20))))
	require.NoError(t, f.Close())
	writeLabel(t, filepath.Join(labelDir, "frame-c.txt"), "")

	model := &mockSingleStage{}
	result, err := Evaluate(context.Background(), Config{
		Family:      models.FamilySingleStage,
		SingleStage: model,
		ImageDir:    imageDir,
		LabelDir:    labelDir,
		Classes:     testClasses(),
		ImageExt:    ".jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Len())
	assert.Equal(t, []string{"frame-c.jpg"}, model.calls)
}

// TestEvaluateCancelledContext validates that the pass stops between images
// once the context is done.
func TestEvaluateCancelledContext(t *testing.T) {
	imageDir, labelDir, model := testSet(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := Evaluate(ctx, Config{
		Family:      models.FamilySingleStage,
		SingleStage: model,
		ImageDir:    imageDir,
		LabelDir:    labelDir,
		Classes:     testClasses(),
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)
}

// TestEvaluateRejectsMissingHandle validates the family/handle pairing check.
func TestEvaluateRejectsMissingHandle(t *testing.T) {
	_, err := Evaluate(context.Background(), Config{
		Family:   models.FamilySingleStage,
		ImageDir: t.TempDir(),
		LabelDir: t.TempDir(),
		Classes:  testClasses(),
	})
	require.Error(t, err)
}
