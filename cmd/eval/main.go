package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-detect-eval/eval"
	"github.com/nvr-ai/go-detect-eval/inference"
	"github.com/nvr-ai/go-detect-eval/metrics"
	"github.com/nvr-ai/go-detect-eval/models"
)

func main() {
	var (
		imageDir   = flag.String("images", "", "Path to the test-set image directory")
		labelDir   = flag.String("labels", "", "Path to the test-set label directory")
		modelPath  = flag.String("model", "", "Path to the ONNX model file")
		family     = flag.String("family", string(models.FamilySingleStage), "Model family: single-stage or two-stage")
		classFile  = flag.String("classes", "", "Path to a YAML class dictionary (id: name)")
		device     = flag.String("device", inference.DeviceCPU, "Compute device: cpu, cuda[:id], coreml")
		outputDir  = flag.String("output", "./eval_results", "Output directory for plot artifacts")
		imageExt   = flag.String("ext", ".png", "Test-image file extension")
		inputSize  = flag.Int("input-size", 640, "Single-stage model input resolution")
		confidence = flag.Float64("conf", metrics.DefaultConfidenceThreshold, "Confusion matrix confidence threshold")
		plot       = flag.Bool("plot", false, "Write confusion matrix and PR curve plots")
	)
	flag.Parse()

	if *imageDir == "" || *labelDir == "" {
		log.Fatal("Image and label directories are required (-images, -labels)")
	}
	if *modelPath == "" {
		log.Fatal("Model path is required (-model)")
	}
	if *classFile == "" {
		log.Fatal("Class dictionary is required (-classes)")
	}

	classes, err := loadClasses(*classFile)
	if err != nil {
		log.Fatalf("Failed to load class dictionary: %v", err)
	}

	cfg := eval.Config{
		Family:   models.Family(*family),
		ImageDir: *imageDir,
		LabelDir: *labelDir,
		Device:   *device,
		Classes:  classes,
		SaveDir:  *outputDir,
		ImageExt: *imageExt,
		Progress: true,
	}

	switch cfg.Family {
	case models.FamilySingleStage:
		model, err := inference.NewSingleStage(inference.SingleStageConfig{
			ModelPath:  *modelPath,
			InputShape: image.Point{X: *inputSize, Y: *inputSize},
			Device:     *device,
		})
		if err != nil {
			log.Fatalf("Failed to load single-stage model: %v", err)
		}
		defer model.Close()
		cfg.SingleStage = model
	case models.FamilyTwoStage:
		model, err := inference.NewTwoStage(inference.TwoStageConfig{
			ModelPath: *modelPath,
		})
		if err != nil {
			log.Fatalf("Failed to load two-stage model: %v", err)
		}
		defer model.Close()
		cfg.TwoStage = model
	default:
		log.Fatalf("Unsupported model family: %s", *family)
	}

	result, err := eval.Evaluate(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Evaluation failed: %v", err)
	}

	map50, err := result.MAP50()
	if err != nil {
		log.Fatalf("mAP@50 query failed: %v", err)
	}
	map5095, err := result.MAP5095()
	if err != nil {
		log.Fatalf("mAP@50-95 query failed: %v", err)
	}

	timing := result.Timing()
	fmt.Printf("\n=== EVALUATION RESULTS ===\n")
	fmt.Printf("Images evaluated: %d (%.1f fps, mean %s/image)\n",
		result.Len(), timing.FramesPerSecond, timing.MeanImage.Round(time.Millisecond))
	fmt.Printf("mAP@50:    %.4f\n", map50)
	fmt.Printf("mAP@50-95: %.4f\n", map5095)

	ap, err := result.APPerClass(metrics.APOptions{Plot: *plot})
	if err != nil {
		log.Fatalf("AP query failed: %v", err)
	}
	fmt.Println("\nAP@50 per class:")
	for class := 0; class < len(classes); class++ {
		fmt.Printf("  %-20s %.4f\n", classes[class], ap[0][class])
	}

	matrices, err := result.ConfusionMatrix(metrics.ConfusionMatrixOptions{
		ConfidenceThreshold: float32(*confidence),
		Plot:                *plot,
	})
	if err != nil {
		log.Fatalf("Confusion matrix query failed: %v", err)
	}
	background := matrices[0].Background()
	correct, total := 0, 0
	for pred, row := range matrices[0].Counts {
		for actual, count := range row {
			total += count
			if pred == actual && pred != background {
				correct += count
			}
		}
	}
	fmt.Printf("\nConfusion matrix (conf>=%.2f, IoU>=%.2f): %d/%d matched entries on the diagonal\n",
		matrices[0].ConfidenceThreshold, matrices[0].IoUThreshold, correct, total)

	if *plot {
		fmt.Printf("Plots written to: %s\n", *outputDir)
	}
}

// loadClasses reads a YAML class dictionary mapping integer class ids to
// display names.
func loadClasses(path string) (map[int]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	classes := make(map[int]string)
	if err := yaml.Unmarshal(data, &classes); err != nil {
		return nil, err
	}
	return classes, nil
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", filepath.Base(os.Args[0]))
		fmt.Fprintf(os.Stderr, "Evaluates an object-detection model against a labelled test set.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(
			os.Stderr,
			"  %s -images ./test/images -labels ./test/labels -model ./yolov8n.onnx -classes ./classes.yaml\n",
			filepath.Base(os.Args[0]),
		)
		fmt.Fprintf(
			os.Stderr,
			"  %s -images ./test/images -labels ./test/labels -model ./fasterrcnn.onnx -family two-stage -classes ./classes.yaml -plot\n",
			filepath.Base(os.Args[0]),
		)
	}
}
