package inference

import (
	"context"
	"image"
	_ "image/jpeg" // register JPEG decoding
	_ "image/png"  // register PNG decoding
	"os"
	"sync"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/nvr-ai/go-detect-eval/images"
	"github.com/nvr-ai/go-detect-eval/models"
)

// SingleStageConfig configures an ONNX-backed single-stage model handle.
type SingleStageConfig struct {
	// ModelPath is the path to the ONNX model file. The model is expected to
	// emit a fused (N, 6) detection tensor (end-to-end export with NMS).
	ModelPath string `json:"modelPath" yaml:"modelPath"`
	// InputShape is the model's fixed input resolution.
	InputShape image.Point `json:"inputShape" yaml:"inputShape"`
	// InputName is the model's input tensor name. Defaults to "images".
	InputName string `json:"inputName" yaml:"inputName"`
	// OutputName is the model's output tensor name. Defaults to "output0".
	OutputName string `json:"outputName" yaml:"outputName"`
	// Device selects the execution provider; the session owns this device for
	// its lifetime.
	Device string `json:"device" yaml:"device"`
}

// SingleStage runs a YOLO-style ONNX model. It implements
// models.SingleStageModel. Calls are serialized: the compute device is
// treated as a single exclusively-owned resource.
type SingleStage struct {
	config  SingleStageConfig
	session *ort.DynamicAdvancedSession
	mu      sync.Mutex
}

// NewSingleStage creates a single-stage ONNX model handle.
//
// Arguments:
//   - config: The model configuration.
//
// Returns:
//   - *SingleStage: The constructed handle.
//   - error: An error if the model file is missing or session creation fails.
func NewSingleStage(config SingleStageConfig) (*SingleStage, error) {
	if _, err := os.Stat(config.ModelPath); err != nil {
		return nil, errors.Wrapf(err, "model file %s", config.ModelPath)
	}
	if config.InputName == "" {
		config.InputName = "images"
	}
	if config.OutputName == "" {
		config.OutputName = "output0"
	}

	if err := initEnvironment(); err != nil {
		return nil, err
	}

	opts, err := sessionOptions(config.Device)
	if err != nil {
		return nil, err
	}
	defer opts.Destroy()

	session, err := ort.NewDynamicAdvancedSession(
		config.ModelPath,
		[]string{config.InputName},
		[]string{config.OutputName},
		opts,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "creating ONNX session for %s", config.ModelPath)
	}

	return &SingleStage{config: config, session: session}, nil
}

// Predict runs the model on one image and returns the flattened (N, 6)
// detection tensor with boxes scaled back to the original image space.
//
// Arguments:
//   - ctx: Context for the call.
//   - imagePath: Path to the image file.
//   - opts: Per-call options; detections scoring below
//     opts.ConfidenceThreshold are dropped. The device was fixed at session
//     creation, so opts.Device is not consulted here.
//
// Returns:
//   - []float32: The flattened detection rows, model output order.
//   - error: A decode or inference error.
func (m *SingleStage) Predict(
	ctx context.Context,
	imagePath string,
	opts models.PredictOptions,
) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(imagePath)
	if err != nil {
		return nil, errors.Wrapf(err, "opening image %s", imagePath)
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return nil, errors.Wrapf(err, "decoding image %s", imagePath)
	}

	origW := img.Bounds().Dx()
	origH := img.Bounds().Dy()
	inW := m.config.InputShape.X
	inH := m.config.InputShape.Y

	resized := resize.Resize(uint(inW), uint(inH), img, resize.Lanczos3)
	data := images.TensorFromImage(resized).Data().([]float32)

	input, err := ort.NewTensor(ort.NewShape(1, 3, int64(inH), int64(inW)), data)
	if err != nil {
		return nil, errors.Wrap(err, "creating input tensor")
	}
	defer input.Destroy()

	m.mu.Lock()
	outputs := []ort.Value{nil}
	err = m.session.Run([]ort.Value{input}, outputs)
	m.mu.Unlock()
	if err != nil {
		return nil, errors.Wrapf(err, "running inference on %s", imagePath)
	}
	defer outputs[0].Destroy()

	outTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, errors.Errorf("unexpected output type %T", outputs[0])
	}
	raw := outTensor.GetData()
	if len(raw)%6 != 0 {
		return nil, errors.Errorf("model output has %d values, not a multiple of 6", len(raw))
	}

	// Scale boxes from input-shape space back to the original image.
	scaleX := float32(origW) / float32(inW)
	scaleY := float32(origH) / float32(inH)

	rows := make([]float32, 0, len(raw))
	for i := 0; i < len(raw); i += 6 {
		if raw[i+4] < opts.ConfidenceThreshold {
			continue
		}
		rows = append(rows,
			raw[i+0]*scaleX,
			raw[i+1]*scaleY,
			raw[i+2]*scaleX,
			raw[i+3]*scaleY,
			raw[i+4],
			raw[i+5],
		)
	}

	return rows, nil
}

// Close releases the native session.
func (m *SingleStage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		if err := m.session.Destroy(); err != nil {
			return errors.Wrap(err, "destroying ONNX session")
		}
		m.session = nil
	}
	return nil
}
