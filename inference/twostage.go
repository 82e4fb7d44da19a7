package inference

import (
	"context"
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-detect-eval/models"
)

// TwoStageConfig configures an ONNX-backed two-stage model handle.
type TwoStageConfig struct {
	// ModelPath is the path to the ONNX model file. The model is expected to
	// take a (3, H, W) float image and emit three parallel outputs: boxes
	// (N, 4) float32, labels (N) int64, scores (N) float32, with label 0
	// reserved for background (torchvision Faster R-CNN export layout).
	ModelPath string `json:"modelPath" yaml:"modelPath"`
	// InputName is the model's input tensor name. Defaults to "images".
	InputName string `json:"inputName" yaml:"inputName"`
	// OutputNames are the boxes, labels, and scores output tensor names.
	// Defaults to "boxes", "labels", "scores".
	OutputNames []string `json:"outputNames" yaml:"outputNames"`
}

// TwoStage runs an RCNN-style ONNX model. It implements
// models.TwoStageModel. ONNX sessions carry no gradient state, which gives
// the required inference-only execution. Calls are serialized per handle.
type TwoStage struct {
	config   TwoStageConfig
	mu       sync.Mutex
	sessions map[string]*ort.DynamicAdvancedSession
}

// NewTwoStage creates a two-stage ONNX model handle. Sessions are created
// lazily per device on the first Forward call for that device.
//
// Arguments:
//   - config: The model configuration.
//
// Returns:
//   - *TwoStage: The constructed handle.
//   - error: An error if the model file is missing.
func NewTwoStage(config TwoStageConfig) (*TwoStage, error) {
	if _, err := os.Stat(config.ModelPath); err != nil {
		return nil, errors.Wrapf(err, "model file %s", config.ModelPath)
	}
	if config.InputName == "" {
		config.InputName = "images"
	}
	if len(config.OutputNames) == 0 {
		config.OutputNames = []string{"boxes", "labels", "scores"}
	}
	if len(config.OutputNames) != 3 {
		return nil, errors.Errorf("expected 3 output names, got %d", len(config.OutputNames))
	}

	if err := initEnvironment(); err != nil {
		return nil, err
	}

	return &TwoStage{
		config:   config,
		sessions: make(map[string]*ort.DynamicAdvancedSession),
	}, nil
}

// sessionFor returns the session bound to a device, creating it on first
// use. Callers must hold the mutex.
func (m *TwoStage) sessionFor(device string) (*ort.DynamicAdvancedSession, error) {
	if session, ok := m.sessions[device]; ok {
		return session, nil
	}

	opts, err := sessionOptions(device)
	if err != nil {
		return nil, err
	}
	defer opts.Destroy()

	session, err := ort.NewDynamicAdvancedSession(
		m.config.ModelPath,
		[]string{m.config.InputName},
		m.config.OutputNames,
		opts,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "creating ONNX session for %s on %s", m.config.ModelPath, device)
	}
	m.sessions[device] = session
	return session, nil
}

// Forward runs the model on one preprocessed image tensor.
//
// Arguments:
//   - ctx: Context for the call.
//   - input: A (3, H, W) float32 tensor scaled to [0, 1].
//   - device: The device identifier to run on.
//
// Returns:
//   - *models.TwoStageOutput: The raw labels/boxes/scores arrays, copied out
//     of the native buffers.
//   - error: An inference or tensor-shape error.
func (m *TwoStage) Forward(
	ctx context.Context,
	input *tensor.Dense,
	device string,
) (*models.TwoStageOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	shape := input.Shape()
	if len(shape) != 3 || shape[0] != 3 {
		return nil, errors.Errorf("expected a (3, H, W) input tensor, got %v", shape)
	}
	data, ok := input.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("expected a float32 input tensor, got %T", input.Data())
	}

	inputTensor, err := ort.NewTensor(
		ort.NewShape(3, int64(shape[1]), int64(shape[2])), data)
	if err != nil {
		return nil, errors.Wrap(err, "creating input tensor")
	}
	defer inputTensor.Destroy()

	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.sessionFor(device)
	if err != nil {
		return nil, err
	}

	outputs := []ort.Value{nil, nil, nil}
	if err := session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, errors.Wrap(err, "running inference")
	}
	defer func() {
		for _, out := range outputs {
			out.Destroy()
		}
	}()

	boxes, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, errors.Errorf("unexpected boxes output type %T", outputs[0])
	}
	labels, ok := outputs[1].(*ort.Tensor[int64])
	if !ok {
		return nil, errors.Errorf("unexpected labels output type %T", outputs[1])
	}
	scores, ok := outputs[2].(*ort.Tensor[float32])
	if !ok {
		return nil, errors.Errorf("unexpected scores output type %T", outputs[2])
	}

	out := &models.TwoStageOutput{
		Boxes:  append([]float32(nil), boxes.GetData()...),
		Labels: append([]int64(nil), labels.GetData()...),
		Scores: append([]float32(nil), scores.GetData()...),
	}
	return out, nil
}

// Close releases all native sessions.
func (m *TwoStage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for device, session := range m.sessions {
		if err := session.Destroy(); err != nil {
			return errors.Wrapf(err, "destroying ONNX session for %s", device)
		}
		delete(m.sessions, device)
	}
	return nil
}
