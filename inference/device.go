// Package inference - ONNX Runtime backed model handles for both detector
// families, with device-identifier based execution-provider selection.
package inference

import (
	"runtime"
	"strings"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// Device identifiers accepted by the session builders.
const (
	DeviceCPU    = "cpu"
	DeviceCUDA   = "cuda"
	DeviceCoreML = "coreml"
)

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// GetSharedLibPath returns the path to the ONNX Runtime shared library for
// the current platform.
//
// Returns:
//   - string: The path to the shared library.
func GetSharedLibPath() string {
	if runtime.GOOS == "windows" {
		return "./third_party/onnxruntime.dll"
	}
	if runtime.GOOS == "darwin" {
		return "./third_party/libonnxruntime.dylib"
	}
	if runtime.GOARCH == "arm64" {
		return "./third_party/onnxruntime_arm64.so"
	}
	return "./third_party/onnxruntime.so"
}

// initEnvironment initializes the native ONNX Runtime environment. Required
// once per process.
func initEnvironment() error {
	ortInitOnce.Do(func() {
		ort.SetSharedLibraryPath(GetSharedLibPath())
		ortInitErr = ort.InitializeEnvironment()
	})
	return errors.Wrap(ortInitErr, "initializing ONNX Runtime environment")
}

// sessionOptions builds session options with the execution provider for a
// device identifier. Unknown identifiers fall back to CPU; "cuda", "cuda:0"
// style identifiers select the CUDA provider with that device id.
func sessionOptions(device string) (*ort.SessionOptions, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "creating session options")
	}

	switch {
	case strings.HasPrefix(device, DeviceCUDA):
		cudaOpts, err := ort.NewCUDAProviderOptions()
		if err != nil {
			opts.Destroy()
			return nil, errors.Wrap(err, "creating CUDA provider options")
		}
		defer cudaOpts.Destroy()

		deviceID := "0"
		if _, id, ok := strings.Cut(device, ":"); ok {
			deviceID = id
		}
		if err := cudaOpts.Update(map[string]string{"device_id": deviceID}); err != nil {
			opts.Destroy()
			return nil, errors.Wrapf(err, "configuring CUDA device %s", deviceID)
		}
		if err := opts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
			opts.Destroy()
			return nil, errors.Wrap(err, "appending CUDA execution provider")
		}
	case device == DeviceCoreML:
		if err := opts.AppendExecutionProviderCoreML(0); err != nil {
			opts.Destroy()
			return nil, errors.Wrap(err, "appending CoreML execution provider")
		}
	}

	return opts, nil
}
