// Package metrics - Detection metrics over accumulated evaluation state:
// confusion matrices, per-class average precision, mAP@50 and mAP@50-95.
package metrics

import (
	"github.com/nvr-ai/go-detect-eval/detection"
)

// DefaultConfidenceThreshold is the confidence cutoff used for confusion
// matrices when the caller does not set one.
const DefaultConfidenceThreshold = 0.25

// IoUThresholds returns the evaluation thresholds 0.50, 0.55 ... 0.95.
//
// Returns:
//   - []float32: The 10 IoU thresholds, ascending.
func IoUThresholds() []float32 {
	thresholds := make([]float32, 10)
	for i := range thresholds {
		thresholds[i] = 0.50 + 0.05*float32(i)
	}
	return thresholds
}

// Engine computes detection metrics over a frozen evaluation state. It holds
// a read-only view of the accumulated sequences and never mutates them;
// repeated queries return identical results.
type Engine struct {
	saveDir      string
	classes      map[int]string
	numClasses   int
	detections   [][]detection.Detection
	groundTruths [][]detection.GroundTruth
	device       string
}

// NewEngineArgs are the arguments for constructing a metrics engine.
type NewEngineArgs struct {
	// SaveDir is the destination directory for plot artifacts.
	SaveDir string `json:"saveDir" yaml:"saveDir"`
	// Classes maps zero-based class ids to display names. Its size defines
	// the number of classes.
	Classes map[int]string `json:"classes" yaml:"classes"`
	// Detections holds the normalized predictions, one slice per image.
	Detections [][]detection.Detection `json:"-" yaml:"-"`
	// GroundTruths holds the label rows, parallel to Detections.
	GroundTruths [][]detection.GroundTruth `json:"-" yaml:"-"`
	// Device identifies the compute device the predictions came from.
	Device string `json:"device" yaml:"device"`
}

// NewEngine creates a metrics engine over accumulated predictions and
// ground truths.
//
// Arguments:
//   - args: The engine arguments. Detections and GroundTruths must be
//     parallel: index i in both refers to the same image.
//
// Returns:
//   - *Engine: The metrics engine.
func NewEngine(args NewEngineArgs) *Engine {
	return &Engine{
		saveDir:      args.SaveDir,
		classes:      args.Classes,
		numClasses:   len(args.Classes),
		detections:   args.Detections,
		groundTruths: args.GroundTruths,
		device:       args.Device,
	}
}

// NumClasses returns the number of classes in the class dictionary.
func (e *Engine) NumClasses() int {
	return e.numClasses
}

// ClassName returns the display name for a class id, or "" if unknown.
func (e *Engine) ClassName(classID int) string {
	return e.classes[classID]
}

// groundTruthCounts tallies ground-truth rows per class across all images.
func (e *Engine) groundTruthCounts() []int {
	counts := make([]int, e.numClasses)
	for _, rows := range e.groundTruths {
		for _, gt := range rows {
			if gt.Class >= 0 && gt.Class < e.numClasses {
				counts[gt.Class]++
			}
		}
	}
	return counts
}
