package eval

import "time"

// Timing captures performance data for one population pass.
type Timing struct {
	// TotalDuration is the wall-clock time of the whole pass, enumeration
	// included.
	TotalDuration time.Duration `json:"total_duration"`
	// InferenceDuration is the time spent inside per-image inference and
	// label loading.
	InferenceDuration time.Duration `json:"inference_duration"`
	// Images is the number of images evaluated.
	Images int `json:"images"`
	// FramesPerSecond is Images over InferenceDuration.
	FramesPerSecond float64 `json:"frames_per_second"`
	// MinImage and MaxImage bracket the per-image durations.
	MinImage time.Duration `json:"min_image"`
	MaxImage time.Duration `json:"max_image"`
	// MeanImage is the average per-image duration.
	MeanImage time.Duration `json:"mean_image"`
}

// timingRecorder accumulates per-image durations during the population pass.
type timingRecorder struct {
	start    time.Time
	perImage []time.Duration
}

func newTimingRecorder() *timingRecorder {
	return &timingRecorder{start: time.Now()}
}

func (r *timingRecorder) record(d time.Duration) {
	r.perImage = append(r.perImage, d)
}

// finish freezes the recorder into a Timing summary.
func (r *timingRecorder) finish() Timing {
	t := Timing{
		TotalDuration: time.Since(r.start),
		Images:        len(r.perImage),
	}
	for i, d := range r.perImage {
		t.InferenceDuration += d
		if i == 0 || d < t.MinImage {
			t.MinImage = d
		}
		if d > t.MaxImage {
			t.MaxImage = d
		}
	}
	if t.Images > 0 {
		t.MeanImage = t.InferenceDuration / time.Duration(t.Images)
	}
	if t.InferenceDuration > 0 {
		t.FramesPerSecond = float64(t.Images) / t.InferenceDuration.Seconds()
	}
	return t
}
