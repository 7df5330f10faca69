package domain

import "time"

// PredictionResult is the label picked for one feature vector.
type PredictionResult struct {
	Label      string    `json:"word"`
	Confidence float64   `json:"confidence"`
	ProducedAt time.Time `json:"produced_at"`
}

// OutcomeKind tags the result of a throttled classification.
type OutcomeKind int

const (
	OutcomeSkipped OutcomeKind = iota
	OutcomeClassified
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeClassified:
		return "classified"
	default:
		return "unknown"
	}
}

// Outcome is either Skipped or Classified. Prediction is only set for
// OutcomeClassified.
type Outcome struct {
	Kind       OutcomeKind
	Prediction PredictionResult
}

// Skipped builds a skipped outcome.
func Skipped() Outcome {
	return Outcome{Kind: OutcomeSkipped}
}

// Classified builds a classified outcome.
func Classified(p PredictionResult) Outcome {
	return Outcome{Kind: OutcomeClassified, Prediction: p}
}

// HandleStatus tags the result of handling one request.
type HandleStatus int

const (
	StatusServed HandleStatus = iota
	StatusSkipped
	StatusUnavailable
)

func (s HandleStatus) String() string {
	switch s {
	case StatusServed:
		return "served"
	case StatusSkipped:
		return "skipped"
	case StatusUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// HandleResult is returned by the orchestrator for every frame. Response is
// only set when Status is StatusServed.
type HandleResult struct {
	Status   HandleStatus
	Response *PredictionResponse
}

// PredictionResponse is the outward payload of a served prediction.
type PredictionResponse struct {
	Label          string          `json:"word"`
	Confidence     float64         `json:"confidence"`
	ResponseTimeMs float64         `json:"response_time_ms"`
	Timestamp      time.Time       `json:"timestamp"`
	Audio          []byte          `json:"-"`
	AudioMIME      string          `json:"-"`
	Landmarks      *DetectorOutput `json:"landmarks,omitempty"`
}

// HasAudio reports whether synthesis succeeded for this response.
func (r *PredictionResponse) HasAudio() bool {
	return r != nil && len(r.Audio) > 0
}

// ModelInfo describes the loaded classifier.
type ModelInfo struct {
	Classes       []string `json:"classes"`
	NumClasses    int      `json:"num_classes"`
	NumFeatures   int      `json:"num_features"`
	PredictionFPS float64  `json:"prediction_fps"`
}
