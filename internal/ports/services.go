package ports

import (
	"context"

	"github.com/seu-repo/voz-visible/internal/domain"
)

// LandmarkDetector extracts landmarks from an encoded frame.
type LandmarkDetector interface {
	Detect(ctx context.Context, frame domain.Frame) (*domain.DetectorOutput, error)
}

// Classifier scores a feature vector against a fixed vocabulary. The returned
// slice has one entry per vocabulary class, in vocabulary order.
type Classifier interface {
	Infer(ctx context.Context, vec *domain.FeatureVector) ([]float32, error)
	Vocabulary() []string
	NumFeatures() int
	Close() error
}

// SpeechSynthesizer turns text into encoded audio.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, locale string, slow bool) ([]byte, error)
}

// TokenValidator resolves a bearer token to a user id.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (string, error)
}

// HandleOptions carries per-request metadata for the orchestrator.
type HandleOptions struct {
	SessionID     string
	UserID        string
	IncludeExtras bool
}

// StatusReport is the readiness payload exposed to clients.
type StatusReport struct {
	State     string            `json:"status"`
	Message   string            `json:"message"`
	Ready     bool              `json:"ready"`
	ModelInfo *domain.ModelInfo `json:"model_info,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// PredictionService is the orchestrator boundary used by transports.
type PredictionService interface {
	IsReady() bool
	Status() StatusReport
	ModelInfo() (*domain.ModelInfo, error)
	Handle(ctx context.Context, frame domain.Frame, opts HandleOptions) (domain.HandleResult, error)
	HandleLandmarks(ctx context.Context, out *domain.DetectorOutput, opts HandleOptions) (domain.HandleResult, error)
	SynthesizeText(ctx context.Context, text string, format domain.AudioFormat) (*domain.SynthesisResponse, error)
	OpenAudio(ctx context.Context, fileName string) ([]byte, error)
	QueryLedger(ctx context.Context, filter domain.LedgerFilter) ([]domain.TranslationRecord, error)
	LedgerStats(ctx context.Context) (*domain.LedgerStats, error)
}

// HealthChecker is implemented by capabilities that can verify their own
// initialization.
type HealthChecker interface {
	Check(ctx context.Context) error
}
