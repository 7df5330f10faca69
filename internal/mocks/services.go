package mocks

import (
	"context"
	"sync"

	"github.com/seu-repo/voz-visible/internal/domain"
	"github.com/seu-repo/voz-visible/internal/ports"
)

// MockClassifier is a mock implementation of Classifier interface
type MockClassifier struct {
	mu        sync.Mutex
	calls     int
	Classes   []string
	Features  int
	InferFunc func(ctx context.Context, vec *domain.FeatureVector) ([]float32, error)
	CloseFunc func() error
}

func NewMockClassifier(classes ...string) *MockClassifier {
	return &MockClassifier{Classes: classes, Features: domain.FeatureCount}
}

func (m *MockClassifier) Infer(ctx context.Context, vec *domain.FeatureVector) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.InferFunc != nil {
		return m.InferFunc(ctx, vec)
	}
	// Uniform distribution by default
	out := make([]float32, len(m.Classes))
	for i := range out {
		out[i] = 1 / float32(len(out))
	}
	return out, nil
}

func (m *MockClassifier) Vocabulary() []string {
	return m.Classes
}

func (m *MockClassifier) NumFeatures() int {
	return m.Features
}

func (m *MockClassifier) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Calls returns how many times Infer ran
func (m *MockClassifier) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockDetector is a mock implementation of LandmarkDetector interface
type MockDetector struct {
	DetectFunc func(ctx context.Context, frame domain.Frame) (*domain.DetectorOutput, error)
}

func (m *MockDetector) Detect(ctx context.Context, frame domain.Frame) (*domain.DetectorOutput, error) {
	if m.DetectFunc != nil {
		return m.DetectFunc(ctx, frame)
	}
	return &domain.DetectorOutput{}, nil
}

// MockSynthesizer is a mock implementation of SpeechSynthesizer interface
type MockSynthesizer struct {
	mu             sync.Mutex
	calls          int
	SynthesizeFunc func(ctx context.Context, text, locale string, slow bool) ([]byte, error)
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, text, locale string, slow bool) ([]byte, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text, locale, slow)
	}
	return []byte("audio:" + text), nil
}

// Calls returns how many times Synthesize ran
func (m *MockSynthesizer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockTokenValidator is a mock implementation of TokenValidator interface
type MockTokenValidator struct {
	ValidateTokenFunc func(ctx context.Context, token string) (string, error)
}

func (m *MockTokenValidator) ValidateToken(ctx context.Context, token string) (string, error) {
	if m.ValidateTokenFunc != nil {
		return m.ValidateTokenFunc(ctx, token)
	}
	return "user-" + token, nil
}

// MockPredictionService is a mock implementation of PredictionService interface
type MockPredictionService struct {
	Ready               bool
	StatusFunc          func() ports.StatusReport
	ModelInfoFunc       func() (*domain.ModelInfo, error)
	HandleFunc          func(ctx context.Context, frame domain.Frame, opts ports.HandleOptions) (domain.HandleResult, error)
	HandleLandmarksFunc func(ctx context.Context, out *domain.DetectorOutput, opts ports.HandleOptions) (domain.HandleResult, error)
	SynthesizeTextFunc  func(ctx context.Context, text string, format domain.AudioFormat) (*domain.SynthesisResponse, error)
	OpenAudioFunc       func(ctx context.Context, fileName string) ([]byte, error)
	QueryLedgerFunc     func(ctx context.Context, filter domain.LedgerFilter) ([]domain.TranslationRecord, error)
	LedgerStatsFunc     func(ctx context.Context) (*domain.LedgerStats, error)

	mu      sync.Mutex
	handled []ports.HandleOptions
}

func (m *MockPredictionService) IsReady() bool { return m.Ready }

func (m *MockPredictionService) Status() ports.StatusReport {
	if m.StatusFunc != nil {
		return m.StatusFunc()
	}
	state := "not_serving"
	if m.Ready {
		state = "ready"
	}
	return ports.StatusReport{State: state, Ready: m.Ready}
}

func (m *MockPredictionService) ModelInfo() (*domain.ModelInfo, error) {
	if m.ModelInfoFunc != nil {
		return m.ModelInfoFunc()
	}
	return nil, domain.ErrClassifierUnavailable
}

func (m *MockPredictionService) Handle(ctx context.Context, frame domain.Frame, opts ports.HandleOptions) (domain.HandleResult, error) {
	m.record(opts)
	if m.HandleFunc != nil {
		return m.HandleFunc(ctx, frame, opts)
	}
	return domain.HandleResult{Status: domain.StatusSkipped}, nil
}

func (m *MockPredictionService) HandleLandmarks(ctx context.Context, out *domain.DetectorOutput, opts ports.HandleOptions) (domain.HandleResult, error) {
	m.record(opts)
	if m.HandleLandmarksFunc != nil {
		return m.HandleLandmarksFunc(ctx, out, opts)
	}
	return domain.HandleResult{Status: domain.StatusSkipped}, nil
}

func (m *MockPredictionService) SynthesizeText(ctx context.Context, text string, format domain.AudioFormat) (*domain.SynthesisResponse, error) {
	if m.SynthesizeTextFunc != nil {
		return m.SynthesizeTextFunc(ctx, text, format)
	}
	return nil, domain.ErrSynthesisFailed
}

func (m *MockPredictionService) OpenAudio(ctx context.Context, fileName string) ([]byte, error) {
	if m.OpenAudioFunc != nil {
		return m.OpenAudioFunc(ctx, fileName)
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockPredictionService) QueryLedger(ctx context.Context, filter domain.LedgerFilter) ([]domain.TranslationRecord, error) {
	if m.QueryLedgerFunc != nil {
		return m.QueryLedgerFunc(ctx, filter)
	}
	return nil, nil
}

func (m *MockPredictionService) LedgerStats(ctx context.Context) (*domain.LedgerStats, error) {
	if m.LedgerStatsFunc != nil {
		return m.LedgerStatsFunc(ctx)
	}
	return &domain.LedgerStats{}, nil
}

func (m *MockPredictionService) record(opts ports.HandleOptions) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handled = append(m.handled, opts)
}

// Handled returns the options of every Handle/HandleLandmarks call.
func (m *MockPredictionService) Handled() []ports.HandleOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.HandleOptions(nil), m.handled...)
}
