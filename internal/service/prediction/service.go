package prediction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/seu-repo/voz-visible/internal/domain"
	"github.com/seu-repo/voz-visible/internal/observability/telemetry"
	"github.com/seu-repo/voz-visible/internal/ports"
	"github.com/seu-repo/voz-visible/internal/service/audiocache"
	"github.com/seu-repo/voz-visible/internal/service/classifier"
	"github.com/seu-repo/voz-visible/internal/service/features"
	"github.com/seu-repo/voz-visible/internal/service/ledger"
)

// Config holds per-deployment orchestrator settings.
type Config struct {
	Locale         string
	Slow           bool
	DetectTimeout  time.Duration
	AudioURLPrefix string
}

// Dependencies are the already constructed capabilities the orchestrator
// composes. Detector, Synthesizer, Cache and Ledger may be nil.
type Dependencies struct {
	Builder     *features.Builder
	Classifier  *classifier.Throttled
	Detector    ports.LandmarkDetector
	Synthesizer ports.SpeechSynthesizer
	Cache       *audiocache.Cache
	Ledger      *ledger.Ledger
	// Probes are run by Initialize against the synthesis side (TTS backend,
	// audio store). A failing probe degrades the service.
	Probes []ports.HealthChecker
}

// Service sequences detection, classification, synthesis and recording for
// every request and owns the readiness state.
type Service struct {
	deps Dependencies
	cfg  Config
	log  *zap.Logger

	initMu   sync.Mutex
	state    atomic.Int32
	synthOK  atomic.Bool
	ledgerOK atomic.Bool

	now func() time.Time
}

func NewService(deps Dependencies, cfg Config, log *zap.Logger) *Service {
	if deps.Builder == nil {
		deps.Builder = features.NewBuilder()
	}
	if cfg.Locale == "" {
		cfg.Locale = "es-co"
	}
	if cfg.DetectTimeout <= 0 {
		cfg.DetectTimeout = 5 * time.Second
	}
	if cfg.AudioURLPrefix == "" {
		cfg.AudioURLPrefix = "/api/tts/file/"
	}
	s := &Service{
		deps: deps,
		cfg:  cfg,
		log:  log,
		now:  time.Now,
	}
	s.setState(StateUninitialized)
	return s
}

var _ ports.PredictionService = (*Service)(nil)

// Initialize checks every capability and moves out of Uninitialized. It
// returns whether predictions can be served.
func (s *Service) Initialize(ctx context.Context) bool {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	if s.deps.Classifier == nil || !s.deps.Classifier.Available() {
		s.log.Error("Classifier not loaded, service will not serve predictions")
		s.setState(StateNotServing)
		return false
	}
	if s.deps.Detector == nil {
		s.log.Error("No landmark detector configured")
		s.setState(StateNotServing)
		return false
	}
	if hc, ok := s.deps.Detector.(ports.HealthChecker); ok {
		if err := hc.Check(ctx); err != nil {
			s.log.Error("Landmark detector failed its check", zap.Error(err))
			s.setState(StateNotServing)
			return false
		}
	}

	synthOK := s.deps.Synthesizer != nil && s.deps.Cache != nil
	for _, p := range s.deps.Probes {
		if err := p.Check(ctx); err != nil {
			s.log.Warn("Synthesis dependency failed its check", zap.Error(err))
			synthOK = false
		}
	}
	s.synthOK.Store(synthOK)
	s.ledgerOK.Store(s.deps.Ledger != nil)

	s.setState(s.servingState())
	s.log.Info("Prediction service initialized",
		zap.String("state", s.State().String()),
		zap.Int("classes", len(s.deps.Classifier.Vocabulary())),
		zap.Duration("interval", s.deps.Classifier.Interval()),
	)
	return s.IsReady()
}

// IsReady reports whether predictions are being served.
func (s *Service) IsReady() bool {
	return s.State().Serving()
}

func (s *Service) State() State {
	return State(s.state.Load())
}

func (s *Service) setState(st State) {
	prev := State(s.state.Swap(int32(st)))
	s.announce(prev, st)
}

func (s *Service) announce(prev, st State) {
	telemetry.OrchestratorState.Set(float64(st))
	if prev != st && s.log != nil {
		s.log.Info("Orchestrator state changed",
			zap.String("from", prev.String()),
			zap.String("to", st.String()),
		)
	}
}

// refreshState recomputes Ready or Degraded from the side-effect flags. It
// never leaves Uninitialized or NotServing, including when another request
// moves to NotServing concurrently.
func (s *Service) refreshState() {
	for {
		cur := s.State()
		if !cur.Serving() {
			return
		}
		next := s.servingState()
		if next == cur {
			return
		}
		if s.state.CompareAndSwap(int32(cur), int32(next)) {
			s.announce(cur, next)
			return
		}
	}
}

func (s *Service) servingState() State {
	if !s.synthOK.Load() || !s.ledgerOK.Load() {
		return StateDegraded
	}
	return StateReady
}

// Status is the readiness payload.
func (s *Service) Status() ports.StatusReport {
	st := s.State()
	report := ports.StatusReport{
		State:     st.String(),
		Message:   st.Message(),
		Ready:     st.Serving(),
		Timestamp: s.now().UTC().Format(time.RFC3339),
	}
	if info, err := s.ModelInfo(); err == nil {
		report.ModelInfo = info
	}
	return report
}

// ModelInfo describes the loaded vocabulary and the prediction rate.
func (s *Service) ModelInfo() (*domain.ModelInfo, error) {
	c := s.deps.Classifier
	if c == nil || !c.Available() {
		return nil, domain.ErrClassifierUnavailable
	}
	classes := c.Vocabulary()
	fps := 0.0
	if iv := c.Interval(); iv > 0 {
		fps = float64(time.Second) / float64(iv)
	}
	return &domain.ModelInfo{
		Classes:       append([]string(nil), classes...),
		NumClasses:    len(classes),
		NumFeatures:   domain.FeatureCount,
		PredictionFPS: fps,
	}, nil
}

// Handle runs the whole pipeline for one encoded frame. Skipped and
// Unavailable are results, not errors. The returned error is always
// domain.ErrPredictionFailed.
func (s *Service) Handle(ctx context.Context, frame domain.Frame, opts ports.HandleOptions) (domain.HandleResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "prediction.Handle")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", opts.SessionID))

	if !s.IsReady() {
		telemetry.PredictionsTotal.WithLabelValues("unavailable").Inc()
		return domain.HandleResult{Status: domain.StatusUnavailable}, nil
	}

	// Skip the detector call when the throttle would withhold the result anyway.
	if !s.deps.Classifier.Due(opts.SessionID, s.now()) {
		telemetry.PredictionsTotal.WithLabelValues("skipped").Inc()
		return domain.HandleResult{Status: domain.StatusSkipped}, nil
	}

	detectCtx, cancel := context.WithTimeout(ctx, s.cfg.DetectTimeout)
	out, err := s.deps.Detector.Detect(detectCtx, frame)
	cancel()
	if err != nil {
		telemetry.PredictionsTotal.WithLabelValues("failed").Inc()
		span.RecordError(err)
		s.log.Error("Landmark detection failed", zap.Error(err))
		return domain.HandleResult{}, fmt.Errorf("%w: %w: %v", domain.ErrPredictionFailed, domain.ErrDetectionFailed, err)
	}

	return s.handleLandmarks(ctx, out, opts)
}

// HandleLandmarks runs the pipeline for detector output produced upstream.
func (s *Service) HandleLandmarks(ctx context.Context, out *domain.DetectorOutput, opts ports.HandleOptions) (domain.HandleResult, error) {
	if !s.IsReady() {
		telemetry.PredictionsTotal.WithLabelValues("unavailable").Inc()
		return domain.HandleResult{Status: domain.StatusUnavailable}, nil
	}
	return s.handleLandmarks(ctx, out, opts)
}

func (s *Service) handleLandmarks(ctx context.Context, out *domain.DetectorOutput, opts ports.HandleOptions) (domain.HandleResult, error) {
	start := time.Now()

	vec := s.deps.Builder.Build(out)

	outcome, err := s.deps.Classifier.Classify(ctx, &vec, opts.SessionID, s.now())
	switch {
	case errors.Is(err, domain.ErrClassifierUnavailable):
		s.setState(StateNotServing)
		telemetry.PredictionsTotal.WithLabelValues("unavailable").Inc()
		return domain.HandleResult{Status: domain.StatusUnavailable}, nil
	case err != nil:
		telemetry.PredictionsTotal.WithLabelValues("failed").Inc()
		if !errors.Is(err, domain.ErrPredictionFailed) {
			err = fmt.Errorf("%w: %v", domain.ErrPredictionFailed, err)
		}
		return domain.HandleResult{}, err
	}

	if outcome.Kind == domain.OutcomeSkipped {
		telemetry.PredictionsTotal.WithLabelValues("skipped").Inc()
		return domain.HandleResult{Status: domain.StatusSkipped}, nil
	}

	pred := outcome.Prediction
	resp := &domain.PredictionResponse{
		Label:      pred.Label,
		Confidence: pred.Confidence,
	}

	if audio, err := s.audioFor(ctx, pred.Label); err == nil {
		resp.Audio = audio.Audio
		resp.AudioMIME = domain.AudioMIME
	}

	if opts.IncludeExtras {
		resp.Landmarks = out
	}

	elapsed := time.Since(start)
	resp.Timestamp = s.now()
	resp.ResponseTimeMs = math.Round(float64(elapsed.Microseconds())/10) / 100

	if s.deps.Ledger != nil {
		report := s.deps.Ledger.Record(ctx, &domain.TranslationRecord{
			Timestamp:      resp.Timestamp,
			Text:           pred.Label,
			Confidence:     pred.Confidence,
			ResponseTimeMs: elapsed.Milliseconds(),
			SessionID:      domain.OptionalString(opts.SessionID),
			UserID:         domain.OptionalString(opts.UserID),
		})
		s.ledgerOK.Store(report.StoreErr == nil)
	}
	s.refreshState()

	telemetry.PredictionsTotal.WithLabelValues("served").Inc()
	telemetry.PredictionLatency.Observe(elapsed.Seconds())

	return domain.HandleResult{Status: domain.StatusServed, Response: resp}, nil
}

// audioFor looks up or synthesizes the spoken form of a label. Failures only
// degrade the service.
func (s *Service) audioFor(ctx context.Context, label string) (domain.AudioResult, error) {
	if s.deps.Cache == nil || s.deps.Synthesizer == nil {
		return domain.AudioResult{}, domain.ErrSynthesisFailed
	}
	res, err := s.deps.Cache.GetOrSynthesize(ctx, label, s.synthesize)
	s.synthOK.Store(err == nil)
	if err != nil {
		s.log.Warn("Responding without audio", zap.String("word", label), zap.Error(err))
	}
	return res, err
}

func (s *Service) synthesize(ctx context.Context, text string) ([]byte, error) {
	return s.deps.Synthesizer.Synthesize(ctx, text, s.cfg.Locale, s.cfg.Slow)
}

// SynthesizeText speaks arbitrary text through the same cache, without the
// classifier.
func (s *Service) SynthesizeText(ctx context.Context, text string, format domain.AudioFormat) (*domain.SynthesisResponse, error) {
	normalized := strings.TrimSpace(text)
	if normalized == "" {
		return nil, domain.ErrEmptyText
	}
	if s.deps.Cache == nil || s.deps.Synthesizer == nil {
		return nil, domain.ErrSynthesisFailed
	}

	res, err := s.deps.Cache.GetOrSynthesize(ctx, normalized, s.synthesize)
	if err != nil {
		return nil, err
	}

	out := &domain.SynthesisResponse{
		Text:      normalized,
		Cached:    res.Source == domain.CacheHit,
		Timestamp: s.now(),
	}
	if format == domain.AudioFormatURL {
		out.URL = s.cfg.AudioURLPrefix + res.FileName()
	} else {
		out.Audio = res.Audio
	}
	return out, nil
}

// OpenAudio returns cached audio by its persisted file name.
func (s *Service) OpenAudio(ctx context.Context, fileName string) ([]byte, error) {
	if s.deps.Cache == nil {
		return nil, domain.ErrCacheMiss
	}
	rc, err := s.deps.Cache.Open(ctx, fileName)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (s *Service) QueryLedger(ctx context.Context, filter domain.LedgerFilter) ([]domain.TranslationRecord, error) {
	if s.deps.Ledger == nil {
		return nil, domain.ErrLedgerUnavailable
	}
	return s.deps.Ledger.Query(ctx, filter)
}

func (s *Service) LedgerStats(ctx context.Context) (*domain.LedgerStats, error) {
	if s.deps.Ledger == nil {
		return nil, domain.ErrLedgerUnavailable
	}
	return s.deps.Ledger.Stats(ctx)
}
