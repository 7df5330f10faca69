package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/seu-repo/voz-visible/internal/domain"
	"github.com/seu-repo/voz-visible/internal/observability/telemetry"
	"github.com/seu-repo/voz-visible/internal/ports"
)

// DefaultTimeout bounds a single inference call.
const DefaultTimeout = 2 * time.Second

// Throttled wraps a classifier with a minimum interval between inferences.
// Classify calls are serialized so two callers cannot both pass the throttle
// in the same interval.
type Throttled struct {
	mu       sync.Mutex
	model    ports.Classifier
	throttle Throttle
	timeout  time.Duration
	log      *zap.Logger
}

func NewThrottled(model ports.Classifier, throttle Throttle, timeout time.Duration, log *zap.Logger) *Throttled {
	if throttle == nil {
		throttle = NewGlobalThrottle(DefaultInterval)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Throttled{
		model:    model,
		throttle: throttle,
		timeout:  timeout,
		log:      log,
	}
}

// Available reports whether a model with a non-empty vocabulary is loaded.
func (t *Throttled) Available() bool {
	return t.model != nil && len(t.model.Vocabulary()) > 0
}

// Vocabulary is the loaded class list in output order, or nil without a model.
func (t *Throttled) Vocabulary() []string {
	if t.model == nil {
		return nil
	}
	return t.model.Vocabulary()
}

// Interval is the configured minimum spacing.
func (t *Throttled) Interval() time.Duration {
	return t.throttle.Interval()
}

// Due is an advisory probe: it reports whether Classify would currently run
// the model for key. The authoritative check happens inside Classify.
func (t *Throttled) Due(key string, now time.Time) bool {
	return t.throttle.Allow(key, now)
}

// Classify runs the model unless the throttle withholds it. Availability is
// checked before throttling.
func (t *Throttled) Classify(ctx context.Context, vec *domain.FeatureVector, key string, now time.Time) (domain.Outcome, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "classifier.Classify")
	defer span.End()

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.Available() {
		return domain.Outcome{}, domain.ErrClassifierUnavailable
	}

	if !t.throttle.Allow(key, now) {
		span.SetAttributes(attribute.Bool("skipped", true))
		return domain.Skipped(), nil
	}

	inferCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	scores, err := t.model.Infer(inferCtx, vec)
	if err != nil {
		if errors.Is(err, domain.ErrClassifierUnavailable) {
			return domain.Outcome{}, err
		}
		t.log.Error("Inference failed", zap.Error(err))
		return domain.Outcome{}, fmt.Errorf("%w: %v", domain.ErrPredictionFailed, err)
	}

	vocab := t.model.Vocabulary()
	if len(scores) != len(vocab) {
		return domain.Outcome{}, fmt.Errorf("%w: model returned %d scores for %d classes",
			domain.ErrPredictionFailed, len(scores), len(vocab))
	}

	idx, confidence := ArgMax(scores)
	t.throttle.Mark(key, now)

	span.SetAttributes(
		attribute.String("label", vocab[idx]),
		attribute.Float64("confidence", confidence),
	)

	return domain.Classified(domain.PredictionResult{
		Label:      vocab[idx],
		Confidence: confidence,
		ProducedAt: now,
	}), nil
}

// ArgMax returns the index and probability of the best class. Ties resolve to
// the lowest index. Scores that are not already a probability distribution
// are passed through softmax first.
func ArgMax(scores []float32) (int, float64) {
	probs := make([]float64, len(scores))
	for i, s := range scores {
		probs[i] = float64(s)
	}
	if !isDistribution(probs) {
		probs = softmax(probs)
	}

	best := 0
	for i := 1; i < len(probs); i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}
	return best, clamp01(probs[best])
}

func isDistribution(p []float64) bool {
	var sum float64
	for _, v := range p {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return false
		}
		sum += v
	}
	return math.Abs(sum-1) <= 1e-3
}

func softmax(x []float64) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	peak := math.Inf(-1)
	for _, v := range x {
		if !math.IsNaN(v) && v > peak {
			peak = v
		}
	}
	var sum float64
	for i, v := range x {
		if math.IsNaN(v) {
			continue
		}
		out[i] = math.Exp(v - peak)
		sum += out[i]
	}
	if sum == 0 || math.IsInf(sum, 0) {
		return out
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
