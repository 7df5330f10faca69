package audiocache

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"

	"github.com/seu-repo/voz-visible/internal/domain"
	"github.com/seu-repo/voz-visible/internal/observability/telemetry"
	"github.com/seu-repo/voz-visible/internal/ports"
)

// SynthesizeFunc produces audio for already normalized text.
type SynthesizeFunc func(ctx context.Context, text string) ([]byte, error)

var fileNamePattern = regexp.MustCompile(`^[0-9a-f]{64}\.mp3$`)

// Normalize trims surrounding whitespace. Two texts with the same normalized
// form share one cache entry.
func Normalize(text string) string {
	return strings.TrimSpace(text)
}

// Key is the hex blake2b-256 digest of the normalized text.
func Key(text string) string {
	sum := blake2b.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}

// KeyFromFileName validates a persisted audio name and returns its key.
func KeyFromFileName(name string) (string, bool) {
	if !fileNamePattern.MatchString(name) {
		return "", false
	}
	return strings.TrimSuffix(name, domain.AudioExtension), true
}

// Cache maps normalized text to synthesized audio. Concurrent misses for the
// same key run the synthesizer once.
type Cache struct {
	store   ports.AudioStore
	group   singleflight.Group
	timeout time.Duration
	now     func() time.Time
	log     *zap.Logger
}

func New(store ports.AudioStore, timeout time.Duration, log *zap.Logger) *Cache {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Cache{
		store:   store,
		timeout: timeout,
		now:     time.Now,
		log:     log,
	}
}

// GetOrSynthesize returns stored audio for text or synthesizes and stores it.
// Store read failures fall through to synthesis. A failed or empty synthesis
// returns domain.ErrSynthesisFailed and nothing is written.
func (c *Cache) GetOrSynthesize(ctx context.Context, text string, fn SynthesizeFunc) (domain.AudioResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "audiocache.GetOrSynthesize")
	defer span.End()

	normalized := Normalize(text)
	if normalized == "" {
		return domain.AudioResult{}, domain.ErrEmptyText
	}
	key := Key(normalized)
	span.SetAttributes(attribute.String("key", key))

	audio, err := c.store.Get(ctx, key)
	switch {
	case err == nil && len(audio) > 0:
		telemetry.TTSCacheRequests.WithLabelValues("hit").Inc()
		return domain.AudioResult{Source: domain.CacheHit, Key: key, Audio: audio}, nil
	case err != nil && !errors.Is(err, domain.ErrCacheMiss):
		c.log.Warn("Audio cache read failed, treating as miss",
			zap.String("key", key),
			zap.Error(err),
		)
	}

	telemetry.TTSCacheRequests.WithLabelValues("miss").Inc()

	// The flight is shared, so it must not die with whichever caller started it.
	flightCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		return c.synthesizeAndStore(flightCtx, key, normalized, fn)
	})
	if err != nil {
		telemetry.TTSCacheRequests.WithLabelValues("failed").Inc()
		return domain.AudioResult{}, err
	}

	return domain.AudioResult{Source: domain.CacheMiss, Key: key, Audio: v.([]byte)}, nil
}

func (c *Cache) synthesizeAndStore(ctx context.Context, key, text string, fn SynthesizeFunc) ([]byte, error) {
	// A flight that finished between our read and joining the group has
	// already stored the entry.
	if audio, err := c.store.Get(ctx, key); err == nil && len(audio) > 0 {
		return audio, nil
	}

	synthCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	audio, err := fn(synthCtx, text)
	telemetry.SynthesisLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		c.log.Warn("Speech synthesis failed", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrSynthesisFailed, err)
	}
	if len(audio) == 0 {
		c.log.Warn("Speech synthesis returned no audio", zap.String("key", key))
		return nil, fmt.Errorf("%w: empty audio", domain.ErrSynthesisFailed)
	}

	entry := &domain.CacheEntry{Key: key, Audio: audio, CreatedAt: c.now()}
	if err := c.store.Put(ctx, entry); err != nil {
		c.log.Warn("Audio cache write failed",
			zap.String("key", key),
			zap.Error(err),
		)
	}

	return audio, nil
}

// Open streams stored audio by its persisted file name.
func (c *Cache) Open(ctx context.Context, fileName string) (io.ReadCloser, error) {
	key, ok := KeyFromFileName(fileName)
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return c.store.Open(ctx, key)
}

// EvictOlderThan removes entries created more than age ago. An age of zero
// removes everything. Not called from the request path.
func (c *Cache) EvictOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := c.now().Add(-age)
	if age <= 0 {
		cutoff = c.now().Add(time.Hour)
	}
	n, err := c.store.EvictOlderThan(ctx, cutoff)
	if err != nil {
		return n, err
	}
	c.log.Info("Evicted cached audio", zap.Int("entries", n), zap.Duration("age", age))
	return n, nil
}

// Size is the total stored audio in bytes.
func (c *Cache) Size(ctx context.Context) (int64, error) {
	return c.store.Size(ctx)
}
