package cache

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/voz-visible/internal/domain"
)

// LocalStore keeps audio in memory. Used as a fallback when neither Redis nor
// the cache directory is usable. A positive maxAge evicts old entries
// periodically.
type LocalStore struct {
	data   map[string]domain.CacheEntry
	mu     sync.RWMutex
	maxAge time.Duration
	log    *zap.Logger
	stopCh chan struct{}
	once   sync.Once
}

func NewLocalStore(maxAge, cleanupInterval time.Duration, log *zap.Logger) *LocalStore {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	s := &LocalStore{
		data:   make(map[string]domain.CacheEntry),
		maxAge: maxAge,
		log:    log,
		stopCh: make(chan struct{}),
	}

	if maxAge > 0 {
		go s.cleanupLoop(cleanupInterval)
	}

	log.Info("Local in-memory audio cache initialized",
		zap.Duration("max_age", maxAge),
		zap.Duration("cleanup_interval", cleanupInterval),
	)
	return s
}

func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.data[key]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return entry.Audio, nil
}

func (s *LocalStore) Put(ctx context.Context, entry *domain.CacheEntry) error {
	e := *entry
	e.Audio = append([]byte(nil), entry.Audio...)
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	s.mu.Lock()
	s.data[e.Key] = e
	s.mu.Unlock()
	return nil
}

func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *LocalStore) EvictOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.data {
		if entry.CreatedAt.Before(cutoff) {
			delete(s.data, key)
			removed++
		}
	}
	return removed, nil
}

func (s *LocalStore) Size(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, entry := range s.data {
		total += int64(len(entry.Audio))
	}
	return total, nil
}

func (s *LocalStore) Close() error {
	s.once.Do(func() { close(s.stopCh) })
	return nil
}

func (s *LocalStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

func (s *LocalStore) cleanup() {
	expired, _ := s.EvictOlderThan(context.Background(), time.Now().Add(-s.maxAge))
	if expired > 0 {
		s.log.Debug("Audio cache cleanup completed", zap.Int("expired_entries", expired))
	}
}
