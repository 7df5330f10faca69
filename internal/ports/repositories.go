package ports

import (
	"context"
	"io"
	"time"

	"github.com/seu-repo/voz-visible/internal/domain"
)

// AudioStore persists synthesized audio by digest key. Get returns
// domain.ErrCacheMiss when the key is absent.
type AudioStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, entry *domain.CacheEntry) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	EvictOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	Size(ctx context.Context) (int64, error)
}

// TranslationSink appends ledger records.
type TranslationSink interface {
	Name() string
	Append(ctx context.Context, rec *domain.TranslationRecord) error
}

// TranslationRepository is the indexed sink. Queries and aggregates are only
// served from it.
type TranslationRepository interface {
	TranslationSink
	Query(ctx context.Context, filter domain.LedgerFilter) ([]domain.TranslationRecord, error)
	Stats(ctx context.Context) (*domain.LedgerStats, error)
}

// MessageQueue fans out recognition events.
type MessageQueue interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler func([]byte) error) error
	Close() error
}
