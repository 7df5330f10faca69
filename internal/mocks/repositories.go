package mocks

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/seu-repo/voz-visible/internal/domain"
)

// MockAudioStore is an in-memory AudioStore whose behavior can be overridden
type MockAudioStore struct {
	mu      sync.Mutex
	entries map[string]domain.CacheEntry
	puts    int

	GetFunc func(ctx context.Context, key string) ([]byte, error)
	PutFunc func(ctx context.Context, entry *domain.CacheEntry) error
}

func NewMockAudioStore() *MockAudioStore {
	return &MockAudioStore{entries: make(map[string]domain.CacheEntry)}
}

func (m *MockAudioStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return e.Audio, nil
}

func (m *MockAudioStore) Put(ctx context.Context, entry *domain.CacheEntry) error {
	m.mu.Lock()
	m.puts++
	m.mu.Unlock()
	if m.PutFunc != nil {
		return m.PutFunc(ctx, entry)
	}
	m.mu.Lock()
	m.entries[entry.Key] = *entry
	m.mu.Unlock()
	return nil
}

func (m *MockAudioStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	audio, err := m.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(audio)), nil
}

func (m *MockAudioStore) EvictOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.entries {
		if e.CreatedAt.Before(cutoff) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

func (m *MockAudioStore) Size(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, e := range m.entries {
		total += int64(len(e.Audio))
	}
	return total, nil
}

// Seed stores an entry directly
func (m *MockAudioStore) Seed(entry domain.CacheEntry) {
	m.mu.Lock()
	m.entries[entry.Key] = entry
	m.mu.Unlock()
}

// Puts returns how many writes were attempted
func (m *MockAudioStore) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

// Len returns the number of stored entries
func (m *MockAudioStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// MockTranslationSink is a mock flat sink
type MockTranslationSink struct {
	mu         sync.Mutex
	Records    []domain.TranslationRecord
	SinkName   string
	AppendFunc func(ctx context.Context, rec *domain.TranslationRecord) error
}

func (m *MockTranslationSink) Name() string {
	if m.SinkName == "" {
		return "flat"
	}
	return m.SinkName
}

func (m *MockTranslationSink) Append(ctx context.Context, rec *domain.TranslationRecord) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, rec)
	}
	m.mu.Lock()
	m.Records = append(m.Records, *rec)
	m.mu.Unlock()
	return nil
}

// Count returns the number of appended records
func (m *MockTranslationSink) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Records)
}

// MockTranslationRepository is an in-memory indexed sink
type MockTranslationRepository struct {
	mu      sync.Mutex
	records []domain.TranslationRecord
	nextID  uint

	AppendFunc func(ctx context.Context, rec *domain.TranslationRecord) error
	QueryFunc  func(ctx context.Context, filter domain.LedgerFilter) ([]domain.TranslationRecord, error)
	StatsFunc  func(ctx context.Context) (*domain.LedgerStats, error)
}

func NewMockTranslationRepository() *MockTranslationRepository {
	return &MockTranslationRepository{}
}

func (m *MockTranslationRepository) Name() string { return "structured" }

func (m *MockTranslationRepository) Append(ctx context.Context, rec *domain.TranslationRecord) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	rec.ID = m.nextID
	m.records = append(m.records, *rec)
	return nil
}

func (m *MockTranslationRepository) Query(ctx context.Context, filter domain.LedgerFilter) ([]domain.TranslationRecord, error) {
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, filter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []domain.TranslationRecord{}
	for _, r := range m.records {
		if filter.SessionID != "" && (r.SessionID == nil || *r.SessionID != filter.SessionID) {
			continue
		}
		if filter.Start != nil && r.Timestamp.Before(*filter.Start) {
			continue
		}
		if filter.End != nil && r.Timestamp.After(*filter.End) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })

	limit := filter.Limit
	if limit <= 0 {
		limit = domain.DefaultLedgerLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockTranslationRepository) Stats(ctx context.Context) (*domain.LedgerStats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &domain.LedgerStats{TotalCount: int64(len(m.records))}
	if len(m.records) == 0 {
		return stats, nil
	}
	var conf, rt float64
	last := m.records[0]
	for _, r := range m.records {
		conf += r.Confidence
		rt += float64(r.ResponseTimeMs)
		if !r.Timestamp.Before(last.Timestamp) {
			last = r
		}
	}
	stats.MeanConfidence = conf / float64(len(m.records))
	stats.MeanResponseTimeMs = rt / float64(len(m.records))
	stats.LastRecord = &last
	return stats, nil
}

// Count returns the number of stored records
func (m *MockTranslationRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
