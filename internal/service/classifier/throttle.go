package classifier

import (
	"sync"
	"time"
)

// DefaultInterval is the minimum spacing between two classifications.
const DefaultInterval = 100 * time.Millisecond

// Throttle decides whether a classification may run for a key. Mark is only
// called after a successful classification.
type Throttle interface {
	Allow(key string, now time.Time) bool
	Mark(key string, now time.Time)
	Interval() time.Duration
}

// GlobalThrottle shares one interval across every caller and ignores the key.
type GlobalThrottle struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

func NewGlobalThrottle(interval time.Duration) *GlobalThrottle {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &GlobalThrottle{interval: interval}
}

func (g *GlobalThrottle) Allow(_ string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last.IsZero() || now.Sub(g.last) >= g.interval
}

func (g *GlobalThrottle) Mark(_ string, now time.Time) {
	g.mu.Lock()
	g.last = now
	g.mu.Unlock()
}

func (g *GlobalThrottle) Interval() time.Duration { return g.interval }

// SessionThrottle keeps one interval per key. An empty key falls back to a
// shared slot. Entries older than the interval cannot cause a skip, so Mark
// drops them at most once per interval.
type SessionThrottle struct {
	mu        sync.Mutex
	interval  time.Duration
	last      map[string]time.Time
	lastSweep time.Time
}

func NewSessionThrottle(interval time.Duration) *SessionThrottle {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &SessionThrottle{interval: interval, last: make(map[string]time.Time)}
}

func (s *SessionThrottle) Allow(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.last[key]
	return !ok || now.Sub(last) >= s.interval
}

func (s *SessionThrottle) Mark(key string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) >= s.interval {
		for k, t := range s.last {
			if now.Sub(t) >= s.interval {
				delete(s.last, k)
			}
		}
		s.lastSweep = now
	}
	s.last[key] = now
}

// Len is the number of keys currently tracked.
func (s *SessionThrottle) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.last)
}

func (s *SessionThrottle) Interval() time.Duration { return s.interval }

// Forget drops the state kept for a key, used when a camera session ends.
func (s *SessionThrottle) Forget(key string) {
	s.mu.Lock()
	delete(s.last, key)
	s.mu.Unlock()
}
