// Package cache shares the latest k-anonymity feed gate between the guard
// job and the API.
package cache

import (
	"context"
	"sync"
	"time"
)

// Suppression is one guard run's verdict. Keys are the CRITICAL buckets;
// Allowed are every other bucket the run counted. The feed serves only
// Allowed buckets, so anything the run never counted stays hidden.
type Suppression struct {
	Keys        []string  `json:"keys"`
	Allowed     []string  `json:"allowed"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	ComputedAt  time.Time `json:"computed_at"`
}

// AllowedSet returns Allowed as a lookup set.
func (s *Suppression) AllowedSet() map[string]bool {
	out := make(map[string]bool, len(s.Allowed))
	for _, k := range s.Allowed {
		out[k] = true
	}
	return out
}

func (s *Suppression) clone() *Suppression {
	cp := *s
	cp.Keys = append([]string(nil), s.Keys...)
	cp.Allowed = append([]string(nil), s.Allowed...)
	return &cp
}

// SuppressionCache stores the latest Suppression with an expiry. Get returns
// nil, nil when nothing is cached, the entry has expired or it was
// invalidated.
type SuppressionCache interface {
	Put(ctx context.Context, s *Suppression, ttl time.Duration) error
	Get(ctx context.Context) (*Suppression, error)
	Invalidate(ctx context.Context) error
	Close() error
}

// MemoryCache is the single-process SuppressionCache.
type MemoryCache struct {
	mu      sync.RWMutex
	entry   *Suppression
	expires time.Time
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{now: time.Now}
}

// SetClock overrides the time source.
func (m *MemoryCache) SetClock(now func() time.Time) { m.now = now }

func (m *MemoryCache) Put(_ context.Context, s *Suppression, ttl time.Duration) error {
	cp := s.clone()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry = cp
	m.expires = m.now().Add(ttl)
	return nil
}

func (m *MemoryCache) Get(_ context.Context) (*Suppression, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.entry == nil || !m.now().Before(m.expires) {
		return nil, nil
	}
	return m.entry.clone(), nil
}

func (m *MemoryCache) Invalidate(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry = nil
	return nil
}

func (m *MemoryCache) Close() error { return nil }

var _ SuppressionCache = (*MemoryCache)(nil)
