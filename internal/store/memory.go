package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ugobe007/pythh-sub021/internal/scoring"
)

// MemoryStore is an in-process Store used by tests and by the service when no
// database is configured. A single mutex stands in for row locks, so every
// method is atomic.
type MemoryStore struct {
	mu        sync.Mutex
	versions  map[string]*WeightVersion
	order     []string
	active    string
	startups  map[uuid.UUID]*Startup
	investors map[uuid.UUID]*Investor
	matches   []memMatch
	events    []*DiscoveryEvent
	now       func() time.Time
}

type memMatch struct {
	id         uuid.UUID
	startupID  uuid.UUID
	investorID uuid.UUID
	score      float64
	createdAt  time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		versions:  make(map[string]*WeightVersion),
		startups:  make(map[uuid.UUID]*Startup),
		investors: make(map[uuid.UUID]*Investor),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the timestamp source.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) copyVersion(name string) *WeightVersion {
	v := *m.versions[name]
	v.Weights = cloneWeights(v.Weights)
	v.Active = name == m.active
	if v.SupersededBy != nil {
		s := *v.SupersededBy
		v.SupersededBy = &s
	}
	if v.SupersededAt != nil {
		t := *v.SupersededAt
		v.SupersededAt = &t
	}
	return &v
}

func (m *MemoryStore) ActiveWeightVersion(_ context.Context) (*WeightVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == "" {
		return nil, ErrNoActiveVersion
	}
	return m.copyVersion(m.active), nil
}

func (m *MemoryStore) GetWeightVersion(_ context.Context, version string) (*WeightVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.versions[version]; !ok {
		return nil, nil
	}
	return m.copyVersion(version), nil
}

func (m *MemoryStore) ListWeightVersions(_ context.Context) ([]*WeightVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*WeightVersion, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.copyVersion(name))
	}
	return out, nil
}

func (m *MemoryStore) insertVersion(v *WeightVersion) {
	stored := *v
	stored.Weights = cloneWeights(v.Weights)
	stored.Immutable = true
	stored.CreatedAt = m.now()
	m.versions[v.Version] = &stored
	m.order = append(m.order, v.Version)
	m.active = v.Version

	v.CreatedAt = stored.CreatedAt
	v.Active = true
	v.Immutable = true
}

func (m *MemoryStore) InitWeightVersion(_ context.Context, v *WeightVersion) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != "" {
		return false, nil
	}
	if _, ok := m.versions[v.Version]; ok {
		return false, ErrVersionAlreadyExists
	}
	m.insertVersion(v)
	return true, nil
}

func (m *MemoryStore) SupersedeWeightVersion(_ context.Context, oldVersion string, next *WeightVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == "" || m.active != oldVersion {
		return ErrVersionNotActive
	}
	if _, ok := m.versions[next.Version]; ok {
		return ErrVersionAlreadyExists
	}

	m.insertVersion(next)
	old := m.versions[oldVersion]
	by := next.Version
	at := next.CreatedAt
	old.SupersededBy = &by
	old.SupersededAt = &at
	return nil
}

func (m *MemoryStore) ActivateWeightVersion(_ context.Context, target string) (*WeightVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.versions[target]; !ok {
		return nil, ErrVersionNotFound
	}
	m.active = target
	return m.copyVersion(target), nil
}

func (m *MemoryStore) CreateStartup(_ context.Context, s *Startup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Sectors == nil {
		s.Sectors = []string{}
	}
	now := m.now()
	s.CreatedAt, s.UpdatedAt = now, now
	m.startups[s.ID] = cloneStartup(s)
	return nil
}

func (m *MemoryStore) GetStartup(_ context.Context, id uuid.UUID) (*Startup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.startups[id]
	if !ok {
		return nil, nil
	}
	return cloneStartup(s), nil
}

func (m *MemoryStore) ListScoredStartupIDs(_ context.Context) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id, s := range m.startups {
		if s.Score != nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func (m *MemoryStore) UpdateStartupScoring(_ context.Context, id uuid.UUID, fn MutateFn) (*Startup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.startups[id]
	if !ok {
		return nil, ErrStartupNotFound
	}

	work := cloneStartup(s)
	if err := fn(work); err != nil {
		return nil, err
	}
	work.UpdatedAt = m.now()
	m.startups[id] = cloneStartup(work)
	return work, nil
}

func (m *MemoryStore) CreateInvestor(_ context.Context, inv *Investor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	cp := *inv
	m.investors[inv.ID] = &cp
	return nil
}

func (m *MemoryStore) CreateMatch(_ context.Context, nm NewMatch) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	at := m.now()
	m.matches = append(m.matches, memMatch{
		id: id, startupID: nm.StartupID, investorID: nm.InvestorID, score: nm.Score, createdAt: at,
	})
	if e := nm.Discovery; e != nil {
		e.ID = uuid.New()
		e.StartupID = nm.StartupID
		e.CreatedAt = at
		cp := *e
		m.events = append(m.events, &cp)
	}
	return id, nil
}

func (m *MemoryStore) ListMatches(_ context.Context, filter MatchFilter) ([]*MatchRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var out []*MatchRow
	for _, mm := range m.matches {
		if mm.createdAt.Before(filter.Since) {
			continue
		}
		s, ok := m.startups[mm.startupID]
		if !ok {
			continue
		}
		inv, ok := m.investors[mm.investorID]
		if !ok {
			continue
		}
		row := &MatchRow{
			MatchID:       mm.id,
			MatchScore:    mm.score,
			CreatedAt:     mm.createdAt,
			StartupID:     s.ID,
			StartupName:   s.Name,
			StartupPublic: s.PublicProfile,
			Sectors:       append([]string(nil), s.Sectors...),
			Stage:         s.Stage,
			Geography:     s.Geography,
			Investor:      *inv,
		}
		if s.Score != nil {
			row.StartupScore = s.Score.TotalScore
		}
		out = append(out, row)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) RecordDiscoveryEvent(_ context.Context, e *DiscoveryEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = m.now()
	}
	cp := *e
	m.events = append(m.events, &cp)
	return nil
}

func (m *MemoryStore) DiscoveryEvents(_ context.Context, since, until time.Time) ([]*DiscoveryEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*DiscoveryEvent
	for _, e := range m.events {
		if e.CreatedAt.Before(since) || !e.CreatedAt.Before(until) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func cloneWeights(w scoring.WeightConfig) scoring.WeightConfig {
	cw := make(map[string]float64, len(w.ComponentWeights))
	for k, v := range w.ComponentWeights {
		cw[k] = v
	}
	w.ComponentWeights = cw
	return w
}

func cloneStartup(s *Startup) *Startup {
	cp := *s
	cp.Sectors = append([]string(nil), s.Sectors...)
	if s.Features != nil {
		cp.Features = make(scoring.Features, len(s.Features))
		for k, v := range s.Features {
			cp.Features[k] = v
		}
	}
	if s.Signals != nil {
		cp.Signals = make(scoring.Signals, len(s.Signals))
		for k, v := range s.Signals {
			cp.Signals[k] = v
		}
	}
	if s.Score != nil {
		rec := *s.Score
		cp.Score = &rec
	}
	return &cp
}

var _ Store = (*MemoryStore)(nil)
