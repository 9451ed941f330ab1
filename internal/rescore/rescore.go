// Package rescore owns every write path that changes a scoring input. Each
// path recomputes the derived scores inside the same store transaction that
// persists the change.
package rescore

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/ugobe007/pythh-sub021/internal/hermes"
	"github.com/ugobe007/pythh-sub021/internal/metrics"
	"github.com/ugobe007/pythh-sub021/internal/scoring"
	"github.com/ugobe007/pythh-sub021/internal/store"
)

const (
	TriggerScore   = "score"
	TriggerSignals = "signals"
	TriggerDecay   = "decay"
)

var (
	ErrStartupNotFound = store.ErrStartupNotFound
	ErrNotScored       = errors.New("startup has no score yet")
	ErrNoFeatures      = errors.New("no feature record available")
	ErrUnknownSignal   = errors.New("unknown signal")
)

// FeatureSource supplies raw feature records when a caller does not.
type FeatureSource interface {
	Features(ctx context.Context, startupID uuid.UUID) (scoring.Features, error)
}

// SignalUpdate sets or clears one signal. A nil ObservedAt means now.
type SignalUpdate struct {
	Active     bool       `json:"active"`
	ObservedAt *time.Time `json:"observed_at,omitempty"`
}

type Service struct {
	store    store.Store
	scorer   *scoring.Scorer
	features FeatureSource
	emitter  *hermes.Emitter
	logger   *slog.Logger
	now      func() time.Time

	// Weight versions are immutable, so their configs cache forever.
	mu      sync.RWMutex
	configs map[string]scoring.WeightConfig
}

func NewService(s store.Store, scorer *scoring.Scorer, features FeatureSource, emitter *hermes.Emitter, logger *slog.Logger) *Service {
	return &Service{
		store:    s,
		scorer:   scorer,
		features: features,
		emitter:  emitter,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		configs:  make(map[string]scoring.WeightConfig),
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) config(ctx context.Context, version string) (scoring.WeightConfig, error) {
	s.mu.RLock()
	cfg, ok := s.configs[version]
	s.mu.RUnlock()
	if ok {
		return cfg, nil
	}

	v, err := s.store.GetWeightVersion(ctx, version)
	if err != nil {
		return scoring.WeightConfig{}, err
	}
	if v == nil {
		return scoring.WeightConfig{}, eris.Wrapf(store.ErrVersionNotFound, "rescore: %s", version)
	}
	s.mu.Lock()
	s.configs[version] = v.Weights
	s.mu.Unlock()
	return v.Weights, nil
}

// Score computes a fresh base score with the active weight version. When
// features is nil the feature source is consulted; when that is unavailable
// the stored feature record is reused.
func (s *Service) Score(ctx context.Context, id uuid.UUID, features scoring.Features) (*store.Startup, error) {
	active, err := s.store.ActiveWeightVersion(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.configs[active.Version] = active.Weights
	s.mu.Unlock()

	if features == nil && s.features != nil {
		features, err = s.features.Features(ctx, id)
		if err != nil {
			return nil, eris.Wrapf(err, "rescore: fetch features for %s", id)
		}
	}

	at := s.now()
	st, err := s.store.UpdateStartupScoring(ctx, id, func(cur *store.Startup) error {
		if features != nil {
			cur.Features = features
		}
		if len(cur.Features) == 0 {
			return ErrNoFeatures
		}
		rec := s.scorer.Evaluate(active.Version, active.Weights, cur.Features, cur.Signals, at)
		cur.Score = &rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recorded(st, TriggerScore)
	return st, nil
}

// UpdateSignals applies signal changes and, for scored startups, recomputes
// the multiplier and enhanced score in the same transaction. The base score
// and its weights version are untouched.
func (s *Service) UpdateSignals(ctx context.Context, id uuid.UUID, updates map[scoring.Signal]SignalUpdate) (*store.Startup, error) {
	known := make(map[scoring.Signal]bool)
	for _, sig := range scoring.KnownSignals() {
		known[sig] = true
	}
	for sig := range updates {
		if !known[sig] {
			return nil, eris.Wrapf(ErrUnknownSignal, "rescore: %q", sig)
		}
	}

	version, caps, err := s.capsFor(ctx, id)
	if err != nil {
		return nil, err
	}

	at := s.now()
	st, err := s.store.UpdateStartupScoring(ctx, id, func(cur *store.Startup) error {
		if cur.Signals == nil {
			cur.Signals = scoring.Signals{}
		}
		for sig, u := range updates {
			observed := at
			if u.ObservedAt != nil {
				observed = u.ObservedAt.UTC()
			}
			if !u.Active {
				observed = cur.Signals[sig].ObservedAt
			}
			cur.Signals[sig] = scoring.SignalState{Active: u.Active, ObservedAt: observed}
		}
		return s.reweight(cur, version, caps, at)
	})
	if err != nil {
		return nil, err
	}
	if st.Score != nil {
		s.recorded(st, TriggerSignals)
	}
	return st, nil
}

// RefreshDecay re-ages the multiplier of one scored startup.
func (s *Service) RefreshDecay(ctx context.Context, id uuid.UUID) (*store.Startup, error) {
	version, caps, err := s.capsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	if caps == nil {
		return nil, eris.Wrapf(ErrNotScored, "rescore: %s", id)
	}

	at := s.now()
	st, err := s.store.UpdateStartupScoring(ctx, id, func(cur *store.Startup) error {
		return s.reweight(cur, version, caps, at)
	})
	if err != nil {
		return nil, err
	}
	s.recorded(st, TriggerDecay)
	return st, nil
}

// RefreshAll re-ages every scored startup. Per-startup failures are logged
// and counted.
func (s *Service) RefreshAll(ctx context.Context) (refreshed, failed int, err error) {
	ids, err := s.store.ListScoredStartupIDs(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			return refreshed, failed, ctx.Err()
		}
		if _, err := s.RefreshDecay(ctx, id); err != nil {
			failed++
			s.logger.Warn("decay refresh failed", "startup_id", id, "error", err)
			continue
		}
		refreshed++
	}
	return refreshed, failed, nil
}

// capsFor resolves the bonus caps of the version that produced the startup's
// current score. Nil caps means the startup is unscored.
func (s *Service) capsFor(ctx context.Context, id uuid.UUID) (string, *scoring.BonusCaps, error) {
	cur, err := s.store.GetStartup(ctx, id)
	if err != nil {
		return "", nil, err
	}
	if cur == nil {
		return "", nil, eris.Wrapf(ErrStartupNotFound, "rescore: %s", id)
	}
	if cur.Score == nil {
		return "", nil, nil
	}
	cfg, err := s.config(ctx, cur.Score.WeightsVersion)
	if err != nil {
		return "", nil, err
	}
	return cur.Score.WeightsVersion, &cfg.BonusCaps, nil
}

func (s *Service) reweight(cur *store.Startup, version string, caps *scoring.BonusCaps, at time.Time) error {
	if cur.Score == nil {
		return nil
	}
	if caps == nil || cur.Score.WeightsVersion != version {
		// Rescored between the snapshot and the lock; the caller retries.
		return eris.Wrapf(store.ErrConflict, "rescore: %s rescored concurrently", cur.ID)
	}
	rec := s.scorer.Reweight(*cur.Score, *caps, cur.Signals, at)
	cur.Score = &rec
	return nil
}

func (s *Service) recorded(st *store.Startup, trigger string) {
	rec := st.Score
	metrics.ScoresComputed.WithLabelValues(rec.WeightsVersion, trigger).Inc()
	metrics.EnhancedScore.Observe(rec.EnhancedScore)
	s.emitter.Emit(hermes.SubjectStartupRescored(st.ID.String()), hermes.StartupRescoredEvent{
		StartupID:               st.ID.String(),
		Trigger:                 trigger,
		WeightsVersion:          rec.WeightsVersion,
		TotalScore:              rec.TotalScore,
		EnhancedScore:           rec.EnhancedScore,
		PsychologicalMultiplier: rec.PsychologicalMultiplier,
		Timestamp:               rec.ComputedAt,
	})
}
