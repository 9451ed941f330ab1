// Package guard runs the recurring background jobs: the k-anonymity report and
// the decay refresh.
package guard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ugobe007/pythh-sub021/internal/cache"
	"github.com/ugobe007/pythh-sub021/internal/hermes"
	"github.com/ugobe007/pythh-sub021/internal/metrics"
	"github.com/ugobe007/pythh-sub021/internal/privacy"
	"github.com/ugobe007/pythh-sub021/internal/rescore"
	"github.com/ugobe007/pythh-sub021/internal/store"
)

type Config struct {
	// Interval between k-anonymity runs.
	Interval time.Duration
	// WindowDays is the trailing window each run covers.
	WindowDays int
	// DecayInterval between decay refreshes. Zero disables the loop.
	DecayInterval time.Duration
}

// Report is one k-anonymity run.
type Report struct {
	Window     privacy.Window            `json:"window"`
	Buckets    []privacy.BucketRisk      `json:"buckets"`
	Counts     map[privacy.RiskLevel]int `json:"counts"`
	ComputedAt time.Time                 `json:"computed_at"`
}

type Guard struct {
	store   store.Store
	cache   cache.SuppressionCache
	rescore *rescore.Service
	emitter *hermes.Emitter
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time

	// serializes publishing runs so a stale run cannot overwrite a newer set
	runMu sync.Mutex

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func New(s store.Store, c cache.SuppressionCache, r *rescore.Service, e *hermes.Emitter, cfg Config, logger *slog.Logger) *Guard {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 28
	}
	return &Guard{
		store:   s,
		cache:   c,
		rescore: r,
		emitter: e,
		cfg:     cfg,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		stopCh:  make(chan struct{}),
	}
}

// SetClock overrides the time source.
func (g *Guard) SetClock(now func() time.Time) { g.now = now }

// Start runs one k-anonymity pass immediately, then launches the loops.
func (g *Guard) Start(ctx context.Context) {
	if _, err := g.RunKAnon(ctx); err != nil {
		g.logger.Error("initial k-anonymity run failed", "error", err)
	}

	g.wg.Add(1)
	go g.loop(ctx, g.cfg.Interval, func(ctx context.Context) {
		if _, err := g.RunKAnon(ctx); err != nil {
			g.logger.Error("k-anonymity run failed", "error", err)
		}
	})

	if g.cfg.DecayInterval > 0 && g.rescore != nil {
		g.wg.Add(1)
		go g.loop(ctx, g.cfg.DecayInterval, g.RunDecay)
	}
}

func (g *Guard) Stop() {
	g.stopOnce.Do(func() { close(g.stopCh) })
	g.wg.Wait()
}

func (g *Guard) loop(ctx context.Context, every time.Duration, run func(context.Context)) {
	defer g.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-g.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			run(ctx)
		}
	}
}

// Compute builds the report for the trailing window of days ending now. It
// only reads.
func (g *Guard) Compute(ctx context.Context, days int) (*Report, error) {
	if days <= 0 {
		days = g.cfg.WindowDays
	}
	now := g.now()
	w := privacy.TrailingWindow(now, days)

	events, err := g.store.DiscoveryEvents(ctx, w.Start, w.End)
	if err != nil {
		return nil, eris.Wrap(err, "guard: load discovery events")
	}
	risks := privacy.ComputeBucketRisk(events, w)
	return &Report{
		Window:     w,
		Buckets:    risks,
		Counts:     privacy.CountByLevel(risks),
		ComputedAt: now,
	}, nil
}

// RunKAnon computes the report over the configured window and publishes it:
// the feed gate goes to the suppression cache, counts to the gauges, and
// the report to the event bus.
func (g *Guard) RunKAnon(ctx context.Context) (*Report, error) {
	g.runMu.Lock()
	defer g.runMu.Unlock()

	start := time.Now()
	report, err := g.publish(ctx)
	metrics.KAnonRunDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.KAnonRuns.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.KAnonRuns.WithLabelValues("ok").Inc()
	return report, nil
}

func (g *Guard) publish(ctx context.Context) (*Report, error) {
	report, err := g.Compute(ctx, g.cfg.WindowDays)
	if err != nil {
		return nil, err
	}

	if err := g.cache.Put(ctx, gateFor(report), 2*g.cfg.Interval); err != nil {
		return nil, eris.Wrap(err, "guard: store suppression set")
	}

	counts := make(map[string]int, len(report.Counts))
	for level, n := range report.Counts {
		metrics.KAnonBuckets.WithLabelValues(string(level)).Set(float64(n))
		counts[string(level)] = n
	}

	flagged := make([]hermes.KAnonBucket, 0)
	for _, r := range report.Buckets {
		if r.RiskLevel == privacy.RiskOK {
			continue
		}
		flagged = append(flagged, hermes.KAnonBucket{
			WeekBucket:     r.Week,
			Geo:            r.Geo,
			Sector:         r.Sector,
			Stage:          r.Stage,
			KValue:         r.K,
			AlertLevel:     string(r.RiskLevel),
			ActionRequired: r.Action,
		})
	}
	g.emitter.Emit(hermes.SubjectKAnonReport, hermes.KAnonReportEvent{
		WindowStart: report.Window.Start,
		WindowEnd:   report.Window.End,
		Counts:      counts,
		Flagged:     flagged,
		Timestamp:   report.ComputedAt,
	})

	g.logger.Info("k-anonymity report",
		"buckets", len(report.Buckets),
		"critical", report.Counts[privacy.RiskCritical],
		"high", report.Counts[privacy.RiskHigh],
		"window_days", g.cfg.WindowDays,
	)
	return report, nil
}

// Gate returns the current feed gate. When the cache is empty, expired or
// invalidated a run is made on the spot. Any failure is returned so callers
// can refuse to serve rather than show an ungated feed.
func (g *Guard) Gate(ctx context.Context) (*cache.Suppression, error) {
	s, err := g.cache.Get(ctx)
	if err != nil {
		g.logger.Warn("suppression cache read failed, recomputing", "error", err)
	}
	if s != nil {
		return s, nil
	}

	report, err := g.RunKAnon(ctx)
	if err != nil {
		return nil, err
	}
	return gateFor(report), nil
}

// Invalidate drops the cached gate. New matches call it so the next feed
// read counts them.
func (g *Guard) Invalidate(ctx context.Context) error {
	if err := g.cache.Invalidate(ctx); err != nil {
		return eris.Wrap(err, "guard: invalidate suppression set")
	}
	return nil
}

func gateFor(report *Report) *cache.Suppression {
	keys := make([]string, 0)
	allowed := make([]string, 0, len(report.Buckets))
	for _, r := range report.Buckets {
		if r.RiskLevel == privacy.RiskCritical {
			keys = append(keys, r.BucketKey.String())
		} else {
			allowed = append(allowed, r.BucketKey.String())
		}
	}
	return &cache.Suppression{
		Keys:        keys,
		Allowed:     allowed,
		WindowStart: report.Window.Start,
		WindowEnd:   report.Window.End,
		ComputedAt:  report.ComputedAt,
	}
}

// RunDecay re-ages every scored startup's multiplier.
func (g *Guard) RunDecay(ctx context.Context) {
	refreshed, failed, err := g.rescore.RefreshAll(ctx)
	if err != nil {
		g.logger.Error("decay refresh failed", "error", err)
		return
	}
	g.logger.Info("decay refresh complete", "refreshed", refreshed, "failed", failed)
}
