package scoring

import (
	"log/slog"
	"time"
)

// Record is the complete scoring output persisted for one startup.
type Record struct {
	TotalScore              float64          `json:"total_score"`
	EnhancedScore           float64          `json:"enhanced_score"`
	PsychologicalMultiplier float64          `json:"psychological_multiplier"`
	WeightsVersion          string           `json:"weights_version"`
	Explanation             Explanation      `json:"score_explanation"`
	Multiplier              MultiplierResult `json:"multiplier_explanation"`
	ComputedAt              time.Time        `json:"computed_at"`
}

// Scorer combines the GOD score calculator with the decay adjuster.
type Scorer struct {
	decay  DecayConfig
	logger *slog.Logger
}

// NewScorer creates a Scorer with the given decay rules.
func NewScorer(decay DecayConfig, logger *slog.Logger) *Scorer {
	if decay == nil {
		decay = DefaultDecayConfig()
	}
	return &Scorer{decay: decay, logger: logger}
}

// Evaluate computes the base score, multiplier and enhanced score for one
// startup as of at. The result records the version that produced it.
func (s *Scorer) Evaluate(version string, cfg WeightConfig, features Features, signals Signals, at time.Time) Record {
	base := ComputeScore(features, cfg)
	return s.Reweight(Record{
		TotalScore:     base.Total,
		WeightsVersion: version,
		Explanation:    base.Explanation,
	}, cfg.BonusCaps, signals, at)
}

// Reweight recomputes only the multiplier and enhanced score, keeping the
// stored base score. Used when signals change or decay ages.
func (s *Scorer) Reweight(rec Record, caps BonusCaps, signals Signals, at time.Time) Record {
	m := ComputeMultiplier(signals, s.decay, at)
	rec.Multiplier = m
	rec.PsychologicalMultiplier = m.Value
	rec.EnhancedScore = EnhancedScore(rec.TotalScore, m.Value, caps)
	rec.ComputedAt = at

	s.logger.Debug("scored",
		"weights_version", rec.WeightsVersion,
		"total_score", rec.TotalScore,
		"multiplier", rec.PsychologicalMultiplier,
		"enhanced_score", rec.EnhancedScore,
	)
	return rec
}
