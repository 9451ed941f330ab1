package scoring

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Component names used by the shipped weight configuration.
const (
	ComponentTeam     = "team"
	ComponentTraction = "traction"
	ComponentMarket   = "market"
	ComponentProduct  = "product"
	ComponentVision   = "vision"
)

// WeightSumTolerance is how far component weights may drift from 1.0.
const WeightSumTolerance = 0.001

// ErrInvariantViolation is returned when a weight configuration breaks one of
// its declared invariants. Configurations are rejected, never renormalized.
var ErrInvariantViolation = errors.New("weight configuration invariant violated")

// Bounds is a closed numeric interval.
type Bounds struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Clamp returns v limited to [Min, Max]. NaN clamps to Min.
func (b Bounds) Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return b.Min
	}
	return clamp(v, b.Min, b.Max)
}

// Invariants is the declared invariant set carried by every weight version.
type Invariants struct {
	ComponentWeightSum      float64 `json:"component_weight_sum" yaml:"component_weight_sum"`
	NormalizedFeatureBounds Bounds  `json:"normalized_feature_bounds" yaml:"normalized_feature_bounds"`
	TotalScoreBounds        Bounds  `json:"total_score_bounds" yaml:"total_score_bounds"`
	MaxSignalContribution   float64 `json:"max_signal_contribution" yaml:"max_signal_contribution"`
}

// BonusCaps bounds what the psychological multiplier may add on top of the
// base score.
type BonusCaps struct {
	// PsychologicalPoints scales the [0,1] multiplier into score points.
	PsychologicalPoints float64 `json:"psychological_points" yaml:"psychological_points"`
	// EnhancedCeiling is the hard cap on enhanced_score. It must sit strictly
	// below the total score maximum.
	EnhancedCeiling float64 `json:"enhanced_ceiling" yaml:"enhanced_ceiling"`
}

// WeightConfig is the immutable scoring configuration stored in a weight
// version.
//
//	normalized   = clamp(raw / NormalizationDivisor, NormalizedFeatureBounds)
//	contribution = min(weight * normalized * PointsScale * FinalScoreMultiplier, MaxSignalContribution)
//	total        = clamp(sum(contribution), TotalScoreBounds)
type WeightConfig struct {
	ComponentWeights     map[string]float64 `json:"component_weights" yaml:"component_weights"`
	NormalizationDivisor float64            `json:"normalization_divisor" yaml:"normalization_divisor"`
	PointsScale          float64            `json:"points_scale" yaml:"points_scale"`
	FinalScoreMultiplier float64            `json:"final_score_multiplier" yaml:"final_score_multiplier"`
	BonusCaps            BonusCaps          `json:"bonus_caps" yaml:"bonus_caps"`
	Invariants           Invariants         `json:"invariants" yaml:"invariants"`
}

// DefaultWeightConfig returns the configuration shipped as version 1.0.0.
func DefaultWeightConfig() WeightConfig {
	return WeightConfig{
		ComponentWeights: map[string]float64{
			ComponentTeam:     0.25,
			ComponentTraction: 0.25,
			ComponentMarket:   0.20,
			ComponentProduct:  0.15,
			ComponentVision:   0.15,
		},
		NormalizationDivisor: 1,
		PointsScale:          10,
		FinalScoreMultiplier: 10,
		BonusCaps: BonusCaps{
			PsychologicalPoints: 10,
			EnhancedCeiling:     85,
		},
		Invariants: Invariants{
			ComponentWeightSum:      1.0,
			NormalizedFeatureBounds: Bounds{Min: 0, Max: 1},
			TotalScoreBounds:        Bounds{Min: 0, Max: 100},
			MaxSignalContribution:   25,
		},
	}
}

// Sum returns the total of all component weights.
func (c WeightConfig) Sum() float64 {
	var sum float64
	for _, name := range c.Components() {
		sum += c.ComponentWeights[name]
	}
	return sum
}

// Components returns the component names in a stable order.
func (c WeightConfig) Components() []string {
	names := make([]string, 0, len(c.ComponentWeights))
	for name := range c.ComponentWeights {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks every declared invariant. All problems are reported at once.
func (c WeightConfig) Validate() error {
	var errs []string

	if len(c.ComponentWeights) == 0 {
		errs = append(errs, "no component weights")
	}
	for _, name := range c.Components() {
		w := c.ComponentWeights[name]
		if !finite(w) || w < 0 {
			errs = append(errs, fmt.Sprintf("component %q has invalid weight %v", name, w))
		}
	}
	if sum := c.Sum(); !finite(sum) || math.Abs(sum-1.0) > WeightSumTolerance {
		errs = append(errs, fmt.Sprintf("component weights sum to %.4f, must sum to 1.0 (±%.3f)", sum, WeightSumTolerance))
	}
	if ws := c.Invariants.ComponentWeightSum; !finite(ws) || math.Abs(ws-1.0) > WeightSumTolerance {
		errs = append(errs, fmt.Sprintf("declared component_weight_sum %.4f must be 1.0", ws))
	}
	if !finite(c.NormalizationDivisor) || c.NormalizationDivisor <= 0 {
		errs = append(errs, "normalization_divisor must be finite and > 0")
	}
	if !finite(c.PointsScale) || c.PointsScale <= 0 {
		errs = append(errs, "points_scale must be finite and > 0")
	}
	if !finite(c.FinalScoreMultiplier) || c.FinalScoreMultiplier <= 0 {
		errs = append(errs, "final_score_multiplier must be finite and > 0")
	}
	if fb := c.Invariants.NormalizedFeatureBounds; !fb.valid() {
		errs = append(errs, fmt.Sprintf("normalized_feature_bounds [%v, %v] must be finite and non-empty", fb.Min, fb.Max))
	}
	tb := c.Invariants.TotalScoreBounds
	if !tb.valid() {
		errs = append(errs, fmt.Sprintf("total_score_bounds [%v, %v] must be finite and non-empty", tb.Min, tb.Max))
	}
	if msc := c.Invariants.MaxSignalContribution; !finite(msc) || msc <= 0 {
		errs = append(errs, "max_signal_contribution must be finite and > 0")
	}
	if pp := c.BonusCaps.PsychologicalPoints; !finite(pp) || pp < 0 {
		errs = append(errs, "bonus_caps.psychological_points must be finite and >= 0")
	}
	if ec := c.BonusCaps.EnhancedCeiling; !finite(ec) || ec <= tb.Min || ec >= tb.Max {
		errs = append(errs, fmt.Sprintf("bonus_caps.enhanced_ceiling %v must sit strictly inside total_score_bounds", c.BonusCaps.EnhancedCeiling))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvariantViolation, strings.Join(errs, "; "))
	}
	return nil
}

func (b Bounds) valid() bool {
	return finite(b.Min) && finite(b.Max) && b.Min < b.Max
}

// finite rejects NaN, which passes every ordered comparison, and ±Inf.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
