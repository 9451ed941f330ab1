package scoring

import (
	"math"
	"sort"
	"time"
)

// Signal names a time-decaying psychological flag.
type Signal string

const (
	SignalOversubscribed Signal = "oversubscribed"
	SignalFollowOn       Signal = "has_followon"
	SignalCompetitive    Signal = "is_competitive"
	SignalBridgeRound    Signal = "is_bridge_round"
)

// KnownSignals lists the signals the decay adjuster understands.
func KnownSignals() []Signal {
	return []Signal{SignalOversubscribed, SignalFollowOn, SignalCompetitive, SignalBridgeRound}
}

// SignalState is the stored state of one flag.
type SignalState struct {
	Active     bool      `json:"active"`
	ObservedAt time.Time `json:"observed_at"`
}

// Signals maps each flag to its state.
type Signals map[Signal]SignalState

// DecayRule is the base weight and half-life of one signal. Negative weights
// pull the multiplier down.
type DecayRule struct {
	Weight       float64 `json:"weight" yaml:"weight"`
	HalfLifeDays float64 `json:"half_life_days" yaml:"half_life_days"`
}

// DecayConfig holds a rule per signal.
type DecayConfig map[Signal]DecayRule

// DefaultDecayConfig returns the shipped decay rules.
func DefaultDecayConfig() DecayConfig {
	return DecayConfig{
		SignalOversubscribed: {Weight: 0.35, HalfLifeDays: 30},
		SignalFollowOn:       {Weight: 0.25, HalfLifeDays: 60},
		SignalCompetitive:    {Weight: 0.25, HalfLifeDays: 21},
		SignalBridgeRound:    {Weight: -0.15, HalfLifeDays: 45},
	}
}

// SignalContribution is one signal's decayed share of the multiplier.
type SignalContribution struct {
	Signal       Signal  `json:"signal"`
	AgeDays      float64 `json:"age_days"`
	Decay        float64 `json:"decay"`
	Contribution float64 `json:"contribution"`
}

// MultiplierResult is the output of ComputeMultiplier.
type MultiplierResult struct {
	Value         float64              `json:"value"`
	Contributions []SignalContribution `json:"contributions"`
}

// ComputeMultiplier blends active signals into a value in [0,1]. Each signal
// contributes weight * 0.5^(age/half_life). Signals observed after now count
// as fresh. A non-positive half-life means the signal never decays.
func ComputeMultiplier(signals Signals, cfg DecayConfig, now time.Time) MultiplierResult {
	names := make([]Signal, 0, len(signals))
	for s := range signals {
		names = append(names, s)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	result := MultiplierResult{Contributions: []SignalContribution{}}
	var sum float64
	for _, name := range names {
		state := signals[name]
		rule, ok := cfg[name]
		if !ok || !state.Active {
			continue
		}

		age := now.Sub(state.ObservedAt).Hours() / 24
		if age < 0 {
			age = 0
		}
		decay := 1.0
		if rule.HalfLifeDays > 0 {
			decay = math.Pow(0.5, age/rule.HalfLifeDays)
		}
		c := rule.Weight * decay
		sum += c
		result.Contributions = append(result.Contributions, SignalContribution{
			Signal:       name,
			AgeDays:      roundTo(age, 2),
			Decay:        roundTo(decay, 6),
			Contribution: roundTo(c, 6),
		})
	}

	result.Value = roundTo(clamp(sum, 0, 1), 6)
	return result
}

// EnhancedScore blends the multiplier into the base score:
//
//	min(EnhancedCeiling, round(total + multiplier * PsychologicalPoints))
//
// The ceiling holds even when the unclamped sum is higher.
func EnhancedScore(total, multiplier float64, caps BonusCaps) float64 {
	v := math.Round(total + clamp(multiplier, 0, 1)*caps.PsychologicalPoints)
	if v > caps.EnhancedCeiling {
		return caps.EnhancedCeiling
	}
	if v < 0 {
		return 0
	}
	return v
}
