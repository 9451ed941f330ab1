package scoring

import (
	"math"
	"sort"
)

// topSignalCount is how many ranked signals an explanation carries.
const topSignalCount = 3

// Features holds a startup's raw component sub-scores keyed by component name.
type Features map[string]float64

// ComponentContribution captures one component's share of the total score.
type ComponentContribution struct {
	Name         string  `json:"component"`
	Raw          float64 `json:"raw"`
	Normalized   float64 `json:"normalized"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
	Capped       bool    `json:"capped"`
	Available    bool    `json:"available"`
}

// TopSignal is a ranked entry in an explanation.
type TopSignal struct {
	Rank         int     `json:"rank"`
	Name         string  `json:"component"`
	Contribution float64 `json:"contribution"`
}

// Explanation is the audit payload stored next to every score.
type Explanation struct {
	Components     []ComponentContribution `json:"components"`
	TopSignals     []TopSignal             `json:"top_signals"`
	WeightedSum    float64                 `json:"weighted_sum"`
	UnclampedTotal float64                 `json:"unclamped_total"`
	Clamped        bool                    `json:"clamped"`
}

// ScoreResult is the output of ComputeScore.
type ScoreResult struct {
	Total       float64     `json:"total"`
	Explanation Explanation `json:"explanation"`
}

// ComputeScore maps raw features and a weight configuration to a bounded GOD
// score. It is pure: identical inputs always produce identical output.
// Components absent from features, or NaN, score zero and are marked
// unavailable. ±Inf is clamped to the feature bounds.
// Features naming components the configuration does not know are ignored.
func ComputeScore(features Features, cfg WeightConfig) ScoreResult {
	inv := cfg.Invariants
	scale := cfg.PointsScale * cfg.FinalScoreMultiplier

	names := cfg.Components()
	components := make([]ComponentContribution, 0, len(names))
	var weightedSum, total float64

	for _, name := range names {
		weight := cfg.ComponentWeights[name]
		raw, ok := features[name]
		if math.IsNaN(raw) {
			raw, ok = 0, false
		}

		normalized := inv.NormalizedFeatureBounds.Clamp(raw / cfg.NormalizationDivisor)
		if math.IsInf(raw, 0) {
			// Infinities clamp like any other out-of-range value; the
			// explanation records the clamped raw so it stays encodable.
			raw = normalized * cfg.NormalizationDivisor
		}
		contribution := weight * normalized * scale
		capped := false
		if contribution > inv.MaxSignalContribution {
			contribution = inv.MaxSignalContribution
			capped = true
		}

		weightedSum += weight * normalized
		total += contribution
		components = append(components, ComponentContribution{
			Name:         name,
			Raw:          raw,
			Normalized:   normalized,
			Weight:       weight,
			Contribution: roundTo(contribution, 4),
			Capped:       capped,
			Available:    ok,
		})
	}

	clamped := inv.TotalScoreBounds.Clamp(total)
	return ScoreResult{
		Total: roundTo(clamped, 1),
		Explanation: Explanation{
			Components:     components,
			TopSignals:     rankSignals(components),
			WeightedSum:    roundTo(weightedSum, 6),
			UnclampedTotal: roundTo(total, 4),
			Clamped:        clamped != total,
		},
	}
}

// rankSignals orders components by contribution, highest first, breaking
// ties by name.
func rankSignals(components []ComponentContribution) []TopSignal {
	ranked := make([]ComponentContribution, len(components))
	copy(ranked, components)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Contribution != ranked[j].Contribution {
			return ranked[i].Contribution > ranked[j].Contribution
		}
		return ranked[i].Name < ranked[j].Name
	})

	n := topSignalCount
	if len(ranked) < n {
		n = len(ranked)
	}
	top := make([]TopSignal, 0, n)
	for i := 0; i < n; i++ {
		top = append(top, TopSignal{Rank: i + 1, Name: ranked[i].Name, Contribution: ranked[i].Contribution})
	}
	return top
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
