// Package privacy holds the pure exposure rules: k-anonymity bucketing and the
// public match feed projection. Nothing here performs I/O.
package privacy

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ugobe007/pythh-sub021/internal/store"
)

// Unspecified replaces a missing geography, sector or stage.
const Unspecified = "unspecified"

// RiskLevel is the alert level of one bucket.
type RiskLevel string

const (
	RiskCritical RiskLevel = "CRITICAL"
	RiskHigh     RiskLevel = "HIGH"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskOK       RiskLevel = "OK"
)

// RiskLevels lists every level from most to least severe.
func RiskLevels() []RiskLevel {
	return []RiskLevel{RiskCritical, RiskHigh, RiskMedium, RiskOK}
}

var actions = map[RiskLevel]string{
	RiskCritical: "suppress entirely / widen geography or sector",
	RiskHigh:     "add timing fuzz or widen buckets",
	RiskMedium:   "monitor; widen if queried repeatedly",
	RiskOK:       "safe to show",
}

// Classify maps a distinct-startup count to its risk level and action.
//
//	k = 1    CRITICAL
//	k = 2-3  HIGH
//	k = 4-5  MEDIUM
//	k > 5    OK
func Classify(k int) (RiskLevel, string) {
	var level RiskLevel
	switch {
	case k <= 1:
		level = RiskCritical
	case k <= 3:
		level = RiskHigh
	case k <= 5:
		level = RiskMedium
	default:
		level = RiskOK
	}
	return level, actions[level]
}

// BucketKey identifies one (week, geography, sector, stage) bucket. Week is
// the ISO week start (Monday, UTC) as YYYY-MM-DD.
type BucketKey struct {
	Week   string `json:"week_bucket"`
	Geo    string `json:"geo"`
	Sector string `json:"sector"`
	Stage  string `json:"stage"`
}

func (k BucketKey) String() string {
	return strings.Join([]string{k.Week, k.Geo, k.Sector, k.Stage}, "|")
}

// KeyFor builds the bucket key of a startup observed at t.
func KeyFor(t time.Time, geo, sector string, stage int) BucketKey {
	return BucketKey{
		Week:   WeekStart(t).Format("2006-01-02"),
		Geo:    orUnspecified(geo),
		Sector: orUnspecified(sector),
		Stage:  StageLabel(stage),
	}
}

// WeekStart truncates t to 00:00 UTC on the Monday of its ISO week.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, time.UTC)
}

// Window is the half-open interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// TrailingWindow returns the window of the given number of days ending at now.
func TrailingWindow(now time.Time, days int) Window {
	return Window{Start: now.AddDate(0, 0, -days), End: now}
}

// Contains reports whether t falls inside w.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// BucketRisk is one row of the k-anonymity report.
type BucketRisk struct {
	BucketKey
	K         int       `json:"k_value"`
	RiskLevel RiskLevel `json:"alert_level"`
	Action    string    `json:"action_required"`
}

// ComputeBucketRisk groups events inside w into buckets and counts distinct
// startups per bucket. Repeated events from one startup count once. The
// result is ordered by k ascending, then by key, so the riskiest buckets come
// first.
func ComputeBucketRisk(events []*store.DiscoveryEvent, w Window) []BucketRisk {
	members := make(map[BucketKey]map[uuid.UUID]struct{})
	for _, e := range events {
		if e == nil || !w.Contains(e.CreatedAt) {
			continue
		}
		key := KeyFor(e.CreatedAt, e.Geography, e.Sector, e.Stage)
		set, ok := members[key]
		if !ok {
			set = make(map[uuid.UUID]struct{})
			members[key] = set
		}
		set[e.StartupID] = struct{}{}
	}

	out := make([]BucketRisk, 0, len(members))
	for key, set := range members {
		level, action := Classify(len(set))
		out = append(out, BucketRisk{BucketKey: key, K: len(set), RiskLevel: level, Action: action})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].K != out[j].K {
			return out[i].K < out[j].K
		}
		return out[i].BucketKey.String() < out[j].BucketKey.String()
	})
	return out
}

// CountByLevel tallies buckets per risk level. Every level is present.
func CountByLevel(risks []BucketRisk) map[RiskLevel]int {
	counts := make(map[RiskLevel]int, 4)
	for _, l := range RiskLevels() {
		counts[l] = 0
	}
	for _, r := range risks {
		counts[r.RiskLevel]++
	}
	return counts
}

// Allowed returns the keys of every bucket that is not CRITICAL. Only these
// buckets may appear in the public feed.
func Allowed(risks []BucketRisk) map[string]bool {
	out := make(map[string]bool)
	for _, r := range risks {
		if r.RiskLevel != RiskCritical {
			out[r.BucketKey.String()] = true
		}
	}
	return out
}

func orUnspecified(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return Unspecified
	}
	return s
}
