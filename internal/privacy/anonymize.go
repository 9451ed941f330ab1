package privacy

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ugobe007/pythh-sub021/internal/store"
)

// PublicMatchRow is the only match shape that leaves the service.
type PublicMatchRow struct {
	MatchID                  uuid.UUID `json:"match_id"`
	StartupNameOrDescriptor  string    `json:"startup_name_or_descriptor"`
	StartupGodScore          float64   `json:"startup_god_score"`
	StartupTier              int       `json:"startup_tier"`
	StartupSectors           []string  `json:"startup_sectors"`
	StartupStageLabel        string    `json:"startup_stage_label"`
	InvestorNameOrDescriptor string    `json:"investor_name_or_descriptor"`
	InvestorTier             int       `json:"investor_tier"`
	InvestorFirmOrNull       *string   `json:"investor_firm_or_null"`
	MatchScore               float64   `json:"match_score"`
	CreatedAt                time.Time `json:"created_at"`
	IsAnonymized             bool      `json:"is_anonymized"`
}

var stageLabels = map[int]string{
	1: "Pre-Seed",
	2: "Seed",
}

// StageLabel maps a stage code to its label. Codes from 3 up are
// "Series A", "Series B" and so on. Unknown codes are "unspecified".
func StageLabel(stage int) string {
	if l, ok := stageLabels[stage]; ok {
		return l
	}
	if stage >= 3 && stage <= 28 {
		return "Series " + string(rune(64+stage-2))
	}
	return Unspecified
}

// StartupTier buckets a GOD score into a coarse public tier, 1 being best.
func StartupTier(score float64) int {
	switch {
	case score >= 80:
		return 1
	case score >= 65:
		return 2
	case score >= 50:
		return 3
	default:
		return 4
	}
}

// PrimarySector is the first non-empty sector, or "unspecified".
func PrimarySector(sectors []string) string {
	for _, s := range sectors {
		if strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return Unspecified
}

// Anonymize projects a raw match row into its public form. A startup without
// the public profile opt-in is described as "{stage} {primary sector}". A tier
// 1 or 2 investor without the opt-in is described as "Tier {n} {type}" and
// loses its firm name.
func Anonymize(row *store.MatchRow) PublicMatchRow {
	stage := StageLabel(row.Stage)
	out := PublicMatchRow{
		MatchID:           row.MatchID,
		StartupGodScore:   row.StartupScore,
		StartupTier:       StartupTier(row.StartupScore),
		StartupSectors:    append([]string{}, row.Sectors...),
		StartupStageLabel: stage,
		InvestorTier:      row.Investor.Tier,
		MatchScore:        row.MatchScore,
		CreatedAt:         row.CreatedAt,
	}

	if row.StartupPublic {
		out.StartupNameOrDescriptor = row.StartupName
	} else {
		out.StartupNameOrDescriptor = stage + " " + PrimarySector(row.Sectors)
		out.IsAnonymized = true
	}

	inv := row.Investor
	if (inv.Tier == 1 || inv.Tier == 2) && !inv.PublicProfile {
		kind := strings.TrimSpace(inv.Type)
		if kind == "" {
			kind = "Investor"
		}
		out.InvestorNameOrDescriptor = fmt.Sprintf("Tier %d %s", inv.Tier, kind)
		out.IsAnonymized = true
	} else {
		out.InvestorNameOrDescriptor = inv.Name
		if inv.Firm != "" {
			firm := inv.Firm
			out.InvestorFirmOrNull = &firm
		}
	}
	return out
}

// MatchKey is the bucket a match row falls in.
func MatchKey(row *store.MatchRow) BucketKey {
	return KeyFor(row.CreatedAt, row.Geography, PrimarySector(row.Sectors), row.Stage)
}

// Feed anonymizes the rows whose bucket is in allowed and drops the rest.
// A bucket missing from allowed was either CRITICAL or never counted, so it
// is excluded, never relabeled. A nil allowed drops every row. It also
// reports how many rows were dropped.
func Feed(rows []*store.MatchRow, allowed map[string]bool) ([]PublicMatchRow, int) {
	out := make([]PublicMatchRow, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		if !allowed[MatchKey(row).String()] {
			dropped++
			continue
		}
		out = append(out, Anonymize(row))
	}
	return out, dropped
}
