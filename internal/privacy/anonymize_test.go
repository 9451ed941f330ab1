package privacy

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ugobe007/pythh-sub021/internal/store"
)

func matchRow() *store.MatchRow {
	return &store.MatchRow{
		MatchID:      uuid.New(),
		MatchScore:   0.82,
		CreatedAt:    week.Add(5 * time.Hour),
		StartupID:    uuid.New(),
		StartupName:  "Acme Robotics",
		StartupScore: 71.5,
		Sectors:      []string{"AI/ML", "robotics"},
		Stage:        2,
		Geography:    "europe",
		Investor: store.Investor{
			ID:   uuid.New(),
			Name: "Jane Partner",
			Firm: "Big Fund Capital",
			Type: "VC",
			Tier: 1,
		},
	}
}

func TestStageLabel(t *testing.T) {
	tests := map[int]string{
		0:  Unspecified,
		1:  "Pre-Seed",
		2:  "Seed",
		3:  "Series A",
		4:  "Series B",
		5:  "Series C",
		6:  "Series D",
		-1: Unspecified,
		99: Unspecified,
	}
	for stage, want := range tests {
		if got := StageLabel(stage); got != want {
			t.Errorf("StageLabel(%d) = %q, want %q", stage, got, want)
		}
	}
}

func TestAnonymizePrivateStartup(t *testing.T) {
	row := matchRow()
	pub := Anonymize(row)

	assert.Equal(t, "Seed AI/ML", pub.StartupNameOrDescriptor)
	assert.True(t, pub.IsAnonymized)
	assert.Equal(t, 2, pub.StartupTier)
	assert.Equal(t, "Seed", pub.StartupStageLabel)

	raw, err := json.Marshal(pub)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(raw), "Acme Robotics"), "real name leaked: %s", raw)
	assert.False(t, strings.Contains(string(raw), row.StartupID.String()), "startup id leaked: %s", raw)
}

func TestAnonymizePublicStartup(t *testing.T) {
	row := matchRow()
	row.StartupPublic = true
	row.Investor.Tier = 3

	pub := Anonymize(row)
	assert.Equal(t, "Acme Robotics", pub.StartupNameOrDescriptor)
	assert.Equal(t, "Jane Partner", pub.InvestorNameOrDescriptor)
	require.NotNil(t, pub.InvestorFirmOrNull)
	assert.Equal(t, "Big Fund Capital", *pub.InvestorFirmOrNull)
	assert.False(t, pub.IsAnonymized)
}

func TestAnonymizeInvestorTiers(t *testing.T) {
	tests := []struct {
		name     string
		tier     int
		kind     string
		public   bool
		wantName string
		wantFirm bool
	}{
		{"tier 1 private", 1, "VC", false, "Tier 1 VC", false},
		{"tier 2 private no type", 2, "", false, "Tier 2 Investor", false},
		{"tier 2 opted in", 2, "Angel", true, "Jane Partner", true},
		{"tier 3 private", 3, "VC", false, "Jane Partner", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := matchRow()
			row.StartupPublic = true
			row.Investor.Tier = tt.tier
			row.Investor.Type = tt.kind
			row.Investor.PublicProfile = tt.public

			pub := Anonymize(row)
			assert.Equal(t, tt.wantName, pub.InvestorNameOrDescriptor)
			assert.Equal(t, tt.wantFirm, pub.InvestorFirmOrNull != nil)
			assert.Equal(t, !tt.wantFirm, pub.IsAnonymized)
			assert.Equal(t, tt.tier, pub.InvestorTier)
		})
	}
}

func TestAnonymizeMissingSector(t *testing.T) {
	row := matchRow()
	row.Sectors = nil
	row.Stage = 0

	pub := Anonymize(row)
	assert.Equal(t, "unspecified unspecified", pub.StartupNameOrDescriptor)
	assert.NotNil(t, pub.StartupSectors)

	raw, _ := json.Marshal(pub)
	assert.Contains(t, string(raw), `"investor_firm_or_null":null`)
	assert.Contains(t, string(raw), `"startup_sectors":[]`)
}

func TestStartupTier(t *testing.T) {
	tests := []struct {
		score float64
		want  int
	}{
		{85, 1}, {80, 1}, {79.9, 2}, {65, 2}, {50, 3}, {49.9, 4}, {0, 4},
	}
	for _, tt := range tests {
		if got := StartupTier(tt.score); got != tt.want {
			t.Errorf("StartupTier(%v) = %d, want %d", tt.score, got, tt.want)
		}
	}
}

func TestFeedExcludesCriticalBuckets(t *testing.T) {
	// Scenario C: one startup alone in (europe, fintech, Seed) this week.
	lonely := matchRow()
	lonely.Sectors = []string{"fintech"}

	crowded := matchRow()
	crowded.Geography = "us"

	events := []*store.DiscoveryEvent{
		event(lonely.StartupID, week, "europe", "fintech", 2),
	}
	for i := 0; i < 6; i++ {
		events = append(events, event(uuid.New(), week, "us", PrimarySector(crowded.Sectors), 2))
	}
	risks := ComputeBucketRisk(events, Window{Start: week, End: week.AddDate(0, 0, 7)})

	feed, dropped := Feed([]*store.MatchRow{lonely, crowded}, Allowed(risks))
	assert.Equal(t, 1, dropped)
	require.Len(t, feed, 1)
	assert.Equal(t, crowded.MatchID, feed[0].MatchID)

	for _, row := range feed {
		assert.NotEqual(t, lonely.MatchID, row.MatchID)
	}
}

func TestFeedDropsBucketsTheReportNeverCounted(t *testing.T) {
	counted := matchRow()
	counted.Geography = "us"

	var events []*store.DiscoveryEvent
	for i := 0; i < 6; i++ {
		events = append(events, event(uuid.New(), week, "us", PrimarySector(counted.Sectors), 2))
	}
	allowed := Allowed(ComputeBucketRisk(events, Window{Start: week, End: week.AddDate(0, 0, 7)}))

	// A bucket with no events at all is absent from the report, not CRITICAL.
	unseen := matchRow()
	unseen.Sectors = []string{"biotech"}
	// Same dimensions as an allowed bucket, but a week the report did not cover.
	stale := matchRow()
	stale.Geography = "us"
	stale.CreatedAt = week.AddDate(0, 0, -35)

	feed, dropped := Feed([]*store.MatchRow{counted, unseen, stale}, allowed)
	assert.Equal(t, 2, dropped)
	require.Len(t, feed, 1)
	assert.Equal(t, counted.MatchID, feed[0].MatchID)
}

func TestFeedWithoutGateDropsEverything(t *testing.T) {
	feed, dropped := Feed([]*store.MatchRow{matchRow(), matchRow()}, nil)
	assert.Empty(t, feed)
	assert.NotNil(t, feed)
	assert.Equal(t, 2, dropped)

	feed, _ = Feed(nil, nil)
	assert.NotNil(t, feed)
}
