package hermes

import "time"

type WeightsSupersededEvent struct {
	OldVersion  string    `json:"old_version"`
	NewVersion  string    `json:"new_version"`
	Description string    `json:"description,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type WeightsRolledBackEvent struct {
	FromVersion string    `json:"from_version"`
	ToVersion   string    `json:"to_version"`
	Timestamp   time.Time `json:"timestamp"`
}

type StartupRescoredEvent struct {
	StartupID               string    `json:"startup_id"`
	Trigger                 string    `json:"trigger"`
	WeightsVersion          string    `json:"weights_version"`
	TotalScore              float64   `json:"total_score"`
	EnhancedScore           float64   `json:"enhanced_score"`
	PsychologicalMultiplier float64   `json:"psychological_multiplier"`
	Timestamp               time.Time `json:"timestamp"`
}

type KAnonBucket struct {
	WeekBucket     string `json:"week_bucket"`
	Geo            string `json:"geo"`
	Sector         string `json:"sector"`
	Stage          string `json:"stage"`
	KValue         int    `json:"k_value"`
	AlertLevel     string `json:"alert_level"`
	ActionRequired string `json:"action_required"`
}

type KAnonReportEvent struct {
	WindowStart time.Time      `json:"window_start"`
	WindowEnd   time.Time      `json:"window_end"`
	Counts      map[string]int `json:"counts"`
	// Flagged lists buckets below OK only; safe buckets are summarized in Counts.
	Flagged   []KAnonBucket `json:"flagged"`
	Timestamp time.Time     `json:"timestamp"`
}

type RedactionViolationEvent struct {
	Route     string    `json:"route"`
	RequestID string    `json:"request_id,omitempty"`
	Type      string    `json:"type"`
	Path      string    `json:"path"`
	Preview   string    `json:"preview"`
	Timestamp time.Time `json:"timestamp"`
}
