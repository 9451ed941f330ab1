package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ugobe007/pythh-sub021/internal/scoring"
)

var (
	ErrNoActiveVersion      = errors.New("no active weight version")
	ErrVersionNotActive     = errors.New("weight version is not the active version")
	ErrVersionAlreadyExists = errors.New("weight version already exists")
	ErrVersionNotFound      = errors.New("weight version not found")
	ErrConflict             = errors.New("concurrent update conflict")
	ErrStartupNotFound      = errors.New("startup not found")
)

// WeightVersion is an immutable scoring configuration. Active is derived from
// the single-row active pointer, never stored on the version itself.
type WeightVersion struct {
	Version      string               `json:"version"`
	Weights      scoring.WeightConfig `json:"weights"`
	Active       bool                 `json:"active"`
	Immutable    bool                 `json:"immutable"`
	Description  string               `json:"description,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	SupersededBy *string              `json:"superseded_by,omitempty"`
	SupersededAt *time.Time           `json:"superseded_at,omitempty"`
}

// Startup is a scored entity plus the profile fields the privacy layer needs.
type Startup struct {
	ID            uuid.UUID        `json:"id"`
	Name          string           `json:"name"`
	PublicProfile bool             `json:"public_profile"`
	Sectors       []string         `json:"sectors"`
	Stage         int              `json:"stage"`
	Geography     string           `json:"geography,omitempty"`
	Features      scoring.Features `json:"features"`
	Signals       scoring.Signals  `json:"signals"`

	// Score is nil until the startup has been scored once.
	Score *scoring.Record `json:"score,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Investor is the investor side of a match.
type Investor struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Firm          string    `json:"firm,omitempty"`
	Type          string    `json:"type,omitempty"`
	Tier          int       `json:"tier"`
	PublicProfile bool      `json:"public_profile"`
}

// MatchRow is a raw startup/investor match joined with both profiles.
type MatchRow struct {
	MatchID    uuid.UUID `json:"match_id"`
	MatchScore float64   `json:"match_score"`
	CreatedAt  time.Time `json:"created_at"`

	StartupID     uuid.UUID `json:"startup_id"`
	StartupName   string    `json:"startup_name"`
	StartupPublic bool      `json:"startup_public"`
	StartupScore  float64   `json:"startup_god_score"`
	Sectors       []string  `json:"sectors"`
	Stage         int       `json:"stage"`
	Geography     string    `json:"geography,omitempty"`

	Investor Investor `json:"investor"`
}

// NewMatch is a match to insert. When Discovery is set it is written in the
// same transaction, stamped with the match's created_at, so the match and
// the discovery it implies always land in the same bucket.
type NewMatch struct {
	StartupID  uuid.UUID
	InvestorID uuid.UUID
	Score      float64
	Discovery  *DiscoveryEvent
}

// MatchFilter bounds a match listing.
type MatchFilter struct {
	Since time.Time
	Limit int
}

// DiscoveryEvent records a startup surfacing in discovery. The k-anonymity
// guard buckets these.
type DiscoveryEvent struct {
	ID        uuid.UUID `json:"id"`
	StartupID uuid.UUID `json:"startup_id"`
	Geography string    `json:"geography,omitempty"`
	Sector    string    `json:"sector,omitempty"`
	Stage     int       `json:"stage"`
	CreatedAt time.Time `json:"created_at"`
}

// MutateFn changes a locked startup in place. Returning an error aborts the
// enclosing transaction.
type MutateFn func(s *Startup) error

type Store interface {
	// Weight versions
	ActiveWeightVersion(ctx context.Context) (*WeightVersion, error)
	GetWeightVersion(ctx context.Context, version string) (*WeightVersion, error)
	ListWeightVersions(ctx context.Context) ([]*WeightVersion, error)
	// InitWeightVersion installs v as active when no version is active yet.
	// It reports whether it did.
	InitWeightVersion(ctx context.Context, v *WeightVersion) (bool, error)
	SupersedeWeightVersion(ctx context.Context, oldVersion string, next *WeightVersion) error
	ActivateWeightVersion(ctx context.Context, target string) (*WeightVersion, error)

	// Startups
	CreateStartup(ctx context.Context, s *Startup) error
	GetStartup(ctx context.Context, id uuid.UUID) (*Startup, error)
	ListScoredStartupIDs(ctx context.Context) ([]uuid.UUID, error)
	// UpdateStartupScoring locks the startup row, applies fn and persists the
	// result in one transaction.
	UpdateStartupScoring(ctx context.Context, id uuid.UUID, fn MutateFn) (*Startup, error)

	// Matches and discovery
	CreateMatch(ctx context.Context, m NewMatch) (uuid.UUID, error)
	CreateInvestor(ctx context.Context, inv *Investor) error
	ListMatches(ctx context.Context, filter MatchFilter) ([]*MatchRow, error)
	RecordDiscoveryEvent(ctx context.Context, e *DiscoveryEvent) error
	// DiscoveryEvents reads events in [since, until) from one consistent
	// snapshot.
	DiscoveryEvents(ctx context.Context, since, until time.Time) ([]*DiscoveryEvent, error)

	Close() error
}
