// Package versions manages the immutable weight version history and the single
// active pointer.
package versions

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ugobe007/pythh-sub021/internal/hermes"
	"github.com/ugobe007/pythh-sub021/internal/metrics"
	"github.com/ugobe007/pythh-sub021/internal/scoring"
	"github.com/ugobe007/pythh-sub021/internal/store"
)

var (
	ErrNoActiveVersion      = store.ErrNoActiveVersion
	ErrVersionNotActive     = store.ErrVersionNotActive
	ErrVersionAlreadyExists = store.ErrVersionAlreadyExists
	ErrVersionNotFound      = store.ErrVersionNotFound
	ErrConflict             = store.ErrConflict
	ErrInvariantViolation   = scoring.ErrInvariantViolation
	ErrInvalidVersionID     = errors.New("invalid version identifier")
)

var versionPattern = regexp.MustCompile(`^[0-9A-Za-z][0-9A-Za-z._-]{0,63}$`)

// SupersedeCommand replaces the active version with a new one.
type SupersedeCommand struct {
	OldVersion  string               `json:"old_version"`
	NewVersion  string               `json:"new_version"`
	Weights     scoring.WeightConfig `json:"new_weights"`
	Description string               `json:"description"`
}

type Service struct {
	store   store.Store
	emitter *hermes.Emitter
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(s store.Store, emitter *hermes.Emitter, logger *slog.Logger) *Service {
	return &Service{
		store:   s,
		emitter: emitter,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Active returns the active version. A missing active version is a fatal
// configuration error; there is no fallback weight set.
func (s *Service) Active(ctx context.Context) (*store.WeightVersion, error) {
	v, err := s.store.ActiveWeightVersion(ctx)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Service) Get(ctx context.Context, version string) (*store.WeightVersion, error) {
	v, err := s.store.GetWeightVersion(ctx, version)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, eris.Wrapf(ErrVersionNotFound, "versions: %s", version)
	}
	return v, nil
}

// List returns the full history, oldest first.
func (s *Service) List(ctx context.Context) ([]*store.WeightVersion, error) {
	return s.store.ListWeightVersions(ctx)
}

// Bootstrap installs cfg as version when the store has no active version.
// It is a no-op otherwise.
func (s *Service) Bootstrap(ctx context.Context, version string, cfg scoring.WeightConfig) (bool, error) {
	if err := validateID(version); err != nil {
		return false, err
	}
	if err := cfg.Validate(); err != nil {
		return false, err
	}
	ok, err := s.store.InitWeightVersion(ctx, &store.WeightVersion{
		Version:     version,
		Weights:     cfg,
		Description: "bootstrap",
	})
	if err != nil {
		return false, err
	}
	if ok {
		s.logger.Info("bootstrapped weight version", "version", version)
		metrics.SetActiveVersion(version)
	}
	return ok, nil
}

// Supersede validates cmd.Weights and atomically makes cmd.NewVersion the
// active version. Invalid configurations are rejected, never renormalized.
func (s *Service) Supersede(ctx context.Context, cmd SupersedeCommand) (*store.WeightVersion, error) {
	v, err := s.supersede(ctx, cmd)
	metrics.WeightVersionOps.WithLabelValues("supersede", outcome(err)).Inc()
	if err != nil {
		s.logger.Warn("supersede rejected",
			"old_version", cmd.OldVersion,
			"new_version", cmd.NewVersion,
			"error", err,
		)
		return nil, err
	}

	s.logger.Info("weight version superseded",
		"old_version", cmd.OldVersion,
		"new_version", v.Version,
		"weight_sum", v.Weights.Sum(),
	)
	metrics.SetActiveVersion(v.Version)
	s.emitter.Emit(hermes.SubjectWeightsSuperseded(v.Version), hermes.WeightsSupersededEvent{
		OldVersion:  cmd.OldVersion,
		NewVersion:  v.Version,
		Description: v.Description,
		Timestamp:   s.now(),
	})
	return v, nil
}

func (s *Service) supersede(ctx context.Context, cmd SupersedeCommand) (*store.WeightVersion, error) {
	if err := validateID(cmd.NewVersion); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cmd.OldVersion) == "" {
		return nil, eris.Wrap(ErrVersionNotActive, "versions: old_version is required")
	}
	if err := cmd.Weights.Validate(); err != nil {
		return nil, err
	}

	next := &store.WeightVersion{
		Version:     cmd.NewVersion,
		Weights:     cmd.Weights,
		Description: cmd.Description,
	}
	if err := s.store.SupersedeWeightVersion(ctx, cmd.OldVersion, next); err != nil {
		return nil, err
	}
	return next, nil
}

// Rollback makes target the active version again.
func (s *Service) Rollback(ctx context.Context, target string) (*store.WeightVersion, error) {
	var from string
	if cur, err := s.store.ActiveWeightVersion(ctx); err == nil {
		from = cur.Version
	}

	v, err := s.store.ActivateWeightVersion(ctx, target)
	metrics.WeightVersionOps.WithLabelValues("rollback", outcome(err)).Inc()
	if err != nil {
		s.logger.Warn("rollback rejected", "target_version", target, "error", err)
		return nil, err
	}

	s.logger.Info("weight version rolled back", "from_version", from, "to_version", v.Version)
	metrics.SetActiveVersion(v.Version)
	s.emitter.Emit(hermes.SubjectWeightsRolledBack(v.Version), hermes.WeightsRolledBackEvent{
		FromVersion: from,
		ToVersion:   v.Version,
		Timestamp:   s.now(),
	})
	return v, nil
}

func validateID(version string) error {
	if !versionPattern.MatchString(version) {
		return eris.Wrapf(ErrInvalidVersionID, "versions: %q", version)
	}
	return nil
}

// IsRejection reports whether err is a typed, caller-visible refusal rather
// than an infrastructure failure.
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrNoActiveVersion, ErrVersionNotActive, ErrVersionAlreadyExists,
		ErrVersionNotFound, ErrConflict, ErrInvariantViolation, ErrInvalidVersionID,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsRejection(err):
		return "rejected"
	default:
		return "error"
	}
}
