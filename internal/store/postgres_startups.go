package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/ugobe007/pythh-sub021/internal/scoring"
)

const startupColumns = `id, name, public_profile, sectors, stage, geography,
	features, signals,
	total_score, enhanced_score, psychological_multiplier, weights_version,
	score_explanation, multiplier_explanation, scored_at,
	created_at, updated_at`

func scanStartup(row pgx.Row) (*Startup, error) {
	st := &Startup{}
	var geography, weightsVersion *string
	var featuresJSON, signalsJSON, explanationJSON, multiplierJSON []byte
	var total, enhanced, multiplier *float64
	var scoredAt *time.Time

	if err := row.Scan(
		&st.ID, &st.Name, &st.PublicProfile, &st.Sectors, &st.Stage, &geography,
		&featuresJSON, &signalsJSON,
		&total, &enhanced, &multiplier, &weightsVersion,
		&explanationJSON, &multiplierJSON, &scoredAt,
		&st.CreatedAt, &st.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if geography != nil {
		st.Geography = *geography
	}
	if len(featuresJSON) > 0 {
		if err := json.Unmarshal(featuresJSON, &st.Features); err != nil {
			return nil, eris.Wrap(err, "store: decode features")
		}
	}
	if len(signalsJSON) > 0 {
		if err := json.Unmarshal(signalsJSON, &st.Signals); err != nil {
			return nil, eris.Wrap(err, "store: decode signals")
		}
	}

	if total != nil && weightsVersion != nil {
		rec := &scoring.Record{
			TotalScore:     *total,
			WeightsVersion: *weightsVersion,
		}
		if enhanced != nil {
			rec.EnhancedScore = *enhanced
		}
		if multiplier != nil {
			rec.PsychologicalMultiplier = *multiplier
		}
		if scoredAt != nil {
			rec.ComputedAt = *scoredAt
		}
		if len(explanationJSON) > 0 {
			if err := json.Unmarshal(explanationJSON, &rec.Explanation); err != nil {
				return nil, eris.Wrap(err, "store: decode score explanation")
			}
		}
		if len(multiplierJSON) > 0 {
			if err := json.Unmarshal(multiplierJSON, &rec.Multiplier); err != nil {
				return nil, eris.Wrap(err, "store: decode multiplier explanation")
			}
		}
		st.Score = rec
	}
	return st, nil
}

func (s *PostgresStore) CreateStartup(ctx context.Context, st *Startup) error {
	featuresJSON, err := json.Marshal(st.Features)
	if err != nil {
		return eris.Wrap(err, "store: encode features")
	}
	signalsJSON, err := json.Marshal(st.Signals)
	if err != nil {
		return eris.Wrap(err, "store: encode signals")
	}
	if st.Sectors == nil {
		st.Sectors = []string{}
	}

	err = s.db.QueryRow(ctx, `
		INSERT INTO startups (name, public_profile, sectors, stage, geography, features, signals)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
		RETURNING id, created_at, updated_at`,
		st.Name, st.PublicProfile, st.Sectors, st.Stage, st.Geography, featuresJSON, signalsJSON,
	).Scan(&st.ID, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return eris.Wrap(err, "store: create startup")
	}
	return nil
}

func (s *PostgresStore) GetStartup(ctx context.Context, id uuid.UUID) (*Startup, error) {
	st, err := scanStartup(s.db.QueryRow(ctx, `
		SELECT `+startupColumns+`
		FROM startups WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get startup %s", id)
	}
	return st, nil
}

func (s *PostgresStore) ListScoredStartupIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id FROM startups WHERE total_score IS NOT NULL ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list scored startups")
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "store: scan startup id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateStartupScoring locks the row, lets fn mutate it, then writes inputs
// and every derived score column in a single UPDATE.
func (s *PostgresStore) UpdateStartupScoring(ctx context.Context, id uuid.UUID, fn MutateFn) (*Startup, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, eris.Wrap(err, "store: begin tx")
	}
	defer rollback(ctx, tx)

	st, err := scanStartup(tx.QueryRow(ctx, `
		SELECT `+startupColumns+`
		FROM startups WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrStartupNotFound, "store: %s", id)
	}
	if err != nil {
		return nil, classify(err, "store: lock startup", nil)
	}

	if err := fn(st); err != nil {
		return nil, err
	}

	featuresJSON, err := json.Marshal(st.Features)
	if err != nil {
		return nil, eris.Wrap(err, "store: encode features")
	}
	signalsJSON, err := json.Marshal(st.Signals)
	if err != nil {
		return nil, eris.Wrap(err, "store: encode signals")
	}

	var total, enhanced, multiplier *float64
	var weightsVersion *string
	var explanationJSON, multiplierJSON []byte
	var scoredAt *time.Time
	if rec := st.Score; rec != nil {
		total, enhanced, multiplier = &rec.TotalScore, &rec.EnhancedScore, &rec.PsychologicalMultiplier
		weightsVersion = &rec.WeightsVersion
		if explanationJSON, err = json.Marshal(rec.Explanation); err != nil {
			return nil, eris.Wrap(err, "store: encode score explanation")
		}
		if multiplierJSON, err = json.Marshal(rec.Multiplier); err != nil {
			return nil, eris.Wrap(err, "store: encode multiplier explanation")
		}
		scoredAt = &rec.ComputedAt
	}

	if err := tx.QueryRow(ctx, `
		UPDATE startups SET
			features = $1, signals = $2,
			total_score = $3, enhanced_score = $4, psychological_multiplier = $5,
			weights_version = $6, score_explanation = $7, multiplier_explanation = $8,
			scored_at = $9, updated_at = now()
		WHERE id = $10
		RETURNING updated_at`,
		featuresJSON, signalsJSON,
		total, enhanced, multiplier,
		weightsVersion, explanationJSON, multiplierJSON,
		scoredAt, id,
	).Scan(&st.UpdatedAt); err != nil {
		return nil, classify(err, "store: update startup scoring", nil)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, classify(err, "store: commit startup scoring", nil)
	}
	return st, nil
}

func (s *PostgresStore) CreateInvestor(ctx context.Context, inv *Investor) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO investors (name, firm, investor_type, tier, public_profile)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5)
		RETURNING id`,
		inv.Name, inv.Firm, inv.Type, inv.Tier, inv.PublicProfile,
	).Scan(&inv.ID)
	if err != nil {
		return eris.Wrap(err, "store: create investor")
	}
	return nil
}

// CreateMatch inserts the match and, when present, its discovery event in
// one transaction. The event reuses the match's created_at.
func (s *PostgresStore) CreateMatch(ctx context.Context, m NewMatch) (uuid.UUID, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return uuid.Nil, eris.Wrap(err, "store: begin tx")
	}
	defer rollback(ctx, tx)

	var id uuid.UUID
	var createdAt time.Time
	if err := tx.QueryRow(ctx, `
		INSERT INTO matches (startup_id, investor_id, match_score)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		m.StartupID, m.InvestorID, m.Score,
	).Scan(&id, &createdAt); err != nil {
		return uuid.Nil, eris.Wrap(err, "store: create match")
	}

	if e := m.Discovery; e != nil {
		e.StartupID = m.StartupID
		e.CreatedAt = createdAt
		if err := tx.QueryRow(ctx, `
			INSERT INTO discovery_events (startup_id, geography, sector, stage, created_at)
			VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5)
			RETURNING id`,
			e.StartupID, e.Geography, e.Sector, e.Stage, e.CreatedAt,
		).Scan(&e.ID); err != nil {
			return uuid.Nil, eris.Wrap(err, "store: record match discovery")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, eris.Wrap(err, "store: commit match")
	}
	return id, nil
}

func (s *PostgresStore) ListMatches(ctx context.Context, filter MatchFilter) ([]*MatchRow, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(ctx, `
		SELECT m.id, m.match_score, m.created_at,
			s.id, s.name, s.public_profile, COALESCE(s.total_score, 0), s.sectors, s.stage, COALESCE(s.geography, ''),
			i.id, i.name, COALESCE(i.firm, ''), COALESCE(i.investor_type, ''), i.tier, i.public_profile
		FROM matches m
		JOIN startups s ON s.id = m.startup_id
		JOIN investors i ON i.id = m.investor_id
		WHERE m.created_at >= $1
		ORDER BY m.created_at DESC, m.id
		LIMIT $2`,
		filter.Since, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: list matches")
	}
	defer rows.Close()

	var out []*MatchRow
	for rows.Next() {
		m := &MatchRow{}
		if err := rows.Scan(
			&m.MatchID, &m.MatchScore, &m.CreatedAt,
			&m.StartupID, &m.StartupName, &m.StartupPublic, &m.StartupScore, &m.Sectors, &m.Stage, &m.Geography,
			&m.Investor.ID, &m.Investor.Name, &m.Investor.Firm, &m.Investor.Type, &m.Investor.Tier, &m.Investor.PublicProfile,
		); err != nil {
			return nil, eris.Wrap(err, "store: scan match")
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RecordDiscoveryEvent(ctx context.Context, e *DiscoveryEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO discovery_events (startup_id, geography, sector, stage, created_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5)
		RETURNING id`,
		e.StartupID, e.Geography, e.Sector, e.Stage, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return eris.Wrap(err, "store: record discovery event")
	}
	return nil
}

// DiscoveryEvents reads inside a REPEATABLE READ read-only transaction so a
// concurrent insert cannot land halfway through the scan.
func (s *PostgresStore) DiscoveryEvents(ctx context.Context, since, until time.Time) ([]*DiscoveryEvent, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, eris.Wrap(err, "store: begin snapshot")
	}
	defer rollback(ctx, tx)

	rows, err := tx.Query(ctx, `
		SELECT id, startup_id, COALESCE(geography, ''), COALESCE(sector, ''), stage, created_at
		FROM discovery_events
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at, id`,
		since, until,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: query discovery events")
	}

	var out []*DiscoveryEvent
	for rows.Next() {
		e := &DiscoveryEvent{}
		if err := rows.Scan(&e.ID, &e.StartupID, &e.Geography, &e.Sector, &e.Stage, &e.CreatedAt); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "store: scan discovery event")
		}
		out = append(out, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate discovery events")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "store: close snapshot")
	}
	return out, nil
}
