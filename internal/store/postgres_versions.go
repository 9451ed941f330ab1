package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

const versionColumns = `v.version, v.weights, v.description, v.immutable, v.created_at,
	v.superseded_by, v.superseded_at, (a.version IS NOT NULL) AS active`

const versionFrom = `FROM god_weight_versions v
	LEFT JOIN god_active_version a ON a.version = v.version`

func scanVersion(row pgx.Row) (*WeightVersion, error) {
	v := &WeightVersion{}
	var weightsJSON []byte
	err := row.Scan(&v.Version, &weightsJSON, &v.Description, &v.Immutable, &v.CreatedAt,
		&v.SupersededBy, &v.SupersededAt, &v.Active)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(weightsJSON, &v.Weights); err != nil {
		return nil, eris.Wrapf(err, "store: decode weights for version %s", v.Version)
	}
	return v, nil
}

func (s *PostgresStore) ActiveWeightVersion(ctx context.Context) (*WeightVersion, error) {
	v, err := scanVersion(s.db.QueryRow(ctx, `
		SELECT `+versionColumns+`
		FROM god_active_version a
		JOIN god_weight_versions v ON v.version = a.version
		WHERE a.id = 1`))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoActiveVersion
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: get active weight version")
	}
	return v, nil
}

func (s *PostgresStore) GetWeightVersion(ctx context.Context, version string) (*WeightVersion, error) {
	v, err := scanVersion(s.db.QueryRow(ctx, `
		SELECT `+versionColumns+` `+versionFrom+`
		WHERE v.version = $1`, version))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get weight version %s", version)
	}
	return v, nil
}

func (s *PostgresStore) ListWeightVersions(ctx context.Context) ([]*WeightVersion, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+versionColumns+` `+versionFrom+`
		ORDER BY v.created_at, v.version`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list weight versions")
	}
	defer rows.Close()

	var out []*WeightVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan weight version")
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) InitWeightVersion(ctx context.Context, v *WeightVersion) (bool, error) {
	weightsJSON, err := json.Marshal(v.Weights)
	if err != nil {
		return false, eris.Wrap(err, "store: encode weights")
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, eris.Wrap(err, "store: begin tx")
	}
	defer rollback(ctx, tx)

	// Serializes concurrent bootstraps on an empty pointer table.
	if _, err := tx.Exec(ctx, `LOCK TABLE god_active_version IN EXCLUSIVE MODE`); err != nil {
		return false, classify(err, "store: lock active pointer", nil)
	}

	var current string
	err = tx.QueryRow(ctx, `SELECT version FROM god_active_version WHERE id = 1`).Scan(&current)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, eris.Wrap(err, "store: read active pointer")
	}

	if err := tx.QueryRow(ctx, `
		INSERT INTO god_weight_versions (version, weights, description)
		VALUES ($1, $2, $3)
		RETURNING created_at`,
		v.Version, weightsJSON, v.Description,
	).Scan(&v.CreatedAt); err != nil {
		return false, classify(err, "store: insert weight version", ErrVersionAlreadyExists)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO god_active_version (id, version, updated_at) VALUES (1, $1, now())`,
		v.Version,
	); err != nil {
		return false, classify(err, "store: set active pointer", nil)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, classify(err, "store: commit init", nil)
	}
	v.Active = true
	v.Immutable = true
	return true, nil
}

// SupersedeWeightVersion inserts next as the active version and links the
// previous one to it. The pointer row is locked for the whole transaction so
// racing callers observe either the old or the new pointer, never neither.
func (s *PostgresStore) SupersedeWeightVersion(ctx context.Context, oldVersion string, next *WeightVersion) error {
	weightsJSON, err := json.Marshal(next.Weights)
	if err != nil {
		return eris.Wrap(err, "store: encode weights")
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return eris.Wrap(err, "store: begin tx")
	}
	defer rollback(ctx, tx)

	var current string
	err = tx.QueryRow(ctx, `SELECT version FROM god_active_version WHERE id = 1 FOR UPDATE`).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(ErrVersionNotActive, "store: %s (no version is active)", oldVersion)
	}
	if err != nil {
		return classify(err, "store: lock active pointer", nil)
	}
	if current != oldVersion {
		return eris.Wrapf(ErrVersionNotActive, "store: %s (active is %s)", oldVersion, current)
	}

	if err := tx.QueryRow(ctx, `
		INSERT INTO god_weight_versions (version, weights, description)
		VALUES ($1, $2, $3)
		RETURNING created_at`,
		next.Version, weightsJSON, next.Description,
	).Scan(&next.CreatedAt); err != nil {
		return classify(err, "store: insert weight version "+next.Version, ErrVersionAlreadyExists)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE god_weight_versions SET superseded_by = $1, superseded_at = $2
		WHERE version = $3`,
		next.Version, next.CreatedAt, oldVersion,
	); err != nil {
		return classify(err, "store: link superseded version", nil)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE god_active_version SET version = $1, updated_at = now() WHERE id = 1`,
		next.Version,
	); err != nil {
		return classify(err, "store: move active pointer", nil)
	}

	if err := tx.Commit(ctx); err != nil {
		return classify(err, "store: commit supersede", nil)
	}
	next.Active = true
	next.Immutable = true
	return nil
}

// ActivateWeightVersion points the active pointer at target. Version records
// themselves are untouched, so the history chain survives rollbacks.
func (s *PostgresStore) ActivateWeightVersion(ctx context.Context, target string) (*WeightVersion, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, eris.Wrap(err, "store: begin tx")
	}
	defer rollback(ctx, tx)

	var current string
	err = tx.QueryRow(ctx, `SELECT version FROM god_active_version WHERE id = 1 FOR UPDATE`).Scan(&current)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, classify(err, "store: lock active pointer", nil)
	}

	v, err := scanVersion(tx.QueryRow(ctx, `
		SELECT `+versionColumns+` `+versionFrom+`
		WHERE v.version = $1`, target))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrVersionNotFound, "store: %s", target)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get weight version %s", target)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO god_active_version (id, version, updated_at) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET version = EXCLUDED.version, updated_at = EXCLUDED.updated_at`,
		target, time.Now().UTC(),
	); err != nil {
		return nil, classify(err, "store: move active pointer", nil)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, classify(err, "store: commit rollback", nil)
	}
	v.Active = true
	return v, nil
}
