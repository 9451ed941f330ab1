package store

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ugobe007/pythh-sub021/internal/scoring"
)

var versionCols = []string{
	"version", "weights", "description", "immutable", "created_at",
	"superseded_by", "superseded_at", "active",
}

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *PostgresStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPostgresStoreWithDB(mock)
}

func weightsJSON(t *testing.T) []byte {
	t.Helper()
	b, err := json.Marshal(scoring.DefaultWeightConfig())
	require.NoError(t, err)
	return b
}

func TestPostgresStore_ActiveWeightVersion(t *testing.T) {
	mock, s := newMockStore(t)
	created := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM god_active_version a`).
		WillReturnRows(pgxmock.NewRows(versionCols).AddRow(
			"1.0.0", weightsJSON(t), "initial", true, created,
			(*string)(nil), (*time.Time)(nil), true,
		))

	v, err := s.ActiveWeightVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v.Version)
	assert.True(t, v.Active)
	assert.True(t, v.Immutable)
	assert.Nil(t, v.SupersededBy)
	assert.Equal(t, 0.25, v.Weights.ComponentWeights[scoring.ComponentTeam])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ActiveWeightVersionMissing(t *testing.T) {
	mock, s := newMockStore(t)

	mock.ExpectQuery(`FROM god_active_version a`).
		WillReturnRows(pgxmock.NewRows(versionCols))

	_, err := s.ActiveWeightVersion(context.Background())
	assert.ErrorIs(t, err, ErrNoActiveVersion)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Supersede(t *testing.T) {
	mock, s := newMockStore(t)
	created := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectQuery(`SELECT version FROM god_active_version WHERE id = 1 FOR UPDATE`).
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow("1.0.0"))
	mock.ExpectQuery(`INSERT INTO god_weight_versions`).
		WithArgs("1.1.0", pgxmock.AnyArg(), "rebalance").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(created))
	mock.ExpectExec(`UPDATE god_weight_versions SET superseded_by`).
		WithArgs("1.1.0", created, "1.0.0").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE god_active_version SET version`).
		WithArgs("1.1.0").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	next := &WeightVersion{Version: "1.1.0", Weights: scoring.DefaultWeightConfig(), Description: "rebalance"}
	err := s.SupersedeWeightVersion(context.Background(), "1.0.0", next)
	require.NoError(t, err)
	assert.True(t, next.Active)
	assert.Equal(t, created, next.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SupersedeNotActive(t *testing.T) {
	mock, s := newMockStore(t)

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectQuery(`SELECT version FROM god_active_version WHERE id = 1 FOR UPDATE`).
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow("1.1.0"))
	mock.ExpectRollback()

	err := s.SupersedeWeightVersion(context.Background(), "1.0.0",
		&WeightVersion{Version: "1.2.0", Weights: scoring.DefaultWeightConfig()})
	assert.ErrorIs(t, err, ErrVersionNotActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SupersedeDuplicate(t *testing.T) {
	mock, s := newMockStore(t)

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectQuery(`SELECT version FROM god_active_version WHERE id = 1 FOR UPDATE`).
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow("1.0.0"))
	mock.ExpectQuery(`INSERT INTO god_weight_versions`).
		WithArgs("1.0.0", pgxmock.AnyArg(), "").
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	err := s.SupersedeWeightVersion(context.Background(), "1.0.0",
		&WeightVersion{Version: "1.0.0", Weights: scoring.DefaultWeightConfig()})
	assert.ErrorIs(t, err, ErrVersionAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SupersedeSerializationFailure(t *testing.T) {
	mock, s := newMockStore(t)

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectQuery(`SELECT version FROM god_active_version WHERE id = 1 FOR UPDATE`).
		WillReturnError(&pgconn.PgError{Code: "40001", Message: "could not serialize access"})
	mock.ExpectRollback()

	err := s.SupersedeWeightVersion(context.Background(), "1.0.0",
		&WeightVersion{Version: "1.1.0", Weights: scoring.DefaultWeightConfig()})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ActivateUnknownVersion(t *testing.T) {
	mock, s := newMockStore(t)

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectQuery(`SELECT version FROM god_active_version WHERE id = 1 FOR UPDATE`).
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow("1.1.0"))
	mock.ExpectQuery(`FROM god_weight_versions v`).
		WithArgs("0.9.0").
		WillReturnRows(pgxmock.NewRows(versionCols))
	mock.ExpectRollback()

	_, err := s.ActivateWeightVersion(context.Background(), "0.9.0")
	assert.ErrorIs(t, err, ErrVersionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Activate(t *testing.T) {
	mock, s := newMockStore(t)
	created := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	by := "1.1.0"
	at := created.Add(24 * time.Hour)

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectQuery(`SELECT version FROM god_active_version WHERE id = 1 FOR UPDATE`).
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow("1.1.0"))
	mock.ExpectQuery(`FROM god_weight_versions v`).
		WithArgs("1.0.0").
		WillReturnRows(pgxmock.NewRows(versionCols).AddRow(
			"1.0.0", weightsJSON(t), "initial", true, created, &by, &at, false,
		))
	mock.ExpectExec(`INSERT INTO god_active_version`).
		WithArgs("1.0.0", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	v, err := s.ActivateWeightVersion(context.Background(), "1.0.0")
	require.NoError(t, err)
	assert.True(t, v.Active)
	require.NotNil(t, v.SupersededBy)
	assert.Equal(t, "1.1.0", *v.SupersededBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DiscoveryEventsSnapshot(t *testing.T) {
	mock, s := newMockStore(t)
	since := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	until := since.Add(28 * 24 * time.Hour)
	startup := uuid.New()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	mock.ExpectQuery(`FROM discovery_events`).
		WithArgs(since, until).
		WillReturnRows(pgxmock.NewRows([]string{"id", "startup_id", "geography", "sector", "stage", "created_at"}).
			AddRow(uuid.New(), startup, "europe", "fintech", 2, since.Add(time.Hour)).
			AddRow(uuid.New(), startup, "", "", 0, since.Add(2*time.Hour)))
	mock.ExpectCommit()

	events, err := s.DiscoveryEvents(context.Background(), since, until)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "europe", events[0].Geography)
	assert.Equal(t, startup, events[1].StartupID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateStartupScoringAbortsOnCallbackError(t *testing.T) {
	mock, s := newMockStore(t)
	id := uuid.New()
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectQuery(`FROM startups WHERE id = .+ FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "public_profile", "sectors", "stage", "geography",
			"features", "signals",
			"total_score", "enhanced_score", "psychological_multiplier", "weights_version",
			"score_explanation", "multiplier_explanation", "scored_at",
			"created_at", "updated_at",
		}).AddRow(
			id, "Acme", false, []string{"fintech"}, 2, (*string)(nil),
			[]byte(`{"team":0.8}`), []byte(`{}`),
			(*float64)(nil), (*float64)(nil), (*float64)(nil), (*string)(nil),
			[]byte(nil), []byte(nil), (*time.Time)(nil),
			now, now,
		))
	mock.ExpectRollback()

	boom := errors.New("boom")
	_, err := s.UpdateStartupScoring(context.Background(), id, func(st *Startup) error {
		assert.Equal(t, 0.8, st.Features[scoring.ComponentTeam])
		assert.Nil(t, st.Score)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateStartupScoringRejectsUnencodableFeatures(t *testing.T) {
	mock, s := newMockStore(t)
	id := uuid.New()
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectQuery(`FROM startups WHERE id = .+ FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "public_profile", "sectors", "stage", "geography",
			"features", "signals",
			"total_score", "enhanced_score", "psychological_multiplier", "weights_version",
			"score_explanation", "multiplier_explanation", "scored_at",
			"created_at", "updated_at",
		}).AddRow(
			id, "Acme", false, []string{"fintech"}, 2, (*string)(nil),
			[]byte(`{"team":0.8}`), []byte(`{}`),
			(*float64)(nil), (*float64)(nil), (*float64)(nil), (*string)(nil),
			[]byte(nil), []byte(nil), (*time.Time)(nil),
			now, now,
		))
	// No UPDATE may run: a failed encode must not null out the features column.
	mock.ExpectRollback()

	_, err := s.UpdateStartupScoring(context.Background(), id, func(st *Startup) error {
		st.Features[scoring.ComponentTeam] = math.NaN()
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encode features")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateStartupRejectsUnencodableFeatures(t *testing.T) {
	mock, s := newMockStore(t)

	err := s.CreateStartup(context.Background(), &Startup{
		Name:     "Acme",
		Features: scoring.Features{scoring.ComponentTeam: math.Inf(1)},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encode features")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateMatchWritesDiscoveryInSameTx(t *testing.T) {
	mock, s := newMockStore(t)
	startupID, investorID, matchID, eventID := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	createdAt := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectQuery(`INSERT INTO matches`).
		WithArgs(startupID, investorID, 0.7).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(matchID, createdAt))
	mock.ExpectQuery(`INSERT INTO discovery_events`).
		WithArgs(startupID, "latam", "climate", 1, createdAt).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(eventID))
	mock.ExpectCommit()

	ev := &DiscoveryEvent{Geography: "latam", Sector: "climate", Stage: 1}
	id, err := s.CreateMatch(context.Background(), NewMatch{
		StartupID: startupID, InvestorID: investorID, Score: 0.7, Discovery: ev,
	})
	require.NoError(t, err)
	assert.Equal(t, matchID, id)
	assert.Equal(t, eventID, ev.ID)
	assert.Equal(t, startupID, ev.StartupID)
	assert.Equal(t, createdAt, ev.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateMatchRollsBackWhenDiscoveryFails(t *testing.T) {
	mock, s := newMockStore(t)
	startupID, investorID := uuid.New(), uuid.New()
	createdAt := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectQuery(`INSERT INTO matches`).
		WithArgs(startupID, investorID, 0.7).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(uuid.New(), createdAt))
	mock.ExpectQuery(`INSERT INTO discovery_events`).
		WithArgs(startupID, "latam", "climate", 1, createdAt).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := s.CreateMatch(context.Background(), NewMatch{
		StartupID: startupID, InvestorID: investorID, Score: 0.7,
		Discovery: &DiscoveryEvent{Geography: "latam", Sector: "climate", Stage: 1},
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify(nil, "op", nil))
	assert.ErrorIs(t, classify(&pgconn.PgError{Code: "40P01"}, "op", nil), ErrConflict)
	assert.ErrorIs(t, classify(&pgconn.PgError{Code: "23505"}, "op", ErrVersionAlreadyExists), ErrVersionAlreadyExists)

	plain := errors.New("connection reset")
	err := classify(plain, "op", ErrVersionAlreadyExists)
	assert.ErrorIs(t, err, plain)
	assert.False(t, errors.Is(err, ErrVersionAlreadyExists))
}
