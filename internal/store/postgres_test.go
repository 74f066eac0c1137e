package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/votesquad/voter-cli/internal/model"
	"github.com/votesquad/voter-cli/pkg/geocode"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresFromPool(mock), mock
}

func TestPostgresMigrate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS runs").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateRun(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO runs").
		WithArgs(pgxmock.AnyArg(), "DURHAM", "queued", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), "DURHAM")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateRunStatusNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE runs SET status").
		WithArgs("tallying", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRunStatus(context.Background(), "missing", model.RunStatusTallying)
	assert.ErrorContains(t, err, "not found")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRun(t *testing.T) {
	s, mock := newMockStore(t)

	resultJSON, err := json.Marshal(model.RunResult{VotersTallied: 42, BlocksTallied: 7})
	require.NoError(t, err)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT id, county, status, result, created_at, updated_at FROM runs").
		WithArgs("run-1").
		WillReturnRows(pgxmock.
			NewRows([]string{"id", "county", "status", "result", "created_at", "updated_at"}).
			AddRow("run-1", "DURHAM", "complete", resultJSON, now, now))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Result)
	assert.Equal(t, 42, run.Result.VotersTallied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRunNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, county, status, result, created_at, updated_at FROM runs").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"id", "county", "status", "result", "created_at", "updated_at"}))

	_, err := s.GetRun(context.Background(), "missing")
	assert.ErrorContains(t, err, "not found")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListRunsWithFilter(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT id, county, status, result, created_at, updated_at FROM runs").
		WithArgs("failed", "DURHAM", 100).
		WillReturnRows(pgxmock.
			NewRows([]string{"id", "county", "status", "result", "created_at", "updated_at"}).
			AddRow("run-1", "DURHAM", "failed", []byte(nil), now, now))

	runs, err := s.ListRuns(context.Background(), RunFilter{
		Status: model.RunStatusFailed,
		County: "DURHAM",
	})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
	assert.Nil(t, runs[0].Result)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveVoterPoints(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO voter_points").
		WithArgs("run-1", "AA1001", 1, true, geocode.StatusMatch,
			35.9, -78.9, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO voter_points").
		WithArgs("run-1", "AA1002", 5, false, geocode.StatusNoMatch,
			nil, nil, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	points := []model.VoterPoint{
		{VoterID: "AA1001", Tier: 1, Matched: true, MatchStatus: geocode.StatusMatch, Latitude: 35.9, Longitude: -78.9},
		{VoterID: "AA1002", Tier: 5, Matched: false, MatchStatus: geocode.StatusNoMatch},
	}
	require.NoError(t, s.SaveVoterPoints(context.Background(), "run-1", points))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveVoterPointsEmpty(t *testing.T) {
	s, mock := newMockStore(t)

	// No expectations registered; an empty slice must not touch the pool.
	require.NoError(t, s.SaveVoterPoints(context.Background(), "run-1", nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveBlockTallies(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO block_tallies").
		WithArgs("run-1", "370630001001000", 3, 1, 0, 0, 2, 6).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	tallies := []model.BlockTally{
		{BlockID: "370630001001000", Tiers: [5]int{3, 1, 0, 0, 2}, Total: 6},
	}
	require.NoError(t, s.SaveBlockTallies(context.Background(), "run-1", tallies))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGeocodeCache(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT result FROM geocode_cache").
		WithArgs("deadbeef").
		WillReturnRows(pgxmock.NewRows([]string{"result"}))

	_, ok, err := s.GetCachedGeocode(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectExec("INSERT INTO geocode_cache").
		WithArgs("deadbeef", pgxmock.AnyArg(), true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = s.PutCachedGeocode(context.Background(), "deadbeef", geocode.Result{
		MatchStatus: geocode.StatusMatch, Latitude: 35.9, Longitude: -78.9,
	})
	require.NoError(t, err)

	resultJSON, jsonErr := json.Marshal(geocode.Result{MatchStatus: geocode.StatusMatch, Latitude: 35.9, Longitude: -78.9})
	require.NoError(t, jsonErr)
	mock.ExpectQuery("SELECT result FROM geocode_cache").
		WithArgs("deadbeef").
		WillReturnRows(pgxmock.NewRows([]string{"result"}).AddRow(resultJSON))

	got, ok, err := s.GetCachedGeocode(context.Background(), "deadbeef")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, geocode.StatusMatch, got.MatchStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}
