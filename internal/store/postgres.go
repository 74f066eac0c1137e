package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/votesquad/voter-cli/internal/model"
	"github.com/votesquad/voter-cli/pkg/geocode"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies
// it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool; tests inject pgxmock here.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         UUID PRIMARY KEY,
	county     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS voter_points (
	run_id        UUID NOT NULL REFERENCES runs(id),
	voter_id      TEXT NOT NULL,
	tier          INT NOT NULL,
	matched       BOOLEAN NOT NULL,
	match_status  TEXT NOT NULL,
	latitude      DOUBLE PRECISION,
	longitude     DOUBLE PRECISION,
	block_id      TEXT,
	precinct      TEXT,
	participation JSONB NOT NULL,
	PRIMARY KEY (run_id, voter_id)
);

CREATE TABLE IF NOT EXISTS block_tallies (
	run_id   UUID NOT NULL REFERENCES runs(id),
	block_id TEXT NOT NULL,
	mece1    INT NOT NULL DEFAULT 0,
	mece2    INT NOT NULL DEFAULT 0,
	mece3    INT NOT NULL DEFAULT 0,
	mece4    INT NOT NULL DEFAULT 0,
	mece5    INT NOT NULL DEFAULT 0,
	total    INT NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, block_id)
);

CREATE TABLE IF NOT EXISTS geocode_cache (
	address_hash TEXT PRIMARY KEY,
	result       JSONB NOT NULL,
	matched      BOOLEAN NOT NULL,
	cached_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_county ON runs(county);
CREATE INDEX IF NOT EXISTS idx_voter_points_block ON voter_points(run_id, block_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, county string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, county, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, county, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		County:    county,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
		resultJSON, string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, county, status, result, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	)

	var r model.Run
	var status string
	var resultJSON []byte
	if err := row.Scan(&r.ID, &r.County, &status, &resultJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("postgres: run %s not found", runID)
		}
		return nil, eris.Wrap(err, "postgres: get run")
	}
	r.Status = model.RunStatus(status)
	if len(resultJSON) > 0 {
		var result model.RunResult
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run result")
		}
		r.Result = &result
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, county, status, result, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $1`
	}
	if filter.County != "" {
		args = append(args, filter.County)
		query += ` AND county = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var status string
		var resultJSON []byte
		if err := rows.Scan(&r.ID, &r.County, &status, &resultJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Status = model.RunStatus(status)
		if len(resultJSON) > 0 {
			var result model.RunResult
			if err := json.Unmarshal(resultJSON, &result); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal run result")
			}
			r.Result = &result
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) SaveVoterPoints(ctx context.Context, runID string, points []model.VoterPoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin voter points tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, p := range points {
		participationJSON, err := json.Marshal(p.Participation)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal participation for %s", p.VoterID)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO voter_points (run_id, voter_id, tier, matched, match_status, latitude, longitude, block_id, precinct, participation)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (run_id, voter_id) DO UPDATE SET
				tier = EXCLUDED.tier,
				matched = EXCLUDED.matched,
				match_status = EXCLUDED.match_status,
				latitude = EXCLUDED.latitude,
				longitude = EXCLUDED.longitude,
				block_id = EXCLUDED.block_id,
				precinct = EXCLUDED.precinct,
				participation = EXCLUDED.participation`,
			runID, p.VoterID, p.Tier, p.Matched, p.MatchStatus,
			nullFloat(p.Latitude, p.Matched), nullFloat(p.Longitude, p.Matched),
			nullString(p.BlockID), nullString(p.Precinct), participationJSON,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert voter point %s", p.VoterID)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit voter points")
}

func (s *PostgresStore) GetVoterPoints(ctx context.Context, runID string) ([]model.VoterPoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT voter_id, tier, matched, match_status, latitude, longitude, block_id, precinct, participation
		FROM voter_points WHERE run_id = $1 ORDER BY voter_id`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get voter points")
	}
	defer rows.Close()

	var points []model.VoterPoint
	for rows.Next() {
		var p model.VoterPoint
		var lat, lon *float64
		var blockID, precinct *string
		var participationJSON []byte
		if err := rows.Scan(&p.VoterID, &p.Tier, &p.Matched, &p.MatchStatus,
			&lat, &lon, &blockID, &precinct, &participationJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan voter point")
		}
		if lat != nil {
			p.Latitude = *lat
		}
		if lon != nil {
			p.Longitude = *lon
		}
		if blockID != nil {
			p.BlockID = *blockID
		}
		if precinct != nil {
			p.Precinct = *precinct
		}
		if err := json.Unmarshal(participationJSON, &p.Participation); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal participation for %s", p.VoterID)
		}
		points = append(points, p)
	}
	return points, eris.Wrap(rows.Err(), "postgres: iterate voter points")
}

func (s *PostgresStore) GetBlockTallies(ctx context.Context, runID string) ([]model.BlockTally, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT block_id, mece1, mece2, mece3, mece4, mece5, total
		FROM block_tallies WHERE run_id = $1 ORDER BY block_id`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get block tallies")
	}
	defer rows.Close()

	var tallies []model.BlockTally
	for rows.Next() {
		var t model.BlockTally
		if err := rows.Scan(&t.BlockID, &t.Tiers[0], &t.Tiers[1], &t.Tiers[2], &t.Tiers[3], &t.Tiers[4], &t.Total); err != nil {
			return nil, eris.Wrap(err, "postgres: scan block tally")
		}
		tallies = append(tallies, t)
	}
	return tallies, eris.Wrap(rows.Err(), "postgres: iterate block tallies")
}

func (s *PostgresStore) SaveBlockTallies(ctx context.Context, runID string, tallies []model.BlockTally) error {
	if len(tallies) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tallies tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, t := range tallies {
		if _, err := tx.Exec(ctx, `
			INSERT INTO block_tallies (run_id, block_id, mece1, mece2, mece3, mece4, mece5, total)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (run_id, block_id) DO UPDATE SET
				mece1 = EXCLUDED.mece1,
				mece2 = EXCLUDED.mece2,
				mece3 = EXCLUDED.mece3,
				mece4 = EXCLUDED.mece4,
				mece5 = EXCLUDED.mece5,
				total = EXCLUDED.total`,
			runID, t.BlockID, t.Tiers[0], t.Tiers[1], t.Tiers[2], t.Tiers[3], t.Tiers[4], t.Total,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert block tally %s", t.BlockID)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit block tallies")
}

func (s *PostgresStore) GetCachedGeocode(ctx context.Context, addressHash string) (*geocode.Result, bool, error) {
	var resultJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT result FROM geocode_cache WHERE address_hash = $1`, addressHash,
	).Scan(&resultJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: get cached geocode")
	}

	var r geocode.Result
	if err := json.Unmarshal(resultJSON, &r); err != nil {
		return nil, false, eris.Wrap(err, "postgres: unmarshal cached geocode")
	}
	return &r, true, nil
}

func (s *PostgresStore) PutCachedGeocode(ctx context.Context, addressHash string, result geocode.Result) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal geocode result")
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO geocode_cache (address_hash, result, matched, cached_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (address_hash) DO UPDATE SET
			result = EXCLUDED.result,
			matched = EXCLUDED.matched,
			cached_at = now()`,
		addressHash, resultJSON, result.Matched(),
	)
	return eris.Wrap(err, "postgres: put cached geocode")
}

