package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/votesquad/voter-cli/internal/model"
	"github.com/votesquad/voter-cli/pkg/geocode"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	county     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS voter_points (
	run_id        TEXT NOT NULL REFERENCES runs(id),
	voter_id      TEXT NOT NULL,
	tier          INTEGER NOT NULL,
	matched       INTEGER NOT NULL,
	match_status  TEXT NOT NULL,
	latitude      REAL,
	longitude     REAL,
	block_id      TEXT,
	precinct      TEXT,
	participation TEXT NOT NULL,
	PRIMARY KEY (run_id, voter_id)
);

CREATE TABLE IF NOT EXISTS block_tallies (
	run_id   TEXT NOT NULL REFERENCES runs(id),
	block_id TEXT NOT NULL,
	mece1    INTEGER NOT NULL DEFAULT 0,
	mece2    INTEGER NOT NULL DEFAULT 0,
	mece3    INTEGER NOT NULL DEFAULT 0,
	mece4    INTEGER NOT NULL DEFAULT 0,
	mece5    INTEGER NOT NULL DEFAULT 0,
	total    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, block_id)
);

CREATE TABLE IF NOT EXISTS geocode_cache (
	address_hash TEXT PRIMARY KEY,
	result       TEXT NOT NULL,
	matched      INTEGER NOT NULL,
	cached_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_county ON runs(county);
CREATE INDEX IF NOT EXISTS idx_voter_points_block ON voter_points(run_id, block_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, county string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, county, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, county, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		County:    county,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, county, status, result, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)

	var r model.Run
	var status string
	var resultJSON sql.NullString
	if err := row.Scan(&r.ID, &r.County, &status, &resultJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, eris.Errorf("sqlite: run %s not found", runID)
		}
		return nil, eris.Wrap(err, "sqlite: get run")
	}
	r.Status = model.RunStatus(status)
	if resultJSON.Valid && resultJSON.String != "" {
		var result model.RunResult
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal run result")
		}
		r.Result = &result
	}
	return &r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, county, status, result, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.County != "" {
		query += ` AND county = ?`
		args = append(args, filter.County)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var status string
		var resultJSON sql.NullString
		if err := rows.Scan(&r.ID, &r.County, &status, &resultJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.Status = model.RunStatus(status)
		if resultJSON.Valid && resultJSON.String != "" {
			var result model.RunResult
			if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal run result")
			}
			r.Result = &result
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveVoterPoints(ctx context.Context, runID string, points []model.VoterPoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin voter points tx")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO voter_points (run_id, voter_id, tier, matched, match_status, latitude, longitude, block_id, precinct, participation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, voter_id) DO UPDATE SET
			tier = excluded.tier,
			matched = excluded.matched,
			match_status = excluded.match_status,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			block_id = excluded.block_id,
			precinct = excluded.precinct,
			participation = excluded.participation`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare voter points insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, p := range points {
		participationJSON, err := json.Marshal(p.Participation)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal participation for %s", p.VoterID)
		}
		if _, err := stmt.ExecContext(ctx,
			runID, p.VoterID, p.Tier, p.Matched, p.MatchStatus,
			nullFloat(p.Latitude, p.Matched), nullFloat(p.Longitude, p.Matched),
			nullString(p.BlockID), nullString(p.Precinct), string(participationJSON),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert voter point %s", p.VoterID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit voter points")
}

func (s *SQLiteStore) GetVoterPoints(ctx context.Context, runID string) ([]model.VoterPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT voter_id, tier, matched, match_status, latitude, longitude, block_id, precinct, participation
		FROM voter_points WHERE run_id = ? ORDER BY voter_id`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get voter points")
	}
	defer rows.Close()

	var points []model.VoterPoint
	for rows.Next() {
		var p model.VoterPoint
		var lat, lon sql.NullFloat64
		var blockID, precinct sql.NullString
		var participationJSON string
		if err := rows.Scan(&p.VoterID, &p.Tier, &p.Matched, &p.MatchStatus,
			&lat, &lon, &blockID, &precinct, &participationJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan voter point")
		}
		p.Latitude = lat.Float64
		p.Longitude = lon.Float64
		p.BlockID = blockID.String
		p.Precinct = precinct.String
		if err := json.Unmarshal([]byte(participationJSON), &p.Participation); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal participation for %s", p.VoterID)
		}
		points = append(points, p)
	}
	return points, eris.Wrap(rows.Err(), "sqlite: iterate voter points")
}

func (s *SQLiteStore) GetBlockTallies(ctx context.Context, runID string) ([]model.BlockTally, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT block_id, mece1, mece2, mece3, mece4, mece5, total
		FROM block_tallies WHERE run_id = ? ORDER BY block_id`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get block tallies")
	}
	defer rows.Close()

	var tallies []model.BlockTally
	for rows.Next() {
		var t model.BlockTally
		if err := rows.Scan(&t.BlockID, &t.Tiers[0], &t.Tiers[1], &t.Tiers[2], &t.Tiers[3], &t.Tiers[4], &t.Total); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan block tally")
		}
		tallies = append(tallies, t)
	}
	return tallies, eris.Wrap(rows.Err(), "sqlite: iterate block tallies")
}

func (s *SQLiteStore) SaveBlockTallies(ctx context.Context, runID string, tallies []model.BlockTally) error {
	if len(tallies) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tallies tx")
	}
	defer func() { _ = tx.Rollback() }()

	for _, t := range tallies {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO block_tallies (run_id, block_id, mece1, mece2, mece3, mece4, mece5, total)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (run_id, block_id) DO UPDATE SET
				mece1 = excluded.mece1,
				mece2 = excluded.mece2,
				mece3 = excluded.mece3,
				mece4 = excluded.mece4,
				mece5 = excluded.mece5,
				total = excluded.total`,
			runID, t.BlockID, t.Tiers[0], t.Tiers[1], t.Tiers[2], t.Tiers[3], t.Tiers[4], t.Total,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert block tally %s", t.BlockID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit block tallies")
}

func (s *SQLiteStore) GetCachedGeocode(ctx context.Context, addressHash string) (*geocode.Result, bool, error) {
	var resultJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT result FROM geocode_cache WHERE address_hash = ?`, addressHash,
	).Scan(&resultJSON)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: get cached geocode")
	}

	var r geocode.Result
	if err := json.Unmarshal([]byte(resultJSON), &r); err != nil {
		return nil, false, eris.Wrap(err, "sqlite: unmarshal cached geocode")
	}
	return &r, true, nil
}

func (s *SQLiteStore) PutCachedGeocode(ctx context.Context, addressHash string, result geocode.Result) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal geocode result")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO geocode_cache (address_hash, result, matched, cached_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (address_hash) DO UPDATE SET
			result = excluded.result,
			matched = excluded.matched,
			cached_at = excluded.cached_at`,
		addressHash, string(resultJSON), result.Matched(), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: put cached geocode")
}

// checkRowsAffected returns a not-found error when an update touched no rows.
func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", kind, id)
	}
	if n == 0 {
		return eris.Errorf("sqlite: %s %s not found", kind, id)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f float64, valid bool) any {
	if !valid {
		return nil
	}
	return f
}
