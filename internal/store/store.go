// Package store persists pipeline runs, combined voter relations, block
// tallies, and the geocode cache, behind SQLite and Postgres backends.
package store

import (
	"context"

	"github.com/votesquad/voter-cli/internal/model"
	"github.com/votesquad/voter-cli/pkg/geocode"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	County string          `json:"county,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the voter pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, county string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Combined output relation
	SaveVoterPoints(ctx context.Context, runID string, points []model.VoterPoint) error
	SaveBlockTallies(ctx context.Context, runID string, tallies []model.BlockTally) error
	GetVoterPoints(ctx context.Context, runID string) ([]model.VoterPoint, error)
	GetBlockTallies(ctx context.Context, runID string) ([]model.BlockTally, error)

	// Geocode cache; both matches and non-matches are cached.
	GetCachedGeocode(ctx context.Context, addressHash string) (*geocode.Result, bool, error)
	PutCachedGeocode(ctx context.Context, addressHash string, result geocode.Result) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// GeocodeCache adapts a Store to the geocode.Cache interface so the
// geocoding client can be wrapped with persistent caching.
type GeocodeCache struct {
	Store Store
}

func (c GeocodeCache) Get(ctx context.Context, addressHash string) (*geocode.Result, bool, error) {
	return c.Store.GetCachedGeocode(ctx, addressHash)
}

func (c GeocodeCache) Put(ctx context.Context, addressHash string, result geocode.Result) error {
	return c.Store.PutCachedGeocode(ctx, addressHash, result)
}
