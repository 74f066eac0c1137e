package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/votesquad/voter-cli/internal/blocks"
	"github.com/votesquad/voter-cli/internal/mece"
	"github.com/votesquad/voter-cli/internal/model"
	"github.com/votesquad/voter-cli/internal/sbe"
	"github.com/votesquad/voter-cli/internal/store"
	"github.com/votesquad/voter-cli/pkg/geocode"
)

// FileSource fetches the statewide registration and history files and
// returns local paths. sbe.Source implements it against the state board
// download site.
type FileSource interface {
	FetchRegistration(ctx context.Context) (string, error)
	FetchHistory(ctx context.Context) (string, error)
}

// BlockLoader supplies county census block polygons for the spatial
// join. blocks.Loader implements it against the TIGER download site.
type BlockLoader interface {
	Features(ctx context.Context, stateFIPS, countyFIPS string) ([]blocks.Block, error)
}

// Deps are the injectable collaborators of a run.
type Deps struct {
	Source   FileSource
	Geocoder geocode.Client
	Blocks   BlockLoader // nil skips the spatial join
	Store    store.Store
}

// RunConfig controls one county run.
type RunConfig struct {
	County     string
	StateFIPS  string
	CountyFIPS string

	Elections mece.ElectionSet // nil uses DefaultElections
	Rules     mece.RuleSet     // nil uses DefaultRules

	Batch geocode.BatchOptions

	// Local file overrides, used when the statewide files are already
	// on disk. When set, Source is not called for that file.
	HistoryFile      string
	RegistrationFile string
}

// Run executes the full county pipeline and persists the results. The
// returned Run carries the final status and result counts; a non-nil
// error means the run failed and was marked as such in the store.
func Run(ctx context.Context, cfg RunConfig, deps Deps) (*model.Run, error) {
	logger := zap.L().With(zap.String("component", "pipeline"), zap.String("county", cfg.County))
	start := time.Now()

	county := sbe.NormalizeCounty(cfg.County)
	elections := cfg.Elections
	if elections == nil {
		elections = mece.DefaultElections()
	}
	rules := cfg.Rules
	if rules == nil {
		rules = mece.DefaultRules()
	}

	run, err := deps.Store.CreateRun(ctx, county)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}

	fail := func(stage string, cause error) (*model.Run, error) {
		logger.Error("run failed", zap.String("stage", stage), zap.Error(cause))
		if uerr := deps.Store.UpdateRunStatus(ctx, run.ID, model.RunStatusFailed); uerr != nil {
			logger.Warn("could not mark run failed", zap.Error(uerr))
		}
		run.Status = model.RunStatusFailed
		return run, eris.Wrapf(cause, "pipeline: %s", stage)
	}

	// Fetch.
	if err := deps.Store.UpdateRunStatus(ctx, run.ID, model.RunStatusFetching); err != nil {
		return fail("update status", err)
	}
	historyPath := cfg.HistoryFile
	if historyPath == "" {
		if historyPath, err = deps.Source.FetchHistory(ctx); err != nil {
			return fail("fetch history", err)
		}
	}
	registrationPath := cfg.RegistrationFile
	if registrationPath == "" {
		if registrationPath, err = deps.Source.FetchRegistration(ctx); err != nil {
			return fail("fetch registration", err)
		}
	}

	// Score: participation matrix and tier assignment.
	if err := deps.Store.UpdateRunStatus(ctx, run.ID, model.RunStatusScoring); err != nil {
		return fail("update status", err)
	}
	history, err := sbe.CountyHistory(ctx, historyPath, county)
	if err != nil {
		return fail("read history", err)
	}
	matrix := mece.Build(history, elections)
	tiers := mece.Assign(matrix, rules)
	logger.Info("tiers assigned",
		zap.Int("history_records", len(history)),
		zap.Int("voters", matrix.Len()),
	)

	reg, err := sbe.CountyRegistration(ctx, registrationPath, county)
	if err != nil {
		return fail("read registration", err)
	}

	// Registered voters with no qualifying history join at the
	// catch-all tier. Voters in history but no longer registered keep
	// their assigned tier.
	precincts := make(map[string]string, len(reg.Records))
	for _, r := range reg.Records {
		precincts[r.VoterID] = r.Precinct
		if _, ok := tiers[r.VoterID]; !ok {
			tiers[r.VoterID] = rules.CatchAll()
		}
	}

	// Geocode.
	if err := deps.Store.UpdateRunStatus(ctx, run.ID, model.RunStatusGeocoding); err != nil {
		return fail("update status", err)
	}
	addrs := make([]geocode.AddressInput, 0, len(reg.Records))
	for _, r := range reg.Records {
		addrs = append(addrs, geocode.AddressInput{
			ID:      r.VoterID,
			Street:  r.StreetAddress,
			City:    r.City,
			State:   r.State,
			ZipCode: r.ZipCode,
		})
	}
	results, summary, err := geocode.BatchGeocodeAll(ctx, deps.Geocoder, addrs, cfg.Batch)
	if err != nil {
		return fail("geocode", err)
	}

	// Join.
	if err := deps.Store.UpdateRunStatus(ctx, run.ID, model.RunStatusJoining); err != nil {
		return fail("update status", err)
	}
	participation := make(map[string]map[string]int, matrix.Len())
	for _, id := range matrix.VoterIDs() {
		row, _ := matrix.Row(id)
		cells := make(map[string]int, len(elections))
		for _, name := range elections.Names() {
			cells[name] = row.Count(name)
		}
		participation[id] = cells
	}
	points, joinStats := Join(JoinInput{
		Tiers:         tiers,
		Participation: participation,
		Precincts:     precincts,
		Results:       results,
	})

	// Spatial join, optional.
	if deps.Blocks != nil {
		features, err := deps.Blocks.Features(ctx, cfg.StateFIPS, cfg.CountyFIPS)
		if err != nil {
			return fail("load blocks", err)
		}
		blocks.NewIndex(features).TagPoints(points)
	}

	// Tally and persist.
	if err := deps.Store.UpdateRunStatus(ctx, run.ID, model.RunStatusTallying); err != nil {
		return fail("update status", err)
	}
	tallies := mece.TallyBlocks(points)
	if err := deps.Store.SaveVoterPoints(ctx, run.ID, points); err != nil {
		return fail("save voter points", err)
	}
	if err := deps.Store.SaveBlockTallies(ctx, run.ID, tallies); err != nil {
		return fail("save block tallies", err)
	}

	result := &model.RunResult{
		VotersTallied:   joinStats.Total,
		VotersGeocoded:  joinStats.Matched,
		VotersUnmatched: joinStats.Unmatched,
		RowsExcluded:    summary.Excluded + reg.Dropped,
		ChunksSubmitted: summary.Chunks,
		ChunksFailed:    len(summary.Failures),
		BlocksTallied:   len(tallies),
		DurationSecs:    time.Since(start).Seconds(),
	}
	if err := deps.Store.CompleteRun(ctx, run.ID, result); err != nil {
		return fail("complete run", err)
	}

	run.Status = model.RunStatusComplete
	run.Result = result
	logger.Info("run complete",
		zap.String("run_id", run.ID),
		zap.Int("voters", result.VotersTallied),
		zap.Int("geocoded", result.VotersGeocoded),
		zap.Int("blocks", result.BlocksTallied),
		zap.Float64("duration_secs", result.DurationSecs),
	)
	return run, nil
}
