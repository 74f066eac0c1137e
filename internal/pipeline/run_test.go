package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	geom "github.com/twpayne/go-geom"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/votesquad/voter-cli/internal/blocks"
	"github.com/votesquad/voter-cli/internal/model"
	"github.com/votesquad/voter-cli/internal/store"
	"github.com/votesquad/voter-cli/pkg/geocode"
)

const historyFixture = "county_desc\tncid\telection_lbl\n" +
	"DURHAM\tAA1001\t11/07/2017\n" +
	"DURHAM\tAA1001\t11/08/2016\n" +
	"DURHAM\tAA1002\t11/06/2018\n" +
	"DURHAM\tAA1003\t11/08/2016\n" +
	"WAKE\tBB2001\t11/07/2017\n"

const registrationFixture = "county_desc\tncid\tres_street_address\tres_city_desc\tstate_cd\tzip_code\tprecinct_abbrv\n" +
	"DURHAM\tAA1001\t123 MAIN ST\tDURHAM\tNC\t27701\t01\n" +
	"DURHAM\tAA1002\t456 OAK AVE\tDURHAM\tNC\t27703\t02\n" +
	"DURHAM\tAA1004\t789 ELM ST\tDURHAM\tNC\t27705\t03\n" +
	"DURHAM\tAA1005\t\t\tNC\t\t04\n" +
	"WAKE\tBB2001\t1 CAPITAL BLVD\tRALEIGH\tNC\t27601\t05\n"

type fakeSource struct {
	historyPath      string
	registrationPath string
	err              error
}

func (f *fakeSource) FetchHistory(context.Context) (string, error) {
	return f.historyPath, f.err
}

func (f *fakeSource) FetchRegistration(context.Context) (string, error) {
	return f.registrationPath, f.err
}

// fakeGeocoder matches every complete address at a fixed point.
type fakeGeocoder struct {
	lat, lon float64
	err      error
	calls    int
}

func (g *fakeGeocoder) Geocode(_ context.Context, addr geocode.AddressInput) (*geocode.Result, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &geocode.Result{ID: addr.ID, MatchStatus: geocode.StatusMatch, Latitude: g.lat, Longitude: g.lon}, nil
}

func (g *fakeGeocoder) BatchGeocode(_ context.Context, addrs []geocode.AddressInput) ([]geocode.Result, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	out := make([]geocode.Result, len(addrs))
	for i, a := range addrs {
		out[i] = geocode.Result{ID: a.ID, MatchStatus: geocode.StatusMatch, Latitude: g.lat, Longitude: g.lon}
	}
	return out, nil
}

type fakeBlocks struct {
	features []blocks.Block
	err      error
}

func (f *fakeBlocks) Features(context.Context, string, string) ([]blocks.Block, error) {
	return f.features, f.err
}

func writeFixtures(t *testing.T) *fakeSource {
	t.Helper()
	dir := t.TempDir()
	historyPath := filepath.Join(dir, "ncvhis_statewide.txt")
	registrationPath := filepath.Join(dir, "ncvoter_statewide.txt")
	require.NoError(t, os.WriteFile(historyPath, []byte(historyFixture), 0o644))
	require.NoError(t, os.WriteFile(registrationPath, []byte(registrationFixture), 0o644))
	return &fakeSource{historyPath: historyPath, registrationPath: registrationPath}
}

func newRunStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "run.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// squareBlock builds one block polygon covering [0,1]x[0,1].
func squareBlock(geoid string) blocks.Block {
	poly := geom.NewPolygon(geom.XY)
	_ = poly.Push(geom.NewLinearRing(geom.XY).MustSetCoords([]geom.Coord{
		{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0},
	}))
	return blocks.Block{GEOID: geoid, Geometry: poly}
}

func TestRunEndToEnd(t *testing.T) {
	src := writeFixtures(t)
	st := newRunStore(t)
	geocoder := &fakeGeocoder{lat: 0.5, lon: 0.5}

	run, err := Run(context.Background(), RunConfig{
		County:     "Durham",
		StateFIPS:  "37",
		CountyFIPS: "063",
	}, Deps{
		Source:   src,
		Geocoder: geocoder,
		Blocks:   &fakeBlocks{features: []blocks.Block{squareBlock("370630001001000")}},
		Store:    st,
	})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Result)

	// AA1001-AA1003 from history, AA1004 registration-only. WAKE rows
	// and the incomplete AA1005 never enter.
	assert.Equal(t, 4, run.Result.VotersTallied)
	// AA1003 has history but no registration row, so no address and no
	// geocode result. AA1005 was excluded before submission.
	assert.Equal(t, 3, run.Result.VotersGeocoded)
	assert.Equal(t, 1, run.Result.VotersUnmatched)
	assert.Equal(t, 1, run.Result.RowsExcluded)
	assert.Equal(t, 1, run.Result.BlocksTallied)

	stored, err := st.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, stored.Status)
}

func TestRunAssignsTiers(t *testing.T) {
	src := writeFixtures(t)
	st := newRunStore(t)

	run, err := Run(context.Background(), RunConfig{County: "DURHAM"}, Deps{
		Source:   src,
		Geocoder: &fakeGeocoder{lat: 0.5, lon: 0.5},
		Store:    st,
	})
	require.NoError(t, err)

	// Verify tier placement through the persisted points: Nov17 voter
	// is tier 1, Nov18 tier 2, Nov16 tier 3, registration-only tier 5.
	points, err := st.GetVoterPoints(context.Background(), run.ID)
	require.NoError(t, err)

	got := make(map[string]int, len(points))
	for _, p := range points {
		got[p.VoterID] = p.Tier
	}
	assert.Equal(t, map[string]int{"AA1001": 1, "AA1002": 2, "AA1003": 3, "AA1004": 5}, got)
}

func TestRunFileOverridesSkipSource(t *testing.T) {
	src := writeFixtures(t)
	st := newRunStore(t)

	failing := &fakeSource{err: errors.New("source should not be called")}
	run, err := Run(context.Background(), RunConfig{
		County:           "DURHAM",
		HistoryFile:      src.historyPath,
		RegistrationFile: src.registrationPath,
	}, Deps{
		Source:   failing,
		Geocoder: &fakeGeocoder{lat: 0.5, lon: 0.5},
		Store:    st,
	})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
}

func TestRunGeocodeFailureMarksRunFailed(t *testing.T) {
	src := writeFixtures(t)
	st := newRunStore(t)

	run, err := Run(context.Background(), RunConfig{County: "DURHAM"}, Deps{
		Source:   src,
		Geocoder: &fakeGeocoder{err: errors.New("service down")},
		Store:    st,
	})
	require.Error(t, err)
	require.NotNil(t, run)
	assert.Equal(t, model.RunStatusFailed, run.Status)

	stored, getErr := st.GetRun(context.Background(), run.ID)
	require.NoError(t, getErr)
	assert.Equal(t, model.RunStatusFailed, stored.Status)
}

func TestRunBlockLoaderFailureMarksRunFailed(t *testing.T) {
	src := writeFixtures(t)
	st := newRunStore(t)

	_, err := Run(context.Background(), RunConfig{County: "DURHAM"}, Deps{
		Source:   src,
		Geocoder: &fakeGeocoder{lat: 0.5, lon: 0.5},
		Blocks:   &fakeBlocks{err: errors.New("tiger download failed")},
		Store:    st,
	})
	require.Error(t, err)
}

func TestRunWithoutBlocksSkipsSpatialJoin(t *testing.T) {
	src := writeFixtures(t)
	st := newRunStore(t)

	run, err := Run(context.Background(), RunConfig{County: "DURHAM"}, Deps{
		Source:   src,
		Geocoder: &fakeGeocoder{lat: 0.5, lon: 0.5},
		Store:    st,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, run.Result.BlocksTallied, "no block index means no tallies")
}
