// Package report exports run results as CSV and XLSX files.
package report

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/votesquad/voter-cli/internal/mece"
	"github.com/votesquad/voter-cli/internal/model"
)

// voterHeader returns the voter sheet columns: fixed fields first, then
// one participation column per election in column order.
func voterHeader(elections mece.ElectionSet) []string {
	header := []string{"voter_id", "tier", "matched", "match_status", "latitude", "longitude", "block_id", "precinct"}
	return append(header, elections.Names()...)
}

func voterRow(p model.VoterPoint, elections mece.ElectionSet) []string {
	lat, lon := "", ""
	if p.Matched {
		lat = strconv.FormatFloat(p.Latitude, 'f', 6, 64)
		lon = strconv.FormatFloat(p.Longitude, 'f', 6, 64)
	}
	row := []string{
		p.VoterID,
		strconv.Itoa(p.Tier),
		strconv.FormatBool(p.Matched),
		p.MatchStatus,
		lat,
		lon,
		p.BlockID,
		p.Precinct,
	}
	for _, name := range elections.Names() {
		row = append(row, strconv.Itoa(p.Participation[name]))
	}
	return row
}

// WriteVoterCSV writes the combined voter relation, one row per voter.
func WriteVoterCSV(w io.Writer, elections mece.ElectionSet, points []model.VoterPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(voterHeader(elections)); err != nil {
		return eris.Wrap(err, "report: write voter header")
	}
	for _, p := range points {
		if err := cw.Write(voterRow(p, elections)); err != nil {
			return eris.Wrapf(err, "report: write voter row %s", p.VoterID)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush voter csv")
}

// WriteBlockAttributesCSV writes the combined block attributes, one row
// per block ordered by GEOID.
func WriteBlockAttributesCSV(w io.Writer, attrs map[string]model.BlockAttributes) error {
	geoids := make([]string, 0, len(attrs))
	for geoid := range attrs {
		geoids = append(geoids, geoid)
	}
	sort.Strings(geoids)

	cw := csv.NewWriter(w)
	header := []string{"geoid", "total_pop", "black_pop", "total_pop18", "black_pop18", "housing", "pct_black", "pct_black18", "black_hh"}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "report: write attributes header")
	}
	for _, geoid := range geoids {
		a := attrs[geoid]
		row := []string{
			geoid,
			strconv.Itoa(a.TotalPop),
			strconv.Itoa(a.BlackPop),
			strconv.Itoa(a.TotalPop18),
			strconv.Itoa(a.BlackPop18),
			strconv.Itoa(a.Housing),
			strconv.FormatFloat(a.PctBlack, 'f', 2, 64),
			strconv.FormatFloat(a.PctBlack18, 'f', 2, 64),
			strconv.Itoa(a.BlackHH),
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrapf(err, "report: write attributes row %s", geoid)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush attributes csv")
}

// tallyHeader returns the block sheet columns. Attribute columns are
// appended only when attributes were loaded.
func tallyHeader(withAttrs bool) []string {
	header := []string{"block_id", "mece1", "mece2", "mece3", "mece4", "mece5", "total"}
	if withAttrs {
		header = append(header, "total_pop", "black_pop", "pct_black", "pct_black18", "black_hh")
	}
	return header
}

func tallyRow(t model.BlockTally, attrs map[string]model.BlockAttributes, withAttrs bool) []string {
	row := []string{
		t.BlockID,
		strconv.Itoa(t.Tiers[0]),
		strconv.Itoa(t.Tiers[1]),
		strconv.Itoa(t.Tiers[2]),
		strconv.Itoa(t.Tiers[3]),
		strconv.Itoa(t.Tiers[4]),
		strconv.Itoa(t.Total),
	}
	if withAttrs {
		a := attrs[t.BlockID]
		row = append(row,
			strconv.Itoa(a.TotalPop),
			strconv.Itoa(a.BlackPop),
			strconv.FormatFloat(a.PctBlack, 'f', 2, 64),
			strconv.FormatFloat(a.PctBlack18, 'f', 2, 64),
			strconv.Itoa(a.BlackHH),
		)
	}
	return row
}

// WriteTallyCSV writes per-block tier tallies. When attrs is non-nil
// each row also carries the block's census attributes; blocks missing
// from attrs get zero values.
func WriteTallyCSV(w io.Writer, tallies []model.BlockTally, attrs map[string]model.BlockAttributes) error {
	withAttrs := attrs != nil

	cw := csv.NewWriter(w)
	if err := cw.Write(tallyHeader(withAttrs)); err != nil {
		return eris.Wrap(err, "report: write tally header")
	}
	for _, t := range tallies {
		if err := cw.Write(tallyRow(t, attrs, withAttrs)); err != nil {
			return eris.Wrapf(err, "report: write tally row %s", t.BlockID)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush tally csv")
}
