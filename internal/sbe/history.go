package sbe

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/votesquad/voter-cli/internal/fetcher"
	"github.com/votesquad/voter-cli/internal/model"
)

// StreamHistory scans the statewide history file and invokes fn for each
// record belonging to the given county. The file has one row per
// (voter, election) participation fact.
func StreamHistory(ctx context.Context, path, county string, fn func(model.HistoryRecord) error) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrap(err, "sbe: open history file")
	}
	defer f.Close() //nolint:errcheck

	want := NormalizeCounty(county)
	var scanned, matched int

	err = fetcher.StreamTSV(ctx, f, func(row fetcher.TSVRow) error {
		scanned++
		if NormalizeCounty(row.Get("county_desc")) != want {
			return nil
		}
		rec := model.HistoryRecord{
			VoterID:    row.Get("ncid"),
			ElectionID: row.Get("election_lbl"),
			County:     want,
		}
		if rec.VoterID == "" || rec.ElectionID == "" {
			return nil
		}
		matched++
		return fn(rec)
	})
	if err != nil {
		return eris.Wrap(err, "sbe: stream history")
	}

	zap.L().Info("history file scanned",
		zap.String("county", want),
		zap.Int("rows", scanned),
		zap.Int("county_rows", matched),
	)
	return nil
}

// CountyHistory loads all county history records into memory.
func CountyHistory(ctx context.Context, path, county string) ([]model.HistoryRecord, error) {
	var records []model.HistoryRecord
	err := StreamHistory(ctx, path, county, func(rec model.HistoryRecord) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
