// Package pipeline orchestrates the county turnout run: fetch, score,
// geocode, spatial join, tally, persist.
package pipeline

import (
	"sort"

	"go.uber.org/zap"

	"github.com/votesquad/voter-cli/internal/model"
	"github.com/votesquad/voter-cli/pkg/geocode"
)

// JoinInput carries the two sides of the combine step. Tiers is the
// driving side: every voter in it appears in the output exactly once.
type JoinInput struct {
	// Tiers maps voter ID to assigned tier. Drives the join.
	Tiers map[string]int
	// Participation maps voter ID to per-election cells. Voters absent
	// here (registration-only) get an empty map.
	Participation map[string]map[string]int
	// Precincts maps voter ID to precinct code from registration.
	Precincts map[string]string
	// Results are the geocoder's rows, keyed by Result.ID = voter ID.
	Results []geocode.Result
}

// JoinStats summarizes a combine step.
type JoinStats struct {
	Total         int
	Matched       int
	Unmatched     int
	MissingResult int
	DuplicateKeys int
}

// Join combines tier assignments with geocode results. The tier side
// drives: a voter with no geocode row still appears, carrying an
// explicit No_Match marker. Output is ordered by voter ID.
func Join(in JoinInput) ([]model.VoterPoint, JoinStats) {
	byVoter, dupes := indexResults(in.Results)

	ids := make([]string, 0, len(in.Tiers))
	for id := range in.Tiers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	stats := JoinStats{Total: len(ids), DuplicateKeys: dupes}
	points := make([]model.VoterPoint, 0, len(ids))
	for _, id := range ids {
		p := model.VoterPoint{
			VoterID:       id,
			Tier:          in.Tiers[id],
			Participation: in.Participation[id],
			Precinct:      in.Precincts[id],
		}
		if p.Participation == nil {
			p.Participation = map[string]int{}
		}

		r, ok := byVoter[id]
		switch {
		case !ok:
			p.MatchStatus = geocode.StatusNoMatch
			stats.MissingResult++
			stats.Unmatched++
		case r.Matched():
			p.Matched = true
			p.MatchStatus = r.MatchStatus
			p.Latitude = r.Latitude
			p.Longitude = r.Longitude
			stats.Matched++
		default:
			p.MatchStatus = r.MatchStatus
			stats.Unmatched++
		}
		points = append(points, p)
	}

	if stats.MissingResult > 0 {
		zap.L().Warn("voters had no geocode row, marked No_Match",
			zap.Int("count", stats.MissingResult))
	}
	return points, stats
}

// indexResults keys results by voter ID. When the same ID appears more
// than once, a matched row beats an unmatched one; among equals the
// later row wins.
func indexResults(results []geocode.Result) (map[string]geocode.Result, int) {
	byVoter := make(map[string]geocode.Result, len(results))
	dupes := 0
	for _, r := range results {
		prev, seen := byVoter[r.ID]
		if !seen {
			byVoter[r.ID] = r
			continue
		}
		dupes++
		if prev.Matched() && !r.Matched() {
			continue
		}
		byVoter[r.ID] = r
	}
	if dupes > 0 {
		zap.L().Warn("duplicate geocode rows for same voter", zap.Int("count", dupes))
	}
	return byVoter, dupes
}
