package mece

import (
	"sort"

	"github.com/votesquad/voter-cli/internal/model"
)

// TallyBlocks aggregates tier counts per census block over the combined
// voter relation. Points without a block tag (unmatched geocode, or a
// match outside every county block) are skipped. Output is sorted by
// block ID for reproducible runs.
func TallyBlocks(points []model.VoterPoint) []model.BlockTally {
	byBlock := make(map[string]*model.BlockTally)
	for _, p := range points {
		if p.BlockID == "" {
			continue
		}
		t, ok := byBlock[p.BlockID]
		if !ok {
			t = &model.BlockTally{BlockID: p.BlockID}
			byBlock[p.BlockID] = t
		}
		t.Add(p.Tier)
	}

	out := make([]model.BlockTally, 0, len(byBlock))
	for _, t := range byBlock {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BlockID < out[j].BlockID })
	return out
}
