package model

import "time"

// RunStatus represents the current state of a county pipeline run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusFetching  RunStatus = "fetching"
	RunStatusScoring   RunStatus = "scoring"
	RunStatusGeocoding RunStatus = "geocoding"
	RunStatusJoining   RunStatus = "joining"
	RunStatusTallying  RunStatus = "tallying"
	RunStatusComplete  RunStatus = "complete"
	RunStatusFailed    RunStatus = "failed"
)

// Run represents a single county pipeline run.
type Run struct {
	ID        string     `json:"id"`
	County    string     `json:"county"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult summarizes a completed run. Partial success is the normal
// terminal state: excluded and failed counts are reported, not raised.
type RunResult struct {
	VotersTallied    int     `json:"voters_tallied"`
	VotersGeocoded   int     `json:"voters_geocoded"`
	VotersUnmatched  int     `json:"voters_unmatched"`
	RowsExcluded     int     `json:"rows_excluded"`      // incomplete address, never submitted
	ChunksSubmitted  int     `json:"chunks_submitted"`
	ChunksFailed     int     `json:"chunks_failed"`
	BlocksTallied    int     `json:"blocks_tallied"`
	DurationSecs     float64 `json:"duration_secs"`
}
