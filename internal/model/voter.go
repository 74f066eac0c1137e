// Package model defines the domain types shared across the voter pipeline.
package model

// HistoryRecord is one fact from the state voter-history file: the voter
// with this NCID cast a ballot in the given election. Records are read-only;
// the history file is the source of truth.
type HistoryRecord struct {
	VoterID    string `json:"voter_id"`
	ElectionID string `json:"election_id"`
	County     string `json:"county"`
}

// RegistrationRecord is one row from the state voter-registration file,
// reduced to the fields the pipeline consumes.
type RegistrationRecord struct {
	VoterID       string `json:"voter_id"`
	County        string `json:"county"`
	StreetAddress string `json:"street_address"`
	City          string `json:"city"`
	State         string `json:"state"`
	ZipCode       string `json:"zip_code"`
	Precinct      string `json:"precinct,omitempty"`
	RaceCode      string `json:"race_code,omitempty"`
	EthnicCode    string `json:"ethnic_code,omitempty"`
	GenderCode    string `json:"gender_code,omitempty"`
	BirthAge      string `json:"birth_age,omitempty"`
	LastName      string `json:"last_name,omitempty"`
	FirstName     string `json:"first_name,omitempty"`
}

// HasFullAddress reports whether the record carries every component the
// batch geocoder requires. Rows failing this check are excluded before
// submission, never sent.
func (r RegistrationRecord) HasFullAddress() bool {
	return r.StreetAddress != "" && r.City != "" && r.State != "" && r.ZipCode != ""
}

// VoterPoint is one row of the combined output relation: a tallied voter
// with tier, per-election participation, and (when the geocoder matched)
// coordinates and census block tags.
type VoterPoint struct {
	VoterID       string         `json:"voter_id"`
	Tier          int            `json:"tier"`
	Participation map[string]int `json:"participation"`

	// Geocode fields; zero-valued with Matched=false when the voter's
	// address never produced a match.
	Matched     bool    `json:"matched"`
	MatchStatus string  `json:"match_status"`
	Latitude    float64 `json:"latitude,omitempty"`
	Longitude   float64 `json:"longitude,omitempty"`

	// Census block tags from the spatial join; empty when unmatched or
	// when the point falls outside every county block.
	BlockID  string `json:"block_id,omitempty"`
	Precinct string `json:"precinct,omitempty"`
}

// BlockAttributes holds the SF1 race-composition attributes for one
// census block, keyed by the 15-digit GEOID.
type BlockAttributes struct {
	GEOID      string  `json:"geoid"`
	TotalPop   int     `json:"total_pop"`    // P003001
	BlackPop   int     `json:"black_pop"`    // P003003
	TotalPop18 int     `json:"total_pop18"`  // P010001
	BlackPop18 int     `json:"black_pop18"`  // P010004
	Housing    int     `json:"housing"`      // HOUSING10, from the block shapefile
	PctBlack   float64 `json:"pct_black"`
	PctBlack18 float64 `json:"pct_black18"`
	BlackHH    int     `json:"black_hh"`
}

// BlockTally aggregates tier counts for the voters falling inside one
// census block.
type BlockTally struct {
	BlockID string `json:"block_id"`
	Tiers   [5]int `json:"tiers"` // index 0 = tier 1 count
	Total   int    `json:"total"`
}

// Add records one voter at the given tier. Tiers outside 1..5 are ignored.
func (t *BlockTally) Add(tier int) {
	if tier < 1 || tier > 5 {
		return
	}
	t.Tiers[tier-1]++
	t.Total++
}
