// Package mece builds per-voter election participation matrices and assigns
// each voter a single MECE turnout tier via an ordered first-match rule set.
package mece

import (
	"sort"

	"github.com/votesquad/voter-cli/internal/model"
)

// Election identifies one tracked election: the raw label used in the
// state history file and the short column name used everywhere downstream.
type Election struct {
	Label string `yaml:"label" mapstructure:"label"` // e.g. "11/06/2018"
	Name  string `yaml:"name" mapstructure:"name"`   // e.g. "Nov18"
}

// ElectionSet is the fixed, ordered set of elections a matrix is built over.
type ElectionSet []Election

// Index returns the column index for the given short name, or -1.
func (es ElectionSet) Index(name string) int {
	for i, e := range es {
		if e.Name == name {
			return i
		}
	}
	return -1
}

// Names returns the short column names in column order.
func (es ElectionSet) Names() []string {
	names := make([]string, len(es))
	for i, e := range es {
		names[i] = e.Name
	}
	return names
}

// labelIndex maps raw history labels to column indices.
func (es ElectionSet) labelIndex() map[string]int {
	m := make(map[string]int, len(es))
	for i, e := range es {
		m[e.Label] = i
	}
	return m
}

// DefaultElections returns the five elections the reference rule set
// scores against, in column order.
func DefaultElections() ElectionSet {
	return ElectionSet{
		{Label: "10/10/2017", Name: "Oct17"},
		{Label: "11/07/2017", Name: "Nov17"},
		{Label: "11/06/2012", Name: "Nov12"},
		{Label: "11/08/2016", Name: "Nov16"},
		{Label: "11/06/2018", Name: "Nov18"},
	}
}

// Row is one voter's participation vector over an ElectionSet.
type Row struct {
	set   ElectionSet
	cells []int
}

// Count returns the raw cell value for the named election, 0 if the
// name is not in the set.
func (r Row) Count(name string) int {
	i := r.set.Index(name)
	if i < 0 {
		return 0
	}
	return r.cells[i]
}

// Voted reports whether the voter participated in the named election.
func (r Row) Voted(name string) bool { return r.Count(name) > 0 }

// Cells returns a copy of the row's cell values in column order.
func (r Row) Cells() []int {
	out := make([]int, len(r.cells))
	copy(out, r.cells)
	return out
}

// Zero reports whether every cell is zero.
func (r Row) Zero() bool {
	for _, c := range r.cells {
		if c != 0 {
			return false
		}
	}
	return true
}

// Matrix is a dense participation table: one row per voter observed in at
// least one qualifying history record, one column per tracked election.
// Cells for elections a voter skipped are 0, never absent.
type Matrix struct {
	set  ElectionSet
	rows map[string][]int
}

// Elections returns the election set the matrix was built over.
func (m *Matrix) Elections() ElectionSet { return m.set }

// Len returns the number of voter rows.
func (m *Matrix) Len() int { return len(m.rows) }

// Row returns the named voter's row and whether the voter is present.
func (m *Matrix) Row(voterID string) (Row, bool) {
	cells, ok := m.rows[voterID]
	if !ok {
		return Row{}, false
	}
	return Row{set: m.set, cells: cells}, true
}

// VoterIDs returns all voter IDs in sorted order. Iteration over the
// matrix is deterministic through this slice.
func (m *Matrix) VoterIDs() []string {
	ids := make([]string, 0, len(m.rows))
	for id := range m.rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Builder accumulates history records into a Matrix. Records whose
// election label is outside the tracked set are ignored, not errors.
type Builder struct {
	set    ElectionSet
	labels map[string]int
	counts bool
	rows   map[string][]int
}

// NewBuilder creates a Builder over the given election set. When counts
// is true, cells retain raw record counts; by default duplicate records
// collapse to a presence indicator.
func NewBuilder(set ElectionSet, counts bool) *Builder {
	return &Builder{
		set:    set,
		labels: set.labelIndex(),
		counts: counts,
		rows:   make(map[string][]int),
	}
}

// Add folds one history record into the matrix under construction.
func (b *Builder) Add(rec model.HistoryRecord) {
	col, ok := b.labels[rec.ElectionID]
	if !ok {
		return
	}
	cells, ok := b.rows[rec.VoterID]
	if !ok {
		cells = make([]int, len(b.set))
		b.rows[rec.VoterID] = cells
	}
	if b.counts {
		cells[col]++
	} else {
		cells[col] = 1
	}
}

// Matrix finalizes and returns the built matrix. The builder may keep
// accepting records afterward; the returned matrix shares its storage.
func (b *Builder) Matrix() *Matrix {
	return &Matrix{set: b.set, rows: b.rows}
}

// Build is a convenience over NewBuilder/Add for in-memory record slices.
func Build(records []model.HistoryRecord, set ElectionSet) *Matrix {
	b := NewBuilder(set, false)
	for _, rec := range records {
		b.Add(rec)
	}
	return b.Matrix()
}
