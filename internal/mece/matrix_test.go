package mece

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/votesquad/voter-cli/internal/model"
)

func rec(voter, election string) model.HistoryRecord {
	return model.HistoryRecord{VoterID: voter, ElectionID: election, County: "DURHAM"}
}

func TestBuildFiltersUntrackedElections(t *testing.T) {
	set := DefaultElections()
	m := Build([]model.HistoryRecord{
		rec("A", "11/06/2018"),
		rec("A", "03/15/2016"), // primary, not tracked
		rec("B", "05/08/2018"), // not tracked: B has no qualifying record
	}, set)

	assert.Equal(t, 1, m.Len())

	row, ok := m.Row("A")
	require.True(t, ok)
	assert.True(t, row.Voted("Nov18"))
	assert.False(t, row.Voted("Nov16"))

	_, ok = m.Row("B")
	assert.False(t, ok, "voter with no qualifying records must not get a row")
}

func TestBuildPresenceCollapsesDuplicates(t *testing.T) {
	set := DefaultElections()
	m := Build([]model.HistoryRecord{
		rec("A", "11/06/2018"),
		rec("A", "11/06/2018"), // duplicate history row
	}, set)

	row, ok := m.Row("A")
	require.True(t, ok)
	assert.Equal(t, 1, row.Count("Nov18"))
}

func TestBuilderCountSemantics(t *testing.T) {
	b := NewBuilder(DefaultElections(), true)
	b.Add(rec("A", "11/06/2018"))
	b.Add(rec("A", "11/06/2018"))
	m := b.Matrix()

	row, ok := m.Row("A")
	require.True(t, ok)
	assert.Equal(t, 2, row.Count("Nov18"))
	assert.True(t, row.Voted("Nov18"))
}

func TestMatrixCellsDefaultZero(t *testing.T) {
	m := Build([]model.HistoryRecord{rec("A", "10/10/2017")}, DefaultElections())

	row, ok := m.Row("A")
	require.True(t, ok)
	// Dense row: every untracked cell is 0, not absent.
	assert.Equal(t, []int{1, 0, 0, 0, 0}, row.Cells())
	assert.False(t, row.Zero())
}

func TestVoterIDsSorted(t *testing.T) {
	m := Build([]model.HistoryRecord{
		rec("C", "11/06/2018"),
		rec("A", "11/06/2018"),
		rec("B", "11/06/2018"),
	}, DefaultElections())

	assert.Equal(t, []string{"A", "B", "C"}, m.VoterIDs())
}

func TestElectionSetIndex(t *testing.T) {
	set := DefaultElections()
	assert.Equal(t, 0, set.Index("Oct17"))
	assert.Equal(t, 4, set.Index("Nov18"))
	assert.Equal(t, -1, set.Index("Nov20"))
	assert.Equal(t, []string{"Oct17", "Nov17", "Nov12", "Nov16", "Nov18"}, set.Names())
}
