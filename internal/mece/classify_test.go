package mece

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/votesquad/voter-cli/internal/model"
)

// rowOf builds a single-voter matrix row with the given short-name cells set.
func rowOf(t *testing.T, voted ...string) Row {
	t.Helper()
	set := DefaultElections()
	var recs []model.HistoryRecord
	for _, name := range voted {
		for _, e := range set {
			if e.Name == name {
				recs = append(recs, model.HistoryRecord{VoterID: "X", ElectionID: e.Label})
			}
		}
	}
	// A voter with no qualifying records has no row at all; synthesize an
	// all-zero row directly for the catch-all cases.
	if len(recs) == 0 {
		return Row{set: set, cells: make([]int, len(set))}
	}
	m := Build(recs, set)
	row, ok := m.Row("X")
	require.True(t, ok)
	return row
}

func TestClassifyPriorityChain(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		name  string
		voted []string
		tier  int
	}{
		{"oct17 only", []string{"Oct17"}, 1},
		{"nov17 only", []string{"Nov17"}, 1},
		{"both 2017", []string{"Oct17", "Nov17"}, 1},
		{"2017 beats everything later", []string{"Oct17", "Nov18", "Nov16", "Nov12"}, 1},
		{"nov18 only", []string{"Nov18"}, 2},
		{"nov18 beats nov16 and nov12", []string{"Nov12", "Nov16", "Nov18"}, 2},
		{"nov16 only", []string{"Nov16"}, 3},
		{"nov16 beats nov12", []string{"Nov12", "Nov16"}, 3},
		{"nov12 only", []string{"Nov12"}, 4},
		{"no tracked elections", nil, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.tier, rules.Classify(rowOf(t, tt.voted...)))
		})
	}
}

func TestClassifyExactlyOneTier(t *testing.T) {
	rules := DefaultRules()

	// Every subset of the five elections must land in exactly one tier 1-5.
	names := DefaultElections().Names()
	for mask := 0; mask < 1<<len(names); mask++ {
		var voted []string
		for i, n := range names {
			if mask&(1<<i) != 0 {
				voted = append(voted, n)
			}
		}
		tier := rules.Classify(rowOf(t, voted...))
		assert.GreaterOrEqual(t, tier, 1)
		assert.LessOrEqual(t, tier, 5)
	}
}

func TestClassifyCatchAll(t *testing.T) {
	rules := DefaultRules()
	assert.Equal(t, 5, rules.CatchAll())
	assert.Equal(t, 5, rules.Classify(rowOf(t)))
}

func TestAssignDeterministic(t *testing.T) {
	m := Build([]model.HistoryRecord{
		rec("A", "10/10/2017"),
		rec("B", "11/06/2018"),
		rec("B", "11/08/2016"),
		rec("C", "11/06/2012"),
	}, DefaultElections())
	rules := DefaultRules()

	first := Assign(m, rules)
	second := Assign(m, rules)

	assert.Equal(t, first, second, "re-running assignment must be idempotent")
	assert.Equal(t, map[string]int{"A": 1, "B": 2, "C": 4}, first)
}

func TestAssignCoversEveryRow(t *testing.T) {
	m := Build([]model.HistoryRecord{
		rec("A", "11/06/2018"),
		rec("B", "11/06/2012"),
	}, DefaultElections())

	tiers := Assign(m, DefaultRules())
	assert.Len(t, tiers, m.Len())
	for _, id := range m.VoterIDs() {
		_, ok := tiers[id]
		assert.True(t, ok)
	}
}

func TestAnyOf(t *testing.T) {
	rule := AnyOf("municipal_2017", "Oct17", "Nov17")

	assert.Equal(t, "municipal_2017", rule.Name)
	assert.True(t, rule.Match(rowOf(t, "Oct17")))
	assert.True(t, rule.Match(rowOf(t, "Nov17")))
	assert.True(t, rule.Match(rowOf(t, "Oct17", "Nov17")))
	assert.False(t, rule.Match(rowOf(t, "Nov18")))
	assert.False(t, rule.Match(rowOf(t)))
}

func TestCustomRuleSet(t *testing.T) {
	// The rule chain is data: a different cycle swaps in without code changes.
	set := ElectionSet{
		{Label: "11/03/2020", Name: "Nov20"},
		{Label: "11/08/2022", Name: "Nov22"},
	}
	rules := RuleSet{
		{Name: "midterm_2022", Match: func(r Row) bool { return r.Voted("Nov22") }},
		{Name: "general_2020", Match: func(r Row) bool { return r.Voted("Nov20") }},
	}

	m := Build([]model.HistoryRecord{
		{VoterID: "A", ElectionID: "11/03/2020"},
		{VoterID: "B", ElectionID: "11/08/2022"},
		{VoterID: "B", ElectionID: "11/03/2020"},
	}, set)

	tiers := Assign(m, rules)
	assert.Equal(t, map[string]int{"A": 2, "B": 1}, tiers)
	assert.Equal(t, 3, rules.CatchAll())
}
