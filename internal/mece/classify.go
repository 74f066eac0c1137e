package mece

// Rule is one named predicate in a priority chain. Match sees the full
// row; exclusion of higher-priority rules comes from evaluation order,
// not from the predicate itself.
type Rule struct {
	Name  string
	Match func(Row) bool
}

// RuleSet is an ordered priority chain of rules. Evaluation is
// first-match-wins and short-circuits: a row matching rule 1 is never
// reconsidered against later rules.
type RuleSet []Rule

// Classify returns the 1-based index of the first matching rule, or
// len(rs)+1 when no rule matches (the catch-all tier). A RuleSet is
// therefore always collectively exhaustive; an all-zero row classifies
// to the catch-all, never an error.
func (rs RuleSet) Classify(r Row) int {
	for i, rule := range rs {
		if rule.Match(r) {
			return i + 1
		}
	}
	return len(rs) + 1
}

// CatchAll returns the tier assigned when no rule matches.
func (rs RuleSet) CatchAll() int { return len(rs) + 1 }

// AnyOf builds a rule matching rows that voted in any of the named
// elections. Rule chains loaded from configuration are built from it.
func AnyOf(name string, elections ...string) Rule {
	return Rule{Name: name, Match: func(r Row) bool {
		for _, e := range elections {
			if r.Voted(e) {
				return true
			}
		}
		return false
	}}
}

// DefaultRules returns the reference four-rule chain over the default
// election columns. With the implicit catch-all this yields tiers 1-5:
//
//	1: voted Oct17 or Nov17
//	2: otherwise, voted Nov18
//	3: otherwise, voted Nov16
//	4: otherwise, voted Nov12
//	5: none of the tracked elections
func DefaultRules() RuleSet {
	return RuleSet{
		AnyOf("municipal_2017", "Oct17", "Nov17"),
		AnyOf("midterm_2018", "Nov18"),
		AnyOf("general_2016", "Nov16"),
		AnyOf("general_2012", "Nov12"),
	}
}

// Assign classifies every row of the matrix. Each voter present in the
// matrix receives exactly one tier; determinism follows from Classify
// being a pure function of the row.
func Assign(m *Matrix, rs RuleSet) map[string]int {
	tiers := make(map[string]int, m.Len())
	for _, id := range m.VoterIDs() {
		row, _ := m.Row(id)
		tiers[id] = rs.Classify(row)
	}
	return tiers
}
