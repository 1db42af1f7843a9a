package exporter

import (
	"strings"

	"eduplus-export/internal/scrapers/eduplus"

	"github.com/antzucaro/matchr"
)

// MinSimilarity is the smallest Jaro-Winkler similarity for which a homework name is
// considered a match of a query.
const MinSimilarity = 0.85

// Filter selects homeworks by name. The zero value selects everything.
type Filter struct {
	Query string
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Match reports whether a homework name contains the query or is close enough to it,
// case and whitespace are ignored.
func (f Filter) Match(name string) bool {
	query := normalizeName(f.Query)
	if query == "" {
		return true
	}
	name = normalizeName(name)
	if strings.Contains(name, query) {
		return true
	}
	return matchr.JaroWinkler(name, query, false) >= MinSimilarity
}

// Apply returns the homeworks that match, in their original order.
func (f Filter) Apply(homeworks []eduplus.Homework) []eduplus.Homework {
	if strings.TrimSpace(f.Query) == "" {
		return homeworks
	}
	var out []eduplus.Homework
	for _, hw := range homeworks {
		if f.Match(hw.Name) {
			out = append(out, hw)
		}
	}
	return out
}
