// Package resolver matches free-text user input against the set of known
// key names or employee names. Matching happens in two passes: exact
// substring containment first, then a similarity-scored fallback.
package resolver

import (
	"sort"
	"strings"
)

// MaxResults bounds the suggestion list shown to the user.
const MaxResults = 5

// scoreThreshold is the minimum similarity ratio for the fallback pass.
const scoreThreshold = 0.5

// Resolve returns up to MaxResults candidates matching query. Candidates
// containing query as a substring win outright, in candidate order. Only if
// none contain it, candidates are scored by Ratio, filtered to > 0.5 and
// sorted descending (ties keep candidate order).
//
// An empty query returns nothing: it is technically a substring of every
// candidate, and returning the whole inventory helps nobody.
func Resolve(query string, candidates []string) []string {
	if query == "" || len(candidates) == 0 {
		return nil
	}

	var matches []string
	for _, c := range candidates {
		if strings.Contains(c, query) {
			matches = append(matches, c)
		}
	}

	if len(matches) == 0 {
		type scored struct {
			name  string
			ratio float64
		}
		var hits []scored
		for _, c := range candidates {
			if r := Ratio(query, c); r > scoreThreshold {
				hits = append(hits, scored{c, r})
			}
		}
		sort.SliceStable(hits, func(i, j int) bool {
			return hits[i].ratio > hits[j].ratio
		})
		for _, h := range hits {
			matches = append(matches, h.name)
		}
	}

	if len(matches) > MaxResults {
		matches = matches[:MaxResults]
	}
	return matches
}

// Ratio is a normalized alignment ratio in [0,1]: twice the length of the
// longest common subsequence of a and b over their combined length.
// Identical strings score 1, disjoint strings 0.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra)+len(rb) == 0 {
		return 1
	}
	return 2 * float64(lcs(ra, rb)) / float64(len(ra)+len(rb))
}

func lcs(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
