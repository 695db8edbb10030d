// Package fuzzy scores candidates against a search query for the room and
// member pickers.
package fuzzy

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var lower = cases.Lower(language.Und)

// Normalize puts a query or candidate into the form used for scoring:
// NFC, lower case.
func Normalize(s string) string {
	return lower.String(norm.NFC.String(s))
}

// Distance scores how well query matches inside candidate; lower is better.
//
// An empty candidate scores -1. A single-rune query scores the rune offset of
// its first occurrence in candidate, or -1 when absent. Longer queries score
// the smallest edit distance between query and any substring of candidate.
func Distance(query, candidate string) int {
	needle := []rune(query)
	hay := []rune(candidate)

	if len(hay) == 0 {
		return -1
	}
	if len(needle) == 1 {
		for i, r := range hay {
			if r == needle[0] {
				return i
			}
		}
		return -1
	}

	prev := make([]int, len(hay)+1)
	for i := range needle {
		cur := make([]int, 1, len(hay)+1)
		cur[0] = i + 1
		for j := range hay {
			cost := 0
			if needle[i] != hay[j] {
				cost = 1
			}
			cur = append(cur, min(prev[j+1]+1, cur[j]+1, prev[j]+cost))
		}
		prev = cur
	}

	best := prev[0]
	for _, v := range prev[1:] {
		if v < best {
			best = v
		}
	}
	return best
}

// Match is a scored candidate.
type Match[T any] struct {
	Score int
	Item  T
}

// Rank scores every item by the distance between the normalised query and
// the item's label, sorts ascending (stable, so equal scores keep input
// order) and keeps at most max results.
func Rank[T any](query string, items []T, label func(T) string, max int) []Match[T] {
	q := Normalize(strings.TrimSpace(query))

	matches := make([]Match[T], 0, len(items))
	for _, item := range items {
		matches = append(matches, Match[T]{
			Score: Distance(q, Normalize(label(item))),
			Item:  item,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score < matches[j].Score
	})

	if max < 0 {
		max = 0
	}
	if len(matches) > max {
		matches = matches[:max]
	}
	return matches
}
