package search

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// sortResults orders results in place. Ties fall back to type then id so
// pages stay stable.
func sortResults(results []SearchResult, sortBy string, order string) {
	fold := cases.Fold()

	compare := func(a, b SearchResult) int {
		switch sortBy {
		case SortByDate:
			return strings.Compare(a.CreatedAt, b.CreatedAt)
		case SortByTitle:
			return strings.Compare(fold.String(a.Title), fold.String(b.Title))
		default:
			return cmp.Compare(a.RelevanceScore, b.RelevanceScore)
		}
	}

	slices.SortStableFunc(results, func(a, b SearchResult) int {
		c := compare(a, b)
		if order == SortDesc {
			c = -c
		}
		if c != 0 {
			return c
		}
		if c := strings.Compare(a.Type, b.Type); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
