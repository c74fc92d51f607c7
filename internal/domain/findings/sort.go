package findings

import "sort"

// SortBySeverity orders findings by severity rank, keeping insertion order
// within the same level. The sort is stable so repeated calls are idempotent.
func SortBySeverity(list []*Finding) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Level.Rank() < list[j].Level.Rank()
	})
}
