package domain

import "sort"

// ChangeBreakdown expresses a change amount as unit counts per
// denomination. Denominations with a zero count are omitted.
type ChangeBreakdown struct {
	Change int
	Counts map[int]int
}

// BreakDown splits change greedily over the given denominations, largest
// first. The result sums back to change exactly whenever the set permits
// an exact greedy decomposition (guaranteed when it contains a unit of 1,
// which configuration loading enforces). A zero or negative change yields
// an empty breakdown.
func BreakDown(change int, denominations []int) ChangeBreakdown {
	sorted := make([]int, len(denominations))
	copy(sorted, denominations)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))

	counts := make(map[int]int)
	remaining := change
	for _, d := range sorted {
		if remaining <= 0 {
			break
		}
		if count := remaining / d; count > 0 {
			counts[d] = count
			remaining -= count * d
		}
	}

	return ChangeBreakdown{Change: change, Counts: counts}
}
