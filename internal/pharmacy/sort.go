package pharmacy

import (
	"sort"
	"strings"
)

type SortKey string

const (
	SortByDistance SortKey = "distance"
	SortByName     SortKey = "name"
)

// Sort orders results in place: ascending distance, or lexicographic name.
// The sort is stable, so repeated application is a no-op.
func Sort(results []Result, key SortKey) {
	switch key {
	case SortByName:
		sort.SliceStable(results, func(i, j int) bool {
			return strings.ToLower(results[i].Name) < strings.ToLower(results[j].Name)
		})
	default:
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].DistanceKm < results[j].DistanceKm
		})
	}
}
