package client

import (
	"sort"
	"strings"
)

// SortBy names a pharmacy ordering.
type SortBy string

const (
	SortByDistance SortBy = "distance"
	SortByName     SortBy = "name"
)

// SortPharmacies orders results in place. The sort is stable, so re-sorting
// an already sorted slice leaves it unchanged.
func SortPharmacies(pharmacies []Pharmacy, by SortBy) {
	switch by {
	case SortByName:
		sort.SliceStable(pharmacies, func(i, j int) bool {
			return strings.ToLower(pharmacies[i].Name) < strings.ToLower(pharmacies[j].Name)
		})
	default:
		sort.SliceStable(pharmacies, func(i, j int) bool {
			return pharmacies[i].Distance < pharmacies[j].Distance
		})
	}
}
