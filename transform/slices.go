package transform

import (
	"golang.org/x/exp/constraints"
)

// Product returns the product of the slice elements; 1 for an empty slice.
// Extent and bound slices are multiplied in several places (unmerge
// validation, buffer sizing, iteration-space counts), so this lives here
// next to the coordinate machinery.
func Product[T constraints.Integer](xs []T) T {
	p := T(1)
	for _, x := range xs {
		p *= x
	}
	return p
}
