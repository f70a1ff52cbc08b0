package transform

import (
	"github.com/gomlx/exceptions"
)

// Domain pairs a start coordinate with the chain of maps that carries the
// iteration space down to that domain's lower coordinates. An empty chain
// means the iteration coordinates are used directly (offset by Start).
type Domain struct {
	Start []int64
	Chain []*Map
}

// domainState caches the coordinates at every level of a domain's chain:
// levels[0] is the absolute upper coordinate (start + iteration), and
// levels[j+1] is Chain[j] applied to levels[j]. Keeping all levels lets
// each step propagate only coordinate deltas.
type domainState struct {
	domain Domain
	levels [][]int64
}

func newDomainState(d Domain, rank int) *domainState {
	if len(d.Start) != rank {
		exceptions.Panicf("transform.Walk: domain start has %d coordinates, iteration space has rank %d",
			len(d.Start), rank)
	}
	s := &domainState{domain: d}
	s.levels = make([][]int64, len(d.Chain)+1)
	s.levels[0] = append([]int64(nil), d.Start...)
	for j, m := range d.Chain {
		s.levels[j+1] = m.Apply(s.levels[j])
	}
	return s
}

// advance moves the domain to the new absolute upper coordinate,
// updating every level incrementally from the upper-coordinate delta.
func (s *domainState) advance(newUpper []int64) {
	cur := append([]int64(nil), newUpper...)
	for j, m := range s.domain.Chain {
		next := m.ApplyDelta(s.levels[j], cur, s.levels[j+1])
		s.levels[j] = cur
		cur = next
	}
	s.levels[len(s.domain.Chain)] = cur
}

// lower returns the current lowest-level coordinates.
func (s *domainState) lower() []int64 {
	return s.levels[len(s.levels)-1]
}

// Walk iterates a rectangular index space of the given bounds and strides,
// invoking visit once per point with the iteration coordinates (relative to
// zero) and, for each domain, the lower coordinates of start+iteration
// pushed through that domain's chain.
//
// Lower coordinates are maintained incrementally: at each step only the
// delta of the changed induction variables is propagated through the
// affine chains (ApplyDelta), never a full re-evaluation. Since every
// primitive is affine the incremental result is identical to full
// re-evaluation, an equivalence the package tests check over randomized
// chains.
//
// visit must not retain or mutate the slices it is handed.
func Walk(domains []Domain, bounds, strides []int64, visit func(upper []int64, lower [][]int64)) {
	rank := len(bounds)
	if len(strides) == 0 {
		strides = make([]int64, rank)
		for i := range strides {
			strides[i] = 1
		}
	}
	if len(strides) != rank {
		exceptions.Panicf("transform.Walk: %d bounds with %d strides", rank, len(strides))
	}
	for i := range bounds {
		if bounds[i] <= 0 || strides[i] <= 0 {
			exceptions.Panicf("transform.Walk: non-positive bound %d or stride %d at dimension %d",
				bounds[i], strides[i], i)
		}
	}

	states := make([]*domainState, len(domains))
	lower := make([][]int64, len(domains))
	for di, d := range domains {
		states[di] = newDomainState(d, rank)
		lower[di] = states[di].lower()
	}

	upper := make([]int64, rank)
	newUpper := make([]int64, rank)
	for {
		visit(upper, lower)

		// Advance odometer-style, last dimension fastest.
		dim := rank - 1
		for dim >= 0 {
			upper[dim] += strides[dim]
			if upper[dim] < bounds[dim] {
				break
			}
			upper[dim] = 0
			dim--
		}
		if dim < 0 {
			return
		}

		for di, s := range states {
			for i := range newUpper {
				newUpper[i] = s.domain.Start[i] + upper[i]
			}
			s.advance(newUpper)
			lower[di] = s.lower()
		}
	}
}
