// Package transform builds and evaluates coordinate-space transform maps.
//
// A Map is an ordered, invertible mapping from a named upper coordinate
// space (for example {k, mRepeat, mPerThread, kpack}) to a named lower
// coordinate space (for example {k, m, kpack}). Maps are assembled from
// three primitive operators:
//
//   - PassThrough: an upper dimension maps 1:1 to a lower dimension of the
//     same extent.
//   - Embed: a lower coordinate is the affine combination of several upper
//     coordinates with static integer coefficients.
//   - Unmerge: a flat lower coordinate is decomposed into a tuple of upper
//     coordinates with row-major extents (the inverse of an embed with
//     unit coefficients).
//
// Maps are built with TopDownBuilder (upper space is the logical index,
// lower space is a physical buffer) or BottomUpBuilder (a logical view is
// erected over a flat buffer). Either way the result is an immutable
// descriptor that always evaluates upper coordinates down to lower
// coordinates; consumers chain several maps to go from a loop's induction
// variables to a memory address.
//
// Every primitive is affine, so coordinate differences propagate exactly:
// ApplyDelta lets loop generators update lower coordinates incrementally
// instead of re-evaluating the full map at every iteration. Walk drives
// that machinery for a whole loop nest.
package transform

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
)

// PrimitiveKind distinguishes the transform primitives of a Map.
type PrimitiveKind int

const (
	// KindInvalid is the zero value, never part of a valid Map.
	KindInvalid PrimitiveKind = iota

	// KindPassThrough maps one upper dimension unchanged onto one lower dimension.
	KindPassThrough

	// KindEmbed combines several upper dimensions into one lower dimension
	// as Σ(upper[i] × coefficient[i]).
	KindEmbed

	// KindUnmerge folds a tuple of upper dimensions into one flat lower
	// dimension using row-major strides derived from the upper extents.
	KindUnmerge
)

// String implements fmt.Stringer.
func (k PrimitiveKind) String() string {
	switch k {
	case KindPassThrough:
		return "PassThrough"
	case KindEmbed:
		return "Embed"
	case KindUnmerge:
		return "Unmerge"
	default:
		return fmt.Sprintf("PrimitiveKind(%d)", int(k))
	}
}

// primitive is one operator of a Map. Regardless of kind, evaluation is
// lower[lower] = Σ(upper[upperDims[i]] × coeffs[i]); the kinds differ in
// construction-time validation and in how coeffs were derived.
type primitive struct {
	Kind      PrimitiveKind
	UpperDims []int // indices into the upper space
	LowerDim  int   // index into the lower space
	Coeffs    []int64
}

// Map is an immutable transform descriptor mapping upper-space coordinates
// to lower-space coordinates. Build one with TopDownBuilder or
// BottomUpBuilder; the zero value is invalid.
type Map struct {
	upperNames []string
	upperShape []int64
	lowerNames []string
	lowerShape []int64
	prims      []primitive
}

// UpperRank returns the number of upper-space dimensions.
func (m *Map) UpperRank() int { return len(m.upperShape) }

// LowerRank returns the number of lower-space dimensions.
func (m *Map) LowerRank() int { return len(m.lowerShape) }

// UpperShape returns a copy of the upper-space extents.
func (m *Map) UpperShape() []int64 { return append([]int64(nil), m.upperShape...) }

// LowerShape returns a copy of the lower-space extents.
func (m *Map) LowerShape() []int64 { return append([]int64(nil), m.lowerShape...) }

// UpperNames returns a copy of the upper-space dimension names.
func (m *Map) UpperNames() []string { return append([]string(nil), m.upperNames...) }

// LowerNames returns a copy of the lower-space dimension names.
func (m *Map) LowerNames() []string { return append([]string(nil), m.lowerNames...) }

// Apply evaluates the map on a full upper coordinate tuple, returning the
// lower coordinate tuple. It panics if upper doesn't match the upper rank:
// that is a caller bug, not an input condition.
func (m *Map) Apply(upper []int64) []int64 {
	if len(upper) != len(m.upperShape) {
		exceptions.Panicf("transform.Map.Apply: got %d upper coordinates, map %s has upper rank %d",
			len(upper), m, len(m.upperShape))
	}
	lower := make([]int64, len(m.lowerShape))
	for _, p := range m.prims {
		var acc int64
		for i, u := range p.UpperDims {
			acc += upper[u] * p.Coeffs[i]
		}
		lower[p.LowerDim] = acc
	}
	return lower
}

// ApplyDelta advances prevLower by the difference (newUpper - prevUpper)
// without re-evaluating the full map. Because every primitive is affine in
// the upper coordinates, the result equals Apply(newUpper) exactly; loop
// generators rely on that equivalence to update addresses incrementally.
func (m *Map) ApplyDelta(prevUpper, newUpper, prevLower []int64) []int64 {
	if len(prevUpper) != len(m.upperShape) || len(newUpper) != len(m.upperShape) {
		exceptions.Panicf("transform.Map.ApplyDelta: upper coordinate rank mismatch for map %s", m)
	}
	if len(prevLower) != len(m.lowerShape) {
		exceptions.Panicf("transform.Map.ApplyDelta: got %d lower coordinates, map %s has lower rank %d",
			len(prevLower), m, len(m.lowerShape))
	}
	lower := append([]int64(nil), prevLower...)
	for _, p := range m.prims {
		var delta int64
		for i, u := range p.UpperDims {
			delta += (newUpper[u] - prevUpper[u]) * p.Coeffs[i]
		}
		lower[p.LowerDim] += delta
	}
	return lower
}

// String implements fmt.Stringer with a compact one-line description.
func (m *Map) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	for i, p := range m.prims {
		if i > 0 {
			sb.WriteString(", ")
		}
		upper := make([]string, len(p.UpperDims))
		for j, u := range p.UpperDims {
			upper[j] = m.upperNames[u]
		}
		fmt.Fprintf(&sb, "%s[%s -> %s]", p.Kind, strings.Join(upper, ","), m.lowerNames[p.LowerDim])
	}
	sb.WriteString("}")
	return sb.String()
}

// mapGob mirrors Map with exported fields for gob serialization.
type mapGob struct {
	UpperNames []string
	UpperShape []int64
	LowerNames []string
	LowerShape []int64
	Prims      []primitive
}

// GobEncode implements gob.GobEncoder.
func (m *Map) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(mapGob{
		UpperNames: m.upperNames,
		UpperShape: m.upperShape,
		LowerNames: m.lowerNames,
		LowerShape: m.lowerShape,
		Prims:      m.prims,
	})
	return buf.Bytes(), err
}

// GobDecode implements gob.GobDecoder.
func (m *Map) GobDecode(data []byte) error {
	var g mapGob
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&g); err != nil {
		return err
	}
	m.upperNames = g.UpperNames
	m.upperShape = g.UpperShape
	m.lowerNames = g.LowerNames
	m.lowerShape = g.LowerShape
	m.prims = g.Prims
	return nil
}

// ApplyChain evaluates a sequence of maps, feeding each map's lower
// coordinates as the next map's upper coordinates.
func ApplyChain(chain []*Map, upper []int64) []int64 {
	coords := upper
	for _, m := range chain {
		coords = m.Apply(coords)
	}
	return coords
}
