package transform

import (
	"github.com/gomlx/exceptions"
)

// builderState holds what the two builder directions share: the fixed
// "source" space declared up-front and the primitives accumulated so far.
type builderState struct {
	fixedNames []string
	fixedShape []int64
	fixedIdx   map[string]int

	builtNames []string
	builtShape []int64
	builtIdx   map[string]int

	prims []primitive
	done  bool
}

func newBuilderState(names []string, shape []int64) builderState {
	if len(names) != len(shape) {
		exceptions.Panicf("transform builder: %d dimension names for %d extents", len(names), len(shape))
	}
	idx := make(map[string]int, len(names))
	for i, name := range names {
		if _, dup := idx[name]; dup {
			exceptions.Panicf("transform builder: duplicate dimension name %q", name)
		}
		if shape[i] <= 0 {
			exceptions.Panicf("transform builder: dimension %q has non-positive extent %d", name, shape[i])
		}
		idx[name] = i
	}
	return builderState{
		fixedNames: append([]string(nil), names...),
		fixedShape: append([]int64(nil), shape...),
		fixedIdx:   idx,
		builtIdx:   make(map[string]int),
	}
}

func (s *builderState) fixedDim(name string) int {
	i, ok := s.fixedIdx[name]
	if !ok {
		exceptions.Panicf("transform builder: unknown dimension %q", name)
	}
	return i
}

// addBuiltDim registers a dimension of the space under construction at the
// given position, growing the shape slice as needed. Positions must end up
// dense, which Get verifies.
func (s *builderState) addBuiltDim(name string, pos int, extent int64) int {
	if s.done {
		exceptions.Panicf("transform builder: used after Get()")
	}
	if _, dup := s.builtIdx[name]; dup {
		exceptions.Panicf("transform builder: dimension %q defined twice", name)
	}
	if pos < 0 {
		exceptions.Panicf("transform builder: negative position %d for dimension %q", pos, name)
	}
	for len(s.builtShape) <= pos {
		s.builtShape = append(s.builtShape, 0)
		s.builtNames = append(s.builtNames, "")
	}
	if s.builtShape[pos] != 0 {
		exceptions.Panicf("transform builder: position %d assigned to both %q and %q",
			pos, s.builtNames[pos], name)
	}
	s.builtShape[pos] = extent
	s.builtNames[pos] = name
	s.builtIdx[name] = pos
	return pos
}

func (s *builderState) finish() {
	if s.done {
		exceptions.Panicf("transform builder: Get() called twice")
	}
	for i, extent := range s.builtShape {
		if extent == 0 {
			exceptions.Panicf("transform builder: position %d of the constructed space was never defined", i)
		}
	}
	s.done = true
}

// TopDownBuilder constructs a Map from a declared upper space down to a
// lower space defined one dimension at a time. Use it when the upper space
// is the logical index space of a loop nest and the lower space is the
// physical layout of a buffer.
type TopDownBuilder struct {
	state builderState
}

// NewTopDown starts a top-down builder over the given upper space.
func NewTopDown(upperNames []string, upperShape []int64) *TopDownBuilder {
	return &TopDownBuilder{state: newBuilderState(upperNames, upperShape)}
}

// PassThrough maps the named upper dimension unchanged onto the next lower
// position, keeping its name and extent.
func (b *TopDownBuilder) PassThrough(name string) {
	b.PassThroughAt(name, b.nextPos(), name)
}

// PassThroughAt maps upperName unchanged onto lower dimension lowerName at
// the explicit lower position.
func (b *TopDownBuilder) PassThroughAt(lowerName string, lowerPos int, upperName string) {
	u := b.state.fixedDim(upperName)
	l := b.state.addBuiltDim(lowerName, lowerPos, b.state.fixedShape[u])
	b.state.prims = append(b.state.prims, primitive{
		Kind:      KindPassThrough,
		UpperDims: []int{u},
		LowerDim:  l,
		Coeffs:    []int64{1},
	})
}

// Embed defines lower dimension lowerName at lowerPos with the given extent
// as the affine combination Σ(upper[i] × coefficients[i]).
//
// The coefficients are static and fixed here; the maximum coordinate the
// combination can produce, Σ((extent(upper[i])-1) × coefficients[i]), must
// stay below lowerExtent. A violating combination could address past the
// end of the lower buffer, so it aborts construction: it is a tuning
// parameter contract bug in the caller, never a recoverable condition.
func (b *TopDownBuilder) Embed(lowerName string, lowerPos int, lowerExtent int64, upperNames []string, coefficients []int64) {
	if len(upperNames) != len(coefficients) {
		exceptions.Panicf("transform.Embed(%q): %d upper dimensions with %d coefficients",
			lowerName, len(upperNames), len(coefficients))
	}
	if len(upperNames) == 0 {
		exceptions.Panicf("transform.Embed(%q): needs at least one upper dimension", lowerName)
	}
	upper := make([]int, len(upperNames))
	var maxCoord int64
	for i, name := range upperNames {
		u := b.state.fixedDim(name)
		upper[i] = u
		if coefficients[i] < 0 {
			exceptions.Panicf("transform.Embed(%q): negative coefficient %d for %q",
				lowerName, coefficients[i], name)
		}
		maxCoord += (b.state.fixedShape[u] - 1) * coefficients[i]
	}
	if maxCoord >= lowerExtent {
		exceptions.Panicf("transform.Embed(%q): maximum coordinate %d reaches past extent %d",
			lowerName, maxCoord, lowerExtent)
	}
	l := b.state.addBuiltDim(lowerName, lowerPos, lowerExtent)
	b.state.prims = append(b.state.prims, primitive{
		Kind:      KindEmbed,
		UpperDims: upper,
		LowerDim:  l,
		Coeffs:    append([]int64(nil), coefficients...),
	})
}

func (b *TopDownBuilder) nextPos() int {
	return len(b.state.builtShape)
}

// Get finalizes the builder and returns the immutable Map. The builder must
// not be used afterwards, and every upper dimension must have been consumed
// by exactly one primitive.
func (b *TopDownBuilder) Get() *Map {
	used := make([]bool, len(b.state.fixedShape))
	for _, p := range b.state.prims {
		for _, u := range p.UpperDims {
			if used[u] {
				exceptions.Panicf("transform builder: upper dimension %q used by two primitives",
					b.state.fixedNames[u])
			}
			used[u] = true
		}
	}
	for i, u := range used {
		if !u {
			exceptions.Panicf("transform builder: upper dimension %q never mapped", b.state.fixedNames[i])
		}
	}
	b.state.finish()
	return &Map{
		upperNames: b.state.fixedNames,
		upperShape: b.state.fixedShape,
		lowerNames: b.state.builtNames,
		lowerShape: b.state.builtShape,
		prims:      b.state.prims,
	}
}

// BottomUpBuilder constructs a Map by declaring the lower space first and
// erecting upper-space views over it. Use it to give a flat register buffer
// a multi-dimensional coordinate view. The resulting Map still evaluates
// upper coordinates down to lower coordinates.
type BottomUpBuilder struct {
	state builderState
}

// NewBottomUp starts a bottom-up builder over the given lower space.
func NewBottomUp(lowerNames []string, lowerShape []int64) *BottomUpBuilder {
	return &BottomUpBuilder{state: newBuilderState(lowerNames, lowerShape)}
}

// PassThrough views the named lower dimension as an upper dimension of the
// same name and extent at the given upper position.
func (b *BottomUpBuilder) PassThrough(upperName string, upperPos int, lowerName string) {
	l := b.state.fixedDim(lowerName)
	u := b.state.addBuiltDim(upperName, upperPos, b.state.fixedShape[l])
	b.state.prims = append(b.state.prims, primitive{
		Kind:      KindPassThrough,
		UpperDims: []int{u},
		LowerDim:  l,
		Coeffs:    []int64{1},
	})
}

// Unmerge decomposes the flat lower dimension lowerName into the tuple of
// upper dimensions upperNames with the given extents, placed at
// upperPositions. Coordinates recombine row-major: the last upper dimension
// is the fastest-moving one. The extents' product must equal the lower
// dimension's extent, since unmerge is a pure re-view of the same index
// range.
func (b *BottomUpBuilder) Unmerge(upperNames []string, upperPositions []int, lowerName string, extents []int64) {
	if len(upperNames) != len(extents) || len(upperNames) != len(upperPositions) {
		exceptions.Panicf("transform.Unmerge(%q): mismatched names/positions/extents (%d/%d/%d)",
			lowerName, len(upperNames), len(upperPositions), len(extents))
	}
	l := b.state.fixedDim(lowerName)
	for i, e := range extents {
		if e <= 0 {
			exceptions.Panicf("transform.Unmerge(%q): non-positive extent %d for %q",
				lowerName, e, upperNames[i])
		}
	}
	if product := Product(extents); product != b.state.fixedShape[l] {
		exceptions.Panicf("transform.Unmerge(%q): extents multiply to %d, lower extent is %d",
			lowerName, product, b.state.fixedShape[l])
	}
	// Row-major strides: stride[i] = Π extents[i+1:].
	coeffs := make([]int64, len(extents))
	stride := int64(1)
	for i := len(extents) - 1; i >= 0; i-- {
		coeffs[i] = stride
		stride *= extents[i]
	}
	upper := make([]int, len(upperNames))
	for i, name := range upperNames {
		upper[i] = b.state.addBuiltDim(name, upperPositions[i], extents[i])
	}
	b.state.prims = append(b.state.prims, primitive{
		Kind:      KindUnmerge,
		UpperDims: upper,
		LowerDim:  l,
		Coeffs:    coeffs,
	})
}

// Get finalizes the builder and returns the immutable Map.
func (b *BottomUpBuilder) Get() *Map {
	covered := make([]bool, len(b.state.fixedShape))
	for _, p := range b.state.prims {
		if covered[p.LowerDim] {
			exceptions.Panicf("transform builder: lower dimension %q covered twice",
				b.state.fixedNames[p.LowerDim])
		}
		covered[p.LowerDim] = true
	}
	for i, c := range covered {
		if !c {
			exceptions.Panicf("transform builder: lower dimension %q never covered", b.state.fixedNames[i])
		}
	}
	b.state.finish()
	return &Map{
		upperNames: b.state.builtNames,
		upperShape: b.state.builtShape,
		lowerNames: b.state.fixedNames,
		lowerShape: b.state.fixedShape,
		prims:      b.state.prims,
	}
}
