package ir

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/x448/float16"

	"github.com/waveir/waveir/transform"
)

// Builder creates ops at a movable insertion point. Ops are inserted in
// order at the point, which advances past each new op.
type Builder struct {
	block *Block
	pos   int
}

// NewBuilder returns a builder whose insertion point is the end of the
// module's top-level block.
func NewBuilder(m *Module) *Builder {
	return &Builder{block: m.Body(), pos: m.Body().NumOps()}
}

// InsertionBlock returns the block the builder currently inserts into.
func (b *Builder) InsertionBlock() *Block { return b.block }

// SetInsertionPointToStart moves the insertion point to the beginning of blk.
func (b *Builder) SetInsertionPointToStart(blk *Block) {
	b.block, b.pos = blk, 0
}

// SetInsertionPointToEnd moves the insertion point to the end of blk.
func (b *Builder) SetInsertionPointToEnd(blk *Block) {
	b.block, b.pos = blk, len(blk.ops)
}

// SetInsertionPointBefore moves the insertion point immediately before op.
func (b *Builder) SetInsertionPointBefore(op *Op) {
	b.block, b.pos = op.parent, opIndex(op)
}

// SetInsertionPointAfter moves the insertion point immediately after op.
func (b *Builder) SetInsertionPointAfter(op *Op) {
	b.block, b.pos = op.parent, opIndex(op)+1
}

func opIndex(op *Op) int {
	for i, o := range op.parent.ops {
		if o == op {
			return i
		}
	}
	exceptions.Panicf("op %s is detached from its parent block", op.kind)
	return -1
}

// newOp creates an op with fresh result values and inserts it at the
// insertion point.
func (b *Builder) newOp(kind OpType, resultTypes []Type, operands []*Value, attrs any) *Op {
	if b.block == nil {
		exceptions.Panicf("Builder has no insertion point (creating %s)", kind)
	}
	for i, operand := range operands {
		if operand == nil {
			exceptions.Panicf("nil operand %d while creating %s", i, kind)
		}
	}
	op := &Op{
		kind:     kind,
		operands: append([]*Value(nil), operands...),
		attrs:    attrs,
		parent:   b.block,
	}
	op.results = make([]*Value, len(resultTypes))
	for i, t := range resultTypes {
		op.results[i] = &Value{typ: t, def: op, resIdx: i}
	}
	b.block.ops = append(b.block.ops, nil)
	copy(b.block.ops[b.pos+1:], b.block.ops[b.pos:])
	b.block.ops[b.pos] = op
	b.pos++
	return op
}

// addRegion appends a nested region to op with block arguments of the
// given types.
func (b *Builder) addRegion(op *Op, argTypes ...Type) *Block {
	blk := &Block{parent: op}
	for _, t := range argTypes {
		blk.addArg(t)
	}
	op.regions = append(op.regions, blk)
	return blk
}

//
// Arith dialect.
//

// ConstantIndex creates an index-typed constant.
func (b *Builder) ConstantIndex(v int64) *Value {
	op := b.newOp(OpTypeConstant, []Type{Index}, nil, IndexConstantAttrs{Value: v})
	return op.Result(0)
}

// ConstantScalar creates a scalar constant, rounding the value to the
// DType's precision first so the IR carries the exact stored value.
func (b *Builder) ConstantScalar(dtype dtypes.DType, value float64) *Value {
	op := b.newOp(OpTypeConstant, []Type{ScalarType{DType: dtype}}, nil,
		ScalarConstantAttrs{DType: dtype, Value: roundToDType(dtype, value)})
	return op.Result(0)
}

// roundToDType rounds a float64 through the target DType's precision.
func roundToDType(dtype dtypes.DType, v float64) float64 {
	switch dtype {
	case dtypes.Float16:
		return float64(float16.Fromfloat32(float32(v)).Float32())
	case dtypes.BFloat16:
		return float64(bfloat16.FromFloat32(float32(v)).Float32())
	case dtypes.Float32:
		return float64(float32(v))
	default:
		return v
	}
}

func (b *Builder) indexBinaryOp(kind OpType, lhs, rhs *Value) *Value {
	if !lhs.Type().Equal(Index) || !rhs.Type().Equal(Index) {
		exceptions.Panicf("%s expects index operands, got %s and %s", kind, lhs.Type(), rhs.Type())
	}
	return b.newOp(kind, []Type{Index}, []*Value{lhs, rhs}, nil).Result(0)
}

// AddI creates an index addition.
func (b *Builder) AddI(lhs, rhs *Value) *Value { return b.indexBinaryOp(OpTypeAddI, lhs, rhs) }

// MulI creates an index multiplication.
func (b *Builder) MulI(lhs, rhs *Value) *Value { return b.indexBinaryOp(OpTypeMulI, lhs, rhs) }

// DivUI creates an unsigned index division.
func (b *Builder) DivUI(lhs, rhs *Value) *Value { return b.indexBinaryOp(OpTypeDivUI, lhs, rhs) }

// RemUI creates an unsigned index remainder.
func (b *Builder) RemUI(lhs, rhs *Value) *Value { return b.indexBinaryOp(OpTypeRemUI, lhs, rhs) }

// Convert converts a scalar value to the given element type. Converting to
// the value's own type is the identity and emits nothing; converting a
// constant folds into a new constant.
func (b *Builder) Convert(v *Value, to dtypes.DType) *Value {
	scalar, ok := v.Type().(ScalarType)
	if !ok {
		exceptions.Panicf("Convert expects a scalar value, got %s", v.Type())
	}
	if scalar.DType == to {
		return v
	}
	if def := v.DefiningOp(); def != nil && def.kind == OpTypeConstant {
		attrs := AttrsOf[ScalarConstantAttrs](def)
		return b.ConstantScalar(to, attrs.Value)
	}
	op := b.newOp(OpTypeConvert, []Type{ScalarType{DType: to}}, []*Value{v}, ConvertAttrs{To: to})
	return op.Result(0)
}

//
// Affine dialect.
//

// AffineFor creates an affine.for loop [lb, ub) with the given step. The
// loop body is an empty block whose single argument is the induction
// variable; move the insertion point into it to populate the body.
func (b *Builder) AffineFor(lb, ub, step int64) *Op {
	attrs := AffineForAttrs{LowerBound: lb, UpperBound: ub, Step: step}
	attrs.validate()
	op := b.newOp(OpTypeAffineFor, nil, nil, attrs)
	b.addRegion(op, Index)
	return op
}

//
// MemRef dialect.
//

func memRefOf(v *Value, what string) MemRefType {
	t, ok := v.Type().(MemRefType)
	if !ok {
		exceptions.Panicf("%s expects a memref, got %s", what, v.Type())
	}
	return t
}

func checkIndices(t MemRefType, indices []*Value, what string) {
	if len(indices) != t.Rank() {
		exceptions.Panicf("%s: %d indices for rank-%d memref %s", what, len(indices), t.Rank(), t)
	}
	for _, idx := range indices {
		if !idx.Type().Equal(Index) {
			exceptions.Panicf("%s: index operand has type %s", what, idx.Type())
		}
	}
}

// Load creates a memref.load of one element.
func (b *Builder) Load(mem *Value, indices ...*Value) *Value {
	t := memRefOf(mem, "memref.load")
	checkIndices(t, indices, "memref.load")
	operands := append([]*Value{mem}, indices...)
	op := b.newOp(OpTypeLoad, []Type{ScalarType{DType: t.DType}}, operands, nil)
	return op.Result(0)
}

// Store creates a memref.store of one element.
func (b *Builder) Store(value, mem *Value, indices ...*Value) *Op {
	t := memRefOf(mem, "memref.store")
	checkIndices(t, indices, "memref.store")
	if !value.Type().Equal(ScalarType{DType: t.DType}) {
		exceptions.Panicf("memref.store of %s into %s", value.Type(), t)
	}
	operands := append([]*Value{value, mem}, indices...)
	return b.newOp(OpTypeStore, nil, operands, nil)
}

//
// GPU dialect.
//

// WorkitemID creates the op returning the flat thread id within the block.
func (b *Builder) WorkitemID() *Value {
	return b.newOp(OpTypeWorkitemID, []Type{Index}, nil, nil).Result(0)
}

//
// Wave dialect: buffers, views and loops.
//

// GpuAlloc creates a symbolic buffer allocation of the given memref type.
// Private allocations introduced inside a rewrite live only in the
// generated loop body.
func (b *Builder) GpuAlloc(t MemRefType) *Value {
	return b.newOp(OpTypeGpuAlloc, []Type{t}, nil, nil).Result(0)
}

// Transform creates a zero-cost coordinate re-view of mem through a
// transform map: the result is a memref of the map's upper shape backed by
// the same storage. The map's lower space must match the memref's shape.
func (b *Builder) Transform(mem *Value, m *transform.Map) *Value {
	t := memRefOf(mem, "wave.transform")
	lower := m.LowerShape()
	if len(lower) != t.Rank() {
		exceptions.Panicf("wave.transform: map %s lower rank %d does not view memref %s", m, len(lower), t)
	}
	for i, extent := range lower {
		if extent != t.Shape[i] {
			exceptions.Panicf("wave.transform: map %s lower shape disagrees with memref %s at dimension %d", m, t, i)
		}
	}
	result := MemRefType{DType: t.DType, Shape: m.UpperShape(), Space: t.Space}
	op := b.newOp(OpTypeTransform, []Type{result}, []*Value{mem}, TransformAttrs{Map: m})
	return op.Result(0)
}

// TransformingFor creates a wave.transforming_for loop nest: a rectangular
// iteration space of bounds/strides, iterated jointly over the given
// domains. Each domain has start coordinates (in the first map's upper
// space) and a chain of transform maps; the body block receives, in domain
// order, the lower coordinates of every domain as index arguments.
func (b *Builder) TransformingFor(starts [][]*Value, chains [][]*transform.Map,
	bounds, strides []int64, forceUnroll, useIndexDiffs bool) *Op {
	if len(starts) != len(chains) {
		exceptions.Panicf("transforming_for: %d start tuples for %d chains", len(starts), len(chains))
	}
	attrs := TransformingForAttrs{
		Chains:        chains,
		Bounds:        append([]int64(nil), bounds...),
		Strides:       append([]int64(nil), strides...),
		ForceUnroll:   forceUnroll,
		UseIndexDiffs: useIndexDiffs,
	}
	attrs.validate()
	var operands []*Value
	for d, start := range starts {
		if len(start) != len(bounds) {
			exceptions.Panicf("transforming_for: domain %d start has %d coordinates, iteration space has rank %d",
				d, len(start), len(bounds))
		}
		operands = append(operands, start...)
	}
	op := b.newOp(OpTypeTransformingFor, nil, operands, attrs)
	var argTypes []Type
	for d := range chains {
		for i := 0; i < attrs.domainRank(d); i++ {
			argTypes = append(argTypes, Index)
		}
	}
	b.addRegion(op, argTypes...)
	return op
}

// InBoundsLoad creates a load that the caller guarantees to be in bounds;
// the result may be a scalar or a vector starting at the given flat
// coordinates.
func (b *Builder) InBoundsLoad(result Type, source *Value, coords ...*Value) *Value {
	t := memRefOf(source, "wave.in_bounds_load")
	switch rt := result.(type) {
	case ScalarType:
		if rt.DType != t.DType {
			exceptions.Panicf("wave.in_bounds_load of %s from %s", result, t)
		}
	case VectorType:
		if rt.DType != t.DType {
			exceptions.Panicf("wave.in_bounds_load of %s from %s", result, t)
		}
	default:
		exceptions.Panicf("wave.in_bounds_load result must be scalar or vector, got %s", result)
	}
	for _, c := range coords {
		if !c.Type().Equal(Index) {
			exceptions.Panicf("wave.in_bounds_load coordinate has type %s", c.Type())
		}
	}
	operands := append([]*Value{source}, coords...)
	return b.newOp(OpTypeInBoundsLoad, []Type{result}, operands, nil).Result(0)
}

// BufferStore creates a bounds-checked vectorized store into dest at the
// given coordinates, honoring the attrs' declared out-of-bounds dimensions.
func (b *Builder) BufferStore(value, dest *Value, coords []*Value, attrs BufferStoreAttrs) *Op {
	t := memRefOf(dest, "wave.buffer_store")
	switch vt := value.Type().(type) {
	case ScalarType:
		if vt.DType != t.DType {
			exceptions.Panicf("wave.buffer_store of %s into %s", value.Type(), t)
		}
	case VectorType:
		if vt.DType != t.DType {
			exceptions.Panicf("wave.buffer_store of %s into %s", value.Type(), t)
		}
	default:
		exceptions.Panicf("wave.buffer_store value must be scalar or vector, got %s", value.Type())
	}
	operands := append([]*Value{value, dest}, coords...)
	return b.newOp(OpTypeBufferStore, nil, operands, attrs)
}

//
// Wave dialect: GEMM ops.
//

// ThreadwiseGemm creates the threadwise GEMM primitive: accumulate
// a[k,m,kpack] × b[k,n,kpack] into c[m,n], all in private registers.
func (b *Builder) ThreadwiseGemm(matA, matB, matC *Value) *Op {
	ta := memRefOf(matA, "wave.threadwise_gemm")
	tb := memRefOf(matB, "wave.threadwise_gemm")
	tc := memRefOf(matC, "wave.threadwise_gemm")
	if ta.Rank() != 3 || tb.Rank() != 3 || tc.Rank() != 2 {
		exceptions.Panicf("wave.threadwise_gemm operands %s, %s, %s must be [k,m,kpack], [k,n,kpack], [m,n]",
			ta, tb, tc)
	}
	if ta.Shape[0] != tb.Shape[0] || ta.Shape[2] != tb.Shape[2] {
		exceptions.Panicf("wave.threadwise_gemm operands %s and %s disagree on k/kpack", ta, tb)
	}
	return b.newOp(OpTypeThreadwiseGemm, nil, []*Value{matA, matB, matC}, nil)
}

// XdlopsGemmV2 creates one issue of the native instruction-matrix GEMM.
// kOffsetA/kOffsetB shift the per-lane K position of the A/B reads;
// vectorCs are the incoming accumulators and the results are the updated
// accumulators, in the same order.
func (b *Builder) XdlopsGemmV2(resultTypes []Type, matA, matB, kOffsetA, kOffsetB, bufA, bufB *Value,
	vectorCs []*Value, attrs XdlopsGemmV2Attrs) *Op {
	if len(resultTypes) != len(vectorCs) {
		exceptions.Panicf("wave.xdlops_gemm_v2: %d result types for %d accumulators",
			len(resultTypes), len(vectorCs))
	}
	for i, c := range vectorCs {
		if !c.Type().Equal(resultTypes[i]) {
			exceptions.Panicf("wave.xdlops_gemm_v2: accumulator %d has type %s, result type %s",
				i, c.Type(), resultTypes[i])
		}
	}
	operands := []*Value{matA, matB, kOffsetA, kOffsetB, bufA, bufB}
	operands = append(operands, vectorCs...)
	return b.newOp(OpTypeXdlopsGemmV2, resultTypes, operands, attrs)
}

//
// Wave dialect: abstract blockwise ops (inputs to the lowering pass).
//

// Fill creates the abstract "fill buffer with constant" op.
func (b *Builder) Fill(buffer, value *Value) *Op {
	t := memRefOf(buffer, "wave.fill")
	if !value.Type().Equal(ScalarType{DType: t.DType}) {
		exceptions.Panicf("wave.fill of %s into %s", value.Type(), t)
	}
	return b.newOp(OpTypeFill, nil, []*Value{buffer, value}, nil)
}

// BlockwiseGemm creates the abstract non-XDLOPS blockwise GEMM op reading
// LDS matrices matA [K,M,KPack] and matB [K,N,KPack] and accumulating into
// the per-thread output tile matC [MThreadTile,NThreadTile].
func (b *Builder) BlockwiseGemm(matA, matB, matC, threadOffsetA, threadOffsetB *Value,
	attrs BlockwiseGemmAttrs) *Op {
	attrs.validate()
	ta := memRefOf(matA, "wave.blockwise_gemm")
	tb := memRefOf(matB, "wave.blockwise_gemm")
	tc := memRefOf(matC, "wave.blockwise_gemm")
	if ta.Rank() != 3 || tb.Rank() != 3 {
		exceptions.Panicf("wave.blockwise_gemm LDS operands %s and %s must be [k,m,kpack] / [k,n,kpack]", ta, tb)
	}
	if ta.Shape[0] != tb.Shape[0] || ta.Shape[2] != tb.Shape[2] {
		exceptions.Panicf("wave.blockwise_gemm operands %s and %s disagree on k/kpack", ta, tb)
	}
	if tc.Rank() != 2 {
		exceptions.Panicf("wave.blockwise_gemm output %s must be a rank-2 per-thread tile", tc)
	}
	if !threadOffsetA.Type().Equal(Index) || !threadOffsetB.Type().Equal(Index) {
		exceptions.Panicf("wave.blockwise_gemm thread offsets must be index values")
	}
	return b.newOp(OpTypeBlockwiseGemm, nil,
		[]*Value{matA, matB, matC, threadOffsetA, threadOffsetB}, attrs)
}

// BlockwiseGemmV2 creates the abstract instruction-matrix blockwise GEMM
// op. vectorCs are the incoming accumulators; the op's results are the
// outgoing accumulators, one per vectorC, in order.
func (b *Builder) BlockwiseGemmV2(matA, matB, waveOffsetA, waveOffsetB, bufA, bufB *Value,
	vectorCs []*Value, attrs BlockwiseGemmV2Attrs) *Op {
	attrs.validate()
	memRefOf(matA, "wave.blockwise_gemm_v2")
	memRefOf(matB, "wave.blockwise_gemm_v2")
	memRefOf(bufA, "wave.blockwise_gemm_v2")
	memRefOf(bufB, "wave.blockwise_gemm_v2")
	if !waveOffsetA.Type().Equal(Index) || !waveOffsetB.Type().Equal(Index) {
		exceptions.Panicf("wave.blockwise_gemm_v2 wave offsets must be index values")
	}
	resultTypes := make([]Type, len(vectorCs))
	for i, c := range vectorCs {
		if _, ok := c.Type().(VectorType); !ok {
			exceptions.Panicf("wave.blockwise_gemm_v2 accumulator %d has non-vector type %s", i, c.Type())
		}
		resultTypes[i] = c.Type()
	}
	operands := []*Value{matA, matB, waveOffsetA, waveOffsetB, bufA, bufB}
	operands = append(operands, vectorCs...)
	return b.newOp(OpTypeBlockwiseGemmV2, resultTypes, operands, attrs)
}

// ThreadwiseCopyV2 creates the abstract strided-copy op moving
// attrs.Length contiguous elements from source at sourceCoords to dest at
// destCoords.
func (b *Builder) ThreadwiseCopyV2(source, dest *Value, sourceCoords, destCoords []*Value,
	attrs ThreadwiseCopyV2Attrs) *Op {
	attrs.validate()
	ts := memRefOf(source, "wave.threadwise_copy_v2")
	td := memRefOf(dest, "wave.threadwise_copy_v2")
	if len(sourceCoords) != ts.Rank() {
		exceptions.Panicf("wave.threadwise_copy_v2: %d source coordinates for %s", len(sourceCoords), ts)
	}
	if len(destCoords) != td.Rank() {
		exceptions.Panicf("wave.threadwise_copy_v2: %d destination coordinates for %s", len(destCoords), td)
	}
	operands := []*Value{source, dest}
	operands = append(operands, sourceCoords...)
	operands = append(operands, destCoords...)
	op := b.newOp(OpTypeThreadwiseCopyV2, nil, operands, attrs)
	return op
}
