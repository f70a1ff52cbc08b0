package lower

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waveir/waveir/ir"
	"github.com/waveir/waveir/xdlops"
)

// findOps collects every op of the given kind, in pre-order.
func findOps(m *ir.Module, kind ir.OpType) []*ir.Op {
	var ops []*ir.Op
	m.Walk(func(op *ir.Op) bool {
		if op.Kind() == kind {
			ops = append(ops, op)
		}
		return true
	})
	return ops
}

// requireLegal asserts no abstract blockwise op survived.
func requireLegal(t *testing.T, m *ir.Module) {
	t.Helper()
	m.Walk(func(op *ir.Op) bool {
		require.False(t, illegalOps[op.Kind()], "illegal op %s survived lowering", op.Kind())
		return true
	})
}

func TestPass_StateMachine(t *testing.T) {
	pass := NewPass(xdlops.Default())
	assert.Equal(t, StateNotStarted, pass.State())

	m := ir.NewModule()
	require.NoError(t, pass.Run(m))
	assert.Equal(t, StateConverged, pass.State())
}

func TestPass_ConvergesWithNoPatternInput(t *testing.T) {
	// A module that is already legal passes through untouched.
	m := ir.NewModule()
	b := ir.NewBuilder(m)
	x := b.ConstantIndex(1)
	b.AddI(x, b.ConstantIndex(2))

	pass := NewPass(xdlops.Default())
	require.NoError(t, pass.Run(m))
	assert.Equal(t, StateConverged, pass.State())
	assert.Equal(t, 3, m.Body().NumOps())
}

func TestPass_LowersMixedModule(t *testing.T) {
	// All abstract ops in one module: the accumulator fill, the GEMM and
	// the writeback copy lower in a single run.
	m := ir.NewModule()
	b := ir.NewBuilder(m)
	acc := b.GpuAlloc(ir.MakeMemRef(dtypes.Float32, ir.AddressSpacePrivate, 32))
	b.Fill(acc, b.ConstantScalar(dtypes.Float32, 0))

	matrixA := b.GpuAlloc(ir.MakeMemRef(dtypes.Float32, ir.AddressSpaceWorkgroup, 4096))
	matrixB := b.GpuAlloc(ir.MakeMemRef(dtypes.Float32, ir.AddressSpaceWorkgroup, 4096))
	bufferA := b.GpuAlloc(ir.MakeMemRef(dtypes.Float32, ir.AddressSpacePrivate, 8))
	bufferB := b.GpuAlloc(ir.MakeMemRef(dtypes.Float32, ir.AddressSpacePrivate, 8))
	zero := b.ConstantIndex(0)
	accType := ir.VectorType{DType: dtypes.Float32, Len: 32}
	c0 := b.InBoundsLoad(accType, acc, zero)
	b.BlockwiseGemmV2(matrixA, matrixB, zero, zero, bufferA, bufferB,
		[]*ir.Value{c0}, ir.BlockwiseGemmV2Attrs{
			M: 64, N: 64, K: 8, MPerWave: 64, NPerWave: 64, KPack: 1,
		})

	out := b.GpuAlloc(ir.MakeMemRef(dtypes.Float32, ir.AddressSpaceGlobal, 4096))
	b.ThreadwiseCopyV2(acc, out, []*ir.Value{zero}, []*ir.Value{zero},
		ir.ThreadwiseCopyV2Attrs{Length: 4})

	pass := NewPass(xdlops.Default())
	require.NoError(t, pass.Run(m))
	assert.Equal(t, StateConverged, pass.State())
	requireLegal(t, m)

	assert.Len(t, findOps(m, ir.OpTypeXdlopsGemmV2), 1)
	assert.Len(t, findOps(m, ir.OpTypeBufferStore), 1)
	assert.NotEmpty(t, findOps(m, ir.OpTypeAffineFor))
}

func TestFill_LowersToLoopNest(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder(m)
	buffer := b.GpuAlloc(ir.MakeMemRef(dtypes.Float32, ir.AddressSpacePrivate, 2, 3))
	value := b.ConstantScalar(dtypes.Float32, 0)
	b.Fill(buffer, value)

	pass := NewPass(xdlops.Default())
	require.NoError(t, pass.Run(m))
	requireLegal(t, m)

	loops := findOps(m, ir.OpTypeAffineFor)
	require.Len(t, loops, 2)
	outer := ir.AttrsOf[ir.AffineForAttrs](loops[0])
	inner := ir.AttrsOf[ir.AffineForAttrs](loops[1])
	assert.Equal(t, int64(2), outer.UpperBound)
	assert.Equal(t, int64(3), inner.UpperBound)

	// The inner loop nests inside the outer and holds the store.
	require.Same(t, loops[0].Body(), loops[1].Parent())
	stores := findOps(m, ir.OpTypeStore)
	require.Len(t, stores, 1)
	store := stores[0]
	assert.Same(t, value, store.Operand(0))
	assert.Same(t, buffer, store.Operand(1))
	assert.Same(t, loops[0].InductionVar(), store.Operand(2))
	assert.Same(t, loops[1].InductionVar(), store.Operand(3))
}

func TestFill_ScalarBufferGetsSingleLoopPerDim(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder(m)
	buffer := b.GpuAlloc(ir.MakeMemRef(dtypes.Float16, ir.AddressSpacePrivate, 64))
	b.Fill(buffer, b.ConstantScalar(dtypes.Float16, 0))

	pass := NewPass(xdlops.Default())
	require.NoError(t, pass.Run(m))
	requireLegal(t, m)

	loops := findOps(m, ir.OpTypeAffineFor)
	require.Len(t, loops, 1)
	assert.Equal(t, int64(64), ir.AttrsOf[ir.AffineForAttrs](loops[0]).UpperBound)
}
