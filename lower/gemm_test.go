package lower

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waveir/waveir/ir"
	"github.com/waveir/waveir/transform"
	"github.com/waveir/waveir/xdlops"
)

// buildBlockwiseGemm creates a module holding one wave.blockwise_gemm over
// LDS tiles A [k,m,kpack] and B [k,n,kpack] accumulating into a per-thread
// C tile [mC,nC].
func buildBlockwiseGemm(k, m, n, kPack, mC, nC int64, attrs ir.BlockwiseGemmAttrs) (*ir.Module, *ir.Value) {
	mod := ir.NewModule()
	b := ir.NewBuilder(mod)
	blockA := b.GpuAlloc(ir.MakeMemRef(dtypes.Float32, ir.AddressSpaceWorkgroup, k, m, kPack))
	blockB := b.GpuAlloc(ir.MakeMemRef(dtypes.Float32, ir.AddressSpaceWorkgroup, k, n, kPack))
	bufferC := b.GpuAlloc(ir.MakeMemRef(dtypes.Float32, ir.AddressSpacePrivate, mC, nC))
	offsetA := b.ConstantIndex(0)
	offsetB := b.ConstantIndex(0)
	b.BlockwiseGemm(blockA, blockB, bufferC, offsetA, offsetB, attrs)
	return mod, bufferC
}

func TestBlockwiseGemm_LowersToStagedThreadwiseGemm(t *testing.T) {
	const (
		k, m, n, kPack = 8, 128, 64, 4
		mC, nC         = 8, 4
	)
	attrs := ir.BlockwiseGemmAttrs{
		KPerThread: 2, MPerThread: 4, NPerThread: 2,
		MRepeatStride: 64, NRepeatStride: 32,
	}
	mod, bufferC := buildBlockwiseGemm(k, m, n, kPack, mC, nC, attrs)

	pass := NewPass(xdlops.Default())
	require.NoError(t, pass.Run(mod))
	assert.Equal(t, StateConverged, pass.State())
	requireLegal(t, mod)

	// One outer K loop stepping by KPerThread.
	loops := findOps(mod, ir.OpTypeAffineFor)
	require.Len(t, loops, 1)
	loopAttrs := ir.AttrsOf[ir.AffineForAttrs](loops[0])
	assert.Equal(t, int64(k), loopAttrs.UpperBound)
	assert.Equal(t, int64(2), loopAttrs.Step)

	// Two staging copy loops, A first: bounds are the register-tile shape.
	copies := findOps(mod, ir.OpTypeTransformingFor)
	require.Len(t, copies, 2)
	copyA := ir.AttrsOf[ir.TransformingForAttrs](copies[0])
	copyB := ir.AttrsOf[ir.TransformingForAttrs](copies[1])
	assert.Equal(t, []int64{2, 2, 4, 4}, copyA.Bounds) // {kPerThread, mRepeat, mPerThread, kPack}
	assert.Equal(t, []int64{2, 2, 2, 4}, copyB.Bounds)
	assert.True(t, copyA.ForceUnroll)
	assert.True(t, copyA.UseIndexDiffs)

	// Each copy body is load / store (f32 to f32 needs no convert).
	for _, c := range copies {
		kinds := make([]ir.OpType, c.Body().NumOps())
		for i := range kinds {
			kinds[i] = c.Body().Op(i).Kind()
		}
		assert.Equal(t, []ir.OpType{ir.OpTypeLoad, ir.OpTypeStore}, kinds)
	}

	// The threadwise GEMM reads [kPerThread, mC, kPack] x [kPerThread, nC,
	// kPack] views of the staged registers and accumulates into C.
	gemms := findOps(mod, ir.OpTypeThreadwiseGemm)
	require.Len(t, gemms, 1)
	gemm := gemms[0]
	aView := gemm.Operand(0).Type().(ir.MemRefType)
	bView := gemm.Operand(1).Type().(ir.MemRefType)
	assert.Equal(t, []int64{2, mC, kPack}, aView.Shape)
	assert.Equal(t, []int64{2, nC, kPack}, bView.Shape)
	assert.Same(t, bufferC, gemm.Operand(2))

	// The register buffers hold exactly one K-slice of the thread tile.
	allocs := findOps(mod, ir.OpTypeGpuAlloc)
	var privateSizes []int64
	for _, a := range allocs {
		mt := a.Result(0).Type().(ir.MemRefType)
		if mt.Space == ir.AddressSpacePrivate && mt.Rank() == 1 {
			privateSizes = append(privateSizes, mt.NumElements())
		}
	}
	assert.Equal(t, []int64{2 * mC * kPack, 2 * nC * kPack}, privateSizes)
}

// TestBlockwiseGemm_CopyCoversRegistersExactlyOnce replays the emitted
// copy-loop attributes through the map machinery: over one outer-loop step
// the A staging copy must write every register element exactly once and
// read only in-bounds LDS coordinates.
func TestBlockwiseGemm_CopyCoversRegistersExactlyOnce(t *testing.T) {
	const (
		k, m, n, kPack = 8, 128, 64, 4
		mC, nC         = 8, 4
	)
	mod, _ := buildBlockwiseGemm(k, m, n, kPack, mC, nC, ir.BlockwiseGemmAttrs{
		KPerThread: 2, MPerThread: 4, NPerThread: 2,
		MRepeatStride: 64, NRepeatStride: 32,
	})
	pass := NewPass(xdlops.Default())
	require.NoError(t, pass.Run(mod))

	copies := findOps(mod, ir.OpTypeTransformingFor)
	require.Len(t, copies, 2)
	attrs := ir.AttrsOf[ir.TransformingForAttrs](copies[0])

	regSize := transform.Product(attrs.Bounds)
	domains := []transform.Domain{
		{Start: make([]int64, len(attrs.Bounds)), Chain: attrs.Chains[0]},
		{Start: make([]int64, len(attrs.Bounds)), Chain: attrs.Chains[1]},
	}
	written := make(map[int64]bool)
	transform.Walk(domains, attrs.Bounds, attrs.Strides, func(upper []int64, lower [][]int64) {
		lds, reg := lower[0], lower[1]
		require.Len(t, lds, 3)
		require.True(t, lds[0] >= 0 && lds[0] < k)
		require.True(t, lds[1] >= 0 && lds[1] < m)
		require.True(t, lds[2] >= 0 && lds[2] < kPack)
		require.Len(t, reg, 1)
		require.False(t, written[reg[0]], "register %d written twice", reg[0])
		written[reg[0]] = true
	})
	require.Len(t, written, int(regSize))
}

func TestBlockwiseGemm_MixedPrecisionInsertsConvert(t *testing.T) {
	// LDS tiles in f16, accumulator tile in f32: the staging copies convert.
	mod := ir.NewModule()
	b := ir.NewBuilder(mod)
	blockA := b.GpuAlloc(ir.MakeMemRef(dtypes.Float16, ir.AddressSpaceWorkgroup, 4, 64, 4))
	blockB := b.GpuAlloc(ir.MakeMemRef(dtypes.Float16, ir.AddressSpaceWorkgroup, 4, 64, 4))
	bufferC := b.GpuAlloc(ir.MakeMemRef(dtypes.Float32, ir.AddressSpacePrivate, 4, 4))
	zero := b.ConstantIndex(0)
	b.BlockwiseGemm(blockA, blockB, bufferC, zero, zero, ir.BlockwiseGemmAttrs{
		KPerThread: 2, MPerThread: 2, NPerThread: 2,
		MRepeatStride: 32, NRepeatStride: 32,
	})

	pass := NewPass(xdlops.Default())
	require.NoError(t, pass.Run(mod))
	requireLegal(t, mod)

	converts := findOps(mod, ir.OpTypeConvert)
	require.Len(t, converts, 2)
	for _, c := range converts {
		assert.Equal(t, dtypes.Float32, ir.AttrsOf[ir.ConvertAttrs](c).To)
	}
}

func TestBlockwiseGemm_RejectsNonDividingTiles(t *testing.T) {
	run := func(attrs ir.BlockwiseGemmAttrs) {
		mod, _ := buildBlockwiseGemm(8, 128, 64, 4, 8, 4, attrs)
		NewPass(xdlops.Default()).Run(mod)
	}

	// MPerThread does not divide the output tile.
	require.Panics(t, func() {
		run(ir.BlockwiseGemmAttrs{KPerThread: 2, MPerThread: 3, NPerThread: 2,
			MRepeatStride: 64, NRepeatStride: 32})
	})
	// KPerThread does not divide K.
	require.Panics(t, func() {
		run(ir.BlockwiseGemmAttrs{KPerThread: 3, MPerThread: 4, NPerThread: 2,
			MRepeatStride: 64, NRepeatStride: 32})
	})
}
