package lower

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waveir/waveir/ir"
	"github.com/waveir/waveir/xdlops"
)

func TestThreadwiseCopyV2_VectorizedLoadStore(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder(m)
	source := b.GpuAlloc(ir.MakeMemRef(dtypes.Float32, ir.AddressSpacePrivate, 64))
	dest := b.GpuAlloc(ir.MakeMemRef(dtypes.Float32, ir.AddressSpaceGlobal, 128, 128))
	sourceCoord := b.ConstantIndex(16)
	destRow := b.ConstantIndex(3)
	destCol := b.ConstantIndex(7)
	b.ThreadwiseCopyV2(source, dest, []*ir.Value{sourceCoord}, []*ir.Value{destRow, destCol},
		ir.ThreadwiseCopyV2Attrs{
			Length:       4,
			LeftOobDims:  []int64{0},
			RightOobDims: []int64{0, 1},
			StoreMethod:  ir.StoreMethodAtomicAdd,
		})

	pass := NewPass(xdlops.Default())
	require.NoError(t, pass.Run(m))
	requireLegal(t, m)

	loads := findOps(m, ir.OpTypeInBoundsLoad)
	require.Len(t, loads, 1)
	load := loads[0]
	assert.Equal(t, ir.VectorType{DType: dtypes.Float32, Len: 4}, load.Result(0).Type())
	assert.Same(t, source, load.Operand(0))
	assert.Same(t, sourceCoord, load.Operand(1))

	stores := findOps(m, ir.OpTypeBufferStore)
	require.Len(t, stores, 1)
	store := stores[0]
	assert.Same(t, load.Result(0), store.Operand(0))
	assert.Same(t, dest, store.Operand(1))
	assert.Same(t, destRow, store.Operand(2))
	assert.Same(t, destCol, store.Operand(3))

	attrs := ir.AttrsOf[ir.BufferStoreAttrs](store)
	assert.Equal(t, []int64{0}, attrs.LeftOobDims)
	assert.Equal(t, []int64{0, 1}, attrs.RightOobDims)
	assert.Equal(t, ir.StoreMethodAtomicAdd, attrs.StoreMethod)
}

func TestThreadwiseCopyV2_ScalarWhenLengthOne(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder(m)
	source := b.GpuAlloc(ir.MakeMemRef(dtypes.Float16, ir.AddressSpacePrivate, 8))
	dest := b.GpuAlloc(ir.MakeMemRef(dtypes.Float16, ir.AddressSpaceGlobal, 256))
	coord := b.ConstantIndex(0)
	b.ThreadwiseCopyV2(source, dest, []*ir.Value{coord}, []*ir.Value{coord},
		ir.ThreadwiseCopyV2Attrs{Length: 1})

	require.NoError(t, NewPass(xdlops.Default()).Run(m))

	loads := findOps(m, ir.OpTypeInBoundsLoad)
	require.Len(t, loads, 1)
	assert.Equal(t, ir.ScalarType{DType: dtypes.Float16}, loads[0].Result(0).Type())
}
