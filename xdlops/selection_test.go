package xdlops

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelect_F32NativeTile(t *testing.T) {
	sel := NewSelector(Default()).Select(dtypes.Float32, 64, 64)
	assert.Equal(t, InstrMFMAF32_32x32x1F32, sel.Instr)
	assert.Equal(t, int64(1), sel.MRepeats)
	assert.Equal(t, int64(1), sel.NRepeats)
	assert.Equal(t, int64(64), sel.MPerXdlops)
	assert.Equal(t, int64(64), sel.NPerXdlops)
	assert.Equal(t, int64(1), sel.KBase)
	assert.False(t, sel.IsKReduction())
}

func TestSelect_RepeatDecomposition(t *testing.T) {
	sel := NewSelector(Default()).Select(dtypes.Float32, 128, 64)
	assert.Equal(t, int64(2), sel.MRepeats)
	assert.Equal(t, int64(1), sel.NRepeats)
	assert.Equal(t, int64(64), sel.MPerXdlops)
	assert.Equal(t, int64(64), sel.NPerXdlops)
	// The per-issue tile still selects the native 64x64 variant.
	assert.Equal(t, InstrMFMAF32_32x32x1F32, sel.Instr)
}

func TestSelect_KReductionFlag(t *testing.T) {
	// Output blocks 1 with input blocks > 1 signals the K-reduction
	// staging mode.
	sel := NewSelector(Default()).Select(dtypes.Float32, 32, 32)
	assert.Equal(t, InstrMFMAF32_32x32x2F32, sel.Instr)
	assert.Equal(t, int64(1), sel.OutputBlocks)
	assert.Equal(t, int64(2), sel.InputBlocks)
	assert.True(t, sel.IsKReduction())

	sel = NewSelector(Default()).Select(dtypes.Float16, 16, 16)
	assert.Equal(t, InstrMFMAF32_16x16x16F16, sel.Instr)
	assert.True(t, sel.IsKReduction())
	assert.Equal(t, int64(4), sel.KBase)
}

func TestSelect_Deterministic(t *testing.T) {
	s := NewSelector(Default())
	for _, dtype := range []dtypes.DType{dtypes.Float32, dtypes.Float16, dtypes.BFloat16} {
		first := s.Select(dtype, 64, 64)
		second := s.Select(dtype, 64, 64)
		require.Equal(t, first, second)
	}
}

func TestSelect_UnsupportedConfigurations(t *testing.T) {
	s := NewSelector(Default())

	// No variant for the element type.
	require.Panics(t, func() { s.Select(dtypes.Int8, 64, 64) })

	// No variant for the tile shape.
	require.Panics(t, func() { s.Select(dtypes.Float32, 16, 32) })

	// Repeat ratios beyond 2x are unimplemented.
	require.Panics(t, func() { s.Select(dtypes.Float32, 256, 64) })
	require.Panics(t, func() { s.Select(dtypes.Float32, 96, 64) })

	// Degenerate tiles are a caller bug.
	require.Panics(t, func() { s.Select(dtypes.Float32, 0, 64) })
}

func TestCapabilityTable_RejectsDanglingRows(t *testing.T) {
	require.Panics(t, func() {
		NewCapabilityTable(nil, []tableEntry{
			{dtypes.Float32, 64, 64, InstrMFMAF32_32x32x1F32},
		})
	})
}
