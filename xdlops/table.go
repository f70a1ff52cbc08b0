package xdlops

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// tableEntry is one row of a capability table under construction.
type tableEntry struct {
	DType                  dtypes.DType
	MPerXdlops, NPerXdlops int64
	Instr                  Instr
}

// NewCapabilityTable builds a table from instruction geometries and tile
// rows. Rows referring to an instruction with no geometry are a
// construction bug and abort.
func NewCapabilityTable(info map[Instr]InstrInfo, entries []tableEntry) *CapabilityTable {
	t := &CapabilityTable{
		tiles: make(map[tileKey]Instr, len(entries)),
		info:  make(map[Instr]InstrInfo, len(info)),
	}
	for instr, i := range info {
		if i.ThreadsPerBlock <= 0 || i.InputBlocks <= 0 || i.OutputBlocks <= 0 || i.KBase <= 0 {
			exceptions.Panicf("xdlops: invalid geometry for %s: %+v", instr, i)
		}
		t.info[instr] = i
	}
	for _, e := range entries {
		if _, ok := t.info[e.Instr]; !ok {
			exceptions.Panicf("xdlops: table row %s/%dx%d refers to %s which has no geometry",
				e.DType, e.MPerXdlops, e.NPerXdlops, e.Instr)
		}
		key := tileKey{dtype: e.DType, mPerXdlops: e.MPerXdlops, nPerXdlops: e.NPerXdlops}
		if _, dup := t.tiles[key]; dup {
			exceptions.Panicf("xdlops: duplicate table row %s/%dx%d", e.DType, e.MPerXdlops, e.NPerXdlops)
		}
		t.tiles[key] = e.Instr
	}
	return t
}

// defaultTable is the gfx908-class capability table. Geometry per variant:
// how many lanes cooperate per output block, how K is split across input
// blocks, how many output blocks one issue produces, and the base K
// granularity (= argument vector width).
var defaultTable = NewCapabilityTable(
	map[Instr]InstrInfo{
		InstrMFMAF32_32x32x1F32:  {ThreadsPerBlock: 32, InputBlocks: 2, OutputBlocks: 2, KBase: 1},
		InstrMFMAF32_32x32x2F32:  {ThreadsPerBlock: 32, InputBlocks: 2, OutputBlocks: 1, KBase: 1},
		InstrMFMAF32_16x16x1F32:  {ThreadsPerBlock: 16, InputBlocks: 4, OutputBlocks: 4, KBase: 1},
		InstrMFMAF32_16x16x4F32:  {ThreadsPerBlock: 16, InputBlocks: 4, OutputBlocks: 1, KBase: 1},
		InstrMFMAF32_4x4x1F32:    {ThreadsPerBlock: 64, InputBlocks: 1, OutputBlocks: 1, KBase: 1},
		InstrMFMAF32_32x32x4F16:  {ThreadsPerBlock: 32, InputBlocks: 2, OutputBlocks: 2, KBase: 4},
		InstrMFMAF32_32x32x8F16:  {ThreadsPerBlock: 32, InputBlocks: 2, OutputBlocks: 1, KBase: 4},
		InstrMFMAF32_16x16x4F16:  {ThreadsPerBlock: 16, InputBlocks: 4, OutputBlocks: 4, KBase: 4},
		InstrMFMAF32_16x16x16F16: {ThreadsPerBlock: 16, InputBlocks: 4, OutputBlocks: 1, KBase: 4},
		InstrMFMAF32_4x4x4F16:    {ThreadsPerBlock: 64, InputBlocks: 1, OutputBlocks: 1, KBase: 4},
		InstrMFMAF32_32x32x2BF16: {ThreadsPerBlock: 32, InputBlocks: 2, OutputBlocks: 2, KBase: 2},
		InstrMFMAF32_32x32x4BF16: {ThreadsPerBlock: 32, InputBlocks: 2, OutputBlocks: 1, KBase: 2},
		InstrMFMAF32_16x16x2BF16: {ThreadsPerBlock: 16, InputBlocks: 4, OutputBlocks: 4, KBase: 2},
		InstrMFMAF32_16x16x8BF16: {ThreadsPerBlock: 16, InputBlocks: 4, OutputBlocks: 1, KBase: 2},
		InstrMFMAF32_4x4x2BF16:   {ThreadsPerBlock: 64, InputBlocks: 1, OutputBlocks: 1, KBase: 2},
	},
	[]tableEntry{
		{dtypes.Float32, 64, 64, InstrMFMAF32_32x32x1F32},
		{dtypes.Float32, 32, 64, InstrMFMAF32_32x32x1F32},
		{dtypes.Float32, 64, 32, InstrMFMAF32_32x32x1F32},
		{dtypes.Float32, 32, 32, InstrMFMAF32_32x32x2F32},
		{dtypes.Float32, 16, 64, InstrMFMAF32_16x16x1F32},
		{dtypes.Float32, 64, 16, InstrMFMAF32_16x16x1F32},
		{dtypes.Float32, 16, 16, InstrMFMAF32_16x16x4F32},
		{dtypes.Float32, 8, 64, InstrMFMAF32_4x4x1F32},
		{dtypes.Float32, 4, 64, InstrMFMAF32_4x4x1F32},

		{dtypes.Float16, 64, 64, InstrMFMAF32_32x32x4F16},
		{dtypes.Float16, 32, 64, InstrMFMAF32_32x32x4F16},
		{dtypes.Float16, 64, 32, InstrMFMAF32_32x32x4F16},
		{dtypes.Float16, 32, 32, InstrMFMAF32_32x32x8F16},
		{dtypes.Float16, 16, 64, InstrMFMAF32_16x16x4F16},
		{dtypes.Float16, 64, 16, InstrMFMAF32_16x16x4F16},
		{dtypes.Float16, 16, 16, InstrMFMAF32_16x16x16F16},
		{dtypes.Float16, 8, 64, InstrMFMAF32_4x4x4F16},
		{dtypes.Float16, 4, 64, InstrMFMAF32_4x4x4F16},

		{dtypes.BFloat16, 64, 64, InstrMFMAF32_32x32x2BF16},
		{dtypes.BFloat16, 32, 64, InstrMFMAF32_32x32x2BF16},
		{dtypes.BFloat16, 64, 32, InstrMFMAF32_32x32x2BF16},
		{dtypes.BFloat16, 32, 32, InstrMFMAF32_32x32x4BF16},
		{dtypes.BFloat16, 16, 64, InstrMFMAF32_16x16x2BF16},
		{dtypes.BFloat16, 64, 16, InstrMFMAF32_16x16x2BF16},
		{dtypes.BFloat16, 16, 16, InstrMFMAF32_16x16x8BF16},
		{dtypes.BFloat16, 8, 64, InstrMFMAF32_4x4x2BF16},
		{dtypes.BFloat16, 4, 64, InstrMFMAF32_4x4x2BF16},
	})

// Default returns the builtin gfx908-class capability table.
func Default() *CapabilityTable { return defaultTable }
