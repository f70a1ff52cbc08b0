// Package xdlops selects instruction-matrix (MFMA) hardware instruction
// variants for a given element type and per-wave tile shape.
//
// Selection is a pure lookup against a CapabilityTable, a read-only
// description of what the target hardware offers. The table is injected
// into the Selector rather than consulted through a global, so tests can
// substitute reduced tables. No instruction matching a requested
// configuration is an unsupported-configuration error: compilation of the
// enclosing unit aborts, there is nothing to recover.
package xdlops

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// waveSize is the number of lanes in a hardware wave.
const waveSize = 64

// maxTilePerXdlops is the largest M or N one instruction issue covers;
// larger per-wave tiles are decomposed into repeats.
const maxTilePerXdlops = 64

// Instr identifies one MFMA instruction variant.
type Instr int

const (
	InstrInvalid Instr = iota

	// Float32 variants.
	InstrMFMAF32_32x32x1F32
	InstrMFMAF32_32x32x2F32
	InstrMFMAF32_16x16x1F32
	InstrMFMAF32_16x16x4F32
	InstrMFMAF32_4x4x1F32

	// Float16 variants.
	InstrMFMAF32_32x32x4F16
	InstrMFMAF32_32x32x8F16
	InstrMFMAF32_16x16x4F16
	InstrMFMAF32_16x16x16F16
	InstrMFMAF32_4x4x4F16

	// BFloat16 variants.
	InstrMFMAF32_32x32x2BF16
	InstrMFMAF32_32x32x4BF16
	InstrMFMAF32_16x16x2BF16
	InstrMFMAF32_16x16x8BF16
	InstrMFMAF32_4x4x2BF16
)

var instrNames = map[Instr]string{
	InstrMFMAF32_32x32x1F32:  "mfma_f32_32x32x1f32",
	InstrMFMAF32_32x32x2F32:  "mfma_f32_32x32x2f32",
	InstrMFMAF32_16x16x1F32:  "mfma_f32_16x16x1f32",
	InstrMFMAF32_16x16x4F32:  "mfma_f32_16x16x4f32",
	InstrMFMAF32_4x4x1F32:    "mfma_f32_4x4x1f32",
	InstrMFMAF32_32x32x4F16:  "mfma_f32_32x32x4f16",
	InstrMFMAF32_32x32x8F16:  "mfma_f32_32x32x8f16",
	InstrMFMAF32_16x16x4F16:  "mfma_f32_16x16x4f16",
	InstrMFMAF32_16x16x16F16: "mfma_f32_16x16x16f16",
	InstrMFMAF32_4x4x4F16:    "mfma_f32_4x4x4f16",
	InstrMFMAF32_32x32x2BF16: "mfma_f32_32x32x2bf16",
	InstrMFMAF32_32x32x4BF16: "mfma_f32_32x32x4bf16",
	InstrMFMAF32_16x16x2BF16: "mfma_f32_16x16x2bf16",
	InstrMFMAF32_16x16x8BF16: "mfma_f32_16x16x8bf16",
	InstrMFMAF32_4x4x2BF16:   "mfma_f32_4x4x2bf16",
}

// String implements fmt.Stringer with the hardware mnemonic.
func (i Instr) String() string {
	if name, ok := instrNames[i]; ok {
		return name
	}
	return fmt.Sprintf("Instr(%d)", int(i))
}

// InstrInfo describes the fixed operand geometry of one instruction
// variant.
type InstrInfo struct {
	// ThreadsPerBlock is the number of lanes cooperating on one output
	// block.
	ThreadsPerBlock int64

	// InputBlocks is the number of data-parallel splits of the K dimension
	// across the wave.
	InputBlocks int64

	// OutputBlocks is the number of output blocks one issue produces.
	OutputBlocks int64

	// KBase is the minimum number of K elements one issue consumes per
	// lane, and the argument vector width.
	KBase int64
}

// tileKey addresses the table by element type and the per-issue tile.
type tileKey struct {
	dtype  dtypes.DType
	mPerXdlops, nPerXdlops int64
}

// CapabilityTable maps (element type, per-issue tile shape) to instruction
// variants. It is read-only after construction.
type CapabilityTable struct {
	tiles map[tileKey]Instr
	info  map[Instr]InstrInfo
}

// Info returns the geometry of an instruction variant in the table.
func (t *CapabilityTable) Info(instr Instr) InstrInfo {
	info, ok := t.info[instr]
	if !ok {
		exceptions.Panicf("xdlops: instruction %s is not in the capability table", instr)
	}
	return info
}

// lookup finds the instruction for one issue's tile shape.
func (t *CapabilityTable) lookup(dtype dtypes.DType, mPerXdlops, nPerXdlops int64) (Instr, bool) {
	instr, ok := t.tiles[tileKey{dtype: dtype, mPerXdlops: mPerXdlops, nPerXdlops: nPerXdlops}]
	return instr, ok
}

// Selection is the result of instruction selection for a (dtype,
// mPerWave, nPerWave) configuration.
type Selection struct {
	Instr Instr

	// ArgDType and ArgLen describe the per-issue argument vector type:
	// ArgLen elements of ArgDType (ArgLen == KBase).
	ArgDType dtypes.DType
	ArgLen   int64

	ThreadsPerBlock int64
	InputBlocks     int64
	OutputBlocks    int64
	KBase           int64

	// MPerXdlops/NPerXdlops is the tile one issue covers; MRepeats/NRepeats
	// the number of independent issues per dimension.
	MPerXdlops, NPerXdlops int64
	MRepeats, NRepeats     int64
}

// IsKReduction reports whether the variant decomposes K across input
// blocks with a single output block, requiring split accumulation during
// data staging.
func (s Selection) IsKReduction() bool {
	return s.OutputBlocks == 1 && s.InputBlocks > 1
}

// Selector performs instruction selection against an injected capability
// table. It is stateless: Select is a pure function of its arguments and
// the table.
type Selector struct {
	table *CapabilityTable
}

// NewSelector returns a selector over the given table.
func NewSelector(table *CapabilityTable) Selector {
	if table == nil {
		exceptions.Panicf("xdlops.NewSelector: nil capability table")
	}
	return Selector{table: table}
}

// repeats returns the issue count for one dimension: 1 for tiles up to the
// native size, perWave/64 above it. Only 1x and 2x are implemented; any
// other ratio aborts compilation.
func repeats(perWave int64, dim string) int64 {
	if perWave <= maxTilePerXdlops {
		return 1
	}
	r := perWave / maxTilePerXdlops
	if r != 2 || perWave%maxTilePerXdlops != 0 {
		exceptions.Panicf("xdlops: %sPerWave=%d requires %dx repeat, only 1x and 2x are implemented",
			dim, perWave, r)
	}
	return r
}

// Select chooses the instruction variant for the given element type and
// per-wave tile. There is no matching variant for unsupported
// configurations; that is a fatal error aborting compilation, not a
// runtime condition.
func (s Selector) Select(dtype dtypes.DType, mPerWave, nPerWave int64) Selection {
	if mPerWave <= 0 || nPerWave <= 0 {
		exceptions.Panicf("xdlops.Select: per-wave tile %dx%d must be positive", mPerWave, nPerWave)
	}
	mRepeats := repeats(mPerWave, "m")
	nRepeats := repeats(nPerWave, "n")
	mPerXdlops := mPerWave / mRepeats
	nPerXdlops := nPerWave / nRepeats

	instr, ok := s.table.lookup(dtype, mPerXdlops, nPerXdlops)
	if !ok {
		exceptions.Panicf("xdlops.Select: no instruction variant for %s with %dx%d per-issue tile (per-wave %dx%d)",
			dtype, mPerXdlops, nPerXdlops, mPerWave, nPerWave)
	}
	info := s.table.Info(instr)
	return Selection{
		Instr:           instr,
		ArgDType:        dtype,
		ArgLen:          info.KBase,
		ThreadsPerBlock: info.ThreadsPerBlock,
		InputBlocks:     info.InputBlocks,
		OutputBlocks:    info.OutputBlocks,
		KBase:           info.KBase,
		MPerXdlops:      mPerXdlops,
		NPerXdlops:      nPerXdlops,
		MRepeats:        mRepeats,
		NRepeats:        nRepeats,
	}
}

// WaveSize returns the number of lanes in a wave.
func WaveSize() int64 { return waveSize }
