package ir

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"

	"github.com/waveir/waveir/transform"
)

// Attribute structs are immutable: they are validated when the op carrying
// them is created and never mutated afterwards. Rules read them through
// AttrsOf, so there is no string-keyed lookup at rewrite time.

// IndexConstantAttrs parameterizes an arith.constant of index type.
type IndexConstantAttrs struct {
	Value int64
}

// ScalarConstantAttrs parameterizes an arith.constant of scalar type. The
// value is stored as float64 and rounded to the DType's precision when the
// constant is created (see Builder.ConstantScalar).
type ScalarConstantAttrs struct {
	DType dtypes.DType
	Value float64
}

// ConvertAttrs parameterizes an arith.convert element-type conversion.
type ConvertAttrs struct {
	To dtypes.DType
}

// AffineForAttrs parameterizes an affine.for loop.
type AffineForAttrs struct {
	LowerBound, UpperBound, Step int64
}

func (a AffineForAttrs) validate() {
	if a.Step <= 0 {
		exceptions.Panicf("affine.for step must be positive, got %d", a.Step)
	}
	if a.UpperBound < a.LowerBound {
		exceptions.Panicf("affine.for bounds [%d, %d) are inverted", a.LowerBound, a.UpperBound)
	}
}

// TransformAttrs parameterizes a wave.transform view: a zero-cost
// coordinate re-view of a memref through a transform map.
type TransformAttrs struct {
	Map *transform.Map
}

// TransformingForAttrs parameterizes a wave.transforming_for loop nest:
// one iteration space of Bounds/Strides, and per domain a chain of
// transform maps carrying start+iteration coordinates down to that
// domain's lower coordinates, which the body receives as block arguments.
type TransformingForAttrs struct {
	Chains  [][]*transform.Map
	Bounds  []int64
	Strides []int64

	// ForceUnroll asks later lowering to fully unroll the nest.
	ForceUnroll bool

	// UseIndexDiffs selects incremental index-difference updates over full
	// affine re-evaluation when the nest is expanded.
	UseIndexDiffs bool
}

// domainRank returns the number of lower coordinates domain d produces.
func (a TransformingForAttrs) domainRank(d int) int {
	chain := a.Chains[d]
	if len(chain) == 0 {
		return len(a.Bounds)
	}
	return chain[len(chain)-1].LowerRank()
}

func (a TransformingForAttrs) validate() {
	if len(a.Bounds) == 0 {
		exceptions.Panicf("transforming_for needs a non-empty iteration space")
	}
	if len(a.Strides) != 0 && len(a.Strides) != len(a.Bounds) {
		exceptions.Panicf("transforming_for has %d bounds and %d strides", len(a.Bounds), len(a.Strides))
	}
	for _, chain := range a.Chains {
		rank := len(a.Bounds)
		for _, m := range chain {
			if m.UpperRank() != rank {
				exceptions.Panicf("transforming_for chain map %s expects upper rank %d, previous level has rank %d",
					m, m.UpperRank(), rank)
			}
			rank = m.LowerRank()
		}
	}
}

// StoreMethod says how a buffer_store combines the stored value with the
// destination.
type StoreMethod int

const (
	// StoreMethodSet overwrites the destination element.
	StoreMethodSet StoreMethod = iota

	// StoreMethodAtomicAdd accumulates into the destination element.
	StoreMethodAtomicAdd
)

// String implements fmt.Stringer.
func (s StoreMethod) String() string {
	if s == StoreMethodAtomicAdd {
		return "atomic_add"
	}
	return "set"
}

// BufferStoreAttrs parameterizes a wave.buffer_store: a vectorized store
// that bounds-checks the destination dimensions listed as possibly
// out-of-bounds on the left (underflow) or right (overflow) side.
type BufferStoreAttrs struct {
	LeftOobDims  []int64
	RightOobDims []int64
	StoreMethod  StoreMethod
}

// BlockwiseGemmAttrs parameterizes the abstract non-XDLOPS blockwise GEMM:
// static register-tiling shape attributes. The operand shapes carry K, M,
// N and KPack.
type BlockwiseGemmAttrs struct {
	KPerThread    int64
	MPerThread    int64
	NPerThread    int64
	MRepeatStride int64
	NRepeatStride int64
}

func (a BlockwiseGemmAttrs) validate() {
	if a.KPerThread <= 0 || a.MPerThread <= 0 || a.NPerThread <= 0 {
		exceptions.Panicf("blockwise_gemm per-thread tile %dx%dx%d must be positive",
			a.KPerThread, a.MPerThread, a.NPerThread)
	}
	if a.MRepeatStride <= 0 || a.NRepeatStride <= 0 {
		exceptions.Panicf("blockwise_gemm repeat strides %d/%d must be positive",
			a.MRepeatStride, a.NRepeatStride)
	}
}

// BlockwiseGemmV2Attrs parameterizes the abstract instruction-matrix
// blockwise GEMM. LDS buffer offsets are in element units and must be
// KPack-aligned; the lowering rule asserts that at entry.
type BlockwiseGemmV2Attrs struct {
	M, N, K          int64
	MPerWave         int64
	NPerWave         int64
	KPack            int64
	LDSBufferOffsetA int64
	LDSBufferOffsetB int64
}

func (a BlockwiseGemmV2Attrs) validate() {
	if a.M <= 0 || a.N <= 0 || a.K <= 0 {
		exceptions.Panicf("blockwise_gemm_v2 problem %dx%dx%d must be positive", a.M, a.N, a.K)
	}
	if a.MPerWave <= 0 || a.NPerWave <= 0 {
		exceptions.Panicf("blockwise_gemm_v2 per-wave tile %dx%d must be positive", a.MPerWave, a.NPerWave)
	}
	if a.KPack <= 0 {
		exceptions.Panicf("blockwise_gemm_v2 kpack %d must be positive", a.KPack)
	}
	if a.LDSBufferOffsetA < 0 || a.LDSBufferOffsetB < 0 {
		exceptions.Panicf("blockwise_gemm_v2 LDS offsets %d/%d must be non-negative",
			a.LDSBufferOffsetA, a.LDSBufferOffsetB)
	}
}

// XdlopsGemmV2Attrs parameterizes one issue of the native instruction-matrix
// GEMM. When the parent blockwise op needed repeats, each issue is
// hard-coded to the native 64x64 tile.
type XdlopsGemmV2Attrs struct {
	M, N, K          int64
	MPerWave         int64
	NPerWave         int64
	KPack            int64
	LDSBufferOffsetA int64
	LDSBufferOffsetB int64
}

// ThreadwiseCopyV2Attrs parameterizes the abstract strided-copy op.
type ThreadwiseCopyV2Attrs struct {
	// Length is the number of contiguous elements to copy, which becomes
	// the vector width of the load/store pair.
	Length int64

	LeftOobDims  []int64
	RightOobDims []int64
	StoreMethod  StoreMethod
}

func (a ThreadwiseCopyV2Attrs) validate() {
	if a.Length <= 0 {
		exceptions.Panicf("threadwise_copy_v2 length %d must be positive", a.Length)
	}
}
