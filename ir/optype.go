package ir

// OpType enumerates every operation kind the IR substrate can represent:
// the abstract blockwise/threadwise ops this module lowers, and the
// primitive arithmetic, loop, and memory ops they lower into.
type OpType int

//go:generate go tool enumer -type=OpType -trimprefix=OpType -output=gen_optype_enumer.go optype.go

const (
	OpTypeInvalid OpType = iota

	// Arith dialect.
	OpTypeConstant
	OpTypeAddI
	OpTypeMulI
	OpTypeDivUI
	OpTypeRemUI
	OpTypeConvert

	// Affine dialect.
	OpTypeAffineFor

	// MemRef dialect.
	OpTypeLoad
	OpTypeStore

	// GPU dialect.
	OpTypeWorkitemID

	// Wave dialect: buffer and view primitives.
	OpTypeGpuAlloc
	OpTypeTransform
	OpTypeTransformingFor
	OpTypeInBoundsLoad
	OpTypeBufferStore

	// Wave dialect: abstract blockwise ops (illegal after lowering) and the
	// threadwise / instruction-matrix primitives they lower into.
	OpTypeFill
	OpTypeBlockwiseGemm
	OpTypeBlockwiseGemmV2
	OpTypeThreadwiseGemm
	OpTypeThreadwiseCopyV2
	OpTypeXdlopsGemmV2
)

// Dialect groups op kinds for conversion-target legality checks.
type Dialect int

const (
	DialectInvalid Dialect = iota
	DialectArith
	DialectAffine
	DialectMemRef
	DialectGPU
	DialectWave
)

// String implements fmt.Stringer.
func (d Dialect) String() string {
	switch d {
	case DialectArith:
		return "arith"
	case DialectAffine:
		return "affine"
	case DialectMemRef:
		return "memref"
	case DialectGPU:
		return "gpu"
	case DialectWave:
		return "wave"
	default:
		return "invalid"
	}
}

// Dialect returns the dialect the op kind belongs to.
func (t OpType) Dialect() Dialect {
	switch t {
	case OpTypeConstant, OpTypeAddI, OpTypeMulI, OpTypeDivUI, OpTypeRemUI, OpTypeConvert:
		return DialectArith
	case OpTypeAffineFor:
		return DialectAffine
	case OpTypeLoad, OpTypeStore:
		return DialectMemRef
	case OpTypeWorkitemID:
		return DialectGPU
	case OpTypeGpuAlloc, OpTypeTransform, OpTypeTransformingFor,
		OpTypeInBoundsLoad, OpTypeBufferStore,
		OpTypeFill, OpTypeBlockwiseGemm, OpTypeBlockwiseGemmV2,
		OpTypeThreadwiseGemm, OpTypeThreadwiseCopyV2, OpTypeXdlopsGemmV2:
		return DialectWave
	default:
		return DialectInvalid
	}
}

// Mnemonic returns the dialect-qualified printed name of the op kind.
func (t OpType) Mnemonic() string {
	name, ok := opMnemonics[t]
	if !ok {
		return "invalid"
	}
	return name
}

var opMnemonics = map[OpType]string{
	OpTypeConstant:         "arith.constant",
	OpTypeAddI:             "arith.addi",
	OpTypeMulI:             "arith.muli",
	OpTypeDivUI:            "arith.divui",
	OpTypeRemUI:            "arith.remui",
	OpTypeConvert:          "arith.convert",
	OpTypeAffineFor:        "affine.for",
	OpTypeLoad:             "memref.load",
	OpTypeStore:            "memref.store",
	OpTypeWorkitemID:       "gpu.workitem_id",
	OpTypeGpuAlloc:         "wave.alloc",
	OpTypeTransform:        "wave.transform",
	OpTypeTransformingFor:  "wave.transforming_for",
	OpTypeInBoundsLoad:     "wave.in_bounds_load",
	OpTypeBufferStore:      "wave.buffer_store",
	OpTypeFill:             "wave.fill",
	OpTypeBlockwiseGemm:    "wave.blockwise_gemm",
	OpTypeBlockwiseGemmV2:  "wave.blockwise_gemm_v2",
	OpTypeThreadwiseGemm:   "wave.threadwise_gemm",
	OpTypeThreadwiseCopyV2: "wave.threadwise_copy_v2",
	OpTypeXdlopsGemmV2:     "wave.xdlops_gemm_v2",
}
