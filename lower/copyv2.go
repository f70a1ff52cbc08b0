package lower

import (
	"github.com/waveir/waveir/ir"
)

// threadwiseCopyV2Pattern lowers the strided-copy abstraction into one
// vectorized in-bounds load and one bounds-checked vectorized store.
type threadwiseCopyV2Pattern struct{}

func (threadwiseCopyV2Pattern) OpType() ir.OpType { return ir.OpTypeThreadwiseCopyV2 }

func (threadwiseCopyV2Pattern) MatchAndRewrite(op *ir.Op, rw *ir.Rewriter) error {
	source := op.Operand(0)
	dest := op.Operand(1)
	attrs := ir.AttrsOf[ir.ThreadwiseCopyV2Attrs](op)

	sourceType := source.Type().(ir.MemRefType)
	operands := op.Operands()
	sourceCoords := operands[2 : 2+sourceType.Rank()]
	destCoords := operands[2+sourceType.Rank():]

	var typeToLoad ir.Type = ir.ScalarType{DType: sourceType.DType}
	if attrs.Length > 1 {
		typeToLoad = ir.VectorType{DType: sourceType.DType, Len: attrs.Length}
	}
	loaded := rw.InBoundsLoad(typeToLoad, source, sourceCoords...)
	rw.BufferStore(loaded, dest, destCoords, ir.BufferStoreAttrs{
		LeftOobDims:  attrs.LeftOobDims,
		RightOobDims: attrs.RightOobDims,
		StoreMethod:  attrs.StoreMethod,
	})
	rw.ReplaceOp(op)
	return nil
}
