package lower

import (
	"github.com/waveir/waveir/ir"
)

// fillPattern lowers wave.fill into an affine loop nest storing the
// constant at every coordinate of the buffer.
type fillPattern struct{}

func (fillPattern) OpType() ir.OpType { return ir.OpTypeFill }

func (fillPattern) MatchAndRewrite(op *ir.Op, rw *ir.Rewriter) error {
	buffer := op.Operand(0)
	value := op.Operand(1)
	shape := buffer.Type().(ir.MemRefType).Shape

	buildLoopNest(rw, shape, func(ivs []*ir.Value) {
		rw.Store(value, buffer, ivs...)
	})
	rw.ReplaceOp(op)
	return nil
}
