package ir

import (
	"github.com/gomlx/exceptions"
)

// Rewriter is a Builder that can also replace and erase ops. One Rewriter
// is handed to each rewrite-rule invocation; the rule owns it for the
// duration of that single rewrite.
type Rewriter struct {
	*Builder
	module *Module
}

// NewRewriter returns a rewriter over the module.
func NewRewriter(m *Module) *Rewriter {
	return &Rewriter{Builder: NewBuilder(m), module: m}
}

// Module returns the module being rewritten.
func (r *Rewriter) Module() *Module { return r.module }

// ReplaceOp replaces every use of op's results with the given values and
// erases op. The replacement count must match the result count; zero
// results and zero replacements erase an op with no users.
func (r *Rewriter) ReplaceOp(op *Op, with ...*Value) {
	if len(with) != len(op.results) {
		exceptions.Panicf("ReplaceOp(%s): %d replacement values for %d results",
			op.kind, len(with), len(op.results))
	}
	for i, result := range op.results {
		r.replaceAllUses(result, with[i])
	}
	r.EraseOp(op)
}

// EraseOp detaches op from its block. Erasing an op whose results still
// have uses is a rule bug and aborts.
func (r *Rewriter) EraseOp(op *Op) {
	for _, result := range op.results {
		if r.hasUses(result) {
			exceptions.Panicf("EraseOp(%s): result still in use", op.kind)
		}
	}
	blk := op.parent
	idx := opIndex(op)
	blk.ops = append(blk.ops[:idx], blk.ops[idx+1:]...)
	if r.block == blk && idx < r.pos {
		r.pos--
	}
	op.parent = nil
}

func (r *Rewriter) replaceAllUses(old, new *Value) {
	if old == new {
		return
	}
	r.module.Walk(func(op *Op) bool {
		for i, operand := range op.operands {
			if operand == old {
				op.operands[i] = new
			}
		}
		return true
	})
}

func (r *Rewriter) hasUses(v *Value) bool {
	used := false
	r.module.Walk(func(op *Op) bool {
		for _, operand := range op.operands {
			if operand == v {
				used = true
				return false
			}
		}
		return true
	})
	return used
}
