// Package ir is the in-memory op-graph substrate the lowering passes
// operate on: a small, statically-shaped subset of a loop-and-memref IR.
//
// A Module holds a single top-level Block; a Block holds an ordered list of
// Ops; an Op has operands and results (Values), a typed attribute struct,
// and optionally nested regions (Blocks) for loop bodies. Values are
// either op results or block arguments (induction variables, loop-carried
// coordinates).
//
// Ops are built through a Builder, which tracks an insertion point, and
// rewritten through a Rewriter, which supports replacing an op by
// equivalent values while preserving uses. Each abstract op's attributes
// are an immutable Go struct validated when the op is created, so rules
// never look attributes up dynamically at rewrite time.
package ir

import (
	"github.com/gomlx/exceptions"
)

// Value is an SSA value: the result of an Op or an argument of a Block.
type Value struct {
	typ Type

	// def is the op producing this value; nil for block arguments.
	def    *Op
	resIdx int

	// owner is the block this value is an argument of; nil for op results.
	owner  *Block
	argIdx int
}

// Type returns the value's type.
func (v *Value) Type() Type { return v.typ }

// DefiningOp returns the op producing this value, or nil for a block
// argument.
func (v *Value) DefiningOp() *Op { return v.def }

// IsBlockArg reports whether the value is a block argument.
func (v *Value) IsBlockArg() bool { return v.owner != nil }

// Op is one operation in the graph.
type Op struct {
	kind     OpType
	operands []*Value
	results  []*Value
	attrs    any
	regions  []*Block
	parent   *Block
}

// Kind returns the op's OpType.
func (op *Op) Kind() OpType { return op.kind }

// NumOperands returns the number of operands.
func (op *Op) NumOperands() int { return len(op.operands) }

// Operand returns the i-th operand.
func (op *Op) Operand(i int) *Value { return op.operands[i] }

// Operands returns a copy of the operand list.
func (op *Op) Operands() []*Value { return append([]*Value(nil), op.operands...) }

// NumResults returns the number of results.
func (op *Op) NumResults() int { return len(op.results) }

// Result returns the i-th result.
func (op *Op) Result(i int) *Value { return op.results[i] }

// Results returns a copy of the result list.
func (op *Op) Results() []*Value { return append([]*Value(nil), op.results...) }

// Attrs returns the op's attribute struct, or nil. Use AttrsOf for the
// typed accessor.
func (op *Op) Attrs() any { return op.attrs }

// NumRegions returns the number of nested regions.
func (op *Op) NumRegions() int { return len(op.regions) }

// Region returns the i-th nested region's block.
func (op *Op) Region(i int) *Block { return op.regions[i] }

// Body returns the op's first region, the loop body for the loop ops.
func (op *Op) Body() *Block { return op.regions[0] }

// Parent returns the block containing this op, nil if detached.
func (op *Op) Parent() *Block { return op.parent }

// InductionVar returns the induction variable of an affine.for op.
func (op *Op) InductionVar() *Value {
	if op.kind != OpTypeAffineFor {
		exceptions.Panicf("InductionVar called on %s", op.kind)
	}
	return op.Body().Arg(0)
}

// LowerCoords returns the body arguments carrying the lower-space
// coordinates of the given domain of a transforming_for op.
func (op *Op) LowerCoords(domain int) []*Value {
	if op.kind != OpTypeTransformingFor {
		exceptions.Panicf("LowerCoords called on %s", op.kind)
	}
	attrs := AttrsOf[TransformingForAttrs](op)
	start := 0
	for d := 0; d < domain; d++ {
		start += attrs.domainRank(d)
	}
	rank := attrs.domainRank(domain)
	coords := make([]*Value, rank)
	for i := range coords {
		coords[i] = op.Body().Arg(start + i)
	}
	return coords
}

// Block is an ordered op list with arguments.
type Block struct {
	args   []*Value
	ops    []*Op
	parent *Op // enclosing op; nil for a module body
}

// NumArgs returns the number of block arguments.
func (b *Block) NumArgs() int { return len(b.args) }

// Arg returns the i-th block argument.
func (b *Block) Arg(i int) *Value { return b.args[i] }

// Args returns a copy of the argument list.
func (b *Block) Args() []*Value { return append([]*Value(nil), b.args...) }

// NumOps returns the number of ops in the block.
func (b *Block) NumOps() int { return len(b.ops) }

// Op returns the i-th op of the block.
func (b *Block) Op(i int) *Op { return b.ops[i] }

// Ops returns a copy of the op list.
func (b *Block) Ops() []*Op { return append([]*Op(nil), b.ops...) }

// Parent returns the op enclosing this block, nil for a module body.
func (b *Block) Parent() *Op { return b.parent }

// addArg appends a new block argument of the given type.
func (b *Block) addArg(t Type) *Value {
	v := &Value{typ: t, owner: b, argIdx: len(b.args)}
	b.args = append(b.args, v)
	return v
}

// Module is the root of an IR unit: a single top-level block.
type Module struct {
	body *Block
}

// NewModule returns an empty module.
func NewModule() *Module {
	return &Module{body: &Block{}}
}

// Body returns the module's top-level block.
func (m *Module) Body() *Block { return m.body }

// Walk visits every op of the module in pre-order (an op before the ops in
// its regions). Returning false from visit stops the walk.
func (m *Module) Walk(visit func(op *Op) bool) {
	walkBlock(m.body, visit)
}

func walkBlock(b *Block, visit func(op *Op) bool) bool {
	for _, op := range b.ops {
		if !visit(op) {
			return false
		}
		for _, region := range op.regions {
			if !walkBlock(region, visit) {
				return false
			}
		}
	}
	return true
}

// WalkPostOrder visits every op of the module in post-order (the ops in an
// op's regions before the op itself). Rewrites that expect operands to be
// in final form before their consumer use this order.
func (m *Module) WalkPostOrder(visit func(op *Op)) {
	walkBlockPostOrder(m.body, visit)
}

func walkBlockPostOrder(b *Block, visit func(op *Op)) {
	for _, op := range b.ops {
		for _, region := range op.regions {
			walkBlockPostOrder(region, visit)
		}
		visit(op)
	}
}

// AttrsOf returns op's attribute struct as type T. A mismatch is a bug in
// the calling rewrite rule, not an input condition, so it aborts.
func AttrsOf[T any](op *Op) T {
	attrs, ok := op.attrs.(T)
	if !ok {
		var want T
		exceptions.Panicf("op %s carries attributes of type %T, rule expected %T", op.kind, op.attrs, want)
	}
	return attrs
}
