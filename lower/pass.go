// Package lower rewrites abstract blockwise ops into explicit loop nests
// of threadwise primitives.
//
// The pass consumes four abstract op kinds, fill, blockwise_gemm,
// blockwise_gemm_v2 and threadwise_copy_v2, and replaces each with
// arithmetic, affine loops, memory ops and the native threadwise /
// instruction-matrix GEMM primitives. A conversion driver declares the
// four blockwise ops illegal, applies one rewrite rule per kind until no
// illegal op remains, and fails the whole pass if any rule cannot apply.
//
// Failures split into two kinds, neither recoverable:
//
//   - Precondition violations (misaligned offsets, non-dividing tile
//     ratios, malformed shapes) panic: they are tuning-parameter contract
//     bugs in the caller, never data-dependent conditions.
//   - Unsupported configurations (no matching instruction variant,
//     unimplemented repeat combinations) are reported as a pass failure;
//     the enclosing compilation must treat the unit as failed, and no
//     partially rewritten state is guaranteed.
package lower

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/waveir/waveir/ir"
	"github.com/waveir/waveir/xdlops"
)

// State tracks the conversion driver's progress.
type State int

const (
	// StateNotStarted means Run has not been called.
	StateNotStarted State = iota

	// StateRewriting means the driver is applying patterns.
	StateRewriting

	// StateConverged means no illegal op remains.
	StateConverged

	// StateFailed means a rule failed to apply or an illegal op survived;
	// the IR may be partially rewritten.
	StateFailed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "NotStarted"
	case StateRewriting:
		return "Rewriting"
	case StateConverged:
		return "Converged"
	case StateFailed:
		return "Failed"
	default:
		return "invalid"
	}
}

// Pattern is one rewrite rule: it matches a single op kind and replaces
// one op with its lowered form. A returned error means the rule's
// preconditions were not met and fails the whole pass.
type Pattern interface {
	OpType() ir.OpType
	MatchAndRewrite(op *ir.Op, rw *ir.Rewriter) error
}

// illegalOps are the abstract ops that must not survive the pass.
var illegalOps = map[ir.OpType]bool{
	ir.OpTypeFill:             true,
	ir.OpTypeBlockwiseGemm:    true,
	ir.OpTypeBlockwiseGemmV2:  true,
	ir.OpTypeThreadwiseCopyV2: true,
}

// legalDialects is the fixed set of dialects the lowered IR may contain.
var legalDialects = map[ir.Dialect]bool{
	ir.DialectArith:  true,
	ir.DialectAffine: true,
	ir.DialectMemRef: true,
	ir.DialectGPU:    true,
	ir.DialectWave:   true,
}

// maxIterations caps the fixed-point loop. Each rule eliminates the op it
// matched and introduces no illegal ops, so a second round only ever sees
// ops created outside the pass; running out of rounds means a rule is
// misbehaving.
const maxIterations = 8

// Pass drives the blockwise-to-threadwise conversion over one module. A
// Pass instance owns its module exclusively for the duration of Run; it is
// single-threaded and keeps no state besides the driver State.
type Pass struct {
	selector xdlops.Selector
	state    State
}

// NewPass returns a pass selecting instructions from the given capability
// table.
func NewPass(table *xdlops.CapabilityTable) *Pass {
	return &Pass{selector: xdlops.NewSelector(table), state: StateNotStarted}
}

// State returns the driver state.
func (p *Pass) State() State { return p.state }

// Run lowers every illegal op in the module to a fixed point. On error the
// pass is Failed and the module may be partially rewritten; the caller
// must not proceed to code generation.
func (p *Pass) Run(m *ir.Module) error {
	p.state = StateRewriting
	patterns := map[ir.OpType]Pattern{}
	for _, pat := range []Pattern{
		fillPattern{},
		blockwiseGemmPattern{},
		blockwiseGemmV2Pattern{selector: p.selector},
		threadwiseCopyV2Pattern{},
	} {
		patterns[pat.OpType()] = pat
	}

	for iter := 0; ; iter++ {
		if iter >= maxIterations {
			p.state = StateFailed
			return errors.Errorf("lowering did not converge after %d rounds", maxIterations)
		}
		// Bottom-up: an op's operands are already in final legal form when
		// the op itself is rewritten.
		var worklist []*ir.Op
		m.WalkPostOrder(func(op *ir.Op) {
			if illegalOps[op.Kind()] {
				worklist = append(worklist, op)
			}
		})
		if len(worklist) == 0 {
			break
		}
		klog.V(2).Infof("lowering round %d: %d illegal ops", iter, len(worklist))
		for _, op := range worklist {
			if op.Parent() == nil {
				continue // erased by an earlier rewrite this round
			}
			pat, ok := patterns[op.Kind()]
			if !ok {
				p.state = StateFailed
				return errors.Errorf("no lowering rule for illegal op %s", op.Kind())
			}
			rw := ir.NewRewriter(m)
			rw.SetInsertionPointBefore(op)
			if err := pat.MatchAndRewrite(op, rw); err != nil {
				p.state = StateFailed
				return errors.Wrapf(err, "lowering %s", op.Kind())
			}
		}
	}

	var offender *ir.Op
	m.Walk(func(op *ir.Op) bool {
		if illegalOps[op.Kind()] || !legalDialects[op.Kind().Dialect()] {
			offender = op
			return false
		}
		return true
	})
	if offender != nil {
		p.state = StateFailed
		return errors.Errorf("op %s survived lowering but is not legal", offender.Kind())
	}
	p.state = StateConverged
	return nil
}

// buildLoopNest emits one affine.for per bound (step 1) and calls body
// with the induction variables, leaving the insertion point inside the
// innermost loop.
func buildLoopNest(rw *ir.Rewriter, bounds []int64, body func(ivs []*ir.Value)) {
	ivs := make([]*ir.Value, len(bounds))
	for i, bound := range bounds {
		loop := rw.AffineFor(0, bound, 1)
		rw.SetInsertionPointToStart(loop.Body())
		ivs[i] = loop.InductionVar()
	}
	body(ivs)
}
