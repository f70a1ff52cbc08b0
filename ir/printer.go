package ir

import (
	"fmt"
	"strings"
)

// printer assigns sequential names to values as they are defined, the way
// a textual IR dump numbers SSA results.
type printer struct {
	sb     strings.Builder
	names  map[*Value]string
	nextV  int
	nextA  int
	indent int
}

// String prints the module in a compact MLIR-flavored textual form. The
// output is meant for debugging and golden checks, not round-tripping.
func (m *Module) String() string {
	p := &printer{names: make(map[*Value]string)}
	p.line("module {")
	p.indent++
	p.printBlock(m.body)
	p.indent--
	p.line("}")
	return p.sb.String()
}

func (p *printer) line(format string, args ...any) {
	p.sb.WriteString(strings.Repeat("  ", p.indent))
	fmt.Fprintf(&p.sb, format, args...)
	p.sb.WriteByte('\n')
}

func (p *printer) nameOf(v *Value) string {
	if name, ok := p.names[v]; ok {
		return name
	}
	var name string
	if v.IsBlockArg() {
		name = fmt.Sprintf("%%arg%d", p.nextA)
		p.nextA++
	} else {
		name = fmt.Sprintf("%%%d", p.nextV)
		p.nextV++
	}
	p.names[v] = name
	return name
}

func (p *printer) printBlock(b *Block) {
	for _, op := range b.ops {
		p.printOp(op)
	}
}

func (p *printer) printOp(op *Op) {
	var sb strings.Builder
	if len(op.results) > 0 {
		names := make([]string, len(op.results))
		for i, res := range op.results {
			names[i] = p.nameOf(res)
		}
		sb.WriteString(strings.Join(names, ", "))
		sb.WriteString(" = ")
	}
	sb.WriteString(op.kind.Mnemonic())
	if len(op.operands) > 0 {
		sb.WriteByte('(')
		operands := make([]string, len(op.operands))
		for i, operand := range op.operands {
			operands[i] = p.nameOf(operand)
		}
		sb.WriteString(strings.Join(operands, ", "))
		sb.WriteByte(')')
	}
	if op.attrs != nil {
		fmt.Fprintf(&sb, " {%+v}", op.attrs)
	}
	if len(op.results) > 0 {
		types := make([]string, len(op.results))
		for i, res := range op.results {
			types[i] = res.Type().String()
		}
		fmt.Fprintf(&sb, " : %s", strings.Join(types, ", "))
	}
	if len(op.regions) == 0 {
		p.line("%s", sb.String())
		return
	}
	for ri, region := range op.regions {
		if ri == 0 {
			args := make([]string, len(region.args))
			for i, arg := range region.args {
				args[i] = p.nameOf(arg)
			}
			if len(args) > 0 {
				p.line("%s (%s) {", sb.String(), strings.Join(args, ", "))
			} else {
				p.line("%s {", sb.String())
			}
		} else {
			p.line("} {")
		}
		p.indent++
		p.printBlock(region)
		p.indent--
	}
	p.line("}")
}
