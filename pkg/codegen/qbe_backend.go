package codegen

import (
	"fmt"
	"strings"

	"github.com/matouskozak/pascal-frontend/pkg/config"
	"github.com/matouskozak/pascal-frontend/pkg/ir"
)

type qbeBackend struct {
	out       *strings.Builder
	prog      *ir.Program
	currentFn *ir.Func
}

func NewQBEBackend() Backend { return &qbeBackend{} }

func (b *qbeBackend) Name() string      { return "qbe" }
func (b *qbeBackend) sourceExt() string { return ".s" }

func (b *qbeBackend) objectCommand(cfg *config.Config, input, output string) []string {
	return []string{"cc", "-c", "-x", "assembler", "-o", output, input}
}

// GenerateIR renders the program as QBE intermediate language.
func (b *qbeBackend) GenerateIR(prog *ir.Program, cfg *config.Config) (string, error) {
	var sb strings.Builder
	b.out = &sb
	b.prog = prog

	b.gen()
	return sb.String(), nil
}

func (b *qbeBackend) gen() {
	for _, g := range b.prog.Globals {
		fmt.Fprintf(b.out, "data $%s = align %d { z %d }\n", g.Name, g.Align, g.Size)
	}

	if len(b.prog.Strings) > 0 {
		b.out.WriteString("\n")
		for _, s := range b.prog.Strings {
			fmt.Fprintf(b.out, "data $%s = { b %s, b 0 }\n", s.Label, quoteQBE(s.Value))
		}
	}

	for _, fn := range b.prog.Funcs {
		b.genFunc(fn)
	}
}

// quoteQBE quotes a string for a QBE data definition. QBE hands string
// contents to the assembler unchanged, so everything but printable ASCII
// is written as an octal escape.
func quoteQBE(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case c >= 0x20 && c < 0x7f:
			sb.WriteByte(c)
		default:
			fmt.Fprintf(&sb, "\\%03o", c)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

func (b *qbeBackend) genFunc(fn *ir.Func) {
	b.currentFn = fn
	b.out.WriteString("\n")
	if fn.Exported {
		b.out.WriteString("export ")
	}
	b.out.WriteString("function")
	if fn.ReturnType != ir.TypeNone {
		b.out.WriteString(" " + b.formatType(fn.ReturnType))
	}
	fmt.Fprintf(b.out, " $%s(", fn.Name)
	for i, p := range fn.Params {
		if i > 0 {
			b.out.WriteString(", ")
		}
		fmt.Fprintf(b.out, "%s %s", b.formatType(p.Typ), b.formatValue(p.Val))
	}
	b.out.WriteString(") {\n")

	for _, block := range fn.Blocks {
		b.genBlock(block)
	}
	b.out.WriteString("}\n")
}

func (b *qbeBackend) genBlock(block *ir.BasicBlock) {
	fmt.Fprintf(b.out, "@%s\n", block.Label.Name)
	for _, instr := range block.Instructions {
		b.genInstr(instr)
	}
}

func (b *qbeBackend) genInstr(instr *ir.Instruction) {
	b.out.WriteString("\t")
	if instr.Op == ir.OpCall {
		b.genCall(instr)
		return
	}

	if instr.Result != nil {
		resultType := instr.Typ
		if instr.Op.IsComparison() {
			resultType = ir.TypeW
		}
		fmt.Fprintf(b.out, "%s =%s ", b.formatValue(instr.Result), b.formatType(resultType))
	}
	b.out.WriteString(b.formatOp(instr))

	for i, arg := range instr.Args {
		if i > 0 {
			b.out.WriteString(",")
		}
		if arg != nil {
			b.out.WriteString(" " + b.formatValue(arg))
		}
	}
	b.out.WriteString("\n")
}

// genCall writes a call. Arguments of a variadic C function that follow its
// fixed parameters are preceded by the '...' marker.
func (b *qbeBackend) genCall(instr *ir.Instruction) {
	callee := instr.Args[0]
	fixed := -1
	if g, ok := callee.(*ir.Global); ok {
		if ext := b.prog.FindExtrn(g.Name); ext != nil && ext.Variadic {
			fixed = len(ext.Params)
		}
	}

	if instr.Result != nil {
		fmt.Fprintf(b.out, "%s =%s ", b.formatValue(instr.Result), b.formatType(instr.Typ))
	}
	fmt.Fprintf(b.out, "call %s(", b.formatValue(callee))

	var args []string
	for i, arg := range instr.Args[1:] {
		if i == fixed {
			args = append(args, "...")
		}
		argType := ir.TypeW
		if i < len(instr.ArgTypes) {
			argType = instr.ArgTypes[i]
		}
		args = append(args, b.formatType(argType)+" "+b.formatValue(arg))
	}
	b.out.WriteString(strings.Join(args, ", "))
	b.out.WriteString(")\n")
}

func (b *qbeBackend) formatValue(v ir.Value) string {
	switch val := v.(type) {
	case *ir.Const:
		return fmt.Sprintf("%d", val.Value)
	case *ir.Global:
		return "$" + val.Name
	case *ir.Temporary:
		return "%" + val.Key()
	case *ir.Label:
		return "@" + val.Name
	default:
		return ""
	}
}

func (b *qbeBackend) formatType(t ir.Type) string {
	switch t {
	case ir.TypeB:
		return "b"
	case ir.TypeW:
		return "w"
	case ir.TypeL:
		return "l"
	case ir.TypePtr:
		if b.prog != nil && b.prog.WordSize == 4 {
			return "w"
		}
		return "l"
	default:
		return ""
	}
}

func (b *qbeBackend) formatOp(instr *ir.Instruction) string {
	argType := instr.OperandType
	if argType == ir.TypeNone {
		argType = instr.Typ
	}
	argTypeStr := b.formatType(argType)

	switch instr.Op {
	case ir.OpAlloc:
		switch {
		case instr.Align <= 4:
			return "alloc4"
		case instr.Align <= 8:
			return "alloc8"
		default:
			return "alloc16"
		}
	case ir.OpLoad:
		return "load" + b.formatType(instr.Typ)
	case ir.OpStore:
		return "store" + b.formatType(instr.Typ)
	case ir.OpExtSW:
		return "extsw"
	case ir.OpCEq, ir.OpCNeq, ir.OpCLt, ir.OpCGt, ir.OpCLe, ir.OpCGe:
		return instr.Op.String() + argTypeStr
	default:
		return instr.Op.String()
	}
}
