package codegen

import (
	"github.com/matouskozak/pascal-frontend/pkg/ast"
	"github.com/matouskozak/pascal-frontend/pkg/config"
	"github.com/matouskozak/pascal-frontend/pkg/ir"
)

type builtinFunc func(ctx *Context, node *ast.Node, args []*ast.Node)

// builtins are the procedures every program can call without declaring
// them. They take precedence over user declarations of the same name.
var builtins map[string]builtinFunc

func init() {
	builtins = map[string]builtinFunc{
		"write":   func(ctx *Context, node *ast.Node, args []*ast.Node) { ctx.codegenWrite(node, args, false) },
		"writeln": func(ctx *Context, node *ast.Node, args []*ast.Node) { ctx.codegenWrite(node, args, true) },
		"readln":  (*Context).codegenReadln,
		"dec":     func(ctx *Context, node *ast.Node, args []*ast.Node) { ctx.codegenStep(node, args, ir.OpSub) },
		"inc":     func(ctx *Context, node *ast.Node, args []*ast.Node) { ctx.codegenStep(node, args, ir.OpAdd) },
	}
}

func (ctx *Context) printf(format string, arg ir.Value, argType ir.Type) {
	args := []ir.Value{&ir.Global{Name: "printf"}, ctx.addString(format)}
	types := []ir.Type{ir.TypePtr}
	if arg != nil {
		args = append(args, arg)
		types = append(types, argType)
	}
	ctx.addInstr(&ir.Instruction{Op: ir.OpCall, Args: args, ArgTypes: types})
}

func (ctx *Context) checkArity(node *ast.Node, name string, args []*ast.Node, max int) bool {
	if len(args) > max && !ctx.cfg.IsFeatureEnabled(config.FeatMultiWrite) {
		ctx.semanticError(node.Tok, "'%s' takes at most %d argument(s), got %d", name, max, len(args))
		return false
	}
	return true
}

// codegenWrite prints integers with "%d" and string literals with "%s".
// Without the multi-write feature only one argument is accepted.
func (ctx *Context) codegenWrite(node *ast.Node, args []*ast.Node, newline bool) {
	name := "write"
	if newline {
		name = "writeln"
	}
	if !ctx.checkArity(node, name, args, 1) {
		return
	}
	for _, arg := range args {
		val, typ := ctx.codegenExpr(arg)
		if typ == ir.TypePtr {
			ctx.printf("%s", val, ir.TypePtr)
		} else {
			ctx.printf("%d", val, ir.TypeW)
		}
	}
	if newline {
		ctx.printf("\n", nil, ir.TypeNone)
	}
}

// codegenReadln reads one decimal integer into each target.
func (ctx *Context) codegenReadln(node *ast.Node, args []*ast.Node) {
	if !ctx.checkArity(node, "readln", args, 1) {
		return
	}
	for _, arg := range args {
		addr, ok := ctx.codegenLvalue(arg)
		if !ok {
			continue
		}
		ctx.addInstr(&ir.Instruction{
			Op:       ir.OpCall,
			Args:     []ir.Value{&ir.Global{Name: "scanf"}, ctx.addString("%d"), addr},
			ArgTypes: []ir.Type{ir.TypePtr, ir.TypePtr},
		})
	}
}

// codegenStep implements dec(x[, n]) and inc(x[, n]).
func (ctx *Context) codegenStep(node *ast.Node, args []*ast.Node, op ir.Op) {
	name := "dec"
	if op == ir.OpAdd {
		name = "inc"
	}
	if len(args) < 1 || len(args) > 2 {
		ctx.semanticError(node.Tok, "'%s' expects 1 or 2 arguments, got %d", name, len(args))
		return
	}
	var amount ir.Value = &ir.Const{Value: 1}
	if len(args) == 2 {
		amount = ctx.codegenValue(args[1])
	}
	addr, ok := ctx.codegenLvalue(args[0])
	if !ok {
		return
	}
	ctx.genStore(addr, ctx.genBinary(op, ir.TypeW, ctx.genLoad(addr), amount))
}
