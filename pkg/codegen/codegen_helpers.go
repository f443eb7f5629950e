package codegen

import (
	"fmt"

	"github.com/matouskozak/pascal-frontend/pkg/ast"
	"github.com/matouskozak/pascal-frontend/pkg/config"
	"github.com/matouskozak/pascal-frontend/pkg/ir"
	"github.com/matouskozak/pascal-frontend/pkg/token"
	"github.com/matouskozak/pascal-frontend/pkg/util"
)

var zero = &ir.Const{Value: 0}

var binaryOps = map[token.Type]ir.Op{
	token.Plus: ir.OpAdd, token.Minus: ir.OpSub, token.Star: ir.OpMul,
	token.Div: ir.OpDiv, token.Mod: ir.OpRem, token.And: ir.OpAnd, token.Or: ir.OpOr,
	token.Eq: ir.OpCEq, token.Neq: ir.OpCNeq, token.Lt: ir.OpCLt, token.Lte: ir.OpCLe,
	token.Gt: ir.OpCGt, token.Gte: ir.OpCGe,
}

// codegenExpr lowers an expression and reports whether the value is an
// integer (TypeW) or the address of a string literal (TypePtr).
func (ctx *Context) codegenExpr(node *ast.Node) (ir.Value, ir.Type) {
	switch node.Type {
	case ast.Number:
		return &ir.Const{Value: node.Data.(ast.NumberNode).Value}, ir.TypeW
	case ast.String:
		return ctx.addString(node.Data.(ast.StringNode).Value), ir.TypePtr
	case ast.Ident:
		return ctx.codegenIdent(node), ir.TypeW
	case ast.Subscript:
		addr, elem, ok := ctx.codegenSubscriptAddr(node)
		if !ok {
			return zero, ir.TypeW
		}
		if elem.IsArray() {
			ctx.semanticError(node.Tok, "element of '%s' is an array, not an integer", node.Data.(ast.SubscriptNode).Name)
			return zero, ir.TypeW
		}
		return ctx.genLoad(addr), ir.TypeW
	case ast.BinaryOp:
		return ctx.codegenBinaryOp(node), ir.TypeW
	case ast.FuncCall:
		return ctx.codegenFuncCall(node, true), ir.TypeW
	default:
		ctx.errs = append(ctx.errs, util.NewError(util.StructuralError, node.Tok, "%s used as an expression", node.Type))
		return zero, ir.TypeW
	}
}

// codegenValue lowers an expression that must produce an integer.
func (ctx *Context) codegenValue(node *ast.Node) ir.Value {
	val, typ := ctx.codegenExpr(node)
	if typ != ir.TypeW {
		ctx.semanticError(node.Tok, "a string can only be passed to write or writeln")
		return zero
	}
	return val
}

func (ctx *Context) codegenIdent(node *ast.Node) ir.Value {
	name := node.Data.(ast.IdentNode).Name
	value, isConst, sym := ctx.resolve(name)
	switch {
	case isConst:
		return &ir.Const{Value: value}
	case sym != nil:
		if sym.Type.IsArray() {
			ctx.semanticError(node.Tok, "array '%s' cannot be used as an integer value", name)
			return zero
		}
		return ctx.genLoad(sym.Addr)
	case ctx.isCallable(name):
		return ctx.codegenFuncCall(ast.NewFuncCall(node.Tok, name, nil), true)
	}
	ctx.semanticError(node.Tok, "undeclared variable '%s'", name)
	return zero
}

// codegenSubscriptAddr computes base + (index - lower) * elemSize.
func (ctx *Context) codegenSubscriptAddr(node *ast.Node) (ir.Value, *ast.VarType, bool) {
	d := node.Data.(ast.SubscriptNode)
	_, isConst, sym := ctx.resolve(d.Name)
	switch {
	case isConst:
		ctx.semanticError(node.Tok, "constant '%s' cannot be indexed", d.Name)
		return nil, nil, false
	case sym == nil:
		ctx.semanticError(node.Tok, "undeclared array '%s'", d.Name)
		return nil, nil, false
	case !sym.Type.IsArray():
		ctx.semanticError(node.Tok, "'%s' is not an array", d.Name)
		return nil, nil, false
	}

	typ := sym.Type
	index := ctx.codegenValue(d.Index)
	if c, ok := index.(*ir.Const); ok && (c.Value < typ.Lower || c.Value > typ.Upper) {
		util.Warn(ctx.cfg, config.WarnArrayBounds, d.Index.Tok,
			"index %d is outside the bounds of '%s' (%d..%d)", c.Value, d.Name, typ.Lower, typ.Upper)
	}

	rel := ctx.genBinary(ir.OpSub, ir.TypeW, index, &ir.Const{Value: typ.Lower})
	wide := ctx.newTemp()
	ctx.addInstr(&ir.Instruction{Op: ir.OpExtSW, Typ: ir.TypeL, OperandType: ir.TypeW, Result: wide, Args: []ir.Value{rel}})
	offset := ctx.genBinary(ir.OpMul, ir.TypeL, wide, &ir.Const{Value: typ.Elem.Size()})
	addr := ctx.genBinary(ir.OpAdd, ir.TypePtr, sym.Addr, offset)
	return addr, typ.Elem, true
}

func (ctx *Context) codegenBinaryOp(node *ast.Node) ir.Value {
	d := node.Data.(ast.BinaryOpNode)
	op, ok := binaryOps[d.Op]
	if !ok {
		ctx.errs = append(ctx.errs, util.NewError(util.StructuralError, node.Tok, "unknown binary operator '%s'", d.Op))
		return zero
	}
	lhs := ctx.codegenValue(d.Left)
	rhs := ctx.codegenValue(d.Right)
	return ctx.genBinary(op, ir.TypeW, lhs, rhs)
}

// codegenLvalue returns the address of an integer storage location.
func (ctx *Context) codegenLvalue(node *ast.Node) (ir.Value, bool) {
	switch node.Type {
	case ast.Ident:
		name := node.Data.(ast.IdentNode).Name
		_, isConst, sym := ctx.resolve(name)
		switch {
		case isConst:
			ctx.semanticError(node.Tok, "cannot assign to constant '%s'", name)
		case sym == nil:
			ctx.semanticError(node.Tok, "undeclared variable '%s'", name)
		case sym.Type.IsArray():
			ctx.semanticError(node.Tok, "array '%s' cannot be used as an integer value", name)
		default:
			return sym.Addr, true
		}
		return nil, false
	case ast.Subscript:
		addr, elem, ok := ctx.codegenSubscriptAddr(node)
		if !ok {
			return nil, false
		}
		if elem.IsArray() {
			ctx.semanticError(node.Tok, "element of '%s' is an array, not an integer", node.Data.(ast.SubscriptNode).Name)
			return nil, false
		}
		return addr, true
	}
	ctx.semanticError(node.Tok, "expression is not assignable")
	return nil, false
}

// codegenArrayRef resolves an expression naming a whole array and checks
// that it has the same size as want.
func (ctx *Context) codegenArrayRef(node *ast.Node, want *ast.VarType, what string) (ir.Value, bool) {
	if node.Type != ast.Ident {
		ctx.semanticError(node.Tok, "%s must be an array variable of type %s", what, ast.FormatType(want))
		return nil, false
	}
	name := node.Data.(ast.IdentNode).Name
	_, _, sym := ctx.resolve(name)
	if sym == nil || !sym.Type.IsArray() {
		ctx.semanticError(node.Tok, "%s must be an array variable of type %s", what, ast.FormatType(want))
		return nil, false
	}
	if sym.Type.Size() != want.Size() {
		ctx.semanticError(node.Tok, "array '%s' has size %d, expected %d", name, sym.Type.Size(), want.Size())
		return nil, false
	}
	return sym.Addr, true
}

// codegenAssign evaluates the right-hand side before resolving the target.
// Assigning a whole array copies its storage.
func (ctx *Context) codegenAssign(node *ast.Node) {
	d := node.Data.(ast.AssignNode)
	if d.Lhs.Type == ast.Ident {
		name := d.Lhs.Data.(ast.IdentNode).Name
		if _, isConst, sym := ctx.resolve(name); !isConst && sym != nil && sym.Type.IsArray() {
			if src, ok := ctx.codegenArrayRef(d.Rhs, sym.Type, "the source of an array assignment"); ok {
				ctx.genBlit(src, sym.Addr, sym.Type.Size())
			}
			return
		}
	}

	value := ctx.codegenValue(d.Rhs)
	addr, ok := ctx.codegenLvalue(d.Lhs)
	if !ok {
		return
	}
	ctx.genStore(addr, value)
}

func (ctx *Context) codegenFuncCall(node *ast.Node, wantValue bool) ir.Value {
	d := node.Data.(ast.FuncCallNode)
	if builtin, ok := builtins[d.Name]; ok {
		if wantValue {
			ctx.semanticError(node.Tok, "'%s' does not return a value", d.Name)
			return zero
		}
		builtin(ctx, node, d.Args)
		return nil
	}

	info := ctx.funcs[d.Name]
	if info == nil {
		ctx.semanticError(node.Tok, "unknown function or procedure '%s'", d.Name)
		return zero
	}
	if !info.Called {
		info.Called = true
		info.CallTok = node.Tok
	}
	if len(d.Args) != len(info.Params) {
		ctx.semanticError(node.Tok, "'%s' expects %d argument(s), got %d", d.Name, len(info.Params), len(d.Args))
		return zero
	}
	if wantValue && info.ReturnType == nil {
		ctx.semanticError(node.Tok, "procedure '%s' does not return a value", d.Name)
		return zero
	}

	args := []ir.Value{&ir.Global{Name: info.Sym}}
	var argTypes []ir.Type
	for i, arg := range d.Args {
		if info.Params[i].IsArray() {
			addr, ok := ctx.codegenArrayRef(arg, info.Params[i], fmt.Sprintf("argument %d of '%s'", i+1, d.Name))
			if !ok {
				return zero
			}
			args = append(args, addr)
			argTypes = append(argTypes, ir.TypePtr)
			continue
		}
		args = append(args, ctx.codegenValue(arg))
		argTypes = append(argTypes, ir.TypeW)
	}

	call := &ir.Instruction{Op: ir.OpCall, Args: args, ArgTypes: argTypes}
	if info.ReturnType == nil {
		ctx.addInstr(call)
		return zero
	}
	res := ctx.newTemp()
	call.Typ, call.Result = ir.TypeW, res
	ctx.addInstr(call)
	return res
}
