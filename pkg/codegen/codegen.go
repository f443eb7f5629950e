package codegen

import (
	"errors"
	"fmt"
	"sort"

	"github.com/matouskozak/pascal-frontend/pkg/ast"
	"github.com/matouskozak/pascal-frontend/pkg/config"
	"github.com/matouskozak/pascal-frontend/pkg/ir"
	"github.com/matouskozak/pascal-frontend/pkg/token"
	"github.com/matouskozak/pascal-frontend/pkg/util"
)

const (
	funcPrefix   = "pas_"
	globalPrefix = "pasg_"
)

type symbolKind int

const (
	symGlobal symbolKind = iota
	symParam
	symLocal
	symReturnSlot
)

// symbol is a variable with storage. Addr holds the address of its slot:
// an *ir.Global for globals and the result of an alloc otherwise.
type symbol struct {
	Name string
	Kind symbolKind
	Type *ast.VarType
	Addr ir.Value
	Node *ast.Node
	Used bool
}

type funcInfo struct {
	Name       string
	Sym        string
	Node       *ast.Node
	Params     []*ast.VarType
	ReturnType *ast.VarType
	Defined    bool
	Called     bool
	CallTok    token.Token
}

// Context is the state of one lowering pass. The constant and global
// tables live for the whole program; locals is replaced on function entry
// and the caller's table is kept on scopeStack until the function ends.
type Context struct {
	prog          *ir.Program
	cfg           *config.Config
	consts        map[string]int64
	globals       map[string]*symbol
	locals        map[string]*symbol
	scopeStack    []map[string]*symbol
	funcs         map[string]*funcInfo
	loopExits     []*ir.Label
	returnTargets []*ir.Label
	currentFunc   *ir.Func
	currentBlock  *ir.BasicBlock
	strings       map[string]*ir.Global
	tempCount     int
	labelCount    int
	errs          []error
}

func NewContext(cfg *config.Config) *Context {
	return &Context{
		prog:    &ir.Program{WordSize: cfg.WordSize},
		cfg:     cfg,
		consts:  make(map[string]int64),
		globals: make(map[string]*symbol),
		locals:  make(map[string]*symbol),
		funcs:   make(map[string]*funcInfo),
		strings: make(map[string]*ir.Global),
	}
}

// GenerateIR lowers a Program node. Semantic errors do not stop the walk,
// so that every one of them is reported, but any error means no program
// is returned.
func (ctx *Context) GenerateIR(root *ast.Node) (*ir.Program, error) {
	if root == nil || root.Type != ast.Program {
		return nil, util.NewError(util.StructuralError, token.Token{}, "lowering expects a program node")
	}
	d := root.Data.(ast.ProgramNode)

	ctx.prog.ExtrnFuncs = []*ir.Extrn{
		{Name: "printf", Params: []ir.Type{ir.TypePtr}, ReturnType: ir.TypeW, Variadic: true},
		{Name: "scanf", Params: []ir.Type{ir.TypePtr}, ReturnType: ir.TypeW, Variadic: true},
	}

	for _, decl := range d.Decls {
		ctx.codegenGlobalDecl(decl)
	}
	for _, fn := range d.Funcs {
		ctx.codegenFuncDecl(fn)
	}
	ctx.codegenMain(d.Main)
	ctx.checkForwardDecls()

	if len(ctx.errs) > 0 {
		return nil, errors.Join(ctx.errs...)
	}
	if err := ir.Verify(ctx.prog); err != nil {
		var errs []error
		for _, e := range util.Flatten(err) {
			errs = append(errs, util.NewError(util.StructuralError, token.Token{}, "%v", e))
		}
		return nil, errors.Join(errs...)
	}
	return ctx.prog, nil
}

func (ctx *Context) semanticError(tok token.Token, format string, args ...interface{}) {
	ctx.errs = append(ctx.errs, util.NewError(util.SemanticError, tok, format, args...))
}

// Scope handling

func (ctx *Context) pushScope() {
	ctx.scopeStack = append(ctx.scopeStack, ctx.locals)
	ctx.locals = make(map[string]*symbol)
}

func (ctx *Context) popScope() {
	n := len(ctx.scopeStack) - 1
	ctx.locals = ctx.scopeStack[n]
	ctx.scopeStack = ctx.scopeStack[:n]
}

// resolve looks a name up in the constant, local and global tables, in
// that order.
func (ctx *Context) resolve(name string) (value int64, isConst bool, sym *symbol) {
	if v, ok := ctx.consts[name]; ok {
		return v, true, nil
	}
	if s, ok := ctx.locals[name]; ok {
		s.Used = true
		return 0, false, s
	}
	if s, ok := ctx.globals[name]; ok {
		s.Used = true
		return 0, false, s
	}
	return 0, false, nil
}

func (ctx *Context) isCallable(name string) bool {
	if _, ok := builtins[name]; ok {
		return true
	}
	_, ok := ctx.funcs[name]
	return ok
}

func (ctx *Context) declareLocal(node *ast.Node, name string, kind symbolKind, typ *ast.VarType, addr ir.Value) {
	if prev, ok := ctx.locals[name]; ok {
		ctx.semanticError(node.Tok, "'%s' is already declared in this function (line %d)", name, prev.Node.Tok.Line)
		return
	}
	if _, ok := ctx.consts[name]; ok {
		util.Warn(ctx.cfg, config.WarnShadow, node.Tok, "'%s' is hidden by the constant of the same name", name)
	} else if _, ok := ctx.globals[name]; ok {
		util.Warn(ctx.cfg, config.WarnShadow, node.Tok, "'%s' shadows a global variable", name)
	}
	ctx.locals[name] = &symbol{Name: name, Kind: kind, Type: typ, Addr: addr, Node: node}
}

// IR building helpers

func (ctx *Context) newTemp() *ir.Temporary {
	t := &ir.Temporary{ID: ctx.tempCount}
	ctx.tempCount++
	return t
}

func (ctx *Context) newNamedTemp(name string) *ir.Temporary {
	t := ctx.newTemp()
	t.Name = name
	return t
}

func (ctx *Context) newLabel(hint string) *ir.Label {
	l := &ir.Label{Name: fmt.Sprintf("%s.%d", hint, ctx.labelCount)}
	ctx.labelCount++
	return l
}

func (ctx *Context) startBlock(label *ir.Label) {
	block := &ir.BasicBlock{Label: label}
	ctx.currentFunc.Blocks = append(ctx.currentFunc.Blocks, block)
	ctx.currentBlock = block
}

func (ctx *Context) addInstr(instr *ir.Instruction) {
	if ctx.currentBlock == nil {
		ctx.startBlock(ctx.newLabel("dead"))
	}
	ctx.currentBlock.Instructions = append(ctx.currentBlock.Instructions, instr)
}

// jump ends the current block with an unconditional branch.
func (ctx *Context) jump(target *ir.Label) {
	ctx.addInstr(&ir.Instruction{Op: ir.OpJmp, Args: []ir.Value{target}})
	ctx.currentBlock = nil
}

func (ctx *Context) branch(cond ir.Value, ifTrue, ifFalse *ir.Label) {
	ctx.addInstr(&ir.Instruction{Op: ir.OpJnz, Args: []ir.Value{cond, ifTrue, ifFalse}})
	ctx.currentBlock = nil
}

func (ctx *Context) addString(value string) *ir.Global {
	if g, ok := ctx.strings[value]; ok {
		return g
	}
	g := &ir.Global{Name: fmt.Sprintf("str%d", len(ctx.prog.Strings))}
	ctx.prog.Strings = append(ctx.prog.Strings, &ir.StringLit{Label: g.Name, Value: value})
	ctx.strings[value] = g
	return g
}

func (ctx *Context) allocSlot(name string, typ *ast.VarType) *ir.Temporary {
	slot := ctx.newNamedTemp(name)
	ctx.addInstr(&ir.Instruction{
		Op: ir.OpAlloc, Typ: ir.TypePtr, Result: slot,
		Args: []ir.Value{&ir.Const{Value: typ.Size()}}, Align: 4,
	})
	return slot
}

func (ctx *Context) genLoad(addr ir.Value) ir.Value {
	res := ctx.newTemp()
	ctx.addInstr(&ir.Instruction{Op: ir.OpLoad, Typ: ir.TypeW, Result: res, Args: []ir.Value{addr}})
	return res
}

func (ctx *Context) genStore(addr, value ir.Value) {
	ctx.addInstr(&ir.Instruction{Op: ir.OpStore, Typ: ir.TypeW, Args: []ir.Value{value, addr}})
}

func (ctx *Context) genBlit(src, dst ir.Value, size int64) {
	ctx.addInstr(&ir.Instruction{Op: ir.OpBlit, Args: []ir.Value{src, dst, &ir.Const{Value: size}}})
}

func (ctx *Context) genBinary(op ir.Op, typ ir.Type, lhs, rhs ir.Value) ir.Value {
	res := ctx.newTemp()
	ctx.addInstr(&ir.Instruction{Op: op, Typ: typ, OperandType: typ, Result: res, Args: []ir.Value{lhs, rhs}})
	return res
}

// Declarations

func (ctx *Context) codegenGlobalDecl(node *ast.Node) {
	switch node.Type {
	case ast.ConstDecl:
		d := node.Data.(ast.ConstDeclNode)
		if _, ok := ctx.consts[d.Name]; ok {
			util.Warn(ctx.cfg, config.WarnRedefinition, node.Tok, "constant '%s' redefined", d.Name)
		} else if _, ok := ctx.globals[d.Name]; ok {
			util.Warn(ctx.cfg, config.WarnRedefinition, node.Tok, "constant '%s' hides the global variable of the same name", d.Name)
		}
		ctx.consts[d.Name] = d.Value

	case ast.VarDecl:
		d := node.Data.(ast.VarDeclNode)
		if prev, ok := ctx.globals[d.Name]; ok {
			ctx.semanticError(node.Tok, "global variable '%s' is already declared (line %d)", d.Name, prev.Node.Tok.Line)
			return
		}
		if _, ok := ctx.consts[d.Name]; ok {
			util.Warn(ctx.cfg, config.WarnRedefinition, node.Tok, "global variable '%s' is hidden by the constant of the same name", d.Name)
		}
		g := &ir.Global{Name: globalPrefix + d.Name}
		ctx.prog.Globals = append(ctx.prog.Globals, &ir.Data{Name: g.Name, Align: 4, Size: d.Type.Size()})
		ctx.globals[d.Name] = &symbol{Name: d.Name, Kind: symGlobal, Type: d.Type, Addr: g, Node: node}

	default:
		ctx.semanticError(node.Tok, "unexpected %s in the global declarations", node.Type)
	}
}

func sameSignature(info *funcInfo, d ast.FuncDeclNode) bool {
	if len(info.Params) != len(d.Params) || (info.ReturnType == nil) != (d.ReturnType == nil) {
		return false
	}
	for i, p := range d.Params {
		pt := p.Data.(ast.VarDeclNode).Type
		if ast.FormatType(pt) != ast.FormatType(info.Params[i]) {
			return false
		}
	}
	return true
}

// codegenFuncDecl registers the prototype of a function and, unless it is
// a forward declaration, lowers its body.
func (ctx *Context) codegenFuncDecl(node *ast.Node) {
	d := node.Data.(ast.FuncDeclNode)
	if d.ReturnType.IsArray() {
		ctx.semanticError(node.Tok, "function '%s' must return integer", d.Name)
		return
	}
	if _, ok := builtins[d.Name]; ok {
		util.Warn(ctx.cfg, config.WarnShadow, node.Tok, "'%s' is hidden by the built-in of the same name", d.Name)
	}

	info, seen := ctx.funcs[d.Name]
	if !seen {
		info = &funcInfo{Name: d.Name, Sym: funcPrefix + d.Name, Node: node, ReturnType: d.ReturnType}
		for _, p := range d.Params {
			info.Params = append(info.Params, p.Data.(ast.VarDeclNode).Type)
		}
		ctx.funcs[d.Name] = info
	} else {
		if !sameSignature(info, d) {
			ctx.semanticError(node.Tok, "conflicting declaration of '%s' (first declared at line %d)", d.Name, info.Node.Tok.Line)
			return
		}
		if info.Defined && d.Body != nil {
			ctx.semanticError(node.Tok, "redefinition of '%s'", d.Name)
			return
		}
	}
	if d.Body == nil {
		return
	}
	info.Defined = true

	fn := &ir.Func{Name: info.Sym}
	if d.ReturnType != nil {
		fn.ReturnType = ir.TypeW
	}
	ctx.prog.Funcs = append(ctx.prog.Funcs, fn)
	ctx.currentFunc, ctx.tempCount = fn, 0

	ctx.pushScope()
	savedLoops := ctx.loopExits
	ctx.loopExits = nil
	returnL := ctx.newLabel("return")
	ctx.returnTargets = append(ctx.returnTargets, returnL)
	ctx.startBlock(&ir.Label{Name: "start"})

	for _, p := range d.Params {
		pd := p.Data.(ast.VarDeclNode)
		param := &ir.Param{Name: pd.Name, Typ: ir.TypeW, Val: &ir.Temporary{Name: "arg_" + pd.Name, ID: -1}}
		if pd.Type.IsArray() {
			param.Typ = ir.TypePtr
		}
		fn.Params = append(fn.Params, param)

		slot := ctx.allocSlot(pd.Name, pd.Type)
		if pd.Type.IsArray() {
			ctx.genBlit(param.Val, slot, pd.Type.Size())
		} else {
			ctx.genStore(slot, param.Val)
		}
		ctx.declareLocal(p, pd.Name, symParam, pd.Type, slot)
	}
	for _, l := range d.Locals {
		ld := l.Data.(ast.VarDeclNode)
		ctx.declareLocal(l, ld.Name, symLocal, ld.Type, ctx.allocSlot(ld.Name, ld.Type))
	}
	var retSlot ir.Value
	if d.ReturnType != nil {
		retSlot = ctx.allocSlot(d.Name, ast.IntegerType)
		ctx.genStore(retSlot, &ir.Const{Value: 0})
		ctx.declareLocal(node, d.Name, symReturnSlot, ast.IntegerType, retSlot)
	}

	if !ctx.codegenStmt(d.Body) {
		ctx.jump(returnL)
	}
	ctx.startBlock(returnL)
	if retSlot != nil {
		ctx.addInstr(&ir.Instruction{Op: ir.OpRet, Args: []ir.Value{ctx.genLoad(retSlot)}})
	} else {
		ctx.addInstr(&ir.Instruction{Op: ir.OpRet})
	}

	ctx.warnUnused()
	ctx.returnTargets = ctx.returnTargets[:len(ctx.returnTargets)-1]
	ctx.loopExits = savedLoops
	ctx.popScope()
	ctx.currentFunc, ctx.currentBlock = nil, nil
}

func (ctx *Context) codegenMain(body *ast.Node) {
	fn := &ir.Func{Name: "main", ReturnType: ir.TypeW, Exported: true}
	ctx.prog.Funcs = append(ctx.prog.Funcs, fn)
	ctx.currentFunc, ctx.tempCount = fn, 0

	returnL := ctx.newLabel("return")
	ctx.returnTargets = append(ctx.returnTargets, returnL)
	ctx.startBlock(&ir.Label{Name: "start"})
	if !ctx.codegenStmt(body) {
		ctx.jump(returnL)
	}
	ctx.startBlock(returnL)
	ctx.addInstr(&ir.Instruction{Op: ir.OpRet, Args: []ir.Value{&ir.Const{Value: 0}}})
	ctx.returnTargets = ctx.returnTargets[:len(ctx.returnTargets)-1]
	ctx.currentFunc, ctx.currentBlock = nil, nil
}

func (ctx *Context) warnUnused() {
	names := make([]string, 0, len(ctx.locals))
	for name, sym := range ctx.locals {
		if sym.Kind == symLocal && !sym.Used {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		util.Warn(ctx.cfg, config.WarnUnused, ctx.locals[name].Node.Tok, "local variable '%s' is never used", name)
	}
}

// checkForwardDecls reports forward declarations that never received a
// body. Calling one is an error since the program could not be linked.
func (ctx *Context) checkForwardDecls() {
	names := make([]string, 0, len(ctx.funcs))
	for name := range ctx.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		info := ctx.funcs[name]
		switch {
		case info.Defined:
		case info.Called:
			ctx.semanticError(info.CallTok, "'%s' is declared forward but never defined", name)
		default:
			util.Warn(ctx.cfg, config.WarnForwardUndefined, info.Node.Tok, "'%s' is declared forward but never defined", name)
		}
	}
}

// Statements

func (ctx *Context) codegenStmt(node *ast.Node) (terminates bool) {
	if node == nil {
		return false
	}
	switch node.Type {
	case ast.Block:
		for _, stmt := range node.Data.(ast.BlockNode).Stmts {
			if terminates {
				util.Warn(ctx.cfg, config.WarnUnreachableCode, stmt.Tok, "unreachable code")
				break
			}
			terminates = ctx.codegenStmt(stmt)
		}
		return terminates
	case ast.If:
		return ctx.codegenIf(node)
	case ast.For:
		return ctx.codegenFor(node)
	case ast.While:
		return ctx.codegenWhile(node)
	case ast.Break:
		if len(ctx.loopExits) == 0 {
			ctx.semanticError(node.Tok, "'break' is not inside a loop")
			return false
		}
		ctx.jump(ctx.loopExits[len(ctx.loopExits)-1])
		return true
	case ast.Exit:
		ctx.jump(ctx.returnTargets[len(ctx.returnTargets)-1])
		return true
	case ast.Assign:
		ctx.codegenAssign(node)
		return false
	case ast.FuncCall:
		ctx.codegenFuncCall(node, false)
		return false
	case ast.Ident:
		name := node.Data.(ast.IdentNode).Name
		if _, isConst, sym := ctx.resolve(name); !isConst && sym == nil && ctx.isCallable(name) {
			ctx.codegenFuncCall(ast.NewFuncCall(node.Tok, name, nil), false)
			return false
		}
		ctx.codegenExpr(node)
		return false
	default:
		ctx.codegenExpr(node)
		return false
	}
}

func (ctx *Context) codegenIf(node *ast.Node) bool {
	d := node.Data.(ast.IfNode)
	thenL, elseL, joinL := ctx.newLabel("if_then"), ctx.newLabel("if_else"), ctx.newLabel("if_join")

	ctx.branch(ctx.codegenValue(d.Cond), thenL, elseL)

	ctx.startBlock(thenL)
	thenTerminates := ctx.codegenStmt(d.Then)
	if !thenTerminates {
		ctx.jump(joinL)
	}

	ctx.startBlock(elseL)
	elseTerminates := ctx.codegenStmt(d.Else)
	if !elseTerminates {
		ctx.jump(joinL)
	}

	if thenTerminates && elseTerminates {
		return true
	}
	ctx.startBlock(joinL)
	return false
}

// codegenFor evaluates both bounds once, then tests the control variable
// against the end value before every iteration and steps it by one.
func (ctx *Context) codegenFor(node *ast.Node) bool {
	d := node.Data.(ast.ForNode)
	_, isConst, sym := ctx.resolve(d.Var)
	switch {
	case isConst:
		ctx.semanticError(node.Tok, "constant '%s' cannot be used as a loop variable", d.Var)
		return false
	case sym == nil:
		ctx.semanticError(node.Tok, "undeclared variable '%s' in for statement", d.Var)
		return false
	case sym.Type.IsArray():
		ctx.semanticError(node.Tok, "loop variable '%s' must be an integer", d.Var)
		return false
	}

	start := ctx.codegenValue(d.Start)
	end := ctx.codegenValue(d.End)
	ctx.genStore(sym.Addr, start)

	condL, bodyL, afterL := ctx.newLabel("for_cond"), ctx.newLabel("for_body"), ctx.newLabel("for_after")
	cmp, step := ir.OpCLe, ir.OpAdd
	if d.Downto {
		cmp, step = ir.OpCGe, ir.OpSub
	}

	ctx.jump(condL)
	ctx.startBlock(condL)
	ctx.branch(ctx.genBinary(cmp, ir.TypeW, ctx.genLoad(sym.Addr), end), bodyL, afterL)

	ctx.startBlock(bodyL)
	ctx.loopExits = append(ctx.loopExits, afterL)
	bodyTerminates := ctx.codegenStmt(d.Body)
	ctx.loopExits = ctx.loopExits[:len(ctx.loopExits)-1]
	if !bodyTerminates {
		next := ctx.genBinary(step, ir.TypeW, ctx.genLoad(sym.Addr), &ir.Const{Value: 1})
		ctx.genStore(sym.Addr, next)
		ctx.jump(condL)
	}

	ctx.startBlock(afterL)
	return false
}

func (ctx *Context) codegenWhile(node *ast.Node) bool {
	d := node.Data.(ast.WhileNode)
	condL, bodyL, afterL := ctx.newLabel("while_cond"), ctx.newLabel("while_body"), ctx.newLabel("while_after")

	ctx.jump(condL)
	ctx.startBlock(condL)
	ctx.branch(ctx.codegenValue(d.Cond), bodyL, afterL)

	ctx.startBlock(bodyL)
	ctx.loopExits = append(ctx.loopExits, afterL)
	bodyTerminates := ctx.codegenStmt(d.Body)
	ctx.loopExits = ctx.loopExits[:len(ctx.loopExits)-1]
	if !bodyTerminates {
		ctx.jump(condL)
	}

	ctx.startBlock(afterL)
	return false
}
