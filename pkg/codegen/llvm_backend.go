package codegen

import (
	"bytes"
	"fmt"

	lir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/matouskozak/pascal-frontend/pkg/config"
	"github.com/matouskozak/pascal-frontend/pkg/ir"
)

// llvmBackend translates the IR into an LLVM module. Addresses are carried
// as i64 values, mirroring the QBE view of memory, and converted to
// pointers at loads, stores and C calls.
type llvmBackend struct {
	prog    *ir.Program
	module  *lir.Module
	globals map[string]*lir.Global
	funcs   map[string]*lir.Func
	memcpy  *lir.Func
	temps   map[string]value.Value
	blocks  map[string]*lir.Block
}

func NewLLVMBackend() Backend { return &llvmBackend{} }

func (b *llvmBackend) Name() string      { return "llvm" }
func (b *llvmBackend) sourceExt() string { return ".ll" }

func (b *llvmBackend) objectCommand(cfg *config.Config, input, output string) []string {
	return []string{"clang", "-c", "-x", "ir", "-o", output, input}
}

func (b *llvmBackend) GenerateIR(prog *ir.Program, cfg *config.Config) (string, error) {
	if err := b.build(prog); err != nil {
		return "", err
	}
	return b.module.String(), nil
}

// Generate returns the textual module; clang compiles it to an object.
func (b *llvmBackend) Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error) {
	text, err := b.GenerateIR(prog, cfg)
	if err != nil {
		return nil, err
	}
	return bytes.NewBufferString(text), nil
}

func (b *llvmBackend) build(prog *ir.Program) error {
	b.prog = prog
	b.module = lir.NewModule()
	b.globals = make(map[string]*lir.Global)
	b.funcs = make(map[string]*lir.Func)

	for _, g := range prog.Globals {
		words := (g.Size + 3) / 4
		def := b.module.NewGlobalDef(g.Name, constant.NewZeroInitializer(types.NewArray(uint64(words), types.I32)))
		def.Linkage = enum.LinkageInternal
		def.Align = lir.Align(g.Align)
		b.globals[g.Name] = def
	}
	for _, s := range prog.Strings {
		def := b.module.NewGlobalDef(s.Label, constant.NewCharArrayFromString(s.Value+"\x00"))
		def.Linkage = enum.LinkagePrivate
		def.Immutable = true
		b.globals[s.Label] = def
	}

	for _, ext := range prog.ExtrnFuncs {
		var params []*lir.Param
		for i, p := range ext.Params {
			params = append(params, lir.NewParam(fmt.Sprintf("p%d", i), b.externType(p)))
		}
		f := b.module.NewFunc(ext.Name, b.valueType(ext.ReturnType), params...)
		f.Sig.Variadic = ext.Variadic
		b.funcs[ext.Name] = f
	}
	b.memcpy = b.module.NewFunc("memcpy", types.I8Ptr,
		lir.NewParam("dst", types.I8Ptr), lir.NewParam("src", types.I8Ptr), lir.NewParam("n", types.I64))

	// Declare every function before lowering bodies so calls can refer
	// to functions defined later in the program.
	decls := make(map[*ir.Func]*lir.Func)
	for _, fn := range prog.Funcs {
		var params []*lir.Param
		for _, p := range fn.Params {
			params = append(params, lir.NewParam(p.Val.Key(), b.valueType(p.Typ)))
		}
		f := b.module.NewFunc(fn.Name, b.valueType(fn.ReturnType), params...)
		if !fn.Exported {
			f.Linkage = enum.LinkageInternal
		}
		b.funcs[fn.Name] = f
		decls[fn] = f
	}

	for _, fn := range prog.Funcs {
		if err := b.genFunc(fn, decls[fn]); err != nil {
			return fmt.Errorf("function $%s: %w", fn.Name, err)
		}
	}
	return nil
}

func (b *llvmBackend) valueType(t ir.Type) types.Type {
	switch t {
	case ir.TypeNone:
		return types.Void
	case ir.TypeB:
		return types.I8
	case ir.TypeW:
		return types.I32
	default:
		return types.I64
	}
}

func (b *llvmBackend) intType(t ir.Type) *types.IntType {
	switch t {
	case ir.TypeB:
		return types.I8
	case ir.TypeW:
		return types.I32
	default:
		return types.I64
	}
}

// externType is the C-side type of a parameter: addresses become i8*.
func (b *llvmBackend) externType(t ir.Type) types.Type {
	if t == ir.TypePtr {
		return types.I8Ptr
	}
	return b.valueType(t)
}

func (b *llvmBackend) genFunc(fn *ir.Func, f *lir.Func) error {
	b.temps = make(map[string]value.Value)
	b.blocks = make(map[string]*lir.Block)
	for i, p := range fn.Params {
		b.temps[p.Val.Key()] = f.Params[i]
	}
	for _, block := range fn.Blocks {
		b.blocks[block.Label.Name] = f.NewBlock(block.Label.Name)
	}
	for _, block := range fn.Blocks {
		for _, instr := range block.Instructions {
			if err := b.genInstr(b.blocks[block.Label.Name], fn, instr); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *llvmBackend) operand(block *lir.Block, v ir.Value, typ ir.Type) (value.Value, error) {
	switch val := v.(type) {
	case *ir.Const:
		return constant.NewInt(b.intType(typ), val.Value), nil
	case *ir.Global:
		if g, ok := b.globals[val.Name]; ok {
			return block.NewPtrToInt(g, types.I64), nil
		}
		if f, ok := b.funcs[val.Name]; ok {
			return f, nil
		}
		return nil, fmt.Errorf("unknown global $%s", val.Name)
	case *ir.Temporary:
		if t, ok := b.temps[val.Key()]; ok {
			return t, nil
		}
		return nil, fmt.Errorf("temporary %%%s used before its definition", val.Key())
	}
	return nil, fmt.Errorf("unsupported operand %v", v)
}

func (b *llvmBackend) operands(block *lir.Block, instr *ir.Instruction, typ ir.Type) ([]value.Value, error) {
	vals := make([]value.Value, len(instr.Args))
	for i, arg := range instr.Args {
		v, err := b.operand(block, arg, typ)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

func (b *llvmBackend) wordPtr(block *lir.Block, addr value.Value) value.Value {
	return block.NewIntToPtr(addr, types.NewPointer(types.I32))
}

var icmpPreds = map[ir.Op]enum.IPred{
	ir.OpCEq: enum.IPredEQ, ir.OpCNeq: enum.IPredNE, ir.OpCLt: enum.IPredSLT,
	ir.OpCGt: enum.IPredSGT, ir.OpCLe: enum.IPredSLE, ir.OpCGe: enum.IPredSGE,
}

func (b *llvmBackend) define(instr *ir.Instruction, v value.Value) {
	if t, ok := instr.Result.(*ir.Temporary); ok {
		b.temps[t.Key()] = v
	}
}

func (b *llvmBackend) genInstr(block *lir.Block, fn *ir.Func, instr *ir.Instruction) error {
	switch instr.Op {
	case ir.OpAlloc:
		size := instr.Args[0].(*ir.Const).Value
		slot := block.NewAlloca(types.NewArray(uint64((size+3)/4), types.I32))
		slot.Align = lir.Align(instr.Align)
		b.define(instr, block.NewPtrToInt(slot, types.I64))
		return nil

	case ir.OpLoad:
		addr, err := b.operand(block, instr.Args[0], ir.TypePtr)
		if err != nil {
			return err
		}
		b.define(instr, block.NewLoad(types.I32, b.wordPtr(block, addr)))
		return nil

	case ir.OpStore:
		val, err := b.operand(block, instr.Args[0], instr.Typ)
		if err != nil {
			return err
		}
		addr, err := b.operand(block, instr.Args[1], ir.TypePtr)
		if err != nil {
			return err
		}
		block.NewStore(val, b.wordPtr(block, addr))
		return nil

	case ir.OpBlit:
		args, err := b.operands(block, instr, ir.TypePtr)
		if err != nil {
			return err
		}
		src := block.NewIntToPtr(args[0], types.I8Ptr)
		dst := block.NewIntToPtr(args[1], types.I8Ptr)
		block.NewCall(b.memcpy, dst, src, args[2])
		return nil

	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpRem, ir.OpAnd, ir.OpOr:
		args, err := b.operands(block, instr, instr.Typ)
		if err != nil {
			return err
		}
		x, y := args[0], args[1]
		var res value.Value
		switch instr.Op {
		case ir.OpAdd:
			res = block.NewAdd(x, y)
		case ir.OpSub:
			res = block.NewSub(x, y)
		case ir.OpMul:
			res = block.NewMul(x, y)
		case ir.OpDiv:
			res = block.NewSDiv(x, y)
		case ir.OpRem:
			res = block.NewSRem(x, y)
		case ir.OpAnd:
			res = block.NewAnd(x, y)
		default:
			res = block.NewOr(x, y)
		}
		b.define(instr, res)
		return nil

	case ir.OpCEq, ir.OpCNeq, ir.OpCLt, ir.OpCGt, ir.OpCLe, ir.OpCGe:
		operandType := instr.OperandType
		if operandType == ir.TypeNone {
			operandType = instr.Typ
		}
		args, err := b.operands(block, instr, operandType)
		if err != nil {
			return err
		}
		cmp := block.NewICmp(icmpPreds[instr.Op], args[0], args[1])
		b.define(instr, block.NewZExt(cmp, types.I32))
		return nil

	case ir.OpExtSW:
		x, err := b.operand(block, instr.Args[0], ir.TypeW)
		if err != nil {
			return err
		}
		b.define(instr, block.NewSExt(x, types.I64))
		return nil

	case ir.OpJmp:
		block.NewBr(b.blocks[instr.Args[0].(*ir.Label).Name])
		return nil

	case ir.OpJnz:
		cond, err := b.operand(block, instr.Args[0], ir.TypeW)
		if err != nil {
			return err
		}
		nonZero := block.NewICmp(enum.IPredNE, cond, constant.NewInt(types.I32, 0))
		block.NewCondBr(nonZero, b.blocks[instr.Args[1].(*ir.Label).Name], b.blocks[instr.Args[2].(*ir.Label).Name])
		return nil

	case ir.OpRet:
		if len(instr.Args) == 0 || instr.Args[0] == nil {
			block.NewRet(nil)
			return nil
		}
		v, err := b.operand(block, instr.Args[0], fn.ReturnType)
		if err != nil {
			return err
		}
		block.NewRet(v)
		return nil

	case ir.OpCall:
		return b.genCall(block, instr)
	}
	return fmt.Errorf("unsupported instruction %s", instr.Op)
}

func (b *llvmBackend) genCall(block *lir.Block, instr *ir.Instruction) error {
	g, ok := instr.Args[0].(*ir.Global)
	if !ok {
		return fmt.Errorf("indirect calls are not supported")
	}
	callee, ok := b.funcs[g.Name]
	if !ok {
		return fmt.Errorf("call to unknown function $%s", g.Name)
	}
	isExtern := b.prog.FindExtrn(g.Name) != nil

	var args []value.Value
	for i, arg := range instr.Args[1:] {
		argType := ir.TypeW
		if i < len(instr.ArgTypes) {
			argType = instr.ArgTypes[i]
		}
		v, err := b.operand(block, arg, argType)
		if err != nil {
			return err
		}
		if isExtern && argType == ir.TypePtr {
			v = block.NewIntToPtr(v, types.I8Ptr)
		}
		args = append(args, v)
	}

	call := block.NewCall(callee, args...)
	if instr.Result != nil {
		b.define(instr, call)
	}
	return nil
}
