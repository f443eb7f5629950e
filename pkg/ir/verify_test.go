package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func block(name string, instrs ...*Instruction) *BasicBlock {
	return &BasicBlock{Label: &Label{Name: name}, Instructions: instrs}
}

func retW(v Value) *Instruction { return &Instruction{Op: OpRet, Args: []Value{v}} }

// validProgram returns main calling printf and a helper that loops once.
func validProgram() *Program {
	x := &Temporary{Name: "x", ID: -1}
	t1 := &Temporary{ID: 1}
	t2 := &Temporary{ID: 2}
	helper := &Func{
		Name:       "pas_inc",
		Params:     []*Param{{Name: "x", Typ: TypeW, Val: x}},
		ReturnType: TypeW,
		Blocks: []*BasicBlock{
			block("start",
				&Instruction{Op: OpAdd, Typ: TypeW, Result: t1, Args: []Value{x, &Const{Value: 1}}},
				&Instruction{Op: OpCLt, Typ: TypeW, OperandType: TypeW, Result: t2, Args: []Value{t1, &Const{Value: 10}}},
				&Instruction{Op: OpJnz, Args: []Value{t2, &Label{Name: "small"}, &Label{Name: "big"}}},
			),
			block("small", retW(t1)),
			block("big", retW(&Const{Value: 10})),
		},
	}
	r := &Temporary{ID: 1}
	main := &Func{
		Name:       "main",
		ReturnType: TypeW,
		Exported:   true,
		Blocks: []*BasicBlock{
			block("start",
				&Instruction{Op: OpCall, Typ: TypeW, Result: r, Args: []Value{&Global{Name: "pas_inc"}, &Const{Value: 4}}, ArgTypes: []Type{TypeW}},
				&Instruction{Op: OpCall, Typ: TypeW, Args: []Value{&Global{Name: "printf"}, &Global{Name: "str0"}, r}, ArgTypes: []Type{TypePtr, TypeW}},
				&Instruction{Op: OpJmp, Args: []Value{&Label{Name: "end"}}},
			),
			block("end", retW(&Const{Value: 0})),
		},
	}
	return &Program{
		Funcs:      []*Func{helper, main},
		Strings:    []*StringLit{{Label: "str0", Value: "%d"}},
		ExtrnFuncs: []*Extrn{{Name: "printf", Params: []Type{TypePtr}, ReturnType: TypeW, Variadic: true}},
		WordSize:   8,
	}
}

func TestVerifyAcceptsWellFormedProgram(t *testing.T) {
	require.NoError(t, Verify(validProgram()))
}

func TestVerifyRejectsMalformedPrograms(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Program)
		message string
	}{
		{
			"missing terminator",
			func(p *Program) {
				b := p.Funcs[1].Blocks[1]
				b.Instructions = []*Instruction{{Op: OpAdd, Typ: TypeW, Result: &Temporary{ID: 9}, Args: []Value{&Const{Value: 1}, &Const{Value: 2}}}}
			},
			"block @end does not end in a terminator",
		},
		{
			"terminator in the middle",
			func(p *Program) {
				b := p.Funcs[1].Blocks[1]
				b.Instructions = append([]*Instruction{retW(&Const{Value: 1})}, b.Instructions...)
			},
			"block @end has ret before its end",
		},
		{
			"empty block",
			func(p *Program) { p.Funcs[1].Blocks[1].Instructions = nil },
			"block @end is empty",
		},
		{
			"duplicate label",
			func(p *Program) { p.Funcs[0].Blocks[2].Label.Name = "small" },
			"duplicate block label @small",
		},
		{
			"unknown branch target",
			func(p *Program) {
				p.Funcs[1].Blocks[0].Instructions[2].Args[0] = &Label{Name: "nowhere"}
			},
			"jmp targets unknown block @nowhere",
		},
		{
			"undefined temporary",
			func(p *Program) { p.Funcs[0].Blocks[1].Instructions[0].Args[0] = &Temporary{ID: 42} },
			"ret uses undefined temporary %t42",
		},
		{
			"temporary defined twice",
			func(p *Program) { p.Funcs[0].Blocks[0].Instructions[1].Result = &Temporary{ID: 1} },
			"temporary %t1 is defined more than once",
		},
		{
			"unknown callee",
			func(p *Program) { p.ExtrnFuncs = nil },
			"call to unknown function $printf",
		},
		{
			"return value in a procedure",
			func(p *Program) { p.Funcs[0].ReturnType = TypeNone },
			"return does not match the function's return type",
		},
		{
			"function without blocks",
			func(p *Program) { p.Funcs[1].Blocks = nil },
			"function $main: has no basic blocks",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := validProgram()
			tt.mutate(prog)
			err := Verify(prog)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestTemporaryKey(t *testing.T) {
	assert.Equal(t, "t3", (&Temporary{ID: 3}).Key())
	assert.Equal(t, "i.4", (&Temporary{Name: "i", ID: 4}).Key())
	assert.Equal(t, "arg_n", (&Temporary{Name: "arg_n", ID: -1}).Key())
}

func TestOpClassification(t *testing.T) {
	for _, op := range []Op{OpJmp, OpJnz, OpRet} {
		assert.True(t, op.IsTerminator(), op.String())
	}
	assert.False(t, OpCall.IsTerminator())
	assert.True(t, OpCLe.IsComparison())
	assert.False(t, OpExtSW.IsComparison())
	assert.Equal(t, "csge", OpCGe.String())
	assert.Equal(t, int64(8), SizeOfType(TypePtr, 8))
}
