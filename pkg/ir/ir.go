package ir

import "fmt"

type Op int

const (
	OpAlloc Op = iota
	OpLoad
	OpStore
	OpBlit
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpAnd
	OpOr
	OpCEq
	OpCNeq
	OpCLt
	OpCGt
	OpCLe
	OpCGe
	OpExtSW
	OpJmp
	OpJnz
	OpRet
	OpCall
)

var opNames = [...]string{
	OpAlloc: "alloc", OpLoad: "load", OpStore: "store", OpBlit: "blit",
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpRem: "rem",
	OpAnd: "and", OpOr: "or", OpCEq: "ceq", OpCNeq: "cne", OpCLt: "cslt",
	OpCGt: "csgt", OpCLe: "csle", OpCGe: "csge", OpExtSW: "extsw",
	OpJmp: "jmp", OpJnz: "jnz", OpRet: "ret", OpCall: "call",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "unknown_op"
}

// IsTerminator reports whether op ends a basic block.
func (op Op) IsTerminator() bool {
	return op == OpJmp || op == OpJnz || op == OpRet
}

func (op Op) IsComparison() bool { return op >= OpCEq && op <= OpCGe }

type Type int

const (
	TypeNone Type = iota
	TypeB         // byte, only used in data definitions
	TypeW         // word (32-bit), the integer type of the language
	TypeL         // long (64-bit)
	TypePtr       // an address; a long on every supported target
)

type Value interface {
	isValue()
	String() string
}

type Const struct{ Value int64 }
type Global struct{ Name string }

// Temporary is an SSA value. Temporaries with ID -1 are named function
// parameters.
type Temporary struct {
	Name string
	ID   int
}
type Label struct{ Name string }

// Key identifies the temporary within its function.
func (t *Temporary) Key() string {
	switch {
	case t.ID == -1:
		return t.Name
	case t.Name == "":
		return fmt.Sprintf("t%d", t.ID)
	default:
		return fmt.Sprintf("%s.%d", t.Name, t.ID)
	}
}

func (c *Const) isValue()     {}
func (g *Global) isValue()    {}
func (t *Temporary) isValue() {}
func (l *Label) isValue()     {}

func (c *Const) String() string  { return fmt.Sprint(c.Value) }
func (g *Global) String() string { return g.Name }
func (t *Temporary) String() string { return t.Key() }
func (l *Label) String() string { return l.Name }

type Func struct {
	Name       string
	Params     []*Param
	ReturnType Type
	Exported   bool
	Blocks     []*BasicBlock
}

type Param struct {
	Name string
	Typ  Type
	Val  *Temporary
}

type BasicBlock struct {
	Label        *Label
	Instructions []*Instruction
}

// Terminator returns the last instruction of the block if it ends it.
func (b *BasicBlock) Terminator() *Instruction {
	if len(b.Instructions) == 0 {
		return nil
	}
	last := b.Instructions[len(b.Instructions)-1]
	if !last.Op.IsTerminator() {
		return nil
	}
	return last
}

// Instruction is a single IR operation. For OpCall, Args[0] is the callee
// and ArgTypes describes the remaining arguments. OperandType is the type
// of the operands of a comparison or extension when it differs from Typ.
type Instruction struct {
	Op          Op
	Typ         Type
	OperandType Type
	Result      Value
	Args        []Value
	ArgTypes    []Type
	Align       int
}

type Program struct {
	Globals    []*Data
	Strings    []*StringLit
	Funcs      []*Func
	ExtrnFuncs []*Extrn
	WordSize   int
}

// Data is a zero-initialized global block of Size bytes.
type Data struct {
	Name  string
	Align int
	Size  int64
}

type StringLit struct {
	Label string
	Value string
}

// Extrn is a C library function the program calls. Params lists the
// fixed parameters; Variadic functions accept any number after them.
type Extrn struct {
	Name       string
	Params     []Type
	ReturnType Type
	Variadic   bool
}

func SizeOfType(t Type, wordSize int) int64 {
	switch t {
	case TypeB:
		return 1
	case TypeW:
		return 4
	case TypeL:
		return 8
	case TypePtr:
		return int64(wordSize)
	default:
		return 0
	}
}

func (p *Program) FindFunc(name string) *Func {
	for _, f := range p.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (p *Program) FindExtrn(name string) *Extrn {
	for _, e := range p.ExtrnFuncs {
		if e.Name == name {
			return e
		}
	}
	return nil
}
