// Package ast defines the types used to represent the Abstract Syntax Tree (AST)
package ast

import (
	"github.com/matouskozak/pascal-frontend/pkg/token"
)

// NodeType defines the kind of a node in the AST
type NodeType int

// Node types enum
const (
	// Expressions
	Number NodeType = iota
	String
	Ident
	Subscript
	Assign
	BinaryOp
	FuncCall

	// Statements
	If
	For
	While
	Break
	Exit
	Block

	// Declarations
	VarDecl
	ConstDecl
	FuncDecl
	Program
)

var nodeTypeNames = [...]string{
	Number: "Number", String: "String", Ident: "Ident", Subscript: "Subscript",
	Assign: "Assign", BinaryOp: "BinaryOp", FuncCall: "FuncCall", If: "If",
	For: "For", While: "While", Break: "Break", Exit: "Exit", Block: "Block",
	VarDecl: "VarDecl", ConstDecl: "ConstDecl", FuncDecl: "FuncDecl", Program: "Program",
}

func (t NodeType) String() string {
	if int(t) < len(nodeTypeNames) {
		return nodeTypeNames[t]
	}
	return "Unknown"
}

// Node represents a node in the Abstract Syntax Tree
type Node struct {
	Type NodeType
	Tok  token.Token
	Data interface{}
}

// TypeKind defines the kind of a VarType
type TypeKind int

const (
	TypeInteger TypeKind = iota
	TypeArray
)

// VarType is the type of a variable: an integer or an array with literal
// bounds. Types are immutable once built and may be shared between
// declarations.
type VarType struct {
	Kind  TypeKind
	Lower int64
	Upper int64
	Elem  *VarType
}

// IntegerType is the interned integer type.
var IntegerType = &VarType{Kind: TypeInteger}

// NewArrayType builds array[lower..upper] of elem.
func NewArrayType(lower, upper int64, elem *VarType) *VarType {
	return &VarType{Kind: TypeArray, Lower: lower, Upper: upper, Elem: elem}
}

// Len is the element count of an array type.
func (t *VarType) Len() int64 {
	if t.Kind != TypeArray {
		return 1
	}
	return t.Upper - t.Lower + 1
}

// Size is the storage size in bytes. Integers are 32-bit.
func (t *VarType) Size() int64 {
	if t.Kind == TypeInteger {
		return 4
	}
	return t.Len() * t.Elem.Size()
}

func (t *VarType) IsArray() bool { return t != nil && t.Kind == TypeArray }

// --- Node Data Structs ---
type NumberNode struct{ Value int64 }
type StringNode struct{ Value string }
type IdentNode struct{ Name string }
type SubscriptNode struct {
	Name  string
	Index *Node
}
type AssignNode struct{ Lhs, Rhs *Node }
type BinaryOpNode struct {
	Op          token.Type
	Left, Right *Node
}
type FuncCallNode struct {
	Name string
	Args []*Node
}
type IfNode struct{ Cond, Then, Else *Node }

// ForNode.Step is never set by the parser; loops always step by one.
type ForNode struct {
	Var        string
	Start, End *Node
	Downto     bool
	Step       *Node
	Body       *Node
}
type WhileNode struct{ Cond, Body *Node }
type BreakNode struct{}
type ExitNode struct{}
type BlockNode struct{ Stmts []*Node }

type VarDeclNode struct {
	Name string
	Type *VarType
}
type ConstDeclNode struct {
	Name  string
	Value int64
}

// FuncDeclNode is a function or procedure. A nil ReturnType marks a
// procedure and a nil Body marks a forward declaration.
type FuncDeclNode struct {
	Name       string
	Params     []*Node
	ReturnType *VarType
	Locals     []*Node
	Body       *Node
}

type ProgramNode struct {
	Name  string
	Decls []*Node
	Funcs []*Node
	Main  *Node
}

// --- Node Constructors ---
func newNode(tok token.Token, nodeType NodeType, data interface{}) *Node {
	return &Node{Type: nodeType, Tok: tok, Data: data}
}

func NewNumber(tok token.Token, value int64) *Node {
	return newNode(tok, Number, NumberNode{Value: value})
}

func NewString(tok token.Token, value string) *Node {
	return newNode(tok, String, StringNode{Value: value})
}

func NewIdent(tok token.Token, name string) *Node {
	return newNode(tok, Ident, IdentNode{Name: name})
}

func NewSubscript(tok token.Token, name string, index *Node) *Node {
	return newNode(tok, Subscript, SubscriptNode{Name: name, Index: index})
}

func NewAssign(tok token.Token, lhs, rhs *Node) *Node {
	return newNode(tok, Assign, AssignNode{Lhs: lhs, Rhs: rhs})
}

func NewBinaryOp(tok token.Token, op token.Type, left, right *Node) *Node {
	return newNode(tok, BinaryOp, BinaryOpNode{Op: op, Left: left, Right: right})
}

func NewFuncCall(tok token.Token, name string, args []*Node) *Node {
	return newNode(tok, FuncCall, FuncCallNode{Name: name, Args: args})
}

func NewIf(tok token.Token, cond, thenBody, elseBody *Node) *Node {
	return newNode(tok, If, IfNode{Cond: cond, Then: thenBody, Else: elseBody})
}

func NewFor(tok token.Token, name string, start, end *Node, downto bool, body *Node) *Node {
	return newNode(tok, For, ForNode{Var: name, Start: start, End: end, Downto: downto, Body: body})
}

func NewWhile(tok token.Token, cond, body *Node) *Node {
	return newNode(tok, While, WhileNode{Cond: cond, Body: body})
}

func NewBreak(tok token.Token) *Node { return newNode(tok, Break, BreakNode{}) }
func NewExit(tok token.Token) *Node  { return newNode(tok, Exit, ExitNode{}) }

func NewBlock(tok token.Token, stmts []*Node) *Node {
	return newNode(tok, Block, BlockNode{Stmts: stmts})
}

func NewVarDecl(tok token.Token, name string, typ *VarType) *Node {
	return newNode(tok, VarDecl, VarDeclNode{Name: name, Type: typ})
}

func NewConstDecl(tok token.Token, name string, value int64) *Node {
	return newNode(tok, ConstDecl, ConstDeclNode{Name: name, Value: value})
}

func NewFuncDecl(tok token.Token, name string, params []*Node, ret *VarType, locals []*Node, body *Node) *Node {
	return newNode(tok, FuncDecl, FuncDeclNode{Name: name, Params: params, ReturnType: ret, Locals: locals, Body: body})
}

func NewProgram(tok token.Token, name string, decls, funcs []*Node, main *Node) *Node {
	return newNode(tok, Program, ProgramNode{Name: name, Decls: decls, Funcs: funcs, Main: main})
}
