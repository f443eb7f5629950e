package token

import "fmt"

type Type int

const (
	EOF Type = iota
	Error
	Ident
	Number
	String

	// Keywords
	Program
	Const
	Var
	Begin
	End
	Div
	Mod
	Integer
	Array
	Of
	If
	Then
	Else
	While
	Do
	For
	To
	Downto
	Or
	And
	Procedure
	Function
	Forward
	Break
	Exit

	// Operators and punctuation
	Plus
	Minus
	Star
	Eq
	Neq
	Lt
	Lte
	Gt
	Gte
	LParen
	RParen
	LBracket
	RBracket
	Assign
	Colon
	Comma
	Semi
	Dot
	DotDot
)

var KeywordMap = map[string]Type{
	"program":   Program,
	"const":     Const,
	"var":       Var,
	"begin":     Begin,
	"end":       End,
	"div":       Div,
	"mod":       Mod,
	"integer":   Integer,
	"array":     Array,
	"of":        Of,
	"if":        If,
	"then":      Then,
	"else":      Else,
	"while":     While,
	"do":        Do,
	"for":       For,
	"to":        To,
	"downto":    Downto,
	"or":        Or,
	"and":       And,
	"procedure": Procedure,
	"function":  Function,
	"forward":   Forward,
	"break":     Break,
	"exit":      Exit,
}

// TypeStrings is the reverse mapping of KeywordMap plus the spellings of
// every operator, used when reporting what the parser expected.
var TypeStrings = make(map[Type]string)

func init() {
	for str, typ := range KeywordMap {
		TypeStrings[typ] = str
	}

	TypeStrings[EOF] = "EOF"
	TypeStrings[Error] = "ERROR"
	TypeStrings[Ident] = "identifier"
	TypeStrings[Number] = "number"
	TypeStrings[String] = "string"
	TypeStrings[Plus] = "+"
	TypeStrings[Minus] = "-"
	TypeStrings[Star] = "*"
	TypeStrings[Eq] = "="
	TypeStrings[Neq] = "<>"
	TypeStrings[Lt] = "<"
	TypeStrings[Lte] = "<="
	TypeStrings[Gt] = ">"
	TypeStrings[Gte] = ">="
	TypeStrings[LParen] = "("
	TypeStrings[RParen] = ")"
	TypeStrings[LBracket] = "["
	TypeStrings[RBracket] = "]"
	TypeStrings[Assign] = ":="
	TypeStrings[Colon] = ":"
	TypeStrings[Comma] = ","
	TypeStrings[Semi] = ";"
	TypeStrings[Dot] = "."
	TypeStrings[DotDot] = ".."
}

func (t Type) String() string {
	if s, ok := TypeStrings[t]; ok {
		return s
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// Token is a single lexical unit. Value holds the identifier text, the
// literal text of a number or string, or the message of an Error token.
type Token struct {
	Type      Type
	Value     string
	FileIndex int
	Line      int
	Column    int
	Len       int
}

// Describe renders the token the way diagnostics quote it.
func (t Token) Describe() string {
	switch t.Type {
	case Ident, Number:
		return t.Value
	case String:
		return "'" + t.Value + "'"
	case Error:
		return "ERROR"
	default:
		return t.Type.String()
	}
}
