package util

import (
	"fmt"

	"github.com/matouskozak/pascal-frontend/pkg/token"
)

type ErrorKind int

const (
	LexicalError ErrorKind = iota
	SyntaxError
	SemanticError
	StructuralError
)

func (k ErrorKind) String() string {
	switch k {
	case LexicalError:
		return "lexical error"
	case SyntaxError:
		return "syntax error"
	case SemanticError:
		return "error"
	case StructuralError:
		return "internal error"
	default:
		return "error"
	}
}

// CompileError is the single error type produced by the front end and the
// lowering pass. Expected and Got are only set for syntax errors.
type CompileError struct {
	Kind     ErrorKind
	Tok      token.Token
	Msg      string
	Expected string
	Got      string
}

func (e *CompileError) Error() string {
	if e.Tok.Line == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%d:%d: %s: %s", e.Tok.Line, e.Tok.Column, e.Kind, e.Msg)
}

func NewError(kind ErrorKind, tok token.Token, format string, args ...interface{}) *CompileError {
	return &CompileError{Kind: kind, Tok: tok, Msg: fmt.Sprintf(format, args...)}
}

// NewSyntaxError reports got where expected was required.
func NewSyntaxError(tok token.Token, expected string) *CompileError {
	got := tok.Describe()
	return &CompileError{
		Kind:     SyntaxError,
		Tok:      tok,
		Msg:      fmt.Sprintf("expected '%s', got '%s'", expected, got),
		Expected: expected,
		Got:      got,
	}
}
