package parser

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matouskozak/pascal-frontend/pkg/ast"
	"github.com/matouskozak/pascal-frontend/pkg/config"
	"github.com/matouskozak/pascal-frontend/pkg/lexer"
	"github.com/matouskozak/pascal-frontend/pkg/util"
)

func parseWith(cfg *config.Config, src string) (*ast.Node, error) {
	return NewParser(lexer.NewLexer([]rune(src), 0, cfg), cfg).Parse()
}

func mustParse(t *testing.T, src string) *ast.Node {
	t.Helper()
	root, err := parseWith(config.NewConfig(), src)
	require.NoError(t, err)
	return root
}

// mainOf parses a program whose main block is body and returns the main
// block in S-expression form.
func mainOf(t *testing.T, body string) string {
	t.Helper()
	root := mustParse(t, "program p;\nbegin\n"+body+"\nend.")
	return ast.Format(root.Data.(ast.ProgramNode).Main)
}

func compileError(t *testing.T, err error) *util.CompileError {
	t.Helper()
	var ce *util.CompileError
	require.True(t, errors.As(err, &ce), "expected a CompileError, got %v", err)
	return ce
}

func TestParserExpressions(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"multiplication binds tighter", "x := 2 + 3 * 4", "(begin (:= x (+ 2 (* 3 4))))"},
		{"subtraction is left associative", "x := a - b - c", "(begin (:= x (- (- a b) c)))"},
		{"div and mul share a level", "x := a div b * c", "(begin (:= x (* (div a b) c)))"},
		{"comparison is loosest", "x := a + 1 < b * 2", "(begin (:= x (< (+ a 1) (* b 2))))"},
		{"and binds like mul", "x := a = 1 and b", "(begin (:= x (= a (and 1 b))))"},
		{"or binds like plus", "x := a or b * c", "(begin (:= x (or a (* b c))))"},
		{"parentheses", "x := (a + b) * c", "(begin (:= x (* (+ a b) c)))"},
		{"mixed chain", "x := a * b + c * d - e mod f", "(begin (:= x (- (+ (* a b) (* c d)) (mod e f))))"},
		{"negative literal", "x := -5 + 1", "(begin (:= x (+ -5 1)))"},
		{"negated variable", "x := -y * 2", "(begin (:= x (* (- 0 y) 2)))"},
		{"subscript", "a[i + 1] := a[2]", "(begin (:= (index a (+ i 1)) (index a 2)))"},
		{"call with arguments", "writeln(f(1, x), 'hi')", "(begin (call writeln (call f 1 x) 'hi'))"},
		{"call without arguments", "p()", "(begin (call p))"},
		{"bare identifier statement", "p", "(begin p)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mainOf(t, tt.body))
		})
	}
}

func TestParserStatements(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"if without else wraps its body", "if c then x := 1", "(begin (if c (begin (:= x 1))))"},
		{"if with else", "if c then x := 1 else begin x := 2 end", "(begin (if c (begin (:= x 1)) (begin (:= x 2))))"},
		{"for to", "for i := 1 to 3 do s := s + i", "(begin (for i 1 to 3 (begin (:= s (+ s i)))))"},
		{"for downto", "for i := n downto 1 do begin end", "(begin (for i n downto 1 (begin)))"},
		{"while with break", "while 1 do begin break end", "(begin (while 1 (begin (break))))"},
		{"exit", "exit", "(begin (exit))"},
		{"empty statements", "; ; x := 1; ;", "(begin (:= x 1))"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mainOf(t, tt.body))
		})
	}
}

func TestParserProgram(t *testing.T) {
	src := `program demo;
const n = 5; m = -1;
var a, b: array [2..5] of integer;
var x: integer;

function f(p, q: integer; r: array [1..3] of integer): integer; forward;

procedure show;
var t: integer;
begin
    t := 1;
    writeln(t)
end;

function f(p, q: integer; r: array [1..3] of integer): integer;
begin
    f := p + q
end;

begin
    show
end.`
	root := mustParse(t, src)
	want := "(program demo " +
		"(decls (const n 5) (const m -1) (var a (array 2 5 integer)) (var b (array 2 5 integer)) (var x integer)) " +
		"(funcs " +
		"(function f (params (var p integer) (var q integer) (var r (array 1 3 integer))) (returns integer) forward) " +
		"(procedure show (params) (locals (var t integer)) (begin (:= t 1) (call writeln t))) " +
		"(function f (params (var p integer) (var q integer) (var r (array 1 3 integer))) (returns integer) (locals) (begin (:= f (+ p q))))) " +
		"(begin show))"
	assert.Equal(t, want, ast.Format(root))

	decls := root.Data.(ast.ProgramNode).Decls
	aType := decls[2].Data.(ast.VarDeclNode).Type
	bType := decls[3].Data.(ast.VarDeclNode).Type
	assert.Same(t, aType, bType, "names declared together share one type")
	assert.Equal(t, int64(16), aType.Size())
	assert.Same(t, ast.IntegerType, decls[4].Data.(ast.VarDeclNode).Type)
}

func TestParserIsDeterministic(t *testing.T) {
	src := `program p;
var a: array [0..9] of array [1..2] of integer;
var i: integer;
begin
    for i := 0 to 9 do
        a[i] := i * 2 - 1 div 3;
    if a[1] <> 0 then writeln(a[1]) else writeln('zero')
end.`
	first := mustParse(t, src)
	second := mustParse(t, src)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("parsing the same source twice gave different trees (-first +second):\n%s", diff)
	}
	assert.Equal(t, ast.Format(first), ast.Format(second))
}

func TestParserSyntaxErrors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		line     int
		expected string
		got      string
	}{
		{"missing semicolon after header", "program p\nbegin end.", 2, ";", "begin"},
		{"missing dot", "program p;\nbegin end", 2, ".", "EOF"},
		{"trailing input", "program p;\nbegin end.\nx", 3, "EOF", "x"},
		{"for without direction", "program p;\nbegin\nfor i := 1 do x := 1\nend.", 3, "to' or 'downto", "do"},
		{"missing then", "program p;\nbegin\nif x x := 1\nend.", 3, "then", "x"},
		{"bad type", "program p;\nvar x: 5;\nbegin end.", 2, "integer", "5"},
		{"missing operand", "program p;\nbegin\nx := 1 + ;\nend.", 3, "expression", ";"},
		{"statement expected", "program p;\nbegin\n:= 1\nend.", 3, "statement", ":="},
		{"string got", "program p;\nbegin\nx := 1 'a'\nend.", 3, "end", "'a'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseWith(config.NewConfig(), tt.src)
			require.Error(t, err)
			ce := compileError(t, err)
			assert.Equal(t, util.SyntaxError, ce.Kind)
			assert.Equal(t, tt.line, ce.Tok.Line)
			assert.Equal(t, tt.expected, ce.Expected)
			assert.Equal(t, tt.got, ce.Got)
		})
	}
}

func TestParserArrayBounds(t *testing.T) {
	_, err := parseWith(config.NewConfig(), "program p;\nvar a: array [5..2] of integer;\nbegin end.")
	ce := compileError(t, err)
	assert.Equal(t, util.SyntaxError, ce.Kind)
	assert.Equal(t, "array upper bound 2 is below lower bound 5", ce.Msg)

	root := mustParse(t, "program p;\nvar a: array [-3..-3] of integer;\nbegin end.")
	typ := root.Data.(ast.ProgramNode).Decls[0].Data.(ast.VarDeclNode).Type
	assert.Equal(t, int64(1), typ.Len())
}

func TestParserLexicalError(t *testing.T) {
	_, err := parseWith(config.NewConfig(), "program p;\nbegin\nx := 1 ? 2\nend.")
	ce := compileError(t, err)
	assert.Equal(t, util.LexicalError, ce.Kind)
	assert.Equal(t, "unexpected character '?'", ce.Msg)
	assert.Equal(t, 3, ce.Tok.Line)
	assert.Equal(t, 8, ce.Tok.Column)
}

func TestParserNegExprFeature(t *testing.T) {
	cfg := config.NewConfig()
	require.NoError(t, cfg.ApplyStd("mila"))

	_, err := parseWith(cfg, "program p;\nbegin\nx := -5\nend.")
	require.NoError(t, err, "negative literals are always allowed")

	_, err = parseWith(cfg, "program p;\nbegin\nx := -y\nend.")
	ce := compileError(t, err)
	assert.Equal(t, "number", ce.Expected)
	assert.Equal(t, "y", ce.Got)
}
