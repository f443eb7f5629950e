package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matouskozak/pascal-frontend/pkg/config"
	"github.com/matouskozak/pascal-frontend/pkg/token"
)

func scanAll(t *testing.T, src string, cfg *config.Config) []token.Token {
	t.Helper()
	l := NewLexer([]rune(src), 0, cfg)
	var toks []token.Token
	for i := 0; i < 1000; i++ {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Type == token.EOF || tok.Type == token.Error {
			return toks
		}
	}
	t.Fatalf("lexer did not reach EOF")
	return nil
}

func types(toks []token.Token) []token.Type {
	out := make([]token.Type, len(toks))
	for i, tok := range toks {
		out[i] = tok.Type
	}
	return out
}

func TestLexerTokenKinds(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []token.Type
	}{
		{"keywords", "program begin end div mod forward exit", []token.Type{
			token.Program, token.Begin, token.End, token.Div, token.Mod, token.Forward, token.Exit, token.EOF}},
		{"two-character operators", ":= .. <> <= >=", []token.Type{
			token.Assign, token.DotDot, token.Neq, token.Lte, token.Gte, token.EOF}},
		{"single-character operators", "+ - * = < > ( ) [ ] : , ; .", []token.Type{
			token.Plus, token.Minus, token.Star, token.Eq, token.Lt, token.Gt, token.LParen, token.RParen,
			token.LBracket, token.RBracket, token.Colon, token.Comma, token.Semi, token.Dot, token.EOF}},
		{"array range", "array[2..5]", []token.Type{
			token.Array, token.LBracket, token.Number, token.DotDot, token.Number, token.RBracket, token.EOF}},
		{"line comment", "x # comment := 1\ny", []token.Type{token.Ident, token.Ident, token.EOF}},
		{"brace comment", "x { skipped ; } y", []token.Type{token.Ident, token.Ident, token.EOF}},
		{"identifier with digits and underscore", "a_1 b2", []token.Type{token.Ident, token.Ident, token.EOF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, types(scanAll(t, tt.src, config.NewConfig())))
		})
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		src  string
		want int64
	}{
		{"42", 42},
		{"&17", 15},
		{"$1F", 31},
		{"$ff", 255},
		{"2147483648", 2147483648},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			l := NewLexer([]rune(tt.src), 0, config.NewConfig())
			tok := l.Next()
			require.Equal(t, token.Number, tok.Type)
			assert.Equal(t, tt.want, l.NumericValue())
			assert.Equal(t, len(tt.src), tok.Len)
		})
	}
}

func TestLexerErrors(t *testing.T) {
	tests := []struct {
		src     string
		message string
	}{
		{"&", "malformed octal literal"},
		{"&19", "invalid digit in octal literal"},
		{"$g", "malformed hexadecimal literal"},
		{"12ab", "invalid digit in decimal literal"},
		{"9999999999", "integer literal out of range"},
		{"'abc", "unterminated string literal"},
		{"'abc\n'", "unterminated string literal"},
		{"x ? y", "unexpected character '?'"},
		{"{ never closed", "unterminated comment"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			toks := scanAll(t, tt.src, config.NewConfig())
			last := toks[len(toks)-1]
			require.Equal(t, token.Error, last.Type)
			assert.Equal(t, tt.message, last.Value)
		})
	}
}

func TestLexerPositions(t *testing.T) {
	toks := scanAll(t, "begin\n  x := 10\nend", config.NewConfig())
	require.Len(t, toks, 6)

	x := toks[1]
	assert.Equal(t, 2, x.Line)
	assert.Equal(t, 3, x.Column)
	num := toks[3]
	assert.Equal(t, 8, num.Column)
	assert.Equal(t, 2, num.Len)
	assert.Equal(t, 3, toks[4].Line)
}

func TestLexerPayloadAccessors(t *testing.T) {
	l := NewLexer([]rune("count 'Hello, world' 7"), 0, config.NewConfig())

	l.Next()
	assert.Equal(t, "count", l.IdentifierText())
	assert.Equal(t, "", l.StringValue())

	l.Next()
	assert.Equal(t, "Hello, world", l.StringValue())
	assert.Equal(t, "", l.IdentifierText())

	l.Next()
	assert.Equal(t, int64(7), l.NumericValue())

	assert.Equal(t, token.EOF, l.Next().Type)
	assert.Equal(t, token.EOF, l.Next().Type)
}

func TestLexerFeatures(t *testing.T) {
	t.Run("brace comments disabled", func(t *testing.T) {
		cfg := config.NewConfig()
		cfg.SetFeature(config.FeatBraceComments, false)
		toks := scanAll(t, "{ x }", cfg)
		assert.Equal(t, token.Error, toks[0].Type)
	})

	t.Run("case folding", func(t *testing.T) {
		cfg := config.NewConfig()
		cfg.SetFeature(config.FeatCaseFold, true)
		toks := scanAll(t, "BEGIN Count End", cfg)
		assert.Equal(t, []token.Type{token.Begin, token.Ident, token.End, token.EOF}, types(toks))
		assert.Equal(t, "count", toks[1].Value)
	})

	t.Run("case sensitive by default", func(t *testing.T) {
		toks := scanAll(t, "BEGIN", config.NewConfig())
		assert.Equal(t, token.Ident, toks[0].Type)
	})
}
