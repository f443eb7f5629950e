package lexer

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/matouskozak/pascal-frontend/pkg/config"
	"github.com/matouskozak/pascal-frontend/pkg/token"
)

// maxLiteral is the largest magnitude an integer literal may have; it
// allows the most negative 32-bit integer to be written as -2147483648.
const maxLiteral = 1 << 31

type Lexer struct {
	source    []rune
	fileIndex int
	pos       int
	line      int
	column    int
	cfg       *config.Config
	last      token.Token
	num       int64
}

func NewLexer(source []rune, fileIndex int, cfg *config.Config) *Lexer {
	return &Lexer{
		source: source, fileIndex: fileIndex, line: 1, column: 1, cfg: cfg,
	}
}

// Next returns the next token. After EOF every further call returns EOF.
func (l *Lexer) Next() token.Token {
	l.last = l.scan()
	return l.last
}

// IdentifierText is the name carried by the most recent Ident token.
func (l *Lexer) IdentifierText() string {
	if l.last.Type != token.Ident {
		return ""
	}
	return l.last.Value
}

// NumericValue is the value of the most recent Number token.
func (l *Lexer) NumericValue() int64 {
	if l.last.Type != token.Number {
		return 0
	}
	return l.num
}

// StringValue is the contents of the most recent String token.
func (l *Lexer) StringValue() string {
	if l.last.Type != token.String {
		return ""
	}
	return l.last.Value
}

func (l *Lexer) scan() token.Token {
	if tok, ok := l.skipWhitespaceAndComments(); !ok {
		return tok
	}
	startPos, startCol, startLine := l.pos, l.column, l.line

	if l.isAtEnd() {
		return l.makeToken(token.EOF, "", startPos, startCol, startLine)
	}

	ch := l.peek()
	if isLetter(ch) {
		return l.identifierOrKeyword(startPos, startCol, startLine)
	}
	if isDigit(ch) {
		return l.numberLiteral(10, startPos, startCol, startLine)
	}

	l.advance()
	switch ch {
	case '+': return l.makeToken(token.Plus, "", startPos, startCol, startLine)
	case '-': return l.makeToken(token.Minus, "", startPos, startCol, startLine)
	case '*': return l.makeToken(token.Star, "", startPos, startCol, startLine)
	case '=': return l.makeToken(token.Eq, "", startPos, startCol, startLine)
	case '(': return l.makeToken(token.LParen, "", startPos, startCol, startLine)
	case ')': return l.makeToken(token.RParen, "", startPos, startCol, startLine)
	case '[': return l.makeToken(token.LBracket, "", startPos, startCol, startLine)
	case ']': return l.makeToken(token.RBracket, "", startPos, startCol, startLine)
	case ',': return l.makeToken(token.Comma, "", startPos, startCol, startLine)
	case ';': return l.makeToken(token.Semi, "", startPos, startCol, startLine)
	case ':': return l.matchThen('=', token.Assign, token.Colon, startPos, startCol, startLine)
	case '.': return l.matchThen('.', token.DotDot, token.Dot, startPos, startCol, startLine)
	case '>': return l.matchThen('=', token.Gte, token.Gt, startPos, startCol, startLine)
	case '<':
		if l.match('>') {
			return l.makeToken(token.Neq, "", startPos, startCol, startLine)
		}
		return l.matchThen('=', token.Lte, token.Lt, startPos, startCol, startLine)
	case '&':
		return l.numberLiteral(8, startPos, startCol, startLine)
	case '$':
		return l.numberLiteral(16, startPos, startCol, startLine)
	case '\'':
		return l.stringLiteral(startPos, startCol, startLine)
	}

	return l.makeToken(token.Error, "unexpected character '"+string(ch)+"'", startPos, startCol, startLine)
}

func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) advance() rune {
	if l.isAtEnd() {
		return 0
	}
	ch := l.source[l.pos]
	if ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	l.pos++
	return ch
}

func (l *Lexer) match(expected rune) bool {
	if l.isAtEnd() || l.source[l.pos] != expected {
		return false
	}
	l.advance()
	return true
}

func (l *Lexer) isAtEnd() bool { return l.pos >= len(l.source) }

func (l *Lexer) makeToken(tokType token.Type, value string, startPos, startCol, startLine int) token.Token {
	return token.Token{
		Type: tokType, Value: value, FileIndex: l.fileIndex,
		Line: startLine, Column: startCol, Len: l.pos - startPos,
	}
}

func (l *Lexer) matchThen(expected rune, thenType, elseType token.Type, sPos, sCol, sLine int) token.Token {
	if l.match(expected) {
		return l.makeToken(thenType, "", sPos, sCol, sLine)
	}
	return l.makeToken(elseType, "", sPos, sCol, sLine)
}

// skipWhitespaceAndComments reports false together with an Error token
// when a block comment is left open.
func (l *Lexer) skipWhitespaceAndComments() (token.Token, bool) {
	for !l.isAtEnd() {
		switch ch := l.peek(); {
		case unicode.IsSpace(ch):
			l.advance()
		case ch == '#':
			for !l.isAtEnd() && l.peek() != '\n' {
				l.advance()
			}
		case ch == '{' && l.cfg.IsFeatureEnabled(config.FeatBraceComments):
			startPos, startCol, startLine := l.pos, l.column, l.line
			for !l.isAtEnd() && l.peek() != '}' {
				l.advance()
			}
			if l.isAtEnd() {
				return l.makeToken(token.Error, "unterminated comment", startPos, startCol, startLine), false
			}
			l.advance()
		default:
			return token.Token{}, true
		}
	}
	return token.Token{}, true
}

func (l *Lexer) identifierOrKeyword(startPos, startCol, startLine int) token.Token {
	for isLetter(l.peek()) || isDigit(l.peek()) || l.peek() == '_' {
		l.advance()
	}
	value := string(l.source[startPos:l.pos])
	if l.cfg.IsFeatureEnabled(config.FeatCaseFold) {
		value = strings.ToLower(value)
	}
	if tokType, isKeyword := token.KeywordMap[value]; isKeyword {
		return l.makeToken(tokType, "", startPos, startCol, startLine)
	}
	return l.makeToken(token.Ident, value, startPos, startCol, startLine)
}

// numberLiteral scans the digits of a literal in the given base. Octal and
// hexadecimal literals have already had their '&' or '$' prefix consumed.
func (l *Lexer) numberLiteral(base int, startPos, startCol, startLine int) token.Token {
	digitsStart := l.pos
	for isBaseDigit(l.peek(), base) {
		l.advance()
	}
	digits := string(l.source[digitsStart:l.pos])
	if digits == "" {
		return l.makeToken(token.Error, "malformed "+baseName(base)+" literal", startPos, startCol, startLine)
	}
	if isLetter(l.peek()) || isDigit(l.peek()) {
		for isLetter(l.peek()) || isDigit(l.peek()) {
			l.advance()
		}
		return l.makeToken(token.Error, "invalid digit in "+baseName(base)+" literal", startPos, startCol, startLine)
	}

	val, err := strconv.ParseInt(digits, base, 64)
	if err != nil || val > maxLiteral {
		return l.makeToken(token.Error, "integer literal out of range", startPos, startCol, startLine)
	}
	l.num = val
	return l.makeToken(token.Number, string(l.source[startPos:l.pos]), startPos, startCol, startLine)
}

func (l *Lexer) stringLiteral(startPos, startCol, startLine int) token.Token {
	var sb strings.Builder
	for !l.isAtEnd() && l.peek() != '\'' && l.peek() != '\n' {
		sb.WriteRune(l.advance())
	}
	if !l.match('\'') {
		return l.makeToken(token.Error, "unterminated string literal", startPos, startCol, startLine)
	}
	return l.makeToken(token.String, sb.String(), startPos, startCol, startLine)
}

func isLetter(ch rune) bool { return ch < unicode.MaxASCII && unicode.IsLetter(ch) }
func isDigit(ch rune) bool  { return ch >= '0' && ch <= '9' }

func isBaseDigit(ch rune, base int) bool {
	switch base {
	case 8:
		return ch >= '0' && ch <= '7'
	case 16:
		return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
	default:
		return isDigit(ch)
	}
}

func baseName(base int) string {
	switch base {
	case 8:
		return "octal"
	case 16:
		return "hexadecimal"
	default:
		return "decimal"
	}
}
