package parser

import (
	"github.com/matouskozak/pascal-frontend/pkg/ast"
	"github.com/matouskozak/pascal-frontend/pkg/config"
	"github.com/matouskozak/pascal-frontend/pkg/token"
	"github.com/matouskozak/pascal-frontend/pkg/util"
)

// TokenSource is the pull interface the parser reads tokens from. The
// accessors describe the payload of the token most recently returned by
// Next.
type TokenSource interface {
	Next() token.Token
	IdentifierText() string
	NumericValue() int64
	StringValue() string
}

// Parser holds the state for the parsing process
type Parser struct {
	src      TokenSource
	cfg      *config.Config
	current  token.Token
	previous token.Token
	curText  string
	curNum   int64
	prevText string
	prevNum  int64
}

// NewParser primes the parser with the first token of src.
func NewParser(src TokenSource, cfg *config.Config) *Parser {
	p := &Parser{src: src, cfg: cfg}
	p.advance()
	return p
}

// Parser helpers
func (p *Parser) advance() {
	p.previous, p.prevText, p.prevNum = p.current, p.curText, p.curNum
	p.current = p.src.Next()
	p.curText, p.curNum = "", 0
	switch p.current.Type {
	case token.Ident:
		p.curText = p.src.IdentifierText()
	case token.String:
		p.curText = p.src.StringValue()
	case token.Number:
		p.curNum = p.src.NumericValue()
	}
}

func (p *Parser) check(tokType token.Type) bool {
	return p.current.Type == tokType
}

func (p *Parser) match(tokType token.Type) bool {
	if !p.check(tokType) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) expect(tokType token.Type) (token.Token, error) {
	if p.check(tokType) {
		p.advance()
		return p.previous, nil
	}
	return p.current, p.unexpected(tokType.String())
}

func (p *Parser) expectIdent() (token.Token, string, error) {
	tok, err := p.expect(token.Ident)
	if err != nil {
		return tok, "", err
	}
	return tok, p.prevText, nil
}

// unexpected builds the error for the current token. An error token from
// the lexer is reported as a lexical error rather than a mismatch.
func (p *Parser) unexpected(expected string) error {
	if p.current.Type == token.Error {
		return util.NewError(util.LexicalError, p.current, "%s", p.current.Value)
	}
	return util.NewSyntaxError(p.current, expected)
}

// Parse consumes the whole token stream and returns the Program node.
// Parsing stops at the first error.
func (p *Parser) Parse() (*ast.Node, error) {
	progTok, err := p.expect(token.Program)
	if err != nil {
		return nil, err
	}
	_, name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Semi); err != nil {
		return nil, err
	}

	var decls, funcs []*ast.Node
declarations:
	for {
		switch p.current.Type {
		case token.Var:
			vars, err := p.parseVarDecl()
			if err != nil {
				return nil, err
			}
			decls = append(decls, vars...)
		case token.Const:
			consts, err := p.parseConstDecl()
			if err != nil {
				return nil, err
			}
			decls = append(decls, consts...)
		case token.Function, token.Procedure:
			fn, err := p.parseFunction()
			if err != nil {
				return nil, err
			}
			funcs = append(funcs, fn)
		default:
			break declarations
		}
	}

	main, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Dot); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.EOF); err != nil {
		return nil, err
	}
	return ast.NewProgram(progTok, name, decls, funcs, main), nil
}

// Declarations

// parseVarDecl parses `var a, b: type;`. Every name shares one type.
func (p *Parser) parseVarDecl() ([]*ast.Node, error) {
	if _, err := p.expect(token.Var); err != nil {
		return nil, err
	}
	toks, names, err := p.parseIdentList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Colon); err != nil {
		return nil, err
	}
	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Semi); err != nil {
		return nil, err
	}

	decls := make([]*ast.Node, len(names))
	for i, name := range names {
		decls[i] = ast.NewVarDecl(toks[i], name, typ)
	}
	return decls, nil
}

func (p *Parser) parseIdentList() ([]token.Token, []string, error) {
	var toks []token.Token
	var names []string
	for {
		tok, name, err := p.expectIdent()
		if err != nil {
			return nil, nil, err
		}
		toks, names = append(toks, tok), append(names, name)
		if !p.match(token.Comma) {
			return toks, names, nil
		}
	}
}

func (p *Parser) parseConstDecl() ([]*ast.Node, error) {
	if _, err := p.expect(token.Const); err != nil {
		return nil, err
	}
	var decls []*ast.Node
	for {
		tok, name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Eq); err != nil {
			return nil, err
		}
		value, err := p.parseSignedNumber()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Semi); err != nil {
			return nil, err
		}
		decls = append(decls, ast.NewConstDecl(tok, name, value))
		if !p.check(token.Ident) {
			return decls, nil
		}
	}
}

func (p *Parser) parseSignedNumber() (int64, error) {
	neg := p.match(token.Minus)
	if _, err := p.expect(token.Number); err != nil {
		return 0, err
	}
	if neg {
		return -p.prevNum, nil
	}
	return p.prevNum, nil
}

func (p *Parser) parseType() (*ast.VarType, error) {
	if p.match(token.Integer) {
		return ast.IntegerType, nil
	}
	if !p.check(token.Array) {
		return nil, p.unexpected("integer")
	}
	arrayTok := p.current
	p.advance()

	if _, err := p.expect(token.LBracket); err != nil {
		return nil, err
	}
	lower, err := p.parseSignedNumber()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.DotDot); err != nil {
		return nil, err
	}
	upper, err := p.parseSignedNumber()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RBracket); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Of); err != nil {
		return nil, err
	}
	elem, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if upper < lower {
		return nil, util.NewError(util.SyntaxError, arrayTok, "array upper bound %d is below lower bound %d", upper, lower)
	}
	return ast.NewArrayType(lower, upper, elem), nil
}

// parseFunction parses a function or procedure, either forward declared
// or with its locals and body.
func (p *Parser) parseFunction() (*ast.Node, error) {
	tok := p.current
	isFunc := p.check(token.Function)
	p.advance()

	_, name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}

	var params []*ast.Node
	if p.match(token.LParen) {
		for p.check(token.Ident) {
			toks, names, err := p.parseIdentList()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.Colon); err != nil {
				return nil, err
			}
			typ, err := p.parseType()
			if err != nil {
				return nil, err
			}
			for i, n := range names {
				params = append(params, ast.NewVarDecl(toks[i], n, typ))
			}
			if !p.match(token.Semi) {
				break
			}
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
	}

	var ret *ast.VarType
	if isFunc {
		if _, err := p.expect(token.Colon); err != nil {
			return nil, err
		}
		if ret, err = p.parseType(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.Semi); err != nil {
		return nil, err
	}

	if p.match(token.Forward) {
		if _, err := p.expect(token.Semi); err != nil {
			return nil, err
		}
		return ast.NewFuncDecl(tok, name, params, ret, nil, nil), nil
	}

	var locals []*ast.Node
	for p.check(token.Var) {
		vars, err := p.parseVarDecl()
		if err != nil {
			return nil, err
		}
		locals = append(locals, vars...)
	}
	if !p.check(token.Begin) {
		return nil, p.unexpected(token.Begin.String())
	}
	body, err := p.parseCompound()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Semi); err != nil {
		return nil, err
	}
	return ast.NewFuncDecl(tok, name, params, ret, locals, body), nil
}

// Statements

// parseBody parses either a begin/end block or a single statement, which
// is wrapped in a one-element block.
func (p *Parser) parseBody() (*ast.Node, error) {
	if p.check(token.Begin) {
		return p.parseCompound()
	}
	tok := p.current
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return ast.NewBlock(tok, []*ast.Node{stmt}), nil
}

func (p *Parser) parseCompound() (*ast.Node, error) {
	tok, err := p.expect(token.Begin)
	if err != nil {
		return nil, err
	}
	var stmts []*ast.Node
	for !p.check(token.End) {
		if p.match(token.Semi) {
			continue
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
		if !p.match(token.Semi) {
			break
		}
	}
	if _, err := p.expect(token.End); err != nil {
		return nil, err
	}
	return ast.NewBlock(tok, stmts), nil
}

func (p *Parser) parseStatement() (*ast.Node, error) {
	tok := p.current
	switch p.current.Type {
	case token.Ident:
		return p.parseIdentStatement()
	case token.If:
		return p.parseIf()
	case token.For:
		return p.parseFor()
	case token.While:
		return p.parseWhile()
	case token.Begin:
		return p.parseCompound()
	case token.Break:
		p.advance()
		return ast.NewBreak(tok), nil
	case token.Exit:
		p.advance()
		return ast.NewExit(tok), nil
	default:
		return nil, p.unexpected("statement")
	}
}

func (p *Parser) parseIdentStatement() (*ast.Node, error) {
	ref, err := p.parseIdentExpr()
	if err != nil {
		return nil, err
	}
	if ref.Type == ast.FuncCall || !p.check(token.Assign) {
		return ref, nil
	}
	tok := p.current
	p.advance()
	rhs, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return ast.NewAssign(tok, ref, rhs), nil
}

func (p *Parser) parseIf() (*ast.Node, error) {
	tok := p.current
	p.advance()
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Then); err != nil {
		return nil, err
	}
	thenBody, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	var elseBody *ast.Node
	if p.match(token.Else) {
		if elseBody, err = p.parseBody(); err != nil {
			return nil, err
		}
	}
	return ast.NewIf(tok, cond, thenBody, elseBody), nil
}

func (p *Parser) parseFor() (*ast.Node, error) {
	tok := p.current
	p.advance()
	_, name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Assign); err != nil {
		return nil, err
	}
	start, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	var downto bool
	switch {
	case p.match(token.To):
	case p.match(token.Downto):
		downto = true
	default:
		return nil, p.unexpected("to' or 'downto")
	}

	end, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Do); err != nil {
		return nil, err
	}
	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	return ast.NewFor(tok, name, start, end, downto, body), nil
}

func (p *Parser) parseWhile() (*ast.Node, error) {
	tok := p.current
	p.advance()
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Do); err != nil {
		return nil, err
	}
	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	return ast.NewWhile(tok, cond, body), nil
}

// Expression Parsing
func getBinaryOpPrecedence(op token.Type) int {
	switch op {
	case token.Star, token.Div, token.Mod, token.And:
		return 40
	case token.Plus, token.Minus, token.Or:
		return 20
	case token.Lt, token.Lte, token.Gt, token.Gte, token.Eq, token.Neq:
		return 10
	default:
		return -1
	}
}

func (p *Parser) parseExpression() (*ast.Node, error) {
	lhs, err := p.parsePrimaryExpr()
	if err != nil {
		return nil, err
	}
	return p.parseBinaryExpr(0, lhs)
}

// parseBinaryExpr folds operators binding at least minPrec onto lhs. The
// right operand absorbs any following operators that bind tighter, which
// keeps equal precedence chains left-associative.
func (p *Parser) parseBinaryExpr(minPrec int, lhs *ast.Node) (*ast.Node, error) {
	for {
		prec := getBinaryOpPrecedence(p.current.Type)
		if prec < minPrec {
			return lhs, nil
		}
		opTok := p.current
		p.advance()

		rhs, err := p.parsePrimaryExpr()
		if err != nil {
			return nil, err
		}
		if next := getBinaryOpPrecedence(p.current.Type); prec < next {
			if rhs, err = p.parseBinaryExpr(prec+1, rhs); err != nil {
				return nil, err
			}
		}
		lhs = ast.NewBinaryOp(opTok, opTok.Type, lhs, rhs)
	}
}

func (p *Parser) parsePrimaryExpr() (*ast.Node, error) {
	tok := p.current
	switch p.current.Type {
	case token.Number:
		p.advance()
		return ast.NewNumber(tok, p.prevNum), nil
	case token.String:
		p.advance()
		return ast.NewString(tok, p.prevText), nil
	case token.Ident:
		return p.parseIdentExpr()
	case token.Minus:
		p.advance()
		if p.match(token.Number) {
			return ast.NewNumber(tok, -p.prevNum), nil
		}
		if !p.cfg.IsFeatureEnabled(config.FeatNegExpr) {
			return nil, p.unexpected(token.Number.String())
		}
		operand, err := p.parsePrimaryExpr()
		if err != nil {
			return nil, err
		}
		return ast.NewBinaryOp(tok, token.Minus, ast.NewNumber(tok, 0), operand), nil
	case token.LParen:
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
		return expr, nil
	default:
		return nil, p.unexpected("expression")
	}
}

// parseIdentExpr parses a name followed by an argument list (a call), an
// index (an array element) or nothing (a variable).
func (p *Parser) parseIdentExpr() (*ast.Node, error) {
	tok, name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}

	if p.match(token.LParen) {
		var args []*ast.Node
		if !p.check(token.RParen) {
			for {
				arg, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if !p.match(token.Comma) {
					break
				}
			}
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
		return ast.NewFuncCall(tok, name, args), nil
	}

	if p.match(token.LBracket) {
		index, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RBracket); err != nil {
			return nil, err
		}
		return ast.NewSubscript(tok, name, index), nil
	}
	return ast.NewIdent(tok, name), nil
}
