package parser

import (
	"fmt"
	"strconv"

	"github.com/jabolina/go-sigmap/pkg/sigmap/expr/lexer"
)

// Error is returned on any grammar violation, carrying the source offset
// where parsing failed (spec.md §4.F).
type Error struct {
	Offset  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Offset, e.Message)
}

type parser struct {
	toks []lexer.Token
	pos  int
}

// Parse lexes and parses src into a Program. Parsing is a pure function of
// src (spec.md §8's "parse(s) depends only on s" invariant): no package
// state is consulted or mutated.
func Parse(src string) (*Program, error) {
	toks, err := lexer.Lex(src)
	if err != nil {
		le := err.(*lexer.Error)
		return nil, &Error{Offset: le.Offset, Message: le.Message}
	}
	p := &parser{toks: toks}
	return p.parseProgram()
}

func (p *parser) cur() lexer.Token  { return p.toks[p.pos] }
func (p *parser) peekKind() lexer.Kind { return p.toks[p.pos].Kind }

func (p *parser) advance() lexer.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expect(k lexer.Kind, what string) (lexer.Token, error) {
	if p.peekKind() != k {
		return lexer.Token{}, &Error{Offset: p.cur().Pos, Message: "expected " + what}
	}
	return p.advance(), nil
}

func (p *parser) parseProgram() (*Program, error) {
	prog := &Program{}
	for {
		stmt, err := p.parseAssign()
		if err != nil {
			return nil, err
		}
		prog.Statements = append(prog.Statements, stmt)
		if p.peekKind() == lexer.Semicolon {
			p.advance()
			if p.peekKind() == lexer.EOF {
				break
			}
			continue
		}
		break
	}
	if p.peekKind() != lexer.EOF {
		return nil, &Error{Offset: p.cur().Pos, Message: "unexpected trailing input"}
	}
	return prog, nil
}

// parseAssign parses one "target = expr" statement, including the
// y{-k}=literal history initializer form and y[a:b]=expr slice-assign form.
func (p *parser) parseAssign() (Assign, error) {
	if p.peekKind() != lexer.Ident {
		return Assign{}, &Error{Offset: p.cur().Pos, Message: "expected assignment target"}
	}
	name := p.advance().Text
	target := AssignTarget{Name: name}

	if p.peekKind() == lexer.LBracket {
		p.advance()
		from, err := p.parseIntLiteral()
		if err != nil {
			return Assign{}, err
		}
		if _, err := p.expect(lexer.Colon, "':'"); err != nil {
			return Assign{}, err
		}
		to, err := p.parseIntLiteral()
		if err != nil {
			return Assign{}, err
		}
		if _, err := p.expect(lexer.RBracket, "']'"); err != nil {
			return Assign{}, err
		}
		target.HasSlice = true
		target.From, target.To = from, to
	}

	if p.peekKind() == lexer.LBrace {
		p.advance()
		if _, err := p.expect(lexer.Minus, "'-' in history index"); err != nil {
			return Assign{}, err
		}
		k, err := p.parseIntLiteral()
		if err != nil {
			return Assign{}, err
		}
		if _, err := p.expect(lexer.RBrace, "'}'"); err != nil {
			return Assign{}, err
		}
		target.HasHistoryIdx = true
		target.HistoryIndex = -k
	}

	if _, err := p.expect(lexer.Assign, "'='"); err != nil {
		return Assign{}, err
	}
	value, err := p.parseTernary()
	if err != nil {
		return Assign{}, err
	}
	return Assign{Target: target, Value: value}, nil
}

func (p *parser) parseIntLiteral() (int, error) {
	neg := false
	if p.peekKind() == lexer.Minus {
		p.advance()
		neg = true
	}
	if p.peekKind() != lexer.IntLit {
		return 0, &Error{Offset: p.cur().Pos, Message: "expected integer"}
	}
	tok := p.advance()
	v, err := strconv.Atoi(tok.Text)
	if err != nil {
		return 0, &Error{Offset: tok.Pos, Message: "invalid integer: " + tok.Text}
	}
	if neg {
		v = -v
	}
	return v, nil
}

func (p *parser) parseTernary() (Expr, error) {
	cond, err := p.parseLogicalOr()
	if err != nil {
		return nil, err
	}
	if p.peekKind() != lexer.Question {
		return cond, nil
	}
	p.advance()
	if p.peekKind() == lexer.Colon {
		p.advance()
		elseV, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		return Ternary{Cond: cond, Then: nil, Else: elseV}, nil
	}
	thenV, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.Colon, "':'"); err != nil {
		return nil, err
	}
	elseV, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	return Ternary{Cond: cond, Then: thenV, Else: elseV}, nil
}

func (p *parser) parseLogicalOr() (Expr, error) {
	l, err := p.parseLogicalAnd()
	if err != nil {
		return nil, err
	}
	for p.peekKind() == lexer.OrOr {
		p.advance()
		r, err := p.parseLogicalAnd()
		if err != nil {
			return nil, err
		}
		l = Logical{Op: "||", L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseLogicalAnd() (Expr, error) {
	l, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.peekKind() == lexer.AndAnd {
		p.advance()
		r, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		l = Logical{Op: "&&", L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseEquality() (Expr, error) {
	l, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.peekKind() == lexer.EqEq || p.peekKind() == lexer.Ne {
		op := p.advance()
		r, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		l = Binary{Op: op.Text, L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseComparison() (Expr, error) {
	l, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.peekKind() == lexer.Lt || p.peekKind() == lexer.Le || p.peekKind() == lexer.Gt || p.peekKind() == lexer.Ge {
		op := p.advance()
		r, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		l = Binary{Op: op.Text, L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseAdditive() (Expr, error) {
	l, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.peekKind() == lexer.Plus || p.peekKind() == lexer.Minus {
		op := p.advance()
		r, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		l = Binary{Op: op.Text, L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseMultiplicative() (Expr, error) {
	l, err := p.parsePower()
	if err != nil {
		return nil, err
	}
	for p.peekKind() == lexer.Star || p.peekKind() == lexer.Slash || p.peekKind() == lexer.Percent {
		op := p.advance()
		r, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		l = Binary{Op: op.Text, L: l, R: r}
	}
	return l, nil
}

func (p *parser) parsePower() (Expr, error) {
	l, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if p.peekKind() == lexer.Caret {
		p.advance()
		r, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		return Binary{Op: "^", L: l, R: r}, nil
	}
	return l, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.peekKind() == lexer.Minus {
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Unary{Op: "-", X: x}, nil
	}
	if p.peekKind() == lexer.Not {
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Unary{Op: "!", X: x}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (Expr, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peekKind() {
		case lexer.LBracket:
			p.advance()
			from, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.Colon, "':' in slice"); err != nil {
				return nil, err
			}
			to, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.RBracket, "']'"); err != nil {
				return nil, err
			}
			base = Slice{Base: base, From: from, To: to}
		case lexer.LBrace:
			p.advance()
			if _, err := p.expect(lexer.Minus, "'-' in history index"); err != nil {
				return nil, err
			}
			k, err := p.parseIntLiteral()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.RBrace, "'}'"); err != nil {
				return nil, err
			}
			base = History{Base: base, Index: -k}
		default:
			return base, nil
		}
	}
}

func (p *parser) parsePrimary() (Expr, error) {
	tok := p.cur()
	switch tok.Kind {
	case lexer.IntLit:
		p.advance()
		v, _ := strconv.ParseFloat(tok.Text, 64)
		return Literal{Value: v, IsInt: true}, nil
	case lexer.FloatLit:
		p.advance()
		v, _ := strconv.ParseFloat(tok.Text, 64)
		return Literal{Value: v}, nil
	case lexer.DoubleLit:
		p.advance()
		v, _ := strconv.ParseFloat(tok.Text, 64)
		return Literal{Value: v, Double: true}, nil
	case lexer.LParen:
		p.advance()
		e, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RParen, "')'"); err != nil {
			return nil, err
		}
		return e, nil
	case lexer.LBracket:
		p.advance()
		var elems []Expr
		if p.peekKind() != lexer.RBracket {
			for {
				e, err := p.parseTernary()
				if err != nil {
					return nil, err
				}
				elems = append(elems, e)
				if p.peekKind() == lexer.Comma {
					p.advance()
					continue
				}
				break
			}
		}
		if _, err := p.expect(lexer.RBracket, "']'"); err != nil {
			return nil, err
		}
		return VecLiteral{Elems: elems}, nil
	case lexer.Ident:
		p.advance()
		if p.peekKind() == lexer.LParen {
			p.advance()
			var args []Expr
			if p.peekKind() != lexer.RParen {
				for {
					a, err := p.parseTernary()
					if err != nil {
						return nil, err
					}
					args = append(args, a)
					if p.peekKind() == lexer.Comma {
						p.advance()
						continue
					}
					break
				}
			}
			if _, err := p.expect(lexer.RParen, "')'"); err != nil {
				return nil, err
			}
			return Call{Name: tok.Text, Args: args}, nil
		}
		return VarRef{Name: tok.Text}, nil
	default:
		return nil, &Error{Offset: tok.Pos, Message: "unexpected token " + tok.Text}
	}
}
