package clause

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrSyntax is returned for malformed path or predicate expressions.
var ErrSyntax = errors.New("clause: syntax error")

type parser struct {
	input string
	lx    *lexer
	cur   token
	peek  token
}

func newParser(input string) *parser {
	p := &parser{input: input, lx: newLexer(input)}
	p.cur = p.lx.next()
	p.peek = p.lx.next()
	return p
}

func (p *parser) advance() {
	p.cur = p.peek
	p.peek = p.lx.next()
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w at offset %d in %q: %s", ErrSyntax, p.cur.pos, p.input, fmt.Sprintf(format, args...))
}

func (p *parser) expect(t tokenType, what string) error {
	if p.cur.typ != t {
		return p.errorf("expected %s, found %q", what, p.cur.literal)
	}
	p.advance()
	return nil
}

// ParsePath parses a path expression like d.owner.name, d.list[0].name,
// KEY(d.contacts) or TREAT(d.owner AS Employee).salary.
func ParsePath(s string) (*Path, error) {
	p := newParser(s)
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	path, ok := e.(*Path)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a path", ErrSyntax, s)
	}
	if p.cur.typ != tokEOF {
		return nil, p.errorf("unexpected %q", p.cur.literal)
	}
	return path, nil
}

// MustParsePath is like ParsePath but panics on error.
func MustParsePath(s string) *Path {
	path, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return path
}

// ParseExpression parses a predicate or scalar expression.
func ParseExpression(s string) (Expression, error) {
	p := newParser(s)
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur.typ != tokEOF {
		return nil, p.errorf("unexpected %q", p.cur.literal)
	}
	return e, nil
}

func (p *parser) parseOr() (Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	if !p.cur.is("OR") {
		return left, nil
	}
	or := Or{left}
	for p.cur.is("OR") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		or = append(or, right)
	}
	return or, nil
}

func (p *parser) parseAnd() (Expression, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	if !p.cur.is("AND") {
		return left, nil
	}
	and := And{left}
	for p.cur.is("AND") {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		and = append(and, right)
	}
	return and, nil
}

func (p *parser) parseNot() (Expression, error) {
	if p.cur.is("NOT") {
		p.advance()
		e, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return Not{Expr: e}, nil
	}
	return p.parsePredicate()
}

func (p *parser) parsePredicate() (Expression, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	switch p.cur.typ {
	case tokEQ, tokNE, tokLT, tokLE, tokGT, tokGE:
		op := p.cur.typ
		p.advance()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		switch op {
		case tokEQ:
			return Eq{Left: left, Value: right}, nil
		case tokNE:
			return Neq{Left: left, Value: right}, nil
		case tokLT:
			return Lt{Left: left, Value: right}, nil
		case tokLE:
			return Lte{Left: left, Value: right}, nil
		case tokGT:
			return Gt{Left: left, Value: right}, nil
		default:
			return Gte{Left: left, Value: right}, nil
		}
	}

	if p.cur.is("IS") {
		p.advance()
		not := false
		if p.cur.is("NOT") {
			not = true
			p.advance()
		}
		switch {
		case p.cur.is("NULL"):
			p.advance()
			if not {
				return IsNotNull{Expr: left}, nil
			}
			return IsNull{Expr: left}, nil
		case p.cur.is("EMPTY"):
			p.advance()
			if path, ok := left.(*Path); ok {
				path.Collection = true
			}
			return IsEmpty{Expr: left, Not: not}, nil
		}
		return nil, p.errorf("expected NULL or EMPTY after IS")
	}

	not := false
	if p.cur.is("NOT") {
		not = true
		p.advance()
	}
	switch {
	case p.cur.is("IN"):
		p.advance()
		if err := p.expect(tokLParen, "("); err != nil {
			return nil, err
		}
		var values []any
		for p.cur.typ != tokRParen {
			v, err := p.parsePrimary()
			if err != nil {
				return nil, err
			}
			values = append(values, v)
			if p.cur.typ == tokComma {
				p.advance()
			}
		}
		p.advance()
		if not {
			return Not{Expr: IN{Left: left, Values: values}}, nil
		}
		return IN{Left: left, Values: values}, nil
	case p.cur.is("BETWEEN"):
		p.advance()
		lo, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		if !p.cur.is("AND") {
			return nil, p.errorf("expected AND in BETWEEN")
		}
		p.advance()
		hi, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return Between{Left: left, Min: lo, Max: hi, Not: not}, nil
	case p.cur.is("LIKE"):
		p.advance()
		pattern, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		if not {
			return NotLike{Left: left, Value: pattern}, nil
		}
		return Like{Left: left, Value: pattern}, nil
	case p.cur.is("MEMBER"):
		p.advance()
		if p.cur.is("OF") {
			p.advance()
		}
		coll, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		if path, ok := coll.(*Path); ok {
			path.Collection = true
		}
		return MemberOf{Value: left, Collection: coll, Not: not}, nil
	}
	if not {
		return nil, p.errorf("unexpected NOT")
	}
	return left, nil
}

func (p *parser) parsePrimary() (Expression, error) {
	tok := p.cur
	switch tok.typ {
	case tokParam:
		p.advance()
		return Param{Name: tok.literal}, nil
	case tokNumber:
		p.advance()
		if strings.Contains(tok.literal, ".") {
			f, err := strconv.ParseFloat(tok.literal, 64)
			if err != nil {
				return nil, p.errorf("invalid number %q", tok.literal)
			}
			return Num[float64]{Value: f}, nil
		}
		n, err := strconv.ParseInt(tok.literal, 10, 64)
		if err != nil {
			return nil, p.errorf("invalid number %q", tok.literal)
		}
		return Num[int64]{Value: n}, nil
	case tokString:
		p.advance()
		return Str(tok.literal), nil
	case tokLParen:
		p.advance()
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return e, nil
	case tokIdent:
		return p.parseIdent()
	}
	return nil, p.errorf("unexpected %q", tok.literal)
}

func (p *parser) parseIdent() (Expression, error) {
	tok := p.cur
	switch {
	case tok.is("NULL"):
		p.advance()
		return Null{}, nil
	case tok.is("TRUE"):
		p.advance()
		return Bool(true), nil
	case tok.is("FALSE"):
		p.advance()
		return Bool(false), nil
	}

	if p.peek.typ != tokLParen {
		return p.parsePathFrom(nil)
	}

	upper := strings.ToUpper(tok.literal)
	switch upper {
	case "TREAT":
		p.advance()
		p.advance()
		inner, err := p.parseInnerPath()
		if err != nil {
			return nil, err
		}
		if !p.cur.is("AS") {
			return nil, p.errorf("expected AS in TREAT")
		}
		p.advance()
		if p.cur.typ != tokIdent {
			return nil, p.errorf("expected type name in TREAT")
		}
		typ := p.cur.literal
		p.advance()
		if err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return p.parsePathFrom(Treat{Path: inner, Type: typ})
	case "KEY", "VALUE", "ENTRY", "INDEX":
		p.advance()
		p.advance()
		inner, err := p.parseInnerPath()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return p.parsePathFrom(Qualified{Qualifier: Qualifier(upper), Path: inner})
	}

	p.advance()
	p.advance()
	fn := Func{Name: upper}
	if p.cur.is("DISTINCT") {
		fn.Distinct = true
		p.advance()
	}
	for p.cur.typ != tokRParen {
		arg, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if path, ok := arg.(*Path); ok && upper == "SIZE" {
			path.Collection = true
		}
		fn.Args = append(fn.Args, arg)
		if p.cur.typ == tokComma {
			p.advance()
		} else if p.cur.typ != tokRParen {
			return nil, p.errorf("expected , or ) in function call")
		}
	}
	p.advance()
	return fn, nil
}

func (p *parser) parseInnerPath() (*Path, error) {
	e, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	path, ok := e.(*Path)
	if !ok {
		return nil, p.errorf("expected path")
	}
	return path, nil
}

// parsePathFrom parses property segments, optionally after a leading treat
// or qualified segment.
func (p *parser) parsePathFrom(first Element) (Expression, error) {
	path := &Path{}
	if first != nil {
		path.Elements = append(path.Elements, first)
		if p.cur.typ != tokDot {
			return path, nil
		}
		p.advance()
	}
	for {
		if p.cur.typ != tokIdent {
			return nil, p.errorf("expected attribute name, found %q", p.cur.literal)
		}
		name := p.cur.literal
		p.advance()
		if p.cur.typ == tokLBracket {
			p.advance()
			idx, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(tokRBracket, "]"); err != nil {
				return nil, err
			}
			path.Elements = append(path.Elements, ArrayAccess{Name: name, Index: idx})
		} else {
			path.Elements = append(path.Elements, Property{Name: name})
		}
		if p.cur.typ != tokDot {
			return path, nil
		}
		p.advance()
	}
}
