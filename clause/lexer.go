package clause

import (
	"strings"
)

type tokenType int

const (
	tokEOF tokenType = iota
	tokIllegal
	tokIdent
	tokNumber
	tokString
	tokParam
	tokEQ
	tokNE
	tokLT
	tokLE
	tokGT
	tokGE
	tokDot
	tokComma
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
)

type token struct {
	typ     tokenType
	literal string
	pos     int
}

// is reports whether the token is the given keyword, case-insensitively.
func (t token) is(keyword string) bool {
	return t.typ == tokIdent && strings.EqualFold(t.literal, keyword)
}

// lexer tokenizes path and predicate expressions.
type lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
}

func newLexer(input string) *lexer {
	l := &lexer{input: input}
	l.readChar()
	return l
}

func (l *lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *lexer) next() token {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}

	pos := l.pos
	single := func(t tokenType) token {
		lit := string(l.ch)
		l.readChar()
		return token{typ: t, literal: lit, pos: pos}
	}

	switch {
	case l.ch == 0:
		return token{typ: tokEOF, pos: pos}
	case l.ch == '.':
		return single(tokDot)
	case l.ch == ',':
		return single(tokComma)
	case l.ch == '(':
		return single(tokLParen)
	case l.ch == ')':
		return single(tokRParen)
	case l.ch == '[':
		return single(tokLBracket)
	case l.ch == ']':
		return single(tokRBracket)
	case l.ch == '=':
		return single(tokEQ)
	case l.ch == '!' && l.peekChar() == '=':
		l.readChar()
		l.readChar()
		return token{typ: tokNE, literal: "!=", pos: pos}
	case l.ch == '<':
		l.readChar()
		switch l.ch {
		case '=':
			l.readChar()
			return token{typ: tokLE, literal: "<=", pos: pos}
		case '>':
			l.readChar()
			return token{typ: tokNE, literal: "<>", pos: pos}
		}
		return token{typ: tokLT, literal: "<", pos: pos}
	case l.ch == '>':
		l.readChar()
		if l.ch == '=' {
			l.readChar()
			return token{typ: tokGE, literal: ">=", pos: pos}
		}
		return token{typ: tokGT, literal: ">", pos: pos}
	case l.ch == ':':
		l.readChar()
		start := l.pos
		for isIdentChar(l.ch) {
			l.readChar()
		}
		if start == l.pos {
			return token{typ: tokIllegal, literal: l.input[pos:l.pos], pos: pos}
		}
		return token{typ: tokParam, literal: l.input[start:l.pos], pos: pos}
	case l.ch == '\'':
		return l.readString(pos)
	case isDigit(l.ch) || (l.ch == '-' && isDigit(l.peekChar())):
		l.readChar()
		for isDigit(l.ch) || (l.ch == '.' && isDigit(l.peekChar())) {
			l.readChar()
		}
		return token{typ: tokNumber, literal: l.input[pos:l.pos], pos: pos}
	case isIdentStart(l.ch):
		for isIdentChar(l.ch) {
			l.readChar()
		}
		return token{typ: tokIdent, literal: l.input[pos:l.pos], pos: pos}
	}
	return single(tokIllegal)
}

func (l *lexer) readString(pos int) token {
	var sb strings.Builder
	l.readChar()
	for {
		switch l.ch {
		case 0:
			return token{typ: tokIllegal, literal: l.input[pos:], pos: pos}
		case '\'':
			if l.peekChar() == '\'' {
				sb.WriteByte('\'')
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar()
			return token{typ: tokString, literal: sb.String(), pos: pos}
		}
		sb.WriteByte(l.ch)
		l.readChar()
	}
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isIdentStart(ch byte) bool {
	return ch == '_' || ch == '$' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentChar(ch byte) bool { return isIdentStart(ch) || isDigit(ch) }
