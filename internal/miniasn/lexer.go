package miniasn

import (
	"fmt"
	"strconv"
	"unicode"
)

type tokenKind int

const (
	tEOF tokenKind = iota
	tIdent
	tNumber
	tAssign   // ::=
	tLBrace   // {
	tRBrace   // }
	tLParen   // (
	tRParen   // )
	tComma    // ,
	tSemi     // ;
	tDotDot   // ..
	tEllipsis // ...
)

type token struct {
	kind tokenKind
	text string
	num  int64
	line int
}

func (t token) String() string {
	switch t.kind {
	case tEOF:
		return "end of input"
	case tNumber:
		return strconv.FormatInt(t.num, 10)
	default:
		return t.text
	}
}

// lexer tokenizes one ASN.1 source file. Comments run from "--" to the end
// of the line.
type lexer struct {
	file string
	src  []rune
	pos  int
	line int
}

func newLexer(file, src string) *lexer {
	return &lexer{file: file, src: []rune(src), line: 1}
}

func (l *lexer) errorf(format string, args ...any) error {
	return fmt.Errorf("%s:%d: %s", l.file, l.line, fmt.Sprintf(format, args...))
}

func (l *lexer) peekRune() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) at(offset int) rune {
	if l.pos+offset >= len(l.src) {
		return 0
	}
	return l.src[l.pos+offset]
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\n':
			l.line++
			l.pos++
		case unicode.IsSpace(c):
			l.pos++
		case c == '-' && l.at(1) == '-':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

func (l *lexer) next() (token, error) {
	l.skipSpace()
	if l.pos >= len(l.src) {
		return token{kind: tEOF, line: l.line}, nil
	}

	c := l.src[l.pos]
	start := l.pos
	switch {
	case c == ':':
		if l.at(1) == ':' && l.at(2) == '=' {
			l.pos += 3
			return token{kind: tAssign, text: "::=", line: l.line}, nil
		}
		return token{}, l.errorf("unexpected %q", c)
	case c == '{':
		l.pos++
		return token{kind: tLBrace, text: "{", line: l.line}, nil
	case c == '}':
		l.pos++
		return token{kind: tRBrace, text: "}", line: l.line}, nil
	case c == '(':
		l.pos++
		return token{kind: tLParen, text: "(", line: l.line}, nil
	case c == ')':
		l.pos++
		return token{kind: tRParen, text: ")", line: l.line}, nil
	case c == ',':
		l.pos++
		return token{kind: tComma, text: ",", line: l.line}, nil
	case c == ';':
		l.pos++
		return token{kind: tSemi, text: ";", line: l.line}, nil
	case c == '.':
		if l.at(1) == '.' && l.at(2) == '.' {
			l.pos += 3
			return token{kind: tEllipsis, text: "...", line: l.line}, nil
		}
		if l.at(1) == '.' {
			l.pos += 2
			return token{kind: tDotDot, text: "..", line: l.line}, nil
		}
		return token{}, l.errorf("unexpected %q", c)
	case c == '-' || unicode.IsDigit(c):
		if c == '-' {
			l.pos++
			if !unicode.IsDigit(l.peekRune()) {
				return token{}, l.errorf("unexpected %q", c)
			}
		}
		for l.pos < len(l.src) && unicode.IsDigit(l.src[l.pos]) {
			l.pos++
		}
		n, err := strconv.ParseInt(string(l.src[start:l.pos]), 10, 64)
		if err != nil {
			return token{}, l.errorf("bad number %q", string(l.src[start:l.pos]))
		}
		return token{kind: tNumber, num: n, line: l.line}, nil
	case unicode.IsLetter(c):
		for l.pos < len(l.src) {
			r := l.src[l.pos]
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
				// A hyphen starts a comment when doubled.
				if r == '-' && l.at(1) == '-' {
					break
				}
				l.pos++
				continue
			}
			break
		}
		return token{kind: tIdent, text: string(l.src[start:l.pos]), line: l.line}, nil
	default:
		return token{}, l.errorf("unexpected %q", c)
	}
}
