package miniasn

import (
	"fmt"
	"unicode"

	"github.com/asnlens/asnlens/internal/codec"
)

// module is one parsed schema source file.
type module struct {
	name        string
	file        string
	assignments map[string]*xtype
	order       []string
	imports     map[string]bool // type names pulled in through an IMPORTS clause
	refs        []*xtype        // reference sites awaiting resolution
}

type parser struct {
	lex *lexer
	tok token
	mod *module
}

func parseFile(file, src string) (*module, error) {
	p := &parser{
		lex: newLexer(file, src),
		mod: &module{
			file:        file,
			assignments: make(map[string]*xtype),
			imports:     make(map[string]bool),
		},
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.parseModule(); err != nil {
		return nil, err
	}
	return p.mod, nil
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%s:%d: %s", p.mod.file, p.tok.line, fmt.Sprintf(format, args...))
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	if p.tok.kind != kind {
		return token{}, p.errorf("expected %s, got %q", what, p.tok.String())
	}
	tok := p.tok
	if err := p.advance(); err != nil {
		return token{}, err
	}
	return tok, nil
}

func (p *parser) accept(kind tokenKind, text string) (bool, error) {
	if p.tok.kind != kind || (text != "" && p.tok.text != text) {
		return false, nil
	}
	return true, p.advance()
}

func (p *parser) parseModule() error {
	name, err := p.expect(tIdent, "module name")
	if err != nil {
		return err
	}
	p.mod.name = name.text

	if p.tok.kind != tIdent || p.tok.text != "DEFINITIONS" {
		return p.errorf("expected DEFINITIONS, got %q", p.tok.String())
	}
	// Tag defaults (AUTOMATIC TAGS etc.) carry no meaning for this codec.
	for p.tok.kind != tAssign {
		if p.tok.kind == tEOF {
			return p.errorf("unexpected end of input in module header")
		}
		if err := p.advance(); err != nil {
			return err
		}
	}
	if _, err := p.expect(tAssign, "::="); err != nil {
		return err
	}
	if p.tok.kind != tIdent || p.tok.text != "BEGIN" {
		return p.errorf("expected BEGIN, got %q", p.tok.String())
	}
	if err := p.advance(); err != nil {
		return err
	}

	if err := p.parseHeaderClauses(); err != nil {
		return err
	}

	for !(p.tok.kind == tIdent && p.tok.text == "END") {
		if p.tok.kind == tEOF {
			return p.errorf("unexpected end of input, missing END")
		}
		if err := p.parseAssignment(); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) parseHeaderClauses() error {
	for {
		switch {
		case p.tok.kind == tIdent && p.tok.text == "EXPORTS":
			for p.tok.kind != tSemi {
				if p.tok.kind == tEOF {
					return p.errorf("unterminated EXPORTS clause")
				}
				if err := p.advance(); err != nil {
					return err
				}
			}
			if err := p.advance(); err != nil {
				return err
			}
		case p.tok.kind == tIdent && p.tok.text == "IMPORTS":
			if err := p.advance(); err != nil {
				return err
			}
			for p.tok.kind != tSemi {
				if p.tok.kind == tEOF {
					return p.errorf("unterminated IMPORTS clause")
				}
				if p.tok.kind == tIdent && p.tok.text != "FROM" {
					p.mod.imports[p.tok.text] = true
				}
				if p.tok.kind == tIdent && p.tok.text == "FROM" {
					// Skip the module reference after FROM; the name
					// before it was already recorded.
					if err := p.advance(); err != nil {
						return err
					}
				}
				if err := p.advance(); err != nil {
					return err
				}
			}
			if err := p.advance(); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (p *parser) parseAssignment() error {
	name, err := p.expect(tIdent, "type name")
	if err != nil {
		return err
	}
	if !unicode.IsUpper(rune(name.text[0])) {
		return p.errorf("type name %q must start with an uppercase letter", name.text)
	}
	if _, err := p.expect(tAssign, "::="); err != nil {
		return err
	}
	t, err := p.parseType()
	if err != nil {
		return err
	}
	if _, dup := p.mod.assignments[name.text]; dup {
		return p.errorf("duplicate definition of %q", name.text)
	}
	t.fieldName = name.text
	p.mod.assignments[name.text] = t
	p.mod.order = append(p.mod.order, name.text)
	return nil
}

func (p *parser) parseType() (*xtype, error) {
	if p.tok.kind != tIdent {
		return nil, p.errorf("expected a type, got %q", p.tok.String())
	}
	word := p.tok.text
	switch word {
	case "SEQUENCE", "SET":
		return p.parseSequenceLike(word)
	case "CHOICE":
		return p.parseChoice()
	case "INTEGER":
		return p.parseInteger()
	case "ENUMERATED":
		return p.parseEnumerated()
	case "BOOLEAN":
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &xtype{label: "BOOLEAN", kind: codec.KindBoolean, module: p.mod.name}, nil
	case "NULL":
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &xtype{label: "NULL", kind: codec.KindNull, module: p.mod.name}, nil
	case "OCTET":
		return p.parseOctetString()
	case "BIT":
		return p.parseBitString()
	case "IA5String", "PrintableString", "VisibleString", "NumericString":
		if err := p.advance(); err != nil {
			return nil, err
		}
		t := &xtype{label: word, kind: codec.KindIA5String, module: p.mod.name}
		if err := p.maybeConstraint(t); err != nil {
			return nil, err
		}
		return t, nil
	case "UTF8String":
		if err := p.advance(); err != nil {
			return nil, err
		}
		t := &xtype{label: word, kind: codec.KindUTF8String, module: p.mod.name}
		if err := p.maybeConstraint(t); err != nil {
			return nil, err
		}
		return t, nil
	default:
		if !unicode.IsUpper(rune(word[0])) {
			return nil, p.errorf("expected a type, got %q", word)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		t := &xtype{label: word, refName: word, module: p.mod.name}
		// Subtype constraints on references are accepted and discarded;
		// the referenced definition's constraints apply.
		if err := p.maybeConstraint(&xtype{}); err != nil {
			return nil, err
		}
		p.mod.refs = append(p.mod.refs, t)
		return t, nil
	}
}

func (p *parser) parseSequenceLike(word string) (*xtype, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	t := &xtype{label: word, module: p.mod.name}

	// A SIZE constraint here means this is a SEQUENCE OF / SET OF.
	if p.tok.kind == tLParen {
		if err := p.maybeConstraint(t); err != nil {
			return nil, err
		}
	}

	if p.tok.kind == tIdent && p.tok.text == "OF" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if word == "SET" {
			t.kind = codec.KindSetOf
			t.label = "SET OF"
		} else {
			t.kind = codec.KindSequenceOf
			t.label = "SEQUENCE OF"
		}
		t.element = elem
		return t, nil
	}

	if word == "SET" {
		t.kind = codec.KindSet
	} else {
		t.kind = codec.KindSequence
	}
	if _, err := p.expect(tLBrace, "{"); err != nil {
		return nil, err
	}
	for p.tok.kind != tRBrace {
		if p.tok.kind == tEllipsis {
			t.cons.ExtensionMarker = true
			if err := p.advance(); err != nil {
				return nil, err
			}
		} else {
			member, err := p.parseMember()
			if err != nil {
				return nil, err
			}
			t.members = append(t.members, member)
		}
		if ok, err := p.accept(tComma, ""); err != nil {
			return nil, err
		} else if !ok {
			break
		}
	}
	if _, err := p.expect(tRBrace, "}"); err != nil {
		return nil, err
	}
	return t, nil
}

func (p *parser) parseMember() (*xtype, error) {
	name, err := p.expect(tIdent, "member name")
	if err != nil {
		return nil, err
	}
	member, err := p.parseType()
	if err != nil {
		return nil, err
	}
	member.fieldName = name.text

	if p.tok.kind == tIdent && p.tok.text == "OPTIONAL" {
		member.optional = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	} else if p.tok.kind == tIdent && p.tok.text == "DEFAULT" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		def, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		member.def = def
	}
	return member, nil
}

func (p *parser) parseValue() (any, error) {
	switch {
	case p.tok.kind == tNumber:
		n := p.tok.num
		return n, p.advance()
	case p.tok.kind == tIdent && p.tok.text == "TRUE":
		return true, p.advance()
	case p.tok.kind == tIdent && p.tok.text == "FALSE":
		return false, p.advance()
	case p.tok.kind == tIdent:
		// Enumerated value reference.
		name := p.tok.text
		return name, p.advance()
	default:
		return nil, p.errorf("expected a value, got %q", p.tok.String())
	}
}

func (p *parser) parseChoice() (*xtype, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	t := &xtype{label: "CHOICE", kind: codec.KindChoice, module: p.mod.name}
	if _, err := p.expect(tLBrace, "{"); err != nil {
		return nil, err
	}
	for p.tok.kind != tRBrace {
		if p.tok.kind == tEllipsis {
			t.cons.ExtensionMarker = true
			if err := p.advance(); err != nil {
				return nil, err
			}
		} else {
			name, err := p.expect(tIdent, "alternative name")
			if err != nil {
				return nil, err
			}
			alt, err := p.parseType()
			if err != nil {
				return nil, err
			}
			alt.fieldName = name.text
			t.members = append(t.members, alt)
			t.cons.Choices = append(t.cons.Choices, name.text)
		}
		if ok, err := p.accept(tComma, ""); err != nil {
			return nil, err
		} else if !ok {
			break
		}
	}
	if _, err := p.expect(tRBrace, "}"); err != nil {
		return nil, err
	}
	return t, nil
}

func (p *parser) parseInteger() (*xtype, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	t := &xtype{label: "INTEGER", kind: codec.KindInteger, module: p.mod.name}
	// Named numbers (INTEGER { one(1) }) are tolerated and skipped.
	if p.tok.kind == tLBrace {
		for p.tok.kind != tRBrace {
			if p.tok.kind == tEOF {
				return nil, p.errorf("unterminated named number list")
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if err := p.maybeConstraint(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (p *parser) parseEnumerated() (*xtype, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	t := &xtype{label: "ENUMERATED", kind: codec.KindEnumerated, module: p.mod.name}
	if _, err := p.expect(tLBrace, "{"); err != nil {
		return nil, err
	}
	for p.tok.kind != tRBrace {
		if p.tok.kind == tEllipsis {
			t.cons.ExtensionMarker = true
			if err := p.advance(); err != nil {
				return nil, err
			}
		} else {
			name, err := p.expect(tIdent, "enumeration value")
			if err != nil {
				return nil, err
			}
			t.cons.Choices = append(t.cons.Choices, name.text)
			if p.tok.kind == tLParen {
				if err := p.advance(); err != nil {
					return nil, err
				}
				if _, err := p.expect(tNumber, "number"); err != nil {
					return nil, err
				}
				if _, err := p.expect(tRParen, ")"); err != nil {
					return nil, err
				}
			}
		}
		if ok, err := p.accept(tComma, ""); err != nil {
			return nil, err
		} else if !ok {
			break
		}
	}
	if _, err := p.expect(tRBrace, "}"); err != nil {
		return nil, err
	}
	return t, nil
}

func (p *parser) parseOctetString() (*xtype, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.kind != tIdent || p.tok.text != "STRING" {
		return nil, p.errorf("expected STRING after OCTET, got %q", p.tok.String())
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	t := &xtype{label: "OCTET STRING", kind: codec.KindOctetString, module: p.mod.name}
	if err := p.maybeConstraint(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (p *parser) parseBitString() (*xtype, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.kind != tIdent || p.tok.text != "STRING" {
		return nil, p.errorf("expected STRING after BIT, got %q", p.tok.String())
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	t := &xtype{label: "BIT STRING", kind: codec.KindBitString, module: p.mod.name}
	if p.tok.kind == tLBrace {
		if err := p.advance(); err != nil {
			return nil, err
		}
		t.cons.NamedBits = make(map[string]int)
		for p.tok.kind != tRBrace {
			name, err := p.expect(tIdent, "bit name")
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tLParen, "("); err != nil {
				return nil, err
			}
			pos, err := p.expect(tNumber, "bit position")
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tRParen, ")"); err != nil {
				return nil, err
			}
			t.cons.NamedBits[name.text] = int(pos.num)
			if ok, err := p.accept(tComma, ""); err != nil {
				return nil, err
			} else if !ok {
				break
			}
		}
		if _, err := p.expect(tRBrace, "}"); err != nil {
			return nil, err
		}
	}
	if err := p.maybeConstraint(t); err != nil {
		return nil, err
	}
	return t, nil
}

// maybeConstraint parses an optional parenthesized constraint: a value
// range, a single value, or SIZE(lo[..hi]), each optionally extensible with
// a trailing ", ...".
func (p *parser) maybeConstraint(t *xtype) error {
	if p.tok.kind != tLParen {
		return nil
	}
	if err := p.advance(); err != nil {
		return err
	}

	switch {
	case p.tok.kind == tIdent && p.tok.text == "SIZE":
		if err := p.advance(); err != nil {
			return err
		}
		if _, err := p.expect(tLParen, "("); err != nil {
			return err
		}
		lo, err := p.expect(tNumber, "size bound")
		if err != nil {
			return err
		}
		t.cons.HasSize = true
		t.cons.SizeMin = int(lo.num)
		t.cons.SizeMax = int(lo.num)
		if ok, err := p.accept(tDotDot, ""); err != nil {
			return err
		} else if ok {
			hi, err := p.expect(tNumber, "size bound")
			if err != nil {
				return err
			}
			t.cons.SizeMax = int(hi.num)
		}
		if ok, err := p.accept(tComma, ""); err != nil {
			return err
		} else if ok {
			if _, err := p.expect(tEllipsis, "..."); err != nil {
				return err
			}
			t.cons.ExtensionMarker = true
		}
		if _, err := p.expect(tRParen, ")"); err != nil {
			return err
		}
	case p.tok.kind == tNumber:
		lo := p.tok.num
		if err := p.advance(); err != nil {
			return err
		}
		t.cons.HasRange = true
		t.cons.Min = lo
		t.cons.Max = lo
		if ok, err := p.accept(tDotDot, ""); err != nil {
			return err
		} else if ok {
			hi, err := p.expect(tNumber, "range bound")
			if err != nil {
				return err
			}
			t.cons.Max = hi.num
		}
	default:
		// Unsupported constraint forms (MIN/MAX bounds, value sets) are
		// skipped up to the closing parenthesis.
		depth := 0
		for {
			if p.tok.kind == tEOF {
				return p.errorf("unterminated constraint")
			}
			if p.tok.kind == tLParen {
				depth++
			}
			if p.tok.kind == tRParen {
				if depth == 0 {
					break
				}
				depth--
			}
			if err := p.advance(); err != nil {
				return err
			}
		}
	}

	if ok, err := p.accept(tComma, ""); err != nil {
		return err
	} else if ok {
		if _, err := p.expect(tEllipsis, "..."); err != nil {
			return err
		}
		t.cons.ExtensionMarker = true
	}
	if _, err := p.expect(tRParen, ")"); err != nil {
		return err
	}
	return nil
}
