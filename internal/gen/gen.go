// Package gen emits Go type declarations for a compiled protocol, so
// captured messages can be worked with as typed values in downstream
// tooling.
package gen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/asnlens/asnlens/internal/codec"
	"mvdan.cc/gofumpt/format"
)

// Options controls generation.
type Options struct {
	// Package name of the generated file. Defaults to the protocol name.
	Package string
	// Types restricts generation to the named types; empty means all.
	Types []string
}

// Protocol generates Go declarations for the given specification. Output is
// gofumpt-formatted.
func Protocol(spec codec.Specification, protocol string, opts Options) ([]byte, error) {
	pkg := opts.Package
	if pkg == "" {
		pkg = goPackageName(protocol)
	}

	names := opts.Types
	if len(names) == 0 {
		for name := range spec.Types() {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "// Code generated by asnlens gen from protocol %s. DO NOT EDIT.\n\n", protocol)
	fmt.Fprintf(&b, "package %s\n\n", pkg)

	for _, name := range names {
		t, ok := spec.Types()[name]
		if !ok {
			return nil, fmt.Errorf("type %q not found in protocol %q", name, protocol)
		}
		emitDecl(&b, name, t)
	}

	formatted, err := format.Source([]byte(b.String()), format.Options{})
	if err != nil {
		return nil, fmt.Errorf("format generated code: %w", err)
	}
	return formatted, nil
}

func emitDecl(b *strings.Builder, name string, t codec.Type) {
	switch t.Kind() {
	case codec.KindSequence, codec.KindSet:
		fmt.Fprintf(b, "// %s is generated from ASN.1 type %s (%s).\n", exported(name), name, t.Label())
		fmt.Fprintf(b, "type %s struct {\n", exported(name))
		for _, member := range t.Members() {
			emitField(b, member, false)
		}
		fmt.Fprintf(b, "}\n\n")

	case codec.KindChoice:
		fmt.Fprintf(b, "// %s is generated from ASN.1 type %s (CHOICE); exactly one field is set.\n", exported(name), name)
		fmt.Fprintf(b, "type %s struct {\n", exported(name))
		for _, member := range t.Members() {
			emitField(b, member, true)
		}
		fmt.Fprintf(b, "}\n\n")

	case codec.KindEnumerated:
		fmt.Fprintf(b, "// %s is generated from ASN.1 type %s (ENUMERATED).\n", exported(name), name)
		fmt.Fprintf(b, "type %s string\n\n", exported(name))
		fmt.Fprintf(b, "const (\n")
		for _, value := range t.Constraints().Choices {
			fmt.Fprintf(b, "%s%s %s = %q\n", exported(name), exported(value), exported(name), value)
		}
		fmt.Fprintf(b, ")\n\n")

	default:
		fmt.Fprintf(b, "// %s is generated from ASN.1 type %s (%s).\n", exported(name), name, t.Label())
		fmt.Fprintf(b, "type %s = %s\n\n", exported(name), goType(t, false))
	}
}

func emitField(b *strings.Builder, member codec.Type, pointer bool) {
	optional := pointer || member.Optional() || member.Default() != nil
	typeName := goType(member, optional)
	tag := member.Name()
	if optional {
		tag += ",omitempty"
	}
	comment := ""
	if member.Default() != nil {
		comment = fmt.Sprintf(" // DEFAULT %v", member.Default())
	}
	fmt.Fprintf(b, "%s %s `json:%q`%s\n", exported(member.Name()), typeName, tag, comment)
}

func goType(t codec.Type, pointer bool) string {
	var base string
	switch t.Kind() {
	case codec.KindInteger:
		base = "int64"
	case codec.KindBoolean:
		base = "bool"
	case codec.KindIA5String, codec.KindUTF8String, codec.KindEnumerated:
		base = "string"
	case codec.KindOctetString, codec.KindBitString:
		// Slices already have a null state; never pointered.
		return "[]byte"
	case codec.KindSequenceOf, codec.KindSetOf:
		return "[]" + goType(t.Element(), false)
	case codec.KindSequence, codec.KindSet, codec.KindChoice:
		// Named references keep their name; anonymous nesting collapses
		// to a generic map.
		if ref := referenceName(t); ref != "" {
			base = exported(ref)
		} else {
			base = "map[string]any"
		}
	case codec.KindNull:
		return "struct{}"
	default:
		base = "any"
	}
	if pointer && base != "map[string]any" {
		return "*" + base
	}
	return base
}

// referenceName recovers the referenced definition's name from the type
// label when the member is a reference to a named composite.
func referenceName(t codec.Type) string {
	label := t.Label()
	switch label {
	case "SEQUENCE", "SET", "CHOICE", "SEQUENCE OF", "SET OF":
		return ""
	}
	return label
}

func exported(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool { return r == '-' || r == '_' })
	var b strings.Builder
	for _, part := range parts {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]) + part[1:])
	}
	if b.Len() == 0 {
		return "X"
	}
	return b.String()
}

func goPackageName(protocol string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return -1
		}
	}, protocol)
	if clean == "" || clean[0] >= '0' && clean[0] <= '9' {
		clean = "asn" + clean
	}
	return clean
}
