// Package miniasn is the bundled compiled-schema engine. It compiles a
// pragmatic ASN.1 subset (SEQUENCE/SET/CHOICE, the *OF types, INTEGER,
// BOOLEAN, ENUMERATED, BIT/OCTET STRING, IA5String/UTF8String, NULL, value
// ranges, SIZE constraints, OPTIONAL/DEFAULT, extension markers, cross-file
// type references) and encodes values with a deterministic bit-oriented
// binary codec:
//
//   - SEQUENCE/SET: one presence bit per OPTIONAL/DEFAULT member, then the
//     present members in declaration order
//   - CHOICE: alternative index in the minimal number of bits, then the value
//   - constrained INTEGER and ENUMERATED: offset from the lower bound in the
//     minimal number of bits; unconstrained INTEGER: 8-bit byte count, then
//     big-endian two's complement
//   - BIT/OCTET STRING and the *OF types: contents directly when the size
//     constraint is fixed, otherwise a 16-bit length first
//   - character strings: 16-bit byte length, then the bytes
//
// The encoding is deliberately not X.691 PER; swapping in a standards-grade
// engine means implementing the interfaces in internal/codec.
package miniasn

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/asnlens/asnlens/internal/codec"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// Engine implements codec.Engine on top of a billy filesystem, so tests can
// compile from an in-memory tree.
type Engine struct {
	fs billy.Filesystem
}

// NewEngine returns an engine reading schema sources from fs. A nil fs means
// the host filesystem.
func NewEngine(fs billy.Filesystem) *Engine {
	if fs == nil {
		fs = osfs.New("/")
	}
	return &Engine{fs: fs}
}

var supportedRules = map[codec.EncodingRule]bool{
	codec.RulePER:  true,
	codec.RuleUPER: true,
}

// Compile parses and links the given schema files into one Specification.
// All files form a single namespace; references across files resolve, with a
// diagnostic when the referencing module lacks an IMPORTS clause for the
// name.
func (e *Engine) Compile(files []string, rule codec.EncodingRule) (codec.Specification, []codec.Diagnostic, error) {
	if len(files) == 0 {
		return nil, nil, &codec.CompileError{Message: "no schema files given"}
	}
	if !supportedRules[rule] {
		return nil, nil, &codec.CompileError{Message: fmt.Sprintf("unsupported encoding rule %q", rule)}
	}

	var modules []*module
	for _, file := range files {
		src, err := e.readFile(file)
		if err != nil {
			return nil, nil, &codec.CompileError{File: file, Message: err.Error()}
		}
		mod, err := parseFile(file, src)
		if err != nil {
			return nil, nil, &codec.CompileError{Message: err.Error()}
		}
		modules = append(modules, mod)
	}

	table := make(map[string]*xtype)
	definedIn := make(map[string]*module)
	for _, mod := range modules {
		for name, t := range mod.assignments {
			if _, dup := table[name]; dup {
				return nil, nil, &codec.CompileError{
					File:    mod.file,
					Message: fmt.Sprintf("type %q defined more than once", name),
				}
			}
			table[name] = t
			definedIn[name] = mod
		}
	}

	var diags []codec.Diagnostic
	for _, mod := range modules {
		for _, ref := range mod.refs {
			target, ok := table[ref.refName]
			if !ok {
				return nil, nil, &codec.CompileError{
					File:    mod.file,
					Message: fmt.Sprintf("unresolved type reference %q", ref.refName),
				}
			}
			ref.ref = target
			defMod := definedIn[ref.refName]
			if defMod.name != mod.name && !mod.imports[ref.refName] {
				diags = append(diags, codec.Diagnostic{
					File:    mod.file,
					Message: fmt.Sprintf("implicit import of %q from module %s", ref.refName, defMod.name),
				})
			}
		}
	}

	if err := rejectReferenceCycles(table); err != nil {
		return nil, nil, err
	}

	types := make(map[string]codec.Type, len(table))
	for name, t := range table {
		types[name] = t
	}
	return &specification{rule: rule, types: types}, diags, nil
}

func (e *Engine) readFile(path string) (string, error) {
	f, err := e.fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// rejectReferenceCycles fails on assignments that are nothing but references
// back to themselves (A ::= B, B ::= A). Recursion through a composite
// member is fine; a pure reference loop has no structure to decode.
func rejectReferenceCycles(table map[string]*xtype) error {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		seen := map[*xtype]bool{}
		t := table[name]
		for t.ref != nil {
			if seen[t] {
				return &codec.CompileError{
					Message: fmt.Sprintf("circular type reference involving %q", name),
				}
			}
			seen[t] = true
			t = t.ref
		}
	}
	return nil
}

// SchemaExtensions are the file suffixes the engine recognizes as schema
// sources.
var SchemaExtensions = []string{".asn", ".asn1"}

// IsSchemaFile reports whether path has a recognized schema extension.
func IsSchemaFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SchemaExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

type specification struct {
	rule  codec.EncodingRule
	types map[string]codec.Type
}

func (s *specification) Types() map[string]codec.Type { return s.types }

func (s *specification) Decode(typeName string, data []byte, checkConstraints bool) (any, error) {
	return s.DecodeWithTrace(typeName, data, checkConstraints, nil)
}

func (s *specification) DecodeWithTrace(typeName string, data []byte, checkConstraints bool, sink codec.TraceSink) (any, error) {
	t, ok := s.types[typeName]
	if !ok {
		return nil, &codec.DecodeError{Message: fmt.Sprintf("unknown type %q", typeName)}
	}
	r := newBitReader(data)
	d := &decoder{r: r, sink: sink, check: checkConstraints}
	return d.decode(t.(*xtype), typeName)
}

func (s *specification) Encode(typeName string, value any, checkConstraints bool) ([]byte, error) {
	t, ok := s.types[typeName]
	if !ok {
		return nil, &codec.EncodeError{Message: fmt.Sprintf("unknown type %q", typeName)}
	}
	w := &bitWriter{}
	enc := &encoder{w: w, check: checkConstraints}
	if err := enc.encode(t.(*xtype), value, typeName); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}
