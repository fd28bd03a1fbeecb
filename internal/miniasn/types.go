package miniasn

import "github.com/asnlens/asnlens/internal/codec"

// xtype is the single compiled-type node. A type reference keeps ref set and
// delegates its structure to the target; member name, OPTIONAL and DEFAULT
// stay local to the referencing site.
//
// xtype values are allocated once at compile time and never copied, so
// interface identity is stable and callers can use it for cycle detection.
type xtype struct {
	fieldName string
	label     string
	kind      codec.Kind
	optional  bool
	def       any
	cons      codec.Constraints

	members []codec.Type // SEQUENCE/SET/CHOICE members, stable
	element codec.Type   // *OF element, stable

	ref     *xtype // resolved reference target
	refName string // unresolved reference name, compile-time only
	module  string // defining module, for implicit-import diagnostics
}

// resolve follows reference links to the structural definition. Reference
// cycles are rejected at compile time, so this terminates.
func (t *xtype) resolve() *xtype {
	for t.ref != nil {
		t = t.ref
	}
	return t
}

func (t *xtype) Name() string { return t.fieldName }

// Label keeps the reference name for reference members, so trees and
// traces show "Address" rather than the structural "SEQUENCE"; Kind always
// reports the resolved structure.
func (t *xtype) Label() string { return t.label }

func (t *xtype) Kind() codec.Kind { return t.resolve().kind }

func (t *xtype) Optional() bool { return t.optional }

func (t *xtype) Default() any { return t.def }

func (t *xtype) Constraints() codec.Constraints { return t.resolve().cons }

func (t *xtype) Members() []codec.Type { return t.resolve().members }

func (t *xtype) Element() codec.Type { return t.resolve().element }
