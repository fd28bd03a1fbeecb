// Package codec defines the boundary to a compiled-schema engine: the
// interfaces for compiling ASN.1 sources into a Specification, encoding and
// decoding native values against it, and introspecting compiled types.
//
// Everything above this package works purely in terms of these interfaces.
// The bundled engine lives in internal/miniasn; a different engine (for
// example one backed by a standards-grade PER implementation) only needs to
// satisfy Engine.
package codec

// Kind identifies the structural class of a compiled type.
type Kind int

const (
	KindUnknown Kind = iota
	KindSequence
	KindSet
	KindChoice
	KindSequenceOf
	KindSetOf
	KindInteger
	KindBoolean
	KindEnumerated
	KindBitString
	KindOctetString
	KindIA5String
	KindUTF8String
	KindNull
)

var kindNames = map[Kind]string{
	KindUnknown:     "Unknown",
	KindSequence:    "Sequence",
	KindSet:         "Set",
	KindChoice:      "Choice",
	KindSequenceOf:  "SequenceOf",
	KindSetOf:       "SetOf",
	KindInteger:     "Integer",
	KindBoolean:     "Boolean",
	KindEnumerated:  "Enumerated",
	KindBitString:   "BitString",
	KindOctetString: "OctetString",
	KindIA5String:   "IA5String",
	KindUTF8String:  "UTF8String",
	KindNull:        "Null",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Unknown"
}

// Constraints carries the declared restrictions of a compiled type.
// Zero value means unconstrained.
type Constraints struct {
	HasRange bool
	Min      int64
	Max      int64

	HasSize bool
	SizeMin int
	SizeMax int

	ExtensionMarker bool

	// Choices lists the named alternatives of a CHOICE or the named values
	// of an ENUMERATED, in declaration order.
	Choices []string

	// NamedBits maps bit names to positions for BIT STRING types.
	NamedBits map[string]int
}

// Type is the introspection surface of a compiled type. Members and Element
// return the same values on every call so that callers may use Type identity
// to detect self-referential definitions.
type Type interface {
	// Name is the member name inside the enclosing SEQUENCE/SET/CHOICE,
	// or the assignment name for a top-level type. May be empty.
	Name() string
	// Label is the ASN.1 type label, e.g. "SEQUENCE" or "INTEGER".
	Label() string
	Kind() Kind
	Optional() bool
	// Default returns the declared DEFAULT value, or nil.
	Default() any
	Constraints() Constraints
	// Members returns the ordered member types of a SEQUENCE, SET or
	// CHOICE, and nil for every other kind.
	Members() []Type
	// Element returns the element type of a SEQUENCE OF / SET OF, nil
	// otherwise.
	Element() Type
}

// TraceSink observes the engine's recursive decode dispatch. The engine
// calls Enter before decoding a (sub-)type, Exit after a successful decode
// and Abort when the decode failed; the error itself propagates unchanged
// through the normal return path. Offsets are bits consumed so far.
//
// A nil sink must be — and in the bundled engine is — free.
type TraceSink interface {
	Enter(t Type, bitOffset int)
	Exit(t Type, value any, bitOffset int)
	Abort(t Type)
}

// EncodingRule selects the wire encoding of a Specification.
type EncodingRule string

const (
	RulePER  EncodingRule = "per"
	RuleUPER EncodingRule = "uper"
)

// Diagnostic is a non-fatal compiler finding, e.g. an implicit import.
type Diagnostic struct {
	File    string
	Message string
}

func (d Diagnostic) String() string {
	if d.File == "" {
		return d.Message
	}
	return d.File + ": " + d.Message
}

// Specification is a compiled schema: a set of named types plus the codec
// operating on them.
//
// The native value model is:
//
//	SEQUENCE/SET        map[string]any
//	SEQUENCE OF/SET OF  []any
//	CHOICE              Choice
//	OCTET STRING        []byte
//	BIT STRING          BitString
//	INTEGER             int64
//	BOOLEAN             bool
//	ENUMERATED          string (value name)
//	character strings   string
//	NULL                nil
type Specification interface {
	// Types returns the declared top-level types by name. Callers must
	// treat the map as read-only.
	Types() map[string]Type

	Decode(typeName string, data []byte, checkConstraints bool) (any, error)

	// DecodeWithTrace decodes like Decode while reporting every recursive
	// sub-decode to sink. A nil sink makes it equivalent to Decode.
	DecodeWithTrace(typeName string, data []byte, checkConstraints bool, sink TraceSink) (any, error)

	Encode(typeName string, value any, checkConstraints bool) ([]byte, error)
}

// Engine compiles schema source files into a Specification. Non-fatal
// findings are returned alongside a successful compilation; a hard failure
// returns a *CompileError.
type Engine interface {
	Compile(files []string, rule EncodingRule) (Specification, []Diagnostic, error)
}

// Choice is the native value of an ASN.1 CHOICE: the selected alternative's
// name and its value.
type Choice struct {
	Tag   string
	Value any
}

// BitString is the native value of an ASN.1 BIT STRING. Length is in bits;
// unused trailing bits of the last byte are zero.
type BitString struct {
	Bytes  []byte
	Length int
}
