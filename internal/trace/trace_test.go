package trace

import (
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/asnlens/asnlens/internal/codec"
	"github.com/asnlens/asnlens/internal/convert"
	"github.com/asnlens/asnlens/internal/miniasn"
	"github.com/asnlens/asnlens/internal/registry"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const personSchema = `
PersonnelData DEFINITIONS ::= BEGIN
    Person ::= SEQUENCE {
        name    IA5String,
        age     INTEGER (0..150),
        email   IA5String OPTIONAL,
        isAlive BOOLEAN DEFAULT TRUE
    }
END
`

func newTestTracer(t *testing.T) (*Tracer, codec.Specification) {
	t.Helper()
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/specs/personnel/personnel.asn", []byte(personSchema), 0o644))

	reg := registry.New(
		miniasn.NewEngine(fs),
		func() registry.Config {
			return registry.Config{Locations: []string{"/specs"}, PollInterval: time.Hour}
		},
		zerolog.Nop(),
		registry.WithFilesystem(fs),
		registry.WithBaseDirs("/work", "/bundle"),
	)
	require.Empty(t, reg.LoadAll())

	spec := reg.GetCompiled("personnel")
	require.NotNil(t, spec)
	return New(reg), spec
}

func encodePerson(t *testing.T, spec codec.Specification, value map[string]any) string {
	t.Helper()
	b, err := spec.Encode("Person", value, true)
	require.NoError(t, err)
	return hex.EncodeToString(b)
}

func TestTrace_TreeCoversInput(t *testing.T) {
	tracer, spec := newTestTracer(t)
	payload := encodePerson(t, spec, map[string]any{"name": "Bo", "age": 30})

	result, err := tracer.Trace("personnel", "Person", payload)
	require.NoError(t, err)

	assert.Equal(t, "personnel", result.Protocol)
	assert.Equal(t, "Person", result.TypeName)

	root := result.Root
	require.NotNil(t, root)
	assert.Equal(t, "Person", root.Name)
	require.NotNil(t, root.Bits)
	assert.Equal(t, 0, root.Bits.Start)
	assert.Equal(t, 42, root.Bits.End)
	assert.Equal(t, 42, result.TotalBits)

	// Absent members leave no trace: the tree shows name and age only,
	// even though the decoded value carries the materialized default.
	require.Len(t, root.Children, 2)
	assert.Equal(t, "name", root.Children[0].Name)
	assert.Equal(t, "age", root.Children[1].Name)

	decoded, ok := result.Decoded.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, decoded["isAlive"])

	// Child ranges nest inside the parent and never overlap. The first
	// child starts after the two presence bits.
	name, age := root.Children[0], root.Children[1]
	assert.Equal(t, 2, name.Bits.Start)
	assert.Equal(t, name.Bits.End, age.Bits.Start)
	assert.Equal(t, root.Bits.End, age.Bits.End)
	assert.Equal(t, 16+16, name.Bits.Length())
	assert.Equal(t, 8, age.Bits.Length())
}

func TestTrace_MatchesPlainDecode(t *testing.T) {
	tracer, spec := newTestTracer(t)
	value := map[string]any{"name": "Ada", "age": 36, "email": "a@b", "isAlive": false}
	payload := encodePerson(t, spec, value)

	result, err := tracer.Trace("personnel", "Person", payload)
	require.NoError(t, err)

	raw, err := hex.DecodeString(payload)
	require.NoError(t, err)
	plain, err := spec.Decode("Person", raw, true)
	require.NoError(t, err)

	assert.Equal(t, convert.ToWireValue(plain), result.Decoded, "tracing must not change decode results")
}

func TestTrace_Validation(t *testing.T) {
	tracer, _ := newTestTracer(t)

	cases := []struct {
		name              string
		protocol, typ, in string
	}{
		{"empty type name", "personnel", "", "00"},
		{"malformed hex", "personnel", "Person", "zz"},
		{"odd hex", "personnel", "Person", "012"},
		{"unknown protocol", "ghosts", "Person", "00"},
		{"unknown type", "personnel", "Ghost", "00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tracer.Trace(tc.protocol, tc.typ, tc.in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
}

func TestTrace_DecodeErrorsPropagate(t *testing.T) {
	tracer, _ := newTestTracer(t)

	// A single byte cannot hold the presence bits plus a name length.
	_, err := tracer.Trace("personnel", "Person", "00")
	var derr *codec.DecodeError
	require.ErrorAs(t, err, &derr)

	var verr *ValidationError
	assert.False(t, errors.As(err, &verr), "engine errors are not validation errors")
}

func TestTrace_ConstraintErrorsPropagate(t *testing.T) {
	tracer, _ := newTestTracer(t)

	// Presence bits clear, zero-length name, age field carrying 200.
	_, err := tracer.Trace("personnel", "Person", "00003200")
	var cerr *codec.ConstraintError
	require.ErrorAs(t, err, &cerr)
}

func TestTrace_Idempotent(t *testing.T) {
	tracer, spec := newTestTracer(t)
	payload := encodePerson(t, spec, map[string]any{"name": "Bo", "age": 30})

	first, err := tracer.Trace("personnel", "Person", payload)
	require.NoError(t, err)
	second, err := tracer.Trace("personnel", "Person", payload)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
