package gen

import (
	"strings"
	"testing"

	"github.com/asnlens/asnlens/internal/codec"
	"github.com/asnlens/asnlens/internal/miniasn"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileSpec(t *testing.T, src string) codec.Specification {
	t.Helper()
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "t.asn", []byte(src), 0o644))
	spec, _, err := miniasn.NewEngine(fs).Compile([]string{"t.asn"}, codec.RulePER)
	require.NoError(t, err)
	return spec
}

const sampleSchema = `
Sample DEFINITIONS ::= BEGIN
    Person ::= SEQUENCE {
        name      IA5String,
        age       INTEGER (0..150),
        nick-name IA5String OPTIONAL,
        isAlive   BOOLEAN DEFAULT TRUE,
        home      Address OPTIONAL,
        tags      SEQUENCE OF IA5String
    }
    Address ::= SEQUENCE {
        street IA5String,
        zip    INTEGER (0..99999)
    }
    Status ::= ENUMERATED { active, suspended, gone-away }
    Blob ::= OCTET STRING
END
`

func TestProtocol_GeneratesStructs(t *testing.T) {
	spec := compileSpec(t, sampleSchema)

	out, err := Protocol(spec, "sample", Options{})
	require.NoError(t, err)
	src := string(out)

	assert.Contains(t, src, "// Code generated by asnlens gen from protocol sample. DO NOT EDIT.")
	assert.Contains(t, src, "package sample")

	// gofumpt aligns struct columns, so fields are matched loosely.
	assert.Contains(t, src, "type Person struct {")
	assert.Regexp(t, "Age\\s+int64\\s+`json:\"age\"`", src)
	assert.Regexp(t, "NickName\\s+\\*string\\s+`json:\"nick-name,omitempty\"`", src)
	assert.Regexp(t, "IsAlive\\s+\\*bool\\s+`json:\"isAlive,omitempty\"`\\s+// DEFAULT true", src)
	assert.Regexp(t, "Home\\s+\\*Address\\s+`json:\"home,omitempty\"`", src)
	assert.Regexp(t, "Tags\\s+\\[\\]string\\s+`json:\"tags\"`", src)

	assert.Contains(t, src, "type Status string")
	assert.Regexp(t, `StatusActive\s+Status = "active"`, src)
	assert.Regexp(t, `StatusGoneAway\s+Status = "gone-away"`, src)

	assert.Contains(t, src, "type Blob = []byte")
}

func TestProtocol_ChoicePointersEveryField(t *testing.T) {
	spec := compileSpec(t, `
M DEFINITIONS ::= BEGIN
    Mode ::= CHOICE { fast NULL, slow INTEGER (0..7), label IA5String }
END
`)

	out, err := Protocol(spec, "m", Options{})
	require.NoError(t, err)
	src := string(out)

	assert.Contains(t, src, "exactly one field is set")
	assert.Regexp(t, "Slow\\s+\\*int64\\s+`json:\"slow,omitempty\"`", src)
	assert.Regexp(t, "Label\\s+\\*string\\s+`json:\"label,omitempty\"`", src)
}

func TestProtocol_TypeFilterAndPackageOverride(t *testing.T) {
	spec := compileSpec(t, sampleSchema)

	out, err := Protocol(spec, "sample", Options{Package: "wire", Types: []string{"Address"}})
	require.NoError(t, err)
	src := string(out)

	assert.Contains(t, src, "package wire")
	assert.Contains(t, src, "type Address struct {")
	assert.NotContains(t, src, "type Person")

	_, err = Protocol(spec, "sample", Options{Types: []string{"Ghost"}})
	assert.Error(t, err)
}

func TestProtocol_OutputIsFormatted(t *testing.T) {
	spec := compileSpec(t, sampleSchema)

	out, err := Protocol(spec, "sample", Options{})
	require.NoError(t, err)

	// gofumpt output uses tabs for indentation and ends with a newline.
	assert.True(t, strings.HasSuffix(string(out), "\n"))
	assert.Contains(t, string(out), "\tAge")
}

func TestGoPackageName(t *testing.T) {
	assert.Equal(t, "mixed", goPackageName("Mi-xed"))
	assert.Equal(t, "asn5g", goPackageName("5G"))
	assert.Equal(t, "asn", goPackageName("---"))
}
