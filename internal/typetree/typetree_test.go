package typetree

import (
	"testing"

	"github.com/asnlens/asnlens/internal/codec"
	"github.com/asnlens/asnlens/internal/miniasn"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileType(t *testing.T, src, name string) codec.Type {
	t.Helper()
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "t.asn", []byte(src), 0o644))
	spec, _, err := miniasn.NewEngine(fs).Compile([]string{"t.asn"}, codec.RulePER)
	require.NoError(t, err)
	typ, ok := spec.Types()[name]
	require.True(t, ok)
	return typ
}

func TestBuild_Flat(t *testing.T) {
	person := compileType(t, `
M DEFINITIONS ::= BEGIN
    Person ::= SEQUENCE {
        name    IA5String,
        age     INTEGER (0..150),
        email   IA5String OPTIONAL,
        isAlive BOOLEAN DEFAULT TRUE
    }
END
`, "Person")

	node := Build(person)
	assert.Equal(t, "Person", node.Name)
	assert.Equal(t, "Sequence", node.Kind)
	require.Len(t, node.Children, 4)

	age := node.Children[1]
	assert.Equal(t, "age", age.Name)
	require.NotNil(t, age.Constraints)
	require.NotNil(t, age.Constraints.Range)
	assert.Equal(t, int64(0), *age.Constraints.Range.Min)
	assert.Equal(t, int64(150), *age.Constraints.Range.Max)

	email := node.Children[2]
	assert.True(t, email.Optional)
	assert.Nil(t, email.Constraints)

	isAlive := node.Children[3]
	assert.Equal(t, true, isAlive.Default)
}

func TestBuild_RecursiveReferenceIsCut(t *testing.T) {
	nodeType := compileType(t, `
M DEFINITIONS ::= BEGIN
    Node ::= SEQUENCE {
        value INTEGER (0..7),
        next  Node OPTIONAL
    }
END
`, "Node")

	tree := Build(nodeType)
	require.Len(t, tree.Children, 2)

	next := tree.Children[1]
	assert.Equal(t, "next", next.Name)
	assert.Equal(t, "Node", next.Type, "reference members keep the referenced name")
	assert.Empty(t, next.Note)
	require.Len(t, next.Children, 2)

	// One level deeper the same reference appears on the path again and the
	// expansion stops.
	inner := next.Children[1]
	assert.Equal(t, "next", inner.Name)
	assert.Equal(t, "recursive reference", inner.Note)
	assert.Empty(t, inner.Children)
}

func TestBuild_SharedSubtypeExpandsInBothBranches(t *testing.T) {
	pair := compileType(t, `
M DEFINITIONS ::= BEGIN
    Pair ::= SEQUENCE { a Point, b Point }
    Point ::= SEQUENCE { x INTEGER (0..7), y INTEGER (0..7) }
END
`, "Pair")

	tree := Build(pair)
	require.Len(t, tree.Children, 2)
	for _, child := range tree.Children {
		assert.Empty(t, child.Note)
		assert.Len(t, child.Children, 2, "shared subtypes expand fully in sibling branches")
	}
}

func TestBuild_SequenceOfElement(t *testing.T) {
	list := compileType(t, `
M DEFINITIONS ::= BEGIN
    Readings ::= SEQUENCE (SIZE(1..8)) OF INTEGER (-40..85)
END
`, "Readings")

	tree := Build(list)
	assert.Equal(t, "SequenceOf", tree.Kind)
	require.NotNil(t, tree.Constraints)
	require.NotNil(t, tree.Constraints.Size)
	assert.Equal(t, 1, tree.Constraints.Size.Min)
	assert.Equal(t, 8, tree.Constraints.Size.Max)

	require.Len(t, tree.Children, 1)
	elem := tree.Children[0]
	assert.Equal(t, "element", elem.Name, "anonymous elements get a synthetic name")
	assert.Equal(t, "Integer", elem.Kind)
}

func TestBuild_ChoicesAndNamedBits(t *testing.T) {
	msg := compileType(t, `
M DEFINITIONS ::= BEGIN
    Msg ::= CHOICE { ping NULL, speed INTEGER (0..7) }
END
`, "Msg")

	tree := Build(msg)
	require.NotNil(t, tree.Constraints)
	assert.Equal(t, []string{"ping", "speed"}, tree.Constraints.Choices)

	perms := compileType(t, `
M DEFINITIONS ::= BEGIN
    Perms ::= BIT STRING { read(0), write(1) } (SIZE(2))
END
`, "Perms")

	tree = Build(perms)
	require.NotNil(t, tree.Constraints)
	assert.Equal(t, map[string]int{"read": 0, "write": 1}, tree.Constraints.NamedBits)
}
