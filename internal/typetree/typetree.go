// Package typetree renders a compiled type as a generic, JSON-friendly tree
// for structured editors and inspectors.
package typetree

import (
	"github.com/asnlens/asnlens/api"
	"github.com/asnlens/asnlens/internal/codec"
)

// Build walks t into an api.TypeNode tree. Trees are built on demand and
// never cached.
//
// The cycle guard tracks visited types only along the current recursion
// path: a shared subtype reachable through two sibling branches is expanded
// in both, while true self-reference is cut and flagged instead of looping.
func Build(t codec.Type) *api.TypeNode {
	return describe(t, make(map[codec.Type]struct{}))
}

func describe(t codec.Type, onPath map[codec.Type]struct{}) *api.TypeNode {
	node := &api.TypeNode{
		Name:     t.Name(),
		Type:     t.Label(),
		Kind:     t.Kind().String(),
		Optional: t.Optional(),
		Default:  t.Default(),
	}
	node.Constraints = constraintsOf(t)

	if _, seen := onPath[t]; seen {
		node.Note = "recursive reference"
		return node
	}
	onPath[t] = struct{}{}
	defer delete(onPath, t)

	for _, member := range t.Members() {
		node.Children = append(node.Children, describe(member, onPath))
	}
	if elem := t.Element(); elem != nil {
		child := describe(elem, onPath)
		if child.Name == "" {
			child.Name = "element"
		}
		node.Children = append(node.Children, child)
	}
	return node
}

func constraintsOf(t codec.Type) *api.Constraints {
	cons := t.Constraints()
	out := &api.Constraints{}
	filled := false

	if cons.HasRange {
		minV, maxV := cons.Min, cons.Max
		out.Range = &api.Range{Min: &minV, Max: &maxV}
		filled = true
	}
	if cons.HasSize {
		out.Size = &api.Size{Min: cons.SizeMin, Max: cons.SizeMax}
		filled = true
	}
	if cons.ExtensionMarker {
		out.ExtensionMarker = true
		filled = true
	}
	if len(cons.Choices) > 0 {
		out.Choices = append([]string(nil), cons.Choices...)
		filled = true
	}
	if len(cons.NamedBits) > 0 {
		out.NamedBits = make(map[string]int, len(cons.NamedBits))
		for name, pos := range cons.NamedBits {
			out.NamedBits[name] = pos
		}
		filled = true
	}
	if !filled {
		return nil
	}
	return out
}
