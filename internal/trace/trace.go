// Package trace instruments decode calls to produce a bit-accurate parse
// tree. Each Trace call installs its own collector as the engine's trace
// sink, so concurrent traces never interleave each other's trees, and a
// plain decode pays nothing.
package trace

import (
	"fmt"

	"github.com/asnlens/asnlens/api"
	"github.com/asnlens/asnlens/internal/codec"
	"github.com/asnlens/asnlens/internal/convert"
	"github.com/asnlens/asnlens/internal/registry"
)

// ValidationError flags bad user input: malformed hex, or an unknown
// protocol or type. Distinct from the engine's decode and constraint
// errors.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Tracer resolves protocols through the registry and runs traced decodes.
type Tracer struct {
	registry *registry.Registry
}

func New(reg *registry.Registry) *Tracer {
	return &Tracer{registry: reg}
}

// Trace decodes hexData as typeName of the named protocol, with constraint
// checking on, and returns the decoded value together with the bit-range
// tree of the decode. Decode and constraint errors from the engine
// propagate unchanged; tracing adds observability, never alters decode
// semantics.
func (t *Tracer) Trace(protocol, typeName, hexData string) (*api.TraceResult, error) {
	if typeName == "" {
		return nil, &ValidationError{Message: "type name is required"}
	}
	payload, err := convert.ParseHexStrict(hexData)
	if err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	spec := t.registry.GetCompiled(protocol)
	if spec == nil {
		return nil, &ValidationError{Message: fmt.Sprintf("protocol %q not found", protocol)}
	}
	if _, ok := spec.Types()[typeName]; !ok {
		return nil, &ValidationError{Message: fmt.Sprintf("type %q not found in protocol %q", typeName, protocol)}
	}

	col := &collector{}
	decoded, err := spec.DecodeWithTrace(typeName, payload, true, col)
	if err != nil {
		return nil, err
	}

	totalBits := len(payload) * 8
	root := col.root
	if root == nil {
		// The decode never reached the instrumented path; synthesize a
		// root spanning the whole input so callers always get a tree.
		root = &api.TraceNode{
			Name:  typeName,
			Type:  typeName,
			Value: convert.ToWireValue(decoded),
			Bits:  &api.BitRange{Start: 0, End: totalBits},
		}
	}
	if root.Name == "" {
		root.Name = typeName
	}
	if root.Type == "" {
		root.Type = typeName
	}

	consumed := totalBits
	if root.Bits != nil {
		consumed = root.Bits.End
	}

	return &api.TraceResult{
		Protocol:  protocol,
		TypeName:  typeName,
		Decoded:   convert.ToWireValue(decoded),
		Root:      root,
		TotalBits: consumed,
	}, nil
}

type frame struct {
	node  *api.TraceNode
	start int
}

// collector assembles the node hierarchy while the engine decodes. It
// implements codec.TraceSink; an aborted frame is discarded so that failed
// branches never appear in the tree.
type collector struct {
	stack []frame
	root  *api.TraceNode
}

func (c *collector) Enter(t codec.Type, bitOffset int) {
	name := t.Name()
	if name == "" {
		name = t.Label()
	}
	if name == "" {
		name = "anonymous"
	}
	c.stack = append(c.stack, frame{
		node:  &api.TraceNode{Name: name, Type: t.Label()},
		start: bitOffset,
	})
}

func (c *collector) Exit(t codec.Type, value any, bitOffset int) {
	if len(c.stack) == 0 {
		return
	}
	top := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]

	top.node.Bits = &api.BitRange{Start: top.start, End: bitOffset}
	top.node.Value = convert.ToWireValue(value)

	if len(c.stack) > 0 {
		parent := c.stack[len(c.stack)-1].node
		parent.Children = append(parent.Children, top.node)
	} else {
		c.root = top.node
	}
}

func (c *collector) Abort(t codec.Type) {
	if len(c.stack) == 0 {
		return
	}
	c.stack = c.stack[:len(c.stack)-1]
}
