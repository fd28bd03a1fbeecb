// Package api holds the JSON-facing types shared between the CLI and the
// internal packages: protocol metadata, type trees and decode traces.
package api

// ProtocolMetadata describes one compiled protocol.
type ProtocolMetadata struct {
	// Name of the protocol (directory or file stem it was compiled from).
	Name string `json:"name"`
	// Files lists the schema source files, relative to the protocol root.
	Files []string `json:"files"`
	// Types lists the declared top-level type names, sorted.
	Types []string `json:"types"`
	// IsBundled is true when the protocol was found next to the executable
	// rather than in a user-configured location.
	IsBundled bool `json:"isBundled"`
	// Diagnostics carries non-fatal compiler findings.
	Diagnostics []string `json:"diagnostics,omitempty"`
}

// Range is a numeric value range constraint.
type Range struct {
	Min *int64 `json:"min,omitempty"`
	Max *int64 `json:"max,omitempty"`
}

// Size is a size constraint in elements, bytes or bits depending on the
// constrained type.
type Size struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Constraints is the JSON rendering of a type's declared restrictions.
type Constraints struct {
	Range           *Range         `json:"range,omitempty"`
	Size            *Size          `json:"size,omitempty"`
	ExtensionMarker bool           `json:"extensionMarker,omitempty"`
	Choices         []string       `json:"choices,omitempty"`
	NamedBits       map[string]int `json:"namedBits,omitempty"`
}

// TypeNode is one node of an introspected type tree.
type TypeNode struct {
	Name        string       `json:"name,omitempty"`
	Type        string       `json:"type"`
	Kind        string       `json:"kind"`
	Optional    bool         `json:"optional,omitempty"`
	Default     any          `json:"default,omitempty"`
	Constraints *Constraints `json:"constraints,omitempty"`
	// Note flags special structure, currently only "recursive reference".
	Note     string      `json:"note,omitempty"`
	Children []*TypeNode `json:"children,omitempty"`
}

// BitRange is a half-open range of bit offsets into the decoded input.
type BitRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Length returns the number of bits covered by the range.
func (r BitRange) Length() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start
}

// TraceNode maps one decoded field to the bits it consumed.
type TraceNode struct {
	Name     string       `json:"name"`
	Type     string       `json:"type"`
	Value    any          `json:"value"`
	Bits     *BitRange    `json:"bits,omitempty"`
	Children []*TraceNode `json:"children,omitempty"`
}

// TraceResult is the outcome of tracing one decode call.
type TraceResult struct {
	Protocol string     `json:"protocol"`
	TypeName string     `json:"typeName"`
	Decoded  any        `json:"decoded"`
	Root     *TraceNode `json:"root"`
	// TotalBits is the number of input bits the decode actually consumed,
	// which may be less than the full payload length.
	TotalBits int `json:"totalBits"`
}
