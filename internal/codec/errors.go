package codec

import "fmt"

// CompileError is a hard schema compilation failure. It aborts the protocol
// it belongs to but never the caller's other protocols.
type CompileError struct {
	File    string
	Message string
}

func (e *CompileError) Error() string {
	if e.File == "" {
		return "compile: " + e.Message
	}
	return fmt.Sprintf("compile %s: %s", e.File, e.Message)
}

// ConstraintError reports a value that decoded or encoded structurally but
// violates a declared constraint.
type ConstraintError struct {
	Path    string
	Message string
}

func (e *ConstraintError) Error() string {
	if e.Path == "" {
		return "constraint violation: " + e.Message
	}
	return fmt.Sprintf("constraint violation at %s: %s", e.Path, e.Message)
}

// DecodeError reports a structural mismatch between the input bits and the
// schema. Offset is in bits.
type DecodeError struct {
	Path    string
	Offset  int
	Message string
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("decode at bit %d: %s", e.Offset, e.Message)
	}
	return fmt.Sprintf("decode %s at bit %d: %s", e.Path, e.Offset, e.Message)
}

// EncodeError reports a value that does not fit the schema structurally.
type EncodeError struct {
	Path    string
	Message string
}

func (e *EncodeError) Error() string {
	if e.Path == "" {
		return "encode: " + e.Message
	}
	return fmt.Sprintf("encode %s: %s", e.Path, e.Message)
}
