package miniasn

import (
	"fmt"
	"reflect"

	"github.com/asnlens/asnlens/internal/codec"
)

type encoder struct {
	w     *bitWriter
	check bool
}

func (e *encoder) fail(path, format string, args ...any) error {
	return &codec.EncodeError{Path: path, Message: fmt.Sprintf(format, args...)}
}

func (e *encoder) encode(t *xtype, value any, path string) error {
	rt := t.resolve()
	switch rt.kind {
	case codec.KindSequence, codec.KindSet:
		return e.encodeSequence(rt, value, path)
	case codec.KindChoice:
		return e.encodeChoice(rt, value, path)
	case codec.KindSequenceOf, codec.KindSetOf:
		return e.encodeSequenceOf(rt, value, path)
	case codec.KindInteger:
		return e.encodeInteger(rt, value, path)
	case codec.KindBoolean:
		b, ok := value.(bool)
		if !ok {
			return e.fail(path, "expected BOOLEAN, got %T", value)
		}
		if b {
			e.w.writeBit(1)
		} else {
			e.w.writeBit(0)
		}
		return nil
	case codec.KindEnumerated:
		return e.encodeEnumerated(rt, value, path)
	case codec.KindOctetString:
		return e.encodeOctetString(rt, value, path)
	case codec.KindBitString:
		return e.encodeBitString(rt, value, path)
	case codec.KindIA5String, codec.KindUTF8String:
		return e.encodeString(rt, value, path)
	case codec.KindNull:
		return nil
	default:
		return e.fail(path, "cannot encode kind %s", rt.kind)
	}
}

func (e *encoder) encodeSequence(rt *xtype, value any, path string) error {
	m, ok := value.(map[string]any)
	if !ok {
		return e.fail(path, "expected SEQUENCE value as map, got %T", value)
	}

	// Presence bits first. A member equal to its DEFAULT is encoded as
	// absent, which is why defaulted members never show up in traces.
	type slot struct {
		member  *xtype
		value   any
		present bool
	}
	slots := make([]slot, len(rt.members))
	for i, mem := range rt.members {
		member := mem.(*xtype)
		v, has := m[member.fieldName]
		switch {
		case member.def != nil:
			present := has && !equalsDefault(v, member.def)
			slots[i] = slot{member: member, value: v, present: present}
			e.writePresence(present)
		case member.optional:
			slots[i] = slot{member: member, value: v, present: has}
			e.writePresence(has)
		default:
			if !has {
				return e.fail(path, "missing required member %q", member.fieldName)
			}
			slots[i] = slot{member: member, value: v, present: true}
		}
	}

	for _, s := range slots {
		if !s.present {
			continue
		}
		if err := e.encode(s.member, s.value, path+"."+s.member.fieldName); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) writePresence(present bool) {
	if present {
		e.w.writeBit(1)
	} else {
		e.w.writeBit(0)
	}
}

func (e *encoder) encodeChoice(rt *xtype, value any, path string) error {
	ch, ok := value.(codec.Choice)
	if !ok {
		return e.fail(path, "expected CHOICE value, got %T", value)
	}
	for i, mem := range rt.members {
		member := mem.(*xtype)
		if member.fieldName != ch.Tag {
			continue
		}
		e.w.writeBits(uint64(i), bitsFor(int64(len(rt.members))))
		return e.encode(member, ch.Value, path+"."+member.fieldName)
	}
	return e.fail(path, "unknown CHOICE alternative %q", ch.Tag)
}

func (e *encoder) encodeSequenceOf(rt *xtype, value any, path string) error {
	list, ok := value.([]any)
	if !ok {
		return e.fail(path, "expected list value, got %T", value)
	}
	if err := checkSize(e.check, rt.cons, len(list), path); err != nil {
		return err
	}
	if err := e.writeLength(rt.cons, len(list), path); err != nil {
		return err
	}
	elem := rt.element.(*xtype)
	for i, item := range list {
		if err := e.encode(elem, item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) encodeInteger(rt *xtype, value any, path string) error {
	v, ok := toInt64(value)
	if !ok {
		return e.fail(path, "expected INTEGER, got %T", value)
	}
	if rt.cons.HasRange {
		if err := checkRange(e.check, rt.cons, v, path); err != nil {
			return err
		}
		if v < rt.cons.Min || v > rt.cons.Max {
			return e.fail(path, "value %d not representable in range %d..%d", v, rt.cons.Min, rt.cons.Max)
		}
		span := rt.cons.Max - rt.cons.Min + 1
		e.w.writeBits(uint64(v-rt.cons.Min), bitsFor(span))
		return nil
	}

	b := signedBytes(v)
	e.w.writeBits(uint64(len(b)), 8)
	e.w.writeBytes(b)
	return nil
}

func (e *encoder) encodeEnumerated(rt *xtype, value any, path string) error {
	name, ok := value.(string)
	if !ok {
		return e.fail(path, "expected ENUMERATED value name, got %T", value)
	}
	for i, candidate := range rt.cons.Choices {
		if candidate == name {
			e.w.writeBits(uint64(i), bitsFor(int64(len(rt.cons.Choices))))
			return nil
		}
	}
	if e.check {
		return &codec.ConstraintError{
			Path:    path,
			Message: fmt.Sprintf("%q is not an enumeration value", name),
		}
	}
	return e.fail(path, "unknown enumeration value %q", name)
}

func (e *encoder) encodeOctetString(rt *xtype, value any, path string) error {
	b, ok := value.([]byte)
	if !ok {
		return e.fail(path, "expected OCTET STRING bytes, got %T", value)
	}
	if err := checkSize(e.check, rt.cons, len(b), path); err != nil {
		return err
	}
	if err := e.writeLength(rt.cons, len(b), path); err != nil {
		return err
	}
	e.w.writeBytes(b)
	return nil
}

func (e *encoder) encodeBitString(rt *xtype, value any, path string) error {
	var bs codec.BitString
	switch v := value.(type) {
	case codec.BitString:
		bs = v
	case []byte:
		bs = codec.BitString{Bytes: v, Length: len(v) * 8}
	default:
		return e.fail(path, "expected BIT STRING value, got %T", value)
	}
	if len(bs.Bytes)*8 < bs.Length {
		return e.fail(path, "bit length %d exceeds supplied bytes", bs.Length)
	}
	if err := checkSize(e.check, rt.cons, bs.Length, path); err != nil {
		return err
	}
	if err := e.writeLength(rt.cons, bs.Length, path); err != nil {
		return err
	}
	e.w.writeBitField(bs.Bytes, bs.Length)
	return nil
}

func (e *encoder) encodeString(rt *xtype, value any, path string) error {
	s, ok := value.(string)
	if !ok {
		return e.fail(path, "expected character string, got %T", value)
	}
	if rt.kind == codec.KindIA5String {
		if err := checkIA5(e.check, s, path); err != nil {
			return err
		}
	}
	b := []byte(s)
	if len(b) >= 1<<lengthBits {
		return e.fail(path, "string of %d bytes exceeds the codec limit", len(b))
	}
	e.w.writeBits(uint64(len(b)), lengthBits)
	e.w.writeBytes(b)
	return nil
}

func (e *encoder) writeLength(cons codec.Constraints, n int, path string) error {
	if cons.HasSize && cons.SizeMin == cons.SizeMax {
		if n != cons.SizeMin {
			return e.fail(path, "fixed size %d, got %d", cons.SizeMin, n)
		}
		return nil
	}
	if n >= 1<<lengthBits {
		return e.fail(path, "length %d exceeds the codec limit", n)
	}
	e.w.writeBits(uint64(n), lengthBits)
	return nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

// equalsDefault compares an encoded value against a declared DEFAULT,
// tolerant of the numeric widenings the wire layer produces.
func equalsDefault(v, def any) bool {
	if dn, ok := toInt64(def); ok {
		if vn, ok := toInt64(v); ok {
			return vn == dn
		}
		return false
	}
	return reflect.DeepEqual(v, def)
}

func signedBytes(v int64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	// Trim redundant sign bytes while preserving the sign bit.
	i := 0
	for i < 7 {
		if b[i] == 0x00 && b[i+1]&0x80 == 0 {
			i++
			continue
		}
		if b[i] == 0xFF && b[i+1]&0x80 != 0 {
			i++
			continue
		}
		break
	}
	return b[i:]
}
