package miniasn

import (
	"fmt"

	"github.com/asnlens/asnlens/internal/codec"
)

const lengthBits = 16

type decoder struct {
	r     *bitReader
	sink  codec.TraceSink
	check bool
}

// decode drives one (sub-)type through the codec, reporting the traversal to
// the sink when one is installed. Decode errors pass through unchanged; an
// aborted frame is dropped, never attached.
func (d *decoder) decode(t *xtype, path string) (any, error) {
	if d.sink != nil {
		d.sink.Enter(t, d.r.BitsRead())
	}
	v, err := d.decodeBody(t, path)
	if d.sink != nil {
		if err != nil {
			d.sink.Abort(t)
		} else {
			d.sink.Exit(t, v, d.r.BitsRead())
		}
	}
	return v, err
}

func (d *decoder) fail(path, format string, args ...any) error {
	return &codec.DecodeError{Path: path, Offset: d.r.BitsRead(), Message: fmt.Sprintf(format, args...)}
}

func (d *decoder) decodeBody(t *xtype, path string) (any, error) {
	rt := t.resolve()
	switch rt.kind {
	case codec.KindSequence, codec.KindSet:
		return d.decodeSequence(rt, path)
	case codec.KindChoice:
		return d.decodeChoice(rt, path)
	case codec.KindSequenceOf, codec.KindSetOf:
		return d.decodeSequenceOf(rt, path)
	case codec.KindInteger:
		return d.decodeInteger(rt, path)
	case codec.KindBoolean:
		bit, ok := d.r.readBit()
		if !ok {
			return nil, d.fail(path, "unexpected end of input")
		}
		return bit == 1, nil
	case codec.KindEnumerated:
		return d.decodeEnumerated(rt, path)
	case codec.KindOctetString:
		return d.decodeOctetString(rt, path)
	case codec.KindBitString:
		return d.decodeBitString(rt, path)
	case codec.KindIA5String, codec.KindUTF8String:
		return d.decodeString(rt, path)
	case codec.KindNull:
		return nil, nil
	default:
		return nil, d.fail(path, "cannot decode kind %s", rt.kind)
	}
}

func (d *decoder) decodeSequence(rt *xtype, path string) (any, error) {
	present := make([]bool, len(rt.members))
	for i, m := range rt.members {
		member := m.(*xtype)
		if !member.optional && member.def == nil {
			present[i] = true
			continue
		}
		bit, ok := d.r.readBit()
		if !ok {
			return nil, d.fail(path, "unexpected end of input in presence map")
		}
		present[i] = bit == 1
	}

	out := make(map[string]any, len(rt.members))
	for i, m := range rt.members {
		member := m.(*xtype)
		memberPath := path + "." + member.fieldName
		if !present[i] {
			if member.def != nil {
				out[member.fieldName] = member.def
			}
			continue
		}
		v, err := d.decode(member, memberPath)
		if err != nil {
			return nil, err
		}
		out[member.fieldName] = v
	}
	return out, nil
}

func (d *decoder) decodeChoice(rt *xtype, path string) (any, error) {
	if len(rt.members) == 0 {
		return nil, d.fail(path, "CHOICE with no alternatives")
	}
	idx, ok := d.r.readBits(bitsFor(int64(len(rt.members))))
	if !ok {
		return nil, d.fail(path, "unexpected end of input in choice index")
	}
	if int(idx) >= len(rt.members) {
		return nil, d.fail(path, "choice index %d out of range", idx)
	}
	member := rt.members[idx].(*xtype)
	v, err := d.decode(member, path+"."+member.fieldName)
	if err != nil {
		return nil, err
	}
	return codec.Choice{Tag: member.fieldName, Value: v}, nil
}

func (d *decoder) decodeSequenceOf(rt *xtype, path string) (any, error) {
	count, err := d.readLength(rt.cons, path)
	if err != nil {
		return nil, err
	}
	elem := rt.element.(*xtype)
	out := make([]any, 0, count)
	for i := 0; i < count; i++ {
		v, err := d.decode(elem, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := checkSize(d.check, rt.cons, count, path); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *decoder) decodeInteger(rt *xtype, path string) (any, error) {
	if rt.cons.HasRange {
		span := rt.cons.Max - rt.cons.Min + 1
		v, ok := d.r.readBits(bitsFor(span))
		if !ok {
			return nil, d.fail(path, "unexpected end of input in integer")
		}
		value := rt.cons.Min + int64(v)
		if err := checkRange(d.check, rt.cons, value, path); err != nil {
			return nil, err
		}
		return value, nil
	}

	n, ok := d.r.readBits(8)
	if !ok {
		return nil, d.fail(path, "unexpected end of input in integer length")
	}
	if n == 0 || n > 8 {
		return nil, d.fail(path, "invalid integer length %d", n)
	}
	b, ok := d.r.readBytes(int(n))
	if !ok {
		return nil, d.fail(path, "unexpected end of input in integer")
	}
	var value int64
	if b[0]&0x80 != 0 {
		value = -1
	}
	for _, byt := range b {
		value = value<<8 | int64(byt)
	}
	return value, nil
}

func (d *decoder) decodeEnumerated(rt *xtype, path string) (any, error) {
	if len(rt.cons.Choices) == 0 {
		return nil, d.fail(path, "ENUMERATED with no values")
	}
	idx, ok := d.r.readBits(bitsFor(int64(len(rt.cons.Choices))))
	if !ok {
		return nil, d.fail(path, "unexpected end of input in enumerated")
	}
	if int(idx) >= len(rt.cons.Choices) {
		return nil, d.fail(path, "enumeration index %d out of range", idx)
	}
	return rt.cons.Choices[idx], nil
}

func (d *decoder) decodeOctetString(rt *xtype, path string) (any, error) {
	n, err := d.readLength(rt.cons, path)
	if err != nil {
		return nil, err
	}
	b, ok := d.r.readBytes(n)
	if !ok {
		return nil, d.fail(path, "unexpected end of input in octet string")
	}
	if err := checkSize(d.check, rt.cons, n, path); err != nil {
		return nil, err
	}
	return b, nil
}

func (d *decoder) decodeBitString(rt *xtype, path string) (any, error) {
	n, err := d.readLength(rt.cons, path)
	if err != nil {
		return nil, err
	}
	b, ok := d.r.readBitField(n)
	if !ok {
		return nil, d.fail(path, "unexpected end of input in bit string")
	}
	if err := checkSize(d.check, rt.cons, n, path); err != nil {
		return nil, err
	}
	return codec.BitString{Bytes: b, Length: n}, nil
}

func (d *decoder) decodeString(rt *xtype, path string) (any, error) {
	n, ok := d.r.readBits(lengthBits)
	if !ok {
		return nil, d.fail(path, "unexpected end of input in string length")
	}
	b, ok := d.r.readBytes(int(n))
	if !ok {
		return nil, d.fail(path, "unexpected end of input in string")
	}
	s := string(b)
	if rt.kind == codec.KindIA5String {
		if err := checkIA5(d.check, s, path); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// readLength returns the element/byte/bit count of a sized type: the fixed
// size when the constraint pins it, otherwise an explicit 16-bit length.
func (d *decoder) readLength(cons codec.Constraints, path string) (int, error) {
	if cons.HasSize && cons.SizeMin == cons.SizeMax {
		return cons.SizeMin, nil
	}
	n, ok := d.r.readBits(lengthBits)
	if !ok {
		return 0, d.fail(path, "unexpected end of input in length")
	}
	return int(n), nil
}

func checkRange(check bool, cons codec.Constraints, v int64, path string) error {
	if !check || !cons.HasRange {
		return nil
	}
	if v < cons.Min || v > cons.Max {
		return &codec.ConstraintError{
			Path:    path,
			Message: fmt.Sprintf("value %d outside range %d..%d", v, cons.Min, cons.Max),
		}
	}
	return nil
}

func checkSize(check bool, cons codec.Constraints, n int, path string) error {
	if !check || !cons.HasSize {
		return nil
	}
	if n < cons.SizeMin || n > cons.SizeMax {
		return &codec.ConstraintError{
			Path:    path,
			Message: fmt.Sprintf("size %d outside SIZE(%d..%d)", n, cons.SizeMin, cons.SizeMax),
		}
	}
	return nil
}

func checkIA5(check bool, s string, path string) error {
	if !check {
		return nil
	}
	for _, r := range s {
		if r > 127 {
			return &codec.ConstraintError{
				Path:    path,
				Message: fmt.Sprintf("character %q outside the IA5 alphabet", r),
			}
		}
	}
	return nil
}
