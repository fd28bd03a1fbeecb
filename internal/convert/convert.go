// Package convert bridges the JSON-shaped wire value model used at the API
// boundary and the native value model the codec engine operates on. The
// forward direction is driven recursively by the compiled type; the reverse
// direction is a purely structural normalizer.
//
// Conversion never fails. Data the converter cannot make sense of passes
// through the generic normalizer unchanged, and the mismatch surfaces
// exactly once — at the engine's encode or decode boundary.
package convert

import (
	"encoding/hex"
	"strings"

	"github.com/asnlens/asnlens/internal/codec"
)

// ToCodecValue converts a wire value to the engine's native model, guided by
// the compiled type t. Unknown structure falls back to Normalize.
func ToCodecValue(wire any, t codec.Type) any {
	if t == nil {
		return Normalize(wire)
	}

	switch t.Kind() {
	case codec.KindChoice:
		return choiceToCodec(wire, t)

	case codec.KindSequence, codec.KindSet:
		m, ok := wire.(map[string]any)
		if !ok {
			return Normalize(wire)
		}
		members := make(map[string]codec.Type, len(t.Members()))
		for _, member := range t.Members() {
			members[member.Name()] = member
		}
		out := make(map[string]any, len(m))
		for k, v := range m {
			if member, ok := members[k]; ok {
				out[k] = ToCodecValue(v, member)
			} else {
				// Unknown keys ride along so that messages built
				// against a newer schema revision still encode.
				out[k] = Normalize(v)
			}
		}
		return out

	case codec.KindSequenceOf, codec.KindSetOf:
		list, ok := wire.([]any)
		if !ok {
			return Normalize(wire)
		}
		out := make([]any, len(list))
		for i, item := range list {
			out[i] = ToCodecValue(item, t.Element())
		}
		return out

	case codec.KindOctetString:
		v := wire
		if list, ok := wire.([]any); ok && len(list) >= 1 {
			v = list[0]
		}
		if s, ok := v.(string); ok {
			if b, ok := hexBytes(s); ok {
				return b
			}
		}
		return Normalize(wire)

	case codec.KindBitString:
		var hexStr string
		bitLen := -1
		switch v := wire.(type) {
		case []any:
			if len(v) >= 2 {
				s, okS := v[0].(string)
				n, okN := toInt(v[1])
				if okS && okN {
					hexStr = s
					bitLen = n
				}
			}
		case string:
			hexStr = v
		}
		if hexStr != "" {
			if b, ok := hexBytes(hexStr); ok {
				if bitLen < 0 {
					bitLen = len(b) * 8
				}
				return codec.BitString{Bytes: b, Length: bitLen}
			}
		}
		return Normalize(wire)

	default:
		return Normalize(wire)
	}
}

func choiceToCodec(wire any, t codec.Type) any {
	m, ok := wire.(map[string]any)
	if !ok {
		return Normalize(wire)
	}
	tag, payload, ok := ExtractChoice(m)
	if !ok {
		return Normalize(wire)
	}
	for _, member := range t.Members() {
		if member.Name() == tag {
			return codec.Choice{Tag: tag, Value: ToCodecValue(payload, member)}
		}
	}
	return codec.Choice{Tag: tag, Value: Normalize(payload)}
}

var choiceMetaKeys = map[string]bool{"value": true, "$choice": true, "choice": true}

// ExtractChoice interprets a map as a CHOICE value if possible. Notations
// are tried in strict priority order:
//
//  1. an explicit "$choice" (or "choice") key paired with "value"
//  2. a "value" key plus exactly one other key whose string value names the
//     alternative (covers the degenerate empty-string-key encoding)
//  3. a single-key map, the key naming the alternative
func ExtractChoice(m map[string]any) (tag string, payload any, ok bool) {
	if v, hasValue := m["value"]; hasValue {
		if tag, isStr := m["$choice"].(string); isStr {
			return tag, v, true
		}
		if tag, isStr := m["choice"].(string); isStr {
			return tag, v, true
		}
		var extras []string
		for k := range m {
			if !choiceMetaKeys[k] {
				extras = append(extras, k)
			}
		}
		if len(extras) == 1 {
			if marker, isStr := m[extras[0]].(string); isStr && strings.TrimSpace(marker) != "" {
				return marker, v, true
			}
		}
	}
	if len(m) == 1 {
		for k, v := range m {
			if strings.TrimSpace(k) != "" {
				return k, v, true
			}
		}
	}
	return "", nil, false
}

// Normalize is the generic wire-to-codec fallback: it rewrites the special
// wire notations (hex strings, choice maps, bit string pairs) wherever they
// appear, without consulting a type.
func Normalize(wire any) any {
	switch v := wire.(type) {
	case map[string]any:
		if h, ok := v["$hex"].(string); ok && len(v) == 1 {
			if b, err := hex.DecodeString(CleanHex(h)); err == nil {
				return b
			}
		}
		if tag, payload, ok := ExtractChoice(v); ok {
			return codec.Choice{Tag: tag, Value: Normalize(payload)}
		}
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = Normalize(item)
		}
		return out

	case []any:
		if len(v) == 2 {
			if s, okS := v[0].(string); okS && strings.HasPrefix(s, "0x") {
				if n, okN := toInt(v[1]); okN {
					if b, ok := hexBytes(s); ok {
						return codec.BitString{Bytes: b, Length: n}
					}
				}
			}
		}
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Normalize(item)
		}
		return out

	case string:
		if strings.HasPrefix(v, "0x") {
			if b, err := hex.DecodeString(CleanHex(v)); err == nil {
				return b
			}
		}
		return v

	default:
		return wire
	}
}

// ToWireValue converts an engine-native value back to the JSON-shaped wire
// model. It doubles as the normalizer for decode results.
func ToWireValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = ToWireValue(item)
		}
		return out
	case codec.Choice:
		return map[string]any{"$choice": val.Tag, "value": ToWireValue(val.Value)}
	case codec.BitString:
		return []any{"0x" + hex.EncodeToString(val.Bytes), val.Length}
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = ToWireValue(item)
		}
		return out
	case []byte:
		return hex.EncodeToString(val)
	default:
		return v
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}
