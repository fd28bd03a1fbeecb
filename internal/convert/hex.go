package convert

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// CleanHex strips the decorations accepted in user-supplied hex payloads:
// "0x" prefixes, spaces and newlines. An odd number of digits is padded with
// a trailing zero.
func CleanHex(s string) string {
	r := strings.NewReplacer("0x", "", "0X", "", " ", "", "\n", "", "\t", "", "\r", "")
	clean := r.Replace(s)
	if len(clean)%2 != 0 {
		clean += "0"
	}
	return clean
}

// ParseHexStrict converts user input to bytes, requiring a non-empty, even
// number of hex digits after cleanup. Used at the user-facing boundary where
// malformed hex must be rejected rather than silently padded.
func ParseHexStrict(s string) ([]byte, error) {
	r := strings.NewReplacer("0x", "", "0X", "", " ", "", "\n", "", "\t", "", "\r", "")
	clean := strings.TrimSpace(r.Replace(s))
	if len(clean) == 0 || len(clean)%2 != 0 {
		return nil, fmt.Errorf("hex payload must contain an even, non-zero number of hex characters")
	}
	b, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex payload: %w", err)
	}
	return b, nil
}

// hexBytes decodes cleaned-up hex, reporting whether it was valid.
func hexBytes(s string) ([]byte, bool) {
	b, err := hex.DecodeString(CleanHex(s))
	if err != nil {
		return nil, false
	}
	return b, true
}
