// Package transform interprets raw element values decoded by the codec:
// sign extension, physical quantity scaling, table lookup and octal squawk
// rendering. The codec itself delivers every field as a raw unsigned
// integer; everything here is a pure function of (element, raw value).
package transform

import (
	"fmt"

	"asterix_codec/internal/schema"
)

// SignExtend interprets the low bits of raw as a two's-complement integer
// of the given width.
func SignExtend(raw uint64, bits int) int64 {
	if bits <= 0 || bits >= 64 {
		return int64(raw)
	}
	if raw>>(bits-1)&1 == 1 {
		return int64(raw | ^uint64(0)<<bits)
	}
	return int64(raw)
}

// Physical returns the scaled physical value of a quantity-encoded element.
// The second result is false for non-quantity encodings.
func Physical(e schema.Element, raw uint64) (float64, bool) {
	switch e.Encoding {
	case schema.UnsignedQuantity:
		return float64(raw) * e.Scale, true
	case schema.SignedQuantity:
		return float64(SignExtend(raw, e.Bits)) * e.Scale, true
	}
	return 0, false
}

// Meaning returns the table entry for a table-encoded element value.
// The second result is false when the element has no table or the value
// has no entry.
func Meaning(e schema.Element, raw uint64) (string, bool) {
	if e.Encoding != schema.Table || e.Table == nil {
		return "", false
	}
	m, ok := e.Table[raw]
	return m, ok
}

// Octal renders raw as the zero-padded octal digit string used for Mode-1,
// Mode-2 and Mode-3/A codes.
func Octal(raw uint64, bits int) string {
	digits := (bits + 2) / 3
	return fmt.Sprintf("%0*o", digits, raw)
}

// Format renders an element value for display, following its encoding.
func Format(e schema.Element, raw uint64) string {
	switch e.Encoding {
	case schema.Table:
		m, ok := e.Table[raw]
		if !ok {
			m = "?"
		}
		return fmt.Sprintf("%d [%s]", raw, m)
	case schema.UnsignedQuantity:
		return fmt.Sprintf("%.4f %s (raw=%d)", float64(raw)*e.Scale, e.Unit, raw)
	case schema.SignedQuantity:
		sv := SignExtend(raw, e.Bits)
		return fmt.Sprintf("%.4f %s (raw=%d)", float64(sv)*e.Scale, e.Unit, sv)
	case schema.StringOctal:
		return Octal(raw, e.Bits)
	default:
		return fmt.Sprintf("%d (0x%X)", raw, raw)
	}
}
