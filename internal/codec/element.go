package codec

import (
	"fmt"

	"asterix_codec/internal/bitstream"
	"asterix_codec/internal/schema"
)

// decodeElements reads elems in order from br into fields. Spare elements
// are consumed but not stored.
func decodeElements(elems []schema.Element, br *bitstream.Reader, fields map[string]uint64) error {
	for _, e := range elems {
		if e.Spare {
			if err := br.Skip(e.Bits); err != nil {
				return fmt.Errorf("spare (%d bits): %w", e.Bits, err)
			}
			continue
		}
		raw, err := br.ReadUint(e.Bits)
		if err != nil {
			return fmt.Errorf("element %s: %w", e.Name, err)
		}
		fields[e.Name] = raw
	}
	return nil
}

// encodeElements writes elems in order from fields into bw. Spare elements
// emit zero bits; a field missing from the map encodes as zero.
func encodeElements(elems []schema.Element, fields map[string]uint64, bw *bitstream.Writer) {
	for _, e := range elems {
		if e.Spare {
			_ = bw.WriteUint(0, e.Bits)
			continue
		}
		_ = bw.WriteUint(fields[e.Name], e.Bits)
	}
}
