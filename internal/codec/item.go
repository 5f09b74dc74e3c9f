package codec

import (
	"fmt"

	"asterix_codec/internal/bitstream"
	"asterix_codec/internal/schema"
)

// decodeItem decodes one Data Item from the front of buf, which must start
// byte-aligned at the item's first octet. It returns the decoded value and
// the number of bytes consumed.
func decodeItem(def *schema.DataItem, buf []byte) (*DecodedItem, int, error) {
	out := &DecodedItem{ID: def.ID, Kind: def.Kind}

	switch def.Kind {

	case schema.Fixed:
		if len(buf) < def.FixedBytes {
			return nil, 0, fmt.Errorf("item %s: need %d bytes, have %d: %w", def.ID, def.FixedBytes, len(buf), ErrTruncated)
		}
		br := bitstream.NewReader(buf[:def.FixedBytes])
		out.Fields = make(map[string]uint64)
		if err := decodeElements(def.Elements, br, out.Fields); err != nil {
			return nil, 0, fmt.Errorf("item %s: %w", def.ID, err)
		}
		return out, def.FixedBytes, nil

	case schema.Extended:
		out.Fields = make(map[string]uint64)
		offset := 0
		for octIdx := 0; ; octIdx++ {
			if offset >= len(buf) {
				return nil, 0, fmt.Errorf("item %s: FX continuation past end of buffer: %w", def.ID, ErrTruncated)
			}
			raw := buf[offset]
			fx := raw&0x01 != 0
			offset++

			if octIdx < len(def.Octets) {
				br := bitstream.NewReader([]byte{raw})
				if err := decodeElements(def.Octets[octIdx].Elements, br, out.Fields); err != nil {
					return nil, 0, fmt.Errorf("item %s octet %d: %w", def.ID, octIdx, err)
				}
				// The remaining bit of the octet is FX, already taken above.
			}
			// Octets beyond the schema are skipped but still honour FX.

			if !fx {
				break
			}
		}
		return out, offset, nil

	case schema.Repetitive:
		offset := 0
		for {
			if offset >= len(buf) {
				return nil, 0, fmt.Errorf("item %s: FX continuation past end of buffer: %w", def.ID, ErrTruncated)
			}
			raw := buf[offset]
			offset++
			out.Repetitions = append(out.Repetitions, uint64(raw>>1)&0x7F)
			if raw&0x01 == 0 {
				break
			}
		}
		return out, offset, nil

	case schema.RepetitiveGroup:
		if len(buf) < 1 {
			return nil, 0, fmt.Errorf("item %s: missing REP count byte: %w", def.ID, ErrTruncated)
		}
		count := int(buf[0])
		groupBytes := def.RepGroupBits / 8
		need := 1 + count*groupBytes
		if len(buf) < need {
			return nil, 0, fmt.Errorf("item %s: need %d bytes for %d groups, have %d: %w", def.ID, need, count, len(buf), ErrTruncated)
		}
		br := bitstream.NewReader(buf[1:need])
		for i := 0; i < count; i++ {
			gr, err := br.SubReader(groupBytes)
			if err != nil {
				return nil, 0, fmt.Errorf("item %s group %d: %w", def.ID, i, err)
			}
			fields := make(map[string]uint64)
			if err := decodeElements(def.RepGroupElements, gr, fields); err != nil {
				return nil, 0, fmt.Errorf("item %s group %d: %w", def.ID, i, err)
			}
			out.Groups = append(out.Groups, fields)
		}
		return out, need, nil

	case schema.RepetitiveGroupFX:
		groupBytes := (def.RepGroupBits + 1) / 8
		offset := 0
		for {
			if offset+groupBytes > len(buf) {
				return nil, 0, fmt.Errorf("item %s: need %d bytes per group, have %d: %w", def.ID, groupBytes, len(buf)-offset, ErrTruncated)
			}
			gr := bitstream.NewReader(buf[offset : offset+groupBytes])
			fields := make(map[string]uint64)
			if err := decodeElements(def.RepGroupElements, gr, fields); err != nil {
				return nil, 0, fmt.Errorf("item %s group %d: %w", def.ID, len(out.Groups), err)
			}
			fx, err := gr.ReadBit()
			if err != nil {
				return nil, 0, fmt.Errorf("item %s group %d FX: %w", def.ID, len(out.Groups), err)
			}
			out.Groups = append(out.Groups, fields)
			offset += groupBytes
			if !fx {
				break
			}
		}
		return out, offset, nil

	case schema.SP:
		if len(buf) < 1 {
			return nil, 0, fmt.Errorf("item %s: missing length byte: %w", def.ID, ErrTruncated)
		}
		// The length byte counts itself.
		length := int(buf[0])
		if length < 1 || length > len(buf) {
			return nil, 0, fmt.Errorf("item %s: explicit length %d out of range: %w", def.ID, length, ErrTruncated)
		}
		out.Raw = append([]byte(nil), buf[1:length]...)
		return out, length, nil

	case schema.Compound:
		psf, psfLen, err := readPSF(buf)
		if err != nil {
			return nil, 0, fmt.Errorf("item %s: %w", def.ID, err)
		}
		out.SubFields = make(map[string]map[string]uint64)
		offset := psfLen
		for slot, sub := range def.SubItems {
			if !psfBitSet(psf, slot) || sub.Unused() {
				continue
			}
			if offset+sub.FixedBytes > len(buf) {
				return nil, 0, fmt.Errorf("item %s sub-item %s: need %d bytes, have %d: %w",
					def.ID, sub.Name, sub.FixedBytes, len(buf)-offset, ErrTruncated)
			}
			br := bitstream.NewReader(buf[offset : offset+sub.FixedBytes])
			fields := make(map[string]uint64)
			if err := decodeElements(sub.Elements, br, fields); err != nil {
				return nil, 0, fmt.Errorf("item %s sub-item %s: %w", def.ID, sub.Name, err)
			}
			out.SubFields[sub.Name] = fields
			offset += sub.FixedBytes
		}
		return out, offset, nil
	}

	return nil, 0, fmt.Errorf("item %s: unsupported item kind %v", def.ID, def.Kind)
}

// readPSF reads the Compound primary subfield bitmap: bytes with FX in
// bit 0, terminated by FX=0.
func readPSF(buf []byte) ([]byte, int, error) {
	n := 0
	for {
		if n >= len(buf) {
			return nil, 0, fmt.Errorf("PSF continuation past end of buffer: %w", ErrTruncated)
		}
		b := buf[n]
		n++
		if b&0x01 == 0 {
			return buf[:n], n, nil
		}
	}
}

// psfBitSet reports whether the PSF slot (0-based) is present. Slot k lives
// in PSF byte k/7 at bit 7-(k%7).
func psfBitSet(psf []byte, slot int) bool {
	byteIdx := slot / 7
	if byteIdx >= len(psf) {
		return false
	}
	bit := 7 - slot%7
	return psf[byteIdx]>>bit&0x01 == 1
}

// encodeItem produces the wire bytes of one Data Item from its decoded value.
func encodeItem(def *schema.DataItem, val *DecodedItem) ([]byte, error) {
	bw := bitstream.NewWriter()

	switch def.Kind {

	case schema.Fixed:
		encodeElements(def.Elements, val.Fields, bw)

	case schema.Extended:
		// Emit octets up to the last one holding a non-zero non-spare field,
		// and always at least one.
		lastUseful := 0
		for i, oct := range def.Octets {
			for _, e := range oct.Elements {
				if !e.Spare && val.Fields[e.Name] != 0 {
					lastUseful = i + 1
				}
			}
		}
		if lastUseful == 0 {
			lastUseful = 1
		}
		for i := 0; i < lastUseful; i++ {
			encodeElements(def.Octets[i].Elements, val.Fields, bw)
			bw.WriteBit(i+1 < lastUseful) // FX
		}

	case schema.Repetitive:
		if len(val.Repetitions) == 0 {
			// The wire cannot express zero entries; a single zero octet
			// decodes back as one entry with value 0.
			bw.WriteOctet(0x00)
			break
		}
		for i, v := range val.Repetitions {
			_ = bw.WriteUint(v&0x7F, 7)
			bw.WriteBit(i+1 < len(val.Repetitions)) // FX
		}

	case schema.RepetitiveGroup:
		if len(val.Groups) > 255 {
			return nil, fmt.Errorf("item %s: %d groups exceed the 1-byte REP count", def.ID, len(val.Groups))
		}
		bw.WriteOctet(byte(len(val.Groups)))
		for _, g := range val.Groups {
			encodeElements(def.RepGroupElements, g, bw)
		}

	case schema.RepetitiveGroupFX:
		groups := val.Groups
		if len(groups) == 0 {
			groups = []map[string]uint64{nil}
		}
		for i, g := range groups {
			encodeElements(def.RepGroupElements, g, bw)
			bw.WriteBit(i+1 < len(groups)) // FX
		}

	case schema.SP:
		if len(val.Raw)+1 > 255 {
			return nil, fmt.Errorf("item %s: payload %d bytes: %w", def.ID, len(val.Raw), ErrBadLength)
		}
		bw.WriteOctet(byte(len(val.Raw) + 1))
		bw.WriteBytes(val.Raw)

	case schema.Compound:
		// Highest present PSF slot determines the PSF length; at least one
		// PSF byte is always emitted.
		maxSlot := -1
		for slot, sub := range def.SubItems {
			if sub.Unused() {
				continue
			}
			if _, ok := val.SubFields[sub.Name]; ok {
				maxSlot = slot
			}
		}
		psfLen := 1
		if maxSlot >= 0 {
			psfLen = maxSlot/7 + 1
		}
		psf := make([]byte, psfLen)
		for slot, sub := range def.SubItems {
			if sub.Unused() {
				continue
			}
			if _, ok := val.SubFields[sub.Name]; ok {
				psf[slot/7] |= 1 << (7 - slot%7)
			}
		}
		for i := 0; i < psfLen-1; i++ {
			psf[i] |= 0x01 // FX
		}
		bw.WriteBytes(psf)
		for _, sub := range def.SubItems {
			if sub.Unused() {
				continue
			}
			fields, ok := val.SubFields[sub.Name]
			if !ok {
				continue
			}
			encodeElements(sub.Elements, fields, bw)
		}

	default:
		return nil, fmt.Errorf("item %s: unsupported item kind %v", def.ID, def.Kind)
	}

	return bw.Take(), nil
}
