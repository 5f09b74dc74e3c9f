package codec

import (
	"fmt"

	"asterix_codec/internal/schema"
)

// readFSPEC consumes FSPEC bytes from the front of buf until a byte with
// FX=0. It returns the FSPEC bytes and their count.
func readFSPEC(buf []byte) ([]byte, int, error) {
	if len(buf) == 0 {
		return nil, 0, ErrEmptyFspec
	}
	n := 0
	for {
		if n >= len(buf) {
			return nil, 0, fmt.Errorf("FSPEC continuation past end of buffer: %w", ErrTruncated)
		}
		b := buf[n]
		n++
		if b&0x01 == 0 {
			return buf[:n], n, nil
		}
	}
}

// fspecBitSet reports whether the 1-based UAP slot is marked present.
// Slot k lives in FSPEC byte (k-1)/7 at bit 7-((k-1)%7); bit 0 of every
// byte is the FX flag. Slots beyond the read FSPEC are absent.
func fspecBitSet(fspec []byte, slot int) bool {
	if slot < 1 {
		return false
	}
	byteIdx := (slot - 1) / 7
	if byteIdx >= len(fspec) {
		return false
	}
	bit := 7 - (slot-1)%7
	return fspec[byteIdx]>>bit&0x01 == 1
}

// buildFSPEC packs a presence vector over the UAP into FSPEC bytes.
// Sentinel slots ("-" and "rfs") are never set. Trailing all-zero FSPEC
// bytes are trimmed, but at least one byte is always emitted.
func buildFSPEC(uap []string, present []bool) []byte {
	nBytes := (len(uap) + 6) / 7
	if nBytes == 0 {
		nBytes = 1
	}

	last := 0
	for i := 0; i < nBytes; i++ {
		for s := i * 7; s < (i+1)*7 && s < len(uap); s++ {
			if present[s] && !schema.IsSentinelSlot(uap[s]) {
				last = i
			}
		}
	}

	fspec := make([]byte, last+1)
	for i := 0; i <= last; i++ {
		for s := i * 7; s < (i+1)*7 && s < len(uap); s++ {
			if present[s] && !schema.IsSentinelSlot(uap[s]) {
				fspec[i] |= 1 << (7 - s%7)
			}
		}
		if i < last {
			fspec[i] |= 0x01 // FX
		}
	}
	return fspec
}
