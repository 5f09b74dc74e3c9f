package codec

import (
	"encoding/binary"
	"fmt"

	"asterix_codec/internal/schema"
)

// headerSize is the CAT + LEN Data Block header length in bytes.
const headerSize = 3

// maxBlockSize is the largest value the 16-bit LEN field can carry.
const maxBlockSize = 65535

// Codec decodes and encodes ASTERIX Data Blocks against a category
// registry. It is safe for concurrent use once all categories are
// registered.
type Codec struct {
	reg *schema.Registry
}

// New creates a Codec over reg. The registry may be shared with other
// codecs; it is never mutated by decode or encode.
func New(reg *schema.Registry) *Codec {
	return &Codec{reg: reg}
}

// RegisterCategory stores a category specification, replacing any prior
// entry for the same category number.
func (c *Codec) RegisterCategory(cat *schema.Category) {
	c.reg.Register(cat)
}

// Category returns the registered specification for category n.
func (c *Codec) Category(n uint8) (*schema.Category, error) {
	return c.reg.Category(n)
}

// Decode decodes one Data Block from buf. The block is always returned;
// framing and record failures are reported through its Valid and Error
// fields, with records decoded before the failure retained.
func (c *Codec) Decode(buf []byte) *DecodedBlock {
	block := &DecodedBlock{Valid: true}

	if len(buf) < headerSize {
		block.Valid = false
		block.Error = fmt.Sprintf("buffer too short for data block header (need %d bytes, have %d)", headerSize, len(buf))
		return block
	}

	block.Cat = buf[0]
	block.Length = binary.BigEndian.Uint16(buf[1:3])

	if int(block.Length) < headerSize || int(block.Length) > len(buf) {
		block.Valid = false
		block.Error = fmt.Sprintf("%v: LEN field %d (buffer %d bytes)", ErrFraming, block.Length, len(buf))
		return block
	}

	cat, err := c.reg.Category(block.Cat)
	if err != nil {
		block.Valid = false
		block.Error = fmt.Sprintf("%v: %d", ErrUnknownCategory, block.Cat)
		return block
	}

	payload := buf[headerSize:block.Length]
	pos := 0
	for pos < len(payload) {
		rec, consumed, err := decodeRecord(cat, payload[pos:])
		if err != nil {
			block.Valid = false
			block.Error = fmt.Sprintf("record decode error: %v", err)
			break
		}
		if consumed == 0 {
			block.Valid = false
			block.Error = ErrZeroConsumed.Error()
			break
		}
		block.Records = append(block.Records, rec)
		pos += consumed
	}

	return block
}

// Encode builds one Data Block for category catNum from records. It returns
// the complete wire bytes or the first encode error; nothing in between.
func (c *Codec) Encode(catNum uint8, records []*DecodedRecord) ([]byte, error) {
	cat, err := c.reg.Category(catNum)
	if err != nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCategory, catNum)
	}

	var payload []byte
	for i, rec := range records {
		rb, err := encodeRecord(cat, rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		payload = append(payload, rb...)
	}

	total := headerSize + len(payload)
	if total > maxBlockSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, total)
	}

	block := make([]byte, 0, total)
	block = append(block, catNum)
	block = binary.BigEndian.AppendUint16(block, uint16(total))
	block = append(block, payload...)
	return block, nil
}
