package codec

import "errors"

// Error kinds surfaced by decode and encode. Decode-side failures are
// captured into the invalid/error fields of the returned block and record;
// encode returns them directly.
var (
	// ErrFraming marks a Data Block header whose declared length is
	// inconsistent with the buffer.
	ErrFraming = errors.New("invalid data block framing")

	// ErrTruncated marks an item or element that ran out of bytes.
	ErrTruncated = errors.New("truncated data")

	// ErrEmptyFspec marks a record that started with no FSPEC bytes left.
	ErrEmptyFspec = errors.New("record has empty FSPEC")

	// ErrUnknownCategory marks a decode or encode of an unregistered category.
	ErrUnknownCategory = errors.New("category not registered")

	// ErrUnknownItem marks an FSPEC slot whose item id is not in the category.
	ErrUnknownItem = errors.New("FSPEC references unknown item")

	// ErrUnknownVariation marks an encode with an undefined UAP variation.
	ErrUnknownVariation = errors.New("unknown UAP variation")

	// ErrBadLength marks an SP/RE payload that cannot fit its length byte.
	ErrBadLength = errors.New("explicit payload exceeds 255 bytes")

	// ErrTooLarge marks an encoded block that would exceed the 16-bit LEN.
	ErrTooLarge = errors.New("data block exceeds 65535 bytes")

	// ErrZeroConsumed guards the block decoder against a record decode that
	// consumed no bytes.
	ErrZeroConsumed = errors.New("infinite loop guard: record consumed no bytes")
)
