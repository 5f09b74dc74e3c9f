// Package codec implements the ASTERIX Data Block encode/decode engine:
// FSPEC and UAP driven record framing over the per-category schema, with one
// structural codec per Data Item kind.
//
// All numeric element values are carried as raw unsigned 64-bit integers
// holding the original bit pattern low-aligned. Sign extension, scaling and
// table lookup belong to the transform layer.
package codec

import "asterix_codec/internal/schema"

// DecodedItem is the decoded value of one Data Item. At most one of the
// kind-dependent payload fields is populated, matching Kind; none is for a
// RepetitiveGroup with a zero count or an SP item with an empty payload.
type DecodedItem struct {
	ID   string          `json:"id"`
	Kind schema.ItemKind `json:"kind"`

	// Fields holds named raw values for Fixed and Extended items.
	// Spare elements are excluded.
	Fields map[string]uint64 `json:"fields,omitempty"`

	// Repetitions holds the 7-bit values of a Repetitive item in wire order.
	Repetitions []uint64 `json:"repetitions,omitempty"`

	// Groups holds per-group field maps for RepetitiveGroup and
	// RepetitiveGroupFX items in wire order.
	Groups []map[string]uint64 `json:"groups,omitempty"`

	// Raw holds the opaque payload of an Explicit/SP/RE item, without the
	// length byte.
	Raw []byte `json:"raw,omitempty"`

	// SubFields holds present Compound sub-items keyed by sub-item name.
	SubFields map[string]map[string]uint64 `json:"sub_fields,omitempty"`
}

// DecodedRecord is one fully decoded Data Record. Items is keyed by item id;
// iteration order is not meaningful.
type DecodedRecord struct {
	Items     map[string]*DecodedItem `json:"items"`
	Variation string                  `json:"uap_variation,omitempty"`
	Valid     bool                    `json:"valid"`
	Error     string                  `json:"error,omitempty"`
}

// NewRecord returns an empty valid record ready for encoding.
func NewRecord(variation string) *DecodedRecord {
	return &DecodedRecord{
		Items:     make(map[string]*DecodedItem),
		Variation: variation,
		Valid:     true,
	}
}

// SetItem stores an item under its id and returns the record for chaining.
func (r *DecodedRecord) SetItem(item *DecodedItem) *DecodedRecord {
	r.Items[item.ID] = item
	return r
}

// DecodedBlock is one decoded Data Block. It is always returned, even on
// failure, so callers can inspect partial progress; Valid and Error carry
// the outcome.
type DecodedBlock struct {
	Cat     uint8            `json:"cat"`
	Length  uint16           `json:"length"`
	Records []*DecodedRecord `json:"records"`
	Valid   bool             `json:"valid"`
	Error   string           `json:"error,omitempty"`
}
