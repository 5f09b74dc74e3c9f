package codec

import (
	"fmt"
	"strings"

	"asterix_codec/internal/schema"
)

// decodeRecord decodes one Data Record from the front of buf. It returns the
// record and the number of bytes consumed.
//
// The UAP starts as the category's default variation. When a Case
// discriminator is defined and its item decodes, the discriminator field
// re-binds the UAP for the remaining slots. This single pass is correct as
// long as every variation agrees on the slots before the discriminator,
// which holds for the published category editions (CAT01 keeps I010 and
// I020 in slots 1 and 2 of both the plot and track UAPs).
func decodeRecord(cat *schema.Category, buf []byte) (*DecodedRecord, int, error) {
	rec := &DecodedRecord{Items: make(map[string]*DecodedItem), Valid: true}

	fspec, pos, err := readFSPEC(buf)
	if err != nil {
		return nil, 0, err
	}

	uap, ok := cat.UAP(cat.DefaultVariation)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %q", ErrUnknownVariation, cat.DefaultVariation)
	}

	for slot := 1; slot <= len(uap); slot++ {
		id := uap[slot-1]
		if schema.IsSentinelSlot(id) {
			continue
		}
		if !fspecBitSet(fspec, slot) {
			continue
		}

		def, ok := cat.Items[id]
		if !ok {
			return nil, 0, fmt.Errorf("%w: %s", ErrUnknownItem, id)
		}

		item, consumed, err := decodeItem(def, buf[pos:])
		if err != nil {
			return nil, 0, err
		}
		pos += consumed
		rec.Items[id] = item

		// Discriminator item decoded: re-bind the UAP for later slots.
		if cat.Case != nil && id == cat.Case.ItemID {
			if raw, ok := item.Fields[cat.Case.Field]; ok {
				if name, ok := cat.Case.Select[raw]; ok {
					if switched, ok := cat.UAP(name); ok {
						uap = switched
						rec.Variation = name
					}
				}
			}
		}
	}

	if rec.Variation == "" {
		rec.Variation = cat.DefaultVariation
	}

	if missing := missingMandatory(cat, rec); len(missing) > 0 {
		rec.Valid = false
		rec.Error = fmt.Sprintf("mandatory item %s not present", strings.Join(missing, ", "))
	}

	return rec, pos, nil
}

// missingMandatory lists Mandatory items absent from the record, sorted.
func missingMandatory(cat *schema.Category, rec *DecodedRecord) []string {
	var missing []string
	for _, id := range cat.MandatoryItems() {
		if _, ok := rec.Items[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// encodeRecord produces the wire bytes of one Data Record: FSPEC followed by
// the present items in UAP order.
func encodeRecord(cat *schema.Category, rec *DecodedRecord) ([]byte, error) {
	variation := rec.Variation
	if variation == "" {
		variation = cat.DefaultVariation
	}
	uap, ok := cat.UAP(variation)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariation, variation)
	}

	present := make([]bool, len(uap))
	for i, id := range uap {
		if schema.IsSentinelSlot(id) {
			continue
		}
		if _, ok := rec.Items[id]; ok {
			present[i] = true
		}
	}

	out := buildFSPEC(uap, present)

	for i, id := range uap {
		if !present[i] {
			continue
		}
		def, ok := cat.Items[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownItem, id)
		}
		itemBytes, err := encodeItem(def, rec.Items[id])
		if err != nil {
			return nil, err
		}
		out = append(out, itemBytes...)
	}

	return out, nil
}
