// Package storage provides persistent storage for decoded ASTERIX records.
package storage

import (
	"encoding/hex"
	"encoding/json"
	"time"

	"asterix_codec/internal/codec"
)

// Record is one decoded Data Record flattened for storage. SAC and SIC are
// lifted out of item 010 when present so sinks can index by sensor.
type Record struct {
	BatchID     string
	ReceivedAt  time.Time
	Cat         uint8
	SAC         uint16
	SIC         uint16
	Variation   string
	Valid       bool
	Error       string
	RawHex      string
	DecodedJSON string
}

// FromBlock flattens a decoded block into storage rows. raw is the original
// frame; batchID tags every row from one ingest batch.
func FromBlock(batchID string, receivedAt time.Time, raw []byte, block *codec.DecodedBlock) ([]Record, error) {
	rawHex := hex.EncodeToString(raw)

	out := make([]Record, 0, len(block.Records))
	for _, rec := range block.Records {
		row := Record{
			BatchID:    batchID,
			ReceivedAt: receivedAt,
			Cat:        block.Cat,
			Variation:  rec.Variation,
			Valid:      rec.Valid,
			Error:      rec.Error,
			RawHex:     rawHex,
		}
		if item, ok := rec.Items["010"]; ok {
			row.SAC = uint16(item.Fields["SAC"])
			row.SIC = uint16(item.Fields["SIC"])
		}
		decoded, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		row.DecodedJSON = string(decoded)
		out = append(out, row)
	}
	return out, nil
}
