// Package ingest subscribes to a raw ASTERIX frame feed over NATS, decodes
// each Data Block and fans the records out to the configured storage sinks.
//
// Feed conventions: each NATS message carries one Data Block, either as raw
// binary or as a hex string (whitespace tolerated). The block length field
// bounds every frame at 65535 bytes, so one message per block is cheap.
package ingest

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"asterix_codec/internal/codec"
	"asterix_codec/internal/storage"
)

// Config holds the NATS feed settings.
type Config struct {
	URL            string // NATS server URL, e.g. nats.DefaultURL
	Subject        string // subject carrying raw Data Blocks
	Queue          string // optional queue group for load-balanced consumers
	DecodedSubject string // optional subject to republish decoded JSON on
}

// DefaultConfig returns settings for a local NATS server.
func DefaultConfig() Config {
	return Config{
		URL:     nats.DefaultURL,
		Subject: "asterix.raw",
	}
}

// Sink receives the flattened records of one decoded block.
type Sink interface {
	Store(ctx context.Context, records []storage.Record) error
}

// Stats counts what the ingester has seen since start.
type Stats struct {
	Messages      int64
	Blocks        int64
	Records       int64
	InvalidBlocks int64
	SinkErrors    int64
}

// Ingester connects the NATS feed to the codec and the sinks.
type Ingester struct {
	cfg     Config
	nc      *nats.Conn
	dec     *codec.Codec
	sinks   []Sink
	batchID string
	stats   Stats
}

// New creates an Ingester decoding with dec and storing through sinks.
// Each Ingester run is tagged with a fresh batch id.
func New(cfg Config, dec *codec.Codec, sinks ...Sink) *Ingester {
	return &Ingester{
		cfg:     cfg,
		dec:     dec,
		sinks:   sinks,
		batchID: uuid.NewString(),
	}
}

// BatchID returns the id tagging all records stored by this run.
func (in *Ingester) BatchID() string { return in.batchID }

// Stats returns a snapshot of the run counters. Only meaningful after Run
// has returned or from the subscription goroutine's own callbacks.
func (in *Ingester) Stats() Stats { return in.stats }

// Run subscribes and processes messages until ctx is cancelled.
func (in *Ingester) Run(ctx context.Context) error {
	nc, err := nats.Connect(in.cfg.URL,
		nats.Name("asterix-ingest"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	in.nc = nc
	defer nc.Close()

	handler := func(msg *nats.Msg) {
		in.stats.Messages++
		if err := in.handle(ctx, msg); err != nil {
			log.Printf("ingest: %v", err)
		}
	}

	var sub *nats.Subscription
	if in.cfg.Queue != "" {
		sub, err = nc.QueueSubscribe(in.cfg.Subject, in.cfg.Queue, handler)
	} else {
		sub, err = nc.Subscribe(in.cfg.Subject, handler)
	}
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", in.cfg.Subject, err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	<-ctx.Done()
	return ctx.Err()
}

func (in *Ingester) handle(ctx context.Context, msg *nats.Msg) error {
	frame, err := DecodeFrame(msg.Data)
	if err != nil {
		return fmt.Errorf("frame on %s: %w", msg.Subject, err)
	}

	block := in.dec.Decode(frame)
	in.stats.Blocks++
	if !block.Valid {
		in.stats.InvalidBlocks++
	}

	records, err := storage.FromBlock(in.batchID, time.Now().UTC(), frame, block)
	if err != nil {
		return fmt.Errorf("flatten block: %w", err)
	}
	in.stats.Records += int64(len(records))

	for _, sink := range in.sinks {
		if err := sink.Store(ctx, records); err != nil {
			in.stats.SinkErrors++
			log.Printf("ingest: sink: %v", err)
		}
	}

	if in.cfg.DecodedSubject != "" && in.nc != nil {
		out, err := json.Marshal(block)
		if err == nil {
			_ = in.nc.Publish(in.cfg.DecodedSubject, out)
		}
	}
	return nil
}

// DecodeFrame accepts a raw binary Data Block or its hex encoding. A payload
// consisting solely of hex digits and whitespace is treated as hex text.
func DecodeFrame(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty message")
	}
	if isHexText(data) {
		clean := bytes.Map(func(r rune) rune {
			switch r {
			case ' ', '\t', '\r', '\n':
				return -1
			}
			return r
		}, data)
		frame, err := hex.DecodeString(string(clean))
		if err != nil {
			return nil, fmt.Errorf("decode hex frame: %w", err)
		}
		return frame, nil
	}
	return data, nil
}

func isHexText(data []byte) bool {
	seen := false
	for _, b := range data {
		switch {
		case b == ' ' || b == '\t' || b == '\r' || b == '\n':
		case b >= '0' && b <= '9', b >= 'a' && b <= 'f', b >= 'A' && b <= 'F':
			seen = true
		default:
			return false
		}
	}
	return seen
}
