// Service entry point: subscribe to a NATS feed of raw ASTERIX Data Blocks,
// decode them against the embedded (or user-supplied) category specs, and
// store the records in the selected sinks. At least one sink or a -publish
// subject is required.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"

	"asterix_codec/internal/codec"
	"asterix_codec/internal/ingest"
	"asterix_codec/internal/schema"
	"asterix_codec/internal/storage"
	"asterix_codec/specs"
)

func main() {
	fs := flag.NewFlagSet("asterix_ingest", flag.ExitOnError)
	natsURL := fs.String("nats", nats.DefaultURL, "NATS server URL")
	subject := fs.String("subject", "asterix.raw", "Subject carrying raw Data Blocks")
	queue := fs.String("queue", "", "Queue group for load-balanced consumers")
	decodedSubj := fs.String("publish", "", "Republish decoded JSON on this subject")
	specDir := fs.String("specs", "", "Directory of category XML specs (default: embedded)")
	sqlitePath := fs.String("sqlite", "", "Archive records to this SQLite database")
	useCH := fs.Bool("clickhouse", false, "Insert records into ClickHouse")
	usePG := fs.Bool("postgres", false, "Maintain sensor state in PostgreSQL")
	_ = fs.Parse(os.Args[1:])

	var reg *schema.Registry
	var err error
	if *specDir == "" {
		reg, err = schema.LoadAll(specs.Files)
	} else {
		reg, err = schema.LoadAll(os.DirFS(*specDir))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load specs: %v\n", err)
		os.Exit(1)
	}
	dec := codec.New(reg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sinks []ingest.Sink

	if *sqlitePath != "" {
		db, err := storage.OpenSQLite(*sqlitePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open sqlite: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()
		sinks = append(sinks, ingest.SQLiteSink{DB: db})
	}

	if *useCH || *usePG {
		cfg := storage.DefaultConfig()
		cfg.UseClickHouse = *useCH
		cfg.UsePostgres = *usePG
		store, err := storage.Open(ctx, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open record store: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
		sinks = append(sinks, ingest.StoreSink{DB: store})
	}

	if len(sinks) == 0 && *decodedSubj == "" {
		fmt.Fprintln(os.Stderr, "No sink selected: pass -sqlite, -clickhouse, -postgres or -publish")
		os.Exit(2)
	}

	in := ingest.New(ingest.Config{
		URL:            *natsURL,
		Subject:        *subject,
		Queue:          *queue,
		DecodedSubject: *decodedSubj,
	}, dec, sinks...)

	fmt.Fprintf(os.Stderr, "ingest: batch %s, subject %s, %d sink(s)\n", in.BatchID(), *subject, len(sinks))

	if err := in.Run(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		os.Exit(1)
	}

	st := in.Stats()
	fmt.Fprintf(os.Stderr,
		"stats: messages=%d blocks=%d records=%d invalid_blocks=%d sink_errors=%d\n",
		st.Messages, st.Blocks, st.Records, st.InvalidBlocks, st.SinkErrors,
	)
}
