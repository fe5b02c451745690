// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Kiln-fetch-worker downloads one partition of a batch on behalf of
// the kiln download orchestrator. It reads the CBOR partition file
// named by --partition, fetches and verifies each item in order, and
// writes one CBOR message per item to stdout. Logs go to stderr as
// JSON, since stdout is the protocol channel.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kilnmc/kiln/lib/fetch"
	"github.com/kilnmc/kiln/lib/process"
	"github.com/kilnmc/kiln/lib/transfer"
	"github.com/kilnmc/kiln/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var partition string
	var verbose bool
	var showVersion bool

	flag.StringVar(&partition, "partition", "", "path to the CBOR partition file (required)")
	flag.BoolVar(&verbose, "verbose", false, "log every fetch at debug level")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("kiln-fetch-worker %s\n", version.Info())
		return nil
	}
	if partition == "" {
		return fmt.Errorf("--partition is required")
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})).With("pid", os.Getpid())
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher := &transfer.Fetcher{Logger: logger}
	if err := fetch.ServeWorker(ctx, partition, fetcher, os.Stdout); err != nil {
		return fmt.Errorf("partition %s: %w", partition, err)
	}
	return nil
}
