// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/kilnmc/kiln/cmd/kiln/cli"
	"github.com/kilnmc/kiln/lib/transfer"
)

type fetchParams struct {
	ConfigParams
	Retry int `json:"-" flag:"retry" desc:"retry factor of the first attempt" default:"1"`
}

func fetchCommand() *cli.Command {
	var params fetchParams

	return &cli.Command{
		Name:    "fetch",
		Summary: "Download an arbitrary batch of files",
		Description: `Download every item listed in a JSON batch file through the worker
pool. The file holds an array of items:

  [{"key": "mods/example.jar", "path": "/srv/mods", "name": "example.jar",
    "url": "https://example.com/example.jar", "sha1": "...", "size": 1024}]

Items may carry an "unpack" step ({"format": "zip"|"lzma", "path": ...})
and an "executable" flag. Items whose destination already matches
sha1 and size are skipped by the workers.`,
		Usage: "kiln fetch <batch.json> [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one batch file, got %d arguments", len(args))
			}
			batch, err := readBatch(args[0])
			if err != nil {
				return err
			}

			env, err := newEnvironment(&params.ConfigParams, logger)
			if err != nil {
				return err
			}
			orchestrator, err := env.downloader()
			if err != nil {
				return err
			}

			var size int64
			for _, item := range batch {
				size += item.Size
			}
			env.logger.Info("fetching batch",
				"items", humanize.Comma(int64(len(batch))),
				"size", humanize.Bytes(uint64(size)),
			)
			if err := orchestrator.Download(ctx, batch, params.Retry); err != nil {
				return err
			}
			_, err = fmt.Fprintf(stdout, "fetched %s items\n", humanize.Comma(int64(len(batch))))
			return err
		},
	}
}

// readBatch parses a JSON item array into a validated batch.
func readBatch(path string) (transfer.Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading batch: %w", err)
	}
	var items []transfer.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parsing batch %s: %w", path, err)
	}
	batch := make(transfer.Batch, len(items))
	for _, item := range items {
		batch.Add(item)
	}
	if err := batch.Validate(); err != nil {
		return nil, fmt.Errorf("batch %s: %w", path, err)
	}
	return batch, nil
}
