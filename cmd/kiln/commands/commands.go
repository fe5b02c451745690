// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the kiln CLI command tree.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kilnmc/kiln/cmd/kiln/cli"
	"github.com/kilnmc/kiln/lib/version"
)

// Root builds and returns the complete kiln CLI command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "kiln",
		Description: `Kiln: version resolution and parallel file acquisition for the game client.

Resolves version descriptors through their inheritance chains, then
downloads the libraries, assets, client jar and Java runtime a version
needs through a pool of restartable fetch workers.`,
		Subcommands: []*cli.Command{
			installCommand(),
			resolveCommand(),
			versionsCommand(),
			catalogCommand(),
			runtimeCommand(),
			fetchCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, _ []string, _ *slog.Logger) error {
					fmt.Fprintf(stdout, "kiln %s\n", version.Full())
					return nil
				},
			},
		},
	}
}
