// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kilnmc/kiln/cmd/kiln/cli"
)

type resolveParams struct {
	ConfigParams
	Compact bool `json:"-" flag:"compact" desc:"print the document on one line"`
}

func resolveCommand() *cli.Command {
	var params resolveParams

	return &cli.Command{
		Name:    "resolve",
		Summary: "Print the merged version document",
		Description: `Resolve a version through its inheritance chain and print the merged
document. Remote bodies are downloaded into the versions directory as
needed; nothing else is fetched.`,
		Usage: "kiln resolve <version> [flags]",
		Examples: []cli.Example{
			{
				Description: "Show the merged fabric profile",
				Command:     "kiln resolve fabric-loader-0.15.11-1.20.1",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one version id, got %d arguments", len(args))
			}

			env, err := newEnvironment(&params.ConfigParams, logger)
			if err != nil {
				return err
			}
			resolver, err := env.resolver()
			if err != nil {
				return err
			}
			version, err := resolver.Resolve(ctx, args[0])
			if err != nil {
				return err
			}

			document, err := version.Document.MarshalJSON()
			if err != nil {
				return fmt.Errorf("encoding %s: %w", version.ID, err)
			}
			if !params.Compact {
				var indented bytes.Buffer
				if err := json.Indent(&indented, document, "", "  "); err != nil {
					return fmt.Errorf("formatting %s: %w", version.ID, err)
				}
				document = indented.Bytes()
			}
			_, err = fmt.Fprintf(stdout, "%s\n", document)
			return err
		},
	}
}
