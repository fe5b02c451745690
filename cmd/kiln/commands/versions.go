// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/kilnmc/kiln/cmd/kiln/cli"
	"github.com/kilnmc/kiln/lib/manifest"
)

type versionsParams struct {
	ConfigParams
	cli.JSONOutput
	Types []string `json:"-" flag:"type,t" desc:"only list these types (release, snapshot, old_alpha, old_beta, fabric, forge, custom)"`
}

// versionsResult is the --json form of the catalog listing.
type versionsResult struct {
	Latest   manifest.Latest       `json:"latest"`
	Versions []manifest.Descriptor `json:"versions"`
}

func versionsCommand() *cli.Command {
	var params versionsParams

	return &cli.Command{
		Name:    "versions",
		Summary: "List the versions in the local catalog",
		Description: `List the version descriptors saved under the meta directory. Run
'kiln catalog update' first to populate the catalog from the remote
sources; custom descriptors in manifests/*.jsonc are listed as well.`,
		Usage: "kiln versions [flags]",
		Examples: []cli.Example{
			{
				Description: "List releases and fabric profiles",
				Command:     "kiln versions --type release,fabric",
			},
		},
		Params: func() any { return &params },
		Run: func(_ context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}

			env, err := newEnvironment(&params.ConfigParams, logger)
			if err != nil {
				return err
			}
			versions, err := manifest.LoadCatalog(env.config.Paths.Meta)
			if err != nil {
				return err
			}

			types := make([]manifest.Type, len(params.Types))
			for index, name := range params.Types {
				types[index] = manifest.Type(name)
			}
			result := versionsResult{
				Latest:   versions.Latest(),
				Versions: versions.Descriptors(types...),
			}
			if done, err := params.EmitJSON(stdout, result); done {
				return err
			}

			if len(result.Versions) == 0 {
				fmt.Fprintln(stdout, "no versions in the catalog (run 'kiln catalog update')")
				return nil
			}
			writer := tabwriter.NewWriter(stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(writer, "ID\tTYPE\tRELEASED\tBASE")
			for _, descriptor := range result.Versions {
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
					descriptor.ID, descriptor.Type, descriptor.ReleaseTime, descriptor.Base)
			}
			if err := writer.Flush(); err != nil {
				return err
			}
			if result.Latest.Release != "" || result.Latest.Snapshot != "" {
				fmt.Fprintf(stdout, "\nlatest release: %s, latest snapshot: %s\n",
					result.Latest.Release, result.Latest.Snapshot)
			}
			return nil
		},
	}
}
