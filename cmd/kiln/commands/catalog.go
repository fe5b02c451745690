// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/kilnmc/kiln/cmd/kiln/cli"
)

func catalogCommand() *cli.Command {
	return &cli.Command{
		Name:    "catalog",
		Summary: "Manage the local version catalog",
		Subcommands: []*cli.Command{
			catalogUpdateCommand(),
		},
	}
}

type catalogUpdateParams struct {
	ConfigParams
	cli.JSONOutput
}

// catalogReport is the --json form of one refreshed source.
type catalogReport struct {
	Source      string `json:"source"`
	Descriptors int    `json:"descriptors"`
	Latest      string `json:"latest,omitempty"`
	Error       string `json:"error,omitempty"`
}

func catalogUpdateCommand() *cli.Command {
	var params catalogUpdateParams

	return &cli.Command{
		Name:    "update",
		Summary: "Refresh version and runtime catalogs from their sources",
		Description: `Download the vanilla version manifest, the fabric game and loader
lists, the forge installer helper, and the Java runtime catalog, and
save them under the meta and libraries directories. Sources are refreshed concurrently. A source that fails
keeps its previously saved copy; the command still reports the failure.

With no arguments every source with a configured url is refreshed.`,
		Usage: "kiln catalog update [vanilla|fabric|forge|runtime ...] [flags]",
		Examples: []cli.Example{
			{
				Description: "Refresh everything",
				Command:     "kiln catalog update",
			},
			{
				Description: "Refresh only the fabric profiles",
				Command:     "kiln catalog update fabric",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			env, err := newEnvironment(&params.ConfigParams, logger)
			if err != nil {
				return err
			}

			reports, updateErr := env.updater().Update(ctx, args...)
			if reports == nil && updateErr != nil {
				return updateErr
			}

			output := make([]catalogReport, len(reports))
			for index, report := range reports {
				output[index] = catalogReport{
					Source:      report.Source,
					Descriptors: report.Descriptors,
					Latest:      report.Latest,
				}
				if report.Err != nil {
					output[index].Error = report.Err.Error()
				}
			}
			if done, err := params.EmitJSON(stdout, output); done {
				return errors.Join(err, updateErr)
			}

			writer := tabwriter.NewWriter(stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(writer, "SOURCE\tENTRIES\tLATEST\tSTATUS")
			for _, report := range output {
				status := "ok"
				if report.Error != "" {
					status = "failed (kept saved copy)"
				}
				latest := report.Latest
				if latest == "" {
					latest = "-"
				}
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", report.Source, humanize.Comma(int64(report.Descriptors)), latest, status)
			}
			if err := writer.Flush(); err != nil {
				return err
			}
			return updateErr
		},
	}
}
