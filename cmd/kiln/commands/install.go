// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kilnmc/kiln/cmd/kiln/cli"
)

type installParams struct {
	ConfigParams
	cli.JSONOutput
	NoRuntime bool `json:"-" flag:"no-runtime" desc:"skip Java runtime provisioning"`
}

// installResult is the --json form of a finished install.
type installResult struct {
	ID        string   `json:"id"`
	Folder    string   `json:"folder"`
	MainClass string   `json:"main_class,omitempty"`
	Classpath []string `json:"classpath"`
	JavaPath  string   `json:"java_path,omitempty"`
}

func installCommand() *cli.Command {
	var params installParams

	return &cli.Command{
		Name:    "install",
		Summary: "Resolve a version and download everything it needs",
		Description: `Resolve a version through its inheritance chain, then acquire its
assets, libraries, client jar and Java runtime. Files that already
match their published digest are not downloaded again, so install is
safe to re-run after an interruption.

The id may be a catalog id or one of the aliases latest-release and
latest-snapshot.`,
		Usage: "kiln install <version> [flags]",
		Examples: []cli.Example{
			{
				Description: "Install the latest release",
				Command:     "kiln install latest-release",
			},
			{
				Description: "Install a fabric profile without touching runtimes",
				Command:     "kiln install fabric-loader-0.15.11-1.20.1 --no-runtime",
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
			installer, err := env.installer(!params.NoRuntime)
			if err != nil {
				return err
			}

			result, err := installer.Install(ctx, args[0])
			if err != nil {
				return err
			}

			output := installResult{
				ID:        result.Version.ID,
				Folder:    result.Version.Folder,
				MainClass: result.Version.MainClass,
				Classpath: result.Classpath,
				JavaPath:  result.JavaPath,
			}
			if done, err := params.EmitJSON(stdout, output); done {
				return err
			}

			fmt.Fprintf(stdout, "installed %s\n", output.ID)
			if output.JavaPath != "" {
				fmt.Fprintf(stdout, "java:      %s\n", output.JavaPath)
			}
			if output.MainClass != "" {
				fmt.Fprintf(stdout, "main:      %s\n", output.MainClass)
			}
			fmt.Fprintf(stdout, "classpath: %s\n", strings.Join(output.Classpath, "\n           "))
			return nil
		},
	}
}
