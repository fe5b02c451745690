// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kilnmc/kiln/cmd/kiln/cli"
	"github.com/kilnmc/kiln/lib/manifest"
)

type runtimeParams struct {
	ConfigParams
	Platform string `json:"-" flag:"platform" desc:"catalog platform name (default: the host's, e.g. linux or mac-os-arm64)"`
}

func runtimeCommand() *cli.Command {
	var params runtimeParams

	return &cli.Command{
		Name:    "runtime",
		Summary: "Install a Java runtime component",
		Description: `Provision one Java runtime component from the runtime catalog and
print the path of its java executable. With no argument the default
component (` + manifest.DefaultJavaComponent + `) is installed.`,
		Usage: "kiln runtime [component] [flags]",
		Examples: []cli.Example{
			{
				Description: "Install the runtime used by current releases",
				Command:     "kiln runtime java-runtime-gamma",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			component := manifest.DefaultJavaComponent
			switch len(args) {
			case 0:
			case 1:
				component = args[0]
			default:
				return fmt.Errorf("expected at most one component, got %d arguments", len(args))
			}

			env, err := newEnvironment(&params.ConfigParams, logger)
			if err != nil {
				return err
			}
			orchestrator, err := env.downloader()
			if err != nil {
				return err
			}
			provisioner := env.runtimes(orchestrator)
			provisioner.Platform = params.Platform

			javaPath, err := provisioner.Provision(ctx, component)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(stdout, javaPath)
			return err
		},
	}
}
