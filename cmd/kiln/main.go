// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Kiln resolves game versions and downloads the files they need.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kilnmc/kiln/cmd/kiln/commands"
	"github.com/kilnmc/kiln/lib/process"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return commands.Root().Execute(ctx, os.Args[1:])
}
