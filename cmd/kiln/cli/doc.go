// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for the kiln CLI.
//
// The central type is [Command], which represents a named subcommand with
// optional nested [Command.Subcommands], a params struct whose tagged
// fields become pflag flags, and a Run function. Commands are assembled
// into a tree in cmd/kiln/commands and dispatched via [Command.Execute],
// which handles flag parsing, subcommand routing, and structured help
// output with examples.
//
// When a user types an unknown subcommand or flag, the framework computes
// Levenshtein edit distance against all known names and suggests the
// closest match (threshold: distance <= 3). This is implemented in
// suggest.go.
//
// Run functions receive a logger from [NewCommandLogger], scoped to the
// command path, and write results to stdout either as text or, for
// params embedding [JSONOutput], as JSON.
package cli
