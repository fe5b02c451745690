// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the kiln binaries.
//
// Values are injected at build time, for example:
//
//	go build -ldflags "-X github.com/kilnmc/kiln/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Info is also sent as the User-Agent suffix on every HTTP request kiln
// makes, so mirror operators can tell client builds apart.
package version
