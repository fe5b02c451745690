// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for kiln.
//
// Configuration is read from a single file named by the --config flag
// or the KILN_CONFIG environment variable. When neither is set, kiln
// runs on [Default] values rooted at --root (or ~/.kiln). A named file
// that does not exist is an error; only the absence of any name falls
// back to defaults.
//
// Path fields that are relative are resolved against paths.root after
// loading, so a config file usually sets only the root. ${HOME},
// ${KILN_ROOT} and ${VAR:-default} are expanded in path fields.
//
// Sections:
//
//   - paths: the on-disk layout (assets, libraries, natives, versions,
//     runtimes, meta)
//   - download: worker pool size, watchdog base timeout, attempt bound,
//     worker mode and binary, asset resource host
//   - catalog: remote sources refreshed by "kiln catalog update"
//   - platform: feature flags consulted by library rules
//
// This package depends on no other kiln packages.
package config
