// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package platform describes the host a version is installed for and
// evaluates the conditional rules that version documents attach to
// libraries and arguments.
//
// Rule semantics follow the launcher format: an empty rule list always
// applies; otherwise the entry starts disallowed and each matching rule
// sets the outcome to its action, so the last matching rule wins. A
// rule matches when every condition it states (OS name, OS version
// pattern, architecture, feature flags) holds.
//
// [RuntimePlatform] maps a GOOS/GOARCH pair to the platform key used by
// the Java runtime catalog.
package platform
