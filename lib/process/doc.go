// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds entrypoint helpers shared by the kiln binaries.
// Fatal is for errors that happen before a structured logger exists, or
// in the fetch worker whose stdout is reserved for protocol messages.
package process
