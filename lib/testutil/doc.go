// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for kiln packages.
//
// [RequireReceive] wraps the select-with-timeout pattern. It is the only
// place in the test suite where a real wall-clock timeout is used;
// watchdog timing runs on the fake clock from lib/clock.
//
// [FileServer] is an httptest server that serves a fixed set of blobs
// and counts requests per path, so tests can assert that verified
// files are not fetched again.
//
// [WriteFile] creates a file and its parent directories; [ReadFile]
// reads one back. All helpers call t.Fatalf on failure.
package testutil
