// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds kiln's CBOR configuration.
//
// kiln speaks two formats. JSON is used for everything that comes from
// or goes to the outside world: version documents, asset indexes,
// runtime manifests, CLI --json output. CBOR is used between the
// download coordinator and its fetch workers: the partition file each
// worker reads on startup and the progress messages it streams back on
// stdout.
//
// Buffer-oriented use (partition files):
//
//	data, err := codec.Marshal(items)
//	err = codec.Unmarshal(data, &items)
//
// Stream-oriented use (worker stdout):
//
//	encoder := codec.NewEncoder(stdout)
//	decoder := codec.NewDecoder(pipe)
//
// A type that only ever crosses the worker boundary uses `cbor` struct
// tags. A type that is also read from or written to JSON uses `json`
// tags only; fxamacker/cbor falls back to them. Never put both tags on
// the same field.
package codec
