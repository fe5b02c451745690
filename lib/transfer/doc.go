// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package transfer describes single-file downloads and performs them.
//
// An [Item] names a remote URL, a destination (Path/Name), the expected
// SHA-1 and size, and optionally an [Unpack] step run after the file is
// in place: zip extraction for native library jars, or LZMA
// decompression for runtime image files. A [Batch] is a set of items
// keyed by Item.Key; adding a second item with the same key replaces
// the first, so two items can never race on one destination.
//
// [Fetcher.Ensure] is the verified single-file path. An item whose
// destination already matches its digest and size is not fetched.
// Otherwise the body is streamed to a temporary file beside the
// destination while being hashed, checked, and renamed into place, so a
// destination is never observed half-written. An item that declares
// neither digest nor size is always fetched.
//
// Failures carry a [Kind] (fetch, status, integrity, unpack,
// filesystem) so the download orchestrator can report them without
// string matching. Integrity failures wrap [ErrIntegrity].
package transfer
