// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package checksum verifies downloaded files against the SHA-1 digests
// and sizes published in version documents, asset indexes, and runtime
// manifests.
//
// Digests are lower-case hex strings everywhere in kiln, matching the
// upstream JSON. Files are streamed through the hash so memory stays
// flat for multi-hundred-megabyte runtime images.
//
// [Verify] is the "already have it" check used before every fetch: a
// file counts as present only when its size matches (if a size is
// known) and its digest matches (if a digest is known). A descriptor
// with neither is never considered present.
package checksum
