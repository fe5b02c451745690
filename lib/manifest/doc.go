// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package manifest resolves version descriptors into merged version
// documents.
//
// A [Descriptor] names a version and says where its body lives: either
// a remote URL with a SHA-1 digest, or a file already stored under the
// versions directory. [Resolver] loads the body, applies the
// descriptor's overrides, and follows inheritsFrom through a [Catalog],
// merging each parent beneath its child with [merge.Merge]. The result
// is a [Version]: the merged document, a typed view of the fields the
// installer consumes, and the folder and name shared by the whole
// inheritance chain.
package manifest
