// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package merge models a JSON document as a tagged [Value] (null,
// scalar, sequence, mapping) and defines the inheritance merge over it
// once.
//
// Mappings keep their key order from the source document, so a merged
// document serializes deterministically. Numbers are held as
// json.Number and never pass through float64.
//
// [Merge] combines a base document with a more specific child:
//
//   - a key present only in one side is taken from that side
//   - a child null leaves the base value in place
//   - two sequences concatenate, child items first
//   - two mappings merge recursively under the same rule
//   - anything else (two scalars, or a kind mismatch) takes the child
//
// Merged mappings list base keys first, in base order, then keys only
// the child has, in child order.
package merge
