// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package transfer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Format selects how an item is unpacked after download.
type Format string

const (
	// Zip extracts every entry not excluded into Unpack.Path.
	Zip Format = "zip"

	// LZMA decompresses the file into Unpack.Path/Unpack.Name.
	LZMA Format = "lzma"
)

// Item is one file to download.
type Item struct {
	// Key identifies the item within a batch. Empty means Path/Name.
	Key string `json:"key,omitempty"`

	// Path is the destination directory.
	Path string `json:"path"`

	// Name is the destination file name.
	Name string `json:"name"`

	URL string `json:"url"`

	// SHA1 is the expected hex digest. Empty skips the digest check.
	SHA1 string `json:"sha1,omitempty"`

	// Size is the expected length in bytes. Zero skips the size check.
	Size int64 `json:"size,omitempty"`

	Unpack *Unpack `json:"unpack,omitempty"`

	// Executable marks the final file (the unpacked file for LZMA
	// items) as executable.
	Executable bool `json:"executable,omitempty"`
}

// Unpack is a post-download extraction step.
type Unpack struct {
	Format Format `json:"format"`

	// Path is the extraction directory.
	Path string `json:"path"`

	// Name is the decompressed file name. Required for LZMA.
	Name string `json:"name,omitempty"`

	// Exclude lists zip entry prefixes that are not extracted, such as
	// "META-INF/".
	Exclude []string `json:"exclude,omitempty"`

	// SHA1 and Size describe the decompressed LZMA output. When they
	// match an existing file, decompression is skipped.
	SHA1 string `json:"sha1,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// Destination returns the full path of the downloaded file.
func (i Item) Destination() string {
	return filepath.Join(i.Path, i.Name)
}

// Target returns the final file for LZMA items and the destination
// otherwise.
func (i Item) Target() string {
	if i.Unpack != nil && i.Unpack.Format == LZMA {
		return filepath.Join(i.Unpack.Path, i.Unpack.Name)
	}
	return i.Destination()
}

// Validate checks that the item is complete enough to fetch.
func (i Item) Validate() error {
	switch {
	case i.Path == "":
		return fmt.Errorf("item %q: path is required", i.Key)
	case i.Name == "":
		return fmt.Errorf("item %q: name is required", i.Key)
	case i.URL == "":
		return fmt.Errorf("item %q: url is required", i.Key)
	}
	if i.Unpack == nil {
		return nil
	}
	switch i.Unpack.Format {
	case Zip:
	case LZMA:
		if i.Unpack.Name == "" {
			return fmt.Errorf("item %q: lzma unpack requires a name", i.Key)
		}
	default:
		return fmt.Errorf("item %q: unknown unpack format %q", i.Key, i.Unpack.Format)
	}
	if i.Unpack.Path == "" {
		return fmt.Errorf("item %q: unpack path is required", i.Key)
	}
	return nil
}

// Batch is a set of items keyed by Item.Key.
type Batch map[string]Item

// Add inserts item, defaulting an empty key to Path/Name. An existing
// item with the same key is replaced.
func (b Batch) Add(item Item) {
	if item.Key == "" {
		item.Key = filepath.ToSlash(filepath.Join(item.Path, item.Name))
	}
	b[item.Key] = item
}

// Merge adds every item of other to b, replacing items with equal keys.
func (b Batch) Merge(other Batch) {
	for _, item := range other {
		b.Add(item)
	}
}

// Items returns the items sorted by key.
func (b Batch) Items() []Item {
	items := make([]Item, 0, len(b))
	for _, item := range b {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
	return items
}

// Validate checks every item.
func (b Batch) Validate() error {
	for _, item := range b.Items() {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// CreateDirectories creates every destination and unpack directory.
// Existing directories are left alone.
func (b Batch) CreateDirectories() error {
	created := make(map[string]bool)
	for _, item := range b {
		for _, directory := range []string{item.Path, unpackPath(item)} {
			if directory == "" || created[directory] {
				continue
			}
			if err := os.MkdirAll(directory, 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", directory, err)
			}
			created[directory] = true
		}
	}
	return nil
}

func unpackPath(item Item) string {
	if item.Unpack == nil {
		return ""
	}
	return item.Unpack.Path
}
