// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package assets synchronizes the shared, content-addressed asset pool
// with a version's asset index.
//
// Objects are stored once per hash at objects/<hash[0:2]>/<hash>
// beneath the assets root, whatever virtual paths refer to them.
// Indexes marked virtual or map_to_resources additionally get a tree
// of plain copies under legacy/, laid out by virtual path, for old
// clients that read assets by name.
package assets

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kilnmc/kiln/lib/checksum"
	"github.com/kilnmc/kiln/lib/manifest"
	"github.com/kilnmc/kiln/lib/transfer"
)

// RetryFactor is the initial watchdog multiplier for asset batches.
const RetryFactor = 1

// Objects clients with map_to_resources indexes expect that the indexes
// themselves do not list.
var resourceIcons = map[string]Object{
	"icons/icon_16x16.png": {Hash: "bdf48ef6b5d0d23bbb02e17d04865216179f510a", Size: 3665},
	"icons/icon_32x32.png": {Hash: "92750c5f93c312ba9ab413d546f32190c56d6f1f", Size: 5362},
	"icons/minecraft.icns": {Hash: "991b421dfd401f115241601b2b373140a8d78572", Size: 114786},
}

// Index is an asset index document.
type Index struct {
	Objects        map[string]Object `json:"objects"`
	Virtual        bool              `json:"virtual,omitempty"`
	MapToResources bool              `json:"map_to_resources,omitempty"`
}

// Object is one entry of an asset index.
type Object struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// Downloader executes a batch. *fetch.Orchestrator implements it.
type Downloader interface {
	Download(ctx context.Context, batch transfer.Batch, retry int) error
}

// Synchronizer brings the asset pool up to date with an index.
type Synchronizer struct {
	// Root is the assets directory. Required.
	Root string

	// ResourceURL is the object host; objects are fetched from
	// <ResourceURL>/<hash[0:2]>/<hash>. Required.
	ResourceURL string

	// Downloader runs the object batch. Required.
	Downloader Downloader

	// Fetcher downloads the index document. Nil means a zero Fetcher.
	Fetcher *transfer.Fetcher

	Logger *slog.Logger
}

func (s *Synchronizer) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// ObjectPath returns where the object with the given hash is stored
// beneath root. hash must be a full hex digest.
func ObjectPath(root, hash string) string {
	return filepath.Join(root, "objects", hash[:2], hash)
}

// Sync fetches the index ref points at, downloads every object it
// lists, and materializes the legacy copy tree when the index asks for
// one. It returns the index as used, icons included.
func (s *Synchronizer) Sync(ctx context.Context, ref manifest.Artifact) (*Index, error) {
	if s.Downloader == nil {
		return nil, fmt.Errorf("asset synchronizer has no downloader")
	}
	index, err := s.LoadIndex(ctx, ref)
	if err != nil {
		return nil, err
	}
	batch, err := s.Batch(index)
	if err != nil {
		return nil, err
	}

	s.logger().Info("synchronizing assets",
		"index", ref.ID,
		"objects", len(index.Objects),
		"distinct", len(batch),
	)
	if err := s.Downloader.Download(ctx, batch, RetryFactor); err != nil {
		return nil, fmt.Errorf("downloading assets: %w", err)
	}

	if err := s.Materialize(index); err != nil {
		return nil, err
	}
	return index, nil
}

// LoadIndex fetches the index into indexes/<id>.json through the
// verified single-file path and parses it. Icons are added to
// map_to_resources indexes.
func (s *Synchronizer) LoadIndex(ctx context.Context, ref manifest.Artifact) (*Index, error) {
	if ref.ID == "" || strings.ContainsAny(ref.ID, `/\`) {
		return nil, fmt.Errorf("invalid asset index id %q", ref.ID)
	}
	fetcher := s.Fetcher
	if fetcher == nil {
		fetcher = &transfer.Fetcher{Logger: s.Logger}
	}
	data, err := fetcher.EnsureRead(ctx, transfer.Item{
		Key:  "asset-index/" + ref.ID,
		Path: filepath.Join(s.Root, "indexes"),
		Name: ref.ID + ".json",
		URL:  ref.URL,
		SHA1: ref.SHA1,
		Size: ref.Size,
	})
	if err != nil {
		return nil, fmt.Errorf("asset index %s: %w", ref.ID, err)
	}

	var index Index
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("parsing asset index %s: %w", ref.ID, err)
	}
	if index.Objects == nil {
		index.Objects = make(map[string]Object)
	}
	if index.MapToResources {
		for name, object := range resourceIcons {
			index.Objects[name] = object
		}
	}
	return &index, nil
}

// Batch returns one item per distinct object hash. Keying by hash
// keeps two virtual paths with the same content from racing on one
// destination.
func (s *Synchronizer) Batch(index *Index) (transfer.Batch, error) {
	base := strings.TrimSuffix(s.ResourceURL, "/")
	if base == "" {
		return nil, fmt.Errorf("asset synchronizer has no resource url")
	}
	batch := transfer.Batch{}
	for name, object := range index.Objects {
		if err := validHash(object.Hash); err != nil {
			return nil, fmt.Errorf("asset %s: %w", name, err)
		}
		hash := strings.ToLower(object.Hash)
		batch.Add(transfer.Item{
			Key:  hash,
			Path: filepath.Join(s.Root, "objects", hash[:2]),
			Name: hash,
			URL:  base + "/" + hash[:2] + "/" + hash,
			SHA1: hash,
			Size: object.Size,
		})
	}
	return batch, nil
}

// Materialize copies objects to legacy/virtual or legacy/resources by
// virtual path, for indexes that are virtual or map_to_resources.
// Copies whose destination already verifies are skipped.
func (s *Synchronizer) Materialize(index *Index) error {
	if !index.Virtual && !index.MapToResources {
		return nil
	}
	tree := "resources"
	if index.Virtual {
		tree = "virtual"
	}
	root := filepath.Join(s.Root, "legacy", tree)

	names := make([]string, 0, len(index.Objects))
	for name := range index.Objects {
		names = append(names, name)
	}
	sort.Strings(names)

	copied := 0
	for _, name := range names {
		object := index.Objects[name]
		if err := validHash(object.Hash); err != nil {
			return fmt.Errorf("asset %s: %w", name, err)
		}
		relative := path.Clean(name)
		if path.IsAbs(relative) || relative == ".." || strings.HasPrefix(relative, "../") {
			return fmt.Errorf("asset path %q escapes the legacy tree", name)
		}
		destination := filepath.Join(root, filepath.FromSlash(relative))

		verified, err := checksum.Verify(destination, object.Hash, object.Size)
		if err != nil {
			return fmt.Errorf("checking %s: %w", destination, err)
		}
		if verified {
			continue
		}
		if err := copyFile(ObjectPath(s.Root, strings.ToLower(object.Hash)), destination); err != nil {
			return fmt.Errorf("materializing %s: %w", name, err)
		}
		copied++
	}
	s.logger().Info("materialized legacy assets", "tree", tree, "copied", copied, "total", len(names))
	return nil
}

func validHash(hash string) error {
	if len(hash) != 40 {
		return fmt.Errorf("hash %q is %d characters, want 40", hash, len(hash))
	}
	if _, err := hex.DecodeString(hash); err != nil {
		return fmt.Errorf("hash %q: %w", hash, err)
	}
	return nil
}

// copyFile writes source to destination through a temporary file in
// the destination directory.
func copyFile(source, destination string) error {
	input, err := os.Open(source)
	if err != nil {
		return err
	}
	defer input.Close()

	directory := filepath.Dir(destination)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return err
	}
	output, err := os.CreateTemp(directory, "."+filepath.Base(destination)+".*.part")
	if err != nil {
		return err
	}
	temporary := output.Name()
	if _, err := io.Copy(output, input); err != nil {
		output.Close()
		os.Remove(temporary)
		return err
	}
	if err := output.Close(); err != nil {
		os.Remove(temporary)
		return err
	}
	if err := os.Rename(temporary, destination); err != nil {
		os.Remove(temporary)
		return err
	}
	return nil
}
