// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/kilnmc/kiln/lib/manifest/merge"
	"github.com/kilnmc/kiln/lib/transfer"
)

var (
	// ErrUnknownVersion means no catalog lists the id and nothing is
	// stored for it.
	ErrUnknownVersion = errors.New("version does not exist")

	// ErrMissingVersion means the catalog lists the id but its body is
	// not stored locally and has no URL to fetch it from.
	ErrMissingVersion = errors.New("version exists but its data is missing locally")

	// ErrInheritanceCycle means a version inherits from itself through
	// its parents.
	ErrInheritanceCycle = errors.New("inheritance cycle")
)

// ResolutionError identifies the version whose resolution failed.
type ResolutionError struct {
	ID  string
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("version %s: %v", e.ID, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Resolver turns descriptors into merged versions. Results are cached
// for the resolver's lifetime. It is safe for concurrent use.
type Resolver struct {
	// Catalog resolves inheritsFrom ids. Required.
	Catalog *Catalog

	// Versions is the root of the version storage tree. Required.
	Versions string

	// Fetcher downloads remote bodies. Nil means a zero Fetcher.
	Fetcher *transfer.Fetcher

	Logger *slog.Logger

	mu    sync.Mutex
	cache map[string]*Version
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func (r *Resolver) fetcher() *transfer.Fetcher {
	if r.Fetcher == nil {
		return &transfer.Fetcher{Logger: r.Logger}
	}
	return r.Fetcher
}

// Resolve looks id up in the catalog and resolves it.
func (r *Resolver) Resolve(ctx context.Context, id string) (*Version, error) {
	return r.ResolveDescriptor(ctx, r.Catalog.Lookup(id))
}

// ResolveDescriptor loads descriptor's body, applies its overrides, and
// merges it over its inheritance chain.
func (r *Resolver) ResolveDescriptor(ctx context.Context, descriptor Descriptor) (*Version, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cache == nil {
		r.cache = make(map[string]*Version)
	}
	return r.resolve(ctx, descriptor, nil)
}

func (r *Resolver) resolve(ctx context.Context, descriptor Descriptor, chain []string) (*Version, error) {
	if cached, ok := r.cache[descriptor.ID]; ok {
		return cached, nil
	}
	if slices.Contains(chain, descriptor.ID) {
		path := strings.Join(append(chain, descriptor.ID), " -> ")
		return nil, &ResolutionError{ID: descriptor.ID, Err: fmt.Errorf("%w: %s", ErrInheritanceCycle, path)}
	}
	chain = append(chain, descriptor.ID)

	name := descriptor.Name()
	folder := filepath.Join(r.Versions, name)
	file := filepath.Join(folder, descriptor.ID+".json")

	if err := r.migrate(descriptor.ID, file); err != nil {
		return nil, &ResolutionError{ID: descriptor.ID, Err: err}
	}

	document, err := r.load(ctx, descriptor, folder, file)
	if err != nil {
		return nil, &ResolutionError{ID: descriptor.ID, Err: err}
	}
	if document.Kind() != merge.Mapping {
		return nil, &ResolutionError{ID: descriptor.ID, Err: fmt.Errorf("%s: version body is a %s, not an object", file, document.Kind())}
	}
	if descriptor.Overrides != nil {
		document = merge.Override(document, *descriptor.Overrides)
	}

	if parentValue, ok := document.Get("inheritsFrom"); ok {
		parentID, isString := parentValue.Str()
		if !isString {
			return nil, &ResolutionError{ID: descriptor.ID, Err: fmt.Errorf("inheritsFrom is a %s, not a string", parentValue.Kind())}
		}
		if parentID != "" {
			parent, err := r.resolve(ctx, r.Catalog.Lookup(parentID), chain)
			if err != nil {
				return nil, fmt.Errorf("resolving parent of %s: %w", descriptor.ID, err)
			}
			document = merge.Merge(parent.Document, document)
			folder, name = parent.Folder, parent.Name
		}
	}

	version := &Version{
		Descriptor: descriptor,
		Document:   document,
		Folder:     folder,
		Name:       name,
	}
	if err := document.Decode(&version.Body); err != nil {
		return nil, &ResolutionError{ID: descriptor.ID, Err: fmt.Errorf("decoding merged document: %w", err)}
	}
	r.cache[descriptor.ID] = version
	return version, nil
}

// load returns the parsed body for descriptor, fetching it when the
// descriptor is remote.
func (r *Resolver) load(ctx context.Context, descriptor Descriptor, folder, file string) (merge.Value, error) {
	var data []byte
	if descriptor.URL != "" {
		fetched, err := r.fetcher().EnsureRead(ctx, transfer.Item{
			Key:  descriptor.ID,
			Path: folder,
			Name: filepath.Base(file),
			URL:  descriptor.URL,
			SHA1: descriptor.SHA1,
		})
		if err != nil {
			return merge.Value{}, err
		}
		data = fetched
	} else {
		stored, err := os.ReadFile(file)
		if errors.Is(err, fs.ErrNotExist) {
			if descriptor.Type == TypeUnknown {
				return merge.Value{}, ErrUnknownVersion
			}
			return merge.Value{}, ErrMissingVersion
		}
		if err != nil {
			return merge.Value{}, err
		}
		data = stored
	}

	document, err := merge.Parse(data)
	if err != nil {
		return merge.Value{}, fmt.Errorf("parsing %s: %w", file, err)
	}
	return document, nil
}

// migrate moves a body stored under the pre-base layout,
// <versions>/<id>/<id>.json, to file and removes the old folder.
func (r *Resolver) migrate(id, file string) error {
	legacyFolder := filepath.Join(r.Versions, id)
	legacyFile := filepath.Join(legacyFolder, id+".json")
	if legacyFile == file {
		return nil
	}
	if _, err := os.Stat(file); err == nil {
		return nil
	}
	data, err := os.ReadFile(legacyFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading legacy body: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return fmt.Errorf("migrating legacy body: %w", err)
	}
	if err := os.WriteFile(file, data, 0o644); err != nil {
		return fmt.Errorf("migrating legacy body: %w", err)
	}
	if err := os.RemoveAll(legacyFolder); err != nil {
		return fmt.Errorf("removing legacy folder: %w", err)
	}
	r.logger().Info("migrated version to shared folder",
		"version", id,
		"from", legacyFolder,
		"to", file,
	)
	return nil
}
