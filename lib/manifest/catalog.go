// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/tidwall/jsonc"
)

// Aliases accepted by Catalog.Lookup.
const (
	AliasLatestRelease  = "latest-release"
	AliasLatestSnapshot = "latest-snapshot"
)

// Latest holds the newest release and snapshot ids.
type Latest struct {
	Release  string `json:"release"`
	Snapshot string `json:"snapshot"`
}

// Catalog maps version ids to descriptors. It is safe for concurrent
// use.
type Catalog struct {
	mu          sync.RWMutex
	descriptors map[string]Descriptor
	order       []string
	latest      Latest
}

// NewCatalog returns a catalog holding descriptors.
func NewCatalog(descriptors ...Descriptor) *Catalog {
	catalog := &Catalog{descriptors: make(map[string]Descriptor)}
	for _, descriptor := range descriptors {
		catalog.Add(descriptor)
	}
	return catalog
}

// LoadCatalog reads every *.json and *.jsonc file in <meta>/manifests,
// in file name order, and the aliases in <meta>/index/latest.json.
// Each file holds a JSON array of descriptors, or an object with a
// "versions" array. A descriptor in a later file replaces an earlier
// one with the same id. Missing files yield an empty catalog.
func LoadCatalog(meta string) (*Catalog, error) {
	catalog := NewCatalog()

	directory := filepath.Join(meta, "manifests")
	entries, err := os.ReadDir(directory)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !(strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".jsonc")) {
			continue
		}
		path := filepath.Join(directory, name)
		descriptors, err := readDescriptors(path)
		if err != nil {
			return nil, err
		}
		for _, descriptor := range descriptors {
			catalog.Add(descriptor)
		}
	}

	latestPath := filepath.Join(meta, "index", "latest.json")
	data, err := os.ReadFile(latestPath)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &catalog.latest); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", latestPath, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("reading %s: %w", latestPath, err)
	}
	return catalog, nil
}

func readDescriptors(path string) ([]Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	stripped := bytes.TrimSpace(jsonc.ToJSON(data))
	if len(stripped) == 0 {
		return nil, nil
	}

	var descriptors []Descriptor
	if stripped[0] == '{' {
		var wrapped struct {
			Versions []Descriptor `json:"versions"`
		}
		if err := json.Unmarshal(stripped, &wrapped); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		descriptors = wrapped.Versions
	} else if err := json.Unmarshal(stripped, &descriptors); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	for index, descriptor := range descriptors {
		if descriptor.ID == "" {
			return nil, fmt.Errorf("%s: descriptor %d has no id", path, index)
		}
		if descriptor.Type == "" {
			descriptors[index].Type = TypeCustom
		}
	}
	return descriptors, nil
}

// Add inserts or replaces a descriptor.
func (c *Catalog) Add(descriptor Descriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.descriptors[descriptor.ID]; !exists {
		c.order = append(c.order, descriptor.ID)
	}
	c.descriptors[descriptor.ID] = descriptor
}

// SetLatest replaces the alias targets.
func (c *Catalog) SetLatest(latest Latest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest = latest
}

// Latest returns the alias targets.
func (c *Catalog) Latest() Latest {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

// Lookup returns the descriptor for id, expanding the latest-release
// and latest-snapshot aliases. An id no source lists yields a
// descriptor of TypeUnknown.
func (c *Catalog) Lookup(id string) Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch {
	case id == AliasLatestRelease && c.latest.Release != "":
		id = c.latest.Release
	case id == AliasLatestSnapshot && c.latest.Snapshot != "":
		id = c.latest.Snapshot
	}
	if descriptor, ok := c.descriptors[id]; ok {
		return descriptor
	}
	return Descriptor{ID: id, Type: TypeUnknown}
}

// Descriptors returns every descriptor in insertion order, optionally
// restricted to the given types.
func (c *Catalog) Descriptors(types ...Type) []Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]Descriptor, 0, len(c.order))
	for _, id := range c.order {
		descriptor := c.descriptors[id]
		if len(types) > 0 && !containsType(types, descriptor.Type) {
			continue
		}
		result = append(result, descriptor)
	}
	return result
}

// Types returns the distinct descriptor types, sorted.
func (c *Catalog) Types() []Type {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[Type]bool)
	for _, descriptor := range c.descriptors {
		seen[descriptor.Type] = true
	}
	types := make([]Type, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func containsType(types []Type, t Type) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}
