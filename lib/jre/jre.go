// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package jre provisions Java runtime images from the runtime catalog.
//
// The catalog maps a platform name (see [platform.RuntimePlatform]) and
// a component name, such as jre-legacy or java-runtime-gamma, to
// candidate builds. The first candidate's manifest lists every node of
// the image. Directories and links are created directly; files are
// downloaded through a Downloader, preferring their LZMA-compressed
// variants, which are kept under <runtimes>/lzma/<sha1[0:2]>/<sha1>/
// and decompressed into the image.
package jre

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/kilnmc/kiln/lib/manifest"
	"github.com/kilnmc/kiln/lib/netutil"
	"github.com/kilnmc/kiln/lib/platform"
	"github.com/kilnmc/kiln/lib/transfer"
)

// RetryFactor is the initial watchdog multiplier for runtime batches.
const RetryFactor = 5

// ErrUnavailable means the catalog has no build of a component for the
// platform.
var ErrUnavailable = errors.New("runtime not available")

// Node types in a runtime manifest.
const (
	NodeDirectory = "directory"
	NodeFile      = "file"
	NodeLink      = "link"
)

// Catalog maps platform name to component name to candidate builds,
// newest first.
type Catalog map[string]map[string][]Candidate

// Candidate is one build of a runtime component.
type Candidate struct {
	Manifest manifest.Artifact `json:"manifest"`
	Version  struct {
		Name     string `json:"name"`
		Released string `json:"released"`
	} `json:"version"`
}

// Manifest lists the nodes of a runtime image by slash-separated path.
type Manifest struct {
	Files map[string]Node `json:"files"`
}

// Node is one entry of a runtime manifest.
type Node struct {
	Type       string         `json:"type"`
	Executable bool           `json:"executable,omitempty"`
	Downloads  *NodeDownloads `json:"downloads,omitempty"`
	Target     string         `json:"target,omitempty"`
}

// NodeDownloads holds the variants a file node can be fetched as.
type NodeDownloads struct {
	Raw  *manifest.Artifact `json:"raw,omitempty"`
	LZMA *manifest.Artifact `json:"lzma,omitempty"`
}

// Downloader executes a batch. *fetch.Orchestrator implements it.
type Downloader interface {
	Download(ctx context.Context, batch transfer.Batch, retry int) error
}

// Provisioner installs runtime images under Runtimes.
type Provisioner struct {
	// Runtimes is the root of the runtime images. Required.
	Runtimes string

	// Meta holds index/runtime.json and the per-component manifests in
	// runtimes/. Required.
	Meta string

	// CatalogURL is fetched when index/runtime.json is absent.
	CatalogURL string

	// Platform is the catalog platform name. Empty means the host's.
	Platform string

	// Downloader runs file batches. Required by Provision.
	Downloader Downloader

	// Fetcher downloads the catalog and manifests. Nil means a zero
	// Fetcher.
	Fetcher *transfer.Fetcher

	Logger *slog.Logger
}

func (p *Provisioner) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

func (p *Provisioner) fetcher() *transfer.Fetcher {
	if p.Fetcher == nil {
		return &transfer.Fetcher{Logger: p.Logger}
	}
	return p.Fetcher
}

func (p *Provisioner) platform() (string, error) {
	if p.Platform != "" {
		return p.Platform, nil
	}
	return platform.RuntimePlatform(runtime.GOOS, runtime.GOARCH)
}

// CatalogPath returns where the runtime catalog is stored.
func (p *Provisioner) CatalogPath() string {
	return filepath.Join(p.Meta, "index", "runtime.json")
}

// LoadCatalog reads the stored runtime catalog, fetching and storing it
// from CatalogURL first when it is absent.
func (p *Provisioner) LoadCatalog(ctx context.Context) (Catalog, error) {
	file := p.CatalogPath()
	data, err := os.ReadFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		if p.CatalogURL == "" {
			return nil, fmt.Errorf("runtime catalog %s is missing and no catalog url is configured", file)
		}
		data, err = netutil.GetBytes(ctx, p.fetcher().Client, p.CatalogURL)
		if err != nil {
			return nil, fmt.Errorf("fetching runtime catalog: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(file, data, 0o644); err != nil {
			return nil, fmt.Errorf("saving runtime catalog: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("reading runtime catalog: %w", err)
	}

	var catalog Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parsing runtime catalog: %w", err)
	}
	return catalog, nil
}

// LoadManifest returns the manifest of the first catalog candidate for
// component on the configured platform, stored at
// <meta>/runtimes/<component>.json.
func (p *Provisioner) LoadManifest(ctx context.Context, component string) (*Manifest, error) {
	if err := validComponent(component); err != nil {
		return nil, err
	}
	platformName, err := p.platform()
	if err != nil {
		return nil, err
	}
	catalog, err := p.LoadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	candidates := catalog[platformName][component]
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnavailable, component, platformName)
	}
	candidate := candidates[0]

	data, err := p.fetcher().EnsureRead(ctx, transfer.Item{
		Key:  "runtime-manifest/" + component,
		Path: filepath.Join(p.Meta, "runtimes"),
		Name: component + ".json",
		URL:  candidate.Manifest.URL,
		SHA1: candidate.Manifest.SHA1,
		Size: candidate.Manifest.Size,
	})
	if err != nil {
		return nil, fmt.Errorf("runtime manifest %s: %w", component, err)
	}
	var result Manifest
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parsing runtime manifest %s: %w", component, err)
	}
	p.logger().Debug("loaded runtime manifest",
		"component", component,
		"platform", platformName,
		"version", candidate.Version.Name,
		"nodes", len(result.Files),
	)
	return &result, nil
}

// Provision makes the image for component complete and returns the
// path of its java binary.
func (p *Provisioner) Provision(ctx context.Context, component string) (string, error) {
	if p.Downloader == nil {
		return "", fmt.Errorf("runtime provisioner has no downloader")
	}
	loaded, err := p.LoadManifest(ctx, component)
	if err != nil {
		return "", err
	}
	batch, err := p.Plan(component, loaded)
	if err != nil {
		return "", err
	}
	p.logger().Info("provisioning runtime", "component", component, "files", len(batch))
	if err := p.Downloader.Download(ctx, batch, RetryFactor); err != nil {
		return "", fmt.Errorf("downloading runtime %s: %w", component, err)
	}
	return p.JavaPath(component), nil
}

// Plan walks the manifest in path order, creating directories and
// links, and returns the batch of file items.
func (p *Provisioner) Plan(component string, m *Manifest) (transfer.Batch, error) {
	if err := validComponent(component); err != nil {
		return nil, err
	}
	image := filepath.Join(p.Runtimes, component)
	if err := os.MkdirAll(image, 0o755); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(m.Files))
	for name := range m.Files {
		paths = append(paths, name)
	}
	sort.Strings(paths)

	batch := transfer.Batch{}
	for _, name := range paths {
		node := m.Files[name]
		relative := path.Clean(name)
		if path.IsAbs(relative) || relative == ".." || strings.HasPrefix(relative, "../") {
			return nil, fmt.Errorf("runtime %s: node %q escapes the image", component, name)
		}
		full := filepath.Join(image, filepath.FromSlash(relative))

		switch node.Type {
		case NodeDirectory:
			if err := os.MkdirAll(full, 0o755); err != nil {
				return nil, err
			}
		case NodeFile:
			item, err := p.fileItem(component, relative, full, node)
			if err != nil {
				return nil, err
			}
			batch.Add(item)
		case NodeLink:
			if runtime.GOOS == "windows" {
				continue
			}
			if err := link(node.Target, full); err != nil {
				return nil, fmt.Errorf("runtime %s: %w", component, err)
			}
		default:
			p.logger().Debug("skipping runtime node of unknown type", "path", name, "type", node.Type)
		}
	}
	return batch, nil
}

func (p *Provisioner) fileItem(component, relative, full string, node Node) (transfer.Item, error) {
	if node.Downloads == nil || (node.Downloads.Raw == nil && node.Downloads.LZMA == nil) {
		return transfer.Item{}, fmt.Errorf("runtime %s: file %s has no downloads", component, relative)
	}
	directory, name := filepath.Split(full)
	key := component + "/" + relative

	if compressed := node.Downloads.LZMA; compressed != nil && len(compressed.SHA1) >= 2 {
		item := transfer.Item{
			Key:  key,
			Path: filepath.Join(p.Runtimes, "lzma", compressed.SHA1[:2], compressed.SHA1),
			Name: name + ".lzma",
			URL:  compressed.URL,
			SHA1: compressed.SHA1,
			Size: compressed.Size,
			Unpack: &transfer.Unpack{
				Format: transfer.LZMA,
				Path:   filepath.Clean(directory),
				Name:   name,
			},
			Executable: node.Executable,
		}
		if raw := node.Downloads.Raw; raw != nil {
			item.Unpack.SHA1 = raw.SHA1
			item.Unpack.Size = raw.Size
		}
		return item, nil
	}

	raw := node.Downloads.Raw
	if raw == nil {
		return transfer.Item{}, fmt.Errorf("runtime %s: file %s has an lzma variant without a digest", component, relative)
	}
	return transfer.Item{
		Key:        key,
		Path:       filepath.Clean(directory),
		Name:       name,
		URL:        raw.URL,
		SHA1:       raw.SHA1,
		Size:       raw.Size,
		Executable: node.Executable,
	}, nil
}

// link points full at target, replacing whatever is there unless it
// already is that link.
func link(target, full string) error {
	if existing, err := os.Readlink(full); err == nil && existing == target {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	if err := os.RemoveAll(full); err != nil {
		return err
	}
	return os.Symlink(target, full)
}

// JavaPath returns the java binary inside the image for component.
func (p *Provisioner) JavaPath(component string) string {
	image := filepath.Join(p.Runtimes, component)
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(image, "jre.bundle", "Contents", "Home", "bin", "java")
	case "windows":
		return filepath.Join(image, "bin", "javaw.exe")
	default:
		return filepath.Join(image, "bin", "java")
	}
}

func validComponent(component string) error {
	if component == "" || component == "." || component == ".." || strings.ContainsAny(component, `/\`) {
		return fmt.Errorf("invalid runtime component %q", component)
	}
	return nil
}
