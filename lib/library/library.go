// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package library turns a version's libraries list into a transfer
// batch and a classpath for the current platform.
package library

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/kilnmc/kiln/lib/checksum"
	"github.com/kilnmc/kiln/lib/manifest"
	"github.com/kilnmc/kiln/lib/maven"
	"github.com/kilnmc/kiln/lib/netutil"
	"github.com/kilnmc/kiln/lib/platform"
	"github.com/kilnmc/kiln/lib/transfer"
)

// RetryFactor is the initial watchdog multiplier for library batches.
const RetryFactor = 3

// Selection is the outcome of Select.
type Selection struct {
	Batch transfer.Batch

	// Classpath lists artifact paths in library order. Native archives
	// are extracted rather than loaded, so they are not included.
	Classpath []string
}

// Selector picks the libraries a version needs on one platform.
type Selector struct {
	// Libraries is the root of the shared maven-layout library tree.
	Libraries string

	// Natives is the directory native archives are extracted into. It
	// is emptied by every Select.
	Natives string

	Platform platform.Platform

	// Client fetches ".sha1" companions for repository-only entries.
	Client *http.Client

	Logger *slog.Logger
}

func (s *Selector) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// Select clears the natives directory and returns the items and
// classpath for version's libraries. When two entries resolve to the
// same artifact path the first one wins; merged documents list child
// libraries first, so the most specific version of a library is kept.
func (s *Selector) Select(ctx context.Context, version *manifest.Version) (Selection, error) {
	if err := os.RemoveAll(s.Natives); err != nil {
		return Selection{}, fmt.Errorf("clearing natives: %w", err)
	}
	if err := os.MkdirAll(s.Natives, 0o755); err != nil {
		return Selection{}, fmt.Errorf("creating natives: %w", err)
	}

	selection := Selection{Batch: transfer.Batch{}}
	add := func(item transfer.Item, classpath bool) {
		if _, exists := selection.Batch[item.Key]; exists {
			s.logger().Debug("skipping duplicate library", "path", item.Key)
			return
		}
		selection.Batch.Add(item)
		if classpath {
			selection.Classpath = append(selection.Classpath, item.Destination())
		}
	}

	for _, library := range version.Libraries {
		if !platform.Evaluate(library.Rules, s.Platform) {
			continue
		}

		if library.Downloads != nil {
			if native, ok := s.native(library); ok {
				item, err := s.item(native)
				if err != nil {
					return Selection{}, fmt.Errorf("library %s: %w", library.Name, err)
				}
				item.Unpack = &transfer.Unpack{Format: transfer.Zip, Path: s.Natives}
				if library.Extract != nil {
					item.Unpack.Exclude = library.Extract.Exclude
				}
				add(item, false)
			}

			if artifact := library.Downloads.Artifact; artifact != nil {
				resolved := *artifact
				if resolved.Path == "" {
					derived, err := maven.Path(library.Name)
					if err != nil {
						return Selection{}, fmt.Errorf("library %s: %w", library.Name, err)
					}
					resolved.Path = derived
				}
				item, err := s.item(resolved)
				if err != nil {
					return Selection{}, fmt.Errorf("library %s: %w", library.Name, err)
				}
				add(item, true)
			}
			continue
		}

		if library.URL != "" {
			item, err := s.repositoryItem(ctx, library)
			if err != nil {
				return Selection{}, fmt.Errorf("library %s: %w", library.Name, err)
			}
			add(item, true)
		}
	}
	return selection, nil
}

// native returns the classifier artifact for the current OS, if the
// library ships one.
func (s *Selector) native(library manifest.Library) (manifest.Artifact, bool) {
	classifier, ok := library.Natives[s.Platform.OS]
	if !ok || library.Downloads.Classifiers == nil {
		return manifest.Artifact{}, false
	}
	classifier = strings.ReplaceAll(classifier, "${arch}", s.Platform.Bits())
	artifact, ok := library.Downloads.Classifiers[classifier]
	if !ok {
		return manifest.Artifact{}, false
	}
	if artifact.Path == "" {
		coordinate, err := maven.Parse(library.Name)
		if err != nil {
			return manifest.Artifact{}, false
		}
		coordinate.Classifier = classifier
		artifact.Path = coordinate.Path()
	}
	return artifact, true
}

// item places artifact in the library tree, keyed by its repository
// path.
func (s *Selector) item(artifact manifest.Artifact) (transfer.Item, error) {
	relative := path.Clean(artifact.Path)
	if path.IsAbs(relative) || relative == ".." || strings.HasPrefix(relative, "../") {
		return transfer.Item{}, fmt.Errorf("artifact path %q escapes the library tree", artifact.Path)
	}
	if artifact.URL == "" {
		return transfer.Item{}, fmt.Errorf("artifact %s has no download url", relative)
	}
	directory, name := path.Split(relative)
	return transfer.Item{
		Key:  relative,
		Path: filepath.Join(s.Libraries, filepath.FromSlash(directory)),
		Name: name,
		URL:  artifact.URL,
		SHA1: artifact.SHA1,
		Size: artifact.Size,
	}, nil
}

// repositoryItem builds the item for an entry that names only a maven
// repository. Its digest comes from the repository's ".sha1"
// companion, fetched synchronously.
func (s *Selector) repositoryItem(ctx context.Context, library manifest.Library) (transfer.Item, error) {
	relative, err := maven.Path(library.Name)
	if err != nil {
		return transfer.Item{}, err
	}
	url := maven.URL(library.URL, relative)

	body, err := netutil.GetBytes(ctx, s.Client, url+".sha1")
	if err != nil {
		return transfer.Item{}, fmt.Errorf("fetching checksum: %w", err)
	}
	digest, err := checksum.ParseCompanion(body)
	if err != nil {
		return transfer.Item{}, fmt.Errorf("%s.sha1: %w", url, err)
	}

	item, err := s.item(manifest.Artifact{Path: relative, URL: url, SHA1: digest})
	if err != nil {
		return transfer.Item{}, err
	}
	return item, nil
}
