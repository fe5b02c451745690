// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package install acquires everything a version needs to run: its
// merged definition, assets, libraries, client jar and Java runtime.
package install

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kilnmc/kiln/lib/assets"
	"github.com/kilnmc/kiln/lib/jre"
	"github.com/kilnmc/kiln/lib/library"
	"github.com/kilnmc/kiln/lib/manifest"
	"github.com/kilnmc/kiln/lib/transfer"
)

// Downloader executes a batch. *fetch.Orchestrator implements it.
type Downloader interface {
	Download(ctx context.Context, batch transfer.Batch, retry int) error
}

// Installer wires the resolvers to a Downloader. Resolver, Libraries,
// Assets and Downloader are required. A nil Runtimes skips runtime
// provisioning.
type Installer struct {
	Resolver   *manifest.Resolver
	Libraries  *library.Selector
	Assets     *assets.Synchronizer
	Runtimes   *jre.Provisioner
	Downloader Downloader

	// Fetcher downloads the client jar. Nil means a zero Fetcher.
	Fetcher *transfer.Fetcher

	Logger *slog.Logger
}

// Result describes an installed version.
type Result struct {
	Version *manifest.Version

	// Classpath is the library classpath followed by the client jar.
	Classpath []string

	// JavaPath is the runtime's java binary. Empty when runtime
	// provisioning was skipped.
	JavaPath string
}

func (i *Installer) logger() *slog.Logger {
	if i.Logger == nil {
		return slog.Default()
	}
	return i.Logger
}

// Install resolves id and acquires its assets, libraries, client jar
// and runtime, in that order.
func (i *Installer) Install(ctx context.Context, id string) (*Result, error) {
	version, err := i.Resolver.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	logger := i.logger().With("version", version.ID)
	result := &Result{Version: version}

	if version.AssetIndex != nil {
		if _, err := i.Assets.Sync(ctx, *version.AssetIndex); err != nil {
			return nil, err
		}
	} else {
		logger.Warn("version has no asset index")
	}

	selection, err := i.Libraries.Select(ctx, version)
	if err != nil {
		return nil, err
	}
	logger.Info("downloading libraries", "count", len(selection.Batch))
	if err := i.Downloader.Download(ctx, selection.Batch, library.RetryFactor); err != nil {
		return nil, fmt.Errorf("downloading libraries: %w", err)
	}
	result.Classpath = append(result.Classpath, selection.Classpath...)

	if client := version.Downloads.Client; client != nil {
		fetcher := i.Fetcher
		if fetcher == nil {
			fetcher = &transfer.Fetcher{Logger: i.Logger}
		}
		jar := transfer.Item{
			Key:  "client/" + version.Name,
			Path: version.Folder,
			Name: version.Name + ".jar",
			URL:  client.URL,
			SHA1: client.SHA1,
			Size: client.Size,
		}
		if _, err := fetcher.Ensure(ctx, jar); err != nil {
			return nil, fmt.Errorf("client jar: %w", err)
		}
		result.Classpath = append(result.Classpath, version.JarPath())
	} else {
		logger.Warn("version has no client download")
	}

	if i.Runtimes != nil {
		javaPath, err := i.Runtimes.Provision(ctx, version.JavaComponent())
		if err != nil {
			return nil, err
		}
		result.JavaPath = javaPath
	}

	logger.Info("version installed",
		"classpath", len(result.Classpath),
		"java", result.JavaPath,
	)
	return result, nil
}
