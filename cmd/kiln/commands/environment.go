// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kilnmc/kiln/cmd/kiln/cli"
	"github.com/kilnmc/kiln/lib/assets"
	"github.com/kilnmc/kiln/lib/catalog"
	"github.com/kilnmc/kiln/lib/config"
	"github.com/kilnmc/kiln/lib/fetch"
	"github.com/kilnmc/kiln/lib/install"
	"github.com/kilnmc/kiln/lib/jre"
	"github.com/kilnmc/kiln/lib/library"
	"github.com/kilnmc/kiln/lib/manifest"
	"github.com/kilnmc/kiln/lib/platform"
	"github.com/kilnmc/kiln/lib/transfer"
)

// stdout receives command results. Tests replace it.
var stdout io.Writer = os.Stdout

// ConfigParams is embedded by every command that touches the data
// directory.
type ConfigParams struct {
	Config  string `json:"-" flag:"config,c" desc:"config file (default: $KILN_CONFIG, then built-in defaults)"`
	Root    string `json:"-" flag:"root" desc:"data directory, overrides paths.root"`
	Verbose bool   `json:"-" flag:"verbose,v" desc:"log at debug level"`
}

// logger returns a debug-level logger when --verbose is set.
func (p *ConfigParams) logger(logger *slog.Logger) *slog.Logger {
	if p.Verbose {
		return cli.NewCommandLogger(true)
	}
	return logger
}

// load resolves, validates and materializes the configuration.
func (p *ConfigParams) load() (*config.Config, error) {
	cfg, err := config.Load(p.Config, p.Root)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// environment wires the library components for one command run.
type environment struct {
	config       *config.Config
	logger       *slog.Logger
	fetcher      *transfer.Fetcher
	orchestrator *fetch.Orchestrator
}

func newEnvironment(params *ConfigParams, logger *slog.Logger) (*environment, error) {
	cfg, err := params.load()
	if err != nil {
		return nil, err
	}
	logger = params.logger(logger)
	return &environment{
		config:  cfg,
		logger:  logger,
		fetcher: &transfer.Fetcher{Logger: logger},
	}, nil
}

// downloader builds the orchestrator on first use. Commands that never
// download do not need a worker binary.
func (e *environment) downloader() (*fetch.Orchestrator, error) {
	if e.orchestrator != nil {
		return e.orchestrator, nil
	}
	baseTimeout, err := e.config.BaseTimeoutDuration()
	if err != nil {
		return nil, err
	}

	var spawner fetch.Spawner
	switch e.config.Download.Mode {
	case config.ModeInProcess:
		spawner = &fetch.InProcessSpawner{Fetcher: e.fetcher}
	default:
		binary, err := e.config.WorkerPath()
		if err != nil {
			return nil, err
		}
		spawner = &fetch.ExecSpawner{Binary: binary, Stderr: os.Stderr, Logger: e.logger}
	}

	e.orchestrator = &fetch.Orchestrator{
		Spawner:     spawner,
		Scratch:     filepath.Join(e.config.Paths.Meta, "scratch", "fetch"),
		Workers:     e.config.Download.Workers,
		BaseTimeout: baseTimeout,
		MaxAttempts: e.config.Download.MaxAttempts,
		Observer:    newProgressRenderer(os.Stderr, cli.IsTerminal(os.Stderr), e.logger),
		Logger:      e.logger,
	}
	return e.orchestrator, nil
}

// resolver loads the catalog and returns a resolver over it.
func (e *environment) resolver() (*manifest.Resolver, error) {
	versions, err := manifest.LoadCatalog(e.config.Paths.Meta)
	if err != nil {
		return nil, err
	}
	return &manifest.Resolver{
		Catalog:  versions,
		Versions: e.config.Paths.Versions,
		Fetcher:  e.fetcher,
		Logger:   e.logger,
	}, nil
}

func (e *environment) runtimes(downloader jre.Downloader) *jre.Provisioner {
	return &jre.Provisioner{
		Runtimes:   e.config.Paths.Runtimes,
		Meta:       e.config.Paths.Meta,
		CatalogURL: e.config.Catalog.RuntimeURL,
		Downloader: downloader,
		Fetcher:    e.fetcher,
		Logger:     e.logger,
	}
}

func (e *environment) installer(withRuntime bool) (*install.Installer, error) {
	orchestrator, err := e.downloader()
	if err != nil {
		return nil, err
	}
	resolver, err := e.resolver()
	if err != nil {
		return nil, err
	}
	installer := &install.Installer{
		Resolver: resolver,
		Libraries: &library.Selector{
			Libraries: e.config.Paths.Libraries,
			Natives:   e.config.Paths.Natives,
			Platform:  platform.Current(e.config.Platform.Features),
			Logger:    e.logger,
		},
		Assets: &assets.Synchronizer{
			Root:        e.config.Paths.Assets,
			ResourceURL: e.config.Download.ResourceURL,
			Downloader:  orchestrator,
			Fetcher:     e.fetcher,
			Logger:      e.logger,
		},
		Downloader: orchestrator,
		Fetcher:    e.fetcher,
		Logger:     e.logger,
	}
	if withRuntime {
		installer.Runtimes = e.runtimes(orchestrator)
	}
	return installer, nil
}

func (e *environment) updater() *catalog.Updater {
	return &catalog.Updater{
		Meta:       e.config.Paths.Meta,
		VanillaURL: e.config.Catalog.VanillaURL,
		FabricURL:  e.config.Catalog.FabricURL,
		ForgeURL:   e.config.Catalog.ForgeURL,
		Libraries:  e.config.Paths.Libraries,
		RuntimeURL: e.config.Catalog.RuntimeURL,
		Fetcher:    e.fetcher,
		Logger:     e.logger,
	}
}
