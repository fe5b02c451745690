// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the config file when --config is absent.
const EnvironmentVariable = "KILN_CONFIG"

// Worker modes for DownloadConfig.Mode.
const (
	// ModeProcess runs each fetch worker as a kiln-fetch-worker child
	// process.
	ModeProcess = "process"

	// ModeInProcess runs fetch workers as goroutines inside the
	// coordinator. Useful where spawning binaries is not possible.
	ModeInProcess = "inprocess"
)

// Default remote endpoints.
const (
	DefaultResourceURL = "https://resources.download.minecraft.net"
	DefaultVanillaURL  = "https://launchermeta.mojang.com/mc/game/version_manifest_v2.json"
	DefaultFabricURL   = "https://meta.fabricmc.net/v2/versions"
	DefaultForgeURL    = "https://github.com/Hanro50/Forgiac/releases/download/1.7-SNAPSHOT/Forgiac-basic-1.7-SNAPSHOT.jar"
	DefaultRuntimeURL  = "https://launchermeta.mojang.com/v1/products/java-runtime/2ec0cc96c44e5a76b9c8b7c39df7210883d12871/all.json"
)

// Config is the master configuration for kiln.
type Config struct {
	// Paths configures the on-disk layout.
	Paths PathsConfig `yaml:"paths"`

	// Download configures the download orchestrator.
	Download DownloadConfig `yaml:"download"`

	// Catalog configures the remote version and runtime sources.
	Catalog CatalogConfig `yaml:"catalog"`

	// Platform configures rule evaluation.
	Platform PlatformConfig `yaml:"platform"`
}

// PathsConfig configures directory locations. Every field except Root
// may be relative, in which case it is resolved against Root.
type PathsConfig struct {
	// Root is the base directory for kiln data.
	// Default: ~/.kiln
	Root string `yaml:"root"`

	// Assets holds the content-addressed object store, asset indexes,
	// and legacy materialized trees.
	Assets string `yaml:"assets"`

	// Libraries holds maven-layout library jars.
	Libraries string `yaml:"libraries"`

	// Natives is cleared and refilled with extracted native libraries
	// on every library selection.
	Natives string `yaml:"natives"`

	// Versions holds one folder per version: the JSON body and the
	// client jar.
	Versions string `yaml:"versions"`

	// Runtimes holds Java runtime images, one folder per component.
	Runtimes string `yaml:"runtimes"`

	// Meta holds catalog manifests, indexes, runtime manifests, and the
	// orchestrator scratch directory.
	Meta string `yaml:"meta"`
}

// DownloadConfig configures the download orchestrator.
type DownloadConfig struct {
	// Workers is the number of parallel fetch workers. Zero means one
	// per CPU.
	Workers int `yaml:"workers"`

	// BaseTimeout is the watchdog window for retry factor 1. Attempt
	// windows scale linearly with the retry factor.
	// Default: 15s
	BaseTimeout string `yaml:"base_timeout"`

	// MaxAttempts bounds the number of attempts per batch. Zero means
	// unbounded.
	MaxAttempts int `yaml:"max_attempts"`

	// Mode selects how workers run: "process" or "inprocess".
	// Default: process
	Mode string `yaml:"mode"`

	// WorkerBinary is the kiln-fetch-worker executable. A bare name is
	// looked up next to the running executable, then in PATH.
	// Default: kiln-fetch-worker
	WorkerBinary string `yaml:"worker_binary"`

	// ResourceURL is the asset object host.
	ResourceURL string `yaml:"resource_url"`
}

// CatalogConfig configures the sources refreshed by the catalog
// updater. An empty URL disables that source.
type CatalogConfig struct {
	VanillaURL string `yaml:"vanilla_url"`
	FabricURL  string `yaml:"fabric_url"`
	RuntimeURL string `yaml:"runtime_url"`

	// ForgeURL is the forge installer helper jar. Its digest is read
	// from a ".sha1" file next to it.
	ForgeURL string `yaml:"forge_url"`
}

// PlatformConfig configures rule evaluation.
type PlatformConfig struct {
	// Features lists feature flags that library and argument rules may
	// test, for example has_custom_resolution.
	Features map[string]bool `yaml:"features"`
}

// Default returns the configuration used when no file is named. Paths
// are relative until Finalize resolves them against Root.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Root:      filepath.Join("${HOME}", ".kiln"),
			Assets:    "assets",
			Libraries: "libraries",
			Natives:   "natives",
			Versions:  "versions",
			Runtimes:  "runtimes",
			Meta:      "meta",
		},
		Download: DownloadConfig{
			BaseTimeout:  "15s",
			Mode:         ModeProcess,
			WorkerBinary: "kiln-fetch-worker",
			ResourceURL:  DefaultResourceURL,
		},
		Catalog: CatalogConfig{
			VanillaURL: DefaultVanillaURL,
			FabricURL:  DefaultFabricURL,
			ForgeURL:   DefaultForgeURL,
			RuntimeURL: DefaultRuntimeURL,
		},
	}
}

// Load resolves the configuration for a command invocation. path is the
// --config flag value; when empty, KILN_CONFIG is consulted; when both
// are empty the defaults are used. A non-empty root overrides
// paths.root from any source.
func Load(path, root string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvironmentVariable)
	}

	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	}
	if root != "" {
		cfg.Paths.Root = root
	}
	cfg.Finalize()
	return cfg, nil
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.Finalize()
	return cfg, nil
}

// loadFile merges a single YAML file into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// Finalize expands variables and resolves relative paths against Root.
// It is idempotent.
func (c *Config) Finalize() {
	vars := map[string]string{
		"HOME": userHome(),
	}
	c.Paths.Root = filepath.Clean(expandVars(c.Paths.Root, vars))
	vars["KILN_ROOT"] = c.Paths.Root

	for _, field := range []*string{
		&c.Paths.Assets,
		&c.Paths.Libraries,
		&c.Paths.Natives,
		&c.Paths.Versions,
		&c.Paths.Runtimes,
		&c.Paths.Meta,
	} {
		expanded := expandVars(*field, vars)
		if expanded != "" && !filepath.IsAbs(expanded) {
			expanded = filepath.Join(c.Paths.Root, expanded)
		}
		*field = expanded
	}
	c.Download.WorkerBinary = expandVars(c.Download.WorkerBinary, vars)
}

func userHome() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return os.Getenv("HOME")
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns, consulting
// vars before the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// BaseTimeoutDuration parses Download.BaseTimeout.
func (c *Config) BaseTimeoutDuration() (time.Duration, error) {
	duration, err := time.ParseDuration(c.Download.BaseTimeout)
	if err != nil {
		return 0, fmt.Errorf("download.base_timeout: %w", err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("download.base_timeout must be positive, got %s", c.Download.BaseTimeout)
	}
	return duration, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if c.Download.Workers < 0 {
		errs = append(errs, fmt.Errorf("download.workers must not be negative, got %d", c.Download.Workers))
	}
	if c.Download.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("download.max_attempts must not be negative, got %d", c.Download.MaxAttempts))
	}
	if _, err := c.BaseTimeoutDuration(); err != nil {
		errs = append(errs, err)
	}
	switch c.Download.Mode {
	case ModeProcess:
		if c.Download.WorkerBinary == "" {
			errs = append(errs, fmt.Errorf("download.worker_binary is required in %s mode", ModeProcess))
		}
	case ModeInProcess:
	default:
		errs = append(errs, fmt.Errorf("download.mode must be one of: [%s %s], got %q",
			ModeProcess, ModeInProcess, c.Download.Mode))
	}
	if c.Download.ResourceURL == "" {
		errs = append(errs, fmt.Errorf("download.resource_url is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates all configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.Root,
		c.Paths.Assets,
		c.Paths.Libraries,
		c.Paths.Natives,
		c.Paths.Versions,
		c.Paths.Runtimes,
		c.Paths.Meta,
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}

// WorkerPath returns the full path to the fetch worker binary. A path
// containing a separator is used as is. A bare name is looked up next
// to the running executable first, then in PATH.
func (c *Config) WorkerPath() (string, error) {
	name := c.Download.WorkerBinary
	if filepath.Base(name) != name {
		return name, nil
	}

	if executable, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(executable), name)
		if _, err := os.Stat(sibling); err == nil {
			return sibling, nil
		}
	}

	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found next to the kiln executable or in PATH", name)
	}
	return path, nil
}
