// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package catalog refreshes the locally stored version and runtime
// catalogs from their remote sources.
//
// Each source writes into the meta directory read by
// [manifest.LoadCatalog] and the runtime provisioner:
//
//   - vanilla: manifests/vanilla.json and index/latest.json from the
//     game's version manifest, plus the two logging configuration
//     fixes into index/.
//   - fabric: index/fabric_game.json and index/fabric_loader.json as
//     published, and manifests/fabric.json with one descriptor per
//     game version and loader pair.
//   - forge: the forge installer helper jar, verified against its
//     published .sha1 companion, into the libraries tree.
//   - runtime: index/runtime.json.
//
// Sources run concurrently. Every file is written only after its
// source fetched and parsed successfully, so a failed source keeps its
// previously saved copy.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/sync/errgroup"

	"github.com/kilnmc/kiln/lib/checksum"
	"github.com/kilnmc/kiln/lib/jre"
	"github.com/kilnmc/kiln/lib/manifest"
	"github.com/kilnmc/kiln/lib/netutil"
	"github.com/kilnmc/kiln/lib/transfer"
)

// Source names.
const (
	SourceVanilla = "vanilla"
	SourceFabric  = "fabric"
	SourceForge   = "forge"
	SourceRuntime = "runtime"
)

// Sources lists every source in refresh order.
var Sources = []string{SourceVanilla, SourceFabric, SourceForge, SourceRuntime}

// ForgeInstallerPath is where the forge installer helper jar is stored,
// relative to the libraries root.
var ForgeInstallerPath = filepath.Join("za", "net", "hanro50", "forgiac", "basic", "forgiac.jar")

// Logging configuration replacements for versions affected by the
// log4j lookup vulnerability.
var loggingFixes = map[string]string{
	"log4j-fix-1.xml": "https://launcher.mojang.com/v1/objects/dd2b723346a8dcd48e7f4d245f6bf09e98db9696/log4j2_17-111.xml",
	"log4j-fix-2.xml": "https://launcher.mojang.com/v1/objects/02937d122c86ce73319ef9975b58896fc1b491d1/log4j2_112-116.xml",
}

// Updater refreshes catalogs under Meta. A source whose URL is empty is
// disabled.
type Updater struct {
	Meta string

	// VanillaURL is the game's version manifest.
	VanillaURL string

	// FabricURL is the fabric meta versions endpoint; /game, /loader
	// and /loader/<game>/<loader>/profile/json are appended.
	FabricURL string

	// ForgeURL is the forge installer helper jar. Its digest is read
	// from ForgeURL+".sha1".
	ForgeURL string

	// Libraries is the libraries root the forge helper is stored
	// under. Required when ForgeURL is set.
	Libraries string

	// RuntimeURL is the Java runtime catalog.
	RuntimeURL string

	// LoggingFixes overrides the logging fix downloads, keyed by file
	// name. Nil means the published fixes; an empty map disables them.
	LoggingFixes map[string]string

	// Fetcher downloads the forge helper jar. Nil means a Fetcher over
	// Client.
	Fetcher *transfer.Fetcher

	Client *http.Client
	Logger *slog.Logger
}

// Report describes one source's refresh.
type Report struct {
	Source string

	// Descriptors is the number of catalog entries written.
	Descriptors int

	// Latest is the newest stable entry the source publishes: the
	// latest release for vanilla and the latest stable loader for
	// fabric. Empty for other sources.
	Latest string

	Err error
}

func (u *Updater) logger() *slog.Logger {
	if u.Logger == nil {
		return slog.Default()
	}
	return u.Logger
}

func (u *Updater) fetcher() *transfer.Fetcher {
	if u.Fetcher == nil {
		return &transfer.Fetcher{Client: u.Client, Logger: u.Logger}
	}
	return u.Fetcher
}

func (u *Updater) url(source string) string {
	switch source {
	case SourceVanilla:
		return u.VanillaURL
	case SourceFabric:
		return u.FabricURL
	case SourceForge:
		return u.ForgeURL
	case SourceRuntime:
		return u.RuntimeURL
	}
	return ""
}

// Update refreshes the named sources, or every enabled source when
// none are named. It returns one report per source run, in Sources
// order, and the joined errors of the sources that failed.
func (u *Updater) Update(ctx context.Context, sources ...string) ([]Report, error) {
	sources = slices.Clone(sources)
	if len(sources) == 0 {
		for _, source := range Sources {
			if u.url(source) != "" {
				sources = append(sources, source)
			}
		}
	}
	for _, source := range sources {
		if u.url(source) == "" {
			return nil, fmt.Errorf("catalog source %q is unknown or has no url", source)
		}
	}
	sort.SliceStable(sources, func(i, j int) bool {
		return sourceRank(sources[i]) < sourceRank(sources[j])
	})
	sources = slices.Compact(sources)

	reports := make([]Report, len(sources))
	var group errgroup.Group
	for index, source := range sources {
		group.Go(func() error {
			report, err := u.refresh(ctx, source)
			report.Source = source
			report.Err = err
			reports[index] = report
			if err != nil {
				u.logger().Warn("catalog source failed, keeping saved copy", "source", source, "error", err)
			} else {
				u.logger().Info("catalog source refreshed",
					"source", source,
					"descriptors", report.Descriptors,
					"latest", report.Latest,
				)
			}
			return nil
		})
	}
	_ = group.Wait()

	var failures []error
	for _, report := range reports {
		if report.Err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", report.Source, report.Err))
		}
	}
	return reports, errors.Join(failures...)
}

func sourceRank(source string) int {
	for index, candidate := range Sources {
		if candidate == source {
			return index
		}
	}
	return len(Sources)
}

// refresh runs one source. Only Descriptors and Latest of the returned
// report are set.
func (u *Updater) refresh(ctx context.Context, source string) (Report, error) {
	switch source {
	case SourceVanilla:
		return u.refreshVanilla(ctx)
	case SourceFabric:
		return u.refreshFabric(ctx)
	case SourceForge:
		return u.refreshForge(ctx)
	case SourceRuntime:
		return u.refreshRuntime(ctx)
	}
	return Report{}, fmt.Errorf("unknown source %q", source)
}

func (u *Updater) refreshVanilla(ctx context.Context) (Report, error) {
	var document struct {
		Latest   json.RawMessage `json:"latest"`
		Versions json.RawMessage `json:"versions"`
	}
	if err := netutil.GetJSON(ctx, u.Client, u.VanillaURL, &document); err != nil {
		return Report{}, err
	}
	var latest manifest.Latest
	if err := json.Unmarshal(document.Latest, &latest); err != nil {
		return Report{}, fmt.Errorf("parsing latest: %w", err)
	}
	var descriptors []manifest.Descriptor
	if err := json.Unmarshal(document.Versions, &descriptors); err != nil {
		return Report{}, fmt.Errorf("parsing versions: %w", err)
	}

	fixes := u.LoggingFixes
	if fixes == nil {
		fixes = loggingFixes
	}
	fixData := make(map[string][]byte, len(fixes))
	for name, url := range fixes {
		data, err := netutil.GetBytes(ctx, u.Client, url)
		if err != nil {
			return Report{}, fmt.Errorf("logging fix %s: %w", name, err)
		}
		fixData[name] = data
	}

	if err := writeJSON(filepath.Join(u.Meta, "index", "latest.json"), latest); err != nil {
		return Report{}, err
	}
	if err := writeFile(filepath.Join(u.Meta, "manifests", "vanilla.json"), document.Versions); err != nil {
		return Report{}, err
	}
	for name, data := range fixData {
		if err := writeFile(filepath.Join(u.Meta, "index", name), data); err != nil {
			return Report{}, err
		}
	}
	return Report{Descriptors: len(descriptors), Latest: latest.Release}, nil
}

// GameVersion is one entry of the fabric game version list.
type GameVersion struct {
	Version string `json:"version"`
	Stable  bool   `json:"stable"`
}

// LoaderVersion is one entry of the fabric loader list.
type LoaderVersion struct {
	Separator string `json:"separator"`
	Build     int    `json:"build"`
	Maven     string `json:"maven"`
	Version   string `json:"version"`
	Stable    bool   `json:"stable"`
}

func (u *Updater) refreshFabric(ctx context.Context) (Report, error) {
	base := strings.TrimSuffix(u.FabricURL, "/")

	gameData, err := netutil.GetBytes(ctx, u.Client, base+"/game")
	if err != nil {
		return Report{}, err
	}
	loaderData, err := netutil.GetBytes(ctx, u.Client, base+"/loader")
	if err != nil {
		return Report{}, err
	}
	var games []GameVersion
	if err := json.Unmarshal(gameData, &games); err != nil {
		return Report{}, fmt.Errorf("parsing game versions: %w", err)
	}
	var loaders []LoaderVersion
	if err := json.Unmarshal(loaderData, &loaders); err != nil {
		return Report{}, fmt.Errorf("parsing loader versions: %w", err)
	}

	descriptors := FabricDescriptors(base, games, loaders)

	if err := writeFile(filepath.Join(u.Meta, "index", "fabric_game.json"), gameData); err != nil {
		return Report{}, err
	}
	if err := writeFile(filepath.Join(u.Meta, "index", "fabric_loader.json"), loaderData); err != nil {
		return Report{}, err
	}
	if err := writeJSON(filepath.Join(u.Meta, "manifests", "fabric.json"), descriptors); err != nil {
		return Report{}, err
	}
	report := Report{Descriptors: len(descriptors)}
	if loader, ok := LatestStableLoader(loaders); ok {
		report.Latest = loader.Version
	}
	return report, nil
}

// FabricDescriptors returns a descriptor for every game version and
// loader pair: id fabric-loader-<loader>-<game>, stored alongside the
// game version, with the loader's stability. Games keep their
// published order; loaders are ordered newest first.
func FabricDescriptors(base string, games []GameVersion, loaders []LoaderVersion) []manifest.Descriptor {
	base = strings.TrimSuffix(base, "/")
	ordered := SortLoaders(loaders)
	descriptors := make([]manifest.Descriptor, 0, len(games)*len(ordered))
	for _, game := range games {
		for _, loader := range ordered {
			descriptors = append(descriptors, manifest.Descriptor{
				ID:     "fabric-loader-" + loader.Version + "-" + game.Version,
				Type:   manifest.TypeFabric,
				Base:   game.Version,
				Stable: loader.Stable,
				URL:    base + "/loader/" + game.Version + "/" + loader.Version + "/profile/json",
			})
		}
	}
	return descriptors
}

// SortLoaders returns loaders ordered by descending semantic version.
// Versions that do not parse sort after those that do, in their
// original order.
func SortLoaders(loaders []LoaderVersion) []LoaderVersion {
	type keyed struct {
		loader  LoaderVersion
		version *semver.Version
	}
	entries := make([]keyed, len(loaders))
	for index, loader := range loaders {
		parsed, err := semver.NewVersion(loader.Version)
		if err != nil {
			parsed = nil
		}
		entries[index] = keyed{loader: loader, version: parsed}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].version, entries[j].version
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.GreaterThan(b)
		}
	})
	result := make([]LoaderVersion, len(entries))
	for index, entry := range entries {
		result[index] = entry.loader
	}
	return result
}

// LatestStableLoader returns the newest stable loader.
func LatestStableLoader(loaders []LoaderVersion) (LoaderVersion, bool) {
	for _, loader := range SortLoaders(loaders) {
		if loader.Stable {
			return loader, true
		}
	}
	return LoaderVersion{}, false
}

// refreshForge downloads the forge installer helper when its saved
// copy does not match the published digest.
func (u *Updater) refreshForge(ctx context.Context) (Report, error) {
	if u.Libraries == "" {
		return Report{}, fmt.Errorf("forge source requires a libraries directory")
	}
	companion, err := netutil.GetBytes(ctx, u.Client, u.ForgeURL+".sha1")
	if err != nil {
		return Report{}, fmt.Errorf("installer digest: %w", err)
	}
	digest, err := checksum.ParseCompanion(companion)
	if err != nil {
		return Report{}, fmt.Errorf("installer digest: %w", err)
	}
	destination := filepath.Join(u.Libraries, ForgeInstallerPath)
	fetched, err := u.fetcher().Ensure(ctx, transfer.Item{
		Key:  "forgiac",
		Path: filepath.Dir(destination),
		Name: filepath.Base(destination),
		URL:  u.ForgeURL,
		SHA1: digest,
	})
	if err != nil {
		return Report{}, err
	}
	u.logger().Debug("forge installer helper", "path", destination, "fetched", fetched)
	return Report{Descriptors: 1}, nil
}

func (u *Updater) refreshRuntime(ctx context.Context) (Report, error) {
	data, err := netutil.GetBytes(ctx, u.Client, u.RuntimeURL)
	if err != nil {
		return Report{}, err
	}
	var catalog jre.Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return Report{}, fmt.Errorf("parsing runtime catalog: %w", err)
	}
	components := 0
	for _, byComponent := range catalog {
		for _, candidates := range byComponent {
			if len(candidates) > 0 {
				components++
			}
		}
	}
	if err := writeFile(filepath.Join(u.Meta, "index", "runtime.json"), data); err != nil {
		return Report{}, err
	}
	return Report{Descriptors: components}, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return writeFile(path, append(data, '\n'))
}

// writeFile replaces path through a temporary file in its directory.
func writeFile(path string, data []byte) error {
	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return err
	}
	file, err := os.CreateTemp(directory, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	temporary := file.Name()
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporary)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporary)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(temporary, path); err != nil {
		os.Remove(temporary)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
