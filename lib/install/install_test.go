// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package install

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/kilnmc/kiln/lib/assets"
	"github.com/kilnmc/kiln/lib/checksum"
	"github.com/kilnmc/kiln/lib/fetch"
	"github.com/kilnmc/kiln/lib/jre"
	"github.com/kilnmc/kiln/lib/library"
	"github.com/kilnmc/kiln/lib/manifest"
	"github.com/kilnmc/kiln/lib/platform"
	"github.com/kilnmc/kiln/lib/testutil"
	"github.com/kilnmc/kiln/lib/transfer"
)

type eventCounter struct {
	mu     sync.Mutex
	counts map[fetch.EventKind]int
}

func (c *eventCounter) Observe(event fetch.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[fetch.EventKind]int)
	}
	c.counts[event.Kind]++
}

func (c *eventCounter) count(kind fetch.EventKind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[kind]
}

type installFixture struct {
	server    *testutil.FileServer
	root      string
	catalog   *manifest.Catalog
	events    *eventCounter
	installer *Installer
}

func newInstallFixture(t *testing.T) *installFixture {
	server := testutil.NewFileServer(t)
	root := t.TempDir()
	fetcher := &transfer.Fetcher{Client: server.Client()}
	events := &eventCounter{}
	orchestrator := &fetch.Orchestrator{
		Spawner:  &fetch.InProcessSpawner{Fetcher: fetcher},
		Scratch:  filepath.Join(root, "meta", "scratch", "fetch"),
		Workers:  3,
		Observer: events,
	}
	catalog := manifest.NewCatalog()
	return &installFixture{
		server:  server,
		root:    root,
		catalog: catalog,
		events:  events,
		installer: &Installer{
			Resolver: &manifest.Resolver{
				Catalog:  catalog,
				Versions: filepath.Join(root, "versions"),
				Fetcher:  fetcher,
			},
			Libraries: &library.Selector{
				Libraries: filepath.Join(root, "libraries"),
				Natives:   filepath.Join(root, "natives"),
				Platform:  platform.Platform{OS: platform.Linux, Arch: "amd64"},
				Client:    server.Client(),
			},
			Assets: &assets.Synchronizer{
				Root:        filepath.Join(root, "assets"),
				ResourceURL: server.URL + "/resources",
				Downloader:  orchestrator,
				Fetcher:     fetcher,
			},
			Runtimes: &jre.Provisioner{
				Runtimes:   filepath.Join(root, "runtimes"),
				Meta:       filepath.Join(root, "meta"),
				CatalogURL: server.URL + "/runtime/all.json",
				Platform:   "linux",
				Downloader: orchestrator,
				Fetcher:    fetcher,
			},
			Downloader: orchestrator,
			Fetcher:    fetcher,
		},
	}
}

func (f *installFixture) artifact(path, content string) map[string]any {
	return map[string]any{
		"url":  f.server.Put(path, []byte(content)),
		"sha1": checksum.Sum([]byte(content)),
		"size": len(content),
	}
}

func (f *installFixture) publishJSON(t *testing.T, path string, v any) map[string]any {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return f.artifact(path, string(data))
}

// publishVersion serves a complete version and registers it.
func (f *installFixture) publishVersion(t *testing.T) {
	t.Helper()
	sound := "grass step"
	soundHash := checksum.Sum([]byte(sound))
	f.server.Put("/resources/"+soundHash[:2]+"/"+soundHash, []byte(sound))
	assetIndex := f.publishJSON(t, "/indexes/5.json", map[string]any{
		"objects": map[string]any{"minecraft/sounds/grass1.ogg": map[string]any{"hash": soundHash, "size": len(sound)}},
	})
	assetIndex["id"] = "5"

	libraryArtifact := f.artifact("/libraries/blocklist.jar", "blocklist classes")
	libraryArtifact["path"] = "com/mojang/blocklist/1.0.10/blocklist-1.0.10.jar"

	runtimeManifest := f.publishJSON(t, "/runtime/jre-legacy.json", map[string]any{
		"files": map[string]any{
			"bin":      map[string]any{"type": "directory"},
			"bin/java": map[string]any{"type": "file", "executable": true, "downloads": map[string]any{"raw": f.artifact("/runtime/java", "java binary")}},
		},
	})
	f.publishJSON(t, "/runtime/all.json", map[string]any{
		"linux": map[string]any{"jre-legacy": []any{map[string]any{"manifest": runtimeManifest}}},
	})

	body := map[string]any{
		"id":         "1.12.2",
		"type":       "release",
		"mainClass":  "net.minecraft.client.main.Main",
		"assetIndex": assetIndex,
		"downloads":  map[string]any{"client": f.artifact("/client.jar", "client classes")},
		"libraries": []any{
			map[string]any{"name": "com.mojang:blocklist:1.0.10", "downloads": map[string]any{"artifact": libraryArtifact}},
		},
	}
	published := f.publishJSON(t, "/versions/1.12.2.json", body)
	f.catalog.Add(manifest.Descriptor{
		ID:   "1.12.2",
		Type: manifest.TypeRelease,
		URL:  published["url"].(string),
		SHA1: published["sha1"].(string),
	})
}

func TestInstall(t *testing.T) {
	f := newInstallFixture(t)
	f.publishVersion(t)

	result, err := f.installer.Install(context.Background(), "1.12.2")
	if err != nil {
		t.Fatalf("Install: %v", err)
	}

	wantClasspath := []string{
		filepath.Join(f.root, "libraries", "com", "mojang", "blocklist", "1.0.10", "blocklist-1.0.10.jar"),
		filepath.Join(f.root, "versions", "1.12.2", "1.12.2.jar"),
	}
	if len(result.Classpath) != 2 || result.Classpath[0] != wantClasspath[0] || result.Classpath[1] != wantClasspath[1] {
		t.Errorf("Classpath = %v, want %v", result.Classpath, wantClasspath)
	}
	for index, content := range []string{"blocklist classes", "client classes"} {
		if got := testutil.ReadFile(t, wantClasspath[index]); string(got) != content {
			t.Errorf("%s = %q, want %q", wantClasspath[index], got, content)
		}
	}

	soundHash := checksum.Sum([]byte("grass step"))
	if got := testutil.ReadFile(t, assets.ObjectPath(filepath.Join(f.root, "assets"), soundHash)); string(got) != "grass step" {
		t.Errorf("asset object = %q", got)
	}

	if result.JavaPath != f.installer.Runtimes.JavaPath("jre-legacy") {
		t.Errorf("JavaPath = %s", result.JavaPath)
	}
	if runtime.GOOS == "linux" {
		if got := testutil.ReadFile(t, result.JavaPath); string(got) != "java binary" {
			t.Errorf("java = %q", got)
		}
	}
	if result.Version.MainClass != "net.minecraft.client.main.Main" {
		t.Errorf("MainClass = %q", result.Version.MainClass)
	}

	// Assets, libraries and the runtime each ran one batch.
	if started, done := f.events.count(fetch.EventStarted), f.events.count(fetch.EventDone); started != 3 || done != 3 {
		t.Errorf("started %d, done %d batches; want 3 each", started, done)
	}
}

func TestInstallIsIdempotent(t *testing.T) {
	f := newInstallFixture(t)
	f.publishVersion(t)

	if _, err := f.installer.Install(context.Background(), "1.12.2"); err != nil {
		t.Fatalf("first Install: %v", err)
	}
	before := f.server.TotalHits()
	if _, err := f.installer.Install(context.Background(), "1.12.2"); err != nil {
		t.Fatalf("second Install: %v", err)
	}
	if extra := f.server.TotalHits() - before; extra != 0 {
		t.Errorf("second install made %d requests, want 0", extra)
	}
}

func TestInstallUnknownVersion(t *testing.T) {
	f := newInstallFixture(t)

	_, err := f.installer.Install(context.Background(), "9.9.9")
	if !errors.Is(err, manifest.ErrUnknownVersion) {
		t.Fatalf("err = %v, want ErrUnknownVersion", err)
	}
	if got := f.events.count(fetch.EventStarted); got != 0 {
		t.Errorf("%d batches started for an unknown version", got)
	}
}

func TestInstallWithoutRuntime(t *testing.T) {
	f := newInstallFixture(t)
	f.publishVersion(t)
	f.installer.Runtimes = nil

	result, err := f.installer.Install(context.Background(), "1.12.2")
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if result.JavaPath != "" {
		t.Errorf("JavaPath = %q, want empty", result.JavaPath)
	}
	if hits := f.server.Hits("/runtime/all.json"); hits != 0 {
		t.Errorf("runtime catalog fetched %d times", hits)
	}
}

func TestInstallClientJarIntegrity(t *testing.T) {
	f := newInstallFixture(t)
	f.publishVersion(t)
	f.server.Put("/client.jar", []byte(fmt.Sprintf("tampered %d", 1)))

	_, err := f.installer.Install(context.Background(), "1.12.2")
	if !errors.Is(err, transfer.ErrIntegrity) {
		t.Fatalf("err = %v, want ErrIntegrity", err)
	}
}
