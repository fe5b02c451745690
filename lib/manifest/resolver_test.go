// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kilnmc/kiln/lib/checksum"
	"github.com/kilnmc/kiln/lib/manifest/merge"
	"github.com/kilnmc/kiln/lib/testutil"
	"github.com/kilnmc/kiln/lib/transfer"
)

const (
	vanillaBody = `{
		"id": "1.20.1",
		"type": "release",
		"mainClass": "net.minecraft.client.main.Main",
		"assets": "5",
		"assetIndex": {"id": "5", "sha1": "aa", "size": 10, "totalSize": 100, "url": "https://example.invalid/5.json"},
		"downloads": {"client": {"sha1": "bb", "size": 20, "url": "https://example.invalid/client.jar"}},
		"javaVersion": {"component": "java-runtime-gamma", "majorVersion": 17},
		"libraries": [{"name": "com.mojang:blocklist:1.0.10"}],
		"arguments": {"game": ["--username", {"rules": [], "value": "--demo"}], "jvm": ["-Xss1M"]}
	}`
	fabricBody = `{
		"id": "fabric-loader-0.14.21-1.20.1",
		"inheritsFrom": "1.20.1",
		"mainClass": "net.fabricmc.loader.impl.launch.knot.KnotClient",
		"libraries": [{"name": "net.fabricmc:fabric-loader:0.14.21", "url": "https://maven.fabricmc.net/"}],
		"arguments": {"jvm": ["-DFabricMcEmu=net.minecraft.client.main.Main"]}
	}`
)

type resolverFixture struct {
	server   *testutil.FileServer
	versions string
	catalog  *Catalog
	resolver *Resolver
}

func newResolverFixture(t *testing.T) *resolverFixture {
	server := testutil.NewFileServer(t)
	versions := t.TempDir()
	catalog := NewCatalog()
	return &resolverFixture{
		server:   server,
		versions: versions,
		catalog:  catalog,
		resolver: &Resolver{
			Catalog:  catalog,
			Versions: versions,
			Fetcher:  &transfer.Fetcher{Client: server.Client()},
		},
	}
}

// publish serves body and registers a remote descriptor for it.
func (f *resolverFixture) publish(descriptor Descriptor, body string) Descriptor {
	descriptor.URL = f.server.Put("/"+descriptor.ID+".json", []byte(body))
	descriptor.SHA1 = checksum.Sum([]byte(body))
	f.catalog.Add(descriptor)
	return descriptor
}

func TestResolveRemoteInheritance(t *testing.T) {
	f := newResolverFixture(t)
	f.publish(Descriptor{ID: "1.20.1", Type: TypeRelease}, vanillaBody)
	f.publish(Descriptor{ID: "fabric-loader-0.14.21-1.20.1", Type: TypeFabric, Base: "1.20.1"}, fabricBody)

	version, err := f.resolver.Resolve(context.Background(), "fabric-loader-0.14.21-1.20.1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if version.MainClass != "net.fabricmc.loader.impl.launch.knot.KnotClient" {
		t.Errorf("MainClass = %q, want the child's", version.MainClass)
	}
	if version.ID != "fabric-loader-0.14.21-1.20.1" {
		t.Errorf("ID = %q", version.ID)
	}
	if version.Type != TypeRelease {
		t.Errorf("Type = %q, want inherited release", version.Type)
	}
	if version.AssetIndex == nil || version.AssetIndex.ID != "5" || version.AssetIndex.TotalSize != 100 {
		t.Errorf("AssetIndex = %+v, want inherited index 5", version.AssetIndex)
	}
	if len(version.Libraries) != 2 ||
		version.Libraries[0].Name != "net.fabricmc:fabric-loader:0.14.21" ||
		version.Libraries[1].Name != "com.mojang:blocklist:1.0.10" {
		t.Errorf("Libraries = %+v, want child first then parent", version.Libraries)
	}
	if version.Arguments == nil || len(version.Arguments.JVM) != 2 || len(version.Arguments.Game) != 2 {
		t.Fatalf("Arguments = %+v", version.Arguments)
	}
	if first, _ := version.Arguments.JVM[0].Str(); first != "-DFabricMcEmu=net.minecraft.client.main.Main" {
		t.Errorf("first jvm argument = %q", first)
	}
	if version.Arguments.Game[1].Kind() != merge.Mapping {
		t.Errorf("conditional argument kind = %s, want mapping", version.Arguments.Game[1].Kind())
	}
	if version.JavaComponent() != "java-runtime-gamma" {
		t.Errorf("JavaComponent = %q", version.JavaComponent())
	}

	wantFolder := filepath.Join(f.versions, "1.20.1")
	if version.Folder != wantFolder || version.Name != "1.20.1" {
		t.Errorf("Folder, Name = %s, %s; want %s, 1.20.1", version.Folder, version.Name, wantFolder)
	}
	if version.JarPath() != filepath.Join(wantFolder, "1.20.1.jar") {
		t.Errorf("JarPath = %s", version.JarPath())
	}
	for _, id := range []string{"1.20.1", "fabric-loader-0.14.21-1.20.1"} {
		if _, err := os.Stat(filepath.Join(wantFolder, id+".json")); err != nil {
			t.Errorf("body for %s not stored in shared folder: %v", id, err)
		}
	}
}

func TestResolveSkipsNetworkForVerifiedBody(t *testing.T) {
	f := newResolverFixture(t)
	f.publish(Descriptor{ID: "1.20.1", Type: TypeRelease}, vanillaBody)

	if _, err := f.resolver.Resolve(context.Background(), "1.20.1"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	fresh := &Resolver{Catalog: f.catalog, Versions: f.versions, Fetcher: f.resolver.Fetcher}
	if _, err := fresh.Resolve(context.Background(), "1.20.1"); err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if hits := f.server.Hits("/1.20.1.json"); hits != 1 {
		t.Errorf("body fetched %d times, want 1", hits)
	}
}

func TestResolveCachesResults(t *testing.T) {
	f := newResolverFixture(t)
	f.publish(Descriptor{ID: "1.20.1", Type: TypeRelease}, vanillaBody)

	first, err := f.resolver.Resolve(context.Background(), "1.20.1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	second, err := f.resolver.Resolve(context.Background(), "1.20.1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if first != second {
		t.Error("second Resolve returned a different *Version")
	}
}

func TestResolveLocalBody(t *testing.T) {
	f := newResolverFixture(t)
	testutil.WriteFile(t, filepath.Join(f.versions, "custom", "custom.json"),
		[]byte(`{"id":"custom","mainClass":"Main"}`))

	version, err := f.resolver.Resolve(context.Background(), "custom")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if version.MainClass != "Main" {
		t.Errorf("MainClass = %q", version.MainClass)
	}
	if version.Descriptor.Type != TypeUnknown {
		t.Errorf("descriptor type = %q, want unknown for an unlisted id", version.Descriptor.Type)
	}
	if version.JavaComponent() != DefaultJavaComponent {
		t.Errorf("JavaComponent = %q, want default", version.JavaComponent())
	}
}

func TestResolveMissingBodies(t *testing.T) {
	f := newResolverFixture(t)
	f.catalog.Add(Descriptor{ID: "listed", Type: TypeCustom})

	_, err := f.resolver.Resolve(context.Background(), "nowhere")
	if !errors.Is(err, ErrUnknownVersion) {
		t.Errorf("unlisted id: err = %v, want ErrUnknownVersion", err)
	}
	var resolution *ResolutionError
	if !errors.As(err, &resolution) || resolution.ID != "nowhere" {
		t.Errorf("unlisted id: err = %v, want ResolutionError for nowhere", err)
	}

	_, err = f.resolver.Resolve(context.Background(), "listed")
	if !errors.Is(err, ErrMissingVersion) {
		t.Errorf("listed id: err = %v, want ErrMissingVersion", err)
	}
	if ErrMissingVersion.Error() == ErrUnknownVersion.Error() {
		t.Error("missing and unknown versions share a message")
	}
}

func TestResolveMissingParentNamesParent(t *testing.T) {
	f := newResolverFixture(t)
	testutil.WriteFile(t, filepath.Join(f.versions, "child", "child.json"),
		[]byte(`{"id":"child","inheritsFrom":"absent"}`))

	_, err := f.resolver.Resolve(context.Background(), "child")
	var resolution *ResolutionError
	if !errors.As(err, &resolution) || resolution.ID != "absent" {
		t.Fatalf("err = %v, want ResolutionError for absent", err)
	}
	if !errors.Is(err, ErrUnknownVersion) {
		t.Errorf("err = %v, want ErrUnknownVersion", err)
	}
}

func TestResolveDetectsCycle(t *testing.T) {
	f := newResolverFixture(t)
	testutil.WriteFile(t, filepath.Join(f.versions, "a", "a.json"), []byte(`{"id":"a","inheritsFrom":"b"}`))
	testutil.WriteFile(t, filepath.Join(f.versions, "b", "b.json"), []byte(`{"id":"b","inheritsFrom":"a"}`))

	_, err := f.resolver.Resolve(context.Background(), "a")
	if !errors.Is(err, ErrInheritanceCycle) {
		t.Fatalf("err = %v, want ErrInheritanceCycle", err)
	}
	if !strings.Contains(err.Error(), "a -> b -> a") {
		t.Errorf("error %q does not name the chain", err)
	}
}

func TestResolveSelfInheritanceIsCycle(t *testing.T) {
	f := newResolverFixture(t)
	testutil.WriteFile(t, filepath.Join(f.versions, "loop", "loop.json"), []byte(`{"id":"loop","inheritsFrom":"loop"}`))

	if _, err := f.resolver.Resolve(context.Background(), "loop"); !errors.Is(err, ErrInheritanceCycle) {
		t.Fatalf("err = %v, want ErrInheritanceCycle", err)
	}
}

func TestResolveMigratesLegacyLayout(t *testing.T) {
	f := newResolverFixture(t)
	f.publish(Descriptor{ID: "1.20.1", Type: TypeRelease}, vanillaBody)
	f.catalog.Add(Descriptor{ID: "forge-47", Type: TypeForge, Base: "1.20.1"})
	legacy := filepath.Join(f.versions, "forge-47", "forge-47.json")
	testutil.WriteFile(t, legacy, []byte(`{"id":"forge-47","inheritsFrom":"1.20.1","mainClass":"Forge"}`))

	version, err := f.resolver.Resolve(context.Background(), "forge-47")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if version.MainClass != "Forge" {
		t.Errorf("MainClass = %q", version.MainClass)
	}
	if _, err := os.Stat(filepath.Join(f.versions, "1.20.1", "forge-47.json")); err != nil {
		t.Errorf("body not moved into shared folder: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(legacy)); !os.IsNotExist(err) {
		t.Errorf("legacy folder still present: %v", err)
	}
}

func TestResolveAppliesOverridesBeforeInheritance(t *testing.T) {
	f := newResolverFixture(t)
	f.publish(Descriptor{ID: "1.20.1", Type: TypeRelease}, vanillaBody)
	testutil.WriteFile(t, filepath.Join(f.versions, "1.20.1", "tweaked.json"),
		[]byte(`{"id":"tweaked","mainClass":"Original"}`))

	overrides, err := merge.Parse([]byte(`{"inheritsFrom":"1.20.1","mainClass":"Tweaked"}`))
	if err != nil {
		t.Fatal(err)
	}
	f.catalog.Add(Descriptor{ID: "tweaked", Type: TypeCustom, Base: "1.20.1", Overrides: &overrides})

	version, err := f.resolver.Resolve(context.Background(), "tweaked")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if version.MainClass != "Tweaked" {
		t.Errorf("MainClass = %q, want override", version.MainClass)
	}
	if version.Assets != "5" {
		t.Errorf("Assets = %q, want inherited through the overridden inheritsFrom", version.Assets)
	}
}

func TestResolveRejectsCorruptRemoteBody(t *testing.T) {
	f := newResolverFixture(t)
	descriptor := f.publish(Descriptor{ID: "1.20.1", Type: TypeRelease}, vanillaBody)
	descriptor.SHA1 = checksum.Sum([]byte("something else"))
	f.catalog.Add(descriptor)

	_, err := f.resolver.Resolve(context.Background(), "1.20.1")
	if !errors.Is(err, transfer.ErrIntegrity) {
		t.Fatalf("err = %v, want ErrIntegrity", err)
	}
}

func TestResolveRejectsNonObjectBody(t *testing.T) {
	f := newResolverFixture(t)
	testutil.WriteFile(t, filepath.Join(f.versions, "odd", "odd.json"), []byte(`[1,2]`))

	if _, err := f.resolver.Resolve(context.Background(), "odd"); err == nil {
		t.Fatal("Resolve accepted an array body")
	}
}
