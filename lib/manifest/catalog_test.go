// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"path/filepath"
	"testing"

	"github.com/kilnmc/kiln/lib/testutil"
)

func TestLoadCatalog(t *testing.T) {
	meta := t.TempDir()
	testutil.WriteFile(t, filepath.Join(meta, "manifests", "vanilla.json"), []byte(`[
		{"id":"1.20.1","type":"release","url":"https://example.invalid/1.20.1.json","sha1":"aa","releaseTime":"2023-06-12T13:25:51+00:00"},
		{"id":"23w31a","type":"snapshot","url":"https://example.invalid/23w31a.json","sha1":"bb"}
	]`))
	testutil.WriteFile(t, filepath.Join(meta, "manifests", "zz-custom.jsonc"), []byte(`{
		// hand-written
		"versions": [
			{"id": "modpack", "base": "1.20.1", "overrides": {"inheritsFrom": "1.20.1"},},
			{"id": "1.20.1", "type": "release", "url": "https://mirror.invalid/1.20.1.json", "sha1": "cc"},
		],
	}`))
	testutil.WriteFile(t, filepath.Join(meta, "manifests", "notes.txt"), []byte("ignored"))
	testutil.WriteFile(t, filepath.Join(meta, "index", "latest.json"),
		[]byte(`{"release":"1.20.1","snapshot":"23w31a"}`))

	catalog, err := LoadCatalog(meta)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}

	if got := catalog.Lookup("1.20.1").URL; got != "https://mirror.invalid/1.20.1.json" {
		t.Errorf("1.20.1 URL = %q, want the later file's", got)
	}
	modpack := catalog.Lookup("modpack")
	if modpack.Type != TypeCustom {
		t.Errorf("modpack type = %q, want custom default", modpack.Type)
	}
	if modpack.Overrides == nil || modpack.Name() != "1.20.1" {
		t.Errorf("modpack = %+v, want overrides and base", modpack)
	}
	if got := catalog.Lookup(AliasLatestSnapshot).ID; got != "23w31a" {
		t.Errorf("latest-snapshot = %q", got)
	}
	if got := catalog.Lookup(AliasLatestRelease).ID; got != "1.20.1" {
		t.Errorf("latest-release = %q", got)
	}
	if got := catalog.Lookup("3.0").Type; got != TypeUnknown {
		t.Errorf("unlisted type = %q, want unknown", got)
	}

	var ids []string
	for _, descriptor := range catalog.Descriptors() {
		ids = append(ids, descriptor.ID)
	}
	if len(ids) != 3 || ids[0] != "1.20.1" || ids[1] != "23w31a" || ids[2] != "modpack" {
		t.Errorf("Descriptors ids = %v", ids)
	}
	if releases := catalog.Descriptors(TypeRelease); len(releases) != 1 {
		t.Errorf("Descriptors(release) = %v", releases)
	}
	if types := catalog.Types(); len(types) != 3 || types[0] != TypeCustom {
		t.Errorf("Types = %v", types)
	}
}

func TestLoadCatalogEmptyMeta(t *testing.T) {
	catalog, err := LoadCatalog(t.TempDir())
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if len(catalog.Descriptors()) != 0 {
		t.Error("empty meta produced descriptors")
	}
	if got := catalog.Lookup(AliasLatestRelease); got.ID != AliasLatestRelease || got.Type != TypeUnknown {
		t.Errorf("unset alias = %+v, want unknown passthrough", got)
	}
}

func TestLoadCatalogRejectsBadFiles(t *testing.T) {
	for name, content := range map[string]string{
		"malformed": `[{"id":`,
		"missing id": `[{"type":"release"}]`,
	} {
		t.Run(name, func(t *testing.T) {
			meta := t.TempDir()
			testutil.WriteFile(t, filepath.Join(meta, "manifests", "bad.json"), []byte(content))
			if _, err := LoadCatalog(meta); err == nil {
				t.Fatal("LoadCatalog accepted a bad file")
			}
		})
	}
}
