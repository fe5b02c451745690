// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"path/filepath"

	"github.com/kilnmc/kiln/lib/manifest/merge"
	"github.com/kilnmc/kiln/lib/platform"
)

// DefaultJavaComponent is the runtime used by versions that do not
// name one.
const DefaultJavaComponent = "jre-legacy"

// Artifact is a downloadable file referenced by a version document.
type Artifact struct {
	ID        string `json:"id,omitempty"`
	Path      string `json:"path,omitempty"`
	SHA1      string `json:"sha1,omitempty"`
	Size      int64  `json:"size,omitempty"`
	TotalSize int64  `json:"totalSize,omitempty"`
	URL       string `json:"url,omitempty"`
}

// Downloads lists the game jars and mappings of a version.
type Downloads struct {
	Client         *Artifact `json:"client,omitempty"`
	ClientMappings *Artifact `json:"client_mappings,omitempty"`
	Server         *Artifact `json:"server,omitempty"`
	ServerMappings *Artifact `json:"server_mappings,omitempty"`
	WindowsServer  *Artifact `json:"windows_server,omitempty"`
}

// Library is one entry of a version's libraries list.
type Library struct {
	Name      string            `json:"name"`
	Downloads *LibraryDownloads `json:"downloads,omitempty"`
	URL       string            `json:"url,omitempty"`
	Rules     []platform.Rule   `json:"rules,omitempty"`
	Natives   map[string]string `json:"natives,omitempty"`
	Extract   *Extract          `json:"extract,omitempty"`
}

// LibraryDownloads holds a library's primary artifact and its
// classifier variants.
type LibraryDownloads struct {
	Artifact    *Artifact           `json:"artifact,omitempty"`
	Classifiers map[string]Artifact `json:"classifiers,omitempty"`
}

// Extract configures native archive extraction.
type Extract struct {
	Exclude []string `json:"exclude,omitempty"`
}

// JavaVersion names the runtime a version needs.
type JavaVersion struct {
	Component    string `json:"component,omitempty"`
	MajorVersion int    `json:"majorVersion,omitempty"`
}

// Arguments holds the modern argument lists. Entries are either strings
// or objects with rules and a value, so they stay untyped.
type Arguments struct {
	Game []merge.Value `json:"game,omitempty"`
	JVM  []merge.Value `json:"jvm,omitempty"`
}

// Body is the typed view of a merged version document.
type Body struct {
	ID                 string       `json:"id"`
	Type               Type         `json:"type,omitempty"`
	InheritsFrom       string       `json:"inheritsFrom,omitempty"`
	MainClass          string       `json:"mainClass,omitempty"`
	MinecraftArguments string       `json:"minecraftArguments,omitempty"`
	Arguments          *Arguments   `json:"arguments,omitempty"`
	Assets             string       `json:"assets,omitempty"`
	AssetIndex         *Artifact    `json:"assetIndex,omitempty"`
	Downloads          Downloads    `json:"downloads"`
	Libraries          []Library    `json:"libraries,omitempty"`
	JavaVersion        *JavaVersion `json:"javaVersion,omitempty"`
	Logging            merge.Value  `json:"logging"`
	ReleaseTime        string       `json:"releaseTime,omitempty"`
	Time               string       `json:"time,omitempty"`
}

// Version is a fully resolved version.
type Version struct {
	// Descriptor is the descriptor Resolve was asked for.
	Descriptor Descriptor

	// Document is the merged document, parents beneath children.
	Document merge.Value

	Body

	// Folder and Name belong to the root of the inheritance chain, so
	// every version built on the same game shares its jar.
	Folder string
	Name   string
}

// JarPath returns the client jar location.
func (v *Version) JarPath() string {
	return filepath.Join(v.Folder, v.Name+".jar")
}

// JavaComponent returns the runtime component the version runs on.
func (v *Version) JavaComponent() string {
	if v.JavaVersion != nil && v.JavaVersion.Component != "" {
		return v.JavaVersion.Component
	}
	return DefaultJavaComponent
}
