// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package maven converts maven coordinates into repository paths.
package maven

import (
	"fmt"
	"strings"
)

// Coordinate is a parsed "group:artifact:version[:classifier][@extension]"
// string.
type Coordinate struct {
	Group      string
	Artifact   string
	Version    string
	Classifier string

	// Extension defaults to "jar".
	Extension string
}

// Parse splits a coordinate string.
func Parse(name string) (Coordinate, error) {
	extension := "jar"
	if at := strings.LastIndexByte(name, '@'); at >= 0 {
		extension = name[at+1:]
		name = name[:at]
	}

	parts := strings.Split(name, ":")
	if len(parts) < 3 || len(parts) > 4 {
		return Coordinate{}, fmt.Errorf("maven coordinate %q: want group:artifact:version[:classifier]", name)
	}
	for _, part := range parts {
		if part == "" {
			return Coordinate{}, fmt.Errorf("maven coordinate %q has an empty component", name)
		}
	}
	if extension == "" {
		return Coordinate{}, fmt.Errorf("maven coordinate %q has an empty extension", name)
	}

	coordinate := Coordinate{
		Group:     parts[0],
		Artifact:  parts[1],
		Version:   parts[2],
		Extension: extension,
	}
	if len(parts) == 4 {
		coordinate.Classifier = parts[3]
	}
	return coordinate, nil
}

// FileName returns "artifact-version[-classifier].extension".
func (c Coordinate) FileName() string {
	name := c.Artifact + "-" + c.Version
	if c.Classifier != "" {
		name += "-" + c.Classifier
	}
	return name + "." + c.Extension
}

// Directory returns the slash-separated directory of the artifact
// within a repository: the group with dots as slashes, then artifact
// and version.
func (c Coordinate) Directory() string {
	return strings.ReplaceAll(c.Group, ".", "/") + "/" + c.Artifact + "/" + c.Version
}

// Path returns the slash-separated repository path of the artifact.
func (c Coordinate) Path() string {
	return c.Directory() + "/" + c.FileName()
}

func (c Coordinate) String() string {
	s := c.Group + ":" + c.Artifact + ":" + c.Version
	if c.Classifier != "" {
		s += ":" + c.Classifier
	}
	if c.Extension != "jar" {
		s += "@" + c.Extension
	}
	return s
}

// Path parses name and returns its repository path.
func Path(name string) (string, error) {
	coordinate, err := Parse(name)
	if err != nil {
		return "", err
	}
	return coordinate.Path(), nil
}

// URL joins a repository base URL and an artifact path, inserting a
// slash when the base lacks one.
func URL(base, path string) string {
	if strings.HasSuffix(base, "/") {
		return base + path
	}
	return base + "/" + path
}
