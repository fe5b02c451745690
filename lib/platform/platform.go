// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"errors"
	"fmt"
	"regexp"
	"runtime"
)

// OS names as they appear in rules and native classifier maps.
const (
	Windows = "windows"
	MacOS   = "osx"
	Linux   = "linux"
)

// ErrUnsupported reports an OS or architecture kiln has no runtime
// images or native classifiers for.
var ErrUnsupported = errors.New("unsupported platform")

// Platform is the host a version is being installed for.
type Platform struct {
	// OS is the rule-level OS name: windows, osx, or linux. Other
	// systems keep their GOOS value and match no OS rule.
	OS string

	// Arch is the Go architecture name (amd64, 386, arm64, ...).
	Arch string

	// Version is the OS release string matched by rule version
	// patterns. Empty when unknown.
	Version string

	// Features are the feature flags rules may test.
	Features map[string]bool
}

// Current returns the platform kiln is running on.
func Current(features map[string]bool) Platform {
	return Platform{
		OS:       OSName(runtime.GOOS),
		Arch:     runtime.GOARCH,
		Version:  osVersion(),
		Features: features,
	}
}

// OSName maps a GOOS value to its rule-level OS name.
func OSName(goos string) string {
	switch goos {
	case "darwin":
		return MacOS
	case "windows":
		return Windows
	case "linux":
		return Linux
	default:
		return goos
	}
}

var wideArchitectures = map[string]bool{
	"amd64":    true,
	"arm64":    true,
	"loong64":  true,
	"mips64":   true,
	"mips64le": true,
	"ppc64":    true,
	"ppc64le":  true,
	"riscv64":  true,
	"s390x":    true,
}

// Bits returns "64" or "32", the value substituted for ${arch} in
// native classifier names.
func (p Platform) Bits() string {
	if wideArchitectures[p.Arch] {
		return "64"
	}
	return "32"
}

// Rule is one entry of a rules list in a version document.
type Rule struct {
	Action   string          `json:"action"`
	OS       *OSCondition    `json:"os,omitempty"`
	Features map[string]bool `json:"features,omitempty"`
}

// OSCondition restricts a rule to an operating system. Every non-empty
// field must match.
type OSCondition struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
	Arch    string `json:"arch,omitempty"`
}

// Evaluate reports whether an entry guarded by rules applies to p.
func Evaluate(rules []Rule, p Platform) bool {
	if len(rules) == 0 {
		return true
	}
	allowed := false
	for _, rule := range rules {
		if !rule.matches(p) {
			continue
		}
		allowed = rule.Action == "allow"
	}
	return allowed
}

func (r Rule) matches(p Platform) bool {
	if r.OS != nil {
		if r.OS.Name != "" && r.OS.Name != p.OS {
			return false
		}
		if r.OS.Arch != "" && !archMatches(r.OS.Arch, p.Arch) {
			return false
		}
		if r.OS.Version != "" {
			pattern, err := regexp.Compile(r.OS.Version)
			if err != nil || !pattern.MatchString(p.Version) {
				return false
			}
		}
	}
	for name, want := range r.Features {
		if p.Features[name] != want {
			return false
		}
	}
	return true
}

// archAliases maps architecture names found in version documents to Go
// architecture names.
var archAliases = map[string][]string{
	"x86":     {"386"},
	"x32":     {"386"},
	"ia32":    {"386"},
	"x64":     {"amd64"},
	"x86_64":  {"amd64"},
	"amd64":   {"amd64"},
	"arm":     {"arm"},
	"arm64":   {"arm64"},
	"aarch64": {"arm64"},
	"ppc64":   {"ppc64", "ppc64le"},
	"s390x":   {"s390x"},
	"mips":    {"mips", "mipsle"},
	"mipsel":  {"mipsle"},
}

func archMatches(ruleArch, goarch string) bool {
	for _, candidate := range archAliases[ruleArch] {
		if candidate == goarch {
			return true
		}
	}
	return ruleArch == goarch
}

// RuntimePlatform returns the Java runtime catalog key for a GOOS and
// GOARCH pair.
func RuntimePlatform(goos, goarch string) (string, error) {
	switch goos {
	case "darwin":
		return "mac-os", nil
	case "linux":
		switch goarch {
		case "amd64":
			return "linux", nil
		case "386":
			return "linux-i386", nil
		}
	case "windows":
		switch goarch {
		case "amd64":
			return "windows-x64", nil
		case "386":
			return "windows-x86", nil
		}
	}
	return "", fmt.Errorf("%w: no Java runtime for %s/%s", ErrUnsupported, goos, goarch)
}
