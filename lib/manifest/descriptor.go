// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"github.com/kilnmc/kiln/lib/manifest/merge"
)

// Type classifies a version descriptor.
type Type string

const (
	TypeOldAlpha Type = "old_alpha"
	TypeOldBeta  Type = "old_beta"
	TypeRelease  Type = "release"
	TypeSnapshot Type = "snapshot"
	TypeFabric   Type = "fabric"
	TypeForge    Type = "forge"
	TypeCustom   Type = "custom"

	// TypeUnknown marks an id that no catalog lists.
	TypeUnknown Type = "unknown"
)

// Descriptor is one catalog entry.
type Descriptor struct {
	ID   string `json:"id"`
	Type Type   `json:"type"`

	// URL and SHA1 locate a remote body. Without a URL the body must
	// already be stored locally.
	URL  string `json:"url,omitempty"`
	SHA1 string `json:"sha1,omitempty"`

	// Base names the storage folder when it differs from ID. Loader
	// descriptors use the game version they build on.
	Base string `json:"base,omitempty"`

	// Overrides replaces top-level fields of the loaded body before
	// inheritance is followed.
	Overrides *merge.Value `json:"overrides,omitempty"`

	ReleaseTime string `json:"releaseTime,omitempty"`
	Time        string `json:"time,omitempty"`
	Stable      bool   `json:"stable,omitempty"`
}

// Name returns the storage name: Base when set, otherwise ID.
func (d Descriptor) Name() string {
	if d.Base != "" {
		return d.Base
	}
	return d.ID
}
