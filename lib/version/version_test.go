// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"strings"
	"testing"
)

func TestInfoMarksDirtyBuilds(t *testing.T) {
	savedCommit, savedDirty := GitCommit, GitDirty
	t.Cleanup(func() { GitCommit, GitDirty = savedCommit, savedDirty })

	GitCommit, GitDirty = "abc1234", "true"
	if got := Info(); !strings.Contains(got, "abc1234-dirty") {
		t.Errorf("Info() = %q, want it to contain abc1234-dirty", got)
	}

	GitDirty = "false"
	if got := Info(); strings.Contains(got, "-dirty") {
		t.Errorf("Info() = %q, clean build should not be marked dirty", got)
	}
}

func TestUserAgent(t *testing.T) {
	if got := UserAgent(); got != "kiln/"+Version {
		t.Errorf("UserAgent() = %q", got)
	}
}
