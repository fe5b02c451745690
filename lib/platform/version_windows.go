// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package platform

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// osVersion returns "major.minor", the form rule patterns such as
// "^10\\." are written against.
func osVersion() string {
	info := windows.RtlGetVersion()
	return fmt.Sprintf("%d.%d", info.MajorVersion, info.MinorVersion)
}
