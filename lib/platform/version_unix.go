// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package platform

import "golang.org/x/sys/unix"

// osVersion returns the kernel release, which is what rule version
// patterns for osx and linux are written against.
func osVersion() string {
	var name unix.Utsname
	if err := unix.Uname(&name); err != nil {
		return ""
	}
	return unix.ByteSliceToString(name.Release[:])
}
