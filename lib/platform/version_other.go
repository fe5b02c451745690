// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !unix && !windows

package platform

func osVersion() string { return "" }
