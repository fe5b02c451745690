// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source so that timing-driven
// code (the download watchdog in particular) can be tested without real
// waits.
//
// Production code holds a Clock field set to Real(). Tests set it to a
// FakeClock and move time forward explicitly:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	o := fetch.New(fetch.Options{Clock: c, ...})
//	// ... start the download on another goroutine ...
//	c.WaitForTimers(1)          // the watchdog is armed
//	c.Advance(15 * time.Second) // fire it deterministically
//
// WaitForTimers closes the race between a goroutine registering a timer
// and the test advancing time past it.
package clock
