// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package watchdog provides a liveness timer. A [Watchdog] is armed
// with a window; every [Watchdog.Kick] pushes the deadline back to a
// full window from now. If the window passes with no kick, the
// [Watchdog.Expired] channel closes and the watchdog stays expired.
//
// The watchdog is not a per-operation deadline: it detects silence.
// The download orchestrator kicks it on every worker message and treats
// expiry as a stalled attempt.
//
// Timing runs on a [clock.Clock], so tests drive expiry with the fake
// clock rather than sleeping.
package watchdog
