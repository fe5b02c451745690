// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package fetch executes batches of transfer items in parallel across a
// pool of worker processes and recovers from stalls.
//
// An [Orchestrator.Download] call runs one or more attempts. Each
// attempt:
//
//  1. Sorts the batch by declared size (largest first, key as the
//     tie-break) and deals it round-robin into one partition per worker.
//     Empty partitions start no worker.
//  2. Wipes the scratch directory and writes each partition there as
//     "<n>.cbor".
//  3. Starts a fresh worker per partition through a [Spawner]. Workers
//     report one CBOR [Message] per item on their output stream.
//  4. Arms a liveness watchdog for BaseTimeout × retry. Any message
//     from any worker resets it.
//
// The coordinator goroutine owns the set of pending keys; per-worker
// reader goroutines only decode messages and forward them over a
// channel. When the pending set empties, every worker is torn down and
// Download returns. When the watchdog expires, every worker is killed,
// the retry factor increments, and the whole original batch is
// resubmitted. Files completed by the stalled attempt stay on disk and
// are skipped by the next attempt's digest check.
//
// Per-item failures are reported to the [Observer] and never abort the
// batch. A failed item stays pending, so an attempt with failures ends
// by stalling and the next attempt tries the item again.
//
// Attempts are unbounded unless MaxAttempts is set, in which case
// exhausting them returns [ErrAttemptsExhausted].
package fetch
