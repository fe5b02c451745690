// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package watchdog

import (
	"sync"
	"time"

	"github.com/kilnmc/kiln/lib/clock"
)

// Watchdog closes its Expired channel after a full window passes
// without a Kick.
type Watchdog struct {
	window  time.Duration
	expired chan struct{}

	mu      sync.Mutex
	timer   *clock.Timer
	fired   bool
	stopped bool
}

// New arms a watchdog that expires window after the last kick. The
// window must be positive.
func New(c clock.Clock, window time.Duration) *Watchdog {
	if window <= 0 {
		panic("watchdog: window must be positive")
	}
	w := &Watchdog{
		window:  window,
		expired: make(chan struct{}),
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.timer = c.AfterFunc(window, w.expire)
	return w
}

func (w *Watchdog) expire() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fired || w.stopped {
		return
	}
	w.fired = true
	close(w.expired)
}

// Kick resets the deadline to a full window from now. It returns false
// when the watchdog has already expired or been stopped, in which case
// nothing changes.
func (w *Watchdog) Kick() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fired || w.stopped {
		return false
	}
	w.timer.Reset(w.window)
	return true
}

// Expired returns a channel that is closed when the watchdog expires.
// It is never closed for a watchdog stopped before expiry.
func (w *Watchdog) Expired() <-chan struct{} {
	return w.expired
}

// Stop disarms the watchdog. It is safe to call more than once and
// after expiry.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	w.timer.Stop()
}

// Window returns the configured liveness window.
func (w *Watchdog) Window() time.Duration {
	return w.window
}
