// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"fmt"

	"github.com/kilnmc/kiln/lib/transfer"
)

// EventKind identifies an orchestrator event.
type EventKind string

const (
	// EventStarted opens every Download call. Total is the batch size.
	EventStarted EventKind = "started"

	// EventSetup opens every attempt. Workers is the number of workers
	// started; Attempt counts from 1.
	EventSetup EventKind = "setup"

	// EventProgress reports a completed item: Done items finished in
	// this attempt, Remaining still pending, out of Total.
	EventProgress EventKind = "progress"

	// EventFailure reports a failed item. The item stays pending.
	EventFailure EventKind = "failure"

	// EventRestart reports that Attempt stalled. Retry is the factor
	// the next attempt runs with.
	EventRestart EventKind = "restart"

	// EventDone closes a successful Download call.
	EventDone EventKind = "done"
)

// Event is one orchestrator notification. Only the fields documented
// for its Kind are set.
type Event struct {
	Kind EventKind

	Total     int
	Done      int
	Remaining int

	Workers int
	Attempt int
	Retry   int

	Key         string
	FailureKind transfer.Kind
	Detail      string
}

func (e Event) String() string {
	switch e.Kind {
	case EventStarted:
		return fmt.Sprintf("started: %d items", e.Total)
	case EventSetup:
		return fmt.Sprintf("setup: attempt %d, %d workers, retry %d", e.Attempt, e.Workers, e.Retry)
	case EventProgress:
		return fmt.Sprintf("progress: %s (%d/%d, %d remaining)", e.Key, e.Done, e.Total, e.Remaining)
	case EventFailure:
		return fmt.Sprintf("failure: %s: %s: %s", e.Key, e.FailureKind, e.Detail)
	case EventRestart:
		return fmt.Sprintf("restart: attempt %d stalled, retry %d", e.Attempt, e.Retry)
	case EventDone:
		return "done"
	default:
		return string(e.Kind)
	}
}

// Observer receives orchestrator events.
//
// For each Download call the sequence is: one EventStarted; then per
// attempt one EventSetup followed by any interleaving of EventProgress
// and EventFailure; then either EventRestart (followed by the next
// attempt's EventSetup) or EventDone. A call that returns an error
// ends without EventDone.
//
// Observe is called from the coordinator goroutine only, never
// concurrently. It must not block for long: worker messages queue
// behind it.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe calls f(event).
func (f ObserverFunc) Observe(event Event) { f(event) }

// Observers fans events out to each observer in order.
type Observers []Observer

// Observe forwards event to every observer.
func (o Observers) Observe(event Event) {
	for _, observer := range o {
		observer.Observe(event)
	}
}

type discard struct{}

func (discard) Observe(Event) {}
