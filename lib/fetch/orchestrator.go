// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/kilnmc/kiln/lib/clock"
	"github.com/kilnmc/kiln/lib/codec"
	"github.com/kilnmc/kiln/lib/transfer"
	"github.com/kilnmc/kiln/lib/watchdog"
)

// DefaultBaseTimeout is the watchdog window for retry factor 1.
const DefaultBaseTimeout = 15 * time.Second

// ErrAttemptsExhausted is returned when MaxAttempts attempts have all
// stalled.
var ErrAttemptsExhausted = errors.New("download attempts exhausted")

// Orchestrator runs batches through a worker pool. Download calls on
// one Orchestrator are serialized, since every attempt wipes Scratch.
type Orchestrator struct {
	// Spawner starts workers. Required.
	Spawner Spawner

	// Scratch is the directory partition files are written to. It is
	// deleted and recreated at the start of every attempt. Required.
	Scratch string

	// Workers is the pool size. Zero means runtime.NumCPU().
	Workers int

	// BaseTimeout is the watchdog window for retry factor 1. Zero means
	// DefaultBaseTimeout.
	BaseTimeout time.Duration

	// MaxAttempts bounds attempts per Download. Zero means unbounded.
	MaxAttempts int

	Observer Observer
	Clock    clock.Clock
	Logger   *slog.Logger

	mu sync.Mutex
}

// Download fetches every item of batch, restarting stalled attempts
// with an incremented retry factor. A retry factor below 1 is treated
// as 1. It returns nil once every item has been reported complete.
func (o *Orchestrator) Download(ctx context.Context, batch transfer.Batch, retry int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.Spawner == nil {
		return fmt.Errorf("orchestrator has no spawner")
	}
	if o.Scratch == "" {
		return fmt.Errorf("orchestrator has no scratch directory")
	}
	if err := batch.Validate(); err != nil {
		return err
	}
	if retry < 1 {
		retry = 1
	}

	items := batch.Items()
	o.observer().Observe(Event{Kind: EventStarted, Total: len(items)})
	if len(items) == 0 {
		o.observer().Observe(Event{Kind: EventDone})
		return nil
	}

	if err := batch.CreateDirectories(); err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		complete, err := o.attempt(ctx, items, attempt, retry)
		if err != nil {
			return err
		}
		if complete {
			o.observer().Observe(Event{Kind: EventDone})
			return nil
		}
		if o.MaxAttempts > 0 && attempt >= o.MaxAttempts {
			return fmt.Errorf("%w: %d attempts stalled", ErrAttemptsExhausted, attempt)
		}
		retry++
		o.logger().Warn("download attempt stalled, restarting",
			"attempt", attempt,
			"retry", retry,
			"timeout", o.baseTimeout()*time.Duration(retry),
		)
		o.observer().Observe(Event{Kind: EventRestart, Attempt: attempt, Retry: retry})
	}
}

// workerMessage is a decoded message forwarded by a reader goroutine.
type workerMessage struct {
	worker  int
	message Message
}

// attempt runs one pass over items. It returns true when every item
// completed and false when the watchdog expired.
func (o *Orchestrator) attempt(ctx context.Context, items []transfer.Item, attempt, retry int) (bool, error) {
	partitions := Partition(items, o.workerCount())
	paths, err := o.writePartitions(partitions)
	if err != nil {
		return false, err
	}

	messages := make(chan workerMessage)
	exits := make(chan int)
	stop := make(chan struct{})
	var readers sync.WaitGroup
	var workers []Worker

	teardown := func() {
		close(stop)
		for _, worker := range workers {
			worker.Kill()
		}
		readers.Wait()
	}

	window := o.baseTimeout() * time.Duration(retry)
	liveness := watchdog.New(o.clock(), window)
	defer liveness.Stop()

	for index, path := range paths {
		worker, err := o.Spawner.Spawn(ctx, path)
		if err != nil {
			teardown()
			return false, fmt.Errorf("starting worker %d: %w", index, err)
		}
		workers = append(workers, worker)
		readers.Add(1)
		go o.forward(index, worker, messages, exits, stop, &readers)
	}

	o.logger().Info("download attempt started",
		"attempt", attempt,
		"items", len(items),
		"workers", len(workers),
		"retry", retry,
		"timeout", window,
	)
	o.observer().Observe(Event{Kind: EventSetup, Workers: len(workers), Attempt: attempt, Retry: retry})

	pending := make(map[string]bool, len(items))
	for _, item := range items {
		pending[item.Key] = true
	}
	total := len(items)
	done := 0
	running := len(workers)

	for {
		select {
		case <-ctx.Done():
			teardown()
			return false, ctx.Err()

		case <-liveness.Expired():
			teardown()
			return false, nil

		case received := <-messages:
			liveness.Kick()
			message := received.message
			switch message.Cmd {
			case CommandSuccess:
				if !pending[message.Key] {
					continue
				}
				delete(pending, message.Key)
				done++
				o.observer().Observe(Event{
					Kind:      EventProgress,
					Key:       message.Key,
					Done:      done,
					Remaining: len(pending),
					Total:     total,
				})
				if len(pending) == 0 {
					teardown()
					return true, nil
				}
			case CommandFailure:
				o.logger().Debug("item failed",
					"key", message.Key,
					"kind", message.Kind,
					"detail", message.Detail,
				)
				o.observer().Observe(Event{
					Kind:        EventFailure,
					Key:         message.Key,
					FailureKind: message.Kind,
					Detail:      message.Detail,
				})
			default:
				o.logger().Warn("unknown worker message", "worker", received.worker, "cmd", message.Cmd)
			}

		case index := <-exits:
			running--
			if running == 0 {
				o.logger().Info("all workers exited with items pending",
					"attempt", attempt,
					"pending", len(pending),
				)
			} else {
				o.logger().Debug("worker exited", "worker", index, "running", running)
			}
		}
	}
}

// forward decodes messages from one worker until its stream ends, then
// reaps it. Every send also selects on stop so teardown never blocks.
func (o *Orchestrator) forward(index int, worker Worker, messages chan<- workerMessage, exits chan<- int, stop <-chan struct{}, readers *sync.WaitGroup) {
	defer readers.Done()

	decoder := codec.NewDecoder(worker.Output())
	for {
		var message Message
		if err := decoder.Decode(&message); err != nil {
			if !errors.Is(err, io.EOF) && !isStopped(stop) {
				o.logger().Warn("reading worker output", "worker", index, "error", err)
				worker.Kill()
			}
			break
		}
		select {
		case messages <- workerMessage{worker: index, message: message}:
		case <-stop:
			worker.Kill()
			drain(worker.Output())
			_ = worker.Wait()
			return
		}
	}

	if err := worker.Wait(); err != nil && !isStopped(stop) {
		o.logger().Warn("fetch worker failed", "worker", index, "error", err)
	}
	select {
	case exits <- index:
	case <-stop:
	}
}

func isStopped(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

func drain(reader io.Reader) {
	_, _ = io.Copy(io.Discard, reader)
}

// writePartitions wipes the scratch directory and writes one file per
// partition.
func (o *Orchestrator) writePartitions(partitions [][]transfer.Item) ([]string, error) {
	if err := os.RemoveAll(o.Scratch); err != nil {
		return nil, fmt.Errorf("clearing scratch directory: %w", err)
	}
	if err := os.MkdirAll(o.Scratch, 0o755); err != nil {
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}

	paths := make([]string, len(partitions))
	for index, partition := range partitions {
		paths[index] = filepath.Join(o.Scratch, strconv.Itoa(index)+".cbor")
		if err := WritePartition(paths[index], partition); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

func (o *Orchestrator) workerCount() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU()
}

func (o *Orchestrator) baseTimeout() time.Duration {
	if o.BaseTimeout > 0 {
		return o.BaseTimeout
	}
	return DefaultBaseTimeout
}

func (o *Orchestrator) observer() Observer {
	if o.Observer == nil {
		return discard{}
	}
	return o.Observer
}

func (o *Orchestrator) clock() clock.Clock {
	if o.Clock == nil {
		return clock.Real()
	}
	return o.Clock
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}
