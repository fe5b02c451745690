// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/kilnmc/kiln/lib/transfer"
)

// Spawner starts a worker for one partition file.
type Spawner interface {
	Spawn(ctx context.Context, partition string) (Worker, error)
}

// Worker is a running fetch worker.
type Worker interface {
	// Output is the worker's CBOR message stream. It reaches EOF (or
	// fails) once the worker has exited or been killed.
	Output() io.Reader

	// Kill stops the worker and everything it started. It is safe to
	// call more than once and after the worker has exited.
	Kill()

	// Wait blocks until the worker has exited. Call it only after
	// Output has been drained.
	Wait() error
}

// errKilled is reported by an in-process worker stopped through Kill.
var errKilled = errors.New("worker killed")

// InProcessSpawner runs the worker loop on a goroutine that writes to
// an in-memory pipe. Kill cancels the worker's context, which aborts
// its in-flight request.
type InProcessSpawner struct {
	Fetcher *transfer.Fetcher
}

// Spawn reads the partition and starts the worker goroutine.
func (s *InProcessSpawner) Spawn(ctx context.Context, partition string) (Worker, error) {
	items, err := ReadPartition(partition)
	if err != nil {
		return nil, err
	}
	fetcher := s.Fetcher
	if fetcher == nil {
		fetcher = &transfer.Fetcher{}
	}

	workerContext, cancel := context.WithCancel(ctx)
	reader, writer := io.Pipe()
	worker := &inProcessWorker{
		reader: reader,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(worker.done)
		worker.err = RunWorker(workerContext, items, fetcher, writer)
		writer.CloseWithError(worker.err)
	}()
	return worker, nil
}

type inProcessWorker struct {
	reader *io.PipeReader
	cancel context.CancelFunc
	done   chan struct{}
	err    error

	killOnce sync.Once
}

func (w *inProcessWorker) Output() io.Reader { return w.reader }

func (w *inProcessWorker) Kill() {
	w.killOnce.Do(func() {
		w.cancel()
		w.reader.CloseWithError(errKilled)
	})
}

func (w *inProcessWorker) Wait() error {
	<-w.done
	w.cancel()
	return w.err
}
