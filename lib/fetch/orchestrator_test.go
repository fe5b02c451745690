// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kilnmc/kiln/lib/checksum"
	"github.com/kilnmc/kiln/lib/clock"
	"github.com/kilnmc/kiln/lib/testutil"
	"github.com/kilnmc/kiln/lib/transfer"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// eventLog records events and also streams them for tests that need to
// react mid-download.
type eventLog struct {
	mu     sync.Mutex
	events []Event
	stream chan Event
}

func newEventLog() *eventLog {
	return &eventLog{stream: make(chan Event, 4096)}
}

func (l *eventLog) Observe(event Event) {
	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()
	l.stream <- event
}

func (l *eventLog) all() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

func (l *eventLog) kinds() []EventKind {
	var kinds []EventKind
	for _, event := range l.all() {
		kinds = append(kinds, event.Kind)
	}
	return kinds
}

// waitFor reads streamed events until one satisfies match.
func (l *eventLog) waitFor(t *testing.T, description string, match func(Event) bool) Event {
	t.Helper()
	for {
		event := testutil.RequireReceive(t, l.stream, 10*time.Second, "waiting for %s", description)
		if match(event) {
			return event
		}
	}
}

type fixture struct {
	server  *testutil.FileServer
	root    string
	fetcher *transfer.Fetcher
	clock   *clock.FakeClock
	events  *eventLog
}

func newFixture(t *testing.T) *fixture {
	server := testutil.NewFileServer(t)
	return &fixture{
		server:  server,
		root:    t.TempDir(),
		fetcher: &transfer.Fetcher{Client: server.Client()},
		clock:   clock.Fake(epoch),
		events:  newEventLog(),
	}
}

func (f *fixture) orchestrator(spawner Spawner, workers int) *Orchestrator {
	return &Orchestrator{
		Spawner:     spawner,
		Scratch:     filepath.Join(f.root, "scratch"),
		Workers:     workers,
		BaseTimeout: 15 * time.Second,
		Observer:    f.events,
		Clock:       f.clock,
	}
}

// publish serves count blobs and returns a batch that downloads them.
func (f *fixture) publish(count int) transfer.Batch {
	batch := transfer.Batch{}
	for index := range count {
		content := []byte(fmt.Sprintf("object %d %s", index, string(make([]byte, index))))
		hash := checksum.Sum(content)
		url := f.server.Put("/"+hash, content)
		batch.Add(transfer.Item{
			Key:  hash,
			Path: filepath.Join(f.root, "objects", hash[:2]),
			Name: hash,
			URL:  url,
			SHA1: hash,
			Size: int64(len(content)),
		})
	}
	return batch
}

func TestDownloadCompletes(t *testing.T) {
	f := newFixture(t)
	batch := f.publish(20)
	orchestrator := f.orchestrator(&InProcessSpawner{Fetcher: f.fetcher}, 4)

	if err := orchestrator.Download(context.Background(), batch, 1); err != nil {
		t.Fatalf("Download: %v", err)
	}

	for _, item := range batch {
		if ok, err := checksum.Verify(item.Destination(), item.SHA1, item.Size); err != nil || !ok {
			t.Errorf("%s not verified on disk: %v", item.Key, err)
		}
	}

	events := f.events.all()
	if events[0].Kind != EventStarted || events[0].Total != 20 {
		t.Errorf("first event = %v, want started with 20 items", events[0])
	}
	if events[1].Kind != EventSetup || events[1].Workers != 4 || events[1].Attempt != 1 || events[1].Retry != 1 {
		t.Errorf("second event = %v, want setup attempt 1 with 4 workers", events[1])
	}
	progress := events[2 : len(events)-1]
	if len(progress) != 20 {
		t.Fatalf("%d progress events, want 20", len(progress))
	}
	for index, event := range progress {
		if event.Kind != EventProgress {
			t.Fatalf("event %d = %v, want progress", index+2, event)
		}
		if event.Done != index+1 || event.Remaining != 20-index-1 || event.Total != 20 {
			t.Errorf("progress %d = %+v", index, event)
		}
	}
	if last := events[len(events)-1]; last.Kind != EventDone {
		t.Errorf("last event = %v, want done", last)
	}
}

func TestDownloadSkipsVerifiedItems(t *testing.T) {
	f := newFixture(t)
	batch := f.publish(3)

	var present transfer.Item
	for _, item := range batch {
		present = item
		break
	}
	data := mustGet(t, f, present)
	testutil.WriteFile(t, present.Destination(), data)
	before := f.server.Hits("/" + present.Key)

	orchestrator := f.orchestrator(&InProcessSpawner{Fetcher: f.fetcher}, 2)
	if err := orchestrator.Download(context.Background(), batch, 1); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if hits := f.server.Hits("/" + present.Key); hits != before {
		t.Errorf("verified item fetched %d more times", hits-before)
	}
	if kinds := f.events.kinds(); kinds[len(kinds)-1] != EventDone {
		t.Errorf("events = %v, want done last", kinds)
	}
}

// mustGet downloads an item's content through a throwaway fetcher so
// the test can seed the destination.
func mustGet(t *testing.T, f *fixture, item transfer.Item) []byte {
	t.Helper()
	seed := item
	seed.Path = t.TempDir()
	data, err := f.fetcher.EnsureRead(context.Background(), seed)
	if err != nil {
		t.Fatalf("seeding %s: %v", item.Key, err)
	}
	return data
}

func TestDownloadDuplicateKeyFetchesOnce(t *testing.T) {
	f := newFixture(t)
	first := f.server.Put("/first", []byte("first"))
	second := f.server.Put("/second", []byte("second"))

	batch := transfer.Batch{}
	batch.Add(transfer.Item{Key: "shared", Path: f.root, Name: "shared", URL: first})
	batch.Add(transfer.Item{Key: "shared", Path: f.root, Name: "shared", URL: second})

	orchestrator := f.orchestrator(&InProcessSpawner{Fetcher: f.fetcher}, 4)
	if err := orchestrator.Download(context.Background(), batch, 1); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if hits := f.server.Hits("/first"); hits != 0 {
		t.Errorf("replaced item fetched %d times", hits)
	}
	if hits := f.server.Hits("/second"); hits != 1 {
		t.Errorf("later item fetched %d times, want 1", hits)
	}
	if got := testutil.ReadFile(t, filepath.Join(f.root, "shared")); string(got) != "second" {
		t.Errorf("destination = %q, want second", got)
	}
}

func TestDownloadEmptyBatch(t *testing.T) {
	f := newFixture(t)
	spawner := &countingSpawner{inner: &InProcessSpawner{Fetcher: f.fetcher}}
	if err := f.orchestrator(spawner, 4).Download(context.Background(), transfer.Batch{}, 1); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if spawner.count() != 0 {
		t.Errorf("%d workers spawned for an empty batch", spawner.count())
	}
	kinds := f.events.kinds()
	if len(kinds) != 2 || kinds[0] != EventStarted || kinds[1] != EventDone {
		t.Errorf("events = %v, want [started done]", kinds)
	}
}

func TestDownloadOmitsEmptyPartitions(t *testing.T) {
	f := newFixture(t)
	batch := f.publish(2)
	spawner := &countingSpawner{inner: &InProcessSpawner{Fetcher: f.fetcher}}

	if err := f.orchestrator(spawner, 8).Download(context.Background(), batch, 1); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if spawner.count() != 2 {
		t.Errorf("%d workers spawned for 2 items, want 2", spawner.count())
	}
}

func TestDownloadWipesScratch(t *testing.T) {
	f := newFixture(t)
	batch := f.publish(1)
	orchestrator := f.orchestrator(&InProcessSpawner{Fetcher: f.fetcher}, 1)
	stale := filepath.Join(orchestrator.Scratch, "7.cbor")
	testutil.WriteFile(t, stale, []byte("stale"))

	if err := orchestrator.Download(context.Background(), batch, 1); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale partition survived: %v", err)
	}
	if _, err := os.Stat(filepath.Join(orchestrator.Scratch, "0.cbor")); err != nil {
		t.Errorf("partition file not written: %v", err)
	}
}

func TestDownloadClampsRetry(t *testing.T) {
	f := newFixture(t)
	orchestrator := f.orchestrator(&InProcessSpawner{Fetcher: f.fetcher}, 1)
	if err := orchestrator.Download(context.Background(), f.publish(1), -3); err != nil {
		t.Fatalf("Download: %v", err)
	}
	setup := f.events.all()[1]
	if setup.Kind != EventSetup || setup.Retry != 1 {
		t.Errorf("setup = %v, want retry 1", setup)
	}
}

func TestDownloadRestartsAfterStall(t *testing.T) {
	f := newFixture(t)
	batch := f.publish(6)
	spawner := &stallingSpawner{inner: &InProcessSpawner{Fetcher: f.fetcher}, hang: map[int]bool{0: true}}
	orchestrator := f.orchestrator(spawner, 3)

	result := make(chan error, 1)
	go func() { result <- orchestrator.Download(context.Background(), batch, 1) }()

	f.events.waitFor(t, "first setup", func(e Event) bool { return e.Kind == EventSetup })
	// Let the healthy workers finish so the stall is the only thing
	// left in the first attempt.
	f.events.waitFor(t, "healthy partitions", func(e Event) bool {
		return e.Kind == EventProgress && e.Done == 4
	})
	f.clock.WaitForTimers(1)
	f.clock.Advance(15 * time.Second)

	if err := testutil.RequireReceive(t, result, 10*time.Second, "download result"); err != nil {
		t.Fatalf("Download: %v", err)
	}

	if !spawner.allHungKilled() {
		t.Error("stalled worker was not killed")
	}

	events := f.events.all()
	var restart, secondSetup *Event
	for index := range events {
		switch {
		case events[index].Kind == EventRestart:
			restart = &events[index]
		case events[index].Kind == EventSetup && events[index].Attempt == 2:
			secondSetup = &events[index]
		}
	}
	if restart == nil || restart.Attempt != 1 || restart.Retry != 2 {
		t.Fatalf("restart event = %v, want attempt 1 retry 2", restart)
	}
	if secondSetup == nil || secondSetup.Retry != 2 {
		t.Fatalf("second setup = %v, want retry 2", secondSetup)
	}

	// The second attempt tracks the whole batch again.
	var secondAttemptProgress []Event
	afterRestart := false
	for _, event := range events {
		if event.Kind == EventRestart {
			afterRestart = true
			continue
		}
		if afterRestart && event.Kind == EventProgress {
			secondAttemptProgress = append(secondAttemptProgress, event)
		}
	}
	if len(secondAttemptProgress) != 6 {
		t.Errorf("second attempt reported %d completions, want all 6", len(secondAttemptProgress))
	}
	if last := events[len(events)-1]; last.Kind != EventDone {
		t.Errorf("last event = %v, want done", last)
	}

	// Items finished in the stalled attempt are not fetched again.
	for _, item := range batch {
		if hits := f.server.Hits("/" + item.Key); hits > 1 {
			t.Errorf("%s fetched %d times", item.Key, hits)
		}
	}
}

func TestDownloadReportsFailuresAndExhaustsAttempts(t *testing.T) {
	f := newFixture(t)
	batch := f.publish(3)
	batch.Add(transfer.Item{Key: "missing", Path: f.root, Name: "missing", URL: f.server.URL + "/missing"})

	orchestrator := f.orchestrator(&InProcessSpawner{Fetcher: f.fetcher}, 2)
	orchestrator.MaxAttempts = 1

	result := make(chan error, 1)
	go func() { result <- orchestrator.Download(context.Background(), batch, 1) }()

	failure := f.events.waitFor(t, "failure event", func(e Event) bool { return e.Kind == EventFailure })
	if failure.Key != "missing" || failure.FailureKind != transfer.KindStatus {
		t.Errorf("failure = %+v, want status failure for missing", failure)
	}

	f.clock.WaitForTimers(1)
	f.clock.Advance(15 * time.Second)

	err := testutil.RequireReceive(t, result, 10*time.Second, "download result")
	if !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("Download error = %v, want ErrAttemptsExhausted", err)
	}
	for _, kind := range f.events.kinds() {
		if kind == EventDone || kind == EventRestart {
			t.Errorf("unexpected %s event after the last attempt stalled", kind)
		}
	}
}

func TestDownloadCancellationKillsWorkers(t *testing.T) {
	f := newFixture(t)
	spawner := &stallingSpawner{inner: &InProcessSpawner{Fetcher: f.fetcher}, hang: map[int]bool{0: true}}
	orchestrator := f.orchestrator(spawner, 1)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- orchestrator.Download(ctx, f.publish(2), 1) }()

	f.events.waitFor(t, "setup", func(e Event) bool { return e.Kind == EventSetup })
	cancel()

	err := testutil.RequireReceive(t, result, 10*time.Second, "download result")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Download error = %v, want context.Canceled", err)
	}
	if !spawner.allHungKilled() {
		t.Error("worker survived cancellation")
	}
}

func TestDownloadExecSpawner(t *testing.T) {
	executable, err := os.Executable()
	if err != nil {
		t.Skipf("cannot locate test binary: %v", err)
	}
	t.Setenv(helperWorkerEnv, "1")

	f := newFixture(t)
	batch := f.publish(5)
	orchestrator := f.orchestrator(&ExecSpawner{Binary: executable, Stderr: io.Discard}, 2)

	if err := orchestrator.Download(context.Background(), batch, 1); err != nil {
		t.Fatalf("Download: %v", err)
	}
	for _, item := range batch {
		if ok, _ := checksum.Verify(item.Destination(), item.SHA1, item.Size); !ok {
			t.Errorf("%s missing after multi-process download", item.Key)
		}
	}
}

// countingSpawner counts spawned workers.
type countingSpawner struct {
	inner Spawner

	mu      sync.Mutex
	spawned int
}

func (s *countingSpawner) Spawn(ctx context.Context, partition string) (Worker, error) {
	s.mu.Lock()
	s.spawned++
	s.mu.Unlock()
	return s.inner.Spawn(ctx, partition)
}

func (s *countingSpawner) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spawned
}

// stallingSpawner returns a worker that never reports for the spawn
// calls listed in hang (counted from zero across attempts).
type stallingSpawner struct {
	inner Spawner
	hang  map[int]bool

	mu    sync.Mutex
	calls int
	hung  []*hangingWorker
}

func (s *stallingSpawner) Spawn(ctx context.Context, partition string) (Worker, error) {
	s.mu.Lock()
	call := s.calls
	s.calls++
	s.mu.Unlock()

	if !s.hang[call] {
		return s.inner.Spawn(ctx, partition)
	}
	reader, writer := io.Pipe()
	worker := &hangingWorker{reader: reader, writer: writer, killed: make(chan struct{})}
	s.mu.Lock()
	s.hung = append(s.hung, worker)
	s.mu.Unlock()
	return worker, nil
}

func (s *stallingSpawner) allHungKilled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, worker := range s.hung {
		select {
		case <-worker.killed:
		default:
			return false
		}
	}
	return len(s.hung) > 0
}

// hangingWorker produces no output until killed.
type hangingWorker struct {
	reader *io.PipeReader
	writer *io.PipeWriter
	killed chan struct{}
	once   sync.Once
}

func (w *hangingWorker) Output() io.Reader { return w.reader }

func (w *hangingWorker) Kill() {
	w.once.Do(func() {
		close(w.killed)
		w.writer.Close()
	})
}

func (w *hangingWorker) Wait() error {
	<-w.killed
	return errKilled
}
