// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// FileServer serves blobs registered with Put and counts every request
// by path. Unknown paths answer 404. Paths registered with Stall block
// until the request context ends, which simulates a hung transfer.
type FileServer struct {
	*httptest.Server

	mu      sync.Mutex
	blobs   map[string][]byte
	stalled map[string]bool
	hits    map[string]int
}

// NewFileServer starts a FileServer that is closed when the test ends.
func NewFileServer(t testing.TB) *FileServer {
	t.Helper()
	server := &FileServer{
		blobs:   make(map[string][]byte),
		stalled: make(map[string]bool),
		hits:    make(map[string]int),
	}
	server.Server = httptest.NewServer(http.HandlerFunc(server.serve))
	t.Cleanup(server.Close)
	return server
}

// Put registers data at path (which must begin with "/") and returns
// the full URL for it.
func (s *FileServer) Put(path string, data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[path] = data
	delete(s.stalled, path)
	return s.URL + path
}

// Stall makes requests for path hang until the client gives up.
func (s *FileServer) Stall(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stalled[path] = true
	return s.URL + path
}

// Hits returns how many requests path has received.
func (s *FileServer) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// TotalHits returns the number of requests across all paths.
func (s *FileServer) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, count := range s.hits {
		total += count
	}
	return total
}

func (s *FileServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	data, ok := s.blobs[r.URL.Path]
	stalled := s.stalled[r.URL.Path]
	s.mu.Unlock()

	if stalled {
		<-r.Context().Done()
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write(data)
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating parent of %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// ReadFile returns the contents of path or fails the test.
func ReadFile(t testing.TB, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return data
}
