// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestReadResponse(t *testing.T) {
	t.Run("normal body", func(t *testing.T) {
		data, err := ReadResponse(bytes.NewReader([]byte(`{"id":"1.20.1"}`)))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != `{"id":"1.20.1"}` {
			t.Fatalf("got %q", data)
		}
	})

	t.Run("read error propagates", func(t *testing.T) {
		if _, err := ReadResponse(&failReader{}); err == nil {
			t.Fatal("expected error from failing reader")
		}
	})
}

func TestDecodeResponseInvalidJSON(t *testing.T) {
	if err := DecodeResponse(strings.NewReader("not json"), &struct{}{}); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestGetSetsUserAgent(t *testing.T) {
	var gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		fmt.Fprint(w, `{"latest":{"release":"1.20.1"}}`)
	}))
	defer server.Close()

	var result struct {
		Latest struct {
			Release string `json:"release"`
		} `json:"latest"`
	}
	if err := GetJSON(context.Background(), server.Client(), server.URL, &result); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if result.Latest.Release != "1.20.1" {
		t.Errorf("release = %q, want 1.20.1", result.Latest.Release)
	}
	if !strings.HasPrefix(gotAgent, "kiln/") {
		t.Errorf("User-Agent = %q, want kiln/ prefix", gotAgent)
	}
}

func TestGetStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such artifact", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := GetBytes(context.Background(), server.Client(), server.URL+"/missing.jar.sha1")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", statusErr.StatusCode)
	}
	if !strings.Contains(statusErr.Body, "no such artifact") {
		t.Errorf("Body = %q, want server message", statusErr.Body)
	}
}

type failReader struct{}

func (f *failReader) Read([]byte) (int, error) {
	return 0, fmt.Errorf("simulated read failure")
}
