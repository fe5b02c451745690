// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides the HTTP helpers kiln uses for metadata
// requests: version manifests, catalog listings, and maven ".sha1"
// companion files.
//
// Response reads are bounded at MaxResponseSize so a misbehaving mirror
// cannot exhaust memory. Large binary downloads (jars, assets, runtime
// files) do not go through these helpers; they are streamed to disk by
// lib/transfer.
package netutil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kilnmc/kiln/lib/version"
)

// MaxResponseSize bounds metadata response reads: 256 MB. The largest
// legitimate document (a full asset index) is a few megabytes.
const MaxResponseSize int64 = 256 << 20

// StatusError is returned when a server answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("GET %s: HTTP %d: %s", e.URL, e.StatusCode, e.Body)
}

// Get issues a GET request carrying kiln's User-Agent. A non-2xx
// response is closed and converted to a *StatusError.
func Get(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	if client == nil {
		client = http.DefaultClient
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	request.Header.Set("User-Agent", version.UserAgent())

	response, err := client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		defer response.Body.Close()
		return nil, &StatusError{
			URL:        url,
			StatusCode: response.StatusCode,
			Body:       truncate(ErrorBody(response.Body), 200),
		}
	}
	return response, nil
}

// GetBytes fetches url and returns its body, bounded at MaxResponseSize.
func GetBytes(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	response, err := Get(ctx, client, url)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	data, err := ReadResponse(response.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	return data, nil
}

// GetJSON fetches url and decodes the JSON body into v.
func GetJSON(ctx context.Context, client *http.Client, url string, v any) error {
	response, err := Get(ctx, client, url)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if err := DecodeResponse(response.Body, v); err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	return nil
}

// ReadResponse reads a response body up to MaxResponseSize bytes.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// DecodeResponse reads a response body (up to MaxResponseSize bytes) and
// JSON-decodes it into v.
func DecodeResponse(body io.Reader, v any) error {
	data, err := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	return json.Unmarshal(data, v)
}

// ErrorBody reads an error response body for diagnostics. Read errors
// are ignored; a partial body is still useful in an error message.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	return string(data)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
