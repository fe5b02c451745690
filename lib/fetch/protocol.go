// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/kilnmc/kiln/lib/codec"
	"github.com/kilnmc/kiln/lib/transfer"
)

// Command is the message type a worker sends.
type Command string

const (
	CommandSuccess Command = "success"
	CommandFailure Command = "failure"
)

// Message is one worker report. Workers write a CBOR sequence of
// messages on their output stream, one per item.
type Message struct {
	Cmd    Command       `json:"cmd"`
	Key    string        `json:"key"`
	Kind   transfer.Kind `json:"kind,omitempty"`
	Detail string        `json:"detail,omitempty"`
}

// WritePartition writes items to path as a CBOR array.
func WritePartition(path string, items []transfer.Item) error {
	data, err := codec.Marshal(items)
	if err != nil {
		return fmt.Errorf("encoding partition: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing partition %s: %w", path, err)
	}
	return nil
}

// ReadPartition reads a partition written by WritePartition.
func ReadPartition(path string) ([]transfer.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading partition: %w", err)
	}
	var items []transfer.Item
	if err := codec.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decoding partition %s: %w", path, err)
	}
	return items, nil
}

// RunWorker ensures each item in order and writes one Message per item
// to output. Item failures become failure messages; only a write
// failure or cancellation ends the loop early.
func RunWorker(ctx context.Context, items []transfer.Item, fetcher *transfer.Fetcher, output io.Writer) error {
	encoder := codec.NewEncoder(output)
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}

		message := Message{Cmd: CommandSuccess, Key: item.Key}
		if _, err := fetcher.Ensure(ctx, item); err != nil {
			message = Message{
				Cmd:    CommandFailure,
				Key:    item.Key,
				Kind:   transfer.KindOf(err),
				Detail: err.Error(),
			}
		}
		if err := encoder.Encode(message); err != nil {
			return fmt.Errorf("writing message for %s: %w", item.Key, err)
		}
	}
	return nil
}

// ServeWorker is the worker entry point: it reads the partition at
// path and runs it.
func ServeWorker(ctx context.Context, path string, fetcher *transfer.Fetcher, output io.Writer) error {
	items, err := ReadPartition(path)
	if err != nil {
		return err
	}
	return RunWorker(ctx, items, fetcher, output)
}
