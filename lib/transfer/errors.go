// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package transfer

import (
	"errors"
	"fmt"
)

// ErrIntegrity is wrapped by failures where downloaded or unpacked
// content does not match its declared digest or size.
var ErrIntegrity = errors.New("integrity check failed")

// Kind classifies a failed item.
type Kind string

const (
	// KindFetch is a transport failure: connection, TLS, or a body that
	// ended early.
	KindFetch Kind = "fetch"

	// KindStatus is a non-2xx HTTP response.
	KindStatus Kind = "status"

	// KindIntegrity is a digest or size mismatch.
	KindIntegrity Kind = "integrity"

	// KindUnpack is a failure extracting or decompressing.
	KindUnpack Kind = "unpack"

	// KindFilesystem is a local I/O failure.
	KindFilesystem Kind = "filesystem"
)

// Error is a failed item.
type Error struct {
	Kind Kind
	Key  string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Key, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of a transfer failure, or KindFetch for
// errors that did not come from this package.
func KindOf(err error) Kind {
	var transferErr *Error
	if errors.As(err, &transferErr) {
		return transferErr.Kind
	}
	return KindFetch
}

func failure(kind Kind, key string, err error) *Error {
	return &Error{Kind: kind, Key: key, Err: err}
}
