// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package transfer

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"runtime"

	"github.com/kilnmc/kiln/lib/checksum"
	"github.com/kilnmc/kiln/lib/netutil"
)

// Fetcher downloads items. The zero value uses http.DefaultClient and
// slog.Default().
type Fetcher struct {
	Client *http.Client
	Logger *slog.Logger
}

func (f *Fetcher) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.Default()
	}
	return f.Logger
}

// Ensure makes item's destination match its digest and size, fetching
// it when it does not, then runs the unpack step. It reports whether a
// network fetch happened. Every returned error is an *Error.
//
// Zip unpacking runs on every call, since its extraction directory is
// expected to be cleared between runs. LZMA decompression is skipped
// when the decompressed target already verifies.
func (f *Fetcher) Ensure(ctx context.Context, item Item) (bool, error) {
	key := item.Key
	if key == "" {
		key = item.Destination()
	}
	if err := item.Validate(); err != nil {
		return false, failure(KindFilesystem, key, err)
	}

	destination := item.Destination()
	verified, err := checksum.Verify(destination, item.SHA1, item.Size)
	if err != nil {
		return false, failure(KindFilesystem, key, err)
	}

	fetched := false
	if !verified {
		if err := f.download(ctx, key, item); err != nil {
			return false, err
		}
		fetched = true
	}

	if item.Unpack != nil {
		if err := f.unpack(key, item); err != nil {
			return fetched, err
		}
	}

	if item.Executable && runtime.GOOS != "windows" {
		if err := os.Chmod(item.Target(), 0o755); err != nil {
			return fetched, failure(KindFilesystem, key, err)
		}
	}
	return fetched, nil
}

// EnsureRead runs Ensure and returns the destination's contents. Used
// for small documents (version bodies, asset indexes, runtime
// manifests) that the caller parses.
func (f *Fetcher) EnsureRead(ctx context.Context, item Item) ([]byte, error) {
	if _, err := f.Ensure(ctx, item); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(item.Destination())
	if err != nil {
		return nil, failure(KindFilesystem, item.Key, err)
	}
	return data, nil
}

// download streams item.URL into a temporary file beside the
// destination, verifies it, and renames it into place.
func (f *Fetcher) download(ctx context.Context, key string, item Item) error {
	if err := os.MkdirAll(item.Path, 0o755); err != nil {
		return failure(KindFilesystem, key, err)
	}

	f.logger().Debug("fetching", "key", key, "url", item.URL, "size", item.Size)

	response, err := netutil.Get(ctx, f.Client, item.URL)
	if err != nil {
		var statusErr *netutil.StatusError
		if errors.As(err, &statusErr) {
			return failure(KindStatus, key, err)
		}
		return failure(KindFetch, key, err)
	}
	defer response.Body.Close()

	temporary, err := os.CreateTemp(item.Path, "."+item.Name+".*.part")
	if err != nil {
		return failure(KindFilesystem, key, err)
	}
	temporaryPath := temporary.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(temporaryPath)
		}
	}()

	hasher := sha1.New()
	written, copyErr := io.Copy(io.MultiWriter(temporary, hasher), response.Body)
	closeErr := temporary.Close()
	if copyErr != nil {
		var pathErr *fs.PathError
		if errors.As(copyErr, &pathErr) {
			return failure(KindFilesystem, key, copyErr)
		}
		return failure(KindFetch, key, fmt.Errorf("reading %s: %w", item.URL, copyErr))
	}
	if closeErr != nil {
		return failure(KindFilesystem, key, closeErr)
	}

	if item.Size > 0 && written != item.Size {
		return failure(KindIntegrity, key,
			fmt.Errorf("%w: %s is %d bytes, want %d", ErrIntegrity, item.URL, written, item.Size))
	}
	digest := hex.EncodeToString(hasher.Sum(nil))
	if item.SHA1 != "" && !checksum.Equal(digest, item.SHA1) {
		return failure(KindIntegrity, key,
			fmt.Errorf("%w: %s has sha1 %s, want %s", ErrIntegrity, item.URL, digest, item.SHA1))
	}

	if err := os.Rename(temporaryPath, item.Destination()); err != nil {
		return failure(KindFilesystem, key, err)
	}
	committed = true
	return nil
}

func (f *Fetcher) unpack(key string, item Item) error {
	var err error
	switch item.Unpack.Format {
	case Zip:
		err = extractZip(item.Destination(), item.Unpack.Path, item.Unpack.Exclude)
	case LZMA:
		var verified bool
		verified, err = checksum.Verify(item.Target(), item.Unpack.SHA1, item.Unpack.Size)
		if err == nil && !verified {
			err = decompressLZMA(item.Destination(), item.Target(), item.Unpack.SHA1, item.Unpack.Size)
		}
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrIntegrity) {
		return failure(KindIntegrity, key, err)
	}
	return failure(KindUnpack, key, err)
}
