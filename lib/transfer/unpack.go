// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package transfer

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/ulikunitz/xz/lzma"

	"github.com/kilnmc/kiln/lib/checksum"
)

// extractZip extracts every entry of archive whose name does not start
// with one of the exclude prefixes into directory. Existing files are
// overwritten. Entries that would land outside directory are rejected.
func extractZip(archive, directory string, exclude []string) error {
	reader, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("opening %s: %w", archive, err)
	}
	defer reader.Close()

	root, err := filepath.Abs(directory)
	if err != nil {
		return err
	}

	for _, entry := range reader.File {
		if excluded(entry.Name, exclude) {
			continue
		}
		target := filepath.Join(root, filepath.FromSlash(entry.Name))
		if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
			return fmt.Errorf("zip entry %q escapes %s", entry.Name, directory)
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := extractEntry(entry, target); err != nil {
			return fmt.Errorf("extracting %s from %s: %w", entry.Name, archive, err)
		}
	}
	return nil
}

func excluded(name string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// extractEntry writes entry to a temporary file beside target and
// renames it into place, so concurrent extractions of archives sharing
// an entry never leave a partially written target.
func extractEntry(entry *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	source, err := entry.Open()
	if err != nil {
		return err
	}
	defer source.Close()

	temporary, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.part")
	if err != nil {
		return err
	}
	temporaryPath := temporary.Name()
	defer os.Remove(temporaryPath)

	_, copyErr := io.Copy(temporary, source)
	closeErr := temporary.Close()
	if copyErr != nil {
		return copyErr
	}
	if closeErr != nil {
		return closeErr
	}
	if err := os.Chmod(temporaryPath, 0o644); err != nil {
		return err
	}
	return os.Rename(temporaryPath, target)
}

// decompressLZMA decodes an LZMA ("lzma alone") file into target via a
// temporary file, checking the result against digest and size when
// they are known.
func decompressLZMA(source, target, digest string, size int64) error {
	input, err := os.Open(source)
	if err != nil {
		return err
	}
	defer input.Close()

	reader, err := lzma.NewReader(input)
	if err != nil {
		return fmt.Errorf("reading lzma header of %s: %w", source, err)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	temporary, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.part")
	if err != nil {
		return err
	}
	temporaryPath := temporary.Name()
	defer os.Remove(temporaryPath)

	hasher := sha1.New()
	written, copyErr := io.Copy(io.MultiWriter(temporary, hasher), reader)
	closeErr := temporary.Close()
	if copyErr != nil {
		return fmt.Errorf("decompressing %s: %w", source, copyErr)
	}
	if closeErr != nil {
		return closeErr
	}

	if size > 0 && written != size {
		return fmt.Errorf("%w: %s decompressed to %d bytes, want %d", ErrIntegrity, source, written, size)
	}
	if actual := hex.EncodeToString(hasher.Sum(nil)); digest != "" && !checksum.Equal(actual, digest) {
		return fmt.Errorf("%w: %s decompressed to sha1 %s, want %s", ErrIntegrity, source, actual, digest)
	}
	return os.Rename(temporaryPath, target)
}
