// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package checksum

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// HashFile streams the file at path through SHA-1 and returns the hex
// digest and the number of bytes read.
func HashFile(path string) (string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	hasher := sha1.New()
	size, err := io.Copy(hasher, file)
	if err != nil {
		return "", 0, fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}

// Sum returns the hex SHA-1 digest of data.
func Sum(data []byte) string {
	digest := sha1.Sum(data)
	return hex.EncodeToString(digest[:])
}

// Equal compares two hex digests case-insensitively.
func Equal(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Verify reports whether the file at path matches the expected digest
// and size. An empty digest or a size <= 0 skips that check; when both
// are unknown the file is never considered verified. A missing file is
// reported as (false, nil).
func Verify(path, digest string, size int64) (bool, error) {
	if digest == "" && size <= 0 {
		return false, nil
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return false, nil
	}
	if size > 0 && info.Size() != size {
		return false, nil
	}
	if digest == "" {
		return true, nil
	}

	actual, _, err := HashFile(path)
	if err != nil {
		return false, err
	}
	return Equal(actual, digest), nil
}

// ParseCompanion extracts the digest from the body of a maven-style
// ".sha1" companion file. Some repositories append the file name after
// the digest; only the first field is used.
func ParseCompanion(body []byte) (string, error) {
	fields := strings.Fields(string(body))
	if len(fields) == 0 {
		return "", fmt.Errorf("empty sha1 companion file")
	}
	digest := strings.ToLower(fields[0])
	if len(digest) != hex.EncodedLen(sha1.Size) {
		return "", fmt.Errorf("sha1 companion digest %q is %d characters, want %d",
			digest, len(digest), hex.EncodedLen(sha1.Size))
	}
	if _, err := hex.DecodeString(digest); err != nil {
		return "", fmt.Errorf("parsing sha1 companion digest: %w", err)
	}
	return digest, nil
}
