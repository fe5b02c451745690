// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !unix

package fetch

import (
	"errors"
	"os"
	"os/exec"
)

func setProcessGroup(cmd *exec.Cmd) {}

func killProcessGroup(process *os.Process) error {
	err := process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}
