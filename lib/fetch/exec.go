// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
)

// ExecSpawner runs each worker as a child process:
//
//	<Binary> --partition <file>
//
// The child reports on stdout. Its stderr (JSON log lines) is passed
// through to Stderr, or to the coordinator's stderr when nil. On Unix
// the child runs in its own process group, and Kill signals the whole
// group.
type ExecSpawner struct {
	Binary string
	Stderr io.Writer
	Logger *slog.Logger
}

func (s *ExecSpawner) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// Spawn starts the worker binary for partition.
func (s *ExecSpawner) Spawn(ctx context.Context, partition string) (Worker, error) {
	if s.Binary == "" {
		return nil, fmt.Errorf("fetch worker binary not configured")
	}

	cmd := exec.Command(s.Binary, "--partition", partition)
	cmd.Stderr = s.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating worker stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting fetch worker %s: %w", s.Binary, err)
	}

	s.logger().Debug("fetch worker started",
		"pid", cmd.Process.Pid,
		"partition", partition,
	)
	return &processWorker{cmd: cmd, stdout: stdout, logger: s.logger()}, nil
}

type processWorker struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	logger *slog.Logger

	killOnce sync.Once
}

func (w *processWorker) Output() io.Reader { return w.stdout }

func (w *processWorker) Kill() {
	w.killOnce.Do(func() {
		if err := killProcessGroup(w.cmd.Process); err != nil {
			w.logger.Debug("killing fetch worker", "pid", w.cmd.Process.Pid, "error", err)
		}
	})
}

func (w *processWorker) Wait() error {
	err := w.cmd.Wait()
	exitCode := 0
	if w.cmd.ProcessState != nil {
		exitCode = w.cmd.ProcessState.ExitCode()
	}
	w.logger.Debug("fetch worker exited",
		"pid", w.cmd.Process.Pid,
		"exit_code", exitCode,
		"error", err,
	)
	return err
}
