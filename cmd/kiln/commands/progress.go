// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/kilnmc/kiln/lib/clock"
	"github.com/kilnmc/kiln/lib/fetch"
)

const progressWidth = 40

var (
	progressLabelStyle = lipgloss.NewStyle().Bold(true)
	progressCountStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
	progressFailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#D7263D"))
)

// progressRenderer turns orchestrator events into a redrawn progress
// line on a terminal, or into log records otherwise. It implements
// fetch.Observer.
type progressRenderer struct {
	out         io.Writer
	interactive bool
	logger      *slog.Logger
	clock       clock.Clock
	bar         progress.Model

	total    int
	complete int
	failures int
	attempt  int
	started  time.Time
}

func newProgressRenderer(out io.Writer, interactive bool, logger *slog.Logger) *progressRenderer {
	bar := progress.New(progress.WithGradient("#007BC0", "#011E5C"), progress.WithoutPercentage())
	bar.Width = progressWidth
	return &progressRenderer{
		out:         out,
		interactive: interactive,
		logger:      logger,
		clock:       clock.Real(),
		bar:         bar,
	}
}

// Observe implements fetch.Observer.
func (r *progressRenderer) Observe(event fetch.Event) {
	switch event.Kind {
	case fetch.EventStarted:
		r.total = event.Total
		r.complete = 0
		r.failures = 0
		r.attempt = 0
		r.started = r.clock.Now()
		r.logger.Debug("batch started", "items", event.Total)

	case fetch.EventSetup:
		r.attempt = event.Attempt
		r.render()

	case fetch.EventProgress:
		r.complete = event.Total - event.Remaining
		r.render()

	case fetch.EventFailure:
		r.failures++
		r.clearLine()
		r.logger.Warn("download failed",
			"key", event.Key,
			"kind", string(event.FailureKind),
			"detail", event.Detail,
		)
		r.render()

	case fetch.EventRestart:
		// The orchestrator logs the restart itself.
		r.clearLine()

	case fetch.EventDone:
		if r.total == 0 {
			return
		}
		r.complete = r.total
		r.render()
		if r.interactive {
			fmt.Fprintln(r.out)
		}
		r.logger.Info("batch complete",
			"items", humanize.Comma(int64(r.total)),
			"failures", r.failures,
			"attempts", r.attempt,
			"elapsed", r.clock.Now().Sub(r.started).Round(time.Millisecond).String(),
		)
	}
}

// line formats the current state without a trailing newline.
func (r *progressRenderer) line() string {
	fraction := 1.0
	if r.total > 0 {
		fraction = float64(r.complete) / float64(r.total)
	}
	line := fmt.Sprintf("%s %s %s",
		progressLabelStyle.Render("downloading"),
		r.bar.ViewAs(fraction),
		progressCountStyle.Render(fmt.Sprintf("%s/%s", humanize.Comma(int64(r.complete)), humanize.Comma(int64(r.total)))),
	)
	if r.attempt > 1 {
		line += " " + progressCountStyle.Render(fmt.Sprintf("(%s attempt)", humanize.Ordinal(r.attempt)))
	}
	if r.failures > 0 {
		line += " " + progressFailStyle.Render(fmt.Sprintf("%s failed", humanize.Comma(int64(r.failures))))
	}
	return line
}

func (r *progressRenderer) render() {
	if !r.interactive || r.total == 0 {
		return
	}
	fmt.Fprintf(r.out, "\r%s", r.line())
}

// clearLine erases the progress line so a log record starts at column
// zero.
func (r *progressRenderer) clearLine() {
	if r.interactive && r.total > 0 {
		fmt.Fprint(r.out, "\r\x1b[2K")
	}
}
