// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package nodelogs

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
)

// JournalReader follows the node's log stream through a journalctl
// subprocess emitting one JSON record per line.
type JournalReader struct {
	unit string

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdout io.ReadCloser
	err    error
}

// NewJournalReader creates a reader following the given syslog unit.
func NewJournalReader(unit string) *JournalReader {
	return &JournalReader{unit: unit}
}

// journalCommand builds a journalctl invocation that receives a polite stop
// on cancellation and a forced one after the grace period.
func journalCommand(ctx context.Context, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "journalctl", args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = stopGrace
	return cmd
}

func (j *JournalReader) followArgs() []string {
	return []string{"-f", "--unit", j.unit, "-o", "cat", "--no-pager", "--since", "now"}
}

// Open starts the follow subprocess.
func (j *JournalReader) Open(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.cmd != nil {
		return errors.New("journal reader already open")
	}
	cmd := journalCommand(ctx, j.followArgs()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "journalctl stdout")
	}
	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "start journalctl")
	}
	j.cmd = cmd
	j.stdout = stdout
	logger.Debug("journalctl follow started", "unit", j.unit, "pid", cmd.Process.Pid)
	return nil
}

// Close stops the follow subprocess: SIGTERM first, SIGKILL after the
// grace period.
func (j *JournalReader) Close() error {
	j.mu.Lock()
	cmd := j.cmd
	j.cmd = nil
	j.stdout = nil
	j.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case <-done:
	case <-time.After(stopGrace):
		logger.Warn("journalctl did not stop in time, killing it")
		_ = cmd.Process.Kill()
		<-done
	}
	return nil
}

// Records streams the live log records. The channel closes on EOF of the
// subprocess or on cancellation.
func (j *JournalReader) Records(ctx context.Context) <-chan *Record {
	j.mu.Lock()
	stdout := j.stdout
	j.mu.Unlock()

	out := make(chan *Record, 256)
	if stdout == nil {
		j.setErr(errors.New("journal reader not open"))
		close(out)
		return out
	}
	go func() {
		defer close(out)
		if err := pumpLines(ctx, stdout, out); err != nil && ctx.Err() == nil {
			j.setErr(errors.Wrap(err, "journalctl stream"))
		}
	}()
	return out
}

func (j *JournalReader) setErr(err error) {
	j.mu.Lock()
	if j.err == nil {
		j.err = err
	}
	j.mu.Unlock()
}

func (j *JournalReader) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// stream runs a one-shot journalctl invocation and pumps its output.
func (j *JournalReader) stream(ctx context.Context, args ...string) <-chan *Record {
	out := make(chan *Record, 64)
	cmd := journalCommand(ctx, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		logger.Warn("journalctl stdout", "err", err)
		close(out)
		return out
	}
	if err := cmd.Start(); err != nil {
		logger.Warn("start journalctl", "err", err)
		close(out)
		return out
	}
	go func() {
		defer close(out)
		_ = pumpLines(ctx, stdout, out)
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			logger.Debug("journalctl search exited", "err", err)
		}
	}()
	return out
}

// Search streams historical records matching substring, newest first,
// within the given window. The substring is matched literally; journalctl
// treats the pattern as a regular expression, so it is quoted here.
func (j *JournalReader) Search(ctx context.Context, substring string, since time.Duration) <-chan *Record {
	hours := int(since / time.Hour)
	if hours < 1 {
		hours = 1
	}
	return j.stream(ctx,
		"--unit", j.unit,
		"-o", "cat",
		"--no-pager",
		"--reverse",
		"--since", fmt.Sprintf("%d hours ago", hours),
		"--grep", regexp.QuoteMeta(substring),
	)
}

// ReplaySinceLastStart locates the newest restart marker within the last
// day and streams everything logged after it.
func (j *JournalReader) ReplaySinceLastStart(ctx context.Context) <-chan *Record {
	marker := j.findLastRestart(ctx)
	if marker == nil {
		out := make(chan *Record)
		close(out)
		return out
	}
	return j.stream(ctx,
		"--unit", j.unit,
		"-o", "cat",
		"--no-pager",
		"--utc",
		"--since", marker.At.UTC().Format("2006-01-02 15:04:05"),
	)
}

func (j *JournalReader) findLastRestart(ctx context.Context) *Record {
	searchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for rec := range j.Search(searchCtx, restartMarkerNS, 24*time.Hour) {
		if rec.NS == restartMarkerNS {
			return rec
		}
	}
	return nil
}
