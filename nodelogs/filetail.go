// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package nodelogs

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// FileReader tails a plain log file with one JSON record per line. The
// live stream starts at the current end of file and polls for appended
// data.
type FileReader struct {
	path         string
	pollInterval time.Duration

	mu   sync.Mutex
	file *os.File
	err  error
}

// NewFileReader creates a reader tailing the given path.
func NewFileReader(path string) *FileReader {
	return &FileReader{path: path, pollInterval: 500 * time.Millisecond}
}

// Open opens the file and seeks to its end, so only records logged from
// now on are streamed live.
func (f *FileReader) Open(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file != nil {
		return errors.New("file reader already open")
	}
	file, err := os.Open(f.path)
	if err != nil {
		return errors.Wrap(err, "open log file")
	}
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		file.Close()
		return errors.Wrap(err, "seek log file")
	}
	f.file = file
	return nil
}

func (f *FileReader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}

// Records follows the file. The channel closes on cancellation or when the
// file goes away.
func (f *FileReader) Records(ctx context.Context) <-chan *Record {
	f.mu.Lock()
	file := f.file
	f.mu.Unlock()

	out := make(chan *Record, 256)
	if file == nil {
		f.setErr(errors.New("file reader not open"))
		close(out)
		return out
	}
	go func() {
		defer close(out)
		f.follow(ctx, file, out)
	}()
	return out
}

// follow reads complete lines, sleeping between polls at EOF. A partial
// line at EOF is kept until its newline arrives.
func (f *FileReader) follow(ctx context.Context, file *os.File, out chan<- *Record) {
	reader := bufio.NewReaderSize(file, 64*1024)
	var partial bytes.Buffer

	for {
		chunk, err := reader.ReadBytes('\n')
		partial.Write(chunk)

		if err == nil {
			line := bytes.TrimRight(partial.Bytes(), "\n")
			if len(line) > 0 && len(line) <= maxLineSize {
				if rec, derr := DecodeRecord(line); derr != nil {
					metricMalformedLines.Add(1)
					logger.Warn("skipping malformed log line", "err", derr)
				} else {
					metricRecordsRead.Add(1)
					select {
					case out <- rec:
					case <-ctx.Done():
						return
					}
				}
			}
			partial.Reset()
			continue
		}
		if err != io.EOF {
			if ctx.Err() == nil {
				f.setErr(errors.Wrap(err, "read log file"))
			}
			return
		}
		select {
		case <-time.After(f.pollInterval):
		case <-ctx.Done():
			return
		}
	}
}

func (f *FileReader) setErr(err error) {
	f.mu.Lock()
	if f.err == nil {
		f.err = err
	}
	f.mu.Unlock()
}

func (f *FileReader) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Search scans the whole file for lines containing substring with a record
// time inside the window.
func (f *FileReader) Search(ctx context.Context, substring string, since time.Duration) <-chan *Record {
	cutoff := time.Now().Add(-since)
	return f.scan(ctx, func(line []byte, rec *Record) bool {
		return strings.Contains(string(line), substring) && rec.At.After(cutoff)
	})
}

// ReplaySinceLastStart scans for the newest restart marker and emits every
// record logged at or after it.
func (f *FileReader) ReplaySinceLastStart(ctx context.Context) <-chan *Record {
	var markerAt time.Time
	for rec := range f.scan(ctx, func(_ []byte, rec *Record) bool {
		return rec.NS == restartMarkerNS
	}) {
		if rec.At.After(markerAt) {
			markerAt = rec.At
		}
	}
	if markerAt.IsZero() {
		out := make(chan *Record)
		close(out)
		return out
	}
	return f.scan(ctx, func(_ []byte, rec *Record) bool {
		return !rec.At.Before(markerAt)
	})
}

// scan opens a separate handle and streams every record the keep function
// accepts; malformed lines are skipped silently here since live ingestion
// already counts them.
func (f *FileReader) scan(ctx context.Context, keep func(line []byte, rec *Record) bool) <-chan *Record {
	out := make(chan *Record, 64)
	file, err := os.Open(f.path)
	if err != nil {
		logger.Warn("open log file for scan", "err", err)
		close(out)
		return out
	}
	go func() {
		defer close(out)
		defer file.Close()

		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 64*1024), maxLineSize)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			rec, derr := DecodeRecord(line)
			if derr != nil || !keep(line, rec) {
				continue
			}
			select {
			case out <- rec:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
