// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package nodelogs

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/openblockperf/blockperf/metrics"
)

// maxLineSize bounds a single log record. Adoption records carry the full
// header list and can get large.
const maxLineSize = 10 * 1024 * 1024

// stopGrace is how long a log source subprocess gets between the polite
// stop signal and the forced kill.
const stopGrace = time.Second

// restartMarkerNS is the namespace that marks a node (re)start in the logs.
const restartMarkerNS = "Net.Server.Local.Started"

// Reader streams structured records from one node log source.
//
// Records is the live follow stream: the channel closes on EOF of the
// underlying source or on context cancellation, and Err reports any failure
// that ended it. Search and ReplaySinceLastStart are finite one-shot
// streams over historical data.
type Reader interface {
	// Open acquires the underlying source. The source is released on every
	// exit path via Close.
	Open(ctx context.Context) error
	// Close releases the source. Safe to call more than once.
	Close() error
	// Records returns the live stream of parsed records in source order.
	Records(ctx context.Context) <-chan *Record
	// Err returns the failure that terminated Records, or nil on clean EOF.
	Err() error
	// Search streams historical records whose raw line contains substring,
	// newest first, limited to the given window.
	Search(ctx context.Context, substring string, since time.Duration) <-chan *Record
	// ReplaySinceLastStart streams the records logged since the most recent
	// restart marker. Without a marker the stream is empty.
	ReplaySinceLastStart(ctx context.Context) <-chan *Record
}

var (
	metricMalformedLines = metrics.Counter("nodelogs_malformed_lines_count")
	metricRecordsRead    = metrics.Counter("nodelogs_records_read_count")
)

// pumpLines reads newline-delimited records from r and sends them to out
// until EOF, a read error or cancellation. Malformed lines are skipped with
// a counted warning. Returns the read error, if any.
func pumpLines(ctx context.Context, r io.Reader, out chan<- *Record) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		rec, err := DecodeRecord(line)
		if err != nil {
			metricMalformedLines.Add(1)
			logger.Warn("skipping malformed log line", "err", err)
			continue
		}
		metricRecordsRead.Add(1)
		select {
		case out <- rec:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return scanner.Err()
}
