// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package nodelogs reads the cardano node's structured log stream and turns
// the relevant records into typed events. It owns the log source backends
// (journal follow, file tail), the namespace registry and the per-namespace
// payload parsers.
package nodelogs

import (
	"encoding/json"
	"time"

	"github.com/openblockperf/blockperf/log"
)

var logger = log.WithContext("pkg", "nodelogs")

// Record is a single structured log line as emitted by the node tracer.
// Data is kept raw; the per-namespace parsers unmarshal it into their own
// payload shapes.
type Record struct {
	At   time.Time       `json:"at"`
	NS   string          `json:"ns"`
	Data json.RawMessage `json:"data"`
	Host string          `json:"host"`
}

// DecodeRecord parses one log line. Lines that are not valid JSON or miss
// the mandatory fields fail with an error; callers skip and count them.
func DecodeRecord(line []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(line, &r); err != nil {
		return nil, &ParseError{Reason: "invalid json", Cause: err}
	}
	if r.NS == "" {
		return nil, &ParseError{Reason: "missing ns"}
	}
	if r.At.IsZero() {
		return nil, &ParseError{NS: r.NS, Reason: "missing timestamp"}
	}
	return &r, nil
}

// ParseError reports a record that could not be converted into its event
// variant. It is never fatal; the record is dropped and counted.
type ParseError struct {
	NS     string
	Reason string
	Cause  error
}

func (e *ParseError) Error() string {
	msg := "parse " + e.NS + ": " + e.Reason
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Cause }
