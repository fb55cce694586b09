// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package health tracks the agent's ingestion liveness for the healthz
// endpoint.
package health

import (
	"sync"
	"time"
)

// defaultStaleAfter is how long the ingestion stream may stay silent before
// the agent reports unhealthy. Mainnet produces a block roughly every 20
// seconds, so minutes of silence mean the log source is gone.
const defaultStaleAfter = 5 * time.Minute

type Status struct {
	Healthy         bool       `json:"healthy"`
	Replaying       bool       `json:"replaying"`
	LastRecordAt    *time.Time `json:"lastRecordAt"`
	LastSampleAt    *time.Time `json:"lastSampleAt"`
	RecordsIngested uint64     `json:"recordsIngested"`
}

type Health struct {
	lock       sync.RWMutex
	staleAfter time.Duration

	lastRecord time.Time
	lastSample time.Time
	records    uint64
	replaying  bool
}

func New() *Health {
	return &Health{staleAfter: defaultStaleAfter}
}

// RecordIngested marks one record read from the log source.
func (h *Health) RecordIngested() {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.lastRecord = time.Now()
	h.records++
}

// SamplePublished marks one block sample accepted by the collector.
func (h *Health) SamplePublished() {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.lastSample = time.Now()
}

// SetReplaying flags the historical replay phase.
func (h *Health) SetReplaying(replaying bool) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.replaying = replaying
}

func (h *Health) Status() *Status {
	h.lock.RLock()
	defer h.lock.RUnlock()

	status := &Status{
		Replaying:       h.replaying,
		RecordsIngested: h.records,
	}
	if !h.lastRecord.IsZero() {
		t := h.lastRecord
		status.LastRecordAt = &t
	}
	if !h.lastSample.IsZero() {
		t := h.lastSample
		status.LastSampleAt = &t
	}
	status.Healthy = !h.lastRecord.IsZero() && time.Since(h.lastRecord) < h.staleAfter
	return status
}
