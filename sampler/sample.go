// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package sampler correlates block events by hash into sample groups and
// drains complete, plausible groups as flat block samples ready for
// submission.
package sampler

import "time"

// Sample is the flat block propagation record shipped to the collector.
// All deltas are signed milliseconds.
type Sample struct {
	BlockHash            string `json:"block_hash"`
	BlockNumber          uint64 `json:"block_number"`
	BlockSize            uint64 `json:"block_size"`
	Slot                 uint64 `json:"slot"`
	SlotTime             int64  `json:"slot_time"`
	HeaderRemoteEndpoint string `json:"header_remote_endpoint"`
	BlockRemoteEndpoint  string `json:"block_remote_endpoint"`
	HeaderDeltaMS        int64  `json:"header_delta_ms"`
	BlockRequestDeltaMS  int64  `json:"block_request_delta_ms"`
	BlockResponseDeltaMS int64  `json:"block_response_delta_ms"`
	BlockAdoptDeltaMS    int64  `json:"block_adopt_delta_ms"`
	LocalEndpoint        string `json:"local_endpoint"`
	NetworkMagic         uint32 `json:"network_magic"`
	ClientVersion        string `json:"client_version"`
}

const (
	maxHashLen   = 128
	maxBlockSize = 10_000_000
	minDeltaMS   = -6_000
	maxDeltaMS   = 600_000
)

// sane reports whether the sample passes the plausibility bounds. All
// bounds are exclusive.
func (s *Sample) sane() bool {
	if s.BlockNumber == 0 || s.Slot == 0 {
		return false
	}
	if len(s.BlockHash) == 0 || len(s.BlockHash) >= maxHashLen {
		return false
	}
	if s.BlockSize == 0 || s.BlockSize >= maxBlockSize {
		return false
	}
	for _, d := range []int64{s.HeaderDeltaMS, s.BlockRequestDeltaMS, s.BlockResponseDeltaMS, s.BlockAdoptDeltaMS} {
		if d <= minDeltaMS || d >= maxDeltaMS {
			return false
		}
	}
	return true
}

// deltaMS is the signed difference between two wall-clock timestamps,
// rounded to whole milliseconds.
func deltaMS(later, earlier time.Time) int64 {
	return later.Sub(earlier).Round(time.Millisecond).Milliseconds()
}
