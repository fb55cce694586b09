// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package sampler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/openblockperf/blockperf/config"
	"github.com/openblockperf/blockperf/log"
	"github.com/openblockperf/blockperf/metrics"
	"github.com/openblockperf/blockperf/nodelogs"
)

var logger = log.WithContext("pkg", "sampler")

var (
	metricSamplesSubmitted = metrics.Counter("samples_submitted_count")
	metricGroupsEvicted    = metrics.CounterVec("groups_evicted_count", []string{"reason"})
	metricGroupsInflight   = metrics.Gauge("groups_inflight")
)

// maxGroupAge is the hard ceiling after which an incomplete group is
// evicted to bound memory when an event class is persistently lost.
const maxGroupAge = 30 * time.Minute

// CorrelationError reports a completed block fetch with no matching fetch
// request in its group. It indicates upstream record loss.
type CorrelationError struct {
	Hash string
	Peer string
}

func (e *CorrelationError) Error() string {
	return fmt.Sprintf("block %s: completed fetch from %s without a matching request", e.Hash, e.Peer)
}

// permanentErr is implemented by submit errors that will not succeed on
// retry; such failures evict the group.
type permanentErr interface {
	Permanent() bool
}

func isPermanent(err error) bool {
	var pe permanentErr
	return errors.As(err, &pe) && pe.Permanent()
}

// Submitter ships one ready sample and returns the collector-assigned id.
type Submitter interface {
	SubmitBlockSample(ctx context.Context, sample *Sample) (id string, err error)
}

// Sampler is the block-sample correlator. All map access is serialized by
// one mutex; the drain loop never holds it across a network submit.
type Sampler struct {
	nc            config.NetworkConfig
	localEndpoint string
	version       string

	mu     sync.Mutex
	groups map[string]*group
}

// New creates an empty correlator.
func New(nc config.NetworkConfig, localEndpoint, version string) *Sampler {
	return &Sampler{
		nc:            nc,
		localEndpoint: localEndpoint,
		version:       version,
		groups:        make(map[string]*group),
	}
}

// Apply routes one block event into its group, creating the group on first
// sight of the hash. A correlation failure evicts the group and is returned
// for counting; it is not fatal.
func (s *Sampler) Apply(ev nodelogs.BlockEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := ev.BlockHash()
	g, ok := s.groups[hash]
	if !ok {
		g = newGroup(hash, time.Now())
		s.groups[hash] = g
	}
	if err := g.apply(ev, time.Now()); err != nil {
		delete(s.groups, hash)
		metricGroupsEvicted.AddWithLabel(1, map[string]string{"reason": "correlation"})
		metricGroupsInflight.Set(int64(len(s.groups)))
		return err
	}
	metricGroupsInflight.Set(int64(len(s.groups)))
	return nil
}

// Len returns the number of groups in flight.
func (s *Sampler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.groups)
}

// Reset drops every group. Used when switching from the historical replay
// phase to the live phase so pre-startup data is never submitted.
func (s *Sampler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups = make(map[string]*group)
	metricGroupsInflight.Set(0)
}

// Drain sweeps the group map once: evicts stale incomplete groups, evicts
// implausible complete ones, and submits the rest. A group survives a
// retryable submit failure and is retried on the next sweep.
func (s *Sampler) Drain(ctx context.Context, now time.Time, minAge time.Duration, submitter Submitter) {
	ready := s.collect(now, minAge)

	for _, r := range ready {
		id, err := submitter.SubmitBlockSample(ctx, r.sample)
		if err != nil {
			if isPermanent(err) {
				logger.Warn("sample rejected by collector", "hash", r.hash, "err", err)
				s.evict(r.hash, "rejected")
			} else {
				logger.Warn("sample submit failed, will retry", "hash", r.hash, "err", err)
			}
			continue
		}
		logger.Info("block sample published", "hash", r.hash,
			"block", r.sample.BlockNumber, "id", id)
		metricSamplesSubmitted.Add(1)
		s.evict(r.hash, "")
	}
}

type readySample struct {
	hash   string
	sample *Sample
}

// collect picks the submittable groups under the lock and handles the two
// eviction paths that need no network round trip.
func (s *Sampler) collect(now time.Time, minAge time.Duration) []readySample {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ready []readySample
	for hash, g := range s.groups {
		if !g.complete() {
			if now.Sub(g.createdAt) > maxGroupAge {
				logger.Warn("evicting stale incomplete group", "hash", hash,
					"age", now.Sub(g.createdAt), "events", len(g.events))
				delete(s.groups, hash)
				metricGroupsEvicted.AddWithLabel(1, map[string]string{"reason": "stale"})
			}
			continue
		}
		if now.Sub(g.createdAt) <= minAge {
			continue
		}
		sample := g.sample(s.nc.SlotTime(g.slot), s.localEndpoint, s.nc.Magic, s.version)
		if !sample.sane() {
			logger.Warn("evicting implausible sample", "hash", hash,
				"block", sample.BlockNumber, "size", sample.BlockSize,
				"header_delta_ms", sample.HeaderDeltaMS,
				"response_delta_ms", sample.BlockResponseDeltaMS)
			delete(s.groups, hash)
			metricGroupsEvicted.AddWithLabel(1, map[string]string{"reason": "insane"})
			continue
		}
		ready = append(ready, readySample{hash: hash, sample: sample})
	}
	metricGroupsInflight.Set(int64(len(s.groups)))
	return ready
}

func (s *Sampler) evict(hash, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.groups, hash)
	if reason != "" {
		metricGroupsEvicted.AddWithLabel(1, map[string]string{"reason": reason})
	}
	metricGroupsInflight.Set(int64(len(s.groups)))
}
