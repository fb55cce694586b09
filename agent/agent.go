// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package agent wires the log reader, the sample correlator, the peer
// tracker and the collector client together and supervises their loops.
package agent

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/beevik/ntp"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/openblockperf/blockperf/apiclient"
	"github.com/openblockperf/blockperf/config"
	"github.com/openblockperf/blockperf/health"
	"github.com/openblockperf/blockperf/log"
	"github.com/openblockperf/blockperf/metrics"
	"github.com/openblockperf/blockperf/nodelogs"
	"github.com/openblockperf/blockperf/peers"
	"github.com/openblockperf/blockperf/sampler"
	"github.com/openblockperf/blockperf/sockets"
)

var logger = log.WithContext("pkg", "agent")

var (
	metricParseErrors     = metrics.Counter("parse_errors_count")
	metricReplayedRecords = metrics.Counter("replayed_records_count")
	metricBackfillHits    = metrics.Counter("backfill_hits_count")
)

const (
	reconcileInterval = 30 * time.Second
	statsInterval     = 30 * time.Second

	backfillInterval = 5 * time.Minute
	backfillStep     = 12 * time.Hour
	backfillMax      = 2000 * time.Hour
)

// Agent runs the telemetry pipeline for one node.
type Agent struct {
	cfg     *config.Config
	reader  nodelogs.Reader
	client  *apiclient.Client
	health  *health.Health
	sampler *sampler.Sampler
	peers   *peers.Set

	replaying atomic.Bool

	// per-peer search window for the unknown-peer backfill, grown on every
	// fruitless pass
	backfillWindows map[string]time.Duration
}

// New assembles an agent from its collaborators.
func New(cfg *config.Config, reader nodelogs.Reader, client *apiclient.Client, h *health.Health, version string) *Agent {
	localEndpoint := fmt.Sprintf("%s:%d", cfg.LocalAddr, cfg.LocalPort)
	return &Agent{
		cfg:             cfg,
		reader:          reader,
		client:          client,
		health:          h,
		sampler:         sampler.New(cfg.NetworkConfig, localEndpoint, version),
		peers:           peers.NewSet(cfg.ClearPeersOnRestart),
		backfillWindows: make(map[string]time.Duration),
	}
}

// Peers exposes the tracker for the admin surface.
func (a *Agent) Peers() *peers.Set { return a.peers }

// Run executes all activities until ctx is cancelled or one of them
// fails. Any failure is fatal: the remaining activities are cancelled and
// the first error is returned.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.reader.Open(ctx); err != nil {
		return errors.Wrap(err, "open log source")
	}
	defer a.reader.Close()
	defer a.peers.Close()

	go checkClockOffset()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return a.ingestLoop(ctx) })
	group.Go(func() error { return a.drainLoop(ctx) })
	group.Go(func() error { return a.reconcileLoop(ctx) })
	group.Go(func() error { return a.statsLoop(ctx) })
	group.Go(func() error { return a.peerEventLoop(ctx) })
	group.Go(func() error { return a.backfillLoop(ctx) })

	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ingestLoop replays the records since the node's last restart to warm the
// peer map, then follows the live stream. A terminated live stream is
// fatal; the agent cannot run blind.
func (a *Agent) ingestLoop(ctx context.Context) error {
	a.replaying.Store(true)
	a.health.SetReplaying(true)
	replayed := 0
	for rec := range a.reader.ReplaySinceLastStart(ctx) {
		a.route(rec)
		replayed++
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	// pre-startup block data must not be submitted; only the peer state
	// learned from the replay is kept
	a.sampler.Reset()
	a.replaying.Store(false)
	a.health.SetReplaying(false)
	metricReplayedRecords.Add(int64(replayed))
	logger.Info("historical replay finished, following live stream", "replayed", replayed)

	for rec := range a.reader.Records(ctx) {
		a.route(rec)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := a.reader.Err(); err != nil {
		return errors.Wrap(err, "log stream failed")
	}
	return errors.New("log stream ended")
}

// route classifies one record and dispatches the event. Per-record parse
// failures are counted, never fatal.
func (a *Agent) route(rec *nodelogs.Record) {
	a.health.RecordIngested()

	ev, err := nodelogs.Parse(rec)
	if err != nil {
		metricParseErrors.Add(1)
		logger.Debug("dropping unparseable record", "ns", rec.NS, "err", err)
		return
	}
	if ev == nil {
		return
	}
	switch e := ev.(type) {
	case *nodelogs.PeerStateChange:
		a.peers.Apply(e)
	case *nodelogs.PeerCounters:
		a.peers.HandleCounters(e)
	case *nodelogs.NodeRestarted:
		a.peers.HandleRestart(e)
	case nodelogs.BlockEvent:
		if err := a.sampler.Apply(e); err != nil {
			logger.Warn("block event correlation failed", "err", err)
		}
	}
}

// drainLoop periodically sweeps the correlator. Suspended during the
// historical replay so no pre-startup samples leave the host.
func (a *Agent) drainLoop(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.CheckInterval)
	defer ticker.Stop()

	submitter := &trackingSubmitter{client: a.client, health: a.health}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if a.replaying.Load() {
				continue
			}
			a.sampler.Drain(ctx, time.Now(), a.cfg.MinAge, submitter)
		}
	}
}

// trackingSubmitter feeds successful submits into the health tracker.
type trackingSubmitter struct {
	client *apiclient.Client
	health *health.Health
}

func (s *trackingSubmitter) SubmitBlockSample(ctx context.Context, sample *sampler.Sample) (string, error) {
	id, err := s.client.SubmitBlockSample(ctx, sample)
	if err == nil {
		s.health.SamplePublished()
	}
	return id, err
}

// reconcileLoop aligns the peer map with the OS socket table.
func (a *Agent) reconcileLoop(ctx context.Context) error {
	ticker := time.NewTicker(reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			conns, err := sockets.Established(ctx, uint16(a.cfg.LocalPort))
			if err != nil {
				logger.Warn("socket enumeration failed", "err", err)
				continue
			}
			a.peers.Reconcile(conns)
		}
	}
}

// statsLoop periodically emits a one-line operational summary.
func (a *Agent) statsLoop(ctx context.Context) error {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			stats := a.peers.Statistics()
			logger.Info("agent statistics",
				"peers", stats.Total,
				"inbound_hot", stats.Inbound[nodelogs.StateHot],
				"inbound_warm", stats.Inbound[nodelogs.StateWarm],
				"outbound_hot", stats.Outbound[nodelogs.StateHot],
				"outbound_warm", stats.Outbound[nodelogs.StateWarm],
				"groups_inflight", a.sampler.Len(),
			)
		}
	}
}

// peerEventLoop ships every applied peer state change to the collector.
// Failures are logged and dropped; peer events are fire-and-forget.
func (a *Agent) peerEventLoop(ctx context.Context) error {
	ch := make(chan peers.Notification, 256)
	sub := a.peers.SubscribeNotifications(ch)
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-ch:
			if a.replaying.Load() {
				continue
			}
			if err := a.client.SubmitPeerEvent(ctx, apiclient.NewPeerEvent(n)); err != nil {
				logger.Warn("peer event submit failed", "remote", n.Peer.RemoteEndpoint, "err", err)
			}
		}
	}
}

// backfillLoop resolves peers that never produced a state event by
// searching the log history for their endpoint. The search window grows on
// every pass so long-idle connections are eventually found or given up on.
func (a *Agent) backfillLoop(ctx context.Context) error {
	ticker := time.NewTicker(backfillInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if a.replaying.Load() {
				continue
			}
			for _, remote := range a.peers.Unknown() {
				a.backfillPeer(ctx, remote.String())
				if ctx.Err() != nil {
					return ctx.Err()
				}
			}
		}
	}
}

// backfillPeer searches for the first historical record mentioning the
// peer's full endpoint and feeds it back into ingestion. The endpoint
// includes the port, so two peers behind one address cannot shadow each
// other.
func (a *Agent) backfillPeer(ctx context.Context, endpoint string) {
	window := a.backfillWindows[endpoint]
	if window == 0 {
		window = backfillStep
	}

	searchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	for rec := range a.reader.Search(searchCtx, endpoint, window) {
		if !nodelogs.Relevant(rec.NS) {
			continue
		}
		metricBackfillHits.Add(1)
		logger.Debug("backfilled peer from log history", "endpoint", endpoint, "ns", rec.NS)
		a.route(rec)
		delete(a.backfillWindows, endpoint)
		return
	}
	if window < backfillMax {
		window += backfillStep
		if window > backfillMax {
			window = backfillMax
		}
	}
	a.backfillWindows[endpoint] = window
}

// checkClockOffset asks an NTP pool for the host's clock offset once at
// startup. The propagation deltas are wall-clock differences against slot
// time; a skewed clock silently biases every sample.
func checkClockOffset() {
	resp, err := ntp.Query("pool.ntp.org")
	if err != nil {
		logger.Debug("failed to access NTP", "err", err)
		return
	}
	offset := resp.ClockOffset
	if offset < 0 {
		offset = -offset
	}
	if offset > 500*time.Millisecond {
		logger.Warn("host clock offset detected, propagation deltas will be biased",
			"offset", resp.ClockOffset)
	}
}
