// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package peers tracks the node's view of its peer connections. One entry
// per remote endpoint, with separate inbound and outbound states, kept in
// sync with both the log event stream and the OS socket table.
package peers

import (
	"net/netip"
	"time"

	"github.com/openblockperf/blockperf/log"
	"github.com/openblockperf/blockperf/metrics"
	"github.com/openblockperf/blockperf/nodelogs"
)

var logger = log.WithContext("pkg", "peers")

var (
	metricPeersTotal   = metrics.Gauge("peers_total")
	metricPeerStates   = metrics.GaugeVec("peer_states", []string{"direction", "state"})
	metricPeerCounters = metrics.GaugeVec("node_peer_counters", []string{"state"})
	metricPeersDropped = metrics.Counter("peers_dropped_count")
)

// Peer is the tracked record of one remote endpoint. The two states are
// mutated independently: inbound events touch only StateInbound, outbound
// events only StateOutbound.
type Peer struct {
	LocalEndpoint  netip.AddrPort
	RemoteEndpoint netip.AddrPort
	StateInbound   nodelogs.PeerState
	StateOutbound  nodelogs.PeerState
	LastUpdated    time.Time
}

// Notification describes one applied peer state change, published to
// subscribers for submission to the collector.
type Notification struct {
	At         time.Time
	Direction  nodelogs.Direction
	ChangeType string
	Peer       Peer
	PrevState  nodelogs.PeerState
}

// Stats is a consistent snapshot of per-state peer counts.
type Stats struct {
	Total    int
	Inbound  map[nodelogs.PeerState]int
	Outbound map[nodelogs.PeerState]int
}
