// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package peers

import (
	"net/netip"
	"sync"

	"github.com/ethereum/go-ethereum/event"

	"github.com/openblockperf/blockperf/nodelogs"
	"github.com/openblockperf/blockperf/sockets"
)

// Set is the peer-state tracker. All map access is serialized by one
// mutex; notification delivery happens through the feed, never under it.
type Set struct {
	clearOnRestart bool

	mu    sync.Mutex
	peers map[netip.AddrPort]*Peer

	feed  event.Feed
	scope event.SubscriptionScope
}

// NewSet creates an empty tracker. With clearOnRestart the whole map is
// dropped when the node logs a restart; otherwise entries are retained and
// left to socket reconciliation.
func NewSet(clearOnRestart bool) *Set {
	return &Set{
		clearOnRestart: clearOnRestart,
		peers:          make(map[netip.AddrPort]*Peer),
	}
}

// SubscribeNotifications delivers every applied state change to ch until
// the subscription is closed.
func (s *Set) SubscribeNotifications(ch chan<- Notification) event.Subscription {
	return s.scope.Track(s.feed.Subscribe(ch))
}

// Close terminates all notification subscriptions.
func (s *Set) Close() {
	s.scope.Close()
}

// Apply upserts the peer for a state change event and flips the state of
// the event's direction. LastUpdated never goes backwards.
func (s *Set) Apply(ev *nodelogs.PeerStateChange) {
	s.mu.Lock()

	p, ok := s.peers[ev.Remote]
	if !ok {
		p = &Peer{
			LocalEndpoint:  ev.Local,
			RemoteEndpoint: ev.Remote,
			StateInbound:   nodelogs.StateUnknown,
			StateOutbound:  nodelogs.StateUnknown,
			LastUpdated:    ev.At,
		}
		s.peers[ev.Remote] = p
	}
	var prev nodelogs.PeerState
	if ev.Direction == nodelogs.Inbound {
		prev = p.StateInbound
		p.StateInbound = ev.NewState
	} else {
		prev = p.StateOutbound
		p.StateOutbound = ev.NewState
	}
	if ev.At.After(p.LastUpdated) {
		p.LastUpdated = ev.At
	}
	snapshot := *p
	metricPeersTotal.Set(int64(len(s.peers)))
	s.mu.Unlock()

	changeType := ev.Transition
	if changeType == "" {
		changeType = string(prev) + "To" + string(ev.NewState)
	}
	s.feed.Send(Notification{
		At:         ev.At,
		Direction:  ev.Direction,
		ChangeType: changeType,
		Peer:       snapshot,
		PrevState:  prev,
	})
}

// HandleCounters surfaces the node's own aggregate peer counts as gauges.
// The counts are not stored on the peer map.
func (s *Set) HandleCounters(ev *nodelogs.PeerCounters) {
	metricPeerCounters.SetWithLabel(ev.Idle, map[string]string{"state": "idle"})
	metricPeerCounters.SetWithLabel(ev.Cold, map[string]string{"state": "cold"})
	metricPeerCounters.SetWithLabel(ev.Warm, map[string]string{"state": "warm"})
	metricPeerCounters.SetWithLabel(ev.Hot, map[string]string{"state": "hot"})
}

// HandleRestart reacts to the node's restart marker.
func (s *Set) HandleRestart(ev *nodelogs.NodeRestarted) {
	if !s.clearOnRestart {
		logger.Info("node restarted, retaining peer map", "at", ev.At)
		return
	}
	s.mu.Lock()
	n := len(s.peers)
	s.peers = make(map[netip.AddrPort]*Peer)
	metricPeersTotal.Set(0)
	s.mu.Unlock()
	logger.Info("node restarted, cleared peer map", "at", ev.At, "dropped", n)
}

// Reconcile aligns the peer map with the OS view of established
// connections: sockets without a peer entry are inserted with unknown
// states, entries without a socket are dropped.
func (s *Set) Reconcile(conns []sockets.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[netip.AddrPort]struct{}, len(conns))
	added, dropped := 0, 0
	for _, c := range conns {
		seen[c.Remote] = struct{}{}
		if _, ok := s.peers[c.Remote]; ok {
			continue
		}
		s.peers[c.Remote] = &Peer{
			LocalEndpoint:  c.Local,
			RemoteEndpoint: c.Remote,
			StateInbound:   nodelogs.StateUnknown,
			StateOutbound:  nodelogs.StateUnknown,
		}
		added++
	}
	for remote := range s.peers {
		if _, ok := seen[remote]; !ok {
			delete(s.peers, remote)
			dropped++
		}
	}
	if added > 0 || dropped > 0 {
		metricPeersDropped.Add(int64(dropped))
		logger.Debug("reconciled peer map with sockets",
			"sockets", len(conns), "added", added, "dropped", dropped)
	}
	metricPeersTotal.Set(int64(len(s.peers)))
}

// Get returns a copy of the peer at remote.
func (s *Set) Get(remote netip.AddrPort) (Peer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peers[remote]
	if !ok {
		return Peer{}, false
	}
	return *p, true
}

// All returns a copy of every tracked peer.
func (s *Set) All() []Peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Peer, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, *p)
	}
	return out
}

// Unknown returns the remote endpoints whose both states are still
// unknown; these are the backfill candidates.
func (s *Set) Unknown() []netip.AddrPort {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []netip.AddrPort
	for remote, p := range s.peers {
		if p.StateInbound == nodelogs.StateUnknown && p.StateOutbound == nodelogs.StateUnknown {
			out = append(out, remote)
		}
	}
	return out
}

// Statistics snapshots per-direction state counts and refreshes the state
// gauges.
func (s *Set) Statistics() Stats {
	s.mu.Lock()
	stats := Stats{
		Total:    len(s.peers),
		Inbound:  make(map[nodelogs.PeerState]int),
		Outbound: make(map[nodelogs.PeerState]int),
	}
	for _, p := range s.peers {
		stats.Inbound[p.StateInbound]++
		stats.Outbound[p.StateOutbound]++
	}
	s.mu.Unlock()

	for state, n := range stats.Inbound {
		metricPeerStates.SetWithLabel(int64(n), map[string]string{"direction": "inbound", "state": string(state)})
	}
	for state, n := range stats.Outbound {
		metricPeerStates.SetWithLabel(int64(n), map[string]string{"direction": "outbound", "state": string(state)})
	}
	return stats
}
