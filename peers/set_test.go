// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package peers

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openblockperf/blockperf/nodelogs"
	"github.com/openblockperf/blockperf/sockets"
)

var (
	local   = netip.MustParseAddrPort("10.0.0.1:3001")
	remote1 = netip.MustParseAddrPort("5.6.7.8:6000")
	remote2 = netip.MustParseAddrPort("9.9.9.9:6000")
	remote3 = netip.MustParseAddrPort("1.2.3.4:6000")
)

func change(at time.Time, dir nodelogs.Direction, state nodelogs.PeerState, remote netip.AddrPort) *nodelogs.PeerStateChange {
	return &nodelogs.PeerStateChange{
		At:        at,
		Direction: dir,
		NewState:  state,
		Local:     local,
		Remote:    remote,
	}
}

func TestStateTransitions(t *testing.T) {
	s := NewSet(false)
	t0 := time.Now()

	s.Apply(change(t0, nodelogs.Inbound, nodelogs.StateWarm, remote1))
	s.Apply(change(t0.Add(time.Second), nodelogs.Inbound, nodelogs.StateHot, remote1))
	s.Apply(change(t0.Add(2*time.Second), nodelogs.Outbound, nodelogs.StateCold, remote1))

	p, ok := s.Get(remote1)
	require.True(t, ok)
	assert.Equal(t, nodelogs.StateHot, p.StateInbound)
	assert.Equal(t, nodelogs.StateCold, p.StateOutbound)
	assert.Equal(t, t0.Add(2*time.Second), p.LastUpdated)
	assert.Equal(t, local, p.LocalEndpoint)
	assert.Equal(t, remote1, p.RemoteEndpoint)
}

func TestLastUpdatedNeverGoesBack(t *testing.T) {
	s := NewSet(false)
	t0 := time.Now()

	s.Apply(change(t0, nodelogs.Inbound, nodelogs.StateWarm, remote1))
	// out-of-order record with an earlier timestamp
	s.Apply(change(t0.Add(-time.Minute), nodelogs.Outbound, nodelogs.StateCold, remote1))

	p, _ := s.Get(remote1)
	assert.Equal(t, t0, p.LastUpdated)
	assert.Equal(t, nodelogs.StateCold, p.StateOutbound)
}

func TestReconcile(t *testing.T) {
	s := NewSet(false)
	s.Apply(change(time.Now(), nodelogs.Inbound, nodelogs.StateHot, remote1))
	s.Apply(change(time.Now(), nodelogs.Inbound, nodelogs.StateWarm, remote2))

	s.Reconcile([]sockets.Conn{
		{Local: local, Remote: remote1},
		{Local: local, Remote: remote3},
	})

	all := s.All()
	require.Len(t, all, 2)
	_, ok := s.Get(remote2)
	assert.False(t, ok, "peer without a socket must be dropped")

	p1, ok := s.Get(remote1)
	require.True(t, ok)
	assert.Equal(t, nodelogs.StateHot, p1.StateInbound, "surviving peer keeps its state")

	p3, ok := s.Get(remote3)
	require.True(t, ok)
	assert.Equal(t, nodelogs.StateUnknown, p3.StateInbound)
	assert.Equal(t, nodelogs.StateUnknown, p3.StateOutbound)
}

func TestUnknown(t *testing.T) {
	s := NewSet(false)
	s.Reconcile([]sockets.Conn{
		{Local: local, Remote: remote1},
		{Local: local, Remote: remote2},
	})
	s.Apply(change(time.Now(), nodelogs.Inbound, nodelogs.StateHot, remote1))

	unknown := s.Unknown()
	require.Len(t, unknown, 1)
	assert.Equal(t, remote2, unknown[0])
}

func TestRestartHandling(t *testing.T) {
	retain := NewSet(false)
	retain.Apply(change(time.Now(), nodelogs.Inbound, nodelogs.StateHot, remote1))
	retain.HandleRestart(&nodelogs.NodeRestarted{At: time.Now()})
	assert.Len(t, retain.All(), 1)

	clearing := NewSet(true)
	clearing.Apply(change(time.Now(), nodelogs.Inbound, nodelogs.StateHot, remote1))
	clearing.HandleRestart(&nodelogs.NodeRestarted{At: time.Now()})
	assert.Empty(t, clearing.All())
}

func TestStatistics(t *testing.T) {
	s := NewSet(false)
	s.Apply(change(time.Now(), nodelogs.Inbound, nodelogs.StateHot, remote1))
	s.Apply(change(time.Now(), nodelogs.Inbound, nodelogs.StateHot, remote2))
	s.Apply(change(time.Now(), nodelogs.Outbound, nodelogs.StateWarm, remote3))

	stats := s.Statistics()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Inbound[nodelogs.StateHot])
	assert.Equal(t, 1, stats.Inbound[nodelogs.StateUnknown])
	assert.Equal(t, 1, stats.Outbound[nodelogs.StateWarm])
	assert.Equal(t, 2, stats.Outbound[nodelogs.StateUnknown])
}

func TestNotifications(t *testing.T) {
	s := NewSet(false)
	defer s.Close()

	ch := make(chan Notification, 4)
	sub := s.SubscribeNotifications(ch)
	defer sub.Unsubscribe()

	at := time.Now()
	ev := change(at, nodelogs.Outbound, nodelogs.StateWarm, remote1)
	ev.Transition = "ColdToWarm"
	s.Apply(ev)

	select {
	case n := <-ch:
		assert.Equal(t, "ColdToWarm", n.ChangeType)
		assert.Equal(t, nodelogs.Outbound, n.Direction)
		assert.Equal(t, nodelogs.StateUnknown, n.PrevState)
		assert.Equal(t, nodelogs.StateWarm, n.Peer.StateOutbound)
		assert.Equal(t, remote1, n.Peer.RemoteEndpoint)
	case <-time.After(time.Second):
		t.Fatal("no notification received")
	}

	// governor events synthesize the change type from the states
	s.Apply(change(at, nodelogs.Inbound, nodelogs.StateHot, remote1))
	select {
	case n := <-ch:
		assert.Equal(t, "UnknownToHot", n.ChangeType)
	case <-time.After(time.Second):
		t.Fatal("no notification received")
	}
}
