// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package nodelogs

import (
	"net/netip"
	"time"
)

// Direction tells who initiated the connection a peer event refers to.
type Direction string

const (
	Inbound  Direction = "Inbound"
	Outbound Direction = "Outbound"
)

// PeerState is the node's view of one side of a peer connection.
type PeerState string

const (
	StateUnknown     PeerState = "Unknown"
	StateUnconnected PeerState = "Unconnected"
	StateCold        PeerState = "Cold"
	StateWarm        PeerState = "Warm"
	StateHot         PeerState = "Hot"
	StateCooling     PeerState = "Cooling"
)

// Event is one of the closed set of variants the classifier recognises.
type Event interface {
	// Timestamp is the log record time the event was derived from.
	Timestamp() time.Time
}

// BlockEvent is implemented by every variant that belongs to a block and
// therefore feeds the sample correlator.
type BlockEvent interface {
	Event
	BlockHash() string
}

// DownloadedHeader reports the first arrival of a block header from a peer.
type DownloadedHeader struct {
	At          time.Time
	Hash        string
	BlockNumber uint64
	Slot        uint64
	Connection  ConnectionID
}

func (e *DownloadedHeader) Timestamp() time.Time { return e.At }
func (e *DownloadedHeader) BlockHash() string    { return e.Hash }

// SendFetchRequest reports a block body being requested from a peer.
type SendFetchRequest struct {
	At         time.Time
	Hash       string
	Connection ConnectionID
}

func (e *SendFetchRequest) Timestamp() time.Time { return e.At }
func (e *SendFetchRequest) BlockHash() string    { return e.Hash }

// CompletedBlockFetch reports a block body having been fully received.
type CompletedBlockFetch struct {
	At         time.Time
	Hash       string
	Size       uint64
	Delay      float64
	Connection ConnectionID
}

func (e *CompletedBlockFetch) Timestamp() time.Time { return e.At }
func (e *CompletedBlockFetch) BlockHash() string    { return e.Hash }

// AddedToCurrentChain reports a block adopted as the new chain tip.
type AddedToCurrentChain struct {
	At   time.Time
	Hash string
}

func (e *AddedToCurrentChain) Timestamp() time.Time { return e.At }
func (e *AddedToCurrentChain) BlockHash() string    { return e.Hash }

// SwitchedToAFork reports a block adopted by switching to a fork.
type SwitchedToAFork struct {
	At   time.Time
	Hash string
}

func (e *SwitchedToAFork) Timestamp() time.Time { return e.At }
func (e *SwitchedToAFork) BlockHash() string    { return e.Hash }

// PeerStateChange reports one side of a peer connection moving to a new
// state. Transition is only set for status-change records, which carry the
// full from/to pair.
type PeerStateChange struct {
	At         time.Time
	Direction  Direction
	NewState   PeerState
	Transition string
	Local      netip.AddrPort
	Remote     netip.AddrPort
}

func (e *PeerStateChange) Timestamp() time.Time { return e.At }

// PeerCounters reports the inbound governor's aggregate peer counts.
type PeerCounters struct {
	At   time.Time
	Idle int64
	Cold int64
	Warm int64
	Hot  int64
}

func (e *PeerCounters) Timestamp() time.Time { return e.At }

// NodeRestarted marks the node's local server having (re)started.
type NodeRestarted struct {
	At time.Time
}

func (e *NodeRestarted) Timestamp() time.Time { return e.At }
