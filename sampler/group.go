// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package sampler

import (
	"time"

	"github.com/openblockperf/blockperf/nodelogs"
)

// group accumulates the events of one block hash until it is complete
// enough to become a sample.
type group struct {
	hash string

	header    *nodelogs.DownloadedHeader
	request   *nodelogs.SendFetchRequest
	completed *nodelogs.CompletedBlockFetch
	adoptedAt time.Time

	blockNumber uint64
	slot        uint64
	blockSize   uint64

	createdAt   time.Time
	lastUpdated time.Time

	// events is the arrival-ordered audit log; the fetch request matching
	// the completed fetch's peer is resolved from it.
	events []nodelogs.BlockEvent
}

func newGroup(hash string, now time.Time) *group {
	return &group{hash: hash, createdAt: now, lastUpdated: now}
}

// complete reports whether all four slots are filled.
func (g *group) complete() bool {
	return g.header != nil && g.request != nil && g.completed != nil && !g.adoptedAt.IsZero()
}

// apply fills the variant's slot. Slots only take the first event of their
// kind; later duplicates stay in the audit log.
func (g *group) apply(ev nodelogs.BlockEvent, now time.Time) error {
	g.events = append(g.events, ev)
	g.lastUpdated = now

	switch e := ev.(type) {
	case *nodelogs.DownloadedHeader:
		if g.header == nil {
			g.header = e
		}
		if g.blockNumber == 0 {
			g.blockNumber = e.BlockNumber
		}
		if g.slot == 0 {
			g.slot = e.Slot
		}
	case *nodelogs.SendFetchRequest:
		// buffered only; resolved when the fetch completes
	case *nodelogs.CompletedBlockFetch:
		if g.completed == nil {
			g.completed = e
		}
		if g.blockSize == 0 {
			g.blockSize = e.Size
		}
		if g.request == nil {
			req := g.findRequest(g.completed.Connection.Remote.String())
			if req == nil {
				return &CorrelationError{Hash: g.hash, Peer: g.completed.Connection.Remote.String()}
			}
			g.request = req
		}
	case *nodelogs.AddedToCurrentChain:
		if g.adoptedAt.IsZero() {
			g.adoptedAt = e.At
		}
	case *nodelogs.SwitchedToAFork:
		if g.adoptedAt.IsZero() {
			g.adoptedAt = e.At
		}
	}
	return nil
}

// findRequest scans the audit log for the fetch request sent to the peer
// that delivered the block.
func (g *group) findRequest(remote string) *nodelogs.SendFetchRequest {
	for _, ev := range g.events {
		if req, ok := ev.(*nodelogs.SendFetchRequest); ok {
			if req.Connection.Remote.String() == remote {
				return req
			}
		}
	}
	return nil
}

// sample builds the flat wire record. Only valid on a complete group.
func (g *group) sample(slotTime time.Time, localEndpoint string, magic uint32, version string) *Sample {
	return &Sample{
		BlockHash:            g.hash,
		BlockNumber:          g.blockNumber,
		BlockSize:            g.blockSize,
		Slot:                 g.slot,
		SlotTime:             slotTime.Unix(),
		HeaderRemoteEndpoint: g.header.Connection.Remote.String(),
		BlockRemoteEndpoint:  g.completed.Connection.Remote.String(),
		HeaderDeltaMS:        deltaMS(g.header.At, slotTime),
		BlockRequestDeltaMS:  deltaMS(g.request.At, g.header.At),
		BlockResponseDeltaMS: deltaMS(g.completed.At, g.request.At),
		BlockAdoptDeltaMS:    deltaMS(g.adoptedAt, g.completed.At),
		LocalEndpoint:        localEndpoint,
		NetworkMagic:         magic,
		ClientVersion:        version,
	}
}
