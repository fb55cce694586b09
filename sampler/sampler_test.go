// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package sampler

import (
	"context"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openblockperf/blockperf/config"
	"github.com/openblockperf/blockperf/nodelogs"
)

var testNetwork = config.NetworkConfig{Magic: 2, GenesisStart: 1700000000}

const testSlot = 1000

// slotTime of testSlot under testNetwork
var t0 = time.Unix(1700000000+testSlot, 0).UTC().Add(50 * time.Millisecond)

var (
	peer1 = nodelogs.ConnectionID{
		Local:  netip.MustParseAddrPort("10.0.0.1:3001"),
		Remote: netip.MustParseAddrPort("5.6.7.8:6000"),
	}
	peer2 = nodelogs.ConnectionID{
		Local:  netip.MustParseAddrPort("10.0.0.1:3001"),
		Remote: netip.MustParseAddrPort("9.9.9.9:6000"),
	}
)

var testHash = strings.Repeat("aa", 32)

type stubSubmitter struct {
	samples []*Sample
	errs    []error
}

func (s *stubSubmitter) SubmitBlockSample(_ context.Context, sample *Sample) (string, error) {
	s.samples = append(s.samples, sample)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return "", err
	}
	return "sample-id-1", nil
}

type rejectedErr struct{}

func (rejectedErr) Error() string   { return "400 bad request" }
func (rejectedErr) Permanent() bool { return true }

func feedHappyPath(t *testing.T, s *Sampler, completedAt time.Time) {
	t.Helper()
	require.NoError(t, s.Apply(&nodelogs.DownloadedHeader{
		At: t0, Hash: testHash, BlockNumber: 100, Slot: testSlot, Connection: peer1,
	}))
	require.NoError(t, s.Apply(&nodelogs.SendFetchRequest{
		At: t0.Add(100 * time.Millisecond), Hash: testHash, Connection: peer1,
	}))
	require.NoError(t, s.Apply(&nodelogs.CompletedBlockFetch{
		At: completedAt, Hash: testHash, Size: 1999, Connection: peer1,
	}))
	require.NoError(t, s.Apply(&nodelogs.AddedToCurrentChain{
		At: completedAt.Add(50 * time.Millisecond), Hash: testHash,
	}))
}

func TestHappyPath(t *testing.T) {
	s := New(testNetwork, "0.0.0.0:3001", "1.0.0")
	feedHappyPath(t, s, t0.Add(300*time.Millisecond))
	require.Equal(t, 1, s.Len())

	sub := &stubSubmitter{}
	s.Drain(context.Background(), time.Now(), 0, sub)

	require.Len(t, sub.samples, 1)
	got := sub.samples[0]
	assert.Equal(t, testHash, got.BlockHash)
	assert.Equal(t, uint64(100), got.BlockNumber)
	assert.Equal(t, uint64(testSlot), got.Slot)
	assert.Equal(t, uint64(1999), got.BlockSize)
	assert.Equal(t, int64(50), got.HeaderDeltaMS)
	assert.Equal(t, int64(100), got.BlockRequestDeltaMS)
	assert.Equal(t, int64(200), got.BlockResponseDeltaMS)
	assert.Equal(t, int64(50), got.BlockAdoptDeltaMS)
	assert.Equal(t, "5.6.7.8:6000", got.HeaderRemoteEndpoint)
	assert.Equal(t, "5.6.7.8:6000", got.BlockRemoteEndpoint)
	assert.Equal(t, "0.0.0.0:3001", got.LocalEndpoint)
	assert.Equal(t, uint32(2), got.NetworkMagic)
	assert.Equal(t, "1.0.0", got.ClientVersion)
	assert.Equal(t, int64(1700000000+testSlot), got.SlotTime)

	// submitted groups are gone
	assert.Zero(t, s.Len())
}

func TestFetchRequestPeerMismatch(t *testing.T) {
	s := New(testNetwork, "0.0.0.0:3001", "1.0.0")
	require.NoError(t, s.Apply(&nodelogs.DownloadedHeader{
		At: t0, Hash: testHash, BlockNumber: 100, Slot: testSlot, Connection: peer1,
	}))
	require.NoError(t, s.Apply(&nodelogs.SendFetchRequest{
		At: t0.Add(100 * time.Millisecond), Hash: testHash, Connection: peer2,
	}))

	err := s.Apply(&nodelogs.CompletedBlockFetch{
		At: t0.Add(300 * time.Millisecond), Hash: testHash, Size: 1999, Connection: peer1,
	})
	var cerr *CorrelationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, testHash, cerr.Hash)
	assert.Zero(t, s.Len())
}

func TestInsaneDeltaEvicted(t *testing.T) {
	s := New(testNetwork, "0.0.0.0:3001", "1.0.0")
	// response delta 699900 ms, outside the bound
	feedHappyPath(t, s, t0.Add(700_000*time.Millisecond))

	sub := &stubSubmitter{}
	s.Drain(context.Background(), time.Now(), 0, sub)
	assert.Empty(t, sub.samples)
	assert.Zero(t, s.Len())
}

func TestIncompleteGroupNotDrained(t *testing.T) {
	s := New(testNetwork, "0.0.0.0:3001", "1.0.0")
	require.NoError(t, s.Apply(&nodelogs.DownloadedHeader{
		At: t0, Hash: testHash, BlockNumber: 100, Slot: testSlot, Connection: peer1,
	}))
	require.NoError(t, s.Apply(&nodelogs.SendFetchRequest{
		At: t0.Add(100 * time.Millisecond), Hash: testHash, Connection: peer1,
	}))
	require.NoError(t, s.Apply(&nodelogs.CompletedBlockFetch{
		At: t0.Add(300 * time.Millisecond), Hash: testHash, Size: 1999, Connection: peer1,
	}))
	// adoption never arrives

	sub := &stubSubmitter{}
	s.Drain(context.Background(), time.Now(), 0, sub)
	assert.Empty(t, sub.samples)
	assert.Equal(t, 1, s.Len())

	// and past the hard age ceiling it is evicted
	s.Drain(context.Background(), time.Now().Add(31*time.Minute), 0, sub)
	assert.Empty(t, sub.samples)
	assert.Zero(t, s.Len())
}

func TestYoungGroupNotDrained(t *testing.T) {
	s := New(testNetwork, "0.0.0.0:3001", "1.0.0")
	feedHappyPath(t, s, t0.Add(300*time.Millisecond))

	sub := &stubSubmitter{}
	s.Drain(context.Background(), time.Now(), time.Hour, sub)
	assert.Empty(t, sub.samples)
	assert.Equal(t, 1, s.Len())
}

func TestRetryOnTransientFailure(t *testing.T) {
	s := New(testNetwork, "0.0.0.0:3001", "1.0.0")
	feedHappyPath(t, s, t0.Add(300*time.Millisecond))

	sub := &stubSubmitter{errs: []error{errors.New("connection refused")}}
	s.Drain(context.Background(), time.Now(), 0, sub)
	require.Len(t, sub.samples, 1)
	assert.Equal(t, 1, s.Len(), "group must survive a transient failure")

	s.Drain(context.Background(), time.Now(), 0, sub)
	require.Len(t, sub.samples, 2)
	assert.Zero(t, s.Len())
}

func TestPermanentFailureEvicts(t *testing.T) {
	s := New(testNetwork, "0.0.0.0:3001", "1.0.0")
	feedHappyPath(t, s, t0.Add(300*time.Millisecond))

	sub := &stubSubmitter{errs: []error{rejectedErr{}}}
	s.Drain(context.Background(), time.Now(), 0, sub)
	require.Len(t, sub.samples, 1)
	assert.Zero(t, s.Len())

	s.Drain(context.Background(), time.Now(), 0, sub)
	assert.Len(t, sub.samples, 1, "no retry after a permanent failure")
}

func TestNoResurrectionAfterSubmit(t *testing.T) {
	s := New(testNetwork, "0.0.0.0:3001", "1.0.0")
	feedHappyPath(t, s, t0.Add(300*time.Millisecond))

	sub := &stubSubmitter{}
	s.Drain(context.Background(), time.Now(), 0, sub)
	require.Len(t, sub.samples, 1)

	// a late duplicate starts a fresh, incomplete group
	require.NoError(t, s.Apply(&nodelogs.AddedToCurrentChain{
		At: t0.Add(400 * time.Millisecond), Hash: testHash,
	}))
	assert.Equal(t, 1, s.Len())
	s.Drain(context.Background(), time.Now(), 0, sub)
	assert.Len(t, sub.samples, 1)
}

func TestReset(t *testing.T) {
	s := New(testNetwork, "0.0.0.0:3001", "1.0.0")
	feedHappyPath(t, s, t0.Add(300*time.Millisecond))
	require.Equal(t, 1, s.Len())
	s.Reset()
	assert.Zero(t, s.Len())

	sub := &stubSubmitter{}
	s.Drain(context.Background(), time.Now(), 0, sub)
	assert.Empty(t, sub.samples)
}

func TestSanityBounds(t *testing.T) {
	base := func() *Sample {
		return &Sample{
			BlockHash:            testHash,
			BlockNumber:          100,
			BlockSize:            1999,
			Slot:                 testSlot,
			HeaderDeltaMS:        50,
			BlockRequestDeltaMS:  100,
			BlockResponseDeltaMS: 200,
			BlockAdoptDeltaMS:    50,
		}
	}
	assert.True(t, base().sane())

	tests := []struct {
		name   string
		mutate func(*Sample)
		sane   bool
	}{
		{"zero block number", func(s *Sample) { s.BlockNumber = 0 }, false},
		{"zero slot", func(s *Sample) { s.Slot = 0 }, false},
		{"empty hash", func(s *Sample) { s.BlockHash = "" }, false},
		{"overlong hash", func(s *Sample) { s.BlockHash = strings.Repeat("a", 128) }, false},
		{"hash below limit", func(s *Sample) { s.BlockHash = strings.Repeat("a", 127) }, true},
		{"zero size", func(s *Sample) { s.BlockSize = 0 }, false},
		{"size below limit", func(s *Sample) { s.BlockSize = 9_999_999 }, true},
		{"size at limit", func(s *Sample) { s.BlockSize = 10_000_000 }, false},
		{"delta at lower bound", func(s *Sample) { s.HeaderDeltaMS = -6000 }, false},
		{"delta above lower bound", func(s *Sample) { s.HeaderDeltaMS = -5999 }, true},
		{"delta below upper bound", func(s *Sample) { s.BlockResponseDeltaMS = 599_999 }, true},
		{"delta at upper bound", func(s *Sample) { s.BlockResponseDeltaMS = 600_000 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base()
			tt.mutate(s)
			assert.Equal(t, tt.sane, s.sane())
		})
	}
}
