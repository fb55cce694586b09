// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openblockperf/blockperf/nodelogs"
	"github.com/openblockperf/blockperf/peers"
	"github.com/openblockperf/blockperf/sampler"
)

func TestSubmitBlockSample(t *testing.T) {
	var gotKey, gotClientID string
	var gotSample sampler.Sample

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "POST", r.Method)
		require.Equal(t, "/api/v0/submit/blocksample", r.URL.Path)
		gotKey = r.Header.Get("X-Api-Key")
		gotClientID = r.Header.Get("X-Client-Id")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotSample))
		w.Write([]byte(`{"id":"abc-123"}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/api/v0/", "key-1", "client-1")
	id, err := c.SubmitBlockSample(context.Background(), &sampler.Sample{
		BlockHash:   "aabb",
		BlockNumber: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, "abc-123", id)
	assert.Equal(t, "key-1", gotKey)
	assert.Equal(t, "client-1", gotClientID)
	assert.Equal(t, "aabb", gotSample.BlockHash)
}

func TestSubmitErrors(t *testing.T) {
	status := http.StatusBadGateway
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", status)
	}))
	defer srv.Close()

	c := New(srv.URL, "key-1", "")

	_, err := c.SubmitBlockSample(context.Background(), &sampler.Sample{})
	require.Error(t, err)
	assert.True(t, IsRetryable(err), "5xx must be retryable")
	assert.False(t, IsPermanent(err))

	status = http.StatusBadRequest
	_, err = c.SubmitBlockSample(context.Background(), &sampler.Sample{})
	require.Error(t, err)
	assert.True(t, IsPermanent(err), "4xx must be permanent")
	assert.False(t, IsRetryable(err))

	srv.Close()
	_, err = c.SubmitBlockSample(context.Background(), &sampler.Sample{})
	require.Error(t, err)
	var cerr *ConnectionError
	assert.ErrorAs(t, err, &cerr)
	assert.True(t, IsRetryable(err), "network errors must be retryable")
}

func TestSubmitPeerEvent(t *testing.T) {
	var got PeerEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/submit/peerevent", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	at := time.Now().UTC().Truncate(time.Second)
	n := peers.Notification{
		At:         at,
		Direction:  nodelogs.Outbound,
		ChangeType: "ColdToWarm",
		PrevState:  nodelogs.StateCold,
		Peer: peers.Peer{
			LocalEndpoint:  netip.MustParseAddrPort("10.0.0.1:3001"),
			RemoteEndpoint: netip.MustParseAddrPort("5.6.7.8:6000"),
			StateOutbound:  nodelogs.StateWarm,
			LastUpdated:    at,
		},
	}
	c := New(srv.URL, "key-1", "")
	require.NoError(t, c.SubmitPeerEvent(context.Background(), NewPeerEvent(n)))

	assert.Equal(t, "Outbound", got.Direction)
	assert.Equal(t, "ColdToWarm", got.ChangeType)
	assert.Equal(t, "10.0.0.1", got.LocalAddr)
	assert.Equal(t, uint16(3001), got.LocalPort)
	assert.Equal(t, "5.6.7.8", got.RemoteAddr)
	assert.Equal(t, uint16(6000), got.RemotePort)
	assert.Equal(t, "Cold", got.LastState)
	assert.True(t, at.Equal(got.LastSeen))
}

func TestRegistrationFlow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		switch r.URL.Path {
		case "/registration/challenge":
			require.Equal(t, "pool1abc", req["pool_id"])
			w.Write([]byte(`{"challenge":"sign-me"}`))
		case "/registration/submit":
			require.Equal(t, "pool1abc", req["pool_id"])
			require.Equal(t, "deadbeef", req["signature"])
			w.Write([]byte(`{"apikey":"issued-key"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "", "")
	challenge, err := c.RequestChallenge(context.Background(), "pool1abc")
	require.NoError(t, err)
	assert.Equal(t, "sign-me", challenge)

	key, err := c.SubmitRegistration(context.Background(), "pool1abc", "pubkey", "deadbeef")
	require.NoError(t, err)
	assert.Equal(t, "issued-key", key)
}

func TestAuthTokenHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key-1", "")
	require.NoError(t, c.SubmitPeerEvent(context.Background(), &PeerEvent{}))
	assert.Empty(t, gotAuth, "token flow stays inert by default")

	c.SetAuthToken("tok")
	require.NoError(t, c.SubmitPeerEvent(context.Background(), &PeerEvent{}))
	assert.Equal(t, "Bearer tok", gotAuth)
}
