// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openblockperf/blockperf/health"
	"github.com/openblockperf/blockperf/log"
	"github.com/openblockperf/blockperf/nodelogs"
	"github.com/openblockperf/blockperf/peers"
)

func newTestHandler(t *testing.T) (http.Handler, *slog.LevelVar, *peers.Set, *health.Health) {
	t.Helper()
	lvl := new(slog.LevelVar)
	set := peers.NewSet(false)
	h := health.New()
	return HTTPHandler(lvl, set, h), lvl, set, h
}

func TestLogLevelEndpoint(t *testing.T) {
	handler, lvl, _, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/admin/loglevel", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var res logLevelResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, "INFO", res.CurrentLevel)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/admin/loglevel",
		strings.NewReader(`{"level":"debug"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, log.LevelDebug, lvl.Level())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/admin/loglevel",
		strings.NewReader(`{"level":"shouty"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, log.LevelDebug, lvl.Level(), "level unchanged on bad input")
}

func TestPeersEndpoint(t *testing.T) {
	handler, _, set, _ := newTestHandler(t)
	set.Apply(&nodelogs.PeerStateChange{
		At:        time.Now(),
		Direction: nodelogs.Inbound,
		NewState:  nodelogs.StateHot,
		Local:     netip.MustParseAddrPort("10.0.0.1:3001"),
		Remote:    netip.MustParseAddrPort("5.6.7.8:6000"),
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/admin/peers", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []peerEntry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "5.6.7.8:6000", entries[0].Remote)
	assert.Equal(t, "Hot", entries[0].StateInbound)
	assert.Equal(t, "Unknown", entries[0].StateOutbound)
}

func TestHealthzEndpoint(t *testing.T) {
	handler, _, _, h := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h.RecordIngested()
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var status health.Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.True(t, status.Healthy)
	assert.Equal(t, uint64(1), status.RecordsIngested)
}

func TestStartServer(t *testing.T) {
	lvl := new(slog.LevelVar)
	url, stop, err := StartServer("127.0.0.1:0", lvl, peers.NewSet(false), health.New())
	require.NoError(t, err)
	defer stop()

	resp, err := http.Get(url + "/admin/loglevel")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
