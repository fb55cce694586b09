// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/openblockperf/blockperf/health"
	"github.com/openblockperf/blockperf/log"
	"github.com/openblockperf/blockperf/peers"
)

type logLevelRequest struct {
	Level string `json:"level"`
}

type logLevelResponse struct {
	CurrentLevel string `json:"currentLevel"`
}

type errorResponse struct {
	ErrorCode    int    `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func writeError(w http.ResponseWriter, errCode int, errMsg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errCode)
	json.NewEncoder(w).Encode(errorResponse{
		ErrorCode:    errCode,
		ErrorMessage: errMsg,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode response")
	}
}

func logLevelHandler(logLevel *slog.LevelVar) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, logLevelResponse{CurrentLevel: log.LevelString(logLevel.Level())})
		case http.MethodPost:
			var req logLevelRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "Invalid request body")
				return
			}
			switch req.Level {
			case "trace", "debug", "info", "warn", "error", "crit":
			default:
				writeError(w, http.StatusBadRequest, "Invalid verbosity level")
				return
			}
			logLevel.Set(log.LevelFromString(req.Level))
			writeJSON(w, logLevelResponse{CurrentLevel: log.LevelString(logLevel.Level())})
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}

type peerEntry struct {
	Remote        string    `json:"remote"`
	Local         string    `json:"local"`
	StateInbound  string    `json:"stateInbound"`
	StateOutbound string    `json:"stateOutbound"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

func peersHandler(peerSet *peers.Set) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		all := peerSet.All()
		entries := make([]peerEntry, 0, len(all))
		for _, p := range all {
			entries = append(entries, peerEntry{
				Remote:        p.RemoteEndpoint.String(),
				Local:         p.LocalEndpoint.String(),
				StateInbound:  string(p.StateInbound),
				StateOutbound: string(p.StateOutbound),
				LastUpdated:   p.LastUpdated,
			})
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Remote < entries[j].Remote })
		writeJSON(w, entries)
	}
}

func healthzHandler(h *health.Health) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		status := h.Status()
		w.Header().Set("Content-Type", "application/json")
		if !status.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(status)
	}
}
