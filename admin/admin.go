// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package admin serves the agent's operator surface: runtime log level,
// the tracked peer map, Prometheus metrics and the health probe.
package admin

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/openblockperf/blockperf/health"
	"github.com/openblockperf/blockperf/metrics"
	"github.com/openblockperf/blockperf/peers"
)

// HTTPHandler builds the admin router.
func HTTPHandler(logLevel *slog.LevelVar, peerSet *peers.Set, h *health.Health) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/admin/loglevel", logLevelHandler(logLevel))
	router.HandleFunc("/admin/peers", peersHandler(peerSet)).Methods(http.MethodGet)
	router.HandleFunc("/healthz", healthzHandler(h)).Methods(http.MethodGet)
	if mh := metrics.HTTPHandler(); mh != nil {
		router.Handle("/metrics", mh).Methods(http.MethodGet)
	}
	return handlers.CompressHandler(router)
}

// StartServer serves the admin router on addr and returns the bound URL
// with a stop function.
func StartServer(addr string, logLevel *slog.LevelVar, peerSet *peers.Set, h *health.Health) (string, func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, errors.Wrapf(err, "listen admin API addr [%v]", addr)
	}

	srv := &http.Server{
		Handler:           HTTPHandler(logLevel, peerSet, h),
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.Serve(listener)
	}()
	return "http://" + listener.Addr().String(), func() {
		srv.Close()
		<-done
	}, nil
}
