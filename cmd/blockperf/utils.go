// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/openblockperf/blockperf/log"
	"github.com/openblockperf/blockperf/nodelogs"
)

// initLogging installs the root log handler and returns the level var the
// admin endpoint mutates at runtime.
func initLogging(ctx *cli.Context) *slog.LevelVar {
	lvl := new(slog.LevelVar)
	lvl.Set(log.LevelFromString(ctx.GlobalString(verbosityFlag.Name)))

	if ctx.GlobalBool(jsonLogsFlag.Name) {
		log.SetDefault(log.JSONHandler(os.Stderr, lvl))
	} else {
		useColor := isatty.IsTerminal(os.Stderr.Fd())
		log.SetDefault(log.NewTerminalHandler(os.Stderr, lvl, useColor))
	}
	return lvl
}

// newReader picks the log source backend from the configuration.
func newReader(source, unit, file string) nodelogs.Reader {
	if source == "file" {
		return nodelogs.NewFileReader(file)
	}
	return nodelogs.NewJournalReader(unit)
}

// exitSignalContext returns a context cancelled on SIGINT or SIGTERM.
func exitSignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
