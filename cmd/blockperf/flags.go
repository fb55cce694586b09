// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	cli "gopkg.in/urfave/cli.v1"
)

var (
	verbosityFlag = cli.StringFlag{
		Name:  "verbosity",
		Value: "info",
		Usage: "log verbosity (trace|debug|info|warn|error|crit)",
	}
	jsonLogsFlag = cli.BoolFlag{
		Name:  "json-logs",
		Usage: "emit logs as JSON lines instead of the terminal format",
	}
	networkFlag = cli.StringFlag{
		Name:  "network",
		Usage: "the cardano network to report for (mainnet|preprod|preview)",
	}
	apiURLFlag = cli.StringFlag{
		Name:  "api-url",
		Usage: "override the collector API base URL",
	}
	poolIDFlag = cli.StringFlag{
		Name:  "pool-id",
		Usage: "bech32 id of the stake pool to register",
	}
	calidusSkeyFlag = cli.StringFlag{
		Name:  "calidus-skey",
		Usage: "path to the calidus signing key file",
	}
)
