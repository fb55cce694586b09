// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"fmt"
	"os"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/openblockperf/blockperf/admin"
	"github.com/openblockperf/blockperf/agent"
	"github.com/openblockperf/blockperf/apiclient"
	"github.com/openblockperf/blockperf/calidus"
	"github.com/openblockperf/blockperf/config"
	"github.com/openblockperf/blockperf/health"
	"github.com/openblockperf/blockperf/log"
	"github.com/openblockperf/blockperf/metrics"
)

var (
	version   = "0.2.0"
	gitCommit string
)

var logger = log.WithContext("pkg", "main")

func fullVersion() string {
	if gitCommit == "" {
		return version + "-dev"
	}
	return fmt.Sprintf("%s-%.8s", version, gitCommit)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "blockperf",
		Usage:     "Cardano block propagation telemetry agent",
		Copyright: "2025 The Openblockperf developers",
		Flags: []cli.Flag{
			verbosityFlag,
			jsonLogsFlag,
		},
		Action: runAction,
		Commands: []cli.Command{
			{
				Name:  "run",
				Usage: "follow the node logs and submit propagation samples",
				Flags: []cli.Flag{
					networkFlag,
					apiURLFlag,
				},
				Action: runAction,
			},
			{
				Name:  "register",
				Usage: "obtain an API key for a stake pool via signed challenge",
				Flags: []cli.Flag{
					poolIDFlag,
					calidusSkeyFlag,
					networkFlag,
					apiURLFlag,
				},
				Action: registerAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runAction(ctx *cli.Context) error {
	logLevel := initLogging(ctx)
	metrics.InitializePrometheus()

	cfg, err := config.FromEnv(
		config.WithNetwork(ctx.String(networkFlag.Name)),
		config.WithAPIURL(ctx.String(apiURLFlag.Name)),
	)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	h := health.New()
	client := apiclient.New(cfg.FullAPIURL(), cfg.APIKey, cfg.APIClientID)
	reader := newReader(string(cfg.LogSource), cfg.LogUnit, cfg.LogFile)
	a := agent.New(cfg, reader, client, h, fullVersion())

	adminURL, stopAdmin, err := admin.StartServer(cfg.AdminAddr, logLevel, a.Peers(), h)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer stopAdmin()

	logger.Info("starting blockperf agent",
		"version", fullVersion(),
		"network", cfg.Network,
		"collector", cfg.FullAPIURL(),
		"source", cfg.LogSource,
		"admin", adminURL,
	)

	runCtx, cancel := exitSignalContext()
	defer cancel()
	if err := a.Run(runCtx); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	logger.Info("exited")
	return nil
}

func registerAction(ctx *cli.Context) error {
	initLogging(ctx)

	poolID := ctx.String(poolIDFlag.Name)
	skeyPath := ctx.String(calidusSkeyFlag.Name)
	if poolID == "" || skeyPath == "" {
		return cli.NewExitError("--pool-id and --calidus-skey are required", 1)
	}
	network := ctx.String(networkFlag.Name)
	if network == "" {
		network = string(config.Mainnet)
	}
	url, err := config.RegistrationURL(network, ctx.String(apiURLFlag.Name))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	key, err := calidus.LoadSigningKey(skeyPath)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	runCtx, cancel := exitSignalContext()
	defer cancel()

	client := apiclient.New(url, "", "")
	challenge, err := client.RequestChallenge(runCtx, poolID)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	apiKey, err := client.SubmitRegistration(runCtx, poolID, key.PublicKeyHex(), key.SignChallenge(challenge))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	fmt.Printf("registration complete\n\nexport %sAPI_KEY=%s\n", config.EnvPrefix, apiKey)
	return nil
}
