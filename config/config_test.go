// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv(EnvPrefix+"API_KEY", "k")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, Mainnet, cfg.Network)
	assert.Equal(t, uint32(764824073), cfg.NetworkConfig.Magic)
	assert.Equal(t, 443, cfg.APIPort)
	assert.Equal(t, "/api/v0/", cfg.APIPath)
	assert.Equal(t, 2*time.Second, cfg.CheckInterval)
	assert.Equal(t, 10*time.Second, cfg.MinAge)
	assert.Equal(t, 3001, cfg.LocalPort)
	assert.Equal(t, "0.0.0.0", cfg.LocalAddr)
	assert.Equal(t, LogSourceJournal, cfg.LogSource)
	assert.False(t, cfg.ClearPeersOnRestart)
	assert.Equal(t, "https://api.openblockperf.cardano.org:443/api/v0/", cfg.FullAPIURL())
}

func TestFromEnvMissingAPIKey(t *testing.T) {
	t.Setenv(EnvPrefix+"API_KEY", "")
	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_KEY")
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv(EnvPrefix+"API_KEY", "k")
	t.Setenv(EnvPrefix+"NETWORK", "preprod")
	t.Setenv(EnvPrefix+"CHECK_INTERVAL", "5")
	t.Setenv(EnvPrefix+"LOCAL_PORT", "6000")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, Preprod, cfg.Network)
	assert.Equal(t, uint32(1), cfg.NetworkConfig.Magic)
	assert.Equal(t, 5*time.Second, cfg.CheckInterval)
	assert.Equal(t, 6000, cfg.LocalPort)
}

func TestFromEnvUnknownNetwork(t *testing.T) {
	t.Setenv(EnvPrefix+"API_KEY", "k")
	t.Setenv(EnvPrefix+"NETWORK", "testnet")
	_, err := FromEnv()
	assert.Error(t, err)
}

func TestCLIOptionsWin(t *testing.T) {
	t.Setenv(EnvPrefix+"API_KEY", "k")
	t.Setenv(EnvPrefix+"NETWORK", "preprod")

	cfg, err := FromEnv(WithNetwork("preview"), WithAPIURL("http://localhost:8000/api/v0"))
	require.NoError(t, err)
	assert.Equal(t, Preview, cfg.Network)
	assert.Equal(t, "http://localhost:8000/api/v0", cfg.FullAPIURL())
}

func TestFromEnvFileSourceNeedsPath(t *testing.T) {
	t.Setenv(EnvPrefix+"API_KEY", "k")
	t.Setenv(EnvPrefix+"LOG_SOURCE", "file")
	_, err := FromEnv()
	assert.Error(t, err)
}

func TestSlotTime(t *testing.T) {
	nc := networkConfigs[Mainnet]
	assert.Equal(t, time.Unix(1591566291+1000, 0).UTC(), nc.SlotTime(1000))
}
