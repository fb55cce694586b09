// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package config

import "time"

// Network names one of the supported Cardano networks.
type Network string

const (
	Mainnet Network = "mainnet"
	Preprod Network = "preprod"
	Preview Network = "preview"
)

// NetworkConfig carries the per-network constants. GenesisStart is the
// shelley genesis systemStart as a unix timestamp; slot N happened at
// GenesisStart+N seconds.
type NetworkConfig struct {
	Magic        uint32
	GenesisStart int64
	APIBaseURL   string
}

// SlotTime converts a slot number to its wall-clock time.
func (n NetworkConfig) SlotTime(slot uint64) time.Time {
	return time.Unix(n.GenesisStart+int64(slot), 0).UTC()
}

var networkConfigs = map[Network]NetworkConfig{
	Mainnet: {
		Magic:        764824073,
		GenesisStart: 1591566291, // Sun Jun 07 2020 21:44:51 GMT+0000
		APIBaseURL:   "https://api.openblockperf.cardano.org",
	},
	Preprod: {
		Magic:        1,
		GenesisStart: 1654041600, // Wed Jun 01 2022 00:00:00 GMT+0000
		APIBaseURL:   "https://preprod.api.openblockperf.cardano.org",
	},
	Preview: {
		Magic:        2,
		GenesisStart: 1666656000, // Tue Oct 25 2022 00:00:00 GMT+0000
		APIBaseURL:   "https://preview.api.openblockperf.cardano.org",
	},
}

// Networks returns the names of all supported networks.
func Networks() []Network {
	return []Network{Mainnet, Preprod, Preview}
}
