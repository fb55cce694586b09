// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package config builds the immutable agent configuration from the
// OPENBLOCKPERF_ environment, optionally seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// EnvPrefix is prepended to every environment variable the agent reads.
const EnvPrefix = "OPENBLOCKPERF_"

// LogSourceKind selects the backend the node log stream is read from.
type LogSourceKind string

const (
	LogSourceJournal LogSourceKind = "journal"
	LogSourceFile    LogSourceKind = "file"
)

// Config is the complete agent configuration. It is built once at startup
// and never mutated afterwards.
type Config struct {
	APIKey      string
	APIClientID string
	APIPort     int
	APIPath     string
	// APIURLOverride, when set (CLI), replaces the network-derived URL
	// including port and path.
	APIURLOverride string

	Network       Network
	NetworkConfig NetworkConfig

	CheckInterval time.Duration
	MinAge        time.Duration

	LocalAddr string
	LocalPort int

	LogSource LogSourceKind
	LogUnit   string
	LogFile   string

	ClearPeersOnRestart bool

	AdminAddr string
}

// Option overrides a value after the environment has been applied.
// CLI flags use these; they take precedence over the environment.
type Option func(*Config)

func WithNetwork(name string) Option {
	return func(c *Config) {
		if name != "" {
			c.Network = Network(name)
		}
	}
}

func WithAPIURL(url string) Option {
	return func(c *Config) {
		if url != "" {
			c.APIURLOverride = url
		}
	}
}

// FromEnv builds a Config from OPENBLOCKPERF_* variables. A .env file in
// the working directory is loaded first when present; real environment
// variables win over file entries.
func FromEnv(opts ...Option) (*Config, error) {
	// godotenv never overrides variables already set in the environment
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "load .env")
	}

	cfg := &Config{
		APIKey:      getenv("API_KEY", ""),
		APIClientID: getenv("API_CLIENTID", ""),
		APIPath:     getenv("API_PATH", "/api/v0/"),
		Network:     Network(getenv("NETWORK", string(Mainnet))),
		LocalAddr:   getenv("LOCAL_ADDR", "0.0.0.0"),
		LogSource:   LogSourceKind(getenv("LOG_SOURCE", string(LogSourceJournal))),
		LogUnit:     getenv("LOG_UNIT", "cardano-tracer"),
		LogFile:     getenv("LOG_FILE", ""),
		AdminAddr:   getenv("ADMIN_ADDR", "localhost:7080"),
	}

	var err error
	if cfg.APIPort, err = getenvInt("API_PORT", 443); err != nil {
		return nil, err
	}
	if cfg.LocalPort, err = getenvInt("LOCAL_PORT", 3001); err != nil {
		return nil, err
	}
	checkInterval, err := getenvInt("CHECK_INTERVAL", 2)
	if err != nil {
		return nil, err
	}
	cfg.CheckInterval = time.Duration(checkInterval) * time.Second
	minAge, err := getenvInt("MIN_AGE", 10)
	if err != nil {
		return nil, err
	}
	cfg.MinAge = time.Duration(minAge) * time.Second
	if cfg.ClearPeersOnRestart, err = getenvBool("CLEAR_PEERS_ON_RESTART", false); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		opt(cfg)
	}

	nc, ok := networkConfigs[cfg.Network]
	if !ok {
		return nil, errors.Errorf("unknown network %q, expected one of %v", cfg.Network, Networks())
	}
	cfg.NetworkConfig = nc

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.APIKey == "" {
		return errors.Errorf("%sAPI_KEY is required", EnvPrefix)
	}
	switch c.LogSource {
	case LogSourceJournal:
	case LogSourceFile:
		if c.LogFile == "" {
			return errors.Errorf("%sLOG_FILE is required when log source is %q", EnvPrefix, LogSourceFile)
		}
	default:
		return errors.Errorf("unknown log source %q", c.LogSource)
	}
	if c.CheckInterval <= 0 || c.MinAge <= 0 {
		return errors.New("check interval and min age must be positive")
	}
	return nil
}

// RegistrationURL resolves the collector base URL for the registration
// flow, which runs before any API key exists. A non-empty override wins.
func RegistrationURL(network, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	nc, ok := networkConfigs[Network(network)]
	if !ok {
		return "", errors.Errorf("unknown network %q, expected one of %v", network, Networks())
	}
	return fmt.Sprintf("%s:443/api/v0/", nc.APIBaseURL), nil
}

// FullAPIURL returns the base URL every API path is resolved against.
func (c *Config) FullAPIURL() string {
	if c.APIURLOverride != "" {
		return c.APIURLOverride
	}
	return fmt.Sprintf("%s:%d%s", c.NetworkConfig.APIBaseURL, c.APIPort, c.APIPath)
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(EnvPrefix + key); ok {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "parse %s%s", EnvPrefix, key)
	}
	return n, nil
}

func getenvBool(key string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.Wrapf(err, "parse %s%s", EnvPrefix, key)
	}
	return b, nil
}
