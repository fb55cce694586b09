// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package apiclient is the HTTP client for the central collector. It owns
// auth header injection, the error taxonomy of submit failures and the
// registration challenge flow.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openblockperf/blockperf/log"
	"github.com/openblockperf/blockperf/metrics"
	"github.com/openblockperf/blockperf/peers"
	"github.com/openblockperf/blockperf/sampler"
)

var logger = log.WithContext("pkg", "apiclient")

var (
	metricSubmitDuration = metrics.Histogram("submit_duration_ms", metrics.BucketsMillis)
	metricSubmitErrors   = metrics.CounterVec("submit_errors_count", []string{"kind"})
)

const defaultTimeout = 30 * time.Second

// Client talks to one collector base URL, e.g.
// "https://api.openblockperf.cardano.org:443/api/v0/".
type Client struct {
	url      string
	key      string
	clientID string

	// authToken carries the challenge/response session token. The flow is
	// specified but not yet activated by the collector; the field stays
	// empty in normal operation.
	authToken string

	c *http.Client
}

// New creates a client with the default transport and timeout.
func New(url, key, clientID string) *Client {
	return NewWithHTTP(url, key, clientID, &http.Client{Timeout: defaultTimeout})
}

func NewWithHTTP(url, key, clientID string, c *http.Client) *Client {
	return &Client{
		url:      strings.TrimSuffix(url, "/"),
		key:      key,
		clientID: clientID,
		c:        c,
	}
}

// SetAuthToken installs the session token obtained from the challenge
// flow. Inert until the collector starts requiring it.
func (c *Client) SetAuthToken(token string) {
	c.authToken = token
}

// PeerEvent is the wire record for one peer state change.
type PeerEvent struct {
	At         time.Time `json:"at"`
	Direction  string    `json:"direction"`
	LocalAddr  string    `json:"local_addr"`
	LocalPort  uint16    `json:"local_port"`
	RemoteAddr string    `json:"remote_addr"`
	RemotePort uint16    `json:"remote_port"`
	ChangeType string    `json:"change_type"`
	LastSeen   time.Time `json:"last_seen"`
	LastState  string    `json:"last_state"`
}

// NewPeerEvent flattens a tracker notification into its wire record.
func NewPeerEvent(n peers.Notification) *PeerEvent {
	return &PeerEvent{
		At:         n.At,
		Direction:  string(n.Direction),
		LocalAddr:  n.Peer.LocalEndpoint.Addr().String(),
		LocalPort:  n.Peer.LocalEndpoint.Port(),
		RemoteAddr: n.Peer.RemoteEndpoint.Addr().String(),
		RemotePort: n.Peer.RemoteEndpoint.Port(),
		ChangeType: n.ChangeType,
		LastSeen:   n.Peer.LastUpdated,
		LastState:  string(n.PrevState),
	}
}

// SubmitBlockSample posts one block sample and returns the collector's id
// for it.
func (c *Client) SubmitBlockSample(ctx context.Context, sample *sampler.Sample) (string, error) {
	body, err := c.httpPOST(ctx, "/submit/blocksample", sample)
	if err != nil {
		return "", err
	}
	var res struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("unable to unmarshal blocksample response - %w", err)
	}
	return res.ID, nil
}

// SubmitPeerEvent posts one peer state change. The response body carries
// nothing of interest.
func (c *Client) SubmitPeerEvent(ctx context.Context, ev *PeerEvent) error {
	_, err := c.httpPOST(ctx, "/submit/peerevent", ev)
	return err
}

// RequestChallenge starts a registration and returns the challenge to sign.
func (c *Client) RequestChallenge(ctx context.Context, poolID string) (string, error) {
	body, err := c.httpPOST(ctx, "/registration/challenge", map[string]string{
		"pool_id": poolID,
	})
	if err != nil {
		return "", err
	}
	var res struct {
		Challenge string `json:"challenge"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("unable to unmarshal challenge response - %w", err)
	}
	return res.Challenge, nil
}

// SubmitRegistration completes a registration with the signed challenge
// and returns the issued API key.
func (c *Client) SubmitRegistration(ctx context.Context, poolID, publicKey, signature string) (string, error) {
	body, err := c.httpPOST(ctx, "/registration/submit", map[string]string{
		"pool_id":    poolID,
		"public_key": publicKey,
		"signature":  signature,
	})
	if err != nil {
		return "", err
	}
	var res struct {
		APIKey string `json:"apikey"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("unable to unmarshal registration response - %w", err)
	}
	return res.APIKey, nil
}

func (c *Client) httpPOST(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("unable to marshal payload - %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.url+path, bytes.NewBuffer(data))
	if err != nil {
		return nil, fmt.Errorf("unable to build request - %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.key != "" {
		req.Header.Set("X-Api-Key", c.key)
	}
	if c.clientID != "" {
		req.Header.Set("X-Client-Id", c.clientID)
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	started := time.Now()
	resp, err := c.c.Do(req)
	metricSubmitDuration.Observe(float64(time.Since(started).Milliseconds()))
	if err != nil {
		metricSubmitErrors.AddWithLabel(1, map[string]string{"kind": "connection"})
		return nil, &ConnectionError{Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metricSubmitErrors.AddWithLabel(1, map[string]string{"kind": "connection"})
		return nil, &ConnectionError{Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		kind := "server"
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			kind = "client"
		}
		metricSubmitErrors.AddWithLabel(1, map[string]string{"kind": kind})
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			logger.Error("collector rejected credentials, check OPENBLOCKPERF_API_KEY",
				"status", resp.StatusCode, "path", path)
		}
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}
