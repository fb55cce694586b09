// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package nodelogs

import (
	"encoding/json"
	"strings"
)

func unmarshalData(rec *Record, v any) error {
	if err := json.Unmarshal(rec.Data, v); err != nil {
		return &ParseError{NS: rec.NS, Reason: "invalid payload", Cause: err}
	}
	return nil
}

type peerRef struct {
	ConnectionID json.RawMessage `json:"connectionId"`
}

func parseDownloadedHeader(rec *Record) (Event, error) {
	var data struct {
		Block   string  `json:"block"`
		BlockNo uint64  `json:"blockNo"`
		Slot    uint64  `json:"slot"`
		Peer    peerRef `json:"peer"`
	}
	if err := unmarshalData(rec, &data); err != nil {
		return nil, err
	}
	if data.Block == "" {
		return nil, &ParseError{NS: rec.NS, Reason: "missing block hash"}
	}
	conn, err := parseConnectionID(data.Peer.ConnectionID)
	if err != nil {
		return nil, err
	}
	return &DownloadedHeader{
		At:          rec.At,
		Hash:        data.Block,
		BlockNumber: data.BlockNo,
		Slot:        data.Slot,
		Connection:  conn,
	}, nil
}

func parseSendFetchRequest(rec *Record) (Event, error) {
	var data struct {
		Head string  `json:"head"`
		Peer peerRef `json:"peer"`
	}
	if err := unmarshalData(rec, &data); err != nil {
		return nil, err
	}
	if data.Head == "" {
		return nil, &ParseError{NS: rec.NS, Reason: "missing head hash"}
	}
	conn, err := parseConnectionID(data.Peer.ConnectionID)
	if err != nil {
		return nil, err
	}
	return &SendFetchRequest{At: rec.At, Hash: data.Head, Connection: conn}, nil
}

func parseCompletedBlockFetch(rec *Record) (Event, error) {
	var data struct {
		Block string  `json:"block"`
		Size  uint64  `json:"size"`
		Delay float64 `json:"delay"`
		Peer  peerRef `json:"peer"`
	}
	if err := unmarshalData(rec, &data); err != nil {
		return nil, err
	}
	if data.Block == "" {
		return nil, &ParseError{NS: rec.NS, Reason: "missing block hash"}
	}
	conn, err := parseConnectionID(data.Peer.ConnectionID)
	if err != nil {
		return nil, err
	}
	return &CompletedBlockFetch{
		At:         rec.At,
		Hash:       data.Block,
		Size:       data.Size,
		Delay:      data.Delay,
		Connection: conn,
	}, nil
}

// adoptedHash extracts the header hash from a chain adoption record. The
// tracer wraps the hash in one extra layer of literal double quotes.
func adoptedHash(rec *Record) (string, error) {
	var data struct {
		Headers []struct {
			Hash string `json:"hash"`
		} `json:"headers"`
	}
	if err := unmarshalData(rec, &data); err != nil {
		return "", err
	}
	if len(data.Headers) == 0 {
		return "", &ParseError{NS: rec.NS, Reason: "no headers"}
	}
	hash := data.Headers[0].Hash
	hash = strings.TrimPrefix(hash, `"`)
	hash = strings.TrimSuffix(hash, `"`)
	if hash == "" {
		return "", &ParseError{NS: rec.NS, Reason: "empty header hash"}
	}
	return hash, nil
}

func parseAddedToCurrentChain(rec *Record) (Event, error) {
	hash, err := adoptedHash(rec)
	if err != nil {
		return nil, err
	}
	return &AddedToCurrentChain{At: rec.At, Hash: hash}, nil
}

func parseSwitchedToAFork(rec *Record) (Event, error) {
	hash, err := adoptedHash(rec)
	if err != nil {
		return nil, err
	}
	return &SwitchedToAFork{At: rec.At, Hash: hash}, nil
}

// peerTransition builds the parser for the inbound governor promote/demote
// namespaces; the target state is fixed per namespace.
func peerTransition(newState PeerState) parseFunc {
	return func(rec *Record) (Event, error) {
		direction, ok := directionOf(rec.NS)
		if !ok {
			return nil, &ParseError{NS: rec.NS, Reason: "cannot infer direction"}
		}
		var data struct {
			ConnectionID json.RawMessage `json:"connectionId"`
		}
		if err := unmarshalData(rec, &data); err != nil {
			return nil, err
		}
		conn, err := parseConnectionID(data.ConnectionID)
		if err != nil {
			return nil, err
		}
		return &PeerStateChange{
			At:        rec.At,
			Direction: direction,
			NewState:  newState,
			Local:     conn.Local,
			Remote:    conn.Remote,
		}, nil
	}
}

func parsePeerCounters(rec *Record) (Event, error) {
	var data struct {
		Idle int64 `json:"idlePeers"`
		Cold int64 `json:"coldPeers"`
		Warm int64 `json:"warmPeers"`
		Hot  int64 `json:"hotPeers"`
	}
	if err := unmarshalData(rec, &data); err != nil {
		return nil, err
	}
	return &PeerCounters{
		At:   rec.At,
		Idle: data.Idle,
		Cold: data.Cold,
		Warm: data.Warm,
		Hot:  data.Hot,
	}, nil
}

func parseStatusChanged(rec *Record) (Event, error) {
	var data struct {
		ChangeType string `json:"peerStatusChangeType"`
	}
	if err := unmarshalData(rec, &data); err != nil {
		return nil, err
	}
	change, err := parseStatusChange(data.ChangeType)
	if err != nil {
		return nil, &ParseError{NS: rec.NS, Reason: "bad peerStatusChangeType", Cause: err}
	}
	// Peer selection acts on connections we initiated.
	return &PeerStateChange{
		At:         rec.At,
		Direction:  Outbound,
		NewState:   change.To,
		Transition: change.Transition,
		Local:      change.Local,
		Remote:     change.Remote,
	}, nil
}

func parseNodeRestarted(rec *Record) (Event, error) {
	return &NodeRestarted{At: rec.At}, nil
}
