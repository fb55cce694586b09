// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package nodelogs

import (
	"encoding/json"
	"net/netip"
	"strconv"
	"strings"
)

// ConnectionID identifies one TCP connection of the node, local and remote
// side.
type ConnectionID struct {
	Local  netip.AddrPort
	Remote netip.AddrPort
}

// parseConnectionID accepts the two shapes the connectionId field appears in:
//
//	string: "LOCAL_ADDR:LPORT REMOTE_ADDR:RPORT" with IPv4 literals or
//	        bracketed IPv6
//	object: {"localAddress":{"address":...,"port":...},"remoteAddress":{...}}
func parseConnectionID(raw json.RawMessage) (ConnectionID, error) {
	if len(raw) == 0 {
		return ConnectionID{}, &ParseError{Reason: "missing connectionId"}
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ConnectionID{}, &ParseError{Reason: "connectionId not a string", Cause: err}
		}
		return parseConnectionString(s)
	}
	var obj struct {
		Local  addrPort `json:"localAddress"`
		Remote addrPort `json:"remoteAddress"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ConnectionID{}, &ParseError{Reason: "invalid connectionId object", Cause: err}
	}
	local, err := obj.Local.addrPort()
	if err != nil {
		return ConnectionID{}, err
	}
	remote, err := obj.Remote.addrPort()
	if err != nil {
		return ConnectionID{}, err
	}
	return ConnectionID{Local: local, Remote: remote}, nil
}

func parseConnectionString(s string) (ConnectionID, error) {
	localStr, remoteStr, found := strings.Cut(s, " ")
	if !found {
		return ConnectionID{}, &ParseError{Reason: "connectionId missing separator: " + s}
	}
	local, err := netip.ParseAddrPort(localStr)
	if err != nil {
		return ConnectionID{}, &ParseError{Reason: "bad local endpoint", Cause: err}
	}
	remote, err := netip.ParseAddrPort(remoteStr)
	if err != nil {
		return ConnectionID{}, &ParseError{Reason: "bad remote endpoint", Cause: err}
	}
	return ConnectionID{Local: local, Remote: remote}, nil
}

// addrPort is the object shape of an address; the port is seen both as a
// JSON number and as a string.
type addrPort struct {
	Address string      `json:"address"`
	Port    json.Number `json:"port"`
}

func (a addrPort) addrPort() (netip.AddrPort, error) {
	addr, err := netip.ParseAddr(a.Address)
	if err != nil {
		return netip.AddrPort{}, &ParseError{Reason: "bad address " + a.Address, Cause: err}
	}
	port, err := strconv.ParseUint(a.Port.String(), 10, 16)
	if err != nil {
		return netip.AddrPort{}, &ParseError{Reason: "bad port " + a.Port.String(), Cause: err}
	}
	return netip.AddrPortFrom(addr, uint16(port)), nil
}
