// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package nodelogs

import (
	"net/netip"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// statusChange is the decoded form of a peerStatusChangeType string.
type statusChange struct {
	Transition string
	From       PeerState
	To         PeerState
	Local      netip.AddrPort
	Remote     netip.AddrPort
}

// The peer selection governor only ever reports these transitions.
var validTransitions = map[string]struct{}{
	"ColdToWarm":    {},
	"WarmToHot":     {},
	"WarmToCooling": {},
	"HotToWarm":     {},
	"HotToCooling":  {},
	"CoolingToCold": {},
}

var transitionRe = regexp.MustCompile(`^(\w+)To(\w+) (.+)$`)

// parseStatusChange decodes the free-form status change string. Two shapes
// occur in the wild:
//
//	"ColdToWarm (Just 172.0.118.125:3001) 3.228.174.253:6000"
//	"WarmToCooling (ConnectionId {localAddress = [2a05::1]:3001, remoteAddress = [2600::2]:33525})"
func parseStatusChange(s string) (*statusChange, error) {
	m := transitionRe.FindStringSubmatch(s)
	if m == nil {
		return nil, errors.Errorf("no state transition in %q", s)
	}
	transition := m[1] + "To" + m[2]
	if _, ok := validTransitions[transition]; !ok {
		return nil, errors.Errorf("unknown transition %q", transition)
	}

	var localStr, remoteStr string
	rest := m[3]
	switch {
	case strings.HasPrefix(rest, "(Just "):
		// "(Just LOCAL) REMOTE"
		inner := strings.TrimPrefix(rest, "(Just ")
		var found bool
		localStr, remoteStr, found = strings.Cut(inner, ") ")
		if !found {
			return nil, errors.Errorf("malformed 'Just' shape in %q", s)
		}
	case strings.HasPrefix(rest, "(ConnectionId {localAddress = "):
		// "(ConnectionId {localAddress = LOCAL, remoteAddress = REMOTE})"
		inner := strings.TrimPrefix(rest, "(ConnectionId {localAddress = ")
		var found bool
		localStr, remoteStr, found = strings.Cut(inner, ", remoteAddress = ")
		if !found {
			return nil, errors.Errorf("malformed 'ConnectionId' shape in %q", s)
		}
		remoteStr = strings.TrimSuffix(remoteStr, "})")
	default:
		return nil, errors.Errorf("unrecognized status change shape in %q", s)
	}

	local, err := netip.ParseAddrPort(localStr)
	if err != nil {
		return nil, errors.Wrapf(err, "local endpoint in %q", s)
	}
	remote, err := netip.ParseAddrPort(remoteStr)
	if err != nil {
		return nil, errors.Wrapf(err, "remote endpoint in %q", s)
	}

	return &statusChange{
		Transition: transition,
		From:       PeerState(m[1]),
		To:         PeerState(m[2]),
		Local:      local,
		Remote:     remote,
	}, nil
}
