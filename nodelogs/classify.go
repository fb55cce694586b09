// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package nodelogs

import "strings"

type parseFunc func(*Record) (Event, error)

// registry is the sole authority over which namespaces are relevant.
// Adding a variant means adding a row here plus its parser.
var registry = map[string]parseFunc{
	"ChainSync.Client.DownloadedHeader":        parseDownloadedHeader,
	"BlockFetch.Client.SendFetchRequest":       parseSendFetchRequest,
	"BlockFetch.Client.CompletedBlockFetch":    parseCompletedBlockFetch,
	"ChainDB.AddBlockEvent.AddedToCurrentChain": parseAddedToCurrentChain,
	"ChainDB.AddBlockEvent.SwitchedToAFork":     parseSwitchedToAFork,

	"Net.InboundGovernor.Local.DemotedToColdRemote":  peerTransition(StateCold),
	"Net.InboundGovernor.Local.DemotedToWarmRemote":  peerTransition(StateWarm),
	"Net.InboundGovernor.Local.PromotedToWarmRemote": peerTransition(StateWarm),
	"Net.InboundGovernor.Local.PromotedToHotRemote":  peerTransition(StateHot),
	"Net.InboundGovernor.Local.InboundGovernorCounters": parsePeerCounters,

	"Net.InboundGovernor.Remote.DemotedToColdRemote":  peerTransition(StateCold),
	"Net.InboundGovernor.Remote.DemotedToWarmRemote":  peerTransition(StateWarm),
	"Net.InboundGovernor.Remote.PromotedToWarmRemote": peerTransition(StateWarm),
	"Net.InboundGovernor.Remote.PromotedToHotRemote":  peerTransition(StateHot),
	"Net.InboundGovernor.Remote.InboundGovernorCounters": parsePeerCounters,

	"Net.PeerSelection.Actions.StatusChanged": parseStatusChanged,

	"Net.Server.Local.Started": parseNodeRestarted,
}

// Relevant reports whether records of the given namespace yield an event.
func Relevant(ns string) bool {
	_, ok := registry[ns]
	return ok
}

// Parse classifies a record by namespace and extracts the typed event.
// Unknown namespaces yield (nil, nil); they are dropped by callers.
func Parse(rec *Record) (Event, error) {
	fn, ok := registry[rec.NS]
	if !ok {
		return nil, nil
	}
	return fn(rec)
}

// directionOf infers the connection direction from the namespace. Remote
// governor traces describe connections the peer initiated towards us.
func directionOf(ns string) (Direction, bool) {
	switch {
	case strings.Contains(ns, ".Remote."):
		return Inbound, true
	case strings.Contains(ns, ".Local."):
		return Outbound, true
	default:
		return "", false
	}
}
