// Copyright (c) 2025 The Openblockperf developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package sockets enumerates the node's established TCP connections from
// the OS, for reconciling the peer map against reality.
package sockets

import (
	"context"
	"net/netip"

	gnet "github.com/shirou/gopsutil/v3/net"

	"github.com/openblockperf/blockperf/log"
)

var logger = log.WithContext("pkg", "sockets")

// Conn is one established TCP connection of the node process.
type Conn struct {
	Local  netip.AddrPort
	Remote netip.AddrPort
}

// Established lists the established TCP connections whose local port is the
// node's listen port. Connections with unparseable addresses are skipped.
func Established(ctx context.Context, listenPort uint16) ([]Conn, error) {
	raw, err := gnet.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		return nil, err
	}

	var conns []Conn
	for _, c := range raw {
		if c.Status != "ESTABLISHED" || c.Laddr.Port != uint32(listenPort) {
			continue
		}
		local, err := netip.ParseAddr(c.Laddr.IP)
		if err != nil {
			logger.Debug("skipping socket with bad local address", "addr", c.Laddr.IP)
			continue
		}
		remote, err := netip.ParseAddr(c.Raddr.IP)
		if err != nil {
			logger.Debug("skipping socket with bad remote address", "addr", c.Raddr.IP)
			continue
		}
		conns = append(conns, Conn{
			Local:  netip.AddrPortFrom(local.Unmap(), uint16(c.Laddr.Port)),
			Remote: netip.AddrPortFrom(remote.Unmap(), uint16(c.Raddr.Port)),
		})
	}
	return conns, nil
}
