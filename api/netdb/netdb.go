// Copyright (c) 2026 The Hoard Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package netdb is the selection engine's contract with the network
// measurement database: per-host round-trip times and hop counts gathered
// from ICMP probes and RTT hints embedded in neighbor replies.
package netdb

import (
	"github.com/hoardcache/hoard/api/peer"
	"github.com/hoardcache/hoard/api/transport"
)

// Database answers topology questions about origin hosts and records peer
// measurements. A nil Database disables every netdb-derived shortcut.
type Database interface {
	// HostRTT returns the measured round-trip time to the host's network
	// in milliseconds, zero when unknown.
	HostRTT(host string) int

	// HostHops returns the measured hop count to the host's network, zero
	// when unknown.
	HostHops(host string) int

	// ClosestParent returns the usable parent with the lowest recorded RTT
	// toward the request's origin, or nil when no measurement beats going
	// direct.
	ClosestParent(req *transport.Request) *peer.Peer

	// UpdatePeer records a peer's advertised RTT and hop count toward the
	// request's origin.
	UpdatePeer(req *transport.Request, p *peer.Peer, rtt, hops int)
}
