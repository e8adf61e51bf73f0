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

package transport

import (
	"net/netip"
	"sync"

	"go.uber.org/atomic"

	"github.com/hoardcache/hoard/api/peer"
)

// Protocol identifies the scheme of a request, as far as the selection
// engine cares: some protocols cannot be fetched from the origin directly.
type Protocol int

const (
	// ProtocolHTTP is plain HTTP.
	ProtocolHTTP Protocol = iota

	// ProtocolHTTPS is HTTP over TLS.
	ProtocolHTTPS

	// ProtocolFTP is FTP fetched through the proxy.
	ProtocolFTP

	// ProtocolWAIS is not spoken natively; WAIS requests must go through a
	// parent.
	ProtocolWAIS
)

var protocolNames = [...]string{"http", "https", "ftp", "wais"}

func (p Protocol) String() string {
	if p < ProtocolHTTP || p > ProtocolWAIS {
		return "unknown"
	}
	return protocolNames[p]
}

// Flags are the request properties the selection engine consults.
type Flags struct {
	// Hierarchical marks requests that are eligible for neighbor queries.
	// Methods with side effects and cache-busting requests clear it.
	Hierarchical bool

	// NoDirect forbids going to the origin, set in accelerator setups.
	NoDirect bool

	// LoopDetect is set when this cache already appears in the Via chain.
	LoopDetect bool

	// SpoofClientIP requires outbound connections to carry the client's
	// address as source (TPROXY).
	SpoofClientIP bool
}

// PinnedConnection is a prior client connection affined to a specific peer,
// typically because of connection-oriented authentication.
type PinnedConnection interface {
	// Peer returns the peer the connection is pinned to, or nil when it is
	// pinned to the origin server.
	Peer() *peer.Peer

	// Validate reports whether the pinned connection is still open and may
	// carry the request.
	Validate(req *Request) bool
}

// Request is the selection engine's view of an HTTP request. It is created
// by the client-side parser and shared, refcounted, with every subsystem that
// handles the request.
type Request struct {
	// Method is the HTTP method, for logging.
	Method string

	// Host is the origin host from the request URL.
	Host string

	// Port is the origin port from the request URL.
	Port uint16

	// Protocol is the request scheme.
	Protocol Protocol

	// Flags are the selection-relevant request properties.
	Flags Flags

	// ClientAddr is the address of the requesting client.
	ClientAddr netip.Addr

	// Login is the proxy-auth username, if any; feeds userhash selection.
	Login string

	// Pinned is the pinned connection carried by the request, if any.
	Pinned PinnedConnection

	// Hier accumulates the hierarchy diagnostics for the request.
	Hier HierarchyNote

	refs atomic.Int32
}

// Ref takes a reference on the request for the duration of an asynchronous
// operation.
func (r *Request) Ref() *Request {
	r.refs.Inc()
	return r
}

// Unref drops a reference taken with Ref.
func (r *Request) Unref() {
	r.refs.Dec()
}

// Refs reports the number of outstanding references.
func (r *Request) Refs() int {
	return int(r.refs.Load())
}

// URL renders the request target for log lines.
func (r *Request) URL() string {
	return r.Protocol.String() + "://" + r.Host
}

// HierarchyNote records why and how the destination list for a request was
// put together. It is written by the selection engine and read by the access
// log.
type HierarchyNote struct {
	mu sync.Mutex

	// Ping is the aggregate of the neighbor query round, if one ran.
	Ping PingData

	// Lookups records the DNS lookups performed while resolving the
	// destination list.
	Lookups []LookupDetail
}

// LookupDetail is one DNS lookup outcome attached to the request.
type LookupDetail struct {
	Host string
	Err  error
}

// RecordLookup appends one DNS lookup outcome.
func (n *HierarchyNote) RecordLookup(host string, err error) {
	n.mu.Lock()
	n.Lookups = append(n.Lookups, LookupDetail{Host: host, Err: err})
	n.mu.Unlock()
}

// SetPing stores the final ping aggregate.
func (n *HierarchyNote) SetPing(p PingData) {
	n.mu.Lock()
	n.Ping = p
	n.mu.Unlock()
}
