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

package peer

import (
	"net/netip"
	"time"

	"go.uber.org/atomic"
)

// Relation describes how a neighbor cache relates to this cache for a
// particular request.
type Relation int

const (
	// None indicates the peer is neither a parent nor a sibling for the
	// request.
	None Relation = iota

	// Parent is a peer to which cache misses may be forwarded.
	Parent

	// Sibling is a peer that is queried for hits but never handed a miss.
	Sibling
)

var relationNames = [...]string{"NONE", "PARENT", "SIBLING"}

func (r Relation) String() string {
	if r < None || r > Sibling {
		return "INVALID"
	}
	return relationNames[r]
}

// Options carries the per-peer tuning knobs from configuration.
type Options struct {
	// Default marks the peer as a parent of last resort.
	Default bool

	// RoundRobin enters the peer into the round-robin parent rotation.
	RoundRobin bool

	// WeightedRoundRobin enters the peer into the RTT-weighted rotation.
	WeightedRoundRobin bool

	// CARP enters the peer into the CARP hash ring.
	CARP bool

	// UserHash enters the peer into the username hash ring.
	UserHash bool

	// SourceHash enters the peer into the client-address hash ring.
	SourceHash bool

	// ClosestOnly limits the peer to closest-parent-miss selection; it is
	// never recorded as a first parent miss.
	ClosestOnly bool

	// NoQuery suppresses ICP/HTCP queries to this peer.
	NoQuery bool

	// NoTproxy exempts connections to this peer from client-address
	// spoofing, lifting the address-family restriction.
	NoTproxy bool

	// NoNetdbExchange suppresses RTT database exchanges with this peer.
	NoNetdbExchange bool
}

// Peer is one configured neighbor cache. The selection engine reads its
// identity and options and tracks liveness and rotation state through it.
type Peer struct {
	// Name is the configuration name of the peer, unique within a registry.
	Name string

	// Host is the DNS name or address used to reach the peer.
	Host string

	// HTTPPort is the port HTTP requests are forwarded to.
	HTTPPort uint16

	// ICPPort is the UDP port ICP/HTCP queries are sent to. Zero disables
	// queries regardless of the NoQuery option.
	ICPPort uint16

	// Addr is the peer's resolved address, used as its identity when
	// matching ping replies. The zero Addr means unresolved.
	Addr netip.Addr

	// Type is the configured relation of the peer.
	Type Relation

	// Weight scales the peer's attractiveness for weighted selection.
	// Values below one are treated as one.
	Weight int

	// Basetime is subtracted from measured round-trip times before
	// weighting, in milliseconds.
	Basetime int

	// Domains restricts the peer to requests whose host falls under one of
	// the listed domain suffixes. Empty means no restriction.
	Domains []string

	// Options are the per-peer tuning knobs.
	Options Options

	// Stats is the mutable runtime state of the peer.
	Stats Stats
}

// Stats tracks the mutable runtime state of a peer. All fields are safe for
// concurrent use.
type Stats struct {
	// RRCount is the rotation usage counter shared by the round-robin
	// strategies.
	RRCount atomic.Int64

	// RTT is the smoothed round-trip time to the peer in milliseconds,
	// zero when unmeasured.
	RTT atomic.Int64

	// Pings counts queries sent to the peer.
	Pings atomic.Int64

	// Replies counts replies received from the peer.
	Replies atomic.Int64

	down      atomic.Bool
	downSince atomic.Int64 // unix nanos
}

// MarkDown records the peer as unreachable as of now.
func (s *Stats) MarkDown(now time.Time) {
	if s.down.CompareAndSwap(false, true) {
		s.downSince.Store(now.UnixNano())
	}
}

// MarkUp clears the unreachable mark.
func (s *Stats) MarkUp() {
	s.down.Store(false)
	s.downSince.Store(0)
}

// Alive reports whether the peer may be offered requests. A peer marked down
// becomes eligible again once deadTimeout has elapsed, so that a revived peer
// is eventually retried.
func (s *Stats) Alive(now time.Time, deadTimeout time.Duration) bool {
	if !s.down.Load() {
		return true
	}
	if deadTimeout <= 0 {
		return false
	}
	return now.Sub(time.Unix(0, s.downSince.Load())) >= deadTimeout
}

// EffectiveWeight returns the configured weight, floored at one.
func (p *Peer) EffectiveWeight() int {
	if p.Weight < 1 {
		return 1
	}
	return p.Weight
}

// WouldBePinged reports whether the peer participates in ICP/HTCP fan-out at
// all. Per-request gating is the registry's concern.
func (p *Peer) WouldBePinged() bool {
	return p.ICPPort != 0 && !p.Options.NoQuery
}
