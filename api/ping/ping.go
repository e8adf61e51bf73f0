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

// Package ping is the selection engine's contract with the ICP/HTCP query
// client. The client owns the UDP sockets and the wire codecs; the engine
// only fans a query out and ingests decoded replies.
package ping

import (
	"time"

	"github.com/hoardcache/hoard/api/peer"
	"github.com/hoardcache/hoard/api/store"
	"github.com/hoardcache/hoard/api/transport"
)

// Protocol tags the wire protocol a reply arrived on.
type Protocol int

const (
	// ProtocolNone is the zero value for replies of unknown provenance.
	ProtocolNone Protocol = iota

	// ProtocolICP is the Internet Cache Protocol.
	ProtocolICP

	// ProtocolHTCP is the Hypertext Caching Protocol.
	ProtocolHTCP
)

var protocolNames = [...]string{"NONE", "ICP", "HTCP"}

func (p Protocol) String() string {
	if p < ProtocolNone || p > ProtocolHTCP {
		return "UNKNOWN"
	}
	return protocolNames[p]
}

// Opcode is the decoded ICP opcode of a reply. Only the opcodes the
// selection engine reacts to are named; everything else is OpOther and is
// counted but otherwise ignored.
type Opcode int

const (
	// OpOther covers opcodes with no selection semantics.
	OpOther Opcode = iota

	// OpHit announces the peer holds a fresh copy.
	OpHit

	// OpMiss announces the peer does not hold a copy.
	OpMiss

	// OpDecho is a denied-echo miss from a source-echo peer.
	OpDecho
)

var opcodeNames = [...]string{"OTHER", "HIT", "MISS", "DECHO"}

func (o Opcode) String() string {
	if o < OpOther || o > OpDecho {
		return "INVALID"
	}
	return opcodeNames[o]
}

// Reply is one decoded ICP or HTCP answer.
type Reply struct {
	// Protocol says which protocol the reply arrived on.
	Protocol Protocol

	// Op is the ICP opcode; meaningful only when Protocol is ICP.
	Op Opcode

	// Hit is the HTCP hit bit; meaningful only when Protocol is HTCP.
	Hit bool

	// SrcRTT reports whether the reply carried an RTT measurement
	// (the ICP source-RTT flag; HTCP replies set it when RTT is known).
	SrcRTT bool

	// RTT is the peer's measured round-trip time toward the origin in
	// milliseconds, valid when SrcRTT is set.
	RTT int

	// Hops is the peer's measured hop count toward the origin, valid when
	// SrcRTT is set.
	Hops int
}

// ReplyFunc ingests one decoded reply from a peer, together with the peer's
// relation for the request that was queried.
type ReplyFunc func(p *peer.Peer, relation peer.Relation, reply *Reply)

// Round describes a dispatched query round.
type Round struct {
	// Sent is the number of queries actually written to the network.
	Sent int

	// Expected is how many replies the client predicts, based on which
	// peers usually answer. It may be lower than Sent.
	Expected int

	// Timeout is the deadline the caller should apply before giving up on
	// outstanding replies.
	Timeout time.Duration
}

// Client fans a query for an entry out to the eligible neighbors. Replies
// are delivered through cb until the caller stops caring; the client drops
// late replies for entries it no longer tracks.
type Client interface {
	Ping(req *transport.Request, entry store.Entry, cb ReplyFunc) Round
}
