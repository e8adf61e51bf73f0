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

import "time"

// HierarchyCode tags a destination with the reason it was chosen. The codes
// appear verbatim in the access log.
type HierarchyCode int

const (
	// HierNone is the zero value; it never reaches a destination.
	HierNone HierarchyCode = iota

	// HierDirect marks a destination that is the origin server itself.
	HierDirect

	// HierPinned marks the target of a pinned connection.
	HierPinned

	// HierCDParentHit marks a parent selected by cache-digest lookup.
	HierCDParentHit

	// HierCDSiblingHit marks a sibling selected by cache-digest lookup.
	HierCDSiblingHit

	// HierClosestParent marks the parent with the lowest RTT estimate in
	// the network database.
	HierClosestParent

	// HierClosestParentMiss marks the parent whose MISS reply carried the
	// lowest measured RTT.
	HierClosestParentMiss

	// HierFirstParentMiss marks the parent whose weighted MISS reply
	// arrived first.
	HierFirstParentMiss

	// HierParentHit marks a parent that answered HIT.
	HierParentHit

	// HierSiblingHit marks a sibling that answered HIT.
	HierSiblingHit

	// HierClosestDirect marks a direct fetch chosen because the origin is
	// measurably closer than any parent.
	HierClosestDirect

	// HierDefaultParent marks the configured parent of last resort.
	HierDefaultParent

	// HierUserHashParent marks a parent picked by username hashing.
	HierUserHashParent

	// HierSourceHashParent marks a parent picked by client-address hashing.
	HierSourceHashParent

	// HierCarp marks a parent picked by the CARP hash.
	HierCarp

	// HierRoundRobinParent marks a parent picked from a rotation.
	HierRoundRobinParent

	// HierFirstUpParent marks the first alive parent in configured order.
	HierFirstUpParent

	// HierAnyOldParent marks a parent of last resort when nothing better
	// applied.
	HierAnyOldParent
)

var hierarchyCodeNames = [...]string{
	"NONE",
	"HIER_DIRECT",
	"PINNED",
	"CD_PARENT_HIT",
	"CD_SIBLING_HIT",
	"CLOSEST_PARENT",
	"CLOSEST_PARENT_MISS",
	"FIRST_PARENT_MISS",
	"PARENT_HIT",
	"SIBLING_HIT",
	"CLOSEST_DIRECT",
	"DEFAULT_PARENT",
	"USERHASH_PARENT",
	"SOURCEHASH_PARENT",
	"CARP",
	"ROUNDROBIN_PARENT",
	"FIRSTUP_PARENT",
	"ANY_OLD_PARENT",
}

func (c HierarchyCode) String() string {
	if c < HierNone || c > HierAnyOldParent {
		return "INVALID"
	}
	return hierarchyCodeNames[c]
}

// PingData aggregates one neighbor query round.
type PingData struct {
	// NSent is the number of queries dispatched.
	NSent int

	// NRecv is the number of replies received before finalization.
	NRecv int

	// NRepliesExpected is the reply quorum reported by the query client.
	NRepliesExpected int

	// Timeout is the reply deadline that was applied.
	Timeout time.Duration

	// Timedout reports whether the deadline fired before the quorum.
	Timedout bool

	// Start and Stop bound the round.
	Start time.Time
	Stop  time.Time

	// WRTT is the running weighted RTT used for first-miss tracking, in
	// milliseconds.
	WRTT int

	// PRTT is the measured RTT of the closest parent miss, in
	// milliseconds.
	PRTT int
}
