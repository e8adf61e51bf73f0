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

package neighbors

import (
	"github.com/hoardcache/hoard/api/peer"
	"github.com/hoardcache/hoard/api/transport"
)

// The rotation strategies share one usage counter per peer. Plain
// round-robin charges one unit per selection; the weighted variant charges
// the peer's RTT scaled down by its weight, so fast or heavy peers are
// picked more often.

// RoundRobinParent returns the least-used parent from the round-robin
// rotation and charges it one unit. Ties go to the later peer in
// configuration order.
func (r *Registry) RoundRobinParent(req *transport.Request) *peer.Peer {
	var q *peer.Peer
	for _, p := range r.peers {
		if !p.Options.RoundRobin {
			continue
		}
		if r.NeighborType(p, req) != peer.Parent {
			continue
		}
		if !r.HTTPOkay(p, req) {
			continue
		}
		if q != nil && q.Stats.RRCount.Load() < p.Stats.RRCount.Load() {
			continue
		}
		q = p
	}
	if q != nil {
		q.Stats.RRCount.Inc()
	}
	return q
}

// WeightedRoundRobinParent returns the least-charged parent from the
// weighted rotation and charges it its weighted RTT, floored at one unit so
// unmeasured peers still rotate.
func (r *Registry) WeightedRoundRobinParent(req *transport.Request) *peer.Peer {
	var q *peer.Peer
	for _, p := range r.peers {
		if !p.Options.WeightedRoundRobin {
			continue
		}
		if r.NeighborType(p, req) != peer.Parent {
			continue
		}
		if !r.HTTPOkay(p, req) {
			continue
		}
		if q != nil && q.Stats.RRCount.Load() < p.Stats.RRCount.Load() {
			continue
		}
		q = p
	}
	if q != nil {
		charge := q.Stats.RTT.Load() / int64(q.EffectiveWeight())
		if charge < 1 {
			charge = 1
		}
		q.Stats.RRCount.Add(charge)
	}
	return q
}
