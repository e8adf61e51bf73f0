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

package selector

import (
	"go.uber.org/zap"

	"github.com/hoardcache/hoard/api/peer"
	"github.com/hoardcache/hoard/api/transport"
)

// selectSomeParent runs the deterministic parent strategies in fixed
// priority order and queues the first match. The order is part of the
// engine's contract: configured default first, then the keyed hashes, then
// the rotations, then anything that is up, then anything at all.
func (sel *selection) selectSomeParent() {
	if sel.direct == directYes {
		return
	}
	sel.s.logger.Debug("selecting parent",
		zap.String("method", sel.req.Method),
		zap.String("host", sel.req.Host))

	var (
		p    *peer.Peer
		code transport.HierarchyCode
	)
	nbrs := sel.s.neighbors
	if p = nbrs.DefaultParent(sel.req); p != nil {
		code = transport.HierDefaultParent
	} else if p = nbrs.UserHashSelectParent(sel.req); p != nil {
		code = transport.HierUserHashParent
	} else if p = nbrs.SourceHashSelectParent(sel.req); p != nil {
		code = transport.HierSourceHashParent
	} else if p = nbrs.CARPSelectParent(sel.req); p != nil {
		code = transport.HierCarp
	} else if p = nbrs.RoundRobinParent(sel.req); p != nil {
		code = transport.HierRoundRobinParent
	} else if p = nbrs.WeightedRoundRobinParent(sel.req); p != nil {
		code = transport.HierRoundRobinParent
	} else if p = nbrs.FirstUpParent(sel.req); p != nil {
		code = transport.HierFirstUpParent
	} else if p = nbrs.AnyParent(sel.req); p != nil {
		code = transport.HierAnyOldParent
	}

	if code != transport.HierNone {
		sel.s.logger.Debug("parent selected",
			zap.Stringer("code", code),
			zap.String("peer", p.Host))
		sel.addFwdServer(p, code)
	}
}

// selectAllParents queues every alive, usable parent, then the default
// parent as the very last resort. It backs the never-direct path, where an
// empty list would leave the request with nowhere to go.
func (sel *selection) selectAllParents() {
	nbrs := sel.s.neighbors
	for _, p := range nbrs.Peers() {
		if nbrs.NeighborType(p, sel.req) != peer.Parent {
			continue
		}
		if !nbrs.HTTPOkay(p, sel.req) {
			continue
		}
		sel.s.logger.Debug("adding alive parent", zap.String("peer", p.Host))
		sel.addFwdServer(p, transport.HierAnyOldParent)
	}

	// Dead parents are not offered, and that includes the default parent;
	// an alive default parent is queued once more at the end, because it is
	// configured to be the answer when nothing else is.
	if p := nbrs.DefaultParent(sel.req); p != nil {
		sel.addFwdServer(p, transport.HierDefaultParent)
	}
}
