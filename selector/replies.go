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
	"time"

	"go.uber.org/zap"

	"github.com/hoardcache/hoard/api/peer"
	"github.com/hoardcache/hoard/api/ping"
	"github.com/hoardcache/hoard/api/store"
	"github.com/hoardcache/hoard/api/transport"
)

// handlePingReply ingests one decoded ICP or HTCP reply. A HIT finalizes
// the neighbor phase immediately; otherwise the phase waits for the reply
// quorum or the deadline. Replies are processed one at a time, so the
// outcome is deterministic in the order of arrival.
func (sel *selection) handlePingReply(p *peer.Peer, relation peer.Relation, reply *ping.Reply) {
	sel.mu.Lock()
	if sel.finished {
		sel.mu.Unlock()
		return
	}
	if !sel.token.Valid() {
		sel.abortLocked()
		sel.mu.Unlock()
		return
	}
	if sel.entry == nil || sel.entry.PingStatus() != store.PingWaiting {
		sel.s.logger.Debug("dropping ping reply outside a query round",
			zap.String("peer", p.Host))
		sel.mu.Unlock()
		return
	}

	finalize := false
	switch reply.Protocol {
	case ping.ProtocolICP:
		sel.s.logger.Debug("ICP reply",
			zap.Stringer("op", reply.Op),
			zap.String("peer", p.Host),
			zap.String("url", sel.entry.URL()))
		sel.ping.NRecv++
		p.Stats.Replies.Inc()
		switch reply.Op {
		case ping.OpMiss, ping.OpDecho:
			if relation == peer.Parent {
				sel.parentMiss(p, reply)
			}
		case ping.OpHit:
			sel.hit = p
			sel.hitType = relation
			finalize = true
		}

	case ping.ProtocolHTCP:
		sel.s.logger.Debug("HTCP reply",
			zap.Bool("hit", reply.Hit),
			zap.String("peer", p.Host),
			zap.String("url", sel.entry.URL()))
		sel.ping.NRecv++
		p.Stats.Replies.Inc()
		if reply.Hit {
			sel.hit = p
			sel.hitType = relation
			finalize = true
		} else if relation == peer.Parent {
			sel.parentMiss(p, reply)
		}

	default:
		sel.s.logger.Warn("ping reply with unknown protocol",
			zap.Int("protocol", int(reply.Protocol)),
			zap.String("peer", p.Host))
		sel.mu.Unlock()
		return
	}

	if !finalize && sel.pingRecorded && sel.ping.NRecv >= sel.ping.NRepliesExpected {
		finalize = true
	}

	var d func()
	if finalize {
		d = sel.selectMore()
	}
	sel.mu.Unlock()
	if d != nil {
		d()
	}
}

// parentMiss folds a parent's MISS into the running miss state. A measured
// RTT feeds the network database and competes for closest parent; the
// weighted arrival time competes for first parent, but only while no
// closest parent is known and only for peers not limited to closest-only
// selection.
func (sel *selection) parentMiss(p *peer.Peer, reply *ping.Reply) {
	if sel.s.cfg.QueryICMP && sel.s.netdb != nil && reply.SrcRTT {
		if reply.RTT > 0 && reply.RTT < 0xFFFF {
			sel.s.netdb.UpdatePeer(sel.req, p, reply.RTT, reply.Hops)
		}
		if reply.RTT > 0 && (sel.ping.PRTT == 0 || reply.RTT < sel.ping.PRTT) {
			sel.closestMissPeer = p
			sel.closestMiss = p.Addr
			sel.ping.PRTT = reply.RTT
			sel.s.logger.Debug("closest parent miss",
				zap.Stringer("addr", sel.closestMiss),
				zap.Int("rtt", reply.RTT))
		}
	}

	if p.Options.ClosestOnly {
		return
	}
	if sel.closestMissPeer != nil {
		return
	}

	elapsed := int(sel.s.clock.Now().Sub(sel.ping.Start) / time.Millisecond)
	w := (elapsed - p.Basetime) / p.EffectiveWeight()
	if w < 1 {
		w = 1
	}
	if sel.firstMissPeer == nil || w < sel.ping.WRTT {
		sel.firstMissPeer = p
		sel.firstMiss = p.Addr
		sel.ping.WRTT = w
		sel.s.logger.Debug("first parent miss",
			zap.Stringer("addr", sel.firstMiss),
			zap.Int("weighted_rtt", w))
	}
}

// selectSomeNeighborReplies finalizes the neighbor phase from the collected
// replies: the origin if it measured closer than every parent, else the
// first HIT, else the closest parent miss, else the first parent miss.
// Called with sel.mu held and entry ping status PingWaiting.
func (sel *selection) selectSomeNeighborReplies() {
	sel.stopPingTimer()

	if sel.checkNetdbDirect() {
		sel.s.logger.Debug("neighbor selected",
			zap.Stringer("code", transport.HierClosestDirect),
			zap.String("host", sel.req.Host))
		sel.addFwdServer(nil, transport.HierClosestDirect)
		return
	}

	var (
		p    *peer.Peer
		code transport.HierarchyCode
	)
	if sel.hit != nil {
		p = sel.hit
		if sel.hitType == peer.Parent {
			code = transport.HierParentHit
		} else {
			code = transport.HierSiblingHit
		}
	} else if sel.closestMissPeer != nil {
		p = sel.closestMissPeer
		code = transport.HierClosestParentMiss
	} else if sel.firstMissPeer != nil {
		p = sel.firstMissPeer
		code = transport.HierFirstParentMiss
	}

	if p != nil && code != transport.HierNone {
		sel.s.logger.Debug("neighbor selected",
			zap.Stringer("code", code),
			zap.String("peer", p.Host))
		sel.addFwdServer(p, code)
	}
}
