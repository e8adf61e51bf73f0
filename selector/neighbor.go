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

// selectSomeNeighbor picks a neighbor by the first method that answers
// locally: cache digests, then the network database's closest parent. When
// neither answers and policy permits, it fans an ICP/HTCP query round out
// and suspends. Called with sel.mu held and entry ping status PingNone; a
// non-nil return is the unlocked ping dispatch.
func (sel *selection) selectSomeNeighbor() func() {
	entry := sel.entry
	if sel.direct == directYes {
		entry.SetPingStatus(store.PingDone)
		return nil
	}

	var (
		p    *peer.Peer
		code transport.HierarchyCode
	)
	if p = sel.s.neighbors.DigestSelect(sel.req); p != nil {
		if sel.s.neighbors.NeighborType(p, sel.req) == peer.Parent {
			code = transport.HierCDParentHit
		} else {
			code = transport.HierCDSiblingHit
		}
	} else if sel.s.netdb != nil {
		if p = sel.s.netdb.ClosestParent(sel.req); p != nil {
			code = transport.HierClosestParent
		}
	}

	if p == nil && sel.pingPermitted() && sel.s.neighbors.Count(sel.req) > 0 {
		sel.s.logger.Debug("sending neighbor queries", zap.String("url", entry.URL()))
		sel.ping.Start = sel.s.clock.Now()
		entry.SetPingStatus(store.PingWaiting)
		return sel.dispatchPing
	}

	if code != transport.HierNone {
		sel.s.logger.Debug("neighbor selected",
			zap.Stringer("code", code),
			zap.String("peer", p.Host))
		sel.addFwdServer(p, code)
	}
	entry.SetPingStatus(store.PingDone)
	return nil
}

// pingPermitted applies the policy gates on query fan-out: only
// hierarchical requests are announced to neighbors, and privately-keyed
// entries only when configuration allows it. A request that cannot go
// direct escapes both gates, because a neighbor is then its only way out.
func (sel *selection) pingPermitted() bool {
	if sel.s.pinger == nil {
		return false
	}
	if !sel.req.Flags.Hierarchical && sel.direct != directNo {
		return false
	}
	if sel.entry.KeyPrivate() && !sel.s.cfg.NeighborsDoPrivateKeys && sel.direct != directNo {
		return false
	}
	return true
}

// dispatchPing performs the query fan-out. Runs unlocked; the entry is
// already PingWaiting so replies that race the bookkeeping are counted.
func (sel *selection) dispatchPing() {
	round := sel.s.pinger.Ping(sel.req, sel.entry, sel.handlePingReply)
	sel.recordPingRound(round)
}

// recordPingRound ingests the fan-out result. With replies expected it arms
// the deadline and suspends; otherwise the neighbor phase concludes on the
// spot.
func (sel *selection) recordPingRound(round ping.Round) {
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

	sel.ping.NSent = round.Sent
	sel.ping.NRepliesExpected = round.Expected
	sel.ping.Timeout = round.Timeout
	sel.pingRecorded = true

	if round.Sent == 0 {
		sel.s.logger.Warn("no neighbor queries could be sent")
	} else {
		sel.s.logger.Debug("neighbor queries sent",
			zap.Int("sent", round.Sent),
			zap.Int("expected", round.Expected),
			zap.Duration("timeout", round.Timeout))
	}

	var d func()
	if round.Expected > 0 {
		if sel.hit != nil || sel.ping.NRecv >= round.Expected {
			// Replies beat the bookkeeping; finalize right away.
			d = sel.selectMore()
		} else {
			timeout := round.Timeout
			if timeout < time.Millisecond {
				timeout = time.Millisecond
			}
			sel.ping.Timeout = timeout
			sel.pingTimer = sel.s.clock.AfterFunc(timeout, sel.pingTimeout)
		}
	} else {
		sel.entry.SetPingStatus(store.PingDone)
		d = sel.selectMore()
	}
	sel.mu.Unlock()
	if d != nil {
		d()
	}
}

// pingTimeout fires when the reply deadline passes. The aggregator then
// finalizes with whatever arrived.
func (sel *selection) pingTimeout() {
	sel.mu.Lock()
	if sel.finished {
		sel.mu.Unlock()
		return
	}
	sel.pingTimer = nil
	if !sel.token.Valid() {
		sel.abortLocked()
		sel.mu.Unlock()
		return
	}
	if sel.entry == nil || sel.entry.PingStatus() != store.PingWaiting {
		sel.mu.Unlock()
		return
	}

	sel.s.logger.Debug("neighbor query timeout", zap.String("url", sel.entry.URL()))
	sel.s.stats.timeouts.Inc()
	sel.ping.Timedout = true

	d := sel.selectMore()
	sel.mu.Unlock()
	if d != nil {
		d()
	}
}
