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
	"net/netip"
	"sync"

	"go.uber.org/zap"

	"github.com/hoardcache/hoard/api/acl"
	"github.com/hoardcache/hoard/api/peer"
	"github.com/hoardcache/hoard/api/store"
	"github.com/hoardcache/hoard/api/transport"
	"github.com/hoardcache/hoard/internal/clock"
	"github.com/hoardcache/hoard/internal/liveness"
)

// directState is the arbiter's verdict on going to the origin.
type directState int

const (
	directUnknown directState = iota
	directNo
	directMaybe
	directYes
)

var directNames = [...]string{"DIRECT_UNKNOWN", "DIRECT_NO", "DIRECT_MAYBE", "DIRECT_YES"}

func (d directState) String() string {
	if d < directUnknown || d > directYes {
		return "INVALID"
	}
	return directNames[d]
}

// fwdServer is one queued forwarding candidate: a peer, or nil for the
// origin, plus the hierarchy code explaining the choice. The queue feeds
// the DNS walker.
type fwdServer struct {
	peer *peer.Peer
	code transport.HierarchyCode
}

type aclKind int

const (
	aclAlwaysDirect aclKind = iota
	aclNeverDirect
)

// selection is one in-flight decision. Its mutex serializes every step;
// external subsystems re-enter through the completion methods, which take
// the lock, check caller liveness, advance the machine, and perform the next
// external dispatch only after unlocking.
type selection struct {
	s *Selector

	mu       sync.Mutex
	req      *transport.Request
	entry    store.Entry
	callback func([]*transport.Destination)
	guard    *liveness.Guard
	token    liveness.Token

	direct       directState
	alwaysDirect int // 0 unqueried, +1 yes, -1 no
	neverDirect  int

	aclPending bool
	checklist  acl.Checklist

	servers []*fwdServer
	paths   []*transport.Destination

	hit             *peer.Peer
	hitType         peer.Relation
	closestMiss     netip.Addr
	closestMissPeer *peer.Peer
	firstMiss       netip.Addr
	firstMissPeer   *peer.Peer

	ping         transport.PingData
	pingRecorded bool
	pingTimer    clock.Timer

	dnsHost  string
	finished bool
	released bool
}

// selectMore advances the selection as far as it can without blocking and
// returns the external dispatch to perform next: an access-control check,
// the neighbor query fan-out, the next DNS lookup, or the finishing step.
// Callers hold sel.mu and run the returned dispatch after unlocking.
func (sel *selection) selectMore() func() {
	if sel.direct == directUnknown {
		switch {
		case sel.alwaysDirect == 0 && sel.s.always != nil && sel.s.acl != nil:
			return sel.launchACL(aclAlwaysDirect, sel.s.always)
		case sel.alwaysDirect > 0:
			sel.direct = directYes
		case sel.neverDirect == 0 && sel.s.never != nil && sel.s.acl != nil:
			return sel.launchACL(aclNeverDirect, sel.s.never)
		case sel.neverDirect > 0:
			sel.direct = directNo
		case sel.req.Flags.NoDirect:
			sel.direct = directNo
		case sel.req.Flags.LoopDetect:
			sel.direct = directYes
		case sel.checkNetdbDirect():
			sel.direct = directYes
		default:
			sel.direct = directMaybe
		}
		sel.s.logger.Debug("directness decided",
			zap.String("host", sel.req.Host),
			zap.Stringer("direct", sel.direct))
	}

	if sel.entry == nil || sel.entry.PingStatus() == store.PingNone {
		sel.selectPinned()
	}
	if sel.entry != nil {
		switch sel.entry.PingStatus() {
		case store.PingNone:
			if d := sel.selectSomeNeighbor(); d != nil {
				return d
			}
		case store.PingWaiting:
			sel.selectSomeNeighborReplies()
			sel.entry.SetPingStatus(store.PingDone)
		}
	}

	switch sel.direct {
	case directYes:
		sel.selectSomeDirect()
	case directNo:
		sel.selectSomeParent()
		sel.selectAllParents()
	default:
		if sel.s.cfg.PreferDirect {
			sel.selectSomeDirect()
		}
		if sel.req.Flags.Hierarchical || !sel.s.cfg.NonhierarchicalDirect {
			sel.selectSomeParent()
		}
		if !sel.s.cfg.PreferDirect {
			sel.selectSomeDirect()
		}
	}

	return sel.resolveStep()
}

// launchACL suspends the arbiter on an access-control check. Called with
// sel.mu held; the returned dispatch performs the check unlocked. The
// checklist handle is stored only while the check is outstanding, so a
// checker that completes synchronously leaves nothing behind.
func (sel *selection) launchACL(kind aclKind, rules acl.Rules) func() {
	sel.aclPending = true
	return func() {
		h := sel.s.acl.NonBlockingCheck(rules, sel.req, func(answer acl.Answer) {
			sel.aclDone(kind, answer)
		})
		sel.mu.Lock()
		if sel.aclPending {
			sel.checklist = h
		}
		sel.mu.Unlock()
	}
}

// aclDone resumes the arbiter with an access-control answer.
func (sel *selection) aclDone(kind aclKind, answer acl.Answer) {
	sel.mu.Lock()
	if sel.finished {
		sel.mu.Unlock()
		return
	}
	sel.aclPending = false
	sel.checklist = nil
	if !sel.token.Valid() {
		sel.abortLocked()
		sel.mu.Unlock()
		return
	}

	verdict := -1
	if answer == acl.Allowed {
		verdict = 1
	}
	switch kind {
	case aclAlwaysDirect:
		sel.s.logger.Debug("always_direct answered", zap.Stringer("answer", answer))
		sel.alwaysDirect = verdict
	case aclNeverDirect:
		sel.s.logger.Debug("never_direct answered", zap.Stringer("answer", answer))
		sel.neverDirect = verdict
	}

	d := sel.selectMore()
	sel.mu.Unlock()
	if d != nil {
		d()
	}
}

// addFwdServer queues one forwarding candidate. Insertion order is
// preserved through to resolution.
func (sel *selection) addFwdServer(p *peer.Peer, code transport.HierarchyCode) {
	host := "DIRECT"
	if p != nil {
		host = p.Host
	}
	sel.s.logger.Debug("adding forward server",
		zap.String("peer", host),
		zap.Stringer("code", code))
	sel.servers = append(sel.servers, &fwdServer{peer: p, code: code})
}

// stopPingTimer cancels the outstanding reply deadline, if any.
func (sel *selection) stopPingTimer() {
	if sel.pingTimer != nil {
		sel.pingTimer.Stop()
		sel.pingTimer = nil
	}
}

// abortLocked winds the selection down without invoking the callback, for
// callers that went away between suspensions. Called with sel.mu held.
func (sel *selection) abortLocked() {
	sel.finished = true
	sel.releaseLocked()
}

// releaseLocked returns everything the selection holds: the reply deadline,
// the outstanding access-control check, the entry lock, the queued
// candidates, and the request reference. Called with sel.mu held; safe to
// call twice.
func (sel *selection) releaseLocked() {
	if sel.released {
		return
	}
	sel.released = true

	sel.stopPingTimer()
	if sel.checklist != nil {
		sel.checklist.Cancel()
		sel.checklist = nil
		sel.aclPending = false
	}
	if sel.entry != nil {
		if sel.entry.PingStatus() != store.PingDone {
			sel.entry.SetPingStatus(store.PingDone)
		}
		sel.entry.Unlock()
		sel.entry = nil
	}
	sel.servers = nil
	sel.req.Unref()
}
