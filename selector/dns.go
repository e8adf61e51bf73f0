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

	"go.uber.org/zap"

	"github.com/hoardcache/hoard/api/dnscache"
	"github.com/hoardcache/hoard/api/transport"
)

// resolveStep turns queued candidates into resolved destinations, one DNS
// lookup at a time. Called with sel.mu held; returns the unlocked dispatch
// for the next lookup, or the finishing dispatch once the queue is drained
// or the destination cap is reached.
func (sel *selection) resolveStep() func() {
	if len(sel.servers) > 0 && len(sel.paths) < sel.s.cfg.ForwardMaxTries {
		fs := sel.servers[0]
		// Pin the host before the queue advances, so failures log the
		// host that was actually looked up.
		host := sel.req.Host
		if fs.peer != nil {
			host = fs.peer.Host
		}
		sel.dnsHost = host
		sel.s.logger.Debug("resolving destination",
			zap.String("host", host),
			zap.Stringer("code", fs.code))
		return func() {
			sel.s.resolver.LookupHost(host, sel.dnsDone)
		}
	}
	return sel.finishStep()
}

// dnsDone ingests one lookup result, materializes destinations for the head
// candidate, and moves on to the next.
func (sel *selection) dnsDone(res *dnscache.Result, err error) {
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

	host := sel.dnsHost
	sel.req.Hier.RecordLookup(host, err)

	fs := sel.servers[0]
	if res != nil && len(res.Addrs) > 0 {
		for n := 0; n < len(res.Addrs); n++ {
			if len(sel.paths) >= sel.s.cfg.ForwardMaxTries {
				break
			}
			addr := res.Addrs[(res.Cur+n)%len(res.Addrs)]

			// Spoofing the client address binds the destination to the
			// client's address family.
			if sel.req.Flags.SpoofClientIP && !(fs.peer != nil && fs.peer.Options.NoTproxy) {
				if addr.Is4() != sel.req.ClientAddr.Is4() {
					continue
				}
			}

			port := sel.req.Port
			if fs.peer != nil {
				port = fs.peer.HTTPPort
			}
			dest := &transport.Destination{
				Remote: netip.AddrPortFrom(addr, port),
				Peer:   fs.peer,
				Code:   fs.code,
			}
			if sel.s.outgoing != nil {
				sel.s.outgoing(sel.req, dest)
			}
			sel.paths = append(sel.paths, dest)
		}
	} else {
		sel.s.logger.Debug("unknown host", zap.String("host", host), zap.Error(err))
	}

	sel.servers = sel.servers[1:]
	d := sel.resolveStep()
	sel.mu.Unlock()
	d()
}

// finishStep seals the selection: stamps the ping aggregate onto the
// request, and returns the dispatch that delivers the destinations — unless
// the caller went away — and releases the context. Called with sel.mu held.
func (sel *selection) finishStep() func() {
	sel.finished = true

	url := sel.req.URL()
	if sel.entry != nil {
		url = sel.entry.URL()
	}
	if len(sel.paths) == 0 {
		sel.s.stats.empty.Inc()
		sel.s.logger.Info("failed to select source",
			zap.String("url", url),
			zap.Int("always_direct", sel.alwaysDirect),
			zap.Int("never_direct", sel.neverDirect),
			zap.Bool("timedout", sel.ping.Timedout))
	} else {
		sel.s.logger.Debug("found destinations",
			zap.String("url", url),
			zap.Int("count", len(sel.paths)))
	}

	sel.ping.Stop = sel.s.clock.Now()
	sel.req.Hier.SetPing(sel.ping)

	callback := sel.callback
	sel.callback = nil
	paths := sel.paths
	valid := sel.token.Valid()

	return func() {
		if valid && callback != nil {
			callback(paths)
		}
		sel.mu.Lock()
		sel.releaseLocked()
		sel.mu.Unlock()
	}
}
