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

	"github.com/hoardcache/hoard/api/transport"
)

// checkNetdbDirect reports whether the measured topology argues for going
// straight to the origin: the origin is within the configured RTT or hop
// budget, or it measured closer than the closest parent miss. Without a
// network database it never argues for anything.
func (sel *selection) checkNetdbDirect() bool {
	if sel.s.netdb == nil {
		return false
	}
	if sel.direct == directNo {
		return false
	}

	rtt := sel.s.netdb.HostRTT(sel.req.Host)
	sel.s.logger.Debug("netdb direct check",
		zap.String("host", sel.req.Host),
		zap.Int("rtt", rtt),
		zap.Int("minimum_direct_rtt", sel.s.cfg.MinimumDirectRTT))
	if rtt > 0 && rtt <= sel.s.cfg.MinimumDirectRTT {
		return true
	}

	hops := sel.s.netdb.HostHops(sel.req.Host)
	if hops > 0 && hops <= sel.s.cfg.MinimumDirectHops {
		return true
	}

	if sel.closestMissPeer == nil {
		return false
	}
	return rtt > 0 && rtt <= sel.ping.PRTT
}

// selectSomeDirect queues the origin server, unless going direct is
// forbidden or the protocol is one the proxy cannot fetch natively.
func (sel *selection) selectSomeDirect() {
	if sel.direct == directNo {
		return
	}
	if sel.req.Protocol == transport.ProtocolWAIS {
		return
	}
	sel.addFwdServer(nil, transport.HierDirect)
}
