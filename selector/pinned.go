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

	"github.com/hoardcache/hoard/api/store"
	"github.com/hoardcache/hoard/api/transport"
)

// selectPinned prefers the request's pinned connection over everything the
// hierarchy could come up with. A valid pin to a usable peer, or to the
// origin when going direct is not forbidden, becomes the head candidate and
// skips the neighbor query phase entirely.
func (sel *selection) selectPinned() {
	pinned := sel.req.Pinned
	if pinned == nil {
		return
	}
	if !pinned.Validate(sel.req) {
		return
	}

	p := pinned.Peer()
	switch {
	case p != nil && sel.s.neighbors.AllowedToUse(p, sel.req):
		sel.s.logger.Debug("using pinned peer", zap.String("peer", p.Name))
		sel.addFwdServer(p, transport.HierPinned)
	case p == nil && sel.direct != directNo:
		sel.s.logger.Debug("using pinned origin connection")
		sel.addFwdServer(nil, transport.HierPinned)
	default:
		return
	}

	if sel.entry != nil {
		sel.entry.SetPingStatus(store.PingDone)
	}
}
