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

// DefaultParent returns the first usable parent marked default, or nil.
func (r *Registry) DefaultParent(req *transport.Request) *peer.Peer {
	for _, p := range r.peers {
		if r.NeighborType(p, req) != peer.Parent {
			continue
		}
		if !p.Options.Default {
			continue
		}
		if !r.HTTPOkay(p, req) {
			continue
		}
		return p
	}
	return nil
}

// FirstUpParent returns the first alive, usable parent in configuration
// order, or nil.
func (r *Registry) FirstUpParent(req *transport.Request) *peer.Peer {
	for _, p := range r.peers {
		if r.NeighborType(p, req) != peer.Parent {
			continue
		}
		if !r.HTTPOkay(p, req) {
			continue
		}
		return p
	}
	return nil
}

// AnyParent returns the first parent that is merely allowed to take the
// request, alive or not. It backs the last strategy in the chain, where
// handing a possibly-dead parent out beats returning nothing.
func (r *Registry) AnyParent(req *transport.Request) *peer.Peer {
	for _, p := range r.peers {
		if r.NeighborType(p, req) != peer.Parent {
			continue
		}
		if !r.AllowedToUse(p, req) {
			continue
		}
		return p
	}
	return nil
}
