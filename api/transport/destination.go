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

import (
	"fmt"
	"net/netip"

	"github.com/hoardcache/hoard/api/peer"
)

// Destination is one concrete place a request can be forwarded to: a
// resolved remote address plus the reason it was chosen. The forwarding
// layer walks destinations in order until one of them works.
type Destination struct {
	// Remote is the resolved address and port to connect to.
	Remote netip.AddrPort

	// Peer is the neighbor cache behind Remote, nil for the origin server.
	Peer *peer.Peer

	// Code is the hierarchy code explaining the choice.
	Code HierarchyCode

	// Local is the configured outgoing address for this destination; the
	// zero Addr leaves source selection to the kernel.
	Local netip.Addr
}

func (d *Destination) String() string {
	who := "origin"
	if d.Peer != nil {
		who = d.Peer.Name
	}
	return fmt.Sprintf("%s/%s/%s", d.Remote, who, d.Code)
}
