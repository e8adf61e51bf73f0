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

package dnscache

import (
	"fmt"
	"net/netip"
	"sync"

	apidns "github.com/hoardcache/hoard/api/dnscache"
)

// Static is a fixed host table implementing the resolver contract. It
// answers synchronously and rotates through each host's addresses, which
// makes it useful in tests and for hosts file overrides.
type Static struct {
	mu    sync.Mutex
	hosts map[string][]netip.Addr
	hits  map[string]int
}

var _ apidns.Resolver = (*Static)(nil)

// NewStatic builds a static resolver from a host table.
func NewStatic(hosts map[string][]netip.Addr) *Static {
	copied := make(map[string][]netip.Addr, len(hosts))
	for h, addrs := range hosts {
		copied[h] = append([]netip.Addr(nil), addrs...)
	}
	return &Static{hosts: copied, hits: make(map[string]int)}
}

// LookupHost implements dnscache.Resolver. The callback runs before
// LookupHost returns.
func (s *Static) LookupHost(host string, done func(*apidns.Result, error)) {
	s.mu.Lock()
	addrs, ok := s.hosts[host]
	var cur int
	if ok && len(addrs) > 0 {
		cur = s.hits[host] % len(addrs)
		s.hits[host]++
	}
	s.mu.Unlock()

	if !ok || len(addrs) == 0 {
		done(nil, fmt.Errorf("host %q not found", host))
		return
	}
	done(&apidns.Result{Cur: cur, Addrs: addrs}, nil)
}
