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

// Package dnscache is the selection engine's contract with the resolver
// cache. Lookups are asynchronous; results carry a rotation cursor so
// repeated lookups of a popular name spread load across its addresses.
package dnscache

import "net/netip"

// Result is a resolved address set. Addrs is never empty in a non-nil
// Result; Cur indexes the address to try first and consumers wrap around
// from there.
type Result struct {
	// Cur is the rotation cursor, always a valid index into Addrs.
	Cur int

	// Addrs are the resolved addresses in resolver order.
	Addrs []netip.Addr
}

// Resolver performs non-blocking host lookups. The done callback is invoked
// exactly once, possibly before LookupHost returns; a nil Result means the
// host did not resolve and err says why.
type Resolver interface {
	LookupHost(host string, done func(res *Result, err error))
}
