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
	"math"
	"sort"
	"strconv"

	"github.com/hoardcache/hoard/api/peer"
	"github.com/hoardcache/hoard/api/transport"
)

// The CARP hash family. A pool is the subset of peers opted into one keyed
// hash (CARP proper keys on the URL, userhash on the login, sourcehash on
// the client address). Membership hashes and load multipliers are fixed at
// registry construction; only the request key varies.

type hashPool struct {
	members []*peer.Peer
	hash    map[*peer.Peer]uint32
	mult    map[*peer.Peer]float64
}

func newHashPool(peers []*peer.Peer, member func(*peer.Peer) bool) *hashPool {
	pool := &hashPool{
		hash: make(map[*peer.Peer]uint32),
		mult: make(map[*peer.Peer]float64),
	}
	for _, p := range peers {
		if member(p) {
			pool.members = append(pool.members, p)
			pool.hash[p] = memberHash(p)
		}
	}
	pool.computeMultipliers()
	return pool
}

// memberHash hashes the peer's identity. The port participates only when it
// is not the default, so rings built from default-port configurations agree
// with peers that omit the port.
func memberHash(p *peer.Peer) uint32 {
	h := hashKey(p.Host)
	if p.HTTPPort != 0 && p.HTTPPort != 80 {
		h += hashKey(strconv.Itoa(int(p.HTTPPort)))
	}
	return h
}

// computeMultipliers derives each member's load multiplier from its relative
// weight using the cascading formula from the CARP specification: members
// are ranked by load factor ascending, and each multiplier folds in the
// product of the ones before it.
func (pool *hashPool) computeMultipliers() {
	k := len(pool.members)
	if k == 0 {
		return
	}

	total := 0.0
	for _, p := range pool.members {
		total += float64(p.EffectiveWeight())
	}

	ranked := make([]*peer.Peer, k)
	copy(ranked, pool.members)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].EffectiveWeight() < ranked[j].EffectiveWeight()
	})

	var (
		pLast = 0.0
		xLast = 0.0
		prod  = 1.0
	)
	for i, p := range ranked {
		kk1 := float64(k - i)
		load := float64(p.EffectiveWeight()) / total

		x := kk1 * (load - pLast) / prod
		x += math.Pow(xLast, kk1)
		x = math.Pow(x, 1.0/kk1)

		pool.mult[p] = x
		prod *= x
		xLast = x
		pLast = load
	}
}

// selectBest scores every usable parent in the pool against the request key
// and returns the highest scorer, or nil when the pool is empty or nothing
// is usable.
func (pool *hashPool) selectBest(r *Registry, req *transport.Request, key string) *peer.Peer {
	if len(pool.members) == 0 {
		return nil
	}
	kh := hashKey(key)

	var (
		best  *peer.Peer
		score float64
	)
	for _, p := range pool.members {
		if r.NeighborType(p, req) != peer.Parent {
			continue
		}
		if !r.HTTPOkay(p, req) {
			continue
		}
		combined := kh ^ pool.hash[p]
		combined += combined * 0x62531965
		combined = rotl32(combined, 21)
		s := float64(combined) * pool.mult[p]
		if best == nil || s > score {
			best, score = p, s
		}
	}
	return best
}

// hashKey is the CARP string hash: accumulate each byte over a 19-bit
// rotation.
func hashKey(s string) uint32 {
	var h uint32
	for i := 0; i < len(s); i++ {
		h += rotl32(h, 19) + uint32(s[i])
	}
	return h
}

func rotl32(x uint32, n uint) uint32 {
	return x<<n | x>>(32-n)
}

// CARPSelectParent picks a parent by hashing the request URL against the
// CARP pool.
func (r *Registry) CARPSelectParent(req *transport.Request) *peer.Peer {
	return r.carpPool.selectBest(r, req, req.URL())
}

// UserHashSelectParent picks a parent by hashing the request's login name.
// Requests without credentials never match.
func (r *Registry) UserHashSelectParent(req *transport.Request) *peer.Peer {
	if req.Login == "" {
		return nil
	}
	return r.userHashPool.selectBest(r, req, req.Login)
}

// SourceHashSelectParent picks a parent by hashing the client address.
func (r *Registry) SourceHashSelectParent(req *transport.Request) *peer.Peer {
	if !req.ClientAddr.IsValid() {
		return nil
	}
	return r.sourceHashPool.selectBest(r, req, req.ClientAddr.String())
}
