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

// Package netdb keeps measured round-trip times and hop counts per origin
// network, gathered from ICMP probes and from RTT hints that neighbors embed
// in their replies. Measurements decay through exponential smoothing and
// the table is bounded, evicting the networks asked about least recently.
package netdb

import (
	"net/netip"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	apinetdb "github.com/hoardcache/hoard/api/netdb"
	"github.com/hoardcache/hoard/api/peer"
	"github.com/hoardcache/hoard/api/transport"
)

// Neighbors is the view of the peer set the database needs to pick a
// closest parent. *neighbors.Registry implements it.
type Neighbors interface {
	Peers() []*peer.Peer
	NeighborType(p *peer.Peer, req *transport.Request) peer.Relation
	HTTPOkay(p *peer.Peer, req *transport.Request) bool
}

const (
	defaultSize = 4096

	// smoothing is the weight of a new measurement when folded into the
	// running estimate.
	smoothing = 0.5
)

type options struct {
	logger *zap.Logger
	size   int
}

// Option customizes a DB.
type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }

// Logger specifies a logger.
func Logger(logger *zap.Logger) Option {
	return optionFunc(func(o *options) { o.logger = logger })
}

// Size bounds the number of tracked networks.
func Size(n int) Option {
	return optionFunc(func(o *options) { o.size = n })
}

// DB is the in-memory network database.
type DB struct {
	mu     sync.Mutex
	nets   *lru.Cache[string, *netEntry]
	nbrs   Neighbors
	logger *zap.Logger
}

var _ apinetdb.Database = (*DB)(nil)

type measurement struct {
	rtt  float64 // milliseconds
	hops float64
}

type netEntry struct {
	direct measurement
	peers  map[string]measurement // keyed by peer name
}

// New builds a database. The neighbor view may be nil, in which case
// ClosestParent never answers.
func New(nbrs Neighbors, opts ...Option) (*DB, error) {
	options := options{size: defaultSize}
	for _, o := range opts {
		o.apply(&options)
	}
	if options.logger == nil {
		options.logger = zap.NewNop()
	}

	nets, err := lru.New[string, *netEntry](options.size)
	if err != nil {
		return nil, err
	}
	return &DB{nets: nets, nbrs: nbrs, logger: options.logger}, nil
}

// Update folds a direct measurement toward the host's network into the
// database. ICMP probing feeds this.
func (db *DB) Update(host string, rtt, hops int) {
	if rtt <= 0 {
		return
	}
	db.mu.Lock()
	e := db.entry(host)
	e.direct = fold(e.direct, rtt, hops)
	db.mu.Unlock()
}

// HostRTT implements netdb.Database.
func (db *DB) HostRTT(host string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	if e, ok := db.nets.Get(networkKey(host)); ok {
		return int(e.direct.rtt)
	}
	return 0
}

// HostHops implements netdb.Database.
func (db *DB) HostHops(host string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	if e, ok := db.nets.Get(networkKey(host)); ok {
		return int(e.direct.hops)
	}
	return 0
}

// UpdatePeer implements netdb.Database: it folds a peer's advertised
// measurement toward the request's origin into the database, unless the
// peer opted out of measurement exchange.
func (db *DB) UpdatePeer(req *transport.Request, p *peer.Peer, rtt, hops int) {
	if p.Options.NoNetdbExchange {
		return
	}
	if rtt <= 0 {
		return
	}
	db.logger.Debug("peer measurement",
		zap.String("peer", p.Name),
		zap.String("host", req.Host),
		zap.Int("rtt", rtt),
		zap.Int("hops", hops))

	db.mu.Lock()
	e := db.entry(req.Host)
	e.peers[p.Name] = fold(e.peers[p.Name], rtt, hops)
	db.mu.Unlock()

	// Keep the peer's own RTT estimate warm for weighted rotation.
	old := p.Stats.RTT.Load()
	if old == 0 {
		p.Stats.RTT.Store(int64(rtt))
	} else {
		p.Stats.RTT.Store((old + int64(rtt)) / 2)
	}
}

// ClosestParent implements netdb.Database: the usable parent with the
// lowest recorded RTT toward the request's origin, provided it beats going
// direct when a direct measurement exists.
func (db *DB) ClosestParent(req *transport.Request) *peer.Peer {
	if db.nbrs == nil {
		return nil
	}

	db.mu.Lock()
	e, ok := db.nets.Get(networkKey(req.Host))
	if !ok {
		db.mu.Unlock()
		return nil
	}
	directRTT := e.direct.rtt
	measured := make(map[string]float64, len(e.peers))
	for name, m := range e.peers {
		measured[name] = m.rtt
	}
	db.mu.Unlock()

	var (
		best    *peer.Peer
		bestRTT float64
	)
	for _, p := range db.nbrs.Peers() {
		rtt, ok := measured[p.Name]
		if !ok || rtt <= 0 {
			continue
		}
		if db.nbrs.NeighborType(p, req) != peer.Parent {
			continue
		}
		if !db.nbrs.HTTPOkay(p, req) {
			continue
		}
		if directRTT > 0 && rtt >= directRTT {
			continue
		}
		if best == nil || rtt < bestRTT {
			best, bestRTT = p, rtt
		}
	}
	return best
}

// entry returns the network entry for host, creating it if needed. Called
// with mu held.
func (db *DB) entry(host string) *netEntry {
	key := networkKey(host)
	if e, ok := db.nets.Get(key); ok {
		return e
	}
	e := &netEntry{peers: make(map[string]measurement)}
	db.nets.Add(key, e)
	return e
}

func fold(m measurement, rtt, hops int) measurement {
	if m.rtt == 0 {
		return measurement{rtt: float64(rtt), hops: float64(hops)}
	}
	m.rtt = m.rtt*(1-smoothing) + float64(rtt)*smoothing
	m.hops = m.hops*(1-smoothing) + float64(hops)*smoothing
	return m
}

// networkKey maps a host to its aggregation bucket: a /24 for IPv4
// literals, a /48 for IPv6 literals, the lowercased name otherwise.
func networkKey(host string) string {
	if addr, err := netip.ParseAddr(host); err == nil {
		bits := 24
		if addr.Is6() && !addr.Is4In6() {
			bits = 48
		}
		if prefix, err := addr.Prefix(bits); err == nil {
			return prefix.String()
		}
	}
	return strings.ToLower(host)
}
