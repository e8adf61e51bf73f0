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

// Package selector decides where a request is forwarded: to a neighbor
// cache or straight to the origin. Given a request and, usually, its cache
// entry, it produces an ordered list of resolved destinations and hands the
// list to a one-shot callback.
//
// A selection is an asynchronous pipeline. It may suspend on access-control
// checks, on ICP/HTCP replies, and on DNS lookups, and it resumes when the
// respective subsystem calls back. The caller can walk away at any time by
// invoking the cancel function returned by Select; the pipeline then winds
// down without firing the callback.
package selector

import (
	"errors"

	"go.uber.org/net/metrics"
	"go.uber.org/zap"

	"github.com/hoardcache/hoard/api/acl"
	"github.com/hoardcache/hoard/api/dnscache"
	"github.com/hoardcache/hoard/api/netdb"
	"github.com/hoardcache/hoard/api/peer"
	"github.com/hoardcache/hoard/api/ping"
	"github.com/hoardcache/hoard/api/store"
	"github.com/hoardcache/hoard/api/transport"
	"github.com/hoardcache/hoard/internal/clock"
	"github.com/hoardcache/hoard/internal/liveness"
)

// Neighbors is the selector's view of the configured peer set.
// *neighbors.Registry implements it.
type Neighbors interface {
	// Peers returns the configured peers in configuration order.
	Peers() []*peer.Peer

	// NeighborType reports the peer's relation for the request.
	NeighborType(p *peer.Peer, req *transport.Request) peer.Relation

	// AllowedToUse reports whether the peer may handle the request at all.
	AllowedToUse(p *peer.Peer, req *transport.Request) bool

	// HTTPOkay reports whether the peer may be handed the request right
	// now.
	HTTPOkay(p *peer.Peer, req *transport.Request) bool

	// Count reports how many peers would be queried for the request.
	Count(req *transport.Request) int

	// DigestSelect consults the neighbor cache digests.
	DigestSelect(req *transport.Request) *peer.Peer

	// The deterministic parent strategies, each returning a parent or nil.
	DefaultParent(req *transport.Request) *peer.Peer
	UserHashSelectParent(req *transport.Request) *peer.Peer
	SourceHashSelectParent(req *transport.Request) *peer.Peer
	CARPSelectParent(req *transport.Request) *peer.Peer
	RoundRobinParent(req *transport.Request) *peer.Peer
	WeightedRoundRobinParent(req *transport.Request) *peer.Peer
	FirstUpParent(req *transport.Request) *peer.Peer
	AnyParent(req *transport.Request) *peer.Peer
}

// OutgoingAddressFunc fills in a destination's configured source address.
type OutgoingAddressFunc func(req *transport.Request, dest *transport.Destination)

type options struct {
	logger   *zap.Logger
	meter    *metrics.Scope
	clock    clock.Clock
	acl      acl.Checker
	always   acl.Rules
	never    acl.Rules
	netdb    netdb.Database
	pinger   ping.Client
	outgoing OutgoingAddressFunc
}

// Option customizes a Selector.
type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }

// Logger specifies a logger.
func Logger(logger *zap.Logger) Option {
	return optionFunc(func(o *options) { o.logger = logger })
}

// Meter specifies the metrics scope counters are registered on.
func Meter(meter *metrics.Scope) Option {
	return optionFunc(func(o *options) { o.meter = meter })
}

// WithClock overrides the clock, for tests.
func WithClock(c clock.Clock) Option {
	return optionFunc(func(o *options) { o.clock = c })
}

// ACL installs the access-control checker.
func ACL(checker acl.Checker) Option {
	return optionFunc(func(o *options) { o.acl = checker })
}

// AlwaysDirect installs the access list that forces requests to the origin.
func AlwaysDirect(rules acl.Rules) Option {
	return optionFunc(func(o *options) { o.always = rules })
}

// NeverDirect installs the access list that forbids going to the origin.
func NeverDirect(rules acl.Rules) Option {
	return optionFunc(func(o *options) { o.never = rules })
}

// NetDB installs the network measurement database.
func NetDB(db netdb.Database) Option {
	return optionFunc(func(o *options) { o.netdb = db })
}

// Pinger installs the ICP/HTCP query client. Without one, neighbor queries
// are never sent.
func Pinger(client ping.Client) Option {
	return optionFunc(func(o *options) { o.pinger = client })
}

// OutgoingAddress installs the hook that picks configured source addresses
// for destinations.
func OutgoingAddress(f OutgoingAddressFunc) Option {
	return optionFunc(func(o *options) { o.outgoing = f })
}

// Selector is the peer selection engine. One Selector serves the whole
// process; each Select call runs an independent selection.
type Selector struct {
	cfg       Config
	neighbors Neighbors
	resolver  dnscache.Resolver

	logger   *zap.Logger
	clock    clock.Clock
	acl      acl.Checker
	always   acl.Rules
	never    acl.Rules
	netdb    netdb.Database
	pinger   ping.Client
	outgoing OutgoingAddressFunc
	stats    *stats
}

// New builds a Selector. The neighbor set and the resolver are mandatory;
// everything else arrives through options and degrades gracefully when
// absent.
func New(cfg Config, nbrs Neighbors, resolver dnscache.Resolver, opts ...Option) (*Selector, error) {
	if nbrs == nil {
		return nil, errors.New("selector requires a neighbor registry")
	}
	if resolver == nil {
		return nil, errors.New("selector requires a resolver")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	options := options{}
	for _, o := range opts {
		o.apply(&options)
	}
	if options.logger == nil {
		options.logger = zap.NewNop()
	}
	if options.clock == nil {
		options.clock = clock.NewReal()
	}

	return &Selector{
		cfg:       cfg,
		neighbors: nbrs,
		resolver:  resolver,
		logger:    options.logger,
		clock:     options.clock,
		acl:       options.acl,
		always:    options.always,
		never:     options.never,
		netdb:     options.netdb,
		pinger:    options.pinger,
		outgoing:  options.outgoing,
		stats:     newStats(options.meter, options.logger),
	}, nil
}

// Select starts a selection for req. The entry may be nil for uncacheable
// requests. The callback is invoked exactly once with the destinations in
// preference order; an empty list means nothing viable was found. The
// returned cancel function detaches the caller: after it returns, the
// callback will not fire (cancelling after the callback fired is a no-op).
func (s *Selector) Select(req *transport.Request, entry store.Entry, callback func([]*transport.Destination)) (cancel func()) {
	if entry != nil {
		s.logger.Debug("peer selection started", zap.String("url", entry.URL()))
	} else {
		s.logger.Debug("peer selection started", zap.String("method", req.Method), zap.String("host", req.Host))
	}
	s.stats.selections.Inc()

	guard := &liveness.Guard{}
	sel := &selection{
		s:        s,
		req:      req.Ref(),
		entry:    entry,
		callback: callback,
		guard:    guard,
		token:    guard.Token(),
	}
	if entry != nil {
		entry.Lock()
	}

	sel.mu.Lock()
	d := sel.selectMore()
	sel.mu.Unlock()
	if d != nil {
		d()
	}
	return guard.Invalidate
}
