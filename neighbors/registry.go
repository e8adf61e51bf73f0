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

// Package neighbors keeps the configured peer set and answers the selection
// engine's questions about it: which peers exist, which relate to a request
// as parents or siblings, which may be used at all, and which deterministic
// parent strategy picks whom.
package neighbors

import (
	"net/netip"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hoardcache/hoard/api/peer"
	"github.com/hoardcache/hoard/api/transport"
	"github.com/hoardcache/hoard/internal/clock"
)

// DigestSelector looks a request up in the cache digests advertised by
// neighbors. It is optional; without one, digest selection never matches.
type DigestSelector interface {
	Select(req *transport.Request) *peer.Peer
}

type options struct {
	logger      *zap.Logger
	clock       clock.Clock
	deadTimeout time.Duration
	digest      DigestSelector
}

var defaultOptions = options{
	deadTimeout: 10 * time.Minute,
}

// Option customizes a Registry.
type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }

// Logger specifies a logger.
func Logger(logger *zap.Logger) Option {
	return optionFunc(func(o *options) { o.logger = logger })
}

// WithClock overrides the clock used for peer liveness decisions.
func WithClock(c clock.Clock) Option {
	return optionFunc(func(o *options) { o.clock = c })
}

// DeadPeerTimeout sets how long a peer marked down stays out of rotation
// before it is retried.
func DeadPeerTimeout(d time.Duration) Option {
	return optionFunc(func(o *options) { o.deadTimeout = d })
}

// Digest installs a cache-digest selector.
func Digest(d DigestSelector) Option {
	return optionFunc(func(o *options) { o.digest = d })
}

// Registry is the configured peer set. Its peer slice is fixed at
// construction; only per-peer runtime state mutates afterwards.
type Registry struct {
	peers       []*peer.Peer
	byAddr      map[netip.Addr]*peer.Peer
	logger      *zap.Logger
	clock       clock.Clock
	deadTimeout time.Duration
	digest      DigestSelector

	carpPool       *hashPool
	userHashPool   *hashPool
	sourceHashPool *hashPool
}

// New builds a registry from the configured peers.
func New(peers []*peer.Peer, opts ...Option) (*Registry, error) {
	options := defaultOptions
	for _, o := range opts {
		o.apply(&options)
	}
	if options.logger == nil {
		options.logger = zap.NewNop()
	}
	if options.clock == nil {
		options.clock = clock.NewReal()
	}

	var errs error
	seen := make(map[string]struct{}, len(peers))
	byAddr := make(map[netip.Addr]*peer.Peer, len(peers))
	for _, p := range peers {
		if p.Name == "" {
			errs = multierr.Append(errs, peer.ErrInvalidPeer{Name: p.Host, Reason: "empty name"})
			continue
		}
		if _, ok := seen[p.Name]; ok {
			errs = multierr.Append(errs, peer.ErrPeerAlreadyInRegistry(p.Name))
			continue
		}
		seen[p.Name] = struct{}{}
		if p.Host == "" {
			errs = multierr.Append(errs, peer.ErrInvalidPeer{Name: p.Name, Reason: "empty host"})
		}
		if p.Type != peer.Parent && p.Type != peer.Sibling {
			errs = multierr.Append(errs, peer.ErrInvalidPeer{Name: p.Name, Reason: "type must be parent or sibling"})
		}
		if p.Addr.IsValid() {
			byAddr[p.Addr] = p
		}
	}
	if errs != nil {
		return nil, errs
	}

	r := &Registry{
		peers:       peers,
		byAddr:      byAddr,
		logger:      options.logger,
		clock:       options.clock,
		deadTimeout: options.deadTimeout,
		digest:      options.digest,
	}
	r.carpPool = newHashPool(peers, func(p *peer.Peer) bool { return p.Options.CARP })
	r.userHashPool = newHashPool(peers, func(p *peer.Peer) bool { return p.Options.UserHash })
	r.sourceHashPool = newHashPool(peers, func(p *peer.Peer) bool { return p.Options.SourceHash })
	return r, nil
}

// Peers returns the configured peers in configuration order. Callers must
// not mutate the slice.
func (r *Registry) Peers() []*peer.Peer {
	return r.peers
}

// ByAddr maps a reply's source address back to the peer it belongs to.
func (r *Registry) ByAddr(addr netip.Addr) *peer.Peer {
	return r.byAddr[addr]
}

// NeighborType reports the peer's relation for the request. Today this is
// the configured relation; per-domain overrides would hook in here.
func (r *Registry) NeighborType(p *peer.Peer, req *transport.Request) peer.Relation {
	return p.Type
}

// AllowedToUse reports whether the peer may handle the request at all.
// Siblings cannot take non-hierarchical requests, and a peer with a domain
// restriction only takes requests under those domains.
func (r *Registry) AllowedToUse(p *peer.Peer, req *transport.Request) bool {
	if r.NeighborType(p, req) == peer.Sibling && !req.Flags.Hierarchical {
		return false
	}
	if len(p.Domains) > 0 && !domainMatch(req.Host, p.Domains) {
		return false
	}
	return true
}

// HTTPOkay reports whether the peer may be handed this request right now:
// allowed, and believed alive.
func (r *Registry) HTTPOkay(p *peer.Peer, req *transport.Request) bool {
	return r.AllowedToUse(p, req) && p.Stats.Alive(r.clock.Now(), r.deadTimeout)
}

// WouldBePinged reports whether the peer takes part in the query fan-out for
// this request.
func (r *Registry) WouldBePinged(p *peer.Peer, req *transport.Request) bool {
	if !r.AllowedToUse(p, req) {
		return false
	}
	if !p.WouldBePinged() {
		return false
	}
	if r.NeighborType(p, req) != peer.Parent && !req.Flags.Hierarchical {
		return false
	}
	return p.Stats.Alive(r.clock.Now(), r.deadTimeout)
}

// Count returns how many peers would be queried for the request.
func (r *Registry) Count(req *transport.Request) int {
	n := 0
	for _, p := range r.peers {
		if r.WouldBePinged(p, req) {
			n++
		}
	}
	return n
}

// DigestSelect consults the cache digests, if a selector is installed.
func (r *Registry) DigestSelect(req *transport.Request) *peer.Peer {
	if r.digest == nil {
		return nil
	}
	return r.digest.Select(req)
}

// domainMatch reports whether host equals one of the domains or falls under
// it as a subdomain.
func domainMatch(host string, domains []string) bool {
	host = strings.ToLower(host)
	for _, d := range domains {
		d = strings.ToLower(strings.TrimPrefix(d, "."))
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
