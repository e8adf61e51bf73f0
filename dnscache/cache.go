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

// Package dnscache implements the resolver-cache contract: a bounded,
// TTL-respecting table of resolved names in front of a plain DNS client.
// Cached answers are delivered synchronously; misses resolve on their own
// goroutine so callers never block.
package dnscache

import (
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/miekg/dns"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	apidns "github.com/hoardcache/hoard/api/dnscache"
	"github.com/hoardcache/hoard/internal/clock"
)

const (
	defaultSize   = 8192
	defaultMinTTL = 30 * time.Second
	defaultMaxTTL = time.Hour
)

type options struct {
	logger  *zap.Logger
	clock   clock.Clock
	size    int
	servers []string
	minTTL  time.Duration
	maxTTL  time.Duration
}

// Option customizes a Cache.
type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }

// Logger specifies a logger.
func Logger(logger *zap.Logger) Option {
	return optionFunc(func(o *options) { o.logger = logger })
}

// WithClock overrides the clock, for tests.
func WithClock(c clock.Clock) Option {
	return optionFunc(func(o *options) { o.clock = c })
}

// Size bounds the number of cached names.
func Size(n int) Option {
	return optionFunc(func(o *options) { o.size = n })
}

// Servers sets the upstream nameservers as host:port strings, bypassing
// resolv.conf discovery.
func Servers(servers ...string) Option {
	return optionFunc(func(o *options) { o.servers = servers })
}

// TTLBounds clamps answer lifetimes into [min, max].
func TTLBounds(min, max time.Duration) Option {
	return optionFunc(func(o *options) {
		o.minTTL = min
		o.maxTTL = max
	})
}

// Cache resolves and caches host addresses.
type Cache struct {
	logger  *zap.Logger
	clock   clock.Clock
	client  *dns.Client
	servers []string
	minTTL  time.Duration
	maxTTL  time.Duration

	mu      sync.Mutex
	entries *lru.Cache[string, *cacheEntry]
}

var _ apidns.Resolver = (*Cache)(nil)

type cacheEntry struct {
	addrs   []netip.Addr
	expires time.Time
	hits    int
}

// New builds a resolver cache. Without a Servers option the upstreams come
// from resolv.conf.
func New(opts ...Option) (*Cache, error) {
	options := options{
		size:   defaultSize,
		minTTL: defaultMinTTL,
		maxTTL: defaultMaxTTL,
	}
	for _, o := range opts {
		o.apply(&options)
	}
	if options.logger == nil {
		options.logger = zap.NewNop()
	}
	if options.clock == nil {
		options.clock = clock.NewReal()
	}

	servers := options.servers
	if len(servers) == 0 {
		conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
		if err != nil {
			return nil, fmt.Errorf("failed to discover nameservers: %v", err)
		}
		for _, s := range conf.Servers {
			servers = append(servers, net.JoinHostPort(s, conf.Port))
		}
	}
	if len(servers) == 0 {
		return nil, fmt.Errorf("no nameservers available")
	}

	entries, err := lru.New[string, *cacheEntry](options.size)
	if err != nil {
		return nil, err
	}

	return &Cache{
		logger:  options.logger,
		clock:   options.clock,
		client:  new(dns.Client),
		servers: servers,
		minTTL:  options.minTTL,
		maxTTL:  options.maxTTL,
		entries: entries,
	}, nil
}

// LookupHost implements dnscache.Resolver. Address literals and cached
// names answer synchronously; everything else resolves on a fresh
// goroutine.
func (c *Cache) LookupHost(host string, done func(*apidns.Result, error)) {
	if addr, err := netip.ParseAddr(host); err == nil {
		done(&apidns.Result{Addrs: []netip.Addr{addr}}, nil)
		return
	}

	c.mu.Lock()
	if e, ok := c.entries.Get(host); ok && c.clock.Now().Before(e.expires) {
		cur := e.hits % len(e.addrs)
		e.hits++
		addrs := e.addrs
		c.mu.Unlock()
		done(&apidns.Result{Cur: cur, Addrs: addrs}, nil)
		return
	}
	c.mu.Unlock()

	go c.resolve(host, done)
}

func (c *Cache) resolve(host string, done func(*apidns.Result, error)) {
	addrs, ttl, err := c.query(host)
	if err != nil || len(addrs) == 0 {
		if err == nil {
			err = fmt.Errorf("host %q has no addresses", host)
		}
		c.logger.Debug("resolution failed", zap.String("host", host), zap.Error(err))
		done(nil, err)
		return
	}

	if ttl < c.minTTL {
		ttl = c.minTTL
	}
	if ttl > c.maxTTL {
		ttl = c.maxTTL
	}

	c.mu.Lock()
	c.entries.Add(host, &cacheEntry{
		addrs:   addrs,
		expires: c.clock.Now().Add(ttl),
		hits:    1,
	})
	c.mu.Unlock()

	done(&apidns.Result{Addrs: addrs}, nil)
}

// query asks the upstreams for A and AAAA records, returning the combined
// addresses and the smallest answer TTL.
func (c *Cache) query(host string) ([]netip.Addr, time.Duration, error) {
	var (
		addrs []netip.Addr
		ttl   = c.maxTTL
		errs  error
	)
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		msg := new(dns.Msg)
		msg.SetQuestion(dns.Fqdn(host), qtype)
		msg.RecursionDesired = true

		var resp *dns.Msg
		var err error
		for _, server := range c.servers {
			resp, _, err = c.client.Exchange(msg, server)
			if err == nil {
				break
			}
		}
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}

		for _, rr := range resp.Answer {
			var ip netip.Addr
			var ok bool
			switch record := rr.(type) {
			case *dns.A:
				ip, ok = netip.AddrFromSlice(record.A.To4())
			case *dns.AAAA:
				ip, ok = netip.AddrFromSlice(record.AAAA)
			default:
				continue
			}
			if !ok {
				continue
			}
			addrs = append(addrs, ip)
			if d := time.Duration(rr.Header().Ttl) * time.Second; d < ttl {
				ttl = d
			}
		}
	}
	if len(addrs) == 0 && errs != nil {
		return nil, 0, errs
	}
	return addrs, ttl, nil
}
