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
	"fmt"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/net/metrics"

	"github.com/hoardcache/hoard/api/acl"
	apidns "github.com/hoardcache/hoard/api/dnscache"
	"github.com/hoardcache/hoard/api/peer"
	"github.com/hoardcache/hoard/api/ping"
	"github.com/hoardcache/hoard/api/store"
	"github.com/hoardcache/hoard/api/store/storetest"
	"github.com/hoardcache/hoard/api/transport"
	"github.com/hoardcache/hoard/dnscache"
	"github.com/hoardcache/hoard/internal/clock"
	"github.com/hoardcache/hoard/neighbors"
	"github.com/hoardcache/hoard/netdb"
)

// test fixtures

type fakeRules string

func (r fakeRules) Name() string { return string(r) }

type noopChecklist struct{}

func (noopChecklist) Cancel() {}

// syncACL answers immediately from a fixed table of rule-name verdicts.
type syncACL struct {
	answers map[string]acl.Answer
	checked []string
}

func (c *syncACL) NonBlockingCheck(rules acl.Rules, req *transport.Request, done func(acl.Answer)) acl.Checklist {
	c.checked = append(c.checked, rules.Name())
	done(c.answers[rules.Name()])
	return noopChecklist{}
}

// manualACL holds every check until the test completes it.
type manualACL struct {
	mu      sync.Mutex
	pending []func(acl.Answer)
	names   []string
}

func (c *manualACL) NonBlockingCheck(rules acl.Rules, req *transport.Request, done func(acl.Answer)) acl.Checklist {
	c.mu.Lock()
	c.pending = append(c.pending, done)
	c.names = append(c.names, rules.Name())
	c.mu.Unlock()
	return noopChecklist{}
}

func (c *manualACL) complete(answer acl.Answer) {
	c.mu.Lock()
	done := c.pending[0]
	c.pending = c.pending[1:]
	c.mu.Unlock()
	done(answer)
}

// fakePinger records the fan-out and lets the test inject replies.
type fakePinger struct {
	round  ping.Round
	cb     ping.ReplyFunc
	pinged int
}

func (f *fakePinger) Ping(req *transport.Request, entry store.Entry, cb ping.ReplyFunc) ping.Round {
	f.pinged++
	f.cb = cb
	return f.round
}

func (f *fakePinger) reply(p *peer.Peer, rel peer.Relation, r *ping.Reply) {
	f.cb(p, rel, r)
}

// manualResolver holds every lookup until the test completes it.
type manualResolver struct {
	mu      sync.Mutex
	pending []func(*apidns.Result, error)
	hosts   []string
}

func (r *manualResolver) LookupHost(host string, done func(*apidns.Result, error)) {
	r.mu.Lock()
	r.pending = append(r.pending, done)
	r.hosts = append(r.hosts, host)
	r.mu.Unlock()
}

func (r *manualResolver) complete(res *apidns.Result, err error) {
	r.mu.Lock()
	done := r.pending[0]
	r.pending = r.pending[1:]
	r.mu.Unlock()
	done(res, err)
}

type fakePinned struct {
	peer  *peer.Peer
	valid bool
}

func (f *fakePinned) Peer() *peer.Peer                 { return f.peer }
func (f *fakePinned) Validate(*transport.Request) bool { return f.valid }

func addr(s string) netip.Addr { return netip.MustParseAddr(s) }

var nextPeerOctet atomic.Int64

func parentPeer(name, host string, icpPort uint16) *peer.Peer {
	octet := nextPeerOctet.Inc()%200 + 1
	return &peer.Peer{
		Name:     name,
		Host:     host,
		HTTPPort: 3128,
		ICPPort:  icpPort,
		Addr:     addr(fmt.Sprintf("192.0.2.%d", octet)),
		Type:     peer.Parent,
	}
}

type collected struct {
	mu    sync.Mutex
	calls int
	paths []*transport.Destination
}

func (c *collected) callback(paths []*transport.Destination) {
	c.mu.Lock()
	c.calls++
	c.paths = paths
	c.mu.Unlock()
}

func codes(paths []*transport.Destination) []transport.HierarchyCode {
	out := make([]transport.HierarchyCode, len(paths))
	for i, p := range paths {
		out[i] = p.Code
	}
	return out
}

func newRequest(host string) *transport.Request {
	return &transport.Request{
		Method:     "GET",
		Host:       host,
		Port:       80,
		ClientAddr: addr("203.0.113.7"),
		Flags:      transport.Flags{Hierarchical: true},
	}
}

func mustRegistry(t *testing.T, fc clock.Clock, peers ...*peer.Peer) *neighbors.Registry {
	t.Helper()
	reg, err := neighbors.New(peers, neighbors.WithClock(fc))
	require.NoError(t, err)
	return reg
}

func TestDirectOnlyShortcut(t *testing.T) {
	fc := clock.NewFake()
	reg := mustRegistry(t, fc)
	resolver := dnscache.NewStatic(map[string][]netip.Addr{
		"origin.example": {addr("10.0.0.1"), addr("10.0.0.2")},
	})
	pinger := &fakePinger{round: ping.Round{Sent: 1, Expected: 1, Timeout: time.Second}}
	cfg := DefaultConfig()
	cfg.ForwardMaxTries = 5

	checker := &syncACL{answers: map[string]acl.Answer{"always": acl.Allowed}}
	s, err := New(cfg, reg, resolver,
		WithClock(fc),
		ACL(checker),
		AlwaysDirect(fakeRules("always")),
		Pinger(pinger))
	require.NoError(t, err)

	entry := &storetest.Entry{EntryURL: "http://origin.example/"}
	var got collected
	s.Select(newRequest("origin.example"), entry, got.callback)

	require.Equal(t, 1, got.calls)
	require.Len(t, got.paths, 2)
	assert.Equal(t, "10.0.0.1:80", got.paths[0].Remote.String())
	assert.Equal(t, "10.0.0.2:80", got.paths[1].Remote.String())
	assert.Equal(t, []transport.HierarchyCode{transport.HierDirect, transport.HierDirect}, codes(got.paths))

	// No queries went out, and the entry never waited.
	assert.Zero(t, pinger.pinged)
	assert.Equal(t, []store.PingStatus{store.PingDone}, entry.Transitions())
	assert.Zero(t, entry.Locks())
}

func TestICPHitWinsOverPendingReplies(t *testing.T) {
	fc := clock.NewFake()
	p1 := parentPeer("p1", "p1.example", 3130)
	p2 := parentPeer("p2", "p2.example", 3130)
	p3 := parentPeer("p3", "p3.example", 3130)
	reg := mustRegistry(t, fc, p1, p2, p3)
	resolver := dnscache.NewStatic(map[string][]netip.Addr{
		"p1.example":     {addr("10.1.0.1")},
		"p2.example":     {addr("10.2.0.1")},
		"p3.example":     {addr("10.3.0.1")},
		"origin.example": {addr("10.0.0.1")},
	})
	pinger := &fakePinger{round: ping.Round{Sent: 3, Expected: 3, Timeout: 2 * time.Second}}

	s, err := New(DefaultConfig(), reg, resolver, WithClock(fc), Pinger(pinger))
	require.NoError(t, err)

	entry := &storetest.Entry{EntryURL: "http://origin.example/"}
	var got collected
	s.Select(newRequest("origin.example"), entry, got.callback)

	// Suspended on the query round.
	require.Zero(t, got.calls)
	require.NotNil(t, pinger.cb)
	assert.Equal(t, store.PingWaiting, entry.PingStatus())

	pinger.reply(p2, peer.Parent, &ping.Reply{Protocol: ping.ProtocolICP, Op: ping.OpHit})

	require.Equal(t, 1, got.calls)
	require.NotEmpty(t, got.paths)
	assert.Equal(t, "10.2.0.1:3128", got.paths[0].Remote.String())
	assert.Equal(t, transport.HierParentHit, got.paths[0].Code)
	assert.Equal(t, store.PingDone, entry.PingStatus())

	// Stragglers change nothing.
	pinger.reply(p1, peer.Parent, &ping.Reply{Protocol: ping.ProtocolICP, Op: ping.OpMiss})
	pinger.reply(p3, peer.Parent, &ping.Reply{Protocol: ping.ProtocolICP, Op: ping.OpMiss})
	assert.Equal(t, 1, got.calls)

	// The reply deadline was cancelled with the round.
	fc.Add(5 * time.Second)
	assert.Equal(t, 1, got.calls)
}

func TestClosestParentMiss(t *testing.T) {
	run := func(t *testing.T, rtt1, rtt2 int, want *peer.Peer, p1, p2 *peer.Peer, reg *neighbors.Registry) {
		fc := clock.NewFake()
		resolver := dnscache.NewStatic(map[string][]netip.Addr{
			"p1.example":     {addr("10.1.0.1")},
			"p2.example":     {addr("10.2.0.1")},
			"origin.example": {addr("10.0.0.1")},
		})
		db, err := netdb.New(reg)
		require.NoError(t, err)
		pinger := &fakePinger{round: ping.Round{Sent: 2, Expected: 2, Timeout: 2 * time.Second}}

		cfg := DefaultConfig()
		cfg.QueryICMP = true
		s, err := New(cfg, reg, resolver, WithClock(fc), Pinger(pinger), NetDB(db))
		require.NoError(t, err)

		req := newRequest("origin.example")
		entry := &storetest.Entry{EntryURL: "http://origin.example/"}
		var got collected
		s.Select(req, entry, got.callback)
		require.Zero(t, got.calls)

		pinger.reply(p1, peer.Parent, &ping.Reply{Protocol: ping.ProtocolICP, Op: ping.OpMiss, SrcRTT: true, RTT: rtt1, Hops: 4})
		pinger.reply(p2, peer.Parent, &ping.Reply{Protocol: ping.ProtocolICP, Op: ping.OpMiss, SrcRTT: true, RTT: rtt2, Hops: 4})

		require.Equal(t, 1, got.calls)
		require.NotEmpty(t, got.paths)
		assert.Equal(t, transport.HierClosestParentMiss, got.paths[0].Code)
		assert.Same(t, want, got.paths[0].Peer)
	}

	t.Run("lowest rtt wins", func(t *testing.T) {
		fc := clock.NewFake()
		p1 := parentPeer("p1", "p1.example", 3130)
		p2 := parentPeer("p2", "p2.example", 3130)
		reg := mustRegistry(t, fc, p1, p2)
		run(t, 50, 30, p2, p1, p2, reg)
	})

	t.Run("ties resolve to the first reply", func(t *testing.T) {
		fc := clock.NewFake()
		p1 := parentPeer("p1", "p1.example", 3130)
		p2 := parentPeer("p2", "p2.example", 3130)
		reg := mustRegistry(t, fc, p1, p2)
		run(t, 30, 30, p1, p1, p2, reg)
	})
}

func TestPingTimeout(t *testing.T) {
	fc := clock.NewFake()
	s1 := &peer.Peer{Name: "s1", Host: "s1.example", HTTPPort: 3128, ICPPort: 3130, Type: peer.Sibling, Addr: addr("192.0.2.11")}
	s2 := &peer.Peer{Name: "s2", Host: "s2.example", HTTPPort: 3128, ICPPort: 3130, Type: peer.Sibling, Addr: addr("192.0.2.12")}
	reg := mustRegistry(t, fc, s1, s2)
	resolver := dnscache.NewStatic(map[string][]netip.Addr{
		"origin.example": {addr("10.0.0.1")},
	})
	pinger := &fakePinger{round: ping.Round{Sent: 2, Expected: 2, Timeout: 2 * time.Second}}

	root := metrics.New()
	s, err := New(DefaultConfig(), reg, resolver,
		WithClock(fc), Pinger(pinger), Meter(root.Scope()))
	require.NoError(t, err)

	req := newRequest("origin.example")
	entry := &storetest.Entry{EntryURL: "http://origin.example/"}
	var got collected
	s.Select(req, entry, got.callback)
	require.Zero(t, got.calls)

	fc.Add(2 * time.Second)

	require.Equal(t, 1, got.calls)
	// The neighbor phase yielded nothing; with no parents configured the
	// origin is the only destination.
	require.Len(t, got.paths, 1)
	assert.Equal(t, transport.HierDirect, got.paths[0].Code)

	assert.True(t, req.Hier.Ping.Timedout)
	assert.Equal(t, 2, req.Hier.Ping.NRepliesExpected)
	assert.Zero(t, req.Hier.Ping.NRecv)

	var timeouts int64
	for _, snap := range root.Snapshot().Counters {
		if snap.Name == "peer_select_timeouts" {
			timeouts = snap.Value
		}
	}
	assert.Equal(t, int64(1), timeouts)
}

func TestNeverDirectFallsBackToAllParents(t *testing.T) {
	fc := clock.NewFake()
	a := parentPeer("pa", "a.example", 0)
	b := parentPeer("pb", "b.example", 0)
	c := parentPeer("pc", "c.example", 0)
	reg := mustRegistry(t, fc, a, b, c)
	resolver := dnscache.NewStatic(map[string][]netip.Addr{
		"a.example":      {addr("10.1.0.1")},
		"b.example":      {addr("10.2.0.1")},
		"c.example":      {addr("10.3.0.1")},
		"origin.example": {addr("10.0.0.1")},
	})

	cfg := DefaultConfig()
	cfg.ForwardMaxTries = 3
	checker := &syncACL{answers: map[string]acl.Answer{"never": acl.Allowed}}
	s, err := New(cfg, reg, resolver,
		WithClock(fc), ACL(checker), NeverDirect(fakeRules("never")))
	require.NoError(t, err)

	entry := &storetest.Entry{EntryURL: "http://origin.example/"}
	var got collected
	s.Select(newRequest("origin.example"), entry, got.callback)

	require.Equal(t, 1, got.calls)
	require.Len(t, got.paths, 3)
	// The parent selector's first-up pick leads, then the fallback walks
	// the alive parents in order until the cap.
	assert.Equal(t, []transport.HierarchyCode{
		transport.HierFirstUpParent,
		transport.HierAnyOldParent,
		transport.HierAnyOldParent,
	}, codes(got.paths))
	assert.Same(t, a, got.paths[0].Peer)
	assert.Same(t, a, got.paths[1].Peer)
	assert.Same(t, b, got.paths[2].Peer)

	for _, p := range got.paths {
		assert.NotEqual(t, transport.HierDirect, p.Code)
		assert.NotEqual(t, transport.HierClosestDirect, p.Code)
	}
}

func TestPinnedConnectionShortCircuit(t *testing.T) {
	fc := clock.NewFake()
	p := parentPeer("p1", "p1.example", 3130)
	reg := mustRegistry(t, fc, p)
	resolver := dnscache.NewStatic(map[string][]netip.Addr{
		"p1.example":     {addr("10.1.0.1")},
		"origin.example": {addr("10.0.0.1")},
	})
	pinger := &fakePinger{round: ping.Round{Sent: 1, Expected: 1, Timeout: time.Second}}

	s, err := New(DefaultConfig(), reg, resolver, WithClock(fc), Pinger(pinger))
	require.NoError(t, err)

	req := newRequest("origin.example")
	req.Pinned = &fakePinned{peer: p, valid: true}
	entry := &storetest.Entry{EntryURL: "http://origin.example/"}
	var got collected
	s.Select(req, entry, got.callback)

	require.Equal(t, 1, got.calls)
	require.NotEmpty(t, got.paths)
	assert.Equal(t, transport.HierPinned, got.paths[0].Code)
	assert.Same(t, p, got.paths[0].Peer)

	// The pin skipped the query phase outright.
	assert.Zero(t, pinger.pinged)
	assert.Equal(t, []store.PingStatus{store.PingDone}, entry.Transitions())
}

func TestEmptySelection(t *testing.T) {
	fc := clock.NewFake()
	reg := mustRegistry(t, fc)
	resolver := dnscache.NewStatic(nil)

	checker := &syncACL{answers: map[string]acl.Answer{"never": acl.Allowed}}
	root := metrics.New()
	s, err := New(DefaultConfig(), reg, resolver,
		WithClock(fc), ACL(checker), NeverDirect(fakeRules("never")), Meter(root.Scope()))
	require.NoError(t, err)

	req := newRequest("origin.example")
	var got collected
	s.Select(req, nil, got.callback)

	require.Equal(t, 1, got.calls)
	assert.Empty(t, got.paths)
	assert.Zero(t, req.Refs())

	var empty int64
	for _, snap := range root.Snapshot().Counters {
		if snap.Name == "peer_select_empty" {
			empty = snap.Value
		}
	}
	assert.Equal(t, int64(1), empty)
}

func TestArbiterChecksAlwaysThenNever(t *testing.T) {
	fc := clock.NewFake()
	reg := mustRegistry(t, fc)
	resolver := dnscache.NewStatic(map[string][]netip.Addr{
		"origin.example": {addr("10.0.0.1")},
	})

	checker := &syncACL{answers: map[string]acl.Answer{
		"always": acl.Denied,
		"never":  acl.Denied,
	}}
	s, err := New(DefaultConfig(), reg, resolver,
		WithClock(fc),
		ACL(checker),
		AlwaysDirect(fakeRules("always")),
		NeverDirect(fakeRules("never")))
	require.NoError(t, err)

	var got collected
	s.Select(newRequest("origin.example"), nil, got.callback)

	assert.Equal(t, []string{"always", "never"}, checker.checked)
	require.Equal(t, 1, got.calls)
	require.Len(t, got.paths, 1)
	assert.Equal(t, transport.HierDirect, got.paths[0].Code)
}

func TestCancelDuringPingWait(t *testing.T) {
	fc := clock.NewFake()
	p1 := parentPeer("p1", "p1.example", 3130)
	reg := mustRegistry(t, fc, p1)
	resolver := dnscache.NewStatic(map[string][]netip.Addr{
		"origin.example": {addr("10.0.0.1")},
	})
	pinger := &fakePinger{round: ping.Round{Sent: 1, Expected: 1, Timeout: time.Second}}

	s, err := New(DefaultConfig(), reg, resolver, WithClock(fc), Pinger(pinger))
	require.NoError(t, err)

	req := newRequest("origin.example")
	entry := &storetest.Entry{EntryURL: "http://origin.example/"}
	var got collected
	cancel := s.Select(req, entry, got.callback)
	require.Zero(t, got.calls)
	require.Equal(t, store.PingWaiting, entry.PingStatus())

	cancel()

	// The cancellation is observed at the next resume point.
	fc.Add(time.Second)

	assert.Zero(t, got.calls)
	assert.Equal(t, store.PingDone, entry.PingStatus())
	assert.Zero(t, entry.Locks())
	assert.Zero(t, req.Refs())

	// A straggling reply after teardown is ignored.
	pinger.reply(p1, peer.Parent, &ping.Reply{Protocol: ping.ProtocolICP, Op: ping.OpHit})
	assert.Zero(t, got.calls)
}

func TestCancelDuringDNS(t *testing.T) {
	fc := clock.NewFake()
	reg := mustRegistry(t, fc)
	resolver := &manualResolver{}

	s, err := New(DefaultConfig(), reg, resolver, WithClock(fc))
	require.NoError(t, err)

	req := newRequest("origin.example")
	var got collected
	cancel := s.Select(req, nil, got.callback)
	require.Zero(t, got.calls)
	require.Equal(t, []string{"origin.example"}, resolver.hosts)

	cancel()
	resolver.complete(&apidns.Result{Addrs: []netip.Addr{addr("10.0.0.1")}}, nil)

	assert.Zero(t, got.calls)
	assert.Zero(t, req.Refs())
}

func TestCancelDuringACL(t *testing.T) {
	fc := clock.NewFake()
	reg := mustRegistry(t, fc)
	resolver := dnscache.NewStatic(map[string][]netip.Addr{
		"origin.example": {addr("10.0.0.1")},
	})

	checker := &manualACL{}
	s, err := New(DefaultConfig(), reg, resolver,
		WithClock(fc), ACL(checker), AlwaysDirect(fakeRules("always")))
	require.NoError(t, err)

	req := newRequest("origin.example")
	var got collected
	cancel := s.Select(req, nil, got.callback)
	require.Zero(t, got.calls)
	require.Equal(t, []string{"always"}, checker.names)

	cancel()
	checker.complete(acl.Allowed)

	assert.Zero(t, got.calls)
	assert.Zero(t, req.Refs())
}

func TestSpoofClientIPFiltersAddressFamily(t *testing.T) {
	fc := clock.NewFake()
	reg := mustRegistry(t, fc)
	resolver := dnscache.NewStatic(map[string][]netip.Addr{
		"origin.example": {addr("2001:db8::1"), addr("10.0.0.1")},
	})

	s, err := New(DefaultConfig(), reg, resolver, WithClock(fc))
	require.NoError(t, err)

	req := newRequest("origin.example")
	req.Flags.SpoofClientIP = true
	var got collected
	s.Select(req, nil, got.callback)

	require.Equal(t, 1, got.calls)
	require.Len(t, got.paths, 1)
	assert.Equal(t, "10.0.0.1:80", got.paths[0].Remote.String())
}

func TestSpoofClientIPRespectsNoTproxyPeer(t *testing.T) {
	fc := clock.NewFake()
	p := parentPeer("p1", "p1.example", 0)
	p.Options.NoTproxy = true
	reg := mustRegistry(t, fc, p)
	resolver := dnscache.NewStatic(map[string][]netip.Addr{
		"p1.example": {addr("2001:db8::5"), addr("10.1.0.1")},
	})

	s, err := New(DefaultConfig(), reg, resolver, WithClock(fc))
	require.NoError(t, err)

	req := newRequest("origin.example")
	req.Flags.SpoofClientIP = true
	req.Flags.NoDirect = true // accelerator: parents only
	var got collected
	s.Select(req, nil, got.callback)

	require.Equal(t, 1, got.calls)
	// Both of the peer's addresses survive; the peer opted out of
	// spoofing.
	var remotes []string
	for _, d := range got.paths {
		if d.Peer == p {
			remotes = append(remotes, d.Remote.String())
		}
	}
	assert.Contains(t, remotes, "[2001:db8::5]:3128")
	assert.Contains(t, remotes, "10.1.0.1:3128")
}

func TestUnknownHostSkipsRecord(t *testing.T) {
	fc := clock.NewFake()
	a := parentPeer("pa", "missing.example", 0)
	b := parentPeer("pb", "b.example", 0)
	reg := mustRegistry(t, fc, a, b)
	resolver := dnscache.NewStatic(map[string][]netip.Addr{
		"b.example": {addr("10.2.0.1")},
	})

	s, err := New(DefaultConfig(), reg, resolver, WithClock(fc))
	require.NoError(t, err)

	req := newRequest("origin.example")
	req.Flags.NoDirect = true
	var got collected
	s.Select(req, nil, got.callback)

	require.Equal(t, 1, got.calls)
	require.NotEmpty(t, got.paths)
	for _, d := range got.paths {
		assert.Same(t, b, d.Peer)
	}

	// The failed lookups are on record, attributed to the host that was
	// actually looked up.
	var failed []string
	for _, l := range req.Hier.Lookups {
		if l.Err != nil {
			failed = append(failed, l.Host)
		}
	}
	assert.Equal(t, []string{"missing.example", "missing.example"}, failed)
}

func TestZeroRepliesExpectedFinalizesImmediately(t *testing.T) {
	fc := clock.NewFake()
	p1 := parentPeer("p1", "p1.example", 3130)
	reg := mustRegistry(t, fc, p1)
	resolver := dnscache.NewStatic(map[string][]netip.Addr{
		"origin.example": {addr("10.0.0.1")},
		"p1.example":     {addr("10.1.0.1")},
	})
	pinger := &fakePinger{round: ping.Round{}}

	s, err := New(DefaultConfig(), reg, resolver, WithClock(fc), Pinger(pinger))
	require.NoError(t, err)

	req := newRequest("origin.example")
	entry := &storetest.Entry{EntryURL: "http://origin.example/"}
	var got collected
	s.Select(req, entry, got.callback)

	// Not an error: the selection concludes on the spot.
	require.Equal(t, 1, got.calls)
	require.NotEmpty(t, got.paths)
	assert.Equal(t, 1, pinger.pinged)
	assert.False(t, req.Hier.Ping.Timedout)
	assert.Equal(t, store.PingDone, entry.PingStatus())
}

func TestUnknownProtocolReplyIgnored(t *testing.T) {
	fc := clock.NewFake()
	p1 := parentPeer("p1", "p1.example", 3130)
	p2 := parentPeer("p2", "p2.example", 3130)
	reg := mustRegistry(t, fc, p1, p2)
	resolver := dnscache.NewStatic(map[string][]netip.Addr{
		"origin.example": {addr("10.0.0.1")},
		"p1.example":     {addr("10.1.0.1")},
		"p2.example":     {addr("10.2.0.1")},
	})
	pinger := &fakePinger{round: ping.Round{Sent: 2, Expected: 2, Timeout: 2 * time.Second}}

	s, err := New(DefaultConfig(), reg, resolver, WithClock(fc), Pinger(pinger))
	require.NoError(t, err)

	req := newRequest("origin.example")
	entry := &storetest.Entry{EntryURL: "http://origin.example/"}
	var got collected
	s.Select(req, entry, got.callback)
	require.Zero(t, got.calls)

	// A reply with a bogus protocol tag neither counts nor finalizes.
	pinger.reply(p1, peer.Parent, &ping.Reply{Protocol: ping.Protocol(42)})
	require.Zero(t, got.calls)

	pinger.reply(p1, peer.Parent, &ping.Reply{Protocol: ping.ProtocolICP, Op: ping.OpMiss})
	pinger.reply(p2, peer.Parent, &ping.Reply{Protocol: ping.ProtocolICP, Op: ping.OpMiss})

	require.Equal(t, 1, got.calls)
	assert.Equal(t, 2, req.Hier.Ping.NRecv)
}

func TestClosestOnlyPeerNeverBecomesFirstMiss(t *testing.T) {
	fc := clock.NewFake()
	p1 := parentPeer("p1", "p1.example", 3130)
	p1.Options.ClosestOnly = true
	p2 := parentPeer("p2", "p2.example", 3130)
	reg := mustRegistry(t, fc, p1, p2)
	resolver := dnscache.NewStatic(map[string][]netip.Addr{
		"origin.example": {addr("10.0.0.1")},
		"p1.example":     {addr("10.1.0.1")},
		"p2.example":     {addr("10.2.0.1")},
	})
	pinger := &fakePinger{round: ping.Round{Sent: 2, Expected: 2, Timeout: 2 * time.Second}}

	s, err := New(DefaultConfig(), reg, resolver, WithClock(fc), Pinger(pinger))
	require.NoError(t, err)

	entry := &storetest.Entry{EntryURL: "http://origin.example/"}
	var got collected
	s.Select(newRequest("origin.example"), entry, got.callback)
	require.Zero(t, got.calls)

	// No RTT payloads, so only first-miss tracking applies, and the
	// closest-only peer is barred from it.
	pinger.reply(p1, peer.Parent, &ping.Reply{Protocol: ping.ProtocolICP, Op: ping.OpMiss})
	pinger.reply(p2, peer.Parent, &ping.Reply{Protocol: ping.ProtocolICP, Op: ping.OpMiss})

	require.Equal(t, 1, got.calls)
	require.NotEmpty(t, got.paths)
	assert.Equal(t, transport.HierFirstParentMiss, got.paths[0].Code)
	assert.Same(t, p2, got.paths[0].Peer)
}

func TestFirstMissPrefersLowerWeightedRTT(t *testing.T) {
	fc := clock.NewFake()
	p1 := parentPeer("p1", "p1.example", 3130)
	p2 := parentPeer("p2", "p2.example", 3130)
	p2.Weight = 10
	reg := mustRegistry(t, fc, p1, p2)
	resolver := dnscache.NewStatic(map[string][]netip.Addr{
		"origin.example": {addr("10.0.0.1")},
		"p1.example":     {addr("10.1.0.1")},
		"p2.example":     {addr("10.2.0.1")},
	})
	pinger := &fakePinger{round: ping.Round{Sent: 2, Expected: 2, Timeout: 10 * time.Second}}

	s, err := New(DefaultConfig(), reg, resolver, WithClock(fc), Pinger(pinger))
	require.NoError(t, err)

	entry := &storetest.Entry{EntryURL: "http://origin.example/"}
	req := newRequest("origin.example")
	var got collected
	s.Select(req, entry, got.callback)
	require.Zero(t, got.calls)

	// p1 answers at +100ms with weight 1 (w=100); p2 at +200ms with
	// weight 10 (w=20) and overtakes it.
	fc.Add(100 * time.Millisecond)
	pinger.reply(p1, peer.Parent, &ping.Reply{Protocol: ping.ProtocolICP, Op: ping.OpMiss})
	fc.Add(100 * time.Millisecond)
	pinger.reply(p2, peer.Parent, &ping.Reply{Protocol: ping.ProtocolICP, Op: ping.OpMiss})

	require.Equal(t, 1, got.calls)
	require.NotEmpty(t, got.paths)
	assert.Equal(t, transport.HierFirstParentMiss, got.paths[0].Code)
	assert.Same(t, p2, got.paths[0].Peer)
	assert.Equal(t, 20, req.Hier.Ping.WRTT)
}

func TestForwardMaxTriesCapsPaths(t *testing.T) {
	fc := clock.NewFake()
	reg := mustRegistry(t, fc)
	resolver := dnscache.NewStatic(map[string][]netip.Addr{
		"origin.example": {addr("10.0.0.1"), addr("10.0.0.2"), addr("10.0.0.3")},
	})

	cfg := DefaultConfig()
	cfg.ForwardMaxTries = 2
	s, err := New(cfg, reg, resolver, WithClock(fc))
	require.NoError(t, err)

	var got collected
	s.Select(newRequest("origin.example"), nil, got.callback)

	require.Equal(t, 1, got.calls)
	assert.Len(t, got.paths, 2)
}

func TestHTCPHitFinalizes(t *testing.T) {
	fc := clock.NewFake()
	p1 := parentPeer("p1", "p1.example", 3130)
	reg := mustRegistry(t, fc, p1)
	resolver := dnscache.NewStatic(map[string][]netip.Addr{
		"origin.example": {addr("10.0.0.1")},
		"p1.example":     {addr("10.1.0.1")},
	})
	pinger := &fakePinger{round: ping.Round{Sent: 1, Expected: 1, Timeout: time.Second}}

	s, err := New(DefaultConfig(), reg, resolver, WithClock(fc), Pinger(pinger))
	require.NoError(t, err)

	entry := &storetest.Entry{EntryURL: "http://origin.example/"}
	var got collected
	s.Select(newRequest("origin.example"), entry, got.callback)
	require.Zero(t, got.calls)

	pinger.reply(p1, peer.Parent, &ping.Reply{Protocol: ping.ProtocolHTCP, Hit: true})

	require.Equal(t, 1, got.calls)
	require.NotEmpty(t, got.paths)
	assert.Equal(t, transport.HierParentHit, got.paths[0].Code)
}
