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
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apidns "github.com/hoardcache/hoard/api/dnscache"
)

func TestStaticRotates(t *testing.T) {
	s := NewStatic(map[string][]netip.Addr{
		"origin.example": {
			netip.MustParseAddr("10.0.0.1"),
			netip.MustParseAddr("10.0.0.2"),
		},
	})

	lookup := func() *apidns.Result {
		var got *apidns.Result
		s.LookupHost("origin.example", func(res *apidns.Result, err error) {
			require.NoError(t, err)
			got = res
		})
		require.NotNil(t, got)
		return got
	}

	assert.Equal(t, 0, lookup().Cur)
	assert.Equal(t, 1, lookup().Cur)
	assert.Equal(t, 0, lookup().Cur)
}

func TestStaticUnknownHost(t *testing.T) {
	s := NewStatic(nil)
	var gotErr error
	called := false
	s.LookupHost("nope.example", func(res *apidns.Result, err error) {
		called = true
		gotErr = err
		assert.Nil(t, res)
	})
	assert.True(t, called)
	assert.Error(t, gotErr)
}

func TestCacheAnswersLiteralsSynchronously(t *testing.T) {
	c, err := New(Servers("192.0.2.53:53"))
	require.NoError(t, err)

	var got *apidns.Result
	c.LookupHost("10.9.9.9", func(res *apidns.Result, err error) {
		require.NoError(t, err)
		got = res
	})
	require.NotNil(t, got)
	require.Len(t, got.Addrs, 1)
	assert.Equal(t, "10.9.9.9", got.Addrs[0].String())
}

func TestCacheAcceptsExplicitServers(t *testing.T) {
	// With explicit servers construction never touches resolv.conf.
	_, err := New(Servers("192.0.2.53:53"))
	assert.NoError(t, err)
}
