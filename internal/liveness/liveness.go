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

// Package liveness provides generation-indexed weak references. An
// asynchronous pipeline holds a Token for its caller; the caller's Guard
// invalidates every outstanding Token in one step when the caller goes away,
// so a resumed pipeline can tell that nobody is listening anymore.
package liveness

import "go.uber.org/atomic"

// Guard is the caller-side handle. The zero value is ready to use.
type Guard struct {
	gen atomic.Uint64
}

// Token issues a weak reference tied to the guard's current generation.
func (g *Guard) Token() Token {
	return Token{guard: g, gen: g.gen.Load()}
}

// Invalidate kills every Token issued so far. Tokens issued afterwards are
// valid again; generations never repeat.
func (g *Guard) Invalidate() {
	g.gen.Inc()
}

// Token is the pipeline-side weak reference.
type Token struct {
	guard *Guard
	gen   uint64
}

// Valid reports whether the caller behind the token is still listening.
// The zero Token is invalid.
func (t Token) Valid() bool {
	return t.guard != nil && t.guard.gen.Load() == t.gen
}
