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

// Package acl is the selection engine's contract with the access-control
// subsystem. Rule evaluation may block on external lookups, so checks are
// asynchronous.
package acl

import "github.com/hoardcache/hoard/api/transport"

// Answer is the outcome of a rule evaluation.
type Answer int

const (
	// Denied means the rules did not match the request.
	Denied Answer = iota

	// Allowed means the rules matched the request.
	Allowed
)

func (a Answer) String() string {
	if a == Allowed {
		return "ALLOWED"
	}
	return "DENIED"
}

// Rules is an opaque handle to a compiled access list.
type Rules interface {
	// Name identifies the access list in log lines.
	Name() string
}

// Checklist is one outstanding evaluation.
type Checklist interface {
	// Cancel abandons the evaluation; the completion callback will not be
	// invoked afterwards.
	Cancel()
}

// Checker evaluates access lists against requests.
type Checker interface {
	// NonBlockingCheck starts an evaluation and returns its handle. The
	// done callback is invoked exactly once, possibly before
	// NonBlockingCheck returns.
	NonBlockingCheck(rules Rules, req *transport.Request, done func(Answer)) Checklist
}
