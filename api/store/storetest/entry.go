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

// Package storetest provides an in-memory store.Entry for tests.
package storetest

import (
	"sync"

	"github.com/hoardcache/hoard/api/store"
)

// Entry is a minimal in-memory cache entry. It records every status
// transition and lock operation so tests can assert on the lifecycle.
type Entry struct {
	mu sync.Mutex

	// EntryURL is returned by URL.
	EntryURL string

	// Private is returned by KeyPrivate.
	Private bool

	status      store.PingStatus
	locks       int
	transitions []store.PingStatus
}

var _ store.Entry = (*Entry)(nil)

// URL implements store.Entry.
func (e *Entry) URL() string { return e.EntryURL }

// KeyPrivate implements store.Entry.
func (e *Entry) KeyPrivate() bool { return e.Private }

// Lock implements store.Entry.
func (e *Entry) Lock() {
	e.mu.Lock()
	e.locks++
	e.mu.Unlock()
}

// Unlock implements store.Entry.
func (e *Entry) Unlock() {
	e.mu.Lock()
	e.locks--
	e.mu.Unlock()
}

// PingStatus implements store.Entry.
func (e *Entry) PingStatus() store.PingStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// SetPingStatus implements store.Entry.
func (e *Entry) SetPingStatus(s store.PingStatus) {
	e.mu.Lock()
	e.status = s
	e.transitions = append(e.transitions, s)
	e.mu.Unlock()
}

// Locks reports the current lock balance.
func (e *Entry) Locks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.locks
}

// Transitions returns every ping status the entry was moved through.
func (e *Entry) Transitions() []store.PingStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]store.PingStatus, len(e.transitions))
	copy(out, e.transitions)
	return out
}
