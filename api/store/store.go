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

// Package store is the selection engine's contract with the cache store.
// The engine never creates entries; it only pins the one it was handed and
// advances its ping status.
package store

// PingStatus tracks whether a neighbor query round has been run for an
// entry. It only ever moves forward: None, then possibly Waiting, then Done.
type PingStatus int

const (
	// PingNone means no neighbor query has been considered yet.
	PingNone PingStatus = iota

	// PingWaiting means queries are in flight and replies are awaited.
	PingWaiting

	// PingDone means the neighbor phase has concluded, with or without
	// queries.
	PingDone
)

var pingStatusNames = [...]string{"PING_NONE", "PING_WAITING", "PING_DONE"}

func (s PingStatus) String() string {
	if s < PingNone || s > PingDone {
		return "INVALID"
	}
	return pingStatusNames[s]
}

// Entry is the cache entry associated with an in-flight request.
type Entry interface {
	// URL identifies the entry in log lines.
	URL() string

	// Lock pins the entry in the store for the duration of selection.
	Lock()

	// Unlock releases the pin taken with Lock.
	Unlock()

	// PingStatus returns the entry's neighbor query status.
	PingStatus() PingStatus

	// SetPingStatus advances the entry's neighbor query status.
	SetPingStatus(PingStatus)

	// KeyPrivate reports whether the entry's cache key is private to one
	// client. Private keys are not announced to neighbors unless
	// configuration allows it.
	KeyPrivate() bool
}
