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

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a clock that only moves when told to. Timers fire synchronously,
// in deadline order, from within Add.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

var _ Clock = (*Fake)(nil)

// NewFake returns a fake clock positioned at the Unix epoch.
func NewFake() *Fake {
	return &Fake{now: time.Unix(0, 0)}
}

// Now implements Clock.
func (fc *Fake) Now() time.Time {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.now
}

// AfterFunc implements Clock. The callback runs from a future Add call, on
// the goroutine that calls Add.
func (fc *Fake) AfterFunc(d time.Duration, f func()) Timer {
	fc.mu.Lock()
	t := &fakeTimer{clock: fc, when: fc.now.Add(d), f: f}
	fc.timers = append(fc.timers, t)
	fc.mu.Unlock()
	return t
}

// Add moves the clock forward, firing every timer whose deadline is reached,
// earliest first. Timers scheduled by fired callbacks fire too if they fall
// within the same window.
func (fc *Fake) Add(d time.Duration) {
	fc.mu.Lock()
	end := fc.now.Add(d)
	for {
		t := fc.popDueTimer(end)
		if t == nil {
			break
		}
		if fc.now.Before(t.when) {
			fc.now = t.when
		}
		fc.mu.Unlock()
		t.f()
		fc.mu.Lock()
	}
	fc.now = end
	fc.mu.Unlock()
}

// popDueTimer removes and returns the earliest unstopped timer due by end,
// or nil. Called with mu held.
func (fc *Fake) popDueTimer(end time.Time) *fakeTimer {
	sort.SliceStable(fc.timers, func(i, j int) bool {
		return fc.timers[i].when.Before(fc.timers[j].when)
	})
	for i, t := range fc.timers {
		if t.when.After(end) {
			break
		}
		if t.stopped {
			continue
		}
		t.fired = true
		fc.timers = append(fc.timers[:i], fc.timers[i+1:]...)
		return t
	}
	return nil
}

type fakeTimer struct {
	clock   *Fake
	when    time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}
