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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeFiresInDeadlineOrder(t *testing.T) {
	fc := NewFake()
	var fired []string
	fc.AfterFunc(2*time.Second, func() { fired = append(fired, "late") })
	fc.AfterFunc(time.Second, func() { fired = append(fired, "early") })

	fc.Add(3 * time.Second)
	assert.Equal(t, []string{"early", "late"}, fired)
}

func TestFakeDoesNotFireEarly(t *testing.T) {
	fc := NewFake()
	fired := false
	fc.AfterFunc(time.Second, func() { fired = true })

	fc.Add(999 * time.Millisecond)
	assert.False(t, fired)
	fc.Add(time.Millisecond)
	assert.True(t, fired)
}

func TestFakeStop(t *testing.T) {
	fc := NewFake()
	fired := false
	timer := fc.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	fc.Add(2 * time.Second)
	assert.False(t, fired)

	// Stopping twice, or after firing, reports false.
	assert.False(t, timer.Stop())
}

func TestFakeCallbackMayScheduleMore(t *testing.T) {
	fc := NewFake()
	var fired []string
	fc.AfterFunc(time.Second, func() {
		fired = append(fired, "first")
		fc.AfterFunc(time.Second, func() { fired = append(fired, "second") })
	})

	fc.Add(2 * time.Second)
	assert.Equal(t, []string{"first", "second"}, fired)
}

func TestFakeNowAdvances(t *testing.T) {
	fc := NewFake()
	start := fc.Now()
	fc.Add(90 * time.Second)
	assert.Equal(t, 90*time.Second, fc.Now().Sub(start))
}

func TestRealAfterFunc(t *testing.T) {
	done := make(chan struct{})
	NewReal().AfterFunc(time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}
