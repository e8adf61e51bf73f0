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
	"go.uber.org/net/metrics"
	"go.uber.org/zap"
)

// stats are the engine's process-wide counters. Counter handles are created
// once; a nil counter (metric registration failure) degrades to a no-op.
type stats struct {
	selections *metrics.Counter
	timeouts   *metrics.Counter
	empty      *metrics.Counter
}

func newStats(meter *metrics.Scope, logger *zap.Logger) *stats {
	if meter == nil {
		meter = metrics.New().Scope()
	}

	selections, err := meter.Counter(metrics.Spec{
		Name: "peer_select_selections",
		Help: "Total number of peer selections started.",
	})
	if err != nil {
		logger.Error("Failed to create selections counter.", zap.Error(err))
	}
	timeouts, err := meter.Counter(metrics.Spec{
		Name: "peer_select_timeouts",
		Help: "Number of neighbor query rounds that hit their deadline.",
	})
	if err != nil {
		logger.Error("Failed to create timeouts counter.", zap.Error(err))
	}
	empty, err := meter.Counter(metrics.Spec{
		Name: "peer_select_empty",
		Help: "Number of selections that produced no destination.",
	})
	if err != nil {
		logger.Error("Failed to create empty-selections counter.", zap.Error(err))
	}

	return &stats{
		selections: selections,
		timeouts:   timeouts,
		empty:      empty,
	}
}
