// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package segq

import "github.com/rcrowley/go-metrics"

// DefaultMetricsPrefix prefixes counter names when no prefix is given.
const DefaultMetricsPrefix = "segq"

// Stats is a snapshot of segment lifecycle counters.
//
// Counts are per segment, not per element. Live is Allocated - Freed and
// includes retired segments still waiting for reclamation.
type Stats struct {
	Allocated     int64 // Segments taken from the allocator
	Retired       int64 // Segments unlinked from the head
	Freed         int64 // Segments returned to the allocator
	AllocFailures int64 // Allocator refusals
	Live          int64
}

// segmentStats holds go-metrics counters for segment lifecycle events.
// Element operations are intentionally not counted.
type segmentStats struct {
	allocated     metrics.Counter
	retired       metrics.Counter
	freed         metrics.Counter
	allocFailures metrics.Counter
}

// newSegmentStats registers counters in r under prefix.
// A nil registry yields private, unregistered counters.
func newSegmentStats(r metrics.Registry, prefix string) *segmentStats {
	if r == nil {
		return &segmentStats{
			allocated:     metrics.NewCounter(),
			retired:       metrics.NewCounter(),
			freed:         metrics.NewCounter(),
			allocFailures: metrics.NewCounter(),
		}
	}
	return &segmentStats{
		allocated:     metrics.GetOrRegisterCounter(prefix+".segments.allocated", r),
		retired:       metrics.GetOrRegisterCounter(prefix+".segments.retired", r),
		freed:         metrics.GetOrRegisterCounter(prefix+".segments.freed", r),
		allocFailures: metrics.GetOrRegisterCounter(prefix+".alloc.failures", r),
	}
}

func (s *segmentStats) snapshot() Stats {
	st := Stats{
		Allocated:     s.allocated.Count(),
		Retired:       s.retired.Count(),
		Freed:         s.freed.Count(),
		AllocFailures: s.allocFailures.Count(),
	}
	st.Live = st.Allocated - st.Freed
	return st
}
