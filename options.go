// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package segq

import (
	"reflect"

	"github.com/rcrowley/go-metrics"
	"go.uber.org/zap"
)

const (
	// DefaultSegmentSize is the number of slots per segment.
	DefaultSegmentSize = 1024

	// DefaultMaxThreads is the number of hazard records preallocated when
	// no bound is given.
	DefaultMaxThreads = 128
)

// Options configures queue creation.
type Options struct {
	// Storage
	segmentSize int
	allocator   Allocator

	// Reclamation
	maxThreads int

	// Progress (0 = retry until success)
	maxRetries int

	// Observability
	logger        *zap.Logger
	registry      metrics.Registry
	metricsPrefix string
}

// Builder creates queues with fluent configuration.
//
// Example:
//
//	// Default queue
//	q, err := segq.Build[Event](segq.New())
//
//	// Small segments, bounded memory, logging
//	q, err := segq.Build[*Request](segq.New().
//	    SegmentSize(256).
//	    Allocator(segq.NewCountingAllocator(16 << 20)).
//	    Logger(logger))
type Builder struct {
	opts Options
}

// New creates a queue builder with default settings.
func New() *Builder {
	return &Builder{opts: Options{
		segmentSize: DefaultSegmentSize,
		maxThreads:  DefaultMaxThreads,
	}}
}

// SegmentSize sets the number of slots per segment.
//
// Larger segments amortize allocation and reclamation over more elements;
// smaller segments bound the memory held by a mostly idle queue.
//
// Panics if n < 2.
func (b *Builder) SegmentSize(n int) *Builder {
	if n < 2 {
		panic("segq: segment size must be >= 2")
	}
	b.opts.segmentSize = n
	return b
}

// MaxThreads sets the number of goroutines expected to operate on the
// queue at the same time. It sizes the hazard-pointer domain; more
// concurrent goroutines are still accepted. 0 selects DefaultMaxThreads.
//
// Panics if n < 0.
func (b *Builder) MaxThreads(n int) *Builder {
	if n < 0 {
		panic("segq: max threads must be >= 0")
	}
	if n == 0 {
		n = DefaultMaxThreads
	}
	b.opts.maxThreads = n
	return b
}

// MaxRetries bounds the number of protocol restarts a single Enqueue may
// perform under contention before returning ErrWouldBlock. 0 (the
// default) retries until success, which is always eventually reached.
//
// Panics if n < 0.
func (b *Builder) MaxRetries(n int) *Builder {
	if n < 0 {
		panic("segq: max retries must be >= 0")
	}
	b.opts.maxRetries = n
	return b
}

// Allocator sets the memory context segments are charged to.
// nil selects HeapAllocator.
//
// Panics if a is a nil pointer wrapped in a non-nil interface, such as
// (*CountingAllocator)(nil).
func (b *Builder) Allocator(a Allocator) *Builder {
	if a != nil {
		if v := reflect.ValueOf(a); v.Kind() == reflect.Pointer && v.IsNil() {
			panic("segq: typed nil allocator")
		}
	}
	b.opts.allocator = a
	return b
}

// Logger sets the logger for lifecycle events. nil disables logging.
// Element operations are never logged.
func (b *Builder) Logger(l *zap.Logger) *Builder {
	b.opts.logger = l
	return b
}

// Metrics registers segment lifecycle counters in r, named
// prefix + ".segments.allocated" and so on. An empty prefix selects
// DefaultMetricsPrefix. Queues sharing r need distinct prefixes.
func (b *Builder) Metrics(r metrics.Registry, prefix string) *Builder {
	b.opts.registry = r
	b.opts.metricsPrefix = prefix
	return b
}

// Build creates a Queue[T] from the builder configuration.
// Returns an error wrapping ErrNoMemory if the allocator refuses the
// initial segment.
func Build[T any](b *Builder) (*Queue[T], error) {
	opts := b.opts
	if opts.allocator == nil {
		opts.allocator = HeapAllocator{}
	}
	if opts.logger == nil {
		opts.logger = zap.NewNop()
	}
	if opts.metricsPrefix == "" {
		opts.metricsPrefix = DefaultMetricsPrefix
	}
	return newQueue[T](opts)
}
