// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package segq

import (
	"sync/atomic"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/segq/internal/hazard"
	"code.hybscloud.com/spin"
	"go.uber.org/zap"
	"golang.org/x/sys/cpu"
)

// hpSegment is the hazard slot protecting the segment an operation works on.
const hpSegment = 0

// Queue is an unbounded lock-free multi-producer multi-consumer FIFO queue.
//
// Storage is a linked chain of fixed-size segments. Within a segment,
// producers and consumers reserve slots with Fetch-And-Add on independent
// cursors; a producer that overruns the tail segment links a new one that
// already holds its element. Consumers unlink exhausted segments from the
// head and retire them to a hazard-pointer domain, which hands them back to
// the segment pool once no goroutine can still be reading them.
//
// Enqueue and Dequeue never block and are lock-free: some goroutine always
// makes progress, but an individual call may retry under contention.
//
// Memory: one segment per SegmentSize elements in flight, 64+ bytes per slot
type Queue[T any] struct {
	_       cpu.CacheLinePad
	head    atomic.Pointer[segment[T]] // Oldest live segment
	_       cpu.CacheLinePad
	tail    atomic.Pointer[segment[T]] // Segment accepting appends
	_       cpu.CacheLinePad
	closed  atomix.Bool
	size    uint64 // Slots per segment
	retries int    // 0 = unbounded
	hp      *hazard.Domain[segment[T]]
	segs    *segmentPool[T]
	stats   *segmentStats
	log     *zap.Logger
}

// NewQueue creates a queue charging segments to alloc, with a hazard
// domain sized for maxThreads concurrently active goroutines.
//
// A nil alloc selects [HeapAllocator]; maxThreads == 0 selects
// [DefaultMaxThreads]. Returns an error wrapping [ErrNoMemory] if the
// initial segment cannot be allocated.
func NewQueue[T any](alloc Allocator, maxThreads int) (*Queue[T], error) {
	return Build[T](New().Allocator(alloc).MaxThreads(maxThreads))
}

func newQueue[T any](opts Options) (*Queue[T], error) {
	q := &Queue[T]{
		size:    uint64(opts.segmentSize),
		retries: opts.maxRetries,
		stats:   newSegmentStats(opts.registry, opts.metricsPrefix),
		log:     opts.logger,
	}
	q.segs = newSegmentPool[T](opts.segmentSize, opts.allocator, q.stats)
	q.hp = hazard.New(opts.maxThreads, 1, q.segs.put)

	sentinel, err := q.segs.get()
	if err != nil {
		q.log.Warn("initial segment allocation failed", zap.Error(err))
		return nil, err
	}
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	q.log.Debug("queue created",
		zap.Int("segment_size", opts.segmentSize),
		zap.Int("segment_bytes", q.segs.bytes),
		zap.Int("max_threads", opts.maxThreads),
		zap.Int("max_retries", opts.maxRetries))
	return q, nil
}

// Enqueue adds a copy of *elem to the tail of the queue.
//
// Returns nil on success, ErrNilElement if elem is nil, an error wrapping
// ErrNoMemory if a new segment was needed and the allocator refused it,
// ErrWouldBlock if a retry budget is configured and was exhausted, or
// ErrClosed after Close. On error the element is not enqueued.
func (q *Queue[T]) Enqueue(elem *T) error {
	if elem == nil {
		return ErrNilElement
	}
	if q.closed.LoadAcquire() {
		return ErrClosed
	}

	rec := q.hp.Acquire()
	sw := spin.Wait{}
	for attempt := 0; ; attempt++ {
		if q.retries > 0 && attempt >= q.retries {
			q.hp.Release(rec)
			q.log.Debug("enqueue retry budget exhausted", zap.Int("max_retries", q.retries))
			return ErrWouldBlock
		}

		tail := q.hp.Protect(rec, hpSegment, &q.tail)
		idx := tail.enqIdx.AddAcqRel(1) - 1
		if idx < q.size {
			if tail.append(idx, elem) {
				q.hp.Release(rec)
				return nil
			}
			// A consumer abandoned idx before we stored.
			sw.Once()
			continue
		}

		// Segment full.
		if tail != q.tail.Load() {
			continue
		}
		next := tail.next.Load()
		if next != nil {
			q.tail.CompareAndSwap(tail, next)
			continue
		}

		seg, err := q.newSegment(rec)
		if err != nil {
			q.hp.Release(rec)
			q.log.Warn("segment allocation failed", zap.Error(err))
			return err
		}
		seg.seed(elem)
		if tail.next.CompareAndSwap(nil, seg) {
			// Failure means another goroutine already helped.
			q.tail.CompareAndSwap(tail, seg)
			q.hp.Release(rec)
			return nil
		}
		q.segs.put(seg)
		sw.Once()
	}
}

// newSegment takes a segment for the tail. If the allocator refuses, the
// retired segments nobody protects are freed first and the allocation is
// tried once more.
func (q *Queue[T]) newSegment(rec *hazard.Record[segment[T]]) (*segment[T], error) {
	if seg, ok := q.segs.tryGet(); ok {
		return seg, nil
	}
	q.hp.Scan(rec)
	q.hp.Reclaim()
	return q.segs.get()
}

// Dequeue removes and returns the element at the head of the queue.
// Returns (zero-value, ErrWouldBlock) if the queue is empty, or
// (zero-value, ErrClosed) after Close.
func (q *Queue[T]) Dequeue() (T, error) {
	if q.closed.LoadAcquire() {
		var zero T
		return zero, ErrClosed
	}
	if elem, ok := q.dequeue(); ok {
		return elem, nil
	}
	var zero T
	return zero, ErrWouldBlock
}

// TryDequeue removes and returns the element at the head of the queue.
// ok is false if the queue is empty or closed.
func (q *Queue[T]) TryDequeue() (elem T, ok bool) {
	if q.closed.LoadAcquire() {
		return elem, false
	}
	return q.dequeue()
}

func (q *Queue[T]) dequeue() (elem T, ok bool) {
	rec := q.hp.Acquire()
	sw := spin.Wait{}
	for {
		head := q.hp.Protect(rec, hpSegment, &q.head)
		if head.deqIdx.LoadAcquire() >= head.enqIdx.LoadAcquire() && head.next.Load() == nil {
			break
		}

		idx := head.deqIdx.AddAcqRel(1) - 1
		if idx < q.size {
			if elem, ok = head.claim(idx); ok {
				break
			}
			// Producer reserved idx but has not stored; it will retry
			// on another slot, so move on to the next index.
			sw.Once()
			continue
		}

		// Segment exhausted.
		next := head.next.Load()
		if next == nil {
			// A producer is between reserving past the end and linking.
			sw.Once()
			continue
		}
		// head must never pass tail, or tail could name a retired segment.
		q.tail.CompareAndSwap(head, next)
		if q.head.CompareAndSwap(head, next) {
			q.hp.Clear(rec)
			q.stats.retired.Inc(1)
			q.hp.Retire(rec, head)
		}
	}
	q.hp.Release(rec)
	return elem, ok
}

// Close drains the queue, frees its remaining segment, and tears down the
// reclamation domain. Drained elements are discarded.
//
// The caller must guarantee that no Enqueue or Dequeue is in flight or
// started during Close. Returns ErrClosed if the queue was already closed.
func (q *Queue[T]) Close() error {
	if q.closed.LoadAcquire() {
		return ErrClosed
	}
	q.closed.StoreRelease(true)

	drained := 0
	for {
		if _, ok := q.dequeue(); !ok {
			break
		}
		drained++
	}

	// Drained: head is the last segment and tail equals head.
	last := q.head.Load()
	q.head.Store(nil)
	q.tail.Store(nil)
	q.segs.put(last)
	q.hp.Destroy()

	st := q.stats.snapshot()
	q.log.Debug("queue closed",
		zap.Int("drained", drained),
		zap.Int64("segments_allocated", st.Allocated),
		zap.Int64("segments_live", st.Live))
	return nil
}

// Reclaim frees retired segments that no goroutine protects.
//
// Reclamation also happens automatically as segments are retired, and
// before Enqueue reports an allocator refusal. Reclaim only flushes retire
// lists that have not reached their scan threshold.
// Safe to call concurrently with Enqueue and Dequeue.
func (q *Queue[T]) Reclaim() {
	q.hp.Reclaim()
}

// Stats returns a snapshot of segment lifecycle counters.
func (q *Queue[T]) Stats() Stats {
	return q.stats.snapshot()
}

// SegmentSize returns the number of slots per segment.
func (q *Queue[T]) SegmentSize() int {
	return int(q.size)
}
