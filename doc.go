// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package segq provides an unbounded lock-free MPMC FIFO queue.
//
// The queue is a hand-off primitive between worker goroutines: any number
// of producers and consumers, no capacity limit, no locks on the hot path.
//
// # Quick Start
//
//	q, err := segq.NewQueue[*Request](nil, 0)
//	if err != nil {
//	    return err
//	}
//	defer q.Close()
//
//	// Enqueue (non-blocking, never full)
//	req := &Request{ID: 1}
//	if err := q.Enqueue(&req); err != nil {
//	    return err
//	}
//
//	// Dequeue (non-blocking)
//	next, err := q.Dequeue()
//	if segq.IsWouldBlock(err) {
//	    // Queue is empty - try again later
//	} else {
//	    handle(next)
//	}
//
//	// Or comma-ok
//	if next, ok := q.TryDequeue(); ok {
//	    handle(next)
//	}
//
// Builder API for tuning:
//
//	q, err := segq.Build[Event](segq.New().
//	    SegmentSize(4096).
//	    MaxThreads(64).
//	    Logger(logger).
//	    Metrics(metrics.DefaultRegistry, "ingest"))
//
// # Algorithm
//
// Storage is a chain of fixed-size segments. Each segment has a producer
// cursor and a consumer cursor advanced with Fetch-And-Add, and an array
// of slots moving through empty → full → taken:
//
//	Enqueue: idx = FAA(tail.enq); CAS slot[idx] empty → full
//	Dequeue: idx = FAA(head.deq); exchange slot[idx] → taken
//
// A producer whose index falls past the end of the tail segment links a
// new segment that already holds its element, then helps advance tail.
// A consumer whose index falls past the end of the head segment advances
// head and retires the old segment.
//
// A consumer that reaches a slot before its producer marks the slot taken;
// the producer's CAS then fails and it retries with a fresh index. No
// element is lost and no consumer waits on a producer.
//
// FIFO order holds for elements placed in the same segment (index order)
// and across segments (chain order). Every operation is linearizable at
// its successful CAS or exchange.
//
// # Memory Reclamation
//
// Retired segments are recycled through a pool. A hazard-pointer domain
// delays recycling until no goroutine still works on the segment, so a
// stale reader can never observe a segment that was reset and relinked.
//
// Segment storage is charged to an [Allocator]. [CountingAllocator]
// reports live segments and can enforce a byte limit:
//
//	alloc := segq.NewCountingAllocator(64 << 20)
//	q, _ := segq.NewQueue[Event](alloc, 0)
//	...
//	if errors.Is(q.Enqueue(&ev), segq.ErrNoMemory) {
//	    // shed load
//	}
//
// Retired segments are reclaimed in batches. [Queue.Reclaim] flushes
// batches that have not filled yet. Enqueue flushes them too before it
// reports ErrNoMemory, so the error means the queued elements themselves
// have reached the limit.
//
// # Error Handling
//
//	ErrWouldBlock  Dequeue on empty; Enqueue with an exhausted MaxRetries budget
//	ErrNilElement  Enqueue(nil)
//	ErrNoMemory    allocator refused a segment (wrapped, use errors.Is)
//	ErrClosed      operation after Close
//
// ErrWouldBlock is sourced from [code.hybscloud.com/iox]:
//
//	segq.IsWouldBlock(err)  // true if queue empty
//	segq.IsSemantic(err)    // true if control flow signal
//	segq.IsNonFailure(err)  // true if nil or ErrWouldBlock
//
// # Progress
//
// Enqueue and Dequeue are lock-free, not wait-free. By default Enqueue
// retries until it succeeds. [Builder.MaxRetries] caps the number of
// restarts so that callers with latency bounds get ErrWouldBlock instead
// of spinning.
//
// Blocking waits, timeouts, priorities and batching are not provided;
// layer polling with [iox.Backoff] on top when needed:
//
//	backoff := iox.Backoff{}
//	for {
//	    v, err := q.Dequeue()
//	    if err == nil {
//	        backoff.Reset()
//	        process(v)
//	        continue
//	    }
//	    backoff.Wait()
//	}
//
// Length is intentionally not provided because accurate counts in lock-free
// algorithms require expensive cross-core synchronization.
//
// # Shutdown
//
// [Queue.Close] drains and discards remaining elements and releases all
// segments. The caller must stop every producer and consumer first.
//
// # Race Detection
//
// Slot payloads are ordinary memory published by atomix acquire-release
// state transitions, which Go's race detector cannot track. Concurrent
// tests are excluded under -race via [RaceEnabled].
//
// # Dependencies
//
// This package uses [code.hybscloud.com/atomix] for atomic primitives with
// explicit memory ordering, [code.hybscloud.com/spin] for CPU pause
// instructions, [code.hybscloud.com/iox] for semantic errors,
// [go.uber.org/zap] for lifecycle logging and
// [github.com/rcrowley/go-metrics] for segment counters.
package segq
