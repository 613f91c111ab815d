// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package segq

import "code.hybscloud.com/atomix"

// Allocator is the memory context that segment storage is charged to.
//
// Alloc is called before a segment is taken into use and may refuse it;
// Free is called once the segment is reclaimed. size is the approximate
// footprint of one segment in bytes and is constant for a given queue.
//
// Implementations must be safe for concurrent use.
type Allocator interface {
	Alloc(size int) error
	Free(size int)
}

// HeapAllocator charges nothing and never refuses.
// It is the default when no allocator is configured.
type HeapAllocator struct{}

// Alloc always succeeds.
func (HeapAllocator) Alloc(int) error { return nil }

// Free is a no-op.
func (HeapAllocator) Free(int) {}

// CountingAllocator tracks live segments and bytes, with an optional limit.
//
// Example (bound a queue to 64 MiB of segment storage):
//
//	alloc := segq.NewCountingAllocator(64 << 20)
//	q, err := segq.Build[Event](segq.New().Allocator(alloc))
//	...
//	err = q.Enqueue(&ev)
//	if errors.Is(err, segq.ErrNoMemory) {
//	    // shed load
//	}
type CountingAllocator struct {
	limit  int64 // bytes; 0 means unlimited
	inUse  atomix.Int64
	allocs atomix.Int64
	frees  atomix.Int64
}

// NewCountingAllocator creates a counting allocator.
// limit is the maximum number of bytes in use; 0 disables the limit.
func NewCountingAllocator(limit int64) *CountingAllocator {
	if limit < 0 {
		panic("segq: allocator limit must be >= 0")
	}
	return &CountingAllocator{limit: limit}
}

// Alloc charges size bytes, or returns ErrNoMemory when the limit would be
// exceeded.
func (a *CountingAllocator) Alloc(size int) error {
	n := a.inUse.AddAcqRel(int64(size))
	if a.limit > 0 && n > a.limit {
		a.inUse.AddAcqRel(-int64(size))
		return ErrNoMemory
	}
	a.allocs.AddAcqRel(1)
	return nil
}

// Free releases size bytes.
func (a *CountingAllocator) Free(size int) {
	a.inUse.AddAcqRel(-int64(size))
	a.frees.AddAcqRel(1)
}

// Live returns the number of segments allocated and not yet freed.
func (a *CountingAllocator) Live() int64 {
	return a.allocs.LoadAcquire() - a.frees.LoadAcquire()
}

// Allocs returns the total number of successful allocations.
func (a *CountingAllocator) Allocs() int64 {
	return a.allocs.LoadAcquire()
}

// Frees returns the total number of frees.
func (a *CountingAllocator) Frees() int64 {
	return a.frees.LoadAcquire()
}

// InUse returns the number of bytes currently charged.
func (a *CountingAllocator) InUse() int64 {
	return a.inUse.LoadAcquire()
}
