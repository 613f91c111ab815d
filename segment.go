// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package segq

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"code.hybscloud.com/atomix"
	"golang.org/x/sys/cpu"
)

// Slot states. A slot only moves forward: empty → full → taken.
const (
	slotEmpty uint64 = iota
	slotFull
	slotTaken
)

// segment is a fixed-capacity block of queue storage.
//
// enqIdx and deqIdx are blindly incremented with FAA and may run past
// len(slots); any index >= len(slots) means the segment is exhausted for
// that side and is never used to address a slot.
type segment[T any] struct {
	_      cpu.CacheLinePad
	deqIdx atomix.Uint64 // Consumer cursor (FAA)
	_      cpu.CacheLinePad
	enqIdx atomix.Uint64 // Producer cursor (FAA)
	_      cpu.CacheLinePad
	next   atomic.Pointer[segment[T]]
	slots  []segmentSlot[T]
}

type segmentSlot[T any] struct {
	state atomix.Uint64 // slotEmpty, slotFull or slotTaken
	data  T
	_     padShort // Pad to cache line
}

// padShort is padding to fill cache line after 8-byte field.
type padShort [64 - 8]byte

func newSegment[T any](size int) *segment[T] {
	return &segment[T]{slots: make([]segmentSlot[T], size)}
}

// append stores elem at idx, which the caller reserved with FAA on enqIdx.
// Returns false if a consumer already gave up on idx; the caller must
// reserve another index.
func (s *segment[T]) append(idx uint64, elem *T) bool {
	slot := &s.slots[idx]
	slot.data = *elem
	if slot.state.CompareAndSwapAcqRel(slotEmpty, slotFull) {
		return true
	}
	var zero T
	slot.data = zero
	return false
}

// claim takes the element at idx, which the caller reserved with FAA on
// deqIdx. Each index has one producer and one consumer, so the exchange to
// slotTaken is a CAS from slotEmpty: if it succeeds the producer has not
// stored yet and the slot is abandoned; if it fails the slot is full.
func (s *segment[T]) claim(idx uint64) (elem T, ok bool) {
	slot := &s.slots[idx]
	if slot.state.CompareAndSwapAcqRel(slotEmpty, slotTaken) {
		return elem, false
	}
	elem = slot.data
	var zero T
	slot.data = zero
	slot.state.StoreRelease(slotTaken)
	return elem, true
}

// seed pre-fills slot 0 of an unpublished segment.
// Publication happens through the CAS that links it as next.
func (s *segment[T]) seed(elem *T) {
	s.slots[0].data = *elem
	s.slots[0].state.StoreRelaxed(slotFull)
	s.enqIdx.StoreRelaxed(1)
}

func (s *segment[T]) reset() {
	var zero T
	for i := range s.slots {
		s.slots[i].state.StoreRelaxed(slotEmpty)
		s.slots[i].data = zero
	}
	s.deqIdx.StoreRelaxed(0)
	s.enqIdx.StoreRelaxed(0)
	s.next.Store(nil)
}

// segmentPool recycles segments and charges them to an Allocator.
//
// Recycling is the reason segments go through hazard-pointer reclamation:
// a segment is put back only once no goroutine has it protected.
type segmentPool[T any] struct {
	pool  sync.Pool
	alloc Allocator
	stats *segmentStats
	size  int // slots per segment
	bytes int // footprint charged per segment
}

func newSegmentPool[T any](size int, alloc Allocator, stats *segmentStats) *segmentPool[T] {
	p := &segmentPool[T]{
		alloc: alloc,
		stats: stats,
		size:  size,
		bytes: int(unsafe.Sizeof(segment[T]{})) + size*int(unsafe.Sizeof(segmentSlot[T]{})),
	}
	p.pool.New = func() any { return newSegment[T](size) }
	return p
}

// tryGet is get without failure accounting, for callers that can free
// memory and retry.
func (p *segmentPool[T]) tryGet() (*segment[T], bool) {
	if p.alloc.Alloc(p.bytes) != nil {
		return nil, false
	}
	p.stats.allocated.Inc(1)
	return p.pool.Get().(*segment[T]), true
}

func (p *segmentPool[T]) get() (*segment[T], error) {
	if err := p.alloc.Alloc(p.bytes); err != nil {
		p.stats.allocFailures.Inc(1)
		if errors.Is(err, ErrNoMemory) {
			return nil, fmt.Errorf("segq: allocate %d-slot segment: %w", p.size, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrNoMemory, err)
	}
	p.stats.allocated.Inc(1)
	return p.pool.Get().(*segment[T]), nil
}

func (p *segmentPool[T]) put(s *segment[T]) {
	s.reset()
	p.pool.Put(s)
	p.alloc.Free(p.bytes)
	p.stats.freed.Inc(1)
}
