// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hazard

import (
	"sync/atomic"

	"code.hybscloud.com/atomix"
)

// minScanThreshold is the smallest retire list length that triggers a scan.
// Above it the threshold is 2 × records × slots, so a scan frees at least
// half of the list it walks.
const minScanThreshold = 8

// Record is the per-goroutine hazard state.
//
// A Record is owned by exactly one goroutine between Acquire and Release.
// Its hazard slots are published to every scanner; its retire list is
// private to the owner.
type Record[T any] struct {
	active  atomix.Uint64 // 1 while owned
	hazards []atomic.Pointer[T]
	retired []*T
	next    *Record[T] // immutable once published
}

// Domain defers reclamation of retired objects until no Record protects them.
//
// Records are kept on a lock-free list that only grows. maxThreads records
// are preallocated; more are pushed when that many goroutines are inside
// the domain at once, so Acquire never waits.
type Domain[T any] struct {
	head    atomic.Pointer[Record[T]]
	records atomix.Int64
	slots   int
	free    func(*T)
}

// New creates a domain with maxThreads preallocated records, each holding
// slots hazard pointers. free is called exactly once for every retired
// object, after no record protects it.
func New[T any](maxThreads, slots int, free func(*T)) *Domain[T] {
	if maxThreads < 1 {
		panic("hazard: maxThreads must be >= 1")
	}
	if slots < 1 {
		panic("hazard: slots must be >= 1")
	}
	if free == nil {
		panic("hazard: nil free func")
	}

	d := &Domain[T]{
		slots: slots,
		free:  free,
	}
	for range maxThreads {
		d.push(d.newRecord())
	}
	return d
}

func (d *Domain[T]) newRecord() *Record[T] {
	return &Record[T]{hazards: make([]atomic.Pointer[T], d.slots)}
}

func (d *Domain[T]) push(r *Record[T]) {
	for {
		h := d.head.Load()
		r.next = h
		if d.head.CompareAndSwap(h, r) {
			d.records.Add(1)
			return
		}
	}
}

// Acquire returns an idle record owned by the caller until Release.
func (d *Domain[T]) Acquire() *Record[T] {
	for r := d.head.Load(); r != nil; r = r.next {
		if r.active.LoadRelaxed() == 0 && r.active.CompareAndSwapAcqRel(0, 1) {
			return r
		}
	}
	r := d.newRecord()
	r.active.StoreRelaxed(1)
	d.push(r)
	return r
}

// Release clears the record's hazards and returns it to the idle set.
// Pending retirees stay on the record for the next owner to scan.
func (d *Domain[T]) Release(r *Record[T]) {
	d.Clear(r)
	r.active.StoreRelease(0)
}

// Protect publishes the current value of src in hazard slot i of r and
// returns it. The returned object is not freed until the slot is cleared
// or overwritten.
func (d *Domain[T]) Protect(r *Record[T], i int, src *atomic.Pointer[T]) *T {
	p := src.Load()
	for {
		r.hazards[i].Store(p)
		cur := src.Load()
		if cur == p {
			return p
		}
		p = cur
	}
}

// Clear drops every hazard held by r.
func (d *Domain[T]) Clear(r *Record[T]) {
	for i := range r.hazards {
		r.hazards[i].Store(nil)
	}
}

// Retire hands p to the domain. p must already be unreachable from shared
// state; it is freed by a later scan once no hazard names it.
func (d *Domain[T]) Retire(r *Record[T], p *T) {
	r.retired = append(r.retired, p)
	if len(r.retired) >= d.threshold() {
		d.scan(r)
	}
}

// threshold grows with the record list, which is the number of hazards a
// scan has to collect.
func (d *Domain[T]) threshold() int {
	return max(minScanThreshold, 2*d.slots*int(d.records.Load()))
}

// Scan frees the unprotected objects on r's retire list without waiting
// for the threshold. r must be owned by the caller.
func (d *Domain[T]) Scan(r *Record[T]) {
	if len(r.retired) > 0 {
		d.scan(r)
	}
}

// Reclaim scans the retire list of every idle record.
// Records owned by other goroutines are skipped.
func (d *Domain[T]) Reclaim() {
	for r := d.head.Load(); r != nil; r = r.next {
		if r.active.LoadRelaxed() != 0 || !r.active.CompareAndSwapAcqRel(0, 1) {
			continue
		}
		if len(r.retired) > 0 {
			d.scan(r)
		}
		r.active.StoreRelease(0)
	}
}

func (d *Domain[T]) scan(r *Record[T]) {
	protected := make(map[*T]struct{})
	for rec := d.head.Load(); rec != nil; rec = rec.next {
		for i := range rec.hazards {
			if p := rec.hazards[i].Load(); p != nil {
				protected[p] = struct{}{}
			}
		}
	}

	kept := r.retired[:0]
	for _, p := range r.retired {
		if _, ok := protected[p]; ok {
			kept = append(kept, p)
			continue
		}
		d.free(p)
	}
	clear(r.retired[len(kept):])
	r.retired = kept
}

// Pending returns the number of retired objects not yet freed.
// Only meaningful while the domain is quiescent.
func (d *Domain[T]) Pending() int {
	n := 0
	for r := d.head.Load(); r != nil; r = r.next {
		n += len(r.retired)
	}
	return n
}

// Records returns the number of records ever created.
func (d *Domain[T]) Records() int {
	return int(d.records.Load())
}

// Destroy frees every retired object regardless of hazards.
// The caller guarantees no goroutine is inside the domain.
func (d *Domain[T]) Destroy() {
	for r := d.head.Load(); r != nil; r = r.next {
		for _, p := range r.retired {
			d.free(p)
		}
		r.retired = nil
		d.Clear(r)
	}
}
