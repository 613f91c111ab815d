// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package segq

import (
	"errors"
	"testing"
)

// =============================================================================
// Slot Protocol
// =============================================================================

func TestSegmentAppendClaim(t *testing.T) {
	s := newSegment[string](4)

	v := "x"
	if !s.append(0, &v) {
		t.Fatal("append to empty slot failed")
	}
	got, ok := s.claim(0)
	if !ok || got != "x" {
		t.Fatalf("claim: got (%q, %v), want (x, true)", got, ok)
	}
	if st := s.slots[0].state.Load(); st != slotTaken {
		t.Fatalf("state after claim: got %d, want taken", st)
	}
	if s.slots[0].data != "" {
		t.Fatal("claim did not clear slot data")
	}
}

// TestSegmentPrematureClaim covers a consumer reaching a slot before its
// producer: the slot becomes taken and the late append is rejected.
func TestSegmentPrematureClaim(t *testing.T) {
	s := newSegment[int](4)

	if _, ok := s.claim(1); ok {
		t.Fatal("claim on empty slot: got ok")
	}
	v := 9
	if s.append(1, &v) {
		t.Fatal("append after premature claim: got true")
	}
	if s.slots[1].data != 0 {
		t.Fatal("rejected append left data behind")
	}
	if st := s.slots[1].state.Load(); st != slotTaken {
		t.Fatalf("state: got %d, want taken", st)
	}
}

func TestSegmentSeedAndReset(t *testing.T) {
	s := newSegment[int](4)
	v := 5
	s.seed(&v)
	if s.enqIdx.Load() != 1 {
		t.Fatalf("enqIdx after seed: got %d, want 1", s.enqIdx.Load())
	}
	got, ok := s.claim(0)
	if !ok || got != 5 {
		t.Fatalf("claim seeded slot: got (%d, %v)", got, ok)
	}

	s.deqIdx.Store(7)
	s.next.Store(newSegment[int](4))
	s.reset()
	if s.enqIdx.Load() != 0 || s.deqIdx.Load() != 0 || s.next.Load() != nil {
		t.Fatal("reset left cursors or link behind")
	}
	for i := range s.slots {
		if s.slots[i].state.Load() != slotEmpty {
			t.Fatalf("slot %d not empty after reset", i)
		}
	}
}

// =============================================================================
// Enqueue Retry
// =============================================================================

// TestEnqueueAbandonedSlot simulates a consumer that gave up on index 0:
// the producer must move to index 1 and the element must not be lost.
func TestEnqueueAbandonedSlot(t *testing.T) {
	q, err := Build[int](New().SegmentSize(4))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer q.Close()

	tail := q.tail.Load()
	tail.deqIdx.Store(1)
	tail.slots[0].state.Store(slotTaken)

	v := 11
	if err := q.Enqueue(&v); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if got := tail.enqIdx.Load(); got != 2 {
		t.Fatalf("enqIdx: got %d, want 2", got)
	}
	got, err := q.Dequeue()
	if err != nil || got != 11 {
		t.Fatalf("Dequeue: got (%d, %v), want 11", got, err)
	}
}

// TestEnqueueRetryBudget checks a bounded retry budget surfaces
// ErrWouldBlock instead of retrying.
func TestEnqueueRetryBudget(t *testing.T) {
	q, err := Build[int](New().SegmentSize(4).MaxRetries(1))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer q.Close()

	tail := q.tail.Load()
	tail.deqIdx.Store(1)
	tail.slots[0].state.Store(slotTaken)

	v := 11
	err = q.Enqueue(&v)
	if !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("Enqueue with exhausted budget: got %v, want ErrWouldBlock", err)
	}
	if !IsNonFailure(err) {
		t.Fatal("exhausted budget must be a non-failure")
	}

	// The next attempt gets a fresh slot.
	if err := q.Enqueue(&v); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	got, err := q.Dequeue()
	if err != nil || got != 11 {
		t.Fatalf("Dequeue: got (%d, %v), want 11", got, err)
	}
	if _, err := q.Dequeue(); !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("Dequeue on empty: got %v", err)
	}
}

// TestHeadNeverPassesTail checks a consumer unlinking the head first moves
// a lagging tail forward.
func TestHeadNeverPassesTail(t *testing.T) {
	q, err := Build[int](New().SegmentSize(2))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer q.Close()

	for i := range 3 {
		v := i
		if err := q.Enqueue(&v); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	sentinel := q.head.Load()
	second := sentinel.next.Load()
	if second == nil {
		t.Fatal("second segment not linked")
	}
	// Simulate a producer that linked but has not advanced tail yet.
	q.tail.Store(sentinel)

	for i := range 3 {
		got, err := q.Dequeue()
		if err != nil || got != i {
			t.Fatalf("Dequeue(%d): got (%d, %v)", i, got, err)
		}
	}
	if q.head.Load() != second || q.tail.Load() != second {
		t.Fatal("head and tail must both name the second segment")
	}
}
