// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package segq

// Producer is the interface for enqueueing elements.
//
// The element is passed by pointer to avoid copying large structs. The
// queue stores a copy of the pointed-to value, so the original can be
// modified after Enqueue returns.
type Producer[T any] interface {
	// Enqueue adds an element to the queue (non-blocking).
	// The queue is unbounded: Enqueue fails only on a nil element,
	// allocator refusal, an exhausted retry budget, or a closed queue.
	Enqueue(elem *T) error
}

// Consumer is the interface for dequeueing elements.
//
// The element is returned by value. The slot is cleared to allow garbage
// collection of referenced objects.
type Consumer[T any] interface {
	// Dequeue removes and returns an element from the queue (non-blocking).
	// Returns (zero-value, ErrWouldBlock) if the queue is empty.
	Dequeue() (T, error)
}

var (
	_ Producer[int] = (*Queue[int])(nil)
	_ Consumer[int] = (*Queue[int])(nil)
)
