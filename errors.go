// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package segq

import (
	"errors"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock indicates the operation cannot proceed immediately.
//
// For Dequeue: the queue is empty (no data available)
// For Enqueue: the bounded retry budget set by [Builder.MaxRetries] ran
// out under contention. With the default unbounded retry, Enqueue never
// returns it.
//
// ErrWouldBlock is a control flow signal, not a failure. The caller should
// retry the operation later (with backoff or yield) rather than propagating
// the error.
//
// This is an alias for [iox.ErrWouldBlock] for ecosystem consistency.
var ErrWouldBlock = iox.ErrWouldBlock

var (
	// ErrNilElement is returned by Enqueue when called with a nil element.
	// The queue never stores a value it cannot tell apart from an empty slot.
	ErrNilElement = errors.New("segq: nil element")

	// ErrNoMemory reports that the [Allocator] refused a segment.
	// Enqueue wraps it; the element was not enqueued.
	ErrNoMemory = errors.New("segq: segment allocation failed")

	// ErrClosed is returned by operations on a closed queue.
	ErrClosed = errors.New("segq: queue closed")
)

// IsWouldBlock reports whether err indicates the operation would block.
// Delegates to [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsSemantic reports whether err is a control flow signal (not a failure).
// Delegates to [iox.IsSemantic].
func IsSemantic(err error) bool {
	return iox.IsSemantic(err)
}

// IsNonFailure reports whether err represents a non-failure condition.
// Returns true for nil, ErrWouldBlock, or ErrMore.
// Delegates to [iox.IsNonFailure].
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}
