// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package segq_test

import (
	"errors"
	"fmt"

	"code.hybscloud.com/segq"
)

// ExampleNewQueue demonstrates basic FIFO hand-off.
func ExampleNewQueue() {
	q, err := segq.NewQueue[int](nil, 0)
	if err != nil {
		panic(err)
	}
	defer q.Close()

	for i := 1; i <= 3; i++ {
		v := i * 10
		q.Enqueue(&v)
	}

	for {
		v, err := q.Dequeue()
		if segq.IsWouldBlock(err) {
			break
		}
		fmt.Println(v)
	}

	// Output:
	// 10
	// 20
	// 30
}

type request struct{ ID int }

// Example_quickStart walks the package overview: enqueue a pointer, then
// take it back with Dequeue and with TryDequeue.
func Example_quickStart() {
	q, err := segq.NewQueue[*request](nil, 0)
	if err != nil {
		panic(err)
	}
	defer q.Close()

	req := &request{ID: 1}
	if err := q.Enqueue(&req); err != nil {
		panic(err)
	}
	req = &request{ID: 2}
	if err := q.Enqueue(&req); err != nil {
		panic(err)
	}

	next, err := q.Dequeue()
	if segq.IsWouldBlock(err) {
		fmt.Println("empty")
	} else {
		fmt.Println("dequeued", next.ID)
	}

	if next, ok := q.TryDequeue(); ok {
		fmt.Println("dequeued", next.ID)
	}
	_, err = q.Dequeue()
	fmt.Println(segq.IsWouldBlock(err))

	// Output:
	// dequeued 1
	// dequeued 2
	// true
}

// ExampleBuild demonstrates small segments chaining transparently.
func ExampleBuild() {
	q, err := segq.Build[string](segq.New().SegmentSize(2))
	if err != nil {
		panic(err)
	}
	defer q.Close()

	for _, s := range []string{"a", "b", "c", "d", "e"} {
		q.Enqueue(&s)
	}
	fmt.Println("segments:", q.Stats().Allocated)

	for {
		s, ok := q.TryDequeue()
		if !ok {
			break
		}
		fmt.Print(s)
	}
	fmt.Println()

	// Output:
	// segments: 3
	// abcde
}

// ExampleCountingAllocator demonstrates bounding segment memory.
func ExampleCountingAllocator() {
	alloc := segq.NewCountingAllocator(0)
	q, _ := segq.Build[int](segq.New().SegmentSize(4).Allocator(alloc))

	for i := range 10 {
		q.Enqueue(&i)
	}
	fmt.Println("live after enqueue:", alloc.Live())

	for range 10 {
		q.Dequeue()
	}
	q.Reclaim()
	fmt.Println("live after drain:", alloc.Live())

	q.Close()
	fmt.Println("live after close:", alloc.Live())

	// Output:
	// live after enqueue: 3
	// live after drain: 1
	// live after close: 0
}

// Example_allocationFailure demonstrates handling a refused segment.
func Example_allocationFailure() {
	q, _ := segq.Build[int](segq.New().SegmentSize(2).Allocator(&oneShot{}))
	defer q.Close()

	for i := range 3 {
		err := q.Enqueue(&i)
		switch {
		case err == nil:
			fmt.Println("enqueued", i)
		case errors.Is(err, segq.ErrNoMemory):
			fmt.Println("shed", i)
		}
	}

	// Output:
	// enqueued 0
	// enqueued 1
	// shed 2
}

// oneShot grants only the first allocation.
type oneShot struct{ used bool }

func (a *oneShot) Alloc(int) error {
	if a.used {
		return segq.ErrNoMemory
	}
	a.used = true
	return nil
}

func (a *oneShot) Free(int) {}
