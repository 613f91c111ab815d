// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package segq_test

import (
	"errors"
	"math/rand/v2"
	"testing"

	"code.hybscloud.com/segq"
	"github.com/eapache/queue"
)

// TestSequentialModel drives random operation sequences against segq and
// a ring-buffer FIFO reference and compares every observation.
func TestSequentialModel(t *testing.T) {
	for _, size := range []int{2, 4, 7, 64} {
		for seed := range uint64(8) {
			q := newQueue[int](t, size)
			model := queue.New()
			rng := rand.New(rand.NewPCG(seed, uint64(size)))

			next := 0
			for step := range 20_000 {
				// Bias toward enqueue so the chain grows and shrinks.
				if rng.IntN(100) < 55 {
					mustEnqueue(t, q, next)
					model.Add(next)
					next++
					continue
				}

				got, err := q.Dequeue()
				if model.Length() == 0 {
					if !errors.Is(err, segq.ErrWouldBlock) {
						t.Fatalf("size=%d seed=%d step=%d: Dequeue on empty: got (%d, %v)",
							size, seed, step, got, err)
					}
					continue
				}
				want := model.Remove().(int)
				if err != nil || got != want {
					t.Fatalf("size=%d seed=%d step=%d: Dequeue: got (%d, %v), want %d",
						size, seed, step, got, err, want)
				}
			}

			for model.Length() > 0 {
				mustDequeue(t, q, model.Remove().(int))
			}
			mustBeEmpty(t, q)
			if err := q.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
		}
	}
}
