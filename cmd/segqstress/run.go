// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/segq"
	"github.com/rcrowley/go-metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Report summarizes one stress run.
type Report struct {
	Enqueued   int64
	Dequeued   int64
	Duplicates int64
	Missing    int64
	Elapsed    time.Duration
	Segments   segq.Stats
	LiveAfter  int64 // Live segments after drain and Reclaim
}

// OK reports whether every element was dequeued exactly once and all
// segments but the head were reclaimed.
func (r *Report) OK() bool {
	return r.Duplicates == 0 && r.Missing == 0 && r.Enqueued == r.Dequeued && r.LiveAfter == 1
}

// Run executes the profile: Producers goroutines enqueue Ops/2 tagged
// values in total while Consumers goroutines drain them.
func Run(ctx context.Context, cfg Config, registry metrics.Registry, log *zap.Logger) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout, _ := cfg.timeout()

	alloc := segq.NewCountingAllocator(cfg.MemoryLimit)
	q, err := segq.Build[int](segq.New().
		SegmentSize(cfg.SegmentSize).
		MaxThreads(cfg.MaxThreads).
		MaxRetries(cfg.MaxRetries).
		Allocator(alloc).
		Logger(log).
		Metrics(registry, "stress"))
	if err != nil {
		return nil, err
	}
	defer q.Close()

	perProducer := cfg.Ops / 2 / cfg.Producers
	total := perProducer * cfg.Producers
	seen := make([]atomix.Int32, total)
	var enqueued, dequeued, duplicates atomix.Int64

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	start := time.Now()
	for p := range cfg.Producers {
		g.Go(func() error {
			backoff := iox.Backoff{}
			for i := range perProducer {
				v := p*perProducer + i
				for {
					err := q.Enqueue(&v)
					if err == nil {
						break
					}
					// Retry budget or memory limit: wait for consumers.
					if !segq.IsWouldBlock(err) && !errors.Is(err, segq.ErrNoMemory) {
						return fmt.Errorf("producer %d: %w", p, err)
					}
					if ctx.Err() != nil {
						return fmt.Errorf("producer %d: %w", p, ctx.Err())
					}
					backoff.Wait()
				}
				backoff.Reset()
				enqueued.Add(1)
			}
			return nil
		})
	}

	for c := range cfg.Consumers {
		g.Go(func() error {
			backoff := iox.Backoff{}
			for dequeued.Load() < int64(total) {
				v, ok := q.TryDequeue()
				if !ok {
					if ctx.Err() != nil {
						return fmt.Errorf("consumer %d: %w", c, ctx.Err())
					}
					backoff.Wait()
					continue
				}
				backoff.Reset()
				if v < 0 || v >= total {
					return fmt.Errorf("consumer %d: value %d out of range", c, v)
				}
				if seen[v].Add(1) > 1 {
					duplicates.Add(1)
				}
				dequeued.Add(1)
			}
			return nil
		})
	}

	err = g.Wait()
	elapsed := time.Since(start)

	var missing int64
	for i := range seen {
		if seen[i].Load() == 0 {
			missing++
		}
	}
	q.Reclaim()

	r := &Report{
		Enqueued:   enqueued.Load(),
		Dequeued:   dequeued.Load(),
		Duplicates: duplicates.Load(),
		Missing:    missing,
		Elapsed:    elapsed,
		Segments:   q.Stats(),
		LiveAfter:  alloc.Live(),
	}
	return r, err
}
