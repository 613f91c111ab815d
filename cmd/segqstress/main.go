// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command segqstress drives a segq queue with concurrent producers and
// consumers and verifies that every element is delivered exactly once.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errCheckFailed = errors.New("stress check failed")

func newRootCmd() *cobra.Command {
	cfg := DefaultConfig()
	var (
		profile      string
		verbose      bool
		printMetrics bool
	)

	cmd := &cobra.Command{
		Use:           "segqstress",
		Short:         "Stress test the segq lock-free queue",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if profile != "" {
				loaded, err := LoadConfig(profile)
				if err != nil {
					return err
				}
				applyFlags(cmd, &loaded, cfg)
				cfg = loaded
			}

			log, err := newLogger(verbose)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			registry := metrics.NewRegistry()
			log.Info("stress starting",
				zap.Int("producers", cfg.Producers),
				zap.Int("consumers", cfg.Consumers),
				zap.Int("ops", cfg.Ops),
				zap.Int("segment_size", cfg.SegmentSize),
				zap.Int("max_threads", cfg.MaxThreads),
				zap.Int("max_retries", cfg.MaxRetries),
				zap.Int64("memory_limit", cfg.MemoryLimit))

			r, runErr := Run(ctx, cfg, registry, log)
			if r == nil {
				return runErr
			}

			opsPerSec := float64(r.Enqueued+r.Dequeued) / r.Elapsed.Seconds()
			log.Info("stress finished",
				zap.Int64("enqueued", r.Enqueued),
				zap.Int64("dequeued", r.Dequeued),
				zap.Int64("duplicates", r.Duplicates),
				zap.Int64("missing", r.Missing),
				zap.Duration("elapsed", r.Elapsed),
				zap.Float64("ops_per_sec", opsPerSec),
				zap.Int64("segments_allocated", r.Segments.Allocated),
				zap.Int64("segments_retired", r.Segments.Retired),
				zap.Int64("alloc_failures", r.Segments.AllocFailures),
				zap.Int64("segments_live_after", r.LiveAfter))
			if printMetrics {
				metrics.WriteOnce(registry, cmd.OutOrStdout())
			}

			if runErr != nil {
				return runErr
			}
			if !r.OK() {
				return errCheckFailed
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&profile, "config", "c", "", "YAML stress profile; flags override its fields")
	f.IntVarP(&cfg.Producers, "producers", "p", cfg.Producers, "producer goroutines")
	f.IntVarP(&cfg.Consumers, "consumers", "C", cfg.Consumers, "consumer goroutines")
	f.IntVarP(&cfg.Ops, "ops", "n", cfg.Ops, "total operations (half enqueue, half dequeue)")
	f.IntVar(&cfg.SegmentSize, "segment-size", cfg.SegmentSize, "slots per segment")
	f.IntVar(&cfg.MaxThreads, "max-threads", cfg.MaxThreads, "hazard domain size (0 = default)")
	f.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "enqueue retry budget (0 = unbounded)")
	f.Int64Var(&cfg.MemoryLimit, "memory-limit", cfg.MemoryLimit, "segment memory limit in bytes (0 = unlimited)")
	f.StringVar(&cfg.Timeout, "timeout", cfg.Timeout, "abort the run after this duration")
	f.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	f.BoolVar(&printMetrics, "metrics", false, "print segment counters after the run")
	return cmd
}

// applyFlags copies explicitly set flags from flagCfg onto dst.
func applyFlags(cmd *cobra.Command, dst *Config, flagCfg Config) {
	set := cmd.Flags().Changed
	if set("producers") {
		dst.Producers = flagCfg.Producers
	}
	if set("consumers") {
		dst.Consumers = flagCfg.Consumers
	}
	if set("ops") {
		dst.Ops = flagCfg.Ops
	}
	if set("segment-size") {
		dst.SegmentSize = flagCfg.SegmentSize
	}
	if set("max-threads") {
		dst.MaxThreads = flagCfg.MaxThreads
	}
	if set("max-retries") {
		dst.MaxRetries = flagCfg.MaxRetries
	}
	if set("memory-limit") {
		dst.MemoryLimit = flagCfg.MemoryLimit
	}
	if set("timeout") {
		dst.Timeout = flagCfg.Timeout
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	cmd := newRootCmd()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		cmd.PrintErrln("segqstress:", err)
		os.Exit(1)
	}
}
