// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"code.hybscloud.com/segq"
	"github.com/goccy/go-yaml"
)

// Config is a stress profile. It can be loaded from YAML and overridden
// by flags.
type Config struct {
	Producers   int    `yaml:"producers"`
	Consumers   int    `yaml:"consumers"`
	Ops         int    `yaml:"ops"`
	SegmentSize int    `yaml:"segment_size"`
	MaxThreads  int    `yaml:"max_threads"`
	MaxRetries  int    `yaml:"max_retries"`
	MemoryLimit int64  `yaml:"memory_limit"`
	Timeout     string `yaml:"timeout"`
}

// DefaultConfig returns the 8×8, 10^6 operation profile.
func DefaultConfig() Config {
	return Config{
		Producers:   8,
		Consumers:   8,
		Ops:         1_000_000,
		SegmentSize: segq.DefaultSegmentSize,
		Timeout:     "1m",
	}
}

// LoadConfig reads a YAML profile on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Producers < 1:
		return errors.New("producers must be >= 1")
	case c.Consumers < 1:
		return errors.New("consumers must be >= 1")
	case c.Ops < 2*c.Producers:
		return fmt.Errorf("ops must be >= %d for %d producers", 2*c.Producers, c.Producers)
	case c.SegmentSize < 2:
		return errors.New("segment_size must be >= 2")
	case c.MaxThreads < 0:
		return errors.New("max_threads must be >= 0")
	case c.MaxRetries < 0:
		return errors.New("max_retries must be >= 0")
	case c.MemoryLimit < 0:
		return errors.New("memory_limit must be >= 0")
	}
	if _, err := c.timeout(); err != nil {
		return fmt.Errorf("timeout: %w", err)
	}
	return nil
}

func (c Config) timeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.New("must be positive")
	}
	return d, nil
}
