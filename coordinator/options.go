/*
Copyright 2026 Issuepilot Authors
SPDX-License-Identifier: Apache-2.0
*/

package coordinator

import (
	"errors"
	"time"
)

// Option configures a Coordinator.
type Option func(*Coordinator) error

// WithTimeout sets how long a context may go without a report before it is
// failed and evicted.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		c.timeout = d
		return nil
	}
}

// WithSweepInterval sets how often Run scans for stalled contexts.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Coordinator) error {
		if d <= 0 {
			return errors.New("sweep interval must be positive")
		}
		c.sweepInterval = d
		return nil
	}
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(c *Coordinator) error {
		if clock == nil {
			return errors.New("clock cannot be nil")
		}
		c.clock = clock
		return nil
	}
}
