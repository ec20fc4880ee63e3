// SPDX-License-Identifier: GPL-3.0-or-later
package mailsync

import (
	"fmt"
	"time"
)

// Throttle paces successive configurations within one pass. Production uses
// a real sleeper; tests inject a recording fake so no timer ever fires.
type Throttle interface {
	Pause()
}

// Clock supplies wall-clock time so summaries and stats are testable.
type Clock interface {
	Now() time.Time
}

type sleeperThrottle struct {
	delay time.Duration
}

func (s *sleeperThrottle) Pause() {
	time.Sleep(s.delay)
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

type ConfigFunc func(c *configuration) error

// ThrottleDelay sets the pause between two configurations in one pass.
func ThrottleDelay(delay time.Duration) ConfigFunc {
	return func(c *configuration) error {
		if delay < 0 {
			return fmt.Errorf("ThrottleDelay cannot be negative")
		}

		c.throttle = &sleeperThrottle{delay: delay}
		return nil
	}
}

// WithThrottle replaces the sleeper outright.
func WithThrottle(throttle Throttle) ConfigFunc {
	return func(c *configuration) error {
		if throttle == nil {
			return fmt.Errorf("Throttle cannot be nil")
		}

		c.throttle = throttle
		return nil
	}
}

// AttemptTimeout bounds connect+fetch for a single configuration so a
// stalled mail server cannot hang the batch.
func AttemptTimeout(timeout time.Duration) ConfigFunc {
	return func(c *configuration) error {
		if timeout <= 0 {
			return fmt.Errorf("AttemptTimeout must be positive")
		}

		c.attemptTimeout = timeout
		return nil
	}
}

func WithClock(clock Clock) ConfigFunc {
	return func(c *configuration) error {
		if clock == nil {
			return fmt.Errorf("Clock cannot be nil")
		}

		c.clock = clock
		return nil
	}
}

type configuration struct {
	throttle       Throttle
	attemptTimeout time.Duration
	clock          Clock
}

func defaultConfiguration() *configuration {
	return &configuration{
		throttle:       &sleeperThrottle{delay: time.Second},
		attemptTimeout: 2 * time.Minute,
		clock:          realClock{},
	}
}
