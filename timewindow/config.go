// SPDX-License-Identifier: GPL-3.0-or-later

// Package timewindow grades how likely two timestamped, economically
// described trade events are the same real-world trade. It runs off the
// ingestion hot path, is pure CPU and never suspends.
package timewindow

import "time"

// Config is the window ladder evaluated by Analyze. Every boundary is
// overridable; zero values fall back to the defaults.
type Config struct {
	Second time.Duration
	Minute time.Duration
	Hour   time.Duration
	Day    time.Duration
	Week   time.Duration

	RapidTrading time.Duration
	PartialFill  time.Duration
	SplitOrder   time.Duration
	Settlement   time.Duration
}

func DefaultConfig() Config {
	return Config{
		Second:       time.Second,
		Minute:       time.Minute,
		Hour:         time.Hour,
		Day:          24 * time.Hour,
		Week:         7 * 24 * time.Hour,
		RapidTrading: 5 * time.Second,
		PartialFill:  30 * time.Minute,
		SplitOrder:   2 * time.Hour,
		Settlement:   3 * 24 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Second <= 0 {
		c.Second = d.Second
	}
	if c.Minute <= 0 {
		c.Minute = d.Minute
	}
	if c.Hour <= 0 {
		c.Hour = d.Hour
	}
	if c.Day <= 0 {
		c.Day = d.Day
	}
	if c.Week <= 0 {
		c.Week = d.Week
	}
	if c.RapidTrading <= 0 {
		c.RapidTrading = d.RapidTrading
	}
	if c.PartialFill <= 0 {
		c.PartialFill = d.PartialFill
	}
	if c.SplitOrder <= 0 {
		c.SplitOrder = d.SplitOrder
	}
	if c.Settlement <= 0 {
		c.Settlement = d.Settlement
	}
	return c
}
