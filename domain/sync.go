// SPDX-License-Identifier: GPL-3.0-or-later
package domain

import "time"

// SyncResult is the outcome of syncing a single configuration. Failures are
// values, not panics; callers never see a raw error escape a configuration.
type SyncResult struct {
	ConfigID string
	Success  bool
	Synced   int
	Error    string
}

// SyncSummary aggregates one full orchestrator pass over all configurations.
type SyncSummary struct {
	RunID        string
	TotalConfigs int
	TotalSynced  int
	Errors       []string
	StartedAt    time.Time
	FinishedAt   time.Time
	Duration     time.Duration
}

// StatsSnapshot is a read-only aggregation over all active configurations.
type StatsSnapshot struct {
	ActiveConfigs  int
	SyncedLastHour int
	TotalMessages  int64
	ErrorConfigs   int
}
