// SPDX-License-Identifier: GPL-3.0-or-later

// Package mailsync drives incremental mailbox ingestion across all active
// configurations. Configurations are processed sequentially per pass, with a
// throttle in between, so remote mail servers never see bursty connections.
package mailsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prado2016/investra-ai-sub003/domain"
	"github.com/prado2016/investra-ai-sub003/log"
	"github.com/prado2016/investra-ai-sub003/mail"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Syncer struct {
	storage domain.Storage
	dial    domain.Dialer

	configuration *configuration

	// one mutex per configuration id; guarantees at most one in-flight
	// SyncOne per configuration across overlapping passes
	locks sync.Map

	l *logrus.Logger
}

func NewSyncer(storage domain.Storage, dial domain.Dialer, configFunc ...ConfigFunc) (*Syncer, error) {
	config := defaultConfiguration()
	for _, f := range configFunc {
		err := f(config)
		if err != nil {
			return nil, fmt.Errorf("error applying configuration: %w", err)
		}
	}

	return &Syncer{
		storage:       storage,
		dial:          dial,
		configuration: config,
		l:             log.Logger(log.LOG_SYNC),
	}, nil
}

// SyncAll runs one pass over every active configuration. A failing
// configuration is recorded in the summary and never aborts the remaining
// ones; an unreachable storage aborts the whole pass with a single global
// error before any configuration is attempted.
func (s *Syncer) SyncAll(ctx context.Context) domain.SyncSummary {
	summary := domain.SyncSummary{
		RunID:     uuid.NewString(),
		StartedAt: s.configuration.clock.Now(),
		Errors:    []string{},
	}

	configs, err := s.storage.ListActiveConfigurations()
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("storage unavailable: %v", err))
		return s.finish(summary)
	}

	summary.TotalConfigs = len(configs)
	s.l.WithFields(logrus.Fields{"run": summary.RunID, "configs": len(configs)}).Info("Starting sync pass")

	for i, config := range configs {
		if i > 0 {
			s.configuration.throttle.Pause()
		}

		result := s.SyncOne(ctx, config)
		if result.Success {
			summary.TotalSynced += result.Synced
		} else {
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %s", config.Email, result.Error))
		}
	}

	return s.finish(summary)
}

func (s *Syncer) finish(summary domain.SyncSummary) domain.SyncSummary {
	summary.FinishedAt = s.configuration.clock.Now()
	summary.Duration = summary.FinishedAt.Sub(summary.StartedAt)
	s.l.WithFields(logrus.Fields{"run": summary.RunID, "synced": summary.TotalSynced, "errors": len(summary.Errors), "duration": summary.Duration}).Info("Finished sync pass")
	return summary
}

// SyncOne syncs a single configuration and returns the outcome as a value;
// collaborator failures never escape as errors. A configuration already
// being synced is rejected without touching its status or watermark.
func (s *Syncer) SyncOne(ctx context.Context, config *domain.MailboxConfig) domain.SyncResult {
	lock := s.configLock(config.ID)
	if !lock.TryLock() {
		s.l.WithField("mailbox", config.Email).Warn("Sync already in progress, skipping")
		return domain.SyncResult{
			ConfigID: config.ID,
			Error:    "sync already in progress",
		}
	}
	defer lock.Unlock()

	synced, err := s.attempt(ctx, config)
	if err != nil {
		s.l.WithFields(logrus.Fields{"mailbox": config.Email, "error": err}).Warn("Sync failed")
		s.setStatus(config, domain.StatusError, err.Error())
		return domain.SyncResult{
			ConfigID: config.ID,
			Error:    err.Error(),
		}
	}

	return domain.SyncResult{
		ConfigID: config.ID,
		Success:  true,
		Synced:   synced,
	}
}

func (s *Syncer) attempt(ctx context.Context, config *domain.MailboxConfig) (int, error) {
	err := s.storage.UpdateStatus(config.ID, domain.StatusSyncing, "")
	if err != nil {
		return 0, fmt.Errorf("could not mark configuration as syncing: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.configuration.attemptTimeout)
	defer cancel()

	connection := s.dial(config)
	err = connection.Connect(ctx)
	if err != nil {
		return 0, fmt.Errorf("could not connect to mailbox: %w", err)
	}
	defer func() {
		disconnectErr := connection.Disconnect()
		if disconnectErr != nil {
			s.l.WithFields(logrus.Fields{"mailbox": config.Email, "error": disconnectErr}).Warn("Could not disconnect cleanly")
		}
	}()

	messages, err := connection.FetchAboveUID(ctx, config.LastProcessedUID, config.MaxMessagesPerSync)
	if err != nil {
		return 0, fmt.Errorf("could not fetch new messages: %w", err)
	}

	if len(messages) == 0 {
		s.l.WithFields(logrus.Fields{"mailbox": config.Email, "watermark": config.LastProcessedUID}).Debug("No new messages")
		err = s.storage.UpdateStatus(config.ID, domain.StatusSuccess, "")
		if err != nil {
			return 0, fmt.Errorf("could not mark configuration as successful: %w", err)
		}
		return 0, nil
	}

	rows := make([]domain.MessageRow, len(messages))
	for i, m := range messages {
		rows[i] = connection.ToStorageRow(m, config)
	}

	inserted, err := s.storage.InsertMessages(rows)
	if err != nil {
		return 0, fmt.Errorf("could not persist messages: %w", err)
	}
	s.l.WithFields(logrus.Fields{"mailbox": config.Email, "fetched": len(messages), "inserted": inserted}).Info("Persisted new messages")

	if config.ArchiveAfterImport {
		s.archive(ctx, connection, config, messages, inserted)
	}

	// Messages arrive in ascending uid order; the last one is the new
	// watermark. Inserts are transactional, so a partial batch can never
	// have advanced past unpersisted mail.
	maxUID := messages[len(messages)-1].UID
	if maxUID > config.LastProcessedUID {
		err = s.storage.UpdateWatermark(config.ID, maxUID)
		if err != nil {
			return 0, fmt.Errorf("could not advance watermark: %w", err)
		}
	}

	if inserted > 0 {
		err = s.storage.IncrementSyncedCount(config.ID, inserted)
		if err != nil {
			return 0, fmt.Errorf("could not update synced counter: %w", err)
		}
	}

	err = s.storage.UpdateStatus(config.ID, domain.StatusSuccess, "")
	if err != nil {
		return 0, fmt.Errorf("could not mark configuration as successful: %w", err)
	}

	return inserted, nil
}

// archive moves acknowledged messages to the configured folder. Archiving is
// a courtesy: every failure here is logged and swallowed, the sync still
// succeeds.
func (s *Syncer) archive(ctx context.Context, connection domain.MailConnector, config *domain.MailboxConfig, messages []*domain.RawMessage, inserted int) {
	wholeBatchPersisted := inserted == len(messages)

	uids := []uint32{}
	messageIDs := []string{}
	for _, m := range messages {
		acknowledged := wholeBatchPersisted
		if !acknowledged {
			var err error
			acknowledged, err = s.storage.ExistsInProcessed(m.MessageID, config.UserID)
			if err != nil {
				s.l.WithFields(logrus.Fields{"mailbox": config.Email, "subject": mail.ShortSubject(m.Subject), "error": err}).Warn("Could not verify message before archiving, skipping it")
				continue
			}
		}

		if acknowledged {
			uids = append(uids, m.UID)
			messageIDs = append(messageIDs, m.MessageID)
		}
	}

	if len(uids) == 0 {
		return
	}

	err := connection.MoveToFolder(ctx, uids, config.ArchiveFolder)
	if err != nil {
		s.l.WithFields(logrus.Fields{"mailbox": config.Email, "folder": config.ArchiveFolder, "error": err}).Warn("Could not archive messages")
		return
	}

	_, err = s.storage.MarkArchived(messageIDs, config.UserID, config.ArchiveFolder)
	if err != nil {
		s.l.WithFields(logrus.Fields{"mailbox": config.Email, "error": err}).Warn("Messages moved but could not be marked archived")
	}
}

// TestConfiguration probes connectivity only; no fetch, no watermark or
// counter mutation.
func (s *Syncer) TestConfiguration(ctx context.Context, config *domain.MailboxConfig) bool {
	ctx, cancel := context.WithTimeout(ctx, s.configuration.attemptTimeout)
	defer cancel()

	connection := s.dial(config)
	err := connection.Connect(ctx)
	if err == nil {
		err = connection.HealthCheck(ctx)
		disconnectErr := connection.Disconnect()
		if err == nil {
			err = disconnectErr
		}
	}

	if err != nil {
		s.setStatus(config, domain.StatusError, err.Error())
		return false
	}

	s.setStatus(config, domain.StatusSuccess, "")
	return true
}

// Stats aggregates over all active configurations without side effects.
func (s *Syncer) Stats() (domain.StatsSnapshot, error) {
	configs, err := s.storage.ListActiveConfigurations()
	if err != nil {
		return domain.StatsSnapshot{}, fmt.Errorf("could not list configurations: %w", err)
	}

	stats := domain.StatsSnapshot{ActiveConfigs: len(configs)}
	hourAgo := s.configuration.clock.Now().Add(-time.Hour)
	for _, config := range configs {
		stats.TotalMessages += config.MessagesSynced
		if config.SyncStatus == domain.StatusError {
			stats.ErrorConfigs++
		}
		if config.LastSyncAt != nil && config.LastSyncAt.After(hourAgo) {
			stats.SyncedLastHour++
		}
	}

	return stats, nil
}

func (s *Syncer) setStatus(config *domain.MailboxConfig, status domain.SyncStatus, lastError string) {
	err := s.storage.UpdateStatus(config.ID, status, lastError)
	if err != nil {
		s.l.WithFields(logrus.Fields{"mailbox": config.Email, "status": status, "error": err}).Warn("Could not persist status")
	}
}

func (s *Syncer) configLock(configID string) *sync.Mutex {
	lock, _ := s.locks.LoadOrStore(configID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}
