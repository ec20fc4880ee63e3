// SPDX-License-Identifier: GPL-3.0-or-later
package domain

// Storage is the persistence collaborator. InsertMessages must run in a
// single transaction and enforce message-level uniqueness (message id and
// content hash) so that re-fetches and concurrent inserts are safe; it
// returns the number of rows actually inserted after dedup.
type Storage interface {
	Close() error
	TestConnection() error
	ListActiveConfigurations() ([]*MailboxConfig, error)
	UpdateStatus(configID string, status SyncStatus, lastError string) error
	UpdateWatermark(configID string, uid uint32) error
	IncrementSyncedCount(configID string, delta int) error
	InsertMessages(rows []MessageRow) (int, error)
	ExistsInProcessed(messageID, userID string) (bool, error)
	MarkArchived(messageIDs []string, userID, folder string) (int, error)
}
