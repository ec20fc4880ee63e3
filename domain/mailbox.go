// SPDX-License-Identifier: GPL-3.0-or-later
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type SyncStatus string

const (
	StatusIdle    = SyncStatus("idle")
	StatusSyncing = SyncStatus("syncing")
	StatusSuccess = SyncStatus("success")
	StatusError   = SyncStatus("error")
)

// MailboxConfig is one user mailbox watched for broker confirmation mails.
// The orchestrator only ever mutates status, watermark and counters through
// the Storage collaborator; everything else is owned by the configuration UI.
type MailboxConfig struct {
	ID     string
	UserID string
	Email  string

	ImapHost string
	Username string
	Password string

	// LastProcessedUID is the incremental-sync watermark. Messages with
	// uid <= watermark are never fetched again.
	LastProcessedUID   uint32
	MaxMessagesPerSync int

	ArchiveAfterImport bool
	ArchiveFolder      string

	SyncStatus          SyncStatus
	LastError           string
	MessagesSynced      int64
	SyncIntervalMinutes int
	LastSyncAt          *time.Time

	Active bool
}

// RawMessage is a fetched mailbox message, alive for one sync pass only.
type RawMessage struct {
	UID        uint32
	MessageID  string
	Subject    string
	Sender     string
	TextBody   string
	HTMLBody   string
	ReceivedAt time.Time
	Raw        []byte
}

// MessageRow is the storage shape of an ingested message, fingerprints
// included so the message table's uniqueness constraints can dedup inserts.
type MessageRow struct {
	ConfigID        string
	UserID          string
	UID             uint32
	MessageID       string
	ContentHash     string
	TransactionHash string
	OrderIDs        []string
	Subject         string
	Sender          string

	Symbol    string
	Direction string
	Quantity  decimal.Decimal
	Price     decimal.Decimal
	TradeDate string
}
