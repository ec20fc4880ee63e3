// SPDX-License-Identifier: GPL-3.0-or-later
package domain

import "context"

// MailConnector is the mail-protocol collaborator for one mailbox. Connect
// and FetchAboveUID are the only slow paths; both honor the context so a
// stalled server turns into a per-configuration error instead of hanging
// the whole batch.
type MailConnector interface {
	Connect(ctx context.Context) error
	Disconnect() error
	HealthCheck(ctx context.Context) error

	// FetchAboveUID returns up to max messages with uid > watermark,
	// ascending by uid.
	FetchAboveUID(ctx context.Context, watermark uint32, max int) ([]*RawMessage, error)
	MoveToFolder(ctx context.Context, uids []uint32, folder string) error
	ToStorageRow(msg *RawMessage, config *MailboxConfig) MessageRow
}

// Dialer builds a connector for a configuration. The orchestrator dials per
// sync attempt so one broken mailbox never poisons another's session.
type Dialer func(config *MailboxConfig) MailConnector
