// SPDX-License-Identifier: GPL-3.0-or-later
package persistence

import (
	"fmt"
	"strings"
	"time"

	"github.com/prado2016/investra-ai-sub003/domain"
	"github.com/prado2016/investra-ai-sub003/log"
	"github.com/prado2016/investra-ai-sub003/persistence/migrations"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Persistence struct {
	db *sqlx.DB
	l  *logrus.Logger
}

func NewPersistence(datasource string) (*Persistence, error) {
	db, err := sqlx.Connect("sqlite3", datasource)
	if err != nil {
		return nil, fmt.Errorf("could not open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	l := log.Logger(log.LOG_PERSISTENCE)
	l.WithField("file", datasource).Info("Connected")

	_, err = db.Exec(`PRAGMA journal_mode=WAL`)
	if err != nil {
		return nil, fmt.Errorf("could not set journal mode: %w", err)
	}
	_, err = db.Exec(`PRAGMA synchronous=normal`)
	if err != nil {
		return nil, fmt.Errorf("could not set synchronous mode: %w", err)
	}

	migrationSource := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrations.FS,
		Root:       "sql",
	}

	appliedMigrations, err := migrate.Exec(db.DB, "sqlite3", migrationSource, migrate.Up)
	if err != nil {
		return nil, fmt.Errorf("could not migrate to newest version: %w", err)
	}

	l.WithField("migrations", appliedMigrations).Debug("Executed migrations")

	return &Persistence{
		db: db,
		l:  l,
	}, nil
}

func (p *Persistence) Close() error {
	err := p.db.Close()
	if err != nil {
		return fmt.Errorf("could not close db: %w", err)
	}
	p.l.Info("Disconnected")
	return nil
}

func (p *Persistence) TestConnection() error {
	err := p.db.Ping()
	if err != nil {
		return fmt.Errorf("could not ping db: %w", err)
	}
	return nil
}

type dbConfig struct {
	ID                  string     `db:"id"`
	UserID              string     `db:"user_id"`
	Email               string     `db:"email"`
	ImapHost            string     `db:"imap_host"`
	Username            string     `db:"username"`
	Password            string     `db:"password"`
	LastProcessedUID    uint32     `db:"last_processed_uid"`
	MaxMessagesPerSync  int        `db:"max_messages_per_sync"`
	ArchiveAfterImport  bool       `db:"archive_after_import"`
	ArchiveFolder       string     `db:"archive_folder"`
	SyncStatus          string     `db:"sync_status"`
	LastError           string     `db:"last_error"`
	MessagesSynced      int64      `db:"messages_synced"`
	SyncIntervalMinutes int        `db:"sync_interval_minutes"`
	LastSyncAt          *time.Time `db:"last_sync_at"`
	Active              bool       `db:"active"`
}

func (p *Persistence) ListActiveConfigurations() ([]*domain.MailboxConfig, error) {
	dbConfigs := []dbConfig{}

	err := p.db.Select(
		&dbConfigs,
		`SELECT id, user_id, email, imap_host, username, password, last_processed_uid,
		        max_messages_per_sync, archive_after_import, archive_folder, sync_status,
		        last_error, messages_synced, sync_interval_minutes, last_sync_at, active
		 FROM mailbox_configurations WHERE active = 1 ORDER BY email`,
	)
	if err != nil {
		return nil, fmt.Errorf("could not query db: %w", err)
	}

	configs := []*domain.MailboxConfig{}
	for _, c := range dbConfigs {
		configs = append(
			configs,
			&domain.MailboxConfig{
				ID:                  c.ID,
				UserID:              c.UserID,
				Email:               c.Email,
				ImapHost:            c.ImapHost,
				Username:            c.Username,
				Password:            c.Password,
				LastProcessedUID:    c.LastProcessedUID,
				MaxMessagesPerSync:  c.MaxMessagesPerSync,
				ArchiveAfterImport:  c.ArchiveAfterImport,
				ArchiveFolder:       c.ArchiveFolder,
				SyncStatus:          domain.SyncStatus(c.SyncStatus),
				LastError:           c.LastError,
				MessagesSynced:      c.MessagesSynced,
				SyncIntervalMinutes: c.SyncIntervalMinutes,
				LastSyncAt:          c.LastSyncAt,
				Active:              c.Active,
			},
		)
	}

	p.l.WithField("count", len(configs)).Debug("Found active configurations")

	return configs, nil
}

// SaveConfiguration creates or replaces a mailbox configuration. The
// orchestrator never calls this; it exists for bootstrap tooling and tests,
// configurations are otherwise owned by the configuration surface.
func (p *Persistence) SaveConfiguration(config *domain.MailboxConfig) error {
	_, err := p.db.Exec(
		`INSERT OR REPLACE INTO mailbox_configurations
		 (id, user_id, email, imap_host, username, password, last_processed_uid,
		  max_messages_per_sync, archive_after_import, archive_folder, sync_status,
		  last_error, messages_synced, sync_interval_minutes, last_sync_at, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		config.ID, config.UserID, config.Email, config.ImapHost, config.Username,
		config.Password, config.LastProcessedUID, config.MaxMessagesPerSync,
		config.ArchiveAfterImport, config.ArchiveFolder, string(config.SyncStatus),
		config.LastError, config.MessagesSynced, config.SyncIntervalMinutes,
		config.LastSyncAt, config.Active,
	)
	if err != nil {
		return fmt.Errorf("could not save configuration: %w", err)
	}

	p.l.WithFields(logrus.Fields{"mailbox": config.Email}).Info("Persisted configuration")
	return nil
}

// UpdateStatus persists the status transition; terminal states also stamp
// the last sync time so stats can count recent syncs.
func (p *Persistence) UpdateStatus(configID string, status domain.SyncStatus, lastError string) error {
	var err error
	if status == domain.StatusSuccess || status == domain.StatusError {
		_, err = p.db.Exec(
			"UPDATE mailbox_configurations SET sync_status = ?, last_error = ?, last_sync_at = ? WHERE id = ?",
			string(status), lastError, time.Now().UTC(), configID,
		)
	} else {
		_, err = p.db.Exec(
			"UPDATE mailbox_configurations SET sync_status = ?, last_error = ? WHERE id = ?",
			string(status), lastError, configID,
		)
	}
	if err != nil {
		return fmt.Errorf("could not update status: %w", err)
	}

	return nil
}

// UpdateWatermark advances the watermark. The guard in the WHERE clause
// keeps it non-decreasing even under a racing writer.
func (p *Persistence) UpdateWatermark(configID string, uid uint32) error {
	_, err := p.db.Exec(
		"UPDATE mailbox_configurations SET last_processed_uid = ? WHERE id = ? AND last_processed_uid < ?",
		uid, configID, uid,
	)
	if err != nil {
		return fmt.Errorf("could not update watermark: %w", err)
	}

	return nil
}

func (p *Persistence) IncrementSyncedCount(configID string, delta int) error {
	_, err := p.db.Exec(
		"UPDATE mailbox_configurations SET messages_synced = messages_synced + ? WHERE id = ?",
		delta, configID,
	)
	if err != nil {
		return fmt.Errorf("could not update synced counter: %w", err)
	}

	return nil
}

// InsertMessages persists a batch in one transaction. Rows violating the
// message-id or content-hash uniqueness are skipped, not errors; the return
// value counts rows actually inserted.
func (p *Persistence) InsertMessages(rows []domain.MessageRow) (int, error) {
	tx, err := p.db.Beginx()
	if err != nil {
		return 0, fmt.Errorf("could not start transaction: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT OR IGNORE INTO inbox_messages
		 (config_id, user_id, uid, message_id, content_hash, transaction_hash,
		  order_ids, subject, sender, symbol, direction, quantity, price, trade_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, txEnd(tx, fmt.Errorf("could not prepare statement: %w", err))
	}

	inserted := 0
	for _, row := range rows {
		result, err := stmt.Exec(
			row.ConfigID, row.UserID, row.UID, row.MessageID, row.ContentHash,
			row.TransactionHash, strings.Join(row.OrderIDs, ","), row.Subject,
			row.Sender, row.Symbol, row.Direction, decimalString(row.Quantity),
			decimalString(row.Price), row.TradeDate,
		)
		if err != nil {
			return 0, txEnd(tx, fmt.Errorf("could not save message: %w", err))
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return 0, txEnd(tx, fmt.Errorf("could not get num of affected rows: %w", err))
		}
		inserted += int(affected)
	}

	err = txEnd(tx, nil)
	if err != nil {
		return 0, err
	}

	return inserted, nil
}

// ExistsInProcessed reports whether storage has acknowledged the message:
// either it sits in the inbox table (inserted now or by an earlier sync) or
// it already went through processing.
func (p *Persistence) ExistsInProcessed(messageID, userID string) (bool, error) {
	count := 0
	err := p.db.Get(
		&count,
		`SELECT (SELECT COUNT(*) FROM inbox_messages WHERE user_id = ? AND message_id = ?)
		      + (SELECT COUNT(*) FROM processed_messages WHERE user_id = ? AND message_id = ?)`,
		userID, messageID, userID, messageID,
	)
	if err != nil {
		return false, fmt.Errorf("could not query db: %w", err)
	}

	return count > 0, nil
}

func (p *Persistence) MarkArchived(messageIDs []string, userID, folder string) (int, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}

	qry, args, err := sqlx.Named(
		"UPDATE inbox_messages SET archived_folder = :folder WHERE user_id = :user AND message_id IN (:ids)",
		map[string]interface{}{
			"folder": folder,
			"user":   userID,
			"ids":    messageIDs,
		},
	)
	if err != nil {
		return 0, fmt.Errorf("could not create query: %w", err)
	}

	qry, args, err = sqlx.In(qry, args...)
	if err != nil {
		return 0, fmt.Errorf("could not replace IN in query: %w", err)
	}

	result, err := p.db.Exec(qry, args...)
	if err != nil {
		return 0, fmt.Errorf("could not mark messages archived: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("could not get num of affected rows: %w", err)
	}

	p.l.WithFields(logrus.Fields{"count": affected, "folder": folder}).Debug("Marked messages archived")

	return int(affected), nil
}

func decimalString(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}

func txEnd(tx *sqlx.Tx, err error) error {
	if err == nil {
		err = tx.Commit()
		if err != nil {
			return fmt.Errorf("could not commit tx: %w", err)
		}
	} else {
		rollbackErr := tx.Rollback()
		if rollbackErr != nil {
			errStr := err.Error()
			return fmt.Errorf("%s, could not rollback tx: %w", errStr, rollbackErr)
		} else {
			return err
		}
	}

	return nil
}
