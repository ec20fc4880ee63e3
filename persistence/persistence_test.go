// SPDX-License-Identifier: GPL-3.0-or-later
package persistence

import (
	"os"
	"testing"
	"time"

	"github.com/prado2016/investra-ai-sub003/domain"
	"github.com/prado2016/investra-ai-sub003/log"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	log.InitLogging("error")
	os.Exit(m.Run())
}

func testPersistence(t *testing.T) *Persistence {
	p, err := NewPersistence(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, p.Close())
	})
	return p
}

func testConfig(id string) *domain.MailboxConfig {
	return &domain.MailboxConfig{
		ID:                 id,
		UserID:             "user-1",
		Email:              id + "@example.com",
		ImapHost:           "imap.example.com:993",
		Username:           id + "@example.com",
		Password:           "secret",
		MaxMessagesPerSync: 50,
		SyncStatus:         domain.StatusIdle,
		Active:             true,
	}
}

func messageRow(messageID, contentHash string) domain.MessageRow {
	return domain.MessageRow{
		ConfigID:        "cfg-1",
		UserID:          "user-1",
		UID:             1,
		MessageID:       messageID,
		ContentHash:     contentHash,
		TransactionHash: "txhash",
		OrderIDs:        []string{"WS-20240311-001"},
		Subject:         "Trade confirmation",
		Sender:          "noreply@wealthsimple.com",
		Symbol:          "AAPL",
		Direction:       "buy",
		Quantity:        decimal.NewFromInt(10),
		Price:           decimal.RequireFromString("182.50"),
		TradeDate:       "2024-03-11",
	}
}

func TestListActiveConfigurations(t *testing.T) {
	p := testPersistence(t)

	active := testConfig("cfg-active")
	inactive := testConfig("cfg-inactive")
	inactive.Active = false
	require.NoError(t, p.SaveConfiguration(active))
	require.NoError(t, p.SaveConfiguration(inactive))

	configs, err := p.ListActiveConfigurations()

	assert.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "cfg-active", configs[0].ID)
	assert.Equal(t, "cfg-active@example.com", configs[0].Email)
	assert.Equal(t, domain.StatusIdle, configs[0].SyncStatus)
	assert.Zero(t, configs[0].LastProcessedUID)
	assert.Nil(t, configs[0].LastSyncAt)
}

func TestUpdateStatus(t *testing.T) {
	p := testPersistence(t)
	require.NoError(t, p.SaveConfiguration(testConfig("cfg-1")))

	require.NoError(t, p.UpdateStatus("cfg-1", domain.StatusSyncing, ""))
	configs, err := p.ListActiveConfigurations()
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSyncing, configs[0].SyncStatus)
	// only terminal states stamp the sync time
	assert.Nil(t, configs[0].LastSyncAt)

	require.NoError(t, p.UpdateStatus("cfg-1", domain.StatusError, "connection refused"))
	configs, err = p.ListActiveConfigurations()
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, configs[0].SyncStatus)
	assert.Equal(t, "connection refused", configs[0].LastError)
	require.NotNil(t, configs[0].LastSyncAt)
	assert.WithinDuration(t, time.Now().UTC(), *configs[0].LastSyncAt, time.Minute)

	require.NoError(t, p.UpdateStatus("cfg-1", domain.StatusSuccess, ""))
	configs, err = p.ListActiveConfigurations()
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, configs[0].SyncStatus)
	assert.Empty(t, configs[0].LastError)
}

func TestUpdateWatermarkNeverDecreases(t *testing.T) {
	p := testPersistence(t)
	require.NoError(t, p.SaveConfiguration(testConfig("cfg-1")))

	require.NoError(t, p.UpdateWatermark("cfg-1", 20))
	configs, err := p.ListActiveConfigurations()
	require.NoError(t, err)
	assert.Equal(t, uint32(20), configs[0].LastProcessedUID)

	// a stale writer cannot move the watermark backwards
	require.NoError(t, p.UpdateWatermark("cfg-1", 15))
	configs, err = p.ListActiveConfigurations()
	require.NoError(t, err)
	assert.Equal(t, uint32(20), configs[0].LastProcessedUID)

	require.NoError(t, p.UpdateWatermark("cfg-1", 21))
	configs, err = p.ListActiveConfigurations()
	require.NoError(t, err)
	assert.Equal(t, uint32(21), configs[0].LastProcessedUID)
}

func TestIncrementSyncedCount(t *testing.T) {
	p := testPersistence(t)
	require.NoError(t, p.SaveConfiguration(testConfig("cfg-1")))

	require.NoError(t, p.IncrementSyncedCount("cfg-1", 3))
	require.NoError(t, p.IncrementSyncedCount("cfg-1", 2))

	configs, err := p.ListActiveConfigurations()
	require.NoError(t, err)
	assert.Equal(t, int64(5), configs[0].MessagesSynced)
}

func TestInsertMessagesCountsOnlyNewRows(t *testing.T) {
	p := testPersistence(t)

	inserted, err := p.InsertMessages([]domain.MessageRow{
		messageRow("msg-1", "hash-1"),
		messageRow("msg-2", "hash-2"),
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, inserted)

	// the same message plus a genuinely new one
	inserted, err = p.InsertMessages([]domain.MessageRow{
		messageRow("msg-2", "hash-2"),
		messageRow("msg-3", "hash-3"),
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, inserted)
}

func TestInsertMessagesDedupsByContentHash(t *testing.T) {
	p := testPersistence(t)

	inserted, err := p.InsertMessages([]domain.MessageRow{messageRow("msg-1", "hash-1")})
	require.NoError(t, err)
	require.Equal(t, 1, inserted)

	// re-delivered mail: new message id, same fingerprint
	inserted, err = p.InsertMessages([]domain.MessageRow{messageRow("msg-1-redelivered", "hash-1")})
	assert.NoError(t, err)
	assert.Zero(t, inserted)
}

func TestExistsInProcessed(t *testing.T) {
	p := testPersistence(t)

	exists, err := p.ExistsInProcessed("msg-1", "user-1")
	assert.NoError(t, err)
	assert.False(t, exists)

	_, err = p.InsertMessages([]domain.MessageRow{messageRow("msg-1", "hash-1")})
	require.NoError(t, err)

	exists, err = p.ExistsInProcessed("msg-1", "user-1")
	assert.NoError(t, err)
	assert.True(t, exists)

	// another user's inbox does not vouch for this one
	exists, err = p.ExistsInProcessed("msg-1", "user-2")
	assert.NoError(t, err)
	assert.False(t, exists)

	// messages already moved downstream still count as acknowledged
	_, err = p.db.Exec(
		"INSERT INTO processed_messages (user_id, message_id) VALUES (?, ?)",
		"user-1", "msg-2",
	)
	require.NoError(t, err)

	exists, err = p.ExistsInProcessed("msg-2", "user-1")
	assert.NoError(t, err)
	assert.True(t, exists)
}

func TestMarkArchived(t *testing.T) {
	p := testPersistence(t)

	_, err := p.InsertMessages([]domain.MessageRow{
		messageRow("msg-1", "hash-1"),
		messageRow("msg-2", "hash-2"),
	})
	require.NoError(t, err)

	marked, err := p.MarkArchived([]string{"msg-1", "msg-unknown"}, "user-1", "Archive/Imported")
	assert.NoError(t, err)
	assert.Equal(t, 1, marked)

	folder := ""
	err = p.db.Get(&folder, "SELECT archived_folder FROM inbox_messages WHERE message_id = ?", "msg-1")
	require.NoError(t, err)
	assert.Equal(t, "Archive/Imported", folder)

	marked, err = p.MarkArchived(nil, "user-1", "Archive/Imported")
	assert.NoError(t, err)
	assert.Zero(t, marked)
}

func TestDecimalString(t *testing.T) {
	assert.Empty(t, decimalString(decimal.Decimal{}))
	assert.Equal(t, "182.5", decimalString(decimal.RequireFromString("182.50")))
	assert.Equal(t, "1500", decimalString(decimal.NewFromInt(1500)))
}
