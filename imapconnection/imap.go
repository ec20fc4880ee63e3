// SPDX-License-Identifier: GPL-3.0-or-later
package imapconnection

import (
	"context"
	"fmt"
	"io"
	"net"
	"sort"
	"time"

	"github.com/prado2016/investra-ai-sub003/domain"
	"github.com/prado2016/investra-ai-sub003/identify"
	"github.com/prado2016/investra-ai-sub003/log"
	"github.com/prado2016/investra-ai-sub003/mail"

	"github.com/emersion/go-imap"
	move "github.com/emersion/go-imap-move"
	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"
)

const inboxFolder = "INBOX"

// ImapConnection implements domain.MailConnector for one mailbox
// configuration. One connection serves one sync attempt.
type ImapConnection struct {
	config     *domain.MailboxConfig
	connection *client.Client
	mailMover  mover

	l *logrus.Logger
}

// NewConnector is a domain.Dialer.
func NewConnector(config *domain.MailboxConfig) domain.MailConnector {
	return &ImapConnection{
		config: config,
		l:      log.Logger(log.LOG_IMAP),
	}
}

func (ic *ImapConnection) Connect(ctx context.Context) error {
	dialer := &net.Dialer{}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Timeout = time.Until(deadline)
	}

	imapClient, err := client.DialWithDialerTLS(dialer, ic.config.ImapHost, nil)
	if err != nil {
		return fmt.Errorf("could not dial to imap: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		imapClient.Timeout = time.Until(deadline)
	}

	err = imapClient.Login(ic.config.Username, ic.config.Password)
	if err != nil {
		return fmt.Errorf("could not login to imap: %w", err)
	}

	moveClient := move.NewClient(imapClient)
	moveSupported, err := moveClient.SupportMove()
	if err != nil {
		return fmt.Errorf("could not check for MOVE support: %w", err)
	}

	ic.connection = imapClient
	baseLogger := ic.l.WithFields(logrus.Fields{"server": ic.config.ImapHost, "mailbox": ic.config.Email})
	baseLogger.Debug("Logged in to server")

	if moveSupported {
		baseLogger.Debug("MOVE supported on server")
		ic.mailMover = &moveMover{moveClient: moveClient}
	} else {
		baseLogger.Info("MOVE not supported on server, falling back to copy&expunge")
		ic.mailMover = &compatibilityMover{client: imapClient}
	}

	_, err = imapClient.Select(inboxFolder, false)
	if err != nil {
		return fmt.Errorf("could not select folder %s: %w", inboxFolder, err)
	}

	return nil
}

func (ic *ImapConnection) Disconnect() error {
	if ic.connection == nil {
		return nil
	}
	return ic.connection.Logout()
}

func (ic *ImapConnection) HealthCheck(ctx context.Context) error {
	if ic.connection == nil {
		return fmt.Errorf("not connected")
	}

	err := ic.connection.Noop()
	if err != nil {
		return fmt.Errorf("noop failed: %w", err)
	}

	return nil
}

// FetchAboveUID lists uids strictly above the watermark, caps them at max
// and fetches full bodies in ascending uid order.
func (ic *ImapConnection) FetchAboveUID(ctx context.Context, watermark uint32, max int) ([]*domain.RawMessage, error) {
	criteria := imap.NewSearchCriteria()
	rangeSet := &imap.SeqSet{}
	rangeSet.AddRange(watermark+1, 0)
	criteria.Uid = rangeSet

	uids, err := ic.connection.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("could not search folder: %w", err)
	}

	// Servers ignoring the range criteria can still return stale uids
	newUids := []uint32{}
	for _, uid := range uids {
		if uid > watermark {
			newUids = append(newUids, uid)
		}
	}
	sort.Slice(newUids, func(i, j int) bool { return newUids[i] < newUids[j] })
	if max > 0 && len(newUids) > max {
		newUids = newUids[:max]
	}

	if len(newUids) == 0 {
		return []*domain.RawMessage{}, nil
	}

	seqset := &imap.SeqSet{}
	seqset.AddNum(newUids...)

	fullBodySection := &imap.BodySectionName{
		Peek: true,
	}
	fetchItems := []imap.FetchItem{imap.FetchUid, fullBodySection.FetchItem()}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- ic.connection.UidFetch(seqset, fetchItems, messages)
	}()

	fetched := []*domain.RawMessage{}
	for msg := range messages {
		r := msg.GetBody(fullBodySection)
		if r == nil {
			continue
		}
		rawBody, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("could not read mail body: %w", err)
		}

		parsed, err := mail.Parse(rawBody)
		if err != nil {
			ic.l.WithFields(logrus.Fields{"uid": msg.Uid, "error": err}).Warn("Skipping unparseable mail")
			continue
		}

		fetched = append(
			fetched,
			&domain.RawMessage{
				UID:        msg.Uid,
				MessageID:  parsed.MessageID,
				Subject:    parsed.Subject,
				Sender:     parsed.Sender,
				TextBody:   parsed.TextBody,
				HTMLBody:   parsed.HTMLBody,
				ReceivedAt: parsed.Date,
				Raw:        rawBody,
			},
		)
	}

	err = <-done
	if err != nil {
		return nil, fmt.Errorf("could not fetch mails: %w", err)
	}

	sort.Slice(fetched, func(i, j int) bool { return fetched[i].UID < fetched[j].UID })

	ic.l.WithFields(logrus.Fields{"mailbox": ic.config.Email, "watermark": watermark, "fetched": len(fetched)}).Debug("Fetched new mails")

	return fetched, nil
}

func (ic *ImapConnection) MoveToFolder(ctx context.Context, uids []uint32, folder string) error {
	if len(uids) == 0 {
		return nil
	}
	return ic.mailMover.move(uids, folder)
}

// ToStorageRow fingerprints the message and flattens it into its storage
// shape.
func (ic *ImapConnection) ToStorageRow(msg *domain.RawMessage, config *domain.MailboxConfig) domain.MessageRow {
	id := identify.Identify(msg.Subject, msg.Sender, msg.HTMLBody, msg.TextBody)

	row := domain.MessageRow{
		ConfigID:        config.ID,
		UserID:          config.UserID,
		UID:             msg.UID,
		MessageID:       msg.MessageID,
		ContentHash:     id.ContentHash,
		TransactionHash: id.TransactionHash,
		OrderIDs:        id.OrderIDs,
		Subject:         msg.Subject,
		Sender:          msg.Sender,
	}

	body := msg.TextBody
	if len(body) == 0 {
		body = msg.HTMLBody
	}
	if tx, ok := identify.ExtractTransaction(msg.Subject, body); ok {
		row.Symbol = tx.Symbol
		row.Direction = tx.Direction
		row.Quantity = tx.Quantity
		row.Price = tx.Price
		row.TradeDate = tx.Date
	}

	return row
}
