// SPDX-License-Identifier: GPL-3.0-or-later
package imapconnection

import (
	"fmt"

	"github.com/emersion/go-imap"
)

type mover interface {
	move(uids []uint32, folder string) error
}

type moveClient interface {
	UidMove(seqset *imap.SeqSet, dest string) error
}

// moveMover uses the MOVE extension directly.
type moveMover struct {
	moveClient moveClient
}

func (m *moveMover) move(uids []uint32, folder string) error {
	seqset := &imap.SeqSet{}
	seqset.AddNum(uids...)
	return m.moveClient.UidMove(seqset, folder)
}

type copyExpungeClient interface {
	UidCopy(seqset *imap.SeqSet, dest string) error
	UidStore(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error
	Expunge(ch chan uint32) error
}

// compatibilityMover emulates MOVE on servers without the extension:
// copy to the destination, flag the originals deleted, expunge.
type compatibilityMover struct {
	client copyExpungeClient
}

func (c *compatibilityMover) move(uids []uint32, folder string) error {
	seqset := &imap.SeqSet{}
	seqset.AddNum(uids...)

	err := c.client.UidCopy(seqset, folder)
	if err != nil {
		return fmt.Errorf("could not copy mails: %w", err)
	}

	err = c.client.UidStore(seqset, imap.FormatFlagsOp(imap.AddFlags, true), []interface{}{imap.DeletedFlag}, nil)
	if err != nil {
		return fmt.Errorf("could not set delete flag on copied mails: %w", err)
	}

	err = c.client.Expunge(nil)
	if err != nil {
		return fmt.Errorf("could not expunge copied mails: %w", err)
	}

	return nil
}
