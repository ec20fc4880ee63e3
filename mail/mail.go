// SPDX-License-Identifier: GPL-3.0-or-later
package mail

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	stdmail "net/mail"
	"strings"
	"time"

	"github.com/emersion/go-message/charset"
)

// ParsedMail is the decoded view of one raw RFC 5322 message.
type ParsedMail struct {
	MessageID string
	Subject   string
	Sender    string
	TextBody  string
	HTMLBody  string
	Date      time.Time
}

// Parse decodes headers and splits the body into its text and html parts.
// A message without a Message-Id cannot be identified across re-fetches and
// is rejected.
func Parse(rawMail []byte) (*ParsedMail, error) {
	msg, err := stdmail.ReadMessage(bytes.NewReader(rawMail))
	if err != nil {
		return nil, fmt.Errorf("could not parse mail: %w", err)
	}

	messageID := strings.TrimSpace(msg.Header.Get("Message-Id"))
	if len(messageID) == 0 {
		return nil, fmt.Errorf("Message-Id header not found")
	}
	messageID = strings.Trim(messageID, "<>")

	dec := &mime.WordDecoder{
		CharsetReader: charset.Reader,
	}
	subject, err := dec.DecodeHeader(msg.Header.Get("Subject"))
	if err != nil {
		return nil, fmt.Errorf("could not decode subject header: %w", err)
	}

	sender := msg.Header.Get("From")
	if addr, err := stdmail.ParseAddress(sender); err == nil {
		sender = addr.Address
	}

	date, err := msg.Header.Date()
	if err != nil {
		date = time.Time{}
	}

	textBody, htmlBody, err := bodies(msg)
	if err != nil {
		return nil, fmt.Errorf("could not read mail body: %w", err)
	}

	return &ParsedMail{
		MessageID: messageID,
		Subject:   subject,
		Sender:    sender,
		TextBody:  textBody,
		HTMLBody:  htmlBody,
		Date:      date,
	}, nil
}

func bodies(msg *stdmail.Message) (string, string, error) {
	contentType := msg.Header.Get("Content-Type")
	if len(contentType) == 0 {
		body, err := io.ReadAll(msg.Body)
		if err != nil {
			return "", "", err
		}
		return string(body), "", nil
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		// Broken content type, treat the whole body as text
		body, readErr := io.ReadAll(msg.Body)
		if readErr != nil {
			return "", "", readErr
		}
		return string(body), "", nil
	}

	if !strings.HasPrefix(mediaType, "multipart/") {
		body, err := io.ReadAll(msg.Body)
		if err != nil {
			return "", "", err
		}
		if strings.HasPrefix(mediaType, "text/html") {
			return "", string(body), nil
		}
		return string(body), "", nil
	}

	text, html := "", ""
	mr := multipart.NewReader(msg.Body, params["boundary"])
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", "", err
		}

		partType := p.Header.Get("Content-Type")
		body, err := io.ReadAll(p)
		if err != nil {
			return "", "", err
		}

		switch {
		case strings.HasPrefix(partType, "text/plain") && len(text) == 0:
			text = string(body)
		case strings.HasPrefix(partType, "text/html") && len(html) == 0:
			html = string(body)
		}
	}

	return text, html, nil
}

func ShortSubject(subject string) string {
	if (len(subject)) > 30 {
		subject = subject[:30] + "..."
	}
	return subject
}
