// SPDX-License-Identifier: GPL-3.0-or-later

// Package identify derives stable fingerprints from broker confirmation
// mails. The content hash catches exact re-fetches of the same message, the
// transaction hash catches the same economic event worded differently, and
// the extracted order ids tie both to the broker's own bookkeeping. All
// functions are pure and deterministic.
package identify

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

type Identification struct {
	ContentHash     string
	TransactionHash string
	OrderIDs        []string
}

// Transaction holds the semantic trade fields recognized in a mail. Absent
// fields stay at their zero value and are omitted from the hash, never
// guessed.
type Transaction struct {
	Symbol    string
	Direction string
	Quantity  decimal.Decimal
	Price     decimal.Decimal
	Date      string

	HasQuantity bool
	HasPrice    bool
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	htmlTagRe    = regexp.MustCompile(`<[^>]*>`)

	directionRe = regexp.MustCompile(`(?i)\b(bought|buy|purchased|sold|sell)\b`)
	symbolRe    = regexp.MustCompile(`\b(?:of|shares of|symbol[:\s]+|for)\s+([A-Z][A-Z0-9]{0,4}(?:\.[A-Z]{1,2})?)\b`)
	quantityRe  = regexp.MustCompile(`(?i)\b([0-9][0-9,]*(?:\.[0-9]+)?)\s*(?:shares?|units?|contracts?)\b`)
	priceRe     = regexp.MustCompile(`(?i)(?:\b(?:at|price of|price[:\s])|@)\s*\$?\s*([0-9][0-9,]*(?:\.[0-9]+)?)`)
	dateRe      = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{4})\b`)

	// Fixed set of broker order-code patterns. Submatch 1 is the id.
	orderIDRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\border\s*(?:#|no\.?|number|id)[:\s]*([A-Z0-9][A-Z0-9-]{3,19})`),
		regexp.MustCompile(`(?i)\bconfirmation\s*(?:#|no\.?|number)[:\s]*([A-Z0-9][A-Z0-9-]{3,19})`),
		regexp.MustCompile(`(?i)\bref(?:erence)?\s*(?:#|no\.?|number)[:\s]*([A-Z0-9][A-Z0-9-]{5,19})`),
		regexp.MustCompile(`\b([A-Z]{2,4}-[0-9]{6,12})\b`),
	}
)

// Identify fingerprints one mail. The text body is preferred over html; the
// html body is tag-stripped when it is all there is.
func Identify(subject, sender, htmlBody, textBody string) Identification {
	body := textBody
	if len(strings.TrimSpace(body)) == 0 {
		body = stripTags(htmlBody)
	}

	contentHash := hash(normalize(subject) + "|" + normalize(sender) + "|" + normalize(body))

	transactionHash := ""
	if tx, ok := ExtractTransaction(subject, body); ok {
		transactionHash = tx.Hash()
	}

	return Identification{
		ContentHash:     contentHash,
		TransactionHash: transactionHash,
		OrderIDs:        ExtractOrderIDs(subject + "\n" + body),
	}
}

// ExtractTransaction recognizes the semantic trade fields in a confirmation
// mail. A transaction counts as recognized once a direction and a symbol are
// present; quantity, price and date enrich the hash when found.
func ExtractTransaction(subject, body string) (*Transaction, bool) {
	text := subject + "\n" + body

	dir := directionRe.FindStringSubmatch(text)
	sym := symbolRe.FindStringSubmatch(text)
	if dir == nil || sym == nil {
		return nil, false
	}

	tx := &Transaction{
		Symbol:    sym[1],
		Direction: canonicalDirection(dir[1]),
	}

	if m := quantityRe.FindStringSubmatch(text); m != nil {
		if q, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", "")); err == nil {
			tx.Quantity = q
			tx.HasQuantity = true
		}
	}
	if m := priceRe.FindStringSubmatch(text); m != nil {
		if p, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", "")); err == nil {
			tx.Price = p
			tx.HasPrice = true
		}
	}
	if m := dateRe.FindStringSubmatch(text); m != nil {
		tx.Date = m[1]
	}

	return tx, true
}

// Hash is the semantic fingerprint of the transaction, stable across
// differently-worded mails describing the same trade.
func (t *Transaction) Hash() string {
	parts := []string{
		"symbol=" + t.Symbol,
		"side=" + t.Direction,
	}
	if t.HasQuantity {
		parts = append(parts, "qty="+t.Quantity.String())
	}
	if t.HasPrice {
		parts = append(parts, "price="+t.Price.String())
	}
	if len(t.Date) > 0 {
		parts = append(parts, "date="+t.Date)
	}

	return hash(strings.Join(parts, "|"))
}

// ExtractOrderIDs returns every broker order code found in the text, upper-
// cased, deduplicated and sorted. No match yields an empty set, never an
// error.
func ExtractOrderIDs(text string) []string {
	seen := map[string]bool{}
	candidates := []string{}
	for _, re := range orderIDRes {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			id := strings.ToUpper(m[1])
			if !seen[id] {
				seen[id] = true
				candidates = append(candidates, id)
			}
		}
	}

	// The bare broker-code pattern can capture a prefix of an id another
	// pattern already matched in full; keep only the longest form.
	ids := []string{}
	for _, id := range candidates {
		partial := false
		for _, other := range candidates {
			if id != other && strings.Contains(other, id) {
				partial = true
				break
			}
		}
		if !partial {
			ids = append(ids, id)
		}
	}

	sort.Strings(ids)
	return ids
}

func canonicalDirection(word string) string {
	switch strings.ToLower(word) {
	case "bought", "buy", "purchased":
		return "buy"
	default:
		return "sell"
	}
}

func normalize(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(strings.ToLower(s), " "))
}

func stripTags(html string) string {
	text := htmlTagRe.ReplaceAllString(html, " ")
	return strings.ReplaceAll(text, "&nbsp;", " ")
}

func hash(input string) string {
	sha := sha256.New()
	sha.Write([]byte(input))
	return fmt.Sprintf("%x", sha.Sum(nil))
}
