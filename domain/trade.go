// SPDX-License-Identifier: GPL-3.0-or-later
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeEvent is an economically described, timestamped trade candidate as it
// arrives from ingestion or review queues. Timestamps are naive local times;
// Timezone names the zone they were observed in (EST, EDT, UTC, ...).
type TradeEvent struct {
	ID        string
	Symbol    string
	Direction string
	Quantity  decimal.Decimal
	Price     decimal.Decimal
	Timestamp time.Time
	Timezone  string
}
