// SPDX-License-Identifier: GPL-3.0-or-later
package timewindow

import (
	"testing"
	"time"

	"github.com/prado2016/investra-ai-sub003/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func event(symbol string, qty, price float64, ts time.Time, zone string) domain.TradeEvent {
	return domain.TradeEvent{
		Symbol:    symbol,
		Direction: "buy",
		Quantity:  decimal.NewFromFloat(qty),
		Price:     decimal.NewFromFloat(price),
		Timestamp: ts,
		Timezone:  zone,
	}
}

// Monday 2024-03-11, 10:00 eastern, regular session.
var monday = time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC)

func TestAnalyze_IdenticalEventsHalfSecondApart(t *testing.T) {
	a := event("AAPL", 100, 150.25, monday, "EST")
	b := event("AAPL", 100, 150.25, monday.Add(500*time.Millisecond), "EST")

	analysis := Analyze(a, b, Config{})

	assert.Equal(t, 500*time.Millisecond, analysis.TimeDelta)
	assert.True(t, analysis.Windows.SameSecond)
	assert.True(t, analysis.Windows.Rapid)
	assert.Equal(t, RiskCritical, analysis.DuplicateRisk)
	// same second + same minute + rapid + symbol + quantity + price
	assert.InDelta(t, 3.1, analysis.RiskScore, 0.0001)
}

func TestAnalyze_TwoDaysApartDifferentSymbols(t *testing.T) {
	a := event("AAPL", 100, 150.25, monday, "EST")
	b := event("TSLA", 40, 201.10, monday.Add(48*time.Hour), "EST")

	analysis := Analyze(a, b, Config{})

	assert.Equal(t, RiskLow, analysis.DuplicateRisk)
	assert.False(t, analysis.Windows.SameDay)
	assert.True(t, analysis.Windows.SameWeek)
	assert.False(t, analysis.Windows.SameSecond)
	assert.Empty(t, analysis.RiskFactors)
}

func TestAnalyze_WindowBoundaries(t *testing.T) {
	tests := []struct {
		name     string
		delta    time.Duration
		sameDay  bool
		sameWeek bool
	}{
		{"inside day", 23 * time.Hour, true, true},
		{"at day boundary", 24 * time.Hour, true, true},
		{"past day", 25 * time.Hour, false, true},
		{"at week boundary", 7 * 24 * time.Hour, false, true},
		{"past week", 8 * 24 * time.Hour, false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := event("AAPL", 100, 150.25, monday, "EST")
			b := event("TSLA", 40, 201.10, monday.Add(tc.delta), "EST")

			analysis := Analyze(a, b, Config{})
			assert.Equal(t, tc.sameDay, analysis.Windows.SameDay)
			assert.Equal(t, tc.sameWeek, analysis.Windows.SameWeek)
		})
	}
}

func TestAnalyze_RiskTiers(t *testing.T) {
	tests := []struct {
		name  string
		delta time.Duration
		b     domain.TradeEvent
		risk  Risk
	}{
		{"high: same minute and symbol", 30 * time.Second, event("AAPL", 10, 99, monday.Add(30*time.Second), "EST"), RiskHigh},
		{"medium: same symbol, quantity and price within the hour", 45 * time.Minute, event("AAPL", 100, 150.25, monday.Add(45*time.Minute), "EST"), RiskMedium},
		{"low: nothing shared", 3 * time.Hour, event("MSFT", 7, 402, monday.Add(3*time.Hour), "EST"), RiskLow},
	}
	a := event("AAPL", 100, 150.25, monday, "EST")
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			analysis := Analyze(a, tc.b, Config{})
			assert.Equal(t, tc.risk, analysis.DuplicateRisk)
		})
	}
}

func TestAnalyze_TimezoneNormalization(t *testing.T) {
	// 10:00 EST and 11:00 EDT are 10:00 and 10:00 eastern-standard
	// equivalents an hour apart on the wall clock but the same instant
	// in UTC.
	a := event("AAPL", 100, 150.25, monday, "EST")
	b := event("AAPL", 100, 150.25, monday.Add(time.Hour), "EDT")

	analysis := Analyze(a, b, Config{})

	assert.Equal(t, time.Duration(0), analysis.TimeDelta)
	assert.True(t, analysis.Windows.SameSecond)
	assert.Equal(t, analysis.NormalizedA, analysis.NormalizedB)
}

func TestAnalyze_ConfidenceDecay(t *testing.T) {
	a := event("AAPL", 100, 150.25, monday, "EST")

	atZero := Analyze(a, a, Config{})
	assert.InDelta(t, confidenceCeiling, atZero.Confidences.SameMinute, 0.0001)

	atBoundary := Analyze(a, event("AAPL", 100, 150.25, monday.Add(time.Minute), "EST"), Config{})
	assert.InDelta(t, confidenceFloor, atBoundary.Confidences.SameMinute, 0.0001)

	past := Analyze(a, event("AAPL", 100, 150.25, monday.Add(2*time.Minute), "EST"), Config{})
	assert.Zero(t, past.Confidences.SameMinute)

	for _, c := range []float64{
		atZero.Confidences.SameSecond, atZero.Confidences.SameWeek,
		atBoundary.Confidences.SameMinute, atBoundary.Confidences.Settlement,
	} {
		assert.GreaterOrEqual(t, c, 0.0)
		assert.LessOrEqual(t, c, 1.0)
	}
}

func TestAnalyze_ConfigOverrides(t *testing.T) {
	a := event("AAPL", 100, 150.25, monday, "EST")
	b := event("AAPL", 100, 150.25, monday.Add(10*time.Second), "EST")

	widened := Analyze(a, b, Config{RapidTrading: 15 * time.Second})
	assert.True(t, widened.Windows.Rapid)

	standard := Analyze(a, b, Config{})
	assert.False(t, standard.Windows.Rapid)
}

func TestAnalyze_MarketContextInformationalOnly(t *testing.T) {
	weekday := Analyze(
		event("AAPL", 100, 150.25, monday, "EST"),
		event("AAPL", 100, 150.25, monday.Add(time.Second), "EST"),
		Config{},
	)
	saturday := Analyze(
		event("AAPL", 100, 150.25, monday.Add(5*24*time.Hour), "EST"),
		event("AAPL", 100, 150.25, monday.Add(5*24*time.Hour+time.Second), "EST"),
		Config{},
	)

	assert.Equal(t, SessionRegular, weekday.Market.Session)
	assert.Equal(t, SessionClosed, saturday.Market.Session)
	assert.True(t, saturday.Market.Weekend)

	// the closed market never changes the score
	assert.Equal(t, weekday.RiskScore, saturday.RiskScore)
	assert.Equal(t, weekday.DuplicateRisk, saturday.DuplicateRisk)
}
