// SPDX-License-Identifier: GPL-3.0-or-later
package timewindow

import (
	"testing"
	"time"

	"github.com/prado2016/investra-ai-sub003/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func eventsAt(symbol string, qty, price float64, base time.Time, offsets ...time.Duration) []domain.TradeEvent {
	events := []domain.TradeEvent{}
	for _, o := range offsets {
		events = append(events, event(symbol, qty, price, base.Add(o), "EST"))
	}
	return events
}

func TestDetectRapidTrading(t *testing.T) {
	tests := []struct {
		name    string
		events  []domain.TradeEvent
		window  time.Duration
		rapid   bool
		shape   PatternShape
		risk    PatternRisk
		numById int
	}{
		{
			"burst of four",
			eventsAt("AAPL", 10, 150, monday, 0, time.Second, 2*time.Second, 3*time.Second),
			5 * time.Second,
			true, ShapeBurst, PatternRiskHigh, 4,
		},
		{
			"systematic spacing",
			eventsAt("AAPL", 10, 150, monday, 0, time.Minute, 2*time.Minute, 3*time.Minute, 3*time.Minute+70*time.Second),
			65 * time.Second,
			true, ShapeSystematic, PatternRiskMedium, 5,
		},
		{
			"two quick, rest spread out",
			eventsAt("AAPL", 10, 150, monday, 0, time.Second, 2*time.Second, 25*time.Minute, 3*time.Hour),
			5 * time.Second,
			true, ShapeRandom, PatternRiskMedium, 5,
		},
		{
			"single interval is not a pattern",
			eventsAt("AAPL", 10, 150, monday, 0, time.Second),
			5 * time.Second,
			false, ShapeRandom, PatternRiskLow, 2,
		},
		{
			"no events",
			nil,
			5 * time.Second,
			false, ShapeRandom, PatternRiskLow, 0,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pattern := DetectRapidTrading(tc.events, "AAPL", tc.window)
			assert.Equal(t, tc.rapid, pattern.IsRapidTrading)
			assert.Equal(t, tc.shape, pattern.Shape)
			assert.Equal(t, tc.risk, pattern.RiskLevel)
			assert.Equal(t, tc.numById, pattern.EventCount)
		})
	}
}

func TestDetectRapidTrading_FiltersSymbol(t *testing.T) {
	events := append(
		eventsAt("AAPL", 10, 150, monday, 0, time.Second, 2*time.Second),
		eventsAt("TSLA", 10, 200, monday, 0, time.Second, 2*time.Second, 3*time.Second)...,
	)

	pattern := DetectRapidTrading(events, "TSLA", 5*time.Second)
	assert.Equal(t, 4, pattern.EventCount)
	assert.Equal(t, ShapeBurst, pattern.Shape)
}

func TestDetectRapidTrading_DefaultWindow(t *testing.T) {
	events := eventsAt("AAPL", 10, 150, monday, 0, 10*time.Minute, 20*time.Minute)

	pattern := DetectRapidTrading(events, "AAPL", 0)
	assert.True(t, pattern.IsRapidTrading)
}

func qty(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

func TestAnalyzePartialFills_GroupOnTargetMatch(t *testing.T) {
	events := []domain.TradeEvent{
		event("AAPL", 30, 150.25, monday, "EST"),
		event("AAPL", 70, 150.25, monday.Add(10*time.Minute), "EST"),
	}

	analysis := AnalyzePartialFills(events, "AAPL", qty(100))

	assert.True(t, analysis.IsPotentialPartialFill)
	assert.GreaterOrEqual(t, analysis.Confidence, 0.8)
	assert.Equal(t, "group", analysis.SuggestedAction)
	assert.Equal(t, "100", analysis.TotalQuantity.String())
}

func TestAnalyzePartialFills_ReviewWithoutTarget(t *testing.T) {
	events := []domain.TradeEvent{
		event("AAPL", 30, 150.25, monday, "EST"),
		event("AAPL", 70, 150.30, monday.Add(10*time.Minute), "EST"),
	}

	analysis := AnalyzePartialFills(events, "AAPL", nil)

	assert.True(t, analysis.IsPotentialPartialFill)
	assert.Less(t, analysis.Confidence, 0.8)
	assert.Equal(t, "review", analysis.SuggestedAction)
}

func TestAnalyzePartialFills_Preconditions(t *testing.T) {
	mixedDirection := []domain.TradeEvent{
		event("AAPL", 30, 150.25, monday, "EST"),
		event("AAPL", 70, 150.25, monday.Add(time.Minute), "EST"),
	}
	mixedDirection[1].Direction = "sell"

	tests := []struct {
		name   string
		events []domain.TradeEvent
	}{
		{"single fill", eventsAt("AAPL", 100, 150.25, monday, 0)},
		{"mixed directions", mixedDirection},
		{"outside window", []domain.TradeEvent{
			event("AAPL", 30, 150.25, monday, "EST"),
			event("AAPL", 70, 150.25, monday.Add(2*time.Hour), "EST"),
		}},
		{"wide prices", []domain.TradeEvent{
			event("AAPL", 30, 150.25, monday, "EST"),
			event("AAPL", 70, 190.00, monday.Add(10*time.Minute), "EST"),
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			analysis := AnalyzePartialFills(tc.events, "AAPL", qty(100))
			assert.False(t, analysis.IsPotentialPartialFill)
			assert.Equal(t, "separate", analysis.SuggestedAction)
		})
	}
}

func TestAnalyzeSplitOrders_RecommendsGroupKey(t *testing.T) {
	events := []domain.TradeEvent{
		event("AAPL", 100, 150.25, monday, "EST"),
		event("AAPL", 110, 150.40, monday.Add(20*time.Minute), "EST"),
		event("AAPL", 95, 150.10, monday.Add(40*time.Minute), "EST"),
	}

	analysis := AnalyzeSplitOrders(events, "AAPL")

	assert.True(t, analysis.IsPotentialSplitOrder)
	assert.GreaterOrEqual(t, analysis.Confidence, 0.6)
	assert.NotEmpty(t, analysis.GroupKey)
	assert.Contains(t, analysis.GroupKey, "AAPL:buy:")
}

func TestAnalyzeSplitOrders_Preconditions(t *testing.T) {
	tests := []struct {
		name   string
		events []domain.TradeEvent
	}{
		{"single order", eventsAt("AAPL", 100, 150.25, monday, 0)},
		{"outside window", []domain.TradeEvent{
			event("AAPL", 100, 150.25, monday, "EST"),
			event("AAPL", 100, 150.25, monday.Add(3*time.Hour), "EST"),
		}},
		{"wide prices", []domain.TradeEvent{
			event("AAPL", 100, 150.25, monday, "EST"),
			event("AAPL", 100, 190.00, monday.Add(time.Hour), "EST"),
		}},
		{"uneven sizes", []domain.TradeEvent{
			event("AAPL", 10, 150.25, monday, "EST"),
			event("AAPL", 500, 150.25, monday.Add(time.Hour), "EST"),
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			analysis := AnalyzeSplitOrders(tc.events, "AAPL")
			assert.False(t, analysis.IsPotentialSplitOrder)
			assert.Empty(t, analysis.GroupKey)
		})
	}
}
