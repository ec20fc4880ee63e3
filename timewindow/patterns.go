// SPDX-License-Identifier: GPL-3.0-or-later
package timewindow

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/prado2016/investra-ai-sub003/domain"

	"github.com/shopspring/decimal"
)

type PatternShape string

const (
	ShapeSystematic = PatternShape("systematic")
	ShapeBurst      = PatternShape("burst")
	ShapeRandom     = PatternShape("random")
)

type PatternRisk string

const (
	PatternRiskLow    = PatternRisk("low")
	PatternRiskMedium = PatternRisk("medium")
	PatternRiskHigh   = PatternRisk("high")
)

const (
	// systematicCovLimit: interval spread below this coefficient of
	// variation reads as machine-scheduled trading.
	systematicCovLimit = 0.25

	// partialFillPriceCovLimit: fills of one order execute at near-one
	// price; above this the events are separate trades.
	partialFillPriceCovLimit = 0.05

	partialFillBaseConfidence  = 0.6
	partialFillTightPriceBoost = 0.1
	partialFillTargetBoost     = 0.3
	partialFillGroupThreshold  = 0.8

	splitOrderBaseConfidence = 0.6
	splitPriceBoost          = 0.2
	splitTimingBoost         = 0.2
	splitGroupThreshold      = 0.6

	// splitPriceSpreadLimit / splitQuantityCovLimit are the split-order
	// preconditions: price spread under 10% of the mean, quantity CoV
	// under 30%.
	splitPriceSpreadLimit = 0.10
	splitQuantityCovLimit = 0.30
)

type RapidTradingPattern struct {
	IsRapidTrading bool
	Shape          PatternShape
	RiskLevel      PatternRisk
	EventCount     int
	RapidCount     int
	Intervals      []time.Duration
}

// DetectRapidTrading flags suspicious inter-arrival behavior for one symbol.
// An empty symbol analyzes all events together. A non-positive window falls
// back to 30 minutes.
func DetectRapidTrading(events []domain.TradeEvent, symbol string, window time.Duration) RapidTradingPattern {
	if window <= 0 {
		window = 30 * time.Minute
	}

	times := sortedEventTimes(events, symbol)
	pattern := RapidTradingPattern{
		Shape:      ShapeRandom,
		RiskLevel:  PatternRiskLow,
		EventCount: len(times),
		Intervals:  []time.Duration{},
	}
	if len(times) < 2 {
		return pattern
	}

	rapid := 0
	for i := 1; i < len(times); i++ {
		interval := times[i].Sub(times[i-1])
		pattern.Intervals = append(pattern.Intervals, interval)
		if interval <= window {
			rapid++
		}
	}
	pattern.RapidCount = rapid
	pattern.IsRapidTrading = rapid >= 2
	if !pattern.IsRapidTrading {
		return pattern
	}

	allRapid := rapid == len(pattern.Intervals)
	cov := durationCov(pattern.Intervals)
	switch {
	case allRapid && len(pattern.Intervals) >= 3:
		pattern.Shape = ShapeBurst
	case cov < systematicCovLimit:
		pattern.Shape = ShapeSystematic
	default:
		pattern.Shape = ShapeRandom
	}

	switch {
	case pattern.Shape == ShapeBurst || rapid >= 4:
		pattern.RiskLevel = PatternRiskHigh
	default:
		pattern.RiskLevel = PatternRiskMedium
	}

	return pattern
}

type PartialFillAnalysis struct {
	IsPotentialPartialFill bool
	Confidence             float64
	SuggestedAction        string
	TotalQuantity          decimal.Decimal
	PriceVariation         float64
	Reasons                []string
}

// AnalyzePartialFills decides whether same-symbol, same-side events within
// the partial-fill window are executions of one order. When the caller knows
// the intended order size, a matching quantity sum boosts the confidence.
func AnalyzePartialFills(events []domain.TradeEvent, symbol string, targetQty *decimal.Decimal) PartialFillAnalysis {
	cfg := DefaultConfig()
	analysis := PartialFillAnalysis{
		SuggestedAction: "separate",
		Reasons:         []string{},
	}

	fills := filterBySymbol(events, symbol)
	if len(fills) < 2 {
		analysis.Reasons = append(analysis.Reasons, "fewer than two candidate fills")
		return analysis
	}

	direction := fills[0].Direction
	for _, e := range fills {
		if e.Direction != direction {
			analysis.Reasons = append(analysis.Reasons, "mixed buy/sell directions")
			return analysis
		}
	}

	times := sortedEventTimes(fills, symbol)
	if times[len(times)-1].Sub(times[0]) > cfg.PartialFill {
		analysis.Reasons = append(analysis.Reasons, "events span more than the partial-fill window")
		return analysis
	}

	prices := decimalFloats(fills, func(e domain.TradeEvent) decimal.Decimal { return e.Price })
	analysis.PriceVariation = cov(prices)
	if analysis.PriceVariation >= partialFillPriceCovLimit {
		analysis.Reasons = append(analysis.Reasons, "price variation too wide for fills of one order")
		return analysis
	}

	total := decimal.Zero
	for _, e := range fills {
		total = total.Add(e.Quantity)
	}
	analysis.TotalQuantity = total

	confidence := partialFillBaseConfidence
	analysis.Reasons = append(analysis.Reasons, "same side, same symbol, inside the partial-fill window")

	if analysis.PriceVariation < 0.01 {
		confidence += partialFillTightPriceBoost
		analysis.Reasons = append(analysis.Reasons, "near-identical fill prices")
	}

	if targetQty != nil && total.Sub(*targetQty).Abs().LessThanOrEqual(fieldTolerance) {
		confidence += partialFillTargetBoost
		analysis.Reasons = append(analysis.Reasons, fmt.Sprintf("fill quantities sum to the target of %s", targetQty.String()))
	}

	if confidence > 1.0 {
		confidence = 1.0
	}

	analysis.IsPotentialPartialFill = true
	analysis.Confidence = confidence
	if confidence >= partialFillGroupThreshold {
		analysis.SuggestedAction = "group"
	} else {
		analysis.SuggestedAction = "review"
	}

	return analysis
}

type SplitOrderAnalysis struct {
	IsPotentialSplitOrder bool
	Confidence            float64
	GroupKey              string
	Reasons               []string
}

// AnalyzeSplitOrders detects one intended trade executed as several
// similarly sized orders over the split-order window. A confidence of at
// least splitGroupThreshold recommends a synthetic grouping key.
func AnalyzeSplitOrders(events []domain.TradeEvent, symbol string) SplitOrderAnalysis {
	cfg := DefaultConfig()
	analysis := SplitOrderAnalysis{Reasons: []string{}}

	orders := filterBySymbol(events, symbol)
	if len(orders) < 2 {
		analysis.Reasons = append(analysis.Reasons, "fewer than two candidate orders")
		return analysis
	}

	times := sortedEventTimes(orders, symbol)
	if times[len(times)-1].Sub(times[0]) > cfg.SplitOrder {
		analysis.Reasons = append(analysis.Reasons, "events span more than the split-order window")
		return analysis
	}

	prices := decimalFloats(orders, func(e domain.TradeEvent) decimal.Decimal { return e.Price })
	priceMean := mean(prices)
	if priceMean <= 0 || (maxFloat(prices)-minFloat(prices)) >= priceMean*splitPriceSpreadLimit {
		analysis.Reasons = append(analysis.Reasons, "price spread too wide for one intended trade")
		return analysis
	}

	quantities := decimalFloats(orders, func(e domain.TradeEvent) decimal.Decimal { return e.Quantity })
	if cov(quantities) >= splitQuantityCovLimit {
		analysis.Reasons = append(analysis.Reasons, "order sizes too uneven for a split")
		return analysis
	}

	confidence := splitOrderBaseConfidence
	analysis.Reasons = append(analysis.Reasons, "similarly sized same-symbol orders inside the split-order window")

	if (maxFloat(prices) - minFloat(prices)) < priceMean*0.05 {
		confidence += splitPriceBoost
		analysis.Reasons = append(analysis.Reasons, "tight price consistency")
	}

	intervals := []time.Duration{}
	for i := 1; i < len(times); i++ {
		intervals = append(intervals, times[i].Sub(times[i-1]))
	}
	if durationCov(intervals) < 0.5 {
		confidence += splitTimingBoost
		analysis.Reasons = append(analysis.Reasons, "regular spacing between orders")
	}

	if confidence > 1.0 {
		confidence = 1.0
	}

	analysis.Confidence = confidence
	if confidence >= splitGroupThreshold {
		analysis.IsPotentialSplitOrder = true
		analysis.GroupKey = fmt.Sprintf("%s:%s:%d", orders[0].Symbol, orders[0].Direction, times[0].Unix())
	}

	return analysis
}

func filterBySymbol(events []domain.TradeEvent, symbol string) []domain.TradeEvent {
	if len(symbol) == 0 {
		return events
	}

	filtered := []domain.TradeEvent{}
	for _, e := range events {
		if e.Symbol == symbol {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

func sortedEventTimes(events []domain.TradeEvent, symbol string) []time.Time {
	times := []time.Time{}
	for _, e := range filterBySymbol(events, symbol) {
		times = append(times, normalizeUTC(e.Timestamp, e.Timezone))
	}

	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	return times
}

func decimalFloats(events []domain.TradeEvent, field func(domain.TradeEvent) decimal.Decimal) []float64 {
	values := []float64{}
	for _, e := range events {
		values = append(values, field(e).InexactFloat64())
	}
	return values
}

func durationCov(intervals []time.Duration) float64 {
	values := []float64{}
	for _, i := range intervals {
		values = append(values, float64(i))
	}
	return cov(values)
}

// cov is the coefficient of variation, stddev over mean.
func cov(values []float64) float64 {
	m := mean(values)
	if m == 0 {
		return 0
	}

	sumSq := 0.0
	for _, v := range values {
		sumSq += (v - m) * (v - m)
	}
	return math.Sqrt(sumSq/float64(len(values))) / m
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func maxFloat(values []float64) float64 {
	max := values[0]
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	return max
}

func minFloat(values []float64) float64 {
	min := values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
	}
	return min
}
