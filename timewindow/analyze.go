// SPDX-License-Identifier: GPL-3.0-or-later
package timewindow

import (
	"time"

	"github.com/prado2016/investra-ai-sub003/domain"

	"github.com/shopspring/decimal"
)

type Risk string

const (
	RiskCritical = Risk("critical")
	RiskHigh     = Risk("high")
	RiskMedium   = Risk("medium")
	RiskLow      = Risk("low")
)

// Windows is the membership ladder: true when the absolute time delta lies
// inside the corresponding window boundary.
type Windows struct {
	SameSecond  bool
	SameMinute  bool
	SameHour    bool
	SameDay     bool
	SameWeek    bool
	Rapid       bool
	PartialFill bool
	SplitOrder  bool
	Settlement  bool
}

// Confidences carries one value per window, zero outside the window and
// decaying linearly from confidenceCeiling at delta=0 to confidenceFloor at
// the boundary.
type Confidences struct {
	SameSecond  float64
	SameMinute  float64
	SameHour    float64
	SameDay     float64
	SameWeek    float64
	Rapid       float64
	PartialFill float64
	SplitOrder  float64
	Settlement  float64
}

type Analysis struct {
	TimeDelta   time.Duration
	Windows     Windows
	Confidences Confidences

	DuplicateRisk Risk
	RiskScore     float64
	RiskFactors   []string

	Market      MarketContext
	NormalizedA time.Time
	NormalizedB time.Time
}

// Documented scoring constants. The risk tier is a deterministic function of
// the weighted sum below, never of window membership alone.
const (
	confidenceCeiling = 0.95
	confidenceFloor   = 0.5

	weightSameSecond = 0.9
	weightSameMinute = 0.7
	weightRapid      = 0.6
	weightSymbol     = 0.3
	weightQuantity   = 0.3
	weightPrice      = 0.3

	thresholdCritical = 1.5
	thresholdHigh     = 1.0
	thresholdMedium   = 0.6
)

// fieldTolerance is the absolute tolerance for quantity and price equality.
var fieldTolerance = decimal.NewFromFloat(0.01)

// Analyze compares two trade candidates. Timestamps are naive local times
// normalized through the declared-zone offset table before the delta is
// taken.
func Analyze(a, b domain.TradeEvent, cfg Config) Analysis {
	cfg = cfg.withDefaults()

	utcA := normalizeUTC(a.Timestamp, a.Timezone)
	utcB := normalizeUTC(b.Timestamp, b.Timezone)

	delta := utcA.Sub(utcB)
	if delta < 0 {
		delta = -delta
	}

	analysis := Analysis{
		TimeDelta: delta,
		Windows: Windows{
			SameSecond:  delta <= cfg.Second,
			SameMinute:  delta <= cfg.Minute,
			SameHour:    delta <= cfg.Hour,
			SameDay:     delta <= cfg.Day,
			SameWeek:    delta <= cfg.Week,
			Rapid:       delta <= cfg.RapidTrading,
			PartialFill: delta <= cfg.PartialFill,
			SplitOrder:  delta <= cfg.SplitOrder,
			Settlement:  delta <= cfg.Settlement,
		},
		Confidences: Confidences{
			SameSecond:  windowConfidence(delta, cfg.Second),
			SameMinute:  windowConfidence(delta, cfg.Minute),
			SameHour:    windowConfidence(delta, cfg.Hour),
			SameDay:     windowConfidence(delta, cfg.Day),
			SameWeek:    windowConfidence(delta, cfg.Week),
			Rapid:       windowConfidence(delta, cfg.RapidTrading),
			PartialFill: windowConfidence(delta, cfg.PartialFill),
			SplitOrder:  windowConfidence(delta, cfg.SplitOrder),
			Settlement:  windowConfidence(delta, cfg.Settlement),
		},
		RiskFactors: []string{},
		NormalizedA: utcA,
		NormalizedB: utcB,
	}

	earliest := utcA
	if utcB.Before(earliest) {
		earliest = utcB
	}
	analysis.Market = ClassifySession(earliest)

	score := 0.0
	if analysis.Windows.SameSecond {
		score += weightSameSecond
		analysis.RiskFactors = append(analysis.RiskFactors, "events occurred within the same second")
	}
	if analysis.Windows.SameMinute {
		score += weightSameMinute
		analysis.RiskFactors = append(analysis.RiskFactors, "events occurred within the same minute")
	}
	if analysis.Windows.Rapid {
		score += weightRapid
		analysis.RiskFactors = append(analysis.RiskFactors, "events fall inside the rapid-trading window")
	}
	if len(a.Symbol) > 0 && a.Symbol == b.Symbol {
		score += weightSymbol
		analysis.RiskFactors = append(analysis.RiskFactors, "identical symbol")
	}
	if a.Quantity.IsPositive() && withinTolerance(a.Quantity, b.Quantity) {
		score += weightQuantity
		analysis.RiskFactors = append(analysis.RiskFactors, "quantities match within tolerance")
	}
	if a.Price.IsPositive() && withinTolerance(a.Price, b.Price) {
		score += weightPrice
		analysis.RiskFactors = append(analysis.RiskFactors, "prices match within tolerance")
	}

	analysis.RiskScore = score
	analysis.DuplicateRisk = riskTier(score)

	return analysis
}

func riskTier(score float64) Risk {
	switch {
	case score >= thresholdCritical:
		return RiskCritical
	case score >= thresholdHigh:
		return RiskHigh
	case score >= thresholdMedium:
		return RiskMedium
	default:
		return RiskLow
	}
}

// windowConfidence decays linearly from the ceiling at delta=0 to the floor
// at the window boundary; outside the window it is zero.
func windowConfidence(delta, window time.Duration) float64 {
	if window <= 0 || delta > window {
		return 0
	}

	fraction := float64(delta) / float64(window)
	return confidenceCeiling - (confidenceCeiling-confidenceFloor)*fraction
}

func withinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(fieldTolerance)
}
