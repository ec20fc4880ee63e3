// SPDX-License-Identifier: GPL-3.0-or-later
package timewindow

import "time"

type Session string

const (
	SessionPreMarket  = Session("pre-market")
	SessionRegular    = Session("regular")
	SessionAfterHours = Session("after-hours")
	SessionClosed     = Session("closed")
)

// MarketContext is informational only; it never feeds the risk score.
type MarketContext struct {
	Session  Session
	Weekend  bool
	Holiday  bool
	Timezone string
}

// zoneOffsets maps declared timezone names to fixed UTC offsets in hours.
// Deliberately a static table, not the IANA database: the source data carries
// bare zone abbreviations on naive timestamps and needs a deterministic
// interpretation.
var zoneOffsets = map[string]int{
	"UTC": 0,
	"GMT": 0,
	"EST": -5,
	"EDT": -4,
	"CST": -6,
	"CDT": -5,
	"MST": -7,
	"MDT": -6,
	"PST": -8,
	"PDT": -7,
}

// marketHolidays is a static list of full-day US exchange closures.
var marketHolidays = map[string]bool{
	"2024-01-01": true, "2024-01-15": true, "2024-02-19": true,
	"2024-03-29": true, "2024-05-27": true, "2024-06-19": true,
	"2024-07-04": true, "2024-09-02": true, "2024-11-28": true,
	"2024-12-25": true,
	"2025-01-01": true, "2025-01-20": true, "2025-02-17": true,
	"2025-04-18": true, "2025-05-26": true, "2025-06-19": true,
	"2025-07-04": true, "2025-09-01": true, "2025-11-27": true,
	"2025-12-25": true,
	"2026-01-01": true, "2026-01-19": true, "2026-02-16": true,
	"2026-04-03": true, "2026-05-25": true, "2026-06-19": true,
	"2026-07-03": true, "2026-09-07": true, "2026-11-26": true,
	"2026-12-25": true,
}

// normalizeUTC interprets a naive local timestamp in its declared zone and
// returns the corresponding UTC instant. Unknown zones are treated as EST,
// the zone the source data overwhelmingly carries.
func normalizeUTC(ts time.Time, zone string) time.Time {
	offset, ok := zoneOffsets[zone]
	if !ok {
		offset = zoneOffsets["EST"]
	}

	naive := time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), ts.Minute(), ts.Second(), ts.Nanosecond(), time.UTC)
	return naive.Add(-time.Duration(offset) * time.Hour)
}

// easternTime shifts a UTC instant to the fixed-offset eastern clock used by
// the session schedule.
func easternTime(utc time.Time) time.Time {
	return utc.Add(time.Duration(zoneOffsets["EST"]) * time.Hour)
}

// ClassifySession buckets a UTC instant into the fixed daily US equity
// schedule: pre-market 04:00-09:30, regular 09:30-16:00, after-hours
// 16:00-20:00 eastern, closed otherwise. Weekends and listed holidays are
// closed outright.
func ClassifySession(utc time.Time) MarketContext {
	eastern := easternTime(utc)

	ctx := MarketContext{
		Weekend:  eastern.Weekday() == time.Saturday || eastern.Weekday() == time.Sunday,
		Holiday:  marketHolidays[eastern.Format("2006-01-02")],
		Timezone: "EST",
	}

	if ctx.Weekend || ctx.Holiday {
		ctx.Session = SessionClosed
		return ctx
	}

	minutes := eastern.Hour()*60 + eastern.Minute()
	switch {
	case minutes >= 4*60 && minutes < 9*60+30:
		ctx.Session = SessionPreMarket
	case minutes >= 9*60+30 && minutes < 16*60:
		ctx.Session = SessionRegular
	case minutes >= 16*60 && minutes < 20*60:
		ctx.Session = SessionAfterHours
	default:
		ctx.Session = SessionClosed
	}

	return ctx
}
