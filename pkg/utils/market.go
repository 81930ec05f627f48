package utils

import (
	"math"
	"time"
)

// ISTLocation returns the Indian market timezone. Falls back to a
// fixed +05:30 zone when the tz database is unavailable.
func ISTLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return time.FixedZone("IST", 5*3600+1800)
	}
	return loc
}

// DayKey returns the trading-day key (YYYY-MM-DD) for t in IST.
func DayKey(t time.Time) string {
	return t.In(ISTLocation()).Format("2006-01-02")
}

// SameDay reports whether two times fall on the same calendar day.
func SameDay(t1, t2 time.Time) bool {
	y1, m1, d1 := t1.Date()
	y2, m2, d2 := t2.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// DaysToExpiry returns whole calendar days from now until expiry,
// where the expiry day itself counts as zero.
func DaysToExpiry(now, expiry time.Time) int {
	nd := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	ed := time.Date(expiry.Year(), expiry.Month(), expiry.Day(), 0, 0, 0, 0, now.Location())
	return int(ed.Sub(nd).Hours() / 24)
}

// RoundToTick rounds a price to the nearest multiple of the tick size.
func RoundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	return math.Round(price/tick) * tick
}

// RoundToStep rounds a value to the nearest multiple of step, with
// exact midpoints rounding toward the higher multiple.
func RoundToStep(value, step float64) float64 {
	if step <= 0 {
		return value
	}
	return math.Floor(value/step+0.5) * step
}
