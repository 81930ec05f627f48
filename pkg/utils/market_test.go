package utils

import (
	"math"
	"testing"
	"time"
)

func TestRoundToStepHalfUp(t *testing.T) {
	tests := []struct {
		value float64
		step  float64
		want  float64
	}{
		{22474.9, 50, 22450},
		{22475, 50, 22500}, // exact midpoint rounds up
		{22475.1, 50, 22500},
		{22500, 50, 22500},
		{99, 100, 100},
		{150, 100, 200}, // midpoint again
		{22513, 0, 22513},
	}
	for _, tt := range tests {
		if got := RoundToStep(tt.value, tt.step); got != tt.want {
			t.Errorf("RoundToStep(%v, %v) = %v, want %v", tt.value, tt.step, got, tt.want)
		}
	}
}

func TestRoundToTick(t *testing.T) {
	tests := []struct {
		price float64
		tick  float64
		want  float64
	}{
		{100.02, 0.05, 100},
		{100.03, 0.05, 100.05},
		{100.12, 0.05, 100.10},
		{99.99, 0, 99.99},
	}
	for _, tt := range tests {
		if got := RoundToTick(tt.price, tt.tick); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("RoundToTick(%v, %v) = %v, want %v", tt.price, tt.tick, got, tt.want)
		}
	}
}

func TestDaysToExpiry(t *testing.T) {
	ist := ISTLocation()
	now := time.Date(2026, 9, 1, 14, 30, 0, 0, ist)

	tests := []struct {
		expiry time.Time
		want   int
	}{
		{time.Date(2026, 9, 1, 0, 0, 0, 0, ist), 0},  // expiry day
		{time.Date(2026, 9, 2, 0, 0, 0, 0, ist), 1},  // time of day is ignored
		{time.Date(2026, 9, 10, 0, 0, 0, 0, ist), 9},
		{time.Date(2026, 8, 27, 0, 0, 0, 0, ist), -5}, // already expired
	}
	for _, tt := range tests {
		if got := DaysToExpiry(now, tt.expiry); got != tt.want {
			t.Errorf("DaysToExpiry(now, %s) = %d, want %d", tt.expiry.Format("2006-01-02"), got, tt.want)
		}
	}
}

func TestDayKeyIsIST(t *testing.T) {
	// 20:00 UTC is 01:30 IST the next day.
	utc := time.Date(2026, 9, 1, 20, 0, 0, 0, time.UTC)
	if got := DayKey(utc); got != "2026-09-02" {
		t.Errorf("DayKey(%s) = %s, want 2026-09-02", utc, got)
	}
}
