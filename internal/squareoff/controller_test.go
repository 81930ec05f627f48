package squareoff

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"option-scalper/internal/config"
	"option-scalper/pkg/utils"
)

func at(t *testing.T, s string) config.TimeOfDay {
	t.Helper()
	tod, err := config.ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("ParseTimeOfDay(%q): %v", s, err)
	}
	return tod
}

func TestDueFiresOncePerDay(t *testing.T) {
	c := New(at(t, "15:12"), zerolog.Nop())
	day := time.Date(2026, 8, 31, 0, 0, 0, 0, utils.ISTLocation())

	if c.Due(day.Add(15*time.Hour + 11*time.Minute)) {
		t.Fatal("fired before the scheduled time")
	}
	if !c.Due(day.Add(15*time.Hour + 12*time.Minute)) {
		t.Fatal("did not fire at the scheduled time")
	}
	if c.Due(day.Add(15*time.Hour + 13*time.Minute)) {
		t.Fatal("fired twice on the same day")
	}

	next := day.AddDate(0, 0, 1)
	if c.Due(next.Add(15 * time.Hour)) {
		t.Fatal("fired before the scheduled time on the next day")
	}
	if !c.Due(next.Add(15*time.Hour + 12*time.Minute)) {
		t.Fatal("did not fire on the next day")
	}
}

func TestDueFiresLateOnFirstCheck(t *testing.T) {
	// A session started after the scheduled time fires immediately.
	c := New(at(t, "15:12"), zerolog.Nop())
	now := time.Date(2026, 8, 31, 15, 30, 0, 0, utils.ISTLocation())
	if !c.Due(now) {
		t.Fatal("late first check did not fire")
	}
}

func TestRescheduleAfterFiringWaitsForRollover(t *testing.T) {
	c := New(at(t, "15:12"), zerolog.Nop())
	day := time.Date(2026, 8, 31, 0, 0, 0, 0, utils.ISTLocation())

	if !c.Due(day.Add(15*time.Hour + 12*time.Minute)) {
		t.Fatal("did not fire")
	}

	c.Reschedule(at(t, "15:20"))
	if c.Due(day.Add(15*time.Hour + 25*time.Minute)) {
		t.Fatal("re-fired on the same day after reschedule")
	}

	c.Rollover()
	if !c.Due(day.Add(15*time.Hour + 25*time.Minute)) {
		t.Fatal("did not fire after rollover cleared the latch")
	}
}
