// Package squareoff schedules the end-of-day full square-off.
package squareoff

import (
	"time"

	"github.com/rs/zerolog"

	"option-scalper/internal/config"
	"option-scalper/pkg/utils"
)

// Controller fires the scheduled full square-off at a configured
// time-of-day, at most once per trading day. It is consulted from the
// engine's timer events; it never mutates engine state itself.
type Controller struct {
	at       config.TimeOfDay
	firedDay string
	logger   zerolog.Logger
}

// New creates a controller for the configured square-off time.
func New(at config.TimeOfDay, logger zerolog.Logger) *Controller {
	return &Controller{at: at, logger: logger}
}

// Due reports whether the scheduled square-off should fire now. The
// first call at or after the configured time on a given day returns
// true; later calls that day return false.
func (c *Controller) Due(now time.Time) bool {
	day := utils.DayKey(now)
	if c.firedDay == day {
		return false
	}
	if now.Before(c.at.On(now)) {
		return false
	}
	c.firedDay = day
	c.logger.Info().Str("day", day).Msg("Scheduled square-off due")
	return true
}

// Reschedule changes the square-off time. A new time later than a
// firing that already happened today will not re-fire until the next
// day rollover.
func (c *Controller) Reschedule(at config.TimeOfDay) {
	c.at = at
}

// Rollover clears the fired latch for a new trading day.
func (c *Controller) Rollover() {
	c.firedDay = ""
}
