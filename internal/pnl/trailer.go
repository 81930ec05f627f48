// Package pnl tracks day-wise profit and loss and drives the
// stop-loss / target / move-to-cost / trailing state machine.
package pnl

import (
	"github.com/rs/zerolog"

	"option-scalper/internal/errors"
)

// Mode is the trailer operating mode.
type Mode string

const (
	ModeManual Mode = "MANUAL"
	ModeAuto   Mode = "AUTO"
)

// Terminal marks a trading day that has finished early.
type Terminal string

const (
	TerminalNone      Terminal = "NONE"
	TerminalStopped   Terminal = "STOPPED"
	TerminalTargetHit Terminal = "TARGET_HIT"
)

// Reason identifies why a square-off verdict was issued.
type Reason string

const (
	ReasonStopLoss   Reason = "STOP_LOSS"
	ReasonTarget     Reason = "TARGET"
	ReasonMoveToCost Reason = "MOVE_TO_COST"
	ReasonTrail      Reason = "TRAIL_STOP"
)

// Thresholds holds the configured day-wise discipline levels.
// StopLoss is a positive magnitude; the trigger level is -StopLoss.
type Thresholds struct {
	StopLoss   float64
	Target     float64
	MoveToCost float64
	TrailAfter float64
	TrailBy    float64
}

// DayState is the per-trading-day PnL state. One instance per calendar
// trading day; reset only by explicit rollover, never silently carried
// across days.
type DayState struct {
	DayKey          string
	PnL             float64
	Thresholds      Thresholds
	Mode            Mode
	Watermark       *float64 // highest PnL seen while trailing, nil before
	MoveToCostArmed bool
	Terminal        Terminal
}

// Verdict is the outcome of one PnL update.
type Verdict struct {
	SquareOff  bool
	Reason     Reason
	Deactivate bool // drop back to Manual after the square-off
}

// Trailer owns the DayState. It is driven exclusively from the
// engine's single-writer path; it has no locking of its own.
type Trailer struct {
	state  DayState
	logger zerolog.Logger
}

// NewTrailer creates a trailer for the given trading day.
func NewTrailer(dayKey string, th Thresholds, logger zerolog.Logger) *Trailer {
	return &Trailer{
		state: DayState{
			DayKey:     dayKey,
			Thresholds: th,
			Mode:       ModeManual,
			Terminal:   TerminalNone,
		},
		logger: logger,
	}
}

// State returns a copy of the current day state.
func (t *Trailer) State() DayState {
	return t.state
}

// EffectiveStop returns the current trailing stop level, or false when
// trailing has not started.
func (t *Trailer) EffectiveStop() (float64, bool) {
	if t.state.Watermark == nil {
		return 0, false
	}
	return *t.state.Watermark - t.state.Thresholds.TrailBy, true
}

// SetMode switches between Manual and Auto. Entering Auto starts a
// fresh tracking session: any previously touched thresholds and the
// trailing watermark are discarded, never resumed. If the current PnL
// already breaches the stop-loss or target, the switch is refused and
// an immediate square-off verdict is returned; the mode stays Manual.
func (t *Trailer) SetMode(mode Mode, currentPnL float64) (Verdict, error) {
	if t.state.Terminal != TerminalNone {
		return Verdict{}, errors.ErrDayTerminal
	}
	if mode == t.state.Mode {
		return Verdict{}, nil
	}

	if mode == ModeManual {
		t.state.Mode = ModeManual
		return Verdict{}, nil
	}

	th := t.state.Thresholds
	if currentPnL <= -th.StopLoss {
		t.logger.Warn().Float64("pnl", currentPnL).Msg("Auto mode refused, PnL already at stop-loss")
		return Verdict{SquareOff: true, Reason: ReasonStopLoss, Deactivate: true}, nil
	}
	if currentPnL >= th.Target {
		t.logger.Warn().Float64("pnl", currentPnL).Msg("Auto mode refused, PnL already at target")
		return Verdict{SquareOff: true, Reason: ReasonTarget, Deactivate: true}, nil
	}

	t.state.Mode = ModeAuto
	t.state.Watermark = nil
	t.state.MoveToCostArmed = false
	t.logger.Info().Float64("pnl", currentPnL).Msg("Auto trailing started")
	return Verdict{}, nil
}

// Adjust nudges one threshold by delta. Permitted only in Manual mode.
func (t *Trailer) Adjust(field string, delta float64) error {
	if t.state.Mode != ModeManual {
		return errors.NewInvalidOperation("adjust", "thresholds are fixed while Auto mode is active")
	}
	th := &t.state.Thresholds
	switch field {
	case "stop_loss":
		th.StopLoss += delta
	case "target":
		th.Target += delta
	case "move_to_cost":
		th.MoveToCost += delta
	case "trail_after":
		th.TrailAfter += delta
	case "trail_by":
		th.TrailBy += delta
	default:
		return errors.NewInvalidOperation("adjust", "unknown threshold "+field)
	}
	return nil
}

// Update records a new cumulative day PnL and returns the resulting
// verdict. Once the day is terminal, updates are ignored until an
// explicit rollover. In Manual mode only the PnL value is tracked.
func (t *Trailer) Update(pnl float64) Verdict {
	if t.state.Terminal != TerminalNone {
		return Verdict{}
	}
	t.state.PnL = pnl
	if t.state.Mode != ModeAuto {
		return Verdict{}
	}

	th := t.state.Thresholds

	if pnl <= -th.StopLoss {
		t.state.Terminal = TerminalStopped
		t.logger.Info().Float64("pnl", pnl).Msg("Day stop-loss hit, squaring off")
		return Verdict{SquareOff: true, Reason: ReasonStopLoss, Deactivate: true}
	}

	if pnl >= th.Target {
		t.state.Terminal = TerminalTargetHit
		t.logger.Info().Float64("pnl", pnl).Msg("Day target hit, squaring off")
		return Verdict{SquareOff: true, Reason: ReasonTarget, Deactivate: true}
	}

	if t.state.MoveToCostArmed && pnl < th.MoveToCost {
		t.state.MoveToCostArmed = false
		t.logger.Info().Float64("pnl", pnl).Msg("Move-to-cost crossed back down, locking breakeven")
		return Verdict{SquareOff: true, Reason: ReasonMoveToCost, Deactivate: true}
	}
	if !t.state.MoveToCostArmed && th.MoveToCost > 0 && pnl >= th.MoveToCost {
		t.state.MoveToCostArmed = true
		t.logger.Info().Float64("pnl", pnl).Msg("Move-to-cost armed")
	}

	if t.state.Watermark != nil {
		if pnl > *t.state.Watermark {
			wm := pnl
			t.state.Watermark = &wm
		}
		stop := *t.state.Watermark - th.TrailBy
		if pnl <= stop {
			t.logger.Info().
				Float64("pnl", pnl).
				Float64("watermark", *t.state.Watermark).
				Float64("stop", stop).
				Msg("Trailing stop hit, squaring off")
			return Verdict{SquareOff: true, Reason: ReasonTrail, Deactivate: true}
		}
	} else if th.TrailAfter > 0 && pnl >= th.TrailAfter {
		wm := pnl
		t.state.Watermark = &wm
		t.logger.Info().Float64("pnl", pnl).Msg("Trailing started")
	}

	return Verdict{}
}

// Deactivate drops the trailer back to Manual mode after a square-off
// verdict has been executed.
func (t *Trailer) Deactivate() {
	t.state.Mode = ModeManual
}

// Rollover resets the state for a new trading day.
func (t *Trailer) Rollover(dayKey string, th Thresholds) {
	t.state = DayState{
		DayKey:     dayKey,
		Thresholds: th,
		Mode:       ModeManual,
		Terminal:   TerminalNone,
	}
	t.logger.Info().Str("day", dayKey).Msg("Day PnL state rolled over")
}
