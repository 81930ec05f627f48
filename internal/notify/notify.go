// Package notify delivers engine state-change notifications to the
// presentation collaborator. The engine only emits; it never calls
// back into presentation code.
package notify

import (
	"option-scalper/internal/models"
	"option-scalper/internal/pnl"
)

// Notifier receives engine state-change events for display.
type Notifier interface {
	OrderUpdate(order models.Order)
	PnLUpdate(state pnl.DayState)
	DayTerminal(state pnl.DayState, reason pnl.Reason)
	SquareOff(scope string, reason string)
	FeedStatus(stale bool)
}

// Nop is a Notifier that discards everything.
type Nop struct{}

func (Nop) OrderUpdate(models.Order)             {}
func (Nop) PnLUpdate(pnl.DayState)               {}
func (Nop) DayTerminal(pnl.DayState, pnl.Reason) {}
func (Nop) SquareOff(string, string)             {}
func (Nop) FeedStatus(bool)                      {}

var _ Notifier = Nop{}
