package notify

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"option-scalper/internal/models"
	"option-scalper/internal/pnl"
)

// Terminal prints state changes to stdout with color.
type Terminal struct {
	green  *color.Color
	red    *color.Color
	yellow *color.Color
	bold   *color.Color
}

// NewTerminal creates a terminal notifier.
func NewTerminal() *Terminal {
	return &Terminal{
		green:  color.New(color.FgGreen),
		red:    color.New(color.FgRed),
		yellow: color.New(color.FgYellow),
		bold:   color.New(color.Bold),
	}
}

// OrderUpdate prints an order status change.
func (t *Terminal) OrderUpdate(order models.Order) {
	c := t.yellow
	switch order.Status {
	case models.StatusFilled:
		c = t.green
	case models.StatusRejected:
		c = t.red
	}
	line := fmt.Sprintf("[%s] %s %s x%d %s", order.Status, order.Side,
		order.Instrument.TradingSymbol, order.Quantity, order.Role)
	if order.Status == models.StatusFilled {
		line += fmt.Sprintf(" @ %s", formatCurrency(order.AveragePrice))
	}
	if order.Reason != "" {
		line += " (" + order.Reason + ")"
	}
	c.Println(line)
}

// PnLUpdate prints the current day PnL.
func (t *Terminal) PnLUpdate(state pnl.DayState) {
	c := t.green
	if state.PnL < 0 {
		c = t.red
	}
	c.Printf("Day PnL [%s] %s (%s)\n", state.DayKey, formatCurrency(state.PnL), state.Mode)
}

// DayTerminal prints the day-terminal event.
func (t *Terminal) DayTerminal(state pnl.DayState, reason pnl.Reason) {
	t.bold.Printf("Day %s is done: %s (%s) at %s\n",
		state.DayKey, state.Terminal, reason, formatCurrency(state.PnL))
}

// SquareOff prints a square-off event.
func (t *Terminal) SquareOff(scope string, reason string) {
	t.yellow.Printf("Square-off [%s]: %s\n", scope, reason)
}

// FeedStatus prints feed staleness transitions.
func (t *Terminal) FeedStatus(stale bool) {
	if stale {
		t.red.Println("Price feed stale, evaluation paused on last known price")
	} else {
		t.green.Println("Price feed recovered")
	}
}

// formatCurrency formats a rupee value with Indian digit grouping.
func formatCurrency(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	str := fmt.Sprintf("%.2f", amount)
	parts := strings.Split(str, ".")
	result := "₹" + indianGroups(parts[0]) + "." + parts[1]
	if negative {
		result = "-" + result
	}
	return result
}

// indianGroups applies Indian numbering: last group of 3, then groups of 2.
func indianGroups(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	result := s[n-3:]
	s = s[:n-3]
	for len(s) > 0 {
		cut := len(s) - 2
		if cut < 0 {
			cut = 0
		}
		result = s[cut:] + "," + result
		s = s[:cut]
	}
	return result
}

// Ensure Terminal implements Notifier interface
var _ Notifier = (*Terminal)(nil)
