package models

import "time"

// OrderStyle represents the risk style attached to a trade intent.
type OrderStyle string

const (
	StylePlain   OrderStyle = "PLAIN"
	StyleBracket OrderStyle = "BRACKET"
	StyleOCO     OrderStyle = "OCO"
)

// OrderRole distinguishes entry legs from engine-managed exit legs.
type OrderRole string

const (
	RoleEntry     OrderRole = "ENTRY"
	RoleTarget    OrderRole = "TARGET"
	RoleStop      OrderRole = "STOP"
	RoleSquareOff OrderRole = "SQUAREOFF"
)

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	StatusIdle            OrderStatus = "IDLE"
	StatusPendingTrigger  OrderStatus = "PENDING_TRIGGER"
	StatusSubmitted       OrderStatus = "SUBMITTED"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusRejected        OrderStatus = "REJECTED"
	StatusCancelled       OrderStatus = "CANCELLED"
)

// Terminal reports whether the status is a terminal lifecycle state.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusFilled, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// TradeIntent is a single user command to take a position. It is
// consumed once and fully decomposed into legs.
type TradeIntent struct {
	ID             string
	Underlying     string
	Side           Side
	Quantity       int // lots for NFO, units for cash
	Legs           int
	TriggerPrice   *float64 // nil = market
	Style          OrderStyle
	ProfitPoints   float64 // bracket/OCO target distance from entry
	StopLossPoints float64 // bracket/OCO stop distance from entry
	CreatedAt      time.Time
}

// Leg is one slice of a trade intent, submitted as an independent
// child order.
type Leg struct {
	IntentID string
	Seq      int
	Quantity int
}

// Order represents an engine-owned order. It is mutated only through
// lifecycle transitions on the engine's single-writer path.
type Order struct {
	ID           string // engine-local id
	BrokerID     string // assigned on broker acknowledgment
	Instrument   Instrument
	Side         Side
	Quantity     int // units
	Style        OrderStyle
	Role         OrderRole
	Status       OrderStatus
	SiblingID    string   // OCO pairing, empty for plain orders
	TriggerPrice *float64 // nil = market
	FilledQty    int
	AveragePrice float64
	Reason       string // rejection reason, if any
	PlacedAt     time.Time
}

// LiveExit reports whether the order is an exit leg that is still
// pending or working at the broker.
func (o *Order) LiveExit() bool {
	if o.Role == RoleEntry {
		return false
	}
	return !o.Status.Terminal()
}

// Position represents the net position for one instrument side.
type Position struct {
	Instrument   Instrument
	Side         Side
	NetQuantity  int // units
	AveragePrice float64
	LTP          float64
	RealizedPnL  float64
}

// UnrealizedPnL returns the mark-to-market PnL from the latest tick.
func (p *Position) UnrealizedPnL() float64 {
	if p.NetQuantity == 0 {
		return 0
	}
	return (p.LTP - p.AveragePrice) * float64(p.NetQuantity)
}

// PnL returns realized plus unrealized PnL for the position.
func (p *Position) PnL() float64 {
	return p.RealizedPnL + p.UnrealizedPnL()
}
