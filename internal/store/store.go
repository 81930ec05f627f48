// Package store provides the append-only persistence sink for
// completed orders and PnL snapshots.
package store

import (
	"context"
	"time"

	"option-scalper/internal/models"
)

// OrderRecord is one appended row for a completed order.
type OrderRecord struct {
	OrderID      string
	BrokerID     string
	Instrument   string
	Exchange     string
	Side         string
	Role         string
	Style        string
	Quantity     int
	FilledQty    int
	AveragePrice float64
	Status       string
	Reason       string
	Timestamp    time.Time
}

// PnLSnapshot is one appended day-PnL observation.
type PnLSnapshot struct {
	DayKey     string
	PnL        float64
	Realized   float64
	Unrealized float64
	Mode       string
	Terminal   string
	Timestamp  time.Time
}

// Store is the append-only record sink. Rotation and retention are the
// collaborator's concern, not the engine's.
type Store interface {
	RecordOrder(ctx context.Context, rec OrderRecord) error
	RecordPnLSnapshot(ctx context.Context, snap PnLSnapshot) error
	Close() error
}

// RecordFromOrder builds an OrderRecord from a terminal order.
func RecordFromOrder(o *models.Order, at time.Time) OrderRecord {
	return OrderRecord{
		OrderID:      o.ID,
		BrokerID:     o.BrokerID,
		Instrument:   o.Instrument.TradingSymbol,
		Exchange:     string(o.Instrument.Exchange),
		Side:         string(o.Side),
		Role:         string(o.Role),
		Style:        string(o.Style),
		Quantity:     o.Quantity,
		FilledQty:    o.FilledQty,
		AveragePrice: o.AveragePrice,
		Status:       string(o.Status),
		Reason:       o.Reason,
		Timestamp:    at,
	}
}
