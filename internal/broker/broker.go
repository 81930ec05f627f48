// Package broker provides broker integration interfaces and implementations.
package broker

import (
	"context"

	"option-scalper/internal/models"
)

// Transaction is the wire-level transaction type. Trade-intent sides
// map onto it at submission time (an option Short buys a put; exits
// reverse the entry transaction).
type Transaction string

const (
	TxBuy  Transaction = "BUY"
	TxSell Transaction = "SELL"
)

// OrderRequest is a broker-bound order. Quantity is always in units;
// lot conversion happens before the request is built.
type OrderRequest struct {
	Instrument  models.Instrument
	Transaction Transaction
	Quantity    int
	Product     models.ProductType
	Tag         string
}

// OrderResult represents the result of an order placement.
type OrderResult struct {
	OrderID string
	Status  string
	Message string
}

// OrderState is a broker-side order status snapshot.
type OrderState struct {
	OrderID      string
	Status       models.OrderStatus
	FilledQty    int
	AveragePrice float64
	Reason       string
}

// Broker defines the trading capability consumed by the engine.
// Any call may fail with a retryable BrokerError (network) or a
// non-retryable one (semantic rejection).
type Broker interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
	CancelOrder(ctx context.Context, orderID string) error
	QueryOrder(ctx context.Context, orderID string) (*OrderState, error)
	GetLTP(ctx context.Context, exchange models.Exchange, tradingSymbol string) (float64, error)
	GetInstruments(ctx context.Context, exchange models.Exchange) ([]models.Instrument, error)
}

// Ticker defines the price-feed capability. A silent stall is feed
// staleness, not an error; the stream hub handles it.
type Ticker interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Subscribe(tokens []uint32) error
	Unsubscribe(tokens []uint32) error
	RegisterSymbol(symbol string, token uint32)
	OnTick(handler func(models.Tick))
	OnError(handler func(error))
	OnConnect(handler func())
	OnDisconnect(handler func())
}
