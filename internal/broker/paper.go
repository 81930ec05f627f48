package broker

import (
	"context"
	"fmt"
	"sync"

	kerrors "option-scalper/internal/errors"
	"option-scalper/internal/models"
)

// PaperBroker implements the Broker interface with simulated fills at
// the last known price. It is used for paper mode and in tests.
type PaperBroker struct {
	mu          sync.Mutex
	nextID      int
	orders      map[string]*OrderState
	prices      map[string]float64 // "EXCHANGE:TSYM" -> LTP
	instruments []models.Instrument

	// FailNext, when set, makes the next PlaceOrder fail with the
	// given error and resets itself.
	FailNext error
	// HoldFills leaves placed orders open until FillOpen is called.
	HoldFills bool
	// CancelErr, when set, is returned by every CancelOrder call.
	CancelErr error
}

// NewPaperBroker creates a new paper broker.
func NewPaperBroker() *PaperBroker {
	return &PaperBroker{
		orders: make(map[string]*OrderState),
		prices: make(map[string]float64),
	}
}

// SetPrice sets the simulated LTP for an instrument.
func (p *PaperBroker) SetPrice(exchange models.Exchange, tradingSymbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[priceKey(exchange, tradingSymbol)] = price
}

// SetInstruments seeds the simulated instrument master.
func (p *PaperBroker) SetInstruments(instruments []models.Instrument) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.instruments = instruments
}

// PlaceOrder simulates an immediate market fill at the current LTP.
func (p *PaperBroker) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.FailNext != nil {
		err := p.FailNext
		p.FailNext = nil
		return nil, err
	}

	price, ok := p.prices[priceKey(req.Instrument.Exchange, req.Instrument.TradingSymbol)]
	if !ok {
		return nil, kerrors.NewBrokerError("NO_QUOTE", "no price for "+req.Instrument.TradingSymbol, nil)
	}
	if req.Quantity <= 0 {
		return nil, kerrors.NewBrokerError("INVALID_QTY", fmt.Sprintf("quantity %d", req.Quantity), nil)
	}

	p.nextID++
	id := fmt.Sprintf("paper-%d", p.nextID)

	state := &OrderState{
		OrderID:      id,
		Status:       models.StatusFilled,
		FilledQty:    req.Quantity,
		AveragePrice: price,
	}
	if p.HoldFills {
		state.Status = models.StatusSubmitted
		state.FilledQty = 0
		state.AveragePrice = 0
	}
	p.orders[id] = state

	return &OrderResult{OrderID: id, Status: string(state.Status)}, nil
}

// FillOpen fills a held order at the given price.
func (p *PaperBroker) FillOpen(orderID string, qty int, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if st, ok := p.orders[orderID]; ok && !st.Status.Terminal() {
		st.Status = models.StatusFilled
		st.FilledQty = qty
		st.AveragePrice = price
	}
}

// CancelOrder cancels a simulated order if it has not filled.
func (p *PaperBroker) CancelOrder(ctx context.Context, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.CancelErr != nil {
		return p.CancelErr
	}

	st, ok := p.orders[orderID]
	if !ok {
		return kerrors.NewOrderError(orderID, "", "cancel", "unknown order", kerrors.ErrOrderNotFound)
	}
	if st.Status == models.StatusFilled {
		return kerrors.NewBrokerError("ALREADY_FILLED", "order already complete", nil)
	}
	st.Status = models.StatusCancelled
	return nil
}

// QueryOrder returns the simulated order state.
func (p *PaperBroker) QueryOrder(ctx context.Context, orderID string) (*OrderState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.orders[orderID]
	if !ok {
		return nil, kerrors.NewOrderError(orderID, "", "query", "unknown order", kerrors.ErrOrderNotFound)
	}
	cp := *st
	return &cp, nil
}

// GetLTP returns the simulated LTP.
func (p *PaperBroker) GetLTP(ctx context.Context, exchange models.Exchange, tradingSymbol string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	price, ok := p.prices[priceKey(exchange, tradingSymbol)]
	if !ok {
		return 0, kerrors.NewBrokerError("NO_QUOTE", "no price for "+tradingSymbol, nil)
	}
	return price, nil
}

// GetInstruments returns the seeded instrument master.
func (p *PaperBroker) GetInstruments(ctx context.Context, exchange models.Exchange) ([]models.Instrument, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []models.Instrument
	for _, inst := range p.instruments {
		if inst.Exchange == exchange {
			out = append(out, inst)
		}
	}
	return out, nil
}

func priceKey(exchange models.Exchange, tradingSymbol string) string {
	return string(exchange) + ":" + tradingSymbol
}

// Ensure PaperBroker implements Broker interface
var _ Broker = (*PaperBroker)(nil)
