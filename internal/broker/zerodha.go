package broker

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	kerrors "option-scalper/internal/errors"
	"option-scalper/internal/models"
)

// ZerodhaBroker implements the Broker interface for Zerodha Kite Connect.
// Token acquisition is external; the broker consumes an issued token.
type ZerodhaBroker struct {
	client      *kiteconnect.Client
	instruments map[string]models.Instrument
	mu          sync.RWMutex
}

// ZerodhaConfig holds configuration for the Zerodha broker.
type ZerodhaConfig struct {
	APIKey      string
	AccessToken string
}

// NewZerodhaBroker creates a new Zerodha broker instance.
func NewZerodhaBroker(cfg ZerodhaConfig) *ZerodhaBroker {
	client := kiteconnect.New(cfg.APIKey)
	client.SetAccessToken(cfg.AccessToken)

	return &ZerodhaBroker{
		client:      client,
		instruments: make(map[string]models.Instrument),
	}
}

// PlaceOrder places a regular market order.
func (z *ZerodhaBroker) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	params := kiteconnect.OrderParams{
		Exchange:        string(req.Instrument.Exchange),
		Tradingsymbol:   req.Instrument.TradingSymbol,
		TransactionType: string(req.Transaction),
		OrderType:       "MARKET",
		Product:         string(req.Product),
		Quantity:        req.Quantity,
		Validity:        "DAY",
		Tag:             req.Tag,
	}

	resp, err := z.client.PlaceOrder(kiteconnect.VarietyRegular, params)
	if err != nil {
		return nil, classify("place order", err)
	}

	return &OrderResult{
		OrderID: resp.OrderID,
		Status:  "OPEN",
	}, nil
}

// CancelOrder cancels an open order.
func (z *ZerodhaBroker) CancelOrder(ctx context.Context, orderID string) error {
	if _, err := z.client.CancelOrder(kiteconnect.VarietyRegular, orderID, nil); err != nil {
		return classify("cancel order", err)
	}
	return nil
}

// QueryOrder returns the latest broker-side state of an order.
func (z *ZerodhaBroker) QueryOrder(ctx context.Context, orderID string) (*OrderState, error) {
	history, err := z.client.GetOrderHistory(orderID)
	if err != nil {
		return nil, classify("query order", err)
	}
	if len(history) == 0 {
		return nil, kerrors.NewOrderError(orderID, "", "query", "no history", kerrors.ErrOrderNotFound)
	}

	last := history[len(history)-1]
	return &OrderState{
		OrderID:      last.OrderID,
		Status:       mapKiteStatus(last.Status, int(last.FilledQuantity), int(last.Quantity)),
		FilledQty:    int(last.FilledQuantity),
		AveragePrice: last.AveragePrice,
		Reason:       last.StatusMessage,
	}, nil
}

// GetLTP returns the last traded price for an instrument.
func (z *ZerodhaBroker) GetLTP(ctx context.Context, exchange models.Exchange, tradingSymbol string) (float64, error) {
	key := fmt.Sprintf("%s:%s", exchange, tradingSymbol)
	quotes, err := z.client.GetLTP(key)
	if err != nil {
		return 0, classify("get ltp", err)
	}
	q, ok := quotes[key]
	if !ok {
		return 0, kerrors.NewBrokerError("NO_QUOTE", "no quote for "+key, nil)
	}
	return q.LastPrice, nil
}

// GetInstruments fetches the instrument master for an exchange.
func (z *ZerodhaBroker) GetInstruments(ctx context.Context, exchange models.Exchange) ([]models.Instrument, error) {
	instruments, err := z.client.GetInstruments()
	if err != nil {
		return nil, classify("get instruments", err)
	}

	var result []models.Instrument
	for _, inst := range instruments {
		if inst.Exchange != string(exchange) {
			continue
		}
		m := models.Instrument{
			Token:         uint32(inst.InstrumentToken),
			Symbol:        inst.Name,
			TradingSymbol: inst.Tradingsymbol,
			Exchange:      exchange,
			Underlying:    inst.Name,
			Expiry:        inst.Expiry.Time,
			Strike:        inst.StrikePrice,
			OptionType:    models.OptionType(optionType(inst.InstrumentType)),
			LotSize:       int(inst.LotSize),
			TickSize:      inst.TickSize,
		}
		result = append(result, m)

		z.mu.Lock()
		z.instruments[m.Key()] = m
		z.mu.Unlock()
	}

	return result, nil
}

// CreateTicker creates a WebSocket ticker bound to the same session.
func (z *ZerodhaBroker) CreateTicker(cfg ZerodhaConfig) *ZerodhaTicker {
	return NewZerodhaTicker(ZerodhaTickerConfig{
		APIKey:      cfg.APIKey,
		AccessToken: cfg.AccessToken,
	})
}

func optionType(instrType string) string {
	switch instrType {
	case "CE", "PE":
		return instrType
	}
	return ""
}

func mapKiteStatus(status string, filled, total int) models.OrderStatus {
	switch status {
	case "COMPLETE":
		return models.StatusFilled
	case "REJECTED":
		return models.StatusRejected
	case "CANCELLED":
		return models.StatusCancelled
	default:
		if filled > 0 && filled < total {
			return models.StatusPartiallyFilled
		}
		return models.StatusSubmitted
	}
}

// classify wraps a kiteconnect error as retryable (transport failure)
// or non-retryable (semantic rejection).
func classify(op string, err error) error {
	var nerr net.Error
	if kerrors.As(err, &nerr) || kerrors.Is(err, io.EOF) ||
		kerrors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(err.Error(), "connection refused") {
		return kerrors.NewNetworkError(op+" failed", err)
	}
	return kerrors.NewBrokerError("REJECTED", op+" failed", err)
}

// Ensure ZerodhaBroker implements Broker interface
var _ Broker = (*ZerodhaBroker)(nil)
