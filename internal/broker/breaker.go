package broker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	kerrors "option-scalper/internal/errors"
	"option-scalper/internal/models"
)

// BreakerState represents the state of the order-placement breaker.
type BreakerState string

const (
	BreakerClosed   BreakerState = "CLOSED"
	BreakerOpen     BreakerState = "OPEN"
	BreakerHalfOpen BreakerState = "HALF_OPEN"
)

// BreakerConfig holds the trip thresholds for the placement breaker.
type BreakerConfig struct {
	FailureThreshold int           // consecutive placement failures before tripping
	SuccessThreshold int           // half-open successes needed to close
	Cooldown         time.Duration // open-state wait before probing again
}

// DefaultBreakerConfig returns the thresholds used in live trading.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Cooldown:         30 * time.Second,
	}
}

// Breaker wraps a Broker and trips order placement after repeated
// failures. Only PlaceOrder is guarded: cancels, status queries and
// quotes must keep flowing so open positions stay manageable while
// new entries are refused.
type Breaker struct {
	inner  Broker
	config BreakerConfig
	logger zerolog.Logger

	mu          sync.Mutex
	state       BreakerState
	failures    int
	successes   int
	lastFailure time.Time
}

// NewBreaker wraps inner with a placement breaker.
func NewBreaker(inner Broker, cfg BreakerConfig, logger zerolog.Logger) *Breaker {
	return &Breaker{
		inner:  inner,
		config: cfg,
		logger: logger,
		state:  BreakerClosed,
	}
}

// PlaceOrder forwards to the wrapped broker unless the breaker is
// open. An open breaker returns a non-retryable BrokerError so the
// engine fails the order fast instead of burning its retry budget.
func (b *Breaker) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	if err := b.allow(); err != nil {
		return nil, err
	}
	res, err := b.inner.PlaceOrder(ctx, req)
	b.record(err)
	return res, err
}

func (b *Breaker) CancelOrder(ctx context.Context, orderID string) error {
	return b.inner.CancelOrder(ctx, orderID)
}

func (b *Breaker) QueryOrder(ctx context.Context, orderID string) (*OrderState, error) {
	return b.inner.QueryOrder(ctx, orderID)
}

func (b *Breaker) GetLTP(ctx context.Context, exchange models.Exchange, tradingSymbol string) (float64, error) {
	return b.inner.GetLTP(ctx, exchange, tradingSymbol)
}

func (b *Breaker) GetInstruments(ctx context.Context, exchange models.Exchange) ([]models.Instrument, error) {
	return b.inner.GetInstruments(ctx, exchange)
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen {
		if time.Since(b.lastFailure) < b.config.Cooldown {
			return kerrors.NewBrokerError("CIRCUIT_OPEN", "order placement suspended after repeated failures", nil)
		}
		b.transition(BreakerHalfOpen)
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		switch b.state {
		case BreakerHalfOpen:
			b.successes++
			if b.successes >= b.config.SuccessThreshold {
				b.transition(BreakerClosed)
			}
		case BreakerClosed:
			b.failures = 0
		}
		return
	}

	b.lastFailure = time.Now()
	switch b.state {
	case BreakerClosed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.transition(BreakerOpen)
		}
	case BreakerHalfOpen:
		b.transition(BreakerOpen)
	}
}

func (b *Breaker) transition(state BreakerState) {
	b.logger.Warn().
		Str("from", string(b.state)).
		Str("to", string(state)).
		Msg("Placement breaker state change")
	b.state = state
	b.failures = 0
	b.successes = 0
}
