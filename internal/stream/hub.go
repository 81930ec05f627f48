// Package stream fans price-feed ticks into the engine's event queue
// and watches feed liveness.
package stream

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"option-scalper/internal/broker"
	"option-scalper/internal/models"
)

// HubConfig holds configuration for the tick hub.
type HubConfig struct {
	// BufferSize is the size of the outbound tick channel buffer.
	BufferSize int
	// StaleAfter is the silence interval after which the feed is
	// considered stale. A stall is degradation, not an error.
	StaleAfter time.Duration
}

// DefaultHubConfig returns the default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		BufferSize: 1000,
		StaleAfter: 5 * time.Second,
	}
}

// Hub bridges a broker Ticker to a single consumer channel. Ticks that
// arrive while the consumer lags are dropped oldest-first; the engine
// only ever needs the latest price.
type Hub struct {
	config HubConfig
	ticker broker.Ticker
	logger zerolog.Logger

	out chan models.Tick

	mu         sync.RWMutex
	lastTickAt time.Time
	started    bool
	closed     bool

	dropped uint64
}

// NewHub creates a hub over the given ticker.
func NewHub(ticker broker.Ticker, cfg HubConfig, logger zerolog.Logger) *Hub {
	return &Hub{
		config: cfg,
		ticker: ticker,
		logger: logger,
		out:    make(chan models.Tick, cfg.BufferSize),
	}
}

// Ticks returns the consumer channel.
func (h *Hub) Ticks() <-chan models.Tick {
	return h.out
}

// Start connects the ticker and begins forwarding ticks.
func (h *Hub) Start(ctx context.Context, tokens []uint32) error {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return nil
	}
	h.started = true
	h.mu.Unlock()

	h.ticker.OnTick(h.forward)
	h.ticker.OnError(func(err error) {
		h.logger.Warn().Err(err).Msg("Ticker error")
	})
	h.ticker.OnConnect(func() {
		if err := h.ticker.Subscribe(tokens); err != nil {
			h.logger.Error().Err(err).Msg("Tick subscription failed")
		}
	})
	h.ticker.OnDisconnect(func() {
		h.logger.Warn().Msg("Ticker disconnected")
	})

	return h.ticker.Connect(ctx)
}

// Stop disconnects the ticker and closes the consumer channel. The
// close happens under the forwarding lock, so a tick callback racing
// the shutdown can never send on the closed channel.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.started {
		h.mu.Unlock()
		return
	}
	h.started = false
	h.closed = true
	close(h.out)
	h.mu.Unlock()

	h.ticker.Disconnect()
}

// LastTickAt returns the arrival time of the most recent tick.
func (h *Hub) LastTickAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastTickAt
}

// Stale reports whether the feed has been silent past the threshold.
func (h *Hub) Stale(now time.Time) bool {
	last := h.LastTickAt()
	if last.IsZero() {
		return false // nothing subscribed yet
	}
	return now.Sub(last) > h.config.StaleAfter
}

// Dropped returns the count of ticks dropped to a lagging consumer.
func (h *Hub) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// forward runs on the ticker callback goroutine. Holding the lock for
// the send is fine: every send here is non-blocking.
func (h *Hub) forward(tick models.Tick) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastTickAt = time.Now()
	if h.closed {
		return
	}

	for {
		select {
		case h.out <- tick:
			return
		default:
		}
		// Buffer full: drop the oldest tick and retry.
		select {
		case <-h.out:
			h.dropped++
		default:
		}
	}
}
