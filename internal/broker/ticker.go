package broker

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	kitemodels "github.com/zerodha/gokiteconnect/v4/models"
	kiteticker "github.com/zerodha/gokiteconnect/v4/ticker"

	"option-scalper/internal/models"
)

// ZerodhaTicker implements the Ticker interface for Zerodha WebSocket
// streaming. Only LTP mode is used; the engine needs last price and
// arrival time, nothing deeper.
type ZerodhaTicker struct {
	ticker      *kiteticker.Ticker
	apiKey      string
	accessToken string

	onTick       func(models.Tick)
	onError      func(error)
	onConnect    func()
	onDisconnect func()

	connected    bool
	subscribed   map[uint32]struct{}
	symbolTokens map[string]uint32
	tokenSymbols map[uint32]string

	reconnecting bool
	maxRetries   int
	baseDelay    time.Duration

	mu      sync.RWMutex
	writeMu sync.Mutex // protects websocket writes
}

// ZerodhaTickerConfig holds configuration for the ticker.
type ZerodhaTickerConfig struct {
	APIKey      string
	AccessToken string
	MaxRetries  int
	BaseDelay   time.Duration
}

// NewZerodhaTicker creates a new Zerodha ticker instance.
func NewZerodhaTicker(cfg ZerodhaTickerConfig) *ZerodhaTicker {
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 5
	}
	baseDelay := cfg.BaseDelay
	if baseDelay == 0 {
		baseDelay = time.Second
	}

	return &ZerodhaTicker{
		apiKey:       cfg.APIKey,
		accessToken:  cfg.AccessToken,
		subscribed:   make(map[uint32]struct{}),
		symbolTokens: make(map[string]uint32),
		tokenSymbols: make(map[uint32]string),
		maxRetries:   maxRetries,
		baseDelay:    baseDelay,
	}
}

// Connect establishes a WebSocket connection with Kite Connect.
func (t *ZerodhaTicker) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.connected {
		t.mu.Unlock()
		return nil
	}

	t.ticker = kiteticker.New(t.apiKey, t.accessToken)

	connectedCh := make(chan struct{})
	firstConnect := true

	t.ticker.OnConnect(func() {
		t.mu.Lock()
		t.connected = true
		t.reconnecting = false
		isFirst := firstConnect
		firstConnect = false
		t.mu.Unlock()

		select {
		case connectedCh <- struct{}{}:
		default:
		}

		// On reconnection resubscribe silently; the external handler
		// subscribed on first connect.
		if !isFirst {
			t.resubscribe()
			return
		}

		if t.onConnect != nil {
			go t.onConnect()
		}
	})

	t.ticker.OnClose(func(code int, reason string) {
		t.mu.Lock()
		wasConnected := t.connected
		t.connected = false
		t.mu.Unlock()

		if t.onDisconnect != nil && wasConnected {
			go t.onDisconnect()
		}

		go t.reconnect(ctx)
	})

	t.ticker.OnError(func(err error) {
		if t.onError != nil {
			go t.onError(err)
		}
	})

	t.ticker.OnTick(func(tick kitemodels.Tick) {
		if t.onTick != nil {
			t.onTick(t.convertTick(tick))
		}
	})

	t.ticker.OnReconnect(func(attempt int, delay time.Duration) {
		t.mu.Lock()
		t.reconnecting = true
		t.mu.Unlock()
	})

	t.mu.Unlock()

	go t.ticker.Serve()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-connectedCh:
		return nil
	case <-time.After(30 * time.Second):
		t.mu.RLock()
		connected := t.connected
		t.mu.RUnlock()
		if !connected {
			return fmt.Errorf("connection timeout")
		}
		return nil
	}
}

// Disconnect closes the WebSocket connection.
func (t *ZerodhaTicker) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ticker != nil {
		t.ticker.Close()
		t.connected = false
	}
	return nil
}

// Subscribe subscribes to instrument tokens in LTP mode.
func (t *ZerodhaTicker) Subscribe(tokens []uint32) error {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return fmt.Errorf("not connected")
	}
	for _, token := range tokens {
		t.subscribed[token] = struct{}{}
	}
	t.mu.Unlock()

	if len(tokens) == 0 {
		return nil
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := t.ticker.Subscribe(tokens); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	if err := t.ticker.SetMode(kiteticker.ModeLTP, tokens); err != nil {
		return fmt.Errorf("failed to set mode: %w", err)
	}
	return nil
}

// Unsubscribe unsubscribes from instrument tokens.
func (t *ZerodhaTicker) Unsubscribe(tokens []uint32) error {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return fmt.Errorf("not connected")
	}
	for _, token := range tokens {
		delete(t.subscribed, token)
	}
	t.mu.Unlock()

	if len(tokens) == 0 {
		return nil
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := t.ticker.Unsubscribe(tokens); err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	return nil
}

// OnTick sets the tick handler.
func (t *ZerodhaTicker) OnTick(handler func(models.Tick)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onTick = handler
}

// OnError sets the error handler.
func (t *ZerodhaTicker) OnError(handler func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onError = handler
}

// OnConnect sets the connect handler.
func (t *ZerodhaTicker) OnConnect(handler func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onConnect = handler
}

// OnDisconnect sets the disconnect handler.
func (t *ZerodhaTicker) OnDisconnect(handler func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDisconnect = handler
}

// RegisterSymbol registers a symbol with its instrument token.
func (t *ZerodhaTicker) RegisterSymbol(symbol string, token uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.symbolTokens[symbol] = token
	t.tokenSymbols[token] = symbol
}

// IsConnected returns whether the ticker is connected.
func (t *ZerodhaTicker) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

func (t *ZerodhaTicker) convertTick(tick kitemodels.Tick) models.Tick {
	t.mu.RLock()
	symbol := t.tokenSymbols[tick.InstrumentToken]
	t.mu.RUnlock()

	ts := tick.Timestamp.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return models.Tick{
		Token:     tick.InstrumentToken,
		Symbol:    symbol,
		LTP:       tick.LastPrice,
		Timestamp: ts,
	}
}

// reconnect attempts to reconnect with exponential backoff.
func (t *ZerodhaTicker) reconnect(ctx context.Context) {
	t.mu.Lock()
	if t.reconnecting {
		t.mu.Unlock()
		return
	}
	t.reconnecting = true
	t.mu.Unlock()

	for attempt := 0; attempt < t.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return
		default:
		}

		delay := t.baseDelay * time.Duration(math.Pow(2, float64(attempt)))
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
		time.Sleep(delay)

		t.mu.Lock()
		if t.connected {
			t.reconnecting = false
			t.mu.Unlock()
			return
		}
		t.mu.Unlock()

		if err := t.Connect(ctx); err == nil {
			return
		}
	}

	t.mu.Lock()
	t.reconnecting = false
	t.mu.Unlock()

	if t.onError != nil {
		t.onError(fmt.Errorf("max reconnection attempts reached"))
	}
}

// resubscribe resubscribes to all previously subscribed tokens.
func (t *ZerodhaTicker) resubscribe() {
	t.mu.RLock()
	tokens := make([]uint32, 0, len(t.subscribed))
	for token := range t.subscribed {
		tokens = append(tokens, token)
	}
	t.mu.RUnlock()

	if len(tokens) == 0 {
		return
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.ticker.Subscribe(tokens)
	t.ticker.SetMode(kiteticker.ModeLTP, tokens)
}

// Ensure ZerodhaTicker implements Ticker interface
var _ Ticker = (*ZerodhaTicker)(nil)
