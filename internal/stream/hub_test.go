package stream

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"option-scalper/internal/models"
)

// stubTicker drives the hub by hand.
type stubTicker struct {
	onTick    func(models.Tick)
	onConnect func()

	subscribed []uint32
	connected  bool
}

func (s *stubTicker) Connect(ctx context.Context) error {
	s.connected = true
	if s.onConnect != nil {
		s.onConnect()
	}
	return nil
}

func (s *stubTicker) Disconnect() error {
	s.connected = false
	return nil
}

func (s *stubTicker) Subscribe(tokens []uint32) error {
	s.subscribed = append(s.subscribed, tokens...)
	return nil
}

func (s *stubTicker) Unsubscribe(tokens []uint32) error      { return nil }
func (s *stubTicker) RegisterSymbol(symbol string, t uint32) {}
func (s *stubTicker) OnTick(handler func(models.Tick))       { s.onTick = handler }
func (s *stubTicker) OnError(handler func(error))            {}
func (s *stubTicker) OnConnect(handler func())               { s.onConnect = handler }
func (s *stubTicker) OnDisconnect(handler func())            {}

func (s *stubTicker) push(token uint32, ltp float64) {
	s.onTick(models.Tick{Token: token, LTP: ltp, Timestamp: time.Now()})
}

func TestHubSubscribesOnConnect(t *testing.T) {
	tk := &stubTicker{}
	hub := NewHub(tk, DefaultHubConfig(), zerolog.Nop())

	if err := hub.Start(context.Background(), []uint32{1, 2, 3}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer hub.Stop()

	if len(tk.subscribed) != 3 {
		t.Fatalf("subscribed %v, want 3 tokens", tk.subscribed)
	}
}

func TestHubForwardsTicks(t *testing.T) {
	tk := &stubTicker{}
	hub := NewHub(tk, DefaultHubConfig(), zerolog.Nop())
	if err := hub.Start(context.Background(), []uint32{1}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer hub.Stop()

	tk.push(1, 22500)
	tk.push(1, 22501)

	for _, want := range []float64{22500, 22501} {
		select {
		case tick := <-hub.Ticks():
			if tick.LTP != want {
				t.Errorf("LTP %v, want %v", tick.LTP, want)
			}
		case <-time.After(time.Second):
			t.Fatal("tick not forwarded")
		}
	}
}

func TestHubDropsOldestWhenConsumerLags(t *testing.T) {
	tk := &stubTicker{}
	cfg := HubConfig{BufferSize: 2, StaleAfter: time.Second}
	hub := NewHub(tk, cfg, zerolog.Nop())
	if err := hub.Start(context.Background(), []uint32{1}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer hub.Stop()

	// Nobody reads: only the newest two survive.
	tk.push(1, 100)
	tk.push(1, 101)
	tk.push(1, 102)

	if hub.Dropped() != 1 {
		t.Fatalf("dropped %d, want 1", hub.Dropped())
	}
	first := <-hub.Ticks()
	second := <-hub.Ticks()
	if first.LTP != 101 || second.LTP != 102 {
		t.Errorf("kept %v and %v, want the newest ticks 101 and 102", first.LTP, second.LTP)
	}
}

func TestHubStaleness(t *testing.T) {
	tk := &stubTicker{}
	cfg := HubConfig{BufferSize: 10, StaleAfter: 100 * time.Millisecond}
	hub := NewHub(tk, cfg, zerolog.Nop())
	if err := hub.Start(context.Background(), []uint32{1}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer hub.Stop()

	// No tick yet: not stale, there is nothing to be stale against.
	if hub.Stale(time.Now().Add(time.Hour)) {
		t.Error("hub stale before first tick")
	}

	tk.push(1, 100)
	now := time.Now()
	if hub.Stale(now) {
		t.Error("hub stale immediately after a tick")
	}
	if !hub.Stale(now.Add(200 * time.Millisecond)) {
		t.Error("hub not stale past the threshold")
	}

	tk.push(1, 101)
	if hub.Stale(time.Now()) {
		t.Error("hub still stale after a fresh tick")
	}
}

func TestHubTickDuringShutdownDoesNotPanic(t *testing.T) {
	tk := &stubTicker{}
	hub := NewHub(tk, DefaultHubConfig(), zerolog.Nop())
	if err := hub.Start(context.Background(), []uint32{1}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Ticker callbacks can race the disconnect; a late tick must be
	// swallowed, not sent on the closed channel.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			tk.push(1, float64(i))
		}
	}()
	hub.Stop()
	<-done

	tk.push(1, 22500) // after full shutdown
}

func TestHubStartIsIdempotent(t *testing.T) {
	tk := &stubTicker{}
	hub := NewHub(tk, DefaultHubConfig(), zerolog.Nop())
	ctx := context.Background()

	if err := hub.Start(ctx, []uint32{1}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := hub.Start(ctx, []uint32{1}); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if len(tk.subscribed) != 1 {
		t.Errorf("subscribed %v, want a single subscription", tk.subscribed)
	}
	hub.Stop()
	hub.Stop() // second Stop is a no-op
}
