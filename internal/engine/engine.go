// Package engine runs the order and risk state machines on a single
// writer goroutine. Ticks, timers, user commands and broker
// acknowledgments merge into one loop, so no engine state ever needs
// a lock; broker submissions happen on worker goroutines that re-enter
// the loop through ack events.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"option-scalper/internal/broker"
	"option-scalper/internal/config"
	kerrors "option-scalper/internal/errors"
	"option-scalper/internal/models"
	"option-scalper/internal/notify"
	"option-scalper/internal/pnl"
	"option-scalper/internal/resolver"
	"option-scalper/internal/squareoff"
	"option-scalper/internal/store"
	"option-scalper/pkg/utils"
)

// TickSource is the price feed consumed by the engine. A silent feed
// past the staleness threshold pauses PnL evaluation on the last known
// prices; tick arrival resumes it.
type TickSource interface {
	Ticks() <-chan models.Tick
	Stale(now time.Time) bool
}

// Session binds one configured underlying to its resolved session
// instruments.
type Session struct {
	Config      config.InstrumentConfig
	Instruments resolver.Resolved
}

// Params wires the engine's collaborators.
type Params struct {
	Config   *config.Config
	Broker   broker.Broker
	Feed     TickSource
	Sessions []Session
	Store    store.Store
	Notifier notify.Notifier
	Logger   zerolog.Logger
}

// Engine owns orders, positions and the day PnL state machine.
type Engine struct {
	cfg      *config.Config
	broker   broker.Broker
	feed     TickSource
	store    store.Store
	notifier notify.Notifier
	logger   zerolog.Logger

	product models.ProductType

	trailer *pnl.Trailer
	sqoff   *squareoff.Controller

	uiRefresh  time.Duration
	trailEvery time.Duration

	sessions  map[string]*Session
	orders    map[string]*models.Order
	positions map[string]*models.Position
	triggers  map[string]*trigger
	lastPrice map[uint32]float64

	events chan event
	stale  bool
	seq    int

	runCtx  context.Context
	runDone chan struct{}
}

// New builds an engine from its collaborators. Timer cadences and the
// square-off schedule come from configuration.
func New(p Params) (*Engine, error) {
	sqAt, err := config.ParseTimeOfDay(p.Config.Trading.SquareOffTime)
	if err != nil {
		return nil, kerrors.NewConfigError("square_off_time", p.Config.Trading.SquareOffTime, err.Error())
	}

	e := &Engine{
		cfg:        p.Config,
		broker:     p.Broker,
		feed:       p.Feed,
		store:      p.Store,
		notifier:   p.Notifier,
		logger:     p.Logger,
		product:    models.ProductType(p.Config.Trading.Product),
		uiRefresh:  parseDurationOr(p.Config.Timers.UIRefresh, 500*time.Millisecond),
		trailEvery: parseDurationOr(p.Config.Timers.AutoTrailer, time.Second),
		sessions:   make(map[string]*Session),
		orders:     make(map[string]*models.Order),
		positions:  make(map[string]*models.Position),
		triggers:   make(map[string]*trigger),
		lastPrice:  make(map[uint32]float64),
		events:     make(chan event, 64),
		runDone:    make(chan struct{}),
	}
	if e.store == nil {
		e.store = store.NopStore{}
	}
	if e.notifier == nil {
		e.notifier = notify.Nop{}
	}

	for i := range p.Sessions {
		s := p.Sessions[i]
		e.sessions[s.Config.Underlying] = &s
	}

	e.trailer = pnl.NewTrailer(utils.DayKey(time.Now()), e.thresholds(), p.Logger)
	e.sqoff = squareoff.New(sqAt, p.Logger)
	return e, nil
}

// Run drives the writer loop until ctx is cancelled or the feed
// channel closes.
func (e *Engine) Run(ctx context.Context) error {
	e.runCtx = ctx
	defer close(e.runDone)

	ui := time.NewTicker(e.uiRefresh)
	defer ui.Stop()
	trail := time.NewTicker(e.trailEvery)
	defer trail.Stop()

	e.logger.Info().
		Int("sessions", len(e.sessions)).
		Str("product", string(e.product)).
		Msg("Engine started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick, ok := <-e.feed.Ticks():
			if !ok {
				return kerrors.ErrEngineStopped
			}
			e.handleTick(tick)
		case now := <-trail.C:
			e.handleTrailTimer(now)
		case now := <-ui.C:
			e.handleUITimer(now)
		case ev := <-e.events:
			ev.apply(e)
		}
	}
}

// post re-enters the writer loop from a worker goroutine.
func (e *Engine) post(fn func(*Engine)) {
	select {
	case e.events <- ackEvent{fn}:
	case <-e.runDone:
	}
}

// do runs fn on the writer loop and waits for its result.
func (e *Engine) do(ctx context.Context, fn func(*Engine) error) error {
	reply := make(chan error, 1)
	select {
	case e.events <- commandEvent{fn: fn, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.runDone:
		return kerrors.ErrEngineStopped
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) handleTick(t models.Tick) {
	if e.stale {
		e.stale = false
		e.notifier.FeedStatus(false)
	}
	e.lastPrice[t.Token] = t.LTP
	for _, p := range e.positions {
		if p.Instrument.Token == t.Token {
			p.LTP = t.LTP
		}
	}
	e.fireTriggers(t)
	e.evaluatePnL()
}

func (e *Engine) handleTrailTimer(now time.Time) {
	if stale := e.feed.Stale(now); stale != e.stale {
		e.stale = stale
		e.notifier.FeedStatus(stale)
		if stale {
			e.logger.Warn().Time("last_tick", now).Msg("Price feed stale, holding PnL evaluation")
		}
	}
	if e.stale {
		return
	}
	e.evaluatePnL()
	e.snapshotPnL(now)
}

func (e *Engine) handleUITimer(now time.Time) {
	if e.sqoff.Due(now) {
		e.squareOffAll("SCHEDULED")
	}
	e.pollOpenOrders()
	e.notifier.PnLUpdate(e.trailer.State())
}

func (e *Engine) evaluatePnL() {
	verdict := e.trailer.Update(e.dayPnL())
	e.handleVerdict(verdict)
}

func (e *Engine) handleVerdict(v pnl.Verdict) {
	if !v.SquareOff {
		return
	}
	e.squareOffAll(string(v.Reason))
	if state := e.trailer.State(); state.Terminal != pnl.TerminalNone {
		e.notifier.DayTerminal(state, v.Reason)
	}
	if v.Deactivate {
		e.trailer.Deactivate()
	}
}

// dayPnL is the cumulative day PnL across every position, realized
// plus mark-to-market. Flat positions keep contributing their realized
// component until rollover.
func (e *Engine) dayPnL() float64 {
	var total float64
	for _, p := range e.positions {
		total += p.PnL()
	}
	return total
}

func (e *Engine) snapshotPnL(now time.Time) {
	var realized, unrealized float64
	for _, p := range e.positions {
		realized += p.RealizedPnL
		unrealized += p.UnrealizedPnL()
	}
	state := e.trailer.State()
	snap := store.PnLSnapshot{
		DayKey:     state.DayKey,
		PnL:        realized + unrealized,
		Realized:   realized,
		Unrealized: unrealized,
		Mode:       string(state.Mode),
		Terminal:   string(state.Terminal),
		Timestamp:  now,
	}
	go func() {
		if err := e.store.RecordPnLSnapshot(e.runCtx, snap); err != nil {
			e.logger.Error().Err(err).Msg("PnL snapshot write failed")
		}
	}()
}

func (e *Engine) pollOpenOrders() {
	for _, o := range e.orders {
		if o.BrokerID == "" || o.Status.Terminal() || o.Status == models.StatusPendingTrigger {
			continue
		}
		id, brokerID := o.ID, o.BrokerID
		go func() {
			state, err := e.broker.QueryOrder(e.runCtx, brokerID)
			if err != nil || state == nil {
				return
			}
			e.post(func(e *Engine) { e.applyOrderState(id, state) })
		}()
	}
}

func (e *Engine) thresholds() pnl.Thresholds {
	r := e.cfg.Risk
	return pnl.Thresholds{
		StopLoss:   r.StopLoss,
		Target:     r.Target,
		MoveToCost: r.MoveToCost,
		TrailAfter: r.TrailAfter,
		TrailBy:    r.TrailBy,
	}
}

func (e *Engine) nextID(prefix string) string {
	e.seq++
	return fmt.Sprintf("%s-%04d", prefix, e.seq)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
