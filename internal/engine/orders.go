package engine

import (
	"time"

	"option-scalper/internal/broker"
	kerrors "option-scalper/internal/errors"
	"option-scalper/internal/logging"
	"option-scalper/internal/models"
	"option-scalper/internal/store"
	"option-scalper/pkg/utils"
)

// cancelPollInterval paces the indefinite broker-side cancel retry.
const cancelPollInterval = time.Second

// entryLong reports whether the order's entry direction is a buy.
// Option legs are always bought, Buy and Short alike; only a cash
// proxy Short actually sells to enter.
func entryLong(o *models.Order) bool {
	return o.Instrument.IsOption() || o.Side == models.SideBuy
}

func transactionFor(o *models.Order) broker.Transaction {
	long := entryLong(o)
	if o.Role == models.RoleEntry {
		if long {
			return broker.TxBuy
		}
		return broker.TxSell
	}
	if long {
		return broker.TxSell
	}
	return broker.TxBuy
}

// dispatch hands the order to a worker goroutine for submission. The
// worker retries transient broker failures a bounded number of times,
// then reconciles the broker-side state and re-enters through an ack.
func (e *Engine) dispatch(o *models.Order) {
	o.Status = models.StatusSubmitted
	if o.PlacedAt.IsZero() {
		o.PlacedAt = time.Now()
	}
	e.notifier.OrderUpdate(*o)
	logging.LogOrder(e.logger, o.ID, o.Instrument.TradingSymbol, string(o.Side), string(o.Status))

	req := broker.OrderRequest{
		Instrument:  o.Instrument,
		Transaction: transactionFor(o),
		Quantity:    o.Quantity,
		Product:     e.product,
		Tag:         o.ID,
	}
	id := o.ID
	go func() {
		retryCfg := utils.DefaultRetryConfig()
		retryCfg.Retryable = kerrors.IsRetryable
		res, err := utils.RetryWithResult(e.runCtx, retryCfg, func() (*broker.OrderResult, error) {
			return e.broker.PlaceOrder(e.runCtx, req)
		})
		if err != nil {
			e.post(func(e *Engine) { e.onPlaceFailed(id, err) })
			return
		}
		state, qerr := e.broker.QueryOrder(e.runCtx, res.OrderID)
		e.post(func(e *Engine) {
			o := e.orders[id]
			if o == nil {
				return
			}
			o.BrokerID = res.OrderID
			if qerr != nil || state == nil {
				// the open-order poller reconciles later
				return
			}
			e.applyOrderState(id, state)
		})
	}()
}

func (e *Engine) onPlaceFailed(id string, err error) {
	o := e.orders[id]
	if o == nil || o.Status.Terminal() {
		return
	}
	o.Status = models.StatusRejected
	o.Reason = err.Error()
	e.logger.Error().Err(err).Str("order_id", id).Str("tsym", o.Instrument.TradingSymbol).Msg("Order placement failed")
	e.recordOrder(o)
	e.notifier.OrderUpdate(*o)
}

// applyOrderState folds a broker-side order snapshot into the engine
// order, applying any fill delta to the position.
func (e *Engine) applyOrderState(id string, state *broker.OrderState) {
	o := e.orders[id]
	if o == nil || o.Status.Terminal() {
		return
	}

	delta := state.FilledQty - o.FilledQty
	if delta > 0 {
		o.FilledQty = state.FilledQty
		o.AveragePrice = state.AveragePrice
		e.applyFill(o, delta, state.AveragePrice)
		logging.LogFill(e.logger, o.ID, o.Instrument.TradingSymbol, delta, state.AveragePrice)
	}

	prev := o.Status
	o.Status = state.Status
	if state.Reason != "" {
		o.Reason = state.Reason
	}
	if o.Status != prev || delta > 0 {
		e.notifier.OrderUpdate(*o)
	}

	if o.Status == models.StatusFilled {
		if o.Role == models.RoleEntry && (o.Style == models.StyleBracket || o.Style == models.StyleOCO) {
			e.registerExits(o)
		}
		e.cancelSibling(o)
	}
	if o.Status.Terminal() && o.Status != prev {
		e.recordOrder(o)
	}
}

// applyFill mutates the net position for the order's instrument and
// side. Quantity is signed by wire transaction: buys add, sells
// subtract.
func (e *Engine) applyFill(o *models.Order, qty int, price float64) {
	key := o.Instrument.Key() + "|" + string(o.Side)
	p := e.positions[key]
	if p == nil {
		p = &models.Position{Instrument: o.Instrument, Side: o.Side, LTP: price}
		e.positions[key] = p
	}

	signed := qty
	if transactionFor(o) == broker.TxSell {
		signed = -qty
	}

	switch {
	case p.NetQuantity == 0 || (p.NetQuantity > 0) == (signed > 0):
		total := absInt(p.NetQuantity) + qty
		p.AveragePrice = (p.AveragePrice*float64(absInt(p.NetQuantity)) + price*float64(qty)) / float64(total)
		p.NetQuantity += signed
	default:
		closed := minInt(absInt(p.NetQuantity), qty)
		if p.NetQuantity > 0 {
			p.RealizedPnL += (price - p.AveragePrice) * float64(closed)
		} else {
			p.RealizedPnL += (p.AveragePrice - price) * float64(closed)
		}
		p.NetQuantity += signed
		if p.NetQuantity == 0 {
			p.AveragePrice = 0
		}
	}
	p.LTP = price
}

// registerExits arms the target/stop pair for a filled bracket or OCO
// entry. Both stay engine-held pending triggers on the traded
// instrument's own price; the first to fire dispatches and cancels its
// sibling.
func (e *Engine) registerExits(entry *models.Order) {
	sess := e.sessionFor(entry.Instrument)
	if sess == nil {
		return
	}
	pp := sess.Config.ProfitPoints
	sl := sess.Config.StopLossPoints
	if pp <= 0 && sl <= 0 {
		return
	}

	long := entryLong(entry)
	avg := entry.AveragePrice
	tickSize := entry.Instrument.TickSize

	var tgt, stp *models.Order
	if pp > 0 {
		price, above := avg+pp, true
		if !long {
			price, above = avg-pp, false
		}
		tgt = e.newExit(entry, models.RoleTarget, utils.RoundToTick(price, tickSize), above)
	}
	if sl > 0 {
		price, above := avg-sl, false
		if !long {
			price, above = avg+sl, true
		}
		stp = e.newExit(entry, models.RoleStop, utils.RoundToTick(price, tickSize), above)
	}
	if tgt != nil && stp != nil {
		tgt.SiblingID = stp.ID
		stp.SiblingID = tgt.ID
	}
}

func (e *Engine) newExit(entry *models.Order, role models.OrderRole, price float64, above bool) *models.Order {
	p := price
	o := &models.Order{
		ID:           e.nextID("ord"),
		Instrument:   entry.Instrument,
		Side:         entry.Side,
		Quantity:     entry.FilledQty,
		Style:        entry.Style,
		Role:         role,
		Status:       models.StatusPendingTrigger,
		TriggerPrice: &p,
		PlacedAt:     time.Now(),
	}
	e.orders[o.ID] = o
	e.triggers[o.ID] = &trigger{orderID: o.ID, token: entry.Instrument.Token, price: p, above: above}
	e.notifier.OrderUpdate(*o)
	e.logger.Info().
		Str("order_id", o.ID).
		Str("role", string(role)).
		Float64("trigger", p).
		Msg("Exit leg armed")
	return o
}

// fireTriggers evaluates pending watches against one tick. A fired
// order dispatches immediately; its OCO sibling is cancelled first so
// only one exit can reach the broker.
func (e *Engine) fireTriggers(t models.Tick) {
	for id, tr := range e.triggers {
		if tr.token != t.Token || !tr.hit(t.LTP) {
			continue
		}
		delete(e.triggers, id)
		o := e.orders[id]
		if o == nil || o.Status != models.StatusPendingTrigger {
			continue
		}
		e.logger.Info().
			Str("order_id", id).
			Float64("ltp", t.LTP).
			Float64("trigger", tr.price).
			Msg("Trigger fired")
		e.cancelSibling(o)
		e.dispatch(o)
	}
}

// cancelSibling cancels the OCO partner of o, if any. Engine-held
// pending siblings cancel locally; broker-side siblings cancel through
// an indefinite retry that stops only on acknowledgment or on the
// sibling reaching a terminal state by itself.
func (e *Engine) cancelSibling(o *models.Order) {
	if o.SiblingID == "" {
		return
	}
	s := e.orders[o.SiblingID]
	if s == nil || s.Status.Terminal() {
		return
	}
	if s.Status == models.StatusPendingTrigger {
		e.localCancel(s, "sibling executed")
		return
	}
	e.cancelAtBroker(s)
}

func (e *Engine) localCancel(o *models.Order, reason string) {
	delete(e.triggers, o.ID)
	o.Status = models.StatusCancelled
	o.Reason = reason
	e.recordOrder(o)
	e.notifier.OrderUpdate(*o)
}

func (e *Engine) cancelAtBroker(o *models.Order) {
	if o.BrokerID == "" {
		return
	}
	id, brokerID := o.ID, o.BrokerID
	go func() {
		for {
			if err := e.broker.CancelOrder(e.runCtx, brokerID); err == nil {
				e.post(func(e *Engine) {
					o := e.orders[id]
					if o == nil || o.Status.Terminal() {
						return
					}
					o.Status = models.StatusCancelled
					e.recordOrder(o)
					e.notifier.OrderUpdate(*o)
				})
				return
			}
			// a fill racing the cancel makes it moot
			state, qerr := e.broker.QueryOrder(e.runCtx, brokerID)
			if qerr == nil && state != nil && state.Status.Terminal() {
				e.post(func(e *Engine) { e.applyOrderState(id, state) })
				return
			}
			select {
			case <-e.runCtx.Done():
				return
			case <-time.After(cancelPollInterval):
			}
		}
	}()
}

// exitPosition closes qty units of the position with a single market
// order. Square-off paths never slice.
func (e *Engine) exitPosition(p *models.Position, qty int, reason string) {
	o := &models.Order{
		ID:         e.nextID("ord"),
		Instrument: p.Instrument,
		Side:       p.Side,
		Quantity:   qty,
		Style:      models.StylePlain,
		Role:       models.RoleSquareOff,
		Status:     models.StatusIdle,
		PlacedAt:   time.Now(),
	}
	e.orders[o.ID] = o
	e.logger.Info().
		Str("order_id", o.ID).
		Str("tsym", p.Instrument.TradingSymbol).
		Int("qty", qty).
		Str("reason", reason).
		Msg("Square-off order")
	e.dispatch(o)
}

// squareOffAll cancels every waiting order and flattens every open
// position. Used by the scheduled square-off and by trailer verdicts.
func (e *Engine) squareOffAll(reason string) {
	for _, o := range e.orders {
		switch {
		case o.Status == models.StatusPendingTrigger:
			e.localCancel(o, reason)
		case !o.Status.Terminal() && o.BrokerID != "":
			e.cancelAtBroker(o)
		}
	}
	for _, p := range e.positions {
		if p.NetQuantity == 0 {
			continue
		}
		e.exitPosition(p, absInt(p.NetQuantity), reason)
	}
	e.notifier.SquareOff("ALL", reason)
}

func (e *Engine) recordOrder(o *models.Order) {
	rec := store.RecordFromOrder(o, time.Now())
	go func() {
		if err := e.store.RecordOrder(e.runCtx, rec); err != nil {
			e.logger.Error().Err(err).Str("order_id", rec.OrderID).Msg("Order record write failed")
		}
	}()
}

func (e *Engine) sessionFor(inst models.Instrument) *Session {
	for _, s := range e.sessions {
		if e.sessionOwns(s, inst) {
			return s
		}
	}
	return nil
}

func (e *Engine) sessionOwns(s *Session, inst models.Instrument) bool {
	si := s.Instruments
	return inst.Token == si.Call.Token || inst.Token == si.Put.Token || inst.Token == si.Spot.Token
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
