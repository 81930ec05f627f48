package engine

import (
	"context"
	"time"

	kerrors "option-scalper/internal/errors"
	"option-scalper/internal/models"
	"option-scalper/internal/pnl"
	"option-scalper/internal/slicer"
	"option-scalper/pkg/utils"
)

// TradeRequest is a user command to take a position on one configured
// underlying. Quantity, slicing and risk style come from the
// underlying's configuration.
type TradeRequest struct {
	Underlying   string
	Side         models.Side
	TriggerPrice *float64 // spot price watch, nil = market
}

// Snapshot is a point-in-time view of engine state for display.
type Snapshot struct {
	Day       pnl.DayState
	DayPnL    float64
	Positions []models.Position
	Open      []models.Order
	FeedStale bool
}

// TakePosition decomposes the request into sliced entry orders. Market
// entries submit immediately; trigger entries wait engine-side
// watching the spot price. Rejected entirely once the day is terminal.
func (e *Engine) TakePosition(ctx context.Context, req TradeRequest) error {
	return e.do(ctx, func(e *Engine) error {
		sess, ok := e.sessions[req.Underlying]
		if !ok {
			return kerrors.NewInvalidOperation("take_position", "unknown underlying "+req.Underlying)
		}
		if e.trailer.State().Terminal != pnl.TerminalNone {
			return kerrors.ErrDayTerminal
		}
		if req.Side != models.SideBuy && req.Side != models.SideShort {
			return kerrors.NewInvalidOperation("take_position", "side must be BUY or SHORT")
		}

		inst := sess.Instruments.LegFor(req.Side)
		intent := models.TradeIntent{
			ID:             e.nextID("int"),
			Underlying:     req.Underlying,
			Side:           req.Side,
			Quantity:       sess.Config.Quantity,
			Legs:           sess.Config.Legs,
			TriggerPrice:   req.TriggerPrice,
			Style:          models.OrderStyle(sess.Config.OrderStyle),
			ProfitPoints:   sess.Config.ProfitPoints,
			StopLossPoints: sess.Config.StopLossPoints,
			CreatedAt:      time.Now(),
		}

		var legs []models.Leg
		var err error
		if inst.IsOption() {
			legs, err = slicer.SliceWithFreeze(intent, inst.LotSize, inst.FreezeQty)
		} else {
			legs, err = slicer.Slice(intent)
		}
		if err != nil {
			return err
		}

		for _, leg := range legs {
			units := leg.Quantity
			if inst.IsOption() {
				units *= inst.LotSize
			}
			o := &models.Order{
				ID:           e.nextID("ord"),
				Instrument:   inst,
				Side:         req.Side,
				Quantity:     units,
				Style:        intent.Style,
				Role:         models.RoleEntry,
				Status:       models.StatusIdle,
				TriggerPrice: req.TriggerPrice,
				PlacedAt:     time.Now(),
			}
			e.orders[o.ID] = o
			if req.TriggerPrice == nil {
				e.dispatch(o)
				continue
			}
			o.Status = models.StatusPendingTrigger
			e.triggers[o.ID] = &trigger{
				orderID: o.ID,
				token:   sess.Instruments.Spot.Token,
				price:   *req.TriggerPrice,
				above:   req.Side == models.SideBuy,
			}
			e.notifier.OrderUpdate(*o)
		}
		return nil
	})
}

// SquareOff flattens every position on the underlying and cancels its
// waiting orders. The exit goes out as one unsliced market order per
// position.
func (e *Engine) SquareOff(ctx context.Context, underlying string) error {
	return e.do(ctx, func(e *Engine) error {
		sess, ok := e.sessions[underlying]
		if !ok {
			return kerrors.NewInvalidOperation("squareoff", "unknown underlying "+underlying)
		}

		cancelled := 0
		for _, o := range e.orders {
			if !e.sessionOwns(sess, o.Instrument) {
				continue
			}
			switch {
			case o.Status == models.StatusPendingTrigger:
				e.localCancel(o, "SQUAREOFF")
				cancelled++
			case !o.Status.Terminal() && o.BrokerID != "" && o.Role != models.RoleEntry:
				e.cancelAtBroker(o)
				cancelled++
			}
		}

		exited := 0
		for _, p := range e.positions {
			if !e.sessionOwns(sess, p.Instrument) || p.NetQuantity == 0 {
				continue
			}
			e.exitPosition(p, absInt(p.NetQuantity), "MANUAL")
			exited++
		}

		if cancelled == 0 && exited == 0 {
			return kerrors.ErrNoPosition
		}
		e.notifier.SquareOff(underlying, "MANUAL")
		return nil
	})
}

// PartialSquareOff exits a percentage of the underlying's net
// position, rounded down to whole lots. Only plain-style MIS positions
// support partial exits; waiting trigger orders are left untouched.
// Zero percent is a no-op.
func (e *Engine) PartialSquareOff(ctx context.Context, underlying string, percent float64) error {
	return e.do(ctx, func(e *Engine) error {
		sess, ok := e.sessions[underlying]
		if !ok {
			return kerrors.NewInvalidOperation("partial_squareoff", "unknown underlying "+underlying)
		}
		if style := models.OrderStyle(sess.Config.OrderStyle); style == models.StyleBracket || style == models.StyleOCO {
			return kerrors.NewInvalidOperation("partial_squareoff", "bracket and OCO positions square off whole")
		}
		if e.product != models.ProductMIS {
			return kerrors.NewInvalidOperation("partial_squareoff", "only MIS positions support partial exit")
		}
		if percent <= 0 {
			return nil
		}
		if percent > 100 {
			percent = 100
		}

		for _, p := range e.positions {
			if !e.sessionOwns(sess, p.Instrument) || p.NetQuantity == 0 {
				continue
			}
			qty := int(float64(absInt(p.NetQuantity)) * percent / 100)
			if lot := p.Instrument.LotSize; lot > 1 {
				qty = (qty / lot) * lot
			}
			if qty == 0 {
				continue
			}
			e.exitPosition(p, qty, "PARTIAL")
		}
		return nil
	})
}

// SetMode switches the day PnL trailer between Manual and Auto. An
// Auto switch with the PnL already past a hard threshold squares off
// immediately and stays Manual.
func (e *Engine) SetMode(ctx context.Context, mode pnl.Mode) error {
	return e.do(ctx, func(e *Engine) error {
		verdict, err := e.trailer.SetMode(mode, e.dayPnL())
		if err != nil {
			return err
		}
		e.handleVerdict(verdict)
		return nil
	})
}

// AdjustThreshold nudges one trailer threshold by delta. Permitted in
// Manual mode only.
func (e *Engine) AdjustThreshold(ctx context.Context, field string, delta float64) error {
	return e.do(ctx, func(e *Engine) error {
		return e.trailer.Adjust(field, delta)
	})
}

// RolloverDay resets the day PnL state and the square-off latch for a
// new trading day. Positions and orders carry over untouched.
func (e *Engine) RolloverDay(ctx context.Context) error {
	return e.do(ctx, func(e *Engine) error {
		for _, p := range e.positions {
			if p.NetQuantity != 0 {
				e.logger.Warn().
					Str("tsym", p.Instrument.TradingSymbol).
					Int("qty", p.NetQuantity).
					Msg("Rolling over with an open position")
			}
			p.RealizedPnL = 0
		}
		e.trailer.Rollover(utils.DayKey(time.Now()), e.thresholds())
		e.sqoff.Rollover()
		return nil
	})
}

// Snapshot returns a copy of the current engine state.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := e.do(ctx, func(e *Engine) error {
		snap.Day = e.trailer.State()
		snap.DayPnL = e.dayPnL()
		snap.FeedStale = e.stale
		for _, p := range e.positions {
			snap.Positions = append(snap.Positions, *p)
		}
		for _, o := range e.orders {
			if !o.Status.Terminal() {
				snap.Open = append(snap.Open, *o)
			}
		}
		return nil
	})
	return snap, err
}
