package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"option-scalper/internal/broker"
	"option-scalper/internal/config"
	"option-scalper/internal/engine"
	"option-scalper/internal/models"
	"option-scalper/internal/notify"
	"option-scalper/internal/pnl"
	"option-scalper/internal/resolver"
	"option-scalper/internal/store"
	"option-scalper/internal/stream"
)

// runtime bundles everything resolved for one session.
type runtime struct {
	sessions []engine.Session
	tokens   []uint32
	byToken  map[uint32]models.Instrument
}

func newInstrumentsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "instruments",
		Short: "Resolve and show the session instruments",
		Long: `Resolve each configured underlying against the live instrument
master and the current spot price, and show the selected expiry and
strikes without starting a session.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			zb, err := newLiveBroker(app.Config)
			if err != nil {
				output.Error("%v", err)
				return err
			}
			rt, err := resolveSessions(ctx, app, zb)
			if err != nil {
				output.Error("Resolution failed: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(rt.sessions)
			}
			table := NewTable(output, "UNDERLYING", "EXPIRY", "CALL", "PUT", "LOT")
			for _, s := range rt.sessions {
				si := s.Instruments
				expiry := "-"
				if !si.Call.Expiry.IsZero() {
					expiry = FormatDate(si.Call.Expiry)
				}
				table.AddRow(s.Config.Underlying, expiry,
					si.Call.TradingSymbol, si.Put.TradingSymbol,
					fmt.Sprintf("%d", si.Call.LotSize))
			}
			table.Render()
			return nil
		},
	}
}

func newRunCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start a trading session",
		Long: `Start the trading session: connect the price feed, resolve the
session instruments and run the engine until interrupted.

Session commands (stdin):
  b <underlying> [trigger]   buy (CE leg), optional spot trigger
  s <underlying> [trigger]   short (PE leg), optional spot trigger
  x <underlying>             square off the underlying
  p <underlying> <percent>   partial square-off (plain MIS only)
  auto | manual              switch the PnL trailer mode
  adj <field> <delta>        nudge a threshold (manual mode)
  st                         show status
  q                          quit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			return runSession(cmd, app, output)
		},
	}
}

func runSession(cmd *cobra.Command, app *App, output *Output) error {
	cfg := app.Config

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zb, err := newLiveBroker(cfg)
	if err != nil {
		output.Error("%v", err)
		return err
	}

	rt, err := resolveSessions(ctx, app, zb)
	if err != nil {
		output.Error("Resolution failed: %v", err)
		return err
	}
	for _, s := range rt.sessions {
		si := s.Instruments
		output.Info("%s: CE %s / PE %s (spot %s)", s.Config.Underlying,
			si.Call.TradingSymbol, si.Put.TradingSymbol, si.Spot.TradingSymbol)
	}

	// Feed: the live websocket in both modes; paper mode only swaps
	// the execution broker.
	ticker := zb.CreateTicker(broker.ZerodhaConfig{
		APIKey:      cfg.Credentials.APIKey,
		AccessToken: cfg.Credentials.AccessToken,
	})
	for token, inst := range rt.byToken {
		ticker.RegisterSymbol(inst.TradingSymbol, token)
	}

	hubCfg := stream.DefaultHubConfig()
	if d, perr := time.ParseDuration(cfg.Trading.FeedStaleAfter); perr == nil && d > 0 {
		hubCfg.StaleAfter = d
	}
	hub := stream.NewHub(ticker, hubCfg, app.Logger)

	var execBroker broker.Broker = broker.NewBreaker(zb, broker.DefaultBreakerConfig(), app.Logger)
	var feed engine.TickSource = hub
	if cfg.IsPaperMode() {
		paper := broker.NewPaperBroker()
		pf := newPaperFeed(hub, paper, rt.byToken)
		go pf.run()
		execBroker = paper
		feed = pf
		output.Warning("Paper mode: orders fill locally at the last tick")
	}

	dataStore := openStore(app)
	defer dataStore.Close()

	eng, err := engine.New(engine.Params{
		Config:   cfg,
		Broker:   execBroker,
		Feed:     feed,
		Sessions: rt.sessions,
		Store:    dataStore,
		Notifier: notify.NewTerminal(),
		Logger:   app.Logger,
	})
	if err != nil {
		return err
	}

	if err := hub.Start(ctx, rt.tokens); err != nil {
		output.Error("Feed connect failed: %v", err)
		return err
	}
	defer hub.Stop()

	engDone := make(chan error, 1)
	go func() { engDone <- eng.Run(ctx) }()

	output.Success("Session started (%s, square-off %s IST)", cfg.Trading.Mode, cfg.Trading.SquareOffTime)
	repl(ctx, stop, app, eng, output)

	select {
	case err := <-engDone:
		if err != nil && err != context.Canceled {
			return err
		}
	case <-time.After(2 * time.Second):
	}
	return nil
}

// repl consumes session commands from stdin until quit or the context
// is cancelled.
func repl(ctx context.Context, stop context.CancelFunc, app *App, eng *engine.Engine, output *Output) {
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				stop()
				return
			}
			if quit := dispatchCommand(ctx, app, eng, output, line); quit {
				stop()
				return
			}
		}
	}
}

func dispatchCommand(ctx context.Context, app *App, eng *engine.Engine, output *Output, line string) bool {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return false
	}

	cmdCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var err error
	switch strings.ToLower(fields[0]) {
	case "q", "quit", "exit":
		return true
	case "b", "buy":
		err = takePosition(cmdCtx, eng, fields, models.SideBuy)
	case "s", "short":
		err = takePosition(cmdCtx, eng, fields, models.SideShort)
	case "x", "sq", "squareoff":
		if len(fields) < 2 {
			err = fmt.Errorf("usage: x <underlying>")
			break
		}
		err = eng.SquareOff(cmdCtx, strings.ToUpper(fields[1]))
	case "p", "partial":
		if len(fields) < 3 {
			err = fmt.Errorf("usage: p <underlying> <percent>")
			break
		}
		var pct float64
		pct, err = strconv.ParseFloat(fields[2], 64)
		if err == nil {
			err = eng.PartialSquareOff(cmdCtx, strings.ToUpper(fields[1]), pct)
		}
	case "auto":
		err = eng.SetMode(cmdCtx, pnl.ModeAuto)
	case "manual":
		err = eng.SetMode(cmdCtx, pnl.ModeManual)
	case "adj", "adjust":
		if len(fields) < 3 {
			err = fmt.Errorf("usage: adj <field> <delta>")
			break
		}
		var delta float64
		delta, err = strconv.ParseFloat(fields[2], 64)
		if err == nil {
			if delta == 0 {
				delta = app.Config.Risk.ThresholdStep
			}
			err = eng.AdjustThreshold(cmdCtx, fields[1], delta)
		}
	case "st", "status":
		err = showStatus(cmdCtx, eng, output)
	case "rollover":
		err = eng.RolloverDay(cmdCtx)
	default:
		output.Warning("Unknown command: %s", fields[0])
		return false
	}

	if err != nil {
		output.Error("%v", err)
	}
	return false
}

func takePosition(ctx context.Context, eng *engine.Engine, fields []string, side models.Side) error {
	if len(fields) < 2 {
		return fmt.Errorf("usage: %s <underlying> [trigger]", strings.ToLower(string(side))[:1])
	}
	req := engine.TradeRequest{
		Underlying: strings.ToUpper(fields[1]),
		Side:       side,
	}
	if len(fields) >= 3 {
		trig, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return fmt.Errorf("invalid trigger price %q", fields[2])
		}
		req.TriggerPrice = &trig
	}
	return eng.TakePosition(ctx, req)
}

func showStatus(ctx context.Context, eng *engine.Engine, output *Output) error {
	snap, err := eng.Snapshot(ctx)
	if err != nil {
		return err
	}

	output.Bold("Day PnL: %s  mode %s  terminal %s", FormatPnL(snap.DayPnL), snap.Day.Mode, snap.Day.Terminal)
	if snap.Day.Watermark != nil {
		stop := *snap.Day.Watermark - snap.Day.Thresholds.TrailBy
		output.Dim("Trailing: watermark %s, stop %s", FormatPnL(*snap.Day.Watermark), FormatPnL(stop))
	}
	if snap.FeedStale {
		output.Warning("Price feed stale")
	}

	if len(snap.Positions) > 0 {
		table := NewTable(output, "INSTRUMENT", "SIDE", "QTY", "AVG", "LTP", "PNL")
		for _, p := range snap.Positions {
			table.AddRow(p.Instrument.TradingSymbol, string(p.Side),
				FormatQuantity(int64(p.NetQuantity)),
				fmt.Sprintf("%.2f", p.AveragePrice),
				fmt.Sprintf("%.2f", p.LTP),
				output.FormatPnLColored(p.PnL()))
		}
		table.Render()
	}

	if len(snap.Open) > 0 {
		table := NewTable(output, "ORDER", "ROLE", "STATUS", "QTY", "TRIGGER")
		for _, o := range snap.Open {
			trig := "-"
			if o.TriggerPrice != nil {
				trig = fmt.Sprintf("%.2f", *o.TriggerPrice)
			}
			table.AddRow(o.ID, string(o.Role), string(o.Status),
				FormatQuantity(int64(o.Quantity)), trig)
		}
		table.Render()
	}
	return nil
}

func newLiveBroker(cfg *config.Config) (*broker.ZerodhaBroker, error) {
	if cfg.Credentials.APIKey == "" || cfg.Credentials.AccessToken == "" {
		return nil, fmt.Errorf("broker credentials missing: set KITE_API_KEY and KITE_ACCESS_TOKEN or credentials.toml")
	}
	return broker.NewZerodhaBroker(broker.ZerodhaConfig{
		APIKey:      cfg.Credentials.APIKey,
		AccessToken: cfg.Credentials.AccessToken,
	}), nil
}

// resolveSessions fetches the instrument master and resolves each
// configured underlying against the current spot price.
func resolveSessions(ctx context.Context, app *App, zb *broker.ZerodhaBroker) (*runtime, error) {
	cfg := app.Config

	cutover, err := config.ParseTimeOfDay(cfg.Trading.ExpiryCutover)
	if err != nil {
		return nil, err
	}

	var master []models.Instrument
	for _, exch := range []models.Exchange{models.NSE, models.NFO} {
		batch, gerr := zb.GetInstruments(ctx, exch)
		if gerr != nil {
			return nil, gerr
		}
		master = append(master, batch...)
	}

	res := resolver.New(master, cutover)
	now := time.Now()

	rt := &runtime{byToken: make(map[uint32]models.Instrument)}
	for _, ic := range cfg.Instruments {
		spot, gerr := zb.GetLTP(ctx, models.NSE, ic.Symbol)
		if gerr != nil {
			return nil, gerr
		}
		resolved, rerr := res.Resolve(ic, spot, now)
		if rerr != nil {
			return nil, rerr
		}
		rt.sessions = append(rt.sessions, engine.Session{Config: ic, Instruments: resolved})
		for _, inst := range []models.Instrument{resolved.Spot, resolved.Call, resolved.Put} {
			if _, seen := rt.byToken[inst.Token]; !seen {
				rt.byToken[inst.Token] = inst
				rt.tokens = append(rt.tokens, inst.Token)
			}
		}
	}
	return rt, nil
}

func openStore(app *App) store.Store {
	dbPath := config.DefaultConfigDir() + "/scalper.db"
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		app.Logger.Warn().Err(err).Msg("Store unavailable, records will not persist")
		return store.NopStore{}
	}
	return s
}

// paperFeed tees hub ticks into the paper broker's price book so
// simulated fills happen at the latest price.
type paperFeed struct {
	hub     *stream.Hub
	paper   *broker.PaperBroker
	byToken map[uint32]models.Instrument
	out     chan models.Tick
}

func newPaperFeed(hub *stream.Hub, paper *broker.PaperBroker, byToken map[uint32]models.Instrument) *paperFeed {
	return &paperFeed{
		hub:     hub,
		paper:   paper,
		byToken: byToken,
		out:     make(chan models.Tick, 64),
	}
}

func (f *paperFeed) Ticks() <-chan models.Tick { return f.out }

func (f *paperFeed) Stale(now time.Time) bool { return f.hub.Stale(now) }

func (f *paperFeed) run() {
	for tick := range f.hub.Ticks() {
		if inst, ok := f.byToken[tick.Token]; ok {
			f.paper.SetPrice(inst.Exchange, inst.TradingSymbol, tick.LTP)
		}
		f.out <- tick
	}
	close(f.out)
}
