// Package resolver resolves configured underlyings into tradeable
// instruments: expiry and strike selection per AUTO/MANUAL policy.
package resolver

import (
	"sort"
	"time"

	"option-scalper/internal/config"
	"option-scalper/internal/errors"
	"option-scalper/internal/models"
	"option-scalper/pkg/utils"
)

// expiryDateLayout matches configured manual expiry dates, e.g. 25-Sep-2026.
const expiryDateLayout = "02-Jan-2006"

// Resolved holds the session instruments for one underlying: the spot
// instrument whose ticks drive strike selection and trigger
// evaluation, the call leg fired on Buy and the put leg fired on
// Short. For cash proxies all three point at the same equity.
type Resolved struct {
	Underlying string
	Spot       models.Instrument
	Call       models.Instrument
	Put        models.Instrument
}

// LegFor returns the instrument traded for a given intent side.
func (r Resolved) LegFor(side models.Side) models.Instrument {
	if side == models.SideShort && r.Put.TradingSymbol != "" {
		return r.Put
	}
	return r.Call
}

// Resolver picks expiry and strike from an instrument master.
// Instruments are immutable once resolved for a trading session and
// re-resolved only on explicit reconfiguration.
type Resolver struct {
	cutover config.TimeOfDay

	// per-underlying indexes built from the master
	expiries map[string][]time.Time
	options  map[string]map[optionKey]models.Instrument
	cash     map[string]models.Instrument
}

type optionKey struct {
	expiry  string // YYYY-MM-DD
	strike  float64
	optType models.OptionType
}

// New builds a resolver over the exchange instrument master.
func New(master []models.Instrument, cutover config.TimeOfDay) *Resolver {
	r := &Resolver{
		cutover:  cutover,
		expiries: make(map[string][]time.Time),
		options:  make(map[string]map[optionKey]models.Instrument),
		cash:     make(map[string]models.Instrument),
	}

	seen := make(map[string]map[string]bool)
	for _, inst := range master {
		if inst.Exchange == models.NSE {
			r.cash[inst.TradingSymbol] = inst
			continue
		}
		if !inst.IsOption() {
			continue
		}
		ul := inst.Underlying
		if r.options[ul] == nil {
			r.options[ul] = make(map[optionKey]models.Instrument)
			seen[ul] = make(map[string]bool)
		}
		day := inst.Expiry.Format("2006-01-02")
		r.options[ul][optionKey{day, inst.Strike, inst.OptionType}] = inst
		if !seen[ul][day] {
			seen[ul][day] = true
			r.expiries[ul] = append(r.expiries[ul], inst.Expiry)
		}
	}
	for ul := range r.expiries {
		sort.Slice(r.expiries[ul], func(i, j int) bool {
			return r.expiries[ul][i].Before(r.expiries[ul][j])
		})
	}
	return r
}

// Resolve resolves one configured underlying against the spot price.
// Configuration errors are fatal to starting a session for the
// instrument; they are reported, never auto-corrected.
func (r *Resolver) Resolve(cfg config.InstrumentConfig, spot float64, now time.Time) (Resolved, error) {
	spotInst, ok := r.cash[cfg.Symbol]
	if !ok {
		return Resolved{}, errors.NewConfigError("symbol", cfg.Symbol, "not in instrument master")
	}

	if cfg.Exchange == "NSE" {
		return Resolved{Underlying: cfg.Underlying, Spot: spotInst, Call: spotInst, Put: spotInst}, nil
	}

	if cfg.StrikeStep <= 0 {
		return Resolved{}, errors.NewConfigError("strike_step", cfg.StrikeStep, "NFO instrument requires a strike step")
	}

	expiry, err := r.resolveExpiry(cfg, now)
	if err != nil {
		return Resolved{}, err
	}

	ceStrike, peStrike, err := r.resolveStrikes(cfg, spot, expiry, now)
	if err != nil {
		return Resolved{}, err
	}

	ce, err := r.lookup(cfg.Underlying, expiry, ceStrike, models.OptionCall)
	if err != nil {
		return Resolved{}, err
	}
	pe, err := r.lookup(cfg.Underlying, expiry, peStrike, models.OptionPut)
	if err != nil {
		return Resolved{}, err
	}

	// The instrument master carries no freeze limits; they come from
	// configuration.
	if cfg.FreezeQty > 0 {
		ce.FreezeQty = cfg.FreezeQty
		pe.FreezeQty = cfg.FreezeQty
	}

	return Resolved{Underlying: cfg.Underlying, Spot: spotInst, Call: ce, Put: pe}, nil
}

func (r *Resolver) resolveExpiry(cfg config.InstrumentConfig, now time.Time) (time.Time, error) {
	if cfg.ExpiryMode == config.ModeManual {
		parsed, err := time.ParseInLocation(expiryDateLayout, cfg.ExpiryDate, now.Location())
		if err != nil {
			return time.Time{}, errors.NewConfigError("expiry_date", cfg.ExpiryDate, "unparseable, want DD-Mon-YYYY")
		}
		if utils.DaysToExpiry(now, parsed) < 0 {
			return time.Time{}, errors.NewConfigError("expiry_date", cfg.ExpiryDate, "already expired")
		}
		return parsed, nil
	}

	listed := r.expiries[cfg.Underlying]
	for _, exp := range listed {
		dte := utils.DaysToExpiry(now, exp)
		if dte < 0 {
			continue
		}
		// 0-DTE: past the cutover point, roll to the next listed expiry.
		if dte == 0 && !now.Before(r.cutover.On(now)) {
			continue
		}
		return exp, nil
	}
	return time.Time{}, errors.NewConfigError("expiry", cfg.Underlying, "no unexpired listed expiry")
}

func (r *Resolver) resolveStrikes(cfg config.InstrumentConfig, spot float64, expiry, now time.Time) (float64, float64, error) {
	step := cfg.StrikeStep
	atm := utils.RoundToStep(spot, step)

	if cfg.StrikeMode == config.ModeManual {
		if cfg.CEStrike == 0 && cfg.PEStrike == 0 && cfg.CEStrikeOffset == 0 && cfg.PEStrikeOffset == 0 {
			return 0, 0, errors.NewConfigError("strike", cfg.Underlying, "MANUAL mode needs an explicit strike or an offset")
		}
		ce := atm + float64(cfg.CEStrikeOffset)*step
		if cfg.CEStrike != 0 {
			ce = cfg.CEStrike
		}
		pe := atm + float64(cfg.PEStrikeOffset)*step
		if cfg.PEStrike != 0 {
			pe = cfg.PEStrike
		}
		return ce, pe, nil
	}

	// AUTO: ATM, except at exactly 1 DTE both legs shift one step
	// into-the-money to cut time-decay exposure. Back to ATM on the
	// expiry day itself.
	if utils.DaysToExpiry(now, expiry) == 1 {
		return atm - step, atm + step, nil
	}
	return atm, atm, nil
}

func (r *Resolver) lookup(underlying string, expiry time.Time, strike float64, optType models.OptionType) (models.Instrument, error) {
	key := optionKey{expiry.Format("2006-01-02"), strike, optType}
	inst, ok := r.options[underlying][key]
	if !ok {
		return models.Instrument{}, errors.NewConfigError(
			"instrument", underlying,
			"no listed "+string(optType)+" contract at the resolved expiry/strike, check expiry date")
	}
	return inst, nil
}
