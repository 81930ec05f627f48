package resolver

import (
	"fmt"
	"testing"
	"time"

	"option-scalper/internal/config"
	kerrors "option-scalper/internal/errors"
	"option-scalper/internal/models"
	"option-scalper/pkg/utils"
)

var ist = utils.ISTLocation()

// fixtureMaster builds a small instrument master: the NIFTYBEES cash
// proxy plus NIFTY weekly options at two expiries.
func fixtureMaster() []models.Instrument {
	expiries := []time.Time{
		time.Date(2026, 9, 3, 0, 0, 0, 0, ist),  // Thursday
		time.Date(2026, 9, 10, 0, 0, 0, 0, ist), // next week
	}

	master := []models.Instrument{{
		Token:         100,
		Symbol:        "NIFTYBEES",
		TradingSymbol: "NIFTYBEES",
		Exchange:      models.NSE,
		Underlying:    "NIFTY",
		LotSize:       1,
		TickSize:      0.01,
	}}

	token := uint32(1000)
	for _, exp := range expiries {
		for strike := 22300.0; strike <= 22700.0; strike += 50 {
			for _, ot := range []models.OptionType{models.OptionCall, models.OptionPut} {
				token++
				master = append(master, models.Instrument{
					Token:         token,
					Symbol:        "NIFTY",
					TradingSymbol: tsym(exp, strike, ot),
					Exchange:      models.NFO,
					Underlying:    "NIFTY",
					Expiry:        exp,
					Strike:        strike,
					OptionType:    ot,
					LotSize:       75,
					StrikeStep:    50,
					TickSize:      0.05,
					FreezeQty:     1800,
				})
			}
		}
	}
	return master
}

func tsym(exp time.Time, strike float64, ot models.OptionType) string {
	return fmt.Sprintf("NIFTY%s%d%s", exp.Format("06Jan02"), int(strike), ot)
}

func autoConfig() config.InstrumentConfig {
	return config.InstrumentConfig{
		Underlying: "NIFTY",
		Symbol:     "NIFTYBEES",
		Exchange:   "NFO",
		ExpiryMode: config.ModeAuto,
		StrikeMode: config.ModeAuto,
		StrikeStep: 50,
		Quantity:   10,
		Legs:       2,
	}
}

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	cutover, err := config.ParseTimeOfDay("15:00")
	if err != nil {
		t.Fatalf("ParseTimeOfDay: %v", err)
	}
	return New(fixtureMaster(), cutover)
}

func TestResolveATMRoundsHalfUp(t *testing.T) {
	r := newTestResolver(t)
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, ist) // 3 days to expiry

	res, err := r.Resolve(autoConfig(), 22475, now)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Call.Strike != 22500 || res.Put.Strike != 22500 {
		t.Errorf("strikes CE %v / PE %v, want 22500 / 22500", res.Call.Strike, res.Put.Strike)
	}
	if res.Call.OptionType != models.OptionCall || res.Put.OptionType != models.OptionPut {
		t.Error("leg option types wrong")
	}
	if res.Spot.TradingSymbol != "NIFTYBEES" {
		t.Errorf("spot %q, want NIFTYBEES", res.Spot.TradingSymbol)
	}
	if res.Call.Expiry.Day() != 3 {
		t.Errorf("expiry %v, want Sep 3", res.Call.Expiry)
	}
}

func TestResolveStrikesBelowMidpointRoundDown(t *testing.T) {
	r := newTestResolver(t)
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, ist)

	res, err := r.Resolve(autoConfig(), 22474.9, now)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Call.Strike != 22450 {
		t.Errorf("strike %v, want 22450", res.Call.Strike)
	}
}

func TestResolveOneDTEShiftsIntoTheMoney(t *testing.T) {
	r := newTestResolver(t)
	now := time.Date(2026, 9, 2, 10, 0, 0, 0, ist) // 1 day to Sep 3 expiry

	res, err := r.Resolve(autoConfig(), 22475, now)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Call.Strike != 22450 {
		t.Errorf("CE strike %v, want 22450 (one step ITM)", res.Call.Strike)
	}
	if res.Put.Strike != 22550 {
		t.Errorf("PE strike %v, want 22550 (one step ITM)", res.Put.Strike)
	}
}

func TestResolveZeroDTERevertsToATM(t *testing.T) {
	r := newTestResolver(t)
	now := time.Date(2026, 9, 3, 10, 0, 0, 0, ist) // expiry day, before cutover

	res, err := r.Resolve(autoConfig(), 22475, now)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Call.Expiry.Day() != 3 {
		t.Fatalf("expiry %v, want same-day Sep 3", res.Call.Expiry)
	}
	if res.Call.Strike != 22500 || res.Put.Strike != 22500 {
		t.Errorf("strikes %v/%v, want ATM 22500", res.Call.Strike, res.Put.Strike)
	}
}

func TestResolveExpiryRollsAtCutover(t *testing.T) {
	r := newTestResolver(t)
	now := time.Date(2026, 9, 3, 15, 0, 0, 0, ist) // expiry day, at cutover

	res, err := r.Resolve(autoConfig(), 22475, now)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Call.Expiry.Day() != 10 {
		t.Errorf("expiry %v, want rolled to Sep 10", res.Call.Expiry)
	}
	// The next expiry is a week out, so ATM applies.
	if res.Call.Strike != 22500 {
		t.Errorf("strike %v, want 22500", res.Call.Strike)
	}
}

func TestResolveManualExpiry(t *testing.T) {
	r := newTestResolver(t)
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, ist)

	cfg := autoConfig()
	cfg.ExpiryMode = config.ModeManual
	cfg.ExpiryDate = "10-Sep-2026"

	res, err := r.Resolve(cfg, 22475, now)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Call.Expiry.Day() != 10 {
		t.Errorf("expiry %v, want Sep 10", res.Call.Expiry)
	}
}

func TestResolveManualExpiryErrors(t *testing.T) {
	r := newTestResolver(t)
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, ist)

	cases := []struct {
		name string
		date string
	}{
		{"unparseable", "2026/09/10"},
		{"already expired", "27-Aug-2026"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := autoConfig()
			cfg.ExpiryMode = config.ModeManual
			cfg.ExpiryDate = tc.date
			_, err := r.Resolve(cfg, 22475, now)
			var ce *kerrors.ConfigError
			if !kerrors.As(err, &ce) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
		})
	}
}

func TestResolveManualStrikes(t *testing.T) {
	r := newTestResolver(t)
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, ist)

	cfg := autoConfig()
	cfg.StrikeMode = config.ModeManual
	cfg.CEStrike = 22400
	cfg.PEStrikeOffset = 2 // atm + 2*50

	res, err := r.Resolve(cfg, 22475, now)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Call.Strike != 22400 {
		t.Errorf("CE strike %v, want explicit 22400", res.Call.Strike)
	}
	if res.Put.Strike != 22600 {
		t.Errorf("PE strike %v, want offset 22600", res.Put.Strike)
	}
}

func TestResolveManualStrikesNeedInput(t *testing.T) {
	r := newTestResolver(t)
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, ist)

	cfg := autoConfig()
	cfg.StrikeMode = config.ModeManual // no strike, no offset

	_, err := r.Resolve(cfg, 22475, now)
	var ce *kerrors.ConfigError
	if !kerrors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestResolveMissingContractIsConfigError(t *testing.T) {
	r := newTestResolver(t)
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, ist)

	// Spot far outside the listed strike range.
	_, err := r.Resolve(autoConfig(), 30000, now)
	var ce *kerrors.ConfigError
	if !kerrors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestResolveCashProxy(t *testing.T) {
	r := newTestResolver(t)
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, ist)

	cfg := autoConfig()
	cfg.Exchange = "NSE"

	res, err := r.Resolve(cfg, 280, now)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Call.TradingSymbol != "NIFTYBEES" || res.Put.TradingSymbol != "NIFTYBEES" {
		t.Errorf("cash legs %q/%q, want NIFTYBEES", res.Call.TradingSymbol, res.Put.TradingSymbol)
	}
}

func TestLegForSide(t *testing.T) {
	r := newTestResolver(t)
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, ist)

	res, err := r.Resolve(autoConfig(), 22475, now)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := res.LegFor(models.SideBuy); got.OptionType != models.OptionCall {
		t.Errorf("Buy leg %v, want CE", got.OptionType)
	}
	if got := res.LegFor(models.SideShort); got.OptionType != models.OptionPut {
		t.Errorf("Short leg %v, want PE", got.OptionType)
	}
}

func TestFreezeQtyFromConfig(t *testing.T) {
	r := newTestResolver(t)
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, ist)

	cfg := autoConfig()
	cfg.FreezeQty = 900
	res, err := r.Resolve(cfg, 22475, now)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Call.FreezeQty != 900 || res.Put.FreezeQty != 900 {
		t.Errorf("freeze %d/%d, want 900 on both legs", res.Call.FreezeQty, res.Put.FreezeQty)
	}

	// Unset leaves the legs without a freeze limit.
	res, err = r.Resolve(autoConfig(), 22475, now)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Call.FreezeQty != 0 || res.Put.FreezeQty != 0 {
		t.Errorf("freeze %d/%d without configuration, want 0", res.Call.FreezeQty, res.Put.FreezeQty)
	}
}
