// Package models provides domain models for the scalping engine.
package models

import (
	"time"
)

// Exchange represents a stock exchange segment.
type Exchange string

const (
	NSE Exchange = "NSE"
	NFO Exchange = "NFO" // F&O
)

// Side represents the direction of a trade intent.
type Side string

const (
	SideBuy   Side = "BUY"
	SideShort Side = "SHORT"
)

// OptionType represents the option leg type of an NFO instrument.
type OptionType string

const (
	OptionCall OptionType = "CE"
	OptionPut  OptionType = "PE"
)

// ProductType represents the product type of an order.
type ProductType string

const (
	ProductMIS  ProductType = "MIS"  // Intraday
	ProductNRML ProductType = "NRML" // F&O Normal
)

// Tick represents real-time market data for one instrument.
type Tick struct {
	Token     uint32
	Symbol    string
	LTP       float64
	Timestamp time.Time
}

// Instrument represents a resolved tradeable instrument.
// It is immutable once resolved for a trading session and is
// re-resolved only on explicit reconfiguration.
type Instrument struct {
	Token         uint32
	Symbol        string // underlying symbol, e.g. NIFTY
	TradingSymbol string // exchange trading symbol, e.g. NIFTY25SEP22500CE
	Exchange      Exchange
	Underlying    string
	Expiry        time.Time // zero for cash
	Strike        float64   // 0 for cash
	OptionType    OptionType
	LotSize       int
	StrikeStep    float64
	TickSize      float64
	FreezeQty     int // exchange freeze limit in units, 0 = none
}

// IsOption reports whether the instrument is an option contract.
func (i Instrument) IsOption() bool {
	return i.Exchange == NFO && i.OptionType != ""
}

// Key returns the registry key for the instrument.
func (i Instrument) Key() string {
	return i.TradingSymbol
}
