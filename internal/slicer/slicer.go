// Package slicer splits a trade intent into child order legs.
package slicer

import (
	"option-scalper/internal/errors"
	"option-scalper/internal/models"
)

// Slice decomposes the intent quantity into legs. The per-leg base is
// the integer division of total by leg count; the remainder goes to
// the final leg. When the total is smaller than the leg count the leg
// count clamps to the total, one unit each.
//
// Quantity stays in the intent's own unit (lots for options); lot
// conversion happens only at broker submission. Square-off paths do
// not slice at all: they submit the full remaining quantity as one leg.
func Slice(intent models.TradeIntent) ([]models.Leg, error) {
	total := intent.Quantity
	n := intent.Legs

	if total <= 0 {
		return nil, errors.NewInvalidOperation("slice", "quantity must be positive")
	}
	if n <= 0 {
		return nil, errors.NewInvalidOperation("slice", "leg count must be positive")
	}
	if total < n {
		n = total
	}

	base := total / n
	rem := total % n

	legs := make([]models.Leg, n)
	for i := 0; i < n; i++ {
		qty := base
		if i == n-1 {
			qty += rem
		}
		legs[i] = models.Leg{IntentID: intent.ID, Seq: i, Quantity: qty}
	}
	return legs, nil
}

// SliceWithFreeze slices like Slice, then splits any leg whose unit
// quantity would exceed the exchange freeze limit. freezeQty is in
// units and 0 means no limit; lotSize converts the intent's lot
// quantities to units for the comparison.
func SliceWithFreeze(intent models.TradeIntent, lotSize, freezeQty int) ([]models.Leg, error) {
	legs, err := Slice(intent)
	if err != nil {
		return nil, err
	}
	if freezeQty <= 0 || lotSize <= 0 {
		return legs, nil
	}

	maxLots := freezeQty / lotSize
	if maxLots <= 0 {
		return nil, errors.NewInvalidOperation("slice", "freeze limit below one lot")
	}

	var out []models.Leg
	seq := 0
	for _, leg := range legs {
		qty := leg.Quantity
		for qty > maxLots {
			out = append(out, models.Leg{IntentID: intent.ID, Seq: seq, Quantity: maxLots})
			seq++
			qty -= maxLots
		}
		out = append(out, models.Leg{IntentID: intent.ID, Seq: seq, Quantity: qty})
		seq++
	}
	return out, nil
}
