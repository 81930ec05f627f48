package slicer

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"option-scalper/internal/models"
)

// Feature: Order slicing, Property 1: Slicing conserves quantity
//
// Property: For any positive quantity and leg count, the sliced legs
// always sum to exactly the intent quantity, every leg is positive,
// and only the final leg may differ from the others.
func TestProperty_SlicingConservesQuantity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("legs sum to the intent quantity", prop.ForAll(
		func(qty, legCount int) bool {
			legs, err := Slice(models.TradeIntent{ID: "p", Quantity: qty, Legs: legCount})
			if err != nil {
				t.Logf("Slice(%d, %d): %v", qty, legCount, err)
				return false
			}

			total := 0
			for _, l := range legs {
				if l.Quantity <= 0 {
					t.Logf("Slice(%d, %d): non-positive leg %d", qty, legCount, l.Quantity)
					return false
				}
				total += l.Quantity
			}
			if total != qty {
				t.Logf("Slice(%d, %d): total %d", qty, legCount, total)
				return false
			}

			// All legs but the last share the base quantity.
			for i := 0; i < len(legs)-1; i++ {
				if legs[i].Quantity != legs[0].Quantity {
					t.Logf("Slice(%d, %d): leg %d differs from base", qty, legCount, i)
					return false
				}
			}

			// Leg count clamps to quantity, never exceeds it.
			want := legCount
			if qty < legCount {
				want = qty
			}
			return len(legs) == want
		},
		gen.IntRange(1, 10000),
		gen.IntRange(1, 50),
	))

	properties.Property("freeze splitting conserves quantity and caps legs", prop.ForAll(
		func(qty, legCount, lotSize, freezeLots int) bool {
			freezeQty := freezeLots * lotSize
			legs, err := SliceWithFreeze(models.TradeIntent{ID: "p", Quantity: qty, Legs: legCount}, lotSize, freezeQty)
			if err != nil {
				t.Logf("SliceWithFreeze(%d, %d, %d, %d): %v", qty, legCount, lotSize, freezeQty, err)
				return false
			}

			total := 0
			for _, l := range legs {
				if l.Quantity <= 0 || l.Quantity > freezeLots {
					t.Logf("leg %d outside (0, %d]", l.Quantity, freezeLots)
					return false
				}
				total += l.Quantity
			}
			return total == qty
		},
		gen.IntRange(1, 5000),
		gen.IntRange(1, 20),
		gen.IntRange(1, 100),
		gen.IntRange(1, 40),
	))

	properties.TestingRun(t)
}
