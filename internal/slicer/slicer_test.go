package slicer

import (
	"testing"

	kerrors "option-scalper/internal/errors"
	"option-scalper/internal/models"
)

func intent(qty, legs int) models.TradeIntent {
	return models.TradeIntent{ID: "int-1", Underlying: "NIFTY", Side: models.SideBuy, Quantity: qty, Legs: legs}
}

func quantities(legs []models.Leg) []int {
	out := make([]int, len(legs))
	for i, l := range legs {
		out[i] = l.Quantity
	}
	return out
}

func TestSliceEvenSplit(t *testing.T) {
	legs, err := Slice(intent(1000, 10))
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if len(legs) != 10 {
		t.Fatalf("expected 10 legs, got %d", len(legs))
	}
	for i, q := range quantities(legs) {
		if q != 100 {
			t.Errorf("leg %d: expected 100, got %d", i, q)
		}
	}
}

func TestSliceRemainderGoesToLastLeg(t *testing.T) {
	legs, err := Slice(intent(1034, 10))
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if len(legs) != 10 {
		t.Fatalf("expected 10 legs, got %d", len(legs))
	}
	for i := 0; i < 9; i++ {
		if legs[i].Quantity != 103 {
			t.Errorf("leg %d: expected 103, got %d", i, legs[i].Quantity)
		}
	}
	if legs[9].Quantity != 107 {
		t.Errorf("last leg: expected 107, got %d", legs[9].Quantity)
	}
}

func TestSliceQuantityBelowLegCount(t *testing.T) {
	legs, err := Slice(intent(3, 10))
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if len(legs) != 3 {
		t.Fatalf("expected clamp to 3 legs, got %d", len(legs))
	}
	for i, q := range quantities(legs) {
		if q != 1 {
			t.Errorf("leg %d: expected 1, got %d", i, q)
		}
	}
}

func TestSliceSingleLeg(t *testing.T) {
	legs, err := Slice(intent(75, 1))
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if len(legs) != 1 || legs[0].Quantity != 75 {
		t.Fatalf("expected one leg of 75, got %v", quantities(legs))
	}
}

func TestSliceInvalidInputs(t *testing.T) {
	cases := []struct {
		name string
		qty  int
		legs int
	}{
		{"zero quantity", 0, 5},
		{"negative quantity", -10, 5},
		{"zero legs", 10, 0},
		{"negative legs", 10, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Slice(intent(tc.qty, tc.legs))
			if err == nil {
				t.Fatal("expected error")
			}
			var ioe *kerrors.InvalidOperationError
			if !kerrors.As(err, &ioe) {
				t.Fatalf("expected InvalidOperationError, got %T", err)
			}
		})
	}
}

func TestSliceWithFreezeSplitsOversizedLegs(t *testing.T) {
	// 40 lots in 2 legs of 20; freeze limit 900 units at lot size 75
	// allows 12 lots per order, so each leg splits 12+8.
	legs, err := SliceWithFreeze(intent(40, 2), 75, 900)
	if err != nil {
		t.Fatalf("SliceWithFreeze: %v", err)
	}
	want := []int{12, 8, 12, 8}
	got := quantities(legs)
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	total := 0
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("leg %d: expected %d, got %d", i, want[i], got[i])
		}
		total += got[i]
	}
	if total != 40 {
		t.Errorf("total %d, want 40", total)
	}
	for i, l := range legs {
		if l.Seq != i {
			t.Errorf("leg %d: seq %d", i, l.Seq)
		}
	}
}

func TestSliceWithFreezeNoLimit(t *testing.T) {
	legs, err := SliceWithFreeze(intent(1034, 10), 75, 0)
	if err != nil {
		t.Fatalf("SliceWithFreeze: %v", err)
	}
	if len(legs) != 10 {
		t.Fatalf("expected 10 legs, got %d", len(legs))
	}
}

func TestSliceWithFreezeBelowOneLot(t *testing.T) {
	_, err := SliceWithFreeze(intent(10, 2), 75, 50)
	if err == nil {
		t.Fatal("expected error for freeze limit below one lot")
	}
}
