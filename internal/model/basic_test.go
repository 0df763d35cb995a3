package model

import "testing"

func TestQuantizePriceSnapsToTick(t *testing.T) {
	rules := SymbolRules{TickSize: 0.01, PricePrecision: 2}

	cases := []struct {
		in   float64
		want float64
	}{
		{100.004, 100.00},
		{100.006, 100.01},
		{99.999, 100.00},
		{612.3449, 612.34},
		{0.01, 0.01},
	}
	for _, c := range cases {
		if got := rules.QuantizePrice(c.in); got != c.want {
			t.Fatalf("QuantizePrice(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestQuantizeQuantityRoundsDown(t *testing.T) {
	rules := SymbolRules{StepSize: 0.001, QuantityPrecision: 3}

	cases := []struct {
		in   float64
		want float64
	}{
		{2.0, 2.0},
		{1.9999, 1.999},
		{0.0009, 0.0},
		{0.0012, 0.001},
		{3.14159, 3.141},
	}
	for _, c := range cases {
		got := rules.QuantizeQuantity(c.in)
		if got != c.want {
			t.Fatalf("QuantizeQuantity(%v) = %v, want %v", c.in, got, c.want)
		}
		if got > c.in {
			t.Fatalf("QuantizeQuantity(%v) rounded up to %v", c.in, got)
		}
	}
}

func TestQuantizeIsIdempotent(t *testing.T) {
	rules := SymbolRules{TickSize: 0.01, StepSize: 0.001, PricePrecision: 2, QuantityPrecision: 3}

	for _, p := range []float64{100.004, 612.3449, 0.019, 55555.5555} {
		once := rules.QuantizePrice(p)
		if twice := rules.QuantizePrice(once); twice != once {
			t.Fatalf("QuantizePrice not idempotent: %v -> %v -> %v", p, once, twice)
		}
	}
	for _, q := range []float64{2.0, 1.9999, 0.0012, 123.4567} {
		once := rules.QuantizeQuantity(q)
		if twice := rules.QuantizeQuantity(once); twice != once {
			t.Fatalf("QuantizeQuantity not idempotent: %v -> %v -> %v", q, once, twice)
		}
	}
}

func TestPostureForThreshold(t *testing.T) {
	const threshold = 15.0

	cases := []struct {
		position float64
		mid      float64
		want     Posture
	}{
		{0, 100, PostureOpening},
		{0.1, 100, PostureOpening},
		{0.15, 100, PostureClosing},
		{-0.15, 100, PostureClosing},
		{0.149, 100, PostureOpening},
		{1.5, 100, PostureClosing},
		{-2, 10, PostureClosing},
	}
	for _, c := range cases {
		if got := PostureFor(c.position, c.mid, threshold); got != c.want {
			t.Fatalf("PostureFor(%v, %v) = %v, want %v", c.position, c.mid, got, c.want)
		}
	}
}

func TestPostureForMonotonicAroundThreshold(t *testing.T) {
	const threshold = 15.0
	mid := 100.0

	// Notional grows through the threshold and shrinks back.
	position := 0.0
	posture := PostureFor(position, mid, threshold)
	if posture != PostureOpening {
		t.Fatalf("flat position should open, got %v", posture)
	}

	position += 0.2 // notional 20 >= 15
	if got := PostureFor(position, mid, threshold); got != PostureClosing {
		t.Fatalf("crossing up should close, got %v", got)
	}
	// Re-evaluating with static inputs must not oscillate.
	if got := PostureFor(position, mid, threshold); got != PostureClosing {
		t.Fatalf("posture oscillated on static inputs")
	}

	position -= 0.15 // notional 5 < 15
	if got := PostureFor(position, mid, threshold); got != PostureOpening {
		t.Fatalf("crossing down should reopen, got %v", got)
	}
}

func TestSideRoundTrip(t *testing.T) {
	for _, s := range []Side{SideBid, SideAsk} {
		if got := SideFromString(s.String()); got != s {
			t.Fatalf("SideFromString(%q) = %v, want %v", s.String(), got, s)
		}
		if s.Opposite() == s || s.Opposite() == SideUnknown {
			t.Fatalf("Opposite(%v) = %v", s, s.Opposite())
		}
	}
	if SideFromString("buy") != SideUnknown {
		t.Fatalf("unexpected parse for non-venue side string")
	}
}
