package risk

import (
	"testing"

	"main/internal/model"
)

func TestEvaluateAllowsWithinLimits(t *testing.T) {
	e := NewEngine(Config{MaxOrderQty: 10, MaxOrderNotional: 5000, MaxPosition: 20})
	d := e.Evaluate(Intent{Side: model.SideBid, Price: 100, Qty: 2}, StateView{Position: 1})
	if !d.Allowed || d.Reason != ReasonNone {
		t.Fatalf("decision = %+v, want allow", d)
	}
}

func TestEvaluateDenyOrder(t *testing.T) {
	cases := []struct {
		name   string
		cfg    Config
		intent Intent
		state  StateView
		reason Reason
	}{
		{
			name:   "kill switch",
			cfg:    Config{KillSwitch: true},
			intent: Intent{Side: model.SideBid, Price: 100, Qty: 1},
			reason: ReasonKillSwitch,
		},
		{
			name:   "max qty",
			cfg:    Config{MaxOrderQty: 1},
			intent: Intent{Side: model.SideBid, Price: 100, Qty: 2},
			reason: ReasonMaxQty,
		},
		{
			name:   "max notional",
			cfg:    Config{MaxOrderNotional: 100},
			intent: Intent{Side: model.SideBid, Price: 100, Qty: 2},
			reason: ReasonMaxNotional,
		},
		{
			name:   "price band",
			cfg:    Config{MaxPriceDeviationBps: 50},
			intent: Intent{Side: model.SideBid, Price: 101, Qty: 1},
			state:  StateView{ReferencePrice: 100},
			reason: ReasonPriceBand,
		},
		{
			name:   "position limit",
			cfg:    Config{MaxPosition: 2},
			intent: Intent{Side: model.SideBid, Price: 100, Qty: 2},
			state:  StateView{Position: 1},
			reason: ReasonPositionLimit,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d := NewEngine(c.cfg).Evaluate(c.intent, c.state)
			if d.Allowed || d.Reason != c.reason {
				t.Fatalf("decision = %+v, want deny %v", d, c.reason)
			}
		})
	}
}

func TestEvaluateReduceOnlySkipsPositionLimit(t *testing.T) {
	e := NewEngine(Config{MaxPosition: 1})
	d := e.Evaluate(Intent{Side: model.SideAsk, Price: 100, Qty: 3, ReduceOnly: true}, StateView{Position: 3})
	if !d.Allowed {
		t.Fatalf("reduce-only close denied: %+v", d)
	}
}

func TestEvaluatePriceBandWithinTolerance(t *testing.T) {
	e := NewEngine(Config{MaxPriceDeviationBps: 100})
	d := e.Evaluate(Intent{Side: model.SideAsk, Price: 100.9, Qty: 1}, StateView{ReferencePrice: 100})
	if !d.Allowed {
		t.Fatalf("90 bps deviation denied under 100 bps band: %+v", d)
	}
}
