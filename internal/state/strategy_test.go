package state

import (
	"testing"
	"time"

	"main/internal/model"
)

func TestQuoteValidity(t *testing.T) {
	s := NewStrategy()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	maxAge := 30 * time.Second

	if _, _, _, ok := s.Quote(base, maxAge); ok {
		t.Fatal("quote valid before any update")
	}

	s.SetQuote(99.98, 100.02, 100, base)
	if _, _, mid, ok := s.Quote(base, maxAge); !ok || mid != 100 {
		t.Fatalf("quote invalid right after update: ok=%v mid=%v", ok, mid)
	}
	if _, _, _, ok := s.Quote(base.Add(30*time.Second), maxAge); !ok {
		t.Fatal("quote invalid at exactly max age")
	}
	if _, _, _, ok := s.Quote(base.Add(30*time.Second+time.Millisecond), maxAge); ok {
		t.Fatal("stale quote reported valid")
	}

	// A fresh tick restores validity.
	later := base.Add(time.Minute)
	s.SetQuote(101, 101.04, 101.02, later)
	if _, _, _, ok := s.Quote(later.Add(time.Second), maxAge); !ok {
		t.Fatal("quote invalid after refresh")
	}
}

func TestBalanceRequiresFirstObservation(t *testing.T) {
	s := NewStrategy()
	if _, ok := s.Balance(); ok {
		t.Fatal("balance valid before any update")
	}
	s.SetBalance(1000, time.Now())
	if b, ok := s.Balance(); !ok || b != 1000 {
		t.Fatalf("balance = %v, %v", b, ok)
	}
}

func TestPositionWriters(t *testing.T) {
	s := NewStrategy()
	s.SetPosition(2)
	if got := s.AddPosition(-0.5); got != 1.5 {
		t.Fatalf("AddPosition returned %v, want 1.5", got)
	}
	if got := s.Position(); got != 1.5 {
		t.Fatalf("Position() = %v, want 1.5", got)
	}
	s.SetPosition(0)
	if got := s.Position(); got != 0 {
		t.Fatalf("Position() = %v after venue reset", got)
	}
}

func TestActiveOrderSlot(t *testing.T) {
	s := NewStrategy()
	if _, ok := s.ActiveOrder(); ok {
		t.Fatal("active order set on fresh state")
	}
	s.SetActiveOrder(model.ActiveOrder{ID: "42", Side: model.SideBid, Price: 100, Quantity: 2})
	if o, ok := s.ActiveOrder(); !ok || o.ID != "42" {
		t.Fatalf("active order = %+v, %v", o, ok)
	}
	s.ClearActiveOrder()
	if _, ok := s.ActiveOrder(); ok {
		t.Fatal("active order survives clear")
	}
}

func TestHealthNotification(t *testing.T) {
	s := NewStrategy()
	s.SetMarketHealth(true)
	select {
	case <-s.HealthChanged():
	default:
		t.Fatal("no signal after health flip")
	}

	// Same value again must not signal.
	s.SetMarketHealth(true)
	select {
	case <-s.HealthChanged():
		t.Fatal("signal without a change")
	default:
	}

	// Signals coalesce instead of blocking the writer.
	s.SetAccountHealth(true)
	s.SetAccountHealth(false)
	s.SetAccountHealth(true)
	select {
	case <-s.HealthChanged():
	default:
		t.Fatal("coalesced signal missing")
	}

	if !s.Healthy() {
		t.Fatal("both feeds connected but not healthy")
	}
	s.SetMarketHealth(false)
	if s.Healthy() {
		t.Fatal("healthy with market feed down")
	}
	market, account := s.Health()
	if market || !account {
		t.Fatalf("health flags market=%v account=%v", market, account)
	}
}
