package state

import (
	"sync"
	"time"

	"main/internal/model"
)

// Strategy is the single shared record between the feeds and the
// controller. Each field has exactly one writer: the market feed owns
// the quote, the account feed owns balance and venue position, the
// controller owns the active order and provisional position changes.
// A mutex keeps the cross-goroutine reads defined; contention is nil
// at the update rates involved.
type Strategy struct {
	mu sync.RWMutex

	bidPrice float64
	askPrice float64
	midPrice float64
	hasQuote bool
	quoteAt  time.Time

	balance    float64
	hasBalance bool
	balanceAt  time.Time

	positionSize float64

	activeOrder    model.ActiveOrder
	hasActiveOrder bool

	marketConnected  bool
	accountConnected bool
	healthC          chan struct{}
}

// NewStrategy creates an empty shared record.
func NewStrategy() *Strategy {
	return &Strategy{healthC: make(chan struct{}, 1)}
}

// SetQuote records a market quote. Market feed only.
func (s *Strategy) SetQuote(bid, ask, mid float64, at time.Time) {
	s.mu.Lock()
	s.bidPrice, s.askPrice, s.midPrice = bid, ask, mid
	s.hasQuote = true
	s.quoteAt = at
	s.mu.Unlock()
}

// Quote returns the last quote when it exists and is no older than
// maxAge. Stale quotes are reported as absent.
func (s *Strategy) Quote(now time.Time, maxAge time.Duration) (bid, ask, mid float64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasQuote || now.Sub(s.quoteAt) > maxAge {
		return 0, 0, 0, false
	}
	return s.bidPrice, s.askPrice, s.midPrice, true
}

// SetBalance records the available balance. Account feed only.
func (s *Strategy) SetBalance(balance float64, at time.Time) {
	s.mu.Lock()
	s.balance = balance
	s.hasBalance = true
	s.balanceAt = at
	s.mu.Unlock()
}

// Balance returns the available balance once it has been observed.
func (s *Strategy) Balance() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balance, s.hasBalance
}

// SetPosition replaces the signed position with venue truth.
func (s *Strategy) SetPosition(size float64) {
	s.mu.Lock()
	s.positionSize = size
	s.mu.Unlock()
}

// AddPosition applies a provisional signed delta after a fill. The next
// account feed update reconciles it against venue truth.
func (s *Strategy) AddPosition(delta float64) float64 {
	s.mu.Lock()
	s.positionSize += delta
	next := s.positionSize
	s.mu.Unlock()
	return next
}

// Position returns the signed position size.
func (s *Strategy) Position() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.positionSize
}

// SetActiveOrder records the outstanding order. Controller only.
func (s *Strategy) SetActiveOrder(o model.ActiveOrder) {
	s.mu.Lock()
	s.activeOrder = o
	s.hasActiveOrder = true
	s.mu.Unlock()
}

// ClearActiveOrder marks the order slot idle. Controller only.
func (s *Strategy) ClearActiveOrder() {
	s.mu.Lock()
	s.activeOrder = model.ActiveOrder{}
	s.hasActiveOrder = false
	s.mu.Unlock()
}

// ActiveOrder returns the outstanding order, if any.
func (s *Strategy) ActiveOrder() (model.ActiveOrder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeOrder, s.hasActiveOrder
}

// SetMarketHealth flags the market feed connection state.
func (s *Strategy) SetMarketHealth(connected bool) {
	s.mu.Lock()
	changed := s.marketConnected != connected
	s.marketConnected = connected
	s.mu.Unlock()
	if changed {
		s.notifyHealth()
	}
}

// SetAccountHealth flags the account feed connection state.
func (s *Strategy) SetAccountHealth(connected bool) {
	s.mu.Lock()
	changed := s.accountConnected != connected
	s.accountConnected = connected
	s.mu.Unlock()
	if changed {
		s.notifyHealth()
	}
}

// Healthy reports whether both feeds are connected.
func (s *Strategy) Healthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.marketConnected && s.accountConnected
}

// Health returns the individual feed connection flags.
func (s *Strategy) Health() (market, account bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.marketConnected, s.accountConnected
}

// HealthChanged returns a channel that receives a signal after any feed
// connection flag flips. Signals coalesce; receivers re-check the flags.
func (s *Strategy) HealthChanged() <-chan struct{} {
	return s.healthC
}

func (s *Strategy) notifyHealth() {
	select {
	case s.healthC <- struct{}{}:
	default:
	}
}
