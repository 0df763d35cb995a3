// Package sim provides an in-memory gateway for tests and paper runs.
package sim

import (
	"context"
	"strconv"
	"sync"

	"main/internal/gateway"
	"main/internal/model"
	"main/pkg/exception"
)

// Gateway keeps orders in memory and lets tests inject failures.
type Gateway struct {
	mu sync.Mutex

	nextID   int64
	orders   map[string]gateway.OrderRequest
	balance  float64
	position float64
	rules    model.SymbolRules
	leverage int

	placeErr  error
	cancelErr error

	placeCalls     int
	cancelCalls    int
	cancelAllCalls int
	snapshotCalls  int
}

var _ gateway.Exchange = (*Gateway)(nil)

// New creates a sim gateway with the given account state.
func New(balance, position float64, rules model.SymbolRules) *Gateway {
	return &Gateway{
		nextID:   1000,
		orders:   make(map[string]gateway.OrderRequest),
		balance:  balance,
		position: position,
		rules:    rules,
	}
}

// FailNextPlace makes the next PlaceOrder return err.
func (g *Gateway) FailNextPlace(err error) {
	g.mu.Lock()
	g.placeErr = err
	g.mu.Unlock()
}

// FailNextCancel makes the next CancelOrder return err.
func (g *Gateway) FailNextCancel(err error) {
	g.mu.Lock()
	g.cancelErr = err
	g.mu.Unlock()
}

// SetAccount replaces the snapshot the gateway reports.
func (g *Gateway) SetAccount(balance, position float64) {
	g.mu.Lock()
	g.balance = balance
	g.position = position
	g.mu.Unlock()
}

func (g *Gateway) PlaceOrder(_ context.Context, req gateway.OrderRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.placeCalls++
	if err := g.placeErr; err != nil {
		g.placeErr = nil
		return "", err
	}
	g.nextID++
	id := strconv.FormatInt(g.nextID, 10)
	g.orders[id] = req
	return id, nil
}

func (g *Gateway) CancelOrder(_ context.Context, _ string, orderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelCalls++
	if err := g.cancelErr; err != nil {
		g.cancelErr = nil
		return err
	}
	if _, ok := g.orders[orderID]; !ok {
		return exception.ErrOrderGone
	}
	delete(g.orders, orderID)
	return nil
}

func (g *Gateway) CancelAllOrders(_ context.Context, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelAllCalls++
	for id := range g.orders {
		delete(g.orders, id)
	}
	return nil
}

func (g *Gateway) SymbolRules(_ context.Context, _ string) (model.SymbolRules, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rules, nil
}

func (g *Gateway) AccountSnapshot(_ context.Context, _ string) (gateway.Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.snapshotCalls++
	return gateway.Snapshot{Balance: g.balance, Position: g.position}, nil
}

func (g *Gateway) SetLeverage(_ context.Context, _ string, leverage int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.leverage = leverage
	return nil
}

// OpenOrders returns a copy of the resting orders.
func (g *Gateway) OpenOrders() map[string]gateway.OrderRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]gateway.OrderRequest, len(g.orders))
	for id, req := range g.orders {
		out[id] = req
	}
	return out
}

// Calls reports how many gateway operations ran.
func (g *Gateway) Calls() (place, cancel, cancelAll int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.placeCalls, g.cancelCalls, g.cancelAllCalls
}
