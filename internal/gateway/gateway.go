package gateway

import (
	"context"

	"main/internal/model"
)

// OrderRequest describes a limit order to place.
type OrderRequest struct {
	Symbol     string
	Side       model.Side
	Price      float64
	Quantity   float64
	ReduceOnly bool
	TIF        string
}

// Snapshot is a point-in-time view of the account for one instrument.
// Position is signed, positive for long.
type Snapshot struct {
	Balance    float64
	Position   float64
	EntryPrice float64
}

// Exchange is the venue order entry and metadata surface consumed by
// the controller. Cancel of an order that no longer exists fails with
// exception.ErrOrderGone and is treated as success by callers.
type Exchange interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (orderID string, err error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	CancelAllOrders(ctx context.Context, symbol string) error
	SymbolRules(ctx context.Context, symbol string) (model.SymbolRules, error)
	AccountSnapshot(ctx context.Context, symbol string) (Snapshot, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
}
