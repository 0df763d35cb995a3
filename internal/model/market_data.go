package model

import "time"

// PriceTick is a normalized market price update for one instrument.
type PriceTick struct {
	Symbol string
	Bid    float64
	Ask    float64
	Mid    float64
	Mark   float64
	At     time.Time
}

// PositionEvent is a normalized position update. Signed is positive for
// long, negative for short.
type PositionEvent struct {
	Symbol     string
	Signed     float64
	EntryPrice float64
}

// OrderEvent is a normalized open-order row from the account stream.
type OrderEvent struct {
	OrderID string
	Symbol  string
	Side    Side
	Price   float64
	Amount  float64
	Filled  float64
}
