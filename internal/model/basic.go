package model

import "math"

// Side is the quoted side of the book.
type Side uint8

const (
	SideUnknown Side = iota
	SideBid
	SideAsk
)

func (s Side) String() string {
	switch s {
	case SideBid:
		return "bid"
	case SideAsk:
		return "ask"
	default:
		return "unknown"
	}
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	switch s {
	case SideBid:
		return SideAsk
	case SideAsk:
		return SideBid
	default:
		return SideUnknown
	}
}

// SideFromString parses a venue side string.
func SideFromString(s string) Side {
	switch s {
	case "bid":
		return SideBid
	case "ask":
		return SideAsk
	default:
		return SideUnknown
	}
}

// Posture describes what the strategy is trying to do with inventory.
type Posture uint8

const (
	PostureOpening Posture = iota
	PostureClosing
)

func (p Posture) String() string {
	if p == PostureClosing {
		return "closing"
	}
	return "opening"
}

// PostureFor derives posture from the current inventory notional.
// Closing whenever |position * mid| reaches the USD threshold.
func PostureFor(positionSize, midPrice, thresholdUSD float64) Posture {
	if math.Abs(positionSize*midPrice) >= thresholdUSD {
		return PostureClosing
	}
	return PostureOpening
}

// ActiveOrder is the single outstanding order, if any.
type ActiveOrder struct {
	ID         string
	Side       Side
	Price      float64
	Quantity   float64
	ReduceOnly bool
}

// FillEvent is a normalized order outcome pushed by the account feed.
// Terminal means the order reached a final status. Reconcile means the
// outcome is ambiguous and position must be refreshed from the venue
// instead of trusting Filled. An empty OrderID signals the tracked
// position went flat.
type FillEvent struct {
	OrderID   string
	Side      Side
	Filled    float64
	Terminal  bool
	Reconcile bool
}
