package risk

import (
	"math"

	"main/internal/model"
)

// Reason is a coarse reason code for risk decisions.
type Reason uint16

const (
	ReasonNone Reason = iota
	ReasonKillSwitch
	ReasonMaxQty
	ReasonMaxNotional
	ReasonPriceBand
	ReasonPositionLimit
)

func (r Reason) String() string {
	switch r {
	case ReasonKillSwitch:
		return "kill switch"
	case ReasonMaxQty:
		return "max order qty"
	case ReasonMaxNotional:
		return "max order notional"
	case ReasonPriceBand:
		return "price band"
	case ReasonPositionLimit:
		return "position limit"
	default:
		return "none"
	}
}

// Config defines simple pre-trade limits. Zero values disable a check.
type Config struct {
	KillSwitch           bool    `json:"killSwitch"`
	MaxOrderQty          float64 `json:"maxOrderQty"`
	MaxOrderNotional     float64 `json:"maxOrderNotional"`
	MaxPosition          float64 `json:"maxPosition"`
	MaxPriceDeviationBps float64 `json:"maxPriceDeviationBps"`
}

// Intent is a candidate order about to be sent.
type Intent struct {
	Side       model.Side
	Price      float64
	Qty        float64
	ReduceOnly bool
}

// StateView provides the current position and reference price.
type StateView struct {
	Position       float64
	ReferencePrice float64
}

// Decision is the outcome of a risk evaluation.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Engine evaluates pre-trade risk checks.
type Engine struct {
	cfg Config
}

// NewEngine creates a risk engine with static limits.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Evaluate applies sequential checks to an order intent. The first
// failing check decides.
func (e *Engine) Evaluate(intent Intent, state StateView) Decision {
	if e.cfg.KillSwitch {
		return Decision{Reason: ReasonKillSwitch}
	}

	if e.cfg.MaxOrderQty > 0 && intent.Qty > e.cfg.MaxOrderQty {
		return Decision{Reason: ReasonMaxQty}
	}

	if e.cfg.MaxOrderNotional > 0 && intent.Price*intent.Qty > e.cfg.MaxOrderNotional {
		return Decision{Reason: ReasonMaxNotional}
	}

	if e.cfg.MaxPriceDeviationBps > 0 && intent.Price > 0 && state.ReferencePrice > 0 {
		deviation := math.Abs(intent.Price-state.ReferencePrice) / state.ReferencePrice * 10000
		if deviation > e.cfg.MaxPriceDeviationBps {
			return Decision{Reason: ReasonPriceBand}
		}
	}

	// Reduce-only orders shrink the position toward zero, never past the
	// limit.
	if e.cfg.MaxPosition > 0 && !intent.ReduceOnly {
		next := applySide(state.Position, intent.Side, intent.Qty)
		if math.Abs(next) > e.cfg.MaxPosition {
			return Decision{Reason: ReasonPositionLimit}
		}
	}

	return Decision{Allowed: true, Reason: ReasonNone}
}

func applySide(pos float64, side model.Side, qty float64) float64 {
	switch side {
	case model.SideBid:
		return pos + qty
	case model.SideAsk:
		return pos - qty
	default:
		return pos
	}
}
