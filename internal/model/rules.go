package model

import "math"

// SymbolRules holds the per-instrument precision and size constraints.
// Immutable after load.
type SymbolRules struct {
	TickSize          float64
	StepSize          float64
	PricePrecision    int
	QuantityPrecision int
	MinNotional       float64
}

// QuantizePrice snaps a price to the nearest tick, rounded to the price
// precision.
func (r SymbolRules) QuantizePrice(price float64) float64 {
	if r.TickSize > 0 {
		price = math.Round(price/r.TickSize) * r.TickSize
	}
	return roundTo(price, r.PricePrecision)
}

// QuantizeQuantity snaps a quantity down to the step size. Rounds down,
// never up, so a quantized quantity cannot exceed the raw input.
func (r SymbolRules) QuantizeQuantity(qty float64) float64 {
	if r.StepSize > 0 {
		steps := math.Floor(qty/r.StepSize + stepEpsilon)
		qty = steps * r.StepSize
	}
	q := roundDownTo(qty, r.QuantityPrecision)
	if q < 0 {
		return 0
	}
	return q
}

// stepEpsilon absorbs float division dust so an already-quantized
// quantity does not lose a step.
const stepEpsilon = 1e-9

func roundTo(v float64, precision int) float64 {
	if precision < 0 {
		return v
	}
	factor := math.Pow10(precision)
	return math.Round(v*factor) / factor
}

func roundDownTo(v float64, precision int) float64 {
	if precision < 0 {
		return v
	}
	factor := math.Pow10(precision)
	return math.Floor(v*factor+stepEpsilon) / factor
}
