package model

import (
	"strconv"

	"github.com/yanun0323/decimal"
)

// DecimalFloat converts a wire decimal into a float64. The venue
// serializes monetary fields as decimal strings.
func DecimalFloat(d decimal.Decimal) float64 {
	f, err := strconv.ParseFloat(d.String(), 64)
	if err != nil {
		return 0
	}
	return f
}
