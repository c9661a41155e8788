package risk

import (
	"tradeexec/internal/schema"
)

// Limits holds static position limits for one strategy.
type Limits struct {
	// MaxPosition caps the absolute net size new exposure may start from; zero disables the cap.
	MaxPosition float64
}

// Admit reports whether an order on side may be sent given the current net size.
// Reduce-only orders always pass. A buy is refused once net is at or above
// the cap, a sell once net is at or below the negative cap.
func (l Limits) Admit(net float64, side schema.OrderSide, reduceOnly bool) bool {
	if reduceOnly || l.MaxPosition <= 0 {
		return true
	}
	switch side {
	case schema.OrderSideBuy:
		return net < l.MaxPosition
	case schema.OrderSideSell:
		return net > -l.MaxPosition
	default:
		return false
	}
}

// ReduceOnly reports whether an order on side only shrinks the existing position.
func ReduceOnly(side schema.OrderSide, net float64) bool {
	switch side {
	case schema.OrderSideBuy:
		return net < 0
	case schema.OrderSideSell:
		return net > 0
	default:
		return false
	}
}
