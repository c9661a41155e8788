package schema

import "fmt"

// OrderSide describes order direction.
type OrderSide uint16

const (
	OrderSideUnknown OrderSide = iota
	OrderSideBuy
	OrderSideSell
)

func (s OrderSide) String() string {
	switch s {
	case OrderSideBuy:
		return "Buy"
	case OrderSideSell:
		return "Sell"
	default:
		return "Unknown"
	}
}

// TimeInForce describes order time-in-force.
type TimeInForce uint16

const (
	TimeInForceUnknown TimeInForce = iota
	TimeInForceGTC
	TimeInForceIOC
	TimeInForceALO
)

func (t TimeInForce) String() string {
	switch t {
	case TimeInForceGTC:
		return "Gtc"
	case TimeInForceIOC:
		return "Ioc"
	case TimeInForceALO:
		return "Alo"
	default:
		return "Unknown"
	}
}

// OrderIntent is what a strategy asks the order-submission boundary to send.
// Size and LimitPrice are canonical decimal strings.
type OrderIntent struct {
	Instrument  string      `json:"instrument"`
	Side        OrderSide   `json:"side"`
	Size        string      `json:"size"`
	LimitPrice  string      `json:"limitPrice"`
	TimeInForce TimeInForce `json:"timeInForce"`
	ReduceOnly  bool        `json:"reduceOnly"`
	ClientTag   string      `json:"clientTag"`
	// Token is the idempotency token. It is assigned before submission when empty.
	Token string `json:"token,omitempty"`
}

// Describe returns a short human readable summary.
func (i OrderIntent) Describe() string {
	return fmt.Sprintf("%s %s %s %s@%s", i.ClientTag, i.Instrument, i.Side, i.Size, i.LimitPrice)
}

// FillEvent is a confirmed execution reported by the venue.
type FillEvent struct {
	Instrument    string  `json:"instrument"`
	Price         float64 `json:"price"`
	Size          float64 `json:"size"`
	IsBuy         bool    `json:"isBuy"`
	ClientOrderID string  `json:"clientOrderId,omitempty"`
}

// SignedSize is +Size for buys and -Size for sells.
func (f FillEvent) SignedSize() float64 {
	if f.IsBuy {
		return f.Size
	}
	return -f.Size
}

// Position is the net holding of one instrument.
// EntryPrice is the price of the most recent increasing fill, not a cost basis.
type Position struct {
	Instrument string  `json:"instrument"`
	Size       float64 `json:"size"`
	EntryPrice float64 `json:"entryPrice"`
}
