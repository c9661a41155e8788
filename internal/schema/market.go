package schema

import "time"

// MarketEventKind tags the populated variant of a MarketEvent.
type MarketEventKind uint16

const (
	MarketEventUnknown MarketEventKind = iota
	MarketEventCandle
	MarketEventTrade
)

func (k MarketEventKind) String() string {
	switch k {
	case MarketEventCandle:
		return "Candle"
	case MarketEventTrade:
		return "Trade"
	default:
		return "Unknown"
	}
}

// Candle is a closed bar for one instrument.
type Candle struct {
	Instrument string    `json:"instrument"`
	Close      float64   `json:"close"`
	Interval   string    `json:"interval"`
	Timestamp  time.Time `json:"timestamp"`
}

// Trade is a single public print.
type Trade struct {
	Instrument string    `json:"instrument"`
	Price      float64   `json:"price"`
	Size       float64   `json:"size"`
	Timestamp  time.Time `json:"timestamp"`
}

// MarketEvent is either a Candle or a Trade, selected by Kind.
// Values are passed by copy and never mutated after publication.
type MarketEvent struct {
	Kind   MarketEventKind `json:"kind"`
	Candle *Candle         `json:"candle,omitempty"`
	Trade  *Trade          `json:"trade,omitempty"`
}

// NewCandleEvent wraps a candle.
func NewCandleEvent(c Candle) MarketEvent {
	return MarketEvent{Kind: MarketEventCandle, Candle: &c}
}

// NewTradeEvent wraps a trade.
func NewTradeEvent(t Trade) MarketEvent {
	return MarketEvent{Kind: MarketEventTrade, Trade: &t}
}

// Instrument returns the instrument of the populated variant.
func (e MarketEvent) Instrument() string {
	switch {
	case e.Kind == MarketEventCandle && e.Candle != nil:
		return e.Candle.Instrument
	case e.Kind == MarketEventTrade && e.Trade != nil:
		return e.Trade.Instrument
	default:
		return ""
	}
}

// Price returns the close of a candle or the price of a trade.
func (e MarketEvent) Price() float64 {
	switch {
	case e.Kind == MarketEventCandle && e.Candle != nil:
		return e.Candle.Close
	case e.Kind == MarketEventTrade && e.Trade != nil:
		return e.Trade.Price
	default:
		return 0
	}
}

// Timestamp returns the event time of the populated variant.
func (e MarketEvent) Timestamp() time.Time {
	switch {
	case e.Kind == MarketEventCandle && e.Candle != nil:
		return e.Candle.Timestamp
	case e.Kind == MarketEventTrade && e.Trade != nil:
		return e.Trade.Timestamp
	default:
		return time.Time{}
	}
}
