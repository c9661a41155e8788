package og

import (
	"errors"

	"tradeexec/internal/schema"
)

var (
	ErrDuplicateOrder    = errors.New("order already exists")
	ErrUnknownOrder      = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order state transition")
	ErrInvalidFill       = errors.New("invalid fill size")
)

// OrderState tracks the lifecycle of an order.
type OrderState uint16

const (
	OrderStateUnknown OrderState = iota
	OrderStateSent
	OrderStateResting
	OrderStatePartFilled
	OrderStateFilled
	OrderStateCanceled
	OrderStateRejected
)

func (s OrderState) String() string {
	switch s {
	case OrderStateSent:
		return "Sent"
	case OrderStateResting:
		return "Resting"
	case OrderStatePartFilled:
		return "PartFilled"
	case OrderStateFilled:
		return "Filled"
	case OrderStateCanceled:
		return "Canceled"
	case OrderStateRejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s OrderState) Terminal() bool {
	switch s {
	case OrderStateFilled, OrderStateCanceled, OrderStateRejected:
		return true
	default:
		return false
	}
}

// Order holds the gateway's view of an order.
type Order struct {
	ID          string
	Token       string
	Instrument  string
	Side        schema.OrderSide
	Price       float64
	Size        float64
	Leaves      float64
	TimeInForce schema.TimeInForce
	ReduceOnly  bool
	State       OrderState
	Reason      string
}

// StateMachine updates orders from submission, fill and reject events.
// It is not safe for concurrent use; the owning gateway serializes access.
type StateMachine struct {
	orders map[string]*Order
}

// NewStateMachine creates an empty state machine.
func NewStateMachine() *StateMachine {
	return &StateMachine{orders: make(map[string]*Order)}
}

// Order returns a copy of the current order state.
func (m *StateMachine) Order(id string) (Order, bool) {
	o, ok := m.orders[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// Len returns the number of tracked orders.
func (m *StateMachine) Len() int {
	return len(m.orders)
}

// ApplySubmit creates a new order in Sent state.
func (m *StateMachine) ApplySubmit(o Order) (*Order, error) {
	if o.ID == "" {
		return nil, ErrUnknownOrder
	}
	if _, ok := m.orders[o.ID]; ok {
		return nil, ErrDuplicateOrder
	}
	o.Leaves = o.Size
	o.State = OrderStateSent
	m.orders[o.ID] = &o
	return &o, nil
}

// ApplyRest moves a sent order onto the book.
func (m *StateMachine) ApplyRest(id string) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrUnknownOrder
	}
	if o.State != OrderStateSent {
		return o, ErrInvalidTransition
	}
	o.State = OrderStateResting
	return o, nil
}

// ApplyFill reduces the remaining size by size.
func (m *StateMachine) ApplyFill(id string, size float64) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrUnknownOrder
	}
	if o.State.Terminal() {
		return o, ErrInvalidTransition
	}
	if size <= 0 || size > o.Leaves+sizeEpsilon {
		return o, ErrInvalidFill
	}
	o.Leaves -= size
	if o.Leaves <= sizeEpsilon {
		o.Leaves = 0
		o.State = OrderStateFilled
	} else {
		o.State = OrderStatePartFilled
	}
	return o, nil
}

// ApplyCancel cancels any remaining size, as IOC does after its match.
func (m *StateMachine) ApplyCancel(id string) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrUnknownOrder
	}
	if o.State.Terminal() {
		return o, ErrInvalidTransition
	}
	o.State = OrderStateCanceled
	return o, nil
}

// ApplyReject rejects an order that has not filled.
func (m *StateMachine) ApplyReject(id, reason string) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrUnknownOrder
	}
	if o.State.Terminal() || o.Leaves != o.Size {
		return o, ErrInvalidTransition
	}
	o.State = OrderStateRejected
	o.Reason = reason
	return o, nil
}

const sizeEpsilon = 1e-12
