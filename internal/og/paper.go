package og

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"tradeexec/internal/recorder"
	"tradeexec/internal/schema"
	"tradeexec/pkg/exception"
)

// PaperConfig controls the simulated venue.
type PaperConfig struct {
	// Latency delays every submission, simulating the venue round trip.
	Latency time.Duration
	// Journal receives an OrderAck record per terminal or resting order; optional.
	Journal *recorder.Journal
	// IDPrefix prefixes generated order ids.
	IDPrefix string
	// DiscardFills skips fill delivery for callers that never read Fills.
	DiscardFills bool
	// DrainTimeout bounds how long Close waits for a reader before dropping
	// undelivered fills. Defaults to one second.
	DrainTimeout time.Duration
}

// Ack is the journaled outcome of one submission.
type Ack struct {
	OrderID    string  `json:"order_id"`
	Token      string  `json:"token,omitempty"`
	Instrument string  `json:"instrument"`
	Side       string  `json:"side"`
	State      string  `json:"state"`
	Filled     float64 `json:"filled"`
	Reason     string  `json:"reason,omitempty"`
}

// PaperGateway simulates a venue: marketable orders fill at their limit price.
// IOC and GTC orders match immediately, ALO orders rest and never fill.
// A resubmitted token returns the original id and produces no fill.
type PaperGateway struct {
	cfg PaperConfig

	mu       sync.Mutex
	orders   *StateMachine
	byToken  map[string]string
	exposure map[string]float64
	seq      uint64
	closed   bool

	queue   []schema.FillEvent
	notify  chan struct{}
	done    chan struct{}
	fills   chan schema.FillEvent
	stopped chan struct{}
}

// NewPaperGateway creates a gateway and starts its fill pump.
func NewPaperGateway(cfg PaperConfig) *PaperGateway {
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = "paper"
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = time.Second
	}
	g := &PaperGateway{
		cfg:      cfg,
		orders:   NewStateMachine(),
		byToken:  make(map[string]string),
		exposure: make(map[string]float64),
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		fills:    make(chan schema.FillEvent),
		stopped:  make(chan struct{}),
	}
	go g.pump()
	return g
}

// Fills delivers simulated fills in submission order. It is closed after Close
// once drained, or once DrainTimeout passes with no reader.
func (g *PaperGateway) Fills() <-chan schema.FillEvent {
	return g.fills
}

// Order returns the gateway's view of an order.
func (g *PaperGateway) Order(id string) (Order, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.orders.Order(id)
}

// Orders returns the number of distinct orders accepted.
func (g *PaperGateway) Orders() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.orders.Len()
}

// Submit implements Router.
func (g *PaperGateway) Submit(ctx context.Context, intent schema.OrderIntent) (string, error) {
	size, price, err := validate(intent)
	if err != nil {
		return "", err
	}
	if g.cfg.Latency > 0 {
		timer := time.NewTimer(g.cfg.Latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return "", exception.ErrOrderGatewayClosed
	}
	if intent.Token != "" {
		if id, ok := g.byToken[intent.Token]; ok {
			return id, nil
		}
	}

	g.seq++
	id := fmt.Sprintf("%s-%06d", g.cfg.IDPrefix, g.seq)
	order, err := g.orders.ApplySubmit(Order{
		ID:          id,
		Token:       intent.Token,
		Instrument:  intent.Instrument,
		Side:        intent.Side,
		Price:       price,
		Size:        size,
		TimeInForce: intent.TimeInForce,
		ReduceOnly:  intent.ReduceOnly,
	})
	if err != nil {
		return "", errors.Wrap(err, "track paper order").With("id", id)
	}
	if intent.Token != "" {
		g.byToken[intent.Token] = id
	}

	fillSize := size
	if intent.ReduceOnly {
		reducible := g.reducible(intent.Instrument, intent.Side)
		if reducible <= 0 {
			order, _ = g.orders.ApplyReject(id, exception.ErrOrderNothingToReduce.Error())
			logs.Errorf("paper order %s rejected: %s", id, order.Reason)
			g.ack(ctx, order, 0)
			return id, nil
		}
		fillSize = min(size, reducible)
	}

	if intent.TimeInForce == schema.TimeInForceALO {
		order, _ = g.orders.ApplyRest(id)
		g.ack(ctx, order, 0)
		return id, nil
	}

	order, _ = g.orders.ApplyFill(id, fillSize)
	if order.State != OrderStateFilled {
		order, _ = g.orders.ApplyCancel(id)
	}
	fill := schema.FillEvent{
		Instrument:    intent.Instrument,
		Price:         price,
		Size:          fillSize,
		IsBuy:         intent.Side == schema.OrderSideBuy,
		ClientOrderID: intent.Token,
	}
	g.exposure[fill.Instrument] += fill.SignedSize()
	if !g.cfg.DiscardFills {
		g.queue = append(g.queue, fill)
		g.wake()
	}
	g.ack(ctx, order, fillSize)
	return id, nil
}

// Close rejects further submissions; Fills closes once queued fills are delivered.
func (g *PaperGateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	close(g.done)
	g.wake()
}

// Stopped is closed when the fill pump has exited.
func (g *PaperGateway) Stopped() <-chan struct{} {
	return g.stopped
}

func (g *PaperGateway) reducible(instrument string, side schema.OrderSide) float64 {
	net := g.exposure[instrument]
	switch {
	case side == schema.OrderSideBuy && net < 0:
		return -net
	case side == schema.OrderSideSell && net > 0:
		return net
	default:
		return 0
	}
}

func (g *PaperGateway) ack(ctx context.Context, o *Order, filled float64) {
	if g.cfg.Journal == nil || o == nil {
		return
	}
	err := g.cfg.Journal.Append(ctx, schema.EventOrderAck, Ack{
		OrderID:    o.ID,
		Token:      o.Token,
		Instrument: o.Instrument,
		Side:       o.Side.String(),
		State:      o.State.String(),
		Filled:     filled,
		Reason:     o.Reason,
	})
	if err != nil {
		logs.Errorf("journal paper ack %s: %+v", o.ID, err)
	}
}

func (g *PaperGateway) wake() {
	select {
	case g.notify <- struct{}{}:
	default:
	}
}

// pump delivers queued fills outside the gateway lock.
func (g *PaperGateway) pump() {
	defer close(g.stopped)
	defer close(g.fills)
	done := g.done
	var grace <-chan time.Time
	for {
		g.mu.Lock()
		if len(g.queue) == 0 {
			closed := g.closed
			g.mu.Unlock()
			if closed {
				return
			}
			<-g.notify
			continue
		}
		fill := g.queue[0]
		g.queue[0] = schema.FillEvent{}
		g.queue = g.queue[1:]
		g.mu.Unlock()

	send:
		for {
			select {
			case g.fills <- fill:
				break send
			case <-done:
				done = nil
				timer := time.NewTimer(g.cfg.DrainTimeout)
				defer timer.Stop()
				grace = timer.C
			case <-grace:
				g.dropQueued(1)
				return
			}
		}
	}
}

func (g *PaperGateway) dropQueued(pending int) {
	g.mu.Lock()
	pending += len(g.queue)
	g.queue = nil
	g.mu.Unlock()
	logs.Errorf("paper gateway closed with %d undelivered fills", pending)
}

func validate(intent schema.OrderIntent) (float64, float64, error) {
	if intent.Instrument == "" {
		return 0, 0, errors.Wrap(exception.ErrOrderInvalidIntent, "instrument is empty")
	}
	if intent.Side != schema.OrderSideBuy && intent.Side != schema.OrderSideSell {
		return 0, 0, errors.Wrapf(exception.ErrOrderInvalidIntent, "side %s", intent.Side)
	}
	size, err := schema.ParseDecimal(intent.Size)
	if err != nil || size <= 0 {
		return 0, 0, errors.Wrapf(exception.ErrOrderInvalidIntent, "size %q", intent.Size)
	}
	price, err := schema.ParseDecimal(intent.LimitPrice)
	if err != nil || price <= 0 {
		return 0, 0, errors.Wrapf(exception.ErrOrderInvalidIntent, "limit price %q", intent.LimitPrice)
	}
	return size, price, nil
}
