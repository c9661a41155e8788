package chaos

import (
	"context"
	"math/rand"
	"time"

	"github.com/yanun0323/errors"

	"tradeexec/internal/schema"
	"tradeexec/pkg/exception"
)

// Config controls fault injection on a market data stream.
type Config struct {
	Seed          int64
	DropRate      float64
	DuplicateRate float64
	// ReorderWindow holds that many events and releases a random one; 1 keeps order.
	ReorderWindow int
	// MaxDelay stalls emission by up to this long per released event.
	MaxDelay time.Duration
}

// Enabled reports whether cfg injects any fault.
func (c Config) Enabled() bool {
	return c.DropRate > 0 || c.DuplicateRate > 0 || c.ReorderWindow > 1 || c.MaxDelay > 0
}

// Validate ensures the config is within supported ranges.
func (c Config) Validate() error {
	if c.DropRate < 0 || c.DropRate > 1 {
		return errors.Wrap(exception.ErrInvalidArgument, "drop rate must be between 0 and 1")
	}
	if c.DuplicateRate < 0 || c.DuplicateRate > 1 {
		return errors.Wrap(exception.ErrInvalidArgument, "duplicate rate must be between 0 and 1")
	}
	if c.ReorderWindow < 0 {
		return errors.Wrap(exception.ErrInvalidArgument, "reorder window must be >= 0")
	}
	if c.MaxDelay < 0 {
		return errors.Wrap(exception.ErrInvalidArgument, "max delay must be >= 0")
	}
	return nil
}

// Engine applies chaos rules to market events. It is not safe for concurrent use.
type Engine struct {
	cfg     Config
	rng     *rand.Rand
	pending []schema.MarketEvent
}

// NewEngine creates a chaos engine with validation. A zero seed uses the clock.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ReorderWindow == 0 {
		cfg.ReorderWindow = 1
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}
	return &Engine{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Process applies chaos to a single event and returns any output events.
func (e *Engine) Process(ev schema.MarketEvent) []schema.MarketEvent {
	if e == nil {
		return []schema.MarketEvent{ev}
	}
	if e.shouldDrop() {
		return nil
	}
	if e.cfg.ReorderWindow <= 1 {
		return e.applyDuplicate(ev)
	}
	e.pending = append(e.pending, ev)
	if len(e.pending) < e.cfg.ReorderWindow {
		return nil
	}
	return e.applyDuplicate(e.take())
}

// Flush returns any buffered events after processing completes.
func (e *Engine) Flush() []schema.MarketEvent {
	if e == nil || len(e.pending) == 0 {
		return nil
	}
	out := make([]schema.MarketEvent, 0, len(e.pending))
	for len(e.pending) > 0 {
		out = append(out, e.applyDuplicate(e.take())...)
	}
	return out
}

// Delay draws the stall applied before releasing one event.
func (e *Engine) Delay() time.Duration {
	if e == nil || e.cfg.MaxDelay <= 0 {
		return 0
	}
	return time.Duration(e.rng.Int63n(e.cfg.MaxDelay.Nanoseconds() + 1))
}

func (e *Engine) take() schema.MarketEvent {
	idx := e.rng.Intn(len(e.pending))
	out := e.pending[idx]
	e.pending = append(e.pending[:idx], e.pending[idx+1:]...)
	return out
}

func (e *Engine) shouldDrop() bool {
	return e.cfg.DropRate > 0 && e.rng.Float64() < e.cfg.DropRate
}

func (e *Engine) applyDuplicate(ev schema.MarketEvent) []schema.MarketEvent {
	out := []schema.MarketEvent{ev}
	if e.cfg.DuplicateRate > 0 && e.rng.Float64() < e.cfg.DuplicateRate {
		out = append(out, ev)
	}
	return out
}

// Streamer is the market data source shape Source wraps.
type Streamer interface {
	Stream(ctx context.Context, emit func(schema.MarketEvent)) error
}

// Source wraps a market data source and perturbs its stream.
type Source struct {
	inner  Streamer
	engine *Engine
}

// Wrap returns a Source applying cfg to inner.
func Wrap(inner Streamer, cfg Config) (*Source, error) {
	if inner == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "chaos inner source")
	}
	engine, err := NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	return &Source{inner: inner, engine: engine}, nil
}

// Stream forwards perturbed events; buffered events are flushed when inner ends.
func (s *Source) Stream(ctx context.Context, emit func(schema.MarketEvent)) error {
	release := func(events []schema.MarketEvent) {
		for _, ev := range events {
			if d := s.engine.Delay(); d > 0 {
				t := time.NewTimer(d)
				select {
				case <-ctx.Done():
					t.Stop()
					return
				case <-t.C:
				}
			}
			emit(ev)
		}
	}
	err := s.inner.Stream(ctx, func(ev schema.MarketEvent) {
		release(s.engine.Process(ev))
	})
	if ctx.Err() == nil {
		release(s.engine.Flush())
	}
	return err
}
