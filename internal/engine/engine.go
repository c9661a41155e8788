package engine

import (
	"context"
	"errors"
	"time"

	xerrors "github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"tradeexec/internal/bus"
	"tradeexec/internal/obs"
	"tradeexec/internal/schema"
	"tradeexec/internal/state"
	"tradeexec/internal/strategy"
	"tradeexec/pkg/exception"
)

// Config wires one engine instance.
type Config struct {
	Market *bus.Subscription
	// Fills may be nil; the engine then runs market-only.
	Fills    <-chan schema.FillEvent
	Strategy strategy.Strategy
	Context  *strategy.Context
	Ledger   *state.Ledger
	Metrics  *obs.Metrics
	Trace    *obs.TraceGenerator
	// Interval enables OnInterval calls; zero disables them.
	Interval time.Duration
	// RecordMarket journals every dispatched market event.
	RecordMarket bool
}

// Engine multiplexes market data and fills into one strategy.
type Engine struct {
	cfg     Config
	fills   <-chan schema.FillEvent
	started bool
}

// New validates cfg.
func New(cfg Config) (*Engine, error) {
	switch {
	case cfg.Market == nil:
		return nil, xerrors.Wrap(exception.ErrNilInstance, "market subscription")
	case cfg.Strategy == nil:
		return nil, xerrors.Wrap(exception.ErrNilInstance, "strategy")
	case cfg.Context == nil:
		return nil, xerrors.Wrap(exception.ErrNilInstance, "strategy context")
	case cfg.Ledger == nil:
		return nil, xerrors.Wrap(exception.ErrNilInstance, "position ledger")
	case cfg.Interval < 0:
		return nil, xerrors.Wrap(exception.ErrInvalidArgument, "interval must be >= 0")
	}
	if cfg.Trace == nil {
		cfg.Trace = obs.NewTraceGenerator(0)
	}
	return &Engine{cfg: cfg, fills: cfg.Fills}, nil
}

// Run processes events until the market stream closes, an error is returned
// by the strategy or submission path, or ctx ends. It can be called once.
func (e *Engine) Run(ctx context.Context) (err error) {
	if e.started {
		return xerrors.New("engine already started")
	}
	e.started = true

	id := e.cfg.Strategy.ID()
	if e.fills == nil {
		logs.Infof("engine %s: no fill stream, running fill-blind", id)
	}

	defer func() {
		e.cfg.Market.Close()
		if serr := e.cfg.Strategy.Shutdown(context.WithoutCancel(ctx), e.cfg.Context); serr != nil {
			if err == nil {
				err = xerrors.Wrapf(serr, "shutdown %s", id)
			} else {
				logs.Errorf("engine %s: shutdown: %+v", id, serr)
			}
		}
	}()

	var tick <-chan time.Time
	if e.cfg.Interval > 0 {
		ticker := time.NewTicker(e.cfg.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-e.cfg.Market.Ready():
			done, err := e.nextMarket(ctx)
			if err != nil || done {
				return err
			}

		case fill, ok := <-e.fills:
			if !ok {
				logs.Infof("engine %s: fill stream closed, continuing fill-blind", id)
				e.fills = nil
				continue
			}
			if err := e.onFill(ctx, fill); err != nil {
				return err
			}

		case now := <-tick:
			if err := e.onInterval(ctx, now); err != nil {
				return err
			}
		}
	}
}

// nextMarket handles at most one pending market item and reports whether the stream ended.
func (e *Engine) nextMarket(ctx context.Context) (bool, error) {
	ev, err := e.cfg.Market.TryRecv()
	var lag *bus.LagError
	switch {
	case err == nil:
		return false, e.onMarket(ctx, ev)
	case errors.As(err, &lag):
		e.cfg.Metrics.AddLagged(lag.Skipped)
		logs.Errorf("engine %s: market subscription lagged, %d events dropped", e.cfg.Strategy.ID(), lag.Skipped)
		return false, nil
	case errors.Is(err, exception.ErrFeedEmpty):
		return false, nil
	case errors.Is(err, exception.ErrFeedClosed), errors.Is(err, exception.ErrSubscriptionClosed):
		logs.Infof("engine %s: market stream closed", e.cfg.Strategy.ID())
		return true, nil
	default:
		return true, err
	}
}

func (e *Engine) onMarket(ctx context.Context, ev schema.MarketEvent) error {
	ctx = obs.WithTrace(ctx, e.cfg.Trace.Next())
	start := time.Now()
	if e.cfg.RecordMarket {
		e.cfg.Context.Record(ctx, schema.EventMarketData, ev)
	}
	resp, err := e.cfg.Strategy.OnEvent(ctx, e.cfg.Context, ev)
	e.cfg.Metrics.ObserveMarket(time.Since(start))
	if err != nil {
		return xerrors.Wrapf(err, "%s on %s event", e.cfg.Strategy.ID(), ev.Instrument())
	}
	return e.dispatch(ctx, resp)
}

func (e *Engine) onFill(ctx context.Context, fill schema.FillEvent) error {
	ctx = obs.WithTrace(ctx, e.cfg.Trace.Next())
	start := time.Now()
	pos := e.cfg.Ledger.ApplyFill(fill)
	e.cfg.Context.Record(ctx, schema.EventFill, fill)
	resp, err := e.cfg.Strategy.OnFill(ctx, e.cfg.Context, fill)
	e.cfg.Metrics.ObserveFill(time.Since(start))
	if err != nil {
		return xerrors.Wrapf(err, "%s on fill %s", e.cfg.Strategy.ID(), fill.Instrument).With("net", pos.Size)
	}
	return e.dispatch(ctx, resp)
}

func (e *Engine) onInterval(ctx context.Context, now time.Time) error {
	ctx = obs.WithTrace(ctx, e.cfg.Trace.Next())
	resp, err := e.cfg.Strategy.OnInterval(ctx, e.cfg.Context, now)
	if err != nil {
		return xerrors.Wrapf(err, "%s on interval", e.cfg.Strategy.ID())
	}
	return e.dispatch(ctx, resp)
}

func (e *Engine) dispatch(ctx context.Context, resp strategy.Response) error {
	for _, action := range resp.Actions {
		if action.Kind == strategy.ActionAlert {
			logs.Errorf("engine %s: alert: %s", e.cfg.Strategy.ID(), action.Message)
		}
	}
	for _, intent := range resp.Intents {
		id, err := e.cfg.Context.SubmitIntent(ctx, intent)
		if err != nil {
			return err
		}
		logs.Infof("engine %s: submitted %s id=%s trace=%d", e.cfg.Strategy.ID(), intent.Describe(), id, obs.TraceFrom(ctx))
	}
	return nil
}
