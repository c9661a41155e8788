package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeexec/internal/bus"
	"tradeexec/internal/obs"
	"tradeexec/internal/og"
	"tradeexec/internal/schema"
	"tradeexec/internal/state"
	"tradeexec/internal/strategy"
	"tradeexec/pkg/exception"
)

// scripted records callbacks and answers with hooks set by each test.
type scripted struct {
	mu       sync.Mutex
	prices   []float64
	fills    []schema.FillEvent
	netSeen  []float64
	ticks    int
	shutdown int

	onEvent    func(ev schema.MarketEvent) (strategy.Response, error)
	onFill     func(sc *strategy.Context, fill schema.FillEvent) (strategy.Response, error)
	onInterval func() (strategy.Response, error)
}

func (s *scripted) ID() string { return "scripted" }

func (s *scripted) OnEvent(_ context.Context, _ *strategy.Context, ev schema.MarketEvent) (strategy.Response, error) {
	s.mu.Lock()
	s.prices = append(s.prices, ev.Price())
	s.mu.Unlock()
	if s.onEvent != nil {
		return s.onEvent(ev)
	}
	return strategy.Response{}, nil
}

func (s *scripted) OnFill(_ context.Context, sc *strategy.Context, fill schema.FillEvent) (strategy.Response, error) {
	s.mu.Lock()
	s.fills = append(s.fills, fill)
	s.netSeen = append(s.netSeen, sc.Net(fill.Instrument))
	s.mu.Unlock()
	if s.onFill != nil {
		return s.onFill(sc, fill)
	}
	return strategy.Response{}, nil
}

func (s *scripted) OnInterval(context.Context, *strategy.Context, time.Time) (strategy.Response, error) {
	s.mu.Lock()
	s.ticks++
	s.mu.Unlock()
	if s.onInterval != nil {
		return s.onInterval()
	}
	return strategy.Response{}, nil
}

func (s *scripted) Shutdown(context.Context, *strategy.Context) error {
	s.mu.Lock()
	s.shutdown++
	s.mu.Unlock()
	return nil
}

func (s *scripted) SnapshotState() ([]byte, error) { return nil, nil }

func (s *scripted) RestoreState([]byte) error { return nil }

type fixture struct {
	feed      *bus.Feed
	ledger    *state.Ledger
	metrics   *obs.Metrics
	sc        *strategy.Context
	strat     *scripted
	mu        sync.Mutex
	submitted []schema.OrderIntent
	submitErr error
}

func newFixture(t *testing.T, backlog int) *fixture {
	t.Helper()
	f := &fixture{
		feed:    bus.NewFeed(backlog),
		ledger:  state.NewLedger(),
		metrics: obs.NewMetrics(),
		strat:   &scripted{},
	}
	router := og.RouterFunc(func(_ context.Context, intent schema.OrderIntent) (string, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.submitErr != nil {
			return "", f.submitErr
		}
		f.submitted = append(f.submitted, intent)
		return intent.ClientTag, nil
	})
	sc, err := strategy.NewContext(router, f.ledger, nil, f.metrics)
	require.NoError(t, err)
	f.sc = sc
	return f
}

func (f *fixture) engine(t *testing.T, fills <-chan schema.FillEvent, interval time.Duration) *Engine {
	t.Helper()
	e, err := New(Config{
		Market:   f.feed.Subscribe(),
		Fills:    fills,
		Strategy: f.strat,
		Context:  f.sc,
		Ledger:   f.ledger,
		Metrics:  f.metrics,
		Interval: interval,
	})
	require.NoError(t, err)
	return e
}

func candle(price float64) schema.MarketEvent {
	return schema.NewCandleEvent(schema.Candle{Instrument: "BTC", Close: price, Interval: "1m"})
}

func TestRunDispatchesInOrderAndExitsOnMarketClose(t *testing.T) {
	f := newFixture(t, 16)
	f.strat.onEvent = func(ev schema.MarketEvent) (strategy.Response, error) {
		if ev.Price() != 2 {
			return strategy.Response{}, nil
		}
		return strategy.Response{Intents: []schema.OrderIntent{
			{Instrument: "BTC", Side: schema.OrderSideBuy, ClientTag: "first"},
			{Instrument: "BTC", Side: schema.OrderSideSell, ClientTag: "second"},
		}}, nil
	}
	e := f.engine(t, nil, 0)

	for _, px := range []float64{1, 2, 3} {
		require.NoError(t, f.feed.Publish(candle(px)))
	}
	f.feed.Close()

	require.NoError(t, e.Run(t.Context()))
	assert.Equal(t, []float64{1, 2, 3}, f.strat.prices)
	require.Len(t, f.submitted, 2)
	assert.Equal(t, "first", f.submitted[0].ClientTag)
	assert.Equal(t, "second", f.submitted[1].ClientTag)
	assert.NotEmpty(t, f.submitted[0].Token)
	assert.Equal(t, 1, f.strat.shutdown)
	assert.Zero(t, f.feed.Subscribers())

	snap := f.metrics.Snapshot()
	assert.Equal(t, uint64(3), snap.MarketEvents)
	assert.Equal(t, uint64(2), snap.Intents)

	require.Error(t, e.Run(t.Context()), "run twice")
}

func TestRunContinuesAfterLag(t *testing.T) {
	f := newFixture(t, 2)
	e := f.engine(t, nil, 0)

	for px := 1; px <= 5; px++ {
		require.NoError(t, f.feed.Publish(candle(float64(px))))
	}
	f.feed.Close()

	require.NoError(t, e.Run(t.Context()))
	assert.Equal(t, []float64{4, 5}, f.strat.prices)
	assert.Equal(t, uint64(3), f.metrics.Snapshot().LaggedEvents)
}

func TestFillAppliedBeforeOnFill(t *testing.T) {
	f := newFixture(t, 4)
	fills := make(chan schema.FillEvent, 2)
	fills <- schema.FillEvent{Instrument: "BTC", Price: 10, Size: 1, IsBuy: true}
	fills <- schema.FillEvent{Instrument: "BTC", Price: 11, Size: 1, IsBuy: false}
	close(fills)

	f.strat.onFill = func(sc *strategy.Context, fill schema.FillEvent) (strategy.Response, error) {
		if !fill.IsBuy {
			f.feed.Close()
			return strategy.Response{Intents: []schema.OrderIntent{{Instrument: "BTC", Side: schema.OrderSideBuy, ClientTag: "after-fill"}}}, nil
		}
		return strategy.Response{}, nil
	}
	e := f.engine(t, fills, 0)

	require.NoError(t, e.Run(t.Context()))
	assert.Equal(t, []float64{1, 0}, f.strat.netSeen)
	require.Len(t, f.submitted, 1)
	assert.Equal(t, "after-fill", f.submitted[0].ClientTag)
	assert.Equal(t, 0.0, f.ledger.Net("BTC"))
	assert.Equal(t, uint64(2), f.metrics.Snapshot().Fills)
}

func TestClosedFillStreamDegradesToMarketOnly(t *testing.T) {
	f := newFixture(t, 16)
	fills := make(chan schema.FillEvent)
	close(fills)
	e := f.engine(t, fills, 0)

	done := make(chan error, 1)
	go func() { done <- e.Run(t.Context()) }()

	for px := 1; px <= 3; px++ {
		time.Sleep(5 * time.Millisecond)
		require.NoError(t, f.feed.Publish(candle(float64(px))))
	}
	f.feed.Close()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not exit")
	}
	assert.Equal(t, []float64{1, 2, 3}, f.strat.prices)
	assert.Empty(t, f.strat.fills)
}

func TestSubmitErrorAbortsRun(t *testing.T) {
	f := newFixture(t, 16)
	f.submitErr = errors.New("venue down")
	f.strat.onEvent = func(schema.MarketEvent) (strategy.Response, error) {
		return strategy.Response{Intents: []schema.OrderIntent{{Instrument: "BTC", Side: schema.OrderSideBuy}}}, nil
	}
	e := f.engine(t, nil, 0)

	require.NoError(t, f.feed.Publish(candle(1)))
	require.NoError(t, f.feed.Publish(candle(2)))

	err := e.Run(t.Context())
	require.ErrorIs(t, err, f.submitErr)
	assert.Equal(t, []float64{1}, f.strat.prices)
	assert.Equal(t, 1, f.strat.shutdown)
	assert.Equal(t, uint64(1), f.metrics.Snapshot().SubmitFailures)
}

func TestStrategyErrorAbortsRun(t *testing.T) {
	f := newFixture(t, 16)
	boom := errors.New("bootstrap failed")
	f.strat.onEvent = func(schema.MarketEvent) (strategy.Response, error) {
		return strategy.Response{}, boom
	}
	e := f.engine(t, nil, 0)
	require.NoError(t, f.feed.Publish(candle(1)))

	require.ErrorIs(t, e.Run(t.Context()), boom)
}

func TestIntervalHook(t *testing.T) {
	f := newFixture(t, 4)
	f.strat.onInterval = func() (strategy.Response, error) {
		f.strat.mu.Lock()
		ticks := f.strat.ticks
		f.strat.mu.Unlock()
		if ticks == 3 {
			f.feed.Close()
		}
		return strategy.Response{}, nil
	}
	e := f.engine(t, nil, time.Millisecond)

	require.NoError(t, e.Run(t.Context()))
	assert.GreaterOrEqual(t, f.strat.ticks, 3)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	f := newFixture(t, 4)
	e := f.engine(t, nil, 0)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.ErrorIs(t, e.Run(ctx), context.Canceled)
	assert.Equal(t, 1, f.strat.shutdown)
}

func TestNewValidates(t *testing.T) {
	f := newFixture(t, 4)
	base := Config{Market: f.feed.Subscribe(), Strategy: f.strat, Context: f.sc, Ledger: f.ledger}

	cfg := base
	cfg.Market = nil
	_, err := New(cfg)
	require.ErrorIs(t, err, exception.ErrNilInstance)

	cfg = base
	cfg.Strategy = nil
	_, err = New(cfg)
	require.ErrorIs(t, err, exception.ErrNilInstance)

	cfg = base
	cfg.Interval = -time.Second
	_, err = New(cfg)
	require.ErrorIs(t, err, exception.ErrInvalidArgument)

	_, err = New(base)
	require.NoError(t, err)
}
