// Package macross is the moving-average crossover reference strategy.
package macross

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"tradeexec/internal/indicator"
	"tradeexec/internal/marketdata"
	"tradeexec/internal/risk"
	"tradeexec/internal/schema"
	"tradeexec/internal/storage"
	"tradeexec/internal/strategy"
	"tradeexec/pkg/backoff"
	"tradeexec/pkg/exception"
)

const (
	// ID is the registry id of the crossover strategy.
	ID = "ma_crossover"

	snapshotPrefix = "ma_crossover"
	rateWindow     = time.Minute
)

// Signal is the last direction the strategy acted on.
type Signal string

const (
	SignalFlat  Signal = "Flat"
	SignalLong  Signal = "Long"
	SignalShort Signal = "Short"
)

func (s Signal) valid() bool {
	return s == SignalFlat || s == SignalLong || s == SignalShort
}

// Snapshot is the persisted state of one instance.
type Snapshot struct {
	ShortValues []float64 `json:"short_values"`
	LongValues  []float64 `json:"long_values"`
	LastSignal  Signal    `json:"last_signal"`
}

// Decision is journaled whenever an intent is emitted.
type Decision struct {
	Strategy string    `json:"strategy"`
	Asset    string    `json:"asset"`
	From     Signal    `json:"from"`
	To       Signal    `json:"to"`
	Price    float64   `json:"price"`
	Short    float64   `json:"short"`
	Long     float64   `json:"long"`
	Net      float64   `json:"net"`
	Intent   string    `json:"intent"`
	At       time.Time `json:"at"`
}

// Strategy trades the crossing of a short and a long simple moving average.
type Strategy struct {
	strategy.Nop

	params      Params
	short       *indicator.MovingAverage
	long        *indicator.MovingAverage
	lastSignal  Signal
	limiter     *risk.RateLimiter
	limits      risk.Limits
	history     marketdata.History
	store       storage.SnapshotStore
	snapshotKey string
	bootstrap   backoff.Backoff
	started     bool
}

// Register adds the crossover builder to reg.
func Register(reg *strategy.Registry) error {
	return reg.Register(ID, Build)
}

// Build implements strategy.Builder.
func Build(params []byte, bc strategy.BuilderContext) (strategy.Strategy, error) {
	s, err := New(params, bc)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// New validates params, then restores any saved snapshot for the asset.
func New(raw []byte, bc strategy.BuilderContext, opts ...risk.Option) (*Strategy, error) {
	p, err := ParseParams(raw)
	if err != nil {
		return nil, err
	}
	if bc.Snapshots == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "snapshot store")
	}

	s := &Strategy{
		params:      p,
		short:       indicator.NewMovingAverage(p.ShortWindow),
		long:        indicator.NewMovingAverage(p.LongWindow),
		lastSignal:  SignalFlat,
		limiter:     risk.NewRateLimiter(p.MaxOrderRatePerMin, rateWindow, opts...),
		limits:      risk.Limits{MaxPosition: p.MaxPosition},
		history:     bc.History,
		store:       bc.Snapshots,
		snapshotKey: snapshotPrefix + "_" + storage.EscapeName(strings.ToLower(p.Asset)),
		bootstrap:   backoff.Default(),
	}

	var snap Snapshot
	ok, err := s.store.Load(s.snapshotKey, &snap)
	if err != nil {
		return nil, errors.Wrapf(err, "load snapshot %s", s.snapshotKey)
	}
	if ok {
		if err := s.restore(snap); err != nil {
			return nil, err
		}
		s.started = true
		logs.Infof("%s restored %s: signal=%s short=%d long=%d", ID, s.snapshotKey, s.lastSignal, len(snap.ShortValues), len(snap.LongValues))
	}
	return s, nil
}

func (s *Strategy) ID() string {
	return ID
}

// Params returns the normalized parameters.
func (s *Strategy) Params() Params {
	return s.params
}

// Signal returns the last acted-upon direction.
func (s *Strategy) Signal() Signal {
	return s.lastSignal
}

// SnapshotKey returns the store key used for this asset.
func (s *Strategy) SnapshotKey() string {
	return s.snapshotKey
}

// OnEvent runs the crossover state machine for events on the configured asset.
func (s *Strategy) OnEvent(ctx context.Context, sc *strategy.Context, ev schema.MarketEvent) (strategy.Response, error) {
	if ev.Instrument() != s.params.Asset {
		return strategy.Response{}, nil
	}

	var resp strategy.Response
	alert, err := s.ensureBootstrap(ctx)
	if err != nil {
		return strategy.Response{}, err
	}
	if alert != "" {
		resp = strategy.Alert(alert)
	}

	price := ev.Price()
	short, shortOK := s.short.Update(price)
	long, longOK := s.long.Update(price)
	if !shortOK || !longOK {
		return resp, nil
	}

	target := SignalFlat
	switch {
	case short > long:
		target = SignalLong
	case short < long:
		target = SignalShort
	}
	if target == SignalFlat || target == s.lastSignal {
		return resp, nil
	}

	if !s.limiter.Allow() {
		sc.Metrics().IncRateLimited()
		logs.Infof("%s %s: rate limiter dropped %s signal", ID, s.params.Asset, target)
		return resp, nil
	}

	net := sc.Net(s.params.Asset)
	side := schema.OrderSideSell
	if target == SignalLong {
		side = schema.OrderSideBuy
	}
	reduceOnly := risk.ReduceOnly(side, net)
	if !s.limits.Admit(net, side, reduceOnly) {
		sc.Metrics().IncRiskRejected()
		logs.Infof("%s %s: %s refused at net=%v cap=%v", ID, s.params.Asset, side, net, s.params.MaxPosition)
		return resp, nil
	}

	intent := schema.OrderIntent{
		Instrument:  s.params.Asset,
		Side:        side,
		Size:        s.params.TradeSize,
		LimitPrice:  s.limitPrice(price, side),
		TimeInForce: schema.TimeInForceIOC,
		ReduceOnly:  reduceOnly,
		ClientTag:   fmt.Sprintf("ma_cross_%s", target),
	}

	from := s.lastSignal
	s.lastSignal = target
	if err := s.persist(); err != nil {
		return strategy.Response{}, err
	}
	sc.Record(ctx, schema.EventStrategyDecision, Decision{
		Strategy: ID,
		Asset:    s.params.Asset,
		From:     from,
		To:       target,
		Price:    price,
		Short:    short,
		Long:     long,
		Net:      net,
		Intent:   intent.Describe(),
		At:       ev.Timestamp(),
	})

	resp.Intents = append(resp.Intents, intent)
	return resp, nil
}

// OnFill resynchronizes the signal from the asset's post-fill net position
// and persists on every fill, including fills of other instruments.
func (s *Strategy) OnFill(ctx context.Context, sc *strategy.Context, fill schema.FillEvent) (strategy.Response, error) {
	net := sc.Net(s.params.Asset)
	switch {
	case net > 0:
		s.lastSignal = SignalLong
	case net < 0:
		s.lastSignal = SignalShort
	default:
		s.lastSignal = SignalFlat
	}
	if err := s.persist(); err != nil {
		return strategy.Response{}, err
	}
	return strategy.Response{}, nil
}

// Warmup bootstraps the averages from history ahead of the first event.
func (s *Strategy) Warmup(ctx context.Context) error {
	alert, err := s.ensureBootstrap(ctx)
	if err != nil {
		return err
	}
	if alert != "" {
		logs.Errorf("%s", alert)
	}
	return nil
}

// Shutdown persists the final state.
func (s *Strategy) Shutdown(ctx context.Context, sc *strategy.Context) error {
	return s.persist()
}

func (s *Strategy) SnapshotState() ([]byte, error) {
	data, err := sonic.Marshal(s.snapshot())
	if err != nil {
		return nil, errors.Wrapf(exception.ErrSnapshotEncode, "%s: %v", s.snapshotKey, err)
	}
	return data, nil
}

func (s *Strategy) RestoreState(data []byte) error {
	var snap Snapshot
	if err := sonic.Unmarshal(data, &snap); err != nil {
		return errors.Wrapf(exception.ErrSnapshotDecode, "%s: %v", s.snapshotKey, err)
	}
	return s.restore(snap)
}

func (s *Strategy) ensureBootstrap(ctx context.Context) (string, error) {
	if s.started {
		return "", nil
	}
	if s.short.IsReady() && s.long.IsReady() {
		s.started = true
		return "", nil
	}
	if s.history == nil {
		return "", errors.Wrapf(exception.ErrHistoryUnavailable, "%s has no history source", ID)
	}

	var closes []float64
	err := s.bootstrap.Retry(ctx, s.params.BootstrapRetries, func(attempt int) error {
		var err error
		closes, err = s.history.Closes(ctx, s.params.Asset, s.params.CandleInterval, s.params.BootstrapCandles)
		if err != nil {
			logs.Errorf("%s %s: bootstrap attempt %d/%d failed: %+v", ID, s.params.Asset, attempt, s.params.BootstrapRetries, err)
		}
		return err
	})
	if err != nil {
		return "", errors.Wrapf(err, "bootstrap %s", s.params.Asset)
	}

	for _, px := range closes {
		s.short.Update(px)
		s.long.Update(px)
	}
	s.started = true
	if err := s.persist(); err != nil {
		return "", err
	}
	logs.Infof("%s %s: bootstrapped with %d closes", ID, s.params.Asset, len(closes))

	if !s.long.IsReady() {
		return fmt.Sprintf("%s %s: history returned %d closes, long window needs %d", ID, s.params.Asset, len(closes), s.params.LongWindow), nil
	}
	return "", nil
}

func (s *Strategy) limitPrice(price float64, side schema.OrderSide) string {
	bps := s.params.SlippageBps / 10_000
	if side == schema.OrderSideBuy {
		return schema.FormatDecimal(price * (1 + bps))
	}
	return schema.FormatDecimal(price * (1 - bps))
}

func (s *Strategy) snapshot() Snapshot {
	return Snapshot{
		ShortValues: s.short.Values(),
		LongValues:  s.long.Values(),
		LastSignal:  s.lastSignal,
	}
}

func (s *Strategy) restore(snap Snapshot) error {
	if snap.LastSignal == "" {
		snap.LastSignal = SignalFlat
	}
	if !snap.LastSignal.valid() {
		return errors.Wrapf(exception.ErrSnapshotDecode, "%s: unknown signal %q", s.snapshotKey, snap.LastSignal)
	}
	s.short.Seed(snap.ShortValues)
	s.long.Seed(snap.LongValues)
	s.lastSignal = snap.LastSignal
	return nil
}

func (s *Strategy) persist() error {
	if err := s.store.Save(s.snapshotKey, s.snapshot()); err != nil {
		return errors.Wrapf(err, "persist %s", s.snapshotKey)
	}
	return nil
}
