package marketdata

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/yanun0323/errors"

	"tradeexec/internal/schema"
	"tradeexec/pkg/exception"
)

// SyntheticConfig describes a seeded random-walk candle generator.
type SyntheticConfig struct {
	Instrument string
	Interval   string
	Seed       int64
	StartPrice float64
	// Volatility is the per-candle standard deviation as a fraction of price.
	Volatility float64
	// Limit stops the stream after that many candles; zero streams until ctx ends.
	Limit int
	// Pace sleeps between candles; zero emits as fast as possible.
	Pace  time.Duration
	Start time.Time
}

// Synthetic generates deterministic candles. It serves both Source and History.
type Synthetic struct {
	cfg  SyntheticConfig
	step time.Duration
}

// NewSynthetic validates cfg and fills defaults.
func NewSynthetic(cfg SyntheticConfig) (*Synthetic, error) {
	if cfg.Instrument == "" {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "synthetic instrument is empty")
	}
	if cfg.Interval == "" {
		cfg.Interval = "1m"
	}
	step, err := IntervalDuration(cfg.Interval)
	if err != nil {
		return nil, err
	}
	if cfg.StartPrice <= 0 {
		cfg.StartPrice = 100
	}
	if cfg.Volatility <= 0 {
		cfg.Volatility = 0.001
	}
	if cfg.Limit < 0 {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "synthetic limit must be >= 0")
	}
	if cfg.Start.IsZero() {
		cfg.Start = time.Unix(0, 0).UTC()
	}
	return &Synthetic{cfg: cfg, step: step}, nil
}

// Stream emits candles following the seeded walk.
func (s *Synthetic) Stream(ctx context.Context, emit func(schema.MarketEvent)) error {
	rng := rand.New(rand.NewSource(s.cfg.Seed))
	price := s.cfg.StartPrice
	ts := s.cfg.Start

	var ticker *time.Ticker
	if s.cfg.Pace > 0 {
		ticker = time.NewTicker(s.cfg.Pace)
		defer ticker.Stop()
	}

	for i := 0; s.cfg.Limit == 0 || i < s.cfg.Limit; i++ {
		if ticker != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		price = s.walk(rng, price)
		ts = ts.Add(s.step)
		emit(schema.NewCandleEvent(schema.Candle{
			Instrument: s.cfg.Instrument,
			Close:      price,
			Interval:   s.cfg.Interval,
			Timestamp:  ts,
		}))
	}
	return nil
}

// Closes returns count closes of a separate walk that ends at StartPrice,
// so live candles continue from where history stops.
func (s *Synthetic) Closes(ctx context.Context, instrument, interval string, count int) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if instrument != s.cfg.Instrument {
		return nil, errors.Wrapf(exception.ErrHistoryUnavailable, "instrument %s", instrument).With("configured", s.cfg.Instrument)
	}
	if interval != s.cfg.Interval {
		return nil, errors.Wrapf(exception.ErrHistoryUnavailable, "interval %s", interval).With("configured", s.cfg.Interval)
	}
	if count <= 0 {
		return nil, nil
	}

	rng := rand.New(rand.NewSource(^s.cfg.Seed))
	closes := make([]float64, count)
	price := s.cfg.StartPrice
	for i := count - 1; i >= 0; i-- {
		closes[i] = price
		price = s.walk(rng, price)
	}
	return closes, nil
}

func (s *Synthetic) walk(rng *rand.Rand, price float64) float64 {
	next := price * (1 + rng.NormFloat64()*s.cfg.Volatility)
	if next <= 0 || math.IsNaN(next) {
		return price
	}
	return math.Round(next*1e8) / 1e8
}
