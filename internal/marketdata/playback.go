package marketdata

import (
	"context"
	"sync"

	"github.com/yanun0323/errors"

	"tradeexec/internal/recorder"
	"tradeexec/internal/schema"
	"tradeexec/pkg/exception"
)

// PlaybackConfig selects a recorded market data journal.
type PlaybackConfig struct {
	Dir        string
	FilePrefix string
	// Instrument filters events; empty replays every instrument.
	Instrument string
	// Speed paces replay by recorded event time; zero replays without pacing.
	Speed float64
}

// Playback replays MarketData journal records.
// Closes serves the leading candles of the recording, and Stream then
// starts after them so history and live replay never overlap.
type Playback struct {
	cfg PlaybackConfig

	mu      sync.Mutex
	skipped int
}

// NewPlayback creates a playback source.
func NewPlayback(cfg PlaybackConfig) (*Playback, error) {
	if cfg.Dir == "" {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "playback dir is empty")
	}
	if cfg.Speed < 0 {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "playback speed must be >= 0")
	}
	return &Playback{cfg: cfg}, nil
}

func (p *Playback) run(ctx context.Context, speed float64, fn func(schema.MarketEvent) error) error {
	pb, err := recorder.NewPlayback(recorder.PlaybackConfig{
		Dir:        p.cfg.Dir,
		FilePrefix: p.cfg.FilePrefix,
		Speed:      speed,
		Types:      []schema.EventType{schema.EventMarketData},
	})
	if err != nil {
		return err
	}
	return pb.Run(ctx, func(header schema.EventHeader, payload []byte) error {
		var ev schema.MarketEvent
		if err := recorder.DecodeRecord(payload, &ev); err != nil {
			return errors.Wrapf(err, "decode market data seq=%d", header.Seq)
		}
		if p.cfg.Instrument != "" && ev.Instrument() != p.cfg.Instrument {
			return nil
		}
		return fn(ev)
	})
}

// Stream emits recorded events in journal order, skipping those served as history.
func (p *Playback) Stream(ctx context.Context, emit func(schema.MarketEvent)) error {
	p.mu.Lock()
	skip := p.skipped
	p.mu.Unlock()

	var seen int
	return p.run(ctx, p.cfg.Speed, func(ev schema.MarketEvent) error {
		seen++
		if seen <= skip {
			return nil
		}
		emit(ev)
		return nil
	})
}

// Closes returns up to count leading candle closes of the recording.
func (p *Playback) Closes(ctx context.Context, instrument, interval string, count int) ([]float64, error) {
	if count <= 0 {
		return nil, nil
	}
	closes := make([]float64, 0, count)
	var seen int
	errDone := errors.New("history complete")
	err := p.run(ctx, 0, func(ev schema.MarketEvent) error {
		seen++
		if ev.Instrument() != instrument || ev.Candle == nil || ev.Candle.Interval != interval {
			return nil
		}
		closes = append(closes, ev.Candle.Close)
		if len(closes) == count {
			return errDone
		}
		return nil
	})
	if err != nil && err != errDone {
		return nil, err
	}
	if len(closes) == 0 {
		return nil, errors.Wrapf(exception.ErrHistoryUnavailable, "no recorded %s %s candles", instrument, interval)
	}

	p.mu.Lock()
	p.skipped = seen
	p.mu.Unlock()
	return closes, nil
}

// Record appends every event from src to the journal as MarketData records.
func Record(ctx context.Context, src Source, journal *recorder.Journal) (int, error) {
	var (
		count  int
		last   error
		failed int
	)
	err := src.Stream(ctx, func(ev schema.MarketEvent) {
		var ts int64
		if at := ev.Timestamp(); !at.IsZero() {
			ts = at.UnixNano()
		}
		if err := journal.AppendAt(ctx, schema.EventMarketData, ts, ev); err != nil {
			last = err
			failed++
			return
		}
		count++
	})
	if err != nil {
		return count, err
	}
	if failed > 0 {
		return count, errors.Wrapf(last, "%d market data records not journaled", failed)
	}
	return count, nil
}
