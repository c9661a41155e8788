package main

import (
	"context"
	"flag"
	"log"
	"time"

	"tradeexec/internal/marketdata"
	"tradeexec/internal/recorder"
)

func main() {
	dir := flag.String("dir", "data/market", "Journal directory for market data")
	instrument := flag.String("instrument", "BTC", "Instrument name")
	interval := flag.String("interval", "1m", "Candle interval")
	count := flag.Int("count", 500, "Number of candles to generate")
	seed := flag.Int64("seed", 1, "Random walk seed")
	startPrice := flag.Float64("start-price", 100, "First close")
	volatility := flag.Float64("volatility", 0.001, "Per candle relative volatility")
	start := flag.Int64("start", 0, "Unix seconds of the first candle (0=now minus count intervals)")
	flag.Parse()

	if *count <= 0 {
		log.Fatalf("count must be > 0")
	}
	step, err := marketdata.IntervalDuration(*interval)
	if err != nil {
		log.Fatalf("invalid interval: %v", err)
	}
	first := time.Unix(*start, 0).UTC()
	if *start == 0 {
		first = time.Now().UTC().Truncate(step).Add(-time.Duration(*count) * step)
	}

	src, err := marketdata.NewSynthetic(marketdata.SyntheticConfig{
		Instrument: *instrument,
		Interval:   *interval,
		Seed:       *seed,
		StartPrice: *startPrice,
		Volatility: *volatility,
		Limit:      *count,
		Start:      first,
	})
	if err != nil {
		log.Fatalf("source init failed: %v", err)
	}

	ctx := context.Background()
	cfg := recorder.DefaultConfig(*dir)
	if *count >= cfg.QueueSize {
		cfg.QueueSize = *count + 1
	}
	journal, err := recorder.OpenJournal(ctx, cfg, 1)
	if err != nil {
		log.Fatalf("journal open failed: %v", err)
	}
	n, err := marketdata.Record(ctx, src, journal)
	if cerr := journal.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		log.Fatalf("record failed after %d events: %v", n, err)
	}
	log.Printf("recorded %d candles: instrument=%s interval=%s dir=%s", n, *instrument, *interval, *dir)
}
