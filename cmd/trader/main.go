package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	xerrors "github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"tradeexec/internal/bus"
	"tradeexec/internal/chaos"
	"tradeexec/internal/engine"
	"tradeexec/internal/marketdata"
	"tradeexec/internal/obs"
	"tradeexec/internal/og"
	"tradeexec/internal/ops"
	"tradeexec/internal/recorder"
	"tradeexec/internal/schema"
	"tradeexec/internal/state"
	"tradeexec/internal/storage"
	"tradeexec/internal/strategy"
	"tradeexec/internal/strategy/macross"
	"tradeexec/pkg/conn"
)

const journalSource = 1

type emptyLogger struct{}

func (emptyLogger) Infof(_ string, _ ...interface{})  {}
func (emptyLogger) Debugf(_ string, _ ...interface{}) {}
func (emptyLogger) Errorf(_ string, _ ...interface{}) {}

type marketSource interface {
	marketdata.Source
	marketdata.History
}

func main() {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	pyroscopeAddr := flag.String("pyroscope", "", "Pyroscope server address (overrides telemetry.pyroscope_address)")
	snapshotPath := flag.String("positions", "", "Position snapshot output (default: <journal_dir>/positions.json)")
	flag.Parse()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *pyroscopeAddr != "" {
		loaded.Telemetry.PyroscopeAddress = *pyroscopeAddr
	}

	if addr := loaded.Telemetry.PyroscopeAddress; addr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: loaded.Telemetry.ApplicationName,
			ServerAddress:   addr,
			Tags:            map[string]string{"strategy": loaded.Strategy.ID},
			Logger:          emptyLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("start pyroscope: %v", err)
		}
		defer func() { _ = profiler.Stop() }()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		select {
		case <-sys.Shutdown():
			stop()
		case <-ctx.Done():
		}
	}()

	out := *snapshotPath
	if out == "" {
		out = filepath.Join(loaded.Persistence.JournalDir, "positions.json")
	}
	if err := run(ctx, loaded, out); err != nil {
		log.Fatalf("trader failed: %v", err)
	}
}

func run(ctx context.Context, loaded ops.Loaded, positionsPath string) error {
	var journal *recorder.Journal
	if loaded.Features.EnableJournal {
		j, err := recorder.OpenJournal(context.WithoutCancel(ctx), recorder.DefaultConfig(loaded.Persistence.JournalDir), journalSource)
		if err != nil {
			return err
		}
		journal = j
		defer func() {
			if err := journal.Close(); err != nil {
				logs.Errorf("close journal: %+v", err)
			}
		}()
	}

	snapshots, closeStore, err := openSnapshotStore(loaded.Persistence)
	if err != nil {
		return err
	}
	defer closeStore()

	source, err := openMarket(loaded.Market)
	if err != nil {
		return err
	}

	registry := strategy.NewRegistry()
	if err := macross.Register(registry); err != nil {
		return err
	}
	strat, err := registry.Build(loaded.Strategy.ID, loaded.Strategy.Params, strategy.BuilderContext{
		History:   source,
		Snapshots: snapshots,
		Journal:   journal,
	})
	if err != nil {
		return err
	}

	ledger := state.NewLedger()
	metrics := obs.NewMetrics()
	// Fill-blind runs never read Fills.
	gateway := og.NewPaperGateway(og.PaperConfig{
		Latency:      loaded.Paper.Latency,
		Journal:      journal,
		IDPrefix:     loaded.Paper.IDPrefix,
		DiscardFills: !loaded.Features.EnableFills,
	})
	defer gateway.Close()

	sc, err := strategy.NewContext(gateway, ledger, journal, metrics)
	if err != nil {
		return err
	}

	feed := bus.NewFeed(loaded.Backlog)
	sub := feed.Subscribe()

	var fills <-chan schema.FillEvent
	if loaded.Features.EnableFills {
		fills = gateway.Fills()
	}
	eng, err := engine.New(engine.Config{
		Market:       sub,
		Fills:        fills,
		Strategy:     strat,
		Context:      sc,
		Ledger:       ledger,
		Metrics:      metrics,
		Interval:     loaded.Engine.Interval,
		RecordMarket: loaded.Engine.RecordMarket,
	})
	if err != nil {
		return err
	}

	var stream bus.Source = source
	if loaded.Market.Chaos.Enabled() {
		wrapped, err := chaos.Wrap(source, loaded.Market.Chaos)
		if err != nil {
			return err
		}
		stream = wrapped
		logs.Infof("market chaos enabled: %+v", loaded.Market.Chaos)
	}

	if err := startFeed(ctx, strat, feed, stream); err != nil {
		return err
	}

	logs.Infof("trader started: strategy=%s source=%s fills=%t journal=%t",
		loaded.Strategy.ID, loaded.Market.Source, loaded.Features.EnableFills, loaded.Features.EnableJournal)
	runErr := eng.Run(ctx)
	feed.Close()

	snapshot := ledger.SnapshotWithMeta(journal.LastSeq(), time.Now().UTC().UnixNano())
	if journal != nil {
		if err := state.WriteSnapshot(positionsPath, snapshot); err != nil {
			logs.Errorf("write positions snapshot: %+v", err)
		}
	}

	m := metrics.Snapshot()
	logs.Infof("metrics: market=%d fills=%d intents=%d submit_failures=%d lagged=%d rate_limited=%d risk_rejected=%d journal_errors=%d market_latency=%+v submit_latency=%+v",
		m.MarketEvents, m.Fills, m.Intents, m.SubmitFailures, m.LaggedEvents, m.RateLimited, m.RiskRejected, m.JournalErrors,
		m.MarketLatency, m.SubmitLatency)
	logs.Infof("positions: %+v", snapshot.Positions)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// startFeed warms the strategy from history and only then starts streaming,
// so playback never replays the candles the bootstrap consumed.
func startFeed(ctx context.Context, strat strategy.Strategy, feed *bus.Feed, stream bus.Source) error {
	if w, ok := strat.(strategy.Warmer); ok {
		if err := w.Warmup(ctx); err != nil {
			return xerrors.Wrapf(err, "warm up %s", strat.ID())
		}
	}
	go func() {
		if err := feed.Run(ctx, stream); err != nil && !errors.Is(err, context.Canceled) {
			logs.Errorf("market source stopped: %+v", err)
		}
	}()
	return nil
}

func openSnapshotStore(cfg ops.PersistenceConfig) (storage.SnapshotStore, func(), error) {
	switch cfg.Driver {
	case ops.DriverSQLite, ops.DriverPostgres:
		opt := conn.Option{Driver: conn.Driver(cfg.Driver)}
		if cfg.Driver == ops.DriverSQLite {
			opt.Path = cfg.DSN
		} else {
			opt.ConnString = cfg.DSN
		}
		client, err := conn.New(opt)
		if err != nil {
			return nil, nil, err
		}
		store, err := storage.NewGormStore(client.DB())
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return store, func() {
			if err := client.Close(); err != nil {
				logs.Errorf("close snapshot db: %+v", err)
			}
		}, nil
	default:
		store, err := storage.NewFileStore(cfg.SnapshotPath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}

func openMarket(cfg ops.Market) (marketSource, error) {
	if cfg.Source == ops.SourcePlayback {
		return marketdata.NewPlayback(cfg.Playback)
	}
	return marketdata.NewSynthetic(cfg.Synthetic)
}
