package ops

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"tradeexec/internal/chaos"
	"tradeexec/internal/marketdata"
	"tradeexec/pkg/conn"
	"tradeexec/pkg/exception"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Telemetry   TelemetryConfig    `json:"telemetry"`
	Persistence PersistenceConfig  `json:"persistence"`
	Feed        FeedConfig         `json:"feed"`
	Market      MarketConfig       `json:"market"`
	Paper       PaperConfig        `json:"paper"`
	Engine      EngineConfig       `json:"engine"`
	Features    FeatureFlagsConfig `json:"features"`
	Strategies  []StrategyConfig   `json:"strategies"`
}

// TelemetryConfig enables optional continuous profiling.
type TelemetryConfig struct {
	PyroscopeAddress string `json:"pyroscope_address"`
	ApplicationName  string `json:"application_name"`
}

// PersistenceConfig selects the snapshot backend and journal location.
type PersistenceConfig struct {
	Driver       string `json:"driver"`
	SnapshotPath string `json:"snapshot_path"`
	JournalDir   string `json:"journal_dir"`
	DSN          string `json:"dsn"`
}

// FeedConfig sizes the per-subscriber backlog.
type FeedConfig struct {
	Backlog int `json:"backlog"`
}

// MarketConfig selects and tunes the market data source.
type MarketConfig struct {
	Source     string  `json:"source"`
	Instrument string  `json:"instrument"`
	Interval   string  `json:"interval"`
	Seed       int64   `json:"seed"`
	StartPrice float64 `json:"start_price"`
	Volatility float64 `json:"volatility"`
	Limit      int     `json:"limit"`
	Pace       string  `json:"pace"`
	Dir        string  `json:"dir"`
	Speed      float64 `json:"speed"`
	// Chaos perturbs the live stream; history is never perturbed.
	Chaos ChaosConfig `json:"chaos"`
}

// ChaosConfig injects faults into the market stream.
type ChaosConfig struct {
	Seed          int64   `json:"seed"`
	DropRate      float64 `json:"drop_rate"`
	DuplicateRate float64 `json:"duplicate_rate"`
	ReorderWindow int     `json:"reorder_window"`
	MaxDelay      string  `json:"max_delay"`
}

// PaperConfig tunes the simulated venue.
type PaperConfig struct {
	Latency  string `json:"latency"`
	IDPrefix string `json:"id_prefix"`
}

// EngineConfig tunes the execution loop.
type EngineConfig struct {
	Interval     string `json:"interval"`
	RecordMarket bool   `json:"record_market"`
}

// FeatureFlagsConfig captures optional runtime flags.
type FeatureFlagsConfig struct {
	EnableFills   *bool `json:"enable_fills"`
	EnableJournal *bool `json:"enable_journal"`
}

// StrategyConfig is one strategies[] entry; params stay raw for the builder.
type StrategyConfig struct {
	ID      string          `json:"id"`
	Enabled bool            `json:"enabled"`
	Params  json.RawMessage `json:"params"`
}

// Source kinds.
const (
	SourceSynthetic = "synthetic"
	SourcePlayback  = "playback"
)

// Persistence drivers.
const (
	DriverFile     = "file"
	DriverPostgres = string(conn.DriverPostgres)
	DriverSQLite   = string(conn.DriverSQLite)
)

// FeatureFlags are resolved runtime flags.
type FeatureFlags struct {
	EnableFills   bool
	EnableJournal bool
}

// Market is the resolved market data selection.
type Market struct {
	Source    string
	Synthetic marketdata.SyntheticConfig
	Playback  marketdata.PlaybackConfig
	Chaos     chaos.Config
}

// Engine is the resolved execution loop settings.
type Engine struct {
	Interval     time.Duration
	RecordMarket bool
}

// Paper is the resolved paper venue settings.
type Paper struct {
	Latency  time.Duration
	IDPrefix string
}

// StrategySpec names the strategy to build.
type StrategySpec struct {
	ID     string
	Params []byte
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Telemetry   TelemetryConfig
	Persistence PersistenceConfig
	Backlog     int
	Market      Market
	Paper       Paper
	Engine      Engine
	Features    FeatureFlags
	// Strategy is the first enabled entry of strategies[].
	Strategy StrategySpec
}

// Load reads a JSON config file and resolves defaults.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, errors.Wrap(err, "read config").With("path", path)
	}
	return Parse(data)
}

// Parse resolves a JSON config document.
func Parse(data []byte) (Loaded, error) {
	var cfg FileConfig
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, errors.Wrapf(exception.ErrConfig, "decode config: %v", err)
	}
	persistence, err := resolvePersistence(cfg.Persistence)
	if err != nil {
		return Loaded{}, err
	}
	market, err := resolveMarket(cfg.Market)
	if err != nil {
		return Loaded{}, err
	}
	paper, err := resolvePaper(cfg.Paper)
	if err != nil {
		return Loaded{}, err
	}
	engine, err := resolveEngine(cfg.Engine)
	if err != nil {
		return Loaded{}, err
	}
	spec, err := resolveStrategy(cfg.Strategies)
	if err != nil {
		return Loaded{}, err
	}
	telemetry := cfg.Telemetry
	if telemetry.ApplicationName == "" {
		telemetry.ApplicationName = "tradeexec"
	}
	backlog := cfg.Feed.Backlog
	if backlog < 0 {
		return Loaded{}, errors.Wrap(exception.ErrConfig, "feed backlog must be >= 0")
	}
	if backlog == 0 {
		backlog = 1024
	}
	return Loaded{
		Telemetry:   telemetry,
		Persistence: persistence,
		Backlog:     backlog,
		Market:      market,
		Paper:       paper,
		Engine:      engine,
		Features:    resolveFeatures(cfg.Features),
		Strategy:    spec,
	}, nil
}

func resolvePersistence(cfg PersistenceConfig) (PersistenceConfig, error) {
	cfg.Driver = strings.ToLower(strings.TrimSpace(cfg.Driver))
	if cfg.Driver == "" {
		cfg.Driver = DriverFile
	}
	if cfg.JournalDir == "" {
		cfg.JournalDir = "data/journal"
	}
	switch cfg.Driver {
	case DriverFile:
		if cfg.SnapshotPath == "" {
			cfg.SnapshotPath = "data/snapshots"
		}
	case DriverSQLite:
		if cfg.DSN == "" {
			cfg.DSN = "data/snapshots.db"
		}
	case DriverPostgres:
		if cfg.DSN == "" {
			return PersistenceConfig{}, errors.Wrap(exception.ErrConfig, "postgres persistence requires dsn")
		}
	default:
		return PersistenceConfig{}, errors.Wrapf(exception.ErrConfig, "unknown persistence driver %q", cfg.Driver)
	}
	return cfg, nil
}

func resolveMarket(cfg MarketConfig) (Market, error) {
	source := strings.ToLower(strings.TrimSpace(cfg.Source))
	if source == "" {
		source = SourceSynthetic
	}
	interval := cfg.Interval
	if interval == "" {
		interval = "1m"
	}
	if _, err := marketdata.IntervalDuration(interval); err != nil {
		return Market{}, errors.Wrapf(exception.ErrConfig, "market interval: %v", err)
	}
	pace, err := parseDuration("market pace", cfg.Pace)
	if err != nil {
		return Market{}, err
	}
	faults, err := resolveChaos(cfg.Chaos)
	if err != nil {
		return Market{}, err
	}

	switch source {
	case SourceSynthetic:
		if cfg.Instrument == "" {
			return Market{}, errors.Wrap(exception.ErrConfig, "synthetic market requires instrument")
		}
		if cfg.Limit < 0 {
			return Market{}, errors.Wrap(exception.ErrConfig, "market limit must be >= 0")
		}
		return Market{Source: source, Chaos: faults, Synthetic: marketdata.SyntheticConfig{
			Instrument: cfg.Instrument,
			Interval:   interval,
			Seed:       cfg.Seed,
			StartPrice: cfg.StartPrice,
			Volatility: cfg.Volatility,
			Limit:      cfg.Limit,
			Pace:       pace,
		}}, nil
	case SourcePlayback:
		if cfg.Dir == "" {
			return Market{}, errors.Wrap(exception.ErrConfig, "playback market requires dir")
		}
		if cfg.Speed < 0 {
			return Market{}, errors.Wrap(exception.ErrConfig, "playback speed must be >= 0")
		}
		return Market{Source: source, Chaos: faults, Playback: marketdata.PlaybackConfig{
			Dir:        cfg.Dir,
			Instrument: cfg.Instrument,
			Speed:      cfg.Speed,
		}}, nil
	default:
		return Market{}, errors.Wrapf(exception.ErrConfig, "unknown market source %q", cfg.Source)
	}
}

func resolveChaos(cfg ChaosConfig) (chaos.Config, error) {
	delay, err := parseDuration("chaos max delay", cfg.MaxDelay)
	if err != nil {
		return chaos.Config{}, err
	}
	out := chaos.Config{
		Seed:          cfg.Seed,
		DropRate:      cfg.DropRate,
		DuplicateRate: cfg.DuplicateRate,
		ReorderWindow: cfg.ReorderWindow,
		MaxDelay:      delay,
	}
	if err := out.Validate(); err != nil {
		return chaos.Config{}, errors.Wrapf(exception.ErrConfig, "market chaos: %v", err)
	}
	return out, nil
}

func resolvePaper(cfg PaperConfig) (Paper, error) {
	latency, err := parseDuration("paper latency", cfg.Latency)
	if err != nil {
		return Paper{}, err
	}
	return Paper{Latency: latency, IDPrefix: cfg.IDPrefix}, nil
}

func resolveEngine(cfg EngineConfig) (Engine, error) {
	interval, err := parseDuration("engine interval", cfg.Interval)
	if err != nil {
		return Engine{}, err
	}
	return Engine{Interval: interval, RecordMarket: cfg.RecordMarket}, nil
}

func resolveStrategy(entries []StrategyConfig) (StrategySpec, error) {
	for _, entry := range entries {
		if !entry.Enabled {
			continue
		}
		if entry.ID == "" {
			return StrategySpec{}, errors.Wrap(exception.ErrConfig, "enabled strategy has no id")
		}
		return StrategySpec{ID: entry.ID, Params: []byte(entry.Params)}, nil
	}
	return StrategySpec{}, exception.ErrNoEnabledStrategy
}

func resolveFeatures(cfg FeatureFlagsConfig) FeatureFlags {
	flags := FeatureFlags{
		EnableFills:   true,
		EnableJournal: true,
	}
	if cfg.EnableFills != nil {
		flags.EnableFills = *cfg.EnableFills
	}
	if cfg.EnableJournal != nil {
		flags.EnableJournal = *cfg.EnableJournal
	}
	return flags
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return 0, errors.Wrapf(exception.ErrConfig, "%s %q", field, value)
	}
	return d, nil
}
