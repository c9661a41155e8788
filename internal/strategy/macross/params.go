package macross

import (
	"strings"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"tradeexec/internal/marketdata"
	"tradeexec/pkg/exception"
)

// Params configures one crossover instance. Absent fields take defaults.
type Params struct {
	Asset              string  `json:"asset"`
	ShortWindow        int     `json:"short_window"`
	LongWindow         int     `json:"long_window"`
	TradeSize          string  `json:"trade_size"`
	CandleInterval     string  `json:"candle_interval"`
	SlippageBps        float64 `json:"slippage_bps"`
	MaxPosition        float64 `json:"max_position"`
	MaxOrderRatePerMin int     `json:"max_order_rate_per_min"`
	BootstrapCandles   int     `json:"bootstrap_candles"`
	BootstrapRetries   int     `json:"bootstrap_retries"`
}

// DefaultParams returns the defaults applied before decoding.
func DefaultParams() Params {
	return Params{
		TradeSize:          "0.01",
		CandleInterval:     "1m",
		SlippageBps:        5,
		MaxPosition:        0.05,
		MaxOrderRatePerMin: 30,
		BootstrapCandles:   200,
		BootstrapRetries:   3,
	}
}

// ParseParams decodes raw JSON over the defaults and validates the result.
func ParseParams(raw []byte) (Params, error) {
	p := DefaultParams()
	if len(raw) == 0 {
		return Params{}, errors.Wrap(exception.ErrConfig, "ma_crossover params are empty")
	}
	if err := sonic.Unmarshal(raw, &p); err != nil {
		return Params{}, errors.Wrapf(exception.ErrConfig, "invalid ma_crossover params: %v", err)
	}
	if err := p.normalize(); err != nil {
		return Params{}, err
	}
	return p, nil
}

func (p *Params) normalize() error {
	p.Asset = strings.TrimSpace(p.Asset)
	if p.Asset == "" {
		return errors.Wrap(exception.ErrConfig, "asset is required")
	}
	if p.ShortWindow < 1 {
		return errors.Wrapf(exception.ErrConfig, "short_window must be >= 1, got %d", p.ShortWindow)
	}
	if p.ShortWindow >= p.LongWindow {
		return errors.Wrapf(exception.ErrConfig, "short_window must be < long_window, got %d >= %d", p.ShortWindow, p.LongWindow)
	}
	size, err := decimal.NewFromString(p.TradeSize)
	if err != nil {
		return errors.Wrapf(exception.ErrConfig, "trade_size %q: %v", p.TradeSize, err)
	}
	if !size.IsPositive() {
		return errors.Wrapf(exception.ErrConfig, "trade_size must be positive, got %s", p.TradeSize)
	}
	if _, err := marketdata.IntervalDuration(p.CandleInterval); err != nil {
		return errors.Wrapf(exception.ErrConfig, "candle_interval: %v", err)
	}
	if p.SlippageBps < 0 {
		return errors.Wrapf(exception.ErrConfig, "slippage_bps must be >= 0, got %v", p.SlippageBps)
	}
	if p.MaxPosition < 0 {
		return errors.Wrapf(exception.ErrConfig, "max_position must be >= 0, got %v", p.MaxPosition)
	}
	if p.MaxOrderRatePerMin < 1 {
		p.MaxOrderRatePerMin = 1
	}
	if p.BootstrapCandles < p.LongWindow {
		p.BootstrapCandles = p.LongWindow * 2
	}
	if p.BootstrapRetries < 1 {
		p.BootstrapRetries = 1
	}
	return nil
}
