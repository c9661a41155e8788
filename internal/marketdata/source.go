// Package marketdata provides market event sources and historical closes.
package marketdata

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/yanun0323/errors"

	"tradeexec/internal/schema"
	"tradeexec/pkg/exception"
)

// Source streams market events until it is exhausted or ctx ends.
type Source interface {
	Stream(ctx context.Context, emit func(schema.MarketEvent)) error
}

// History answers "the last count closes ending now" for bootstrap.
type History interface {
	Closes(ctx context.Context, instrument, interval string, count int) ([]float64, error)
}

// IntervalDuration parses a candle interval such as "1m", "15m", "4h" or "1d".
func IntervalDuration(interval string) (time.Duration, error) {
	interval = strings.TrimSpace(interval)
	if len(interval) < 2 {
		return 0, errors.Wrapf(exception.ErrUnsupportedInterval, "%q", interval)
	}
	n, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil || n <= 0 {
		return 0, errors.Wrapf(exception.ErrUnsupportedInterval, "%q", interval)
	}
	var unit time.Duration
	switch interval[len(interval)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	default:
		return 0, errors.Wrapf(exception.ErrUnsupportedInterval, "%q", interval)
	}
	return time.Duration(n) * unit, nil
}
