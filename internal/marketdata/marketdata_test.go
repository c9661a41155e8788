package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeexec/internal/recorder"
	"tradeexec/internal/schema"
	"tradeexec/pkg/exception"
)

func TestIntervalDuration(t *testing.T) {
	testCases := []struct {
		in   string
		want time.Duration
	}{
		{in: "30s", want: 30 * time.Second},
		{in: "1m", want: time.Minute},
		{in: "15m", want: 15 * time.Minute},
		{in: "4h", want: 4 * time.Hour},
		{in: "1d", want: 24 * time.Hour},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := IntervalDuration(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	for _, bad := range []string{"", "m", "0m", "-1m", "1w", "xm"} {
		_, err := IntervalDuration(bad)
		require.ErrorIsf(t, err, exception.ErrUnsupportedInterval, "interval %q", bad)
	}
}

func collect(t *testing.T, src Source) []schema.MarketEvent {
	t.Helper()
	var out []schema.MarketEvent
	require.NoError(t, src.Stream(t.Context(), func(ev schema.MarketEvent) {
		out = append(out, ev)
	}))
	return out
}

func TestSyntheticIsDeterministic(t *testing.T) {
	cfg := SyntheticConfig{Instrument: "BTC", Seed: 11, StartPrice: 50_000, Limit: 20}
	a, err := NewSynthetic(cfg)
	require.NoError(t, err)
	b, err := NewSynthetic(cfg)
	require.NoError(t, err)

	first := collect(t, a)
	second := collect(t, b)
	require.Len(t, first, 20)
	assert.Equal(t, first, second)

	for i, ev := range first {
		assert.Equal(t, schema.MarketEventCandle, ev.Kind)
		assert.Equal(t, "BTC", ev.Instrument())
		assert.Equal(t, "1m", ev.Candle.Interval)
		assert.Positive(t, ev.Price())
		if i > 0 {
			assert.Equal(t, time.Minute, ev.Timestamp().Sub(first[i-1].Timestamp()))
		}
	}
}

func TestSyntheticClosesEndAtStartPrice(t *testing.T) {
	src, err := NewSynthetic(SyntheticConfig{Instrument: "BTC", Seed: 3, StartPrice: 100})
	require.NoError(t, err)

	closes, err := src.Closes(t.Context(), "BTC", "1m", 50)
	require.NoError(t, err)
	require.Len(t, closes, 50)
	assert.Equal(t, 100.0, closes[49])

	_, err = src.Closes(t.Context(), "ETH", "1m", 5)
	require.ErrorIs(t, err, exception.ErrHistoryUnavailable)
	_, err = src.Closes(t.Context(), "BTC", "5m", 5)
	require.ErrorIs(t, err, exception.ErrHistoryUnavailable)
}

func TestSyntheticStopsOnContext(t *testing.T) {
	src, err := NewSynthetic(SyntheticConfig{Instrument: "BTC", Pace: time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	err = src.Stream(ctx, func(schema.MarketEvent) {})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSyntheticConfigErrors(t *testing.T) {
	_, err := NewSynthetic(SyntheticConfig{})
	require.ErrorIs(t, err, exception.ErrInvalidArgument)
	_, err = NewSynthetic(SyntheticConfig{Instrument: "BTC", Interval: "1y"})
	require.ErrorIs(t, err, exception.ErrUnsupportedInterval)
}

func TestRecordThenPlayback(t *testing.T) {
	dir := t.TempDir()
	src, err := NewSynthetic(SyntheticConfig{Instrument: "BTC", Seed: 5, Limit: 30})
	require.NoError(t, err)
	want := collect(t, src)

	journal, err := recorder.OpenJournal(t.Context(), recorder.DefaultConfig(dir), 1)
	require.NoError(t, err)
	n, err := Record(t.Context(), src, journal)
	require.NoError(t, err)
	assert.Equal(t, 30, n)
	require.NoError(t, journal.Close())

	pb, err := NewPlayback(PlaybackConfig{Dir: dir, Instrument: "BTC"})
	require.NoError(t, err)

	closes, err := pb.Closes(t.Context(), "BTC", "1m", 10)
	require.NoError(t, err)
	require.Len(t, closes, 10)
	for i := range closes {
		assert.Equal(t, want[i].Price(), closes[i])
	}

	got := collect(t, pb)
	require.Len(t, got, 20)
	for i := range got {
		assert.Equal(t, want[i+10].Price(), got[i].Price())
		assert.True(t, want[i+10].Timestamp().Equal(got[i].Timestamp()))
	}
}

func TestPlaybackWithoutHistory(t *testing.T) {
	dir := t.TempDir()
	journal, err := recorder.OpenJournal(t.Context(), recorder.DefaultConfig(dir), 1)
	require.NoError(t, err)
	require.NoError(t, journal.Close())

	pb, err := NewPlayback(PlaybackConfig{Dir: dir})
	require.NoError(t, err)
	_, err = pb.Closes(t.Context(), "BTC", "1m", 10)
	require.ErrorIs(t, err, exception.ErrHistoryUnavailable)
	assert.Empty(t, collect(t, pb))

	_, err = NewPlayback(PlaybackConfig{})
	require.ErrorIs(t, err, exception.ErrInvalidArgument)
}
