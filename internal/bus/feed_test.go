package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeexec/internal/schema"
	"tradeexec/pkg/exception"
)

func candle(price float64) schema.MarketEvent {
	return schema.NewCandleEvent(schema.Candle{Instrument: "BTC", Close: price, Interval: "1m"})
}

func TestFeedDeliversInOrder(t *testing.T) {
	feed := NewFeed(8)
	sub := feed.Subscribe()

	for i := 1; i <= 5; i++ {
		require.NoError(t, feed.Publish(candle(float64(i))))
	}
	for i := 1; i <= 5; i++ {
		ev, err := sub.Recv(t.Context())
		require.NoError(t, err)
		assert.Equal(t, float64(i), ev.Price())
	}
	_, err := sub.TryRecv()
	require.ErrorIs(t, err, exception.ErrFeedEmpty)
}

func TestFeedSubscriberSeesOnlyLaterEvents(t *testing.T) {
	feed := NewFeed(8)
	early := feed.Subscribe()
	require.NoError(t, feed.Publish(candle(1)))

	late := feed.Subscribe()
	require.NoError(t, feed.Publish(candle(2)))

	assert.Equal(t, 2, early.Buffered())
	ev, err := late.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, 2.0, ev.Price())
	_, err = late.TryRecv()
	require.ErrorIs(t, err, exception.ErrFeedEmpty)
}

func TestFeedLagReportsThenContinuesWithOldestRetained(t *testing.T) {
	feed := NewFeed(3)
	slow := feed.Subscribe()
	fast := feed.Subscribe()

	for i := 1; i <= 5; i++ {
		require.NoError(t, feed.Publish(candle(float64(i))))
		if i <= 3 {
			_, err := fast.TryRecv()
			require.NoError(t, err)
		}
	}

	_, err := slow.TryRecv()
	var lag *LagError
	require.ErrorAs(t, err, &lag)
	assert.Equal(t, uint64(2), lag.Skipped)

	for _, want := range []float64{3, 4, 5} {
		ev, err := slow.TryRecv()
		require.NoError(t, err)
		assert.Equal(t, want, ev.Price())
	}

	// the fast subscriber never lagged
	for _, want := range []float64{4, 5} {
		ev, err := fast.TryRecv()
		require.NoError(t, err)
		assert.Equal(t, want, ev.Price())
	}
}

func TestFeedCloseDrainsThenReportsClosed(t *testing.T) {
	feed := NewFeed(4)
	sub := feed.Subscribe()
	require.NoError(t, feed.Publish(candle(1)))
	feed.Close()

	require.ErrorIs(t, feed.Publish(candle(2)), exception.ErrFeedClosed)

	ev, err := sub.Recv(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1.0, ev.Price())

	_, err = sub.Recv(t.Context())
	require.ErrorIs(t, err, exception.ErrFeedClosed)
	_, err = sub.Recv(t.Context())
	require.ErrorIs(t, err, exception.ErrFeedClosed)

	late := feed.Subscribe()
	_, err = late.TryRecv()
	require.ErrorIs(t, err, exception.ErrFeedClosed)
}

func TestSubscriptionCloseDoesNotAffectOthers(t *testing.T) {
	feed := NewFeed(4)
	a := feed.Subscribe()
	b := feed.Subscribe()
	require.Equal(t, 2, feed.Subscribers())

	a.Close()
	a.Close()
	assert.Equal(t, 1, feed.Subscribers())

	require.NoError(t, feed.Publish(candle(1)))
	_, err := a.TryRecv()
	require.ErrorIs(t, err, exception.ErrSubscriptionClosed)

	ev, err := b.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, 1.0, ev.Price())
	assert.Equal(t, uint64(1), feed.Published())
}

func TestSubscriptionReadySignalsPublish(t *testing.T) {
	feed := NewFeed(4)
	sub := feed.Subscribe()

	select {
	case <-sub.Ready():
		t.Fatal("ready before publish")
	default:
	}

	require.NoError(t, feed.Publish(candle(1)))
	require.NoError(t, feed.Publish(candle(2)))

	for _, want := range []float64{1, 2} {
		select {
		case <-sub.Ready():
		case <-time.After(time.Second):
			t.Fatal("ready not signalled")
		}
		ev, err := sub.TryRecv()
		require.NoError(t, err)
		assert.Equal(t, want, ev.Price())
	}
}

func TestSubscriptionRecvHonorsContext(t *testing.T) {
	feed := NewFeed(1)
	sub := feed.Subscribe()

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	_, err := sub.Recv(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFeedConcurrentPublishers(t *testing.T) {
	feed := NewFeed(10_000)
	sub := feed.Subscribe()

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				_ = feed.Publish(candle(float64(i)))
			}
		}()
	}
	wg.Wait()
	feed.Close()

	received := 0
	for {
		_, err := sub.Recv(t.Context())
		if err != nil {
			require.ErrorIs(t, err, exception.ErrFeedClosed)
			break
		}
		received++
	}
	assert.Equal(t, 4000, received)
}

type sliceSource []schema.MarketEvent

func (s sliceSource) Stream(ctx context.Context, emit func(schema.MarketEvent)) error {
	for _, ev := range s {
		emit(ev)
	}
	return nil
}

func TestFeedRunClosesWhenSourceEnds(t *testing.T) {
	feed := NewFeed(8)
	sub := feed.Subscribe()

	require.NoError(t, feed.Run(t.Context(), sliceSource{candle(1), candle(2)}))

	for _, want := range []float64{1, 2} {
		ev, err := sub.Recv(t.Context())
		require.NoError(t, err)
		assert.Equal(t, want, ev.Price())
	}
	_, err := sub.Recv(t.Context())
	require.ErrorIs(t, err, exception.ErrFeedClosed)
}
