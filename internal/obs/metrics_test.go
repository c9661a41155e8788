package obs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.ObserveMarket(2 * time.Millisecond)
	m.ObserveMarket(4 * time.Millisecond)
	m.ObserveFill(time.Millisecond)
	m.ObserveSubmit(time.Millisecond, nil)
	m.ObserveSubmit(time.Millisecond, errors.New("boom"))
	m.AddLagged(3)
	m.IncRateLimited()
	m.IncRiskRejected()
	m.IncJournalError()

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.MarketEvents)
	assert.Equal(t, uint64(1), snap.Fills)
	assert.Equal(t, uint64(1), snap.Intents)
	assert.Equal(t, uint64(1), snap.SubmitFailures)
	assert.Equal(t, uint64(3), snap.LaggedEvents)
	assert.Equal(t, uint64(1), snap.RateLimited)
	assert.Equal(t, uint64(1), snap.RiskRejected)
	assert.Equal(t, uint64(1), snap.JournalErrors)
	assert.Equal(t, 2*time.Millisecond, snap.MarketLatency.Min)
	assert.Equal(t, 4*time.Millisecond, snap.MarketLatency.Max)
	assert.Equal(t, 3*time.Millisecond, snap.MarketLatency.Avg)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveMarket(time.Second)
	m.IncRateLimited()
	assert.Equal(t, Snapshot{}, m.Snapshot())
}

func TestTraceContext(t *testing.T) {
	gen := NewTraceGenerator(10)
	id := gen.Next()
	assert.Equal(t, uint64(11), id)

	ctx := WithTrace(context.Background(), id)
	assert.Equal(t, uint64(11), TraceFrom(ctx))
	assert.Equal(t, uint64(0), TraceFrom(context.Background()))
}
