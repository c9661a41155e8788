package obs

import (
	"sync/atomic"
	"time"
)

// Metrics collects lightweight counters and latency stats for one engine.
type Metrics struct {
	marketEvents   uint64
	fills          uint64
	intents        uint64
	submitFailures uint64
	laggedEvents   uint64
	rateLimited    uint64
	riskRejected   uint64
	journalErrors  uint64

	marketLatency LatencyStats
	fillLatency   LatencyStats
	submitLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	MarketEvents   uint64
	Fills          uint64
	Intents        uint64
	SubmitFailures uint64
	LaggedEvents   uint64
	RateLimited    uint64
	RiskRejected   uint64
	JournalErrors  uint64
	MarketLatency  LatencySnapshot
	FillLatency    LatencySnapshot
	SubmitLatency  LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveMarket counts a dispatched market event and its handling time.
func (m *Metrics) ObserveMarket(d time.Duration) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.marketEvents, 1)
	m.marketLatency.Observe(d)
}

// ObserveFill counts an applied fill and its handling time.
func (m *Metrics) ObserveFill(d time.Duration) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.fills, 1)
	m.fillLatency.Observe(d)
}

// ObserveSubmit records one submission round trip.
func (m *Metrics) ObserveSubmit(d time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		atomic.AddUint64(&m.submitFailures, 1)
		return
	}
	atomic.AddUint64(&m.intents, 1)
	m.submitLatency.Observe(d)
}

// AddLagged records market events dropped for a lagging subscriber.
func (m *Metrics) AddLagged(n uint64) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.laggedEvents, n)
}

// IncRateLimited records a signal dropped by the rate limiter.
func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.rateLimited, 1)
}

// IncRiskRejected records a signal dropped by the position cap.
func (m *Metrics) IncRiskRejected() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.riskRejected, 1)
}

// IncJournalError records a failed journal append.
func (m *Metrics) IncJournalError() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.journalErrors, 1)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		MarketEvents:   atomic.LoadUint64(&m.marketEvents),
		Fills:          atomic.LoadUint64(&m.fills),
		Intents:        atomic.LoadUint64(&m.intents),
		SubmitFailures: atomic.LoadUint64(&m.submitFailures),
		LaggedEvents:   atomic.LoadUint64(&m.laggedEvents),
		RateLimited:    atomic.LoadUint64(&m.rateLimited),
		RiskRejected:   atomic.LoadUint64(&m.riskRejected),
		JournalErrors:  atomic.LoadUint64(&m.journalErrors),
		MarketLatency:  m.marketLatency.Snapshot(),
		FillLatency:    m.fillLatency.Snapshot(),
		SubmitLatency:  m.submitLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
