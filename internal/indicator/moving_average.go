package indicator

// MovingAverage keeps the most recent Period observations and reports their mean.
// It is owned by a single strategy and is not safe for concurrent use.
type MovingAverage struct {
	period int
	window []float64
}

// NewMovingAverage creates an empty window. A period below 1 is treated as 1.
func NewMovingAverage(period int) *MovingAverage {
	if period < 1 {
		period = 1
	}
	return &MovingAverage{
		period: period,
		window: make([]float64, 0, period),
	}
}

// Period returns the window size.
func (m *MovingAverage) Period() int {
	return m.period
}

// Seed replaces the window with the first Period values.
func (m *MovingAverage) Seed(values []float64) {
	m.window = m.window[:0]
	if len(values) > m.period {
		values = values[:m.period]
	}
	m.window = append(m.window, values...)
}

// Update pushes v, evicting the oldest observation when the window overflows.
// The mean is reported only once the window is exactly full.
func (m *MovingAverage) Update(v float64) (float64, bool) {
	if len(m.window) == m.period {
		copy(m.window, m.window[1:])
		m.window[len(m.window)-1] = v
	} else {
		m.window = append(m.window, v)
	}
	return m.Current()
}

// Current returns the mean of a full window.
func (m *MovingAverage) Current() (float64, bool) {
	if !m.IsReady() {
		return 0, false
	}
	var sum float64
	for _, v := range m.window {
		sum += v
	}
	return sum / float64(m.period), true
}

// IsReady reports whether the window holds exactly Period observations.
func (m *MovingAverage) IsReady() bool {
	return len(m.window) == m.period
}

// Values returns a copy of the window, oldest first.
func (m *MovingAverage) Values() []float64 {
	out := make([]float64, len(m.window))
	copy(out, m.window)
	return out
}
