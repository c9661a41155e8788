package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMovingAverageNoneUntilFull(t *testing.T) {
	ma := NewMovingAverage(3)

	_, ok := ma.Update(1)
	assert.False(t, ok)
	_, ok = ma.Update(2)
	assert.False(t, ok)
	assert.False(t, ma.IsReady())

	mean, ok := ma.Update(3)
	require.True(t, ok)
	assert.Equal(t, 2.0, mean)
	assert.True(t, ma.IsReady())
}

func TestMovingAverageMeanOfLastN(t *testing.T) {
	ma := NewMovingAverage(4)
	pushed := []float64{5, 1, 9, 3, 7, 2, 8, 6}
	for i, v := range pushed {
		mean, ok := ma.Update(v)
		if i+1 < 4 {
			assert.Falsef(t, ok, "push %d should not be ready", i)
			continue
		}
		require.Truef(t, ok, "push %d should be ready", i)
		last := pushed[i-3 : i+1]
		var sum float64
		for _, x := range last {
			sum += x
		}
		assert.InDeltaf(t, sum/4, mean, 1e-12, "mean after push %d", i)
		assert.Equal(t, last, ma.Values())
	}
}

func TestMovingAverageSeedThenUpdate(t *testing.T) {
	ma := NewMovingAverage(3)
	ma.Seed([]float64{1, 2, 3})

	mean, ok := ma.Update(4)
	require.True(t, ok)
	assert.Equal(t, 3.0, mean)
	assert.Equal(t, []float64{2, 3, 4}, ma.Values())
}

func TestMovingAverageSeedTruncatesAndDiscards(t *testing.T) {
	ma := NewMovingAverage(3)
	ma.Update(100)
	ma.Update(200)

	ma.Seed([]float64{1, 2, 3, 4, 5})
	assert.Equal(t, []float64{1, 2, 3}, ma.Values())

	ma.Seed([]float64{7})
	assert.Equal(t, []float64{7}, ma.Values())
	assert.False(t, ma.IsReady())
	_, ok := ma.Current()
	assert.False(t, ok)
}

func TestMovingAverageValuesIsCopy(t *testing.T) {
	ma := NewMovingAverage(2)
	ma.Seed([]float64{1, 2})
	values := ma.Values()
	values[0] = 42
	assert.Equal(t, []float64{1, 2}, ma.Values())
}
