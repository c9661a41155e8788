package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tradeexec/internal/schema"
)

func TestLimitsAdmit(t *testing.T) {
	limits := Limits{MaxPosition: 0.05}

	testCases := []struct {
		desc       string
		net        float64
		side       schema.OrderSide
		reduceOnly bool
		want       bool
	}{
		{desc: "buy below cap", net: 0.04, side: schema.OrderSideBuy, want: true},
		{desc: "buy at cap", net: 0.05, side: schema.OrderSideBuy, want: false},
		{desc: "buy above cap", net: 0.06, side: schema.OrderSideBuy, want: false},
		{desc: "sell above negative cap", net: -0.04, side: schema.OrderSideSell, want: true},
		{desc: "sell at negative cap", net: -0.05, side: schema.OrderSideSell, want: false},
		{desc: "reduce only bypasses cap", net: -0.05, side: schema.OrderSideSell, reduceOnly: true, want: true},
		{desc: "unknown side", net: 0, side: schema.OrderSideUnknown, want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.want, limits.Admit(tc.net, tc.side, tc.reduceOnly))
		})
	}
}

func TestLimitsZeroCapDisabled(t *testing.T) {
	assert.True(t, Limits{}.Admit(100, schema.OrderSideBuy, false))
}

func TestReduceOnly(t *testing.T) {
	assert.True(t, ReduceOnly(schema.OrderSideBuy, -1))
	assert.False(t, ReduceOnly(schema.OrderSideBuy, 0))
	assert.False(t, ReduceOnly(schema.OrderSideBuy, 1))
	assert.True(t, ReduceOnly(schema.OrderSideSell, 1))
	assert.False(t, ReduceOnly(schema.OrderSideSell, 0))
	assert.False(t, ReduceOnly(schema.OrderSideSell, -1))
}
