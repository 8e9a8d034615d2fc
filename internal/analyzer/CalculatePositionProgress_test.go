package analyzer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globalpool/gpcore/internal/config"
	"github.com/globalpool/gpcore/internal/types"
)

func newEvaluator(t *testing.T) *PositionEvaluator {
	t.Helper()
	e, err := NewPositionEvaluator(config.DefaultParameters)
	require.NoError(t, err)
	return e
}

func TestCalculateProgressPercent(t *testing.T) {
	tests := []struct {
		name                  string
		start, current, upper types.TickValue
		want                  float64
	}{
		{"halfway", 0, 500, 1000, 50},
		{"overshoot clamps", 0, 1500, 1000, 100},
		{"below start clamps", 0, -200, 1000, 0},
		{"negative ticks", -2000, -1500, -1000, 50},
		{"at start", 100, 100, 200, 0},
		{"at target", 100, 200, 200, 100},
		{"zero width reached", 300, 300, 300, 100},
		{"zero width passed", 300, 900, 300, 100},
		{"zero width not reached", 300, 299, 300, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateProgressPercent(tt.start, tt.current, tt.upper))
		})
	}
}

func TestProgressAlwaysInRange(t *testing.T) {
	for start := types.TickValue(-30); start <= 30; start += 7 {
		for upper := types.TickValue(-30); upper <= 30; upper += 5 {
			for current := types.TickValue(-60); current <= 60; current += 3 {
				p := CalculateProgressPercent(start, current, upper)
				assert.GreaterOrEqual(t, p, 0.0)
				assert.LessOrEqual(t, p, 100.0)
				if upper == start {
					assert.Contains(t, []float64{0, 100}, p)
				}
				assert.Equal(t, current >= upper, IsReady(current, upper))
			}
		}
	}
}

func TestEvaluatePosition(t *testing.T) {
	e := newEvaluator(t)

	got := e.Evaluate(types.Position{ID: 7, Data: &types.TickData{StartTick: 0, CurrentTick: 1500, UpperTick: 1000}})
	assert.True(t, got.Available())
	assert.Equal(t, 100.0, got.ProgressPercent)
	assert.True(t, got.IsReady)
	assert.Equal(t, "1000000000000.000000", got.StartPrice)
	assert.Equal(t, "1105165393000.000000", got.TargetPrice)

	got = e.Evaluate(types.Position{ID: 8, Data: &types.TickData{StartTick: -276324, CurrentTick: -276000, UpperTick: -269393}})
	assert.Equal(t, "1.000003", got.StartPrice)
	assert.False(t, got.IsReady)
	assert.InDelta(t, 4.6746, got.ProgressPercent, 0.001)
}

func TestEvaluateUnavailablePosition(t *testing.T) {
	got := newEvaluator(t).Evaluate(types.Position{ID: 9})
	assert.False(t, got.Available())
	assert.Equal(t, types.ProgressUnavailable, got.Status)
	assert.Empty(t, got.StartPrice)
	assert.Empty(t, got.TargetPrice)
	assert.False(t, got.IsReady)
}

func TestNewPositionEvaluatorRejectsBadParameters(t *testing.T) {
	p := config.DefaultParameters
	p.TickBase = "0.9"
	_, err := NewPositionEvaluator(p)
	assert.ErrorIs(t, err, ErrInvalidTickBase)

	p = config.DefaultParameters
	p.PriceDisplayDecimals = -1
	_, err = NewPositionEvaluator(p)
	assert.Error(t, err)
}

func TestProgressAtExtremeTicks(t *testing.T) {
	tests := []struct {
		name                  string
		start, current, upper types.TickValue
		want                  float64
	}{
		{"full int64 span halfway", math.MinInt64, 0, math.MaxInt64, 50},
		{"full int64 span at target", math.MinInt64, math.MaxInt64, math.MaxInt64, 100},
		{"current far below start", math.MaxInt64 - 10, math.MinInt64, math.MaxInt64, 0},
		{"current far above target", math.MinInt64, math.MaxInt64, 0, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CalculateProgressPercent(tt.start, tt.current, tt.upper), 1e-9)
		})
	}
}

func TestEvaluateRejectsTicksOutsidePoolBounds(t *testing.T) {
	e := newEvaluator(t)
	for _, data := range []types.TickData{
		{StartTick: 0, CurrentTick: 10, UpperTick: math.MaxInt64},
		{StartTick: math.MinInt64, CurrentTick: 0, UpperTick: 10},
		{StartTick: 0, CurrentTick: types.MaxTick + 1, UpperTick: 10},
	} {
		d := data
		var got types.PositionProgress
		require.NotPanics(t, func() { got = e.Evaluate(types.Position{ID: 1, Data: &d}) })
		assert.False(t, got.Available())
		assert.Empty(t, got.StartPrice)
	}

	got := e.Evaluate(types.Position{ID: 2, Data: &types.TickData{StartTick: types.MinTick, CurrentTick: 0, UpperTick: types.MaxTick}})
	assert.True(t, got.Available())
	assert.InDelta(t, 50.0, got.ProgressPercent, 1e-9)
}
