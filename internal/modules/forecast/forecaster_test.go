package forecast

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/quantlab/volarb/pkg/formulas"
)

func newTestForecaster() *Forecaster {
	return New(zerolog.Nop())
}

func constantReturns(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func alternatingReturns(n int, magnitude float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = magnitude
		} else {
			out[i] = -magnitude
		}
	}
	return out
}

func TestForecastZeroReturnsIsZero(t *testing.T) {
	f := newTestForecaster()
	got := f.Forecast(constantReturns(60, 0))
	assert.Equal(t, 0.0, got)
}

func TestForecastShortHistoryFallsBackToSampleVol(t *testing.T) {
	f := newTestForecaster()
	returns := alternatingReturns(30, 0.01)

	got := f.Forecast(returns)
	want := formulas.AnnualizedVolatility(returns)
	assert.InDelta(t, want, got, 1e-12)
}

func TestForecastMatchesRecursionByHand(t *testing.T) {
	f := newTestForecaster()
	returns := alternatingReturns(60, 0.01)

	variance := formulas.Variance(returns)
	current := variance
	tail := returns[40:]
	for _, r := range tail {
		current = defaultOmega + defaultAlpha*r*r + defaultBeta*current
	}
	last := tail[len(tail)-1]
	want := math.Sqrt((defaultOmega + defaultAlpha*last*last + defaultBeta*current) * 252)

	assert.InDelta(t, want, f.Forecast(returns), 1e-12)
}

func TestForecastIsNonNegativeAndFinite(t *testing.T) {
	f := newTestForecaster()

	tests := []struct {
		name    string
		returns []float64
	}{
		{"empty", nil},
		{"single", []float64{0.02}},
		{"small moves", alternatingReturns(120, 0.001)},
		{"large moves", alternatingReturns(120, 0.08)},
		{"constant nonzero", constantReturns(60, 0.01)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.Forecast(tt.returns)
			assert.False(t, math.IsNaN(got))
			assert.False(t, math.IsInf(got, 0))
			assert.GreaterOrEqual(t, got, 0.0)
		})
	}
}

func TestForecastRisesWithReturnMagnitude(t *testing.T) {
	f := newTestForecaster()
	calm := f.Forecast(alternatingReturns(60, 0.005))
	wild := f.Forecast(alternatingReturns(60, 0.03))
	assert.Greater(t, wild, calm)
}

func TestCustomLookback(t *testing.T) {
	f := NewWithParams(zerolog.Nop(), defaultOmega, defaultAlpha, defaultBeta, 40)
	assert.Equal(t, 40, f.Lookback())

	// 39 observations is below the window, so the sample path is used.
	returns := alternatingReturns(39, 0.01)
	assert.InDelta(t, formulas.AnnualizedVolatility(returns), f.Forecast(returns), 1e-12)
}
