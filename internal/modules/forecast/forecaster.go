// Package forecast produces one-step volatility forecasts from daily return
// series using a fixed-parameter GARCH(1,1) recursion. Parameters are not
// calibrated; they are standard equity-index values held constant.
package forecast

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/quantlab/volarb/pkg/formulas"
)

const (
	defaultOmega    = 0.00001
	defaultAlpha    = 0.1
	defaultBeta     = 0.85
	defaultLookback = 60

	// Number of trailing returns the variance recursion iterates over.
	recursionDepth = 20

	tradingDaysPerYear = 252
)

// Forecaster holds fixed GARCH(1,1) parameters and a lookback window.
type Forecaster struct {
	omega    float64
	alpha    float64
	beta     float64
	lookback int
	log      zerolog.Logger
}

// New creates a Forecaster with the standard fixed parameters.
func New(log zerolog.Logger) *Forecaster {
	return NewWithParams(log, defaultOmega, defaultAlpha, defaultBeta, defaultLookback)
}

// NewWithParams creates a Forecaster with explicit parameters. Used by
// parameter sweeps that vary the lookback.
func NewWithParams(log zerolog.Logger, omega, alpha, beta float64, lookback int) *Forecaster {
	if lookback <= 0 {
		lookback = defaultLookback
	}
	return &Forecaster{
		omega:    omega,
		alpha:    alpha,
		beta:     beta,
		lookback: lookback,
		log:      log.With().Str("component", "forecaster").Logger(),
	}
}

// Lookback returns the configured history window.
func (f *Forecaster) Lookback() int {
	return f.lookback
}

// Forecast returns the annualized one-step volatility forecast for a daily
// return series. Insufficient or degenerate history falls back to the
// annualized sample standard deviation; data shortage is an expected state,
// never an error.
func (f *Forecaster) Forecast(returns []float64) float64 {
	if len(returns) < f.lookback {
		f.log.Debug().
			Int("observations", len(returns)).
			Int("lookback", f.lookback).
			Msg("insufficient history, using sample volatility")
		return formulas.AnnualizedVolatility(returns)
	}

	recent := returns[len(returns)-f.lookback:]
	if len(recent) < recursionDepth {
		return formulas.AnnualizedVolatility(recent)
	}

	// Seed with the unconditional variance of the window. A flat series has
	// no variance signal for the recursion to work with, so fall back.
	variance := formulas.Variance(recent)
	if variance == 0 || math.IsNaN(variance) {
		return formulas.AnnualizedVolatility(recent)
	}

	current := variance
	tail := recent[len(recent)-recursionDepth:]
	for _, r := range tail {
		current = f.omega + f.alpha*r*r + f.beta*current
	}

	lastReturn := tail[len(tail)-1]
	next := f.omega + f.alpha*lastReturn*lastReturn + f.beta*current

	return math.Sqrt(next * tradingDaysPerYear)
}
