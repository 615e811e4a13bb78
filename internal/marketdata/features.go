package marketdata

import (
	"fmt"
	"math"
	"time"

	"github.com/markcheno/go-talib"

	"github.com/quantlab/volarb/pkg/formulas"
)

const (
	realizedVolWindow  = 20
	impliedProxyWindow = 30
	regimeWindow       = 60
	tradingDaysPerYear = 252

	// Scaling applied to trailing realized vol when no volatility index is
	// available, approximating the usual variance risk premium.
	impliedProxyMultiplier = 1.2

	highVolQuantile = 0.8
	lowVolQuantile  = 0.2
)

// Series is the raw input to feature construction: aligned dates and closes,
// with an optional volatility index column (e.g. VIX levels). Missing index
// values are represented as NaN or zero.
type Series struct {
	Dates    []time.Time
	Closes   []float64
	VolIndex []float64
}

// BuildFrame enriches a raw series into a validated Frame: daily returns,
// rolling annualized realized volatility, an implied-volatility proxy, and
// rolling volatility-regime flags. Gaps in the proxy column are forward- then
// backward-filled.
func BuildFrame(s Series) (*Frame, error) {
	n := len(s.Closes)
	if n == 0 {
		return nil, fmt.Errorf("series has no closes")
	}
	if len(s.Dates) != n {
		return nil, fmt.Errorf("series has %d dates for %d closes", len(s.Dates), n)
	}
	if len(s.VolIndex) != 0 && len(s.VolIndex) != n {
		return nil, fmt.Errorf("series has %d vol index values for %d closes", len(s.VolIndex), n)
	}

	returns := make([]float64, n)
	for i := 1; i < n; i++ {
		if s.Closes[i-1] != 0 {
			returns[i] = (s.Closes[i] - s.Closes[i-1]) / s.Closes[i-1]
		}
	}

	realized := realizedVolColumn(returns)
	implied := impliedVolColumn(s.VolIndex, realized)
	highFlags, lowFlags := regimeFlags(realized)

	ticks := make([]Tick, n)
	for i := 0; i < n; i++ {
		ticks[i] = Tick{
			Date:          s.Dates[i],
			Close:         s.Closes[i],
			Return:        returns[i],
			RealizedVol:   realized[i],
			ImpliedVol:    implied[i],
			HighVolRegime: highFlags[i],
			LowVolRegime:  lowFlags[i],
		}
	}

	frame := NewFrame(ticks)
	if err := frame.Validate(); err != nil {
		return nil, fmt.Errorf("built frame failed validation: %w", err)
	}
	return frame, nil
}

// realizedVolColumn computes the rolling annualized standard deviation of
// daily returns, backfilling the warmup span with the first defined value.
func realizedVolColumn(returns []float64) []float64 {
	n := len(returns)
	out := make([]float64, n)

	if n >= realizedVolWindow {
		rolling := talib.StdDev(returns, realizedVolWindow, 1.0)
		for i := realizedVolWindow - 1; i < n; i++ {
			out[i] = rolling[i] * math.Sqrt(tradingDaysPerYear)
		}
		for i := 0; i < realizedVolWindow-1; i++ {
			out[i] = out[realizedVolWindow-1]
		}
		return out
	}

	// Short series: a single expanding estimate is the best available.
	vol := formulas.AnnualizedVolatility(returns[1:])
	for i := range out {
		out[i] = vol
	}
	return out
}

// impliedVolColumn converts volatility index levels to decimals, falling back
// to a scaled trailing mean of realized volatility where the index is absent,
// then gap-fills.
func impliedVolColumn(volIndex, realized []float64) []float64 {
	n := len(realized)
	out := make([]float64, n)

	var trailing []float64
	if n >= impliedProxyWindow {
		trailing = talib.Sma(realized, impliedProxyWindow)
	}

	for i := 0; i < n; i++ {
		switch {
		case i < len(volIndex) && !math.IsNaN(volIndex[i]) && volIndex[i] > 0:
			out[i] = volIndex[i] / 100.0
		case trailing != nil && i >= impliedProxyWindow-1 && trailing[i] > 0:
			out[i] = trailing[i] * impliedProxyMultiplier
		case realized[i] > 0:
			out[i] = realized[i] * impliedProxyMultiplier
		default:
			out[i] = math.NaN()
		}
	}

	gapFill(out)
	return out
}

// gapFill replaces NaN entries by forward fill, then backward fill, then zero.
func gapFill(values []float64) {
	last := math.NaN()
	for i, v := range values {
		if math.IsNaN(v) {
			values[i] = last
		} else {
			last = v
		}
	}
	next := math.NaN()
	for i := len(values) - 1; i >= 0; i-- {
		if math.IsNaN(values[i]) {
			values[i] = next
		} else {
			next = values[i]
		}
	}
	for i, v := range values {
		if math.IsNaN(v) {
			values[i] = 0
		}
	}
}

// regimeFlags marks days whose realized volatility sits in the outer rolling
// quantiles of the trailing window.
func regimeFlags(realized []float64) (high, low []bool) {
	n := len(realized)
	high = make([]bool, n)
	low = make([]bool, n)

	for i := regimeWindow; i < n; i++ {
		window := realized[i-regimeWindow : i]
		hi := formulas.Quantile(window, highVolQuantile)
		lo := formulas.Quantile(window, lowVolQuantile)
		high[i] = realized[i] > hi
		low[i] = realized[i] < lo
	}
	return high, low
}
