// Package marketdata defines the daily tick schema consumed by the decision
// core. Acquisition of raw prices is an external concern; this package only
// validates, enriches, and windows series that are handed to it.
package marketdata

import (
	"fmt"
	"math"
	"time"
)

// Tick is one trading day of enriched market data.
type Tick struct {
	Date          time.Time `json:"date"`
	Close         float64   `json:"close"`
	Return        float64   `json:"return"`
	RealizedVol   float64   `json:"realized_vol"` // rolling 20-day, annualized
	ImpliedVol    float64   `json:"implied_vol"`  // index/100 proxy, or scaled realized
	HighVolRegime bool      `json:"high_vol_regime"`
	LowVolRegime  bool      `json:"low_vol_regime"`
}

// Frame is an ordered, immutable series of daily ticks. Window and Prefix
// return views sharing the underlying slice; callers must not mutate ticks.
type Frame struct {
	ticks []Tick
}

// NewFrame wraps a tick slice in a Frame. The slice is used as-is.
func NewFrame(ticks []Tick) *Frame {
	return &Frame{ticks: ticks}
}

// Len returns the number of ticks in the frame.
func (f *Frame) Len() int {
	return len(f.ticks)
}

// Tick returns the tick at index i.
func (f *Frame) Tick(i int) Tick {
	return f.ticks[i]
}

// Last returns the most recent tick. Panics on an empty frame; callers guard
// with Len.
func (f *Frame) Last() Tick {
	return f.ticks[len(f.ticks)-1]
}

// Prefix returns a view of the first n ticks.
func (f *Frame) Prefix(n int) *Frame {
	if n > len(f.ticks) {
		n = len(f.ticks)
	}
	if n < 0 {
		n = 0
	}
	return &Frame{ticks: f.ticks[:n]}
}

// Window returns a view of the ticks with start <= date <= end.
func (f *Frame) Window(start, end time.Time) *Frame {
	lo := 0
	for lo < len(f.ticks) && f.ticks[lo].Date.Before(start) {
		lo++
	}
	hi := lo
	for hi < len(f.ticks) && !f.ticks[hi].Date.After(end) {
		hi++
	}
	return &Frame{ticks: f.ticks[lo:hi]}
}

// Returns extracts the daily return column.
func (f *Frame) Returns() []float64 {
	out := make([]float64, len(f.ticks))
	for i, t := range f.ticks {
		out[i] = t.Return
	}
	return out
}

// RealizedVols extracts the realized volatility column.
func (f *Frame) RealizedVols() []float64 {
	out := make([]float64, len(f.ticks))
	for i, t := range f.ticks {
		out[i] = t.RealizedVol
	}
	return out
}

// ImpliedVols extracts the implied volatility column.
func (f *Frame) ImpliedVols() []float64 {
	out := make([]float64, len(f.ticks))
	for i, t := range f.ticks {
		out[i] = t.ImpliedVol
	}
	return out
}

// Closes extracts the close price column.
func (f *Frame) Closes() []float64 {
	out := make([]float64, len(f.ticks))
	for i, t := range f.ticks {
		out[i] = t.Close
	}
	return out
}

// Validate checks the frame for the columns and ordering the decision core
// requires. A frame that fails validation must not be backtested.
func (f *Frame) Validate() error {
	if len(f.ticks) == 0 {
		return fmt.Errorf("frame is empty")
	}

	for i, t := range f.ticks {
		if t.Date.IsZero() {
			return fmt.Errorf("tick %d: missing date", i)
		}
		if i > 0 && !f.ticks[i-1].Date.Before(t.Date) {
			return fmt.Errorf("tick %d: dates not strictly increasing (%s >= %s)",
				i, f.ticks[i-1].Date.Format("2006-01-02"), t.Date.Format("2006-01-02"))
		}
		if t.Close <= 0 || math.IsNaN(t.Close) {
			return fmt.Errorf("tick %d (%s): invalid close %v", i, t.Date.Format("2006-01-02"), t.Close)
		}
		if math.IsNaN(t.Return) || math.IsNaN(t.RealizedVol) || math.IsNaN(t.ImpliedVol) {
			return fmt.Errorf("tick %d (%s): NaN in derived columns", i, t.Date.Format("2006-01-02"))
		}
		if t.RealizedVol < 0 || t.ImpliedVol < 0 {
			return fmt.Errorf("tick %d (%s): negative volatility", i, t.Date.Format("2006-01-02"))
		}
	}

	return nil
}
