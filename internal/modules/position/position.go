// Package position tracks open option positions through their lifecycle:
// deterministic mark-to-model pricing, a fixed-priority exit chain, and a
// bounded history of realized trades.
package position

import (
	"math"
	"time"

	"github.com/quantlab/volarb/internal/modules/signal"
)

const contractMultiplier = 100

// Position is one open straddle. Quantity is signed: positive for long
// volatility, negative for short.
type Position struct {
	ID            int           `json:"id"`
	Signal        signal.Signal `json:"signal"`
	EntryPrice    float64       `json:"entry_price"`
	Quantity      int           `json:"quantity"`
	EntryTime     time.Time     `json:"entry_time"`
	EntryImplied  float64       `json:"entry_implied"`
	EntryRealized float64       `json:"entry_realized"`
	PnL           float64       `json:"pnl"`
	Active        bool          `json:"active"`

	highWater     float64
	trailingArmed bool
}

// MarkPrice estimates the option value after daysHeld days given the current
// realized volatility. The model is a deterministic time-decay curve scaled
// by how realized vol has moved since entry; no randomness, so backtests are
// reproducible.
func (p *Position) MarkPrice(realizedVol float64, daysHeld int) float64 {
	expiry := float64(p.Signal.ExpiryDays)
	remaining := expiry - float64(daysHeld)
	if remaining < 0 {
		remaining = 0
	}

	timeValue := math.Sqrt(remaining / expiry)

	volRatio := 1.0
	if p.EntryRealized > 0 {
		volRatio = realizedVol / p.EntryRealized
	}

	// 30% intrinsic floor plus decaying time value, scaled by vol drift.
	return p.EntryPrice * (0.3 + 0.7*timeValue) * (0.5 + 0.5*volRatio)
}

// UpdatePnL re-marks the position. Inactive positions are never updated, so a
// closed position's pnl is final.
func (p *Position) UpdatePnL(markPrice float64) {
	if !p.Active {
		return
	}
	p.PnL = float64(p.Quantity) * (markPrice - p.EntryPrice) * contractMultiplier
}

// CurrentReturn expresses pnl as a fraction of the premium at risk.
func (p *Position) CurrentReturn() float64 {
	notional := math.Abs(float64(p.Quantity)) * p.EntryPrice * contractMultiplier
	if notional == 0 {
		return 0
	}
	return p.PnL / notional
}

// DaysHeld counts whole days since entry.
func (p *Position) DaysHeld(now time.Time) int {
	return int(now.Sub(p.EntryTime).Hours() / 24)
}

// DaysToExpiry is the remaining life of the contract in days.
func (p *Position) DaysToExpiry(now time.Time) int {
	return p.Signal.ExpiryDays - p.DaysHeld(now)
}
