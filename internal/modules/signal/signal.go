// Package signal turns volatility forecasts into trade signals: a typed
// buy/sell-volatility intent with bounded strength and confidence scores,
// plus the dynamic entry-threshold policy that gates generation.
package signal

import (
	"time"

	"github.com/quantlab/volarb/pkg/formulas"
)

// Type is the direction of a volatility trade.
type Type string

const (
	// TypeBuyVol buys volatility (long straddle) when forecast exceeds implied.
	TypeBuyVol Type = "buy_vol"
	// TypeSellVol sells volatility (short straddle) when implied exceeds forecast.
	TypeSellVol Type = "sell_vol"
)

const (
	maxStrength   = 1.0
	maxConfidence = 0.95
)

// Signal is a fully scored trade intent. Strength and Confidence are bounded
// at construction and stay bounded regardless of later scaling.
type Signal struct {
	Type           Type      `json:"type"`
	Strength       float64   `json:"strength"`   // [0, 1]
	Confidence     float64   `json:"confidence"` // [0, 0.95]
	Timestamp      time.Time `json:"timestamp"`
	Strike         float64   `json:"strike"`
	ExpiryDays     int       `json:"expiry_days"`
	VolSpread      float64   `json:"vol_spread"` // forecast minus implied
	HedgeRatio     float64   `json:"hedge_ratio"`
	ExpectedReturn float64   `json:"expected_return"`
	RiskEstimate   float64   `json:"risk_estimate"`
}

// New constructs a Signal with scores clamped into their legal ranges.
func New(s Signal) Signal {
	s.Strength = formulas.Clamp(s.Strength, 0, maxStrength)
	s.Confidence = formulas.Clamp(s.Confidence, 0, maxConfidence)
	return s
}

// BoostStrength scales strength by factor and re-clamps.
func (s *Signal) BoostStrength(factor float64) {
	s.Strength = formulas.Clamp(s.Strength*factor, 0, maxStrength)
}

// ScaleConfidence scales confidence by factor and re-clamps.
func (s *Signal) ScaleConfidence(factor float64) {
	s.Confidence = formulas.Clamp(s.Confidence*factor, 0, maxConfidence)
}
