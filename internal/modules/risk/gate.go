// Package risk gates scored signals against portfolio limits and sizes the
// accepted ones with a fractional Kelly criterion. The gate never errors: a
// rejected signal is a normal outcome carrying a reason string.
package risk

import (
	"github.com/rs/zerolog"

	"github.com/quantlab/volarb/internal/modules/signal"
	"github.com/quantlab/volarb/pkg/formulas"
)

// Reason strings for rejected signals. Stable so downstream reporting can
// aggregate on them.
const (
	ReasonAccepted      = "accepted"
	ReasonLowConfidence = "confidence below floor"
	ReasonLowStrength   = "strength below floor"
	ReasonRiskCeiling   = "risk estimate above ceiling"
	ReasonPositionLimit = "position limit reached"
	ReasonThinSpread    = "vol spread too thin"
	ReasonNoCapital     = "no capital available"
)

// GateConfig bounds what the gate lets through and how Kelly sizing is
// scaled. Floors and ceilings shift with the volatility regime.
type GateConfig struct {
	ConfidenceFloor float64
	StrengthFloor   float64
	MinVolSpread    float64

	BaseRiskCeiling    float64 // fraction of capital at risk per trade
	HighVolRiskCeiling float64
	LowVolRiskCeiling  float64

	MaxPositions       int
	MaxPositionsLowVol int

	KellyFraction   float64
	MinPositionSize float64 // fraction of capital
	MaxPositionSize float64

	// VolatilityScaling toggles regime-dependent size scaling; when false,
	// accepted sizes pass through unchanged.
	VolatilityScaling bool
	// Divisor applied to accepted sizes in a high-vol regime; >1 shrinks.
	VolRegimeMultiplier float64
}

// DefaultGateConfig returns the moderate profile.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		ConfidenceFloor: 0.3,
		StrengthFloor:   0.2,
		MinVolSpread:    0.015,

		BaseRiskCeiling:    0.10,
		HighVolRiskCeiling: 0.12,
		LowVolRiskCeiling:  0.06,

		MaxPositions:       5,
		MaxPositionsLowVol: 8,

		KellyFraction:   0.25,
		MinPositionSize: 0.02,
		MaxPositionSize: 0.15,

		VolatilityScaling:   true,
		VolRegimeMultiplier: 1.4,
	}
}

// ConservativeGateConfig raises the floors and tightens the spread minimum.
func ConservativeGateConfig() GateConfig {
	cfg := DefaultGateConfig()
	cfg.ConfidenceFloor = 0.45
	cfg.StrengthFloor = 0.35
	cfg.MinVolSpread = 0.02
	return cfg
}

// Conditions is the market and portfolio state the gate evaluates against.
type Conditions struct {
	OpenPositions int
	Capital       float64
	ImpliedVol    float64
	HighVolRegime bool
	LowVolRegime  bool
}

// Decision is the gate's verdict. Size is a fraction of capital, zero when
// rejected, and always inside [MinPositionSize, MaxPositionSize] when
// accepted.
type Decision struct {
	Accepted bool    `json:"accepted"`
	Size     float64 `json:"size"`
	Reason   string  `json:"reason"`
}

// Gate applies configured limits and fractional Kelly sizing.
type Gate struct {
	cfg GateConfig
	log zerolog.Logger
}

// NewGate creates a Gate.
func NewGate(log zerolog.Logger, cfg GateConfig) *Gate {
	return &Gate{
		cfg: cfg,
		log: log.With().Str("component", "risk_gate").Logger(),
	}
}

// Evaluate checks a signal against the gate and, if it passes, sizes it.
func (g *Gate) Evaluate(sig signal.Signal, cond Conditions) Decision {
	if reason, ok := g.check(sig, cond); !ok {
		g.log.Debug().
			Str("type", string(sig.Type)).
			Str("reason", reason).
			Msg("signal rejected")
		return Decision{Accepted: false, Size: 0, Reason: reason}
	}

	size := g.kellySize(sig)
	size = g.scaleForRegime(size, cond)

	return Decision{Accepted: true, Size: size, Reason: ReasonAccepted}
}

func (g *Gate) check(sig signal.Signal, cond Conditions) (string, bool) {
	if cond.Capital <= 0 {
		return ReasonNoCapital, false
	}
	if sig.Confidence < g.cfg.ConfidenceFloor {
		return ReasonLowConfidence, false
	}
	if sig.Strength < g.cfg.StrengthFloor {
		return ReasonLowStrength, false
	}
	if abs(sig.VolSpread) < g.cfg.MinVolSpread {
		return ReasonThinSpread, false
	}
	if sig.RiskEstimate > g.riskCeiling(cond) {
		return ReasonRiskCeiling, false
	}
	if cond.OpenPositions >= g.positionLimit(cond) {
		return ReasonPositionLimit, false
	}
	return ReasonAccepted, true
}

// riskCeiling widens in high-vol regimes, where large risk estimates are the
// norm, and narrows in quiet ones.
func (g *Gate) riskCeiling(cond Conditions) float64 {
	switch {
	case cond.HighVolRegime:
		return g.cfg.HighVolRiskCeiling
	case cond.LowVolRegime:
		return g.cfg.LowVolRiskCeiling
	}
	return g.cfg.BaseRiskCeiling
}

// positionLimit allows more concurrent positions when volatility is quiet.
func (g *Gate) positionLimit(cond Conditions) int {
	if cond.LowVolRegime {
		return g.cfg.MaxPositionsLowVol
	}
	return g.cfg.MaxPositions
}

// kellySize computes a fractional Kelly position size from the signal's
// quality scores.
//
// Steps:
//  1. Map strength x confidence to a win probability in [0.3, 0.8].
//  2. Split |expected return| into average win (60%) and loss (40%).
//  3. Kelly fraction f = (b*p - q) / b with b = avgWin / avgLoss.
//  4. Scale by the configured Kelly fraction and clamp to position bounds.
func (g *Gate) kellySize(sig signal.Signal) float64 {
	p := formulas.Clamp((sig.Strength*sig.Confidence+0.3)/1.3, 0.3, 0.8)
	q := 1 - p

	expected := abs(sig.ExpectedReturn)
	avgWin := expected * 0.6
	avgLoss := expected * 0.4
	if avgLoss == 0 {
		return g.cfg.MinPositionSize
	}

	b := avgWin / avgLoss
	f := (b*p - q) / b
	f *= g.cfg.KellyFraction

	return formulas.Clamp(f, g.cfg.MinPositionSize, g.cfg.MaxPositionSize)
}

// scaleForRegime shrinks accepted sizes in stressed markets and allows a
// modest bump in calm ones, re-clamping afterward. Disabled entirely when the
// config turns volatility scaling off.
func (g *Gate) scaleForRegime(size float64, cond Conditions) float64 {
	if !g.cfg.VolatilityScaling {
		return size
	}
	switch {
	case cond.HighVolRegime || cond.ImpliedVol > 0.30:
		if g.cfg.VolRegimeMultiplier > 0 {
			size /= g.cfg.VolRegimeMultiplier
		}
	case cond.LowVolRegime || cond.ImpliedVol < 0.15:
		size *= 1.2
	}
	return formulas.Clamp(size, g.cfg.MinPositionSize, g.cfg.MaxPositionSize)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
