package signal

import (
	"github.com/rs/zerolog"

	"github.com/quantlab/volarb/internal/marketdata"
	"github.com/quantlab/volarb/internal/modules/forecast"
	"github.com/quantlab/volarb/pkg/formulas"
)

const (
	// Strength saturates at a spread of three thresholds.
	strengthSaturation = 3.0

	confidenceWindow = 20
	riskWindow       = 60

	baseExpiryDays  = 30
	shortExpiryDays = 25
	longExpiryDays  = 35

	// Implied-vol levels (decimal) that shift the target expiry.
	highVolExpiryLevel = 0.30
	lowVolExpiryLevel  = 0.15

	// Spread beyond which expiry shortens and wide strikes kick in.
	strongSpread = 0.05
	wideSpread   = 0.06

	baseStrikeOffset     = 0.005
	wideBuyStrikeOffset  = 0.020
	wideSellStrikeOffset = 0.015

	regimeBoostFactor      = 1.3
	regimeConfidenceFactor = 1.15
)

// ExpectedReturnFunc scores the anticipated return of a candidate trade.
type ExpectedReturnFunc func(volSpread, impliedVol float64) float64

// RiskEstimateFunc scores the risk of a candidate trade from the dispersion
// of recent realized volatility.
type RiskEstimateFunc func(realizedVols []float64, impliedVol float64) float64

// Options selects the generator variant. The zero value is the plain
// fixed-offset behavior; richer policies enable regime alignment and
// spread-dependent strikes.
type Options struct {
	RegimeAlignment bool
	WideStrikes     bool
}

// Generator converts enriched market data into scored signals. It is pure
// given its inputs: the same frame and threshold always produce the same
// signal.
type Generator struct {
	forecaster     *forecast.Forecaster
	opts           Options
	expectedReturn ExpectedReturnFunc
	riskEstimate   RiskEstimateFunc
	log            zerolog.Logger
}

// NewGenerator creates a Generator with the default scoring functions.
func NewGenerator(log zerolog.Logger, forecaster *forecast.Forecaster, opts Options) *Generator {
	return &Generator{
		forecaster:     forecaster,
		opts:           opts,
		expectedReturn: DefaultExpectedReturn,
		riskEstimate:   DefaultRiskEstimate,
		log:            log.With().Str("component", "signal_generator").Logger(),
	}
}

// SetScorers overrides the scoring functions. Nil arguments keep the current
// function.
func (g *Generator) SetScorers(er ExpectedReturnFunc, re RiskEstimateFunc) {
	if er != nil {
		g.expectedReturn = er
	}
	if re != nil {
		g.riskEstimate = re
	}
}

// Generate evaluates the latest tick of the frame against the entry
// threshold. The boolean is false when no actionable signal exists, which is
// the common case and not an error.
func (g *Generator) Generate(frame *marketdata.Frame, threshold float64) (Signal, bool) {
	if frame.Len() == 0 || threshold <= 0 {
		return Signal{}, false
	}

	tick := frame.Last()
	forecastVol := g.forecaster.Forecast(frame.Returns())
	impliedVol := tick.ImpliedVol
	spread := forecastVol - impliedVol

	if absFloat(spread) <= threshold {
		return Signal{}, false
	}

	typ := TypeBuyVol
	if spread < 0 {
		typ = TypeSellVol
	}

	sig := New(Signal{
		Type:           typ,
		Strength:       absFloat(spread) / (strengthSaturation * threshold),
		Confidence:     g.confidence(frame),
		Timestamp:      tick.Date,
		Strike:         g.strike(typ, tick.Close, spread),
		ExpiryDays:     g.expiryDays(impliedVol, spread),
		VolSpread:      spread,
		HedgeRatio:     1.0,
		ExpectedReturn: g.expectedReturn(spread, impliedVol),
		RiskEstimate:   g.riskEstimate(tailFloats(frame.RealizedVols(), riskWindow), impliedVol),
	})

	if g.opts.RegimeAlignment {
		if (typ == TypeBuyVol && tick.HighVolRegime) || (typ == TypeSellVol && tick.LowVolRegime) {
			sig.BoostStrength(regimeBoostFactor)
			sig.ScaleConfidence(regimeConfidenceFactor)
		}
	}

	g.log.Debug().
		Str("type", string(sig.Type)).
		Float64("forecast", forecastVol).
		Float64("implied", impliedVol).
		Float64("strength", sig.Strength).
		Float64("confidence", sig.Confidence).
		Msg("signal generated")

	return sig, true
}

// confidence maps the stability of recent realized volatility to [0, 0.95].
// A steadier vol series earns more confidence in the forecast.
func (g *Generator) confidence(frame *marketdata.Frame) float64 {
	vols := tailFloats(frame.RealizedVols(), confidenceWindow)
	dispersion := formulas.StdDev(vols)
	return formulas.Clamp(2.0/(1.0+dispersion), 0, maxConfidence)
}

// strike places the contract slightly out of the money, wider when the edge
// is large and the variant allows it.
func (g *Generator) strike(typ Type, spot, spread float64) float64 {
	offset := baseStrikeOffset
	if g.opts.WideStrikes && absFloat(spread) > wideSpread {
		if typ == TypeBuyVol {
			offset = wideBuyStrikeOffset
		} else {
			offset = wideSellStrikeOffset
		}
	}
	return spot * (1 + offset)
}

// expiryDays targets roughly a month, shortened in stressed or high-edge
// conditions and stretched in quiet ones.
func (g *Generator) expiryDays(impliedVol, spread float64) int {
	days := baseExpiryDays
	if impliedVol > highVolExpiryLevel {
		days = shortExpiryDays
	} else if impliedVol < lowVolExpiryLevel {
		days = longExpiryDays
	}
	if absFloat(spread) > strongSpread {
		days = shortExpiryDays
	}
	return days
}

// DefaultExpectedReturn scales linearly with the spread edge.
func DefaultExpectedReturn(volSpread, impliedVol float64) float64 {
	return absFloat(volSpread) * 10
}

// DefaultRiskEstimate doubles the recent vol dispersion and scales it by how
// elevated the implied level is relative to a 15% baseline.
func DefaultRiskEstimate(realizedVols []float64, impliedVol float64) float64 {
	uncertainty := formulas.StdDev(realizedVols) * 2
	multiplier := 1 + (impliedVol-0.15)/0.15
	if multiplier < 0.5 {
		multiplier = 0.5
	}
	return uncertainty * multiplier
}

func tailFloats(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
