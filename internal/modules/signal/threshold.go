package signal

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/quantlab/volarb/internal/marketdata"
	"github.com/quantlab/volarb/pkg/formulas"
)

const (
	volLevelWindow    = 20
	correlationWindow = 30
	minCorrelationObs = 15

	winRateMinTrades = 5
	winRateMaxTrades = 10
)

// FactorResult records one threshold adjustment factor. Skipped factors are
// reported with Applied=false and a neutral value so callers can audit the
// composition.
type FactorResult struct {
	Name    string  `json:"name"`
	Value   float64 `json:"value"`
	Applied bool    `json:"applied"`
}

// AdjusterConfig parameterizes the three market-condition factors and the
// final clamp. DefaultAdjusterConfig gives the wide clamp; conservative
// variants tighten it.
type AdjusterConfig struct {
	HighVolRatio  float64 // implied above this multiple of its mean is stressed
	HighVolFactor float64
	LowVolRatio   float64
	LowVolFactor  float64

	LowWinRate     float64
	LowWinFactor   float64
	HighWinRate    float64
	HighWinFactor  float64

	HighCorrelation float64
	HighCorrFactor  float64
	LowCorrelation  float64
	LowCorrFactor   float64

	MinMultiple float64
	MaxMultiple float64
}

// DefaultAdjusterConfig returns the standard factor parameters with the wide
// [0.5x, 2x] clamp.
func DefaultAdjusterConfig() AdjusterConfig {
	return AdjusterConfig{
		HighVolRatio:  1.2,
		HighVolFactor: 0.85,
		LowVolRatio:   0.8,
		LowVolFactor:  1.15,

		LowWinRate:    0.3,
		LowWinFactor:  1.4,
		HighWinRate:   0.7,
		HighWinFactor: 0.9,

		HighCorrelation: 0.8,
		HighCorrFactor:  1.2,
		LowCorrelation:  0.4,
		LowCorrFactor:   0.85,

		MinMultiple: 0.5,
		MaxMultiple: 2.0,
	}
}

// TightAdjusterConfig narrows the clamp to [0.7x, 1.4x] for conservative
// variants.
func TightAdjusterConfig() AdjusterConfig {
	cfg := DefaultAdjusterConfig()
	cfg.MinMultiple = 0.7
	cfg.MaxMultiple = 1.4
	return cfg
}

// Adjuster scales a base entry threshold by independent market-condition
// factors. Each factor either applies cleanly or is skipped; a skipped factor
// never zeroes or distorts the others.
type Adjuster struct {
	cfg AdjusterConfig
	log zerolog.Logger
}

// NewAdjuster creates a threshold Adjuster.
func NewAdjuster(log zerolog.Logger, cfg AdjusterConfig) *Adjuster {
	return &Adjuster{
		cfg: cfg,
		log: log.With().Str("component", "threshold_adjuster").Logger(),
	}
}

// Adjust returns the adjusted threshold together with the per-factor audit
// trail. recentPnLs are realized trade results, oldest first.
func (a *Adjuster) Adjust(base float64, frame *marketdata.Frame, recentPnLs []float64) (float64, []FactorResult) {
	multiple := 1.0
	results := make([]FactorResult, 0, 3)

	for _, factor := range []struct {
		name string
		eval func() (float64, bool)
	}{
		{"vol_level", func() (float64, bool) { return a.volLevelFactor(frame) }},
		{"win_rate", func() (float64, bool) { return a.winRateFactor(recentPnLs) }},
		{"vol_correlation", func() (float64, bool) { return a.correlationFactor(frame) }},
	} {
		value, applied := factor.eval()
		if applied {
			multiple *= value
		} else {
			value = 1.0
		}
		results = append(results, FactorResult{Name: factor.name, Value: value, Applied: applied})
	}

	multiple = formulas.Clamp(multiple, a.cfg.MinMultiple, a.cfg.MaxMultiple)
	adjusted := base * multiple

	a.log.Debug().
		Float64("base", base).
		Float64("multiple", multiple).
		Float64("adjusted", adjusted).
		Msg("threshold adjusted")

	return adjusted, results
}

// volLevelFactor tightens entries when implied vol is stretched above its
// recent mean and loosens them when it is depressed.
func (a *Adjuster) volLevelFactor(frame *marketdata.Frame) (float64, bool) {
	implied := frame.ImpliedVols()
	if len(implied) < volLevelWindow {
		return 1, false
	}
	window := implied[len(implied)-volLevelWindow:]
	mean := formulas.Mean(window)
	if mean == 0 {
		return 1, false
	}

	ratio := frame.Last().ImpliedVol / mean
	switch {
	case ratio > a.cfg.HighVolRatio:
		return a.cfg.HighVolFactor, true
	case ratio < a.cfg.LowVolRatio:
		return a.cfg.LowVolFactor, true
	}
	return 1, true
}

// winRateFactor raises the bar after a losing streak and relaxes it after a
// winning one. Requires a minimum sample of closed trades.
func (a *Adjuster) winRateFactor(recentPnLs []float64) (float64, bool) {
	if len(recentPnLs) < winRateMinTrades {
		return 1, false
	}
	sample := recentPnLs
	if len(sample) > winRateMaxTrades {
		sample = sample[len(sample)-winRateMaxTrades:]
	}

	wins := 0
	for _, pnl := range sample {
		if pnl > 0 {
			wins++
		}
	}
	winRate := float64(wins) / float64(len(sample))

	switch {
	case winRate < a.cfg.LowWinRate:
		return a.cfg.LowWinFactor, true
	case winRate > a.cfg.HighWinRate:
		return a.cfg.HighWinFactor, true
	}
	return 1, true
}

// correlationFactor reads how tightly realized and implied vol are tracking
// each other. An undefined correlation (constant series) skips the factor.
func (a *Adjuster) correlationFactor(frame *marketdata.Frame) (float64, bool) {
	realized := frame.RealizedVols()
	implied := frame.ImpliedVols()
	if len(realized) < minCorrelationObs {
		return 1, false
	}

	n := len(realized)
	window := correlationWindow
	if n < window {
		window = n
	}
	corr := formulas.Correlation(realized[n-window:], implied[n-window:])
	if math.IsNaN(corr) {
		return 1, false
	}

	switch {
	case corr > a.cfg.HighCorrelation:
		return a.cfg.HighCorrFactor, true
	case corr < a.cfg.LowCorrelation:
		return a.cfg.LowCorrFactor, true
	}
	return 1, true
}
