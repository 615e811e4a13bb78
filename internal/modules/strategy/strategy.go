package strategy

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/quantlab/volarb/internal/config"
	"github.com/quantlab/volarb/internal/marketdata"
	"github.com/quantlab/volarb/internal/modules/position"
	"github.com/quantlab/volarb/internal/modules/risk"
)

// Strategy drives one policy over a market-data window. It owns the capital
// ledger and the complete realized-trade log; the position manager keeps only
// a bounded recent history for threshold feedback.
//
// A Strategy is single-threaded and holds no shared state: regime sweeps
// construct a fresh instance per window.
type Strategy struct {
	cfg     config.StrategyConfig
	policy  Policy
	manager *position.Manager
	capital float64
	trades  []position.TradeRecord
	log     zerolog.Logger
}

// New validates the config and assembles a Strategy.
func New(log zerolog.Logger, cfg config.StrategyConfig) (*Strategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid strategy config: %w", err)
	}

	policy := NewPolicy(log, cfg)
	return &Strategy{
		cfg:     cfg,
		policy:  policy,
		manager: position.NewManager(log, policy.ExitRules()),
		capital: cfg.InitialCapital,
		log: log.With().
			Str("component", "strategy").
			Str("policy", policy.Name()).
			Logger(),
	}, nil
}

// PolicyName reports the active variant.
func (s *Strategy) PolicyName() string { return s.policy.Name() }

// Capital is the realized cash balance. It changes only when a position
// closes.
func (s *Strategy) Capital() float64 { return s.capital }

// Equity is capital plus the marks of open positions.
func (s *Strategy) Equity() float64 { return s.capital + s.manager.UnrealizedPnL() }

// OpenPositions returns the live position count.
func (s *Strategy) OpenPositions() int { return s.manager.OpenCount() }

// Trades returns all realized trades, oldest first.
func (s *Strategy) Trades() []position.TradeRecord { return s.trades }

// OnTick processes one trading day: exits first, then a possible entry. The
// frame view must end at the tick being processed.
func (s *Strategy) OnTick(view *marketdata.Frame) {
	if view.Len() == 0 {
		return
	}
	tick := view.Last()

	for _, record := range s.manager.Update(tick) {
		s.realize(record)
	}

	threshold := s.policy.EntryThreshold(view, s.manager.RecentPnLs())
	sig, ok := s.policy.GenerateSignal(view, threshold)
	if !ok {
		return
	}

	decision := s.policy.SizePosition(sig, risk.Conditions{
		OpenPositions: s.manager.OpenCount(),
		Capital:       s.capital,
		ImpliedVol:    tick.ImpliedVol,
		HighVolRegime: tick.HighVolRegime,
		LowVolRegime:  tick.LowVolRegime,
	})
	if !decision.Accepted {
		s.log.Debug().
			Str("type", string(sig.Type)).
			Str("reason", decision.Reason).
			Msg("entry rejected")
		return
	}

	s.manager.Open(sig, s.capital, decision.Size, tick)
}

// Finish force-closes whatever remains open at the end of the window.
func (s *Strategy) Finish(view *marketdata.Frame) {
	if view.Len() == 0 {
		return
	}
	for _, record := range s.manager.CloseAll(view.Last(), "window_end") {
		s.realize(record)
	}
}

// realize books a closed trade into the ledger exactly once.
func (s *Strategy) realize(record position.TradeRecord) {
	s.capital += record.PnL
	s.trades = append(s.trades, record)
}
