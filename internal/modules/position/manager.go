package position

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantlab/volarb/internal/marketdata"
	"github.com/quantlab/volarb/internal/modules/signal"
)

// Exit reasons, in priority order. Stable strings: persisted trade records
// and reports aggregate on them.
const (
	ExitExpiryWindow = "expiry_window"
	ExitProfitTarget = "profit_target"
	ExitStopLoss     = "stop_loss"
	ExitTrailingStop = "trailing_stop"
	ExitRegimeChange = "regime_change"
	ExitSignalDecay  = "signal_decay"
)

// ExitConfig controls the exit chain. Zero-value booleans give the plain
// target/stop/expiry behavior; richer variants switch on the rest.
type ExitConfig struct {
	CloseWindowDays int     // close this many days before expiry
	ProfitTarget    float64 // fraction of premium, e.g. 0.50
	StopLoss        float64 // negative fraction, e.g. -0.30

	StrengthScaledTarget bool // stronger signals ride to wider targets
	ConfidenceScaledStop bool // low-confidence entries stop out sooner

	TrailingEnabled    bool
	TrailingActivation float64 // return that arms the trailing stop
	TrailingDistance   float64 // giveback from high-water that closes

	RegimeChangeExit  bool
	RegimeChangeDelta float64 // absolute implied-vol move from entry

	DecayExitEnabled bool
	DecayMaxDays     int
	DecayMinReturn   float64

	MaxHistory int // bounded realized-trade queue
}

// DefaultExitConfig returns the plain exit profile.
func DefaultExitConfig() ExitConfig {
	return ExitConfig{
		CloseWindowDays: 5,
		ProfitTarget:    0.50,
		StopLoss:        -0.30,
		MaxHistory:      20,
	}
}

// FullExitConfig enables every exit criterion with the standard parameters.
func FullExitConfig() ExitConfig {
	cfg := DefaultExitConfig()
	cfg.CloseWindowDays = 3
	cfg.StrengthScaledTarget = true
	cfg.ConfidenceScaledStop = true
	cfg.TrailingEnabled = true
	cfg.TrailingActivation = 0.10
	cfg.TrailingDistance = 0.10
	cfg.RegimeChangeExit = true
	cfg.RegimeChangeDelta = 0.10
	cfg.DecayExitEnabled = true
	cfg.DecayMaxDays = 20
	cfg.DecayMinReturn = 0.05
	return cfg
}

// TradeRecord is one realized trade.
type TradeRecord struct {
	PositionID int         `json:"position_id"`
	Type       signal.Type `json:"type"`
	EntryTime  time.Time   `json:"entry_time"`
	ExitTime   time.Time   `json:"exit_time"`
	DaysHeld   int         `json:"days_held"`
	PnL        float64     `json:"pnl"`
	ReturnPct  float64     `json:"return_pct"`
	VolSpread  float64     `json:"vol_spread"`
	ExitReason string      `json:"exit_reason"`
}

// Manager owns open positions and the bounded history of realized trades.
// Not safe for concurrent use; each strategy instance owns exactly one.
type Manager struct {
	cfg     ExitConfig
	log     zerolog.Logger
	nextID  int
	open    []*Position
	history []TradeRecord
}

// NewManager creates a position Manager.
func NewManager(log zerolog.Logger, cfg ExitConfig) *Manager {
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = 20
	}
	return &Manager{
		cfg:    cfg,
		log:    log.With().Str("component", "position_manager").Logger(),
		nextID: 1,
	}
}

// OpenCount returns the number of active positions.
func (m *Manager) OpenCount() int {
	return len(m.open)
}

// Open establishes a position for an accepted signal. size is a fraction of
// capital. Returns nil when the allocation cannot buy a single contract.
func (m *Manager) Open(sig signal.Signal, capital, size float64, tick marketdata.Tick) *Position {
	premium := EstimatePremium(tick.Close, tick.ImpliedVol, sig.ExpiryDays)
	if premium <= 0 {
		return nil
	}

	contracts := int(capital * size / (premium * contractMultiplier))
	if contracts < 1 {
		m.log.Debug().Float64("size", size).Msg("allocation too small for one contract")
		return nil
	}
	if sig.Type == signal.TypeSellVol {
		contracts = -contracts
	}

	pos := &Position{
		ID:            m.nextID,
		Signal:        sig,
		EntryPrice:    premium,
		Quantity:      contracts,
		EntryTime:     tick.Date,
		EntryImplied:  tick.ImpliedVol,
		EntryRealized: tick.RealizedVol,
		Active:        true,
	}
	m.nextID++
	m.open = append(m.open, pos)

	m.log.Debug().
		Int("id", pos.ID).
		Str("type", string(sig.Type)).
		Int("contracts", contracts).
		Float64("premium", premium).
		Msg("position opened")

	return pos
}

// EstimatePremium approximates a straddle premium from spot, implied vol and
// time to expiry (0.8 * S * sigma * sqrt(T)).
func EstimatePremium(spot, impliedVol float64, expiryDays int) float64 {
	if expiryDays <= 0 {
		return 0
	}
	return 0.8 * spot * impliedVol * math.Sqrt(float64(expiryDays)/365.0)
}

// Update re-marks every open position against the tick and closes those that
// trip an exit. Returns the trades realized on this tick.
func (m *Manager) Update(tick marketdata.Tick) []TradeRecord {
	var closed []TradeRecord

	remaining := m.open[:0]
	for _, pos := range m.open {
		daysHeld := pos.DaysHeld(tick.Date)
		pos.UpdatePnL(pos.MarkPrice(tick.RealizedVol, daysHeld))

		if reason, exit := m.evaluateExit(pos, tick, daysHeld); exit {
			record, err := m.close(pos, tick.Date, daysHeld, reason)
			if err == nil {
				closed = append(closed, record)
			}
			continue
		}
		remaining = append(remaining, pos)
	}
	m.open = remaining

	return closed
}

// CloseAll force-closes every open position, marking at the given tick. Used
// at the end of a backtest window.
func (m *Manager) CloseAll(tick marketdata.Tick, reason string) []TradeRecord {
	var closed []TradeRecord
	for _, pos := range m.open {
		daysHeld := pos.DaysHeld(tick.Date)
		pos.UpdatePnL(pos.MarkPrice(tick.RealizedVol, daysHeld))
		if record, err := m.close(pos, tick.Date, daysHeld, reason); err == nil {
			closed = append(closed, record)
		}
	}
	m.open = m.open[:0]
	return closed
}

// evaluateExit walks the exit chain in fixed priority order. The first
// matching criterion wins; later ones are never consulted.
func (m *Manager) evaluateExit(pos *Position, tick marketdata.Tick, daysHeld int) (string, bool) {
	ret := pos.CurrentReturn()
	daysToExpiry := pos.Signal.ExpiryDays - daysHeld

	// 1. Expiry window.
	if daysToExpiry <= m.cfg.CloseWindowDays {
		return ExitExpiryWindow, true
	}

	// 2. Profit target, optionally stretched by signal strength.
	target := m.cfg.ProfitTarget
	if m.cfg.StrengthScaledTarget {
		target *= 1 + 0.5*pos.Signal.Strength
	}
	if ret >= target {
		return ExitProfitTarget, true
	}

	// 3. Stop loss, optionally tightened for low-confidence entries.
	stop := m.cfg.StopLoss
	if m.cfg.ConfidenceScaledStop {
		stop *= 0.5 + 0.5*pos.Signal.Confidence
	}
	if ret <= stop {
		return ExitStopLoss, true
	}

	// 4. Trailing stop with a per-position high-water mark.
	if m.cfg.TrailingEnabled {
		if ret >= m.cfg.TrailingActivation {
			pos.trailingArmed = true
		}
		if pos.trailingArmed {
			if ret > pos.highWater {
				pos.highWater = ret
			}
			if ret < pos.highWater-m.cfg.TrailingDistance {
				return ExitTrailingStop, true
			}
		}
	}

	// 5. Implied-vol regime shift away from the entry baseline.
	if m.cfg.RegimeChangeExit {
		if math.Abs(tick.ImpliedVol-pos.EntryImplied) > m.cfg.RegimeChangeDelta {
			return ExitRegimeChange, true
		}
	}

	// 6. Stale position going nowhere.
	if m.cfg.DecayExitEnabled {
		if daysHeld > m.cfg.DecayMaxDays && ret < m.cfg.DecayMinReturn {
			return ExitSignalDecay, true
		}
	}

	return "", false
}

// close finalizes a position exactly once. A second close attempt is an
// error and leaves the record untouched.
func (m *Manager) close(pos *Position, when time.Time, daysHeld int, reason string) (TradeRecord, error) {
	if !pos.Active {
		return TradeRecord{}, fmt.Errorf("position %d already closed", pos.ID)
	}
	pos.Active = false

	record := TradeRecord{
		PositionID: pos.ID,
		Type:       pos.Signal.Type,
		EntryTime:  pos.EntryTime,
		ExitTime:   when,
		DaysHeld:   daysHeld,
		PnL:        pos.PnL,
		ReturnPct:  pos.CurrentReturn(),
		VolSpread:  pos.Signal.VolSpread,
		ExitReason: reason,
	}

	m.history = append(m.history, record)
	if len(m.history) > m.cfg.MaxHistory {
		m.history = m.history[len(m.history)-m.cfg.MaxHistory:]
	}

	m.log.Debug().
		Int("id", pos.ID).
		Str("reason", reason).
		Float64("pnl", pos.PnL).
		Msg("position closed")

	return record, nil
}

// RecentPnLs returns the realized pnl of the bounded history, oldest first.
// Feeds the win-rate threshold factor.
func (m *Manager) RecentPnLs() []float64 {
	out := make([]float64, len(m.history))
	for i, r := range m.history {
		out[i] = r.PnL
	}
	return out
}

// UnrealizedPnL sums the marks of all open positions.
func (m *Manager) UnrealizedPnL() float64 {
	total := 0.0
	for _, pos := range m.open {
		total += pos.PnL
	}
	return total
}
