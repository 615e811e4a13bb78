package strategy

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlab/volarb/internal/config"
	"github.com/quantlab/volarb/internal/marketdata"
)

func day(offset int) time.Time {
	return time.Date(2021, 9, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

// edgeFrame produces conditions with a fat forecast-vs-implied spread, so a
// base policy reliably enters: choppy returns against a cheap implied level.
func edgeFrame(n int, implied float64) *marketdata.Frame {
	ticks := make([]marketdata.Tick, n)
	for i := range ticks {
		ret := 0.01
		if i%2 == 1 {
			ret = -0.01
		}
		ticks[i] = marketdata.Tick{
			Date:        day(i),
			Close:       100,
			Return:      ret,
			RealizedVol: 0.2,
			ImpliedVol:  implied,
		}
	}
	return marketdata.NewFrame(ticks)
}

func newStrategy(t *testing.T, policy string) *Strategy {
	cfg := config.DefaultStrategyConfig()
	cfg.Policy = policy
	s, err := New(zerolog.Nop(), cfg)
	require.NoError(t, err)
	return s
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := config.DefaultStrategyConfig()
	cfg.InitialCapital = -1
	_, err := New(zerolog.Nop(), cfg)
	assert.Error(t, err)
}

func TestPolicyVariants(t *testing.T) {
	for _, name := range []string{"base", "enhanced", "optimized"} {
		assert.Equal(t, name, newStrategy(t, name).PolicyName())
	}
}

func TestOnTickOpensWithoutTouchingCapital(t *testing.T) {
	s := newStrategy(t, "base")
	frame := edgeFrame(80, 0.10)

	s.OnTick(frame)
	require.Equal(t, 1, s.OpenPositions())
	assert.Equal(t, 100000.0, s.Capital(), "capital moves only when a trade closes")
	assert.Empty(t, s.Trades())
}

func TestOnTickNoEdgeNoEntry(t *testing.T) {
	s := newStrategy(t, "base")
	// Implied pinned near the forecast leaves the spread inside the threshold.
	frame := edgeFrame(80, 0.18)

	s.OnTick(frame)
	assert.Equal(t, 0, s.OpenPositions())
}

func TestFinishRealizesOpenPositions(t *testing.T) {
	s := newStrategy(t, "base")
	frame := edgeFrame(80, 0.10)

	s.OnTick(frame)
	require.Equal(t, 1, s.OpenPositions())

	s.Finish(frame)
	assert.Equal(t, 0, s.OpenPositions())
	require.Len(t, s.Trades(), 1)
	assert.Equal(t, "window_end", s.Trades()[0].ExitReason)
	// Closing on the entry tick has zero pnl, so equity equals capital.
	assert.Equal(t, s.Capital(), s.Equity())
}

func TestPolicyThreadsRiskParameters(t *testing.T) {
	cfg := config.DefaultStrategyConfig()
	cfg.Policy = "enhanced"
	cfg.TrailingStopPct = 0.17
	cfg.ProfitTarget = 0.42

	p := NewPolicy(zerolog.Nop(), cfg)
	rules := p.ExitRules()
	assert.Equal(t, 0.17, rules.TrailingDistance)
	assert.Equal(t, 0.42, rules.ProfitTarget)

	cfg.Policy = "optimized"
	rules = NewPolicy(zerolog.Nop(), cfg).ExitRules()
	assert.Equal(t, 0.17, rules.TrailingDistance)
}

func TestPolicyHonorsMaxVar(t *testing.T) {
	// Drifting realized vol gives the signal a nonzero risk estimate, so the
	// configured budget decides whether the entry clears the ceiling.
	ticks := make([]marketdata.Tick, 80)
	for i := range ticks {
		ret := 0.01
		if i%2 == 1 {
			ret = -0.01
		}
		ticks[i] = marketdata.Tick{
			Date:        day(i),
			Close:       100,
			Return:      ret,
			RealizedVol: 0.2 + 0.002*float64(i),
			ImpliedVol:  0.10,
		}
	}
	frame := marketdata.NewFrame(ticks)

	tight := config.DefaultStrategyConfig()
	tight.MaxVar = 0.0001
	s, err := New(zerolog.Nop(), tight)
	require.NoError(t, err)

	s.OnTick(frame)
	assert.Equal(t, 0, s.OpenPositions(), "tight risk budget rejects the entry")

	relaxed := newStrategy(t, "base")
	relaxed.OnTick(frame)
	assert.Equal(t, 1, relaxed.OpenPositions(), "default budget accepts it")
}

func TestRunIsDeterministic(t *testing.T) {
	run := func() (float64, int) {
		s := newStrategy(t, "enhanced")
		frame := edgeFrame(150, 0.10)
		for i := 61; i <= frame.Len(); i++ {
			s.OnTick(frame.Prefix(i))
		}
		s.Finish(frame)
		return s.Capital(), len(s.Trades())
	}

	capitalA, tradesA := run()
	capitalB, tradesB := run()
	assert.Equal(t, capitalA, capitalB)
	assert.Equal(t, tradesA, tradesB)
}

func TestCapitalChangesOnlyAtClose(t *testing.T) {
	s := newStrategy(t, "base")
	frame := edgeFrame(150, 0.10)

	var closes int
	last := s.Capital()
	for i := 61; i <= frame.Len(); i++ {
		tradesBefore := len(s.Trades())
		s.OnTick(frame.Prefix(i))

		if len(s.Trades()) == tradesBefore {
			assert.Equal(t, last, s.Capital(), "tick %d: no close, no capital move", i)
		} else {
			closes += len(s.Trades()) - tradesBefore
		}
		last = s.Capital()
	}
	s.Finish(frame)
	assert.Positive(t, closes+len(s.Trades()), "the window should realize at least one trade")
}
