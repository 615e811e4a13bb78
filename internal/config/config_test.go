package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultStrategyConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultStrategyConfig().Validate())
}

func TestStrategyConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*StrategyConfig)
	}{
		{"unknown policy", func(c *StrategyConfig) { c.Policy = "yolo" }},
		{"negative capital", func(c *StrategyConfig) { c.InitialCapital = -1000 }},
		{"zero threshold", func(c *StrategyConfig) { c.EntryThreshold = 0 }},
		{"zero lookback", func(c *StrategyConfig) { c.LookbackPeriod = 0 }},
		{"kelly above one", func(c *StrategyConfig) { c.KellyFraction = 1.5 }},
		{"inverted size bounds", func(c *StrategyConfig) { c.MinPositionSize = 0.2; c.MaxPositionSize = 0.1 }},
		{"positive stop loss", func(c *StrategyConfig) { c.StopLoss = 0.3 }},
		{"zero profit target", func(c *StrategyConfig) { c.ProfitTarget = 0 }},
		{"zero max var", func(c *StrategyConfig) { c.MaxVar = 0 }},
		{"max var above one", func(c *StrategyConfig) { c.MaxVar = 1.5 }},
		{"zero regime multiplier", func(c *StrategyConfig) { c.VolRegimeMultiplier = 0 }},
		{"zero trailing stop", func(c *StrategyConfig) { c.TrailingStopPct = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultStrategyConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadStrategyConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategy.toml")
	content := `
policy = "enhanced"
entry_threshold = 0.04
dynamic_thresholds = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadStrategyConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "enhanced", cfg.Policy)
	assert.Equal(t, 0.04, cfg.EntryThreshold)
	assert.True(t, cfg.DynamicThresholds)
	// Omitted keys keep their defaults.
	assert.Equal(t, 100000.0, cfg.InitialCapital)
	assert.Equal(t, 60, cfg.LookbackPeriod)
	assert.Equal(t, 0.10, cfg.MaxVar)
	assert.Equal(t, 1.4, cfg.VolRegimeMultiplier)
	assert.True(t, cfg.VolatilityScaling)
	assert.Equal(t, 0.10, cfg.TrailingStopPct)
}

func TestLoadStrategyConfigRiskKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategy.toml")
	content := `
max_var = 0.08
vol_regime_multiplier = 2.0
volatility_scaling = false
trailing_stop_pct = 0.15
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadStrategyConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.08, cfg.MaxVar)
	assert.Equal(t, 2.0, cfg.VolRegimeMultiplier)
	assert.False(t, cfg.VolatilityScaling)
	assert.Equal(t, 0.15, cfg.TrailingStopPct)
}

func TestLoadStrategyConfigRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategy.toml")
	require.NoError(t, os.WriteFile(path, []byte("initial_capital = -5.0\n"), 0o644))

	_, err := LoadStrategyConfig(path)
	assert.Error(t, err)
}

func TestLoadStrategyConfigMissingFile(t *testing.T) {
	_, err := LoadStrategyConfig(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadRuntimeConfigDefaults(t *testing.T) {
	os.Unsetenv("DATABASE_PATH")
	os.Unsetenv("PORT")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8010, cfg.Port)
	assert.Equal(t, "./data/results.db", cfg.DatabasePath)
	assert.Equal(t, "info", cfg.LogLevel)
}
