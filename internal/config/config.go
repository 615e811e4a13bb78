package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds runtime configuration: where data lives, where results go,
// and how the serve mode behaves. Strategy parameters live in TOML files
// loaded separately (see StrategyConfig).
type Config struct {
	DatabasePath  string
	DatasetPath   string
	RegimesPath   string
	StrategyPath  string
	SweepSchedule string
	LogLevel      string
	Port          int
	DevMode       bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnvAsInt("PORT", 8010),
		DevMode:       getEnvAsBool("DEV_MODE", false),
		DatabasePath:  getEnv("DATABASE_PATH", "./data/results.db"),
		DatasetPath:   getEnv("DATASET_PATH", "./data/market.csv"),
		RegimesPath:   getEnv("REGIMES_PATH", "./config/regimes.toml"),
		StrategyPath:  getEnv("STRATEGY_PATH", "./config/strategy.toml"),
		SweepSchedule: getEnv("SWEEP_SCHEDULE", "0 0 2 * * *"), // 02:00 daily
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.DatasetPath == "" {
		return fmt.Errorf("DATASET_PATH is required")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
