package config

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// Config holds the engine's persistent configuration: the owner identity,
// the minimum profit threshold, and the knobs of the demo environment the
// run command builds.
type Config struct {
	// Identities, hex-encoded addresses.
	Owner         string `json:"owner" yaml:"owner"`
	EngineAddress string `json:"engine_address" yaml:"engine_address"`

	// Execution settings.
	MinProfitThreshold *big.Int `json:"min_profit_threshold" yaml:"min_profit_threshold"`
	HistorySize        int      `json:"history_size" yaml:"history_size"`

	// Lender settings.
	PooledPremiumBps uint16 `json:"pooled_premium_bps" yaml:"pooled_premium_bps"`

	// Venue settings.
	VenueFeeBps uint16 `json:"venue_fee_bps" yaml:"venue_fee_bps"`

	// Watch-mode pacing.
	WatchInterval time.Duration `json:"watch_interval" yaml:"watch_interval"`

	// Internal components.
	Logger *zap.Logger `json:"-" yaml:"-"`
}

// DefaultConfig returns a config usable for the in-memory demo environment.
func DefaultConfig() *Config {
	return &Config{
		Owner:              "0x00000000000000000000000000000000000a11ce",
		EngineAddress:      "0x0000000000000000000000000000000000e4617e",
		MinProfitThreshold: new(big.Int),
		HistorySize:        128,
		PooledPremiumBps:   9,
		VenueFeeBps:        30,
		WatchInterval:      5 * time.Second,
	}
}

// LoadConfig reads a JSON or YAML config file, falling back to defaults and
// environment overrides when path is empty.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("parse yaml config: %w", err)
			}
		default:
			if err := json.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("parse json config: %w", err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants the engine depends on.
func (c *Config) Validate() error {
	var problems []string

	if c.Owner == "" {
		problems = append(problems, "owner must be specified")
	}
	if c.EngineAddress == "" {
		problems = append(problems, "engine_address must be specified")
	}
	if c.MinProfitThreshold == nil || c.MinProfitThreshold.Sign() < 0 {
		problems = append(problems, "min_profit_threshold must be non-negative")
	}
	if c.HistorySize <= 0 {
		problems = append(problems, "history_size must be positive")
	}
	if c.PooledPremiumBps >= 10000 {
		problems = append(problems, "pooled_premium_bps must be below 10000")
	}
	if c.VenueFeeBps >= 10000 {
		problems = append(problems, "venue_fee_bps must be below 10000")
	}
	if c.WatchInterval <= 0 {
		problems = append(problems, "watch_interval must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvOwner); v != "" {
		cfg.Owner = v
	}
	if v := os.Getenv(EnvEngineAddress); v != "" {
		cfg.EngineAddress = v
	}
	if v := os.Getenv(EnvMinProfit); v != "" {
		if n, ok := new(big.Int).SetString(v, 10); ok {
			cfg.MinProfitThreshold = n
		}
	}
}
