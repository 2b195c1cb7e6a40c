package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/rebalancer/internal/domain"
	"github.com/vadiminshakov/rebalancer/internal/services/pricer"
	"github.com/vadiminshakov/rebalancer/internal/services/resolver"
)

const (
	DefaultEndpoint          = "https://alphainsider.com/api"
	DefaultTimeout           = 5 * time.Second
	DefaultRateLimit         = 10
	DefaultCancelConcurrency = 4
	DefaultLogLevel          = "info"
	DefaultReferenceQuote    = "USDT"
	DefaultMaxDeviation      = "5"

	EnvAPIKey     = "ALPHAINSIDER_API_KEY"
	EnvStrategyID = "ALPHAINSIDER_STRATEGY_ID"
)

type Config struct {
	Endpoint          string
	APIKey            string
	StrategyID        string
	Positions         []domain.TargetPosition
	Timeout           time.Duration
	RateLimit         float64
	CancelConcurrency int
	Venues            resolver.Venues
	// Schedule cron expression, empty runs a single pass.
	Schedule  string
	DryRun    bool
	LogLevel  string
	Reference ReferenceConfig
}

// ReferenceConfig price guard against a public exchange. Disabled when Source is empty.
type ReferenceConfig struct {
	Source string
	Quote  string
	// MaxDeviation percent.
	MaxDeviation decimal.Decimal
}

// Enabled reports whether a reference source is configured.
func (r ReferenceConfig) Enabled() bool {
	return r.Source != ""
}

// ConfigTmp yaml representation of Config, decimals are kept as strings.
type ConfigTmp struct {
	Endpoint          string        `yaml:"endpoint,omitempty"`
	APIKey            string        `yaml:"api_key,omitempty"`
	StrategyID        string        `yaml:"strategy_id,omitempty"`
	Positions         []PositionTmp `yaml:"positions"`
	Timeout           time.Duration `yaml:"timeout,omitempty"`
	RateLimit         float64       `yaml:"rate_limit,omitempty"`
	CancelConcurrency int           `yaml:"cancel_concurrency,omitempty"`
	Venues            *VenuesTmp    `yaml:"venues,omitempty"`
	Schedule          string        `yaml:"schedule,omitempty"`
	DryRun            bool          `yaml:"dry_run,omitempty"`
	LogLevel          string        `yaml:"log_level,omitempty"`
	Reference         *ReferenceTmp `yaml:"reference,omitempty"`
}

type PositionTmp struct {
	Symbol string `yaml:"symbol"`
	Amount string `yaml:"amount"`
}

type VenuesTmp struct {
	Crypto  *string `yaml:"cryptocurrency,omitempty"`
	Default *string `yaml:"default,omitempty"`
}

type ReferenceTmp struct {
	Source          string `yaml:"source,omitempty"`
	Quote           string `yaml:"quote,omitempty"`
	MaxDeviationStr string `yaml:"max_deviation,omitempty"`
}

// Load reads the yaml config at path, applies .env and environment overrides and validates the result.
func Load(path string) (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg, err := Parse(f)
	if err != nil {
		return Config{}, err
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse converts yaml content into Config filling defaults. The result is not validated.
func Parse(data []byte) (Config, error) {
	var tmp ConfigTmp
	if err := yaml.Unmarshal(data, &tmp); err != nil {
		return Config{}, fmt.Errorf("failed to parse yaml config: %w", err)
	}
	return tmp.toConfig()
}

func (c ConfigTmp) toConfig() (Config, error) {
	cfg := Config{
		Endpoint:          c.Endpoint,
		APIKey:            c.APIKey,
		StrategyID:        c.StrategyID,
		Timeout:           c.Timeout,
		RateLimit:         c.RateLimit,
		CancelConcurrency: c.CancelConcurrency,
		Venues:            resolver.DefaultVenues(),
		Schedule:          c.Schedule,
		DryRun:            c.DryRun,
		LogLevel:          c.LogLevel,
		Reference: ReferenceConfig{
			Quote:        DefaultReferenceQuote,
			MaxDeviation: decimal.RequireFromString(DefaultMaxDeviation),
		},
	}

	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.CancelConcurrency == 0 {
		cfg.CancelConcurrency = DefaultCancelConcurrency
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	if c.Venues != nil {
		if c.Venues.Crypto != nil {
			cfg.Venues.Crypto = *c.Venues.Crypto
		}
		if c.Venues.Default != nil {
			cfg.Venues.Default = *c.Venues.Default
		}
	}

	if c.Reference != nil {
		cfg.Reference.Source = c.Reference.Source
		if c.Reference.Quote != "" {
			cfg.Reference.Quote = c.Reference.Quote
		}
		if c.Reference.MaxDeviationStr != "" {
			maxDeviation, err := decimal.NewFromString(c.Reference.MaxDeviationStr)
			if err != nil {
				return Config{}, fmt.Errorf("incorrect 'reference.max_deviation' param in yaml config (must be a decimal), error: %w", err)
			}
			cfg.Reference.MaxDeviation = maxDeviation
		}
	}

	for i, p := range c.Positions {
		amount, err := decimal.NewFromString(p.Amount)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'amount' of position %d (%s) in yaml config (must be a decimal), error: %w", i, p.Symbol, err)
		}
		cfg.Positions = append(cfg.Positions, domain.TargetPosition{Symbol: p.Symbol, Amount: amount})
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv(EnvStrategyID); v != "" {
		c.StrategyID = v
	}
}

// Validate checks required fields and the target allocation.
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("api key is required, set 'api_key' or %s", EnvAPIKey)
	}
	if c.StrategyID == "" {
		return fmt.Errorf("strategy id is required, set 'strategy_id' or %s", EnvStrategyID)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	if c.CancelConcurrency < 0 {
		return fmt.Errorf("cancel concurrency must not be negative")
	}

	if len(c.Positions) == 0 {
		return fmt.Errorf("at least one position is required")
	}
	seen := make(map[string]struct{}, len(c.Positions))
	for i, p := range c.Positions {
		if p.Symbol == "" {
			return fmt.Errorf("position %d has empty symbol", i)
		}
		if _, dup := seen[p.Symbol]; dup {
			return fmt.Errorf("duplicate position %s", p.Symbol)
		}
		seen[p.Symbol] = struct{}{}
		if p.Amount.IsNegative() {
			return fmt.Errorf("position %s has negative amount %s", p.Symbol, p.Amount)
		}
	}

	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", c.Schedule, err)
		}
	}

	switch c.Reference.Source {
	case "", pricer.SourceBinance, pricer.SourceBybit:
	default:
		return fmt.Errorf("unsupported reference source %q", c.Reference.Source)
	}
	if c.Reference.Enabled() && !c.Reference.MaxDeviation.IsPositive() {
		return fmt.Errorf("reference max deviation must be positive")
	}

	return nil
}
