package config

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/rebalancer/internal/domain"
)

const fullConfig = `
endpoint: http://localhost:8080/api
api_key: key
strategy_id: strat-1
positions:
  - symbol: USD
    amount: "1000"
  - symbol: BTC
    amount: "0.1"
timeout: 2s
rate_limit: 3
cancel_concurrency: 8
venues:
  cryptocurrency: KRAKEN
  default: NASDAQ
schedule: "0 * * * *"
dry_run: true
log_level: debug
reference:
  source: bybit
  quote: USDC
  max_deviation: "2.5"
`

func TestParse_Full(t *testing.T) {
	cfg, err := Parse([]byte(fullConfig))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "http://localhost:8080/api", cfg.Endpoint)
	assert.Equal(t, "key", cfg.APIKey)
	assert.Equal(t, "strat-1", cfg.StrategyID)
	require.Len(t, cfg.Positions, 2)
	assert.Equal(t, "BTC", cfg.Positions[1].Symbol)
	assert.True(t, cfg.Positions[1].Amount.Equal(decimal.RequireFromString("0.1")))
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.Equal(t, float64(3), cfg.RateLimit)
	assert.Equal(t, 8, cfg.CancelConcurrency)
	assert.Equal(t, "KRAKEN", cfg.Venues.Crypto)
	assert.Equal(t, "NASDAQ", cfg.Venues.Default)
	assert.Equal(t, "0 * * * *", cfg.Schedule)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "bybit", cfg.Reference.Source)
	assert.Equal(t, "USDC", cfg.Reference.Quote)
	assert.True(t, cfg.Reference.MaxDeviation.Equal(decimal.RequireFromString("2.5")))
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(`
api_key: key
strategy_id: strat-1
positions:
  - symbol: TSLA
    amount: "3"
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultEndpoint, cfg.Endpoint)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, float64(DefaultRateLimit), cfg.RateLimit)
	assert.Equal(t, DefaultCancelConcurrency, cfg.CancelConcurrency)
	assert.Equal(t, "COINBASE", cfg.Venues.Crypto)
	assert.Equal(t, "", cfg.Venues.Default)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.False(t, cfg.Reference.Enabled())
	assert.Equal(t, DefaultReferenceQuote, cfg.Reference.Quote)
	assert.True(t, cfg.Reference.MaxDeviation.Equal(decimal.NewFromInt(5)))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "not yaml", yaml: "positions: [unclosed"},
		{name: "bad amount", yaml: "positions:\n  - symbol: BTC\n    amount: lots\n"},
		{name: "bad deviation", yaml: "reference:\n  max_deviation: much\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func validConfig() Config {
	return Config{
		Endpoint:   DefaultEndpoint,
		APIKey:     "key",
		StrategyID: "strat-1",
		Positions: []domain.TargetPosition{
			{Symbol: "USD", Amount: decimal.NewFromInt(1000)},
			{Symbol: "BTC", Amount: decimal.RequireFromString("0.1")},
		},
		Reference: ReferenceConfig{Quote: DefaultReferenceQuote, MaxDeviation: decimal.NewFromInt(5)},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "no endpoint", mutate: func(c *Config) { c.Endpoint = "" }},
		{name: "no api key", mutate: func(c *Config) { c.APIKey = "" }},
		{name: "no strategy", mutate: func(c *Config) { c.StrategyID = "" }},
		{name: "no positions", mutate: func(c *Config) { c.Positions = nil }},
		{name: "empty symbol", mutate: func(c *Config) { c.Positions[1].Symbol = "" }},
		{name: "duplicate symbol", mutate: func(c *Config) { c.Positions[1].Symbol = "USD" }},
		{name: "negative amount", mutate: func(c *Config) { c.Positions[1].Amount = decimal.NewFromInt(-1) }},
		{name: "bad schedule", mutate: func(c *Config) { c.Schedule = "every hour" }},
		{name: "unknown reference", mutate: func(c *Config) { c.Reference.Source = "kraken" }},
		{name: "zero deviation", mutate: func(c *Config) {
			c.Reference.Source = "binance"
			c.Reference.MaxDeviation = decimal.Zero
		}},
	}

	require.NoError(t, validConfig().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rebalance.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_key: from-file
positions:
  - symbol: BTC
    amount: "1"
`), 0o600))

	t.Setenv(EnvAPIKey, "from-env")
	t.Setenv(EnvStrategyID, "strat-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.APIKey)
	assert.Equal(t, "strat-env", cfg.StrategyID)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseFlags(t *testing.T) {
	f, err := ParseFlags(nil, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, Flags{ConfigPath: DefaultPath}, f)

	f, err = ParseFlags([]string{"--config", "custom.yaml", "--dry-run", "--once", "--setup"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, Flags{ConfigPath: "custom.yaml", Setup: true, DryRun: true, Once: true}, f)

	_, err = ParseFlags([]string{"--unknown"}, io.Discard)
	assert.Error(t, err)
}

func TestFlagsApply(t *testing.T) {
	cfg := validConfig()
	cfg.Schedule = "@hourly"

	Flags{DryRun: true, Once: true}.Apply(&cfg)
	assert.True(t, cfg.DryRun)
	assert.Empty(t, cfg.Schedule)

	cfg = validConfig()
	cfg.DryRun = true
	Flags{}.Apply(&cfg)
	assert.True(t, cfg.DryRun, "flags never switch dry run off")
}
