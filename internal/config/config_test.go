package config

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// validConfig returns a config that passes Validate, mirroring the envconfig defaults.
func validConfig() *Config {
	return &Config{
		Port:                      8090,
		RPCURLs:                   []string{"https://rpc.example"},
		SwapMode:                  SwapModePaced,
		FundingInterval:           time.Second,
		SwapInterval:              time.Second,
		SwapBatchSize:             5,
		SellBatchSize:             1,
		BalanceReadBatch:          10,
		SweepConcurrency:          10,
		BalanceMaxRetries:         10,
		SwapMaxRetries:            3,
		SellMaxRetries:            10,
		ConfirmationRetries:       30,
		ConfirmationCheckInterval: time.Second,
		ResendInterval:            time.Second,
		MaxResends:                30,
		SwapDelayMin:              time.Second,
		SwapDelayMax:              3 * time.Second,
		DefaultSlippageBps:        3000,
		DefaultPriorityFee:        decimal.RequireFromString("0.0005"),
		FundingBuffer:             decimal.RequireFromString("0.02"),
	}
}

func TestValidate_Valid(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"no rpc urls", func(c *Config) { c.RPCURLs = nil }},
		{"unknown swap mode", func(c *Config) { c.SwapMode = "burst" }},
		{"port zero", func(c *Config) { c.Port = 0 }},
		{"port too high", func(c *Config) { c.Port = 65536 }},
		{"zero swap batch", func(c *Config) { c.SwapBatchSize = 0 }},
		{"zero read batch", func(c *Config) { c.BalanceReadBatch = 0 }},
		{"zero confirmation retries", func(c *Config) { c.ConfirmationRetries = 0 }},
		{"negative resends", func(c *Config) { c.MaxResends = -1 }},
		{"zero funding interval", func(c *Config) { c.FundingInterval = 0 }},
		{"inverted delay range", func(c *Config) { c.SwapDelayMin = 5 * time.Second }},
		{"slippage above 100%", func(c *Config) { c.DefaultSlippageBps = 10_001 }},
		{"negative priority fee", func(c *Config) { c.DefaultPriorityFee = decimal.RequireFromString("-0.1") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want wrapping ErrInvalidConfig", err)
			}
		})
	}
}

func TestValidate_BatchedMode(t *testing.T) {
	cfg := validConfig()
	cfg.SwapMode = SwapModeBatched
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SOLFAN_RPC_URLS", "https://a.example,https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.RPCURLs) != 2 {
		t.Fatalf("RPCURLs = %v, want 2 entries", cfg.RPCURLs)
	}
	if cfg.DASURL != "https://a.example" {
		t.Errorf("DASURL = %q, want first RPC URL", cfg.DASURL)
	}
	if cfg.SwapMode != SwapModePaced {
		t.Errorf("SwapMode = %q, want %q", cfg.SwapMode, SwapModePaced)
	}
	if cfg.FundingInterval != time.Second {
		t.Errorf("FundingInterval = %v, want 1s", cfg.FundingInterval)
	}
	if cfg.ConfirmationRetryTimeout != 500*time.Millisecond {
		t.Errorf("ConfirmationRetryTimeout = %v, want 500ms", cfg.ConfirmationRetryTimeout)
	}
	if !cfg.DefaultPriorityFee.Equal(decimal.RequireFromString("0.0005")) {
		t.Errorf("DefaultPriorityFee = %s, want 0.0005", cfg.DefaultPriorityFee)
	}
	if !cfg.FundingBuffer.Equal(decimal.RequireFromString("0.02")) {
		t.Errorf("FundingBuffer = %s, want 0.02", cfg.FundingBuffer)
	}
	if cfg.SweepFeeReserveLamports != SOLBaseTransactionFee {
		t.Errorf("SweepFeeReserveLamports = %d, want %d", cfg.SweepFeeReserveLamports, SOLBaseTransactionFee)
	}
}

func TestLoad_ExplicitDASURL(t *testing.T) {
	t.Setenv("SOLFAN_RPC_URLS", "https://rpc.example")
	t.Setenv("SOLFAN_DAS_URL", "https://das.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DASURL != "https://das.example" {
		t.Errorf("DASURL = %q, want https://das.example", cfg.DASURL)
	}
}

func TestLoad_InvalidMode(t *testing.T) {
	t.Setenv("SOLFAN_SWAP_MODE", "yolo")

	if _, err := Load(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Load() error = %v, want ErrInvalidConfig", err)
	}
}
