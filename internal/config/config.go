package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	WalletDir  string `envconfig:"SOLFAN_WALLET_DIR" default:"./wallets"`
	DBPath     string `envconfig:"SOLFAN_DB_PATH" default:"./data/solfan.sqlite"`
	LogLevel   string `envconfig:"SOLFAN_LOG_LEVEL" default:"info"`
	LogDir     string `envconfig:"SOLFAN_LOG_DIR" default:"./logs"`
	OpLogPath  string `envconfig:"SOLFAN_OPLOG_PATH" default:"./transaction_log.txt"`
	JournalDir string `envconfig:"SOLFAN_JOURNAL_DIR" default:"./data/journal"`
	Port       int    `envconfig:"SOLFAN_PORT" default:"8090"`

	RPCURLs    []string `envconfig:"SOLFAN_RPC_URLS" default:"https://api.mainnet-beta.solana.com"`
	WSURL      string   `envconfig:"SOLFAN_WS_URL"`
	DASURL     string   `envconfig:"SOLFAN_DAS_URL"`
	SwapAPIURL string   `envconfig:"SOLFAN_SWAP_API_URL" default:"https://swap-v2.solanatracker.io"`
	SwapAPIKey string   `envconfig:"SOLFAN_SWAP_API_KEY"`
	PriceURL   string   `envconfig:"SOLFAN_PRICE_URL" default:"https://api.coingecko.com/api/v3"`
	RPCRateRPS int      `envconfig:"SOLFAN_RPC_RPS" default:"10"`

	FundingInterval   time.Duration `envconfig:"SOLFAN_FUNDING_INTERVAL" default:"1s"`
	SwapMode          string        `envconfig:"SOLFAN_SWAP_MODE" default:"paced"`
	SwapInterval      time.Duration `envconfig:"SOLFAN_SWAP_INTERVAL" default:"1s"`
	SwapBatchSize     int           `envconfig:"SOLFAN_SWAP_BATCH_SIZE" default:"5"`
	SwapBatchCooldown time.Duration `envconfig:"SOLFAN_SWAP_BATCH_COOLDOWN" default:"2s"`
	SellBatchSize     int           `envconfig:"SOLFAN_SELL_BATCH_SIZE" default:"1"`
	SellCooldown      time.Duration `envconfig:"SOLFAN_SELL_COOLDOWN" default:"5s"`
	BalanceReadBatch  int           `envconfig:"SOLFAN_BALANCE_READ_BATCH" default:"10"`
	BalanceReadDelay  time.Duration `envconfig:"SOLFAN_BALANCE_READ_DELAY" default:"1s"`
	SweepConcurrency  int           `envconfig:"SOLFAN_SWEEP_CONCURRENCY" default:"10"`

	BalanceMaxRetries          int           `envconfig:"SOLFAN_BALANCE_MAX_RETRIES" default:"10"`
	BalanceRetryDelay          time.Duration `envconfig:"SOLFAN_BALANCE_RETRY_DELAY" default:"1s"`
	SwapMaxRetries             int           `envconfig:"SOLFAN_SWAP_MAX_RETRIES" default:"3"`
	SellMaxRetries             int           `envconfig:"SOLFAN_SELL_MAX_RETRIES" default:"10"`
	SwapRetryDelay             time.Duration `envconfig:"SOLFAN_SWAP_RETRY_DELAY" default:"1s"`
	ConfirmationRetries        int           `envconfig:"SOLFAN_CONFIRMATION_RETRIES" default:"30"`
	ConfirmationCheckInterval  time.Duration `envconfig:"SOLFAN_CONFIRMATION_CHECK_INTERVAL" default:"1s"`
	ConfirmationRetryTimeout   time.Duration `envconfig:"SOLFAN_CONFIRMATION_RETRY_TIMEOUT" default:"500ms"`
	ResendInterval             time.Duration `envconfig:"SOLFAN_RESEND_INTERVAL" default:"1s"`
	MaxResends                 int           `envconfig:"SOLFAN_MAX_RESENDS" default:"30"`
	LastValidBlockHeightBuffer uint64        `envconfig:"SOLFAN_LAST_VALID_BLOCK_HEIGHT_BUFFER" default:"150"`

	DefaultPriorityFee      decimal.Decimal `envconfig:"SOLFAN_DEFAULT_PRIORITY_FEE" default:"0.0005"`
	DefaultSlippageBps      int             `envconfig:"SOLFAN_DEFAULT_SLIPPAGE_BPS" default:"3000"`
	FundingBuffer           decimal.Decimal `envconfig:"SOLFAN_FUNDING_BUFFER" default:"0.02"`
	SweepFeeReserveLamports uint64          `envconfig:"SOLFAN_SWEEP_FEE_RESERVE_LAMPORTS" default:"5000"`
	SwapDelayMin            time.Duration   `envconfig:"SOLFAN_SWAP_DELAY_MIN" default:"1s"`
	SwapDelayMax            time.Duration   `envconfig:"SOLFAN_SWAP_DELAY_MAX" default:"3s"`
}

// Load reads configuration from .env file (if present) then from environment variables.
// Environment variables override .env values.
func Load() (*Config, error) {
	// godotenv does NOT override already-set env vars.
	envFiles := []string{".env"}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				slog.Warn("failed to load .env file", "file", f, "error", err)
			} else {
				slog.Info("loaded .env file", "file", f)
			}
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if cfg.DASURL == "" && len(cfg.RPCURLs) > 0 {
		cfg.DASURL = cfg.RPCURLs[0]
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	if len(c.RPCURLs) == 0 {
		return fmt.Errorf("%w: at least one RPC URL is required", ErrInvalidConfig)
	}
	if c.SwapMode != SwapModePaced && c.SwapMode != SwapModeBatched {
		return fmt.Errorf("%w: swap mode must be %q or %q, got %q", ErrInvalidConfig, SwapModePaced, SwapModeBatched, c.SwapMode)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port must be 1-65535, got %d", ErrInvalidConfig, c.Port)
	}

	positiveInts := map[string]int{
		"swap batch size":      c.SwapBatchSize,
		"sell batch size":      c.SellBatchSize,
		"balance read batch":   c.BalanceReadBatch,
		"sweep concurrency":    c.SweepConcurrency,
		"balance max retries":  c.BalanceMaxRetries,
		"confirmation retries": c.ConfirmationRetries,
	}
	for name, v := range positiveInts {
		if v < 1 {
			return fmt.Errorf("%w: %s must be >= 1, got %d", ErrInvalidConfig, name, v)
		}
	}
	if c.SwapMaxRetries < 0 || c.SellMaxRetries < 0 || c.MaxResends < 0 {
		return fmt.Errorf("%w: retry counts must not be negative", ErrInvalidConfig)
	}

	if c.FundingInterval <= 0 || c.SwapInterval <= 0 || c.ConfirmationCheckInterval <= 0 || c.ResendInterval <= 0 {
		return fmt.Errorf("%w: pacing and polling intervals must be positive", ErrInvalidConfig)
	}
	if c.SwapDelayMin < 0 || c.SwapDelayMin > c.SwapDelayMax {
		return fmt.Errorf("%w: swap delay range [%s, %s] is invalid", ErrInvalidConfig, c.SwapDelayMin, c.SwapDelayMax)
	}

	if c.DefaultSlippageBps < 0 || c.DefaultSlippageBps > MaxSlippageBps {
		return fmt.Errorf("%w: default slippage must be 0-%d bps, got %d", ErrInvalidConfig, MaxSlippageBps, c.DefaultSlippageBps)
	}
	if c.DefaultPriorityFee.IsNegative() || c.FundingBuffer.IsNegative() {
		return fmt.Errorf("%w: priority fee and funding buffer must not be negative", ErrInvalidConfig)
	}
	return nil
}
