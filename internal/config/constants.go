package config

import "time"

// Solana
const (
	LamportsPerSOL        = 1_000_000_000
	SOLDecimals           = 9
	SOLNativeMint         = "So11111111111111111111111111111111111111112"
	SOLSystemProgramID    = "11111111111111111111111111111111"
	SOLComputeBudgetID    = "ComputeBudget111111111111111111111111111111"
	SOLBaseTransactionFee = 5_000 // lamports per signature
	SOLMaxTxSize          = 1232
	SOLExplorerTxURL      = "https://solscan.io/tx/%s"
)

// Transfers
const (
	// TransferComputeUnitLimit bounds a system transfer plus the two compute budget instructions.
	TransferComputeUnitLimit = 1_000
	MicroLamportsPerLamport  = 1_000_000
)

// Commitment levels accepted by the ledger RPC.
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

// Swap
const (
	SwapModePaced   = "paced"
	SwapModeBatched = "batched"
	MaxSlippageBps  = 10_000
	SwapTxVersion   = "v0"
)

// Wallet Storage
const (
	TempWalletDir      = "temp"
	TempWalletPrefix   = "temp-"
	WalletFileExt      = ".json"
	WalletFileMode     = 0o600
	WalletDirMode      = 0o700
	MainWalletMaxIndex = 1 << 20
	PoolTagLength      = 8 // leading mint characters naming a pool
)

// Rate Limiting / Circuit Breaker
const (
	CircuitClosed             = "closed"
	CircuitOpen               = "open"
	CircuitHalfOpen           = "half_open"
	CircuitBreakerThreshold   = 3
	CircuitBreakerCooldown    = 30 * time.Second
	CircuitBreakerHalfOpenMax = 1
	RateLimitDAS              = 10
	RateLimitSwapAPI          = 2
)

// HTTP
const (
	ProviderRequestTimeout = 30 * time.Second
	WSHandshakeTimeout     = 10 * time.Second
	WSWriteTimeout         = 10 * time.Second
	ServerReadTimeout      = 30 * time.Second
	ServerWriteTimeout     = 60 * time.Second
	ServerIdleTimeout      = 120 * time.Second
	ServerMaxHeaderBytes   = 1 << 20
	ShutdownTimeout        = 10 * time.Second
	MaxErrorBodyBytes      = 4096
)

// Price
const (
	CoinGeckoSOLID     = "solana"
	PriceCacheDuration = 5 * time.Minute
)

// Logging
const (
	LogFilePattern = "solfan-%s.log" // %s = YYYY-MM-DD
	LogFilePrefix  = "solfan-"
	LogMaxAgeDays  = 30
)

// Operation Journal
const (
	JournalPrefix           = "oplog_"
	JournalSegmentThreshold = 1000
	JournalMaxSegments      = 100
)

// API
const (
	DefaultRunListLimit = 50
	MaxRunListLimit     = 500
)
