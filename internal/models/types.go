package models

import (
	"log/slog"

	"github.com/shopspring/decimal"
)

// WalletRole distinguishes long-lived main wallets from pool wallets.
type WalletRole string

const (
	RoleMain      WalletRole = "main"
	RoleEphemeral WalletRole = "ephemeral"
)

// WalletRecord is a persisted keypair. SecretKey is the base58 of the 64-byte ed25519 key.
type WalletRecord struct {
	PublicKey string     `json:"publicKey"`
	SecretKey string     `json:"secretKey"`
	Role      WalletRole `json:"-"`
	PoolTag   string     `json:"-"`
}

// LogValue keeps the secret key out of structured logs.
func (w WalletRecord) LogValue() slog.Value {
	return slog.StringValue(w.PublicKey)
}

// PoolMember is a wallet plus its last observed balance. Balances go stale immediately.
type PoolMember struct {
	Wallet       WalletRecord `json:"wallet"`
	Balance      uint64       `json:"balance"`
	AmountNeeded int64        `json:"amountNeeded"`
	Recycled     bool         `json:"recycled"`
}

// SwapRequest is the immutable per-wallet input to the swap router.
type SwapRequest struct {
	SourceMint      string          `json:"sourceMint"`
	DestinationMint string          `json:"destinationMint"`
	Amount          decimal.Decimal `json:"amount"`
	SlippageBps     int             `json:"slippageBps"`
	Sender          string          `json:"sender"`
	PriorityFee     decimal.Decimal `json:"priorityFee"`
}

// SlippagePercent converts basis points to the percentage the router expects.
func (r SwapRequest) SlippagePercent() decimal.Decimal {
	return decimal.NewFromInt(int64(r.SlippageBps)).Div(decimal.NewFromInt(100))
}

// TokenHolding is one fungible token balance of a wallet.
type TokenHolding struct {
	Mint          string          `json:"mint" yaml:"mint"`
	Symbol        string          `json:"symbol" yaml:"symbol"`
	RawAmount     uint64          `json:"rawAmount" yaml:"rawAmount"`
	Decimals      int             `json:"decimals" yaml:"decimals"`
	Balance       decimal.Decimal `json:"balance" yaml:"balance"`
	TotalPriceUSD decimal.Decimal `json:"totalPriceUsd" yaml:"totalPriceUsd"`
}

// Holdings is a point-in-time view of a wallet's native and token balances.
type Holdings struct {
	NativeLamports uint64         `json:"nativeLamports"`
	Tokens         []TokenHolding `json:"tokens"`
}

// TokenPosition aggregates one mint across many wallets.
type TokenPosition struct {
	Mint     string
	Symbol   string
	Total    decimal.Decimal
	PriceUSD decimal.Decimal
	Holders  []TokenHolder
}

// TokenHolder is a wallet holding part of a TokenPosition.
type TokenHolder struct {
	Wallet         WalletRecord
	Balance        decimal.Decimal
	RawAmount      uint64
	NativeLamports uint64
}

// BuyParams are the validated operator inputs of a buy run.
type BuyParams struct {
	SourcePublicKey string
	TotalAmount     decimal.Decimal
	WalletCount     int
	DestinationMint string
	PriorityFee     decimal.Decimal
	SlippageBps     int
}

// SellParams are the validated operator inputs of a sell run.
type SellParams struct {
	Mint        string
	PriorityFee decimal.Decimal
	SlippageBps int
}

// WalletBalance is a wallet listing entry for the balances report and API.
type WalletBalance struct {
	PublicKey string          `json:"publicKey" yaml:"publicKey"`
	Role      WalletRole      `json:"role" yaml:"role"`
	PoolTag   string          `json:"poolTag,omitempty" yaml:"poolTag,omitempty"`
	SOL       decimal.Decimal `json:"sol" yaml:"sol"`
	USD       string          `json:"usd,omitempty" yaml:"usd,omitempty"`
	Error     string          `json:"error,omitempty" yaml:"error,omitempty"`
}

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Data interface{} `json:"data,omitempty"`
	Meta *APIMeta    `json:"meta,omitempty"`
}

// APIMeta contains listing and execution metadata.
type APIMeta struct {
	Total         int64 `json:"total,omitempty"`
	ExecutionTime int64 `json:"executionTime,omitempty"`
}

// APIError is the standard error response.
type APIError struct {
	Error APIErrorDetail `json:"error"`
}

// APIErrorDetail contains error code and message.
type APIErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
