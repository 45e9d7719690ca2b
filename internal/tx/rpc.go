package tx

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mr-tron/base58"

	"github.com/Fantasim/solfan/internal/config"
	"github.com/Fantasim/solfan/internal/provider"
)

// SignatureStatus is one entry of a getSignatureStatuses response.
type SignatureStatus struct {
	Slot               uint64          `json:"slot"`
	Confirmations      *uint64         `json:"confirmations"`
	ConfirmationStatus string          `json:"confirmationStatus"`
	Err                json.RawMessage `json:"err"`
}

// Failed reports whether the transaction landed with an on-chain error.
func (s *SignatureStatus) Failed() bool {
	return len(s.Err) > 0 && string(s.Err) != "null"
}

// Reached reports whether the status is at or beyond the given commitment.
func (s *SignatureStatus) Reached(commitment string) bool {
	return commitmentRank[s.ConfirmationStatus] >= commitmentRank[commitment] && commitmentRank[s.ConfirmationStatus] > 0
}

var commitmentRank = map[string]int{
	config.CommitmentProcessed: 1,
	config.CommitmentConfirmed: 2,
	config.CommitmentFinalized: 3,
}

// Blockhash is a recent blockhash and the last block height at which it is valid.
type Blockhash struct {
	Hash                 [32]byte
	LastValidBlockHeight uint64
}

// SendOptions tunes sendTransaction.
type SendOptions struct {
	SkipPreflight       bool
	PreflightCommitment string
	// MaxRetries is the node-side rebroadcast count. nil leaves it to the node.
	MaxRetries *uint
}

// RPC is the subset of the Solana JSON-RPC API the workflow needs.
type RPC interface {
	GetBalance(ctx context.Context, address string) (uint64, error)
	GetLatestBlockhash(ctx context.Context) (Blockhash, error)
	GetBlockHeight(ctx context.Context) (uint64, error)
	SendTransaction(ctx context.Context, raw []byte, opts SendOptions) (string, error)
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error)
}

// Client implements RPC over a provider.Caller, usually a provider.Pool.
type Client struct {
	rpc provider.Caller
}

// NewClient creates a ledger client.
func NewClient(rpc provider.Caller) *Client {
	return &Client{rpc: rpc}
}

// GetBalance fetches the lamport balance of an address at confirmed commitment.
func (c *Client) GetBalance(ctx context.Context, address string) (uint64, error) {
	var parsed struct {
		Value uint64 `json:"value"`
	}
	err := c.rpc.Call(ctx, "getBalance", []interface{}{
		address,
		map[string]string{"commitment": config.CommitmentConfirmed},
	}, &parsed)
	if err != nil {
		return 0, fmt.Errorf("getBalance for %s: %w", address, err)
	}

	slog.Debug("SOL balance fetched", "address", address, "lamports", parsed.Value)
	return parsed.Value, nil
}

// GetLatestBlockhash fetches a recent blockhash for transaction building.
func (c *Client) GetLatestBlockhash(ctx context.Context) (Blockhash, error) {
	var parsed struct {
		Value struct {
			Blockhash            string `json:"blockhash"`
			LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
		} `json:"value"`
	}
	err := c.rpc.Call(ctx, "getLatestBlockhash", []interface{}{
		map[string]string{"commitment": config.CommitmentConfirmed},
	}, &parsed)
	if err != nil {
		return Blockhash{}, fmt.Errorf("getLatestBlockhash: %w", err)
	}

	hashBytes, err := base58.Decode(parsed.Value.Blockhash)
	if err != nil {
		return Blockhash{}, fmt.Errorf("decode blockhash: %w", err)
	}
	if len(hashBytes) != 32 {
		return Blockhash{}, fmt.Errorf("invalid blockhash length: %d", len(hashBytes))
	}

	bh := Blockhash{LastValidBlockHeight: parsed.Value.LastValidBlockHeight}
	copy(bh.Hash[:], hashBytes)

	slog.Debug("fetched SOL blockhash",
		"blockhash", parsed.Value.Blockhash,
		"lastValidBlockHeight", parsed.Value.LastValidBlockHeight,
	)
	return bh, nil
}

// GetBlockHeight returns the current block height at confirmed commitment.
func (c *Client) GetBlockHeight(ctx context.Context) (uint64, error) {
	var height uint64
	err := c.rpc.Call(ctx, "getBlockHeight", []interface{}{
		map[string]string{"commitment": config.CommitmentConfirmed},
	}, &height)
	if err != nil {
		return 0, fmt.Errorf("getBlockHeight: %w", err)
	}
	return height, nil
}

// SendTransaction broadcasts a signed wire transaction. Preflight rejections
// caused by a lack of lamports are classified as insufficient balance.
func (c *Client) SendTransaction(ctx context.Context, raw []byte, opts SendOptions) (string, error) {
	params := map[string]interface{}{
		"encoding":      "base64",
		"skipPreflight": opts.SkipPreflight,
	}
	if opts.PreflightCommitment != "" {
		params["preflightCommitment"] = opts.PreflightCommitment
	}
	if opts.MaxRetries != nil {
		params["maxRetries"] = *opts.MaxRetries
	}

	var signature string
	err := c.rpc.Call(ctx, "sendTransaction", []interface{}{
		base64.StdEncoding.EncodeToString(raw),
		params,
	}, &signature)
	if err != nil {
		return "", classifySendError(err)
	}

	slog.Debug("SOL transaction sent", "signature", signature, "size", len(raw))
	return signature, nil
}

// GetSignatureStatuses fetches statuses in request order. Unknown signatures are nil.
func (c *Client) GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error) {
	var parsed struct {
		Value []*SignatureStatus `json:"value"`
	}
	err := c.rpc.Call(ctx, "getSignatureStatuses", []interface{}{
		signatures,
		map[string]bool{"searchTransactionHistory": true},
	}, &parsed)
	if err != nil {
		return nil, fmt.Errorf("getSignatureStatuses: %w", err)
	}
	return parsed.Value, nil
}

// simulationFailure is the data object attached to a -32002 preflight error.
type simulationFailure struct {
	Err  json.RawMessage `json:"err"`
	Logs []string        `json:"logs"`
}

func classifySendError(err error) error {
	var rpcErr *provider.RPCError
	if !errors.As(err, &rpcErr) || len(rpcErr.Data) == 0 {
		return fmt.Errorf("sendTransaction: %w", err)
	}

	var sim simulationFailure
	if jsonErr := json.Unmarshal(rpcErr.Data, &sim); jsonErr != nil {
		return fmt.Errorf("sendTransaction: %w", err)
	}

	switch {
	case isInsufficientFunds(sim.Err):
		return &config.OpError{Kind: config.KindInsufficientBalance, Op: "sendTransaction", Err: rpcErr}
	case string(sim.Err) == `"BlockhashNotFound"`:
		return config.NewNetworkError("sendTransaction", fmt.Errorf("%w: %v", config.ErrSOLBlockhashExpired, rpcErr))
	}
	return fmt.Errorf("sendTransaction: %w", err)
}

// isInsufficientFunds matches the transaction errors a node reports when the
// payer cannot cover the fee or the transferred lamports.
func isInsufficientFunds(raw json.RawMessage) bool {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s == "InsufficientFundsForFee" || s == "InsufficientFundsForRent"
	}

	// {"InstructionError":[index, {"Custom":1}]} is the system program's ResultWithNegativeLamports.
	var ie struct {
		InstructionError []json.RawMessage `json:"InstructionError"`
	}
	if json.Unmarshal(raw, &ie) != nil || len(ie.InstructionError) != 2 {
		return false
	}
	var custom struct {
		Custom *int `json:"Custom"`
	}
	if json.Unmarshal(ie.InstructionError[1], &custom) == nil && custom.Custom != nil {
		return *custom.Custom == 1
	}
	var named string
	if json.Unmarshal(ie.InstructionError[1], &named) == nil {
		return named == "InsufficientFunds"
	}
	return false
}
