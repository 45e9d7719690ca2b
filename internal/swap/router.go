package swap

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Fantasim/solfan/internal/config"
	"github.com/Fantasim/solfan/internal/models"
	"github.com/Fantasim/solfan/internal/provider"
	"github.com/Fantasim/solfan/internal/tx"
)

// Rate is the router's quote for a swap.
type Rate struct {
	AmountIn     decimal.Decimal `json:"amountIn"`
	AmountOut    decimal.Decimal `json:"amountOut"`
	MinAmountOut decimal.Decimal `json:"minAmountOut"`
	PriceImpact  decimal.Decimal `json:"priceImpact"`
	Fee          decimal.Decimal `json:"fee"`
}

// Instructions is an executable swap returned by the router: an unsigned
// transaction with the owner as fee payer.
type Instructions struct {
	Txn                  string `json:"txn"`
	Type                 string `json:"type"`
	Rate                 Rate   `json:"rate"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight,omitempty"`
	Error                string `json:"error,omitempty"`
}

// PerformOptions controls how an executable swap is submitted.
type PerformOptions struct {
	Commitment string
}

// Router obtains and executes swaps.
type Router interface {
	GetSwapInstructions(ctx context.Context, req models.SwapRequest) (*Instructions, error)
	PerformSwap(ctx context.Context, ins *Instructions, signer ed25519.PrivateKey, opts PerformOptions) (string, error)
}

// Sender broadcasts a signed transaction and waits for a commitment.
type Sender interface {
	SendAndConfirm(ctx context.Context, raw []byte, lastValidBlockHeight uint64, commitment string) (string, error)
}

// BlockhashSource supplies the expiry height when the router omits it.
type BlockhashSource interface {
	GetLatestBlockhash(ctx context.Context) (tx.Blockhash, error)
}

// TrackerClient talks to a SolanaTracker-compatible swap API.
type TrackerClient struct {
	client  *http.Client
	rl      *provider.RateLimiter
	baseURL string
	apiKey  string
	sender  Sender
	chain   BlockhashSource
}

// NewTrackerClient creates a swap router client.
func NewTrackerClient(client *http.Client, rl *provider.RateLimiter, baseURL, apiKey string, sender Sender, chain BlockhashSource) *TrackerClient {
	slog.Info("swap router client created", "baseURL", baseURL, "apiKeySet", apiKey != "")
	return &TrackerClient{
		client:  client,
		rl:      rl,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		sender:  sender,
		chain:   chain,
	}
}

// GetSwapInstructions asks the router for an executable swap. Throttling is
// RateLimited, transport and server failures are Network, and a router that
// cannot find a route is RoutingUnavailable.
func (c *TrackerClient) GetSwapInstructions(ctx context.Context, req models.SwapRequest) (*Instructions, error) {
	const op = "getSwapInstructions"

	if c.rl != nil {
		if err := c.rl.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	q := url.Values{}
	q.Set("from", req.SourceMint)
	q.Set("to", req.DestinationMint)
	q.Set("fromAmount", req.Amount.String())
	q.Set("slippage", req.SlippagePercent().String())
	q.Set("payer", req.Sender)
	q.Set("priorityFee", req.PriorityFee.String())
	q.Set("txVersion", config.SwapTxVersion)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/swap?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create swap request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, config.NewNetworkError(op, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := provider.ParseRetryAfter(resp.Header)
		slog.Warn("swap router rate limited", "retryAfter", retryAfter, "wallet", req.Sender)
		return nil, config.NewRateLimitedError(op, fmt.Errorf("HTTP 429"), retryAfter)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, config.NewNetworkError(op, fmt.Errorf("HTTP %d: %s", resp.StatusCode, readSnippet(resp.Body)))
	case resp.StatusCode == http.StatusNotFound:
		return nil, config.NewRoutingUnavailableError(op, fmt.Errorf("HTTP 404: %s", readSnippet(resp.Body)))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%s: HTTP %d: %s", op, resp.StatusCode, readSnippet(resp.Body))
	}

	var ins Instructions
	if err := json.NewDecoder(resp.Body).Decode(&ins); err != nil {
		return nil, config.NewNetworkError(op, fmt.Errorf("decode response: %w", err))
	}
	if ins.Error != "" {
		return nil, config.NewRoutingUnavailableError(op, fmt.Errorf("router: %s", ins.Error))
	}
	if ins.Txn == "" {
		return nil, config.NewRoutingUnavailableError(op, fmt.Errorf("router returned no transaction"))
	}

	slog.Debug("swap instructions received",
		"wallet", req.Sender,
		"from", req.SourceMint,
		"to", req.DestinationMint,
		"amount", req.Amount,
		"amountOut", ins.Rate.AmountOut,
		"priceImpact", ins.Rate.PriceImpact,
	)
	return &ins, nil
}

// PerformSwap signs the router's transaction with signer, broadcasts it with
// preflight skipped and periodic resends, and waits for opts.Commitment.
func (c *TrackerClient) PerformSwap(ctx context.Context, ins *Instructions, signer ed25519.PrivateKey, opts PerformOptions) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ins.Txn)
	if err != nil {
		return "", fmt.Errorf("decode swap transaction: %w", config.ErrMalformedTx)
	}

	signed, localSig, err := tx.SignSerializedTransaction(raw, signer)
	if err != nil {
		return "", fmt.Errorf("sign swap transaction: %w", err)
	}

	lastValid := ins.LastValidBlockHeight
	if lastValid == 0 && c.chain != nil {
		bh, err := c.chain.GetLatestBlockhash(ctx)
		if err != nil {
			slog.Warn("swap: could not fetch block height window, resending without cutoff", "error", err)
		} else {
			lastValid = bh.LastValidBlockHeight
		}
	}

	commitment := opts.Commitment
	if commitment == "" {
		commitment = config.CommitmentProcessed
	}

	slog.Info("submitting swap",
		"signature", localSig,
		"size", len(signed),
		"lastValidBlockHeight", lastValid,
		"commitment", commitment,
	)

	sig, err := c.sender.SendAndConfirm(ctx, signed, lastValid, commitment)
	if sig == "" {
		sig = localSig
	}
	return sig, err
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, config.MaxErrorBodyBytes))
	return string(bytes.TrimSpace(b))
}
