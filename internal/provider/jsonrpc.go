package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/Fantasim/solfan/internal/config"
)

// Caller performs a JSON-RPC 2.0 call and decodes the result into out.
type Caller interface {
	Call(ctx context.Context, method string, params interface{}, out interface{}) error
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Error   *RPCError       `json:"error,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// RPCError is an error object returned by a JSON-RPC node.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Server-side JSON-RPC codes worth retrying on another node.
var transientRPCCodes = map[int]bool{
	-32005: true, // node is behind
	-32004: true, // block not available
	-32007: true, // slot skipped
	-32014: true, // block status not available
	-32603: true, // internal error
}

// Endpoint is one JSON-RPC URL with its own rate limiter.
type Endpoint struct {
	client *http.Client
	rl     *RateLimiter
	url    string
	name   string
	nextID atomic.Uint64
}

// NewEndpoint creates a JSON-RPC endpoint.
func NewEndpoint(client *http.Client, rl *RateLimiter, url, name string) *Endpoint {
	slog.Info("rpc endpoint created", "name", name, "url", url)
	return &Endpoint{client: client, rl: rl, url: url, name: name}
}

// Name returns the endpoint's name for logs.
func (e *Endpoint) Name() string { return e.name }

// Call sends one JSON-RPC request. Failures are classified into config.OpError kinds:
// HTTP 429 is RateLimited, transport errors, 5xx and node-side codes are Network.
// Other RPC errors are returned as *RPCError unclassified.
func (e *Endpoint) Call(ctx context.Context, method string, params interface{}, out interface{}) error {
	if e.rl != nil {
		if err := e.rl.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      e.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return config.NewNetworkError(method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := ParseRetryAfter(resp.Header)
		slog.Warn("rpc rate limited", "endpoint", e.name, "method", method, "retryAfter", retryAfter)
		return config.NewRateLimitedError(method, fmt.Errorf("%s: HTTP 429", e.name), retryAfter)
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, config.MaxErrorBodyBytes))
		slog.Warn("rpc non-200", "endpoint", e.name, "method", method, "status", resp.StatusCode)
		return config.NewNetworkError(method, fmt.Errorf("%s: HTTP %d: %s", e.name, resp.StatusCode, bytes.TrimSpace(snippet)))
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return config.NewNetworkError(method, fmt.Errorf("decode response: %w", err))
	}

	if rpcResp.Error != nil {
		slog.Debug("rpc error response",
			"endpoint", e.name,
			"method", method,
			"code", rpcResp.Error.Code,
			"message", rpcResp.Error.Message,
		)
		if transientRPCCodes[rpcResp.Error.Code] {
			return config.NewNetworkError(method, rpcResp.Error)
		}
		return fmt.Errorf("%s: %w", method, rpcResp.Error)
	}

	if out == nil {
		return nil
	}
	if len(rpcResp.Result) == 0 {
		return config.NewNetworkError(method, errors.New("empty result"))
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}
