package config

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for internal use.
var (
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrNoWallets         = errors.New("no wallets available")
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrInvalidWalletFile = errors.New("invalid wallet file")
	ErrInvalidAddress    = errors.New("invalid address")
	ErrInvalidMnemonic   = errors.New("invalid mnemonic")

	ErrSOLTxTooLarge       = errors.New("SOL transaction exceeds 1232 byte limit")
	ErrSOLTxFailed         = errors.New("SOL transaction failed on-chain")
	ErrSOLBlockhashExpired = errors.New("recent blockhash expired")
	ErrMalformedTx         = errors.New("malformed transaction")

	ErrCircuitOpen        = errors.New("circuit breaker is open")
	ErrAllProvidersFailed = errors.New("all providers failed")
	ErrPriceFetchFailed   = errors.New("price fetch failed")
)

// Kind classifies a collaborator failure. The set is closed.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindRateLimited
	KindInsufficientBalance
	KindRoutingUnavailable
	KindConfirmationTimeout
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindRateLimited:
		return "rate_limited"
	case KindInsufficientBalance:
		return "insufficient_balance"
	case KindRoutingUnavailable:
		return "routing_unavailable"
	case KindConfirmationTimeout:
		return "confirmation_timeout"
	default:
		return "unknown"
	}
}

// Kind sentinels, matched with errors.Is against any *OpError of the same kind.
var (
	ErrNetwork             = errors.New("network error")
	ErrRateLimited         = errors.New("rate limited")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrRoutingUnavailable  = errors.New("routing unavailable")
	ErrConfirmationTimeout = errors.New("confirmation timeout")
)

var kindSentinels = map[Kind]error{
	KindNetwork:             ErrNetwork,
	KindRateLimited:         ErrRateLimited,
	KindInsufficientBalance: ErrInsufficientBalance,
	KindRoutingUnavailable:  ErrRoutingUnavailable,
	KindConfirmationTimeout: ErrConfirmationTimeout,
}

// OpError is a classified failure from the ledger, asset service or swap router.
type OpError struct {
	Kind       Kind
	Op         string
	Err        error
	RetryAfter time.Duration // 0 = use default backoff
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for this error's kind.
func (e *OpError) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// NewNetworkError wraps a transport or server-side failure.
func NewNetworkError(op string, err error) error {
	return &OpError{Kind: KindNetwork, Op: op, Err: err}
}

// NewRateLimitedError wraps a throttling response, with an optional server-provided delay.
func NewRateLimitedError(op string, err error, retryAfter time.Duration) error {
	return &OpError{Kind: KindRateLimited, Op: op, Err: err, RetryAfter: retryAfter}
}

// NewInsufficientBalanceError reports that have lamports cannot cover need lamports.
func NewInsufficientBalanceError(op string, have, need uint64) error {
	return &OpError{
		Kind: KindInsufficientBalance,
		Op:   op,
		Err:  fmt.Errorf("have %d lamports, need %d", have, need),
	}
}

// NewRoutingUnavailableError wraps a swap router failure.
func NewRoutingUnavailableError(op string, err error) error {
	return &OpError{Kind: KindRoutingUnavailable, Op: op, Err: err}
}

// NewConfirmationTimeoutError reports a signature that was never observed at the wanted commitment.
func NewConfirmationTimeoutError(signature string, attempts int) error {
	return &OpError{
		Kind: KindConfirmationTimeout,
		Op:   "confirm " + signature,
		Err:  fmt.Errorf("not confirmed after %d attempts", attempts),
	}
}

// KindOf returns the kind of the first OpError in err's chain.
func KindOf(err error) Kind {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return KindUnknown
}

// IsTransient returns true if the error is worth retrying.
func IsTransient(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindRateLimited, KindRoutingUnavailable:
		return true
	default:
		return false
	}
}

// GetRetryAfter returns the retry delay if set, or 0.
func GetRetryAfter(err error) time.Duration {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.RetryAfter
	}
	return 0
}

// Error codes returned by the API.
const (
	ErrorDatabase     = "ERROR_DATABASE"
	ErrorRunNotFound  = "ERROR_RUN_NOT_FOUND"
	ErrorWalletStore  = "ERROR_WALLET_STORE"
	ErrorInvalidParam = "ERROR_INVALID_PARAM"
)
