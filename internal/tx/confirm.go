package tx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Fantasim/solfan/internal/config"
)

// SignatureWaiter blocks until a signature reaches the commitment. It returns
// an error wrapping config.ErrSOLTxFailed when the transaction failed on-chain.
type SignatureWaiter interface {
	WaitForSignature(ctx context.Context, signature, commitment string) error
}

// Confirmer polls signature statuses with a fixed attempt ceiling.
type Confirmer struct {
	rpc           RPC
	attempts      int
	interval      time.Duration
	statusTimeout time.Duration
	waiter        SignatureWaiter
}

// ConfirmerOption configures a Confirmer.
type ConfirmerOption func(*Confirmer)

// WithStatusTimeout bounds each getSignatureStatuses call.
func WithStatusTimeout(d time.Duration) ConfirmerOption {
	return func(c *Confirmer) { c.statusTimeout = d }
}

// WithSignatureWaiter races a push-based waiter against polling.
func WithSignatureWaiter(w SignatureWaiter) ConfirmerOption {
	return func(c *Confirmer) { c.waiter = w }
}

// NewConfirmer creates a Confirmer that checks up to attempts times, interval apart.
func NewConfirmer(rpc RPC, attempts int, interval time.Duration, opts ...ConfirmerOption) *Confirmer {
	if attempts < 1 {
		attempts = 1
	}
	c := &Confirmer{rpc: rpc, attempts: attempts, interval: interval}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Await waits until signature reaches commitment. A transaction that landed
// with an error returns config.ErrSOLTxFailed; running out of attempts returns
// a ConfirmationTimeout OpError.
func (c *Confirmer) Await(ctx context.Context, signature, commitment string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var pushed <-chan error
	if c.waiter != nil {
		ch := make(chan error, 1)
		go func() { ch <- c.waiter.WaitForSignature(ctx, signature, commitment) }()
		pushed = ch
	}

	for attempt := 1; attempt <= c.attempts; attempt++ {
		status, err := c.status(ctx, signature)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("SOL confirmation poll error", "signature", signature, "attempt", attempt, "error", err)
		case status == nil:
			slog.Debug("SOL signature not found yet", "signature", signature, "attempt", attempt)
		case status.Failed():
			slog.Error("SOL transaction failed on-chain", "signature", signature, "error", string(status.Err))
			return fmt.Errorf("%w: %s: %s", config.ErrSOLTxFailed, signature, status.Err)
		case status.Reached(commitment):
			slog.Info("SOL transaction confirmed",
				"signature", signature,
				"slot", status.Slot,
				"confirmationStatus", status.ConfirmationStatus,
				"attempt", attempt,
			)
			return nil
		}

		if attempt == c.attempts {
			break
		}

		timer := time.NewTimer(c.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case err := <-pushed:
			timer.Stop()
			if err == nil {
				slog.Info("SOL transaction confirmed via subscription", "signature", signature, "commitment", commitment)
				return nil
			}
			if errors.Is(err, config.ErrSOLTxFailed) {
				return err
			}
			slog.Debug("signature subscription unavailable, polling only", "signature", signature, "error", err)
			pushed = nil
		case <-timer.C:
		}
	}

	return config.NewConfirmationTimeoutError(signature, c.attempts)
}

func (c *Confirmer) status(ctx context.Context, signature string) (*SignatureStatus, error) {
	if c.statusTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.statusTimeout)
		defer cancel()
	}
	statuses, err := c.rpc.GetSignatureStatuses(ctx, []string{signature})
	if err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return nil, nil
	}
	return statuses[0], nil
}
