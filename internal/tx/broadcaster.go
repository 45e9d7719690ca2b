package tx

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Fantasim/solfan/internal/config"
)

// ResendPolicy controls how often an unconfirmed transaction is rebroadcast.
type ResendPolicy struct {
	Interval time.Duration
	Max      int
	// BlockHeightBuffer stops resending this many blocks before the blockhash expires.
	BlockHeightBuffer uint64
}

// Broadcaster sends a signed transaction with preflight skipped, keeps
// rebroadcasting it while it is unconfirmed, and waits for confirmation.
type Broadcaster struct {
	rpc       RPC
	confirmer *Confirmer
	policy    ResendPolicy
}

// NewBroadcaster creates a Broadcaster.
func NewBroadcaster(rpc RPC, confirmer *Confirmer, policy ResendPolicy) *Broadcaster {
	return &Broadcaster{rpc: rpc, confirmer: confirmer, policy: policy}
}

// SendAndConfirm broadcasts raw and waits for commitment. The first send must
// succeed; later resends are best effort. Resending stops after policy.Max
// attempts or once the block height passes lastValidBlockHeight minus the buffer.
func (b *Broadcaster) SendAndConfirm(ctx context.Context, raw []byte, lastValidBlockHeight uint64, commitment string) (string, error) {
	noNodeRetries := uint(0)
	opts := SendOptions{SkipPreflight: true, MaxRetries: &noNodeRetries}

	signature, err := b.rpc.SendTransaction(ctx, raw, opts)
	if err != nil {
		return "", err
	}

	resendCtx, stopResend := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.resendLoop(resendCtx, raw, signature, lastValidBlockHeight, opts)
	}()

	err = b.confirmer.Await(ctx, signature, commitment)
	stopResend()
	wg.Wait()

	return signature, err
}

func (b *Broadcaster) resendLoop(ctx context.Context, raw []byte, signature string, lastValidBlockHeight uint64, opts SendOptions) {
	if b.policy.Max <= 0 || b.policy.Interval <= 0 {
		return
	}

	var cutoff uint64
	if lastValidBlockHeight > b.policy.BlockHeightBuffer {
		cutoff = lastValidBlockHeight - b.policy.BlockHeightBuffer
	}

	ticker := time.NewTicker(b.policy.Interval)
	defer ticker.Stop()

	for resends := 0; resends < b.policy.Max; {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if cutoff > 0 {
			height, err := b.rpc.GetBlockHeight(ctx)
			if err == nil && height > cutoff {
				slog.Debug("blockhash near expiry, stop resending",
					"signature", signature,
					"blockHeight", height,
					"cutoff", cutoff,
				)
				return
			}
		}

		resends++
		if _, err := b.rpc.SendTransaction(ctx, raw, opts); err != nil && ctx.Err() == nil {
			slog.Debug("SOL resend failed", "signature", signature, "resend", resends, "error", err)
		}
	}
	slog.Debug("SOL resend budget spent", "signature", signature, "max", b.policy.Max)
}

// DefaultResendPolicy builds the policy from configuration.
func DefaultResendPolicy(cfg *config.Config) ResendPolicy {
	return ResendPolicy{
		Interval:          cfg.ResendInterval,
		Max:               cfg.MaxResends,
		BlockHeightBuffer: cfg.LastValidBlockHeightBuffer,
	}
}
