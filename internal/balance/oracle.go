package balance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Fantasim/solfan/internal/config"
	"github.com/Fantasim/solfan/internal/models"
	"github.com/Fantasim/solfan/internal/oplog"
	"github.com/Fantasim/solfan/internal/retrier"
	"github.com/Fantasim/solfan/internal/scheduler"
)

// LedgerReader reads native balances from the ledger.
type LedgerReader interface {
	GetBalance(ctx context.Context, address string) (uint64, error)
}

// AssetReader reads native and token holdings from the asset service.
type AssetReader interface {
	GetAssetsByOwner(ctx context.Context, owner string) (models.Holdings, error)
}

// Oracle wraps the ledger and the asset service with bounded linear-backoff retries.
type Oracle struct {
	ledger      LedgerReader
	assets      AssetReader
	maxAttempts int
	delay       time.Duration
	log         oplog.Recorder
}

// NewOracle creates an Oracle making up to maxAttempts reads per call,
// waiting attempt*delay between them.
func NewOracle(ledger LedgerReader, assets AssetReader, maxAttempts int, delay time.Duration, log oplog.Recorder) *Oracle {
	if log == nil {
		log = oplog.Nop{}
	}
	return &Oracle{ledger: ledger, assets: assets, maxAttempts: maxAttempts, delay: delay, log: log}
}

func (o *Oracle) newRetrier(ctx context.Context, address, what string) *retrier.Retrier {
	return retrier.New(
		retrier.WithMaxAttempts(o.maxAttempts),
		retrier.WithInitialInterval(o.delay),
		retrier.WithLinearBackoff(),
		retrier.WithJitter(0),
		retrier.WithRetryIf(config.IsTransient),
		retrier.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			slog.Debug("read failed, will retry",
				"address", address,
				"what", what,
				"attempt", attempt,
				"delay", delay,
				"error", err,
			)
			o.log.Record(oplog.Event{
				RunID:   oplog.RunID(ctx),
				Kind:    oplog.KindRetry,
				Wallet:  address,
				Message: fmt.Sprintf("%s failed (attempt %d/%d): %v", what, attempt, o.maxAttempts, err),
			})
		}),
	)
}

// NativeBalance returns the lamport balance of address. It retries transient
// failures and returns the last error once the attempts are spent.
func (o *Oracle) NativeBalance(ctx context.Context, address string) (uint64, error) {
	return retrier.DoWithData(o.newRetrier(ctx, address, "balance read"), ctx, func(ctx context.Context) (uint64, error) {
		return o.ledger.GetBalance(ctx, address)
	})
}

// Holdings returns the native and token holdings of address. When every
// attempt fails it returns zero lamports and no tokens with ok=false.
func (o *Oracle) Holdings(ctx context.Context, address string) (h models.Holdings, ok bool) {
	h, err := retrier.DoWithData(o.newRetrier(ctx, address, "asset read"), ctx, func(ctx context.Context) (models.Holdings, error) {
		return o.assets.GetAssetsByOwner(ctx, address)
	})
	if err != nil {
		slog.Warn("holdings unavailable, using empty fallback", "address", address, "error", err)
		return models.Holdings{}, false
	}
	return h, true
}

// Reading is the result of one native balance read in a batch.
type Reading struct {
	Address  string
	Lamports uint64
	Err      error
}

// NativeBalances reads many balances through runner and returns them in input order.
func (o *Oracle) NativeBalances(ctx context.Context, runner scheduler.Runner, addresses []string) []Reading {
	return scheduler.Collect(ctx, runner, len(addresses), func(ctx context.Context, i int) Reading {
		bal, err := o.NativeBalance(ctx, addresses[i])
		return Reading{Address: addresses[i], Lamports: bal, Err: err}
	})
}
