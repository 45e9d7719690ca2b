package funding

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Fantasim/solfan/internal/config"
	"github.com/Fantasim/solfan/internal/models"
	"github.com/Fantasim/solfan/internal/oplog"
	"github.com/Fantasim/solfan/internal/retrier"
	"github.com/Fantasim/solfan/internal/scheduler"
	"github.com/Fantasim/solfan/internal/wallet"
)

// BalanceReader reads one native balance with retries.
type BalanceReader interface {
	NativeBalance(ctx context.Context, address string) (uint64, error)
}

// Submitter signs and submits a native transfer, returning its signature.
type Submitter interface {
	SubmitTransfer(ctx context.Context, signer ed25519.PrivateKey, destination string, lamports, priorityFeeLamports uint64) (string, error)
}

// Awaiter blocks until a signature reaches a commitment level.
type Awaiter interface {
	Await(ctx context.Context, signature, commitment string) error
}

// Distributor tops up pool wallets from a single source wallet.
type Distributor struct {
	balances  BalanceReader
	transfers Submitter
	confirmer Awaiter
	runner    scheduler.Runner
	log       oplog.Recorder

	// submitMu serializes construction and submission from the source
	// account. Confirmation waits run outside it.
	submitMu sync.Mutex
}

// NewDistributor creates a Distributor. runner paces the per-wallet tasks.
func NewDistributor(balances BalanceReader, transfers Submitter, confirmer Awaiter, runner scheduler.Runner, log oplog.Recorder) *Distributor {
	if log == nil {
		log = oplog.Nop{}
	}
	return &Distributor{
		balances:  balances,
		transfers: transfers,
		confirmer: confirmer,
		runner:    runner,
		log:       log,
	}
}

// Distribute brings every member up to targetBalance lamports from source.
// It returns one outcome per member in member order. Only an unusable source
// or an empty pool is reported as an error; per-wallet failures become outcomes.
func (d *Distributor) Distribute(ctx context.Context, source models.WalletRecord, members []models.PoolMember, targetBalance, priorityFee uint64) ([]models.Outcome, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("distribute: %w", config.ErrNoWallets)
	}
	signer, err := wallet.PrivateKey(source)
	if err != nil {
		return nil, fmt.Errorf("distribute: source wallet: %w", err)
	}

	slog.Info("funding distribution started",
		"source", source,
		"wallets", len(members),
		"targetBalance", targetBalance,
		"priorityFee", priorityFee,
	)
	start := time.Now()

	outcomes := scheduler.Collect(ctx, d.runner, len(members), func(ctx context.Context, i int) models.Outcome {
		o := d.fund(ctx, signer, members[i].Wallet.PublicKey, targetBalance, priorityFee)
		d.log.Record(oplog.Outcome(oplog.RunID(ctx), o))
		return o
	})

	summary := models.Summarize(outcomes)
	slog.Info("funding distribution complete",
		"succeeded", summary.Succeeded,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"moved", summary.Moved,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return outcomes, nil
}

// fund runs one member's sequence: re-read, submit shortfall, confirm.
func (d *Distributor) fund(ctx context.Context, signer ed25519.PrivateKey, address string, targetBalance, priorityFee uint64) models.Outcome {
	current, err := d.balances.NativeBalance(ctx, address)
	if err != nil {
		slog.Warn("funding: balance read failed", "wallet", address, "error", err)
		return models.Failed(models.StageFund, address, fmt.Errorf("read balance: %w", err), retrier.IsExhausted(err))
	}
	if current >= targetBalance {
		slog.Debug("funding: wallet already funded", "wallet", address, "balance", current, "target", targetBalance)
		return models.Skipped(models.StageFund, address, "already funded")
	}
	shortfall := targetBalance - current

	sig, err := d.submit(ctx, signer, address, shortfall, priorityFee)
	if err != nil {
		slog.Warn("funding: transfer submission failed", "wallet", address, "lamports", shortfall, "error", err)
		return models.Failed(models.StageFund, address, err, false)
	}

	if err := d.confirmer.Await(ctx, sig, config.CommitmentConfirmed); err != nil {
		slog.Warn("funding: transfer not confirmed", "wallet", address, "signature", sig, "error", err)
		return models.Failed(models.StageFund, address, fmt.Errorf("confirm %s: %w", sig, err),
			config.KindOf(err) == config.KindConfirmationTimeout)
	}

	slog.Info("funding: wallet funded",
		"wallet", address,
		"lamports", shortfall,
		"sol", models.FormatSOL(shortfall),
		"signature", sig,
	)
	return models.Success(models.StageFund, address, sig, shortfall)
}

func (d *Distributor) submit(ctx context.Context, signer ed25519.PrivateKey, address string, lamports, priorityFee uint64) (string, error) {
	d.submitMu.Lock()
	defer d.submitMu.Unlock()
	return d.transfers.SubmitTransfer(ctx, signer, address, lamports, priorityFee)
}
