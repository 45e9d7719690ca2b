package sweep

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Fantasim/solfan/internal/balance"
	"github.com/Fantasim/solfan/internal/config"
	"github.com/Fantasim/solfan/internal/models"
	"github.com/Fantasim/solfan/internal/oplog"
	"github.com/Fantasim/solfan/internal/retrier"
	"github.com/Fantasim/solfan/internal/scheduler"
	"github.com/Fantasim/solfan/internal/wallet"
)

// BalanceReader reads many native balances in input order.
type BalanceReader interface {
	NativeBalances(ctx context.Context, runner scheduler.Runner, addresses []string) []balance.Reading
}

// Submitter signs and submits a native transfer, returning its signature.
type Submitter interface {
	SubmitTransfer(ctx context.Context, signer ed25519.PrivateKey, destination string, lamports, priorityFeeLamports uint64) (string, error)
}

// Awaiter blocks until a signature reaches a commitment level.
type Awaiter interface {
	Await(ctx context.Context, signature, commitment string) error
}

// Report is the result of one sweep.
type Report struct {
	Outcomes    []models.Outcome `json:"outcomes"`
	WithBalance int              `json:"withBalance"`
	TotalSwept  uint64           `json:"totalSwept"`
	SuccessRate float64          `json:"successRate"`
}

// Collector consolidates ephemeral wallet balances into a main wallet.
type Collector struct {
	balances    BalanceReader
	transfers   Submitter
	confirmer   Awaiter
	reads       scheduler.Runner
	concurrency int
	feeReserve  uint64
	log         oplog.Recorder
}

// NewCollector creates a Collector. reads gates the balance scan; concurrency
// bounds the parallel transfers; feeReserve lamports stay in each wallet.
func NewCollector(balances BalanceReader, transfers Submitter, confirmer Awaiter, reads scheduler.Runner, concurrency int, feeReserve uint64, log oplog.Recorder) *Collector {
	if log == nil {
		log = oplog.Nop{}
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Collector{
		balances:    balances,
		transfers:   transfers,
		confirmer:   confirmer,
		reads:       reads,
		concurrency: concurrency,
		feeReserve:  feeReserve,
		log:         log,
	}
}

// Sweep moves each wallet's balance, minus the fee reserve, to destination.
// Wallets with nothing above the reserve are skipped, so re-running a sweep
// only touches wallets that still hold funds.
func (c *Collector) Sweep(ctx context.Context, wallets []models.WalletRecord, destination string) (*Report, error) {
	if len(wallets) == 0 {
		return nil, fmt.Errorf("sweep: %w", config.ErrNoWallets)
	}
	if err := wallet.ValidateAddress(destination); err != nil {
		return nil, fmt.Errorf("sweep destination: %w", err)
	}

	slog.Info("sweep started",
		"wallets", len(wallets),
		"destination", destination,
		"feeReserve", c.feeReserve,
	)
	start := time.Now()

	addresses := make([]string, len(wallets))
	for i, w := range wallets {
		addresses[i] = w.PublicKey
	}
	readings := c.balances.NativeBalances(ctx, c.reads, addresses)

	report := &Report{Outcomes: make([]models.Outcome, len(wallets))}

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, r := range readings {
		w := wallets[i]
		switch {
		case r.Err != nil:
			report.Outcomes[i] = models.Failed(models.StageSweep, w.PublicKey,
				fmt.Errorf("read balance: %w", r.Err), retrier.IsExhausted(r.Err))
			continue
		case r.Lamports == 0:
			report.Outcomes[i] = models.Skipped(models.StageSweep, w.PublicKey, "no balance")
			continue
		case r.Lamports <= c.feeReserve:
			report.Outcomes[i] = models.Skipped(models.StageSweep, w.PublicKey,
				fmt.Sprintf("balance %d below fee reserve %d", r.Lamports, c.feeReserve))
			continue
		}

		report.WithBalance++
		lamports := r.Lamports - c.feeReserve
		g.Go(func() error {
			report.Outcomes[i] = c.sweepOne(ctx, w, destination, lamports)
			return nil
		})
	}
	g.Wait()

	for _, o := range report.Outcomes {
		c.log.Record(oplog.Outcome(oplog.RunID(ctx), o))
		if o.Status == models.StatusSuccess {
			report.TotalSwept += o.Amount
		}
	}
	report.SuccessRate = successRate(report.Outcomes, report.WithBalance)

	slog.Info("sweep complete",
		"withBalance", report.WithBalance,
		"totalSwept", report.TotalSwept,
		"sol", models.FormatSOL(report.TotalSwept),
		"successRate", fmt.Sprintf("%.2f", report.SuccessRate),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return report, nil
}

func (c *Collector) sweepOne(ctx context.Context, w models.WalletRecord, destination string, lamports uint64) models.Outcome {
	signer, err := wallet.PrivateKey(w)
	if err != nil {
		return models.Failed(models.StageSweep, w.PublicKey, err, false)
	}

	sig, err := c.transfers.SubmitTransfer(ctx, signer, destination, lamports, 0)
	if err != nil {
		slog.Warn("sweep: transfer submission failed", "wallet", w, "lamports", lamports, "error", err)
		return models.Failed(models.StageSweep, w.PublicKey, err, false)
	}
	if err := c.confirmer.Await(ctx, sig, config.CommitmentConfirmed); err != nil {
		slog.Warn("sweep: transfer not confirmed", "wallet", w, "signature", sig, "error", err)
		return models.Failed(models.StageSweep, w.PublicKey, fmt.Errorf("confirm %s: %w", sig, err),
			config.KindOf(err) == config.KindConfirmationTimeout)
	}

	slog.Info("sweep: wallet swept", "wallet", w, "lamports", lamports, "signature", sig)
	return models.Success(models.StageSweep, w.PublicKey, sig, lamports)
}

// successRate is succeeded over wallets that held sweepable funds, in percent.
func successRate(outcomes []models.Outcome, withBalance int) float64 {
	if withBalance == 0 {
		return 0
	}
	succeeded := 0
	for _, o := range outcomes {
		if o.Status == models.StatusSuccess {
			succeeded++
		}
	}
	return float64(succeeded) / float64(withBalance) * 100
}
