package swap

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Fantasim/solfan/internal/config"
	"github.com/Fantasim/solfan/internal/models"
	"github.com/Fantasim/solfan/internal/oplog"
	"github.com/Fantasim/solfan/internal/retrier"
	"github.com/Fantasim/solfan/internal/scheduler"
	"github.com/Fantasim/solfan/internal/wallet"
)

// BalanceReader reads native balances and token holdings with retries.
type BalanceReader interface {
	NativeBalance(ctx context.Context, address string) (uint64, error)
	Holdings(ctx context.Context, address string) (models.Holdings, bool)
}

// Awaiter blocks until a signature reaches a commitment level.
type Awaiter interface {
	Await(ctx context.Context, signature, commitment string) error
}

// Policy holds the pacing and retry settings of the swap stages.
type Policy struct {
	SwapRunner   scheduler.Runner
	SellRunner   scheduler.Runner
	SwapAttempts int
	SellAttempts int
	RetryDelay   time.Duration
	DelayMin     time.Duration
	DelayMax     time.Duration
}

// PolicyFromConfig builds the swap policy from configuration.
func PolicyFromConfig(cfg *config.Config) (Policy, error) {
	swapRunner, err := scheduler.ForSwapMode(cfg)
	if err != nil {
		return Policy{}, err
	}
	return Policy{
		SwapRunner:   swapRunner,
		SellRunner:   scheduler.NewBatchGate(cfg.SellBatchSize, cfg.SellCooldown),
		SwapAttempts: cfg.SwapMaxRetries,
		SellAttempts: cfg.SellMaxRetries,
		RetryDelay:   cfg.SwapRetryDelay,
		DelayMin:     cfg.SwapDelayMin,
		DelayMax:     cfg.SwapDelayMax,
	}, nil
}

// Orchestrator runs one swap per wallet across a pool.
type Orchestrator struct {
	router    Router
	balances  BalanceReader
	confirmer Awaiter
	policy    Policy
	log       oplog.Recorder
	sleep     func(ctx context.Context, d time.Duration)
}

// NewOrchestrator creates a swap Orchestrator.
func NewOrchestrator(router Router, balances BalanceReader, confirmer Awaiter, policy Policy, log oplog.Recorder) *Orchestrator {
	if log == nil {
		log = oplog.Nop{}
	}
	return &Orchestrator{
		router:    router,
		balances:  balances,
		confirmer: confirmer,
		policy:    policy,
		log:       log,
		sleep:     sleepCtx,
	}
}

// SwapAll buys destinationMint with SOL from every wallet. Each wallet swaps
// totalAmount/len(wallets) SOL. Outcomes are returned in wallet order.
func (o *Orchestrator) SwapAll(ctx context.Context, wallets []models.WalletRecord, destinationMint string, priorityFee decimal.Decimal, slippageBps int, totalAmount decimal.Decimal) ([]models.Outcome, error) {
	if len(wallets) == 0 {
		return nil, fmt.Errorf("swap: %w", config.ErrNoWallets)
	}
	if !totalAmount.IsPositive() {
		return nil, fmt.Errorf("%w: swap amount must be positive, got %s", config.ErrInvalidConfig, totalAmount)
	}
	feeLamports, err := models.LamportsFromSOL(priorityFee)
	if err != nil {
		return nil, fmt.Errorf("%w: priority fee: %v", config.ErrInvalidConfig, err)
	}

	perWallet := models.SplitAmount(totalAmount, len(wallets))
	perWalletLamports, _ := models.LamportsFromSOL(perWallet)

	slog.Info("swap fan-out started",
		"wallets", len(wallets),
		"destinationMint", destinationMint,
		"totalAmount", totalAmount,
		"perWallet", perWallet,
		"slippageBps", slippageBps,
	)
	start := time.Now()

	outcomes := scheduler.Collect(ctx, o.policy.SwapRunner, len(wallets), func(ctx context.Context, i int) models.Outcome {
		w := wallets[i]
		out := o.buyOne(ctx, w, feeLamports, perWalletLamports, models.SwapRequest{
			SourceMint:      config.SOLNativeMint,
			DestinationMint: destinationMint,
			Amount:          perWallet,
			SlippageBps:     slippageBps,
			Sender:          w.PublicKey,
			PriorityFee:     priorityFee,
		})
		o.log.Record(oplog.Outcome(oplog.RunID(ctx), out))
		return out
	})

	o.logSummary("swap fan-out complete", outcomes, start)
	return outcomes, nil
}

func (o *Orchestrator) buyOne(ctx context.Context, w models.WalletRecord, feeLamports, amountLamports uint64, req models.SwapRequest) models.Outcome {
	balance, err := o.balances.NativeBalance(ctx, w.PublicKey)
	if err != nil {
		return models.Failed(models.StageSwap, w.PublicKey, fmt.Errorf("read balance: %w", err), retrier.IsExhausted(err))
	}
	if balance <= feeLamports {
		slog.Info("swap: skipping wallet without spendable balance", "wallet", w, "balance", balance, "priorityFee", feeLamports)
		return models.Skipped(models.StageSwap, w.PublicKey, "insufficient balance")
	}

	sig, err := o.execute(ctx, w, req, o.policy.SwapAttempts, false)
	if err != nil {
		return models.Failed(models.StageSwap, w.PublicKey, err, retrier.IsExhausted(err))
	}
	o.desync(ctx)
	return models.Success(models.StageSwap, w.PublicKey, sig, amountLamports)
}

// SellAll sells every holder's full balance of position.Mint back to SOL.
func (o *Orchestrator) SellAll(ctx context.Context, position models.TokenPosition, priorityFee decimal.Decimal, slippageBps int) ([]models.Outcome, error) {
	if len(position.Holders) == 0 {
		return nil, fmt.Errorf("sell %s: %w", position.Mint, config.ErrNoWallets)
	}
	feeLamports, err := models.LamportsFromSOL(priorityFee)
	if err != nil {
		return nil, fmt.Errorf("%w: priority fee: %v", config.ErrInvalidConfig, err)
	}

	slog.Info("sell started",
		"mint", position.Mint,
		"symbol", position.Symbol,
		"holders", len(position.Holders),
		"total", position.Total,
	)
	start := time.Now()

	outcomes := scheduler.Collect(ctx, o.policy.SellRunner, len(position.Holders), func(ctx context.Context, i int) models.Outcome {
		h := position.Holders[i]
		out := o.sellOne(ctx, h, feeLamports, models.SwapRequest{
			SourceMint:      position.Mint,
			DestinationMint: config.SOLNativeMint,
			Amount:          h.Balance,
			SlippageBps:     slippageBps,
			Sender:          h.Wallet.PublicKey,
			PriorityFee:     priorityFee,
		})
		o.log.Record(oplog.Outcome(oplog.RunID(ctx), out))
		return out
	})

	o.logSummary("sell complete", outcomes, start)
	return outcomes, nil
}

func (o *Orchestrator) sellOne(ctx context.Context, h models.TokenHolder, feeLamports uint64, req models.SwapRequest) models.Outcome {
	if !h.Balance.IsPositive() {
		return models.Skipped(models.StageSell, h.Wallet.PublicKey, "no token balance")
	}
	if h.NativeLamports <= feeLamports {
		return models.Skipped(models.StageSell, h.Wallet.PublicKey, "insufficient SOL for fees")
	}

	sig, err := o.execute(ctx, h.Wallet, req, o.policy.SellAttempts, true)
	if err != nil {
		return models.Failed(models.StageSell, h.Wallet.PublicKey, err, retrier.IsExhausted(err))
	}
	o.desync(ctx)
	return models.Success(models.StageSell, h.Wallet.PublicKey, sig, h.RawAmount)
}

// execute fetches instructions, performs the swap and confirms it, retrying
// only failures that happened before anything was broadcast successfully.
func (o *Orchestrator) execute(ctx context.Context, w models.WalletRecord, req models.SwapRequest, attempts int, linear bool) (string, error) {
	signer, err := wallet.PrivateKey(w)
	if err != nil {
		return "", err
	}

	stage := models.StageSwap
	if req.DestinationMint == config.SOLNativeMint {
		stage = models.StageSell
	}

	opts := []retrier.Option{
		retrier.WithMaxAttempts(attempts),
		retrier.WithInitialInterval(o.policy.RetryDelay),
		retrier.WithRetryIf(config.IsTransient),
		retrier.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			slog.Warn("swap attempt failed, will retry",
				"wallet", w,
				"attempt", attempt,
				"maxAttempts", attempts,
				"delay", delay,
				"error", err,
			)
			o.log.Record(oplog.Event{
				RunID:   oplog.RunID(ctx),
				Stage:   stage,
				Kind:    oplog.KindRetry,
				Wallet:  w.PublicKey,
				Message: fmt.Sprintf("swap failed (attempt %d/%d): %v", attempt, attempts, err),
			})
		}),
	}
	if linear {
		opts = append(opts, retrier.WithLinearBackoff(), retrier.WithJitter(0))
	}

	return retrier.DoWithData(retrier.New(opts...), ctx, func(ctx context.Context) (string, error) {
		return o.swapOnce(ctx, signer, req)
	})
}

func (o *Orchestrator) swapOnce(ctx context.Context, signer ed25519.PrivateKey, req models.SwapRequest) (string, error) {
	ins, err := o.router.GetSwapInstructions(ctx, req)
	if err != nil {
		return "", err
	}

	sig, err := o.router.PerformSwap(ctx, ins, signer, PerformOptions{Commitment: config.CommitmentProcessed})
	if err != nil {
		return "", fmt.Errorf("perform swap %s: %w", sig, err)
	}
	slog.Info("swap landed", "wallet", req.Sender, "signature", sig, "url", fmt.Sprintf(config.SOLExplorerTxURL, sig))

	if err := o.confirmer.Await(ctx, sig, config.CommitmentConfirmed); err != nil {
		return "", fmt.Errorf("confirm swap %s: %w", sig, err)
	}
	return sig, nil
}

// desync waits a random delay in [DelayMin, DelayMax].
func (o *Orchestrator) desync(ctx context.Context) {
	d := o.policy.DelayMin
	if spread := o.policy.DelayMax - o.policy.DelayMin; spread > 0 {
		d += time.Duration(rand.Int64N(int64(spread)))
	}
	if d > 0 {
		o.sleep(ctx, d)
	}
}

func (o *Orchestrator) logSummary(msg string, outcomes []models.Outcome, start time.Time) {
	s := models.Summarize(outcomes)
	slog.Info(msg,
		"succeeded", s.Succeeded,
		"skipped", s.Skipped,
		"failed", s.Failed,
		"successRate", fmt.Sprintf("%.2f", s.SuccessRate),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
}

// AggregateHoldings reads every wallet's holdings through runner and groups
// token balances by mint, largest total first. Wallets whose holdings cannot
// be read contribute nothing.
func AggregateHoldings(ctx context.Context, balances BalanceReader, runner scheduler.Runner, wallets []models.WalletRecord) []models.TokenPosition {
	type read struct {
		h  models.Holdings
		ok bool
	}
	reads := scheduler.Collect(ctx, runner, len(wallets), func(ctx context.Context, i int) read {
		h, ok := balances.Holdings(ctx, wallets[i].PublicKey)
		return read{h: h, ok: ok}
	})

	byMint := make(map[string]*models.TokenPosition)
	var order []string
	for i, r := range reads {
		if !r.ok {
			slog.Warn("holdings unavailable, wallet left out of positions", "wallet", wallets[i])
			continue
		}
		for _, t := range r.h.Tokens {
			if !t.Balance.IsPositive() {
				continue
			}
			p, ok := byMint[t.Mint]
			if !ok {
				p = &models.TokenPosition{Mint: t.Mint, Symbol: t.Symbol}
				byMint[t.Mint] = p
				order = append(order, t.Mint)
			}
			if p.Symbol == "" {
				p.Symbol = t.Symbol
			}
			p.Total = p.Total.Add(t.Balance)
			p.PriceUSD = p.PriceUSD.Add(t.TotalPriceUSD)
			p.Holders = append(p.Holders, models.TokenHolder{
				Wallet:         wallets[i],
				Balance:        t.Balance,
				RawAmount:      t.RawAmount,
				NativeLamports: r.h.NativeLamports,
			})
		}
	}

	positions := make([]models.TokenPosition, 0, len(order))
	for _, mint := range order {
		positions = append(positions, *byMint[mint])
	}
	sort.SliceStable(positions, func(i, j int) bool {
		return positions[i].Total.GreaterThan(positions[j].Total)
	})

	slog.Info("token positions aggregated", "wallets", len(wallets), "positions", len(positions))
	return positions
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
