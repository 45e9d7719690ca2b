package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Fantasim/solfan/internal/config"
	"github.com/Fantasim/solfan/internal/models"
	"github.com/Fantasim/solfan/internal/pool"
	"github.com/Fantasim/solfan/internal/wallet"
)

// BuyResult reports a buy run: the pool it used and its two stages.
type BuyResult struct {
	Pool          pool.Pool
	TargetBalance uint64
	Fund          *StageReport
	Swap          *StageReport
}

// ValidateBuy checks buy parameters before anything touches the ledger.
func ValidateBuy(p models.BuyParams) error {
	if p.WalletCount < 1 {
		return fmt.Errorf("%w: wallet count must be at least 1, got %d", config.ErrInvalidConfig, p.WalletCount)
	}
	if !p.TotalAmount.IsPositive() {
		return fmt.Errorf("%w: total amount must be positive, got %s", config.ErrInvalidConfig, p.TotalAmount)
	}
	if p.PriorityFee.IsNegative() {
		return fmt.Errorf("%w: priority fee must not be negative", config.ErrInvalidConfig)
	}
	if p.SlippageBps < 0 || p.SlippageBps > config.MaxSlippageBps {
		return fmt.Errorf("%w: slippage must be 0-%d bps, got %d", config.ErrInvalidConfig, config.MaxSlippageBps, p.SlippageBps)
	}
	if err := wallet.ValidateMint(p.DestinationMint); err != nil {
		return fmt.Errorf("%w: token mint: %v", config.ErrInvalidConfig, err)
	}
	return nil
}

// TargetBalance is the per-wallet funding target: an equal share of the total
// plus the configured buffer for fees and rent.
func (w *Workflow) TargetBalance(p models.BuyParams) (uint64, error) {
	share := models.SplitAmount(p.TotalAmount, p.WalletCount).Add(w.cfg.FundingBuffer)
	return models.LamportsFromSOL(share)
}

// Buy funds a pool of ephemeral wallets from the source wallet, then swaps
// SOL into the destination mint from every pool wallet.
func (w *Workflow) Buy(ctx context.Context, p models.BuyParams) (*BuyResult, error) {
	if err := ValidateBuy(p); err != nil {
		return nil, err
	}

	source, err := w.Store.FindMain(p.SourcePublicKey)
	if err != nil {
		return nil, fmt.Errorf("load funding wallet: %w", err)
	}

	target, err := w.TargetBalance(p)
	if err != nil {
		return nil, fmt.Errorf("compute funding target: %w", err)
	}
	fee, err := models.LamportsFromSOL(p.PriorityFee)
	if err != nil {
		return nil, fmt.Errorf("convert priority fee: %w", err)
	}

	existing, err := w.Store.ListEphemeral("")
	if err != nil {
		return nil, fmt.Errorf("list ephemeral wallets: %w", err)
	}

	tag := PoolTag(p.DestinationMint)
	slog.Info("building wallet pool",
		"source", source,
		"size", p.WalletCount,
		"targetBalance", models.FormatSOL(target),
		"existing", len(existing),
		"poolTag", tag,
	)

	pl, err := w.Pools.BuildPool(ctx, existing, p.WalletCount, target, tag)
	if err != nil {
		return nil, fmt.Errorf("build wallet pool: %w", err)
	}

	res := &BuyResult{Pool: pl, TargetBalance: target}
	meta := runMeta{poolTag: tag, source: source.PublicKey, params: p}

	meta.stage = models.StageFund
	res.Fund, err = w.runStage(ctx, meta, func(ctx context.Context) ([]models.Outcome, *models.Summary, error) {
		out, err := w.Funder.Distribute(ctx, source, pl.Members, target, fee)
		return out, nil, err
	})
	if err != nil {
		return res, fmt.Errorf("fund pool: %w", err)
	}

	meta.stage = models.StageSwap
	res.Swap, err = w.runStage(ctx, meta, func(ctx context.Context) ([]models.Outcome, *models.Summary, error) {
		out, err := w.Swapper.SwapAll(ctx, pl.Wallets(), p.DestinationMint, p.PriorityFee, p.SlippageBps, p.TotalAmount)
		return out, nil, err
	})
	if err != nil {
		return res, fmt.Errorf("swap: %w", err)
	}

	return res, nil
}
