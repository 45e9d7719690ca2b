package workflow

import (
	"context"
	"fmt"

	"github.com/Fantasim/solfan/internal/config"
	"github.com/Fantasim/solfan/internal/models"
	"github.com/Fantasim/solfan/internal/swap"
)

// Positions aggregates the token holdings of every ephemeral wallet by mint,
// largest total first.
func (w *Workflow) Positions(ctx context.Context) ([]models.TokenPosition, error) {
	wallets, err := w.Store.ListEphemeral("")
	if err != nil {
		return nil, fmt.Errorf("list ephemeral wallets: %w", err)
	}
	if len(wallets) == 0 {
		return nil, fmt.Errorf("%w: no ephemeral wallets", config.ErrNoWallets)
	}
	return swap.AggregateHoldings(ctx, w.Deps.Balances, w.Reads, wallets), nil
}

// FindPosition returns the position of mint.
func FindPosition(positions []models.TokenPosition, mint string) (models.TokenPosition, error) {
	for _, p := range positions {
		if p.Mint == mint {
			return p, nil
		}
	}
	return models.TokenPosition{}, fmt.Errorf("%w: no wallet holds %s", config.ErrNoWallets, mint)
}

// Sell sells every holder's full balance of the position back to SOL.
func (w *Workflow) Sell(ctx context.Context, position models.TokenPosition, p models.SellParams) (*StageReport, error) {
	if p.SlippageBps < 0 || p.SlippageBps > config.MaxSlippageBps {
		return nil, fmt.Errorf("%w: slippage must be 0-%d bps, got %d", config.ErrInvalidConfig, config.MaxSlippageBps, p.SlippageBps)
	}
	if p.PriorityFee.IsNegative() {
		return nil, fmt.Errorf("%w: priority fee must not be negative", config.ErrInvalidConfig)
	}

	meta := runMeta{stage: models.StageSell, poolTag: PoolTag(position.Mint), params: p}
	return w.runStage(ctx, meta, func(ctx context.Context) ([]models.Outcome, *models.Summary, error) {
		out, err := w.Swapper.SellAll(ctx, position, p.PriorityFee, p.SlippageBps)
		return out, nil, err
	})
}
