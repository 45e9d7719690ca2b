package workflow

import (
	"context"
	"fmt"

	"github.com/Fantasim/solfan/internal/config"
	"github.com/Fantasim/solfan/internal/models"
)

// SweepResult reports a sweep run.
type SweepResult struct {
	*StageReport
	WithBalance int
}

// Sweep moves the SOL of every ephemeral wallet into the main wallet.
// Running it again only re-sweeps what arrived since.
func (w *Workflow) Sweep(ctx context.Context, destination string) (*SweepResult, error) {
	if _, err := w.Store.FindMain(destination); err != nil {
		return nil, fmt.Errorf("load destination wallet: %w", err)
	}

	wallets, err := w.Store.ListEphemeral("")
	if err != nil {
		return nil, fmt.Errorf("list ephemeral wallets: %w", err)
	}
	if len(wallets) == 0 {
		return nil, fmt.Errorf("%w: no ephemeral wallets to sweep", config.ErrNoWallets)
	}

	res := &SweepResult{}
	meta := runMeta{stage: models.StageSweep, source: destination, params: map[string]any{"wallets": len(wallets)}}
	res.StageReport, err = w.runStage(ctx, meta, func(ctx context.Context) ([]models.Outcome, *models.Summary, error) {
		report, err := w.Sweeper.Sweep(ctx, wallets, destination)
		if err != nil {
			return nil, nil, err
		}
		res.WithBalance = report.WithBalance

		s := models.Summarize(report.Outcomes)
		s.Moved = report.TotalSwept
		s.SuccessRate = report.SuccessRate
		return report.Outcomes, &s, nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
