// Package workflow runs the operator-facing flows: buy, sell, sweep, balance
// listing and main wallet creation. Each stage it runs is recorded as a run in
// the history database and summarized in the operation log.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Fantasim/solfan/internal/balance"
	"github.com/Fantasim/solfan/internal/config"
	"github.com/Fantasim/solfan/internal/models"
	"github.com/Fantasim/solfan/internal/oplog"
	"github.com/Fantasim/solfan/internal/pool"
	"github.com/Fantasim/solfan/internal/scheduler"
	"github.com/Fantasim/solfan/internal/sweep"
)

// WalletStore is the persisted wallet set.
type WalletStore interface {
	SaveMain(rec models.WalletRecord) (string, error)
	ListMain() ([]models.WalletRecord, error)
	ListEphemeral(tag string) ([]models.WalletRecord, error)
	FindMain(publicKey string) (models.WalletRecord, error)
}

// BalanceReader reads native balances and token holdings.
type BalanceReader interface {
	NativeBalance(ctx context.Context, address string) (uint64, error)
	Holdings(ctx context.Context, address string) (models.Holdings, bool)
	NativeBalances(ctx context.Context, runner scheduler.Runner, addresses []string) []balance.Reading
}

// PoolBuilder assembles a wallet pool from recycled and fresh wallets.
type PoolBuilder interface {
	BuildPool(ctx context.Context, existing []models.WalletRecord, targetSize int, targetBalance uint64, poolTag string) (pool.Pool, error)
}

// Funder tops up pool wallets from a source wallet.
type Funder interface {
	Distribute(ctx context.Context, source models.WalletRecord, members []models.PoolMember, targetBalance, priorityFee uint64) ([]models.Outcome, error)
}

// Swapper buys into and sells out of a token across many wallets.
type Swapper interface {
	SwapAll(ctx context.Context, wallets []models.WalletRecord, destinationMint string, priorityFee decimal.Decimal, slippageBps int, totalAmount decimal.Decimal) ([]models.Outcome, error)
	SellAll(ctx context.Context, position models.TokenPosition, priorityFee decimal.Decimal, slippageBps int) ([]models.Outcome, error)
}

// Sweeper consolidates pool balances into one wallet.
type Sweeper interface {
	Sweep(ctx context.Context, wallets []models.WalletRecord, destination string) (*sweep.Report, error)
}

// History persists runs and their outcomes.
type History interface {
	CreateRun(run models.Run) error
	FinishRun(id string, summary models.Summary, runErr string) error
	InsertOutcomes(runID string, outcomes []models.Outcome) error
}

// PriceQuoter quotes SOL in USD.
type PriceQuoter interface {
	SOLUSD(ctx context.Context) (decimal.Decimal, error)
}

// Deps are the collaborators a Workflow drives.
type Deps struct {
	Store    WalletStore
	Balances BalanceReader
	Pools    PoolBuilder
	Funder   Funder
	Swapper  Swapper
	Sweeper  Sweeper
	History  History
	Log      oplog.Recorder
	// Reads paces the balance reads of listings and holdings aggregation.
	Reads scheduler.Runner
	// Prices is optional. When set, balance listings carry a USD value.
	Prices PriceQuoter
}

// Workflow runs the operator flows.
type Workflow struct {
	Deps
	cfg *config.Config
}

// New creates a Workflow. A nil Log records nothing.
func New(cfg *config.Config, deps Deps) *Workflow {
	if deps.Log == nil {
		deps.Log = oplog.Nop{}
	}
	return &Workflow{Deps: deps, cfg: cfg}
}

// StageReport is the result of one recorded stage.
type StageReport struct {
	RunID    string
	Stage    models.Stage
	Outcomes []models.Outcome
	Summary  models.Summary
}

type runMeta struct {
	stage   models.Stage
	poolTag string
	source  string
	params  any
}

type stageFunc func(ctx context.Context) ([]models.Outcome, *models.Summary, error)

// runStage records a run around fn. A history failure before fn aborts the
// stage; failures after it are logged, since funds may already have moved.
func (w *Workflow) runStage(ctx context.Context, meta runMeta, fn stageFunc) (*StageReport, error) {
	id := uuid.NewString()
	params, err := json.Marshal(meta.params)
	if err != nil {
		return nil, fmt.Errorf("encode %s params: %w", meta.stage, err)
	}

	if err := w.History.CreateRun(models.Run{
		ID:      id,
		Stage:   meta.stage,
		PoolTag: meta.poolTag,
		Source:  meta.source,
		Params:  string(params),
	}); err != nil {
		return nil, fmt.Errorf("record %s run: %w", meta.stage, err)
	}

	ctx = oplog.WithRunID(ctx, id)
	start := time.Now()
	w.Log.Record(oplog.Event{RunID: id, Stage: meta.stage, Kind: oplog.KindInfo, Message: "stage started"})

	outcomes, override, runErr := fn(ctx)

	summary := models.Summarize(outcomes)
	if override != nil {
		summary = *override
	}

	if err := w.History.InsertOutcomes(id, outcomes); err != nil {
		slog.Error("failed to persist outcomes", "runID", id, "stage", meta.stage, "error", err)
	}
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}
	if err := w.History.FinishRun(id, summary, errMsg); err != nil {
		slog.Error("failed to finish run", "runID", id, "stage", meta.stage, "error", err)
	}

	if runErr != nil {
		w.Log.Record(oplog.Event{RunID: id, Stage: meta.stage, Kind: oplog.KindFailed, Message: "aborted: " + errMsg})
		return nil, runErr
	}
	w.Log.Record(oplog.Summary(id, meta.stage, summary))

	slog.Info("stage complete",
		"runID", id,
		"stage", meta.stage,
		"succeeded", summary.Succeeded,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return &StageReport{RunID: id, Stage: meta.stage, Outcomes: outcomes, Summary: summary}, nil
}

// PoolTag names the pool of wallets that trade mint.
func PoolTag(mint string) string {
	if len(mint) > config.PoolTagLength {
		return mint[:config.PoolTagLength]
	}
	return mint
}
