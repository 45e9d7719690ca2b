package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/Fantasim/solfan/internal/balance"
	"github.com/Fantasim/solfan/internal/config"
	"github.com/Fantasim/solfan/internal/db"
	"github.com/Fantasim/solfan/internal/funding"
	"github.com/Fantasim/solfan/internal/logging"
	"github.com/Fantasim/solfan/internal/oplog"
	"github.com/Fantasim/solfan/internal/pool"
	"github.com/Fantasim/solfan/internal/price"
	"github.com/Fantasim/solfan/internal/provider"
	"github.com/Fantasim/solfan/internal/scheduler"
	"github.com/Fantasim/solfan/internal/swap"
	"github.com/Fantasim/solfan/internal/sweep"
	"github.com/Fantasim/solfan/internal/tx"
	"github.com/Fantasim/solfan/internal/wallet"
	"github.com/Fantasim/solfan/internal/workflow"
)

// app holds the resources a command opens. Close releases them in reverse order.
type app struct {
	cfg     *config.Config
	store   *wallet.Store
	history *db.DB
	oplog   *oplog.Log
	wf      *workflow.Workflow
	closers []io.Closer
}

// newApp loads configuration, sets up logging and opens the wallet store.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}

	logCloser, err := logging.Setup(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	a := &app{cfg: cfg, closers: []io.Closer{logCloser}}

	slog.Info("starting solfan",
		"version", version,
		"command", cmd.Name(),
		"walletDir", cfg.WalletDir,
		"rpcEndpoints", len(cfg.RPCURLs),
	)

	a.store, err = wallet.NewStore(cfg.WalletDir)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open wallet store: %w", err)
	}
	return a, nil
}

func (a *app) openHistory() error {
	d, err := db.Open(a.cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open history database: %w", err)
	}
	a.history = d
	a.closers = append(a.closers, d)
	return nil
}

func (a *app) openOplog() error {
	l, err := oplog.Open(a.cfg.OpLogPath, a.cfg.JournalDir)
	if err != nil {
		return fmt.Errorf("open operation log: %w", err)
	}
	a.oplog = l
	a.closers = append(a.closers, l)
	return nil
}

// wire builds the ledger, asset and routing clients and the workflow on top.
func (a *app) wire() error {
	if err := a.openHistory(); err != nil {
		return err
	}
	if err := a.openOplog(); err != nil {
		return err
	}
	cfg := a.cfg

	httpClient := &http.Client{Timeout: config.ProviderRequestTimeout}

	endpoints := make([]provider.Named, len(cfg.RPCURLs))
	for i, url := range cfg.RPCURLs {
		name := fmt.Sprintf("rpc-%d", i+1)
		endpoints[i] = provider.NewEndpoint(httpClient, provider.NewRateLimiter(name, cfg.RPCRateRPS), url, name)
	}
	ledger := tx.NewClient(provider.NewPool(endpoints...))

	das := provider.NewDASClient(provider.NewEndpoint(httpClient, provider.NewRateLimiter("das", config.RateLimitDAS), cfg.DASURL, "das"))

	confirmOpts := []tx.ConfirmerOption{tx.WithStatusTimeout(cfg.ConfirmationRetryTimeout)}
	if cfg.WSURL != "" {
		confirmOpts = append(confirmOpts, tx.WithSignatureWaiter(tx.NewSignatureSubscriber(cfg.WSURL)))
		slog.Info("websocket confirmation enabled", "url", cfg.WSURL)
	}
	confirmer := tx.NewConfirmer(ledger, cfg.ConfirmationRetries, cfg.ConfirmationCheckInterval, confirmOpts...)
	transfers := tx.NewTransferer(ledger)
	broadcaster := tx.NewBroadcaster(ledger, confirmer, tx.DefaultResendPolicy(cfg))

	router := swap.NewTrackerClient(httpClient, provider.NewRateLimiter("swap-api", config.RateLimitSwapAPI),
		cfg.SwapAPIURL, cfg.SwapAPIKey, broadcaster, ledger)

	oracle := balance.NewOracle(ledger, das, cfg.BalanceMaxRetries, cfg.BalanceRetryDelay, a.oplog)
	reads := scheduler.NewBatchGate(cfg.BalanceReadBatch, cfg.BalanceReadDelay)

	policy, err := swap.PolicyFromConfig(cfg)
	if err != nil {
		return err
	}

	a.wf = workflow.New(cfg, workflow.Deps{
		Store:    a.store,
		Balances: oracle,
		Pools:    pool.NewManager(oracle, a.store, reads, a.oplog),
		Funder:   funding.NewDistributor(oracle, transfers, confirmer, scheduler.NewPacer(cfg.FundingInterval), a.oplog),
		Swapper:  swap.NewOrchestrator(router, oracle, confirmer, policy, a.oplog),
		Sweeper:  sweep.NewCollector(oracle, transfers, confirmer, reads, cfg.SweepConcurrency, cfg.SweepFeeReserveLamports, a.oplog),
		History:  a.history,
		Log:      a.oplog,
		Reads:    reads,
		Prices:   price.NewService(httpClient, cfg.PriceURL),
	})

	slog.Info("services wired",
		"swapMode", cfg.SwapMode,
		"swapAPI", cfg.SwapAPIURL,
		"das", cfg.DASURL,
	)
	return nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			slog.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
