package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/Fantasim/solfan/internal/config"
	"github.com/Fantasim/solfan/internal/models"
	"github.com/Fantasim/solfan/internal/oplog"
	"github.com/Fantasim/solfan/internal/wallet"
)

// Balances lists main wallets then ephemeral wallets with their SOL balances.
// A wallet whose balance cannot be read is listed with its error.
func (w *Workflow) Balances(ctx context.Context, includeEphemeral bool) ([]models.WalletBalance, error) {
	wallets, err := w.Store.ListMain()
	if err != nil {
		return nil, fmt.Errorf("list main wallets: %w", err)
	}
	if includeEphemeral {
		pool, err := w.Store.ListEphemeral("")
		if err != nil {
			return nil, fmt.Errorf("list ephemeral wallets: %w", err)
		}
		wallets = append(wallets, pool...)
	}

	addrs := make([]string, len(wallets))
	for i, rec := range wallets {
		addrs[i] = rec.PublicKey
	}
	readings := w.Deps.Balances.NativeBalances(ctx, w.Reads, addrs)
	usd := w.solPrice(ctx)

	out := make([]models.WalletBalance, len(wallets))
	for i, rec := range wallets {
		out[i] = models.WalletBalance{PublicKey: rec.PublicKey, Role: rec.Role, PoolTag: rec.PoolTag}
		if readings[i].Err != nil {
			out[i].Error = readings[i].Err.Error()
			continue
		}
		out[i].SOL = models.SOLFromLamports(readings[i].Lamports)
		if !usd.IsZero() {
			out[i].USD = out[i].SOL.Mul(usd).StringFixed(2)
		}
	}
	return out, nil
}

// solPrice returns the SOL/USD quote, or zero when none is configured or the
// quote fails. Listings never fail on price.
func (w *Workflow) solPrice(ctx context.Context) decimal.Decimal {
	if w.Prices == nil {
		return decimal.Zero
	}
	p, err := w.Prices.SOLUSD(ctx)
	if err != nil {
		slog.Warn("SOL price unavailable", "error", err)
		return decimal.Zero
	}
	return p
}

// CreateMainWallet persists a new main wallet. An empty mnemonic generates a
// random keypair; otherwise the wallet is derived at the given account index.
func (w *Workflow) CreateMainWallet(mnemonic string, index uint32) (models.WalletRecord, string, error) {
	var (
		rec models.WalletRecord
		err error
	)
	if mnemonic == "" {
		rec, err = wallet.Generate(models.RoleMain, "")
	} else {
		if index > config.MainWalletMaxIndex {
			return rec, "", fmt.Errorf("%w: account index %d exceeds %d", config.ErrInvalidConfig, index, config.MainWalletMaxIndex)
		}
		rec, err = wallet.DeriveMainWallet(mnemonic, index)
	}
	if err != nil {
		return rec, "", fmt.Errorf("create main wallet: %w", err)
	}

	path, err := w.Store.SaveMain(rec)
	if err != nil {
		return rec, "", fmt.Errorf("save main wallet: %w", err)
	}

	slog.Info("main wallet created", "wallet", rec, "path", path, "derived", mnemonic != "")
	w.Log.Record(oplog.Event{Kind: oplog.KindWalletCreated, Wallet: rec.PublicKey, Message: "main wallet created"})
	return rec, path, nil
}
