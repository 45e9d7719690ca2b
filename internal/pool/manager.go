package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/Fantasim/solfan/internal/balance"
	"github.com/Fantasim/solfan/internal/config"
	"github.com/Fantasim/solfan/internal/models"
	"github.com/Fantasim/solfan/internal/oplog"
	"github.com/Fantasim/solfan/internal/scheduler"
	"github.com/Fantasim/solfan/internal/wallet"
)

// BalanceReader reads many native balances in input order.
type BalanceReader interface {
	NativeBalances(ctx context.Context, runner scheduler.Runner, addresses []string) []balance.Reading
}

// EphemeralSaver persists pool wallets.
type EphemeralSaver interface {
	SaveEphemeral(rec models.WalletRecord) (string, error)
}

// Pool is the working set of wallets for one run.
type Pool struct {
	Members  []models.PoolMember
	Recycled int
	Created  int
}

// Wallets returns the pool's wallet records in member order.
func (p Pool) Wallets() []models.WalletRecord {
	out := make([]models.WalletRecord, len(p.Members))
	for i, m := range p.Members {
		out[i] = m.Wallet
	}
	return out
}

// Manager builds pools from recycled and freshly created ephemeral wallets.
type Manager struct {
	balances BalanceReader
	store    EphemeralSaver
	reads    scheduler.Runner
	log      oplog.Recorder
	generate func(role models.WalletRole, poolTag string) (models.WalletRecord, error)
}

// NewManager creates a pool Manager. reads gates the parallel balance reads.
func NewManager(balances BalanceReader, store EphemeralSaver, reads scheduler.Runner, log oplog.Recorder) *Manager {
	if log == nil {
		log = oplog.Nop{}
	}
	return &Manager{
		balances: balances,
		store:    store,
		reads:    reads,
		log:      log,
		generate: wallet.Generate,
	}
}

// Recycle returns the existing wallets holding a positive balance, richest
// first, truncated to maxCount. Wallets whose balance cannot be read are left out.
func (m *Manager) Recycle(ctx context.Context, existing []models.WalletRecord, targetBalance uint64, maxCount int) []models.PoolMember {
	if len(existing) == 0 || maxCount <= 0 {
		return nil
	}

	addresses := make([]string, len(existing))
	for i, w := range existing {
		addresses[i] = w.PublicKey
	}
	readings := m.balances.NativeBalances(ctx, m.reads, addresses)

	members := make([]models.PoolMember, 0, len(existing))
	for i, r := range readings {
		if r.Err != nil {
			slog.Warn("recycle: balance unavailable, wallet excluded", "wallet", existing[i], "error", r.Err)
			continue
		}
		if r.Lamports == 0 {
			continue
		}
		members = append(members, models.PoolMember{
			Wallet:       existing[i],
			Balance:      r.Lamports,
			AmountNeeded: int64(targetBalance) - int64(r.Lamports),
			Recycled:     true,
		})
	}

	sort.SliceStable(members, func(i, j int) bool {
		return members[i].Balance > members[j].Balance
	})

	if len(members) > maxCount {
		members = members[:maxCount]
	}

	slog.Info("recycled wallets",
		"candidates", len(existing),
		"withBalance", len(members),
		"maxCount", maxCount,
	)
	return members
}

// CreateNew generates count ephemeral wallets tagged poolTag. Each wallet is
// persisted before it is returned; on a persistence failure the wallets saved
// so far are returned with the error.
func (m *Manager) CreateNew(count int, poolTag string) ([]models.WalletRecord, error) {
	created := make([]models.WalletRecord, 0, count)
	for i := range count {
		rec, err := m.generate(models.RoleEphemeral, poolTag)
		if err != nil {
			return created, fmt.Errorf("generate wallet %d/%d: %w", i+1, count, err)
		}
		path, err := m.store.SaveEphemeral(rec)
		if err != nil {
			return created, fmt.Errorf("persist wallet %s: %w", rec.PublicKey, err)
		}

		slog.Info("ephemeral wallet created", "wallet", rec, "path", path)
		m.log.Record(oplog.Event{
			Kind:    oplog.KindWalletCreated,
			Wallet:  rec.PublicKey,
			Message: fmt.Sprintf("ephemeral wallet created for %s", poolTag),
		})
		created = append(created, rec)
	}
	return created, nil
}

// BuildPool assembles exactly targetSize members: recycled wallets first,
// then as many new wallets as are still missing.
func (m *Manager) BuildPool(ctx context.Context, existing []models.WalletRecord, targetSize int, targetBalance uint64, poolTag string) (Pool, error) {
	if targetSize <= 0 {
		return Pool{}, fmt.Errorf("%w: pool size must be positive, got %d", config.ErrInvalidConfig, targetSize)
	}

	recycled := m.Recycle(ctx, existing, targetBalance, targetSize)
	needed := max(0, targetSize-len(recycled))

	fresh, err := m.CreateNew(needed, poolTag)

	p := Pool{
		Members:  recycled,
		Recycled: len(recycled),
		Created:  len(fresh),
	}
	for _, w := range fresh {
		p.Members = append(p.Members, models.PoolMember{
			Wallet:       w,
			AmountNeeded: int64(targetBalance),
		})
	}

	slog.Info("pool built",
		"targetSize", targetSize,
		"recycled", p.Recycled,
		"created", p.Created,
		"poolTag", poolTag,
	)
	return p, err
}
