package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Fantasim/solfan/internal/balance"
	"github.com/Fantasim/solfan/internal/config"
	"github.com/Fantasim/solfan/internal/models"
	"github.com/Fantasim/solfan/internal/oplog"
	"github.com/Fantasim/solfan/internal/pool"
	"github.com/Fantasim/solfan/internal/scheduler"
	"github.com/Fantasim/solfan/internal/sweep"
	"github.com/Fantasim/solfan/internal/wallet"
)

const testMint = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"

type mockHistory struct {
	mu        sync.Mutex
	runs      map[string]models.Run
	outcomes  map[string][]models.Outcome
	createErr error
}

func newMockHistory() *mockHistory {
	return &mockHistory{runs: map[string]models.Run{}, outcomes: map[string][]models.Outcome{}}
}

func (h *mockHistory) CreateRun(run models.Run) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.createErr != nil {
		return h.createErr
	}
	run.Status = models.RunStatusRunning
	h.runs[run.ID] = run
	return nil
}

func (h *mockHistory) FinishRun(id string, summary models.Summary, runErr string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	run := h.runs[id]
	run.Summary = summary
	run.Error = runErr
	run.Status = models.RunStatusCompleted
	if runErr != "" {
		run.Status = models.RunStatusAborted
	}
	h.runs[id] = run
	return nil
}

func (h *mockHistory) InsertOutcomes(runID string, outcomes []models.Outcome) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.outcomes[runID] = append(h.outcomes[runID], outcomes...)
	return nil
}

type mockBalances struct {
	lamports map[string]uint64
	holdings map[string]models.Holdings
	failing  map[string]bool
}

func (m *mockBalances) NativeBalance(ctx context.Context, addr string) (uint64, error) {
	if m.failing[addr] {
		return 0, errors.New("rpc down")
	}
	return m.lamports[addr], nil
}

func (m *mockBalances) Holdings(ctx context.Context, addr string) (models.Holdings, bool) {
	h, ok := m.holdings[addr]
	return h, ok
}

func (m *mockBalances) NativeBalances(ctx context.Context, runner scheduler.Runner, addrs []string) []balance.Reading {
	return scheduler.Collect(ctx, runner, len(addrs), func(ctx context.Context, i int) balance.Reading {
		n, err := m.NativeBalance(ctx, addrs[i])
		return balance.Reading{Address: addrs[i], Lamports: n, Err: err}
	})
}

type mockPools struct {
	buildPoolFn func(existing []models.WalletRecord, size int, target uint64, tag string) (pool.Pool, error)
}

func (m *mockPools) BuildPool(ctx context.Context, existing []models.WalletRecord, size int, target uint64, tag string) (pool.Pool, error) {
	return m.buildPoolFn(existing, size, target, tag)
}

type mockFunder struct {
	distributeFn func(source models.WalletRecord, members []models.PoolMember, target, fee uint64) ([]models.Outcome, error)
	runID        string
}

func (m *mockFunder) Distribute(ctx context.Context, source models.WalletRecord, members []models.PoolMember, target, fee uint64) ([]models.Outcome, error) {
	m.runID = oplog.RunID(ctx)
	return m.distributeFn(source, members, target, fee)
}

type mockSwapper struct {
	swapAllFn func(wallets []models.WalletRecord, mint string, fee decimal.Decimal, slippage int, total decimal.Decimal) ([]models.Outcome, error)
	sellAllFn func(position models.TokenPosition, fee decimal.Decimal, slippage int) ([]models.Outcome, error)
}

func (m *mockSwapper) SwapAll(ctx context.Context, wallets []models.WalletRecord, mint string, fee decimal.Decimal, slippage int, total decimal.Decimal) ([]models.Outcome, error) {
	return m.swapAllFn(wallets, mint, fee, slippage, total)
}

func (m *mockSwapper) SellAll(ctx context.Context, position models.TokenPosition, fee decimal.Decimal, slippage int) ([]models.Outcome, error) {
	return m.sellAllFn(position, fee, slippage)
}

type mockSweeper struct {
	sweepFn func(wallets []models.WalletRecord, destination string) (*sweep.Report, error)
}

func (m *mockSweeper) Sweep(ctx context.Context, wallets []models.WalletRecord, destination string) (*sweep.Report, error) {
	return m.sweepFn(wallets, destination)
}

type recordingLog struct {
	mu     sync.Mutex
	events []oplog.Event
}

func (r *recordingLog) Record(e oplog.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingLog) kinds() []oplog.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []oplog.Kind
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

type fixture struct {
	wf      *Workflow
	store   *wallet.Store
	history *mockHistory
	bal     *mockBalances
	log     *recordingLog
	main    models.WalletRecord
}

func newFixture(t *testing.T, deps Deps) *fixture {
	t.Helper()
	store, err := wallet.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	main, err := wallet.Generate(models.RoleMain, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.SaveMain(main); err != nil {
		t.Fatal(err)
	}

	f := &fixture{
		store:   store,
		history: newMockHistory(),
		bal:     &mockBalances{lamports: map[string]uint64{}, holdings: map[string]models.Holdings{}, failing: map[string]bool{}},
		log:     &recordingLog{},
		main:    main,
	}
	deps.Store = store
	deps.History = f.history
	deps.Balances = f.bal
	deps.Log = f.log
	deps.Reads = scheduler.NewBatchGate(4, 0)

	cfg := &config.Config{FundingBuffer: decimal.RequireFromString("0.02")}
	f.wf = New(cfg, deps)
	return f
}

func (f *fixture) addEphemeral(t *testing.T, tag string) models.WalletRecord {
	t.Helper()
	rec, err := wallet.Generate(models.RoleEphemeral, tag)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.SaveEphemeral(rec); err != nil {
		t.Fatal(err)
	}
	return rec
}

func buyParams(f *fixture) models.BuyParams {
	return models.BuyParams{
		SourcePublicKey: f.main.PublicKey,
		TotalAmount:     decimal.RequireFromString("1"),
		WalletCount:     4,
		DestinationMint: testMint,
		PriorityFee:     decimal.RequireFromString("0.0005"),
		SlippageBps:     3000,
	}
}

func TestValidateBuy(t *testing.T) {
	valid := models.BuyParams{
		TotalAmount:     decimal.NewFromInt(1),
		WalletCount:     2,
		DestinationMint: testMint,
		SlippageBps:     100,
	}
	if err := ValidateBuy(valid); err != nil {
		t.Fatalf("ValidateBuy(valid) error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(p *models.BuyParams)
	}{
		{"zero wallets", func(p *models.BuyParams) { p.WalletCount = 0 }},
		{"zero amount", func(p *models.BuyParams) { p.TotalAmount = decimal.Zero }},
		{"negative fee", func(p *models.BuyParams) { p.PriorityFee = decimal.NewFromInt(-1) }},
		{"slippage too high", func(p *models.BuyParams) { p.SlippageBps = 10_001 }},
		{"bad mint", func(p *models.BuyParams) { p.DestinationMint = "not-a-mint" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			if err := ValidateBuy(p); !errors.Is(err, config.ErrInvalidConfig) {
				t.Errorf("error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestTargetBalance(t *testing.T) {
	f := newFixture(t, Deps{})
	got, err := f.wf.TargetBalance(buyParams(f))
	if err != nil {
		t.Fatal(err)
	}
	// 1 SOL / 4 + 0.02 buffer.
	if got != 270_000_000 {
		t.Errorf("target = %d, want 270000000", got)
	}
}

func TestBuy_FundsThenSwaps(t *testing.T) {
	var (
		funder  = &mockFunder{}
		swapper = &mockSwapper{}
		members []models.PoolMember
	)
	pools := &mockPools{}
	f := newFixture(t, Deps{Pools: pools, Funder: funder, Swapper: swapper})
	old := f.addEphemeral(t, "OLDPOOL1")

	pools.buildPoolFn = func(existing []models.WalletRecord, size int, target uint64, tag string) (pool.Pool, error) {
		if len(existing) != 1 || existing[0].PublicKey != old.PublicKey {
			t.Errorf("existing = %v", existing)
		}
		if size != 4 || target != 270_000_000 || tag != "DezXAZ8z" {
			t.Errorf("BuildPool(size=%d, target=%d, tag=%q)", size, target, tag)
		}
		members = []models.PoolMember{{Wallet: old, Recycled: true}}
		for i := 0; i < 3; i++ {
			rec, _ := wallet.Generate(models.RoleEphemeral, tag)
			members = append(members, models.PoolMember{Wallet: rec})
		}
		return pool.Pool{Members: members, Recycled: 1, Created: 3}, nil
	}
	funder.distributeFn = func(source models.WalletRecord, got []models.PoolMember, target, fee uint64) ([]models.Outcome, error) {
		if source.PublicKey != f.main.PublicKey || source.SecretKey == "" {
			t.Errorf("source = %+v", source)
		}
		if fee != 500_000 {
			t.Errorf("fee = %d, want 500000", fee)
		}
		out := make([]models.Outcome, len(got))
		for i, m := range got {
			out[i] = models.Success(models.StageFund, m.Wallet.PublicKey, "fund-sig", target)
		}
		out[0] = models.Skipped(models.StageFund, got[0].Wallet.PublicKey, "already funded")
		return out, nil
	}
	swapper.swapAllFn = func(wallets []models.WalletRecord, mint string, fee decimal.Decimal, slippage int, total decimal.Decimal) ([]models.Outcome, error) {
		if len(wallets) != 4 || mint != testMint || slippage != 3000 || !total.Equal(decimal.NewFromInt(1)) {
			t.Errorf("SwapAll(%d wallets, %s, %d, %s)", len(wallets), mint, slippage, total)
		}
		out := make([]models.Outcome, len(wallets))
		for i, w := range wallets {
			out[i] = models.Success(models.StageSwap, w.PublicKey, "swap-sig", 250_000_000)
		}
		out[3] = models.Failed(models.StageSwap, wallets[3].PublicKey, errors.New("no route"), true)
		return out, nil
	}

	res, err := f.wf.Buy(context.Background(), buyParams(f))
	if err != nil {
		t.Fatalf("Buy() error = %v", err)
	}

	if res.Fund.Summary.Succeeded != 3 || res.Fund.Summary.Skipped != 1 {
		t.Errorf("fund summary = %+v", res.Fund.Summary)
	}
	if res.Swap.Summary.Succeeded != 3 || res.Swap.Summary.Failed != 1 || res.Swap.Summary.SuccessRate != 75 {
		t.Errorf("swap summary = %+v", res.Swap.Summary)
	}
	if funder.runID != res.Fund.RunID {
		t.Errorf("run ID in context = %q, want %q", funder.runID, res.Fund.RunID)
	}

	fundRun := f.history.runs[res.Fund.RunID]
	if fundRun.Status != models.RunStatusCompleted || fundRun.Stage != models.StageFund || fundRun.Source != f.main.PublicKey {
		t.Errorf("fund run = %+v", fundRun)
	}
	if len(f.history.outcomes[res.Swap.RunID]) != 4 {
		t.Errorf("persisted swap outcomes = %d", len(f.history.outcomes[res.Swap.RunID]))
	}

	summaries := 0
	for _, k := range f.log.kinds() {
		if k == oplog.KindSummary {
			summaries++
		}
	}
	if summaries != 2 {
		t.Errorf("summary events = %d, want 2", summaries)
	}
}

func TestBuy_UnknownSource(t *testing.T) {
	f := newFixture(t, Deps{})
	p := buyParams(f)
	p.SourcePublicKey = "11111111111111111111111111111111"

	if _, err := f.wf.Buy(context.Background(), p); !errors.Is(err, config.ErrWalletNotFound) {
		t.Errorf("error = %v, want ErrWalletNotFound", err)
	}
	if len(f.history.runs) != 0 {
		t.Errorf("runs recorded before funds moved: %d", len(f.history.runs))
	}
}

func TestBuy_FundingAbortSkipsSwap(t *testing.T) {
	pools := &mockPools{buildPoolFn: func([]models.WalletRecord, int, uint64, string) (pool.Pool, error) {
		return pool.Pool{}, nil
	}}
	funder := &mockFunder{distributeFn: func(models.WalletRecord, []models.PoolMember, uint64, uint64) ([]models.Outcome, error) {
		return nil, config.ErrNoWallets
	}}
	swapper := &mockSwapper{swapAllFn: func([]models.WalletRecord, string, decimal.Decimal, int, decimal.Decimal) ([]models.Outcome, error) {
		t.Error("swap ran after funding aborted")
		return nil, nil
	}}
	f := newFixture(t, Deps{Pools: pools, Funder: funder, Swapper: swapper})

	res, err := f.wf.Buy(context.Background(), buyParams(f))
	if !errors.Is(err, config.ErrNoWallets) {
		t.Fatalf("error = %v, want ErrNoWallets", err)
	}
	if res == nil || res.Fund != nil || res.Swap != nil {
		t.Errorf("result = %+v", res)
	}
	for _, run := range f.history.runs {
		if run.Status != models.RunStatusAborted {
			t.Errorf("run %s status = %s, want aborted", run.ID, run.Status)
		}
	}
}

func TestBuy_HistoryFailureAbortsBeforeFunding(t *testing.T) {
	pools := &mockPools{buildPoolFn: func([]models.WalletRecord, int, uint64, string) (pool.Pool, error) {
		return pool.Pool{}, nil
	}}
	funder := &mockFunder{distributeFn: func(models.WalletRecord, []models.PoolMember, uint64, uint64) ([]models.Outcome, error) {
		t.Error("funding ran without a recorded run")
		return nil, nil
	}}
	f := newFixture(t, Deps{Pools: pools, Funder: funder})
	f.history.createErr = errors.New("database is locked")

	if _, err := f.wf.Buy(context.Background(), buyParams(f)); err == nil {
		t.Error("expected error")
	}
}

func TestPositionsAndSell(t *testing.T) {
	swapper := &mockSwapper{}
	f := newFixture(t, Deps{Swapper: swapper})
	a := f.addEphemeral(t, "DezXAZ8z")
	b := f.addEphemeral(t, "DezXAZ8z")

	f.bal.holdings[a.PublicKey] = models.Holdings{NativeLamports: 10_000_000, Tokens: []models.TokenHolding{
		{Mint: testMint, Symbol: "BONK", RawAmount: 500, Decimals: 2, Balance: decimal.RequireFromString("5")},
	}}
	f.bal.holdings[b.PublicKey] = models.Holdings{NativeLamports: 10_000_000, Tokens: []models.TokenHolding{
		{Mint: testMint, Symbol: "BONK", RawAmount: 300, Decimals: 2, Balance: decimal.RequireFromString("3")},
	}}

	positions, err := f.wf.Positions(context.Background())
	if err != nil {
		t.Fatalf("Positions() error = %v", err)
	}
	pos, err := FindPosition(positions, testMint)
	if err != nil {
		t.Fatal(err)
	}
	if !pos.Total.Equal(decimal.NewFromInt(8)) || len(pos.Holders) != 2 {
		t.Errorf("position = %+v", pos)
	}
	if _, err := FindPosition(positions, "other"); !errors.Is(err, config.ErrNoWallets) {
		t.Errorf("FindPosition(other) error = %v", err)
	}

	swapper.sellAllFn = func(position models.TokenPosition, fee decimal.Decimal, slippage int) ([]models.Outcome, error) {
		out := make([]models.Outcome, len(position.Holders))
		for i, h := range position.Holders {
			out[i] = models.Success(models.StageSell, h.Wallet.PublicKey, "sell-sig", h.RawAmount)
		}
		return out, nil
	}

	rep, err := f.wf.Sell(context.Background(), pos, models.SellParams{Mint: testMint, PriorityFee: decimal.RequireFromString("0.0001"), SlippageBps: 500})
	if err != nil {
		t.Fatalf("Sell() error = %v", err)
	}
	if rep.Summary.Succeeded != 2 || rep.Summary.Moved != 800 {
		t.Errorf("summary = %+v", rep.Summary)
	}
	if f.history.runs[rep.RunID].Stage != models.StageSell {
		t.Errorf("run = %+v", f.history.runs[rep.RunID])
	}
}

func TestPositions_NoWallets(t *testing.T) {
	f := newFixture(t, Deps{})
	if _, err := f.wf.Positions(context.Background()); !errors.Is(err, config.ErrNoWallets) {
		t.Errorf("error = %v, want ErrNoWallets", err)
	}
}

func TestSweep_UsesCollectorRate(t *testing.T) {
	sweeper := &mockSweeper{}
	f := newFixture(t, Deps{Sweeper: sweeper})
	a := f.addEphemeral(t, "P1")
	b := f.addEphemeral(t, "P2")

	sweeper.sweepFn = func(wallets []models.WalletRecord, destination string) (*sweep.Report, error) {
		if len(wallets) != 2 || destination != f.main.PublicKey {
			t.Errorf("Sweep(%d wallets, %s)", len(wallets), destination)
		}
		return &sweep.Report{
			Outcomes: []models.Outcome{
				models.Success(models.StageSweep, a.PublicKey, "s", 995_000),
				models.Failed(models.StageSweep, b.PublicKey, errors.New("rpc down"), true),
			},
			WithBalance: 1,
			TotalSwept:  995_000,
			SuccessRate: 100,
		}, nil
	}

	res, err := f.wf.Sweep(context.Background(), f.main.PublicKey)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if res.Summary.SuccessRate != 100 || res.Summary.Moved != 995_000 || res.WithBalance != 1 {
		t.Errorf("summary = %+v", res.Summary)
	}
	if got := f.history.runs[res.RunID].Summary.SuccessRate; got != 100 {
		t.Errorf("persisted success rate = %v", got)
	}
}

func TestSweep_Misconfiguration(t *testing.T) {
	f := newFixture(t, Deps{Sweeper: &mockSweeper{}})

	if _, err := f.wf.Sweep(context.Background(), "11111111111111111111111111111111"); !errors.Is(err, config.ErrWalletNotFound) {
		t.Errorf("unknown destination error = %v", err)
	}
	if _, err := f.wf.Sweep(context.Background(), f.main.PublicKey); !errors.Is(err, config.ErrNoWallets) {
		t.Errorf("empty pool error = %v", err)
	}
	if len(f.history.runs) != 0 {
		t.Errorf("runs recorded: %d", len(f.history.runs))
	}
}

func TestBalances(t *testing.T) {
	f := newFixture(t, Deps{})
	e := f.addEphemeral(t, "P1")
	down := f.addEphemeral(t, "P1")
	f.bal.lamports[f.main.PublicKey] = 2_500_000_000
	f.bal.lamports[e.PublicKey] = 1_000
	f.bal.failing[down.PublicKey] = true

	got, err := f.wf.Balances(context.Background(), true)
	if err != nil {
		t.Fatalf("Balances() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Role != models.RoleMain || !got[0].SOL.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("main = %+v", got[0])
	}

	var sawErr bool
	for _, b := range got[1:] {
		if b.PublicKey == down.PublicKey {
			sawErr = b.Error != ""
		}
		if b.Role != models.RoleEphemeral || b.PoolTag != "P1" {
			t.Errorf("ephemeral = %+v", b)
		}
	}
	if !sawErr {
		t.Error("unreadable wallet not reported")
	}

	mainOnly, _ := f.wf.Balances(context.Background(), false)
	if len(mainOnly) != 1 {
		t.Errorf("main only len = %d", len(mainOnly))
	}
}

type fixedPrice struct {
	usd decimal.Decimal
	err error
}

func (p fixedPrice) SOLUSD(context.Context) (decimal.Decimal, error) { return p.usd, p.err }

func TestBalances_USD(t *testing.T) {
	f := newFixture(t, Deps{Prices: fixedPrice{usd: decimal.RequireFromString("150")}})
	f.bal.lamports[f.main.PublicKey] = 2_500_000_000

	got, err := f.wf.Balances(context.Background(), false)
	if err != nil {
		t.Fatalf("Balances() error = %v", err)
	}
	if got[0].USD != "375.00" {
		t.Errorf("USD = %q, want 375.00", got[0].USD)
	}

	f = newFixture(t, Deps{Prices: fixedPrice{err: errors.New("429")}})
	f.bal.lamports[f.main.PublicKey] = 2_500_000_000
	got, err = f.wf.Balances(context.Background(), false)
	if err != nil {
		t.Fatalf("price failure must not fail listing: %v", err)
	}
	if got[0].USD != "" {
		t.Errorf("USD = %q, want empty", got[0].USD)
	}
}

func TestCreateMainWallet(t *testing.T) {
	f := newFixture(t, Deps{})

	rec, path, err := f.wf.CreateMainWallet("", 0)
	if err != nil {
		t.Fatalf("CreateMainWallet() error = %v", err)
	}
	if path == "" {
		t.Error("empty path")
	}
	if _, err := f.store.FindMain(rec.PublicKey); err != nil {
		t.Errorf("wallet not persisted: %v", err)
	}

	const mnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	d1, _, err := f.wf.CreateMainWallet(mnemonic, 0)
	if err != nil {
		t.Fatalf("derive error = %v", err)
	}
	d2, err := wallet.DeriveMainWallet(mnemonic, 0)
	if err != nil {
		t.Fatal(err)
	}
	if d1.PublicKey != d2.PublicKey {
		t.Errorf("derived %s, want %s", d1.PublicKey, d2.PublicKey)
	}

	if _, _, err := f.wf.CreateMainWallet(mnemonic, config.MainWalletMaxIndex+1); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("index overflow error = %v", err)
	}
	if _, _, err := f.wf.CreateMainWallet("not a mnemonic", 0); err == nil {
		t.Error("expected error for invalid mnemonic")
	}

	created := 0
	for _, k := range f.log.kinds() {
		if k == oplog.KindWalletCreated {
			created++
		}
	}
	if created != 2 {
		t.Errorf("wallet_created events = %d, want 2", created)
	}
}

func TestPoolTag(t *testing.T) {
	if got := PoolTag(testMint); got != "DezXAZ8z" {
		t.Errorf("PoolTag = %q", got)
	}
	if got := PoolTag("abc"); got != "abc" {
		t.Errorf("PoolTag(short) = %q", got)
	}
}
