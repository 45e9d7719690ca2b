package prompt

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Fantasim/solfan/internal/models"
	"github.com/Fantasim/solfan/internal/oplog"
)

func TestValidators(t *testing.T) {
	tests := []struct {
		name  string
		fn    func(string) error
		input string
		ok    bool
	}{
		{"positive ok", validatePositiveDecimal, "1.5", true},
		{"positive trims", validatePositiveDecimal, " 2 ", true},
		{"positive zero", validatePositiveDecimal, "0", false},
		{"positive garbage", validatePositiveDecimal, "abc", false},
		{"non-negative zero", validateNonNegativeDecimal, "0", true},
		{"non-negative negative", validateNonNegativeDecimal, "-0.1", false},
		{"count ok", validateWalletCount, "10", true},
		{"count zero", validateWalletCount, "0", false},
		{"count fraction", validateWalletCount, "1.5", false},
		{"slippage max", validateSlippage, "10000", true},
		{"slippage over", validateSlippage, "10001", false},
		{"slippage negative", validateSlippage, "-1", false},
		{"mint ok", validateMint, "So11111111111111111111111111111111111111112", true},
		{"mint short", validateMint, "So111", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn(tt.input)
			if (err == nil) != tt.ok {
				t.Errorf("%q: error = %v, want ok=%v", tt.input, err, tt.ok)
			}
		})
	}
}

func TestWalletOptions(t *testing.T) {
	opts := walletOptions([]models.WalletBalance{
		{PublicKey: "Main1", SOL: decimal.RequireFromString("1.23456")},
		{PublicKey: "Main2", Error: "rpc down"},
	})
	if len(opts) != 2 {
		t.Fatalf("len = %d", len(opts))
	}
	if opts[0].Value != "Main1" || !strings.Contains(opts[0].Key, "1.2346 SOL") {
		t.Errorf("opts[0] = %+v", opts[0])
	}
	if !strings.Contains(opts[1].Key, "unavailable") {
		t.Errorf("opts[1] = %+v", opts[1])
	}
}

func TestSelectWallet_NoWallets(t *testing.T) {
	if _, err := SelectWallet("Funding wallet", nil); err == nil {
		t.Error("expected error for empty wallet list")
	}
}

func TestPositionOptions(t *testing.T) {
	opts := positionOptions([]models.TokenPosition{
		{Symbol: "BONK", Total: decimal.NewFromInt(8), PriceUSD: decimal.RequireFromString("0.5"), Holders: make([]models.TokenHolder, 2)},
		{Mint: "X"},
	})
	if opts[0].Value != 0 || !strings.Contains(opts[0].Key, "BONK  8  (2 wallets, $0.50)") {
		t.Errorf("opts[0] = %+v", opts[0])
	}
	if opts[1].Value != 1 || !strings.HasPrefix(opts[1].Key, "-") {
		t.Errorf("opts[1] = %+v", opts[1])
	}
}

func TestRenderOutcomes(t *testing.T) {
	out := Outcomes([]models.Outcome{
		models.Success(models.StageSwap, "W1", "sig1", 1_250_000_000),
		models.Skipped(models.StageSwap, "W2", "insufficient balance"),
		models.Failed(models.StageSwap, "W3", errors.New("no route"), true),
	})

	for _, want := range []string{
		"https://solscan.io/tx/sig1",
		"1250000000",
		"insufficient balance",
		"no route (retries exhausted)",
		"skipped",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderSummary(t *testing.T) {
	out := Summary(models.StageSweep, models.Summary{Total: 3, Succeeded: 2, Skipped: 1, Moved: 1_500_000_000, SuccessRate: 100})
	for _, want := range []string{"sweep", "1.5000 SOL", "100.00%"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	sell := Summary(models.StageSell, models.Summary{Moved: 42})
	if !strings.Contains(sell, "42 (raw)") {
		t.Errorf("sell summary:\n%s", sell)
	}
}

func TestRenderPoolMembers(t *testing.T) {
	out := PoolMembers([]models.PoolMember{
		{Wallet: models.WalletRecord{PublicKey: "A"}, Balance: 1_000_000_000, AmountNeeded: -300_000_000, Recycled: true},
		{Wallet: models.WalletRecord{PublicKey: "B"}, AmountNeeded: 700_000_000},
	})
	for _, want := range []string{"-0.3000", "0.7000", "recycled", "created", "1.0000"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderBalancesAndPositions(t *testing.T) {
	bal := Balances([]models.WalletBalance{
		{PublicKey: "Main1", Role: models.RoleMain, SOL: decimal.RequireFromString("2.5"), USD: "375.00"},
		{PublicKey: "Pool1", Role: models.RoleEphemeral, PoolTag: "BONK", Error: "timeout"},
	})
	for _, want := range []string{"Main1", "2.5000", "375.00", "BONK", "unavailable"} {
		if !strings.Contains(bal, want) {
			t.Errorf("balances missing %q:\n%s", want, bal)
		}
	}

	pos := Positions([]models.TokenPosition{{Mint: "MintX", Total: decimal.NewFromInt(3)}})
	if !strings.Contains(pos, "MintX") || !strings.Contains(pos, "-") {
		t.Errorf("positions:\n%s", pos)
	}
}

func TestRenderEvents(t *testing.T) {
	if !strings.Contains(Events(nil), "no journal entries") {
		t.Error("empty journal not reported")
	}
	out := Events([]oplog.Event{
		{Time: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), Stage: models.StageFund, Message: "success", Wallet: "W1"},
	})
	if !strings.Contains(out, "2026-01-02T03:04:05Z") || !strings.Contains(out, "wallet=W1") {
		t.Errorf("events:\n%s", out)
	}
}

func TestBuySummary(t *testing.T) {
	s := BuySummary(models.BuyParams{
		SourcePublicKey: "Src",
		DestinationMint: "Mint",
		TotalAmount:     decimal.NewFromInt(1),
		WalletCount:     4,
		PriorityFee:     decimal.RequireFromString("0.0005"),
		SlippageBps:     3000,
	}, 270_000_000)
	for _, want := range []string{"Src", "Mint", "0.2700 SOL", "3000 bps"} {
		if !strings.Contains(s, want) {
			t.Errorf("summary missing %q:\n%s", want, s)
		}
	}
}
