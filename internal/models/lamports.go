package models

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/Fantasim/solfan/internal/config"
)

var lamportsPerSOL = decimal.NewFromInt(config.LamportsPerSOL)

// LamportsFromSOL converts a SOL amount to lamports, truncating below one lamport.
func LamportsFromSOL(sol decimal.Decimal) (uint64, error) {
	if sol.IsNegative() {
		return 0, fmt.Errorf("negative SOL amount %s", sol)
	}
	l := sol.Mul(lamportsPerSOL).Truncate(0)
	if !l.BigInt().IsUint64() {
		return 0, fmt.Errorf("SOL amount %s overflows lamports", sol)
	}
	return l.BigInt().Uint64(), nil
}

// SOLFromLamports converts lamports to SOL.
func SOLFromLamports(lamports uint64) decimal.Decimal {
	return fromUint64(lamports).Div(lamportsPerSOL)
}

// FormatSOL renders lamports as SOL with four decimals for operator output.
func FormatSOL(lamports uint64) string {
	return SOLFromLamports(lamports).StringFixed(4)
}

// TokenAmount converts raw token units to a decimal balance.
func TokenAmount(raw uint64, decimals int) decimal.Decimal {
	return fromUint64(raw).Shift(int32(-decimals))
}

// SplitAmount divides total evenly across n wallets, truncated to whole lamports.
func SplitAmount(total decimal.Decimal, n int) decimal.Decimal {
	if n <= 0 {
		return decimal.Zero
	}
	return total.DivRound(decimal.NewFromInt(int64(n)), config.SOLDecimals+1).Truncate(config.SOLDecimals)
}

func fromUint64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
