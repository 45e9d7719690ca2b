package models

import (
	"fmt"

	"github.com/Fantasim/solfan/internal/config"
)

// Stage names a step of the wallet pool lifecycle.
type Stage string

const (
	StageFund  Stage = "fund"
	StageSwap  Stage = "swap"
	StageSell  Stage = "sell"
	StageSweep Stage = "sweep"
)

// OutcomeStatus is the tag of a per-wallet Outcome.
type OutcomeStatus string

const (
	StatusSuccess OutcomeStatus = "success"
	StatusSkipped OutcomeStatus = "skipped"
	StatusFailed  OutcomeStatus = "failed"
)

// Outcome is the terminal result of one wallet's sequence within a stage.
// Amount is in lamports for transfers and in the source token's raw units for swaps.
type Outcome struct {
	Wallet           string        `json:"wallet"`
	Stage            Stage         `json:"stage"`
	Status           OutcomeStatus `json:"status"`
	TxID             string        `json:"txId,omitempty"`
	Amount           uint64        `json:"amount,omitempty"`
	Reason           string        `json:"reason,omitempty"`
	Err              error         `json:"-"`
	RetriesExhausted bool          `json:"retriesExhausted,omitempty"`
}

// Success builds a successful outcome.
func Success(stage Stage, wallet, txID string, amount uint64) Outcome {
	return Outcome{Wallet: wallet, Stage: stage, Status: StatusSuccess, TxID: txID, Amount: amount}
}

// Skipped builds an outcome for a wallet that needed no work or could not afford it.
func Skipped(stage Stage, wallet, reason string) Outcome {
	return Outcome{Wallet: wallet, Stage: stage, Status: StatusSkipped, Reason: reason}
}

// Failed builds a failed outcome. Insufficient balance errors become Skipped instead.
func Failed(stage Stage, wallet string, err error, retriesExhausted bool) Outcome {
	if config.KindOf(err) == config.KindInsufficientBalance {
		o := Skipped(stage, wallet, err.Error())
		o.Err = err
		return o
	}
	reason := "unknown error"
	if err != nil {
		reason = err.Error()
	}
	return Outcome{
		Wallet:           wallet,
		Stage:            stage,
		Status:           StatusFailed,
		Reason:           reason,
		Err:              err,
		RetriesExhausted: retriesExhausted,
	}
}

// TxURL returns the explorer link for a successful outcome, or "".
func (o Outcome) TxURL() string {
	if o.TxID == "" {
		return ""
	}
	return fmt.Sprintf(config.SOLExplorerTxURL, o.TxID)
}

// Summary aggregates a stage's outcomes.
type Summary struct {
	Total       int     `json:"total"`
	Succeeded   int     `json:"succeeded"`
	Skipped     int     `json:"skipped"`
	Failed      int     `json:"failed"`
	Moved       uint64  `json:"moved"`
	SuccessRate float64 `json:"successRate"`
}

// Summarize counts outcomes. SuccessRate is succeeded over attempted (non-skipped) wallets, in percent.
func Summarize(outcomes []Outcome) Summary {
	var s Summary
	s.Total = len(outcomes)
	for _, o := range outcomes {
		switch o.Status {
		case StatusSuccess:
			s.Succeeded++
			s.Moved += o.Amount
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		}
	}
	if attempted := s.Succeeded + s.Failed; attempted > 0 {
		s.SuccessRate = float64(s.Succeeded) / float64(attempted) * 100
	}
	return s
}
