package db

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Fantasim/solfan/internal/config"
	"github.com/Fantasim/solfan/internal/models"
)

// InsertOutcomes stores a stage's per-wallet outcomes in one transaction.
func (d *DB) InsertOutcomes(runID string, outcomes []models.Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin outcome batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO outcomes (run_id, wallet, stage, status, tx_id, amount, reason, retries_exhausted)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare outcome insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range outcomes {
		if _, err := stmt.Exec(
			runID, o.Wallet, string(o.Stage), string(o.Status), o.TxID,
			strconv.FormatUint(o.Amount, 10), o.Reason, o.RetriesExhausted,
		); err != nil {
			return fmt.Errorf("insert outcome for %s: %w", o.Wallet, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit outcome batch: %w", err)
	}

	slog.Debug("outcomes recorded", "runID", runID, "count", len(outcomes))
	return nil
}

const outcomeColumns = `id, run_id, wallet, stage, status, tx_id, amount, reason, retries_exhausted, created_at`

func (d *DB) queryOutcomes(query string, args ...any) ([]models.OutcomeRecord, error) {
	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.OutcomeRecord{}
	for rows.Next() {
		var (
			r      models.OutcomeRecord
			stage  string
			status string
		)
		if err := rows.Scan(&r.ID, &r.RunID, &r.Wallet, &stage, &status, &r.TxID,
			&r.Amount, &r.Reason, &r.RetriesExhausted, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		r.Stage = models.Stage(stage)
		r.Status = models.OutcomeStatus(status)
		if r.TxID != "" {
			r.TxURL = fmt.Sprintf(config.SOLExplorerTxURL, r.TxID)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetOutcomes returns a run's outcomes in insertion order.
func (d *DB) GetOutcomes(runID string) ([]models.OutcomeRecord, error) {
	out, err := d.queryOutcomes(`SELECT `+outcomeColumns+` FROM outcomes WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes for run %s: %w", runID, err)
	}
	return out, nil
}

// WalletOutcomes returns a wallet's outcomes across runs, newest first.
func (d *DB) WalletOutcomes(wallet string, limit int) ([]models.OutcomeRecord, error) {
	out, err := d.queryOutcomes(
		`SELECT `+outcomeColumns+` FROM outcomes WHERE wallet = ? ORDER BY id DESC LIMIT ?`,
		wallet, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query outcomes for wallet %s: %w", wallet, err)
	}
	return out, nil
}
