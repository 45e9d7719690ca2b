package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Fantasim/solfan/internal/models"
)

// CreateRun records the start of a stage run.
func (d *DB) CreateRun(run models.Run) error {
	if run.StartedAt == "" {
		run.StartedAt = time.Now().UTC().Format(time.RFC3339)
	}
	if run.Status == "" {
		run.Status = models.RunStatusRunning
	}

	_, err := d.conn.Exec(
		`INSERT INTO runs (id, stage, status, pool_tag, source, params, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Stage), run.Status, run.PoolTag, run.Source, run.Params, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	slog.Info("run recorded", "runID", run.ID, "stage", run.Stage, "poolTag", run.PoolTag)
	return nil
}

// FinishRun stores the run's summary and final status. A non-empty runErr
// marks the run aborted.
func (d *DB) FinishRun(id string, summary models.Summary, runErr string) error {
	status := models.RunStatusCompleted
	if runErr != "" {
		status = models.RunStatusAborted
	}
	now := time.Now().UTC().Format(time.RFC3339)

	res, err := d.conn.Exec(
		`UPDATE runs SET status = ?, total = ?, succeeded = ?, skipped = ?, failed = ?,
		   moved = ?, success_rate = ?, error = ?, finished_at = ?
		 WHERE id = ?`,
		status, summary.Total, summary.Succeeded, summary.Skipped, summary.Failed,
		strconv.FormatUint(summary.Moved, 10), summary.SuccessRate, runErr, now, id,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", id, sql.ErrNoRows)
	}

	slog.Info("run finished",
		"runID", id,
		"status", status,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
	)
	return nil
}

const runColumns = `id, stage, status, pool_tag, source, params, total, succeeded, skipped, failed,
	moved, success_rate, error, started_at, finished_at`

func scanRun(row interface{ Scan(...any) error }) (models.Run, error) {
	var (
		r          models.Run
		stage      string
		moved      string
		finishedAt sql.NullString
	)
	err := row.Scan(&r.ID, &stage, &r.Status, &r.PoolTag, &r.Source, &r.Params,
		&r.Summary.Total, &r.Summary.Succeeded, &r.Summary.Skipped, &r.Summary.Failed,
		&moved, &r.Summary.SuccessRate, &r.Error, &r.StartedAt, &finishedAt)
	if err != nil {
		return r, err
	}
	r.Stage = models.Stage(stage)
	r.Summary.Moved, _ = strconv.ParseUint(moved, 10, 64)
	if finishedAt.Valid {
		r.FinishedAt = finishedAt.String
	}
	return r, nil
}

// GetRun returns the run with the given ID, or nil if there is none.
func (d *DB) GetRun(id string) (*models.Run, error) {
	r, err := scanRun(d.conn.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query run %s: %w", id, err)
	}
	return &r, nil
}

// RunFilter selects runs for ListRuns. An empty Stage matches every stage.
type RunFilter struct {
	Stage  models.Stage
	Limit  int
	Offset int
}

// ListRuns returns runs newest first, with the total number matching the filter.
func (d *DB) ListRuns(f RunFilter) ([]models.Run, int64, error) {
	where := ""
	var args []any
	if f.Stage != "" {
		where = " WHERE stage = ?"
		args = append(args, string(f.Stage))
	}

	var total int64
	if err := d.conn.QueryRow(`SELECT COUNT(*) FROM runs`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count runs: %w", err)
	}

	rows, err := d.conn.Query(
		`SELECT `+runColumns+` FROM runs`+where+` ORDER BY started_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		append(args, f.Limit, f.Offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []models.Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate runs: %w", err)
	}

	slog.Debug("runs listed", "stage", f.Stage, "count", len(runs), "total", total)
	return runs, total, nil
}
