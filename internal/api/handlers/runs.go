package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Fantasim/solfan/internal/config"
	"github.com/Fantasim/solfan/internal/db"
	"github.com/Fantasim/solfan/internal/models"
	"github.com/go-chi/chi/v5"
)

// RunStore is the slice of the history database the run handlers read.
type RunStore interface {
	ListRuns(f db.RunFilter) ([]models.Run, int64, error)
	GetRun(id string) (*models.Run, error)
	GetOutcomes(runID string) ([]models.OutcomeRecord, error)
	WalletOutcomes(wallet string, limit int) ([]models.OutcomeRecord, error)
}

var validStages = map[models.Stage]bool{
	models.StageFund:  true,
	models.StageSwap:  true,
	models.StageSell:  true,
	models.StageSweep: true,
}

// ListRuns handles GET /api/runs?stage=&limit=&offset=.
func ListRuns(store RunStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		stage := models.Stage(r.URL.Query().Get("stage"))
		if stage != "" && !validStages[stage] {
			writeError(w, http.StatusBadRequest, config.ErrorInvalidParam, "unknown stage: "+string(stage))
			return
		}

		f := db.RunFilter{
			Stage:  stage,
			Limit:  clampLimit(parseIntParam(r, "limit", config.DefaultRunListLimit), config.DefaultRunListLimit, config.MaxRunListLimit),
			Offset: max(parseIntParam(r, "offset", 0), 0),
		}
		slog.Info("listing runs", "stage", f.Stage, "limit", f.Limit, "offset", f.Offset)

		runs, total, err := store.ListRuns(f)
		if err != nil {
			slog.Error("failed to list runs", "error", err)
			writeError(w, http.StatusInternalServerError, config.ErrorDatabase, "failed to list runs")
			return
		}

		writeJSON(w, http.StatusOK, models.APIResponse{
			Data: runs,
			Meta: &models.APIMeta{Total: total, ExecutionTime: time.Since(start).Milliseconds()},
		})
	}
}

type runDetail struct {
	models.Run
	Outcomes []models.OutcomeRecord `json:"outcomes"`
}

// GetRun handles GET /api/runs/{id}, returning the run with its outcomes.
func GetRun(store RunStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		run, err := store.GetRun(id)
		if err != nil {
			slog.Error("failed to load run", "runID", id, "error", err)
			writeError(w, http.StatusInternalServerError, config.ErrorDatabase, "failed to load run")
			return
		}
		if run == nil {
			writeError(w, http.StatusNotFound, config.ErrorRunNotFound, "run not found: "+id)
			return
		}

		outcomes, err := store.GetOutcomes(id)
		if err != nil {
			slog.Error("failed to load outcomes", "runID", id, "error", err)
			writeError(w, http.StatusInternalServerError, config.ErrorDatabase, "failed to load outcomes")
			return
		}

		writeJSON(w, http.StatusOK, models.APIResponse{Data: runDetail{Run: *run, Outcomes: outcomes}})
	}
}
