package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Fantasim/solfan/internal/config"
)

// HealthHandler returns a handler for the GET /api/health endpoint.
func HealthHandler(cfg *config.Config, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("health check requested", "remoteAddr", r.RemoteAddr)

		writeJSON(w, http.StatusOK, map[string]any{
			"status":       "ok",
			"version":      version,
			"dbPath":       cfg.DBPath,
			"walletDir":    cfg.WalletDir,
			"rpcEndpoints": len(cfg.RPCURLs),
			"swapMode":     cfg.SwapMode,
		})
	}
}
