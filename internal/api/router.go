package api

import (
	"log/slog"

	"github.com/Fantasim/solfan/internal/api/handlers"
	"github.com/Fantasim/solfan/internal/api/middleware"
	"github.com/Fantasim/solfan/internal/config"
	"github.com/go-chi/chi/v5"
)

// Version is set at build time via ldflags.
var Version = "dev"

// NewRouter builds the read-only run history API.
func NewRouter(runs handlers.RunStore, wallets handlers.WalletLister, cfg *config.Config) chi.Router {
	r := chi.NewRouter()

	// Order matters: the request is logged even when a later check rejects it.
	r.Use(middleware.RequestLogging)
	r.Use(middleware.HostCheck)
	r.Use(middleware.CORS)
	r.Use(middleware.ReadOnly)

	slog.Info("router initialized",
		"middleware", []string{"requestLogging", "hostCheck", "cors", "readOnly"},
	)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.HealthHandler(cfg, Version))

		r.Get("/runs", handlers.ListRuns(runs))
		r.Get("/runs/{id}", handlers.GetRun(runs))

		r.Get("/wallets", handlers.ListWallets(wallets))
		r.Get("/wallets/{pubkey}/outcomes", handlers.WalletOutcomes(runs))
	})

	return r
}
