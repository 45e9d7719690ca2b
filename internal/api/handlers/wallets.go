package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Fantasim/solfan/internal/config"
	"github.com/Fantasim/solfan/internal/models"
	"github.com/Fantasim/solfan/internal/wallet"
	"github.com/go-chi/chi/v5"
)

// WalletLister lists persisted wallets.
type WalletLister interface {
	ListMain() ([]models.WalletRecord, error)
	ListEphemeral(tag string) ([]models.WalletRecord, error)
}

type walletEntry struct {
	PublicKey string            `json:"publicKey"`
	Role      models.WalletRole `json:"role"`
	PoolTag   string            `json:"poolTag,omitempty"`
}

// ListWallets handles GET /api/wallets?role=&tag=. Secret keys never leave the store.
func ListWallets(store WalletLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := models.WalletRole(r.URL.Query().Get("role"))
		tag := r.URL.Query().Get("tag")

		if role != "" && role != models.RoleMain && role != models.RoleEphemeral {
			writeError(w, http.StatusBadRequest, config.ErrorInvalidParam, "unknown role: "+string(role))
			return
		}

		var records []models.WalletRecord
		if role == "" || role == models.RoleMain {
			mains, err := store.ListMain()
			if err != nil {
				slog.Error("failed to list main wallets", "error", err)
				writeError(w, http.StatusInternalServerError, config.ErrorWalletStore, "failed to list wallets")
				return
			}
			records = append(records, mains...)
		}
		if role == "" || role == models.RoleEphemeral {
			pool, err := store.ListEphemeral(tag)
			if err != nil {
				slog.Error("failed to list ephemeral wallets", "tag", tag, "error", err)
				writeError(w, http.StatusInternalServerError, config.ErrorWalletStore, "failed to list wallets")
				return
			}
			records = append(records, pool...)
		}

		entries := make([]walletEntry, 0, len(records))
		for _, rec := range records {
			entries = append(entries, walletEntry{PublicKey: rec.PublicKey, Role: rec.Role, PoolTag: rec.PoolTag})
		}

		writeJSON(w, http.StatusOK, models.APIResponse{
			Data: entries,
			Meta: &models.APIMeta{Total: int64(len(entries))},
		})
	}
}

// WalletOutcomes handles GET /api/wallets/{pubkey}/outcomes?limit=.
func WalletOutcomes(store RunStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pubkey := chi.URLParam(r, "pubkey")
		if err := wallet.ValidateAddress(pubkey); err != nil {
			writeError(w, http.StatusBadRequest, config.ErrorInvalidParam, err.Error())
			return
		}
		limit := clampLimit(parseIntParam(r, "limit", config.DefaultRunListLimit), config.DefaultRunListLimit, config.MaxRunListLimit)

		outcomes, err := store.WalletOutcomes(pubkey, limit)
		if err != nil {
			slog.Error("failed to load wallet outcomes", "wallet", pubkey, "error", err)
			writeError(w, http.StatusInternalServerError, config.ErrorDatabase, "failed to load outcomes")
			return
		}

		writeJSON(w, http.StatusOK, models.APIResponse{
			Data: outcomes,
			Meta: &models.APIMeta{Total: int64(len(outcomes))},
		})
	}
}
