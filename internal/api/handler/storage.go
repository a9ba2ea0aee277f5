package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/backupd/internal/api/response"
	"github.com/edvin/backupd/internal/model"
	"github.com/edvin/backupd/internal/registry"
)

type Storage struct {
	health *registry.HealthService
}

func NewStorage(health *registry.HealthService) *Storage {
	return &Storage{health: health}
}

// Health reports the last probe outcome for both backends.
func (h *Storage) Health(w http.ResponseWriter, r *http.Request) {
	out := map[string]*model.StorageHealth{}
	for _, backend := range []string{model.BackendPrimary, model.BackendSecondary} {
		health, err := h.health.Get(r.Context(), backend)
		if err != nil {
			// No probe recorded yet is not an error, the entry stays null.
			if errors.Is(err, model.ErrNotFound) {
				out[backend] = nil
				continue
			}
			writeRegistryError(w, err)
			return
		}
		out[backend] = health
	}
	response.WriteJSON(w, http.StatusOK, out)
}

// BackendHealth reports the last probe outcome for a single backend.
func (h *Storage) BackendHealth(w http.ResponseWriter, r *http.Request) {
	backend := chi.URLParam(r, "backend")
	if backend != model.BackendPrimary && backend != model.BackendSecondary {
		response.WriteError(w, http.StatusNotFound, "unknown backend")
		return
	}

	health, err := h.health.Get(r.Context(), backend)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, health)
}
