package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/backupd/internal/api/middleware"
	"github.com/edvin/backupd/internal/api/request"
	"github.com/edvin/backupd/internal/api/response"
	"github.com/edvin/backupd/internal/model"
	"github.com/edvin/backupd/internal/registry"
	"github.com/edvin/backupd/internal/restore"
)

type Restore struct {
	orchestrator *restore.Orchestrator
	restores     *registry.RestoreService
}

func NewRestore(orchestrator *restore.Orchestrator, restores *registry.RestoreService) *Restore {
	return &Restore{orchestrator: orchestrator, restores: restores}
}

// Initiate creates a pending restore awaiting confirmation.
func (h *Restore) Initiate(w http.ResponseWriter, r *http.Request) {
	var req request.InitiateRestore
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.orchestrator.Initiate(r.Context(), req.SourceBackupID, req.TargetTenantID,
		middleware.Actor(r.Context()))
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusAccepted, job)
}

// Confirm runs the identifier gate. A mismatch is 422 and leaves the
// restore pending; an exact match queues it for execution.
func (h *Restore) Confirm(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.ConfirmRestore
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.orchestrator.Confirm(r.Context(), id, middleware.Actor(r.Context()), req.Confirmation)
	if err != nil {
		if errors.Is(err, model.ErrConfirmationMismatch) {
			response.WriteError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeRegistryError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, job)
}

func (h *Restore) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.restores.GetByID(r.Context(), id)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, job)
}

func (h *Restore) ListByTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, err := request.RequireID(chi.URLParam(r, "tenantID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	pg := request.ParsePagination(r)

	jobs, hasMore, err := h.restores.ListByTenant(r.Context(), tenantID, pg.Limit, pg.Cursor)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var nextCursor string
	if hasMore && len(jobs) > 0 {
		nextCursor = jobs[len(jobs)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, jobs, nextCursor, hasMore)
}
