package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/backupd/internal/api/middleware"
	"github.com/edvin/backupd/internal/api/request"
	"github.com/edvin/backupd/internal/api/response"
	"github.com/edvin/backupd/internal/audit"
	"github.com/edvin/backupd/internal/model"
	"github.com/edvin/backupd/internal/platform"
	"github.com/edvin/backupd/internal/registry"
	"github.com/edvin/backupd/internal/retention"
)

type Backup struct {
	jobs     *registry.JobService
	objects  *registry.ObjectService
	tenants  *registry.TenantService
	recorder *audit.Recorder
}

func NewBackup(jobs *registry.JobService, objects *registry.ObjectService,
	tenants *registry.TenantService, recorder *audit.Recorder) *Backup {
	return &Backup{jobs: jobs, objects: objects, tenants: tenants, recorder: recorder}
}

// Create enqueues a manually triggered backup job.
func (h *Backup) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateBackup
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if model.KindRequiresTenant(req.Kind) {
		if req.TenantID == nil {
			response.WriteError(w, http.StatusBadRequest, "tenant_id is required for tenant_schema backups")
			return
		}
		if _, err := h.tenants.GetByID(r.Context(), *req.TenantID); err != nil {
			response.WriteError(w, http.StatusNotFound, err.Error())
			return
		}
	} else if req.TenantID != nil {
		response.WriteError(w, http.StatusBadRequest, "tenant_id is only valid for tenant_schema backups")
		return
	}

	job := &model.BackupJob{
		ID:          platform.NewID(),
		Kind:        req.Kind,
		TenantID:    req.TenantID,
		Status:      model.StatusPending,
		TriggeredBy: model.TriggeredByManual,
		CreatedAt:   time.Now(),
	}
	if err := h.jobs.Create(r.Context(), job); err != nil {
		if errors.Is(err, model.ErrConcurrentJobConflict) {
			response.WriteError(w, http.StatusConflict, err.Error())
			return
		}
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.recorder.Record(audit.Event{
		Event:       model.AuditJobCreated,
		BackupJobID: &job.ID,
		TenantID:    job.TenantID,
		Actor:       middleware.Actor(r.Context()),
	})
	response.WriteJSON(w, http.StatusAccepted, job)
}

func (h *Backup) List(w http.ResponseWriter, r *http.Request) {
	filter, err := request.ParseJobFilter(r)
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	pg := request.ParsePagination(r)

	jobs, hasMore, err := h.jobs.List(r.Context(), filter, pg.Limit, pg.Cursor)
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

// BackupDetail is a job with its artifacts and execution log.
type BackupDetail struct {
	*model.BackupJob
	Objects []model.StorageObject `json:"objects"`
	Logs    []model.JobLogEntry   `json:"logs"`
}

func (h *Backup) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.jobs.GetByID(r.Context(), id)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	objects, err := h.objects.ByJob(r.Context(), job.ID)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logs, err := h.jobs.Logs(r.Context(), job.ID)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, BackupDetail{BackupJob: job, Objects: objects, Logs: logs})
}

// Cancel cancels a pending job immediately or flags a running one for
// cancellation at its next checkpoint.
func (h *Backup) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.jobs.RequestCancel(r.Context(), id); err != nil {
		writeRegistryError(w, err)
		return
	}

	h.recorder.Record(audit.Event{
		Event:       model.AuditJobCancelled,
		BackupJobID: &id,
		Actor:       middleware.Actor(r.Context()),
		Detail:      map[string]any{"requested": true},
	})
	w.WriteHeader(http.StatusAccepted)
}

// Delete purges a completed backup on operator request. The retention floor
// still applies: the last completed backup of a group is refused. Backend
// copies are flagged for the reconciler; the registry records the purge
// immediately.
func (h *Backup) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	actor := middleware.Actor(r.Context())

	job, err := h.jobs.GetByID(r.Context(), id)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	if job.Status != model.StatusCompleted || job.Purged {
		response.WriteError(w, http.StatusConflict, "only completed, un-purged backups can be deleted")
		return
	}

	group, err := h.jobs.CompletedGroup(r.Context(), job.Kind, job.TenantID)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if retention.ViolatesFloor(group, job.ID) {
		h.recorder.Record(audit.Event{
			Event:       model.AuditRetentionRefused,
			BackupJobID: &job.ID,
			TenantID:    job.TenantID,
			Actor:       actor,
		})
		response.WriteError(w, http.StatusConflict,
			"backup is the last completed backup of its group")
		return
	}

	objects, err := h.objects.ByJob(r.Context(), job.ID)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for _, obj := range objects {
		if err := h.objects.MarkDelete(r.Context(), obj.ID); err != nil {
			response.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if err := h.jobs.MarkPurged(r.Context(), job.ID); err != nil {
		writeRegistryError(w, err)
		return
	}

	h.recorder.Record(audit.Event{
		Event:       model.AuditJobPurged,
		BackupJobID: &job.ID,
		TenantID:    job.TenantID,
		Actor:       actor,
	})
	w.WriteHeader(http.StatusNoContent)
}

func writeRegistryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		response.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrInvalidTransition):
		response.WriteError(w, http.StatusConflict, err.Error())
	default:
		response.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
