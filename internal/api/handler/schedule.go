package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/backupd/internal/api/request"
	"github.com/edvin/backupd/internal/api/response"
	"github.com/edvin/backupd/internal/model"
	"github.com/edvin/backupd/internal/platform"
	"github.com/edvin/backupd/internal/registry"
	"github.com/edvin/backupd/internal/scheduler"
)

type Schedule struct {
	schedules *registry.ScheduleService
	tenants   *registry.TenantService
}

func NewSchedule(schedules *registry.ScheduleService, tenants *registry.TenantService) *Schedule {
	return &Schedule{schedules: schedules, tenants: tenants}
}

func (h *Schedule) List(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.schedules.List(r.Context())
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, schedules)
}

func (h *Schedule) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateSchedule
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if model.KindRequiresTenant(req.Kind) {
		if req.TenantID == nil {
			response.WriteError(w, http.StatusBadRequest, "tenant_id is required for tenant_schema schedules")
			return
		}
		if _, err := h.tenants.GetByID(r.Context(), *req.TenantID); err != nil {
			response.WriteError(w, http.StatusNotFound, err.Error())
			return
		}
	} else if req.TenantID != nil {
		response.WriteError(w, http.StatusBadRequest, "tenant_id is only valid for tenant_schema schedules")
		return
	}

	now := time.Now()
	nextRun, err := scheduler.NextRun(req.CronExpression, now)
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sched := &model.BackupSchedule{
		ID:             platform.NewID(),
		Kind:           req.Kind,
		TenantID:       req.TenantID,
		CronExpression: req.CronExpression,
		RetentionCount: req.RetentionCount,
		RetentionDays:  req.RetentionDays,
		Enabled:        true,
		NextRunAt:      nextRun,
		CreatedAt:      now,
	}
	if err := h.schedules.Create(r.Context(), sched); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusCreated, sched)
}

func (h *Schedule) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sched, err := h.schedules.GetByID(r.Context(), id)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, sched)
}

func (h *Schedule) Update(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.UpdateSchedule
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sched, err := h.schedules.GetByID(r.Context(), id)
	if err != nil {
		writeRegistryError(w, err)
		return
	}

	nextRun, err := scheduler.NextRun(req.CronExpression, time.Now())
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sched.CronExpression = req.CronExpression
	sched.RetentionCount = req.RetentionCount
	sched.RetentionDays = req.RetentionDays
	sched.NextRunAt = nextRun
	if err := h.schedules.Update(r.Context(), sched); err != nil {
		writeRegistryError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, sched)
}

func (h *Schedule) Enable(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, true)
}

func (h *Schedule) Disable(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, false)
}

func (h *Schedule) toggle(w http.ResponseWriter, r *http.Request, enabled bool) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.schedules.Toggle(r.Context(), id, enabled); err != nil {
		writeRegistryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
