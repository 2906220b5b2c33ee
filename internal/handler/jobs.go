package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/popeskul/review-sms/internal/middleware"
	"github.com/popeskul/review-sms/internal/scheduler"
)

const (
	schedulerStatusStarted  = "started"
	schedulerStatusStopped  = "stopped"
	schedulerMessageStarted = "Scheduler started successfully"
	schedulerMessageStopped = "Scheduler stopped successfully"
)

// RunSweep handles POST /internal/sweep.
func (h *Handler) RunSweep(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Sweep.Run(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "run sweep")
		return
	}
	render.JSON(w, r, summary)
}

// ResetMonthlyCounters handles POST /internal/reset-monthly.
func (h *Handler) ResetMonthlyCounters(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.Sweep.ResetMonthlyCounters(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "reset monthly counters")
		return
	}
	render.JSON(w, r, ResetResponse{AccountsReset: n})
}

// StartScheduler handles POST /internal/scheduler/start.
func (h *Handler) StartScheduler(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	err := h.service.Scheduler.Start()
	if err != nil {
		if errors.Is(err, scheduler.ErrSchedulerAlreadyRunning) {
			h.sendError(w, r, http.StatusConflict, errorCodeSchedulerAlreadyRunning, errorMessageSchedulerAlreadyRunning)
			return
		}

		h.logger.Error("Failed to start scheduler",
			zap.String("request_id", requestID),
			zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, errorMessageFailedToStartScheduler)
		return
	}

	render.JSON(w, r, SchedulerResponse{
		Status:  schedulerStatusStarted,
		Message: schedulerMessageStarted,
	})
}

// StopScheduler handles POST /internal/scheduler/stop.
func (h *Handler) StopScheduler(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	err := h.service.Scheduler.Stop()
	if err != nil {
		if errors.Is(err, scheduler.ErrSchedulerNotRunning) {
			h.sendError(w, r, http.StatusConflict, errorCodeSchedulerNotRunning, errorMessageSchedulerNotRunning)
			return
		}

		h.logger.Error("Failed to stop scheduler",
			zap.String("request_id", requestID),
			zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, errorMessageFailedToStopScheduler)
		return
	}

	render.JSON(w, r, SchedulerResponse{
		Status:  schedulerStatusStopped,
		Message: schedulerMessageStopped,
	})
}

// SchedulerStats handles GET /internal/scheduler.
func (h *Handler) SchedulerStats(w http.ResponseWriter, r *http.Request) {
	stats := h.service.Scheduler.Stats()
	resp := SchedulerStatsResponse{
		Running:   h.service.Scheduler.IsRunning(),
		Runs:      stats.Runs,
		LastError: stats.LastError,
	}
	if !stats.LastRunAt.IsZero() {
		t := stats.LastRunAt
		resp.LastRunAt = &t
	}
	render.JSON(w, r, resp)
}
