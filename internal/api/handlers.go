// Package api exposes HTTP handlers for the godlife core.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/godlife/internal/domain"
	"example.com/godlife/internal/notification"
	"example.com/godlife/internal/plan"
	"example.com/godlife/internal/reading"
	"example.com/godlife/internal/summary"
	"example.com/godlife/internal/user"
	"example.com/godlife/internal/webhook"
)

// Handler coordinates HTTP requests with the domain services.
type Handler struct {
	users         *user.Service
	plans         *plan.Service
	reading       *reading.Service
	webhooks      *webhook.Service
	summaries     *summary.Service
	notifications *notification.Service
}

// NewHandler builds a Handler.
func NewHandler(
	users *user.Service,
	plans *plan.Service,
	readingSvc *reading.Service,
	webhooks *webhook.Service,
	summaries *summary.Service,
	notifications *notification.Service,
) *Handler {
	return &Handler{
		users:         users,
		plans:         plans,
		reading:       readingSvc,
		webhooks:      webhooks,
		summaries:     summaries,
		notifications: notifications,
	}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/auth/resolve", h.resolveUser)
	mux.HandleFunc("/v1/plans/generate", h.generatePlan)
	mux.HandleFunc("/v1/plans/", h.planSubtree)
	mux.HandleFunc("/v1/reading/reminders/base", h.scheduleDailyReminder)
	mux.HandleFunc("/v1/reading/reminders/retry", h.scheduleRetryReminder)
	mux.HandleFunc("/v1/webhooks/", h.ingestWebhook)
	mux.HandleFunc("/v1/summary/daily", h.dailySummary)
	mux.HandleFunc("/v1/summary/weekly", h.weeklySummary)
	mux.HandleFunc("/v1/notifications", h.listNotifications)
	mux.HandleFunc("/v1/notifications/retry", h.retryNotification)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) resolveUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	var req ResolveUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	resolved, created, err := h.users.Resolve(r.Context(), user.ResolveInput{
		ExternalID: req.ExternalID,
		Name:       req.Name,
		Timezone:   req.Timezone,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ResolveUserResponse{
		UserID:     resolved.ID,
		ExternalID: resolved.ExternalID,
		Name:       resolved.Name,
		Timezone:   resolved.Timezone,
		Created:    created,
	})
}

func (h *Handler) generatePlan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	var req GeneratePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	targetDate, err := time.Parse(domain.DateLayout, req.TargetDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "target_date must be YYYY-MM-DD")
		return
	}
	source := req.Source
	if source == "" {
		source = "rule"
	}

	generated, err := h.plans.GeneratePlan(r.Context(), plan.GeneratePlanInput{
		UserID:     req.UserID,
		TargetDate: targetDate,
		Source:     source,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPlanSummaryView(*generated))
}

// planSubtree dispatches GET /v1/plans/{id} and
// POST /v1/plans/{p}/sessions/{s}/sets/{n}/result.
func (h *Handler) planSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/plans/")
	segments := strings.Split(strings.Trim(rest, "/"), "/")

	switch {
	case len(segments) == 1 && segments[0] != "":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
			return
		}
		h.getPlan(w, r, segments[0])
	case len(segments) == 6 && segments[1] == "sessions" && segments[3] == "sets" && segments[5] == "result":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
			return
		}
		h.submitSetResult(w, r, segments[0], segments[2], segments[4])
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown plan route")
	}
}

func (h *Handler) getPlan(w http.ResponseWriter, r *http.Request, rawID string) {
	planID, err := uuid.Parse(rawID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid plan id")
		return
	}

	found, sessions, states, err := h.plans.GetPlan(r.Context(), planID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanDetailView(*found, sessions, states))
}

func (h *Handler) submitSetResult(w http.ResponseWriter, r *http.Request, rawPlan, rawSession, rawSet string) {
	planID, err := uuid.Parse(rawPlan)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid plan id")
		return
	}
	sessionID, err := uuid.Parse(rawSession)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid session id")
		return
	}
	setNo, err := strconv.Atoi(rawSet)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid set number")
		return
	}

	var req SetResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	outcome, err := h.plans.SubmitSetResult(r.Context(), plan.SetResultInput{
		PlanID:            planID,
		SessionID:         sessionID,
		SetNo:             setNo,
		Result:            req.Result,
		PerformedReps:     req.PerformedReps,
		PerformedWeightKg: req.PerformedWeightKg,
		ActualRestSec:     req.ActualRestSec,
		RequestTimestamp:  req.RequestTimestamp,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSetResultView(outcome))
}

func (h *Handler) scheduleDailyReminder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	var req DailyReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	referenceDate, err := time.Parse(domain.DateLayout, req.ReferenceDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "reference_date must be YYYY-MM-DD")
		return
	}

	outcome, err := h.reading.ScheduleDailyReminder(r.Context(), reading.DailyReminderInput{
		UserID:         req.UserID,
		ReferenceDate:  referenceDate,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReminderView(outcome))
}

func (h *Handler) scheduleRetryReminder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	var req RetryReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	referenceDate, err := time.Parse(domain.DateLayout, req.ReferenceDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "reference_date must be YYYY-MM-DD")
		return
	}

	outcome, err := h.reading.ScheduleRetryIfIncomplete(r.Context(), reading.RetryReminderInput{
		UserID:             req.UserID,
		ReferenceDate:      referenceDate,
		BaseNotificationID: req.BaseNotificationID,
		IdempotencyKey:     req.IdempotencyKey,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReminderView(outcome))
}

func (h *Handler) ingestWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	provider := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/webhooks/"), "/")
	if provider == "" || strings.Contains(provider, "/") {
		writeError(w, http.StatusNotFound, "not_found", "unknown webhook route")
		return
	}

	var req WebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if req.Provider != "" && req.Provider != provider {
		writeError(w, http.StatusBadRequest, "validation_failed", "provider in body does not match path")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	raw, err := json.Marshal(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	in := webhook.IngestInput{
		Provider:       provider,
		EventType:      req.EventType,
		UserID:         req.UserID,
		EventID:        req.EventID,
		IdempotencyKey: req.IdempotencyKey,
		RawPayload:     raw,
	}
	if req.PlanID != nil && req.SessionID != nil && req.SetNo != nil && req.Result != nil {
		in.SetResult = &webhook.SetResultContext{
			PlanID:            *req.PlanID,
			SessionID:         *req.SessionID,
			SetNo:             *req.SetNo,
			Result:            *req.Result,
			PerformedReps:     req.PerformedReps,
			PerformedWeightKg: req.PerformedWeightKg,
			ActualRestSec:     req.ActualRestSec,
		}
	}

	outcome, err := h.webhooks.Ingest(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, WebhookResponse{
		Result:  outcome.Result,
		EventID: outcome.Event.ID,
	})
}

func (h *Handler) dailySummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "missing or invalid user_id parameter")
		return
	}
	date, err := time.Parse(domain.DateLayout, r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "date must be YYYY-MM-DD")
		return
	}

	daily, err := h.summaries.RecomputeDaily(r.Context(), userID, date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDailySummaryView(*daily))
}

func (h *Handler) weeklySummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "missing or invalid user_id parameter")
		return
	}
	startDate, err := time.Parse(domain.DateLayout, r.URL.Query().Get("start_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "start_date must be YYYY-MM-DD")
		return
	}

	weekly, err := h.summaries.RecomputeWeekly(r.Context(), userID, startDate)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWeeklySummaryView(*weekly))
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "missing or invalid user_id parameter")
		return
	}

	var status *domain.NotificationStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed := domain.NotificationStatus(strings.ToUpper(raw))
		status = &parsed
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	items, err := h.notifications.List(r.Context(), userID, status, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	views := make([]NotificationView, 0, len(items))
	for _, item := range items {
		views = append(views, toNotificationView(item))
	}
	writeJSON(w, http.StatusOK, ListNotificationsResponse{Items: views})
}

func (h *Handler) retryNotification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	var req RetryNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if req.NotificationID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "notification_id is required")
		return
	}

	retried, err := h.notifications.MarkAsRetried(r.Context(), req.NotificationID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if retried == nil {
		writeError(w, http.StatusNotFound, "not_found", "notification not found")
		return
	}
	writeJSON(w, http.StatusOK, toNotificationView(*retried))
}

// writeDomainError maps the domain error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidSource):
		writeError(w, http.StatusBadRequest, "invalid_source", err.Error())
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrPlanConflict):
		writeError(w, http.StatusConflict, "plan_conflict", "an active plan already exists for this user and date")
	case errors.Is(err, domain.ErrContextMismatch):
		writeError(w, http.StatusConflict, "context_mismatch", "session does not belong to the plan")
	case errors.Is(err, domain.ErrIdempotencyConflict):
		writeError(w, http.StatusConflict, "idempotency_conflict", err.Error())
	case errors.Is(err, domain.ErrSetOrderViolation):
		writeError(w, http.StatusUnprocessableEntity, "order_violation", "previous sets must be DONE or SKIPPED first")
	case errors.Is(err, domain.ErrPlanNotFound),
		errors.Is(err, domain.ErrReadingPlanNotFound),
		errors.Is(err, domain.ErrNotificationNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrNotImplemented):
		writeError(w, http.StatusNotImplemented, "not_implemented", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
