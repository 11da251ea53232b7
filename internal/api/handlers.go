// Package api provides the REST API handlers.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/alexanderramin/duecycle/internal/app"
	"github.com/alexanderramin/duecycle/internal/contract"
	"github.com/alexanderramin/duecycle/internal/domain"
	"github.com/alexanderramin/duecycle/internal/repository"
)

// Handler handles API requests.
type Handler struct {
	svc    *app.Services
	logger zerolog.Logger
}

func NewHandler(svc *app.Services, logger zerolog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger.With().Str("component", "api").Logger(),
	}
}

// Response is a generic API response.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RuleCreatedResponse pairs a stored rule with its validation report so
// warnings reach the caller.
type RuleCreatedResponse struct {
	Rule       contract.RuleView             `json:"rule"`
	Validation contract.ValidationReportView `json:"validation"`
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]any{
			"status":    "healthy",
			"timestamp": h.svc.Clock.Now(),
		},
	})
}

// Schedules

// CreateSchedule handles POST /api/v1/schedules.
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req contract.CreateScheduleRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	sched, err := req.ToSchedule()
	if h.HandleError(w, err, "create schedule") {
		return
	}
	if h.HandleError(w, h.svc.Schedules.Create(r.Context(), sched), "create schedule") {
		return
	}
	h.writeJSON(w, http.StatusCreated, Response{Success: true, Data: contract.NewScheduleView(sched)})
}

// GetSchedule handles GET /api/v1/schedules/{id}.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	sched, err := h.svc.Schedules.GetByID(r.Context(), chi.URLParam(r, "id"))
	if h.HandleError(w, err, "get schedule") {
		return
	}
	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: contract.NewScheduleView(sched)})
}

// UpdateSchedule handles PATCH /api/v1/schedules/{id}.
func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var req contract.UpdateScheduleRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	patch, err := req.ToPatch()
	if h.HandleError(w, err, "update schedule") {
		return
	}
	sched, err := h.svc.Schedules.Update(r.Context(), chi.URLParam(r, "id"), patch, req.ModifiedBy)
	if h.HandleError(w, err, "update schedule") {
		return
	}
	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: contract.NewScheduleView(sched)})
}

// ArchiveSchedule handles POST /api/v1/schedules/{id}/archive.
func (h *Handler) ArchiveSchedule(w http.ResponseWriter, r *http.Request) {
	var req contract.ArchiveScheduleRequest
	if !h.decode(w, r, &req, true) {
		return
	}
	sched, err := h.svc.Schedules.Archive(r.Context(), chi.URLParam(r, "id"), req.ModifiedBy)
	if h.HandleError(w, err, "archive schedule") {
		return
	}
	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: contract.NewScheduleView(sched)})
}

// ListScheduleDeadlines handles GET /api/v1/schedules/{id}/deadlines.
func (h *Handler) ListScheduleDeadlines(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.svc.Schedules.GetByID(r.Context(), id); h.HandleError(w, err, "list deadlines") {
		return
	}
	ds, err := h.svc.Deadlines.ListBySchedule(r.Context(), id)
	if h.HandleError(w, err, "list deadlines") {
		return
	}
	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: contract.NewDeadlineViews(ds)})
}

// Deadlines

// ListDeadlines handles GET /api/v1/deadlines?status=.
func (h *Handler) ListDeadlines(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		raw = string(domain.DeadlinePending)
	}
	status, err := contract.ParseDeadlineStatus(raw)
	if h.HandleError(w, err, "list deadlines") {
		return
	}
	ds, err := h.svc.Deadlines.ListByStatus(r.Context(), status)
	if h.HandleError(w, err, "list deadlines") {
		return
	}
	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: contract.NewDeadlineViews(ds)})
}

// CompleteDeadline handles POST /api/v1/deadlines/{id}/complete. An empty
// body completes the deadline now.
func (h *Handler) CompleteDeadline(w http.ResponseWriter, r *http.Request) {
	var req contract.CompleteDeadlineRequest
	if !h.decode(w, r, &req, true) {
		return
	}
	completedAt := h.svc.Clock.Now()
	if req.CompletedAt != nil {
		completedAt = *req.CompletedAt
	}
	d, err := h.svc.Deadlines.Complete(r.Context(), chi.URLParam(r, "id"), completedAt)
	if h.HandleError(w, err, "complete deadline") {
		return
	}
	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: contract.NewDeadlineView(d)})
}

// Events

// ListEvents handles GET /api/v1/events?event_type=.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	f := repository.EventFilter{EventType: r.URL.Query().Get("event_type")}
	events, err := h.svc.Events.List(r.Context(), f)
	if h.HandleError(w, err, "list events") {
		return
	}
	views := make([]contract.EventView, 0, len(events))
	for _, e := range events {
		views = append(views, contract.NewEventView(e))
	}
	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: views})
}

// CreateEvent handles POST /api/v1/events.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req contract.CreateEventRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	ev, err := req.ToEvent()
	if h.HandleError(w, err, "create event") {
		return
	}
	if h.HandleError(w, h.svc.Events.Create(r.Context(), ev), "create event") {
		return
	}
	h.writeJSON(w, http.StatusCreated, Response{Success: true, Data: contract.NewEventView(ev)})
}

// GetEvent handles GET /api/v1/events/{id}.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := h.svc.Events.GetByID(r.Context(), chi.URLParam(r, "id"))
	if h.HandleError(w, err, "get event") {
		return
	}
	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: contract.NewEventView(ev)})
}

// Rules

// ListRules handles GET /api/v1/rules.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := contract.ParseRuleFilter(q.Get("site_id"), q.Get("schedule_id"), q.Get("rule_type"), q.Get("is_active"))
	if h.HandleError(w, err, "list rules") {
		return
	}
	rules, err := h.svc.Rules.List(r.Context(), f)
	if h.HandleError(w, err, "list rules") {
		return
	}
	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: contract.NewRuleViews(rules)})
}

// CreateRule handles POST /api/v1/rules. An INVALID report is returned
// alongside the 400 so callers see every issue at once.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	rule, ok := h.decodeRule(w, r)
	if !ok {
		return
	}
	rep, err := h.svc.Rules.Create(r.Context(), rule)
	if err != nil {
		if len(rep.Issues) > 0 && domain.IsValidation(err) {
			h.writeJSON(w, http.StatusBadRequest, Response{
				Success: false,
				Data:    contract.NewValidationReportView(rep),
				Error:   &ErrorInfo{Code: ErrCodeValidation, Message: err.Error()},
			})
			return
		}
		h.HandleError(w, err, "create rule")
		return
	}
	h.writeJSON(w, http.StatusCreated, Response{Success: true, Data: RuleCreatedResponse{
		Rule:       contract.NewRuleView(rule),
		Validation: contract.NewValidationReportView(rep),
	}})
}

// ValidateRule handles POST /api/v1/rules/validate. Nothing is stored.
func (h *Handler) ValidateRule(w http.ResponseWriter, r *http.Request) {
	rule, ok := h.decodeRule(w, r)
	if !ok {
		return
	}
	rep, err := h.svc.Rules.Validate(r.Context(), rule)
	if h.HandleError(w, err, "validate rule") {
		return
	}
	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: contract.NewValidationReportView(rep)})
}

// GetRule handles GET /api/v1/rules/{id}.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.Rules.Detail(r.Context(), chi.URLParam(r, "id"))
	if h.HandleError(w, err, "get rule") {
		return
	}
	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: contract.NewRuleDetailView(detail)})
}

// ListExecutions handles GET /api/v1/rules/{id}/executions.
func (h *Handler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	q := r.URL.Query()
	f, err := contract.ParseExecutionFilter(q.Get("status"), q.Get("from"), q.Get("to"), q.Get("cursor"), q.Get("limit"))
	if h.HandleError(w, err, "list executions") {
		return
	}
	page, err := h.svc.History.History(r.Context(), id, f)
	if h.HandleError(w, err, "list executions") {
		return
	}
	stats, err := h.svc.History.Stats(r.Context(), id)
	if h.HandleError(w, err, "list executions") {
		return
	}
	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: contract.NewExecutionHistoryView(page, stats)})
}

// EvaluateRule handles POST /api/v1/rules/{id}/evaluate. A failed
// evaluation is still a 200: the failure is recorded and described in the
// result.
func (h *Handler) EvaluateRule(w http.ResponseWriter, r *http.Request) {
	var req contract.EvaluateRequest
	if !h.decode(w, r, &req, true) {
		return
	}
	res, err := h.svc.Evaluation.EvaluateRule(r.Context(), chi.URLParam(r, "id"), req.Context)
	if h.HandleError(w, err, "evaluate rule") {
		return
	}
	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: contract.NewEvaluationResultView(*res)})
}

// EvaluateDue handles POST /api/v1/evaluations and runs one batch pass.
func (h *Handler) EvaluateDue(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Evaluation.EvaluateDue(r.Context())
	if h.HandleError(w, err, "evaluate due rules") {
		return
	}
	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: contract.NewBatchResultView(res)})
}

// Subjects

// SubjectTotals handles GET /api/v1/subjects/{id}/totals?on=YYYY-MM-DD.
func (h *Handler) SubjectTotals(w http.ResponseWriter, r *http.Request) {
	on, err := contract.ParseOptionalDate("on", r.URL.Query().Get("on"))
	if h.HandleError(w, err, "subject totals") {
		return
	}
	totals, err := h.svc.Accumulator.Totals(r.Context(), chi.URLParam(r, "id"), on)
	if h.HandleError(w, err, "subject totals") {
		return
	}
	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: contract.NewSubjectTotalsView(totals)})
}

// RecordIncrement handles POST /api/v1/subjects/{id}/increments.
func (h *Handler) RecordIncrement(w http.ResponseWriter, r *http.Request) {
	var req contract.RecordIncrementRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	m, err := req.ToIncrement(chi.URLParam(r, "id"))
	if h.HandleError(w, err, "record increment") {
		return
	}
	if h.HandleError(w, h.svc.Accumulator.RecordIncrement(r.Context(), m), "record increment") {
		return
	}
	h.writeJSON(w, http.StatusCreated, Response{Success: true, Data: map[string]any{
		"id":          m.ID,
		"subject_id":  m.SubjectID,
		"recorded_on": m.RecordedOn.Format(domain.DateLayout),
		"amount":      m.Amount,
	}})
}

func (h *Handler) decodeRule(w http.ResponseWriter, r *http.Request) (*domain.TriggerRule, bool) {
	var req contract.CreateRuleRequest
	if !h.decode(w, r, &req, false) {
		return nil, false
	}
	rule, err := req.ToRule()
	if h.HandleError(w, err, "decode rule") {
		return nil, false
	}
	return rule, true
}

// decode reads a JSON body into v. With optional set an empty body is
// accepted and leaves v untouched.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	msg := ErrInvalidJSON.Message
	if detail := strings.TrimSpace(err.Error()); detail != "" {
		msg += ": " + detail
	}
	h.WriteAPIError(w, &APIError{HTTPStatus: http.StatusBadRequest, Code: ErrCodeInvalidJSON, Message: msg})
	return false
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
