package session

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/helioworks/support-ai-platform/internal/tenancy"
	"github.com/helioworks/support-ai-platform/pkg/logging"
)

// Handler exposes the session lifecycle over HTTP. Company scoping comes
// from the tenancy middleware; requests without a company are rejected.
type Handler struct {
	svc       *Service
	analytics *Analytics
	logger    *logging.Logger
}

func NewHandler(svc *Service, analytics *Analytics, logger *logging.Logger) *Handler {
	if svc == nil {
		panic("session: handler requires a service")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, analytics: analytics, logger: logger.Component("session_http")}
}

// Routes mounts the session API on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/sessions", h.startSession)
	r.Get("/sessions", h.listSessions)
	r.Get("/sessions/{sessionID}", h.getSession)
	r.Post("/sessions/{sessionID}/messages", h.sendMessage)
	r.Post("/sessions/{sessionID}/escalate", h.escalate)
	r.Post("/sessions/{sessionID}/resolve", h.resolve)
	r.Post("/sessions/{sessionID}/abandon", h.abandon)
}

// AnalyticsRoutes mounts the reporting API, typically behind admin auth.
func (h *Handler) AnalyticsRoutes(r chi.Router) {
	r.Get("/analytics/sessions", h.report)
}

type startSessionRequest struct {
	CustomerID    string `json:"customer_id"`
	Channel       string `json:"channel"`
	IssueCategory string `json:"issue_category,omitempty"`
	Message       string `json:"message,omitempty"`
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.company(w, r)
	if !ok {
		return
	}

	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.CustomerID == "" {
		http.Error(w, "customer_id is required", http.StatusBadRequest)
		return
	}

	sess, err := h.svc.Start(r.Context(), StartParams{
		CompanyID:      companyID,
		CustomerID:     req.CustomerID,
		Channel:        Channel(req.Channel),
		IssueCategory:  IssueCategory(req.IssueCategory),
		InitialMessage: req.Message,
	})
	if err != nil {
		h.logger.Error("start session failed", "company_id", companyID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.company(w, r)
	if !ok {
		return
	}
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		http.Error(w, "content is required", http.StatusBadRequest)
		return
	}

	sess, err := h.svc.SendMessage(r.Context(), companyID, id, req.Content)
	if err != nil {
		h.writeServiceError(w, companyID, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type escalateRequest struct {
	TargetTier string `json:"target_tier"`
	Notes      string `json:"notes,omitempty"`
}

func (h *Handler) escalate(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.company(w, r)
	if !ok {
		return
	}
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req escalateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	target := Tier(req.TargetTier)
	if target.Rank() == 0 {
		http.Error(w, "target_tier must be AI_MANAGER or HUMAN_AGENT", http.StatusBadRequest)
		return
	}

	sess, err := h.svc.Escalate(r.Context(), companyID, id, target, req.Notes)
	if err != nil {
		h.writeServiceError(w, companyID, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type resolveRequest struct {
	Type             string     `json:"type"`
	Summary          string     `json:"summary"`
	ActionsTaken     []string   `json:"actions_taken,omitempty"`
	FollowUpRequired bool       `json:"follow_up_required"`
	FollowUpDate     *time.Time `json:"follow_up_date,omitempty"`
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.company(w, r)
	if !ok {
		return
	}
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Type == "" {
		http.Error(w, "resolution type is required", http.StatusBadRequest)
		return
	}

	sess, err := h.svc.Resolve(r.Context(), companyID, id, Resolution{
		Type:             ResolutionType(req.Type),
		Summary:          req.Summary,
		ActionsTaken:     req.ActionsTaken,
		FollowUpRequired: req.FollowUpRequired,
		FollowUpDate:     req.FollowUpDate,
	})
	if err != nil {
		h.writeServiceError(w, companyID, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) abandon(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.company(w, r)
	if !ok {
		return
	}
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	sess, err := h.svc.Abandon(r.Context(), companyID, id)
	if err != nil {
		h.writeServiceError(w, companyID, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.company(w, r)
	if !ok {
		return
	}
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	sess, err := h.svc.Get(r.Context(), companyID, id)
	if err != nil {
		h.writeServiceError(w, companyID, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.company(w, r)
	if !ok {
		return
	}

	filter := ListFilter{
		Status:     Status(r.URL.Query().Get("status")),
		Tier:       Tier(r.URL.Query().Get("tier")),
		CustomerID: r.URL.Query().Get("customer_id"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			http.Error(w, "invalid offset", http.StatusBadRequest)
			return
		}
		filter.Offset = offset
	}
	if raw := r.URL.Query().Get("since"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid since timestamp", http.StatusBadRequest)
			return
		}
		filter.Since = ts
	}
	if raw := r.URL.Query().Get("until"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid until timestamp", http.StatusBadRequest)
			return
		}
		filter.Until = ts
	}

	sessions, err := h.svc.List(r.Context(), companyID, filter)
	if err != nil {
		h.logger.Error("list sessions failed", "company_id", companyID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if sessions == nil {
		sessions = []*Session{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	if h.analytics == nil {
		http.Error(w, "analytics not configured", http.StatusNotFound)
		return
	}
	companyID, ok := h.company(w, r)
	if !ok {
		return
	}

	to := time.Now().UTC()
	from := to.AddDate(0, -1, 0)
	var err error
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = time.Parse(time.RFC3339, raw); err != nil {
			http.Error(w, "from must be RFC3339", http.StatusBadRequest)
			return
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = time.Parse(time.RFC3339, raw); err != nil {
			http.Error(w, "to must be RFC3339", http.StatusBadRequest)
			return
		}
	}

	report, err := h.analytics.Report(r.Context(), companyID, from, to)
	if err != nil {
		h.logger.Error("analytics report failed", "company_id", companyID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) company(w http.ResponseWriter, r *http.Request) (string, bool) {
	companyID, ok := tenancy.CompanyIDFromContext(r.Context())
	if !ok || companyID == "" {
		http.Error(w, "missing company context", http.StatusBadRequest)
		return "", false
	}
	return companyID, true
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, companyID string, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		http.Error(w, "session not found", http.StatusNotFound)
	case errors.Is(err, ErrInvalidSessionState):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.logger.Error("session operation failed", "company_id", companyID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
