package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helioworks/support-ai-platform/internal/tenancy"
)

func newHandlerFixture(t *testing.T) (*serviceFixture, *chi.Mux) {
	t.Helper()
	f := newServiceFixture(t)
	h := NewHandler(f.svc, NewAnalytics(f.store), nil)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if company := req.Header.Get("X-Company-ID"); company != "" {
				req = req.WithContext(tenancy.WithCompanyID(req.Context(), company))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Group(h.Routes)
	r.Group(h.AnalyticsRoutes)
	return f, r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-Company-ID", "co-1")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandlerStartSession(t *testing.T) {
	_, r := newHandlerFixture(t)

	rec := doJSON(t, r, http.MethodPost, "/sessions", map[string]any{
		"customer_id": "c-1",
		"channel":     "chat",
		"message":     "my package never arrived",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	var sess Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, "co-1", sess.CompanyID)
	assert.Equal(t, TierAIRep, sess.CurrentTier)
	assert.Len(t, sess.Messages, 2)
}

func TestHandlerStartSessionValidation(t *testing.T) {
	_, r := newHandlerFixture(t)

	rec := doJSON(t, r, http.MethodPost, "/sessions", map[string]any{"channel": "chat"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerMissingCompany(t *testing.T) {
	_, r := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerMessageFlow(t *testing.T) {
	f, r := newHandlerFixture(t)

	sess, err := f.svc.Start(context.Background(), StartParams{CompanyID: "co-1", CustomerID: "c-1"})
	require.NoError(t, err)

	rec := doJSON(t, r, http.MethodPost,
		fmt.Sprintf("/sessions/%s/messages", sess.ID), map[string]any{"content": "I want a refund"})
	require.Equal(t, http.StatusOK, rec.Code)

	var got Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, TierAIManager, got.CurrentTier)
	assert.Equal(t, CategoryRefund, got.IssueCategory)
}

func TestHandlerMessageValidation(t *testing.T) {
	f, r := newHandlerFixture(t)
	sess, err := f.svc.Start(context.Background(), StartParams{CompanyID: "co-1", CustomerID: "c-1"})
	require.NoError(t, err)

	rec := doJSON(t, r, http.MethodPost, fmt.Sprintf("/sessions/%s/messages", sess.ID), map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/sessions/not-a-uuid/messages", map[string]any{"content": "hi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerUnknownSessionIs404(t *testing.T) {
	_, r := newHandlerFixture(t)

	rec := doJSON(t, r, http.MethodPost,
		fmt.Sprintf("/sessions/%s/messages", uuid.New()), map[string]any{"content": "hello"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, r, http.MethodGet, fmt.Sprintf("/sessions/%s", uuid.New()), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerEscalateAndConflict(t *testing.T) {
	f, r := newHandlerFixture(t)
	sess, err := f.svc.Start(context.Background(), StartParams{CompanyID: "co-1", CustomerID: "c-1"})
	require.NoError(t, err)

	rec := doJSON(t, r, http.MethodPost,
		fmt.Sprintf("/sessions/%s/escalate", sess.ID),
		map[string]any{"target_tier": "HUMAN_AGENT", "notes": "asked for a person"})
	require.Equal(t, http.StatusOK, rec.Code)

	// already at the top tier
	rec = doJSON(t, r, http.MethodPost,
		fmt.Sprintf("/sessions/%s/escalate", sess.ID),
		map[string]any{"target_tier": "AI_MANAGER"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, r, http.MethodPost,
		fmt.Sprintf("/sessions/%s/escalate", sess.ID),
		map[string]any{"target_tier": "SUPERVISOR"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerResolveAndAbandon(t *testing.T) {
	f, r := newHandlerFixture(t)
	sess, err := f.svc.Start(context.Background(), StartParams{CompanyID: "co-1", CustomerID: "c-1"})
	require.NoError(t, err)

	rec := doJSON(t, r, http.MethodPost,
		fmt.Sprintf("/sessions/%s/resolve", sess.ID),
		map[string]any{"type": "ISSUE_RESOLVED", "summary": "answered the question"})
	require.Equal(t, http.StatusOK, rec.Code)

	// terminal sessions reject further closing
	rec = doJSON(t, r, http.MethodPost, fmt.Sprintf("/sessions/%s/abandon", sess.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	other, err := f.svc.Start(context.Background(), StartParams{CompanyID: "co-1", CustomerID: "c-2"})
	require.NoError(t, err)
	rec = doJSON(t, r, http.MethodPost, fmt.Sprintf("/sessions/%s/abandon", other.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlerListSessions(t *testing.T) {
	f, r := newHandlerFixture(t)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, StartParams{CompanyID: "co-1", CustomerID: "c-1"})
	require.NoError(t, err)
	_, err = f.svc.Start(ctx, StartParams{CompanyID: "co-1", CustomerID: "c-2"})
	require.NoError(t, err)
	_, err = f.svc.Start(ctx, StartParams{CompanyID: "co-2", CustomerID: "c-3"})
	require.NoError(t, err)

	rec := doJSON(t, r, http.MethodGet, "/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Sessions []*Session `json:"sessions"`
		Total    int        `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)

	rec = doJSON(t, r, http.MethodGet, "/sessions?customer_id=c-2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)

	rec = doJSON(t, r, http.MethodGet, "/sessions?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerAnalyticsReport(t *testing.T) {
	f, r := newHandlerFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Start(ctx, StartParams{CompanyID: "co-1", CustomerID: "c-1"})
	require.NoError(t, err)
	_, err = f.svc.Resolve(ctx, "co-1", sess.ID, Resolution{Type: ResolutionIssueResolved, Summary: "done"})
	require.NoError(t, err)

	rec := doJSON(t, r, http.MethodGet, "/analytics/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.TotalSessions)
	assert.Equal(t, 1, report.ResolvedSessions)
	assert.InDelta(t, 1.0, report.ResolutionRate, 0.001)

	rec = doJSON(t, r, http.MethodGet, "/analytics/sessions?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	from := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	rec = doJSON(t, r, http.MethodGet, "/analytics/sessions?from="+from, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
