// ABOUTME: Tests for the HTTP session wrapper
// ABOUTME: Drives a consultation through the gin router with httptest
package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/harper/dermacheck/internal/core"
	"github.com/harper/dermacheck/internal/knowledge"
	"github.com/harper/dermacheck/internal/service"
	"github.com/harper/dermacheck/internal/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupServer(t *testing.T) *Server {
	t.Helper()
	store, err := sqlite.NewStorageInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	kb, err := knowledge.Default()
	require.NoError(t, err)
	svc, err := service.New(kb, store, service.WithCache(16, 0))
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	return NewServer(svc, nil)
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthCheck(t *testing.T) {
	srv := setupServer(t)
	w := do(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	body := decode[struct {
		Status    string            `json:"status"`
		Knowledge knowledge.Summary `json:"knowledge"`
	}](t, w)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 37, body.Knowledge.Diseases)
}

func TestConsultation(t *testing.T) {
	srv := setupServer(t)

	w := do(t, srv, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	st := decode[service.Status](t, w)
	require.Equal(t, core.StateNeedInput, st.State.Kind)
	assert.Equal(t, "age", st.State.Question.Ident)
	base := "/api/sessions/" + st.SessionID

	w = do(t, srv, http.MethodGet, base+"/diagnosis", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	script := map[string]string{
		"age": "45", "duration": "chronic", "severity": "mild",
		"has_symptom_lump_or_growth": "yes", "locations": "body", "has_symptom_soft_lump": "yes",
	}
	for st.State.Kind == core.StateNeedInput {
		// Answers go to the pending question when no ident is given
		w = do(t, srv, http.MethodPost, base+"/answers", AnswerRequest{Value: script[st.State.Question.Ident]})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		st = decode[service.Status](t, w)
	}
	require.NotNil(t, st.State.Diagnosis)
	assert.Equal(t, "Lipoma", st.State.Diagnosis.Disease)
	assert.Equal(t, 100, st.Progress)

	w = do(t, srv, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, core.StateCompleted, decode[service.Status](t, w).State.Kind)

	w = do(t, srv, http.MethodGet, base+"/diagnosis", nil)
	require.Equal(t, http.StatusOK, w.Code)
	report := decode[service.Report](t, w)
	assert.Equal(t, "Lipoma", report.Diagnosis.Disease)

	w = do(t, srv, http.MethodGet, base+"/diagnosis?explain=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	explained := decode[struct {
		Explanation service.Explanation `json:"explanation"`
	}](t, w)
	assert.Equal(t, service.SourceTemplate, explained.Explanation.Source)
	assert.Contains(t, explained.Explanation.Text, "Lipoma")

	w = do(t, srv, http.MethodPost, base+"/answers", AnswerRequest{Value: "yes"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, srv, http.MethodGet, base+"/firings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), core.SelectionRuleName)

	w = do(t, srv, http.MethodGet, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), st.SessionID)

	w = do(t, srv, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, srv, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRejectedAnswer(t *testing.T) {
	srv := setupServer(t)
	st := decode[service.Status](t, do(t, srv, http.MethodPost, "/api/sessions", nil))
	base := "/api/sessions/" + st.SessionID

	w := do(t, srv, http.MethodPost, base+"/answers", AnswerRequest{Ident: "age", Value: "old"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode[map[string]string](t, w)
	assert.Equal(t, "age", body["ident"])
	assert.Equal(t, ReanswerHint, body["hint"])

	w = do(t, srv, http.MethodPost, base+"/answers", AnswerRequest{Ident: "age", Value: "40"})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, srv, http.MethodPost, base+"/answers", AnswerRequest{Ident: "duration", Value: "chronc"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "chronic", decode[map[string]string](t, w)["suggestion"])
}

func TestBadRequests(t *testing.T) {
	srv := setupServer(t)

	w := do(t, srv, http.MethodPost, "/api/sessions/sess_missing/answers", AnswerRequest{Ident: "age", Value: "40"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	st := decode[service.Status](t, do(t, srv, http.MethodPost, "/api/sessions", nil))
	w = do(t, srv, http.MethodPost, "/api/sessions/"+st.SessionID+"/answers", map[string]string{"ident": "age"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodDelete, "/api/sessions/sess_missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
