// ABOUTME: Tests for the MCP consultation tool handlers
// ABOUTME: Calls handlers directly with an in-memory service
package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/harper/dermacheck/internal/core"
	"github.com/harper/dermacheck/internal/knowledge"
	"github.com/harper/dermacheck/internal/service"
	"github.com/harper/dermacheck/internal/storage/sqlite"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandlers(t *testing.T) *Handlers {
	t.Helper()
	store, err := sqlite.NewStorageInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	kb, err := knowledge.Default()
	require.NoError(t, err)
	svc, err := service.New(kb, store, service.WithCache(service.DefaultCacheSize, 0))
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	server := mcpserver.NewMCPServer("dermacheck-test", "test")
	return RegisterTools(server, svc, nil)
}

func call(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return tc.Text
}

func decodeStatus(t *testing.T, res *mcp.CallToolResult) service.Status {
	t.Helper()
	require.False(t, res.IsError, resultText(t, res))
	var st service.Status
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &st))
	return st
}

func TestConsultationTools(t *testing.T) {
	h := newTestHandlers(t)
	ctx := context.Background()

	res, err := h.StartConsultation(ctx, call(nil))
	require.NoError(t, err)
	st := decodeStatus(t, res)
	require.Equal(t, core.StateNeedInput, st.State.Kind)
	assert.Equal(t, "age", st.State.Question.Ident)
	id := st.SessionID

	script := map[string]string{
		"age": "45", "duration": "chronic", "severity": "mild",
		"has_symptom_lump_or_growth": "yes", "has_symptom_soft_lump": "yes",
	}
	for i := 0; st.State.Kind == core.StateNeedInput; i++ {
		require.Less(t, i, 60, "consultation did not terminate")
		answer, ok := script[st.State.Question.Ident]
		if !ok {
			answer = "no"
			if st.State.Question.Ident == "locations" {
				answer = "body"
			}
		}
		// ident omitted: the pending question is answered
		res, err = h.AnswerQuestion(ctx, call(map[string]interface{}{"session_id": id, "value": answer}))
		require.NoError(t, err)
		st = decodeStatus(t, res)
	}
	require.Equal(t, core.StateCompleted, st.State.Kind)
	require.NotNil(t, st.State.Diagnosis)
	assert.Equal(t, "Lipoma", st.State.Diagnosis.Disease)

	res, err = h.GetConsultation(ctx, call(map[string]interface{}{"session_id": id}))
	require.NoError(t, err)
	assert.Equal(t, 100, decodeStatus(t, res).Progress)

	res, err = h.GetDiagnosis(ctx, call(map[string]interface{}{"session_id": id}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))
	var diag struct {
		Report      service.Report      `json:"report"`
		Explanation service.Explanation `json:"explanation"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &diag))
	assert.Equal(t, "Lipoma", diag.Report.Diagnosis.Disease)
	assert.Equal(t, service.SourceTemplate, diag.Explanation.Source)
	assert.Contains(t, diag.Explanation.Text, "Lipoma")

	res, err = h.GetDiagnosis(ctx, call(map[string]interface{}{"session_id": id, "explain": false}))
	require.NoError(t, err)
	var bare map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &bare))
	assert.Contains(t, bare, "report")
	assert.NotContains(t, bare, "explanation")

	res, err = h.ListConsultations(ctx, call(nil))
	require.NoError(t, err)
	require.False(t, res.IsError)
	var list struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &list))
	assert.Equal(t, 1, list.Count)

	// nothing is pending any more
	res, err = h.AnswerQuestion(ctx, call(map[string]interface{}{"session_id": id, "value": "yes"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "no question is pending")
}

func TestAnswerQuestion_Rejected(t *testing.T) {
	h := newTestHandlers(t)
	ctx := context.Background()

	res, err := h.StartConsultation(ctx, call(nil))
	require.NoError(t, err)
	id := decodeStatus(t, res).SessionID

	res, err = h.AnswerQuestion(ctx, call(map[string]interface{}{"session_id": id, "ident": "age", "value": "old"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "please re-answer age")

	// the session still waits on the same question
	res, err = h.GetConsultation(ctx, call(map[string]interface{}{"session_id": id}))
	require.NoError(t, err)
	st := decodeStatus(t, res)
	assert.Equal(t, "age", st.State.Question.Ident)
	assert.Equal(t, 0, st.Answered)
}

func TestHandlers_Errors(t *testing.T) {
	h := newTestHandlers(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		args    map[string]interface{}
		want    string
	}{
		{name: "answer without session", handler: h.AnswerQuestion, args: map[string]interface{}{"value": "yes"}, want: "session_id"},
		{name: "answer without value", handler: h.AnswerQuestion, args: map[string]interface{}{"session_id": "sess_x"}, want: "value"},
		{name: "unknown session", handler: h.GetConsultation, args: map[string]interface{}{"session_id": "sess_missing"}, want: "not found"},
		{name: "diagnosis of unknown session", handler: h.GetDiagnosis, args: map[string]interface{}{"session_id": "sess_missing"}, want: "not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.handler(ctx, call(tt.args))
			require.NoError(t, err)
			assert.True(t, res.IsError)
			assert.Contains(t, resultText(t, res), tt.want)
		})
	}

	res, err := h.StartConsultation(ctx, call(nil))
	require.NoError(t, err)
	id := decodeStatus(t, res).SessionID
	res, err = h.GetDiagnosis(ctx, call(map[string]interface{}{"session_id": id}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "no diagnosis available")
}
