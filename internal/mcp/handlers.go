// ABOUTME: MCP tool handler implementations for the consultation server
// ABOUTME: Maps service results and errors onto tool results
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/harper/dermacheck/internal/core"
	"github.com/harper/dermacheck/internal/service"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
)

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	svc    *service.Service
	logger *zap.Logger
}

// StartConsultation handles the start_consultation tool
func (h *Handlers) StartConsultation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := h.svc.Create(ctx)
	if err != nil {
		return h.errorResult("failed to start consultation", err), nil
	}
	return jsonResult(st)
}

// AnswerQuestion handles the answer_question tool
func (h *Handlers) AnswerQuestion(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id argument is required and must be a string"), nil
	}
	value, err := request.RequireString("value")
	if err != nil {
		return mcp.NewToolResultError("value argument is required and must be a string"), nil
	}

	ident := request.GetString("ident", "")
	if ident == "" {
		st, err := h.svc.Status(ctx, sessionID)
		if err != nil {
			return h.errorResult("failed to load consultation", err), nil
		}
		if st.State.Kind != core.StateNeedInput {
			return mcp.NewToolResultError("no question is pending; use get_diagnosis for the result"), nil
		}
		ident = st.State.Question.Ident
	}

	st, err := h.svc.Answer(ctx, sessionID, ident, value)
	if err != nil {
		return h.errorResult("answer not accepted", err), nil
	}
	return jsonResult(st)
}

// GetConsultation handles the get_consultation tool
func (h *Handlers) GetConsultation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id argument is required and must be a string"), nil
	}

	st, err := h.svc.Status(ctx, sessionID)
	if err != nil {
		return h.errorResult("failed to load consultation", err), nil
	}
	return jsonResult(st)
}

// GetDiagnosis handles the get_diagnosis tool
func (h *Handlers) GetDiagnosis(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id argument is required and must be a string"), nil
	}

	report, err := h.svc.Diagnosis(ctx, sessionID)
	if err != nil {
		return h.errorResult("no diagnosis available", err), nil
	}

	response := map[string]interface{}{"report": report}
	if request.GetBool("explain", true) {
		exp, err := h.svc.Explain(ctx, sessionID)
		if err != nil {
			return h.errorResult("failed to explain diagnosis", err), nil
		}
		response["explanation"] = exp
	}
	return jsonResult(response)
}

// ListConsultations handles the list_consultations tool
func (h *Handlers) ListConsultations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	records, err := h.svc.List(ctx)
	if err != nil {
		return h.errorResult("failed to list consultations", err), nil
	}
	return jsonResult(map[string]interface{}{
		"consultations": records,
		"count":         len(records),
	})
}

// errorResult turns a service error into tool error text
func (h *Handlers) errorResult(prefix string, err error) *mcp.CallToolResult {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v; please re-answer %s", prefix, verr, verr.Ident))
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrNotCompleted), errors.Is(err, core.ErrSessionFailed):
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", prefix, err))
	}
	h.logger.Error(prefix, zap.Error(err))
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", prefix, err))
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	responseJSON, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseJSON)), nil
}
