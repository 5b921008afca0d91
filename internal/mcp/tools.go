// ABOUTME: MCP tool definitions and registration for the consultation server
// ABOUTME: Defines JSON schemas for the five consultation tools
package mcp

import (
	"github.com/harper/dermacheck/internal/service"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// RegisterTools registers all MCP tools with the server
func RegisterTools(server *mcpserver.MCPServer, svc *service.Service, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	handlers := &Handlers{svc: svc, logger: logger}

	sessionID := map[string]interface{}{
		"type":        "string",
		"description": "Consultation session ID returned by start_consultation",
	}

	// 1. start_consultation - Begin a new consultation
	server.AddTool(mcp.Tool{
		Name:        "start_consultation",
		Description: "Start a new skin symptom consultation. Returns the session ID and the first question to ask the patient.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.StartConsultation)

	// 2. answer_question - Answer the pending question
	server.AddTool(mcp.Tool{
		Name:        "answer_question",
		Description: "Answer the pending question of a consultation. Returns the next question or the final diagnosis. Rejected answers must be re-asked.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionID,
				"value": map[string]interface{}{
					"type":        "string",
					"description": "The patient's answer. Multi-choice answers are comma separated.",
				},
				"ident": map[string]interface{}{
					"type":        "string",
					"description": "Question ident being answered (default: the pending question)",
				},
			},
			Required: []string{"session_id", "value"},
		},
	}, handlers.AnswerQuestion)

	// 3. get_consultation - Current state of a consultation
	server.AddTool(mcp.Tool{
		Name:        "get_consultation",
		Description: "Get the current state of a consultation: pending question or result, answers given and progress.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionID,
			},
			Required: []string{"session_id"},
		},
	}, handlers.GetConsultation)

	// 4. get_diagnosis - Result of a completed consultation
	server.AddTool(mcp.Tool{
		Name:        "get_diagnosis",
		Description: "Get the diagnosis of a completed consultation with all ranked candidates and a patient-friendly explanation.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionID,
				"explain": map[string]interface{}{
					"type":        "boolean",
					"description": "Include a patient-friendly explanation (default: true)",
					"default":     true,
				},
			},
			Required: []string{"session_id"},
		},
	}, handlers.GetDiagnosis)

	// 5. list_consultations - All stored consultations
	server.AddTool(mcp.Tool{
		Name:        "list_consultations",
		Description: "List all stored consultations with their status and result, most recent first.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.ListConsultations)

	return handlers
}
