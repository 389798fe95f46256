package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-mcp-gateway/internal/apperr"
	"github.com/wolfman30/clinic-mcp-gateway/internal/conversation"
	"github.com/wolfman30/clinic-mcp-gateway/internal/decision"
	"github.com/wolfman30/clinic-mcp-gateway/internal/messaging"
	"github.com/wolfman30/clinic-mcp-gateway/pkg/logging"
)

// ToolService is the direct tool surface of the decision service.
type ToolService interface {
	ListTools(ctx context.Context) (json.RawMessage, error)
	ExecuteTool(ctx context.Context, tool string, params map[string]any, convCtx any) (json.RawMessage, error)
	UpdateContext(ctx context.Context, convCtx *conversation.Context) (json.RawMessage, error)
}

// MessagingGateway is the operator-facing subset of the messaging transport.
type MessagingGateway interface {
	GetStatus(ctx context.Context, messageID string) (json.RawMessage, error)
	SendFile(ctx context.Context, number, fileURL, caption string) (*messaging.SendResult, error)
	ChatHistory(ctx context.Context, number string, limit int) (json.RawMessage, error)
}

// ToolsHandler serves the tool catalogue, direct tool execution and the
// operator messaging endpoints.
type ToolsHandler struct {
	tools    ToolService
	messages MessagingGateway
	logger   *logging.Logger
}

func NewToolsHandler(tools ToolService, messages MessagingGateway, logger *logging.Logger) *ToolsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ToolsHandler{tools: tools, messages: messages, logger: logger}
}

// Catalog handles GET /api/tools with the static tool descriptions.
func (h *ToolsHandler) Catalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": decision.Catalog()})
}

// RemoteTools handles GET /api/v1/mcp/tools.
func (h *ToolsHandler) RemoteTools(w http.ResponseWriter, r *http.Request) {
	raw, err := h.tools.ListTools(r.Context())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeRaw(w, http.StatusOK, raw)
}

type executeRequest struct {
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
	Context    map[string]any `json:"context"`
}

// Execute handles POST /api/v1/mcp/execute.
func (h *ToolsHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if strings.TrimSpace(req.Tool) == "" {
		writeError(w, h.logger, r, apperr.BadRequest("mcp.execute", "tool is required"))
		return
	}
	var convCtx any
	if req.Context != nil {
		convCtx = req.Context
	}
	raw, err := h.tools.ExecuteTool(r.Context(), req.Tool, req.Parameters, convCtx)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeRaw(w, http.StatusOK, raw)
}

// MessageStatus handles GET /api/v1/mensagens/{id}/status.
func (h *ToolsHandler) MessageStatus(w http.ResponseWriter, r *http.Request) {
	raw, err := h.messages.GetStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeRaw(w, http.StatusOK, raw)
}

// UpdateContext handles POST /api/v1/mcp/context, pushing a conversation
// snapshot to the decision service.
func (h *ToolsHandler) UpdateContext(w http.ResponseWriter, r *http.Request) {
	var convCtx conversation.Context
	if err := decodeJSON(r, &convCtx); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if convCtx.Stage == "" {
		convCtx.Stage = conversation.StageStart
	}
	if convCtx.Collected == nil {
		convCtx.Collected = map[string]any{}
	}
	raw, err := h.tools.UpdateContext(r.Context(), &convCtx)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeRaw(w, http.StatusOK, raw)
}

type sendFileRequest struct {
	Number  string `json:"number"`
	File    string `json:"file"`
	Caption string `json:"caption"`
}

// SendFile handles POST /api/v1/mensagens/arquivo.
func (h *ToolsHandler) SendFile(w http.ResponseWriter, r *http.Request) {
	var req sendFileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	res, err := h.messages.SendFile(r.Context(), req.Number, req.File, req.Caption)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	raw := res.Raw
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	writeJSON(w, http.StatusOK, map[string]any{"message_id": res.MessageID, "response": raw})
}

// ChatHistory handles GET /api/v1/mensagens/historico?number=&limit=.
func (h *ToolsHandler) ChatHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, h.logger, r, apperr.BadRequest("mensagens.historico", "limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	raw, err := h.messages.ChatHistory(r.Context(), r.URL.Query().Get("number"), limit)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeRaw(w, http.StatusOK, raw)
}
