package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-mcp-gateway/internal/apperr"
	"github.com/wolfman30/clinic-mcp-gateway/internal/messaging"
	"github.com/wolfman30/clinic-mcp-gateway/internal/orchestrator"
	"github.com/wolfman30/clinic-mcp-gateway/pkg/logging"
)

var tracer = otel.Tracer("clinicmcp.internal.http.handlers")

// TurnHandler processes one inbound message.
type TurnHandler interface {
	HandleTurn(ctx context.Context, ev messaging.InboundEvent) (*orchestrator.TurnResult, error)
}

// WebhookHandler receives WhatsApp messages from the messaging gateway.
type WebhookHandler struct {
	turns  TurnHandler
	logger *logging.Logger
}

func NewWebhookHandler(turns TurnHandler, logger *logging.Logger) *WebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{turns: turns, logger: logger}
}

type webhookResponse struct {
	Status        string             `json:"status"`
	TurnID        string             `json:"turn_id,omitempty"`
	State         orchestrator.State `json:"state,omitempty"`
	Action        string             `json:"action,omitempty"`
	ReplySent     bool               `json:"reply_sent"`
	Error         *apperr.Payload    `json:"error,omitempty"`
	DispatchError *apperr.Payload    `json:"dispatch_error,omitempty"`
}

// WhatsApp handles POST /api/v1/webhook/whatsapp[/{cnpj}]. The route's
// tenant wins over one carried in the event.
func (h *WebhookHandler) WhatsApp(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "webhook.whatsapp")
	defer span.End()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.fail(w, nil, apperr.BadRequest("webhook.read", "could not read request body"))
		return
	}
	ev, err := messaging.ParseInbound(body)
	if err != nil {
		h.fail(w, nil, apperr.BadRequest("webhook.parse", "malformed event"))
		return
	}
	if routeTenant := strings.TrimSpace(chi.URLParam(r, "cnpj")); routeTenant != "" {
		ev.TenantID = routeTenant
	}
	span.SetAttributes(attribute.String("tenant_id", ev.TenantID))
	if ev.Ignorable() {
		h.logger.Debug("webhook event ignored", "event", ev.Event, "from_me", ev.FromMe)
		writeJSON(w, http.StatusOK, webhookResponse{Status: "ignored"})
		return
	}

	res, err := h.turns.HandleTurn(ctx, ev)
	if err != nil {
		h.fail(w, res, err)
		return
	}
	resp := webhookResponse{
		Status:    "success",
		TurnID:    res.TurnID,
		State:     res.State,
		Action:    string(res.Action),
		ReplySent: res.ReplySent,
	}
	if res.DispatchError != nil {
		p := apperr.ToPayload(res.DispatchError)
		resp.DispatchError = &p
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *WebhookHandler) fail(w http.ResponseWriter, res *orchestrator.TurnResult, err error) {
	p := apperr.ToPayload(err)
	resp := webhookResponse{Status: "error", Error: &p}
	if res != nil {
		resp.TurnID = res.TurnID
		resp.State = res.State
		resp.ReplySent = res.ReplySent
	}
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("webhook turn failed", "kind", string(apperr.KindOf(err)), "error", err)
	}
	writeJSON(w, status, resp)
}
