// Package orchestrator runs one conversational turn per inbound message:
// it resolves the tenant, builds the conversation snapshot, asks the
// decision service for a directive, dispatches the directive against the
// clinic API and replies to the sender.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/clinic-mcp-gateway/internal/apperr"
	"github.com/wolfman30/clinic-mcp-gateway/internal/clinicapi"
	"github.com/wolfman30/clinic-mcp-gateway/internal/conversation"
	"github.com/wolfman30/clinic-mcp-gateway/internal/credential"
	"github.com/wolfman30/clinic-mcp-gateway/internal/decision"
	"github.com/wolfman30/clinic-mcp-gateway/internal/messaging"
	"github.com/wolfman30/clinic-mcp-gateway/internal/observability/metrics"
	"github.com/wolfman30/clinic-mcp-gateway/internal/tenant"
	"github.com/wolfman30/clinic-mcp-gateway/pkg/logging"
)

const (
	DefaultFallbackReply = "Desculpe, não entendi sua mensagem."
	DefaultErrorReply    = "Desculpe, não foi possível processar sua mensagem no momento."
)

var tracer = otel.Tracer("clinicmcp.internal.orchestrator")

// State is the furthest step a turn reached.
type State string

const (
	StateReceived          State = "received"
	StateTenantResolved    State = "tenant-resolved"
	StateContextBuilt      State = "context-built"
	StateDirectiveObtained State = "directive-obtained"
	StateActionDispatched  State = "action-dispatched"
	StateReplied           State = "replied"
)

// TenantResolver looks tenants up by identifier.
type TenantResolver interface {
	Get(ctx context.Context, id string) (*tenant.Tenant, error)
}

// DecisionDelegate turns a message plus context into a directive.
type DecisionDelegate interface {
	Process(ctx context.Context, message string, convCtx *conversation.Context, tools []string) (*decision.Directive, error)
}

// Deps wires the orchestrator's collaborators.
type Deps struct {
	Tenants       TenantResolver
	Decision      DecisionDelegate
	Sender        messaging.Sender
	Builder       *conversation.Builder
	Clinic        clinicapi.Config
	Metrics       *metrics.GatewayMetrics
	Logger        *logging.Logger
	FallbackReply string
	ErrorReply    string
}

// Orchestrator is safe for concurrent use; turns share no mutable state.
type Orchestrator struct {
	tenants       TenantResolver
	decision      DecisionDelegate
	sender        messaging.Sender
	builder       *conversation.Builder
	clinic        clinicapi.Config
	metrics       *metrics.GatewayMetrics
	logger        *logging.Logger
	fallbackReply string
	errorReply    string
	handlers      map[decision.Action]actionHandler
}

// New validates deps and returns an orchestrator.
func New(deps Deps) (*Orchestrator, error) {
	if deps.Tenants == nil {
		return nil, errors.New("orchestrator: tenant resolver is required")
	}
	if deps.Decision == nil {
		return nil, errors.New("orchestrator: decision delegate is required")
	}
	if deps.Sender == nil {
		return nil, errors.New("orchestrator: sender is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	builder := deps.Builder
	if builder == nil {
		builder = conversation.NewBuilder(false, logger)
	}
	fallback := strings.TrimSpace(deps.FallbackReply)
	if fallback == "" {
		fallback = DefaultFallbackReply
	}
	errReply := strings.TrimSpace(deps.ErrorReply)
	if errReply == "" {
		errReply = DefaultErrorReply
	}
	o := &Orchestrator{
		tenants:       deps.Tenants,
		decision:      deps.Decision,
		sender:        deps.Sender,
		builder:       builder,
		clinic:        deps.Clinic,
		metrics:       deps.Metrics,
		logger:        logger,
		fallbackReply: fallback,
		errorReply:    errReply,
	}
	o.handlers = map[decision.Action]actionHandler{
		decision.ActionSchedule:   scheduleAppointment,
		decision.ActionReschedule: rescheduleAppointment,
		decision.ActionCancel:     cancelAppointment,
	}
	return o, nil
}

// TurnResult describes how far a turn got and what was sent back.
type TurnResult struct {
	TurnID        string          `json:"turn_id"`
	State         State           `json:"state"`
	TenantID      string          `json:"tenant_id,omitempty"`
	Action        decision.Action `json:"action,omitempty"`
	Reply         string          `json:"reply,omitempty"`
	ReplySent     bool            `json:"reply_sent"`
	DispatchError error           `json:"-"`
}

// HandleTurn processes one inbound event. Terminal failures return a
// typed *apperr.Error alongside the partial result; the sender still
// receives the generic error reply when known. A dispatch failure is not
// terminal: it is reported in DispatchError and the directive's reply is
// still delivered.
func (o *Orchestrator) HandleTurn(ctx context.Context, ev messaging.InboundEvent) (*TurnResult, error) {
	start := time.Now()
	res := &TurnResult{TurnID: uuid.NewString(), State: StateReceived, TenantID: tenant.NormalizeID(ev.TenantID)}
	ctx, span := tracer.Start(ctx, "orchestrator.turn")
	defer span.End()
	span.SetAttributes(attribute.String("turn_id", res.TurnID), attribute.String("tenant_id", res.TenantID))
	log := o.logger.With("turn_id", res.TurnID, "tenant_id", res.TenantID)

	err := o.runTurn(ctx, ev, res, log)
	outcome := "replied"
	if err != nil {
		outcome = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperr.KindOf(err)))
		log.Warn("turn failed", "state", string(res.State), "kind", string(apperr.KindOf(err)), "error", err)
		if ev.From != "" {
			res.Reply = o.errorReply
			res.ReplySent = o.reply(ctx, log, ev.From, o.errorReply)
		}
	}
	span.SetAttributes(attribute.String("state", string(res.State)))
	o.metrics.ObserveTurn(outcome, string(res.State), time.Since(start))
	return res, err
}

func (o *Orchestrator) runTurn(ctx context.Context, ev messaging.InboundEvent, res *TurnResult, log *logging.Logger) error {
	if strings.TrimSpace(ev.From) == "" || strings.TrimSpace(ev.Body) == "" {
		return apperr.BadRequest("orchestrator.received", "sender and message body are required")
	}
	if res.TenantID == "" {
		return apperr.BadRequest("orchestrator.received", "tenant identifier is required")
	}

	t, err := o.tenants.Get(ctx, res.TenantID)
	if err != nil {
		return err
	}
	client, err := o.clientFor(t)
	if err != nil {
		return err
	}
	res.State = StateTenantResolved

	convCtx := o.builder.Build(ctx, t, ev.From, client)
	res.State = StateContextBuilt

	directive, err := o.decision.Process(ctx, ev.Body, convCtx, decision.ToolNames())
	if err != nil {
		return err
	}
	res.State = StateDirectiveObtained
	res.Action = directive.Action
	convCtx.Merge(directive.Data)
	convCtx.SetStage(directive.Stage)

	result := o.dispatch(ctx, client, directive, convCtx, log, res)
	o.metrics.ObserveAction(string(directive.Action), result)
	res.State = StateActionDispatched

	res.Reply = directive.ResponseText
	if strings.TrimSpace(res.Reply) == "" {
		res.Reply = o.fallbackReply
	}
	res.ReplySent = o.reply(ctx, log, ev.From, res.Reply)
	res.State = StateReplied
	return nil
}

func (o *Orchestrator) dispatch(ctx context.Context, client *clinicapi.Client, d *decision.Directive, convCtx *conversation.Context, log *logging.Logger, res *TurnResult) string {
	handler, ok := o.handlers[d.Action]
	if !ok {
		if d.Action == decision.ActionUnknown {
			log.Info("unrecognised action ignored", "action", d.RawAction)
		}
		return "noop"
	}
	dispatched, err := handler(ctx, client, convCtx)
	if err != nil {
		res.DispatchError = err
		log.Warn("action dispatch failed", "action", string(d.Action), "kind", string(apperr.KindOf(err)), "error", err)
		return "error"
	}
	if !dispatched {
		log.Debug("action skipped, no payload collected", "action", string(d.Action))
		return "noop"
	}
	log.Info("action dispatched", "action", string(d.Action))
	return "ok"
}

// reply sends text and reports whether delivery succeeded. Failures are
// logged only.
func (o *Orchestrator) reply(ctx context.Context, log *logging.Logger, to, text string) bool {
	if _, err := o.sender.SendText(ctx, to, text); err != nil {
		log.Error("reply delivery failed", "error", err)
		return false
	}
	return true
}

// clientFor builds a fresh clinic API client bound to t.
func (o *Orchestrator) clientFor(t *tenant.Tenant) (*clinicapi.Client, error) {
	headers, err := credential.Build(t)
	if err != nil {
		return nil, err
	}
	return clinicapi.New(o.clinic, clinicapi.Scope{
		TenantID:    t.ID,
		Credentials: headers,
		Defaults: clinicapi.Defaults{
			LabelID:         t.LabelID,
			LocationID:      t.LocationID,
			PatientOriginID: t.PatientOriginID,
		},
	})
}

// WithClinic resolves tenantID and runs fn against a client scoped to it.
// Every management pass-through goes through here.
func (o *Orchestrator) WithClinic(ctx context.Context, tenantID string, fn func(*clinicapi.Client) (json.RawMessage, error)) (json.RawMessage, error) {
	id := tenant.NormalizeID(tenantID)
	if id == "" {
		return nil, apperr.BadRequest("orchestrator.with_clinic", "tenant identifier is required")
	}
	t, err := o.tenants.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	client, err := o.clientFor(t)
	if err != nil {
		return nil, err
	}
	return fn(client)
}
