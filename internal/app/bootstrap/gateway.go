package bootstrap

import (
	"fmt"
	"net/http"

	"github.com/wolfman30/clinic-mcp-gateway/internal/api/router"
	"github.com/wolfman30/clinic-mcp-gateway/internal/clinicapi"
	appconfig "github.com/wolfman30/clinic-mcp-gateway/internal/config"
	"github.com/wolfman30/clinic-mcp-gateway/internal/conversation"
	"github.com/wolfman30/clinic-mcp-gateway/internal/decision"
	"github.com/wolfman30/clinic-mcp-gateway/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/clinic-mcp-gateway/internal/http/middleware"
	"github.com/wolfman30/clinic-mcp-gateway/internal/messaging/evolution"
	"github.com/wolfman30/clinic-mcp-gateway/internal/observability/metrics"
	"github.com/wolfman30/clinic-mcp-gateway/internal/orchestrator"
	"github.com/wolfman30/clinic-mcp-gateway/internal/tenant"
	"github.com/wolfman30/clinic-mcp-gateway/pkg/logging"
)

// Gateway holds the long-lived collaborators of the API process.
type Gateway struct {
	Directory    *tenant.Directory
	Messaging    *evolution.Client
	Decision     *decision.Client
	Orchestrator *orchestrator.Orchestrator
	RateLimiter  *httpmiddleware.RateLimiter
}

// BuildGateway constructs every collaborator from cfg on top of an
// already selected tenant store. gm may be nil.
func BuildGateway(cfg *appconfig.Config, store tenant.Store, gm *metrics.GatewayMetrics, logger *logging.Logger) (*Gateway, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if store == nil {
		return nil, fmt.Errorf("bootstrap: tenant store is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	directory := tenant.NewDirectory(store, logger)

	sender, err := evolution.New(evolution.Config{
		BaseURL: cfg.EvolutionAPIURL,
		APIKey:  cfg.EvolutionAPIKey,
		Timeout: cfg.UpstreamTimeout,
		Logger:  logger,
		Metrics: gm,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: evolution client: %w", err)
	}

	decisionClient, err := decision.NewClient(decision.Config{
		BaseURL: cfg.MCPServerURL,
		APIKey:  cfg.MCPAPIKey,
		Timeout: cfg.UpstreamTimeout,
		Logger:  logger,
		Metrics: gm,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: decision client: %w", err)
	}

	orch, err := orchestrator.New(orchestrator.Deps{
		Tenants:  directory,
		Decision: decisionClient,
		Sender:   sender,
		Builder:  conversation.NewBuilder(cfg.ResolvePatientContext, logger),
		Clinic: clinicapi.Config{
			BaseURL: cfg.ClinicAPIBaseURL,
			Timeout: cfg.UpstreamTimeout,
			Logger:  logger,
			Metrics: gm,
		},
		Metrics:       gm,
		Logger:        logger,
		FallbackReply: cfg.FallbackReply,
		ErrorReply:    cfg.ErrorReply,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: orchestrator: %w", err)
	}

	var limiter *httpmiddleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	return &Gateway{
		Directory:    directory,
		Messaging:    sender,
		Decision:     decisionClient,
		Orchestrator: orch,
		RateLimiter:  limiter,
	}, nil
}

// RouterConfig wires the gateway's handlers into a router configuration.
func (g *Gateway) RouterConfig(cfg *appconfig.Config, metricsHandler http.Handler, logger *logging.Logger) *router.Config {
	return &router.Config{
		Logger:             logger,
		Webhook:            handlers.NewWebhookHandler(g.Orchestrator, logger),
		Tenants:            handlers.NewTenantHandler(g.Directory, logger),
		Clinic:             handlers.NewClinicHandler(g.Orchestrator, logger),
		Tools:              handlers.NewToolsHandler(g.Decision, g.Messaging, logger),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		WebhookToken:       cfg.WebhookToken,
		RateLimiter:        g.RateLimiter,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}
}

// Close releases background resources owned by the gateway.
func (g *Gateway) Close() {
	if g.RateLimiter != nil {
		g.RateLimiter.Stop()
	}
}
