package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/clinic-mcp-gateway/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/clinic-mcp-gateway/internal/http/middleware"
	"github.com/wolfman30/clinic-mcp-gateway/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Webhook            *handlers.WebhookHandler
	Tenants            *handlers.TenantHandler
	Clinic             *handlers.ClinicHandler
	Tools              *handlers.ToolsHandler
	AdminAuthSecret    string
	WebhookToken       string
	RateLimiter        *httpmiddleware.RateLimiter
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates the chi router with every route configured. Management
// routes require an admin JWT; the webhook only the shared webhook token.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.RateLimiter != nil {
		r.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
	}

	r.Get("/", handlers.Root)
	r.Get("/health", handlers.Health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	if cfg.Tools != nil {
		r.Get("/api/tools", cfg.Tools.Catalog)
	}

	r.Route("/api/v1", func(api chi.Router) {
		if cfg.Webhook != nil {
			api.Group(func(hook chi.Router) {
				hook.Use(httpmiddleware.WebhookToken(cfg.WebhookToken))
				hook.Post("/webhook/whatsapp", cfg.Webhook.WhatsApp)
				hook.Post("/webhook/whatsapp/{cnpj}", cfg.Webhook.WhatsApp)
			})
		}

		api.Group(func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))

			if cfg.Tenants != nil {
				admin.Post("/clinicas", cfg.Tenants.Create)
				admin.Get("/clinicas/teste/{cnpj}", cfg.Tenants.Check)
				admin.Get("/debug/auth/{cnpj}", cfg.Tenants.DebugAuth)
			}

			admin.Route("/clinicas/{cnpj}", func(clinic chi.Router) {
				if cfg.Tenants != nil {
					clinic.Get("/", cfg.Tenants.Get)
					clinic.Put("/", cfg.Tenants.Update)
					clinic.Delete("/", cfg.Tenants.Delete)
				}
				if cfg.Clinic != nil {
					clinic.Group(func(scoped chi.Router) {
						scoped.Use(requireTenant)
						mountClinicRoutes(scoped, cfg.Clinic)
					})
				}
			})

			if cfg.Tools != nil {
				admin.Get("/mcp/tools", cfg.Tools.RemoteTools)
				admin.Post("/mcp/execute", cfg.Tools.Execute)
				admin.Post("/mcp/context", cfg.Tools.UpdateContext)
				admin.Get("/mensagens/{id}/status", cfg.Tools.MessageStatus)
				admin.Post("/mensagens/arquivo", cfg.Tools.SendFile)
				admin.Get("/mensagens/historico", cfg.Tools.ChatHistory)
			}
		})
	})

	return r
}

func mountClinicRoutes(r chi.Router, h *handlers.ClinicHandler) {
	r.Get("/pacientes", h.SearchPatients)
	r.Post("/pacientes", h.CreatePatient)
	r.Get("/pacientes/{paciente}", h.PatientProfile)
	r.Get("/pacientes/{paciente}/convenios", h.PatientInsurances)
	r.Post("/pacientes/{paciente}/convenios/{id_tipo_convenio}", h.AssociateInsurance)

	r.Get("/especialidades", h.ListSpecialties)
	r.Get("/executores", h.ListProviders)
	r.Get("/executores/{id_executor}", h.GetProvider)
	r.Get("/disponibilidade", h.Availability)

	r.Get("/agendamentos", h.ListAppointments)
	r.Post("/agendamentos", h.CreateAppointment)
	r.Put("/agendamentos/{id_agenda}/remarcar", h.RescheduleAppointment)
	r.Put("/agendamentos/{id_agenda}/status", h.SetAppointmentStatus)

	r.Get("/tipos-convenios", h.ListInsuranceTypes)
	r.Get("/tipos-procedimentos", h.ListProcedureTypes)
	r.Get("/tipos-consultas", h.ListConsultationTypes)
	r.Get("/procedimentos/{id_tipo_procedimento}/valores", h.ProcedurePricing)
}
