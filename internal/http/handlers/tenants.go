package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-mcp-gateway/internal/credential"
	"github.com/wolfman30/clinic-mcp-gateway/internal/tenant"
	"github.com/wolfman30/clinic-mcp-gateway/pkg/logging"
)

// TenantDirectory is the tenant CRUD surface.
type TenantDirectory interface {
	Get(ctx context.Context, id string) (*tenant.Tenant, error)
	Create(ctx context.Context, req tenant.CreateRequest) (*tenant.Tenant, error)
	Update(ctx context.Context, id string, upd tenant.Update) (*tenant.Tenant, error)
	Delete(ctx context.Context, id string) error
}

// TenantHandler serves /api/v1/clinicas. Responses carry tenant.View and
// never the API key.
type TenantHandler struct {
	directory TenantDirectory
	logger    *logging.Logger
}

func NewTenantHandler(directory TenantDirectory, logger *logging.Logger) *TenantHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &TenantHandler{directory: directory, logger: logger}
}

// Create handles POST /api/v1/clinicas.
func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req tenant.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	t, err := h.directory.Create(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t.View())
}

// Get handles GET /api/v1/clinicas/{cnpj}.
func (h *TenantHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.directory.Get(r.Context(), chi.URLParam(r, "cnpj"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t.View())
}

// Update handles PUT /api/v1/clinicas/{cnpj}.
func (h *TenantHandler) Update(w http.ResponseWriter, r *http.Request) {
	var upd tenant.Update
	if err := decodeJSON(r, &upd); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	t, err := h.directory.Update(r.Context(), chi.URLParam(r, "cnpj"), upd)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t.View())
}

// Delete handles DELETE /api/v1/clinicas/{cnpj}.
func (h *TenantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.directory.Delete(r.Context(), chi.URLParam(r, "cnpj")); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

type tenantCheck struct {
	tenant.View
	CredentialValid bool `json:"credential_valid"`
}

// Check handles GET /api/v1/clinicas/teste/{cnpj}: the stored tenant
// without its secret, plus whether a credential can be built from it.
func (h *TenantHandler) Check(w http.ResponseWriter, r *http.Request) {
	t, err := h.directory.Get(r.Context(), chi.URLParam(r, "cnpj"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	_, credErr := credential.Build(t)
	writeJSON(w, http.StatusOK, tenantCheck{View: t.View(), CredentialValid: credErr == nil})
}

// DebugAuth handles GET /api/v1/debug/auth/{cnpj}. Only the secret's
// length and a masked preview are returned.
func (h *TenantHandler) DebugAuth(w http.ResponseWriter, r *http.Request) {
	t, err := h.directory.Get(r.Context(), chi.URLParam(r, "cnpj"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, credential.Diagnose(t))
}
