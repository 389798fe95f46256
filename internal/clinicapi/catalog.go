package clinicapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/wolfman30/clinic-mcp-gateway/internal/apperr"
)

// ListSpecialties lists specialties served by the clinic.
func (c *Client) ListSpecialties(ctx context.Context, name string) (json.RawMessage, error) {
	q := url.Values{
		"nomeContem":                {name},
		"somenteAtendidasNaClinica": {"true"},
	}
	return c.get(ctx, "list_specialties", "/especialidade/lista", q)
}

// ListProviders lists active providers.
func (c *Client) ListProviders(ctx context.Context, f ProviderFilter) (json.RawMessage, error) {
	q := url.Values{"somenteAtivos": {"true"}}
	setIfPositive(q, "idEspecialidade", f.SpecialtyID)
	setIfPositive(q, "idTipoConvenio", f.InsuranceTypeID)
	setIfNotEmpty(q, "nomeContem", f.Name)
	return c.get(ctx, "list_providers", "/executor-agenda/lista", q)
}

// GetProvider fetches one provider.
func (c *Client) GetProvider(ctx context.Context, providerID int64) (json.RawMessage, error) {
	if providerID <= 0 {
		return nil, apperr.Validation("clinicapi.get_provider", "provider id is required")
	}
	return c.get(ctx, "get_provider", fmt.Sprintf("/executor-agenda/%d", providerID), nil)
}

// ListInsuranceTypes lists the insurance plans the clinic accepts.
func (c *Client) ListInsuranceTypes(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "list_insurance_types", "/tipo-convenio/lista", nil)
}

// ListProcedureTypes lists procedure types.
func (c *Client) ListProcedureTypes(ctx context.Context, f ProcedureTypeFilter) (json.RawMessage, error) {
	q := url.Values{"somenteAtivos": {strconv.FormatBool(f.ActiveOnly)}}
	setIfNotEmpty(q, "nomeContem", f.Name)
	return c.get(ctx, "list_procedure_types", "/tipo-procedimento/lista", q)
}

// ListConsultationTypes lists consultation types.
func (c *Client) ListConsultationTypes(ctx context.Context, name string) (json.RawMessage, error) {
	q := url.Values{}
	setIfNotEmpty(q, "nomeContem", name)
	return c.get(ctx, "list_consultation_types", "/tipo-consulta/lista", q)
}

// GetProcedurePricing returns the sale price of a procedure for an
// insurance plan at a given date and time.
func (c *Client) GetProcedurePricing(ctx context.Context, p PricingQuery) (json.RawMessage, error) {
	if p.ProcedureTypeID <= 0 || p.InsuranceTypeID <= 0 || p.Date == "" || p.Time == "" {
		return nil, apperr.Validation("clinicapi.get_procedure_pricing", "idTipoProcedimento, idTipoConvenio, dataBase and horaBase are required")
	}
	q := url.Values{
		"idTipoProcedimento": {itoa(p.ProcedureTypeID)},
		"idTipoConvenio":     {itoa(p.InsuranceTypeID)},
		"dataBase":           {p.Date},
		"horaBase":           {p.Time},
	}
	return c.get(ctx, "get_procedure_pricing", "/tipo-procedimento/valores-venda", q)
}
