package clinicapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/wolfman30/clinic-mcp-gateway/internal/apperr"
)

// FindPatientByTaxID looks a patient up by CPF/CNPJ.
func (c *Client) FindPatientByTaxID(ctx context.Context, taxID string) (json.RawMessage, error) {
	taxID = strings.TrimSpace(taxID)
	if taxID == "" {
		return nil, apperr.Validation("clinicapi.find_patient", "cpfCnpj is required")
	}
	return c.get(ctx, "find_patient", "/paciente/lista", url.Values{"cpfCnpj": {taxID}})
}

// SearchPatients lists patients matching every non-empty filter. An empty
// filter is unrestricted.
func (c *Client) SearchPatients(ctx context.Context, f PatientFilter) (json.RawMessage, error) {
	q := url.Values{}
	setIfNotEmpty(q, "nomeContem", f.Name)
	setIfNotEmpty(q, "email", f.Email)
	setIfNotEmpty(q, "telefone", f.Phone)
	return c.get(ctx, "search_patients", "/paciente/lista", q)
}

// CreatePatient registers a patient. The tenant's default patient origin is
// used when the payload has none.
func (c *Client) CreatePatient(ctx context.Context, p NewPatient) (json.RawMessage, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if p.PatientOriginID == nil {
		p.PatientOriginID = c.scope.Defaults.PatientOriginID
	}
	return c.do(ctx, "create_patient", http.MethodPost, "/paciente/novo", nil, p)
}

// ListPatientInsurances lists the insurance plans associated to a patient.
func (c *Client) ListPatientInsurances(ctx context.Context, patientID int64) (json.RawMessage, error) {
	if patientID <= 0 {
		return nil, apperr.Validation("clinicapi.list_patient_insurances", "idPaciente is required")
	}
	return c.get(ctx, "list_patient_insurances", "/convenio-paciente/lista", url.Values{"idPaciente": {itoa(patientID)}})
}

// AssociateInsurance appends an insurance plan to a patient.
func (c *Client) AssociateInsurance(ctx context.Context, patientID, insuranceTypeID int64) (json.RawMessage, error) {
	if patientID <= 0 || insuranceTypeID <= 0 {
		return nil, apperr.Validation("clinicapi.associate_insurance", "idPaciente and idTipoConvenio are required")
	}
	body := insuranceAssociation{PatientID: patientID, InsuranceTypeID: insuranceTypeID}
	return c.do(ctx, "associate_insurance", http.MethodPost, "/convenio-paciente/associar", nil, body)
}

// PatientProfile finds a patient by tax id and, when found, embeds the
// patient's insurance list under "convenios" of the first match. The rest
// of the upstream body is kept as is.
func (c *Client) PatientProfile(ctx context.Context, taxID string) (json.RawMessage, error) {
	raw, err := c.FindPatientByTaxID(ctx, taxID)
	if err != nil {
		return nil, err
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return raw, nil
	}
	var list []map[string]json.RawMessage
	if err := json.Unmarshal(envelope["lista"], &list); err != nil || len(list) == 0 {
		return raw, nil
	}
	var id int64
	if err := json.Unmarshal(list[0]["id"], &id); err != nil || id == 0 {
		return raw, nil
	}
	insurances, err := c.ListPatientInsurances(ctx, id)
	if err != nil {
		return nil, err
	}
	list[0]["convenios"] = insurances
	if envelope["lista"], err = json.Marshal(list); err != nil {
		return nil, err
	}
	return json.Marshal(envelope)
}

func setIfNotEmpty(q url.Values, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		q.Set(key, value)
	}
}

func setIfPositive(q url.Values, key string, value *int64) {
	if value != nil && *value > 0 {
		q.Set(key, itoa(*value))
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
