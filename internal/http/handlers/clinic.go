package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-mcp-gateway/internal/apperr"
	"github.com/wolfman30/clinic-mcp-gateway/internal/clinicapi"
	"github.com/wolfman30/clinic-mcp-gateway/internal/tenancy"
	"github.com/wolfman30/clinic-mcp-gateway/pkg/logging"
)

// ClinicRunner runs fn against a clinic API client scoped to tenantID.
type ClinicRunner interface {
	WithClinic(ctx context.Context, tenantID string, fn func(*clinicapi.Client) (json.RawMessage, error)) (json.RawMessage, error)
}

// ClinicHandler relays tenant-scoped clinic operations under
// /api/v1/clinicas/{cnpj}. Upstream bodies are returned unchanged.
type ClinicHandler struct {
	clinic ClinicRunner
	logger *logging.Logger
}

func NewClinicHandler(clinic ClinicRunner, logger *logging.Logger) *ClinicHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ClinicHandler{clinic: clinic, logger: logger}
}

type clinicCall func(ctx context.Context, c *clinicapi.Client) (json.RawMessage, error)

func (h *ClinicHandler) relay(w http.ResponseWriter, r *http.Request, call clinicCall) {
	ctx := r.Context()
	tenantID, ok := tenancy.TenantIDFromContext(ctx)
	if !ok {
		tenantID = chi.URLParam(r, "cnpj")
	}
	raw, err := h.clinic.WithClinic(ctx, tenantID, func(c *clinicapi.Client) (json.RawMessage, error) {
		return call(ctx, c)
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeRaw(w, http.StatusOK, raw)
}

// SearchPatients handles GET .../pacientes?nome=&email=&telefone=.
func (h *ClinicHandler) SearchPatients(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := clinicapi.PatientFilter{Name: q.Get("nome"), Email: q.Get("email"), Phone: q.Get("telefone")}
	h.relay(w, r, func(ctx context.Context, c *clinicapi.Client) (json.RawMessage, error) {
		return c.SearchPatients(ctx, f)
	})
}

// PatientProfile handles GET .../pacientes/{paciente} where the segment is
// the patient's CPF.
func (h *ClinicHandler) PatientProfile(w http.ResponseWriter, r *http.Request) {
	taxID := strings.TrimSpace(chi.URLParam(r, "paciente"))
	h.relay(w, r, func(ctx context.Context, c *clinicapi.Client) (json.RawMessage, error) {
		raw, err := c.PatientProfile(ctx, taxID)
		if err != nil {
			return nil, err
		}
		if patients, decodeErr := clinicapi.DecodeItems[json.RawMessage](raw); decodeErr == nil && len(patients) == 0 {
			return nil, apperr.NotFound("clinicapi.patient_profile", "patient not found")
		}
		return raw, nil
	})
}

// CreatePatient handles POST .../pacientes.
func (h *ClinicHandler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	var p clinicapi.NewPatient
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	h.relay(w, r, func(ctx context.Context, c *clinicapi.Client) (json.RawMessage, error) {
		return c.CreatePatient(ctx, p)
	})
}

// PatientInsurances handles GET .../pacientes/{paciente}/convenios.
func (h *ClinicHandler) PatientInsurances(w http.ResponseWriter, r *http.Request) {
	patientID, err := pathInt64(r, "paciente")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	h.relay(w, r, func(ctx context.Context, c *clinicapi.Client) (json.RawMessage, error) {
		return c.ListPatientInsurances(ctx, patientID)
	})
}

// AssociateInsurance handles POST .../pacientes/{paciente}/convenios/{id_tipo_convenio}.
func (h *ClinicHandler) AssociateInsurance(w http.ResponseWriter, r *http.Request) {
	patientID, err := pathInt64(r, "paciente")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	insuranceTypeID, err := pathInt64(r, "id_tipo_convenio")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	h.relay(w, r, func(ctx context.Context, c *clinicapi.Client) (json.RawMessage, error) {
		return c.AssociateInsurance(ctx, patientID, insuranceTypeID)
	})
}

func (h *ClinicHandler) ListSpecialties(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("nome")
	h.relay(w, r, func(ctx context.Context, c *clinicapi.Client) (json.RawMessage, error) {
		return c.ListSpecialties(ctx, name)
	})
}

// ListProviders handles GET .../executores?id_especialidade=&id_tipo_convenio=&nome=.
func (h *ClinicHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	specialtyID, err := queryInt64(r, "id_especialidade")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	insuranceTypeID, err := queryInt64(r, "id_tipo_convenio")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	f := clinicapi.ProviderFilter{SpecialtyID: specialtyID, InsuranceTypeID: insuranceTypeID, Name: r.URL.Query().Get("nome")}
	h.relay(w, r, func(ctx context.Context, c *clinicapi.Client) (json.RawMessage, error) {
		return c.ListProviders(ctx, f)
	})
}

func (h *ClinicHandler) GetProvider(w http.ResponseWriter, r *http.Request) {
	providerID, err := pathInt64(r, "id_executor")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	h.relay(w, r, func(ctx context.Context, c *clinicapi.Client) (json.RawMessage, error) {
		return c.GetProvider(ctx, providerID)
	})
}

// Availability handles GET .../disponibilidade. Every parameter is required.
func (h *ClinicHandler) Availability(w http.ResponseWriter, r *http.Request) {
	var (
		q   clinicapi.AvailabilityQuery
		err error
	)
	if q.ProviderID, err = requiredQueryInt64(r, "id_executor"); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if q.AttendanceType, err = requiredQueryInt64(r, "cod_tipo_atendimento"); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if q.From, err = requiredQuery(r, "data_inicio"); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if q.To, err = requiredQuery(r, "data_fim"); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	h.relay(w, r, func(ctx context.Context, c *clinicapi.Client) (json.RawMessage, error) {
		return c.GetAvailability(ctx, q)
	})
}

// ListAppointments handles GET .../agendamentos?codigo_paciente=&data_inicial=&data_final=&data_por=.
func (h *ClinicHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	patientID, err := queryInt64(r, "codigo_paciente")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	params := r.URL.Query()
	q := clinicapi.AppointmentQuery{
		PatientID: patientID,
		From:      params.Get("data_inicial"),
		To:        params.Get("data_final"),
		DateBasis: params.Get("data_por"),
	}
	h.relay(w, r, func(ctx context.Context, c *clinicapi.Client) (json.RawMessage, error) {
		return c.ListAppointments(ctx, q)
	})
}

func (h *ClinicHandler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var a clinicapi.NewAppointment
	if err := decodeJSON(r, &a); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	h.relay(w, r, func(ctx context.Context, c *clinicapi.Client) (json.RawMessage, error) {
		return c.CreateAppointment(ctx, a)
	})
}

// rescheduleRequest accepts the snake_case field names of the public API
// as well as the upstream names.
type rescheduleRequest struct {
	Date  string `json:"nova_data"`
	Start string `json:"novo_horario_inicial"`
	End   string `json:"novo_horario_final"`
	clinicapi.Reschedule
}

func (req rescheduleRequest) resolve() clinicapi.Reschedule {
	out := req.Reschedule
	if out.NewDate == "" {
		out.NewDate = req.Date
	}
	if out.NewStart == "" {
		out.NewStart = req.Start
	}
	if out.NewEnd == "" {
		out.NewEnd = req.End
	}
	return out
}

// RescheduleAppointment handles PUT .../agendamentos/{id_agenda}/remarcar.
func (h *ClinicHandler) RescheduleAppointment(w http.ResponseWriter, r *http.Request) {
	appointmentID, err := pathInt64(r, "id_agenda")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	var req rescheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	resched := req.resolve()
	if err := resched.Validate(); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	h.relay(w, r, func(ctx context.Context, c *clinicapi.Client) (json.RawMessage, error) {
		return c.RescheduleAppointment(ctx, appointmentID, resched)
	})
}

// SetAppointmentStatus handles PUT .../agendamentos/{id_agenda}/status. The
// status comes from the "status" query parameter or a JSON body.
func (h *ClinicHandler) SetAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	appointmentID, err := pathInt64(r, "id_agenda")
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	if status == "" {
		var body struct {
			Status string `json:"status"`
		}
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, h.logger, r, err)
			return
		}
		status = body.Status
	}
	parsed, err := clinicapi.ParseStatus(status)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	h.relay(w, r, func(ctx context.Context, c *clinicapi.Client) (json.RawMessage, error) {
		return c.SetAppointmentStatus(ctx, appointmentID, parsed)
	})
}

func (h *ClinicHandler) ListInsuranceTypes(w http.ResponseWriter, r *http.Request) {
	h.relay(w, r, func(ctx context.Context, c *clinicapi.Client) (json.RawMessage, error) {
		return c.ListInsuranceTypes(ctx)
	})
}

// ListProcedureTypes handles GET .../tipos-procedimentos?nome=&ativo=.
func (h *ClinicHandler) ListProcedureTypes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := clinicapi.ProcedureTypeFilter{Name: q.Get("nome"), ActiveOnly: q.Get("ativo") != "false"}
	h.relay(w, r, func(ctx context.Context, c *clinicapi.Client) (json.RawMessage, error) {
		return c.ListProcedureTypes(ctx, f)
	})
}

func (h *ClinicHandler) ListConsultationTypes(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("nome")
	h.relay(w, r, func(ctx context.Context, c *clinicapi.Client) (json.RawMessage, error) {
		return c.ListConsultationTypes(ctx, name)
	})
}

// ProcedurePricing handles GET .../procedimentos/{id_tipo_procedimento}/valores.
func (h *ClinicHandler) ProcedurePricing(w http.ResponseWriter, r *http.Request) {
	var (
		q   clinicapi.PricingQuery
		err error
	)
	if q.ProcedureTypeID, err = pathInt64(r, "id_tipo_procedimento"); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if q.InsuranceTypeID, err = requiredQueryInt64(r, "id_tipo_convenio"); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if q.Date, err = requiredQuery(r, "data_base"); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if q.Time, err = requiredQuery(r, "hora_base"); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	h.relay(w, r, func(ctx context.Context, c *clinicapi.Client) (json.RawMessage, error) {
		return c.GetProcedurePricing(ctx, q)
	})
}
