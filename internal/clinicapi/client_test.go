package clinicapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/clinic-mcp-gateway/internal/apperr"
	"github.com/wolfman30/clinic-mcp-gateway/internal/credential"
	"github.com/wolfman30/clinic-mcp-gateway/internal/tenant"
	"github.com/wolfman30/clinic-mcp-gateway/pkg/logging"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  map[string][]string
	Header http.Header
	Body   map[string]any
}

type fakeUpstream struct {
	mu       sync.Mutex
	requests []recordedRequest
	calls    atomic.Int32
	status   int
	response string
}

func (f *fakeUpstream) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		rec := recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query(), Header: r.Header.Clone()}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			if err := json.Unmarshal(data, &rec.Body); err != nil {
				t.Errorf("invalid request body: %v", err)
			}
		}
		f.mu.Lock()
		f.requests = append(f.requests, rec)
		f.mu.Unlock()

		status := f.status
		if status == 0 {
			status = http.StatusOK
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		resp := f.response
		if resp == "" {
			resp = `{"lista":[]}`
		}
		_, _ = w.Write([]byte(resp))
	}
}

func (f *fakeUpstream) last(t *testing.T) recordedRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func newTestClient(t *testing.T, baseURL string, defaults Defaults) *Client {
	t.Helper()
	creds, err := credential.Build(&tenant.Tenant{ID: "30747815000108", AccountID: "cid-1", APIKey: "secret"})
	require.NoError(t, err)
	client, err := New(Config{BaseURL: baseURL, Logger: logging.Default()}, Scope{
		TenantID:    "30747815000108",
		Credentials: creds,
		Defaults:    defaults,
	})
	require.NoError(t, err)
	return client
}

func int64Ptr(v int64) *int64 { return &v }

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{}, Scope{TenantID: "1"})
	assert.ErrorIs(t, err, apperr.ErrInvalidTenantCredential)
}

func TestOperationsMapToUpstreamEndpoints(t *testing.T) {
	up := &fakeUpstream{}
	srv := httptest.NewServer(up.handler(t))
	defer srv.Close()
	c := newTestClient(t, srv.URL, Defaults{})
	ctx := context.Background()

	tests := []struct {
		name   string
		call   func() (json.RawMessage, error)
		method string
		path   string
		query  map[string]string
		body   map[string]any
	}{
		{
			name:   "find patient",
			call:   func() (json.RawMessage, error) { return c.FindPatientByTaxID(ctx, "12345678900") },
			method: http.MethodGet, path: "/paciente/lista",
			query: map[string]string{"cpfCnpj": "12345678900"},
		},
		{
			name: "search patients",
			call: func() (json.RawMessage, error) {
				return c.SearchPatients(ctx, PatientFilter{Name: "Maria", Phone: "5511"})
			},
			method: http.MethodGet, path: "/paciente/lista",
			query: map[string]string{"nomeContem": "Maria", "telefone": "5511"},
		},
		{
			name:   "list patient insurances",
			call:   func() (json.RawMessage, error) { return c.ListPatientInsurances(ctx, 7) },
			method: http.MethodGet, path: "/convenio-paciente/lista",
			query: map[string]string{"idPaciente": "7"},
		},
		{
			name:   "associate insurance",
			call:   func() (json.RawMessage, error) { return c.AssociateInsurance(ctx, 7, 3) },
			method: http.MethodPost, path: "/convenio-paciente/associar",
			body: map[string]any{"idPaciente": float64(7), "idTipoConvenio": float64(3)},
		},
		{
			name:   "list specialties",
			call:   func() (json.RawMessage, error) { return c.ListSpecialties(ctx, "derma") },
			method: http.MethodGet, path: "/especialidade/lista",
			query: map[string]string{"nomeContem": "derma", "somenteAtendidasNaClinica": "true"},
		},
		{
			name: "list providers",
			call: func() (json.RawMessage, error) {
				return c.ListProviders(ctx, ProviderFilter{SpecialtyID: int64Ptr(4), Name: "Ana"})
			},
			method: http.MethodGet, path: "/executor-agenda/lista",
			query: map[string]string{"somenteAtivos": "true", "idEspecialidade": "4", "nomeContem": "Ana"},
		},
		{
			name:   "get provider",
			call:   func() (json.RawMessage, error) { return c.GetProvider(ctx, 15) },
			method: http.MethodGet, path: "/executor-agenda/15",
		},
		{
			name:   "list insurance types",
			call:   func() (json.RawMessage, error) { return c.ListInsuranceTypes(ctx) },
			method: http.MethodGet, path: "/tipo-convenio/lista",
		},
		{
			name: "list procedure types",
			call: func() (json.RawMessage, error) {
				return c.ListProcedureTypes(ctx, ProcedureTypeFilter{Name: "botox", ActiveOnly: true})
			},
			method: http.MethodGet, path: "/tipo-procedimento/lista",
			query: map[string]string{"nomeContem": "botox", "somenteAtivos": "true"},
		},
		{
			name:   "list consultation types",
			call:   func() (json.RawMessage, error) { return c.ListConsultationTypes(ctx, "retorno") },
			method: http.MethodGet, path: "/tipo-consulta/lista",
			query: map[string]string{"nomeContem": "retorno"},
		},
		{
			name: "get availability",
			call: func() (json.RawMessage, error) {
				return c.GetAvailability(ctx, AvailabilityQuery{ProviderID: 15, AttendanceType: 1, From: "2026-10-20", To: "2026-10-27"})
			},
			method: http.MethodGet, path: "/executor-agenda/disponibilidade",
			query: map[string]string{"idExecutorAgenda": "15", "codTipoAtendimento": "1", "data": "2026-10-20", "dataFim": "2026-10-27"},
		},
		{
			name: "reschedule appointment",
			call: func() (json.RawMessage, error) {
				return c.RescheduleAppointment(ctx, 99, Reschedule{NewDate: "2026-10-21", NewStart: "09:00", NewEnd: "09:30", Reason: "paciente pediu"})
			},
			method: http.MethodPost, path: "/agenda/99/remarcar",
			body: map[string]any{"novaData": "2026-10-21", "novoHorarioInicial": "09:00", "novoHorarioFinal": "09:30", "motivo": "paciente pediu"},
		},
		{
			name:   "set appointment status",
			call:   func() (json.RawMessage, error) { return c.SetAppointmentStatus(ctx, 99, "canceled") },
			method: http.MethodPut, path: "/agenda/alteracao-status",
			body: map[string]any{"idAgenda": float64(99), "status": "CANCELADO"},
		},
		{
			name: "list appointments",
			call: func() (json.RawMessage, error) {
				return c.ListAppointments(ctx, AppointmentQuery{PatientID: int64Ptr(7)})
			},
			method: http.MethodGet, path: "/agenda/lista",
			query: map[string]string{"dataPor": "AGENDAMENTO", "codigoPaciente": "7"},
		},
		{
			name: "procedure pricing",
			call: func() (json.RawMessage, error) {
				return c.GetProcedurePricing(ctx, PricingQuery{ProcedureTypeID: 2, InsuranceTypeID: 3, Date: "2026-10-20", Time: "10:00"})
			},
			method: http.MethodGet, path: "/tipo-procedimento/valores-venda",
			query: map[string]string{"idTipoProcedimento": "2", "idTipoConvenio": "3", "dataBase": "2026-10-20", "horaBase": "10:00"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := tt.call()
			require.NoError(t, err)
			assert.JSONEq(t, `{"lista":[]}`, string(raw))

			req := up.last(t)
			assert.Equal(t, tt.method, req.Method)
			assert.Equal(t, tt.path, req.Path)
			for k, v := range tt.query {
				assert.Equal(t, []string{v}, req.Query[k], "query %s", k)
			}
			assert.Len(t, req.Query, len(tt.query))
			for k, v := range tt.body {
				assert.Equal(t, v, req.Body[k], "body %s", k)
			}
			assert.Equal(t, "cid-1", req.Header.Get("clinicaNasNuvens-cid"))
			assert.Equal(t, "application/json", req.Header.Get("Accept"))
			assert.Contains(t, req.Header.Get("Authorization"), "Basic ")
		})
	}
}

func TestResponseBodyIsPassedThroughVerbatim(t *testing.T) {
	body := `{"lista":[{"id":1,"nome":"Ana","campoNovo":{"x":1}}],"totalRegistros":1}`
	up := &fakeUpstream{response: body}
	srv := httptest.NewServer(up.handler(t))
	defer srv.Close()

	raw, err := newTestClient(t, srv.URL, Defaults{}).SearchPatients(context.Background(), PatientFilter{})
	require.NoError(t, err)
	assert.Equal(t, body, string(raw))
	assert.Empty(t, up.last(t).Query)
}

func TestNonSuccessBecomesUpstreamClinicError(t *testing.T) {
	up := &fakeUpstream{status: http.StatusConflict, response: `{"mensagem":"horario indisponivel"}`}
	srv := httptest.NewServer(up.handler(t))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, Defaults{}).ListInsuranceTypes(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrUpstreamClinic)

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusConflict, appErr.Status)
	assert.Equal(t, `{"mensagem":"horario indisponivel"}`, appErr.Body)
	assert.NotContains(t, err.Error(), "secret")
	assert.Equal(t, int32(1), up.calls.Load(), "no retry expected")
}

func TestConnectionFailureIsUpstreamUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(t, url, Defaults{}).ListInsuranceTypes(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
}

func TestRescheduleValidatesBeforeAnyCall(t *testing.T) {
	up := &fakeUpstream{}
	srv := httptest.NewServer(up.handler(t))
	defer srv.Close()
	c := newTestClient(t, srv.URL, Defaults{})

	complete := Reschedule{NewDate: "2026-10-21", NewStart: "09:00", NewEnd: "09:30", Reason: "conflito"}
	cases := map[string]Reschedule{
		"missing date":   {NewStart: complete.NewStart, NewEnd: complete.NewEnd, Reason: complete.Reason},
		"missing start":  {NewDate: complete.NewDate, NewEnd: complete.NewEnd, Reason: complete.Reason},
		"missing end":    {NewDate: complete.NewDate, NewStart: complete.NewStart, Reason: complete.Reason},
		"missing reason": {NewDate: complete.NewDate, NewStart: complete.NewStart, NewEnd: complete.NewEnd},
		"blank reason":   {NewDate: complete.NewDate, NewStart: complete.NewStart, NewEnd: complete.NewEnd, Reason: "  "},
	}
	for name, r := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := c.RescheduleAppointment(context.Background(), 10, r)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
	assert.Equal(t, int32(0), up.calls.Load())
}

func TestSetAppointmentStatusRejectsUnknownStatus(t *testing.T) {
	up := &fakeUpstream{}
	srv := httptest.NewServer(up.handler(t))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, Defaults{}).SetAppointmentStatus(context.Background(), 1, "ARCHIVED")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, int32(0), up.calls.Load())
}

func TestCreatePayloadsInheritTenantDefaults(t *testing.T) {
	up := &fakeUpstream{response: `{"id":1}`}
	srv := httptest.NewServer(up.handler(t))
	defer srv.Close()
	c := newTestClient(t, srv.URL, Defaults{LabelID: int64Ptr(11), LocationID: int64Ptr(22), PatientOriginID: int64Ptr(33)})
	ctx := context.Background()

	_, err := c.CreatePatient(ctx, NewPatient{Name: "Ana", TaxID: "123"})
	require.NoError(t, err)
	assert.Equal(t, float64(33), up.last(t).Body["idOrigemPaciente"])

	_, err = c.CreateAppointment(ctx, NewAppointment{PatientID: 1, Date: "2026-10-20", StartTime: "10:00", LocationID: int64Ptr(5)})
	require.NoError(t, err)
	body := up.last(t).Body
	assert.Equal(t, float64(5), body["idLocal"])
	assert.Equal(t, float64(11), body["idRotulo"])

	_, err = c.CreateAppointment(ctx, NewAppointment{PatientID: 1})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
