package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/clinic-mcp-gateway/internal/clinicapi"
	"github.com/wolfman30/clinic-mcp-gateway/internal/tenant"
	"github.com/wolfman30/clinic-mcp-gateway/pkg/logging"
)

type stubSource struct {
	patients     string
	appointments string
	searchErr    error
	searches     []clinicapi.PatientFilter
}

func (s *stubSource) SearchPatients(_ context.Context, f clinicapi.PatientFilter) (json.RawMessage, error) {
	s.searches = append(s.searches, f)
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return json.RawMessage(s.patients), nil
}

func (s *stubSource) ListAppointments(context.Context, clinicapi.AppointmentQuery) (json.RawMessage, error) {
	return json.RawMessage(s.appointments), nil
}

var testTenant = &tenant.Tenant{ID: "30747815000108", AccountID: "cid-1", APIKey: "do-not-forward"}

func TestNewContextDefaults(t *testing.T) {
	c := New(testTenant, "5511999999999")
	assert.Equal(t, StageStart, c.Stage)
	assert.NotNil(t, c.Collected)
	assert.Nil(t, c.Patient)
	assert.Nil(t, c.LastAppointment)

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "do-not-forward")
	assert.Contains(t, string(data), `"etapa_atual":"inicio"`)
	assert.Contains(t, string(data), `"dados_coletados":{}`)
}

func TestMergeStageAndDecode(t *testing.T) {
	c := New(testTenant, "")
	c.Merge(map[string]any{"appointment": map[string]any{"idPaciente": 7, "data": "2026-10-20", "horaInicio": "10:00"}})
	c.SetStage("")
	assert.Equal(t, StageStart, c.Stage)
	c.SetStage("confirmacao")
	assert.Equal(t, "confirmacao", c.Stage)

	var appt clinicapi.NewAppointment
	found, err := c.Decode("appointment", &appt)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(7), appt.PatientID)

	found, err = c.Decode("cancel", &appt)
	require.NoError(t, err)
	assert.False(t, found)

	c.Merge(map[string]any{"bad": "not-an-object"})
	found, err = c.Decode("bad", &appt)
	assert.True(t, found)
	assert.Error(t, err)

	m, err := c.Map()
	require.NoError(t, err)
	assert.Equal(t, "confirmacao", m["etapa_atual"])
}

func TestBuilderResolvesPatientAndLatestAppointment(t *testing.T) {
	src := &stubSource{
		patients: `{"lista":[{"id":7,"nome":"Ana","cpfCnpj":"111"}]}`,
		appointments: `{"lista":[
			{"id":1,"data":"2026-09-01","horaInicio":"09:00"},
			{"id":3,"data":"2026-10-02","horaInicio":"08:00"},
			{"id":2,"data":"2026-10-02","horaInicio":"07:00"}
		]}`,
	}
	c := NewBuilder(true, logging.Default()).Build(context.Background(), testTenant, "5511999999999", src)

	require.NotNil(t, c.Patient)
	assert.Equal(t, int64(7), c.Patient.ID)
	require.NotNil(t, c.LastAppointment)
	assert.Equal(t, int64(3), c.LastAppointment.ID)
	assert.Equal(t, "5511999999999", src.searches[0].Phone)
}

func TestBuilderPrefersOpenAppointments(t *testing.T) {
	src := &stubSource{
		patients: `{"lista":[{"id":7,"nome":"Ana","cpfCnpj":"111"}]}`,
		appointments: `[
			{"id":10,"data":"2026-11-01","horaInicio":"08:00:00","status":"AGENDADO"},
			{"id":11,"data":"2026-11-01","horaInicio":"16:00:00","status":"REMARCADO"},
			{"id":12,"data":"2026-12-01","horaInicio":"09:00:00","status":"CANCELADO"}
		]`,
	}
	c := NewBuilder(true, logging.Default()).Build(context.Background(), testTenant, "5511999999999", src)
	require.NotNil(t, c.LastAppointment)
	assert.Equal(t, int64(11), c.LastAppointment.ID)

	src.appointments = `[
		{"id":5,"data":"01/09/2026","horaInicio":"09:00:00","status":"ATENDIDO"},
		{"id":6,"data":"02/09/2026","horaInicio":"09:00:00","status":"CANCELADO"}
	]`
	c = NewBuilder(true, logging.Default()).Build(context.Background(), testTenant, "5511999999999", src)
	require.NotNil(t, c.LastAppointment, "closed appointments still describe the history")
	assert.Equal(t, int64(6), c.LastAppointment.ID)
}

func TestBuilderIsBestEffort(t *testing.T) {
	src := &stubSource{searchErr: errors.New("clinic api down")}
	c := NewBuilder(true, logging.Default()).Build(context.Background(), testTenant, "5511", src)
	assert.Nil(t, c.Patient)
	assert.Equal(t, "30747815000108", c.Tenant.ID)

	src = &stubSource{patients: `{"lista":[]}`}
	c = NewBuilder(true, logging.Default()).Build(context.Background(), testTenant, "5511", src)
	assert.Nil(t, c.Patient)

	src = &stubSource{patients: `{"lista":[{"id":1}]}`}
	c = NewBuilder(false, logging.Default()).Build(context.Background(), testTenant, "5511", src)
	assert.Nil(t, c.Patient)
	assert.Empty(t, src.searches)
}
