package clinicapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// patientServer is a small stateful stand-in for the patient endpoints.
type patientServer struct {
	mu       sync.Mutex
	nextID   int64
	patients []map[string]any
}

func (s *patientServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/paciente/novo":
		var p map[string]any
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.nextID++
		p["id"] = s.nextID
		s.patients = append(s.patients, p)
		_ = json.NewEncoder(w).Encode(p)
	case r.Method == http.MethodGet && r.URL.Path == "/paciente/lista":
		taxID := r.URL.Query().Get("cpfCnpj")
		matches := []map[string]any{}
		for _, p := range s.patients {
			if taxID == "" || p["cpfCnpj"] == taxID {
				matches = append(matches, p)
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"lista": matches, "totalRegistros": len(matches)})
	case r.Method == http.MethodGet && r.URL.Path == "/convenio-paciente/lista":
		_, _ = w.Write([]byte(`{"lista":[{"idTipoConvenio":3,"nome":"Unimed"}]}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestCreateThenFindByTaxIDRoundTrip(t *testing.T) {
	srv := httptest.NewServer(&patientServer{})
	defer srv.Close()
	c := newTestClient(t, srv.URL, Defaults{})
	ctx := context.Background()

	for _, taxID := range []string{"123.456.789-00", "98765432100", "30747815000108"} {
		_, err := c.CreatePatient(ctx, NewPatient{Name: "Paciente " + taxID, TaxID: taxID, MobilePhone: "5511999999999"})
		require.NoError(t, err)

		raw, err := c.FindPatientByTaxID(ctx, taxID)
		require.NoError(t, err)
		patients, err := DecodeItems[Patient](raw)
		require.NoError(t, err)
		require.Len(t, patients, 1)
		assert.Equal(t, taxID, patients[0].TaxID)
		assert.NotZero(t, patients[0].ID)
	}
}

func TestPatientProfileEmbedsInsurances(t *testing.T) {
	srv := httptest.NewServer(&patientServer{})
	defer srv.Close()
	c := newTestClient(t, srv.URL, Defaults{})
	ctx := context.Background()

	_, err := c.CreatePatient(ctx, NewPatient{Name: "Ana", TaxID: "11122233344"})
	require.NoError(t, err)

	raw, err := c.PatientProfile(ctx, "11122233344")
	require.NoError(t, err)

	var out struct {
		Lista []struct {
			Nome      string `json:"nome"`
			Convenios struct {
				Lista []map[string]any `json:"lista"`
			} `json:"convenios"`
		} `json:"lista"`
		Total int `json:"totalRegistros"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Len(t, out.Lista, 1)
	assert.Equal(t, "Ana", out.Lista[0].Nome)
	assert.Len(t, out.Lista[0].Convenios.Lista, 1)
	assert.Equal(t, 1, out.Total)

	empty, err := c.PatientProfile(ctx, "00000000000")
	require.NoError(t, err)
	assert.JSONEq(t, `{"lista":[],"totalRegistros":0}`, string(empty))
}

func TestRecordsKeepUnknownFields(t *testing.T) {
	raw := json.RawMessage(`{"lista":[{"id":5,"nome":"Ana","cpfCnpj":"1","sexo":"F","endereco":{"cidade":"SP"}}]}`)
	patients, err := DecodeItems[Patient](raw)
	require.NoError(t, err)
	require.Len(t, patients, 1)
	assert.Equal(t, int64(5), patients[0].ID)
	assert.JSONEq(t, `"F"`, string(patients[0].Extra["sexo"]))

	out, err := json.Marshal(patients[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":5,"nome":"Ana","cpfCnpj":"1","sexo":"F","endereco":{"cidade":"SP"}}`, string(out))

	var appt NewAppointment
	require.NoError(t, json.Unmarshal([]byte(`{"idPaciente":1,"data":"2026-10-20","horaInicio":"10:00","idSala":4}`), &appt))
	assert.Equal(t, int64(1), appt.PatientID)
	assert.JSONEq(t, `4`, string(appt.Extra["idSala"]))
}

func TestDecodeItemsShapes(t *testing.T) {
	items, err := DecodeItems[Appointment](json.RawMessage(`[{"id":1,"status":"AGENDADO"}]`))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, StatusScheduled, items[0].Status)

	items, err = DecodeItems[Appointment](json.RawMessage(`{"mensagem":"sem dados"}`))
	require.NoError(t, err)
	assert.Empty(t, items)

	items, err = DecodeItems[Appointment](nil)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestParseStatus(t *testing.T) {
	for in, want := range map[string]AppointmentStatus{
		"scheduled": StatusScheduled,
		"REMARCADO": StatusRescheduled,
		"cancelled": StatusCanceled,
		" atendido": StatusCompleted,
	} {
		got, err := ParseStatus(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseStatus("pending")
	assert.Error(t, err)
}

func TestAppointmentStatusOpen(t *testing.T) {
	for status, want := range map[AppointmentStatus]bool{
		StatusScheduled:   true,
		StatusRescheduled: true,
		"":                true,
		"EM_ESPERA":       true,
		StatusCanceled:    false,
		"cancelado":       false,
		StatusCompleted:   false,
	} {
		assert.Equal(t, want, status.Open(), string(status))
	}
}
