package clinicapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/wolfman30/clinic-mcp-gateway/internal/apperr"
)

// GetAvailability lists a provider's free slots between From and To.
func (c *Client) GetAvailability(ctx context.Context, a AvailabilityQuery) (json.RawMessage, error) {
	if a.ProviderID <= 0 || a.AttendanceType <= 0 || a.From == "" || a.To == "" {
		return nil, apperr.Validation("clinicapi.get_availability", "idExecutorAgenda, codTipoAtendimento, data and dataFim are required")
	}
	q := url.Values{
		"idExecutorAgenda":   {itoa(a.ProviderID)},
		"codTipoAtendimento": {itoa(a.AttendanceType)},
		"data":               {a.From},
		"dataFim":            {a.To},
	}
	return c.get(ctx, "get_availability", "/executor-agenda/disponibilidade", q)
}

// CreateAppointment books an appointment. Tenant default location and
// label ids fill in when the payload has none.
func (c *Client) CreateAppointment(ctx context.Context, a NewAppointment) (json.RawMessage, error) {
	if err := a.validate(); err != nil {
		return nil, err
	}
	if a.LocationID == nil {
		a.LocationID = c.scope.Defaults.LocationID
	}
	if a.LabelID == nil {
		a.LabelID = c.scope.Defaults.LabelID
	}
	return c.do(ctx, "create_appointment", http.MethodPost, "/agenda/novo", nil, a)
}

// RescheduleAppointment moves an appointment. Missing fields fail with a
// validation error before any request is made.
func (c *Client) RescheduleAppointment(ctx context.Context, appointmentID int64, r Reschedule) (json.RawMessage, error) {
	if appointmentID <= 0 {
		return nil, apperr.Validation("clinicapi.reschedule_appointment", "appointment id is required")
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/agenda/%d/remarcar", appointmentID)
	return c.do(ctx, "reschedule_appointment", http.MethodPost, path, nil, r)
}

// SetAppointmentStatus transitions an appointment to status.
func (c *Client) SetAppointmentStatus(ctx context.Context, appointmentID int64, status AppointmentStatus) (json.RawMessage, error) {
	if appointmentID <= 0 {
		return nil, apperr.Validation("clinicapi.set_appointment_status", "idAgenda is required")
	}
	parsed, err := ParseStatus(string(status))
	if err != nil {
		return nil, err
	}
	body := statusChange{AppointmentID: appointmentID, Status: parsed}
	return c.do(ctx, "set_appointment_status", http.MethodPut, "/agenda/alteracao-status", nil, body)
}

// ListAppointments lists appointments, optionally for one patient and date
// range.
func (c *Client) ListAppointments(ctx context.Context, q AppointmentQuery) (json.RawMessage, error) {
	basis := strings.TrimSpace(q.DateBasis)
	if basis == "" {
		basis = DateBasisAppointment
	}
	values := url.Values{"dataPor": {basis}}
	setIfPositive(values, "codigoPaciente", q.PatientID)
	setIfNotEmpty(values, "dataInicial", q.From)
	setIfNotEmpty(values, "dataFinal", q.To)
	return c.get(ctx, "list_appointments", "/agenda/lista", values)
}
