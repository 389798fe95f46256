package conversation

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/wolfman30/clinic-mcp-gateway/internal/clinicapi"
	"github.com/wolfman30/clinic-mcp-gateway/internal/tenant"
	"github.com/wolfman30/clinic-mcp-gateway/pkg/logging"
)

// PatientSource is the part of the clinic API the builder reads from.
type PatientSource interface {
	SearchPatients(ctx context.Context, f clinicapi.PatientFilter) (json.RawMessage, error)
	ListAppointments(ctx context.Context, q clinicapi.AppointmentQuery) (json.RawMessage, error)
}

// Builder assembles the snapshot of a turn.
type Builder struct {
	resolvePatient bool
	logger         *logging.Logger
}

// NewBuilder returns a builder. With resolvePatient set, the builder looks
// the sender up as a patient and attaches that patient's latest
// appointment.
func NewBuilder(resolvePatient bool, logger *logging.Logger) *Builder {
	if logger == nil {
		logger = logging.Default()
	}
	return &Builder{resolvePatient: resolvePatient, logger: logger}
}

// Build never fails: patient enrichment is best effort and lookup errors
// only leave the optional slots empty.
func (b *Builder) Build(ctx context.Context, t *tenant.Tenant, phone string, src PatientSource) *Context {
	c := New(t, phone)
	if !b.resolvePatient || src == nil || phone == "" {
		return c
	}

	raw, err := src.SearchPatients(ctx, clinicapi.PatientFilter{Phone: phone})
	if err != nil {
		b.logger.Warn("patient lookup failed", "tenant_id", t.ID, "error", err)
		return c
	}
	patients, err := clinicapi.DecodeItems[clinicapi.Patient](raw)
	if err != nil || len(patients) == 0 {
		return c
	}
	c.Patient = &patients[0]

	patientID := c.Patient.ID
	raw, err = src.ListAppointments(ctx, clinicapi.AppointmentQuery{PatientID: &patientID})
	if err != nil {
		b.logger.Warn("appointment lookup failed", "tenant_id", t.ID, "error", err)
		return c
	}
	appointments, err := clinicapi.DecodeItems[clinicapi.Appointment](raw)
	if err != nil {
		return c
	}
	c.LastAppointment = latest(appointments)
	return c
}

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"2006-01-02",
	"02/01/2006",
}

func appointmentTime(a clinicapi.Appointment) time.Time {
	for _, layout := range dateLayouts {
		value := a.Date
		if len(layout) > 10 {
			value = a.Date + " " + a.StartTime
		}
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// latest picks the open appointment with the greatest date and start
// time, or the greatest overall when none is open. Unparseable dates sort
// first; ties keep upstream order.
func latest(items []clinicapi.Appointment) *clinicapi.Appointment {
	if len(items) == 0 {
		return nil
	}
	var open []clinicapi.Appointment
	for _, a := range items {
		if a.Status.Open() {
			open = append(open, a)
		}
	}
	if len(open) > 0 {
		items = open
	}
	sorted := make([]clinicapi.Appointment, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return appointmentTime(sorted[i]).Before(appointmentTime(sorted[j]))
	})
	return &sorted[len(sorted)-1]
}
