package orchestrator

import (
	"context"
	"fmt"

	"github.com/wolfman30/clinic-mcp-gateway/internal/apperr"
	"github.com/wolfman30/clinic-mcp-gateway/internal/clinicapi"
	"github.com/wolfman30/clinic-mcp-gateway/internal/conversation"
)

// Keys under which the decision service leaves action payloads in the
// collected data.
const (
	collectedAppointment = "appointment"
	collectedReschedule  = "reschedule"
	collectedCancel      = "cancel"
)

// actionHandler performs one directive against the clinic API. It reports
// false when the context holds nothing to act on.
type actionHandler func(ctx context.Context, client *clinicapi.Client, convCtx *conversation.Context) (bool, error)

func scheduleAppointment(ctx context.Context, client *clinicapi.Client, convCtx *conversation.Context) (bool, error) {
	var appt clinicapi.NewAppointment
	ok, err := convCtx.Decode(collectedAppointment, &appt)
	if err != nil {
		return true, apperr.Validation("orchestrator.schedule_appointment", err.Error())
	}
	if !ok {
		return false, nil
	}
	if appt.PatientID == 0 && convCtx.Patient != nil {
		appt.PatientID = convCtx.Patient.ID
	}
	if _, err := client.CreateAppointment(ctx, appt); err != nil {
		return true, err
	}
	return true, nil
}

type reschedulePayload struct {
	AppointmentID int64 `json:"appointment_id"`
	ScheduleID    int64 `json:"idAgenda"`
	clinicapi.Reschedule
}

func rescheduleAppointment(ctx context.Context, client *clinicapi.Client, convCtx *conversation.Context) (bool, error) {
	var p reschedulePayload
	ok, err := convCtx.Decode(collectedReschedule, &p)
	if err != nil {
		return true, apperr.Validation("orchestrator.reschedule_appointment", err.Error())
	}
	if !ok {
		return false, nil
	}
	if err := p.Reschedule.Validate(); err != nil {
		return true, err
	}
	id := firstID(p.AppointmentID, p.ScheduleID, lastAppointmentID(convCtx))
	if id == 0 {
		return true, apperr.Validation("orchestrator.reschedule_appointment", "appointment id is required")
	}
	if _, err := client.RescheduleAppointment(ctx, id, p.Reschedule); err != nil {
		return true, err
	}
	return true, nil
}

type cancelPayload struct {
	AppointmentID int64 `json:"appointment_id"`
	ScheduleID    int64 `json:"idAgenda"`
}

func cancelAppointment(ctx context.Context, client *clinicapi.Client, convCtx *conversation.Context) (bool, error) {
	var p cancelPayload
	if _, err := convCtx.Decode(collectedCancel, &p); err != nil {
		return true, apperr.Validation("orchestrator.cancel_appointment", err.Error())
	}
	id := firstID(p.AppointmentID, p.ScheduleID, lastAppointmentID(convCtx))
	if id == 0 {
		return false, nil
	}
	if _, err := client.SetAppointmentStatus(ctx, id, clinicapi.StatusCanceled); err != nil {
		return true, fmt.Errorf("cancel appointment %d: %w", id, err)
	}
	return true, nil
}

// lastAppointmentID is the fallback target for reschedule and cancel. A
// canceled or completed appointment is never a target.
func lastAppointmentID(convCtx *conversation.Context) int64 {
	if convCtx.LastAppointment == nil || !convCtx.LastAppointment.Status.Open() {
		return 0
	}
	return convCtx.LastAppointment.ID
}

func firstID(ids ...int64) int64 {
	for _, id := range ids {
		if id > 0 {
			return id
		}
	}
	return 0
}
