package clinicapi

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wolfman30/clinic-mcp-gateway/internal/apperr"
)

// AppointmentStatus is the closed set of appointment states the upstream
// system accepts. The upstream value is authoritative.
type AppointmentStatus string

const (
	StatusScheduled   AppointmentStatus = "AGENDADO"
	StatusRescheduled AppointmentStatus = "REMARCADO"
	StatusCanceled    AppointmentStatus = "CANCELADO"
	StatusCompleted   AppointmentStatus = "ATENDIDO"
)

var statusAliases = map[string]AppointmentStatus{
	"agendado":    StatusScheduled,
	"scheduled":   StatusScheduled,
	"remarcado":   StatusRescheduled,
	"rescheduled": StatusRescheduled,
	"cancelado":   StatusCanceled,
	"canceled":    StatusCanceled,
	"cancelled":   StatusCanceled,
	"atendido":    StatusCompleted,
	"completed":   StatusCompleted,
}

// ParseStatus accepts upstream values and their English names.
func ParseStatus(s string) (AppointmentStatus, error) {
	if status, ok := statusAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return status, nil
	}
	return "", apperr.Validation("clinicapi.parse_status", fmt.Sprintf("unknown appointment status %q", s))
}

// Open reports whether an appointment in status s can still be
// rescheduled or canceled. Empty or unrecognised values count as open.
func (s AppointmentStatus) Open() bool {
	status, err := ParseStatus(string(s))
	if err != nil {
		return true
	}
	return status != StatusCanceled && status != StatusCompleted
}

// DateBasisAppointment filters appointment lists by the appointment date.
const DateBasisAppointment = "AGENDAMENTO"

// PatientFilter narrows a patient search. Empty fields are not sent.
type PatientFilter struct {
	Name  string
	Email string
	Phone string
}

// NewPatient is the create-patient payload.
type NewPatient struct {
	Name            string                     `json:"nome"`
	TaxID           string                     `json:"cpfCnpj"`
	BirthDate       string                     `json:"dataNascimento,omitempty"`
	MobilePhone     string                     `json:"telefoneCelular,omitempty"`
	Email           string                     `json:"email,omitempty"`
	PatientOriginID *int64                     `json:"idOrigemPaciente,omitempty"`
	Extra           map[string]json.RawMessage `json:"-"`
}

func (p NewPatient) MarshalJSON() ([]byte, error) {
	type plain NewPatient
	base, err := json.Marshal(plain(p))
	if err != nil {
		return nil, err
	}
	return withExtra(base, p.Extra)
}

func (p *NewPatient) UnmarshalJSON(data []byte) error {
	type plain NewPatient
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := extraFields(data, v)
	if err != nil {
		return err
	}
	*p = NewPatient(v)
	p.Extra = extra
	return nil
}

func (p NewPatient) validate() error {
	var missing []string
	if strings.TrimSpace(p.Name) == "" {
		missing = append(missing, "nome")
	}
	if strings.TrimSpace(p.TaxID) == "" {
		missing = append(missing, "cpfCnpj")
	}
	if len(missing) > 0 {
		return apperr.Validation("clinicapi.create_patient", "missing required fields: "+strings.Join(missing, ", "))
	}
	return nil
}

// Patient is a patient record as returned by the clinic API.
type Patient struct {
	ID          int64                      `json:"id"`
	Name        string                     `json:"nome"`
	TaxID       string                     `json:"cpfCnpj"`
	BirthDate   string                     `json:"dataNascimento,omitempty"`
	MobilePhone string                     `json:"telefoneCelular,omitempty"`
	Email       string                     `json:"email,omitempty"`
	Insurances  []json.RawMessage          `json:"convenios,omitempty"`
	Extra       map[string]json.RawMessage `json:"-"`
}

func (p Patient) MarshalJSON() ([]byte, error) {
	type plain Patient
	base, err := json.Marshal(plain(p))
	if err != nil {
		return nil, err
	}
	return withExtra(base, p.Extra)
}

func (p *Patient) UnmarshalJSON(data []byte) error {
	type plain Patient
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := extraFields(data, v)
	if err != nil {
		return err
	}
	*p = Patient(v)
	p.Extra = extra
	return nil
}

// ProviderFilter narrows the provider listing. Only active providers are
// ever listed.
type ProviderFilter struct {
	SpecialtyID     *int64
	InsuranceTypeID *int64
	Name            string
}

// ProcedureTypeFilter narrows the procedure type listing.
type ProcedureTypeFilter struct {
	Name       string
	ActiveOnly bool
}

// AvailabilityQuery asks for a provider's free slots in [From, To].
type AvailabilityQuery struct {
	ProviderID     int64
	AttendanceType int64
	From           string
	To             string
}

// NewAppointment is the create-appointment payload.
type NewAppointment struct {
	PatientID          int64                      `json:"idPaciente"`
	SpecialtyID        int64                      `json:"idEspecialidade,omitempty"`
	ProviderID         int64                      `json:"idExecutor,omitempty"`
	ConsultationTypeID int64                      `json:"idTipoConsulta,omitempty"`
	Date               string                     `json:"data"`
	StartTime          string                     `json:"horaInicio"`
	EndTime            string                     `json:"horaFim,omitempty"`
	Status             AppointmentStatus          `json:"status,omitempty"`
	Notes              string                     `json:"observacoes,omitempty"`
	LocationID         *int64                     `json:"idLocal,omitempty"`
	LabelID            *int64                     `json:"idRotulo,omitempty"`
	Extra              map[string]json.RawMessage `json:"-"`
}

func (a NewAppointment) MarshalJSON() ([]byte, error) {
	type plain NewAppointment
	base, err := json.Marshal(plain(a))
	if err != nil {
		return nil, err
	}
	return withExtra(base, a.Extra)
}

func (a *NewAppointment) UnmarshalJSON(data []byte) error {
	type plain NewAppointment
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := extraFields(data, v)
	if err != nil {
		return err
	}
	*a = NewAppointment(v)
	a.Extra = extra
	return nil
}

func (a NewAppointment) validate() error {
	var missing []string
	if a.PatientID == 0 {
		missing = append(missing, "idPaciente")
	}
	if strings.TrimSpace(a.Date) == "" {
		missing = append(missing, "data")
	}
	if strings.TrimSpace(a.StartTime) == "" {
		missing = append(missing, "horaInicio")
	}
	if len(missing) > 0 {
		return apperr.Validation("clinicapi.create_appointment", "missing required fields: "+strings.Join(missing, ", "))
	}
	return nil
}

// Appointment is an appointment record as returned by the clinic API.
type Appointment struct {
	ID                 int64                      `json:"id"`
	PatientID          int64                      `json:"idPaciente,omitempty"`
	SpecialtyID        int64                      `json:"idEspecialidade,omitempty"`
	ProviderID         int64                      `json:"idExecutor,omitempty"`
	ConsultationTypeID int64                      `json:"idTipoConsulta,omitempty"`
	Date               string                     `json:"data,omitempty"`
	StartTime          string                     `json:"horaInicio,omitempty"`
	EndTime            string                     `json:"horaFim,omitempty"`
	Status             AppointmentStatus          `json:"status,omitempty"`
	Notes              string                     `json:"observacoes,omitempty"`
	Extra              map[string]json.RawMessage `json:"-"`
}

func (a Appointment) MarshalJSON() ([]byte, error) {
	type plain Appointment
	base, err := json.Marshal(plain(a))
	if err != nil {
		return nil, err
	}
	return withExtra(base, a.Extra)
}

func (a *Appointment) UnmarshalJSON(data []byte) error {
	type plain Appointment
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := extraFields(data, v)
	if err != nil {
		return err
	}
	*a = Appointment(v)
	a.Extra = extra
	return nil
}

// Reschedule moves an appointment. Every field is required.
type Reschedule struct {
	NewDate  string `json:"novaData"`
	NewStart string `json:"novoHorarioInicial"`
	NewEnd   string `json:"novoHorarioFinal"`
	Reason   string `json:"motivo"`
}

// Validate lists every missing field.
func (r Reschedule) Validate() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"novaData", r.NewDate},
		{"novoHorarioInicial", r.NewStart},
		{"novoHorarioFinal", r.NewEnd},
		{"motivo", r.Reason},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return apperr.Validation("clinicapi.reschedule_appointment", "missing required fields: "+strings.Join(missing, ", "))
	}
	return nil
}

type statusChange struct {
	AppointmentID int64             `json:"idAgenda"`
	Status        AppointmentStatus `json:"status"`
}

type insuranceAssociation struct {
	PatientID       int64 `json:"idPaciente"`
	InsuranceTypeID int64 `json:"idTipoConvenio"`
}

// AppointmentQuery filters the appointment listing. DateBasis defaults to
// DateBasisAppointment.
type AppointmentQuery struct {
	PatientID *int64
	From      string
	To        string
	DateBasis string
}

// PricingQuery asks for a procedure's sale price at a point in time.
type PricingQuery struct {
	ProcedureTypeID int64
	InsuranceTypeID int64
	Date            string
	Time            string
}
