package decision

import (
	"encoding/json"
	"strings"
)

// Action is what the decision service asks the gateway to do. The set is
// open; values the gateway does not know normalise to ActionUnknown.
type Action string

const (
	ActionNone       Action = "none"
	ActionSchedule   Action = "schedule-appointment"
	ActionReschedule Action = "reschedule-appointment"
	ActionCancel     Action = "cancel-appointment"
	ActionUnknown    Action = "unknown"
)

var actionAliases = map[string]Action{
	"":                       ActionNone,
	"none":                   ActionNone,
	"nenhuma":                ActionNone,
	"schedule-appointment":   ActionSchedule,
	"schedule_appointment":   ActionSchedule,
	"agendar_consulta":       ActionSchedule,
	"reschedule-appointment": ActionReschedule,
	"reschedule_appointment": ActionReschedule,
	"remarcar_consulta":      ActionReschedule,
	"cancel-appointment":     ActionCancel,
	"cancel_appointment":     ActionCancel,
	"cancelar_consulta":      ActionCancel,
}

// ParseAction maps a raw action string onto a known Action.
func ParseAction(raw string) Action {
	if a, ok := actionAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return a
	}
	return ActionUnknown
}

// Directive is the decision service's answer for one inbound message.
type Directive struct {
	Action       Action
	RawAction    string
	ResponseText string
	Stage        string
	Data         map[string]any
}

type wireDirective struct {
	Action       *string        `json:"action"`
	ResponseText *string        `json:"response_text"`
	Response     *string        `json:"response"`
	Stage        string         `json:"stage"`
	Data         map[string]any `json:"data"`
}

// UnmarshalJSON accepts the reply under "response_text" or "response".
func (d *Directive) UnmarshalJSON(data []byte) error {
	var w wireDirective
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	raw := ""
	if w.Action != nil {
		raw = *w.Action
	}
	text := ""
	switch {
	case w.ResponseText != nil:
		text = *w.ResponseText
	case w.Response != nil:
		text = *w.Response
	}
	*d = Directive{
		Action:       ParseAction(raw),
		RawAction:    raw,
		ResponseText: strings.TrimSpace(text),
		Stage:        w.Stage,
		Data:         w.Data,
	}
	return nil
}
