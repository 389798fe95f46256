// Package conversation holds the per-turn conversation snapshot forwarded
// to the decision service. The snapshot is rebuilt every turn from the
// tenant directory and the clinic API and is never persisted here.
package conversation

import (
	"encoding/json"
	"fmt"

	"github.com/wolfman30/clinic-mcp-gateway/internal/clinicapi"
	"github.com/wolfman30/clinic-mcp-gateway/internal/tenant"
)

// StageStart is the stage of a conversation with no recorded progress.
const StageStart = "inicio"

// Context is the conversation snapshot of one turn. The tenant is carried
// in its external View form so the API secret never leaves the process.
type Context struct {
	Tenant          tenant.View            `json:"clinica"`
	Phone           string                 `json:"telefone,omitempty"`
	Patient         *clinicapi.Patient     `json:"paciente,omitempty"`
	LastAppointment *clinicapi.Appointment `json:"ultimo_agendamento,omitempty"`
	Stage           string                 `json:"etapa_atual"`
	Collected       map[string]any         `json:"dados_coletados"`
}

// New starts a snapshot for t.
func New(t *tenant.Tenant, phone string) *Context {
	return &Context{
		Tenant:    t.View(),
		Phone:     phone,
		Stage:     StageStart,
		Collected: make(map[string]any),
	}
}

// Merge copies data into the collected bag, overwriting existing keys.
func (c *Context) Merge(data map[string]any) {
	if c.Collected == nil {
		c.Collected = make(map[string]any, len(data))
	}
	for k, v := range data {
		c.Collected[k] = v
	}
}

// SetStage moves the stage marker; blank stages are ignored.
func (c *Context) SetStage(stage string) {
	if stage != "" {
		c.Stage = stage
	}
}

// Decode unmarshals the collected value under key into dst. It reports
// false when the key is absent or null.
func (c *Context) Decode(key string, dst any) (bool, error) {
	v, ok := c.Collected[key]
	if !ok || v == nil {
		return false, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return true, fmt.Errorf("conversation: encode %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return true, fmt.Errorf("conversation: decode %s: %w", key, err)
	}
	return true, nil
}

// Map renders the snapshot as a generic JSON object for collaborators that
// take an untyped context.
func (c *Context) Map() (map[string]any, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
