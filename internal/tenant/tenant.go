// Package tenant models clinic accounts and the directory that stores them.
package tenant

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wolfman30/clinic-mcp-gateway/internal/apperr"
)

// Tenant is one clinic account. ID is the business registration number
// (CNPJ) and is the external lookup key. APIKey is never serialised by
// this type; use View for anything that leaves the process.
type Tenant struct {
	ID              string
	AccountID       string
	APIKey          string
	LabelID         *int64
	LocationID      *int64
	PatientOriginID *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// String keeps fmt verbs from printing the API key.
func (t Tenant) String() string {
	return fmt.Sprintf("tenant{id=%s account_id=%s api_key_length=%d}", t.ID, t.AccountID, len(t.APIKey))
}

// LogValue keeps slog from printing the API key.
func (t Tenant) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", t.ID),
		slog.String("account_id", t.AccountID),
		slog.Int("api_key_length", len(t.APIKey)),
	)
}

// View is the external representation of a tenant.
type View struct {
	ID              string     `json:"cnpj"`
	AccountID       string     `json:"clinica_cid"`
	LabelID         *int64     `json:"id_rotulo,omitempty"`
	LocationID      *int64     `json:"id_local,omitempty"`
	PatientOriginID *int64     `json:"id_origem_paciente,omitempty"`
	APIKeyLength    int        `json:"api_key_length"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

// View returns the safe representation of t.
func (t *Tenant) View() View {
	v := View{
		ID:              t.ID,
		AccountID:       t.AccountID,
		LabelID:         t.LabelID,
		LocationID:      t.LocationID,
		PatientOriginID: t.PatientOriginID,
		APIKeyLength:    len(t.APIKey),
	}
	if !t.CreatedAt.IsZero() {
		created := t.CreatedAt
		v.CreatedAt = &created
	}
	if !t.UpdatedAt.IsZero() {
		updated := t.UpdatedAt
		v.UpdatedAt = &updated
	}
	return v
}

// CreateRequest carries the fields of a new tenant. cnn_id is accepted as
// an alias of clinica_cid.
type CreateRequest struct {
	ID              string `json:"cnpj"`
	AccountID       string `json:"clinica_cid"`
	AccountIDAlias  string `json:"cnn_id,omitempty"`
	APIKey          string `json:"api_key"`
	LabelID         *int64 `json:"id_rotulo,omitempty"`
	LocationID      *int64 `json:"id_local,omitempty"`
	PatientOriginID *int64 `json:"id_origem_paciente,omitempty"`
}

// Tenant validates the request and converts it into a Tenant.
func (r CreateRequest) Tenant() (*Tenant, error) {
	accountID := strings.TrimSpace(r.AccountID)
	if accountID == "" {
		accountID = strings.TrimSpace(r.AccountIDAlias)
	}
	t := &Tenant{
		ID:              NormalizeID(r.ID),
		AccountID:       accountID,
		APIKey:          strings.TrimSpace(r.APIKey),
		LabelID:         r.LabelID,
		LocationID:      r.LocationID,
		PatientOriginID: r.PatientOriginID,
	}
	var missing []string
	if t.ID == "" {
		missing = append(missing, "cnpj")
	}
	if t.AccountID == "" {
		missing = append(missing, "clinica_cid")
	}
	if t.APIKey == "" {
		missing = append(missing, "api_key")
	}
	if len(missing) > 0 {
		return nil, apperr.Validation("tenant.create", "missing required fields: "+strings.Join(missing, ", "))
	}
	return t, nil
}

// Update is a partial update; nil fields are left unchanged.
type Update struct {
	AccountID       *string `json:"clinica_cid,omitempty"`
	APIKey          *string `json:"api_key,omitempty"`
	LabelID         *int64  `json:"id_rotulo,omitempty"`
	LocationID      *int64  `json:"id_local,omitempty"`
	PatientOriginID *int64  `json:"id_origem_paciente,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u Update) Empty() bool {
	return u.AccountID == nil && u.APIKey == nil && u.LabelID == nil && u.LocationID == nil && u.PatientOriginID == nil
}

// Validate rejects updates that would blank a required field.
func (u Update) Validate() error {
	if u.Empty() {
		return apperr.Validation("tenant.update", "no fields to update")
	}
	if u.AccountID != nil && strings.TrimSpace(*u.AccountID) == "" {
		return apperr.Validation("tenant.update", "clinica_cid cannot be empty")
	}
	if u.APIKey != nil && strings.TrimSpace(*u.APIKey) == "" {
		return apperr.Validation("tenant.update", "api_key cannot be empty")
	}
	return nil
}

// Trimmed returns u with surrounding whitespace removed from the string
// fields, so every store persists the same credential.
func (u Update) Trimmed() Update {
	if u.AccountID != nil {
		v := strings.TrimSpace(*u.AccountID)
		u.AccountID = &v
	}
	if u.APIKey != nil {
		v := strings.TrimSpace(*u.APIKey)
		u.APIKey = &v
	}
	return u
}

// Apply copies the set fields of u onto t.
func (u Update) Apply(t *Tenant) {
	if u.AccountID != nil {
		t.AccountID = strings.TrimSpace(*u.AccountID)
	}
	if u.APIKey != nil {
		t.APIKey = strings.TrimSpace(*u.APIKey)
	}
	if u.LabelID != nil {
		t.LabelID = u.LabelID
	}
	if u.LocationID != nil {
		t.LocationID = u.LocationID
	}
	if u.PatientOriginID != nil {
		t.PatientOriginID = u.PatientOriginID
	}
}

// NormalizeID strips CNPJ punctuation ("30.747.815/0001-08") and spaces.
func NormalizeID(id string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(id) {
		switch r {
		case '.', '/', '-', ' ':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
