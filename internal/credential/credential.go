// Package credential derives clinic API authorization headers from a
// tenant's stored secret. It performs no I/O.
package credential

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/wolfman30/clinic-mcp-gateway/internal/apperr"
	"github.com/wolfman30/clinic-mcp-gateway/internal/tenant"
)

const (
	// Principal is the fixed service principal the clinic API expects.
	Principal = "apiCnn"

	HeaderAuthorization = "Authorization"
	HeaderTenantScope   = "clinicaNasNuvens-cid"
	HeaderAccept        = "Accept"
)

// Headers is the per-tenant header set attached to every clinic API call.
type Headers struct {
	Authorization string
	TenantScope   string
}

// Apply sets the headers on h.
func (c Headers) Apply(h http.Header) {
	h.Set(HeaderAuthorization, c.Authorization)
	h.Set(HeaderTenantScope, c.TenantScope)
	h.Set(HeaderAccept, "application/json")
}

// String hides the encoded credential.
func (c Headers) String() string {
	return "credential.Headers{tenant_scope=" + c.TenantScope + "}"
}

// Build derives the header set for t. It fails only when the secret is absent.
func Build(t *tenant.Tenant) (Headers, error) {
	if t == nil || strings.TrimSpace(t.APIKey) == "" {
		return Headers{}, apperr.New(apperr.KindInvalidTenantCredential, "credential.build", "tenant api secret is missing")
	}
	token := base64.StdEncoding.EncodeToString([]byte(Principal + ":" + t.APIKey))
	return Headers{
		Authorization: "Basic " + token,
		TenantScope:   t.AccountID,
	}, nil
}

// Diagnostics is the redacted credential summary exposed by debug endpoints.
type Diagnostics struct {
	TenantID      string `json:"cnpj"`
	AccountID     string `json:"cnn_id"`
	APIKeyLength  int    `json:"api_key_length"`
	Principal     string `json:"principal"`
	SecretPreview string `json:"secret_preview"`
	Scheme        string `json:"scheme"`
	Valid         bool   `json:"valid"`
}

// Diagnose summarises the credential for t without exposing the secret or
// its encoded form.
func Diagnose(t *tenant.Tenant) Diagnostics {
	d := Diagnostics{
		TenantID:     t.ID,
		AccountID:    t.AccountID,
		APIKeyLength: len(t.APIKey),
		Principal:    Principal,
		Scheme:       "Basic",
	}
	d.SecretPreview = Mask(t.APIKey)
	_, err := Build(t)
	d.Valid = err == nil
	return d
}

// Mask keeps at most the first and last two characters of s, and only when
// s is long enough that the hidden part dominates.
func Mask(s string) string {
	switch n := len(s); {
	case n == 0:
		return ""
	case n < 12:
		return strings.Repeat("*", n)
	default:
		return s[:2] + strings.Repeat("*", n-4) + s[n-2:]
	}
}
