// Package apperr defines the error taxonomy shared by the gateway's
// components. Collaborator failures are wrapped into *Error values so the
// orchestrator and HTTP layer can classify them without string matching.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind string

const (
	KindBadRequest              Kind = "bad_request"
	KindNotFound                Kind = "not_found"
	KindInvalidTenantCredential Kind = "invalid_tenant_credential"
	KindValidation              Kind = "validation_error"
	KindUpstreamUnavailable     Kind = "upstream_unavailable"
	KindUpstreamClinic          Kind = "upstream_clinic_error"
	KindDirectory               Kind = "directory_error"
	KindInternal                Kind = "internal"
)

// Sentinels for errors.Is; they match any *Error of the same Kind.
var (
	ErrBadRequest              = &Error{Kind: KindBadRequest}
	ErrNotFound                = &Error{Kind: KindNotFound}
	ErrInvalidTenantCredential = &Error{Kind: KindInvalidTenantCredential}
	ErrValidation              = &Error{Kind: KindValidation}
	ErrUpstreamUnavailable     = &Error{Kind: KindUpstreamUnavailable}
	ErrUpstreamClinic          = &Error{Kind: KindUpstreamClinic}
	ErrDirectory               = &Error{Kind: KindDirectory}
)

// Error is a classified failure. Status and Body are only set for
// upstream clinic errors and carry the upstream response unchanged.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Status  int
	Body    string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Kind == KindUpstreamClinic && e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinel errors by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// New builds an error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap classifies err under kind. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// BadRequest reports a malformed inbound event or request.
func BadRequest(op, message string) *Error { return New(KindBadRequest, op, message) }

// NotFound reports a missing tenant or downstream entity.
func NotFound(op, message string) *Error { return New(KindNotFound, op, message) }

// Validation reports missing or invalid caller-supplied fields.
func Validation(op, message string) *Error { return New(KindValidation, op, message) }

// Unavailable reports a connectivity failure towards a collaborator.
func Unavailable(op string, err error) *Error {
	return &Error{Kind: KindUpstreamUnavailable, Op: op, Err: err}
}

// UpstreamClinic reports a non-success clinic API response.
func UpstreamClinic(op string, status int, body string) *Error {
	return &Error{Kind: KindUpstreamClinic, Op: op, Message: "clinic api returned an error", Status: status, Body: body}
}

// KindOf returns the Kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps err onto the status code management endpoints answer with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindBadRequest, KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidTenantCredential:
		return http.StatusUnprocessableEntity
	case KindUpstreamClinic, KindDirectory:
		return http.StatusBadGateway
	case KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Payload is the JSON error body returned to HTTP callers.
type Payload struct {
	Error          string `json:"error"`
	Kind           Kind   `json:"kind"`
	UpstreamStatus int    `json:"upstream_status,omitempty"`
	UpstreamBody   string `json:"upstream_body,omitempty"`
}

// ToPayload renders err for external callers. Unclassified errors collapse
// to a generic message so internal details do not leak.
func ToPayload(err error) Payload {
	var e *Error
	if !errors.As(err, &e) {
		return Payload{Error: "internal server error", Kind: KindInternal}
	}
	p := Payload{Error: e.Error(), Kind: e.Kind}
	if e.Kind == KindUpstreamClinic {
		p.UpstreamStatus = e.Status
		p.UpstreamBody = e.Body
	}
	return p
}
