package tenant

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by stores when no tenant matches the key.
	ErrNotFound = errors.New("tenant: not found")

	// ErrAlreadyExists is returned by Insert when the key is taken.
	ErrAlreadyExists = errors.New("tenant: already exists")

	// ErrUnavailable may be wrapped by stores to flag connectivity failures
	// their driver does not expose as net errors.
	ErrUnavailable = errors.New("tenant: store unavailable")
)

// Store is a keyed record store for tenants.
type Store interface {
	Get(ctx context.Context, id string) (*Tenant, error)
	Insert(ctx context.Context, t *Tenant) (*Tenant, error)
	Update(ctx context.Context, id string, upd Update) (*Tenant, error)
	Delete(ctx context.Context, id string) error
}
