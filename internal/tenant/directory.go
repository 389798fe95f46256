package tenant

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/wolfman30/clinic-mcp-gateway/internal/apperr"
	"github.com/wolfman30/clinic-mcp-gateway/pkg/logging"
)

// Directory fetches and manages tenants on top of a Store and classifies
// store failures into NotFound, UpstreamUnavailable or DirectoryError.
// It performs no retries.
type Directory struct {
	store  Store
	logger *logging.Logger
}

// NewDirectory wraps store.
func NewDirectory(store Store, logger *logging.Logger) *Directory {
	if store == nil {
		panic("tenant: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Directory{store: store, logger: logger}
}

// Get resolves a tenant by its registration number.
func (d *Directory) Get(ctx context.Context, id string) (*Tenant, error) {
	const op = "tenant.get"
	key := NormalizeID(id)
	if key == "" {
		return nil, apperr.BadRequest(op, "tenant identifier is required")
	}
	t, err := d.store.Get(ctx, key)
	if err != nil {
		return nil, d.classify(op, key, err)
	}
	return t, nil
}

// Create inserts a new tenant.
func (d *Directory) Create(ctx context.Context, req CreateRequest) (*Tenant, error) {
	const op = "tenant.create"
	t, err := req.Tenant()
	if err != nil {
		return nil, err
	}
	created, err := d.store.Insert(ctx, t)
	if err != nil {
		return nil, d.classify(op, t.ID, err)
	}
	d.logger.Info("tenant created", "tenant_id", created.ID, logging.Redacted("api_key", created.APIKey))
	return created, nil
}

// Update applies a partial update to an existing tenant.
func (d *Directory) Update(ctx context.Context, id string, upd Update) (*Tenant, error) {
	const op = "tenant.update"
	key := NormalizeID(id)
	if key == "" {
		return nil, apperr.BadRequest(op, "tenant identifier is required")
	}
	if err := upd.Validate(); err != nil {
		return nil, err
	}
	upd = upd.Trimmed()
	updated, err := d.store.Update(ctx, key, upd)
	if err != nil {
		return nil, d.classify(op, key, err)
	}
	d.logger.Info("tenant updated", "tenant_id", key, "api_key_rotated", upd.APIKey != nil)
	return updated, nil
}

// Delete removes a tenant.
func (d *Directory) Delete(ctx context.Context, id string) error {
	const op = "tenant.delete"
	key := NormalizeID(id)
	if key == "" {
		return apperr.BadRequest(op, "tenant identifier is required")
	}
	if err := d.store.Delete(ctx, key); err != nil {
		return d.classify(op, key, err)
	}
	d.logger.Info("tenant deleted", "tenant_id", key)
	return nil
}

func (d *Directory) classify(op, id string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return apperr.NotFound(op, fmt.Sprintf("tenant %s not found", id))
	case errors.Is(err, ErrAlreadyExists):
		return apperr.Validation(op, fmt.Sprintf("tenant %s already exists", id))
	case isUnavailable(err):
		d.logger.Error("tenant directory unreachable", "operation", op, "tenant_id", id, "error", err)
		return apperr.Unavailable(op, err)
	default:
		d.logger.Error("tenant directory error", "operation", op, "tenant_id", id, "error", err)
		return &apperr.Error{Kind: apperr.KindDirectory, Op: op, Message: err.Error(), Err: err}
	}
}

func isUnavailable(err error) bool {
	if errors.Is(err, ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
