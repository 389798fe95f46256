package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const uniqueViolation = "23505"

const tenantColumns = `cnpj, clinica_cid, api_key, id_rotulo, id_local, id_origem_paciente, created_at, updated_at`

// PostgresStore keeps tenants in the companies table.
type PostgresStore struct {
	db rowQuerier
}

// NewPostgresStore creates a store backed by pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("tenant: pgx pool required")
	}
	return &PostgresStore{db: pool}
}

func newPostgresStoreWithExec(db rowQuerier) *PostgresStore {
	if db == nil {
		panic("tenant: exec required")
	}
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM companies WHERE cnpj = $1`
	return s.scanOne(ctx, "get", query, id)
}

func (s *PostgresStore) Insert(ctx context.Context, t *Tenant) (*Tenant, error) {
	query := `
		INSERT INTO companies (cnpj, clinica_cid, api_key, id_rotulo, id_local, id_origem_paciente)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + tenantColumns
	return s.scanOne(ctx, "insert", query, t.ID, t.AccountID, t.APIKey, t.LabelID, t.LocationID, t.PatientOriginID)
}

func (s *PostgresStore) Update(ctx context.Context, id string, upd Update) (*Tenant, error) {
	query := `
		UPDATE companies SET
			clinica_cid = COALESCE($2, clinica_cid),
			api_key = COALESCE($3, api_key),
			id_rotulo = COALESCE($4, id_rotulo),
			id_local = COALESCE($5, id_local),
			id_origem_paciente = COALESCE($6, id_origem_paciente),
			updated_at = now()
		WHERE cnpj = $1
		RETURNING ` + tenantColumns
	return s.scanOne(ctx, "update", query, id, upd.AccountID, upd.APIKey, upd.LabelID, upd.LocationID, upd.PatientOriginID)
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	ct, err := s.db.Exec(ctx, `DELETE FROM companies WHERE cnpj = $1`, id)
	if err != nil {
		return fmt.Errorf("tenant: delete: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) scanOne(ctx context.Context, op, query string, args ...any) (*Tenant, error) {
	var t Tenant
	err := s.db.QueryRow(ctx, query, args...).Scan(
		&t.ID,
		&t.AccountID,
		&t.APIKey,
		&t.LabelID,
		&t.LocationID,
		&t.PatientOriginID,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, args[0])
		}
		return nil, fmt.Errorf("tenant: %s: %w", op, err)
	}
	return &t, nil
}
