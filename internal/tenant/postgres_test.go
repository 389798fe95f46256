package tenant

import (
	"context"
	"errors"
	"testing"
	"time"

	pgx "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

var tenantRowColumns = []string{"cnpj", "clinica_cid", "api_key", "id_rotulo", "id_local", "id_origem_paciente", "created_at", "updated_at"}

func TestPostgresStoreGet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newPostgresStoreWithExec(mock)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT cnpj, clinica_cid, api_key").WithArgs("30747815000108").
		WillReturnRows(pgxmock.NewRows(tenantRowColumns).AddRow("30747815000108", "cid-1", "secret", int64Ptr(2), (*int64)(nil), (*int64)(nil), now, now))
	got, err := store.Get(context.Background(), "30747815000108")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "30747815000108" || got.AccountID != "cid-1" || got.APIKey != "secret" {
		t.Fatalf("unexpected tenant %+v", got)
	}
	if got.LabelID == nil || *got.LabelID != 2 || got.LocationID != nil {
		t.Fatalf("unexpected optional ids label=%v location=%v", got.LabelID, got.LocationID)
	}

	mock.ExpectQuery("SELECT cnpj, clinica_cid, api_key").WithArgs("missing").WillReturnError(pgx.ErrNoRows)
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStoreInsertUpdateDelete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newPostgresStoreWithExec(mock)
	now := time.Now().UTC()
	tn := &Tenant{ID: "30747815000108", AccountID: "cid-1", APIKey: "secret"}

	mock.ExpectQuery("INSERT INTO companies").
		WithArgs("30747815000108", "cid-1", "secret", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(tenantRowColumns).AddRow("30747815000108", "cid-1", "secret", (*int64)(nil), (*int64)(nil), (*int64)(nil), now, now))
	if _, err := store.Insert(context.Background(), tn); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	key := "rotated"
	mock.ExpectQuery("UPDATE companies SET").
		WithArgs("30747815000108", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(tenantRowColumns).AddRow("30747815000108", "cid-1", "rotated", (*int64)(nil), (*int64)(nil), (*int64)(nil), now, now))
	updated, err := store.Update(context.Background(), "30747815000108", Update{APIKey: &key})
	if err != nil || updated.APIKey != "rotated" {
		t.Fatalf("update failed: %+v %v", updated, err)
	}

	mock.ExpectExec("DELETE FROM companies").WithArgs("30747815000108").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	if err := store.Delete(context.Background(), "30747815000108"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	mock.ExpectExec("DELETE FROM companies").WithArgs("30747815000108").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	if err := store.Delete(context.Background(), "30747815000108"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStoreWrapsDriverErrors(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newPostgresStoreWithExec(mock)
	mock.ExpectQuery("SELECT cnpj").WithArgs("1").WillReturnError(errors.New("relation \"companies\" does not exist"))
	_, err = store.Get(context.Background(), "1")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected wrapped driver error, got %v", err)
	}
}

func TestPostgresStoreInsertDuplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newPostgresStoreWithExec(mock)
	mock.ExpectQuery("INSERT INTO companies").
		WithArgs("30747815000108", "cid-1", "secret", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err = store.Insert(context.Background(), &Tenant{ID: "30747815000108", AccountID: "cid-1", APIKey: "secret"})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}
