package tenant

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/wolfman30/clinic-mcp-gateway/internal/apperr"
	"github.com/wolfman30/clinic-mcp-gateway/pkg/logging"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	created, err := store.Insert(ctx, &Tenant{ID: "30747815000108", AccountID: "cid-1", APIKey: "secret", LocationID: int64Ptr(5)})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if created.CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be set")
	}
	if !mr.Exists("tenant:30747815000108") {
		t.Fatalf("expected tenant key in redis")
	}

	if _, err := store.Insert(ctx, &Tenant{ID: "30747815000108", AccountID: "x", APIKey: "y"}); err == nil {
		t.Fatalf("expected duplicate insert to fail")
	}

	got, err := store.Get(ctx, "30747815000108")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.APIKey != "secret" || got.LocationID == nil || *got.LocationID != 5 {
		t.Fatalf("unexpected tenant %+v", got)
	}

	account := "cid-2"
	updated, err := store.Update(ctx, "30747815000108", Update{AccountID: &account})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.AccountID != "cid-2" || updated.APIKey != "secret" {
		t.Fatalf("unexpected updated tenant %+v", updated)
	}

	if err := store.Delete(ctx, "30747815000108"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "30747815000108"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := store.Update(ctx, "30747815000108", Update{AccountID: &account}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update of missing tenant, got %v", err)
	}
	if err := store.Delete(ctx, "30747815000108"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on delete of missing tenant, got %v", err)
	}
}

func TestRedisStoreUnreachableIsUnavailable(t *testing.T) {
	store, mr := newTestRedisStore(t)
	mr.Close()

	dir := NewDirectory(store, logging.Default())
	_, err := dir.Get(context.Background(), "30747815000108")
	if !errors.Is(err, apperr.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream unavailable, got %v", err)
	}
}
