package tenant

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/clinic-mcp-gateway/internal/apperr"
	"github.com/wolfman30/clinic-mcp-gateway/pkg/logging"
)

type failingStore struct {
	err   error
	calls int
}

func (s *failingStore) Get(context.Context, string) (*Tenant, error) {
	s.calls++
	return nil, s.err
}
func (s *failingStore) Insert(context.Context, *Tenant) (*Tenant, error) {
	s.calls++
	return nil, s.err
}
func (s *failingStore) Update(context.Context, string, Update) (*Tenant, error) {
	s.calls++
	return nil, s.err
}
func (s *failingStore) Delete(context.Context, string) error {
	s.calls++
	return s.err
}

func TestDirectoryLifecycle(t *testing.T) {
	ctx := context.Background()
	dir := NewDirectory(NewMemoryStore(), logging.Default())

	created, err := dir.Create(ctx, CreateRequest{ID: "30747815000108", AccountID: "cid-1", APIKey: "k1"})
	require.NoError(t, err)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := dir.Get(ctx, "30747815000108")
	require.NoError(t, err)
	assert.Equal(t, "30747815000108", got.ID)
	assert.Equal(t, "cid-1", got.AccountID)

	key := "k2"
	updated, err := dir.Update(ctx, "30.747.815/0001-08", Update{APIKey: &key})
	require.NoError(t, err)
	assert.Equal(t, "k2", updated.APIKey)

	require.NoError(t, dir.Delete(ctx, "30747815000108"))
	_, err = dir.Get(ctx, "30747815000108")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

type recordingStore struct {
	*MemoryStore
	updates []Update
}

func (s *recordingStore) Update(ctx context.Context, id string, upd Update) (*Tenant, error) {
	s.updates = append(s.updates, upd)
	return s.MemoryStore.Update(ctx, id, upd)
}

func TestDirectoryUpdateTrimsBeforeStore(t *testing.T) {
	ctx := context.Background()
	store := &recordingStore{MemoryStore: NewMemoryStore()}
	dir := NewDirectory(store, logging.Default())
	_, err := dir.Create(ctx, CreateRequest{ID: "30747815000108", AccountID: "cid-1", APIKey: "k1"})
	require.NoError(t, err)

	key, cid := "  abc \t", " cid-2 "
	_, err = dir.Update(ctx, "30747815000108", Update{APIKey: &key, AccountID: &cid})
	require.NoError(t, err)

	require.Len(t, store.updates, 1)
	assert.Equal(t, "abc", *store.updates[0].APIKey)
	assert.Equal(t, "cid-2", *store.updates[0].AccountID)
	assert.Equal(t, "  abc \t", key, "caller's value is not mutated")
}

func TestDirectoryGetReturnsMatchingKey(t *testing.T) {
	ctx := context.Background()
	dir := NewDirectory(NewMemoryStore(), logging.Default())
	ids := []string{"30747815000108", "11222333000181", "99888777000166"}
	for _, id := range ids {
		_, err := dir.Create(ctx, CreateRequest{ID: id, AccountID: "cid-" + id, APIKey: "key"})
		require.NoError(t, err)
	}
	for _, id := range ids {
		got, err := dir.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
	}
	_, err := dir.Get(ctx, "00000000000000")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestDirectoryClassifiesStoreErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperr.Kind
	}{
		{"not found", ErrNotFound, apperr.KindNotFound},
		{"wrapped not found", errors.Join(errors.New("ctx"), ErrNotFound), apperr.KindNotFound},
		{"network", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, apperr.KindUpstreamUnavailable},
		{"deadline", context.DeadlineExceeded, apperr.KindUpstreamUnavailable},
		{"flagged", ErrUnavailable, apperr.KindUpstreamUnavailable},
		{"duplicate", fmt.Errorf("%w: 30747815000108", ErrAlreadyExists), apperr.KindValidation},
		{"other", errors.New("relation companies does not exist"), apperr.KindDirectory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := NewDirectory(&failingStore{err: tt.err}, logging.Default())
			_, err := dir.Get(context.Background(), "30747815000108")
			require.Error(t, err)
			assert.Equal(t, tt.want, apperr.KindOf(err))
		})
	}
}

func TestDirectoryDirectoryErrorCarriesUpstreamMessage(t *testing.T) {
	dir := NewDirectory(&failingStore{err: errors.New("permission denied for table companies")}, logging.Default())
	err := dir.Delete(context.Background(), "1")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrDirectory)
	assert.Contains(t, err.Error(), "permission denied for table companies")
}

func TestDirectoryRejectsBlankIdentifierWithoutCallingStore(t *testing.T) {
	store := &failingStore{err: errors.New("unexpected")}
	dir := NewDirectory(store, logging.Default())

	_, err := dir.Get(context.Background(), "  ")
	assert.ErrorIs(t, err, apperr.ErrBadRequest)
	_, err = dir.Create(context.Background(), CreateRequest{})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = dir.Update(context.Background(), "1", Update{})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, 0, store.calls)
}
