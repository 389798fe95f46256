package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisRecord is the stored shape; unlike View it carries the API key.
type redisRecord struct {
	ID              string    `json:"cnpj"`
	AccountID       string    `json:"clinica_cid"`
	APIKey          string    `json:"api_key"`
	LabelID         *int64    `json:"id_rotulo,omitempty"`
	LocationID      *int64    `json:"id_local,omitempty"`
	PatientOriginID *int64    `json:"id_origem_paciente,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toRedisRecord(t *Tenant) redisRecord {
	return redisRecord{
		ID:              t.ID,
		AccountID:       t.AccountID,
		APIKey:          t.APIKey,
		LabelID:         t.LabelID,
		LocationID:      t.LocationID,
		PatientOriginID: t.PatientOriginID,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

func (r redisRecord) tenant() *Tenant {
	return &Tenant{
		ID:              r.ID,
		AccountID:       r.AccountID,
		APIKey:          r.APIKey,
		LabelID:         r.LabelID,
		LocationID:      r.LocationID,
		PatientOriginID: r.PatientOriginID,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

// RedisStore keeps each tenant as a JSON document under tenant:<cnpj>.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a store backed by client.
func NewRedisStore(client *redis.Client) *RedisStore {
	if client == nil {
		panic("tenant: redis client required")
	}
	return &RedisStore{redis: client}
}

func redisKey(id string) string {
	return fmt.Sprintf("tenant:%s", id)
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Tenant, error) {
	data, err := s.redis.Get(ctx, redisKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("tenant: get: %w", err)
	}
	var rec redisRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("tenant: decode %s: %w", id, err)
	}
	return rec.tenant(), nil
}

func (s *RedisStore) Insert(ctx context.Context, t *Tenant) (*Tenant, error) {
	now := time.Now().UTC()
	stored := *t
	stored.CreatedAt = now
	stored.UpdatedAt = now
	data, err := json.Marshal(toRedisRecord(&stored))
	if err != nil {
		return nil, fmt.Errorf("tenant: encode: %w", err)
	}
	ok, err := s.redis.SetNX(ctx, redisKey(t.ID), data, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("tenant: insert: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, t.ID)
	}
	return &stored, nil
}

// Update is a read-modify-write guarded by WATCH so concurrent writers fail
// instead of silently overwriting each other.
func (s *RedisStore) Update(ctx context.Context, id string, upd Update) (*Tenant, error) {
	key := redisKey(id)
	var updated *Tenant
	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return err
		}
		var rec redisRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("decode %s: %w", id, err)
		}
		t := rec.tenant()
		upd.Apply(t)
		t.UpdatedAt = time.Now().UTC()
		payload, err := json.Marshal(toRedisRecord(t))
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		if err == nil {
			updated = t
		}
		return err
	}, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("tenant: update: %w", err)
	}
	return updated, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.redis.Del(ctx, redisKey(id)).Result()
	if err != nil {
		return fmt.Errorf("tenant: delete: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
