package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/clinic-mcp-gateway/internal/config"
	"github.com/wolfman30/clinic-mcp-gateway/internal/tenant"
	"github.com/wolfman30/clinic-mcp-gateway/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildPostgresPool connects to DATABASE_URL. An empty URL returns nil.
func BuildPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) (*pgxpool.Pool, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	logger.Info("postgres pool ready", "max_conns", pool.Config().MaxConns)
	return pool, nil
}

// StoreBackends carries whichever clients the process managed to build.
// Only the one matching the configured backend is used.
type StoreBackends struct {
	Postgres *pgxpool.Pool
	Redis    *redis.Client
	DynamoDB *dynamodb.Client
}

// BuildTenantStore selects the tenant directory store named by
// cfg.TenantDirectoryBackend.
func BuildTenantStore(cfg *appconfig.Config, backends StoreBackends, logger *logging.Logger) (tenant.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.TenantDirectoryBackend {
	case appconfig.BackendPostgres:
		if backends.Postgres == nil {
			return nil, fmt.Errorf("bootstrap: postgres tenant directory selected but no pool is available")
		}
		logger.Info("tenant directory backend", "backend", cfg.TenantDirectoryBackend)
		return tenant.NewPostgresStore(backends.Postgres), nil
	case appconfig.BackendRedis:
		if backends.Redis == nil {
			return nil, fmt.Errorf("bootstrap: redis tenant directory selected but no client is available")
		}
		logger.Info("tenant directory backend", "backend", cfg.TenantDirectoryBackend)
		return tenant.NewRedisStore(backends.Redis), nil
	case appconfig.BackendDynamoDB:
		if backends.DynamoDB == nil {
			return nil, fmt.Errorf("bootstrap: dynamodb tenant directory selected but no client is available")
		}
		if strings.TrimSpace(cfg.TenantsTable) == "" {
			return nil, fmt.Errorf("bootstrap: dynamodb tenant directory requires a table name")
		}
		logger.Info("tenant directory backend", "backend", cfg.TenantDirectoryBackend, "table", cfg.TenantsTable)
		return tenant.NewDynamoStore(backends.DynamoDB, cfg.TenantsTable), nil
	case appconfig.BackendMemory:
		logger.Warn("tenant directory is in memory; tenants are lost on restart")
		return tenant.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown tenant directory backend %q", cfg.TenantDirectoryBackend)
	}
}
