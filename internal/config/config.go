package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Directory backends understood by bootstrap.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendDynamoDB = "dynamodb"
	BackendMemory   = "memory"
)

const defaultClinicAPIBaseURL = "https://api.clinicanasnuvens.com.br"

// Config holds process configuration. It is loaded once at start-up and
// handed to constructors by value; nothing mutates it afterwards.
type Config struct {
	Port     string
	Env      string
	LogLevel string

	TenantDirectoryBackend string
	DatabaseURL            string
	RedisAddr              string
	RedisPassword          string
	RedisTLS               bool
	TenantsTable           string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	EvolutionAPIURL string
	EvolutionAPIKey string

	MCPServerURL string
	MCPAPIKey    string

	ClinicAPIBaseURL string
	UpstreamTimeout  time.Duration

	AdminJWTSecret     string
	WebhookToken       string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	ResolvePatientContext bool
	FallbackReply         string
	ErrorReply            string
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		TenantDirectoryBackend: strings.ToLower(strings.TrimSpace(getEnv("TENANT_DIRECTORY_BACKEND", BackendPostgres))),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		RedisAddr:              getEnv("REDIS_ADDR", ""),
		RedisPassword:          getEnv("REDIS_PASSWORD", ""),
		RedisTLS:               getEnvAsBool("REDIS_TLS", false),
		TenantsTable:           getEnv("TENANTS_TABLE", "companies"),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		EvolutionAPIURL: strings.TrimRight(getEnv("EVOLUTION_API_URL", ""), "/"),
		EvolutionAPIKey: getEnv("EVOLUTION_API_KEY", ""),

		MCPServerURL: strings.TrimRight(getEnv("MCP_SERVER_URL", ""), "/"),
		MCPAPIKey:    getEnv("MCP_API_KEY", ""),

		ClinicAPIBaseURL: strings.TrimRight(getEnv("CLINIC_API_BASE_URL", defaultClinicAPIBaseURL), "/"),
		UpstreamTimeout:  getEnvAsDuration("UPSTREAM_TIMEOUT", 30*time.Second),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		WebhookToken:       getEnv("WEBHOOK_TOKEN", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 40),

		ResolvePatientContext: getEnvAsBool("CONTEXT_RESOLVE_PATIENT", true),
		FallbackReply:         getEnv("FALLBACK_REPLY", "Desculpe, não entendi sua mensagem."),
		ErrorReply:            getEnv("ERROR_REPLY", "Desculpe, não foi possível processar sua mensagem no momento."),
	}
}

// Validate reports every missing setting required by the selected backend
// and the external collaborators.
func (c *Config) Validate() error {
	var errs []error
	switch c.TenantDirectoryBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres tenant directory"))
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis tenant directory"))
		}
	case BackendDynamoDB:
		if c.TenantsTable == "" {
			errs = append(errs, errors.New("TENANTS_TABLE is required for the dynamodb tenant directory"))
		}
	case BackendMemory:
		if c.IsProduction() {
			errs = append(errs, errors.New("the memory tenant directory is not allowed in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown TENANT_DIRECTORY_BACKEND %q", c.TenantDirectoryBackend))
	}
	if c.EvolutionAPIURL == "" {
		errs = append(errs, errors.New("EVOLUTION_API_URL is required"))
	}
	if c.MCPServerURL == "" {
		errs = append(errs, errors.New("MCP_SERVER_URL is required"))
	}
	if c.ClinicAPIBaseURL == "" {
		errs = append(errs, errors.New("CLINIC_API_BASE_URL is required"))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether the process runs with ENV=production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
