// Package config loads process configuration from the environment, the way
// the rest of this codebase's ambient stack does — no config file library,
// just env vars with defaults. Only an int value that fails to parse is
// logged, as a warning.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/clipstream/timeline-core/internal/logger"
)

type Config struct {
	Port string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresName     string

	RedisAddr    string
	RedisChannel string

	JWTSecretKey  string
	APIKeyPepper  string
	LockTimeout   time.Duration
	IdempotencyTTL time.Duration

	EffectsSpecPath string

	AvatarAssetBucket string

	TemporalAddress   string
	TemporalNamespace string
	TemporalTaskQueue string

	OtelServiceName string
	OtelExporter    string // "stdout" | "otlp" | "none"
	OtelEndpoint    string
}

func Load(log *logger.Logger) Config {
	return Config{
		Port: GetEnv("PORT", "8080", log),

		PostgresHost:     GetEnv("POSTGRES_HOST", "localhost", log),
		PostgresPort:     GetEnv("POSTGRES_PORT", "5432", log),
		PostgresUser:     GetEnv("POSTGRES_USER", "postgres", log),
		PostgresPassword: GetEnv("POSTGRES_PASSWORD", "", log),
		PostgresName:     GetEnv("POSTGRES_NAME", "timelinecore", log),

		RedisAddr:    GetEnv("REDIS_ADDR", "localhost:6379", log),
		RedisChannel: GetEnv("REDIS_CHANNEL", "timeline-events", log),

		JWTSecretKey:   GetEnv("JWT_SECRET_KEY", "dev-secret-change-me", log),
		APIKeyPepper:   GetEnv("API_KEY_PEPPER", "", log),
		LockTimeout:    time.Duration(GetEnvAsInt("LOCK_TIMEOUT_SECONDS", 120, log)) * time.Second,
		IdempotencyTTL: time.Duration(GetEnvAsInt("IDEMPOTENCY_TTL_HOURS", 24*7, log)) * time.Hour,

		EffectsSpecPath: GetEnv("EFFECTS_SPEC_PATH", "effects.yaml", log),

		AvatarAssetBucket: GetEnv("ASSET_BUCKET_NAME", "timeline-assets", log),

		TemporalAddress:   GetEnv("TEMPORAL_ADDRESS", "", log),
		TemporalNamespace: GetEnv("TEMPORAL_NAMESPACE", "default", log),
		TemporalTaskQueue: GetEnv("TEMPORAL_TASK_QUEUE", "render-jobs", log),

		OtelServiceName: GetEnv("OTEL_SERVICE_NAME", "timeline-core", log),
		OtelExporter:    GetEnv("OTEL_EXPORTER", "stdout", log),
		OtelEndpoint:    GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "", log),
	}
}

func GetEnv(key, def string, log *logger.Logger) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func GetEnvAsInt(key string, def int, log *logger.Logger) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		if log != nil {
			log.Warn("invalid int env var, using default", "key", key, "value", v, "default", def)
		}
		return def
	}
	return n
}

func GetEnvAsBool(key string, def bool, log *logger.Logger) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}
