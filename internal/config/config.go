package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	Environment string
	DatabaseURL string // empty runs on the in-memory store
	DBMaxConns  int32
	CORSOrigins string
	TablePrefix string
	// Snapshot cache
	RedisURL         string
	SnapshotCacheTTL time.Duration
	// Asset store
	AssetDir string
	S3       S3Config
	// Identity
	AuthDisabled bool
	JWKSURL      string
	DevActorID   string
	Maintainers  []string // actor ids allowed to run maintenance jobs; empty allows all
	// Scheduler
	SchedulerInterval time.Duration
	// Logging
	LogDir      string
	LogMaxFiles int
	// Debug flags
	Debug bool
}

// S3Config selects the S3-compatible asset store when Bucket is set
type S3Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	BasePath        string
	ForcePathStyle  bool
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")
	tablePrefix := getTablePrefix(env)

	return &Config{
		Port:              getEnv("PORT", "8080"),
		Environment:       env,
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		DBMaxConns:        int32(getInt("DB_MAX_CONNS", 25)),
		CORSOrigins:       getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix:       tablePrefix,
		RedisURL:          getEnv("REDIS_URL", ""),
		SnapshotCacheTTL:  getDuration("SNAPSHOT_CACHE_TTL", 10*time.Minute),
		AssetDir:          getEnv("ASSET_DIR", "./data/assets"),
		S3: S3Config{
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			Region:          getEnv("S3_REGION", "auto"),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			Bucket:          getEnv("S3_BUCKET", ""),
			BasePath:        getEnv("S3_BASE_PATH", ""),
			ForcePathStyle:  getEnv("S3_FORCE_PATH_STYLE", "false") == "true",
		},
		// Auth is off by default only in dev
		AuthDisabled:      getEnv("AUTH_DISABLED", strconv.FormatBool(env == "dev")) == "true",
		JWKSURL:           getEnv("JWKS_URL", ""),
		DevActorID:        getEnv("DEV_ACTOR_ID", "dev"),
		Maintainers:       splitList(getEnv("MAINTAINERS", "")),
		SchedulerInterval: getDuration("SCHEDULER_INTERVAL", time.Minute),
		LogDir:            getEnv("LOG_DIR", ""),
		LogMaxFiles:       getInt("LOG_MAX_FILES", 10),
		// Debug flags - default to true in dev/test, false in production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true" // Enable DEBUG in dev/test by default
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	// Auto-generate based on environment
	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	case "dev":
		return "dev_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return n
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
