package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// PlatformSecrets maps a platform name to the shared secret used to
	// verify its inbound signatures. An absent entry means verification
	// is skipped for that platform.
	PlatformSecrets map[string]string

	SeedPlatforms bool
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "hookrelay"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "hookrelay"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		PlatformSecrets: loadPlatformSecrets(),

		SeedPlatforms: getenvBool("SEED_PLATFORMS", true),
	}

	return cfg
}

// loadPlatformSecrets collects the well-known per-platform secrets plus any
// WEBHOOK_SECRET_<NAME> override.
func loadPlatformSecrets() map[string]string {
	secrets := map[string]string{}

	known := map[string]string{
		"github":   "GITHUB_WEBHOOK_SECRET",
		"razorpay": "RAZORPAY_WEBHOOK_SECRET",
		"stripe":   "STRIPE_WEBHOOK_SECRET",
		"shopify":  "SHOPIFY_WEBHOOK_SECRET",
	}
	for platform, key := range known {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			secrets[platform] = value
		}
	}

	const prefix = "WEBHOOK_SECRET_"
	for _, entry := range os.Environ() {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		platform := strings.ToLower(strings.TrimPrefix(key, prefix))
		if platform == "" || strings.TrimSpace(value) == "" {
			continue
		}
		secrets[platform] = strings.TrimSpace(value)
	}

	return secrets
}

// PlatformSecret returns the configured secret for a platform, if any.
func (c Config) PlatformSecret(platform string) (string, bool) {
	secret, ok := c.PlatformSecrets[strings.ToLower(strings.TrimSpace(platform))]
	return secret, ok
}

func getenv(key, def string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewDeliveryConfigHolder),
)
