package config

import (
	"os"
	"strconv"
	"strings"
)

const defaultSessionSecret = "default-secret-dev"

type Config struct {
	Port          string
	DatabaseURL   string
	MongoDatabase string
	SessionSecret string
	CORSOrigin    string
	UploadDir     string
	MaxUploadMB   int64
	NatsURL       string
	Env           string // "local" or "production"
	DBDebug       bool
	SecureCookies bool
}

// Load reads the configuration from the environment. Call godotenv first
// if a .env file should be honoured.
func Load() Config {
	env := getEnv("APP_ENV", "local")
	return Config{
		Port:          getEnv("PORT", "8080"),
		DatabaseURL:   getEnv("DATABASE_URL", "sqlite://murmur.db"),
		MongoDatabase: getEnv("MONGO_DATABASE", "murmur"),
		SessionSecret: getEnv("SESSION_SECRET", defaultSessionSecret),
		CORSOrigin:    getEnv("CORS_ORIGIN", "*"),
		UploadDir:     getEnv("UPLOAD_DIR", "./public/uploads"),
		MaxUploadMB:   getInt("MAX_UPLOAD_MB", 50),
		NatsURL:       getEnv("NATS_URL", ""),
		Env:           env,
		DBDebug:       getBool("DB_DEBUG", false),
		SecureCookies: getBool("SECURE_COOKIES", env == "production"),
	}
}

// UsesDefaultSecret reports whether sessions are signed with the built-in dev secret.
func (c Config) UsesDefaultSecret() bool {
	return c.SessionSecret == defaultSessionSecret
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getInt(key string, fallback int64) int64 {
	n, err := strconv.ParseInt(getEnv(key, ""), 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return b
}
