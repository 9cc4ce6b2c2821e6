package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port              string
	DBDSN             string
	LogFile           string
	TemplatesDir      string
	JWTSigningKey     string
	JWTExpiration     time.Duration
	CartSyncTimeout   time.Duration
	MetricsPrefix     string
	LowStockThreshold int
	RateLimitPerMin   int
}

func Load() Config {
	// .env is optional; real deployments set the environment directly
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] could not read .env: %v", err)
	}

	cfg := Config{
		Port:              getEnv("PORT", "8080"),
		DBDSN:             getEnv("DB_DSN", "satchel.db"), // sqlite file in project root
		LogFile:           getEnv("LOG_FILE", "./satchel.log"),
		TemplatesDir:      getEnv("TEMPLATES_DIR", "./web/templates"),
		JWTSigningKey:     getEnv("JWT_SIGNING_KEY", "change-me-in-production"),
		JWTExpiration:     time.Duration(getEnvInt("JWT_EXPIRATION_HOURS", 24)) * time.Hour,
		CartSyncTimeout:   getEnvDuration("CART_SYNC_TIMEOUT", 5*time.Second),
		MetricsPrefix:     getEnv("METRICS_PREFIX", "satchel"),
		LowStockThreshold: getEnvInt("LOW_STOCK_THRESHOLD", 5),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MIN", 120),
	}
	log.Printf("[config] PORT=%s DB_DSN=%s LOG_FILE=%s TEMPLATES_DIR=%s JWT_SIGNING_KEY=*** CART_SYNC_TIMEOUT=%s LOW_STOCK_THRESHOLD=%d",
		cfg.Port, cfg.DBDSN, cfg.LogFile, cfg.TemplatesDir, cfg.CartSyncTimeout, cfg.LowStockThreshold)
	return cfg
}

// Defaults is what tests use: in-memory database, no file log.
func Defaults() Config {
	return Config{
		Port:              "0",
		DBDSN:             ":memory:",
		TemplatesDir:      "../../web/templates",
		JWTSigningKey:     "test-signing-key",
		JWTExpiration:     time.Hour,
		CartSyncTimeout:   time.Second,
		MetricsPrefix:     "satchel_test",
		LowStockThreshold: 5,
		RateLimitPerMin:   1000,
	}
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return def
}
