package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port     string
	DBConn   string
	LogLevel string

	JWTSecret           string
	APIClientID         string
	APIClientSecretHash string

	ModelPath       string
	ModelSigningKey string
	TrainMaxIter    int

	RedisAddr     string
	RedisPassword string
	ScoreCacheTTL time.Duration

	RetrainSchedule string

	SMTPHost        string
	SMTPPort        string
	SMTPUsername    string
	SMTPPassword    string
	SenderEmail     string
	AlertRecipients []string
}

// NewConfig loads configuration from environment variables, after reading an
// optional .env file
func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		DBConn:   getEnv("DB_CONN", "host=localhost port=5436 user=test password=test dbname=cashflow sslmode=disable"),
		LogLevel: getEnv("LOG_LEVEL", "INFO"),

		JWTSecret:           getEnv("JWT_SECRET", "secret"),
		APIClientID:         getEnv("API_CLIENT_ID", "risk-ui"),
		APIClientSecretHash: getEnv("API_CLIENT_SECRET_HASH", ""),

		ModelPath:       getEnv("MODEL_PATH", "model.json"),
		ModelSigningKey: getEnv("MODEL_SIGNING_KEY", ""),
		TrainMaxIter:    getEnvInt("TRAIN_MAX_ITER", 1000),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		ScoreCacheTTL: getEnvDuration("SCORE_CACHE_TTL", 15*time.Minute),

		RetrainSchedule: getEnv("RETRAIN_SCHEDULE", "0 2 * * *"),

		SMTPHost:        getEnv("SMTP_HOST", ""),
		SMTPPort:        getEnv("SMTP_PORT", "587"),
		SMTPUsername:    getEnv("SMTP_USERNAME", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
		SenderEmail:     getEnv("SENDER_EMAIL", "risk-alerts@localhost"),
		AlertRecipients: splitList(getEnv("ALERT_RECIPIENTS", "")),
	}

	if cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("MODEL_PATH is required")
	}
	if cfg.TrainMaxIter <= 0 {
		return nil, fmt.Errorf("TRAIN_MAX_ITER must be positive")
	}

	return cfg, nil
}

// AlertsEnabled reports whether high-risk alert emails can be sent
func (c *Config) AlertsEnabled() bool {
	return c.SMTPHost != "" && len(c.AlertRecipients) > 0
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return v
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
