package app

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config описывает настройки запуска сервиса заказов.
type Config struct {
	HTTPAddr     string
	MetricsAddr  string
	PostgresDSN  string
	JWTSecret    string
	KafkaBrokers []string
	SeedDemoData bool
}

// DefaultConfig возвращает базовые адреса HTTP API и метрик.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8080",
		MetricsAddr: ":9090",
		JWTSecret:   "dev-secret",
	}
}

// LoadConfig читает конфигурацию из окружения (и .env, если он есть).
func LoadConfig() Config {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if v := os.Getenv("ELSOUG_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("ELSOUG_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("ELSOUG_POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv("ELSOUG_JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = splitBrokers(v)
	}
	if v := os.Getenv("ELSOUG_SEED_DEMO"); v == "1" || strings.EqualFold(v, "true") {
		cfg.SeedDemoData = true
	}
	return cfg
}

func splitBrokers(raw string) []string {
	parts := strings.Split(raw, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
