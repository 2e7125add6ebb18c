package app

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{
		"ELSOUG_HTTP_ADDR", "ELSOUG_METRICS_ADDR", "ELSOUG_POSTGRES_DSN",
		"ELSOUG_JWT_SECRET", "KAFKA_BROKERS", "ELSOUG_SEED_DEMO",
	} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, ":9090", cfg.MetricsAddr)
	require.Equal(t, "dev-secret", cfg.JWTSecret)
	require.Empty(t, cfg.PostgresDSN)
	require.Empty(t, cfg.KafkaBrokers)
	require.False(t, cfg.SeedDemoData)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ELSOUG_HTTP_ADDR", ":18080")
	t.Setenv("ELSOUG_METRICS_ADDR", ":19090")
	t.Setenv("ELSOUG_POSTGRES_DSN", "postgres://localhost:5432/orders")
	t.Setenv("ELSOUG_JWT_SECRET", "prod-secret")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092 ,,")
	t.Setenv("ELSOUG_SEED_DEMO", "true")

	cfg := LoadConfig()
	require.Equal(t, ":18080", cfg.HTTPAddr)
	require.Equal(t, ":19090", cfg.MetricsAddr)
	require.Equal(t, "postgres://localhost:5432/orders", cfg.PostgresDSN)
	require.Equal(t, "prod-secret", cfg.JWTSecret)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	require.True(t, cfg.SeedDemoData)
}

func TestSplitBrokers(t *testing.T) {
	require.Equal(t, []string{"a:9092"}, splitBrokers("a:9092"))
	require.Equal(t, []string{"a:9092", "b:9092"}, splitBrokers("a:9092,b:9092"))
	require.Empty(t, splitBrokers(" , ,"))
}
