package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, uint64(3), cfg.ClientMaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.ClientBackoff)
	assert.False(t, cfg.EmbeddedCollaborators)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("CLIENT_BACKOFF", "50ms")
	t.Setenv("EMBEDDED_COLLABORATORS", "true")
	t.Setenv("NOTIFIER_WORKERS", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 50*time.Millisecond, cfg.ClientBackoff)
	assert.True(t, cfg.EmbeddedCollaborators)
	assert.Equal(t, 1, cfg.NotifierWorkers)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("CLIENT_TIMEOUT", "soon")

	_, err := Load()
	assert.Error(t, err)
}

func TestWithDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	inv := cfg.WithDefaults(":8082", "inventory-svc")
	assert.Equal(t, ":8082", inv.HTTPAddr)
	assert.Equal(t, "inventory-svc", inv.ServiceName)

	t.Setenv("HTTP_ADDR", ":7000")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.WithDefaults(":8082", "inventory-svc").HTTPAddr)
}
