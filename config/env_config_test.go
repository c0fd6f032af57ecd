package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadEnvConfigDefaults(t *testing.T) {
	t.Setenv("MINIO_TIMEOUT", "")
	t.Setenv("MINIO_CERT_CHECK", "")
	t.Setenv("GRAFANA_OTLP_ENDPOINT", "")
	t.Setenv("HMAC_MAX_BODY_BYTES", "")

	cfg := LoadEnvConfig()

	assert.Equal(t, 300*time.Second, cfg.Minio.Timeout)
	assert.True(t, cfg.Minio.CertCheck)
	assert.Equal(t, 30, cfg.Minio.PoolMaxSize)
	assert.Equal(t, 5, cfg.Minio.RetryCount)
	assert.Equal(t, "guest", cfg.RabbitMQ.Username)
	assert.Equal(t, int64(64<<20), cfg.HMAC.MaxBodyBytes)
	assert.Empty(t, cfg.Grafana.OTLPEndpoint)
}

func TestLoadEnvConfigOverrides(t *testing.T) {
	t.Setenv("MINIO_TIMEOUT", "45")
	t.Setenv("MINIO_CERT_CHECK", "false")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("RECONCILE_BUCKETS", "media, ,avatars")
	t.Setenv("GRAFANA_OTLP_ENDPOINT", "https://otlp.example.com")
	t.Setenv("HMAC_MAX_BODY_BYTES", "1024")

	cfg := LoadEnvConfig()

	assert.Equal(t, 45*time.Second, cfg.Minio.Timeout)
	assert.False(t, cfg.Minio.CertCheck)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, []string{"media", "avatars"}, cfg.Reconcile.Buckets)
	assert.Equal(t, "otlp.example.com", cfg.Grafana.OTLPEndpoint)
	assert.Equal(t, int64(1024), cfg.HMAC.MaxBodyBytes)
}
