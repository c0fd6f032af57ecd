package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type EnvConfig struct {
	Postgres struct {
		HOST     string
		Database string
		Username string
		Password string
		Port     string
		SSLMode  string
		MaxConns int
	}
	JWT struct {
		SecretKey string
		Algorithm string
	}
	HMAC struct {
		AccessKey    string
		SecretKey    string
		MaxBodyBytes int64
	}
	CORS struct {
		AllowDomains string
		GlobalDomain string
	}
	Redis struct {
		Password  string
		Database  int
		RedisHost string
		RedisPort string
	}
	RabbitMQ struct {
		Host     string
		Port     string
		Username string
		Password string
	}
	Minio struct {
		Endpoint     string
		RootUser     string
		RootPassword string
		Region       string
		Secure       bool
		CertCheck    bool
		CAFile       string
		Timeout      time.Duration
		PoolMaxSize  int
		RetryCount   int
		Workers      int64
		ChunkSize    int64
	}
	Cache struct {
		TTL time.Duration
	}
	Reconcile struct {
		Interval time.Duration
		Grace    time.Duration
		Buckets  []string
	}
	Grafana struct {
		OTLPEndpoint string
		ServiceName  string
	}

	Environment struct {
		Mode  string
		Group string
	}
	HTTPPort string
}

func LoadEnvConfig() *EnvConfig {
	var config EnvConfig

	// Postgres
	config.Postgres.HOST = os.Getenv("PGPOOL_HOST")
	config.Postgres.Database = os.Getenv("PGPOOL_DB")
	config.Postgres.Username = os.Getenv("PGPOOL_USER")
	config.Postgres.Password = os.Getenv("PGPOOL_PASSWORD")
	config.Postgres.Port = getEnv("PGPOOL_PORT", "5432")
	config.Postgres.SSLMode = getEnv("PGPOOL_SSLMODE", "disable")
	config.Postgres.MaxConns = getEnvInt("PGPOOL_MAX_CONNS", 20)

	// JWT
	config.JWT.SecretKey = os.Getenv("JWT_SECRET_KEY")
	config.JWT.Algorithm = getEnv("JWT_ALGORITHM", "HS256")

	config.HMAC.AccessKey = os.Getenv("HMAC_ACCESS_KEY")
	config.HMAC.SecretKey = os.Getenv("HMAC_SECRET_KEY")
	config.HMAC.MaxBodyBytes = int64(getEnvInt("HMAC_MAX_BODY_BYTES", 64<<20))

	config.CORS.AllowDomains = os.Getenv("ALLOWED_DOMAINS")
	config.CORS.GlobalDomain = os.Getenv("GLOBAL_DOMAIN")

	config.Redis.Password = os.Getenv("REDIS_PASSWORD")
	config.Redis.Database, _ = strconv.Atoi(os.Getenv("REDIS_DB"))
	config.Redis.RedisHost = getEnv("REDIS_HOST", "localhost")
	config.Redis.RedisPort = getEnv("REDIS_PORT", "6379")

	// RabbitMQ
	config.RabbitMQ.Host = getEnv("RABBITMQ_HOST", "localhost")
	config.RabbitMQ.Port = getEnv("RABBITMQ_PORT", "5672")
	config.RabbitMQ.Username = getEnv("RABBITMQ_USER", "guest")
	config.RabbitMQ.Password = getEnv("RABBITMQ_PASSWORD", "guest")

	// MinIO
	config.Minio.Endpoint = os.Getenv("MINIO_ENDPOINT")
	config.Minio.RootUser = os.Getenv("MINIO_ROOT_USER")
	config.Minio.RootPassword = os.Getenv("MINIO_ROOT_PASSWORD")
	config.Minio.Region = os.Getenv("MINIO_REGION")
	config.Minio.Secure = getEnvBool("MINIO_SECURE", false)
	config.Minio.CertCheck = getEnvBool("MINIO_CERT_CHECK", true)
	config.Minio.CAFile = os.Getenv("SSL_CERT_FILE")
	config.Minio.Timeout = getEnvDuration("MINIO_TIMEOUT", 300*time.Second)
	config.Minio.PoolMaxSize = getEnvInt("MINIO_POOL_MAX_SIZE", 30)
	config.Minio.RetryCount = getEnvInt("MINIO_RETRY_COUNT", 5)
	config.Minio.Workers = int64(getEnvInt("MINIO_WORKERS", 16))
	config.Minio.ChunkSize = int64(getEnvInt("MINIO_CHUNK_SIZE", 1024*1024))

	config.Cache.TTL = getEnvDuration("CACHE_TTL", 5*time.Minute)

	config.Reconcile.Interval = getEnvDuration("RECONCILE_INTERVAL", time.Hour)
	config.Reconcile.Grace = getEnvDuration("RECONCILE_GRACE", time.Hour)
	if buckets := os.Getenv("RECONCILE_BUCKETS"); buckets != "" {
		for _, bucket := range strings.Split(buckets, ",") {
			if bucket = strings.TrimSpace(bucket); bucket != "" {
				config.Reconcile.Buckets = append(config.Reconcile.Buckets, bucket)
			}
		}
	}

	// Grafana/OpenTelemetry
	grafanaEndpoint := os.Getenv("GRAFANA_OTLP_ENDPOINT")
	// Remove protocol for OpenTelemetry client to avoid duplicate protocols
	if strings.HasPrefix(grafanaEndpoint, "https://") {
		config.Grafana.OTLPEndpoint = strings.TrimPrefix(grafanaEndpoint, "https://")
	} else if strings.HasPrefix(grafanaEndpoint, "http://") {
		config.Grafana.OTLPEndpoint = strings.TrimPrefix(grafanaEndpoint, "http://")
	} else {
		config.Grafana.OTLPEndpoint = grafanaEndpoint
	}
	config.Grafana.ServiceName = getEnv("SERVICE_NAME", "gau-media-service")

	config.Environment.Mode = getEnv("DEPLOY_ENV", "development")
	config.Environment.Group = getEnv("GROUP_NAME", "local")

	config.HTTPPort = getEnv("HTTP_PORT", "8080")

	return &config
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("30s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(val); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(val); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}
