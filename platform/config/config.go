// Package config loads process configuration from the environment, the
// same getEnv/mustDuration pattern the teacher's config package used,
// narrowed to what the tender reconciliation engine actually needs:
// database, cache, object storage, embedding service and matching/cache
// tunables (SPEC_FULL.md §10.3).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the single concrete configuration struct. Modules depend on
// the narrow interfaces in this package (DatabaseConfig, CacheConfig, ...),
// never on Config directly.
type Config struct {
	Env      string
	HTTPAddr string

	DatabaseURL string
	RedisAddr   string
	RedisDB     int

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
	MinioBucket    string

	EmbeddingServiceURL string
	EmbeddingAPIKey     string
	NLPModelID          string
	NLPMaxLength        int
	NLPBatchSize        int

	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string

	AnalysisCacheTTL   time.Duration
	CacheSweepInterval time.Duration
	CriticitaMediaPct  float64
	CriticitaAltaPct   float64
	RateLimitRPS       float64
	RateLimitBurst     int

	CORSAllowAll   bool
	CORSOrigins    []string
	CORSAllowCreds bool

	RedisURL           string
	RedisTLSInsecure   bool
	AsynqQueueName     string
	AsynqConcurrency   int
}

// HTTPConfig narrows Config to what the router/CORS middleware needs. Per
// spec.md §1, authentication/RBAC are out of scope — this engine's HTTP
// surface carries no JWT/tenant concept.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig narrows Config to what the asynq-backed import job
// scheduler needs (§4.5 batched per-bidder offer commits).
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// DatabaseConfig narrows Config to what the repository layer needs.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// CacheConfig narrows Config to what the analysis cache needs (§4.6).
type CacheConfig interface {
	GetRedisAddr() string
	GetRedisDB() int
	GetAnalysisCacheTTL() time.Duration
	GetCacheSweepInterval() time.Duration
}

// StorageConfig narrows Config to what the vector-index/blob layer needs (§12.1).
type StorageConfig interface {
	GetMinioEndpoint() string
	GetMinioAccessKey() string
	GetMinioSecretKey() string
	GetMinioUseSSL() bool
	GetMinioBucket() string
}

// EmbeddingConfig narrows Config to what the semantic embedding client needs (§4.3).
type EmbeddingConfig interface {
	GetEmbeddingServiceURL() string
	GetEmbeddingAPIKey() string
	GetNLPModelID() string
	GetNLPMaxLength() int
	GetNLPBatchSize() int
}

// VectorIndexConfig narrows Config to what the per-commessa FAISS-equivalent
// vector index client needs (§4.3).
type VectorIndexConfig interface {
	GetQdrantURL() string
	GetQdrantAPIKey() string
	GetQdrantCollection() string
}

// ThresholdsConfig narrows Config to the critical-item classification bands (§12.4).
type ThresholdsConfig interface {
	GetCriticitaMediaPercent() float64
	GetCriticitaAltaPercent() float64
}

// RateLimitConfig narrows Config to the token-bucket rate limiter's tunables.
type RateLimitConfig interface {
	GetRateLimitRPS() float64
	GetRateLimitBurst() int
}

func (c *Config) GetDatabaseURL() string              { return c.DatabaseURL }
func (c *Config) GetRedisAddr() string                { return c.RedisAddr }
func (c *Config) GetRedisDB() int                      { return c.RedisDB }
func (c *Config) GetAnalysisCacheTTL() time.Duration   { return c.AnalysisCacheTTL }
func (c *Config) GetCacheSweepInterval() time.Duration { return c.CacheSweepInterval }
func (c *Config) GetMinioEndpoint() string             { return c.MinioEndpoint }
func (c *Config) GetMinioAccessKey() string            { return c.MinioAccessKey }
func (c *Config) GetMinioSecretKey() string            { return c.MinioSecretKey }
func (c *Config) GetMinioUseSSL() bool                 { return c.MinioUseSSL }
func (c *Config) GetMinioBucket() string               { return c.MinioBucket }
func (c *Config) GetEmbeddingServiceURL() string       { return c.EmbeddingServiceURL }
func (c *Config) GetEmbeddingAPIKey() string           { return c.EmbeddingAPIKey }
func (c *Config) GetNLPModelID() string                { return c.NLPModelID }
func (c *Config) GetNLPMaxLength() int                 { return c.NLPMaxLength }
func (c *Config) GetNLPBatchSize() int                 { return c.NLPBatchSize }
func (c *Config) GetQdrantURL() string                 { return c.QdrantURL }
func (c *Config) GetQdrantAPIKey() string              { return c.QdrantAPIKey }
func (c *Config) GetQdrantCollection() string          { return c.QdrantCollection }
func (c *Config) GetCriticitaMediaPercent() float64    { return c.CriticitaMediaPct }
func (c *Config) GetCriticitaAltaPercent() float64     { return c.CriticitaAltaPct }
func (c *Config) GetRateLimitRPS() float64             { return c.RateLimitRPS }
func (c *Config) GetRateLimitBurst() int               { return c.RateLimitBurst }
func (c *Config) GetHTTPAddr() string                  { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool                { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string             { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool              { return c.CORSAllowCreds }
func (c *Config) GetRedisURL() string                  { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool            { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string            { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int             { return c.AsynqConcurrency }

func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisAddr:   getEnv("REDIS_ADDR", ""),
		RedisDB:     mustInt(getEnv("REDIS_DB", "0")),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioUseSSL:    strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucket:    getEnv("MINIO_BUCKET", "tender-vector-index"),

		EmbeddingServiceURL: getEnv("EMBEDDING_SERVICE_URL", ""),
		EmbeddingAPIKey:     getEnv("EMBEDDING_API_KEY", ""),
		NLPModelID:          getEnv("NLP_MODEL_ID", "sentence-transformers/paraphrase-multilingual-mpnet-base-v2"),
		NLPMaxLength:        mustInt(getEnv("NLP_MAX_LENGTH", "256")),
		NLPBatchSize:        mustInt(getEnv("NLP_BATCH_SIZE", "32")),

		QdrantURL:        getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey:     getEnv("QDRANT_API_KEY", ""),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "tender_catalog"),

		AnalysisCacheTTL:   mustDuration(getEnv("ANALYSIS_CACHE_TTL", "5m")),
		CacheSweepInterval: mustDuration(getEnv("CACHE_SWEEP_INTERVAL", "1m")),
		CriticitaMediaPct:  mustFloat(getEnv("CRITICITA_MEDIA_PERCENT", "25")),
		CriticitaAltaPct:   mustFloat(getEnv("CRITICITA_ALTA_PERCENT", "50")),
		RateLimitRPS:       mustFloat(getEnv("RATE_LIMIT_RPS", "10")),
		RateLimitBurst:     mustInt(getEnv("RATE_LIMIT_BURST", "20")),

		CORSAllowAll:   corsAllowAll,
		CORSOrigins:    corsOrigins,
		CORSAllowCreds: strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE_NAME", "tender_import"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}

func mustFloat(value string) float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return f
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
