package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	engineconfig "go-eye-inspector/pkg/config"
)

type Config struct {
	Host                  string
	Port                  string
	RequestTimeout        time.Duration
	AnalysisTimeout       time.Duration
	MaxRequestBodySize    int64
	MaxConcurrentAnalyses int
	LogLevel              string
	CORSAllowedOrigins    []string

	EngineConfigPath string
	ModelCacheDir    string
	ArtifactTimeout  time.Duration
	AzureAccountName string
	AzureAccountKey  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	Engine *engineconfig.EngineConfig
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// CacheEnabled reports whether a Redis address was configured.
func (c *Config) CacheEnabled() bool {
	return strings.TrimSpace(c.RedisAddr) != ""
}

func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Host:                  getEnvOrDefault("HOST", "0.0.0.0"),
		Port:                  getEnvOrDefault("PORT", "8080"),
		RequestTimeout:        parseDurationOrDefault("REQUEST_TIMEOUT", 60*time.Second),
		AnalysisTimeout:       parseDurationOrDefault("ANALYSIS_TIMEOUT", 45*time.Second),
		MaxRequestBodySize:    parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 15*1024*1024), // 15MB
		MaxConcurrentAnalyses: int(parseIntOrDefault("MAX_CONCURRENT_ANALYSES", 4)),
		LogLevel:              getEnvOrDefault("LOG_LEVEL", "info"),
		CORSAllowedOrigins:    splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*")),
		EngineConfigPath:      os.Getenv("ENGINE_CONFIG"),
		ModelCacheDir:         getEnvOrDefault("MODEL_CACHE_DIR", os.TempDir()+"/eye-inspector-models"),
		ArtifactTimeout:       parseDurationOrDefault("ARTIFACT_FETCH_TIMEOUT", 2*time.Minute),
		AzureAccountName:      os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureAccountKey:       os.Getenv("AZURE_STORAGE_KEY"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               int(parseIntOrDefault("REDIS_DB", 0)),
		CacheTTL:              parseDurationOrDefault("CACHE_TTL", 24*time.Hour),
	}

	p, err := strconv.Atoi(strings.TrimSpace(cfg.Port))
	if err != nil || p < 1 || p > 65535 {
		return nil, fmt.Errorf("invalid PORT: %q", cfg.Port)
	}
	if cfg.MaxRequestBodySize <= 0 {
		return nil, fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", cfg.MaxRequestBodySize)
	}
	if cfg.MaxConcurrentAnalyses <= 0 {
		return nil, fmt.Errorf("MAX_CONCURRENT_ANALYSES must be > 0 (got %d)", cfg.MaxConcurrentAnalyses)
	}
	if cfg.RequestTimeout <= 0 || cfg.AnalysisTimeout <= 0 || cfg.ArtifactTimeout <= 0 {
		return nil, fmt.Errorf("timeouts must be > 0 (got request=%s, analysis=%s, artifact=%s)",
			cfg.RequestTimeout, cfg.AnalysisTimeout, cfg.ArtifactTimeout)
	}

	engine, err := engineconfig.Load(cfg.EngineConfigPath)
	if err != nil {
		return nil, err
	}
	if err := engine.ApplyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("engine config from environment: %w", err)
	}
	cfg.Engine = engine

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
