package config

import (
	"testing"
	"time"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENGINE_CONFIG", "MODEL_PATHS", "REDIS_ADDR", "P_HIGH", "P_MID"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.ServerAddress() != "0.0.0.0:8080" {
		t.Errorf("Expected default address, got %s", cfg.ServerAddress())
	}
	if cfg.CacheEnabled() {
		t.Error("Expected cache to be disabled without REDIS_ADDR")
	}
	if cfg.Engine == nil || cfg.Engine.Thresholds.PHigh != 0.75 {
		t.Fatal("Expected default engine configuration")
	}
	if cfg.RequestTimeout != 60*time.Second {
		t.Errorf("Expected 60s request timeout, got %s", cfg.RequestTimeout)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("MODEL_PATHS", "/opt/models/a.onnx;/opt/models/b.onnx")
	t.Setenv("P_HIGH", "0.8")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.Port)
	}
	if !cfg.CacheEnabled() {
		t.Error("Expected cache to be enabled")
	}
	if len(cfg.Engine.Models) != 2 {
		t.Errorf("Expected 2 models from MODEL_PATHS, got %d", len(cfg.Engine.Models))
	}
	if cfg.Engine.Thresholds.PHigh != 0.8 {
		t.Errorf("Expected P_HIGH override, got %f", cfg.Engine.Thresholds.PHigh)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Errorf("Unexpected CORS origins %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non numeric port", "PORT", "http"},
		{"port out of range", "PORT", "70000"},
		{"zero body size", "MAX_REQUEST_BODY_SIZE", "0"},
		{"zero concurrency", "MAX_CONCURRENT_ANALYSES", "0"},
		{"bad threshold", "P_MID", "abc"},
		{"missing engine file", "ENGINE_CONFIG", "/nonexistent/engine.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := LoadFromEnv(); err == nil {
				t.Errorf("Expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}
