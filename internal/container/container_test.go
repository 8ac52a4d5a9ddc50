package container

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-eye-inspector/internal/cache"
	"go-eye-inspector/internal/config"
	engineconfig "go-eye-inspector/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Host:                  "127.0.0.1",
		Port:                  "0",
		RequestTimeout:        5 * time.Second,
		AnalysisTimeout:       5 * time.Second,
		MaxRequestBodySize:    1 << 20,
		MaxConcurrentAnalyses: 2,
		CORSAllowedOrigins:    []string{"*"},
		ModelCacheDir:         t.TempDir(),
		ArtifactTimeout:       time.Second,
		Engine:                engineconfig.Default(),
	}
}

func TestNewContainer(t *testing.T) {
	c, err := NewContainer(testConfig(t))
	require.NoError(t, err)
	defer func() { assert.NoError(t, c.Close()) }()

	assert.NotNil(t, c.Handler())
	assert.NotNil(t, c.Service())
	assert.NotNil(t, c.Engine())
	assert.IsType(t, cache.NoopCache{}, c.cache)
	assert.Nil(t, c.registry, "no models configured")

	c.Warm(context.Background())

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	status := c.Service().Runtime()
	assert.True(t, status.Initialized)
	assert.Empty(t, status.Models)
}

func TestNewContainer_WithModels(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.Models = []engineconfig.ModelConfig{{Location: "file:///does/not/exist/eye.onnx"}}
	cfg.Engine.ApplyDefaults()

	c, err := NewContainer(cfg)
	require.NoError(t, err)
	defer c.Close()

	require.NotNil(t, c.registry)
	assert.Equal(t, 1, c.Service().Runtime().Configured)
}

func TestNewContainer_Invalid(t *testing.T) {
	_, err := NewContainer(nil)
	assert.Error(t, err)

	cfg := testConfig(t)
	cfg.Engine = nil
	_, err = NewContainer(cfg)
	assert.Error(t, err)
}
