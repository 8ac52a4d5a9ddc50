package repository

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "go-eye-inspector/internal/errors"
	"go-eye-inspector/internal/storage"
	"go-eye-inspector/pkg/validation"
)

type staticFetchers struct {
	fetcher storage.ArtifactFetcher
}

func (s staticFetchers) ForLocation(string) (storage.ArtifactFetcher, error) {
	return s.fetcher, nil
}

func newHTTPRepo(t *testing.T) *CachedArtifactRepository {
	t.Helper()
	fetcher := storage.NewHTTPArtifactFetcher(5 * time.Second).WithBackoff(time.Millisecond)
	return NewArtifactRepository(t.TempDir(), staticFetchers{fetcher}, nil)
}

func TestResolveLocalFile(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "eye.onnx")
	require.NoError(t, os.WriteFile(model, []byte("model"), 0o644))

	repo := NewArtifactRepository(t.TempDir(), nil, nil)

	got, err := repo.Resolve(context.Background(), model)
	require.NoError(t, err)
	assert.Equal(t, model, got)

	got, err = repo.Resolve(context.Background(), "file://"+model)
	require.NoError(t, err)
	assert.Equal(t, model, got)

	_, err = repo.Resolve(context.Background(), filepath.Join(dir, "eye.json"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound), "got %v", err)
}

func TestResolveRejectsInvalidLocation(t *testing.T) {
	repo := NewArtifactRepository(t.TempDir(), nil, validation.NewLocationValidatorWithOptions([]string{"https"}, nil))

	_, err := repo.Resolve(context.Background(), "http://example.com/model.onnx")
	assert.True(t, errors.Is(err, ErrInvalidLocation))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = repo.Resolve(context.Background(), "")
	assert.True(t, errors.Is(err, ErrInvalidLocation))
}

func TestResolveDownloadsOnce(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		time.Sleep(10 * time.Millisecond)
		w.Write([]byte("remote-model"))
	}))
	defer server.Close()

	repo := newHTTPRepo(t)
	location := server.URL + "/models/eye.onnx?version=2"

	var wg sync.WaitGroup
	paths := make([]string, 6)
	for i := range paths {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := repo.Resolve(context.Background(), location)
			assert.NoError(t, err)
			paths[i] = p
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, requests.Load())
	for _, p := range paths {
		assert.Equal(t, repo.CachedPath(location), p)
	}
	assert.Equal(t, ".onnx", filepath.Ext(paths[0]))

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "remote-model", string(data))

	// the cache file survives a new lookup without another request
	_, err = repo.Resolve(context.Background(), location)
	require.NoError(t, err)
	assert.EqualValues(t, 1, requests.Load())
}

func TestResolveRemoteMissing(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	repo := newHTTPRepo(t)
	location := server.URL + "/models/eye.json"

	_, err := repo.Resolve(context.Background(), location)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound), "got %v", err)

	_, statErr := os.Stat(repo.CachedPath(location))
	assert.True(t, os.IsNotExist(statErr), "failed downloads must not leave a cache file")
}

func TestCachedPathDistinguishesLocations(t *testing.T) {
	repo := NewArtifactRepository("/cache", nil, nil)
	a := repo.CachedPath("https://a.example.com/m.onnx")
	b := repo.CachedPath("https://b.example.com/m.onnx")
	assert.NotEqual(t, a, b)
	assert.Equal(t, "/cache", filepath.Dir(a))
}
