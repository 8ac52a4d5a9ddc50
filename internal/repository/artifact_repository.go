package repository

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	apperrors "go-eye-inspector/internal/errors"
	"go-eye-inspector/internal/logger"
	"go-eye-inspector/internal/storage"
	"go-eye-inspector/pkg/validation"
)

// CachedArtifactRepository serves local paths directly and downloads remote
// artifacts once into a cache directory. Concurrent resolves of the same
// location share one download.
type CachedArtifactRepository struct {
	cacheDir  string
	fetchers  FetcherProvider
	validator *validation.LocationValidator

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewArtifactRepository creates a repository caching into cacheDir
func NewArtifactRepository(cacheDir string, fetchers FetcherProvider, validator *validation.LocationValidator) *CachedArtifactRepository {
	if validator == nil {
		validator = validation.NewLocationValidator()
	}
	return &CachedArtifactRepository{
		cacheDir:  cacheDir,
		fetchers:  fetchers,
		validator: validator,
		locks:     make(map[string]*sync.Mutex),
	}
}

// CachedPath names the cache file for a remote location: a hash prefix
// keeps distinct locations apart, the base name keeps the extension.
func (r *CachedArtifactRepository) CachedPath(location string) string {
	sum := sha1.Sum([]byte(location))
	base := path.Base(strings.SplitN(location, "?", 2)[0])
	if base == "." || base == "/" {
		base = "artifact"
	}
	return filepath.Join(r.cacheDir, hex.EncodeToString(sum[:8])+"-"+base)
}

func (r *CachedArtifactRepository) Resolve(ctx context.Context, location string) (string, error) {
	if err := r.validator.ValidateLocation(location); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidLocation, err)
	}

	if validation.SchemeOf(location) == validation.SchemeFile {
		p := storage.LocalPath(strings.TrimSpace(location))
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				return "", apperrors.NewNotFoundError(fmt.Sprintf("artifact %s does not exist", p), err)
			}
			return "", fmt.Errorf("stat artifact %s: %w", p, err)
		}
		return p, nil
	}

	target := r.CachedPath(location)
	lock := r.lockFor(target)
	lock.Lock()
	defer lock.Unlock()

	if _, err := os.Stat(target); err == nil {
		return target, nil
	}
	if err := r.download(ctx, location, target); err != nil {
		return "", err
	}
	return target, nil
}

func (r *CachedArtifactRepository) lockFor(key string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[key]
	if !ok {
		l = &sync.Mutex{}
		r.locks[key] = l
	}
	return l
}

// download writes to a temporary file and renames it into place, so a
// partial transfer never looks like a cached artifact.
func (r *CachedArtifactRepository) download(ctx context.Context, location, target string) error {
	log := logger.Component("artifact_repository").WithField("location", location)

	if r.fetchers == nil {
		return fmt.Errorf("%w: no fetchers configured", ErrRepositoryUnavailable)
	}
	fetcher, err := r.fetchers.ForLocation(location)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(r.cacheDir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrRepositoryUnavailable, err)
	}

	body, err := fetcher.Open(ctx, location)
	if err != nil {
		return err
	}
	defer body.Close()

	tmp, err := os.CreateTemp(r.cacheDir, ".download-*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRepositoryUnavailable, err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return apperrors.NewNetworkError("artifact download interrupted", err).WithDetails(location)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("%w: %w", ErrRepositoryUnavailable, err)
	}

	log.WithField("bytes", n).WithField("path", target).Info("Artifact cached")
	return nil
}
