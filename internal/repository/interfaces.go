package repository

import (
	"context"

	"go-eye-inspector/internal/storage"
)

// ArtifactRepository maps model locations to readable local files.
// It satisfies ensemble.ArtifactResolver.
type ArtifactRepository interface {
	// Resolve returns a local path for location, fetching it first if remote
	Resolve(ctx context.Context, location string) (string, error)

	// CachedPath reports where a remote location is stored locally
	CachedPath(location string) string
}

// FetcherProvider picks a fetcher for a location
type FetcherProvider interface {
	ForLocation(location string) (storage.ArtifactFetcher, error)
}
