package factory

import (
	"fmt"
	"net/http"
	"time"

	"go-eye-inspector/internal/ensemble"
	"go-eye-inspector/internal/storage"
	"go-eye-inspector/pkg/validation"
)

// FetcherFactory creates artifact fetchers by location scheme
type FetcherFactory interface {
	ForLocation(location string) (storage.ArtifactFetcher, error)
}

// fetcherFactory implements FetcherFactory. Fetchers are built once and shared.
type fetcherFactory struct {
	file  storage.ArtifactFetcher
	http  storage.ArtifactFetcher
	azure storage.ArtifactFetcher
}

// NewFetcherFactory creates a fetcher factory. The Azure credentials may be
// empty, in which case blobs are read anonymously.
func NewFetcherFactory(downloadTimeout time.Duration, azureAccount, azureKey string) FetcherFactory {
	return &fetcherFactory{
		file:  storage.NewFileFetcher(),
		http:  storage.NewHTTPArtifactFetcher(downloadTimeout),
		azure: storage.NewAzureBlobFetcher(azureAccount, azureKey),
	}
}

// ForLocation returns the fetcher serving the location's scheme
func (f *fetcherFactory) ForLocation(location string) (storage.ArtifactFetcher, error) {
	switch scheme := validation.SchemeOf(location); scheme {
	case validation.SchemeFile:
		return f.file, nil
	case validation.SchemeHTTP, validation.SchemeHTTPS:
		return f.http, nil
	case validation.SchemeAzBlob:
		return f.azure, nil
	default:
		return nil, fmt.Errorf("unsupported location scheme: %s", scheme)
	}
}

// ModelFactory creates ensemble models by backend. It implements
// ensemble.ModelBuilder.
type ModelFactory struct {
	resolver    ensemble.ArtifactResolver
	libraryPath string
	client      *http.Client
}

// NewModelFactory creates a model factory. ONNX models resolve their
// artifacts through resolver; HTTP models share client.
func NewModelFactory(resolver ensemble.ArtifactResolver, libraryPath string, client *http.Client) *ModelFactory {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ModelFactory{resolver: resolver, libraryPath: libraryPath, client: client}
}

// Create builds an unloaded model for spec
func (f *ModelFactory) Create(spec ensemble.ModelSpec) (ensemble.Model, error) {
	switch spec.Backend {
	case ensemble.BackendONNX:
		return ensemble.NewONNXModel(spec, f.resolver, f.libraryPath), nil
	case ensemble.BackendHTTP:
		return ensemble.NewHTTPModel(spec, f.client), nil
	default:
		return nil, fmt.Errorf("unsupported model backend: %s", spec.Backend)
	}
}
