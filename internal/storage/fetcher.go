package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	apperrors "go-eye-inspector/internal/errors"
)

// ArtifactFetcher streams a model artifact from its location.
// A missing artifact is reported as a not_found error.
type ArtifactFetcher interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// FileFetcher reads artifacts from the local filesystem
type FileFetcher struct{}

// NewFileFetcher creates a local file fetcher
func NewFileFetcher() ArtifactFetcher {
	return FileFetcher{}
}

// LocalPath strips a file:// prefix.
func LocalPath(location string) string {
	return strings.TrimPrefix(location, "file://")
}

func (FileFetcher) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := LocalPath(location)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("artifact %s does not exist", path), err)
		}
		return nil, fmt.Errorf("open artifact %s: %w", path, err)
	}
	return f, nil
}
