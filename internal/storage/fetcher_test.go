package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	apperrors "go-eye-inspector/internal/errors"
)

func TestFileFetcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.onnx")
	if err := os.WriteFile(path, artifactBytes, 0o644); err != nil {
		t.Fatalf("Failed to write artifact: %v", err)
	}

	fetcher := NewFileFetcher()
	for _, location := range []string{path, "file://" + path} {
		body, err := fetcher.Open(context.Background(), location)
		if err != nil {
			t.Fatalf("Open(%q) failed: %v", location, err)
		}
		data, _ := io.ReadAll(body)
		body.Close()
		if string(data) != string(artifactBytes) {
			t.Errorf("Open(%q) returned %q", location, data)
		}
	}

	_, err := fetcher.Open(context.Background(), filepath.Join(dir, "missing.onnx"))
	if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		t.Errorf("Expected not_found for a missing file, got %v", err)
	}
}

func TestParseBlobLocation(t *testing.T) {
	tests := []struct {
		location string
		want     BlobLocation
		wantErr  bool
	}{
		{"azblob://acct/models/eye/v1.onnx", BlobLocation{"acct", "models", "eye/v1.onnx"}, false},
		{"azblob://acct/models/a.onnx", BlobLocation{"acct", "models", "a.onnx"}, false},
		{"azblob://acct/models", BlobLocation{}, true},
		{"azblob:///models/a.onnx", BlobLocation{}, true},
		{"https://acct.blob.core.windows.net/models/a.onnx", BlobLocation{}, true},
	}

	for _, tt := range tests {
		got, err := ParseBlobLocation(tt.location)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseBlobLocation(%q) error = %v, wantErr %v", tt.location, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseBlobLocation(%q) = %+v, want %+v", tt.location, got, tt.want)
		}
	}
}
