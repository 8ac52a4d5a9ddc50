package factory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-eye-inspector/internal/ensemble"
	"go-eye-inspector/internal/storage"
)

func TestFetcherFactoryForLocation(t *testing.T) {
	f := NewFetcherFactory(time.Second, "", "")

	tests := []struct {
		location string
		want     interface{}
	}{
		{"/models/eye.onnx", storage.FileFetcher{}},
		{"file:///models/eye.onnx", storage.FileFetcher{}},
		{"https://models.example.com/eye.onnx", &storage.HTTPArtifactFetcher{}},
		{"http://localhost:9000/predict", &storage.HTTPArtifactFetcher{}},
		{"azblob://acct/models/eye.onnx", &storage.AzureBlobFetcher{}},
	}
	for _, tt := range tests {
		got, err := f.ForLocation(tt.location)
		require.NoError(t, err, tt.location)
		assert.IsType(t, tt.want, got, tt.location)
	}

	_, err := f.ForLocation("s3://bucket/eye.onnx")
	assert.Error(t, err)
}

func TestModelFactoryCreate(t *testing.T) {
	f := NewModelFactory(nil, "", nil)

	onnx, err := f.Create(ensemble.ModelSpec{Name: "local", Location: "/m.onnx", Backend: ensemble.BackendONNX})
	require.NoError(t, err)
	assert.Equal(t, "local", onnx.Info().Name)

	remote, err := f.Create(ensemble.ModelSpec{Name: "remote", Location: "http://localhost/predict", Backend: ensemble.BackendHTTP})
	require.NoError(t, err)
	assert.Equal(t, "remote", remote.Info().Name)

	_, err = f.Create(ensemble.ModelSpec{Name: "x", Backend: "tflite"})
	assert.Error(t, err)
}
