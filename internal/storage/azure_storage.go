package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	apperrors "go-eye-inspector/internal/errors"
)

// BlobLocation is a parsed azblob://account/container/path location
type BlobLocation struct {
	Account   string
	Container string
	Blob      string
}

// ParseBlobLocation splits an azblob:// location.
func ParseBlobLocation(location string) (BlobLocation, error) {
	u, err := url.Parse(location)
	if err != nil {
		return BlobLocation{}, apperrors.NewValidationError("invalid blob location", err)
	}
	if u.Scheme != "azblob" {
		return BlobLocation{}, apperrors.NewValidationError("blob location must use the azblob scheme", nil).WithDetails(location)
	}
	container, blob, ok := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	if u.Host == "" || container == "" || !ok || blob == "" {
		return BlobLocation{}, apperrors.NewValidationError("blob location must be azblob://account/container/blob", nil).WithDetails(location)
	}
	return BlobLocation{Account: u.Host, Container: container, Blob: blob}, nil
}

// AzureBlobFetcher downloads artifacts from Azure Blob Storage. The
// configured account authenticates with its shared key; any other account
// is read anonymously.
type AzureBlobFetcher struct {
	accountName string
	accountKey  string

	mu      sync.Mutex
	clients map[string]*azblob.Client
}

// NewAzureBlobFetcher creates a blob fetcher. Both arguments may be empty.
func NewAzureBlobFetcher(accountName, accountKey string) *AzureBlobFetcher {
	return &AzureBlobFetcher{
		accountName: accountName,
		accountKey:  accountKey,
		clients:     make(map[string]*azblob.Client),
	}
}

func (s *AzureBlobFetcher) clientFor(account string) (*azblob.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if client, ok := s.clients[account]; ok {
		return client, nil
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", account)
	opts := &azblob.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{MaxRetries: 3},
		},
	}

	var (
		client *azblob.Client
		err    error
	)
	if account == s.accountName && s.accountKey != "" {
		credential, cerr := azblob.NewSharedKeyCredential(account, s.accountKey)
		if cerr != nil {
			return nil, apperrors.NewValidationError("invalid azure storage credentials", cerr)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, credential, opts)
	} else {
		client, err = azblob.NewClientWithNoCredential(serviceURL, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("create blob client for %s: %w", account, err)
	}

	s.clients[account] = client
	return client, nil
}

func (s *AzureBlobFetcher) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	loc, err := ParseBlobLocation(location)
	if err != nil {
		return nil, err
	}
	client, err := s.clientFor(loc.Account)
	if err != nil {
		return nil, err
	}

	resp, err := client.DownloadStream(ctx, loc.Container, loc.Blob, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound, bloberror.ResourceNotFound) {
			return nil, apperrors.NewNotFoundError("blob not found", err).WithDetails(location)
		}
		return nil, apperrors.NewNetworkError("blob download failed", err)
	}
	return resp.Body, nil
}
