package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "go-eye-inspector/internal/errors"
	"go-eye-inspector/internal/logger"
)

const fetchAttempts = 3

// HTTPArtifactFetcher downloads artifacts over HTTP(S) with retries
type HTTPArtifactFetcher struct {
	client  *http.Client
	backoff time.Duration
}

// NewHTTPArtifactFetcher creates an HTTP fetcher. The timeout bounds a whole
// download, which for model files can be large.
func NewHTTPArtifactFetcher(timeout time.Duration) *HTTPArtifactFetcher {
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 8192,
	}

	return &HTTPArtifactFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,

			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		backoff: time.Second,
	}
}

// WithBackoff sets the base delay between attempts; attempt n waits n*d.
func (h *HTTPArtifactFetcher) WithBackoff(d time.Duration) *HTTPArtifactFetcher {
	h.backoff = d
	return h
}

// Open fetches location. Network errors and 5xx responses are retried up to
// three attempts; 4xx responses are not.
func (h *HTTPArtifactFetcher) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	log := logger.Component("http_fetcher")
	var lastErr error

	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * h.backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
		if err != nil {
			return nil, apperrors.NewValidationError("invalid artifact URL", err)
		}
		req.Header.Set("Accept", "application/octet-stream, application/json, */*")
		req.Header.Set("User-Agent", "go-eye-inspector/1.0")

		resp, err := h.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			log.WithField("attempt", attempt+1).WithError(err).Warn("Artifact request failed")
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return resp.Body, nil
		}

		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, apperrors.NewNotFoundError("artifact not found", fmt.Errorf("client error: status code %d", resp.StatusCode)).
				WithDetails(location)
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			// 4xx client errors are non-retryable
			return nil, apperrors.NewNetworkError("failed to fetch artifact", fmt.Errorf("client error: status code %d", resp.StatusCode))
		default:
			lastErr = fmt.Errorf("server error: status code %d", resp.StatusCode)
			log.WithField("attempt", attempt+1).WithField("status", resp.StatusCode).Warn("Artifact server error")
		}
	}

	return nil, apperrors.NewNetworkError(fmt.Sprintf("failed to fetch artifact after %d attempts", fetchAttempts), lastErr)
}
