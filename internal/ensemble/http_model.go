package ensemble

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/nfnt/resize"

	"go-eye-inspector/pkg/models"
)

const maxInferenceResponse = 1 << 20

// inferenceResponse is what a remote endpoint returns: either an ordered
// probability object or raw logits in the configured class order.
type inferenceResponse struct {
	Probabilities *models.ClassProbabilities `json:"probabilities,omitempty"`
	Logits        []float64                  `json:"logits,omitempty"`
}

// httpModel posts each view as PNG to a remote inference endpoint.
type httpModel struct {
	spec   ModelSpec
	client *http.Client

	mu       sync.RWMutex
	endpoint string
}

// NewHTTPModel creates a remote model. A nil client uses http.DefaultClient.
func NewHTTPModel(spec ModelSpec, client *http.Client) Model {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpModel{spec: spec, client: client}
}

func (m *httpModel) Load(ctx context.Context) error {
	u, err := url.Parse(m.spec.Location)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint %q must be http or https", m.spec.Location)
	}
	m.mu.Lock()
	m.endpoint = u.String()
	m.mu.Unlock()
	return nil
}

func (m *httpModel) Infer(ctx context.Context, view image.Image) (models.ClassProbabilities, error) {
	m.mu.RLock()
	endpoint := m.endpoint
	m.mu.RUnlock()
	if endpoint == "" {
		return models.ClassProbabilities{}, fmt.Errorf("model %s not loaded", m.spec.Name)
	}

	if m.spec.InputSize > 0 {
		view = resize.Resize(uint(m.spec.InputSize), uint(m.spec.InputSize), view, resize.Bilinear)
	}
	var body bytes.Buffer
	if err := png.Encode(&body, view); err != nil {
		return models.ClassProbabilities{}, fmt.Errorf("encode view: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return models.ClassProbabilities{}, err
	}
	req.Header.Set("Content-Type", "image/png")
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return models.ClassProbabilities{}, fmt.Errorf("inference request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.ClassProbabilities{}, fmt.Errorf("inference endpoint returned status %d", resp.StatusCode)
	}

	var out inferenceResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxInferenceResponse)).Decode(&out); err != nil {
		return models.ClassProbabilities{}, fmt.Errorf("decode inference response: %w", err)
	}

	switch {
	case out.Probabilities != nil && !out.Probabilities.IsEmpty():
		return ToProbabilities(out.Probabilities.Classes, out.Probabilities.Probs, m.spec.Temperature)
	case len(out.Logits) > 0:
		return ToProbabilities(m.spec.Classes, out.Logits, m.spec.Temperature)
	default:
		return models.ClassProbabilities{}, fmt.Errorf("inference response carried no scores")
	}
}

func (m *httpModel) Info() ModelInfo {
	info := m.spec.info()
	if len(info.Providers) == 0 {
		info.Providers = []string{"remote"}
	}
	return info
}

func (m *httpModel) Close() error {
	return nil
}
