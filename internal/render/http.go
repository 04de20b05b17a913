package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPRenderer asks a render service to draw the artifact.
//
// Request:  POST {"brand": "...", "title": "...", "content": ["..."]}
// Response: 200 {"image_data": "<base64>"}; 404 or empty image_data means
// the brand has no stage ready.
type HTTPRenderer struct {
	url    string
	token  string
	client *http.Client
}

func NewHTTPRenderer(url, token string, timeout time.Duration) *HTTPRenderer {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPRenderer{url: strings.TrimSpace(url), token: token, client: &http.Client{Timeout: timeout}}
}

type httpRenderRequest struct {
	Brand   string   `json:"brand"`
	Title   string   `json:"title"`
	Content []string `json:"content"`
}

type httpRenderResponse struct {
	ImageData string `json:"image_data"`
	Error     string `json:"error,omitempty"`
}

func (r *HTTPRenderer) Render(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(httpRenderRequest{Brand: req.BrandID, Title: req.Title, Content: req.Content})
	if err != nil {
		return "", err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	hreq.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		hreq.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(hreq)
	if err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return "", fmt.Errorf("render: read body: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: brand %q", ErrNoArtifact, req.BrandID)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("render: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out httpRenderResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("render: decode response: %w", err)
	}
	if strings.TrimSpace(out.ImageData) == "" {
		return "", fmt.Errorf("%w: empty image for brand %q", ErrNoArtifact, req.BrandID)
	}
	return out.ImageData, nil
}
