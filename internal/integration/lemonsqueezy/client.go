package lemonsqueezy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/nutrilog/billing-service/internal/domain"
	"github.com/nutrilog/billing-service/pkg/logger"
)

const defaultBaseURL = "https://api.lemonsqueezy.com/v1"

// Config holds the provider credentials
type Config struct {
	APIKey        string
	SigningSecret string
	BaseURL       string // overridable for tests
}

// Client talks to the billing provider's REST API
type Client struct {
	baseURL       string
	apiKey        string
	signingSecret string
	httpClient    *http.Client
	log           *logger.Logger
}

// NewClient creates a provider API client
func NewClient(cfg Config, log *logger.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		baseURL:       baseURL,
		apiKey:        cfg.APIKey,
		signingSecret: cfg.SigningSecret,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		log:           log,
	}
}

// do performs an authenticated request and returns the raw response body.
// Non-2xx responses are mapped onto domain errors.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build provider request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.api+json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/vnd.api+json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewExternalServiceError("lemonsqueezy", "request_failed", method+" "+path, 0, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewExternalServiceError("lemonsqueezy", "read_failed", method+" "+path, resp.StatusCode, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.NewNotFoundError("provider resource", path)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		c.log.Warnw("Provider API call failed", "method", method, "path", path, "status", resp.StatusCode)
		return nil, domain.NewExternalServiceError("lemonsqueezy", "unexpected_status",
			fmt.Sprintf("%s %s returned %d", method, path, resp.StatusCode), resp.StatusCode, nil)
	}

	return respBody, nil
}
