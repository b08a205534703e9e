// Package gemini builds google.golang.org/genai clients for the refiner, the
// image generator and the Veo backend, and classifies the SDK's errors.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"promptmaster/internal/domain"
)

const (
	DefaultRefineModel = "gemini-2.5-flash"
	DefaultImageModel  = "gemini-2.5-flash-image"
	DefaultVideoModel  = "veo-3.1-fast-generate-preview"

	defaultHTTPTimeout = 120 * time.Second
)

// Options controls how SDK clients are configured.
type Options struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewClient constructs a Gemini API client. An empty BaseURL keeps the SDK
// default endpoint.
func NewClient(ctx context.Context, opts Options) (*genai.Client, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, errors.New("gemini api key is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	httpOpts := genai.HTTPOptions{
		BaseURL:    strings.TrimRight(opts.BaseURL, "/"),
		APIVersion: opts.APIVersion,
	}
	if opts.Timeout > 0 {
		timeout := opts.Timeout
		httpOpts.Timeout = &timeout
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      key,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  httpClient,
		HTTPOptions: httpOpts,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return client, nil
}

// Factory hands out one client per API key. The video workflow resolves the
// active key per job, so clients cannot be fixed at startup.
type Factory struct {
	opts Options

	mu      sync.Mutex
	clients map[string]*genai.Client
}

func NewFactory(opts Options) *Factory {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Factory{opts: opts, clients: make(map[string]*genai.Client)}
}

// HTTPClient is the transport shared by every client of the factory.
func (f *Factory) HTTPClient() *http.Client {
	return f.opts.HTTPClient
}

// Client returns the cached client for apiKey, creating it on first use.
// An empty key selects the factory default.
func (f *Factory) Client(ctx context.Context, apiKey string) (*genai.Client, error) {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		key = strings.TrimSpace(f.opts.APIKey)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.clients[key]; ok {
		return c, nil
	}
	opts := f.opts
	opts.APIKey = key
	c, err := NewClient(ctx, opts)
	if err != nil {
		return nil, err
	}
	f.clients[key] = c
	return c, nil
}

// IsQuotaError reports whether err is the API's resource-exhausted reply.
func IsQuotaError(err error) bool {
	if errors.Is(err, domain.ErrQuotaExceeded) {
		return true
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || strings.EqualFold(apiErr.Status, "RESOURCE_EXHAUSTED")
	}
	return false
}
