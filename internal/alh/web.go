package alh

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultWebTimeout = 30 * time.Second

// WithWebLogger sets the logger for the web endpoint
func WithWebLogger(logger *slog.Logger) func(w *Web) {
	return func(w *Web) {
		w.logger = logger.With(slog.String("endpoint", w.baseURL))
	}
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(client *http.Client) func(w *Web) {
	return func(w *Web) {
		w.client = client
	}
}

// Web talks to a node through the HTTP infrastructure gateway. All requests
// go to a single endpoint; the verb, resource path and payload travel as
// form parameters and the node's raw response comes back as the body.
type Web struct {
	baseURL string
	cluster int

	client *http.Client
	logger *slog.Logger
}

// NewWeb creates an endpoint for the node with the given cluster address
// behind the gateway at baseURL. A cluster of zero addresses the gateway's
// directly attached node.
func NewWeb(baseURL string, cluster int, options ...func(w *Web)) *Web {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	w := Web{
		baseURL: baseURL,
		cluster: cluster,
		client:  &http.Client{Timeout: defaultWebTimeout},
		logger:  logger,
	}

	for _, option := range options {
		option(&w)
	}

	return &w
}

func (w *Web) Get(ctx context.Context, resource string, args ...string) ([]byte, error) {
	params := w.params("get", joinResource(resource, args))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	return w.do(req)
}

func (w *Web) Post(ctx context.Context, resource string, data []byte, args ...string) ([]byte, error) {
	params := w.params("post", joinResource(resource, args))
	params.Set("content", string(data))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return w.do(req)
}

func (w *Web) params(method, resource string) url.Values {
	params := url.Values{}
	params.Set("method", method)
	params.Set("resource", resource)
	if w.cluster != 0 {
		params.Set("cluster", strconv.Itoa(w.cluster))
	}
	return params
}

func (w *Web) do(req *http.Request) ([]byte, error) {
	started := time.Now()

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	w.logger.Debug("gateway exchange",
		slog.String("method", req.Method),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(body)),
		slog.Duration("took", time.Since(started)))

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if isCorrupt(body) {
		return nil, fmt.Errorf("%w: %s", ErrCorruptResponse, strings.TrimSpace(string(body)))
	}

	return body, nil
}
