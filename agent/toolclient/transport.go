package toolclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseSizeBytes = 2 << 20

// Transport performs a single tool call with no caching and no retries.
type Transport interface {
	Call(ctx context.Context, tool string, args map[string]any) (map[string]any, error)
	Ping(ctx context.Context) error
}

// Config covers the whole client stack: transport, retry policy and cache.
type Config struct {
	BaseURL        string        `envconfig:"BASE_URL" split_words:"true" default:"http://localhost:8004"`
	Timeout        time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	AuthToken      string        `envconfig:"AUTH_TOKEN" split_words:"true"`
	MaxAttempts    int           `envconfig:"MAX_ATTEMPTS" split_words:"true" default:"3"`
	InitialBackoff time.Duration `envconfig:"INITIAL_BACKOFF" split_words:"true" default:"2s"`
	MaxBackoff     time.Duration `envconfig:"MAX_BACKOFF" split_words:"true" default:"10s"`
	CacheTTL       time.Duration `envconfig:"CACHE_TTL" split_words:"true" default:"5m"`
}

// HTTPTransport talks to the warranty data service over its REST surface:
// POST {base}/tools/{name} with JSON arguments.
type HTTPTransport struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

func NewHTTPTransport(cfg Config) (*HTTPTransport, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("tool service url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid tool service url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPTransport{
		baseURL:   baseURL,
		authToken: strings.TrimSpace(cfg.AuthToken),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func (t *HTTPTransport) Call(ctx context.Context, tool string, args map[string]any) (map[string]any, error) {
	if args == nil {
		args = map[string]any{}
	}

	body, err := json.Marshal(args)
	if err != nil {
		return nil, newPermanent(tool, fmt.Errorf("marshal tool arguments: %w", err))
	}

	endpoint := t.baseURL + "/tools/" + url.PathEscape(tool)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, newPermanent(tool, fmt.Errorf("build tool request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if t.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+t.authToken)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		// Timeouts, refused connections and DNS failures are all worth a retry.
		return nil, newTransient(tool, fmt.Errorf("execute tool request: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, newTransient(tool, fmt.Errorf("read tool response: %w", err))
	}

	if kind, reason := classifyStatus(resp.StatusCode); kind != "" {
		err := fmt.Errorf("%s: http status=%d body=%s", reason, resp.StatusCode, truncate(raw, 512))
		if kind == KindTransient {
			return nil, newTransient(tool, err)
		}
		return nil, newPermanent(tool, err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, newPermanent(tool, fmt.Errorf("decode tool response: %w", err))
	}
	return payload, nil
}

// Ping probes the tool service health endpoint.
func (t *HTTPTransport) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tool service unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSizeBytes))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("tool service unhealthy: http status=%d", resp.StatusCode)
	}
	return nil
}

// classifyStatus returns the error kind for a non-2xx status, or "" for
// success. 5xx and 429 are retryable; every other 4xx will not improve on a
// second attempt.
func classifyStatus(status int) (ErrorKind, string) {
	switch {
	case status >= 200 && status < 300:
		return "", ""
	case status == http.StatusNotFound:
		return KindPermanent, "unknown tool"
	case status == http.StatusUnprocessableEntity || status == http.StatusBadRequest:
		return KindPermanent, "invalid tool arguments"
	case status == http.StatusTooManyRequests:
		return KindTransient, "tool service throttled"
	case status >= 500:
		return KindTransient, "tool service error"
	default:
		return KindPermanent, "tool request rejected"
	}
}

func truncate(raw []byte, limit int) string {
	s := strings.TrimSpace(string(raw))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
