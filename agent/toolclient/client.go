package toolclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	logx "github.com/warrantix/warrantix/pkg/logger"
	"github.com/warrantix/warrantix/pkg/metrics"
)

// Client is the caching, retrying tool invoker shared by all analyzers. It is
// safe for concurrent use.
type Client struct {
	transport Transport
	cache     *ttlCache

	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration

	log zerolog.Logger
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithTransport replaces the HTTP transport built from the Config.
func WithTransport(t Transport) ClientOption {
	return func(c *Client) {
		if t != nil {
			c.transport = t
		}
	}
}

// WithClock replaces the cache clock.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		if now != nil && c.cache != nil {
			c.cache.now = now
		}
	}
}

func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	initialBackoff := cfg.InitialBackoff
	if initialBackoff <= 0 {
		initialBackoff = 2 * time.Second
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff < initialBackoff {
		maxBackoff = initialBackoff
	}

	client := &Client{
		cache:          newTTLCache(cfg.CacheTTL, time.Now),
		maxAttempts:    maxAttempts,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
		log:            logx.Component("toolclient"),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.transport == nil {
		transport, err := NewHTTPTransport(cfg)
		if err != nil {
			return nil, err
		}
		client.transport = transport
	}

	return client, nil
}

func MustNew(cfg Config, opts ...ClientOption) *Client {
	client, err := NewClient(cfg, opts...)
	if err != nil {
		panic(err)
	}
	return client
}

// Invoke resolves a tool call through the cache, falling through to the
// transport with bounded retries. Successful payloads are cached for the
// configured TTL; failures are never cached.
func (c *Client) Invoke(ctx context.Context, tool string, args map[string]any) (map[string]any, error) {
	if strings.TrimSpace(tool) == "" {
		return nil, newPermanent(tool, errors.New("tool name is empty"))
	}

	key, err := cacheKey(tool, args)
	if err != nil {
		return nil, newPermanent(tool, err)
	}

	payload, outcome := c.cache.get(key)
	metrics.RecordCacheEvent(outcome)
	if outcome == cacheHit {
		c.log.Debug().Str("tool", tool).Msg("cache hit")
		return payload, nil
	}

	var lastErr *Error
	backoff := c.initialBackoff

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		payload, callErr := c.transport.Call(ctx, tool, args)
		if callErr == nil {
			c.cache.put(key, payload)
			metrics.RecordToolCall(tool, true)
			return payload, nil
		}

		lastErr = asToolError(tool, callErr)
		if lastErr.Kind == KindPermanent {
			metrics.RecordToolCall(tool, false)
			c.log.Warn().Str("tool", tool).Err(lastErr).Msg("tool call failed permanently")
			return nil, lastErr
		}
		if attempt == c.maxAttempts {
			break
		}

		metrics.RecordToolRetry(tool)
		c.log.Debug().
			Str("tool", tool).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Err(lastErr).
			Msg("transient tool failure, retrying")

		if err := sleepCtx(ctx, backoff); err != nil {
			return nil, newTransient(tool, err)
		}
		backoff *= 2
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}

	metrics.RecordToolCall(tool, false)
	c.log.Warn().Str("tool", tool).Int("attempts", c.maxAttempts).Err(lastErr).Msg("tool call exhausted retries")
	return nil, lastErr
}

// Ping checks that the tool service is reachable. Used by readiness probes.
func (c *Client) Ping(ctx context.Context) error {
	return c.transport.Ping(ctx)
}

func asToolError(tool string, err error) *Error {
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	return newTransient(tool, err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("retry interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
