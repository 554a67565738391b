package api

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
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config holds the backend client settings
type Config struct {
	BaseURL           string
	Category          string
	Deck              string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	// AudioPathSegment marks storage URLs that are rewritten to same-origin paths.
	AudioPathSegment string
	// SpoolDir receives audio bodies returned inline by the backend. When
	// empty the client uses a private temp directory.
	SpoolDir string
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:           "http://localhost:8000",
		Timeout:           60 * time.Second,
		RequestsPerSecond: 5,
		Burst:             10,
		AudioPathSegment:  "/card_audio/",
	}
}

// Client talks to the flashcard backend
type Client struct {
	config  Config
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger

	spoolMu      sync.Mutex
	spooled      map[string]struct{}
	privateSpool string
}

// errServerFailure marks 5xx responses so the breaker counts them.
var errServerFailure = errors.New("server failure")

// New creates a backend client
func New(config Config, logger *zap.Logger) (*Client, error) {
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = defaults.RequestsPerSecond
	}
	if config.Burst <= 0 {
		config.Burst = defaults.Burst
	}
	if config.AudioPathSegment == "" {
		config.AudioPathSegment = defaults.AudioPathSegment
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	base, err := url.Parse(strings.TrimRight(config.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", config.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", config.BaseURL)
	}

	c := &Client{
		config:  config,
		base:    base,
		http:    &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
		logger:  logger,
		spooled: make(map[string]struct{}),
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "backend",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return c, nil
}

// Deck returns the category and deck the client is bound to.
func (c *Client) Deck() (category, deck string) {
	return c.config.Category, c.config.Deck
}

// ResolveURL turns a backend path into an absolute URL. Absolute URLs
// pointing at the audio storage are rewritten to the same origin.
func (c *Client) ResolveURL(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}

	if u.IsAbs() {
		seg := c.config.AudioPathSegment
		if i := strings.Index(u.Path, seg); seg != "" && i >= 0 {
			u = &url.URL{Path: u.Path[i:], RawQuery: u.RawQuery}
		} else {
			return u.String(), nil
		}
	}

	return c.base.ResolveReference(u).String(), nil
}

// response is a buffered backend reply.
type response struct {
	status      int
	contentType string
	body        []byte
}

// rawBody is a request body that is already encoded.
type rawBody struct {
	contentType string
	data        []byte
}

// do sends one request through the limiter and the breaker. A 2xx reply is
// returned as is; anything else becomes a typed error.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, payload interface{}) (*response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}

	var body io.Reader
	var contentType string
	switch p := payload.(type) {
	case nil:
	case rawBody:
		body = bytes.NewReader(p.data)
		contentType = p.contentType
	default:
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	target := c.base.ResolveReference(&url.URL{Path: strings.TrimPrefix(path, "/")})
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	requestID := uuid.New().String()
	start := time.Now()

	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json, audio/*")
		req.Header.Set("X-Request-ID", requestID)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		r := &response{status: resp.StatusCode, contentType: resp.Header.Get("Content-Type"), body: data}
		if resp.StatusCode >= 500 {
			return r, errServerFailure
		}
		return r, nil
	})

	fields := []zap.Field{
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", target.Path),
		zap.String("request_id", requestID),
		zap.Duration("elapsed", time.Since(start)),
	}

	if err != nil && !errors.Is(err, errServerFailure) {
		c.logger.Warn("backend request failed", append(fields, zap.Error(err))...)
		return nil, &NetworkError{Op: op, Err: err}
	}

	r := result.(*response)
	c.logger.Debug("backend request", append(fields, zap.Int("status", r.status))...)

	if r.status < 200 || r.status > 299 {
		return nil, &BackendError{Op: op, Status: r.status, Detail: errorDetail(r.body)}
	}
	return r, nil
}

// doJSON sends a request and decodes the JSON reply into out.
func (c *Client) doJSON(ctx context.Context, op, method, path string, query url.Values, payload, out interface{}) error {
	r, err := c.do(ctx, op, method, path, query, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(r.body, out); err != nil {
		return &ProtocolError{Op: op, Message: "invalid JSON", Err: err}
	}
	return nil
}

// errorDetail extracts the "detail" field of an error body. Structured
// details are returned as raw JSON.
func errorDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return strings.TrimSpace(string(body))
	}

	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return s
	}
	return string(payload.Detail)
}

// deckQuery builds the category/deck query parameters.
func (c *Client) deckQuery() url.Values {
	q := url.Values{}
	q.Set("category", c.config.Category)
	q.Set("deck", c.config.Deck)
	return q
}
