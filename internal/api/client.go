// Package api is a typed client for the interview service REST contract.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/rehearse/internal/failure"
)

// TokenSource supplies and revokes the bearer credential.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate(ctx context.Context) error
}

// StaticToken is a fixed credential that cannot be revoked.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }
func (StaticToken) Invalidate(context.Context) error        { return nil }

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Tokens     TokenSource
	Logger     *slog.Logger
	UserAgent  string
}

// Client issues single round-trip calls; it never retries.
type Client struct {
	baseURL   string
	http      *http.Client
	tokens    TokenSource
	logger    *slog.Logger
	userAgent string
}

// New validates opts and builds a Client.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("api base url cannot be empty")
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid api base url %q", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	tokens := opts.Tokens
	if tokens == nil {
		tokens = StaticToken("")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}

	return &Client{
		baseURL:   base,
		http:      httpClient,
		tokens:    tokens,
		logger:    logger,
		userAgent: strings.TrimSpace(opts.UserAgent),
	}, nil
}

// BaseURL returns the normalized service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type call struct {
	op            string
	method        string
	path          string
	query         url.Values
	body          io.Reader
	contentType   string
	public        bool
	sessionScoped bool
}

func (c *Client) jsonBody(v any) (io.Reader, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return bytes.NewReader(payload), nil
}

func (c *Client) do(ctx context.Context, cl call, out any) error {
	endpoint := c.baseURL + cl.path
	if len(cl.query) > 0 {
		endpoint += "?" + cl.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, endpoint, cl.body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", cl.op, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if cl.body != nil {
		contentType := cl.contentType
		if contentType == "" {
			contentType = "application/json"
		}
		req.Header.Set("Content-Type", contentType)
	}

	if !cl.public {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("%s: load credential: %w", cl.op, err)
		}
		if strings.TrimSpace(token) == "" {
			return fmt.Errorf("%s: %w", cl.op, failure.ErrAuthenticationRequired)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "api request failed",
			"op", cl.op,
			"request_id", requestID,
			"error", err.Error(),
		)
		return fmt.Errorf("%s: %w: %w", cl.op, failure.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("%s: read response: %w: %w", cl.op, failure.ErrTransport, err)
	}

	c.logger.DebugContext(ctx, "api request",
		"op", cl.op,
		"method", cl.method,
		"path", cl.path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration_ms", time.Since(started).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{
			Op:      cl.op,
			Status:  resp.StatusCode,
			Message: errorMessage(body),
			kind:    classify(resp.StatusCode, cl.sessionScoped),
		}
		if errors.Is(apiErr, failure.ErrAuthenticationRequired) && !cl.public {
			if err := c.tokens.Invalidate(ctx); err != nil {
				c.logger.WarnContext(ctx, "invalidate credential failed", "error", err.Error())
			}
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w: %w", cl.op, failure.ErrServer, err)
	}
	return nil
}

func errorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Msg     string `json:"msg"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, msg := range []string{payload.Error, payload.Message, payload.Msg} {
			if strings.TrimSpace(msg) != "" {
				return strings.TrimSpace(msg)
			}
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}
