package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries the per-call correlation id
const RequestIDHeader = "X-Request-ID"

// TokenSource supplies the bearer token for authenticated calls. An empty
// token means none is available.
type TokenSource interface {
	Token() string
}

// Config holds transport configuration
type Config struct {
	BaseURL   string
	UserAgent string
	Tokens    TokenSource
	// HTTPClient defaults to a client without any timeout; cancellation is
	// driven by the caller's context.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client performs calls against the e-NACH backend
type Client struct {
	baseURL   *url.URL
	userAgent string
	tokens    TokenSource
	http      *http.Client
	logger    *slog.Logger
}

// Request describes one backend call
type Request struct {
	Method     string
	Path       string // may contain {name} placeholders
	PathParams map[string]string
	Query      map[string]string // empty values are omitted
	JSON       any
	Multipart  *Multipart
	Auth       bool
	Header     http.Header
}

// Response is a completed 2xx response with its body read
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	RequestID  string
}

// Decode unmarshals the body into v
func (r *Response) Decode(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return ErrEmptyResponse
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &ParseError{Err: err, Body: r.Body}
	}
	return nil
}

// NewClient creates a new transport client
func NewClient(config *Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	base, err := url.Parse(strings.TrimRight(config.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url: %q", config.BaseURL)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 0}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:   base,
		userAgent: config.UserAgent,
		tokens:    config.Tokens,
		http:      httpClient,
		logger:    logger,
	}, nil
}

// BaseURL returns the configured backend base URL
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Do performs the request and reads the whole body. Non-2xx responses are
// returned as *APIError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	resp, reqID, start, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Debug("Failed to read response body",
			slog.String("request_id", reqID),
			slog.Any("error", err),
		)
		return nil, &NetworkError{Method: req.Method, Path: req.Path, Err: err}
	}

	c.logger.Debug("HTTP response received",
		slog.String("request_id", reqID),
		slog.String("method", req.Method),
		slog.String("path", req.Path),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(body)),
		slog.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode/100 != 2 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    extractMessage(body),
			Body:       body,
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		RequestID:  reqID,
	}, nil
}

// Stream performs the request and hands back the live body for 2xx responses
// together with its content length (-1 when unknown). The caller closes it.
func (c *Client) Stream(ctx context.Context, req Request) (io.ReadCloser, int64, error) {
	resp, reqID, start, err := c.send(ctx, req)
	if err != nil {
		return nil, 0, err
	}

	c.logger.Debug("HTTP stream opened",
		slog.String("request_id", reqID),
		slog.String("method", req.Method),
		slog.String("path", req.Path),
		slog.Int("status", resp.StatusCode),
		slog.Int64("content_length", resp.ContentLength),
		slog.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, 0, &APIError{
			StatusCode: resp.StatusCode,
			Message:    extractMessage(body),
			Body:       body,
		}
	}

	return resp.Body, resp.ContentLength, nil
}

func (c *Client) send(ctx context.Context, req Request) (*http.Response, string, time.Time, error) {
	start := time.Now()

	httpReq, err := c.build(ctx, req)
	if err != nil {
		return nil, "", start, err
	}
	reqID := httpReq.Header.Get(RequestIDHeader)

	c.logger.Debug("HTTP request",
		slog.String("request_id", reqID),
		slog.String("method", req.Method),
		slog.String("path", req.Path),
		slog.Bool("auth", httpReq.Header.Get("Authorization") != ""),
	)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Debug("HTTP request failed",
			slog.String("request_id", reqID),
			slog.String("method", req.Method),
			slog.String("path", req.Path),
			slog.Duration("latency", time.Since(start)),
			slog.Any("error", err),
		)
		return nil, reqID, start, &NetworkError{Method: req.Method, Path: req.Path, Err: err}
	}

	return resp, reqID, start, nil
}

func (c *Client) build(ctx context.Context, req Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	target, err := c.resolve(req)
	if err != nil {
		return nil, err
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case req.Multipart != nil:
		rc, ct, err := req.Multipart.stream()
		if err != nil {
			return nil, err
		}
		body, contentType = rc, ct
	case req.JSON != nil:
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body, contentType = bytes.NewReader(data), "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		if rc, ok := body.(io.Closer); ok {
			rc.Close()
		}
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(RequestIDHeader, uuid.New().String())
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for k, values := range req.Header {
		httpReq.Header.Del(k)
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}

	if req.Auth && httpReq.Header.Get("Authorization") == "" && c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	return httpReq, nil
}

func (c *Client) resolve(req Request) (string, error) {
	path, err := expandPath(req.Path, req.PathParams)
	if err != nil {
		return "", err
	}

	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + path
	u.RawPath = strings.TrimRight(c.baseURL.EscapedPath(), "/") + escapedPath(req.Path, req.PathParams)

	query := url.Values{}
	for k, v := range req.Query {
		if v != "" {
			query.Set(k, v)
		}
	}
	u.RawQuery = query.Encode()

	return u.String(), nil
}

// expandPath substitutes {name} placeholders with their raw values
func expandPath(tmpl string, params map[string]string) (string, error) {
	return substitute(tmpl, params, func(s string) string { return s })
}

func escapedPath(tmpl string, params map[string]string) string {
	out, _ := substitute(tmpl, params, url.PathEscape)
	return out
}

func substitute(tmpl string, params map[string]string, encode func(string) string) (string, error) {
	var b strings.Builder
	rest := tmpl
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return "", fmt.Errorf("unterminated placeholder in path %q", tmpl)
		}
		name := rest[open+1 : open+end]
		value, ok := params[name]
		if !ok || value == "" {
			return "", fmt.Errorf("missing path parameter %q", name)
		}
		b.WriteString(rest[:open])
		b.WriteString(encode(value))
		rest = rest[open+end+1:]
	}
	if !strings.HasPrefix(b.String(), "/") {
		return "/" + b.String(), nil
	}
	return b.String(), nil
}
