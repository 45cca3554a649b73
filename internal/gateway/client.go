// Package gateway sends every backend request. It attaches the session's
// bearer token, applies per-request timeouts and recovers from an expired
// token with a single shared refresh.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/safar/go-pos-register/internal/session"
)

const DefaultRefreshPath = "/auth/refresh"

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	BaseURL       string
	Timeout       time.Duration
	AuthTimeout   time.Duration
	SlowThreshold time.Duration
	RefreshPath   string
	HTTPClient    Doer
	Logger        *zap.Logger
	// OnAuthLost is called once when the session is cleared because the
	// token could not be recovered.
	OnAuthLost func(err error)
}

type Client struct {
	httpClient    Doer
	baseURL       string
	timeout       time.Duration
	authTimeout   time.Duration
	slowThreshold time.Duration
	refreshPath   string
	session       *session.Session
	logger        *zap.Logger
	onAuthLost    func(err error)

	mu       sync.Mutex
	inflight *refreshCall
}

type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	// Timeout overrides the client default when non-zero.
	Timeout time.Duration
	// SkipRefresh returns a 401 as is instead of refreshing the token.
	SkipRefresh bool
}

type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

func New(cfg Config, sess *session.Session) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("backend URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse backend URL: %w", err)
	}
	if sess == nil {
		return nil, fmt.Errorf("session is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = cfg.Timeout
	}
	if cfg.RefreshPath == "" {
		cfg.RefreshPath = DefaultRefreshPath
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.OnAuthLost == nil {
		cfg.OnAuthLost = func(error) {}
	}
	if cfg.HTTPClient == nil {
		// the refresh endpoint relies on the cookie set at login
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		cfg.HTTPClient = &http.Client{Jar: jar}
	}

	return &Client{
		httpClient:    cfg.HTTPClient,
		baseURL:       strings.TrimSuffix(cfg.BaseURL, "/"),
		timeout:       cfg.Timeout,
		authTimeout:   cfg.AuthTimeout,
		slowThreshold: cfg.SlowThreshold,
		refreshPath:   cfg.RefreshPath,
		session:       sess,
		logger:        cfg.Logger,
		onAuthLost:    cfg.OnAuthLost,
	}, nil
}

func (c *Client) Session() *session.Session {
	return c.session
}

// Do sends req. A 401 triggers one token refresh (shared with any other
// request that hits 401 meanwhile) and one replay; a second 401 is terminal.
// Non-2xx responses come back as *APIError alongside the response.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	token := c.session.Token()
	resp, err := c.send(ctx, req, body, token)
	if err != nil {
		return nil, err
	}

	if resp.Status == http.StatusUnauthorized && !req.SkipRefresh && req.Path != c.refreshPath {
		fresh, err := c.refreshAfter(ctx, token)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, ctxErr)
			}
			c.expire(ctx, err)
			return nil, fmt.Errorf("%w: %w", ErrAuthExpired, err)
		}

		resp, err = c.send(ctx, req, body, fresh)
		if err != nil {
			return nil, err
		}
		if resp.Status == http.StatusUnauthorized {
			retryErr := newAPIError(req.Method, req.Path, resp.Status, resp.Body)
			c.expire(ctx, retryErr)
			return nil, fmt.Errorf("%w: %w", ErrAuthExpired, retryErr)
		}
	}

	if resp.Status < 200 || resp.Status > 299 {
		return resp, newAPIError(req.Method, req.Path, resp.Status, resp.Body)
	}
	return resp, nil
}

// DoJSON sends req and decodes a successful response body into out.
func (c *Client) DoJSON(ctx context.Context, req Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.Method, req.Path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, req Request, body []byte, token string) (*Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", req.Method, req.Path, err)
	}

	requestID := uuid.NewString()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.transportError(ctx, req, requestID, err)
	}
	defer httpResp.Body.Close()

	payload, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, c.transportError(ctx, req, requestID, err)
	}

	elapsed := time.Since(start)
	if c.slowThreshold > 0 && elapsed > c.slowThreshold {
		c.logger.Warn("slow backend request",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.String("request_id", requestID),
			zap.Duration("elapsed", elapsed),
		)
	}

	return &Response{Status: httpResp.StatusCode, Header: httpResp.Header, Body: payload}, nil
}

func (c *Client) transportError(ctx context.Context, req Request, requestID string, err error) error {
	if isTimeout(ctx, err) {
		c.logger.Error("backend request timed out",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.String("request_id", requestID),
		)
		return fmt.Errorf("%s %s: %w", req.Method, req.Path, ErrNetworkTimeout)
	}
	return fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func encodeBody(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	return body, nil
}
