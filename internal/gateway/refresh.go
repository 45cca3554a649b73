package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

type State int

const (
	StateIdle State = iota
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRefreshing:
		return "refreshing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// refreshCall is one refresh attempt. done is closed after token and err are
// set; every caller that joined the attempt reads the same outcome.
type refreshCall struct {
	done  chan struct{}
	token string
	err   error
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight != nil {
		return StateRefreshing
	}
	return StateIdle
}

// Refresh obtains a new access token now. A failure leaves the session as is.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.Lock()
	call := c.joinLocked(ctx)
	c.mu.Unlock()

	_, err := wait(ctx, call)
	return err
}

// refreshAfter returns a token to replay a request that was rejected while
// carrying used. If the session already moved past used, the current token is
// returned without another round trip.
func (c *Client) refreshAfter(ctx context.Context, used string) (string, error) {
	c.mu.Lock()
	if c.inflight == nil {
		if current := c.session.Token(); current != "" && current != used {
			c.mu.Unlock()
			return current, nil
		}
	}
	call := c.joinLocked(ctx)
	c.mu.Unlock()

	return wait(ctx, call)
}

// joinLocked returns the in-flight attempt or starts one. c.mu must be held.
func (c *Client) joinLocked(ctx context.Context) *refreshCall {
	if c.inflight != nil {
		return c.inflight
	}
	call := &refreshCall{done: make(chan struct{})}
	c.inflight = call

	// the attempt outlives any single caller giving up
	go c.runRefresh(context.WithoutCancel(ctx), call)
	return call
}

func wait(ctx context.Context, call *refreshCall) (string, error) {
	select {
	case <-call.done:
		return call.token, call.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Client) runRefresh(ctx context.Context, call *refreshCall) {
	token, err := c.requestToken(ctx)
	if err == nil {
		c.session.Set(ctx, token)
	}

	c.mu.Lock()
	call.token, call.err = token, err
	c.inflight = nil
	c.mu.Unlock()
	close(call.done)

	if err != nil {
		c.logger.Warn("token refresh failed", zap.Error(err))
		return
	}
	c.logger.Debug("token refreshed")
}

func (c *Client) requestToken(ctx context.Context) (string, error) {
	req := Request{
		Method:      http.MethodPost,
		Path:        c.refreshPath,
		Timeout:     c.authTimeout,
		SkipRefresh: true,
	}
	resp, err := c.send(ctx, req, nil, c.session.Token())
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}
	if resp.Status < 200 || resp.Status > 299 {
		return "", fmt.Errorf("refresh token: %w", newAPIError(req.Method, req.Path, resp.Status, resp.Body))
	}

	var payload struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return "", fmt.Errorf("decode refresh response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", ErrNoAccessToken
	}
	return payload.AccessToken, nil
}

// expire clears the session after an unrecoverable auth failure. OnAuthLost
// fires only for the caller that actually cleared it.
func (c *Client) expire(ctx context.Context, cause error) {
	if !c.session.Clear(context.WithoutCancel(ctx)) {
		return
	}
	c.logger.Warn("session expired", zap.Error(cause))
	c.onAuthLost(cause)
}
