package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/safar/go-pos-register/internal/gateway"
)

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges credentials for an access token and stores it in the
// session. A 401 here means bad credentials, not an expired token.
func (c *Client) Login(ctx context.Context, creds Credentials) error {
	if creds.Username == "" || creds.Password == "" {
		return fmt.Errorf("username and password are required")
	}

	resp, err := c.gw.Do(ctx, gateway.Request{
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Body:        creds,
		Timeout:     c.timeouts.Auth,
		SkipRefresh: true,
	})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	var payload struct {
		AccessToken string `json:"accessToken"`
	}
	if err := decodeInto("login", resp.Body, &payload); err != nil {
		return err
	}
	if payload.AccessToken == "" {
		return malformed("login", gateway.ErrNoAccessToken)
	}

	c.gw.Session().Set(ctx, payload.AccessToken)
	return nil
}

// Logout always clears the local session; the backend call only revokes the
// refresh cookie and its failure is returned for logging.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.gw.Do(ctx, gateway.Request{
		Method:      http.MethodPost,
		Path:        "/auth/logout",
		Timeout:     c.timeouts.Auth,
		SkipRefresh: true,
	})
	c.gw.Session().Clear(ctx)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}
