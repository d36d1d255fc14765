package api

import (
	"context"
	"net/http"
	"net/url"
)

// Login exchanges email and password for a bearer credential.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out loginResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/auth/login",
		public: true,
		body:   credentials{Email: email, Password: password},
	}, &out)
	if err != nil {
		return "", err
	}
	if err := c.check(out); err != nil {
		return "", err
	}
	return out.Token, nil
}

// Register creates an account. The response body is ignored.
func (c *Client) Register(ctx context.Context, email, password, fullName string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/auth/register",
		public: true,
		body:   credentials{Email: email, Password: password, FullName: fullName},
	}, nil)
}

// EmailExists asks whether an account already uses email.
func (c *Client) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/auth/check-email",
		query:  url.Values{"email": {email}},
		public: true,
	}, &exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
