package api

import (
	"context"
	"net/http"

	"booknest/pkg/domain"
)

func (c *Client) Register(ctx context.Context, reg domain.Registration) (domain.AuthResponse, error) {
	var resp domain.AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/register/", reg, &resp); err != nil {
		return domain.AuthResponse{}, err
	}
	return resp, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (domain.AuthResponse, error) {
	payload := map[string]string{"email": email, "password": password}
	var resp domain.AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login/", payload, &resp); err != nil {
		return domain.AuthResponse{}, err
	}
	return resp, nil
}

// Logout invalidates token on the server. The token is passed explicitly
// because the local session is usually gone by the time this runs.
func (c *Client) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/auth/logout/",
		body:        emptyObject(),
		contentType: "application/json",
		token:       token,
	}, nil)
}
