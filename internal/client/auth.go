// AngelaMos | 2026
// auth.go

package client

import (
	"context"
	"net/http"

	"github.com/localmart/localmart/internal/auth"
	"github.com/localmart/localmart/internal/user"
)

func (c *Client) Login(ctx context.Context, email, password string) (*auth.LoginResponse, error) {
	var resp auth.LoginResponse
	err := c.send(ctx, http.MethodPost, "/auth/login", "",
		auth.LoginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Signup registers an account. The confirmation is filled from Password
// when left empty.
func (c *Client) Signup(ctx context.Context, req auth.SignupRequest) (*auth.LoginResponse, error) {
	if req.PasswordConfirm == "" {
		req.PasswordConfirm = req.Password
	}
	var resp auth.LoginResponse
	if err := c.send(ctx, http.MethodPost, "/auth/signup", "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) RequestMagicLink(ctx context.Context, email string) error {
	return c.send(ctx, http.MethodPost, "/auth/magic-link", "",
		auth.MagicLinkRequest{Email: email}, nil)
}

func (c *Client) VerifyMagicLink(ctx context.Context, token string) (*auth.LoginResponse, error) {
	var resp auth.LoginResponse
	err := c.send(ctx, http.MethodPost, "/auth/magic-link/verify", "",
		auth.MagicLinkVerifyRequest{Token: token}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*auth.LoginResponse, error) {
	var resp auth.LoginResponse
	err := c.send(ctx, http.MethodPost, "/auth/refresh", "",
		auth.RefreshRequest{RefreshToken: refreshToken}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Logout(ctx context.Context, token, refreshToken string) error {
	return c.send(ctx, http.MethodPost, "/auth/logout", token,
		auth.RefreshRequest{RefreshToken: refreshToken}, nil)
}

func (c *Client) Profile(ctx context.Context, token string) (*user.ProfileResponse, error) {
	var p user.ProfileResponse
	if err := c.get(ctx, "/user/profile", token, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) UpdateProfile(
	ctx context.Context,
	token string,
	req user.UpdateProfileRequest,
) (*user.ProfileResponse, error) {
	var p user.ProfileResponse
	if err := c.send(ctx, http.MethodPatch, "/user/profile", token, req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
