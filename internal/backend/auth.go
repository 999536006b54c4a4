package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/UnknownOlympus/aerodrome/internal/models"
)

// LoginRequest is the body of /api/users/login. Username carries the email.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest is the body of /api/users/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by both login and registration.
type AuthResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	User        models.Profile `json:"user"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// OAuthCallbackRequest is the body of /api/auth/{provider}/callback: the
// authorization code and state handed back by the provider's consent page.
type OAuthCallbackRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

type oauthURLResponse struct {
	URL string `json:"url"`
}

// Login authenticates with email and password.
func (c *Client) Login(ctx context.Context, in LoginRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, request{method: http.MethodPost, path: "/api/users/login", body: in}, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// Register creates an account and returns the same shape as Login.
func (c *Client) Register(ctx context.Context, in RegisterRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, request{method: http.MethodPost, path: "/api/users/register", body: in}, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// Logout invalidates the session server-side. No body is required.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, request{method: http.MethodGet, path: "/api/users/logout"}, nil)
}

// Me fetches the profile of the token owner.
func (c *Client) Me(ctx context.Context, token string) (*models.Profile, error) {
	var out models.Profile
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/users/me", token: token}, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// ResendVerification asks the backend to send the confirmation email again
// and returns the refreshed access token.
func (c *Client) ResendVerification(ctx context.Context, token string) (string, error) {
	var out tokenResponse
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/users/mail_confirm", token: token}, &out); err != nil {
		return "", err
	}

	return out.AccessToken, nil
}

// OAuthURL fetches the provider consent page address the user is sent to.
func (c *Client) OAuthURL(ctx context.Context, provider string) (string, error) {
	var out oauthURLResponse
	path := "/api/auth/" + url.PathEscape(provider) + "/url"
	if err := c.do(ctx, request{method: http.MethodGet, path: path}, &out); err != nil {
		return "", err
	}

	return out.URL, nil
}

// OAuthCallback exchanges the provider code for a session. The response has
// the same shape as Login.
func (c *Client) OAuthCallback(ctx context.Context, provider string, in OAuthCallbackRequest) (*AuthResponse, error) {
	var out AuthResponse
	path := "/api/auth/" + url.PathEscape(provider) + "/callback"
	if err := c.do(ctx, request{method: http.MethodPost, path: path, body: in}, &out); err != nil {
		return nil, err
	}

	return &out, nil
}
