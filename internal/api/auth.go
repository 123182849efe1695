package api

import (
	"context"
	"net/http"
	"net/url"
)

// Auth endpoint paths.
const (
	PathLogin           = "/api/auth/login"
	PathRegister        = "/api/auth/register"
	PathMe              = "/api/auth/me"
	PathLogout          = "/api/auth/logout"
	PathOAuthUser       = "/api/oauth2/user"
	PathForgotPassword  = "/api/auth/forgot-password"
	PathVerifyResetCode = "/api/auth/verify-reset-code"
	PathResetPassword   = "/api/auth/reset-password"
	PathGoogleAuthorize = "/oauth2/authorization/google"
)

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// ForgotPasswordRequest asks the backend to mail a reset code.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// VerifyResetCodeRequest checks a mailed reset code.
type VerifyResetCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required"`
}

// ResetPasswordRequest sets a new password using a verified reset code.
type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

// Login posts credentials. No bearer header is sent.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*Response, error) {
	return c.do(ctx, "auth.login", http.MethodPost, PathLogin, "", req)
}

// Register creates an account. No bearer header is sent.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*Response, error) {
	return c.do(ctx, "auth.register", http.MethodPost, PathRegister, "", req)
}

// CurrentUser fetches the profile for an explicit token. It is used while bootstrapping,
// before the token is trusted, so it never fires the unauthorized hook.
func (c *Client) CurrentUser(ctx context.Context, token string) (*Response, error) {
	return c.do(ctx, "auth.me", http.MethodGet, PathMe, token, nil)
}

// Logout tells the backend to invalidate token.
func (c *Client) Logout(ctx context.Context, token string) (*Response, error) {
	return c.do(ctx, "auth.logout", http.MethodPost, PathLogout, token, nil)
}

// OAuthUser looks up the user of the OAuth handshake the backend completed out-of-band.
// It authenticates with the session cookie only.
func (c *Client) OAuthUser(ctx context.Context) (*Response, error) {
	return c.do(ctx, "oauth2.user", http.MethodGet, PathOAuthUser, "", nil)
}

// ForgotPassword starts email-based password recovery.
func (c *Client) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) (*Response, error) {
	return c.do(ctx, "auth.forgot_password", http.MethodPost, PathForgotPassword, "", req)
}

// VerifyResetCode checks the code delivered by email.
func (c *Client) VerifyResetCode(ctx context.Context, req VerifyResetCodeRequest) (*Response, error) {
	return c.do(ctx, "auth.verify_reset_code", http.MethodPost, PathVerifyResetCode, "", req)
}

// ResetPassword completes password recovery.
func (c *Client) ResetPassword(ctx context.Context, req ResetPasswordRequest) (*Response, error) {
	return c.do(ctx, "auth.reset_password", http.MethodPost, PathResetPassword, "", req)
}

// GoogleAuthURL is where the user starts Google sign-in. The backend sends the browser back to
// redirectURI with either token=... or code=...&state=... in the query.
func (c *Client) GoogleAuthURL(redirectURI, state string) string {
	q := url.Values{}
	q.Set("redirect_uri", redirectURI)
	q.Set("state", state)
	return c.baseURL + PathGoogleAuthorize + "?" + q.Encode()
}
