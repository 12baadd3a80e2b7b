// Package authclient talks to the /auth endpoints and provides the HTTP
// transport every authenticated request goes through. The transport adds
// the Bearer header and, on a 401, refreshes the session once for all
// concurrent callers before retrying.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tphummel/lab_inventory/internal/resource"
	"github.com/tphummel/lab_inventory/internal/session"
	"golang.org/x/sync/singleflight"
)

// ErrSessionExpired is returned once the refresh token has been rejected;
// the session has been cleared and the user must log in again.
var ErrSessionExpired = session.ErrExpired

const (
	defaultTimeout = 15 * time.Second
	refreshTimeout = 15 * time.Second
)

// Client performs login, registration, refresh and logout against
// endpoint and keeps store current.
type Client struct {
	endpoint   string
	store      *session.Store
	httpClient *http.Client
	logger     *slog.Logger
	group      singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the client used for /auth calls. Its transport must
// not be the one returned by Transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger for refresh diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a Client for endpoint that reads and writes store.
func New(endpoint string, store *session.Store, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	c := &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		store:      store,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Store returns the session store the client maintains.
func (c *Client) Store() *session.Store { return c.store }

type tokenResponse struct {
	Token        string `json:"token"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	UserID       string `json:"userId"`
}

func (t tokenResponse) tokens() session.Tokens {
	access := t.Token
	if access == "" {
		access = t.AccessToken
	}
	return session.Tokens{AccessToken: access, RefreshToken: t.RefreshToken, UserID: t.UserID}
}

// Login exchanges credentials for a token pair and stores it.
func (c *Client) Login(ctx context.Context, username, password string) error {
	if t, ok := devLogin(username, password); ok {
		c.logger.Warn("development login bypass used", "username", username)
		if err := c.store.Clear(); err != nil {
			return err
		}
		return c.store.Set(t)
	}

	var out tokenResponse
	err := c.post(ctx, "/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	}, http.StatusOK, &out)
	if err != nil {
		return err
	}
	t := out.tokens()
	if t.AccessToken == "" {
		return fmt.Errorf("login response carried no token")
	}
	// A new login replaces the whole session. Set would otherwise carry a
	// previous user's refresh token or id into this one.
	if err := c.store.Clear(); err != nil {
		return err
	}
	return c.store.Set(t)
}

// Registration is the sign-up form.
type Registration struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Validate applies the checks the server also enforces, so obvious
// mistakes never leave the client. The map is keyed by JSON field name.
func (r Registration) Validate() map[string]string {
	errs := map[string]string{}
	if len(strings.TrimSpace(r.Username)) < 3 {
		errs["username"] = "username must be at least 3 characters"
	}
	if !strings.Contains(r.Email, "@") {
		errs["email"] = "email is invalid"
	}
	if len(r.Password) < 8 {
		errs["password"] = "password must be at least 8 characters"
	}
	if r.Password != r.ConfirmPassword {
		errs["confirmPassword"] = "passwords do not match"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Register creates an account and returns its user id. It does not log in.
// Server side validation failures come back as a *resource.Error whose
// Fields holds the per-field messages.
func (c *Client) Register(ctx context.Context, r Registration) (string, error) {
	if errs := r.Validate(); errs != nil {
		return "", &resource.Error{Class: resource.ClassClient, Status: http.StatusBadRequest,
			Msg: "validation failed", Fields: errs}
	}
	var out struct {
		UserID string `json:"userId"`
	}
	if err := c.post(ctx, "/auth/register", "", r, http.StatusCreated, &out); err != nil {
		return "", err
	}
	return out.UserID, nil
}

// Refresh exchanges the stored refresh token for a new pair. A rejected
// refresh expires the session and returns ErrSessionExpired; a network
// failure leaves the session untouched.
func (c *Client) Refresh(ctx context.Context) error {
	t := c.store.Tokens()
	if t.RefreshToken == "" || t.UserID == "" {
		if err := c.store.Expire(); err != nil {
			return err
		}
		return ErrSessionExpired
	}

	var out tokenResponse
	err := c.post(ctx, "/auth/refresh", "", map[string]string{
		"userId":       t.UserID,
		"refreshToken": t.RefreshToken,
	}, http.StatusOK, &out)
	if err != nil {
		var re *resource.Error
		if errors.As(err, &re) && re.Class == resource.ClassNetwork {
			return err
		}
		c.logger.Info("session refresh rejected", "error", err)
		if expErr := c.store.Expire(); expErr != nil {
			return expErr
		}
		return ErrSessionExpired
	}

	next := out.tokens()
	if next.AccessToken == "" {
		if err := c.store.Expire(); err != nil {
			return err
		}
		return ErrSessionExpired
	}
	c.logger.Debug("session refreshed", "user_id", t.UserID)
	return c.store.Set(next)
}

// Logout revokes the session on the server when possible and always clears
// the local store.
func (c *Client) Logout(ctx context.Context) error {
	if token := c.store.AccessToken(); token != "" {
		if err := c.post(ctx, "/auth/logout", token, nil, http.StatusNoContent, nil); err != nil {
			c.logger.Debug("server logout failed", "error", err)
		}
	}
	return c.store.Clear()
}

// refreshShared runs one refresh for every caller that saw a 401 with the
// same stale token.
func (c *Client) refreshShared(ctx context.Context, stale string) error {
	_, err, _ := c.group.Do("refresh:"+stale, func() (any, error) {
		if current := c.store.AccessToken(); current != "" && current != stale {
			return nil, nil
		}
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return nil, c.Refresh(rctx)
	})
	return err
}

func (c *Client) post(ctx context.Context, path, token string, body any, expected int, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return resource.NewNetworkError(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resource.NewNetworkError(fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode != expected {
		return resource.ParseError(resp.StatusCode, payload)
	}
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
