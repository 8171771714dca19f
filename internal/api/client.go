// Package api provides a client for the Clover Network REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/zarlcorp/zclover/internal/endpoint"
)

// DefaultTimeout bounds every request when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Config holds API connection settings.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Envelope is the wrapper every endpoint responds with.
type Envelope struct {
	Code      string          `json:"code"`
	MessageEN string          `json:"messageEN"`
	MessageVN string          `json:"messageVN"`
	Data      json.RawMessage `json:"data"`
}

// UserInfo is the signed-in user's profile snapshot.
type UserInfo struct {
	UserID     string `json:"userId"`
	Email      string `json:"email"`
	Firstname  string `json:"firstname"`
	Lastname   string `json:"lastname"`
	PhoneNo    string `json:"phoneNo"`
	DayOfBirth string `json:"dayOfBirth"` // dd/mm/yyyy
	Gender     string `json:"gender"`
	Avatar     string `json:"avatar"`
}

// ProfileUpdate is the edit-profile request body.
type ProfileUpdate struct {
	Firstname  string `json:"firstname"`
	Lastname   string `json:"lastname"`
	PhoneNo    string `json:"phoneNo"`
	DayOfBirth string `json:"dayOfBirth"`
	Gender     string `json:"gender"`
}

// PasswordChange is the change-password request body.
type PasswordChange struct {
	Email             string `json:"email"`
	OldPassword       string `json:"oldPassword"`
	NewPassword       string `json:"newPassword"`
	RepeatNewPassword string `json:"repeatNewPassword"`
}

// Client communicates with the Clover Network API.
type Client struct {
	endpoints endpoint.Registry
	http      *http.Client
	log       *slog.Logger
	text      *bluemonday.Policy

	mu    sync.RWMutex
	token string
}

// NewClient creates a client for the given settings.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Client{
		endpoints: endpoint.New(cfg.BaseURL),
		http:      &http.Client{Timeout: timeout},
		log:       log,
		text:      bluemonday.StrictPolicy(),
		token:     cfg.Token,
	}
}

// Endpoints returns the registry the client resolves URLs with.
func (c *Client) Endpoints() endpoint.Registry { return c.endpoints }

// SetToken replaces the bearer token used for authenticated calls.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Login exchanges email credentials for a session token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	env, err := c.postJSON(ctx, endpoint.Login, map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}

	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Token == "" {
		msg := env.MessageEN
		if msg == "" {
			msg = "no token in response"
		}
		return "", fmt.Errorf("login: %w", &Error{Kind: KindRejected, Code: env.Code, Message: msg})
	}
	return data.Token, nil
}

// Logout ends the server-side session.
func (c *Client) Logout(ctx context.Context) error {
	if _, err := c.postJSON(ctx, endpoint.Logout, struct{}{}); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// UserInfo fetches the signed-in user's profile.
func (c *Client) UserInfo(ctx context.Context) (UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoints.URL(endpoint.GetUserInfo), nil)
	if err != nil {
		return UserInfo{}, fmt.Errorf("user info: create request: %w", err)
	}

	env, err := c.do(req)
	if err != nil {
		return UserInfo{}, fmt.Errorf("user info: %w", err)
	}

	var u UserInfo
	if err := json.Unmarshal(env.Data, &u); err != nil {
		return UserInfo{}, fmt.Errorf("user info: unmarshal: %w", err)
	}
	u.Firstname = c.plain(u.Firstname)
	u.Lastname = c.plain(u.Lastname)
	return u, nil
}

// UpdateProfile submits the edited profile record.
func (c *Client) UpdateProfile(ctx context.Context, p ProfileUpdate) (Envelope, error) {
	env, err := c.postJSON(ctx, endpoint.UpdateProfile, p)
	if err != nil {
		return Envelope{}, fmt.Errorf("update profile: %w", err)
	}
	return env, nil
}

// ChangePassword submits a password change. The server reports a wrong old
// password inside a successful response; that case is returned as
// ErrInvalidPassword.
func (c *Client) ChangePassword(ctx context.Context, p PasswordChange) (Envelope, error) {
	env, err := c.postJSON(ctx, endpoint.ChangePassword, p)
	if err != nil {
		return Envelope{}, fmt.Errorf("change password: %w", err)
	}
	if env.MessageEN == InvalidPasswordMessage {
		return env, fmt.Errorf("change password: %w", ErrInvalidPassword)
	}
	return env, nil
}

// UpdateAvatar uploads a new avatar image.
func (c *Client) UpdateAvatar(ctx context.Context, filename string, data []byte) (Envelope, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return Envelope{}, fmt.Errorf("update avatar: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return Envelope{}, fmt.Errorf("update avatar: %w", err)
	}
	if err := w.Close(); err != nil {
		return Envelope{}, fmt.Errorf("update avatar: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoints.URL(endpoint.UpdateAvatar), &body)
	if err != nil {
		return Envelope{}, fmt.Errorf("update avatar: create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	env, err := c.do(req)
	if err != nil {
		return Envelope{}, fmt.Errorf("update avatar: %w", err)
	}
	return env, nil
}

func (c *Client) postJSON(ctx context.Context, key endpoint.Key, v any) (Envelope, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoints.URL(key), bytes.NewReader(b))
	if err != nil {
		return Envelope{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

func (c *Client) do(req *http.Request) (Envelope, error) {
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("request failed", "method", req.Method, "url", req.URL.String(), "err", err)
		if isTimeout(err) {
			return Envelope{}, &Error{Kind: KindTimeout, Message: "request timed out", Err: err}
		}
		return Envelope{}, &Error{Kind: KindRemote, Message: "http request failed", Err: err}
	}
	defer resp.Body.Close()

	c.log.Debug("request", "method", req.Method, "url", req.URL.String(),
		"status", resp.StatusCode, "elapsed", time.Since(start))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return Envelope{}, &Error{Kind: KindTimeout, StatusCode: resp.StatusCode, Message: "request timed out", Err: err}
		}
		return Envelope{}, &Error{Kind: KindRemote, StatusCode: resp.StatusCode, Message: "read response", Err: err}
	}

	var env Envelope
	decodeErr := json.Unmarshal(body, &env)
	env.MessageEN = c.plain(env.MessageEN)
	env.MessageVN = c.plain(env.MessageVN)

	if resp.StatusCode >= 400 {
		msg := env.MessageEN
		if decodeErr != nil || msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return Envelope{}, &Error{
			Kind:       KindRemote,
			StatusCode: resp.StatusCode,
			Code:       env.Code,
			Message:    msg,
		}
	}

	if decodeErr != nil {
		return Envelope{}, &Error{
			Kind:       KindRemote,
			StatusCode: resp.StatusCode,
			Message:    "malformed response",
			Err:        decodeErr,
		}
	}

	return env, nil
}

// plain strips markup from server text and returns it unescaped for display.
func (c *Client) plain(s string) string {
	if s == "" {
		return s
	}
	return html.UnescapeString(c.text.Sanitize(s))
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
