package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"biolink/internal/config"
)

const maxResponseBytes = 1 << 20

// Client talks to the biolink REST API on behalf of one logged-in session.
type Client struct {
	baseURL      string
	settingsPath string
	httpClient   *http.Client

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSettingsPath selects the settings endpoint family: "/dashboard" or
// "/customization/settings".
func WithSettingsPath(path string) Option {
	return func(c *Client) { c.settingsPath = path }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		settingsPath: "/customization/settings",
		httpClient:   &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func NewFromConfig(cfg *config.ClientConfig) *Client {
	opts := []Option{WithToken(cfg.Token), WithSettingsPath(cfg.SettingsPath)}
	if cfg.Timeout.Duration > 0 {
		opts = append(opts, WithHTTPClient(&http.Client{Timeout: cfg.Timeout.Duration}))
	}
	return New(cfg.APIBaseURL, opts...)
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type envelope struct {
	Success *bool             `json:"success"`
	Message string            `json:"message"`
	Error   string            `json:"error"`
	Errors  map[string]string `json:"errors"`
}

func (e envelope) message() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &Error{Op: op, Kind: KindMalformed, Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Error{Op: op, Kind: KindNetwork, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(op, req, out)
}

func (c *Client) do(op string, req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Op: op, Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &Error{Op: op, Kind: KindNetwork, Status: resp.StatusCode, Err: err}
	}

	var env envelope
	envErr := json.Unmarshal(raw, &env)

	if resp.StatusCode == http.StatusUnauthorized {
		return &Error{Op: op, Kind: KindUnauthorized, Status: resp.StatusCode, Message: env.message()}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Op: op, Kind: KindRejected, Status: resp.StatusCode, Message: env.message(), Fields: env.Errors}
	}
	if len(bytes.TrimSpace(raw)) == 0 && out == nil {
		return nil
	}
	if envErr != nil {
		return &Error{Op: op, Kind: KindMalformed, Status: resp.StatusCode, Err: envErr}
	}
	if env.Success != nil && !*env.Success {
		return &Error{Op: op, Kind: KindRejected, Status: resp.StatusCode, Message: env.message(), Fields: env.Errors}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return &Error{Op: op, Kind: KindMalformed, Status: resp.StatusCode, Err: err}
		}
	}
	return nil
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a bearer token and keeps it on the client.
// code is the TOTP or backup code and may be empty when 2FA is off.
func (c *Client) Login(ctx context.Context, username, password, code string) (string, error) {
	body := map[string]string{"username": username, "password": password}
	if code != "" {
		body["code"] = code
	}
	var resp loginResponse
	if err := c.doJSON(ctx, "login", http.MethodPost, "/auth/login", body, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", &Error{Op: "login", Kind: KindMalformed, Err: errors.New("missing token")}
	}
	c.SetToken(resp.Token)
	return resp.Token, nil
}

// Logout is best-effort: the local token is dropped even if the call fails,
// and the error is returned for the caller to ignore or report.
func (c *Client) Logout(ctx context.Context) error {
	err := c.doJSON(ctx, "logout", http.MethodPost, "/auth/logout", nil, nil)
	c.SetToken("")
	return err
}
