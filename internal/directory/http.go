package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nerrad567/neasmart-core/internal/infrastructure/config"
	"github.com/nerrad567/neasmart-core/internal/installation"
)

// Service endpoints, relative to the configured base URL.
const (
	authPath      = "/v1/users/auth"
	refreshPath   = "/v1/users/refresh"
	userStatePath = "/v1/users/state"
)

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 4 << 20

// defaultTimeout is used when the config leaves the timeout unset.
const defaultTimeout = 15 * time.Second

// HTTPClient implements Service over the vendor's JSON HTTP API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

var _ Service = (*HTTPClient)(nil)

// NewHTTPClient creates a client for the configured directory service.
func NewHTTPClient(cfg config.DirectoryConfig) *HTTPClient {
	timeout := defaultTimeout
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type authRequest struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	ValidateOnly bool   `json:"validate_only,omitempty"`
}

type authResponse struct {
	Token TokenData          `json:"token"`
	User  *installation.User `json:"user"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type userStateResponse struct {
	User *installation.User `json:"user"`
}

// CheckCredentials logs in in validation-only mode.
// Invalid credentials return false together with ErrAuthentication.
func (c *HTTPClient) CheckCredentials(ctx context.Context, email, password string) (bool, error) {
	var resp authResponse
	err := c.post(ctx, authPath, "", authRequest{Username: email, Password: password, ValidateOnly: true}, &resp)
	if err != nil {
		return false, err
	}
	return true, nil
}

// Authenticate logs in and returns the token set and user record.
func (c *HTTPClient) Authenticate(ctx context.Context, email, password string) (TokenData, *installation.User, error) {
	var resp authResponse
	if err := c.post(ctx, authPath, "", authRequest{Username: email, Password: password}, &resp); err != nil {
		return TokenData{}, nil, err
	}
	if !resp.Token.Valid() {
		return TokenData{}, nil, fmt.Errorf("%w: login response has no access token", ErrAuthentication)
	}
	if resp.User == nil {
		return TokenData{}, nil, fmt.Errorf("%w: login response has no user", ErrCommunication)
	}
	return resp.Token, resp.User, nil
}

// RefreshToken exchanges a refresh token for a new token set.
func (c *HTTPClient) RefreshToken(ctx context.Context, refreshToken string) (TokenData, error) {
	if refreshToken == "" {
		return TokenData{}, fmt.Errorf("%w: no refresh token", ErrAuthentication)
	}

	var token TokenData
	if err := c.post(ctx, refreshPath, "", refreshRequest{RefreshToken: refreshToken}, &token); err != nil {
		return TokenData{}, err
	}
	if !token.Valid() {
		return TokenData{}, fmt.Errorf("%w: refresh response has no access token", ErrAuthentication)
	}
	return token, nil
}

// ReadUserState fetches the user record. 204 No Content yields (nil, nil).
func (c *HTTPClient) ReadUserState(ctx context.Context, req UserStateRequest) (*installation.User, error) {
	var resp userStateResponse
	if err := c.post(ctx, userStatePath, req.Token, req, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// post sends body as JSON and decodes the response into out.
// A 204 response leaves out untouched.
func (c *HTTPClient) post(ctx context.Context, path, bearer string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: encoding request: %w", ErrCommunication, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: building request: %w", ErrCommunication, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCommunication, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: reading %s response: %w", ErrCommunication, path, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s returned %d", ErrAuthentication, path, resp.StatusCode)
	case resp.StatusCode == http.StatusNoContent:
		return nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: %s returned %d: %s", ErrCommunication, path, resp.StatusCode, truncate(respBody, 200))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: decoding %s response: %w", ErrCommunication, path, err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
