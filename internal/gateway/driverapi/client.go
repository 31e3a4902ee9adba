// Package driverapi is the single choke point for backend HTTP
// traffic. It attaches the stored bearer token, detects authorization
// expiry, and recovers by running one coordinated refresh cycle while
// queueing and replaying the requests caught behind it.
package driverapi

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

	"github.com/yitethio/liyt-driver/internal/apperr"
	"github.com/yitethio/liyt-driver/internal/logx"
	"github.com/yitethio/liyt-driver/internal/secstore"
)

const refreshPath = "/drivers/sessions/refresh"

type counter interface {
	Inc()
}

// Metrics groups the optional gateway counters; nil fields are not
// recorded.
type Metrics struct {
	Refreshes       counter
	RefreshFailures counter
	Replays         counter
}

// Client is the authenticated driver API gateway client.
type Client struct {
	baseURL string
	http    *http.Client
	creds   secstore.Store
	logger  logx.Logger
	metrics Metrics

	onSessionExpired func()

	// Refresh gate. Only the goroutine that flipped refreshing may
	// write new credentials; everyone else caught by a 401 parks an
	// entry in queue and waits.
	mu         sync.Mutex
	refreshing bool
	queue      []*queuedRequest
}

type queuedRequest struct {
	ctx     context.Context
	method  string
	path    string
	payload []byte
	result  chan queuedResult
}

type queuedResult struct {
	resp *response
	err  error
}

type response struct {
	status int
	body   []byte
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithMetrics attaches gateway counters.
func WithMetrics(m Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithSessionExpiredHandler registers the hook invoked after a failed
// refresh has cleared the stored credentials. The presentation layer
// uses it to route back to the login screen.
func WithSessionExpiredHandler(fn func()) Option {
	return func(c *Client) { c.onSessionExpired = fn }
}

// New creates a gateway client. creds must not be nil.
func New(baseURL string, creds secstore.Store, logger logx.Logger, opts ...Option) *Client {
	if creds == nil {
		return nil
	}
	if logger == nil {
		logger = logx.Nop()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		creds:   creds,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HasCredentials reports whether an access token is stored.
func (c *Client) HasCredentials() bool {
	_, err := c.creds.Get(secstore.KeyToken)
	return err == nil
}

// ClearSession deletes every persisted credential key.
func (c *Client) ClearSession() error {
	var firstErr error
	for _, key := range []string{secstore.KeyToken, secstore.KeyRefreshToken, secstore.KeyUser} {
		if err := c.creds.Delete(key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// doJSON issues a request and decodes a successful JSON response into
// out. Responses with status >= 400 become *APIError. authed requests
// participate in the 401 refresh-and-replay path; auth endpoints
// (login, register, refresh) do not, so a wrong password is reported
// as a wrong password and never starts a refresh cycle.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any, authed bool) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("driver api: encode %s %s: %w", method, path, err)
		}
	}

	resp, err := c.do(ctx, method, path, payload, authed, false)
	if err != nil {
		return err
	}
	if resp.status >= 400 {
		return newAPIError(resp.status, resp.body)
	}
	if out != nil && len(resp.body) > 0 {
		if err := json.Unmarshal(resp.body, out); err != nil {
			return fmt.Errorf("driver api: decode %s %s: %w", method, path, err)
		}
	}
	return nil
}

// do sends one request. retried marks a request already replayed once
// after a refresh; a second 401 then propagates instead of looping.
func (c *Client) do(ctx context.Context, method, path string, payload []byte, authed, retried bool) (*response, error) {
	resp, err := c.send(ctx, method, path, payload, authed)
	if err != nil {
		return nil, err
	}
	if authed && resp.status == http.StatusUnauthorized && !retried {
		return c.recoverAuth(ctx, method, path, payload)
	}
	return resp, nil
}

// recoverAuth handles a first 401: join an in-flight refresh as a
// queued request, or become the refresh initiator.
func (c *Client) recoverAuth(ctx context.Context, method, path string, payload []byte) (*response, error) {
	c.mu.Lock()
	if c.refreshing {
		q := &queuedRequest{
			ctx:     ctx,
			method:  method,
			path:    path,
			payload: payload,
			result:  make(chan queuedResult, 1),
		}
		c.queue = append(c.queue, q)
		c.mu.Unlock()

		select {
		case res := <-q.result:
			return res.resp, res.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	c.refreshing = true
	c.mu.Unlock()

	if err := c.refresh(ctx); err != nil {
		return nil, c.failRefresh(err)
	}

	if c.metrics.Refreshes != nil {
		c.metrics.Refreshes.Inc()
	}
	c.logger.Info("access token refreshed")

	// Release the gate before replaying: replays carry the new token,
	// and a fresh 401 after this point must be able to start its own
	// cycle instead of parking behind a queue nobody will drain.
	c.mu.Lock()
	entries := c.queue
	c.queue = nil
	c.refreshing = false
	c.mu.Unlock()

	for _, q := range entries {
		resp, err := c.do(q.ctx, q.method, q.path, q.payload, true, true)
		q.result <- queuedResult{resp: resp, err: err}
		if c.metrics.Replays != nil {
			c.metrics.Replays.Inc()
		}
	}

	return c.do(ctx, method, path, payload, true, true)
}

// failRefresh tears the session down: credentials cleared, every
// queued request rejected with the same cause, presentation layer
// signalled.
func (c *Client) failRefresh(cause error) error {
	if c.metrics.RefreshFailures != nil {
		c.metrics.RefreshFailures.Inc()
	}
	if err := c.ClearSession(); err != nil {
		c.logger.Error("clearing credentials after failed refresh", logx.Err(err))
	}

	sessionErr := fmt.Errorf("%w: %v", apperr.ErrSessionExpired, cause)

	c.mu.Lock()
	entries := c.queue
	c.queue = nil
	c.refreshing = false
	c.mu.Unlock()

	for _, q := range entries {
		q.result <- queuedResult{err: sessionErr}
	}

	c.logger.Warn("token refresh failed, session ended",
		logx.Int("rejected_requests", len(entries)),
		logx.Err(cause),
	)
	if c.onSessionExpired != nil {
		c.onSessionExpired()
	}
	return sessionErr
}

// refresh exchanges the stored refresh token for a new credential
// pair. The call is unauthenticated and never enters the 401 path.
func (c *Client) refresh(ctx context.Context) error {
	rt, err := c.creds.Get(secstore.KeyRefreshToken)
	if err != nil {
		return fmt.Errorf("no refresh token: %w", err)
	}

	payload, err := json.Marshal(map[string]string{"refresh_token": rt})
	if err != nil {
		return err
	}
	resp, err := c.send(ctx, http.MethodPost, refreshPath, payload, false)
	if err != nil {
		return err
	}
	if resp.status >= 400 {
		return newAPIError(resp.status, resp.body)
	}

	var pair tokenPairDTO
	if err := json.Unmarshal(resp.body, &pair); err != nil {
		return fmt.Errorf("decode refresh response: %w", err)
	}
	if pair.AccessToken == "" {
		return errors.New("refresh response missing access token")
	}
	return c.storeTokens(pair.AccessToken, pair.RefreshToken)
}

// storeTokens persists a new access token and, when the server rotated
// it, the new refresh token.
func (c *Client) storeTokens(access, refresh string) error {
	if err := c.creds.Set(secstore.KeyToken, access); err != nil {
		return fmt.Errorf("store access token: %w", err)
	}
	if refresh != "" {
		if err := c.creds.Set(secstore.KeyRefreshToken, refresh); err != nil {
			return fmt.Errorf("store refresh token: %w", err)
		}
	}
	return nil
}

// send performs one HTTP round trip and reads the full body. A missing
// stored token is not an error; the request goes out unauthenticated
// and the server decides.
func (c *Client) send(ctx context.Context, method, path string, payload []byte, authed bool) (*response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("driver api: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if authed {
		if token, err := c.creds.Get(secstore.KeyToken); err == nil && token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("driver api: %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("driver api: read %s %s: %w", method, path, err)
	}
	return &response{status: res.StatusCode, body: data}, nil
}
