package odata

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultRetryInitial = 1 * time.Second
	defaultMaxRetries   = 3

	// $metadata responses can be very large on wide solutions, so the
	// metadata request gets its own generous timeout.
	metadataTimeout = 120 * time.Second

	// HTTP error bodies that are not JSON are truncated to this many bytes
	// before being surfaced in the error message.
	maxErrorBody = 500
)

// Client executes requests against one FileMaker database's OData v4
// endpoint. Connection failures are retried with exponential backoff; HTTP
// error responses are classified and returned as [*Error] without retry.
type Client struct {
	baseURL      string
	username     string
	password     string
	httpClient   *http.Client
	timeout      time.Duration
	retryInitial time.Duration
	maxRetries   int
	logger       *slog.Logger
}

// ClientOption configures a [Client].
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout. Defaults to 30s.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithInsecureTLS disables TLS certificate verification. FileMaker servers
// on internal networks frequently run with self-signed certificates.
func WithInsecureTLS() ClientOption {
	return func(c *Client) {
		c.httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // opt-in for self-signed servers
		}
	}
}

// WithRetry sets the initial backoff interval and the maximum number of
// retries for connection failures. Defaults to 1s and 3.
func WithRetry(initial time.Duration, maxRetries int) ClientOption {
	return func(c *Client) {
		if initial > 0 {
			c.retryInitial = initial
		}

		if maxRetries >= 0 {
			c.maxRetries = maxRetries
		}
	}
}

// WithLogger sets the client's logger. Defaults to [slog.Default].
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBaseURL replaces the derived base URL entirely. Intended for tests.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// NewClient creates a client for the database at
// https://<host>/fmi/odata/v4/<database>, authenticating with Basic auth.
func NewClient(host, database, username, password string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:      fmt.Sprintf("https://%s/fmi/odata/v4/%s", host, url.PathEscape(database)),
		username:     username,
		password:     password,
		httpClient:   &http.Client{},
		timeout:      defaultTimeout,
		retryInitial: defaultRetryInitial,
		maxRetries:   defaultMaxRetries,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the resolved endpoint root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get executes a GET against path with the given query parameters and
// decodes the JSON response. The params map is encoded with [EncodeQuery],
// never with net/url, because the server rejects + for space and requires
// $ , / ' to pass through literally.
func (c *Client) Get(ctx context.Context, path string, params map[string]string) (map[string]any, error) {
	body, err := c.do(ctx, http.MethodGet, path, params, nil, "", c.timeout)
	if err != nil {
		return nil, err
	}

	return decodeJSON(body, path)
}

// Post executes a POST with a JSON body and decodes the JSON response.
func (c *Client) Post(ctx context.Context, path string, payload any) (map[string]any, error) {
	body, err := c.do(ctx, http.MethodPost, path, nil, payload, "", c.timeout)
	if err != nil {
		return nil, err
	}

	return decodeJSON(body, path)
}

// Patch executes a PATCH with a JSON body. FileMaker answers updates with
// 204 No Content, so an empty response map is normal.
func (c *Client) Patch(ctx context.Context, path string, payload any) (map[string]any, error) {
	body, err := c.do(ctx, http.MethodPatch, path, nil, payload, "", c.timeout)
	if err != nil {
		return nil, err
	}

	return decodeJSON(body, path)
}

// Delete executes a DELETE against path.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodDelete, path, nil, nil, "", c.timeout)

	return err
}

// Metadata fetches the $metadata document as raw XML. The server returns
// CSDL-as-JSON by default; only an explicit XML Accept header yields the
// standard XML document the annotation parser understands.
func (c *Client) Metadata(ctx context.Context) (string, error) {
	body, err := c.do(ctx, http.MethodGet, "$metadata", nil, nil, "application/xml", metadataTimeout)

	return string(body), err
}

// do runs one request with retry. Connection failures are retried with
// exponential backoff up to maxRetries times; classified HTTP errors are
// permanent. The timeout bounds each individual attempt.
func (c *Client) do(ctx context.Context, method, path string, params map[string]string, payload any, accept string, timeout time.Duration) ([]byte, error) {
	var encoded []byte

	if payload != nil {
		var err error
		if encoded, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("encoding %s body: %w", method, err)
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryInitial
	bo.Multiplier = 2
	bo.RandomizationFactor = 0

	attempt := 0

	return backoff.Retry(ctx, func() ([]byte, error) {
		attempt++

		body, err := c.doOnce(ctx, method, path, params, encoded, accept, timeout)
		if err == nil {
			return body, nil
		}

		var oe *Error
		if errors.As(err, &oe) && oe.Retryable() {
			c.logger.WarnContext(ctx, "retrying request",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)

			return nil, err
		}

		return nil, backoff.Permanent(err)
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(uint(c.maxRetries)+1))
}

// doOnce runs a single request attempt and classifies any failure.
func (c *Client) doOnce(ctx context.Context, method, path string, params map[string]string, payload []byte, accept string, timeout time.Duration) ([]byte, error) {
	reqURL := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if query := EncodeQuery(params); query != "" {
		reqURL += "?" + query
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("building %s %s: %w", method, path, err)
	}

	req.SetBasicAuth(c.username, c.password)

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if accept != "" {
		req.Header.Set("Accept", accept)
	} else {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{
			Kind:    KindConnection,
			Path:    path,
			Message: "cannot reach server: " + err.Error(),
			cause:   err,
		}
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{
			Kind:    KindConnection,
			Path:    path,
			Message: "reading response: " + err.Error(),
			cause:   err,
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, classifyStatus(resp.StatusCode, path, body)
	}

	return body, nil
}

// classifyStatus maps an HTTP error response to a typed [*Error].
func classifyStatus(status int, path string, body []byte) *Error {
	switch status {
	case http.StatusUnauthorized:
		return &Error{
			Kind:    KindAuth,
			Status:  status,
			Path:    path,
			Message: "authentication failed, check username and password",
		}
	case http.StatusNotFound:
		return &Error{
			Kind:    KindNotFound,
			Status:  status,
			Path:    path,
			Message: "resource not found",
		}
	default:
		return &Error{
			Kind:    KindRequest,
			Status:  status,
			Path:    path,
			Message: errorMessage(body),
		}
	}
}

// errorMessage extracts the OData error.message from a JSON error body,
// falling back to the truncated raw body.
func errorMessage(body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}

	if msg == "" {
		msg = "no error detail provided"
	}

	return msg
}

// decodeJSON parses a JSON response body. Empty bodies (204 responses)
// decode to nil.
func decodeJSON(body []byte, path string) (map[string]any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decoding response from %q: %w", path, err)
	}

	return result, nil
}
