package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// DefaultTimeout bounds every call the client makes.
const DefaultTimeout = 10 * time.Second

// Client talks to the auth API and owns the caller's session.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      TokenStore
	log        zerolog.Logger
	validate   *validator.Validate

	// notifyMu is held from a state change until its subscribers have been
	// notified, so deliveries arrive in the order the changes were made.
	notifyMu sync.Mutex
	mu       sync.RWMutex
	tokens   TokenPair
	state    State

	subMu     sync.Mutex
	subs      map[int]func(State)
	nextSubID int

	refreshGroup singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its Timeout is kept
// as is.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithStore sets where the token pair is persisted.
func WithStore(s TokenStore) Option {
	return func(c *Client) { c.store = s }
}

// WithLogger attaches a logger for session transitions. Tokens are never
// logged.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a client for the API at baseURL with an in-memory store.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		store:    NewMemoryStore(),
		log:      zerolog.Nop(),
		validate: validator.New(),
		subs:     make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// url builds a complete URL by appending the path to the base URL.
func (c *Client) url(path string) string {
	return c.baseURL + path
}

// send performs one HTTP exchange. An empty token sends no Authorization
// header.
func (c *Client) send(ctx context.Context, method, path string, payload []byte, token string) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

// postJSON sends an unauthenticated JSON request and decodes the answer.
// Credential endpoints go through here so their 401s never trigger a refresh.
func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := encodeBody(in)
	if err != nil {
		return err
	}
	resp, err := c.send(ctx, http.MethodPost, path, payload, "")
	if err != nil {
		return err
	}
	return decodeJSON(resp, out)
}

// GetJSON issues an authenticated GET and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.SendJSON(ctx, http.MethodGet, path, nil, out)
}

// PostJSON issues an authenticated POST.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	return c.SendJSON(ctx, http.MethodPost, path, in, out)
}

// PatchJSON issues an authenticated PATCH.
func (c *Client) PatchJSON(ctx context.Context, path string, in, out any) error {
	return c.SendJSON(ctx, http.MethodPatch, path, in, out)
}

// SendJSON issues an authenticated request through Do. Non-2xx answers come
// back as *APIError.
func (c *Client) SendJSON(ctx context.Context, method, path string, in, out any) error {
	resp, err := c.Do(ctx, method, path, in)
	if err != nil {
		return err
	}
	return decodeJSON(resp, out)
}

func encodeBody(in any) ([]byte, error) {
	if in == nil {
		return nil, nil
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return payload, nil
}

// decodeJSON closes the body. A nil target only checks the status.
func decodeJSON(resp *http.Response, target any) error {
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseErrorResponse(resp, bodyBytes)
	}
	if target == nil || len(bodyBytes) == 0 {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
