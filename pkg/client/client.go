// Package client provides a Go client for the Sourceproof API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client is a Sourceproof API client
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// New creates a new Sourceproof client
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Module is the wire form of one compiled module. Bytecode is
// base64-encoded on the wire by encoding/json.
type Module struct {
	Name     string `json:"name"`
	Address  string `json:"address,omitempty"`
	Bytecode []byte `json:"bytecode"`
}

// Package is the wire form of a compiled package.
type Package struct {
	Name         string              `json:"name"`
	Modules      []Module            `json:"modules"`
	Dependencies map[string]*Package `json:"dependencies,omitempty"`
	AddressTable map[string]string   `json:"address_table"`
}

// VerifyRequest is the request for POST /api/v1/verify.
type VerifyRequest struct {
	Package     Package `json:"package"`
	RootAddress string  `json:"root_address,omitempty"`
	RootMode    string  `json:"root_mode,omitempty"`
	VerifyDeps  bool    `json:"verify_deps"`
}

// VerifyResult is one verification outcome.
type VerifyResult struct {
	Package     string `json:"package"`
	Fingerprint string `json:"fingerprint"`
	Verified    bool   `json:"verified"`
	Result      string `json:"result"`
	Message     string `json:"message,omitempty"`
}

// Verification is one audit-log entry.
type Verification struct {
	ID          string `json:"id"`
	Package     string `json:"package"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Address     string `json:"address,omitempty"`
	Operation   string `json:"operation"`
	Result      string `json:"result"`
	Detail      string `json:"detail,omitempty"`
	DurationMS  int64  `json:"duration_ms"`
	CreatedAt   string `json:"created_at"`
}

// ListVerificationsResponse is the response for listing verifications.
type ListVerificationsResponse struct {
	Verifications []Verification `json:"verifications"`
	HasMore       bool           `json:"has_more"`
	NextCursor    string         `json:"next_cursor,omitempty"`
}

// ListVerificationsOptions filters the verification list.
type ListVerificationsOptions struct {
	Package string
	Address string
	Result  string
	Limit   int
	Cursor  string
}

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Verify submits a compiled package for verification.
func (c *Client) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	var resp VerifyResult
	if err := c.post(ctx, "/api/v1/verify", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListVerifications lists recorded verification outcomes.
func (c *Client) ListVerifications(ctx context.Context, opts ListVerificationsOptions) (*ListVerificationsResponse, error) {
	q := url.Values{}
	if opts.Package != "" {
		q.Set("package", opts.Package)
	}
	if opts.Address != "" {
		q.Set("address", opts.Address)
	}
	if opts.Result != "" {
		q.Set("result", opts.Result)
	}
	if opts.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}
	if opts.Cursor != "" {
		q.Set("cursor", opts.Cursor)
	}

	path := "/api/v1/verifications"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var resp ListVerificationsResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetVerification fetches one audit-log entry by id.
func (c *Client) GetVerification(ctx context.Context, id string) (*Verification, error) {
	var resp Verification
	if err := c.get(ctx, "/api/v1/verifications/"+url.PathEscape(id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health checks the service health endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	return c.do(req, result)
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.parseError(resp)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func (c *Client) parseError(resp *http.Response) error {
	var errResp struct {
		Error APIError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	return &errResp.Error
}
