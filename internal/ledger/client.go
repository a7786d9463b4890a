package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/pendergraft/sourceproof/internal/observability/metrics"
)

// Client is a JSON-RPC 2.0 read client for a ledger node. It implements both
// ReadClient and BatchReadClient. All requests share one rate limiter so
// concurrent verification fan-out cannot overrun the node's read endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
	nextID     atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithRateLimit caps outgoing requests at rps per second with the given
// burst. Zero rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(client *Client) {
		if rps > 0 {
			client.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// NewClient creates a read client for the node at endpoint.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("ledger endpoint cannot be empty")
	}

	c := &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int64  `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
	ID     int64           `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// objectResult is the wire form of a ledger_getObject result.
type objectResult struct {
	Status string      `json:"status"` // "exists" or "notExists"
	Object *wireObject `json:"object,omitempty"`
}

type wireObject struct {
	Address string            `json:"address"`
	Kind    string            `json:"kind"`
	Modules map[string]string `json:"modules,omitempty"` // base64 bytecode
}

// GetObjectData fetches the object at address.
func (c *Client) GetObjectData(ctx context.Context, address string) (*ObjectData, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	start := time.Now()

	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  "ledger_getObject",
		Params:  []any{address},
		ID:      c.nextID.Add(1),
	}

	var resp rpcResponse
	if err := c.post(ctx, req, &resp); err != nil {
		metrics.LedgerRequest("ledger_getObject", "error", time.Since(start))
		return nil, err
	}
	if resp.Error != nil {
		metrics.LedgerRequest("ledger_getObject", "error", time.Since(start))
		return nil, fmt.Errorf("ledger_getObject %s: %w", address, resp.Error)
	}

	obj, err := decodeObjectResult(resp.Result, address)
	metrics.LedgerRequest("ledger_getObject", statusLabel(err), time.Since(start))
	return obj, err
}

func statusLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrObjectNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// MultiGetObjectData fetches several objects in one JSON-RPC batch request.
func (c *Client) MultiGetObjectData(ctx context.Context, addresses []string) ([]*ObjectData, error) {
	if len(addresses) == 0 {
		return nil, nil
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	start := time.Now()

	reqs := make([]rpcRequest, len(addresses))
	idToIndex := make(map[int64]int, len(addresses))
	for i, addr := range addresses {
		id := c.nextID.Add(1)
		reqs[i] = rpcRequest{
			JSONRPC: "2.0",
			Method:  "ledger_getObject",
			Params:  []any{addr},
			ID:      id,
		}
		idToIndex[id] = i
	}

	var resps []rpcResponse
	if err := c.post(ctx, reqs, &resps); err != nil {
		metrics.LedgerRequest("ledger_getObject_batch", "error", time.Since(start))
		return nil, err
	}
	if len(resps) != len(addresses) {
		metrics.LedgerRequest("ledger_getObject_batch", "error", time.Since(start))
		return nil, fmt.Errorf("batch response size mismatch: sent %d, got %d", len(addresses), len(resps))
	}

	out := make([]*ObjectData, len(addresses))
	for _, resp := range resps {
		i, ok := idToIndex[resp.ID]
		if !ok {
			return nil, fmt.Errorf("batch response carries unknown id %d", resp.ID)
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("ledger_getObject %s: %w", addresses[i], resp.Error)
		}
		obj, err := decodeObjectResult(resp.Result, addresses[i])
		if err != nil && !errors.Is(err, ErrObjectNotFound) {
			return nil, err
		}
		out[i] = obj // nil when not found
	}
	metrics.LedgerRequest("ledger_getObject_batch", "ok", time.Since(start))
	return out, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *Client) post(ctx context.Context, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling ledger node: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ledger node returned HTTP %d: %s", resp.StatusCode, string(data))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func decodeObjectResult(raw json.RawMessage, address string) (*ObjectData, error) {
	var result objectResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding object result for %s: %w", address, err)
	}

	if result.Status != "exists" || result.Object == nil {
		return nil, ErrObjectNotFound
	}

	obj := &ObjectData{
		Address: result.Object.Address,
		Kind:    result.Object.Kind,
	}
	if len(result.Object.Modules) > 0 {
		obj.Modules = make(map[string][]byte, len(result.Object.Modules))
		for name, encoded := range result.Object.Modules {
			b, err := base64.StdEncoding.DecodeString(encoded)
			if err != nil {
				return nil, fmt.Errorf("decoding module %q at %s: %w", name, address, err)
			}
			obj.Modules[name] = b
		}
	}
	return obj, nil
}
