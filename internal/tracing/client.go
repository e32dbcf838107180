package tracing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"txrecon/internal/domain"
)

// Default configuration values.
const (
	DefaultEndpoint    = "https://{network}.gateway.tenderly.co"
	DefaultMethod      = "tenderly_traceTransaction"
	DefaultTimeout     = 60 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0

	// AccessKeyHeader carries the provider credential.
	AccessKeyHeader = "X-Access-Key"

	networkPlaceholder = "{network}"
)

// HTTPClient implements Source using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string // may contain {network}
	accessKey   string
	method      string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithMethod overrides the JSON-RPC trace method.
func WithMethod(method string) ClientOption {
	return func(c *HTTPClient) {
		c.method = method
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a trace client. endpoint may contain the {network}
// placeholder; an empty endpoint uses DefaultEndpoint.
func NewHTTPClient(endpoint, accessKey string, opts ...ClientOption) *HTTPClient {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &HTTPClient{
		endpoint:    endpoint,
		accessKey:   accessKey,
		method:      DefaultMethod,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ Source = (*HTTPClient)(nil)

// EndpointFor returns the endpoint URL for network.
func (c *HTTPClient) EndpointFor(network string) string {
	return strings.ReplaceAll(c.endpoint, networkPlaceholder, network)
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// statusError is a non-retryable HTTP status.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// FetchTrace retrieves and decodes the trace of txHash on network.
func (c *HTTPClient) FetchTrace(ctx context.Context, txHash, network string) (*domain.TraceResult, error) {
	wrap := func(err error) error {
		return &FetchError{Network: network, TxHash: txHash, Err: err}
	}

	if c.accessKey == "" {
		return nil, wrap(ErrMissingCredential)
	}
	if b, err := hexutil.Decode(txHash); err != nil || len(b) != common.HashLength {
		return nil, wrap(fmt.Errorf("%w: %q", ErrInvalidTxHash, txHash))
	}

	raw, err := c.call(ctx, c.EndpointFor(network), c.method, []any{txHash})
	if err != nil {
		return nil, wrap(err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, wrap(ErrTraceNotFound)
	}

	var trace domain.TraceResult
	if err := json.Unmarshal(raw, &trace); err != nil {
		return nil, wrap(fmt.Errorf("decode trace: %w", err))
	}
	return &trace, nil
}

// call performs a JSON-RPC call with retries and exponential backoff.
// Transport errors, 429 and 5xx are retried; RPC errors and other
// statuses (401/403 included) are not.
func (c *HTTPClient) call(ctx context.Context, endpoint, method string, params []any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(AccessKeyHeader, c.accessKey)

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("http request: %w", ctx.Err())
			}
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		case resp.StatusCode >= 500:
			lastErr = &statusError{Code: resp.StatusCode, Body: truncate(respBody)}
			continue
		case resp.StatusCode != http.StatusOK:
			return nil, &statusError{Code: resp.StatusCode, Body: truncate(respBody)}
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}
		if rpcResp.Error != nil {
			return nil, rpcResp.Error
		}
		return rpcResp.Result, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func truncate(b []byte) string {
	const maxBody = 256
	if len(b) > maxBody {
		return string(b[:maxBody]) + "..."
	}
	return string(b)
}
