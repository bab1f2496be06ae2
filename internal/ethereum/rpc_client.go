package ethereum

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync/atomic"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// HTTPClient implements Backend using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string
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

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new Ethereum RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
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

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error, including eth_call reverts.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call with retries and exponential backoff.
// Transport failures are retried; RPC-level errors (reverts included) are
// returned immediately since the node has already answered.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqID := c.requestID.Add(1)
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// ChainID retrieves the chain identifier used for transaction signing.
func (c *HTTPClient) ChainID(ctx context.Context) (*big.Int, error) {
	var result string
	if err := c.call(ctx, "eth_chainId", nil, &result); err != nil {
		return nil, err
	}
	return DecodeBig(result)
}

// GasPrice retrieves the current gas price suggestion.
func (c *HTTPClient) GasPrice(ctx context.Context) (*big.Int, error) {
	var result string
	if err := c.call(ctx, "eth_gasPrice", nil, &result); err != nil {
		return nil, err
	}
	return DecodeBig(result)
}

// BlockNumber retrieves the latest block number.
func (c *HTTPClient) BlockNumber(ctx context.Context) (uint64, error) {
	var result string
	if err := c.call(ctx, "eth_blockNumber", nil, &result); err != nil {
		return 0, err
	}
	return DecodeUint64(result)
}

// Call executes a read-only contract call against the latest block.
// Simulation reverts surface as *RPCError.
func (c *HTTPClient) Call(ctx context.Context, msg CallMsg) ([]byte, error) {
	var result string
	if err := c.call(ctx, "eth_call", []interface{}{msg, "latest"}, &result); err != nil {
		return nil, err
	}
	return DecodeBytes(result)
}

// EstimateGas estimates the gas needed to execute the call.
func (c *HTTPClient) EstimateGas(ctx context.Context, msg CallMsg) (uint64, error) {
	var result string
	if err := c.call(ctx, "eth_estimateGas", []interface{}{msg}, &result); err != nil {
		return 0, err
	}
	return DecodeUint64(result)
}

// NonceAt retrieves the pending-state transaction count for an account.
func (c *HTTPClient) NonceAt(ctx context.Context, account Address) (uint64, error) {
	var result string
	if err := c.call(ctx, "eth_getTransactionCount", []interface{}{account.String(), "pending"}, &result); err != nil {
		return 0, err
	}
	return DecodeUint64(result)
}

// Balance retrieves the native-asset balance of an account.
func (c *HTTPClient) Balance(ctx context.Context, account Address) (*big.Int, error) {
	var result string
	if err := c.call(ctx, "eth_getBalance", []interface{}{account.String(), "latest"}, &result); err != nil {
		return nil, err
	}
	return DecodeBig(result)
}

// SendRawTransaction broadcasts a signed transaction and returns its hash.
func (c *HTTPClient) SendRawTransaction(ctx context.Context, rawTx []byte) (Hash, error) {
	var result string
	if err := c.call(ctx, "eth_sendRawTransaction", []interface{}{EncodeBytes(rawTx)}, &result); err != nil {
		return Hash{}, err
	}
	return HexToHash(result)
}

// TransactionReceipt retrieves the receipt for a transaction hash.
// Returns nil without error while the transaction is pending.
func (c *HTTPClient) TransactionReceipt(ctx context.Context, txHash Hash) (*Receipt, error) {
	var result *Receipt
	if err := c.call(ctx, "eth_getTransactionReceipt", []interface{}{txHash.String()}, &result); err != nil {
		return nil, err
	}
	return result, nil
}
