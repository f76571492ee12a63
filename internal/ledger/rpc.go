package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/owenbrady/predictduel/internal/domain"
)

// RPCClient talks JSON-RPC 2.0 to a settlement ledger node.
//
// Methods: pd_submitOperation, pd_getMarket, pd_getParticipant,
// pd_vaultBalance, pd_recentSeal, pd_health. Wire error codes are mapped to
// the tagged Error taxonomy in errors.go; transport failures surface as
// CodeUnavailable so the executor retries them.
type RPCClient struct {
	endpoint   string
	httpClient *http.Client
	reqID      atomic.Int64
}

// NewRPCClient creates a client for the given node endpoint.
func NewRPCClient(endpoint string, timeout time.Duration) *RPCClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RPCClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// call performs one JSON-RPC round trip and decodes the result into out.
func (c *RPCClient) call(ctx context.Context, method string, params, out any) error {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.reqID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("ledger: marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("ledger: build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Unavailable(method+" request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Unavailable(method+" read response", err)
	}
	if resp.StatusCode >= 500 {
		return Unavailable(fmt.Sprintf("%s: node returned %d", method, resp.StatusCode), nil)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return Unavailable(method+" decode response", err)
	}
	if rpcResp.Error != nil {
		return errFromWire(rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("ledger: decode %s result: %w", method, err)
		}
	}
	return nil
}

// SubmitOperation implements Client.
func (c *RPCClient) SubmitOperation(ctx context.Context, op Operation) (string, error) {
	raw, err := op.encode()
	if err != nil {
		return "", fmt.Errorf("ledger: encode operation: %w", err)
	}
	var result struct {
		SubmissionID string `json:"submission_id"`
	}
	if err := c.call(ctx, "pd_submitOperation", json.RawMessage(raw), &result); err != nil {
		return "", err
	}
	return result.SubmissionID, nil
}

// GetMarket implements Client.
func (c *RPCClient) GetMarket(ctx context.Context, addr domain.Address) (domain.Market, error) {
	var m domain.Market
	err := c.call(ctx, "pd_getMarket", []string{addr.String()}, &m)
	return m, err
}

// GetParticipant implements Client.
func (c *RPCClient) GetParticipant(ctx context.Context, addr domain.Address) (domain.Participant, error) {
	var p domain.Participant
	err := c.call(ctx, "pd_getParticipant", []string{addr.String()}, &p)
	return p, err
}

// VaultBalance implements Client.
func (c *RPCClient) VaultBalance(ctx context.Context, vault domain.Address) (uint64, error) {
	var result struct {
		Balance uint64 `json:"balance"`
	}
	err := c.call(ctx, "pd_vaultBalance", []string{vault.String()}, &result)
	return result.Balance, err
}

// RecentSeal implements Client.
func (c *RPCClient) RecentSeal(ctx context.Context) (string, error) {
	var result struct {
		Seal string `json:"seal"`
	}
	err := c.call(ctx, "pd_recentSeal", nil, &result)
	return result.Seal, err
}

// Health implements Client.
func (c *RPCClient) Health(ctx context.Context) error {
	return c.call(ctx, "pd_health", nil, nil)
}

// Endpoint implements Client.
func (c *RPCClient) Endpoint() string { return c.endpoint }
