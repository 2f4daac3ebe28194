package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"contractorium/core/types"
)

// Client is a minimal JSON-RPC 2.0 client for the node's endpoint.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
	nextID   atomic.Int64
}

// NewClient returns a client for endpoint. token, when non-empty, is sent as
// a bearer credential.
func NewClient(endpoint, token string) *Client {
	return &Client{
		endpoint: strings.TrimRight(strings.TrimSpace(endpoint), "/") + "/",
		token:    strings.TrimSpace(token),
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Call invokes method with a single parameter object and decodes the result
// into out. JSON-RPC failures are returned as *RPCError.
func (c *Client) Call(ctx context.Context, method string, param interface{}, out interface{}) error {
	var params []json.RawMessage
	if param != nil {
		encoded, err := json.Marshal(param)
		if err != nil {
			return err
		}
		params = []json.RawMessage{encoded}
	}
	payload, err := json.Marshal(RPCRequest{JSONRPC: jsonRPCVersion, Method: method, Params: params, ID: c.nextID.Add(1)})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode %s response (HTTP %d): %w", method, resp.StatusCode, err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if out == nil || len(envelope.Result) == 0 {
		return nil
	}
	return json.Unmarshal(envelope.Result, out)
}

// SendTransaction submits a signed transaction and returns its receipt.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	var receipt types.Receipt
	if err := c.Call(ctx, "bounty_sendTransaction", tx, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// Status returns the chain id and head of the node.
func (c *Client) Status(ctx context.Context) (*StatusResult, error) {
	var status StatusResult
	if err := c.Call(ctx, "bounty_getStatus", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Nonce returns the next nonce expected from address.
func (c *Client) Nonce(ctx context.Context, address string) (uint64, error) {
	var nonce uint64
	if err := c.Call(ctx, "bounty_getNonce", addressParams{Address: address}, &nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}
