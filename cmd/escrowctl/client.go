package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// client is a minimal JSON-RPC 2.0 client speaking the wire format
// gorilla/rpc/v2's json2 codec expects (the escrowd server registers the
// escrow service with that codec in rpc/server.go): a POST body of
// {"jsonrpc": "2.0", "method": "Service.Method", "params": [arg], "id": "..."}.
type client struct {
	endpoint string
	http     *http.Client
}

func newClient(endpoint string) *client {
	return &client{endpoint: endpoint, http: http.DefaultClient}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      string        `json:"id"`
}

type rpcError struct {
	Code    interface{} `json:"code"`
	Message string      `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error: %s", e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
	ID     string          `json:"id"`
}

// call invokes method (e.g. "escrow.CreateEscrow") with a single params
// object and decodes the result into out.
func (c *client) call(ctx context.Context, method string, params, out interface{}) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: []interface{}{params}, ID: "1"})
	if err != nil {
		return fmt.Errorf("escrowctl: failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("escrowctl: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("escrowctl: request to %s failed: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("escrowctl: failed to decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("escrowctl: failed to decode result: %w", err)
	}
	return nil
}
