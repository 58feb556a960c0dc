package rpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"cryptocoffee/crypto"
)

// Client issues JSON-RPC calls against a coffeed node.
type Client struct {
	endpoint string
	http     *http.Client
	nextID   atomic.Uint64
}

// NewClient returns a client for endpoint. A nil httpClient uses a default
// with a 15 second timeout.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{endpoint: strings.TrimSpace(endpoint), http: httpClient}
}

// Call invokes method with positional params and decodes the result into out
// when out is non-nil. JSON-RPC failures are returned as *RPCError.
func (c *Client) Call(ctx context.Context, method string, out interface{}, params ...interface{}) error {
	raw := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		encoded, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode params: %w", err)
		}
		raw = append(raw, encoded)
	}
	return c.do(ctx, method, raw, out)
}

// SignedCall signs payload with key for method and submits it as
// [payload, signature].
func (c *Client) SignedCall(ctx context.Context, key *crypto.PrivateKey, chainID uint64, method string, payload interface{}, out interface{}) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	sig, err := crypto.SignRequest(key, chainID, method, encoded)
	if err != nil {
		return fmt.Errorf("sign request: %w", err)
	}
	sigJSON, err := json.Marshal("0x" + hex.EncodeToString(sig))
	if err != nil {
		return err
	}
	return c.do(ctx, method, []json.RawMessage{encoded, sigJSON}, out)
}

// NextNonce returns the nonce the next signed request from addr must carry.
func (c *Client) NextNonce(ctx context.Context, addr [20]byte) (uint64, error) {
	var acc AccountResult
	if err := c.Call(ctx, "coffee_getAccount", &acc, crypto.FormatAddress(addr)); err != nil {
		return 0, err
	}
	return acc.Nonce + 1, nil
}

// ChainInfo fetches the chain identifier requests must be signed for.
func (c *Client) ChainInfo(ctx context.Context) (*ChainInfoResult, error) {
	var info ChainInfoResult
	if err := c.Call(ctx, "coffee_chainInfo", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) do(ctx context.Context, method string, params []json.RawMessage, out interface{}) error {
	body, err := json.Marshal(RPCRequest{
		JSONRPC: jsonRPCVersion,
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("failed to decode RPC response (HTTP %d): %w", resp.StatusCode, err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if out == nil || len(rpcResp.Result) == 0 {
		return nil
	}
	return json.Unmarshal(rpcResp.Result, out)
}

// ErrorCode returns the ledger error code carried in a JSON-RPC error, if any.
func ErrorCode(err error) string {
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr == nil {
		return ""
	}
	switch data := rpcErr.Data.(type) {
	case map[string]interface{}:
		code, _ := data["code"].(string)
		return code
	case map[string]string:
		return data["code"]
	}
	return ""
}
