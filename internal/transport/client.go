// Package transport sends JSON-RPC requests to blockchain nodes over HTTP.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/devwallet/rpcbroker/internal/types"
)

const maxResponseSize = 32 << 20

var upstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "rpcbroker_upstream_request_duration_seconds",
	Help:    "Latency of JSON-RPC requests sent to nodes.",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "outcome"})

// Requester sends a single JSON-RPC request and returns the node's response.
type Requester interface {
	Request(ctx context.Context, req *types.RPCRequest) (*types.RPCResponse, error)
}

// Client is a Requester bound to one node url.
type Client struct {
	url        string
	httpClient *http.Client
	nextID     atomic.Int64
}

// NewClient creates a Client for rpcURL.
func NewClient(rpcURL string, timeout time.Duration) *Client {
	return &Client{
		url:        rpcURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// URL returns the node url.
func (c *Client) URL() string {
	return c.url
}

// Request posts req to the node. Node side errors are returned inside the response; only transport failures return an error.
func (c *Client) Request(ctx context.Context, req *types.RPCRequest) (resp *types.RPCResponse, err error) {
	start := time.Now()
	defer func() {
		outcome := "success"
		switch {
		case err != nil:
			outcome = "transport_error"
		case resp.Error != nil:
			outcome = "rpc_error"
		}
		upstreamDuration.WithLabelValues(req.Method, outcome).Observe(time.Since(start).Seconds())
	}()

	body := types.RPCRequest{
		JSONRPC: types.JSONRPCVersion,
		ID:      req.ID,
		Method:  req.Method,
		Params:  req.Params,
	}
	if body.ID == 0 {
		body.ID = c.nextID.Add(1)
	}
	if len(body.Params) == 0 {
		body.Params = json.RawMessage("[]")
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", req.Method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", req.Method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to reach %s: %w", c.url, err)
	}
	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if closeErr := httpResp.Body.Close(); closeErr != nil {
		log.Warn("Failed to close response body", "rpc", c.url, "error", closeErr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", c.url, err)
	}

	var out types.RPCResponse
	if err = json.Unmarshal(respBody, &out); err != nil {
		if httpResp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%s returned HTTP error: %s", c.url, httpResp.Status)
		}
		return nil, fmt.Errorf("failed to parse response from %s: %w", c.url, err)
	}
	out.JSONRPC = types.JSONRPCVersion
	out.ID = req.ID
	log.Debug("upstream request", "rpc", c.url, "method", req.Method, "id", body.ID, "error", out.Error)
	return &out, nil
}

// Call sends method with positional params and returns the raw result. Node errors are returned as *types.RPCError.
func Call(ctx context.Context, r Requester, method string, params ...interface{}) (json.RawMessage, error) {
	if params == nil {
		params = []interface{}{}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	resp, err := r.Request(ctx, &types.RPCRequest{Method: method, Params: raw})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}

// CallResult is Call followed by decoding the result into out.
func CallResult(ctx context.Context, r Requester, out interface{}, method string, params ...interface{}) error {
	raw, err := Call(ctx, r, method, params...)
	if err != nil {
		return err
	}
	if err = json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}
