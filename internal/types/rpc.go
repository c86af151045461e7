package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// RPCRequest represents an inbound JSON-RPC request.
type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      int64           `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"` // Method parameters, usually an array.
}

// RPCResponse represents a JSON-RPC response. Exactly one of Result and Error is written.
type RPCResponse struct {
	JSONRPC string
	ID      int64
	Result  json.RawMessage
	Error   *RPCError

	// Success is only set when a transport answered with a bare success flag.
	Success *bool
}

type rpcResponseJSON struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	Success *bool           `json:"success,omitempty"`
}

// MarshalJSON always writes `result` on success, as `null` when empty.
func (r RPCResponse) MarshalJSON() ([]byte, error) {
	out := rpcResponseJSON{JSONRPC: JSONRPCVersion, ID: r.ID}
	if r.Error != nil {
		out.Error = r.Error
		return json.Marshal(out)
	}
	out.Result = r.Result
	if len(out.Result) == 0 {
		out.Result = json.RawMessage("null")
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a response coming back from a node.
func (r *RPCResponse) UnmarshalJSON(data []byte) error {
	var in struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Result  json.RawMessage `json:"result"`
		Error   *RPCError       `json:"error"`
		Success *bool           `json:"success"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.JSONRPC = in.JSONRPC
	r.Result = in.Result
	r.Error = in.Error
	r.Success = in.Success
	r.ID = 0
	if len(in.ID) > 0 && !bytes.Equal(in.ID, []byte("null")) {
		// Upstream ids are ours; non numeric ids are dropped.
		_ = json.Unmarshal(in.ID, &r.ID)
	}
	return nil
}

// HasResult reports whether a non-null result is present.
func (r *RPCResponse) HasResult() bool {
	return r.Error == nil && len(r.Result) > 0 && !bytes.Equal(r.Result, []byte("null"))
}

// NewResultResponse builds a success response carrying result.
func NewResultResponse(id int64, result interface{}) *RPCResponse {
	raw, err := json.Marshal(result)
	if err != nil {
		return NewErrorResponse(id, NewRPCError(InternalErrorCode, err.Error(), nil))
	}
	return &RPCResponse{JSONRPC: JSONRPCVersion, ID: id, Result: raw}
}

// NewErrorResponse builds an error response.
func NewErrorResponse(id int64, rpcErr *RPCError) *RPCResponse {
	return &RPCResponse{JSONRPC: JSONRPCVersion, ID: id, Error: rpcErr}
}

// RPCError represents a JSON-RPC error object.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// NewRPCError creates an RPCError.
func NewRPCError(code int, message string, data interface{}) *RPCError {
	return &RPCError{Code: code, Message: message, Data: data}
}

// Error implements the error interface with the bare message.
func (e *RPCError) Error() string {
	return e.Message
}

// UnmarshalJSON accepts both the structured form and a bare string.
func (e *RPCError) UnmarshalJSON(data []byte) error {
	var message string
	if err := json.Unmarshal(data, &message); err == nil {
		e.Code = InternalErrorCode
		e.Message = message
		return nil
	}
	type plain RPCError
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = RPCError(p)
	return nil
}

// Tab identifies the browser tab a request came from.
type Tab struct {
	ID  int64  `json:"id"`
	URL string `json:"url"`
}

// Sender is the identity the messenger layer attaches to every inbound request.
type Sender struct {
	Tab     *Tab   `json:"tab,omitempty"`
	FrameID *int64 `json:"frameId,omitempty"`
	URL     string `json:"url"`
}

// IsInpage reports whether the sender is a dapp page: a real tab, not an extension page, top frame only.
func (s Sender) IsInpage() bool {
	if s.Tab == nil || strings.Contains(s.Tab.URL, "extension://") {
		return false
	}
	return s.FrameID == nil || *s.FrameID == 0
}

// PageSender is the identity of a request that arrived on a page-facing transport, built from the origin
// the transport observed. Extension origins are dropped.
func PageSender(origin string) Sender {
	if strings.Contains(origin, "extension://") {
		origin = ""
	}
	return Sender{Tab: &Tab{URL: origin}, URL: origin}
}

// Host returns the sender's host with a leading "www." stripped.
func (s Sender) Host() string {
	return NormalizeHost(s.URL)
}

// NormalizeHost extracts the host of rawURL and strips a leading "www.".
// Bare hosts are accepted as well.
func NormalizeHost(rawURL string) string {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	} else if strings.Contains(rawURL, "/") {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

// PendingRequest is a request awaiting a decision from the wallet interface.
type PendingRequest struct {
	RPCRequest
	Sender Sender `json:"sender"`
}

// PendingStatus is the decision taken on a pending request.
type PendingStatus string

const (
	// PendingStatusApproved lets the request execute.
	PendingStatusApproved PendingStatus = "approved"
	// PendingStatusRejected fails the request with a user rejection.
	PendingStatusRejected PendingStatus = "rejected"
)

// Decision is the message the wallet interface sends to settle a pending request.
type Decision struct {
	Request PendingRequest `json:"request"`
	Status  PendingStatus  `json:"status"`
}

// Validate accepts only the approved and rejected statuses.
func (d Decision) Validate() error {
	switch d.Status {
	case PendingStatusApproved, PendingStatusRejected:
		return nil
	}
	return fmt.Errorf("unknown status %q", d.Status)
}

// RejectionData is attached to user rejection errors.
type RejectionData struct {
	Request RPCRequest `json:"request"`
}
