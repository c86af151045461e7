// Package testutil provides a scripted JSON-RPC node for tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/devwallet/rpcbroker/internal/types"
)

// Handler answers one method. A non-nil *types.RPCError is returned as the error object.
type Handler func(params json.RawMessage) (interface{}, *types.RPCError)

// Call is a request received by the node.
type Call struct {
	Method string
	Params json.RawMessage
}

// Node is an httptest server speaking JSON-RPC. Unhandled methods answer -32601.
type Node struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]Handler
	calls    []Call
}

// NewNode starts a node that is closed with the test.
func NewNode(t *testing.T) *Node {
	n := &Node{handlers: map[string]Handler{}}
	n.Server = httptest.NewServer(http.HandlerFunc(n.serve))
	t.Cleanup(n.Server.Close)
	return n
}

// Handle sets the handler of method.
func (n *Node) Handle(method string, handler Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[method] = handler
}

// Result makes method always answer result.
func (n *Node) Result(method string, result interface{}) {
	n.Handle(method, func(json.RawMessage) (interface{}, *types.RPCError) {
		return result, nil
	})
}

// Calls returns the received requests in order.
func (n *Node) Calls() []Call {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Call(nil), n.calls...)
}

// Methods returns the received method names in order.
func (n *Node) Methods() []string {
	calls := n.Calls()
	methods := make([]string, 0, len(calls))
	for _, call := range calls {
		methods = append(methods, call.Method)
	}
	return methods
}

// Count returns how often method was called.
func (n *Node) Count(method string) int {
	count := 0
	for _, call := range n.Calls() {
		if call.Method == method {
			count++
		}
	}
	return count
}

func (n *Node) serve(w http.ResponseWriter, r *http.Request) {
	var req types.RPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	n.calls = append(n.calls, Call{Method: req.Method, Params: req.Params})
	handler, ok := n.handlers[req.Method]
	n.mu.Unlock()

	var resp *types.RPCResponse
	if !ok {
		resp = types.NewErrorResponse(req.ID, types.NewRPCError(types.MethodNotFoundCode, "method not found: "+req.Method, nil))
	} else if result, rpcErr := handler(req.Params); rpcErr != nil {
		resp = types.NewErrorResponse(req.ID, rpcErr)
	} else {
		resp = types.NewResultResponse(req.ID, result)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
