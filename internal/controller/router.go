// Package controller routes wallet JSON-RPC requests and exposes them over HTTP.
package controller

import (
	"context"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/devwallet/rpcbroker/internal/messenger"
	"github.com/devwallet/rpcbroker/internal/orm"
	"github.com/devwallet/rpcbroker/internal/pending"
	"github.com/devwallet/rpcbroker/internal/signer"
	"github.com/devwallet/rpcbroker/internal/store"
	"github.com/devwallet/rpcbroker/internal/transport"
	"github.com/devwallet/rpcbroker/internal/types"
)

var rpcRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rpcbroker_rpc_requests_total",
	Help: "Routed JSON-RPC requests by method and outcome.",
}, []string{"method", "outcome"})

// Dialer returns the transport of a node url.
type Dialer interface {
	Get(rpcURL string) transport.Requester
}

// Router classifies, authorizes and executes every inbound request.
type Router struct {
	store  *store.Store
	queue  *pending.Queue
	dialer Dialer
	inpage messenger.Messenger
	wallet messenger.Messenger
}

// NewRouter creates a Router.
func NewRouter(st *store.Store, queue *pending.Queue, dialer Dialer, inpage, wallet messenger.Messenger) *Router {
	return &Router{
		store:  st,
		queue:  queue,
		dialer: dialer,
		inpage: inpage,
		wallet: wallet,
	}
}

// requestContext is everything resolved once at the start of a request.
type requestContext struct {
	logID   string
	snap    *store.Snapshot
	rpcURL  string
	network orm.Network
	sender  types.Sender
	host    string
	inpage  bool
	client  transport.Requester
}

// Handle answers req on behalf of sender. It never fails: every problem is encoded as a JSON-RPC error.
func (r *Router) Handle(ctx context.Context, req types.RPCRequest, sender types.Sender, rpcURL string) (resp *types.RPCResponse) {
	logID := uuid.NewString()
	defer func() {
		if recovered := recover(); recovered != nil {
			log.Error("rpc handler panicked", "request", logID, "method", req.Method, "panic", recovered)
			resp = types.NewErrorResponse(req.ID, types.NewRPCError(types.InternalErrorCode, types.UnknownErrorMessage, nil))
		}
		outcome := "success"
		if resp.Error != nil {
			outcome = "error"
		}
		rpcRequestsTotal.WithLabelValues(methodLabel(req.Method), outcome).Inc()
	}()

	if err := r.store.WaitHydrated(ctx); err != nil {
		return errorResponse(req.ID, err)
	}

	rc := r.resolve(logID, sender, rpcURL)
	log.Debug("rpc request", "request", logID, "method", req.Method, "id", req.ID, "host", rc.host, "inpage", rc.inpage, "rpc", rc.rpcURL)

	onboarded := rc.rpcURL != ""
	if rc.inpage {
		onboarded = rc.snap.Onboarded
	}
	if !onboarded {
		return types.NewErrorResponse(req.ID, types.NewRPCError(types.UnsupportedMethodCode, types.NotOnboardedMessage, nil))
	}

	if requiresApproval(req.Method, rc.snap.Settings) {
		return r.handleSignable(ctx, rc, req)
	}

	if rc.inpage {
		if resp, ok := r.handleInpage(ctx, rc, req); ok {
			return resp
		}
	}
	return r.execute(ctx, rc, req)
}

func (r *Router) resolve(logID string, sender types.Sender, rpcURL string) *requestContext {
	snap := r.store.Snapshot()
	if rpcURL == "" {
		rpcURL = snap.Network.RPCURL
	}
	rc := &requestContext{
		logID:   logID,
		snap:    snap,
		rpcURL:  rpcURL,
		network: snap.NetworkFor(rpcURL),
		sender:  sender,
		host:    sender.Host(),
		inpage:  sender.IsInpage(),
	}
	if rpcURL != "" {
		rc.client = r.dialer.Get(rpcURL)
	}
	return rc
}

// requiresApproval reports whether method needs a human decision under settings.
func requiresApproval(method string, settings store.Settings) bool {
	switch method {
	case types.MethodSendTransaction, types.MethodSendCalls:
		return !settings.BypassTransactionAuth
	case types.MethodSign, types.MethodSignTypedDataV4, types.MethodPersonalSign:
		return !settings.BypassSignatureAuth
	}
	return false
}

// handleSignable runs the approval flow of a signing or sending request.
func (r *Router) handleSignable(ctx context.Context, rc *requestContext, req types.RPCRequest) *types.RPCResponse {
	if from := types.ExtractSigner(req.Method, req.Params); from != "" {
		account := rc.snap.FindAccount(from)
		if !signer.CanSign(account, rc.network.EffectiveType()) {
			return types.NewErrorResponse(req.ID, types.NewRPCError(types.InternalErrorCode, types.CannotSignMessage, nil))
		}
	}

	if !rc.snap.HasSession(rc.host) {
		return types.NewErrorResponse(req.ID, types.NewRPCError(types.UnauthorizedCode, types.UnauthorizedMessage, nil))
	}

	approved, rejection := r.awaitApproval(ctx, rc, req)
	if rejection != nil {
		return rejection
	}
	return r.execute(ctx, rc, approved)
}

// awaitApproval queues req and suspends until the wallet decides. It returns the request to execute, or the
// response to send when the request does not go ahead.
func (r *Router) awaitApproval(ctx context.Context, rc *requestContext, req types.RPCRequest) (types.RPCRequest, *types.RPCResponse) {
	pendingReq := types.PendingRequest{RPCRequest: req, Sender: rc.sender}
	entry, err := r.queue.Add(pendingReq)
	if err != nil {
		return req, types.NewErrorResponse(req.ID, types.NewRPCError(types.InvalidRequestCode, err.Error(), nil))
	}
	defer r.queue.Remove(entry.Key())
	r.wallet.Send(types.TopicPendingRequest, pendingReq)

	decision, err := entry.Wait(ctx)
	if err != nil {
		log.Debug("pending request abandoned", "request", rc.logID, "id", req.ID, "error", err)
		return req, rejected(req)
	}
	if decision.Status == types.PendingStatusRejected {
		log.Info("request rejected by user", "request", rc.logID, "method", req.Method, "host", rc.host)
		return req, rejected(req)
	}

	approved := decision.Request.RPCRequest
	approved.ID = req.ID
	approved.JSONRPC = req.JSONRPC
	if approved.Method == "" {
		approved.Method = req.Method
		approved.Params = req.Params
	}
	return approved, nil
}

func rejected(req types.RPCRequest) *types.RPCResponse {
	return types.NewErrorResponse(req.ID, types.NewRPCError(
		types.UserRejectedRequestCode,
		types.UserRejectedMessage,
		types.RejectionData{Request: req},
	))
}

// errorResponse keeps structured node errors and wraps everything else as an internal error.
func errorResponse(id int64, err error) *types.RPCResponse {
	var rpcErr *types.RPCError
	if errors.As(err, &rpcErr) {
		return types.NewErrorResponse(id, rpcErr)
	}
	message := err.Error()
	if message == "" {
		message = types.UnknownErrorMessage
	}
	return types.NewErrorResponse(id, types.NewRPCError(types.InternalErrorCode, message, nil))
}

var methodPrefixes = []string{"eth_", "wallet_", "personal_", "net_", "web3_", "anvil_", "evm_", "debug_", "txpool_"}

// methodLabel bounds the metric label cardinality.
func methodLabel(method string) string {
	if len(method) > 64 {
		return "other"
	}
	for _, prefix := range methodPrefixes {
		if strings.HasPrefix(method, prefix) {
			return method
		}
	}
	return "other"
}
